package cerebrum

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"cerebrum/internal/attention"
	"cerebrum/internal/competence"
	"cerebrum/internal/consolidate"
	"cerebrum/internal/engine"
	"cerebrum/internal/homeostasis"
	"cerebrum/internal/model"
	"cerebrum/internal/plasticity"
	"cerebrum/internal/platform"
	"cerebrum/internal/reward"
	"cerebrum/internal/stats"
	"cerebrum/internal/synapse"
	"cerebrum/internal/telemetry"
	"cerebrum/internal/topology"
)

const (
	defaultArtifactsDir = "artifacts"
	defaultDBPath       = "cerebrum.db"

	defaultNeurons        = 64
	defaultFanout         = 4
	defaultSteps          = 500
	defaultSampleInterval = 25
	defaultEpisodeLength  = 100
)

type Options struct {
	StoreKind    string
	DBPath       string
	ArtifactsDir string
}

type Client struct {
	store     telemetry.Store
	storeKind string
	dbPath    string

	artifactsDir string
}

// RunRequest carries every knob of one simulation run. Zero sizes and
// counts mean "use the default". Knobs where zero is itself a valid
// setting are pointers: nil means unset, and Run resolves them to their
// defaults once before constructing the engine.
type RunRequest struct {
	Seed           int64
	Neurons        int
	Fanout         int
	Steps          int
	SampleInterval int
	EpisodeLength  int

	Autonomous         bool
	AutonomousInterval time.Duration

	HebbRate           *float64
	STDPRate           float64
	STDPRateMultiplier float64
	STDPWindowSteps    float64
	STDPTau            float64

	TraceLambda     *float64
	TraceEtaElig    *float64
	AutoEligibility bool

	Alpha         float64
	Gamma         *float64
	Eta           float64
	Kappa         *float64
	UnsafePhase4  bool
	NoveltyWindow int

	AttentionMode   string
	AttentionAmin   float64
	AttentionAmax   float64
	AttentionBoost  float64
	AttentionAnneal time.Duration
	AttentionTopK   int

	CompetenceMode  string
	CompetenceRho   *float64
	CompetencePGate *float64

	HomeostasisEnabled bool
	HomeostasisEta     float64
	HomeostasisTarget  float64

	ConsolidateEvery    time.Duration
	ConsolidateStrength float64
	PruneThreshold      float64
	ChaosSteps          int
	ConsolidateSteps    int

	MimicryEnabled  bool
	MimicryWeight   float64
	MimicryInternal bool
	MimicryMirror   bool
	TeacherVector   []float32
}

// Float64 returns a pointer to v, for RunRequest's optional knobs.
func Float64(v float64) *float64 { return &v }

func orDefault(p *float64, def float64) float64 {
	if p == nil {
		return def
	}
	return *p
}

type RunSummary struct {
	RunID        string
	ArtifactsDir string
	Steps        int
	Synapses     int
	FinalStats   model.LearningStats
	Log          stats.LogSummary
}

type RunsRequest struct {
	Limit int
}

type RunItem struct {
	RunID        string
	CreatedAtUTC string
	Seed         int64
	Neurons      int
	Synapses     int
	Steps        int
	Autonomous   bool
}

type StatsRequest struct {
	RunID  string
	Latest bool
}

type SnapshotRequest struct {
	RunID   string
	Latest  bool
	OutPath string
}

type SnapshotSummary struct {
	RunID string
	Step  uint64
	Rows  int
	Path  string
}

func New(opts Options) (*Client, error) {
	storeKind := opts.StoreKind
	if storeKind == "" {
		storeKind = telemetry.DefaultStoreKind()
	}
	dbPath := opts.DBPath
	if dbPath == "" {
		dbPath = defaultDBPath
	}
	artifactsDir := opts.ArtifactsDir
	if artifactsDir == "" {
		artifactsDir = defaultArtifactsDir
	}

	store, err := telemetry.NewStore(storeKind, dbPath)
	if err != nil {
		return nil, err
	}

	return &Client{
		store:        store,
		storeKind:    storeKind,
		dbPath:       dbPath,
		artifactsDir: artifactsDir,
	}, nil
}

func (c *Client) Close() error {
	return telemetry.CloseIfSupported(c.store)
}

func (c *Client) Init(ctx context.Context) error {
	return c.store.Init(ctx)
}

// Reset drops all persisted telemetry and reinitializes the backing
// store. Artifact directories on disk are left alone.
func (c *Client) Reset(ctx context.Context) error {
	if err := telemetry.CloseIfSupported(c.store); err != nil {
		return err
	}
	if c.storeKind == "sqlite" {
		if err := os.Remove(c.dbPath); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	store, err := telemetry.NewStore(c.storeKind, c.dbPath)
	if err != nil {
		return err
	}
	c.store = store
	return c.store.Init(ctx)
}

func (c *Client) Run(ctx context.Context, req RunRequest) (RunSummary, error) {
	if req.Neurons <= 0 {
		req.Neurons = defaultNeurons
	}
	if req.Fanout <= 0 {
		req.Fanout = defaultFanout
	}
	if req.Steps <= 0 {
		req.Steps = defaultSteps
	}
	if req.SampleInterval <= 0 {
		req.SampleInterval = defaultSampleInterval
	}
	if req.EpisodeLength <= 0 {
		req.EpisodeLength = defaultEpisodeLength
	}
	if req.Autonomous && req.AutonomousInterval <= 0 {
		req.AutonomousInterval = time.Millisecond
	}
	// Resolve the optional knobs once. Everything downstream, the config
	// artifact included, sees concrete values.
	req.HebbRate = Float64(orDefault(req.HebbRate, plasticity.DefaultHebbRate))
	req.TraceLambda = Float64(orDefault(req.TraceLambda, plasticity.DefaultTraceLambda))
	req.TraceEtaElig = Float64(orDefault(req.TraceEtaElig, plasticity.DefaultTraceEtaElig))
	req.Gamma = Float64(orDefault(req.Gamma, reward.DefaultGamma))
	req.Kappa = Float64(orDefault(req.Kappa, reward.DefaultKappa))
	req.CompetenceRho = Float64(orDefault(req.CompetenceRho, competence.DefaultRho))
	req.CompetencePGate = Float64(orDefault(req.CompetencePGate, competence.DefaultPGate))

	attMode, err := attention.ParseMode(req.AttentionMode)
	if err != nil {
		return RunSummary{}, err
	}
	compMode, err := competence.ParseMode(req.CompetenceMode)
	if err != nil {
		return RunSummary{}, err
	}

	params := engine.Params{
		Hebb: plasticity.HebbParams{Rate: *req.HebbRate},
		STDP: plasticity.STDPParams{
			Rate:           req.STDPRate,
			RateMultiplier: req.STDPRateMultiplier,
			WindowSteps:    req.STDPWindowSteps,
			Tau:            req.STDPTau,
		},
		Trace: plasticity.TraceParams{
			Lambda:  *req.TraceLambda,
			EtaElig: *req.TraceEtaElig,
		},
		AutoEligibility: req.AutoEligibility,
		Phase4: reward.Phase4Params{
			Alpha: req.Alpha,
			Gamma: *req.Gamma,
			Eta:   req.Eta,
			Kappa: *req.Kappa,
		},
		Phase4Unsafe:  req.UnsafePhase4,
		NoveltyWindow: req.NoveltyWindow,
		Attention: attention.Params{
			Mode:      attMode,
			Amin:      float32(req.AttentionAmin),
			Amax:      float32(req.AttentionAmax),
			Boost:     float32(req.AttentionBoost),
			AnnealDur: req.AttentionAnneal,
			K:         req.AttentionTopK,
		},
		Competence: competence.Params{
			Mode:  compMode,
			Rho:   *req.CompetenceRho,
			PGate: *req.CompetencePGate,
		},
		Homeostasis: homeostasis.Params{
			Enabled:    req.HomeostasisEnabled,
			Eta:        req.HomeostasisEta,
			TargetMean: req.HomeostasisTarget,
		},
		Consolidation: consolidate.Params{
			Interval:         req.ConsolidateEvery,
			Strength:         req.ConsolidateStrength,
			PruneThreshold:   req.PruneThreshold,
			ChaosSteps:       req.ChaosSteps,
			ConsolidateSteps: req.ConsolidateSteps,
		},
	}

	provider := topology.NewSynthetic(req.Neurons, req.Fanout, req.Seed)
	eng, err := engine.New(provider, params)
	if err != nil {
		return RunSummary{}, err
	}
	if req.MimicryEnabled {
		eng.SetMimicryEnabled(true)
		eng.SetMimicryWeight(req.MimicryWeight)
		eng.SetMimicryInternal(req.MimicryInternal)
		eng.SetMimicryMirror(req.MimicryMirror)
		if len(req.TeacherVector) > 0 {
			eng.SetTeacherVector(req.TeacherVector)
		}
	}

	runID := uuid.NewString()
	now := time.Now().UTC()

	collector := newRunCollector(req.EpisodeLength)
	if req.Autonomous {
		err = c.runAutonomous(ctx, eng, provider, req, collector)
	} else {
		err = c.runSynchronous(ctx, eng, provider, req, collector)
	}
	if err != nil {
		return RunSummary{}, err
	}

	final := eng.Stats()
	snapshotRows := eng.SynapseSnapshot()
	steps := int(eng.StepCount())

	if err := c.persistRun(ctx, runID, now, req, steps, final, snapshotRows, collector, eng.StepCount()); err != nil {
		return RunSummary{}, err
	}

	runDir, err := c.writeArtifacts(runID, now, req, steps, final, snapshotRows, collector)
	if err != nil {
		return RunSummary{}, err
	}

	return RunSummary{
		RunID:        runID,
		ArtifactsDir: filepath.Clean(runDir),
		Steps:        steps,
		Synapses:     len(snapshotRows),
		FinalStats:   final,
		Log:          collector.log.Summary(),
	}, nil
}

func (c *Client) Runs(ctx context.Context, req RunsRequest) ([]RunItem, error) {
	if req.Limit <= 0 {
		req.Limit = 20
	}

	runs, err := c.store.ListRuns(ctx)
	if err != nil {
		return nil, err
	}
	if len(runs) > req.Limit {
		runs = runs[:req.Limit]
	}

	out := make([]RunItem, 0, len(runs))
	for _, r := range runs {
		out = append(out, RunItem{
			RunID:        r.ID,
			CreatedAtUTC: r.CreatedAtUTC,
			Seed:         r.Seed,
			Neurons:      r.Neurons,
			Synapses:     r.Synapses,
			Steps:        r.Steps,
			Autonomous:   r.Autonomous,
		})
	}
	return out, nil
}

func (c *Client) Stats(ctx context.Context, req StatsRequest) (model.LearningStats, error) {
	runID, err := c.resolveRunID(ctx, req.RunID, req.Latest)
	if err != nil {
		return model.LearningStats{}, err
	}

	final, ok, err := c.store.GetFinalStats(ctx, runID)
	if err != nil {
		return model.LearningStats{}, err
	}
	if !ok {
		return model.LearningStats{}, fmt.Errorf("stats not found for run id: %s", runID)
	}
	return final, nil
}

func (c *Client) RewardEvents(ctx context.Context, req StatsRequest) ([]model.RewardEvent, error) {
	runID, err := c.resolveRunID(ctx, req.RunID, req.Latest)
	if err != nil {
		return nil, err
	}

	events, ok, err := c.store.GetRewardEvents(ctx, runID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("reward events not found for run id: %s", runID)
	}
	return events, nil
}

func (c *Client) Snapshot(ctx context.Context, req SnapshotRequest) (SnapshotSummary, error) {
	runID, err := c.resolveRunID(ctx, req.RunID, req.Latest)
	if err != nil {
		return SnapshotSummary{}, err
	}

	step, rows, ok, err := c.store.GetSnapshot(ctx, runID)
	if err != nil {
		return SnapshotSummary{}, err
	}
	if !ok {
		return SnapshotSummary{}, fmt.Errorf("snapshot not found for run id: %s", runID)
	}

	outPath := req.OutPath
	if outPath == "" {
		outPath = filepath.Join(c.artifactsDir, runID, "snapshot.csv")
	}
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return SnapshotSummary{}, err
	}
	file, err := os.Create(outPath)
	if err != nil {
		return SnapshotSummary{}, err
	}
	defer file.Close()
	if err := synapse.WriteSnapshotCSV(file, rows); err != nil {
		return SnapshotSummary{}, err
	}

	return SnapshotSummary{
		RunID: runID,
		Step:  step,
		Rows:  len(rows),
		Path:  filepath.Clean(outPath),
	}, nil
}

func (c *Client) resolveRunID(ctx context.Context, runID string, latest bool) (string, error) {
	if runID != "" && latest {
		return "", errors.New("use either run id or latest")
	}
	if runID != "" {
		return runID, nil
	}
	if !latest {
		return "", errors.New("run id or latest is required")
	}

	runs, err := c.store.ListRuns(ctx)
	if err != nil {
		return "", err
	}
	if len(runs) == 0 {
		return "", errors.New("no runs available")
	}
	return runs[0].ID, nil
}

// runCollector accumulates the per-step telemetry of one run.
type runCollector struct {
	episodeLength int

	log     *stats.LearningLog
	samples []model.StatsSample
	rewards []model.RewardEvent

	episodes      []model.EpisodeRecord
	episodeSteps  int
	episodeReward float64

	lastEventStep uint64
	haveEvent     bool
}

func newRunCollector(episodeLength int) *runCollector {
	return &runCollector{
		episodeLength: episodeLength,
		log:           stats.NewLearningLog(),
	}
}

func (rc *runCollector) observeStep(eng *engine.Engine, sampleInterval int) {
	event, ok := eng.LastRewardEvent()
	if ok && (!rc.haveEvent || event.Step != rc.lastEventStep) {
		rc.rewards = append(rc.rewards, event)
		rc.episodeReward += event.Shaped
		rc.lastEventStep = event.Step
		rc.haveEvent = true
	}
	rc.episodeSteps++
	if rc.episodeSteps >= rc.episodeLength {
		rc.flushEpisode()
	}

	step := eng.StepCount()
	if sampleInterval > 0 && step%uint64(sampleInterval) == 0 {
		sample := model.StatsSample{Step: step, Stats: eng.Stats()}
		rc.samples = append(rc.samples, sample)
		rc.log.Append(sample)
	}
}

func (rc *runCollector) flushEpisode() {
	if rc.episodeSteps == 0 {
		return
	}
	rc.episodes = append(rc.episodes, model.EpisodeRecord{
		Index:       len(rc.episodes),
		Steps:       rc.episodeSteps,
		TotalReward: rc.episodeReward,
	})
	rc.episodeSteps = 0
	rc.episodeReward = 0
}

func (c *Client) runSynchronous(ctx context.Context, eng *engine.Engine, provider *topology.Synthetic, req RunRequest, collector *runCollector) error {
	for i := 0; i < req.Steps; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		provider.Advance()
		eng.ApplyExternalReward(taskReward(provider))
		eng.Step(provider.Observation())
		collector.observeStep(eng, req.SampleInterval)
	}
	collector.flushEpisode()
	return nil
}

// runAutonomous drives the engine from a supervised background loop and
// has the calling goroutine act as the telemetry sampler.
func (c *Client) runAutonomous(ctx context.Context, eng *engine.Engine, provider *topology.Synthetic, req RunRequest, collector *runCollector) error {
	auto, err := engine.NewAutonomous(eng, req.AutonomousInterval, provider.Advance, provider.Observation)
	if err != nil {
		return err
	}

	sup := platform.NewSupervisor(platform.Policy{})
	if err := sup.Start("engine-loop", platform.RestartTransient, auto.Run); err != nil {
		return err
	}
	defer sup.StopAll()

	var seen uint64
	ticker := time.NewTicker(req.AutonomousInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			collector.flushEpisode()
			return ctx.Err()
		case <-ticker.C:
		}

		// One task reward per tick, and only when the engine actually
		// progressed: the preceding step consumed whatever reward was
		// pending, so rewards never pool across missed ticks.
		step := eng.StepCount()
		if step > seen {
			eng.ApplyExternalReward(taskReward(provider))
		}
		for seen < step {
			seen++
			collector.observeStep(eng, req.SampleInterval)
		}
		if step >= uint64(req.Steps) {
			collector.flushEpisode()
			return nil
		}
	}
}

// taskReward scores the current network state: mean activation close to
// the half-activity band earns up to 1, saturation or silence earns -1.
func taskReward(provider *topology.Synthetic) float64 {
	acts := provider.Activations()
	if len(acts) == 0 {
		return 0
	}
	var sum float64
	for _, a := range acts {
		sum += float64(a)
	}
	mean := sum / float64(len(acts))
	return 1 - 4*abs(mean-0.5)
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func (c *Client) persistRun(ctx context.Context, runID string, now time.Time, req RunRequest, steps int, final model.LearningStats, rows []model.SynapseRow, collector *runCollector, lastStep uint64) error {
	run := model.RunRecord{
		VersionedRecord: model.VersionedRecord{
			SchemaVersion: telemetry.CurrentSchemaVersion,
			CodecVersion:  telemetry.CurrentCodecVersion,
		},
		ID:           runID,
		CreatedAtUTC: now.Format(time.RFC3339Nano),
		Seed:         req.Seed,
		Neurons:      req.Neurons,
		Synapses:     len(rows),
		Steps:        steps,
		Autonomous:   req.Autonomous,
	}
	if err := c.store.SaveRun(ctx, run); err != nil {
		return err
	}
	for i := range collector.episodes {
		collector.episodes[i].RunID = runID
		collector.episodes[i].SchemaVersion = telemetry.CurrentSchemaVersion
		collector.episodes[i].CodecVersion = telemetry.CurrentCodecVersion
	}
	if err := c.store.SaveEpisodes(ctx, runID, collector.episodes); err != nil {
		return err
	}
	if err := c.store.SaveRewardEvents(ctx, runID, collector.rewards); err != nil {
		return err
	}
	if err := c.store.SaveStatsSamples(ctx, runID, collector.samples); err != nil {
		return err
	}
	if err := c.store.SaveFinalStats(ctx, runID, final); err != nil {
		return err
	}
	return c.store.SaveSnapshot(ctx, runID, lastStep, rows)
}

func (c *Client) writeArtifacts(runID string, now time.Time, req RunRequest, steps int, final model.LearningStats, rows []model.SynapseRow, collector *runCollector) (string, error) {
	runDir, err := stats.WriteRunArtifacts(c.artifactsDir, stats.RunArtifacts{
		Config:       c.runConfigFromRequest(runID, req),
		FinalStats:   final,
		RewardEvents: collector.rewards,
		Episodes:     collector.episodes,
	})
	if err != nil {
		return "", err
	}

	if err := stats.AppendRunIndex(c.artifactsDir, stats.RunIndexEntry{
		RunID:           runID,
		Seed:            req.Seed,
		Neurons:         req.Neurons,
		Synapses:        len(rows),
		Steps:           steps,
		Autonomous:      req.Autonomous,
		TotalUpdates:    final.TotalUpdates,
		ActiveSynapses:  final.ActiveSynapses,
		AvgWeightChange: final.AverageWeightChange,
		CreatedAtUTC:    now.Format(time.RFC3339Nano),
	}); err != nil {
		return "", err
	}

	if err := collector.log.WriteCSV(runDir); err != nil {
		return "", err
	}

	snapPath := filepath.Join(runDir, "snapshot.csv")
	file, err := os.Create(snapPath)
	if err != nil {
		return "", err
	}
	defer file.Close()
	if err := synapse.WriteSnapshotCSV(file, rows); err != nil {
		return "", err
	}

	return runDir, nil
}

func (c *Client) runConfigFromRequest(runID string, req RunRequest) stats.RunConfig {
	return stats.RunConfig{
		RunID:                runID,
		Seed:                 req.Seed,
		Neurons:              req.Neurons,
		Fanout:               req.Fanout,
		Steps:                req.Steps,
		Autonomous:           req.Autonomous,
		AutonomousIntervalMS: req.AutonomousInterval.Milliseconds(),
		SampleInterval:       req.SampleInterval,
		EpisodeLength:        req.EpisodeLength,
		HebbRate:             *req.HebbRate,
		STDPRate:             req.STDPRate,
		STDPRateMultiplier:   req.STDPRateMultiplier,
		STDPWindowSteps:      int(req.STDPWindowSteps),
		STDPTau:              req.STDPTau,
		TraceLambda:          *req.TraceLambda,
		TraceEtaElig:         *req.TraceEtaElig,
		AutoEligibility:      req.AutoEligibility,
		Alpha:                req.Alpha,
		Gamma:                *req.Gamma,
		Eta:                  req.Eta,
		Kappa:                *req.Kappa,
		NoveltyWindow:        req.NoveltyWindow,
		AttentionMode:        req.AttentionMode,
		AttentionAmin:        req.AttentionAmin,
		AttentionAmax:        req.AttentionAmax,
		AttentionBoost:       req.AttentionBoost,
		AttentionAnnealMS:    req.AttentionAnneal.Milliseconds(),
		AttentionTopK:        req.AttentionTopK,
		CompetenceMode:       req.CompetenceMode,
		CompetenceRho:        *req.CompetenceRho,
		CompetencePGate:      *req.CompetencePGate,
		HomeostasisEnabled:   req.HomeostasisEnabled,
		HomeostasisEta:       req.HomeostasisEta,
		HomeostasisTarget:    req.HomeostasisTarget,
		ConsolidateEveryMS:   req.ConsolidateEvery.Milliseconds(),
		ConsolidateStrength:  req.ConsolidateStrength,
		PruneThreshold:       req.PruneThreshold,
		ChaosSteps:           req.ChaosSteps,
		ConsolidateSteps:     req.ConsolidateSteps,
		MimicryEnabled:       req.MimicryEnabled,
		MimicryWeight:        req.MimicryWeight,
		MimicryInternal:      req.MimicryInternal,
		MimicryMirror:        req.MimicryMirror,
		StoreKind:            c.storeKind,
	}
}
