package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"cerebrum/internal/telemetry"
	cerebrumapi "cerebrum/pkg/cerebrum"
)

const artifactsDir = "artifacts"

func main() {
	if err := run(context.Background(), os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return usageError("missing command")
	}

	switch args[0] {
	case "init":
		return runInit(ctx, args[1:])
	case "reset":
		return runReset(ctx, args[1:])
	case "run":
		return runRun(ctx, args[1:])
	case "runs":
		return runRuns(ctx, args[1:])
	case "stats":
		return runStats(ctx, args[1:])
	case "snapshot":
		return runSnapshot(ctx, args[1:])
	default:
		return usageError(fmt.Sprintf("unknown command: %s", args[0]))
	}
}

func runInit(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("init", flag.ContinueOnError)
	storeKind := fs.String("store", telemetry.DefaultStoreKind(), "store backend: memory|sqlite")
	dbPath := fs.String("db-path", "cerebrum.db", "sqlite database path")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := cerebrumapi.New(cerebrumapi.Options{
		StoreKind:    *storeKind,
		DBPath:       *dbPath,
		ArtifactsDir: artifactsDir,
	})
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	if err := client.Init(ctx); err != nil {
		return err
	}

	fmt.Printf("initialized store=%s\n", *storeKind)
	return nil
}

func runReset(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("reset", flag.ContinueOnError)
	storeKind := fs.String("store", telemetry.DefaultStoreKind(), "store backend: memory|sqlite")
	dbPath := fs.String("db-path", "cerebrum.db", "sqlite database path")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := cerebrumapi.New(cerebrumapi.Options{
		StoreKind:    *storeKind,
		DBPath:       *dbPath,
		ArtifactsDir: artifactsDir,
	})
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	if err := client.Reset(ctx); err != nil {
		return err
	}

	fmt.Printf("reset store=%s\n", *storeKind)
	return nil
}

func runRun(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	configPath := fs.String("config", "", "optional JSON run config; explicit flags override its fields")
	seed := fs.Int64("seed", 1, "rng seed")
	neurons := fs.Int("neurons", 64, "synthetic topology neuron count")
	fanout := fs.Int("fanout", 4, "outgoing synapses per neuron")
	steps := fs.Int("steps", 500, "simulation step count")
	sampleInterval := fs.Int("sample-interval", 25, "stats sampling cadence in steps")
	episodeLength := fs.Int("episode-length", 100, "steps per recorded episode")
	autonomous := fs.Bool("autonomous", false, "drive the engine from a supervised background loop")
	autonomousIntervalMS := fs.Int("autonomous-interval-ms", 1, "autonomous step cadence in milliseconds")
	hebbianRate := fs.Float64("hebbian-rate", 0.01, "hebbian learning rate")
	stdpRate := fs.Float64("stdp-rate", 0.005, "stdp base learning rate")
	stdpRateMultiplier := fs.Float64("stdp-rate-multiplier", 1.0, "stdp rate multiplier")
	stdpWindow := fs.Float64("stdp-window", 20, "stdp timing window in steps")
	stdpTau := fs.Float64("stdp-tau", 10, "stdp exponential decay constant")
	lambda := fs.Float64("lambda", 0.9, "eligibility trace decay factor in [0,1]")
	etaElig := fs.Float64("eta-elig", 1.0, "eligibility accumulation gain in [0,1]")
	autoEligibility := fs.Bool("auto-eligibility", false, "accumulate eligibility automatically every step")
	alpha := fs.Float64("alpha", 0.0, "novelty weight in shaped reward")
	gamma := fs.Float64("gamma", 1.0, "task reward weight in shaped reward")
	eta := fs.Float64("eta", 0.0, "uncertainty weight in shaped reward")
	kappa := fs.Float64("kappa", 0.1, "reward-to-weight coupling")
	phase4Unsafe := fs.Bool("phase4-unsafe", false, "skip phase-4 parameter bounds validation")
	noveltyWindow := fs.Int("novelty-window", 0, "observation window for novelty (0 disables)")
	attentionMode := fs.String("attention-mode", "none", "attention mode: none|external|saliency|topk")
	attentionAmin := fs.Float64("attention-amin", 0.5, "attention gain lower bound")
	attentionAmax := fs.Float64("attention-amax", 2.0, "attention gain upper bound")
	attentionBoost := fs.Float64("attention-boost", 1.0, "attention gain boost multiplier")
	attentionAnnealMS := fs.Int("attention-anneal-ms", 0, "attention anneal duration in milliseconds (0 disables)")
	attentionTopK := fs.Int("attention-topk", 8, "neuron count for topk attention")
	competenceMode := fs.String("competence-mode", "none", "competence gating: none|p_gate|learning_rates")
	competenceRho := fs.Float64("competence-rho", 0.05, "competence EMA smoothing factor")
	pGate := fs.Float64("p-gate", 1.0, "base per-synapse update probability")
	homeostasis := fs.Bool("homeostasis", false, "enable homeostatic rescaling")
	homeostasisEta := fs.Float64("homeostasis-eta", 0.001, "homeostasis adjustment rate")
	homeostasisTarget := fs.Float64("homeostasis-target", 0.5, "homeostasis target mean weight")
	updateIntervalMS := fs.Int("update-interval-ms", 30000, "wall-clock consolidation period in milliseconds")
	consolidationStrength := fs.Float64("consolidation-strength", 0.1, "strengthening factor applied during consolidation")
	pruneThreshold := fs.Float64("prune-threshold", 0.0, "|weight| at or below this marks a synapse inactive")
	chaosSteps := fs.Int("chaos-steps", 0, "exploration regime length in steps (0 disables step regimes)")
	consolidateSteps := fs.Int("consolidate-steps", 0, "consolidation regime length in steps")
	mimicry := fs.Bool("mimicry", false, "enable the mimicry module")
	mimicryWeight := fs.Float64("mimicry-weight", 0.5, "mimicry reward weight")
	mimicryInternal := fs.Bool("mimicry-internal", false, "route mimicry reward into shaped reward internally")
	mimicryMirror := fs.Bool("mimicry-mirror", false, "mirror mode: student embedding tracks observations")
	storeKind := fs.String("store", telemetry.DefaultStoreKind(), "store backend: memory|sqlite")
	dbPath := fs.String("db-path", "cerebrum.db", "sqlite database path")
	if err := fs.Parse(args); err != nil {
		return err
	}
	setFlags := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) {
		setFlags[f.Name] = true
	})

	req, err := loadOrDefaultRunRequest(*configPath)
	if err != nil {
		return err
	}
	if *configPath == "" {
		req = cerebrumapi.RunRequest{
			Seed:                *seed,
			Neurons:             *neurons,
			Fanout:              *fanout,
			Steps:               *steps,
			SampleInterval:      *sampleInterval,
			EpisodeLength:       *episodeLength,
			Autonomous:          *autonomous,
			AutonomousInterval:  time.Duration(*autonomousIntervalMS) * time.Millisecond,
			HebbRate:            cerebrumapi.Float64(*hebbianRate),
			STDPRate:            *stdpRate,
			STDPRateMultiplier:  *stdpRateMultiplier,
			STDPWindowSteps:     *stdpWindow,
			STDPTau:             *stdpTau,
			TraceLambda:         cerebrumapi.Float64(*lambda),
			TraceEtaElig:        cerebrumapi.Float64(*etaElig),
			AutoEligibility:     *autoEligibility,
			Alpha:               *alpha,
			Gamma:               cerebrumapi.Float64(*gamma),
			Eta:                 *eta,
			Kappa:               cerebrumapi.Float64(*kappa),
			UnsafePhase4:        *phase4Unsafe,
			NoveltyWindow:       *noveltyWindow,
			AttentionMode:       *attentionMode,
			AttentionAmin:       *attentionAmin,
			AttentionAmax:       *attentionAmax,
			AttentionBoost:      *attentionBoost,
			AttentionAnneal:     time.Duration(*attentionAnnealMS) * time.Millisecond,
			AttentionTopK:       *attentionTopK,
			CompetenceMode:      *competenceMode,
			CompetenceRho:       cerebrumapi.Float64(*competenceRho),
			CompetencePGate:     cerebrumapi.Float64(*pGate),
			HomeostasisEnabled:  *homeostasis,
			HomeostasisEta:      *homeostasisEta,
			HomeostasisTarget:   *homeostasisTarget,
			ConsolidateEvery:    time.Duration(*updateIntervalMS) * time.Millisecond,
			ConsolidateStrength: *consolidationStrength,
			PruneThreshold:      *pruneThreshold,
			ChaosSteps:          *chaosSteps,
			ConsolidateSteps:    *consolidateSteps,
			MimicryEnabled:      *mimicry,
			MimicryWeight:       *mimicryWeight,
			MimicryInternal:     *mimicryInternal,
			MimicryMirror:       *mimicryMirror,
		}
	} else {
		err := overrideFromFlags(&req, setFlags, map[string]any{
			"seed":                   *seed,
			"neurons":                *neurons,
			"fanout":                 *fanout,
			"steps":                  *steps,
			"sample-interval":        *sampleInterval,
			"episode-length":         *episodeLength,
			"autonomous":             *autonomous,
			"autonomous-interval-ms": *autonomousIntervalMS,
			"hebbian-rate":           *hebbianRate,
			"stdp-rate":              *stdpRate,
			"stdp-rate-multiplier":   *stdpRateMultiplier,
			"stdp-window":            *stdpWindow,
			"stdp-tau":               *stdpTau,
			"lambda":                 *lambda,
			"eta-elig":               *etaElig,
			"auto-eligibility":       *autoEligibility,
			"alpha":                  *alpha,
			"gamma":                  *gamma,
			"eta":                    *eta,
			"kappa":                  *kappa,
			"phase4-unsafe":          *phase4Unsafe,
			"novelty-window":         *noveltyWindow,
			"attention-mode":         *attentionMode,
			"attention-amin":         *attentionAmin,
			"attention-amax":         *attentionAmax,
			"attention-boost":        *attentionBoost,
			"attention-anneal-ms":    *attentionAnnealMS,
			"attention-topk":         *attentionTopK,
			"competence-mode":        *competenceMode,
			"competence-rho":         *competenceRho,
			"p-gate":                 *pGate,
			"homeostasis":            *homeostasis,
			"homeostasis-eta":        *homeostasisEta,
			"homeostasis-target":     *homeostasisTarget,
			"update-interval-ms":     *updateIntervalMS,
			"consolidation-strength": *consolidationStrength,
			"prune-threshold":        *pruneThreshold,
			"chaos-steps":            *chaosSteps,
			"consolidate-steps":      *consolidateSteps,
			"mimicry":                *mimicry,
			"mimicry-weight":         *mimicryWeight,
			"mimicry-internal":       *mimicryInternal,
			"mimicry-mirror":         *mimicryMirror,
		})
		if err != nil {
			return err
		}
	}

	client, err := cerebrumapi.New(cerebrumapi.Options{
		StoreKind:    *storeKind,
		DBPath:       *dbPath,
		ArtifactsDir: artifactsDir,
	})
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()
	if err := client.Init(ctx); err != nil {
		return err
	}

	summary, err := client.Run(ctx, req)
	if err != nil {
		return err
	}
	fmt.Printf("run completed run_id=%s neurons=%d steps=%d seed=%d\n", summary.RunID, req.Neurons, summary.Steps, req.Seed)
	fmt.Printf("synapses=%d active=%d potentiated=%d depressed=%d\n",
		summary.Synapses,
		summary.FinalStats.ActiveSynapses,
		summary.FinalStats.PotentiatedSynapses,
		summary.FinalStats.DepressedSynapses,
	)
	fmt.Printf("total_updates=%d hebbian=%d stdp=%d reward=%d quarantined=%d\n",
		summary.FinalStats.TotalUpdates,
		summary.FinalStats.HebbianUpdates,
		summary.FinalStats.STDPUpdates,
		summary.FinalStats.RewardUpdates,
		summary.FinalStats.QuarantinedUpdates,
	)
	fmt.Printf("avg_weight_change=%.6f consolidation_rate=%.6f events=%d\n",
		summary.FinalStats.AverageWeightChange,
		summary.FinalStats.MemoryConsolidationRate,
		summary.FinalStats.ConsolidationEvents,
	)
	fmt.Printf("artifacts_dir=%s\n", filepath.Clean(summary.ArtifactsDir))
	return nil
}

func runRuns(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("runs", flag.ContinueOnError)
	limit := fs.Int("limit", 20, "max runs to list")
	jsonOut := fs.Bool("json", false, "emit runs list as JSON")
	storeKind := fs.String("store", telemetry.DefaultStoreKind(), "store backend: memory|sqlite")
	dbPath := fs.String("db-path", "cerebrum.db", "sqlite database path")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *limit <= 0 {
		return errors.New("limit must be > 0")
	}

	client, err := cerebrumapi.New(cerebrumapi.Options{
		StoreKind:    *storeKind,
		DBPath:       *dbPath,
		ArtifactsDir: artifactsDir,
	})
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()
	if err := client.Init(ctx); err != nil {
		return err
	}

	items, err := client.Runs(ctx, cerebrumapi.RunsRequest{Limit: *limit})
	if err != nil {
		return err
	}
	if len(items) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	if *jsonOut {
		type runsItem struct {
			RunID        string `json:"run_id"`
			CreatedAtUTC string `json:"created_at_utc"`
			Seed         int64  `json:"seed"`
			Neurons      int    `json:"neurons"`
			Synapses     int    `json:"synapses"`
			Steps        int    `json:"steps"`
			Autonomous   bool   `json:"autonomous"`
		}
		out := make([]runsItem, 0, len(items))
		for _, item := range items {
			out = append(out, runsItem(item))
		}
		data, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	}

	for _, item := range items {
		fmt.Printf("run_id=%s created=%s seed=%d neurons=%d synapses=%d steps=%d autonomous=%t\n",
			item.RunID, item.CreatedAtUTC, item.Seed, item.Neurons, item.Synapses, item.Steps, item.Autonomous)
	}
	return nil
}

func runStats(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("stats", flag.ContinueOnError)
	runID := fs.String("run-id", "", "run id to inspect")
	latest := fs.Bool("latest", false, "use the most recent run")
	jsonOut := fs.Bool("json", false, "emit stats as JSON")
	storeKind := fs.String("store", telemetry.DefaultStoreKind(), "store backend: memory|sqlite")
	dbPath := fs.String("db-path", "cerebrum.db", "sqlite database path")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := cerebrumapi.New(cerebrumapi.Options{
		StoreKind:    *storeKind,
		DBPath:       *dbPath,
		ArtifactsDir: artifactsDir,
	})
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()
	if err := client.Init(ctx); err != nil {
		return err
	}

	final, err := client.Stats(ctx, cerebrumapi.StatsRequest{RunID: *runID, Latest: *latest})
	if err != nil {
		return err
	}

	if *jsonOut {
		data, err := json.MarshalIndent(final, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	}

	fmt.Printf("total_updates=%d hebbian=%d stdp=%d reward=%d quarantined=%d mimicry_warnings=%d\n",
		final.TotalUpdates, final.HebbianUpdates, final.STDPUpdates, final.RewardUpdates, final.QuarantinedUpdates, final.MimicryWarnings)
	fmt.Printf("active=%d potentiated=%d depressed=%d\n",
		final.ActiveSynapses, final.PotentiatedSynapses, final.DepressedSynapses)
	fmt.Printf("avg_weight_change=%.6f consolidation_rate=%.6f events=%d\n",
		final.AverageWeightChange, final.MemoryConsolidationRate, final.ConsolidationEvents)
	return nil
}

func runSnapshot(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("snapshot", flag.ContinueOnError)
	runID := fs.String("run-id", "", "run id to export")
	latest := fs.Bool("latest", false, "use the most recent run")
	outPath := fs.String("out", "", "output CSV path (defaults under the artifacts directory)")
	storeKind := fs.String("store", telemetry.DefaultStoreKind(), "store backend: memory|sqlite")
	dbPath := fs.String("db-path", "cerebrum.db", "sqlite database path")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := cerebrumapi.New(cerebrumapi.Options{
		StoreKind:    *storeKind,
		DBPath:       *dbPath,
		ArtifactsDir: artifactsDir,
	})
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()
	if err := client.Init(ctx); err != nil {
		return err
	}

	summary, err := client.Snapshot(ctx, cerebrumapi.SnapshotRequest{
		RunID:   *runID,
		Latest:  *latest,
		OutPath: *outPath,
	})
	if err != nil {
		return err
	}
	fmt.Printf("snapshot run_id=%s step=%d rows=%d path=%s\n", summary.RunID, summary.Step, summary.Rows, summary.Path)
	return nil
}

func usageError(msg string) error {
	return fmt.Errorf("%s\nusage: cerebrumctl <init|reset|run|runs|stats|snapshot> [flags]", msg)
}
