package engine

import (
	"errors"
	"sync"
	"time"

	"cerebrum/internal/attention"
	"cerebrum/internal/competence"
	"cerebrum/internal/consolidate"
	"cerebrum/internal/homeostasis"
	"cerebrum/internal/mimicry"
	"cerebrum/internal/model"
	"cerebrum/internal/plasticity"
	"cerebrum/internal/reward"
	"cerebrum/internal/synapse"
	"cerebrum/internal/topology"
)

// Engine is the synaptic learning and reward-shaping engine. One mutex
// guards a full step invocation plus every external read, so telemetry
// and CLI summaries can query statistics and take snapshots from other
// goroutines while a step is in progress and always see the state as of
// the last fully completed step.
type Engine struct {
	mu sync.Mutex

	provider topology.Provider
	store    *synapse.Store
	rules    *plasticity.Rules
	trace    *plasticity.TraceBuffer
	shaper   *reward.Shaper
	attn     *attention.Modulator
	gate     *competence.Gate
	homeo    *homeostasis.Regulator
	sched    *consolidate.Scheduler
	mim      *mimicry.Module

	params Params
	clock  func() time.Time

	step          uint64
	pendingReward float64
	stats         model.LearningStats
	lastEvent     model.RewardEvent
	haveEvent     bool

	// weight-change accumulation since the last consolidation
	sumAbsChange float64
	changeCount  uint64
}

// Option adjusts engine construction. Kept minimal: the only supported
// option injects a clock for deterministic tests.
type Option func(*Engine)

func WithClock(clock func() time.Time) Option {
	return func(e *Engine) { e.clock = clock }
}

// New validates the full parameter set and builds the engine.
// Parameters are taken as given; drivers resolve unset knobs to their
// defaults before construction. Configuration errors are returned
// before any simulation state exists.
func New(provider topology.Provider, params Params, opts ...Option) (*Engine, error) {
	if provider == nil {
		return nil, errors.New("topology provider is required")
	}
	e := &Engine{
		provider: provider,
		store:    synapse.NewStore(),
		mim:      mimicry.NewModule(),
		params:   params,
		clock:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	now := e.clock()

	var err error
	if e.rules, err = plasticity.NewRules(params.Hebb, params.STDP); err != nil {
		return nil, err
	}
	if e.trace, err = plasticity.NewTraceBuffer(params.Trace); err != nil {
		return nil, err
	}
	if e.shaper, err = reward.NewShaper(params.Phase4, params.NoveltyWindow, params.Phase4Unsafe); err != nil {
		return nil, err
	}
	if e.attn, err = attention.NewModulator(params.Attention, now); err != nil {
		return nil, err
	}
	if e.gate, err = competence.NewGate(params.Competence); err != nil {
		return nil, err
	}
	if e.homeo, err = homeostasis.NewRegulator(params.Homeostasis); err != nil {
		return nil, err
	}
	if e.sched, err = consolidate.NewScheduler(params.Consolidation, now); err != nil {
		return nil, err
	}
	return e, nil
}

// ApplyExternalReward injects the task reward for the next step. The only
// reward entry point; calling it more than once before a step completes
// accumulates, which double-counts that step's reward into eligibility.
// The at-most-once contract is the caller's.
func (e *Engine) ApplyExternalReward(r float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pendingReward += r
}

// Step runs one full engine invocation: plasticity, eligibility, reward
// shaping, attention/competence scaling, weight writes, homeostasis, and
// consolidation when due. obs is the current observation vector for the
// novelty window; nil is allowed and disables the novelty term for this
// step. Sub-step order is fixed and must not be reordered.
func (e *Engine) Step(obs []float32) {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.clock()
	edges := e.provider.Edges()
	synEdges := make([]synapse.Edge, len(edges))
	for i, ed := range edges {
		synEdges[i] = synapse.Edge{Pre: ed.Pre, Post: ed.Post, InitWeight: ed.InitWeight}
	}
	e.store.Sync(synEdges)

	acts := e.provider.Activations()
	spikes := e.provider.Spikes()
	e.attn.Observe(acts)
	e.mim.ObserveSensory(obs)

	task := e.pendingReward
	e.pendingReward = 0
	mimTerm, haveMim := e.mim.TakePending()
	res := e.shaper.Shape(obs, acts, task, mimTerm, haveMim)

	rateScale := e.gate.RateScale()
	kappa := e.shaper.Params().Kappa
	regime := e.sched.RegimeAt(e.step)
	if regime == consolidate.RegimeChaos {
		// Exploration phase: plasticity runs hotter than the configured
		// rates; the consolidate phase restores them.
		rateScale *= 2
	}

	e.store.ForEach(func(k synapse.Key, st *synapse.State) {
		if !st.Active {
			return
		}
		pre, post := acts[k.Pre], acts[k.Post]
		hebb := e.rules.Hebbian(pre, post)
		preSpike, havePre := spikes[k.Pre]
		postSpike, havePost := spikes[k.Post]
		stdp, haveSTDP := e.rules.TimingDelta(preSpike, postSpike, havePre, havePost)
		delta := hebb + stdp
		if !plasticity.Finite(delta) {
			e.stats.QuarantinedUpdates++
			return
		}
		if e.params.AutoEligibility {
			e.trace.Accumulate(st, delta)
		}
		// Rule counters track computed deltas; TotalUpdates below only
		// counts writes that land.
		if hebb != 0 {
			e.stats.HebbianUpdates++
		}
		if haveSTDP && stdp != 0 {
			e.stats.STDPUpdates++
		}
		if !e.gate.ShouldUpdate() {
			return
		}
		gain := e.attn.Gain(k.Post, now)
		rewardTerm := kappa * res.Shaped * float64(st.Elig)
		dw := float64(gain)*rateScale*delta + rewardTerm
		if !plasticity.Finite(dw) {
			e.stats.QuarantinedUpdates++
			return
		}
		if dw == 0 {
			return
		}
		st.Weight += float32(dw)
		st.LastUpdateStep = e.step
		e.stats.TotalUpdates++
		if rewardTerm != 0 {
			e.stats.RewardUpdates++
		}
		if dw < 0 {
			dw = -dw
		}
		e.sumAbsChange += dw
		e.changeCount++
	})

	e.trace.Decay(e.store)
	e.gate.Observe(res.Shaped)
	e.homeo.Rescale(e.store)

	if e.sched.Check(e.step, now) {
		out := e.sched.Run(e.store, now)
		e.stats.ActiveSynapses = out.Active
		e.stats.PotentiatedSynapses = out.Potentiated
		e.stats.DepressedSynapses = out.Depressed
		e.stats.MemoryConsolidationRate = out.Rate
		e.stats.ConsolidationEvents = e.sched.Events()
		if e.changeCount > 0 {
			e.stats.AverageWeightChange = e.sumAbsChange / float64(e.changeCount)
		} else {
			e.stats.AverageWeightChange = 0
		}
		e.sumAbsChange = 0
		e.changeCount = 0
	}

	e.lastEvent = model.RewardEvent{
		Step:        e.step,
		TaskReward:  task,
		Shaped:      res.Shaped,
		Novelty:     res.Novelty,
		Uncertainty: res.Uncertainty,
		Mimicry:     res.Mimicry,
	}
	e.haveEvent = true
	e.step++
}

// AccumulateEligibility folds a delta into one synapse's trace outside
// the automatic path. For callers that drive eligibility on demand when
// auto-eligibility is off.
func (e *Engine) AccumulateEligibility(pre, post uint64, delta float64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	st, ok := e.store.Get(synapse.Key{Pre: pre, Post: post})
	if !ok || !plasticity.Finite(delta) {
		return false
	}
	e.trace.Accumulate(st, delta)
	return true
}

// Stats returns a copy of the aggregate statistics. Never torn: the copy
// is taken under the step lock.
func (e *Engine) Stats() model.LearningStats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stats
}

// Step count completed so far.
func (e *Engine) StepCount() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.step
}

// SynapseSnapshot exports every existing synapse (active or not) as
// stable sorted rows. A consistent point-in-time view: the copy holds the
// step lock, so it represents the last fully completed step.
func (e *Engine) SynapseSnapshot() []model.SynapseRow {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.store.Snapshot()
}

// LastRewardEvent returns the reward decomposition of the most recent
// step, for telemetry.
func (e *Engine) LastRewardEvent() (model.RewardEvent, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastEvent, e.haveEvent
}

// ConfigurePhase4 updates the eligibility and shaping weights in place.
// Bounds validation (lambda, etaElig in [0,1]; alpha, gamma, eta, kappa
// >= 0) applies unless the engine was built with Phase4Unsafe.
func (e *Engine) ConfigurePhase4(lambda, etaElig, kappa, alpha, gamma, eta float64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.trace.SetParams(plasticity.TraceParams{Lambda: lambda, EtaElig: etaElig}, e.params.Phase4Unsafe); err != nil {
		return err
	}
	return e.shaper.ConfigurePhase4(reward.Phase4Params{
		Alpha: alpha, Gamma: gamma, Eta: eta, Kappa: kappa,
	})
}

// SetAttentionMap installs the externally supplied per-neuron attention
// map used by the ExternalMap mode.
func (e *Engine) SetAttentionMap(gains map[uint64]float32) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.attn.SetExternalMap(gains)
}

// Mimicry entry points. These let a teacher/student subsystem drive the
// mimicry module without the engine knowing where embeddings come from.

func (e *Engine) SetTeacherVector(v []float32) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.mim.SetTeacherVector(v)
}

func (e *Engine) SetStudentEmbedding(v []float32) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.mim.SetStudentEmbedding(v)
}

func (e *Engine) SetMimicryEnabled(on bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.mim.SetEnabled(on)
}

func (e *Engine) SetMimicryWeight(w float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.mim.SetWeight(w)
}

func (e *Engine) SetMimicryInternal(on bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.mim.SetInternal(on)
}

func (e *Engine) SetMimicryMirror(on bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.mim.SetMirrorMode(on)
}

// AttemptMimicry evaluates the student against the teacher. Mismatched
// embedding lengths degrade to similarity 0 and are counted, not thrown.
func (e *Engine) AttemptMimicry(scores []float32) mimicry.Attempt {
	e.mu.Lock()
	defer e.mu.Unlock()
	att, err := e.mim.Attempt(scores)
	if err != nil {
		e.stats.MimicryWarnings++
	}
	return att
}

// ApplyMimicryReward converts an attempt into the mimicry reward term.
// With internal routing the engine folds it into the next shaped reward;
// otherwise the returned term is the caller's to apply.
func (e *Engine) ApplyMimicryReward(att mimicry.Attempt) float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.mim.ApplyReward(att)
}

// CompetenceLevel exposes the gate's running estimate, for telemetry.
func (e *Engine) CompetenceLevel() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.gate.Level()
}
