package engine

import (
	"math"
	"testing"
	"time"

	"cerebrum/internal/competence"
	"cerebrum/internal/consolidate"
	"cerebrum/internal/plasticity"
	"cerebrum/internal/reward"
	"cerebrum/internal/topology"
)

// constProvider serves a fixed graph with fixed activations, so every
// plasticity delta is exactly computable.
type constProvider struct {
	edges  []topology.Edge
	acts   map[uint64]float32
	spikes map[uint64]float64
}

func (p *constProvider) Edges() []topology.Edge          { return p.edges }
func (p *constProvider) Activations() map[uint64]float32 { return p.acts }
func (p *constProvider) Spikes() map[uint64]float64      { return p.spikes }

func singleEdgeProvider(pre, post float32) *constProvider {
	return &constProvider{
		edges: []topology.Edge{{Pre: 0, Post: 1}},
		acts:  map[uint64]float32{0: pre, 1: post},
	}
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestHebbianAccumulation(t *testing.T) {
	p := singleEdgeProvider(1, 1)
	eng, err := New(p, Params{
		Hebb: plasticity.HebbParams{Rate: 0.01},
	}, WithClock(fixedClock(time.Unix(3000, 0))))
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}

	for i := 0; i < 100; i++ {
		eng.Step(nil)
	}

	rows := eng.SynapseSnapshot()
	if len(rows) != 1 {
		t.Fatalf("got %d synapses, want 1", len(rows))
	}
	// 100 steps of rate * pre * post = 0.01 each.
	if math.Abs(float64(rows[0].Weight)-1.0) > 1e-4 {
		t.Fatalf("weight after 100 steps = %v, want ~1.0", rows[0].Weight)
	}

	stats := eng.Stats()
	if stats.TotalUpdates != 100 || stats.HebbianUpdates != 100 {
		t.Fatalf("updates = %d/%d, want 100/100", stats.TotalUpdates, stats.HebbianUpdates)
	}
	if stats.STDPUpdates != 0 || stats.RewardUpdates != 0 || stats.QuarantinedUpdates != 0 {
		t.Fatalf("unexpected update counters: %+v", stats)
	}
}

func TestRewardMovesOnlyEligibleSynapses(t *testing.T) {
	// Zero activations keep the correlation rule silent, so the only
	// weight movement comes through eligibility.
	p := &constProvider{
		edges: []topology.Edge{{Pre: 0, Post: 1}, {Pre: 1, Post: 2}},
		acts:  map[uint64]float32{0: 0, 1: 0, 2: 0},
	}
	eng, err := New(p, Params{
		Trace:  plasticity.TraceParams{Lambda: 0.9, EtaElig: 1},
		Phase4: reward.Phase4Params{Gamma: 1, Kappa: 0.1},
	}, WithClock(fixedClock(time.Unix(3000, 0))))
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}

	eng.Step(nil) // materialize the synapses
	if !eng.AccumulateEligibility(0, 1, 50) {
		t.Fatal("accumulate on live synapse failed")
	}

	eng.ApplyExternalReward(1)
	eng.Step(nil)

	rows := eng.SynapseSnapshot()
	// Eligibility clamps to 1, so the move is exactly kappa * shaped.
	if math.Abs(float64(rows[0].Weight)-0.1) > 1e-6 {
		t.Fatalf("eligible weight = %v, want 0.1", rows[0].Weight)
	}
	if rows[1].Weight != 0 {
		t.Fatalf("ineligible weight = %v, want 0", rows[1].Weight)
	}

	stats := eng.Stats()
	if stats.TotalUpdates != 1 || stats.RewardUpdates != 1 || stats.HebbianUpdates != 0 {
		t.Fatalf("counters: %+v", stats)
	}

	ev, ok := eng.LastRewardEvent()
	if !ok {
		t.Fatal("missing reward event")
	}
	if ev.TaskReward != 1 || ev.Shaped != 1 {
		t.Fatalf("event = %+v", ev)
	}
}

func TestEligibilityDecays(t *testing.T) {
	p := singleEdgeProvider(0, 0)
	eng, err := New(p, Params{
		Trace:  plasticity.TraceParams{Lambda: 0.9, EtaElig: 1},
		Phase4: reward.Phase4Params{Gamma: 1, Kappa: 0.1},
	}, WithClock(fixedClock(time.Unix(3000, 0))))
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}

	eng.Step(nil)
	eng.AccumulateEligibility(0, 1, 1)
	// Ten quiet steps decay the trace by lambda^10.
	for i := 0; i < 10; i++ {
		eng.Step(nil)
	}
	eng.ApplyExternalReward(1)
	eng.Step(nil)

	rows := eng.SynapseSnapshot()
	want := 0.1 * math.Pow(0.9, 10)
	if math.Abs(float64(rows[0].Weight)-want) > 1e-4 {
		t.Fatalf("weight = %v, want ~%v", rows[0].Weight, want)
	}
}

func TestNonFiniteDeltaQuarantined(t *testing.T) {
	p := singleEdgeProvider(float32(math.NaN()), 1)
	eng, err := New(p, Params{
		Hebb: plasticity.HebbParams{Rate: 0.01},
	}, WithClock(fixedClock(time.Unix(3000, 0))))
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}

	for i := 0; i < 3; i++ {
		eng.Step(nil)
	}

	stats := eng.Stats()
	if stats.QuarantinedUpdates != 3 {
		t.Fatalf("quarantined = %d, want 3", stats.QuarantinedUpdates)
	}
	if stats.TotalUpdates != 0 {
		t.Fatalf("total updates = %d, want 0", stats.TotalUpdates)
	}
	rows := eng.SynapseSnapshot()
	if rows[0].Weight != 0 {
		t.Fatalf("weight contaminated: %v", rows[0].Weight)
	}
}

func TestChaosRegimeDoublesRate(t *testing.T) {
	p := singleEdgeProvider(1, 1)
	eng, err := New(p, Params{
		Hebb: plasticity.HebbParams{Rate: 0.01},
		Consolidation: consolidate.Params{
			ChaosSteps:       5,
			ConsolidateSteps: 5,
		},
	}, WithClock(fixedClock(time.Unix(3000, 0))))
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}

	eng.Step(nil)
	rows := eng.SynapseSnapshot()
	if math.Abs(float64(rows[0].Weight)-0.02) > 1e-6 {
		t.Fatalf("chaos-step weight = %v, want 0.02", rows[0].Weight)
	}
}

func TestStepModeConsolidationRuns(t *testing.T) {
	p := singleEdgeProvider(1, 1)
	eng, err := New(p, Params{
		Hebb: plasticity.HebbParams{Rate: 0.01},
		Consolidation: consolidate.Params{
			ChaosSteps:       2,
			ConsolidateSteps: 2,
		},
	}, WithClock(fixedClock(time.Unix(3000, 0))))
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}

	for i := 0; i < 8; i++ {
		eng.Step(nil)
	}

	stats := eng.Stats()
	if stats.ConsolidationEvents != 2 {
		t.Fatalf("consolidation events = %d, want 2", stats.ConsolidationEvents)
	}
	if stats.ActiveSynapses != 1 || stats.PotentiatedSynapses != 1 {
		t.Fatalf("population counts: %+v", stats)
	}
	if stats.AverageWeightChange <= 0 {
		t.Fatalf("average weight change = %v, want > 0", stats.AverageWeightChange)
	}
}

func TestAccumulateEligibilityRejects(t *testing.T) {
	p := singleEdgeProvider(0, 0)
	eng, err := New(p, Params{}, WithClock(fixedClock(time.Unix(3000, 0))))
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}

	// No Step yet: the store is empty.
	if eng.AccumulateEligibility(0, 1, 0.5) {
		t.Fatal("accumulate succeeded before synapse exists")
	}
	eng.Step(nil)
	if eng.AccumulateEligibility(0, 1, math.NaN()) {
		t.Fatal("accumulate accepted NaN")
	}
	if !eng.AccumulateEligibility(0, 1, 0.5) {
		t.Fatal("accumulate on live synapse failed")
	}
}

func TestConfigurePhase4Validation(t *testing.T) {
	p := singleEdgeProvider(0, 0)
	eng, err := New(p, Params{}, WithClock(fixedClock(time.Unix(3000, 0))))
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}

	if err := eng.ConfigurePhase4(0.9, 1, -0.5, 0, 1, 0); err == nil {
		t.Fatal("expected error for negative kappa")
	}
	if err := eng.ConfigurePhase4(1.5, 1, 0.1, 0, 1, 0); err == nil {
		t.Fatal("expected error for lambda > 1")
	}
	if err := eng.ConfigurePhase4(0.8, 0.5, 0.2, 0.1, 0.9, 0.1); err != nil {
		t.Fatalf("configure: %v", err)
	}

	unsafeEng, err := New(p, Params{Phase4Unsafe: true}, WithClock(fixedClock(time.Unix(3000, 0))))
	if err != nil {
		t.Fatalf("new unsafe engine: %v", err)
	}
	if err := unsafeEng.ConfigurePhase4(1.5, 1, -0.5, -1, 1, 0); err != nil {
		t.Fatalf("unsafe configure rejected: %v", err)
	}
}

func TestMimicryInternalRouting(t *testing.T) {
	p := singleEdgeProvider(0, 0)
	eng, err := New(p, Params{}, WithClock(fixedClock(time.Unix(3000, 0))))
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	eng.SetMimicryEnabled(true)
	eng.SetMimicryInternal(true)
	eng.SetTeacherVector([]float32{1, 0})

	att := eng.AttemptMimicry([]float32{1, 0})
	if att.Similarity != 1 || att.Novelty != 1 {
		t.Fatalf("attempt = %+v, want sim 1 nov 1", att)
	}
	if term := eng.ApplyMimicryReward(att); term != 1 {
		t.Fatalf("term = %v, want 1", term)
	}

	eng.Step(nil)
	ev, ok := eng.LastRewardEvent()
	if !ok || ev.Mimicry != 1 || ev.Shaped != 1 {
		t.Fatalf("event = %+v, want mimicry and shaped 1", ev)
	}

	// The pending term is consumed: the next step sees no mimicry.
	eng.Step(nil)
	ev, _ = eng.LastRewardEvent()
	if ev.Mimicry != 0 || ev.Shaped != 0 {
		t.Fatalf("second event = %+v, want zeros", ev)
	}
}

func TestMimicryMismatchCounted(t *testing.T) {
	p := singleEdgeProvider(0, 0)
	eng, err := New(p, Params{}, WithClock(fixedClock(time.Unix(3000, 0))))
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	eng.SetMimicryEnabled(true)
	eng.SetTeacherVector([]float32{1, 0, 0})

	att := eng.AttemptMimicry([]float32{1, 0})
	if att.Similarity != 0 {
		t.Fatalf("similarity = %v, want 0 on mismatch", att.Similarity)
	}
	if eng.Stats().MimicryWarnings != 1 {
		t.Fatalf("warnings = %d, want 1", eng.Stats().MimicryWarnings)
	}
}

func TestSnapshotStableAcrossReads(t *testing.T) {
	p := singleEdgeProvider(1, 1)
	eng, err := New(p, Params{Hebb: plasticity.HebbParams{Rate: 0.01}},
		WithClock(fixedClock(time.Unix(3000, 0))))
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	eng.Step(nil)

	a := eng.SynapseSnapshot()
	b := eng.SynapseSnapshot()
	if len(a) != len(b) {
		t.Fatalf("snapshot lengths differ: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("snapshots differ at row %d", i)
		}
	}
}

func TestClosedGateStillCountsRuleDeltas(t *testing.T) {
	p := singleEdgeProvider(1, 1)
	eng, err := New(p, Params{
		Hebb:       plasticity.HebbParams{Rate: 0.01},
		Competence: competence.Params{Mode: competence.ScalePGate, Rho: 0.05},
	}, WithClock(fixedClock(time.Unix(3000, 0))))
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}

	// PGate 0 blocks every write, but the correlation rule still fires
	// and its counter tracks the computed deltas.
	for i := 0; i < 10; i++ {
		eng.Step(nil)
	}

	stats := eng.Stats()
	if stats.HebbianUpdates != 10 {
		t.Fatalf("hebbian updates = %d, want 10", stats.HebbianUpdates)
	}
	if stats.TotalUpdates != 0 {
		t.Fatalf("total updates = %d, want 0", stats.TotalUpdates)
	}
	rows := eng.SynapseSnapshot()
	if rows[0].Weight != 0 {
		t.Fatalf("weight moved through a closed gate: %v", rows[0].Weight)
	}
}

func TestNewRejectsNilProvider(t *testing.T) {
	if _, err := New(nil, Params{}); err == nil {
		t.Fatal("expected error for nil provider")
	}
}
