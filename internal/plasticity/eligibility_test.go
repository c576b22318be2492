package plasticity

import (
	"math"
	"testing"

	"cerebrum/internal/synapse"
)

func TestTraceGeometricDecay(t *testing.T) {
	tb, err := NewTraceBuffer(TraceParams{Lambda: 0.9, EtaElig: 1})
	if err != nil {
		t.Fatalf("new trace buffer: %v", err)
	}

	store := synapse.NewStore()
	store.Sync([]synapse.Edge{{Pre: 1, Post: 2}})
	st, ok := store.Get(synapse.Key{Pre: 1, Post: 2})
	if !ok {
		t.Fatal("missing synapse after sync")
	}
	st.Elig = 1

	for i := 0; i < 10; i++ {
		tb.Decay(store)
	}

	want := float32(1)
	lambda := float32(0.9)
	for i := 0; i < 10; i++ {
		want *= lambda
	}
	if st.Elig != want {
		t.Fatalf("eligibility after 10 decays = %v, want %v", st.Elig, want)
	}
}

func TestTraceAccumulateClamps(t *testing.T) {
	tb, err := NewTraceBuffer(TraceParams{Lambda: 0.9, EtaElig: 1})
	if err != nil {
		t.Fatalf("new trace buffer: %v", err)
	}

	st := &synapse.State{}
	tb.Accumulate(st, 50)
	if st.Elig != 1 {
		t.Fatalf("eligibility = %v, want clamp to 1", st.Elig)
	}
	tb.Accumulate(st, -100)
	if st.Elig != -1 {
		t.Fatalf("eligibility = %v, want clamp to -1", st.Elig)
	}
}

func TestTraceAccumulateScalesByEta(t *testing.T) {
	tb, err := NewTraceBuffer(TraceParams{Lambda: 0.9, EtaElig: 0.5})
	if err != nil {
		t.Fatalf("new trace buffer: %v", err)
	}

	st := &synapse.State{}
	tb.Accumulate(st, 0.4)
	if math.Abs(float64(st.Elig)-0.2) > 1e-6 {
		t.Fatalf("eligibility = %v, want 0.2", st.Elig)
	}
}

func TestZeroTraceParamsHonored(t *testing.T) {
	tb, err := NewTraceBuffer(TraceParams{})
	if err != nil {
		t.Fatalf("new trace buffer: %v", err)
	}
	// Explicit zeros are settings, not placeholders: lambda 0 clears the
	// trace every step and eta 0 stops accumulation.
	if tb.Lambda() != 0 {
		t.Fatalf("lambda = %v, want 0", tb.Lambda())
	}
	st := &synapse.State{Elig: 0.5}
	tb.Accumulate(st, 1)
	if st.Elig != 0.5 {
		t.Fatalf("eligibility = %v, want unchanged at eta 0", st.Elig)
	}
}

func TestTraceParamsValidation(t *testing.T) {
	if _, err := NewTraceBuffer(TraceParams{Lambda: 1.5, EtaElig: 1}); err == nil {
		t.Fatal("expected error for lambda > 1")
	}
	if _, err := NewTraceBuffer(TraceParams{Lambda: 0.9, EtaElig: -0.1}); err == nil {
		t.Fatal("expected error for negative eta")
	}
}

func TestTraceSetParamsSkipValidate(t *testing.T) {
	tb, err := NewTraceBuffer(TraceParams{Lambda: 0.9, EtaElig: 1})
	if err != nil {
		t.Fatalf("new trace buffer: %v", err)
	}

	bad := TraceParams{Lambda: 2, EtaElig: 1}
	if err := tb.SetParams(bad, false); err == nil {
		t.Fatal("expected validation error")
	}
	if err := tb.SetParams(bad, true); err != nil {
		t.Fatalf("skip-validate set: %v", err)
	}
	if tb.Lambda() != 2 {
		t.Fatalf("lambda = %v, want 2", tb.Lambda())
	}
}
