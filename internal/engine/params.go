package engine

import (
	"cerebrum/internal/attention"
	"cerebrum/internal/competence"
	"cerebrum/internal/consolidate"
	"cerebrum/internal/homeostasis"
	"cerebrum/internal/plasticity"
	"cerebrum/internal/reward"
)

// Params is the full per-run configuration of the learning engine,
// immutable after construction except through ConfigurePhase4. Each
// sub-component validates its own slice of it once, at New; nothing
// re-checks defaults during the run loop.
type Params struct {
	Hebb plasticity.HebbParams
	STDP plasticity.STDPParams

	Trace plasticity.TraceParams
	// AutoEligibility makes the trace accumulate automatically every
	// step; otherwise accumulation only happens through explicit
	// AccumulateEligibility calls.
	AutoEligibility bool

	Phase4        reward.Phase4Params
	Phase4Unsafe  bool
	NoveltyWindow int

	Attention   attention.Params
	Competence  competence.Params
	Homeostasis homeostasis.Params

	Consolidation consolidate.Params
}
