package plasticity

import (
	"fmt"

	"cerebrum/internal/synapse"
)

// Driver-level defaults for unset knobs. TraceParams fields are taken
// literally: Lambda 0 clears traces every step and EtaElig 0 stops
// accumulation entirely. Both are legitimate settings.
const (
	DefaultTraceLambda  = 0.9
	DefaultTraceEtaElig = 1.0
)

// TraceParams configures the eligibility trace: Lambda is the per-step
// geometric decay, EtaElig the accumulation rate. Both live in [0,1].
type TraceParams struct {
	Lambda  float64
	EtaElig float64
}

func (p *TraceParams) Validate() error {
	if p.Lambda < 0 || p.Lambda > 1 {
		return fmt.Errorf("eligibility lambda must be in [0,1], got %v", p.Lambda)
	}
	if p.EtaElig < 0 || p.EtaElig > 1 {
		return fmt.Errorf("eligibility eta must be in [0,1], got %v", p.EtaElig)
	}
	return nil
}

// TraceBuffer bridges delayed reward to recent activity. It is a secondary
// view over the synapse store's per-entry eligibility values: it owns the
// decay and accumulation policy, not the entries themselves.
type TraceBuffer struct {
	params TraceParams
}

func NewTraceBuffer(params TraceParams) (*TraceBuffer, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return &TraceBuffer{params: params}, nil
}

func (tb *TraceBuffer) Lambda() float64 { return tb.params.Lambda }

// SetParams replaces the trace parameters in place. skipValidate is the
// phase4-unsafe bypass: bounds checking is suppressed entirely rather
// than clamped.
func (tb *TraceBuffer) SetParams(params TraceParams, skipValidate bool) error {
	if !skipValidate {
		if err := params.Validate(); err != nil {
			return err
		}
	}
	tb.params = params
	return nil
}

// Accumulate folds an instantaneous plasticity delta into a synapse's
// eligibility. The trace is clamped to [-1,1] so that one shaped reward
// moves any single weight by at most kappa.
func (tb *TraceBuffer) Accumulate(st *synapse.State, delta float64) {
	e := float64(st.Elig) + tb.params.EtaElig*delta
	if e > 1 {
		e = 1
	} else if e < -1 {
		e = -1
	}
	st.Elig = float32(e)
}

// Decay applies one step of geometric decay to every eligibility value.
// After n quiet steps an eligibility equals its starting value times
// lambda^n exactly.
func (tb *TraceBuffer) Decay(store *synapse.Store) {
	lambda := float32(tb.params.Lambda)
	store.Range(func(_ synapse.Key, st *synapse.State) {
		st.Elig *= lambda
	})
}
