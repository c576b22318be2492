package plasticity

import (
	"fmt"
	"math"
)

// HebbParams configures the correlation rule: delta = Rate * pre * post.
type HebbParams struct {
	Rate float64
}

// STDPParams configures spike-timing-dependent plasticity. The timing
// difference dt = postSpikeTime - preSpikeTime selects the sign:
// potentiation when the pre spike precedes the post spike within
// WindowSteps, depression otherwise. Magnitude decays as exp(-|dt|/Tau)
// and is scaled by Rate * RateMultiplier.
type STDPParams struct {
	Rate           float64
	RateMultiplier float64
	WindowSteps    float64
	Tau            float64
}

// DefaultHebbRate is the driver-level default for an unset hebbian rate.
// HebbParams takes Rate literally; 0 disables the correlation rule.
const DefaultHebbRate = 0.01

func (p *HebbParams) Validate() error {
	if p.Rate < 0 {
		return fmt.Errorf("hebbian rate must be >= 0, got %v", p.Rate)
	}
	return nil
}

// Defaults fills the STDP fields whose zero value would never validate.
// A zero RateMultiplier also defaults to 1: scaling the rule away is
// already expressed by Rate 0, so no setting is lost.
func (p *STDPParams) Defaults() {
	if p.RateMultiplier == 0 {
		p.RateMultiplier = 1
	}
	if p.WindowSteps == 0 {
		p.WindowSteps = 20
	}
	if p.Tau == 0 {
		p.Tau = 10
	}
}

func (p *STDPParams) Validate() error {
	if p.Rate < 0 {
		return fmt.Errorf("stdp rate must be >= 0, got %v", p.Rate)
	}
	if p.RateMultiplier < 0 {
		return fmt.Errorf("stdp rate multiplier must be >= 0, got %v", p.RateMultiplier)
	}
	if p.WindowSteps <= 0 {
		return fmt.Errorf("stdp window must be > 0, got %v", p.WindowSteps)
	}
	if p.Tau <= 0 {
		return fmt.Errorf("stdp tau must be > 0, got %v", p.Tau)
	}
	return nil
}

// Rules computes raw per-synapse plasticity deltas. All arithmetic is
// float64; the caller narrows to the synapse's float32 storage and is
// responsible for quarantining non-finite results.
type Rules struct {
	Hebb HebbParams
	STDP STDPParams
}

func NewRules(hebb HebbParams, stdp STDPParams) (*Rules, error) {
	stdp.Defaults()
	if err := hebb.Validate(); err != nil {
		return nil, err
	}
	if err := stdp.Validate(); err != nil {
		return nil, err
	}
	return &Rules{Hebb: hebb, STDP: stdp}, nil
}

// Hebbian returns the correlation delta for the given pre/post activations.
func (r *Rules) Hebbian(pre, post float32) float64 {
	if r.Hebb.Rate == 0 {
		return 0
	}
	return r.Hebb.Rate * float64(pre) * float64(post)
}

// TimingDelta returns the STDP delta for one pre/post spike pair. ok
// reports whether a delta applies at all; it is false when the rule is
// disabled or either spike is missing.
func (r *Rules) TimingDelta(preSpike, postSpike float64, havePre, havePost bool) (float64, bool) {
	if r.STDP.Rate == 0 || !havePre || !havePost {
		return 0, false
	}
	dt := postSpike - preSpike
	mag := r.STDP.Rate * r.STDP.RateMultiplier * math.Exp(-math.Abs(dt)/r.STDP.Tau)
	if dt > 0 && dt <= r.STDP.WindowSteps {
		return mag, true
	}
	return -mag, true
}

// Finite reports whether a delta is safe to apply. NaN or Inf deltas are
// quarantined by the engine so they never reach stored weights.
func Finite(delta float64) bool {
	return !math.IsNaN(delta) && !math.IsInf(delta, 0)
}
