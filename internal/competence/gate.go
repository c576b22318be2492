package competence

import (
	"fmt"
	"strings"

	"github.com/emer/emergent/erand"
)

// Mode selects what a rising competence estimate scales down: the
// per-synapse update probability, or the learning rates themselves.
type Mode int

const (
	Off Mode = iota
	// ScalePGate scales the probability that any given synapse is
	// updated this step.
	ScalePGate
	// ScaleLearningRates scales the effective hebbian/stdp rates instead
	// of gating updates stochastically.
	ScaleLearningRates
)

func (m Mode) String() string {
	switch m {
	case Off:
		return "none"
	case ScalePGate:
		return "p_gate"
	case ScaleLearningRates:
		return "learning_rates"
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none", "off":
		return Off, nil
	case "p_gate", "pgate", "gate":
		return ScalePGate, nil
	case "learning_rates", "rates", "lr":
		return ScaleLearningRates, nil
	default:
		return Off, fmt.Errorf("unknown competence mode: %s", s)
	}
}

// Driver-level defaults for unset knobs. Params fields are taken
// literally: PGate 0 really means a gate that never passes.
const (
	DefaultRho   = 0.05
	DefaultPGate = 1.0
)

type Params struct {
	Mode  Mode
	Rho   float64
	PGate float64
}

func (p *Params) Validate() error {
	if p.Rho < 0 || p.Rho > 1 {
		return fmt.Errorf("competence rho must be in [0,1], got %v", p.Rho)
	}
	if p.PGate < 0 || p.PGate > 1 {
		return fmt.Errorf("p_gate must be in [0,1], got %v", p.PGate)
	}
	return nil
}

// Gate maintains an exponential moving estimate of policy competence from
// reward consistency and converts it into either an update probability or
// a learning-rate scale. This anneals the system from exploratory to
// conservative without a separate scheduler.
type Gate struct {
	params Params

	seeded    bool
	emaReward float64
	emaDev    float64
	level     float64
}

func NewGate(params Params) (*Gate, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	// Before any reward arrives the deviation estimate is maximal, so the
	// gate starts fully exploratory.
	return &Gate{params: params, emaDev: 2}, nil
}

func (g *Gate) Mode() Mode     { return g.params.Mode }
func (g *Gate) Level() float64 { return g.level }

// Observe folds one shaped reward (in [-1,1]) into the competence
// estimate. Consistent rewards shrink the running deviation and raise
// competence toward 1.
func (g *Gate) Observe(shaped float64) {
	rho := g.params.Rho
	if !g.seeded {
		g.seeded = true
		g.emaReward = shaped
	}
	dev := shaped - g.emaReward
	if dev < 0 {
		dev = -dev
	}
	g.emaReward += rho * (shaped - g.emaReward)
	g.emaDev += rho * (dev - g.emaDev)
	g.level = 1 - g.emaDev/2
	if g.level < 0 {
		g.level = 0
	} else if g.level > 1 {
		g.level = 1
	}
}

// PEffective is the current per-synapse update probability under
// ScalePGate; 1 in every other mode.
func (g *Gate) PEffective() float64 {
	if g.params.Mode != ScalePGate {
		return 1
	}
	p := g.params.PGate * (1 - g.level)
	if p < 0 {
		p = 0
	} else if p > 1 {
		p = 1
	}
	return p
}

// ShouldUpdate samples the gate for one synapse.
func (g *Gate) ShouldUpdate() bool {
	if g.params.Mode != ScalePGate {
		return true
	}
	return erand.BoolProb(g.PEffective(), -1)
}

// RateScale is the learning-rate multiplier under ScaleLearningRates;
// 1 in every other mode.
func (g *Gate) RateScale() float64 {
	if g.params.Mode != ScaleLearningRates {
		return 1
	}
	s := 1 - g.level
	if s < 0 {
		s = 0
	}
	return s
}
