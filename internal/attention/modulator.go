package attention

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/goki/mat32"
)

// Mode selects how per-neuron attention gain is derived. Parsed once at
// the CLI boundary; the engine only ever sees the closed enum.
type Mode int

const (
	// Off fixes the gain at 1.
	Off Mode = iota
	// ExternalMap takes gain from a caller-supplied per-neuron map. This
	// is the default when attention is enabled without an explicit mode.
	ExternalMap
	// Saliency derives gain from a running estimate of each neuron's
	// activity magnitude.
	Saliency
	// TopK grants gain above Amin only to the K most active neurons.
	TopK
)

func (m Mode) String() string {
	switch m {
	case Off:
		return "none"
	case ExternalMap:
		return "external"
	case Saliency:
		return "saliency"
	case TopK:
		return "topk"
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// ParseMode maps the CLI spelling to a Mode.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none", "off":
		return Off, nil
	case "external", "external_map", "map":
		return ExternalMap, nil
	case "saliency":
		return Saliency, nil
	case "topk", "top_k":
		return TopK, nil
	default:
		return Off, fmt.Errorf("unknown attention mode: %s", s)
	}
}

// Params configures the modulator. Gains always land in [Amin, Amax];
// AnnealDur linearly blends from 1.0 to the steady-state value so the
// effective learning rate has no discontinuity at run start.
type Params struct {
	Mode      Mode
	Amin      float32
	Amax      float32
	Boost     float32
	AnnealDur time.Duration
	K         int
}

func (p *Params) Defaults() {
	if p.Amin == 0 && p.Amax == 0 {
		p.Amin, p.Amax = 0.5, 2.0
	}
	if p.Boost == 0 {
		p.Boost = 1
	}
	if p.K == 0 {
		p.K = 8
	}
}

// Validate re-checks the Amin/Amax ordering independently of the CLI
// layer, so a misconfigured embedding caller fails at construction
// rather than producing out-of-band gains.
func (p *Params) Validate() error {
	if p.Amax < p.Amin {
		return fmt.Errorf("attention amax (%v) must be >= amin (%v)", p.Amax, p.Amin)
	}
	if p.Boost < 0 {
		return fmt.Errorf("attention boost must be >= 0, got %v", p.Boost)
	}
	if p.K < 0 {
		return fmt.Errorf("attention topk count must be >= 0, got %v", p.K)
	}
	if p.AnnealDur < 0 {
		return fmt.Errorf("attention anneal duration must be >= 0, got %v", p.AnnealDur)
	}
	return nil
}

// Modulator produces per-neuron plasticity gains under one of four modes.
// Not internally synchronized: it is owned by the engine and only touched
// under the step lock.
type Modulator struct {
	params Params
	start  time.Time

	external map[uint64]float32
	salience map[uint64]float32
	topSet   map[uint64]bool
}

func NewModulator(params Params, start time.Time) (*Modulator, error) {
	params.Defaults()
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return &Modulator{
		params:   params,
		start:    start,
		salience: make(map[uint64]float32),
		topSet:   make(map[uint64]bool),
	}, nil
}

func (m *Modulator) Mode() Mode { return m.params.Mode }

// SetExternalMap replaces the caller-supplied attention map. Values are
// expected in [0,1]; anything else is folded into the gain clamp.
func (m *Modulator) SetExternalMap(gains map[uint64]float32) {
	m.external = gains
}

// Observe updates the saliency estimates and the top-K set from the
// current activations. Called once per step before any Gain query.
func (m *Modulator) Observe(acts map[uint64]float32) {
	if m.params.Mode != Saliency && m.params.Mode != TopK {
		return
	}
	const tau = 0.1
	for id, a := range acts {
		s := m.salience[id]
		m.salience[id] = s + tau*(mat32.Abs(a)-s)
	}
	if m.params.Mode != TopK {
		return
	}
	type ranked struct {
		id  uint64
		sal float32
	}
	all := make([]ranked, 0, len(m.salience))
	for id, s := range m.salience {
		all = append(all, ranked{id, s})
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].sal != all[j].sal {
			return all[i].sal > all[j].sal
		}
		return all[i].id < all[j].id
	})
	m.topSet = make(map[uint64]bool, m.params.K)
	for i := 0; i < len(all) && i < m.params.K; i++ {
		m.topSet[all[i].id] = true
	}
}

// Gain returns the gain for one neuron at the given time. The result is
// always within [Amin, Amax], including during the anneal window.
func (m *Modulator) Gain(neuron uint64, now time.Time) float32 {
	if m.params.Mode == Off {
		return 1
	}
	target := m.target(neuron)
	g := m.anneal(target, now)
	return m.clamp(g)
}

func (m *Modulator) target(neuron uint64) float32 {
	p := m.params
	span := p.Amax - p.Amin
	switch p.Mode {
	case ExternalMap:
		v, ok := m.external[neuron]
		if !ok {
			return 1
		}
		v *= p.Boost
		if v < 0 {
			v = 0
		} else if v > 1 {
			v = 1
		}
		return p.Amin + v*span
	case Saliency:
		maxSal := float32(0)
		for _, s := range m.salience {
			maxSal = mat32.Max(maxSal, s)
		}
		if maxSal == 0 {
			return 1
		}
		return p.Amin + (m.salience[neuron]/maxSal)*span
	case TopK:
		if m.topSet[neuron] {
			return p.Amax
		}
		return p.Amin
	}
	return 1
}

func (m *Modulator) anneal(target float32, now time.Time) float32 {
	if m.params.AnnealDur == 0 {
		return target
	}
	elapsed := now.Sub(m.start)
	if elapsed >= m.params.AnnealDur {
		return target
	}
	if elapsed < 0 {
		elapsed = 0
	}
	f := float32(elapsed) / float32(m.params.AnnealDur)
	return 1 + (target-1)*f
}

func (m *Modulator) clamp(g float32) float32 {
	return mat32.Min(mat32.Max(g, m.params.Amin), m.params.Amax)
}
