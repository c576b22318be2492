package homeostasis

import (
	"fmt"

	"cerebrum/internal/synapse"
)

// Params configures slow corrective weight rescaling. Disabled by
// default; Enabled must be set explicitly, it is never implied by other
// flags.
type Params struct {
	Enabled    bool
	Eta        float64
	TargetMean float64
}

func (p *Params) Defaults() {
	if p.Eta == 0 {
		p.Eta = 0.001
	}
	if p.TargetMean == 0 {
		p.TargetMean = 0.5
	}
}

func (p *Params) Validate() error {
	if p.Eta < 0 {
		return fmt.Errorf("homeostasis eta must be >= 0, got %v", p.Eta)
	}
	return nil
}

// Regulator nudges the potentiated population's mean weight toward a
// target band. This is separate from per-synapse plasticity and exists to
// stop the STDP/Hebbian feedback loop from running away.
type Regulator struct {
	params Params
}

func NewRegulator(params Params) (*Regulator, error) {
	params.Defaults()
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return &Regulator{params: params}, nil
}

func (r *Regulator) Enabled() bool { return r.params.Enabled }

// Rescale shifts every potentiated synapse uniformly by
// eta * (target - mean). A no-op when disabled or when nothing is
// potentiated.
func (r *Regulator) Rescale(store *synapse.Store) {
	if !r.params.Enabled {
		return
	}
	sum := 0.0
	n := 0
	store.Range(func(_ synapse.Key, st *synapse.State) {
		if st.Weight > 0 {
			sum += float64(st.Weight)
			n++
		}
	})
	if n == 0 {
		return
	}
	adj := float32(r.params.Eta * (r.params.TargetMean - sum/float64(n)))
	if adj == 0 {
		return
	}
	store.Range(func(_ synapse.Key, st *synapse.State) {
		if st.Weight > 0 {
			st.Weight += adj
		}
	})
}
