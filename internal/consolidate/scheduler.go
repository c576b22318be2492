package consolidate

import (
	"fmt"
	"sort"
	"time"

	"cerebrum/internal/synapse"

	"github.com/goki/mat32"
)

// State is the scheduler's lifecycle: it sits Idle between passes, flips
// to Due when the interval elapses, and is Consolidating only while a
// pass runs.
type State int

const (
	Idle State = iota
	Due
	Consolidating
)

// Regime is the step-count alternation between higher-variance
// exploration and stabilization, used when the caller configures
// chaos/consolidate step counts instead of wall-clock scheduling.
type Regime int

const (
	RegimeNone Regime = iota
	RegimeChaos
	RegimeConsolidate
)

type Params struct {
	// Interval is the wall-clock consolidation period. Ignored when the
	// step regimes are configured.
	Interval time.Duration
	// Strength multiplies the weights of the strengthened fraction.
	Strength float64
	// PruneThreshold marks synapses with |weight| at or below it
	// inactive. 0 means only exactly-zero weights are excluded.
	PruneThreshold   float64
	ChaosSteps       int
	ConsolidateSteps int
}

func (p *Params) Defaults() {
	if p.Interval == 0 {
		p.Interval = 30 * time.Second
	}
}

func (p *Params) Validate() error {
	if p.Interval < 0 {
		return fmt.Errorf("consolidation interval must be >= 0, got %v", p.Interval)
	}
	if p.Strength < 0 {
		return fmt.Errorf("consolidation strength must be >= 0, got %v", p.Strength)
	}
	if p.PruneThreshold < 0 {
		return fmt.Errorf("prune threshold must be >= 0, got %v", p.PruneThreshold)
	}
	if p.ChaosSteps < 0 || p.ConsolidateSteps < 0 {
		return fmt.Errorf("regime step counts must be >= 0")
	}
	return nil
}

// Outcome is what one consolidation pass did to the store.
type Outcome struct {
	Active       int
	Potentiated  int
	Depressed    int
	Pruned       int
	Strengthened int
	// Rate is the fraction of active synapses strengthened this pass.
	Rate float64
}

// Scheduler decides when consolidation runs and performs the pass:
// reclassify against the prune threshold, strengthen a decaying fraction
// of the strongest active synapses, and report aggregate counts.
type Scheduler struct {
	params Params
	state  State
	last   time.Time
	events uint64
}

func NewScheduler(params Params, now time.Time) (*Scheduler, error) {
	params.Defaults()
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return &Scheduler{params: params, state: Idle, last: now}, nil
}

func (s *Scheduler) State() State   { return s.state }
func (s *Scheduler) Events() uint64 { return s.events }

func (s *Scheduler) stepMode() bool {
	return s.params.ChaosSteps > 0 && s.params.ConsolidateSteps > 0
}

// RegimeAt reports which regime the given step falls in, RegimeNone when
// step regimes are not configured.
func (s *Scheduler) RegimeAt(step uint64) Regime {
	if !s.stepMode() {
		return RegimeNone
	}
	cycle := uint64(s.params.ChaosSteps + s.params.ConsolidateSteps)
	if step%cycle < uint64(s.params.ChaosSteps) {
		return RegimeChaos
	}
	return RegimeConsolidate
}

// Check advances idle -> due. In step mode consolidation falls due on the
// last step of each consolidate phase; otherwise when the wall-clock
// interval has elapsed.
func (s *Scheduler) Check(step uint64, now time.Time) bool {
	if s.state != Idle {
		return s.state == Due
	}
	due := false
	if s.stepMode() {
		cycle := uint64(s.params.ChaosSteps + s.params.ConsolidateSteps)
		due = step%cycle == cycle-1
	} else {
		due = now.Sub(s.last) >= s.params.Interval
	}
	if due {
		s.state = Due
	}
	return due
}

// Run performs the consolidation pass. Only valid after Check reported
// due; runs at most once per due transition.
func (s *Scheduler) Run(store *synapse.Store, now time.Time) Outcome {
	s.state = Consolidating
	s.events++
	s.last = now

	var out Outcome
	type weighted struct {
		st  *synapse.State
		abs float32
	}
	active := make([]weighted, 0, store.Len())
	store.ForEach(func(_ synapse.Key, st *synapse.State) {
		abs := mat32.Abs(st.Weight)
		st.Active = abs > float32(s.params.PruneThreshold)
		if !st.Active {
			out.Pruned++
			return
		}
		out.Active++
		if st.Weight > 0 {
			out.Potentiated++
		} else {
			out.Depressed++
		}
		active = append(active, weighted{st, abs})
	})

	if s.params.Strength > 0 && len(active) > 0 {
		// The strengthened fraction decays across passes so early
		// consolidation is broad and later passes touch only the most
		// established synapses.
		n := len(active) / int(s.events)
		if n < 1 {
			n = 1
		}
		sort.Slice(active, func(i, j int) bool { return active[i].abs > active[j].abs })
		factor := float32(1 + s.params.Strength)
		for i := 0; i < n; i++ {
			active[i].st.Weight *= factor
		}
		out.Strengthened = n
		out.Rate = float64(n) / float64(len(active))
	}

	s.state = Idle
	return out
}
