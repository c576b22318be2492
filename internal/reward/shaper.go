package reward

import (
	"fmt"

	"cerebrum/internal/mimicry"

	"github.com/goki/mat32"
)

// Phase4Params are the shaping weights: Gamma scales the task reward,
// Alpha the novelty bonus, Eta the uncertainty bonus, and Kappa the
// reward-to-weight scale applied downstream by the engine.
type Phase4Params struct {
	Alpha float64
	Gamma float64
	Eta   float64
	Kappa float64
}

// Driver-level defaults for unset knobs. Phase4Params fields are taken
// literally: Gamma 0 mutes the task reward and Kappa 0 decouples reward
// from the weights.
const (
	DefaultGamma = 1.0
	DefaultKappa = 0.1
)

// Validate rejects negative shaping weights. The unsafe bypass suppresses
// the check entirely rather than clamping, so an operator experimenting
// outside the envelope sees exactly the values they asked for.
func (p *Phase4Params) Validate(unsafe bool) error {
	if unsafe {
		return nil
	}
	if p.Alpha < 0 || p.Gamma < 0 || p.Eta < 0 || p.Kappa < 0 {
		return fmt.Errorf("phase4 weights must be >= 0: alpha=%v gamma=%v eta=%v kappa=%v",
			p.Alpha, p.Gamma, p.Eta, p.Kappa)
	}
	return nil
}

// Result is one shaped reward with its components, for telemetry.
type Result struct {
	Shaped      float64
	Novelty     float64
	Uncertainty float64
	Mimicry     float64
}

// Shaper combines task reward, novelty, uncertainty and an optional
// mimicry term into one scalar clamped to [-1,1]. The clamp is
// load-bearing: weight updates multiply by kappa * reward, so an
// unclamped reward could destabilize the whole synapse population in
// one step.
type Shaper struct {
	params Phase4Params
	unsafe bool

	windowSize int
	window     [][]float32
	windowPos  int
	windowFull bool

	spreadHist []float64
	spreadPos  int
	spreadFull bool
}

// spreadHistLen bounds the activation-spread history used for the
// uncertainty estimate.
const spreadHistLen = 16

func NewShaper(params Phase4Params, noveltyWindow int, unsafeParams bool) (*Shaper, error) {
	if err := params.Validate(unsafeParams); err != nil {
		return nil, err
	}
	if noveltyWindow < 0 {
		return nil, fmt.Errorf("novelty window must be >= 0, got %d", noveltyWindow)
	}
	sh := &Shaper{
		params:     params,
		unsafe:     unsafeParams,
		windowSize: noveltyWindow,
		spreadHist: make([]float64, spreadHistLen),
	}
	if noveltyWindow > 0 {
		sh.window = make([][]float32, noveltyWindow)
	}
	return sh, nil
}

// ConfigurePhase4 replaces the shaping weights in place, revalidating
// unless the shaper was built with the unsafe bypass.
func (sh *Shaper) ConfigurePhase4(params Phase4Params) error {
	if err := params.Validate(sh.unsafe); err != nil {
		return err
	}
	sh.params = params
	return nil
}

func (sh *Shaper) Params() Phase4Params { return sh.params }

// Shape computes the bounded shaped reward for one step. mimicry is the
// already-weighted mimicry term; pass haveMimicry=false when mimicry is
// disabled or externally routed.
func (sh *Shaper) Shape(obs []float32, acts map[uint64]float32, task, mimicry float64, haveMimicry bool) Result {
	res := Result{
		Novelty:     sh.novelty(obs),
		Uncertainty: sh.uncertainty(acts),
	}
	r := sh.params.Gamma*task + sh.params.Alpha*res.Novelty + sh.params.Eta*res.Uncertainty
	if haveMimicry {
		res.Mimicry = mimicry
		r += mimicry
	}
	if r > 1 {
		r = 1
	} else if r < -1 {
		r = -1
	}
	res.Shaped = r
	return res
}

// novelty is high when the current observation is dissimilar to the mean
// of the sliding window, and 0 when the window is disabled or empty.
func (sh *Shaper) novelty(obs []float32) float64 {
	if sh.windowSize == 0 || len(obs) == 0 {
		return 0
	}
	mean := sh.windowMean(len(obs))
	n := 0.0
	if mean != nil {
		n = 1 - float64(mimicry.Cosine(obs, mean))
		if n < 0 {
			n = 0
		} else if n > 1 {
			n = 1
		}
	}
	stored := make([]float32, len(obs))
	copy(stored, obs)
	sh.window[sh.windowPos] = stored
	sh.windowPos = (sh.windowPos + 1) % sh.windowSize
	if sh.windowPos == 0 {
		sh.windowFull = true
	}
	return n
}

func (sh *Shaper) windowMean(dim int) []float32 {
	count := sh.windowPos
	if sh.windowFull {
		count = sh.windowSize
	}
	if count == 0 {
		return nil
	}
	mean := make([]float32, dim)
	used := 0
	for i := 0; i < count; i++ {
		v := sh.window[i]
		if len(v) != dim {
			continue
		}
		used++
		for j := range mean {
			mean[j] += v[j]
		}
	}
	if used == 0 {
		return nil
	}
	inv := 1 / float32(used)
	for j := range mean {
		mean[j] *= inv
	}
	return mean
}

// uncertainty is the standard deviation of recent mean activation levels,
// clamped to [0,1].
func (sh *Shaper) uncertainty(acts map[uint64]float32) float64 {
	if len(acts) == 0 {
		return 0
	}
	sum := float32(0)
	for _, a := range acts {
		sum += a
	}
	mean := float64(sum) / float64(len(acts))

	sh.spreadHist[sh.spreadPos] = mean
	sh.spreadPos = (sh.spreadPos + 1) % spreadHistLen
	if sh.spreadPos == 0 {
		sh.spreadFull = true
	}
	count := sh.spreadPos
	if sh.spreadFull {
		count = spreadHistLen
	}
	if count < 2 {
		return 0
	}
	m := 0.0
	for i := 0; i < count; i++ {
		m += sh.spreadHist[i]
	}
	m /= float64(count)
	varsum := 0.0
	for i := 0; i < count; i++ {
		d := sh.spreadHist[i] - m
		varsum += d * d
	}
	sd := float64(mat32.Sqrt(float32(varsum / float64(count))))
	if sd > 1 {
		sd = 1
	}
	return sd
}
