package topology

import (
	"math/rand"
	"sync"
)

// Edge is a directed connection reported by the topology layer. InitWeight
// is only consulted the first time the engine sees the edge.
type Edge struct {
	Pre        uint64
	Post       uint64
	InitWeight float32
}

// Spike is the most recent spike time of a neuron, in step units. The
// learning engine only ever looks at pairwise differences.
type Spike struct {
	Neuron uint64
	Time   float64
}

// Provider supplies the learning engine with the live edge set and the
// current activity of its endpoints. The engine treats the provider as
// authoritative: edges it stops reporting are dropped from the synapse
// store, and the engine never invents edges of its own.
type Provider interface {
	// Edges returns the currently live directed edges.
	Edges() []Edge
	// Activations returns the current activation per neuron id.
	Activations() map[uint64]float32
	// Spikes returns the latest spike time per neuron id, if any.
	Spikes() map[uint64]float64
}

// Synthetic is a seeded random-graph provider used by the CLI driver and
// tests. Activations follow a slow mean-reverting random walk so that
// correlated pre/post activity actually occurs, and each neuron spikes
// whenever its activation crosses its threshold.
//
// All methods hold one mutex, so the autonomous driver can advance the
// network from its own goroutine while the sampler reads activations.
type Synthetic struct {
	mu        sync.Mutex
	rng       *rand.Rand
	edges     []Edge
	act       map[uint64]float32
	spikes    map[uint64]float64
	threshold float32
	step      float64
}

// NewSynthetic builds a random graph of n neurons where each neuron gets
// fanout outgoing edges to distinct targets. Initial weights are small
// and zero-centered.
func NewSynthetic(n, fanout int, seed int64) *Synthetic {
	rng := rand.New(rand.NewSource(seed))
	s := &Synthetic{
		rng:       rng,
		act:       make(map[uint64]float32, n),
		spikes:    make(map[uint64]float64),
		threshold: 0.6,
	}
	for pre := 0; pre < n; pre++ {
		s.act[uint64(pre)] = rng.Float32()
		seen := map[uint64]bool{uint64(pre): true}
		for k := 0; k < fanout && k < n-1; k++ {
			post := uint64(rng.Intn(n))
			for seen[post] {
				post = uint64(rng.Intn(n))
			}
			seen[post] = true
			s.edges = append(s.edges, Edge{
				Pre:        uint64(pre),
				Post:       post,
				InitWeight: float32(rng.NormFloat64() * 0.05),
			})
		}
	}
	return s
}

// Advance moves every neuron's activation one tick and records threshold
// crossings as spikes.
func (s *Synthetic) Advance() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.step++
	for id, a := range s.act {
		next := a + float32(s.rng.NormFloat64())*0.1 + (0.5-a)*0.05
		if next < 0 {
			next = 0
		} else if next > 1 {
			next = 1
		}
		if a < s.threshold && next >= s.threshold {
			s.spikes[id] = s.step
		}
		s.act[id] = next
	}
}

func (s *Synthetic) Edges() []Edge {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Edge, len(s.edges))
	copy(out, s.edges)
	return out
}

func (s *Synthetic) Activations() map[uint64]float32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[uint64]float32, len(s.act))
	for id, a := range s.act {
		out[id] = a
	}
	return out
}

func (s *Synthetic) Spikes() map[uint64]float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[uint64]float64, len(s.spikes))
	for id, t := range s.spikes {
		out[id] = t
	}
	return out
}

// Observation exposes the current activation vector in neuron-id order,
// suitable as the reward shaper's observation input.
func (s *Synthetic) Observation() []float32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]float32, 0, len(s.act))
	for id := uint64(0); int(id) < len(s.act); id++ {
		out = append(out, s.act[id])
	}
	return out
}
