package synapse

import (
	"sort"

	"cerebrum/internal/model"
)

// Key identifies a directed synapse.
type Key struct {
	Pre  uint64
	Post uint64
}

// State is the engine-owned state of one synapse. Weight is the native
// float32 storage type; rule arithmetic happens in float64 and is narrowed
// on write. Elig is kept in [-1,1] so that a single shaped reward can move
// a weight by at most kappa.
type State struct {
	Weight         float32
	Elig           float32
	LastUpdateStep uint64
	Active         bool
}

// Store is an indexed collection of directed weighted edges. It is not
// internally synchronized: all access goes through the engine's step lock,
// and the store is never handed out to callers outside the engine package.
type Store struct {
	syns map[Key]*State
}

func NewStore() *Store {
	return &Store{syns: make(map[Key]*State)}
}

// Sync reconciles the store against the topology provider's live edge set.
// New edges are created with the provider's initial weight; edges no longer
// reported are removed. This is the only place entries are created or
// destroyed.
func (s *Store) Sync(edges []Edge) {
	live := make(map[Key]bool, len(edges))
	for _, e := range edges {
		k := Key{Pre: e.Pre, Post: e.Post}
		live[k] = true
		if _, ok := s.syns[k]; !ok {
			s.syns[k] = &State{Weight: e.InitWeight, Active: true}
		}
	}
	for k := range s.syns {
		if !live[k] {
			delete(s.syns, k)
		}
	}
}

// Edge mirrors topology.Edge without importing it, keeping the store a leaf.
type Edge struct {
	Pre        uint64
	Post       uint64
	InitWeight float32
}

func (s *Store) Len() int { return len(s.syns) }

func (s *Store) Get(k Key) (*State, bool) {
	st, ok := s.syns[k]
	return st, ok
}

// Keys returns all synapse keys in deterministic (pre, post) order.
func (s *Store) Keys() []Key {
	keys := make([]Key, 0, len(s.syns))
	for k := range s.syns {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Pre != keys[j].Pre {
			return keys[i].Pre < keys[j].Pre
		}
		return keys[i].Post < keys[j].Post
	})
	return keys
}

// ForEach visits every synapse in deterministic order.
func (s *Store) ForEach(fn func(k Key, st *State)) {
	for _, k := range s.Keys() {
		fn(k, s.syns[k])
	}
}

// Range visits every synapse in map order. Use for order-insensitive
// passes that run every step.
func (s *Store) Range(fn func(k Key, st *State)) {
	for k, st := range s.syns {
		fn(k, st)
	}
}

// Snapshot copies the full store into export rows, sorted by (pre, post).
// Exporting twice without an intervening mutation yields identical output.
func (s *Store) Snapshot() []model.SynapseRow {
	rows := make([]model.SynapseRow, 0, len(s.syns))
	for _, k := range s.Keys() {
		rows = append(rows, model.SynapseRow{
			PreNeuron:  k.Pre,
			PostNeuron: k.Post,
			Weight:     s.syns[k].Weight,
		})
	}
	return rows
}
