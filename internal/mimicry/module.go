package mimicry

import (
	"fmt"

	"github.com/goki/mat32"
)

// historyLen bounds the ring of past teacher attempts used for the
// novelty complement.
const historyLen = 8

// Attempt is one mimicry evaluation: how close the student came to the
// teacher, and how novel this teacher target is relative to recent
// attempts.
type Attempt struct {
	Similarity float32
	Novelty    float32
}

// Module maintains one teacher embedding and a live student embedding and
// produces the similarity/novelty signal the reward shaper consumes. The
// module never panics on malformed vectors: mismatched lengths degrade to
// similarity 0 with an error the caller is expected to log and count.
type Module struct {
	teacher []float32
	student []float32

	history    [][]float32
	historyPos int

	enabled  bool
	weight   float64
	internal bool
	mirror   bool

	pending     float64
	havePending bool
}

func NewModule() *Module {
	return &Module{weight: 1}
}

func (m *Module) SetEnabled(on bool)  { m.enabled = on }
func (m *Module) Enabled() bool       { return m.enabled }
func (m *Module) SetWeight(w float64) { m.weight = w }
func (m *Module) Weight() float64     { return m.weight }

// SetInternal routes the mimicry reward into the main shaped reward
// automatically instead of leaving it for the caller to apply. A policy
// switch, not a correctness one.
func (m *Module) SetInternal(on bool) { m.internal = on }
func (m *Module) Internal() bool      { return m.internal }

// SetMirrorMode derives the student embedding from sensory features
// observed via ObserveSensory instead of from action scores.
func (m *Module) SetMirrorMode(on bool) { m.mirror = on }

func (m *Module) SetTeacherVector(v []float32) {
	m.teacher = cloneVec(v)
}

func (m *Module) SetStudentEmbedding(v []float32) {
	m.student = cloneVec(v)
}

// ObserveSensory updates the student embedding from sensory features when
// mirror mode is active; otherwise it is ignored.
func (m *Module) ObserveSensory(features []float32) {
	if m.mirror {
		m.student = cloneVec(features)
	}
}

// Similarity is the cosine of teacher and student. Both empty-vector and
// length-mismatch cases yield 0; the mismatch additionally returns an
// error so the caller can count the degradation.
func (m *Module) Similarity() (float32, error) {
	if len(m.teacher) == 0 || len(m.student) == 0 {
		return 0, nil
	}
	if len(m.teacher) != len(m.student) {
		return 0, fmt.Errorf("mimicry embedding length mismatch: teacher=%d student=%d",
			len(m.teacher), len(m.student))
	}
	return Cosine(m.teacher, m.student), nil
}

// Attempt evaluates the current student against the teacher and records
// the teacher target in the attempt history. scores, when non-nil,
// replaces the student embedding first (the action-score path).
func (m *Module) Attempt(scores []float32) (Attempt, error) {
	if scores != nil && !m.mirror {
		m.student = cloneVec(scores)
	}
	sim, err := m.Similarity()
	att := Attempt{Similarity: sim, Novelty: m.noveltyAgainstHistory()}
	m.pushHistory(m.teacher)
	return att, err
}

// noveltyAgainstHistory is the complement of the teacher's best match in
// the attempt history; 1 when there is no history yet. Keeps the system
// from collapsing to always mimicking the same target.
func (m *Module) noveltyAgainstHistory() float32 {
	if len(m.teacher) == 0 {
		return 0
	}
	best := float32(0)
	for _, past := range m.history {
		if len(past) != len(m.teacher) {
			continue
		}
		best = mat32.Max(best, Cosine(m.teacher, past))
	}
	n := 1 - best
	if n < 0 {
		n = 0
	}
	return n
}

func (m *Module) pushHistory(v []float32) {
	if len(v) == 0 {
		return
	}
	entry := cloneVec(v)
	if len(m.history) < historyLen {
		m.history = append(m.history, entry)
		return
	}
	m.history[m.historyPos] = entry
	m.historyPos = (m.historyPos + 1) % historyLen
}

// ApplyReward converts an attempt into the weighted mimicry term. With
// internal routing the engine folds the pending value into the next
// shaped reward; otherwise the caller applies the returned term itself.
func (m *Module) ApplyReward(att Attempt) float64 {
	term := m.weight * (float64(att.Similarity) + float64(att.Novelty)) / 2
	if m.internal {
		m.pending = term
		m.havePending = true
	}
	return term
}

// TakePending returns and clears the internally routed reward term.
func (m *Module) TakePending() (float64, bool) {
	if !m.enabled || !m.internal || !m.havePending {
		return 0, false
	}
	m.havePending = false
	return m.pending, true
}

// Cosine is the cosine similarity of two equal-length vectors. Symmetric,
// bounded in [-1,1], and exactly 1 for any non-zero vector against
// itself. Zero for empty or mismatched input.
func Cosine(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float32
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (mat32.Sqrt(na) * mat32.Sqrt(nb))
}

func cloneVec(v []float32) []float32 {
	if v == nil {
		return nil
	}
	out := make([]float32, len(v))
	copy(out, v)
	return out
}
