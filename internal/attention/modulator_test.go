package attention

import (
	"testing"
	"time"
)

func TestParseMode(t *testing.T) {
	cases := map[string]Mode{
		"":         Off,
		"none":     Off,
		"external": ExternalMap,
		"map":      ExternalMap,
		"saliency": Saliency,
		"topk":     TopK,
		"TOP_K":    TopK,
	}
	for in, want := range cases {
		got, err := ParseMode(in)
		if err != nil {
			t.Fatalf("parse %q: %v", in, err)
		}
		if got != want {
			t.Fatalf("parse %q = %v, want %v", in, got, want)
		}
	}
	if _, err := ParseMode("bogus"); err == nil {
		t.Fatal("expected error for unknown mode")
	}
}

func TestOffModeGainIsOne(t *testing.T) {
	m, err := NewModulator(Params{Mode: Off}, time.Now())
	if err != nil {
		t.Fatalf("new modulator: %v", err)
	}
	if g := m.Gain(0, time.Now()); g != 1 {
		t.Fatalf("gain = %v, want 1", g)
	}
}

func TestExternalMapGain(t *testing.T) {
	start := time.Now()
	m, err := NewModulator(Params{Mode: ExternalMap, Amin: 0.5, Amax: 2.0}, start)
	if err != nil {
		t.Fatalf("new modulator: %v", err)
	}
	m.SetExternalMap(map[uint64]float32{7: 1, 8: 0})

	if g := m.Gain(7, start); g != 2.0 {
		t.Fatalf("gain for full attention = %v, want 2.0", g)
	}
	if g := m.Gain(8, start); g != 0.5 {
		t.Fatalf("gain for zero attention = %v, want 0.5", g)
	}
	// Unmapped neurons keep the neutral gain.
	if g := m.Gain(9, start); g != 1 {
		t.Fatalf("gain for unmapped neuron = %v, want 1", g)
	}
}

func TestExternalMapBoostClamps(t *testing.T) {
	start := time.Now()
	m, err := NewModulator(Params{Mode: ExternalMap, Amin: 0.5, Amax: 2.0, Boost: 10}, start)
	if err != nil {
		t.Fatalf("new modulator: %v", err)
	}
	m.SetExternalMap(map[uint64]float32{1: 0.5})
	// 0.5 * 10 clamps to 1 before mapping into [Amin, Amax].
	if g := m.Gain(1, start); g != 2.0 {
		t.Fatalf("boosted gain = %v, want 2.0", g)
	}
}

func TestTopKMembership(t *testing.T) {
	start := time.Now()
	m, err := NewModulator(Params{Mode: TopK, Amin: 0.5, Amax: 2.0, K: 2}, start)
	if err != nil {
		t.Fatalf("new modulator: %v", err)
	}

	m.Observe(map[uint64]float32{0: 0.9, 1: 0.8, 2: 0.1, 3: 0.05})
	if g := m.Gain(0, start); g != 2.0 {
		t.Fatalf("top neuron gain = %v, want 2.0", g)
	}
	if g := m.Gain(1, start); g != 2.0 {
		t.Fatalf("second neuron gain = %v, want 2.0", g)
	}
	if g := m.Gain(2, start); g != 0.5 {
		t.Fatalf("outside-k gain = %v, want 0.5", g)
	}
}

func TestSaliencyGainBounds(t *testing.T) {
	start := time.Now()
	m, err := NewModulator(Params{Mode: Saliency, Amin: 0.5, Amax: 2.0}, start)
	if err != nil {
		t.Fatalf("new modulator: %v", err)
	}

	for i := 0; i < 50; i++ {
		m.Observe(map[uint64]float32{0: 1, 1: 0.2, 2: 0})
	}
	for id := uint64(0); id < 3; id++ {
		g := m.Gain(id, start)
		if g < 0.5 || g > 2.0 {
			t.Fatalf("gain for neuron %d = %v, outside [0.5, 2.0]", id, g)
		}
	}
	if g0, g2 := m.Gain(0, start), m.Gain(2, start); g0 <= g2 {
		t.Fatalf("saliency ordering broken: gain(0)=%v <= gain(2)=%v", g0, g2)
	}
}

func TestAnnealMidpoint(t *testing.T) {
	start := time.Unix(1000, 0)
	m, err := NewModulator(Params{Mode: TopK, Amin: 0.5, Amax: 2.0, K: 1, AnnealDur: 10 * time.Second}, start)
	if err != nil {
		t.Fatalf("new modulator: %v", err)
	}
	m.Observe(map[uint64]float32{0: 1})

	// Halfway through the anneal the gain is halfway from 1 to the target.
	mid := start.Add(5 * time.Second)
	if g := m.Gain(0, mid); g != 1.5 {
		t.Fatalf("mid-anneal gain = %v, want 1.5", g)
	}
	if g := m.Gain(0, start.Add(time.Minute)); g != 2.0 {
		t.Fatalf("post-anneal gain = %v, want 2.0", g)
	}
	if g := m.Gain(0, start); g != 1 {
		t.Fatalf("start gain = %v, want 1", g)
	}
}

func TestParamsValidation(t *testing.T) {
	if _, err := NewModulator(Params{Mode: TopK, Amin: 2, Amax: 1}, time.Now()); err == nil {
		t.Fatal("expected error for amax < amin")
	}
	if _, err := NewModulator(Params{Mode: TopK, Amin: 0.5, Amax: 2, K: -1}, time.Now()); err == nil {
		t.Fatal("expected error for negative k")
	}
}
