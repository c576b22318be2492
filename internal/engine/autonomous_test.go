package engine

import (
	"context"
	"testing"
	"time"

	"cerebrum/internal/plasticity"
)

func TestAutonomousStepsUntilCancelled(t *testing.T) {
	p := singleEdgeProvider(1, 1)
	eng, err := New(p, Params{Hebb: plasticity.HebbParams{Rate: 0.01}},
		WithClock(fixedClock(time.Unix(3000, 0))))
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	auto, err := NewAutonomous(eng, time.Millisecond, nil, nil)
	if err != nil {
		t.Fatalf("new autonomous: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- auto.Run(ctx) }()

	deadline := time.After(2 * time.Second)
	for eng.StepCount() < 5 {
		select {
		case <-deadline:
			t.Fatalf("only %d steps before deadline", eng.StepCount())
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("run: %v", err)
	}
}

func TestAutonomousValidation(t *testing.T) {
	p := singleEdgeProvider(0, 0)
	eng, err := New(p, Params{})
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	if _, err := NewAutonomous(nil, time.Millisecond, nil, nil); err == nil {
		t.Fatal("expected error for nil engine")
	}
	if _, err := NewAutonomous(eng, 0, nil, nil); err == nil {
		t.Fatal("expected error for zero interval")
	}
}
