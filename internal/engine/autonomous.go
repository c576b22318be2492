package engine

import (
	"context"
	"errors"
	"time"
)

// Autonomous drives the engine from a dedicated loop at a fixed cadence,
// independently of any main step loop. The two drivers are mutually
// exclusive by contract: an autonomous engine is stepped only here, while
// stats queries and snapshots remain safe from any goroutine. The loop
// checks cancellation between steps and exits promptly; the engine has no
// partial-step state to unwind.
type Autonomous struct {
	engine   *Engine
	interval time.Duration

	// advance ticks the topology provider before each step; observe
	// supplies the step's observation vector. Either may be nil.
	advance func()
	observe func() []float32
}

func NewAutonomous(e *Engine, interval time.Duration, advance func(), observe func() []float32) (*Autonomous, error) {
	if e == nil {
		return nil, errors.New("engine is required")
	}
	if interval <= 0 {
		return nil, errors.New("autonomous interval must be > 0")
	}
	return &Autonomous{engine: e, interval: interval, advance: advance, observe: observe}, nil
}

// Run loops until the context is cancelled. Designed to sit under a
// platform.Supervisor task.
func (a *Autonomous) Run(ctx context.Context) error {
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if a.advance != nil {
				a.advance()
			}
			var obs []float32
			if a.observe != nil {
				obs = a.observe()
			}
			a.engine.Step(obs)
		}
	}
}
