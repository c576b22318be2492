package platform

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

// RestartPolicy decides whether a finished task is restarted.
type RestartPolicy string

const (
	// RestartPermanent restarts the task no matter how it exited.
	RestartPermanent RestartPolicy = "permanent"
	// RestartTransient restarts only after an error exit.
	RestartTransient RestartPolicy = "transient"
	// RestartTemporary never restarts.
	RestartTemporary RestartPolicy = "temporary"
)

// Policy bounds restart behavior for all tasks under one supervisor.
type Policy struct {
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	BackoffFactor  float64
	// MaxRestarts caps restarts per task; 0 means unlimited.
	MaxRestarts int
}

func defaultPolicy() Policy {
	return Policy{
		InitialBackoff: 10 * time.Millisecond,
		MaxBackoff:     200 * time.Millisecond,
		BackoffFactor:  2.0,
	}
}

func normalizePolicy(p Policy) Policy {
	def := defaultPolicy()
	if p.InitialBackoff <= 0 {
		p.InitialBackoff = def.InitialBackoff
	}
	if p.MaxBackoff <= 0 {
		p.MaxBackoff = def.MaxBackoff
	}
	if p.MaxBackoff < p.InitialBackoff {
		p.MaxBackoff = p.InitialBackoff
	}
	if p.BackoffFactor < 1 {
		p.BackoffFactor = def.BackoffFactor
	}
	return p
}

// TaskStatus is the externally visible state of one supervised task.
type TaskStatus struct {
	Name            string        `json:"name"`
	Restart         RestartPolicy `json:"restart_policy"`
	RestartCount    int           `json:"restart_count"`
	LastError       string        `json:"last_error,omitempty"`
	PermanentFailed bool          `json:"permanent_failed"`
}

// Supervisor runs the engine's background loops (autonomous stepper,
// telemetry sampler) with restart-on-failure and exponential backoff.
// Each task gets its own cancellable context; Stop waits for the task
// goroutine to drain.
type Supervisor struct {
	policy Policy

	mu    sync.Mutex
	tasks map[string]*task
}

type task struct {
	cancel  context.CancelFunc
	done    chan struct{}
	restart RestartPolicy

	restartCount    int
	lastErr         error
	permanentFailed bool
}

func NewSupervisor(policy Policy) *Supervisor {
	return &Supervisor{
		policy: normalizePolicy(policy),
		tasks:  make(map[string]*task),
	}
}

// Start launches a named task. The runner must return promptly once its
// context is cancelled.
func (s *Supervisor) Start(name string, restart RestartPolicy, run func(ctx context.Context) error) error {
	if name == "" {
		return errors.New("task name is required")
	}
	if run == nil {
		return errors.New("task runner is required")
	}
	switch restart {
	case RestartPermanent, RestartTransient, RestartTemporary:
	case "":
		restart = RestartPermanent
	default:
		return fmt.Errorf("unknown restart policy: %s", restart)
	}

	s.mu.Lock()
	if _, exists := s.tasks[name]; exists {
		s.mu.Unlock()
		return fmt.Errorf("task already running: %s", name)
	}
	ctx, cancel := context.WithCancel(context.Background())
	t := &task{
		cancel:  cancel,
		done:    make(chan struct{}),
		restart: restart,
	}
	s.tasks[name] = t
	s.mu.Unlock()

	go s.loop(name, t, ctx, run)
	return nil
}

func (s *Supervisor) loop(name string, t *task, ctx context.Context, run func(ctx context.Context) error) {
	defer close(t.done)

	backoff := s.policy.InitialBackoff
	for {
		err := run(ctx)
		if ctx.Err() != nil {
			return
		}
		restart := false
		switch t.restart {
		case RestartPermanent:
			restart = true
		case RestartTransient:
			restart = err != nil
		}
		s.mu.Lock()
		t.lastErr = err
		if !restart {
			s.mu.Unlock()
			return
		}
		if s.policy.MaxRestarts > 0 && t.restartCount >= s.policy.MaxRestarts {
			t.permanentFailed = true
			s.mu.Unlock()
			return
		}
		t.restartCount++
		s.mu.Unlock()

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
		next := time.Duration(float64(backoff) * s.policy.BackoffFactor)
		if next > s.policy.MaxBackoff {
			next = s.policy.MaxBackoff
		}
		backoff = next
	}
}

// Stop cancels one task and waits for it to exit.
func (s *Supervisor) Stop(name string) {
	s.mu.Lock()
	t, ok := s.tasks[name]
	delete(s.tasks, name)
	s.mu.Unlock()
	if !ok {
		return
	}
	t.cancel()
	<-t.done
}

// StopAll cancels every task and waits for all of them.
func (s *Supervisor) StopAll() {
	s.mu.Lock()
	tasks := make([]*task, 0, len(s.tasks))
	for _, t := range s.tasks {
		tasks = append(tasks, t)
	}
	s.tasks = make(map[string]*task)
	s.mu.Unlock()

	for _, t := range tasks {
		t.cancel()
	}
	for _, t := range tasks {
		<-t.done
	}
}

// Tasks lists running task names, sorted.
func (s *Supervisor) Tasks() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.tasks))
	for name := range s.tasks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Status reports the state of every running task.
func (s *Supervisor) Status() []TaskStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.tasks))
	for name := range s.tasks {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]TaskStatus, 0, len(names))
	for _, name := range names {
		t := s.tasks[name]
		status := TaskStatus{
			Name:            name,
			Restart:         t.restart,
			RestartCount:    t.restartCount,
			PermanentFailed: t.permanentFailed,
		}
		if t.lastErr != nil {
			status.LastError = t.lastErr.Error()
		}
		out = append(out, status)
	}
	return out
}
