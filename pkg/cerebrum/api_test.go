package cerebrum

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	c, err := New(Options{
		StoreKind:    "memory",
		ArtifactsDir: t.TempDir(),
	})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	if err := c.Init(context.Background()); err != nil {
		t.Fatalf("init: %v", err)
	}
	return c
}

func TestRunProducesTelemetryAndArtifacts(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t)

	summary, err := c.Run(ctx, RunRequest{
		Seed:    42,
		Neurons: 16,
		Fanout:  2,
		Steps:   100,
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if summary.RunID == "" {
		t.Fatal("missing run id")
	}
	if summary.Steps != 100 {
		t.Fatalf("steps = %d, want 100", summary.Steps)
	}
	if summary.Synapses != 16*2 {
		t.Fatalf("synapses = %d, want %d", summary.Synapses, 16*2)
	}

	for _, name := range []string{"config.json", "final_stats.json", "stats_log.csv", "snapshot.csv"} {
		if _, err := os.Stat(filepath.Join(summary.ArtifactsDir, name)); err != nil {
			t.Fatalf("missing artifact %s: %v", name, err)
		}
	}

	runs, err := c.Runs(ctx, RunsRequest{})
	if err != nil {
		t.Fatalf("runs: %v", err)
	}
	if len(runs) != 1 || runs[0].RunID != summary.RunID {
		t.Fatalf("runs = %+v", runs)
	}
	if runs[0].Neurons != 16 || runs[0].Steps != 100 {
		t.Fatalf("run item = %+v", runs[0])
	}

	final, err := c.Stats(ctx, StatsRequest{RunID: summary.RunID})
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if final != summary.FinalStats {
		t.Fatalf("stats = %+v, want %+v", final, summary.FinalStats)
	}

	events, err := c.RewardEvents(ctx, StatsRequest{Latest: true})
	if err != nil {
		t.Fatalf("reward events: %v", err)
	}
	if len(events) == 0 {
		t.Fatal("no reward events recorded")
	}

	snap, err := c.Snapshot(ctx, SnapshotRequest{Latest: true})
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if snap.RunID != summary.RunID || snap.Rows != summary.Synapses {
		t.Fatalf("snapshot = %+v", snap)
	}
	if _, err := os.Stat(snap.Path); err != nil {
		t.Fatalf("snapshot file: %v", err)
	}
}

func TestRunRecordsEpisodes(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t)

	summary, err := c.Run(ctx, RunRequest{
		Seed:          1,
		Neurons:       8,
		Fanout:        2,
		Steps:         50,
		EpisodeLength: 20,
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	eps, ok, err := c.store.GetEpisodes(ctx, summary.RunID)
	if err != nil || !ok {
		t.Fatalf("get episodes: ok=%v err=%v", ok, err)
	}
	// 50 steps at episode length 20: two full episodes plus a remainder.
	if len(eps) != 3 {
		t.Fatalf("got %d episodes, want 3", len(eps))
	}
	if eps[0].Steps != 20 || eps[2].Steps != 10 {
		t.Fatalf("episode steps = %d,%d,%d", eps[0].Steps, eps[1].Steps, eps[2].Steps)
	}
	for i, ep := range eps {
		if ep.RunID != summary.RunID || ep.Index != i {
			t.Fatalf("episode %d = %+v", i, ep)
		}
	}
}

func TestRunAutonomous(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t)

	summary, err := c.Run(ctx, RunRequest{
		Seed:               3,
		Neurons:            8,
		Fanout:             2,
		Steps:              20,
		Autonomous:         true,
		AutonomousInterval: time.Millisecond,
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if summary.Steps < 20 {
		t.Fatalf("steps = %d, want >= 20", summary.Steps)
	}

	runs, err := c.Runs(ctx, RunsRequest{})
	if err != nil {
		t.Fatalf("runs: %v", err)
	}
	if len(runs) != 1 || !runs[0].Autonomous {
		t.Fatalf("runs = %+v", runs)
	}

	// The sampler applies at most one task reward per tick, so recorded
	// task rewards stay within a single reward's range.
	events, err := c.RewardEvents(ctx, StatsRequest{Latest: true})
	if err != nil {
		t.Fatalf("reward events: %v", err)
	}
	for _, ev := range events {
		if ev.TaskReward < -1 || ev.TaskReward > 1 {
			t.Fatalf("pooled task reward at step %d: %v", ev.Step, ev.TaskReward)
		}
	}
}

func TestRunHonorsExplicitZeroKnobs(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t)

	summary, err := c.Run(ctx, RunRequest{
		Seed:     7,
		Neurons:  8,
		Fanout:   2,
		Steps:    20,
		HebbRate: Float64(0),
		Gamma:    Float64(0),
		Kappa:    Float64(0),
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	// Every learning pathway was explicitly zeroed: nothing may move.
	if summary.FinalStats.TotalUpdates != 0 {
		t.Fatalf("total updates = %d, want 0 with zeroed rates", summary.FinalStats.TotalUpdates)
	}
	if summary.FinalStats.HebbianUpdates != 0 {
		t.Fatalf("hebbian updates = %d, want 0 at rate 0", summary.FinalStats.HebbianUpdates)
	}
}

func TestRunRejectsUnknownModes(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t)

	if _, err := c.Run(ctx, RunRequest{AttentionMode: "bogus"}); err == nil {
		t.Fatal("expected error for unknown attention mode")
	}
	if _, err := c.Run(ctx, RunRequest{CompetenceMode: "bogus"}); err == nil {
		t.Fatal("expected error for unknown competence mode")
	}
}

func TestResolveRunIDErrors(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t)

	if _, err := c.Stats(ctx, StatsRequest{}); err == nil {
		t.Fatal("expected error without run id or latest")
	}
	if _, err := c.Stats(ctx, StatsRequest{RunID: "x", Latest: true}); err == nil {
		t.Fatal("expected error for run id plus latest")
	}
	if _, err := c.Stats(ctx, StatsRequest{Latest: true}); err == nil {
		t.Fatal("expected error with no runs available")
	}
}

func TestResetClearsRuns(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t)

	if _, err := c.Run(ctx, RunRequest{Seed: 5, Neurons: 8, Fanout: 2, Steps: 10}); err != nil {
		t.Fatalf("run: %v", err)
	}
	if err := c.Reset(ctx); err != nil {
		t.Fatalf("reset: %v", err)
	}
	runs, err := c.Runs(ctx, RunsRequest{})
	if err != nil {
		t.Fatalf("runs: %v", err)
	}
	if len(runs) != 0 {
		t.Fatalf("runs after reset = %+v", runs)
	}
}

func TestRunsLimit(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t)

	for i := 0; i < 3; i++ {
		if _, err := c.Run(ctx, RunRequest{Seed: int64(i), Neurons: 8, Fanout: 2, Steps: 10}); err != nil {
			t.Fatalf("run %d: %v", i, err)
		}
	}
	runs, err := c.Runs(ctx, RunsRequest{Limit: 2})
	if err != nil {
		t.Fatalf("runs: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("got %d runs, want 2", len(runs))
	}
}
