package stats

import (
	"os"
	"path/filepath"
	"testing"

	"cerebrum/internal/model"
)

func TestWriteRunArtifacts(t *testing.T) {
	base := t.TempDir()
	artifacts := RunArtifacts{
		Config: RunConfig{
			RunID:   "run-1",
			Seed:    42,
			Neurons: 64,
			Fanout:  4,
			Steps:   500,
		},
		FinalStats: model.LearningStats{TotalUpdates: 100, ActiveSynapses: 200},
		RewardEvents: []model.RewardEvent{
			{Step: 10, TaskReward: 1, Shaped: 0.8},
		},
	}

	runDir, err := WriteRunArtifacts(base, artifacts)
	if err != nil {
		t.Fatalf("write artifacts: %v", err)
	}
	if runDir != filepath.Join(base, "run-1") {
		t.Fatalf("run dir = %s", runDir)
	}
	for _, name := range []string{"config.json", "final_stats.json", "reward_events.json", "episodes.json"} {
		if _, err := os.Stat(filepath.Join(runDir, name)); err != nil {
			t.Fatalf("missing %s: %v", name, err)
		}
	}

	cfg, ok, err := ReadRunConfig(base, "run-1")
	if err != nil || !ok {
		t.Fatalf("read config: ok=%v err=%v", ok, err)
	}
	if cfg != artifacts.Config {
		t.Fatalf("config = %+v, want %+v", cfg, artifacts.Config)
	}

	final, ok, err := ReadFinalStats(base, "run-1")
	if err != nil || !ok {
		t.Fatalf("read final: ok=%v err=%v", ok, err)
	}
	if final != artifacts.FinalStats {
		t.Fatalf("final = %+v, want %+v", final, artifacts.FinalStats)
	}
}

func TestWriteRunArtifactsRequiresID(t *testing.T) {
	if _, err := WriteRunArtifacts(t.TempDir(), RunArtifacts{}); err == nil {
		t.Fatal("expected error for empty run id")
	}
}

func TestReadRunConfigMissing(t *testing.T) {
	_, ok, err := ReadRunConfig(t.TempDir(), "nope")
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if ok {
		t.Fatal("missing config reported as present")
	}
}

func TestRunIndexOrderingAndUpdate(t *testing.T) {
	base := t.TempDir()

	entries := []RunIndexEntry{
		{RunID: "old", CreatedAtUTC: "2026-08-28T10:00:00Z", Steps: 100},
		{RunID: "new", CreatedAtUTC: "2026-08-29T10:00:00Z", Steps: 200},
	}
	for _, e := range entries {
		if err := AppendRunIndex(base, e); err != nil {
			t.Fatalf("append %s: %v", e.RunID, err)
		}
	}

	index, err := ListRunIndex(base)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(index) != 2 || index[0].RunID != "new" || index[1].RunID != "old" {
		t.Fatalf("index = %+v", index)
	}

	// Re-appending an existing run id updates in place.
	if err := AppendRunIndex(base, RunIndexEntry{RunID: "old", CreatedAtUTC: "2026-08-28T10:00:00Z", Steps: 150}); err != nil {
		t.Fatalf("update: %v", err)
	}
	index, err = ListRunIndex(base)
	if err != nil {
		t.Fatalf("list after update: %v", err)
	}
	if len(index) != 2 {
		t.Fatalf("got %d entries after update, want 2", len(index))
	}
	if index[1].Steps != 150 {
		t.Fatalf("updated steps = %d, want 150", index[1].Steps)
	}
}

func TestListRunIndexEmpty(t *testing.T) {
	index, err := ListRunIndex(t.TempDir())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(index) != 0 {
		t.Fatalf("got %d entries, want 0", len(index))
	}
}

func TestWriteRunConfigIDMismatch(t *testing.T) {
	base := t.TempDir()
	if err := WriteRunConfig(base, "a", RunConfig{RunID: "b"}); err == nil {
		t.Fatal("expected error for mismatched run id")
	}
	if err := WriteRunConfig(base, "a", RunConfig{}); err != nil {
		t.Fatalf("write with inferred id: %v", err)
	}
	cfg, ok, err := ReadRunConfig(base, "a")
	if err != nil || !ok {
		t.Fatalf("read: ok=%v err=%v", ok, err)
	}
	if cfg.RunID != "a" {
		t.Fatalf("run id = %s, want a", cfg.RunID)
	}
}
