package stats

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"cerebrum/internal/model"
)

func TestLearningLogAppendAndSummary(t *testing.T) {
	log := NewLearningLog()
	if log.Rows() != 0 {
		t.Fatalf("fresh log has %d rows", log.Rows())
	}

	log.Append(model.StatsSample{
		Step: 25,
		Stats: model.LearningStats{
			TotalUpdates:            10,
			ActiveSynapses:          4,
			AverageWeightChange:     0.25,
			MemoryConsolidationRate: 1,
		},
	})
	log.Append(model.StatsSample{
		Step: 50,
		Stats: model.LearningStats{
			TotalUpdates:            30,
			ActiveSynapses:          8,
			AverageWeightChange:     0.75,
			MemoryConsolidationRate: 0.5,
		},
	})

	if log.Rows() != 2 {
		t.Fatalf("rows = %d, want 2", log.Rows())
	}
	sum := log.Summary()
	if sum.Samples != 2 {
		t.Fatalf("samples = %d, want 2", sum.Samples)
	}
	if sum.MeanActive != 6 {
		t.Fatalf("mean active = %v, want 6", sum.MeanActive)
	}
	if sum.MeanAvgChange != 0.5 {
		t.Fatalf("mean avg change = %v, want 0.5", sum.MeanAvgChange)
	}
	if sum.MeanConsolidation != 0.75 {
		t.Fatalf("mean consolidation = %v, want 0.75", sum.MeanConsolidation)
	}
}

func TestLearningLogEmptySummary(t *testing.T) {
	log := NewLearningLog()
	if sum := log.Summary(); sum != (LogSummary{}) {
		t.Fatalf("empty summary = %+v", sum)
	}
}

func TestLearningLogWriteCSV(t *testing.T) {
	log := NewLearningLog()
	log.Append(model.StatsSample{Step: 25, Stats: model.LearningStats{TotalUpdates: 10}})

	runDir := filepath.Join(t.TempDir(), "run-1")
	if err := log.WriteCSV(runDir); err != nil {
		t.Fatalf("write csv: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(runDir, "stats_log.csv"))
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want header plus one row", len(lines))
	}
	if !strings.Contains(lines[0], "Step") || !strings.Contains(lines[0], "TotalUpdates") {
		t.Fatalf("header = %q", lines[0])
	}
	if !strings.Contains(lines[1], "25") || !strings.Contains(lines[1], "10") {
		t.Fatalf("row = %q", lines[1])
	}
}
