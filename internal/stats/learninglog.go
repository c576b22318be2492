package stats

import (
	"os"
	"path/filepath"

	"github.com/emer/etable/agg"
	"github.com/emer/etable/etable"
	"github.com/emer/etable/etensor"

	"cerebrum/internal/model"
)

// LearningLog accumulates per-sample learning statistics in an etable
// table, one row per telemetry sample. The table is written out as
// stats_log.csv inside the run's artifact directory.
type LearningLog struct {
	table *etable.Table
}

func NewLearningLog() *LearningLog {
	dt := &etable.Table{}
	sch := etable.Schema{
		{Name: "Step", Type: etensor.INT64, CellShape: nil, DimNames: nil},
		{Name: "TotalUpdates", Type: etensor.INT64, CellShape: nil, DimNames: nil},
		{Name: "HebbianUpdates", Type: etensor.INT64, CellShape: nil, DimNames: nil},
		{Name: "STDPUpdates", Type: etensor.INT64, CellShape: nil, DimNames: nil},
		{Name: "RewardUpdates", Type: etensor.INT64, CellShape: nil, DimNames: nil},
		{Name: "QuarantinedUpdates", Type: etensor.INT64, CellShape: nil, DimNames: nil},
		{Name: "ActiveSynapses", Type: etensor.INT64, CellShape: nil, DimNames: nil},
		{Name: "PotentiatedSynapses", Type: etensor.INT64, CellShape: nil, DimNames: nil},
		{Name: "DepressedSynapses", Type: etensor.INT64, CellShape: nil, DimNames: nil},
		{Name: "AvgWeightChange", Type: etensor.FLOAT64, CellShape: nil, DimNames: nil},
		{Name: "ConsolidationRate", Type: etensor.FLOAT64, CellShape: nil, DimNames: nil},
	}
	dt.SetFromSchema(sch, 0)
	return &LearningLog{table: dt}
}

func (l *LearningLog) Append(sample model.StatsSample) {
	dt := l.table
	row := dt.Rows
	dt.SetNumRows(row + 1)
	dt.SetCellFloat("Step", row, float64(sample.Step))
	dt.SetCellFloat("TotalUpdates", row, float64(sample.Stats.TotalUpdates))
	dt.SetCellFloat("HebbianUpdates", row, float64(sample.Stats.HebbianUpdates))
	dt.SetCellFloat("STDPUpdates", row, float64(sample.Stats.STDPUpdates))
	dt.SetCellFloat("RewardUpdates", row, float64(sample.Stats.RewardUpdates))
	dt.SetCellFloat("QuarantinedUpdates", row, float64(sample.Stats.QuarantinedUpdates))
	dt.SetCellFloat("ActiveSynapses", row, float64(sample.Stats.ActiveSynapses))
	dt.SetCellFloat("PotentiatedSynapses", row, float64(sample.Stats.PotentiatedSynapses))
	dt.SetCellFloat("DepressedSynapses", row, float64(sample.Stats.DepressedSynapses))
	dt.SetCellFloat("AvgWeightChange", row, sample.Stats.AverageWeightChange)
	dt.SetCellFloat("ConsolidationRate", row, sample.Stats.MemoryConsolidationRate)
}

func (l *LearningLog) Rows() int {
	return l.table.Rows
}

// Summary reports the mean of a few headline columns across all samples.
type LogSummary struct {
	Samples           int     `json:"samples"`
	MeanActive        float64 `json:"mean_active"`
	MeanAvgChange     float64 `json:"mean_avg_change"`
	MeanConsolidation float64 `json:"mean_consolidation"`
}

func (l *LearningLog) Summary() LogSummary {
	if l.table.Rows == 0 {
		return LogSummary{}
	}
	ix := etable.NewIdxView(l.table)
	return LogSummary{
		Samples:           l.table.Rows,
		MeanActive:        agg.Mean(ix, "ActiveSynapses")[0],
		MeanAvgChange:     agg.Mean(ix, "AvgWeightChange")[0],
		MeanConsolidation: agg.Mean(ix, "ConsolidationRate")[0],
	}
}

// WriteCSV writes the log as a tab-separated table under runDir.
func (l *LearningLog) WriteCSV(runDir string) error {
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return err
	}
	path := filepath.Join(runDir, "stats_log.csv")
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	dt := l.table
	if _, err := dt.WriteCSVHeaders(file, etable.Tab); err != nil {
		return err
	}
	for row := 0; row < dt.Rows; row++ {
		if err := dt.WriteCSVRow(file, row, etable.Tab); err != nil {
			return err
		}
	}
	return nil
}
