package telemetry

import (
	"context"

	"cerebrum/internal/model"
)

// Store is the telemetry sink for simulation runs: run metadata,
// episodes, shaped-reward events, periodic learning-stats samples, and
// synapse snapshots. The engine never talks to a Store directly; the
// driver and the telemetry sampler do.
type Store interface {
	Init(ctx context.Context) error
	SaveRun(ctx context.Context, run model.RunRecord) error
	GetRun(ctx context.Context, id string) (model.RunRecord, bool, error)
	ListRuns(ctx context.Context) ([]model.RunRecord, error)
	SaveEpisodes(ctx context.Context, runID string, episodes []model.EpisodeRecord) error
	GetEpisodes(ctx context.Context, runID string) ([]model.EpisodeRecord, bool, error)
	SaveRewardEvents(ctx context.Context, runID string, events []model.RewardEvent) error
	GetRewardEvents(ctx context.Context, runID string) ([]model.RewardEvent, bool, error)
	SaveStatsSamples(ctx context.Context, runID string, samples []model.StatsSample) error
	GetStatsSamples(ctx context.Context, runID string) ([]model.StatsSample, bool, error)
	SaveFinalStats(ctx context.Context, runID string, stats model.LearningStats) error
	GetFinalStats(ctx context.Context, runID string) (model.LearningStats, bool, error)
	SaveSnapshot(ctx context.Context, runID string, step uint64, rows []model.SynapseRow) error
	GetSnapshot(ctx context.Context, runID string) (uint64, []model.SynapseRow, bool, error)
}
