package telemetry

import (
	"context"
	"sort"
	"sync"

	"cerebrum/internal/model"
)

type memorySnapshot struct {
	step uint64
	rows []model.SynapseRow
}

// MemoryStore is the default in-process telemetry backend.
type MemoryStore struct {
	mu          sync.RWMutex
	initialized bool
	runs        map[string]model.RunRecord
	episodes    map[string][]model.EpisodeRecord
	rewards     map[string][]model.RewardEvent
	samples     map[string][]model.StatsSample
	finalStats  map[string]model.LearningStats
	snapshots   map[string]memorySnapshot
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Init(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.initialized = true
	s.runs = make(map[string]model.RunRecord)
	s.episodes = make(map[string][]model.EpisodeRecord)
	s.rewards = make(map[string][]model.RewardEvent)
	s.samples = make(map[string][]model.StatsSample)
	s.finalStats = make(map[string]model.LearningStats)
	s.snapshots = make(map[string]memorySnapshot)
	return nil
}

func (s *MemoryStore) SaveRun(_ context.Context, run model.RunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.runs[run.ID] = run
	return nil
}

func (s *MemoryStore) GetRun(_ context.Context, id string) (model.RunRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, ok := s.runs[id]
	return run, ok, nil
}

func (s *MemoryStore) ListRuns(_ context.Context) ([]model.RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.RunRecord, 0, len(s.runs))
	for _, run := range s.runs {
		out = append(out, run)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAtUTC != out[j].CreatedAtUTC {
			return out[i].CreatedAtUTC > out[j].CreatedAtUTC
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *MemoryStore) SaveEpisodes(_ context.Context, runID string, episodes []model.EpisodeRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.episodes[runID] = append([]model.EpisodeRecord(nil), episodes...)
	return nil
}

func (s *MemoryStore) GetEpisodes(_ context.Context, runID string) ([]model.EpisodeRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	eps, ok := s.episodes[runID]
	return append([]model.EpisodeRecord(nil), eps...), ok, nil
}

func (s *MemoryStore) SaveRewardEvents(_ context.Context, runID string, events []model.RewardEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.rewards[runID] = append([]model.RewardEvent(nil), events...)
	return nil
}

func (s *MemoryStore) GetRewardEvents(_ context.Context, runID string) ([]model.RewardEvent, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	events, ok := s.rewards[runID]
	return append([]model.RewardEvent(nil), events...), ok, nil
}

func (s *MemoryStore) SaveStatsSamples(_ context.Context, runID string, samples []model.StatsSample) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.samples[runID] = append([]model.StatsSample(nil), samples...)
	return nil
}

func (s *MemoryStore) GetStatsSamples(_ context.Context, runID string) ([]model.StatsSample, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	samples, ok := s.samples[runID]
	return append([]model.StatsSample(nil), samples...), ok, nil
}

func (s *MemoryStore) SaveFinalStats(_ context.Context, runID string, stats model.LearningStats) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.finalStats[runID] = stats
	return nil
}

func (s *MemoryStore) GetFinalStats(_ context.Context, runID string) (model.LearningStats, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats, ok := s.finalStats[runID]
	return stats, ok, nil
}

func (s *MemoryStore) SaveSnapshot(_ context.Context, runID string, step uint64, rows []model.SynapseRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.snapshots[runID] = memorySnapshot{
		step: step,
		rows: append([]model.SynapseRow(nil), rows...),
	}
	return nil
}

func (s *MemoryStore) GetSnapshot(_ context.Context, runID string) (uint64, []model.SynapseRow, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap, ok := s.snapshots[runID]
	return snap.step, append([]model.SynapseRow(nil), snap.rows...), ok, nil
}
