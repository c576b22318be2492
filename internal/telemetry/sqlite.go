//go:build sqlite

package telemetry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"cerebrum/internal/model"

	_ "modernc.org/sqlite"
)

// SQLiteStore persists telemetry in a single SQLite file. Records are
// JSON payloads keyed by run id, with schema/codec versions alongside
// for forward-compatibility checks.
type SQLiteStore struct {
	path string

	mu sync.RWMutex
	db *sql.DB
}

func NewSQLiteStore(path string) *SQLiteStore {
	return &SQLiteStore{path: path}
}

func (s *SQLiteStore) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.path == "" {
		return errors.New("sqlite path is required")
	}
	if s.db != nil {
		return nil
	}

	db, err := sql.Open("sqlite", s.path)
	if err != nil {
		return err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return err
	}
	if err := createTables(ctx, db); err != nil {
		_ = db.Close()
		return err
	}

	s.db = db
	return nil
}

func (s *SQLiteStore) SaveRun(ctx context.Context, run model.RunRecord) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}
	payload, err := EncodeRun(run)
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, `
		INSERT INTO runs (id, created_at_utc, schema_version, codec_version, payload)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			created_at_utc = excluded.created_at_utc,
			schema_version = excluded.schema_version,
			codec_version = excluded.codec_version,
			payload = excluded.payload
	`, run.ID, run.CreatedAtUTC, run.SchemaVersion, run.CodecVersion, payload)
	return err
}

func (s *SQLiteStore) GetRun(ctx context.Context, id string) (model.RunRecord, bool, error) {
	db, err := s.getDB()
	if err != nil {
		return model.RunRecord{}, false, err
	}
	var payload []byte
	err = db.QueryRowContext(ctx, `SELECT payload FROM runs WHERE id = ?`, id).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.RunRecord{}, false, nil
		}
		return model.RunRecord{}, false, err
	}
	run, err := DecodeRun(payload)
	if err != nil {
		return model.RunRecord{}, false, fmt.Errorf("decode run %s: %w", id, err)
	}
	return run, true, nil
}

func (s *SQLiteStore) ListRuns(ctx context.Context) ([]model.RunRecord, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, `SELECT payload FROM runs ORDER BY created_at_utc DESC, id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.RunRecord
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		run, err := DecodeRun(payload)
		if err != nil {
			return nil, err
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) SaveEpisodes(ctx context.Context, runID string, episodes []model.EpisodeRecord) error {
	payload, err := EncodeEpisodes(episodes)
	if err != nil {
		return err
	}
	return s.savePayload(ctx, "episodes", runID, payload)
}

func (s *SQLiteStore) GetEpisodes(ctx context.Context, runID string) ([]model.EpisodeRecord, bool, error) {
	payload, ok, err := s.getPayload(ctx, "episodes", runID)
	if err != nil || !ok {
		return nil, ok, err
	}
	eps, err := DecodeEpisodes(payload)
	if err != nil {
		return nil, false, fmt.Errorf("decode episodes %s: %w", runID, err)
	}
	return eps, true, nil
}

func (s *SQLiteStore) SaveRewardEvents(ctx context.Context, runID string, events []model.RewardEvent) error {
	payload, err := EncodeRewardEvents(events)
	if err != nil {
		return err
	}
	return s.savePayload(ctx, "reward_events", runID, payload)
}

func (s *SQLiteStore) GetRewardEvents(ctx context.Context, runID string) ([]model.RewardEvent, bool, error) {
	payload, ok, err := s.getPayload(ctx, "reward_events", runID)
	if err != nil || !ok {
		return nil, ok, err
	}
	events, err := DecodeRewardEvents(payload)
	if err != nil {
		return nil, false, fmt.Errorf("decode reward events %s: %w", runID, err)
	}
	return events, true, nil
}

func (s *SQLiteStore) SaveStatsSamples(ctx context.Context, runID string, samples []model.StatsSample) error {
	payload, err := EncodeStatsSamples(samples)
	if err != nil {
		return err
	}
	return s.savePayload(ctx, "stats_samples", runID, payload)
}

func (s *SQLiteStore) GetStatsSamples(ctx context.Context, runID string) ([]model.StatsSample, bool, error) {
	payload, ok, err := s.getPayload(ctx, "stats_samples", runID)
	if err != nil || !ok {
		return nil, ok, err
	}
	samples, err := DecodeStatsSamples(payload)
	if err != nil {
		return nil, false, fmt.Errorf("decode stats samples %s: %w", runID, err)
	}
	return samples, true, nil
}

func (s *SQLiteStore) SaveFinalStats(ctx context.Context, runID string, stats model.LearningStats) error {
	payload, err := EncodeLearningStats(stats)
	if err != nil {
		return err
	}
	return s.savePayload(ctx, "final_stats", runID, payload)
}

func (s *SQLiteStore) GetFinalStats(ctx context.Context, runID string) (model.LearningStats, bool, error) {
	payload, ok, err := s.getPayload(ctx, "final_stats", runID)
	if err != nil || !ok {
		return model.LearningStats{}, ok, err
	}
	stats, err := DecodeLearningStats(payload)
	if err != nil {
		return model.LearningStats{}, false, fmt.Errorf("decode final stats %s: %w", runID, err)
	}
	return stats, true, nil
}

func (s *SQLiteStore) SaveSnapshot(ctx context.Context, runID string, step uint64, rows []model.SynapseRow) error {
	payload, err := EncodeSnapshot(step, rows)
	if err != nil {
		return err
	}
	return s.savePayload(ctx, "snapshots", runID, payload)
}

func (s *SQLiteStore) GetSnapshot(ctx context.Context, runID string) (uint64, []model.SynapseRow, bool, error) {
	payload, ok, err := s.getPayload(ctx, "snapshots", runID)
	if err != nil || !ok {
		return 0, nil, ok, err
	}
	step, rows, err := DecodeSnapshot(payload)
	if err != nil {
		return 0, nil, false, fmt.Errorf("decode snapshot %s: %w", runID, err)
	}
	return step, rows, true, nil
}

func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func (s *SQLiteStore) savePayload(ctx context.Context, table, runID string, payload []byte) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, fmt.Sprintf(`
		INSERT INTO %s (run_id, payload)
		VALUES (?, ?)
		ON CONFLICT(run_id) DO UPDATE SET
			payload = excluded.payload
	`, table), runID, payload)
	return err
}

func (s *SQLiteStore) getPayload(ctx context.Context, table, runID string) ([]byte, bool, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, false, err
	}
	var payload []byte
	err = db.QueryRowContext(ctx, fmt.Sprintf(`SELECT payload FROM %s WHERE run_id = ?`, table), runID).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return payload, true, nil
}

func (s *SQLiteStore) getDB() (*sql.DB, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.db == nil {
		return nil, errors.New("store is not initialized")
	}
	return s.db, nil
}

func createTables(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			created_at_utc TEXT NOT NULL,
			schema_version INTEGER NOT NULL,
			codec_version INTEGER NOT NULL,
			payload BLOB NOT NULL
		);
		CREATE TABLE IF NOT EXISTS episodes (
			run_id TEXT PRIMARY KEY,
			payload BLOB NOT NULL
		);
		CREATE TABLE IF NOT EXISTS reward_events (
			run_id TEXT PRIMARY KEY,
			payload BLOB NOT NULL
		);
		CREATE TABLE IF NOT EXISTS stats_samples (
			run_id TEXT PRIMARY KEY,
			payload BLOB NOT NULL
		);
		CREATE TABLE IF NOT EXISTS final_stats (
			run_id TEXT PRIMARY KEY,
			payload BLOB NOT NULL
		);
		CREATE TABLE IF NOT EXISTS snapshots (
			run_id TEXT PRIMARY KEY,
			payload BLOB NOT NULL
		);
	`)
	return err
}
