package telemetry

import (
	"encoding/json"
	"errors"

	"cerebrum/internal/model"
)

const (
	CurrentSchemaVersion = 1
	CurrentCodecVersion  = 1
)

var ErrVersionMismatch = errors.New("record version mismatch")

func EncodeRun(r model.RunRecord) ([]byte, error) {
	return json.Marshal(r)
}

func DecodeRun(data []byte) (model.RunRecord, error) {
	var run model.RunRecord
	if err := json.Unmarshal(data, &run); err != nil {
		return model.RunRecord{}, err
	}
	if err := checkVersion(run.VersionedRecord); err != nil {
		return model.RunRecord{}, err
	}
	return run, nil
}

func EncodeEpisodes(eps []model.EpisodeRecord) ([]byte, error) {
	return json.Marshal(eps)
}

func DecodeEpisodes(data []byte) ([]model.EpisodeRecord, error) {
	var eps []model.EpisodeRecord
	if err := json.Unmarshal(data, &eps); err != nil {
		return nil, err
	}
	for _, ep := range eps {
		if err := checkVersion(ep.VersionedRecord); err != nil {
			return nil, err
		}
	}
	return eps, nil
}

func EncodeRewardEvents(events []model.RewardEvent) ([]byte, error) {
	return json.Marshal(events)
}

func DecodeRewardEvents(data []byte) ([]model.RewardEvent, error) {
	var events []model.RewardEvent
	if err := json.Unmarshal(data, &events); err != nil {
		return nil, err
	}
	return events, nil
}

func EncodeStatsSamples(samples []model.StatsSample) ([]byte, error) {
	return json.Marshal(samples)
}

func DecodeStatsSamples(data []byte) ([]model.StatsSample, error) {
	var samples []model.StatsSample
	if err := json.Unmarshal(data, &samples); err != nil {
		return nil, err
	}
	return samples, nil
}

func EncodeLearningStats(stats model.LearningStats) ([]byte, error) {
	return json.Marshal(stats)
}

func DecodeLearningStats(data []byte) (model.LearningStats, error) {
	var stats model.LearningStats
	if err := json.Unmarshal(data, &stats); err != nil {
		return model.LearningStats{}, err
	}
	return stats, nil
}

type snapshotPayload struct {
	Step uint64             `json:"step"`
	Rows []model.SynapseRow `json:"rows"`
}

func EncodeSnapshot(step uint64, rows []model.SynapseRow) ([]byte, error) {
	return json.Marshal(snapshotPayload{Step: step, Rows: rows})
}

func DecodeSnapshot(data []byte) (uint64, []model.SynapseRow, error) {
	var payload snapshotPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return 0, nil, err
	}
	return payload.Step, payload.Rows, nil
}

func checkVersion(v model.VersionedRecord) error {
	if v.SchemaVersion > CurrentSchemaVersion || v.CodecVersion > CurrentCodecVersion {
		return ErrVersionMismatch
	}
	return nil
}
