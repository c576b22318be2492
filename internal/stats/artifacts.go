package stats

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"cerebrum/internal/model"
)

const runIndexFile = "run_index.json"

// RunConfig is the full knob set of one simulation run, persisted as
// config.json inside the run's artifact directory so a run can be
// inspected or reproduced later.
type RunConfig struct {
	RunID                string  `json:"run_id"`
	Seed                 int64   `json:"seed"`
	Neurons              int     `json:"neurons"`
	Fanout               int     `json:"fanout"`
	Steps                int     `json:"steps"`
	Autonomous           bool    `json:"autonomous"`
	AutonomousIntervalMS int64   `json:"autonomous_interval_ms,omitempty"`
	SampleInterval       int     `json:"sample_interval"`
	EpisodeLength        int     `json:"episode_length"`
	HebbRate             float64 `json:"hebb_rate"`
	STDPRate             float64 `json:"stdp_rate"`
	STDPRateMultiplier   float64 `json:"stdp_rate_multiplier"`
	STDPWindowSteps      int     `json:"stdp_window_steps"`
	STDPTau              float64 `json:"stdp_tau"`
	TraceLambda          float64 `json:"trace_lambda"`
	TraceEtaElig         float64 `json:"trace_eta_elig"`
	AutoEligibility      bool    `json:"auto_eligibility"`
	Alpha                float64 `json:"alpha"`
	Gamma                float64 `json:"gamma"`
	Eta                  float64 `json:"eta"`
	Kappa                float64 `json:"kappa"`
	NoveltyWindow        int     `json:"novelty_window"`
	AttentionMode        string  `json:"attention_mode"`
	AttentionAmin        float64 `json:"attention_amin"`
	AttentionAmax        float64 `json:"attention_amax"`
	AttentionBoost       float64 `json:"attention_boost"`
	AttentionAnnealMS    int64   `json:"attention_anneal_ms,omitempty"`
	AttentionTopK        int     `json:"attention_top_k"`
	CompetenceMode       string  `json:"competence_mode"`
	CompetenceRho        float64 `json:"competence_rho"`
	CompetencePGate      float64 `json:"competence_p_gate"`
	HomeostasisEnabled   bool    `json:"homeostasis_enabled"`
	HomeostasisEta       float64 `json:"homeostasis_eta"`
	HomeostasisTarget    float64 `json:"homeostasis_target"`
	ConsolidateEveryMS   int64   `json:"consolidate_every_ms,omitempty"`
	ConsolidateStrength  float64 `json:"consolidate_strength"`
	PruneThreshold       float64 `json:"prune_threshold"`
	ChaosSteps           int     `json:"chaos_steps,omitempty"`
	ConsolidateSteps     int     `json:"consolidate_steps,omitempty"`
	MimicryEnabled       bool    `json:"mimicry_enabled"`
	MimicryWeight        float64 `json:"mimicry_weight,omitempty"`
	MimicryInternal      bool    `json:"mimicry_internal,omitempty"`
	MimicryMirror        bool    `json:"mimicry_mirror,omitempty"`
	StoreKind            string  `json:"store_kind,omitempty"`
}

// RunArtifacts is everything WriteRunArtifacts lays down for a run.
type RunArtifacts struct {
	Config       RunConfig             `json:"config"`
	FinalStats   model.LearningStats   `json:"final_stats"`
	RewardEvents []model.RewardEvent   `json:"reward_events,omitempty"`
	Episodes     []model.EpisodeRecord `json:"episodes,omitempty"`
}

type RunIndexEntry struct {
	RunID           string  `json:"run_id"`
	Seed            int64   `json:"seed"`
	Neurons         int     `json:"neurons"`
	Synapses        int     `json:"synapses"`
	Steps           int     `json:"steps"`
	Autonomous      bool    `json:"autonomous"`
	TotalUpdates    uint64  `json:"total_updates"`
	ActiveSynapses  int     `json:"active_synapses"`
	AvgWeightChange float64 `json:"avg_weight_change"`
	CreatedAtUTC    string  `json:"created_at_utc"`
}

func WriteRunArtifacts(baseDir string, artifacts RunArtifacts) (string, error) {
	if artifacts.Config.RunID == "" {
		return "", fmt.Errorf("run id is required")
	}

	runDir := filepath.Join(baseDir, artifacts.Config.RunID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return "", err
	}

	if err := writeJSON(filepath.Join(runDir, "config.json"), artifacts.Config); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(runDir, "final_stats.json"), artifacts.FinalStats); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(runDir, "reward_events.json"), artifacts.RewardEvents); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(runDir, "episodes.json"), artifacts.Episodes); err != nil {
		return "", err
	}

	return runDir, nil
}

func AppendRunIndex(baseDir string, entry RunIndexEntry) error {
	if entry.RunID == "" {
		return fmt.Errorf("run id is required")
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return err
	}

	index, err := ListRunIndex(baseDir)
	if err != nil {
		return err
	}

	for i := range index {
		if index[i].RunID == entry.RunID {
			index[i] = entry
			return writeJSON(filepath.Join(baseDir, runIndexFile), index)
		}
	}

	index = append(index, entry)
	return writeJSON(filepath.Join(baseDir, runIndexFile), index)
}

func ListRunIndex(baseDir string) ([]RunIndexEntry, error) {
	path := filepath.Join(baseDir, runIndexFile)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunIndexEntry{}, nil
		}
		return nil, err
	}

	var entries []RunIndexEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, err
	}

	type indexedEntry struct {
		entry RunIndexEntry
		idx   int
	}
	indexed := make([]indexedEntry, len(entries))
	for i := range entries {
		indexed[i] = indexedEntry{entry: entries[i], idx: i}
	}
	sort.Slice(indexed, func(i, j int) bool {
		if indexed[i].entry.CreatedAtUTC == indexed[j].entry.CreatedAtUTC {
			// Prefer later appended entries for equal timestamps.
			return indexed[i].idx > indexed[j].idx
		}
		return indexed[i].entry.CreatedAtUTC > indexed[j].entry.CreatedAtUTC
	})

	sorted := make([]RunIndexEntry, 0, len(indexed))
	for _, item := range indexed {
		sorted = append(sorted, item.entry)
	}
	return sorted, nil
}

func ReadRunConfig(baseDir, runID string) (RunConfig, bool, error) {
	path := filepath.Join(baseDir, runID, "config.json")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return RunConfig{}, false, nil
		}
		return RunConfig{}, false, err
	}

	var cfg RunConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return RunConfig{}, false, err
	}
	return cfg, true, nil
}

func WriteRunConfig(baseDir, runID string, cfg RunConfig) error {
	if strings.TrimSpace(runID) == "" {
		return fmt.Errorf("run id is required")
	}
	if strings.TrimSpace(cfg.RunID) == "" {
		cfg.RunID = strings.TrimSpace(runID)
	}
	if cfg.RunID != strings.TrimSpace(runID) {
		return fmt.Errorf("run config run id mismatch: got=%s want=%s", cfg.RunID, strings.TrimSpace(runID))
	}
	runDir := filepath.Join(baseDir, runID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return err
	}
	return writeJSON(filepath.Join(runDir, "config.json"), cfg)
}

func ReadFinalStats(baseDir, runID string) (model.LearningStats, bool, error) {
	path := filepath.Join(baseDir, runID, "final_stats.json")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return model.LearningStats{}, false, nil
		}
		return model.LearningStats{}, false, err
	}

	var final model.LearningStats
	if err := json.Unmarshal(data, &final); err != nil {
		return model.LearningStats{}, false, err
	}
	return final, true, nil
}

func writeJSON(path string, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o644)
}
