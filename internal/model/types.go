package model

// VersionedRecord captures schema and codec evolution for persistent data.
type VersionedRecord struct {
	SchemaVersion int `json:"schema_version"`
	CodecVersion  int `json:"codec_version"`
}

// SynapseRow is one row of a synapse snapshot: a directed edge and its
// current weight. The field order matches the exported CSV columns
// (pre_neuron,post_neuron,weight), which external visualization tooling
// depends on.
type SynapseRow struct {
	PreNeuron  uint64  `json:"pre_neuron"`
	PostNeuron uint64  `json:"post_neuron"`
	Weight     float32 `json:"weight"`
}

// LearningStats aggregates what the engine has done since construction.
// Mutated only inside the engine's step lock; external consumers always
// receive a copy.
type LearningStats struct {
	TotalUpdates            uint64  `json:"total_updates"`
	HebbianUpdates          uint64  `json:"hebbian_updates"`
	STDPUpdates             uint64  `json:"stdp_updates"`
	RewardUpdates           uint64  `json:"reward_updates"`
	QuarantinedUpdates      uint64  `json:"quarantined_updates"`
	MimicryWarnings         uint64  `json:"mimicry_warnings"`
	AverageWeightChange     float64 `json:"average_weight_change"`
	MemoryConsolidationRate float64 `json:"memory_consolidation_rate"`
	ActiveSynapses          int     `json:"active_synapses"`
	PotentiatedSynapses     int     `json:"potentiated_synapses"`
	DepressedSynapses       int     `json:"depressed_synapses"`
	ConsolidationEvents     uint64  `json:"consolidation_events"`
}

// RunRecord describes one simulation run as persisted in the telemetry store.
type RunRecord struct {
	VersionedRecord
	ID           string `json:"id"`
	CreatedAtUTC string `json:"created_at_utc"`
	Seed         int64  `json:"seed"`
	Neurons      int    `json:"neurons"`
	Synapses     int    `json:"synapses"`
	Steps        int    `json:"steps"`
	Autonomous   bool   `json:"autonomous"`
}

// EpisodeRecord summarizes one episode (a contiguous span of steps) of a run.
type EpisodeRecord struct {
	VersionedRecord
	RunID       string  `json:"run_id"`
	Index       int     `json:"index"`
	Steps       int     `json:"steps"`
	TotalReward float64 `json:"total_reward"`
}

// RewardEvent records one shaped reward application.
type RewardEvent struct {
	Step        uint64  `json:"step"`
	TaskReward  float64 `json:"task_reward"`
	Shaped      float64 `json:"shaped"`
	Novelty     float64 `json:"novelty"`
	Uncertainty float64 `json:"uncertainty"`
	Mimicry     float64 `json:"mimicry"`
}

// StatsSample is a point-in-time learning-stats reading tagged with the
// step it was taken at. The telemetry sampler appends these while a run
// is in progress.
type StatsSample struct {
	Step  uint64        `json:"step"`
	Stats LearningStats `json:"stats"`
}
