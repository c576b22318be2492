package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	cerebrumapi "cerebrum/pkg/cerebrum"
)

// loadRunRequestFromConfig reads a JSON run config. Field spellings
// match the config.json artifact written after each run, so a prior
// run's config can be replayed directly.
func loadRunRequestFromConfig(path string) (cerebrumapi.RunRequest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return cerebrumapi.RunRequest{}, err
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return cerebrumapi.RunRequest{}, err
	}

	var req cerebrumapi.RunRequest
	if v, ok := asInt64(raw["seed"]); ok {
		req.Seed = v
	}
	if v, ok := asInt(raw["neurons"]); ok {
		req.Neurons = v
	}
	if v, ok := asInt(raw["fanout"]); ok {
		req.Fanout = v
	}
	if v, ok := asInt(raw["steps"]); ok {
		req.Steps = v
	}
	if v, ok := asInt(raw["sample_interval"]); ok {
		req.SampleInterval = v
	}
	if v, ok := asInt(raw["episode_length"]); ok {
		req.EpisodeLength = v
	}
	if v, ok := asBool(raw["autonomous"]); ok {
		req.Autonomous = v
	}
	if v, ok := asInt(raw["autonomous_interval_ms"]); ok {
		req.AutonomousInterval = time.Duration(v) * time.Millisecond
	}
	if v, ok := asFloat64(raw["hebb_rate"]); ok {
		req.HebbRate = cerebrumapi.Float64(v)
	}
	if v, ok := asFloat64(raw["stdp_rate"]); ok {
		req.STDPRate = v
	}
	if v, ok := asFloat64(raw["stdp_rate_multiplier"]); ok {
		req.STDPRateMultiplier = v
	}
	if v, ok := asFloat64(raw["stdp_window_steps"]); ok {
		req.STDPWindowSteps = v
	}
	if v, ok := asFloat64(raw["stdp_tau"]); ok {
		req.STDPTau = v
	}
	if v, ok := asFloat64(raw["trace_lambda"]); ok {
		req.TraceLambda = cerebrumapi.Float64(v)
	}
	if v, ok := asFloat64(raw["trace_eta_elig"]); ok {
		req.TraceEtaElig = cerebrumapi.Float64(v)
	}
	if v, ok := asBool(raw["auto_eligibility"]); ok {
		req.AutoEligibility = v
	}
	if v, ok := asFloat64(raw["alpha"]); ok {
		req.Alpha = v
	}
	if v, ok := asFloat64(raw["gamma"]); ok {
		req.Gamma = cerebrumapi.Float64(v)
	}
	if v, ok := asFloat64(raw["eta"]); ok {
		req.Eta = v
	}
	if v, ok := asFloat64(raw["kappa"]); ok {
		req.Kappa = cerebrumapi.Float64(v)
	}
	if v, ok := asBool(raw["phase4_unsafe"]); ok {
		req.UnsafePhase4 = v
	}
	if v, ok := asInt(raw["novelty_window"]); ok {
		req.NoveltyWindow = v
	}
	if v, ok := asString(raw["attention_mode"]); ok {
		req.AttentionMode = v
	}
	if v, ok := asFloat64(raw["attention_amin"]); ok {
		req.AttentionAmin = v
	}
	if v, ok := asFloat64(raw["attention_amax"]); ok {
		req.AttentionAmax = v
	}
	if v, ok := asFloat64(raw["attention_boost"]); ok {
		req.AttentionBoost = v
	}
	if v, ok := asInt(raw["attention_anneal_ms"]); ok {
		req.AttentionAnneal = time.Duration(v) * time.Millisecond
	}
	if v, ok := asInt(raw["attention_top_k"]); ok {
		req.AttentionTopK = v
	}
	if v, ok := asString(raw["competence_mode"]); ok {
		req.CompetenceMode = v
	}
	if v, ok := asFloat64(raw["competence_rho"]); ok {
		req.CompetenceRho = cerebrumapi.Float64(v)
	}
	if v, ok := asFloat64(raw["competence_p_gate"]); ok {
		req.CompetencePGate = cerebrumapi.Float64(v)
	}
	if v, ok := asBool(raw["homeostasis_enabled"]); ok {
		req.HomeostasisEnabled = v
	}
	if v, ok := asFloat64(raw["homeostasis_eta"]); ok {
		req.HomeostasisEta = v
	}
	if v, ok := asFloat64(raw["homeostasis_target"]); ok {
		req.HomeostasisTarget = v
	}
	if v, ok := asInt(raw["consolidate_every_ms"]); ok {
		req.ConsolidateEvery = time.Duration(v) * time.Millisecond
	}
	if v, ok := asFloat64(raw["consolidate_strength"]); ok {
		req.ConsolidateStrength = v
	}
	if v, ok := asFloat64(raw["prune_threshold"]); ok {
		req.PruneThreshold = v
	}
	if v, ok := asInt(raw["chaos_steps"]); ok {
		req.ChaosSteps = v
	}
	if v, ok := asInt(raw["consolidate_steps"]); ok {
		req.ConsolidateSteps = v
	}
	if v, ok := asBool(raw["mimicry_enabled"]); ok {
		req.MimicryEnabled = v
	}
	if v, ok := asFloat64(raw["mimicry_weight"]); ok {
		req.MimicryWeight = v
	}
	if v, ok := asBool(raw["mimicry_internal"]); ok {
		req.MimicryInternal = v
	}
	if v, ok := asBool(raw["mimicry_mirror"]); ok {
		req.MimicryMirror = v
	}
	return req, nil
}

func loadOrDefaultRunRequest(configPath string) (cerebrumapi.RunRequest, error) {
	if configPath == "" {
		return cerebrumapi.RunRequest{}, nil
	}
	req, err := loadRunRequestFromConfig(configPath)
	if err != nil {
		return cerebrumapi.RunRequest{}, fmt.Errorf("load config: %w", err)
	}
	return req, nil
}

func overrideFromFlags(req *cerebrumapi.RunRequest, set map[string]bool, flagValue map[string]any) error {
	for name := range set {
		v, ok := flagValue[name]
		if !ok {
			continue
		}
		switch name {
		case "seed":
			req.Seed = v.(int64)
		case "neurons":
			req.Neurons = v.(int)
		case "fanout":
			req.Fanout = v.(int)
		case "steps":
			req.Steps = v.(int)
		case "sample-interval":
			req.SampleInterval = v.(int)
		case "episode-length":
			req.EpisodeLength = v.(int)
		case "autonomous":
			req.Autonomous = v.(bool)
		case "autonomous-interval-ms":
			req.AutonomousInterval = time.Duration(v.(int)) * time.Millisecond
		case "hebbian-rate":
			req.HebbRate = cerebrumapi.Float64(v.(float64))
		case "stdp-rate":
			req.STDPRate = v.(float64)
		case "stdp-rate-multiplier":
			req.STDPRateMultiplier = v.(float64)
		case "stdp-window":
			req.STDPWindowSteps = v.(float64)
		case "stdp-tau":
			req.STDPTau = v.(float64)
		case "lambda":
			req.TraceLambda = cerebrumapi.Float64(v.(float64))
		case "eta-elig":
			req.TraceEtaElig = cerebrumapi.Float64(v.(float64))
		case "auto-eligibility":
			req.AutoEligibility = v.(bool)
		case "alpha":
			req.Alpha = v.(float64)
		case "gamma":
			req.Gamma = cerebrumapi.Float64(v.(float64))
		case "eta":
			req.Eta = v.(float64)
		case "kappa":
			req.Kappa = cerebrumapi.Float64(v.(float64))
		case "phase4-unsafe":
			req.UnsafePhase4 = v.(bool)
		case "novelty-window":
			req.NoveltyWindow = v.(int)
		case "attention-mode":
			req.AttentionMode = v.(string)
		case "attention-amin":
			req.AttentionAmin = v.(float64)
		case "attention-amax":
			req.AttentionAmax = v.(float64)
		case "attention-boost":
			req.AttentionBoost = v.(float64)
		case "attention-anneal-ms":
			req.AttentionAnneal = time.Duration(v.(int)) * time.Millisecond
		case "attention-topk":
			req.AttentionTopK = v.(int)
		case "competence-mode":
			req.CompetenceMode = v.(string)
		case "competence-rho":
			req.CompetenceRho = cerebrumapi.Float64(v.(float64))
		case "p-gate":
			req.CompetencePGate = cerebrumapi.Float64(v.(float64))
		case "homeostasis":
			req.HomeostasisEnabled = v.(bool)
		case "homeostasis-eta":
			req.HomeostasisEta = v.(float64)
		case "homeostasis-target":
			req.HomeostasisTarget = v.(float64)
		case "update-interval-ms":
			req.ConsolidateEvery = time.Duration(v.(int)) * time.Millisecond
		case "consolidation-strength":
			req.ConsolidateStrength = v.(float64)
		case "prune-threshold":
			req.PruneThreshold = v.(float64)
		case "chaos-steps":
			req.ChaosSteps = v.(int)
		case "consolidate-steps":
			req.ConsolidateSteps = v.(int)
		case "mimicry":
			req.MimicryEnabled = v.(bool)
		case "mimicry-weight":
			req.MimicryWeight = v.(float64)
		case "mimicry-internal":
			req.MimicryInternal = v.(bool)
		case "mimicry-mirror":
			req.MimicryMirror = v.(bool)
		default:
			return fmt.Errorf("unhandled override flag: %s", name)
		}
	}
	return nil
}

func asString(v any) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

func asBool(v any) (bool, bool) {
	b, ok := v.(bool)
	return b, ok
}

func asInt(v any) (int, bool) {
	switch x := v.(type) {
	case int:
		return x, true
	case float64:
		return int(x), true
	default:
		return 0, false
	}
}

func asInt64(v any) (int64, bool) {
	switch x := v.(type) {
	case int64:
		return x, true
	case int:
		return int64(x), true
	case float64:
		return int64(x), true
	default:
		return 0, false
	}
}

func asFloat64(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case int:
		return float64(x), true
	default:
		return 0, false
	}
}
