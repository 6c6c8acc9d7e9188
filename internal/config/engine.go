package config

import (
	"os"
	"strconv"
	"time"
)

// EngineConfig holds the enumerated recognized options from spec.md §6.
// Unknown environment keys under the CALLTRACK_ prefix are rejected at
// startup by LoadEngineConfig — see recognizedEnvKeys.
type EngineConfig struct {
	DataDir                string
	WorkerPoolSize         int
	LiveCyclePeriod        time.Duration
	TDAlpha                float64
	WinnerATHThreshold     float64
	MinSignalsForReputation int
	AmbiguousSymbolBlocklistPath string
	WrappedNativeAliasesPath    string
	ProvidersFile               string
	RedisAddr                   string
}

// DefaultEngineConfig returns spec.md §6's documented defaults.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		DataDir:                 "./data",
		WorkerPoolSize:          5,
		LiveCyclePeriod:         2 * time.Hour,
		TDAlpha:                 0.1,
		WinnerATHThreshold:      2.0,
		MinSignalsForReputation: 5,
	}
}

// recognizedEnvKeys enumerates every CALLTRACK_ environment variable this
// system reads. Anything else present with that prefix is a ConfigError —
// spec.md §6: "Unknown keys are rejected at startup."
var recognizedEnvKeys = map[string]bool{
	"CALLTRACK_DATA_DIR":                   true,
	"CALLTRACK_WORKER_POOL_SIZE":           true,
	"CALLTRACK_LIVE_CYCLE_PERIOD":          true,
	"CALLTRACK_TD_ALPHA":                   true,
	"CALLTRACK_WINNER_ATH_THRESHOLD":       true,
	"CALLTRACK_MIN_SIGNALS_FOR_REPUTATION": true,
	"CALLTRACK_AMBIGUOUS_SYMBOL_BLOCKLIST": true,
	"CALLTRACK_WRAPPED_NATIVE_ALIASES":     true,
	"CALLTRACK_PROVIDERS_FILE":             true,
	"CALLTRACK_REDIS_ADDR":                 true,
}

// LoadEngineConfig builds an EngineConfig from defaults overlaid with
// recognized CALLTRACK_* environment variables, rejecting any CALLTRACK_
// variable it does not recognize.
func LoadEngineConfig(environ []string) (EngineConfig, error) {
	cfg := DefaultEngineConfig()

	for _, kv := range environ {
		key, value, ok := splitEnv(kv)
		if !ok || len(key) < 10 || key[:10] != "CALLTRACK_" {
			continue
		}
		if !recognizedEnvKeys[key] {
			return EngineConfig{}, errf(key, "unrecognized configuration key")
		}
		if err := applyEnv(&cfg, key, value); err != nil {
			return EngineConfig{}, err
		}
	}

	if cfg.WorkerPoolSize <= 0 {
		return EngineConfig{}, errf("CALLTRACK_WORKER_POOL_SIZE", "must be positive")
	}
	if cfg.TDAlpha <= 0 || cfg.TDAlpha > 1 {
		return EngineConfig{}, errf("CALLTRACK_TD_ALPHA", "must be in (0, 1]")
	}
	return cfg, nil
}

func splitEnv(kv string) (key, value string, ok bool) {
	for i := 0; i < len(kv); i++ {
		if kv[i] == '=' {
			return kv[:i], kv[i+1:], true
		}
	}
	return "", "", false
}

func applyEnv(cfg *EngineConfig, key, value string) error {
	switch key {
	case "CALLTRACK_DATA_DIR":
		cfg.DataDir = value
	case "CALLTRACK_WORKER_POOL_SIZE":
		n, err := strconv.Atoi(value)
		if err != nil {
			return errf(key, "not an integer: %v", err)
		}
		cfg.WorkerPoolSize = n
	case "CALLTRACK_LIVE_CYCLE_PERIOD":
		d, err := time.ParseDuration(value)
		if err != nil {
			return errf(key, "not a duration: %v", err)
		}
		cfg.LiveCyclePeriod = d
	case "CALLTRACK_TD_ALPHA":
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return errf(key, "not a float: %v", err)
		}
		cfg.TDAlpha = f
	case "CALLTRACK_WINNER_ATH_THRESHOLD":
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return errf(key, "not a float: %v", err)
		}
		cfg.WinnerATHThreshold = f
	case "CALLTRACK_MIN_SIGNALS_FOR_REPUTATION":
		n, err := strconv.Atoi(value)
		if err != nil {
			return errf(key, "not an integer: %v", err)
		}
		cfg.MinSignalsForReputation = n
	case "CALLTRACK_AMBIGUOUS_SYMBOL_BLOCKLIST":
		cfg.AmbiguousSymbolBlocklistPath = value
	case "CALLTRACK_WRAPPED_NATIVE_ALIASES":
		cfg.WrappedNativeAliasesPath = value
	case "CALLTRACK_PROVIDERS_FILE":
		cfg.ProvidersFile = value
	case "CALLTRACK_REDIS_ADDR":
		cfg.RedisAddr = value
	}
	return nil
}

// Environ is a small seam over os.Environ for testability.
func Environ() []string {
	return os.Environ()
}
