package config

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// ProviderConfig is per-upstream-provider tuning: rate budget, timeout,
// retry/backoff, and API credentials. Mirrors spec.md §6's PROVIDERS
// entries.
type ProviderConfig struct {
	Name          string        `yaml:"name"`
	BaseURL       string        `yaml:"base_url"`
	APIKey        string        `yaml:"api_key"`
	RPM           int           `yaml:"rpm"`            // documented requests-per-minute budget
	RPD           int           `yaml:"rpd"`             // documented requests-per-day budget, 0 if not daily-limited
	Timeout       time.Duration `yaml:"timeout"`
	MaxRetries    int           `yaml:"max_retries"`
	BackoffBase   time.Duration `yaml:"backoff_base"`
	BackoffCap    time.Duration `yaml:"backoff_cap"`
}

// ProvidersConfig is the full PROVIDERS configuration: an ordered list of
// provider tunings keyed by name.
type ProvidersConfig struct {
	Providers []ProviderConfig `yaml:"providers"`
}

// ByName indexes providers for fast lookup after load.
func (c *ProvidersConfig) ByName() map[string]ProviderConfig {
	out := make(map[string]ProviderConfig, len(c.Providers))
	for _, p := range c.Providers {
		out[p.Name] = p
	}
	return out
}

// LoadProvidersConfig loads and validates provider configuration from a
// YAML file.
func LoadProvidersConfig(path string) (*ProvidersConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read providers config: %w", err)
	}

	var cfg ProvidersConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("parse providers config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate applies defaults and rejects nonsensical values. Unlike
// EngineConfig, missing fields here fall back to defaults rather than
// failing — only a duplicate or unnamed provider is fatal.
func (c *ProvidersConfig) Validate() error {
	seen := make(map[string]bool, len(c.Providers))
	for i := range c.Providers {
		p := &c.Providers[i]
		if p.Name == "" {
			return errf("providers", "provider at index %d has no name", i)
		}
		if seen[p.Name] {
			return errf("providers", "duplicate provider name %q", p.Name)
		}
		seen[p.Name] = true

		if p.RPM <= 0 {
			p.RPM = 30
		}
		if p.Timeout <= 0 {
			p.Timeout = 10 * time.Second
		}
		if p.MaxRetries <= 0 {
			p.MaxRetries = 3
		}
		if p.BackoffBase <= 0 {
			p.BackoffBase = 1 * time.Second
		}
		if p.BackoffCap <= 0 {
			p.BackoffCap = 30 * time.Second
		}
	}
	return nil
}
