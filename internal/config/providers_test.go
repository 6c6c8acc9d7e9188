package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTempFile(t *testing.T, name, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(contents), 0644); err != nil {
		t.Fatalf("unexpected error writing fixture: %v", err)
	}
	return path
}

func TestLoadProvidersConfig_AppliesDefaults(t *testing.T) {
	path := writeTempFile(t, "providers.yaml", `
providers:
  - name: dex_aggregator
    base_url: https://example.test
`)
	cfg, err := LoadProvidersConfig(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cfg.Providers) != 1 || cfg.Providers[0].RPM != 30 {
		t.Fatalf("expected default rpm of 30, got %+v", cfg.Providers)
	}
}

func TestLoadProvidersConfig_UnknownKeyRejected(t *testing.T) {
	path := writeTempFile(t, "providers.yaml", `
providers:
  - name: dex_aggregator
    base_url: https://example.test
    made_up_field: true
`)
	if _, err := LoadProvidersConfig(path); err == nil {
		t.Fatal("expected an error for an unrecognized key in providers.yaml")
	}
}

func TestLoadProvidersConfig_DuplicateNameRejected(t *testing.T) {
	path := writeTempFile(t, "providers.yaml", `
providers:
  - name: dex_aggregator
    base_url: https://a.test
  - name: dex_aggregator
    base_url: https://b.test
`)
	if _, err := LoadProvidersConfig(path); err == nil {
		t.Fatal("expected an error for a duplicate provider name")
	}
}
