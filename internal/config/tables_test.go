package config

import "testing"

func TestLoadWrappedNativeAliases_RoundTrips(t *testing.T) {
	path := writeTempFile(t, "aliases.yaml", `
aliases:
  weth: ETH
`)
	w, err := LoadWrappedNativeAliases(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := w.Canonical("WETH"); got != "ETH" {
		t.Errorf("expected WETH to resolve to ETH, got %q", got)
	}
}

func TestLoadWrappedNativeAliases_UnknownKeyRejected(t *testing.T) {
	path := writeTempFile(t, "aliases.yaml", `
aliases:
  weth: ETH
not_a_real_field: true
`)
	if _, err := LoadWrappedNativeAliases(path); err == nil {
		t.Fatal("expected an error for an unrecognized key in the aliases file")
	}
}

func TestLoadAmbiguousSymbolBlocklist_UnknownKeyRejected(t *testing.T) {
	path := writeTempFile(t, "blocklist.yaml", `
entries:
  - symbol: ONE
    requires_prefix: true
bogus: nope
`)
	if _, err := LoadAmbiguousSymbolBlocklist(path); err == nil {
		t.Fatal("expected an error for an unrecognized key in the blocklist file")
	}
}

func TestLoadAmbiguousSymbolBlocklist_EmptyPathUsesDefault(t *testing.T) {
	b, err := LoadAmbiguousSymbolBlocklist("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, found := b.Lookup("ONE"); !found {
		t.Error("expected default blocklist to include ONE")
	}
}
