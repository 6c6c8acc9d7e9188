package config

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v2"
)

// WrappedNativeAliases maps a lower-cased wrapped-asset symbol or address
// fragment to its canonical symbol (e.g. "weth" -> "ETH"). Loaded from
// WRAPPED_NATIVE_ALIASES.
type WrappedNativeAliases struct {
	Aliases map[string]string `yaml:"aliases"`
}

// Canonical returns the canonical symbol for a raw symbol, folding through
// the alias table; returns the upper-cased input unchanged if no alias
// applies.
func (w *WrappedNativeAliases) Canonical(rawSymbol string) string {
	key := strings.ToLower(strings.TrimSpace(rawSymbol))
	if canon, ok := w.Aliases[key]; ok {
		return strings.ToUpper(canon)
	}
	return strings.ToUpper(rawSymbol)
}

// AmbiguousSymbolEntry is one blocklisted symbol and whether an explicit
// "$"/"#" prefix is required in source text to resolve it.
type AmbiguousSymbolEntry struct {
	Symbol          string `yaml:"symbol"`
	RequiresPrefix  bool   `yaml:"requires_prefix"`
}

// AmbiguousSymbolBlocklist is the configured set of symbols that double as
// common English words (ONE, LINK, NEAR, FLOW, APE, SAND, ...).
type AmbiguousSymbolBlocklist struct {
	Entries []AmbiguousSymbolEntry `yaml:"entries"`
}

// Lookup reports whether a symbol is blocklisted and, if so, whether it
// requires an explicit prefix marker to be resolved.
func (b *AmbiguousSymbolBlocklist) Lookup(symbol string) (entry AmbiguousSymbolEntry, found bool) {
	up := strings.ToUpper(symbol)
	for _, e := range b.Entries {
		if strings.ToUpper(e.Symbol) == up {
			return e, true
		}
	}
	return AmbiguousSymbolEntry{}, false
}

// DefaultAmbiguousSymbolBlocklist is the built-in seed list from spec.md
// §4.B, used when AMBIGUOUS_SYMBOL_BLOCKLIST is not configured.
func DefaultAmbiguousSymbolBlocklist() *AmbiguousSymbolBlocklist {
	seed := []string{"ONE", "LINK", "NEAR", "FLOW", "APE", "SAND"}
	entries := make([]AmbiguousSymbolEntry, 0, len(seed))
	for _, s := range seed {
		entries = append(entries, AmbiguousSymbolEntry{Symbol: s, RequiresPrefix: true})
	}
	return &AmbiguousSymbolBlocklist{Entries: entries}
}

// ChainAliases maps the system's generic chain name to each provider's own
// spelling, e.g. {"evm": {"coingecko": "ethereum", "dexscreener": "eth"}}.
type ChainAliases struct {
	Aliases map[string]map[string]string `yaml:"aliases"`
}

// ForProvider returns the provider-specific spelling of a generic chain
// name, or the generic name unchanged if no mapping exists.
func (c *ChainAliases) ForProvider(genericChain, provider string) string {
	if byProvider, ok := c.Aliases[genericChain]; ok {
		if spelled, ok := byProvider[provider]; ok {
			return spelled
		}
	}
	return genericChain
}

// LoadWrappedNativeAliases loads the alias table from YAML.
func LoadWrappedNativeAliases(path string) (*WrappedNativeAliases, error) {
	if path == "" {
		return &WrappedNativeAliases{Aliases: map[string]string{}}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read wrapped-native aliases: %w", err)
	}
	var w WrappedNativeAliases
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.SetStrict(true)
	if err := dec.Decode(&w); err != nil {
		return nil, fmt.Errorf("parse wrapped-native aliases: %w", err)
	}
	if w.Aliases == nil {
		w.Aliases = map[string]string{}
	}
	return &w, nil
}

// LoadAmbiguousSymbolBlocklist loads the blocklist from YAML, falling back
// to the built-in default when path is empty.
func LoadAmbiguousSymbolBlocklist(path string) (*AmbiguousSymbolBlocklist, error) {
	if path == "" {
		return DefaultAmbiguousSymbolBlocklist(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read ambiguous-symbol blocklist: %w", err)
	}
	var b AmbiguousSymbolBlocklist
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.SetStrict(true)
	if err := dec.Decode(&b); err != nil {
		return nil, fmt.Errorf("parse ambiguous-symbol blocklist: %w", err)
	}
	return &b, nil
}
