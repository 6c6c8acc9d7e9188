// Package resolver maps a TokenRef to its canonical key and to the
// query-ready identifiers each price provider expects, per spec.md §4.C.
// It is pure and synchronous: no I/O, no caching, no provider calls.
package resolver

import (
	"strings"

	"github.com/sawpanic/calltrack/internal/config"
	"github.com/sawpanic/calltrack/internal/model"
)

// Resolver holds the three configuration tables spec.md §4.C names.
type Resolver struct {
	aliases    *config.WrappedNativeAliases
	blocklist  *config.AmbiguousSymbolBlocklist
	chainNames *config.ChainAliases
}

// New builds a Resolver from loaded configuration tables. A nil
// chainAliases is treated as "no provider-specific spelling overrides".
func New(aliases *config.WrappedNativeAliases, blocklist *config.AmbiguousSymbolBlocklist, chainAliases *config.ChainAliases) *Resolver {
	if chainAliases == nil {
		chainAliases = &config.ChainAliases{Aliases: map[string]map[string]string{}}
	}
	return &Resolver{aliases: aliases, blocklist: blocklist, chainNames: chainAliases}
}

// ResolutionError reports why a TokenRef could not be resolved.
type ResolutionError struct {
	Reason string
}

func (e *ResolutionError) Error() string { return "resolver: " + e.Reason }

// Resolve canonicalizes a TokenRef, folding wrapped-native aliases into
// their canonical symbol and normalizing key casing. explicitPrefix must be
// true for the caller to admit a blocklisted ambiguous symbol (spec.md
// §4.B/§4.C) — text extraction is the only source of that flag. The price
// service does no blocklist check of its own: the orchestrators call
// Resolve before any price query, so a symbol rejected here is never priced.
func (r *Resolver) Resolve(ref model.TokenRef, explicitPrefix bool) (model.TokenRef, error) {
	if !ref.Valid() {
		return model.TokenRef{}, &ResolutionError{Reason: "token ref has neither address nor symbol"}
	}

	out := ref
	out.Chain = normalizeChain(ref.Chain)

	if ref.Symbol != "" {
		canon := r.aliases.Canonical(ref.Symbol)
		if entry, blocked := r.blocklist.Lookup(canon); blocked && entry.RequiresPrefix && !explicitPrefix {
			return model.TokenRef{}, &ResolutionError{Reason: "ambiguous symbol " + canon + " requires explicit prefix marker"}
		}
		out.Symbol = canon
	}
	if ref.Address != "" {
		out.Address = strings.ToLower(ref.Address)
	}

	return out, nil
}

// ProviderChain returns the provider's own spelling of a generic chain
// name (e.g. "evm" -> "ethereum" for a generalist index).
func (r *Resolver) ProviderChain(genericChain model.Chain, provider string) string {
	return r.chainNames.ForProvider(string(genericChain), provider)
}

func normalizeChain(c model.Chain) model.Chain {
	if c == "" {
		return model.ChainUnknown
	}
	return model.Chain(strings.ToLower(string(c)))
}
