package resolver

import (
	"testing"

	"github.com/sawpanic/calltrack/internal/config"
	"github.com/sawpanic/calltrack/internal/model"
)

func testResolver() *Resolver {
	aliases := &config.WrappedNativeAliases{Aliases: map[string]string{
		"weth": "ETH",
	}}
	blocklist := config.DefaultAmbiguousSymbolBlocklist()
	return New(aliases, blocklist, nil)
}

func TestResolve_WrappedNativeAlias(t *testing.T) {
	r := testResolver()
	out, err := r.Resolve(model.TokenRef{Symbol: "weth"}, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Symbol != "ETH" {
		t.Errorf("expected canonical symbol ETH, got %q", out.Symbol)
	}
}

func TestResolve_AmbiguousSymbolWithoutPrefixRejected(t *testing.T) {
	r := testResolver()
	_, err := r.Resolve(model.TokenRef{Symbol: "LINK"}, false)
	if err == nil {
		t.Fatal("expected ambiguous-symbol error")
	}
}

func TestResolve_AmbiguousSymbolWithPrefixAdmitted(t *testing.T) {
	r := testResolver()
	out, err := r.Resolve(model.TokenRef{Symbol: "LINK"}, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Symbol != "LINK" {
		t.Errorf("expected symbol LINK, got %q", out.Symbol)
	}
}

func TestResolve_AddressLowercased(t *testing.T) {
	r := testResolver()
	out, err := r.Resolve(model.TokenRef{Chain: model.ChainEVM, Address: "0xABCDEF"}, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Address != "0xabcdef" {
		t.Errorf("expected lower-cased address, got %q", out.Address)
	}
}

func TestResolve_InvalidTokenRef(t *testing.T) {
	r := testResolver()
	_, err := r.Resolve(model.TokenRef{}, false)
	if err == nil {
		t.Fatal("expected error for empty token ref")
	}
}
