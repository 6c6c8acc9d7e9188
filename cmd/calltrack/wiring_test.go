package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/calltrack/internal/config"
	"github.com/sawpanic/calltrack/internal/resolver"
)

func TestBuildChains_AssemblesRolesInSpecOrder(t *testing.T) {
	byName := map[string]config.ProviderConfig{
		"dex_aggregator":     {Name: "dex_aggregator", BaseURL: "http://dex.test", RPM: 60, Timeout: time.Second},
		"generalist_index":   {Name: "generalist_index", BaseURL: "http://gen.test", RPM: 60, Timeout: time.Second},
		"historical_archive": {Name: "historical_archive", BaseURL: "http://archive.test", RPM: 60, Timeout: time.Second},
	}
	res := resolver.New(&config.WrappedNativeAliases{Aliases: map[string]string{}}, config.DefaultAmbiguousSymbolBlocklist(), &config.ChainAliases{})

	chains, err := buildChains(byName, res)
	require.NoError(t, err)

	assert.Len(t, chains.CurrentAddress, 1, "expected 1 current-address source (dex only)")
	require.Len(t, chains.CurrentSymbol, 2, "expected 2 current-symbol sources (generalist, dex)")
	assert.Equal(t, "generalist_index", chains.CurrentSymbol[0].Name(), "expected generalist_index first in current-symbol chain")
	require.Len(t, chains.HistoricalAt, 1)
	assert.Equal(t, "historical_archive", chains.HistoricalAt[0].Name())
	assert.Len(t, chains.Forward, 1, "expected 1 forward source")
}

func TestBuildChains_ErrorsWithNoCurrentPriceProvider(t *testing.T) {
	res := resolver.New(&config.WrappedNativeAliases{Aliases: map[string]string{}}, config.DefaultAmbiguousSymbolBlocklist(), &config.ChainAliases{})
	_, err := buildChains(map[string]config.ProviderConfig{}, res)
	assert.Error(t, err, "expected an error when no current-price provider role is configured")
}
