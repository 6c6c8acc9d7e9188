package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/sawpanic/calltrack/internal/config"
	"github.com/sawpanic/calltrack/internal/fetch"
	"github.com/sawpanic/calltrack/internal/priceservice"
	"github.com/sawpanic/calltrack/internal/resolver"
	"github.com/sawpanic/calltrack/internal/reputation"
	"github.com/sawpanic/calltrack/internal/store"
)

// providerSourceTolerance is the "now - timestamp > tolerance" window for
// the current-as-historical-proxy source (spec.md §4.B's "rejected if too
// old" rule).
const providerSourceTolerance = 2 * time.Hour

// Provider names this wiring expects in providers.yaml, one per role in
// spec.md §4.B's fallback-chain table.
const (
	providerDEXAggregator       = "dex_aggregator"
	providerMultiChainIndex     = "multichain_index"
	providerOnChainExplorer     = "onchain_explorer"
	providerGeneralistIndex     = "generalist_index"
	providerHistoricalArchive   = "historical_archive"
	providerPremiumTimeseries   = "premium_timeseries"
	providerCurrentAsHistorical = "current_as_historical_proxy"
)

// engine bundles every long-lived component a subcommand needs, built once
// from config and torn down (Save) before exit.
type engine struct {
	cfg      config.EngineConfig
	store    *store.Store
	resolver *resolver.Resolver
	prices   *priceservice.Service
	learning *reputation.Engine
}

// buildEngine loads config and constructs every core component, grounded
// on spec.md §6's configuration table, honoring --data-dir/--providers-file
// overrides from the cobra command's persistent flags.
func buildEngine(cmd *cobra.Command) (*engine, error) {
	cfg, err := config.LoadEngineConfig(config.Environ())
	if err != nil {
		return nil, fmt.Errorf("loading engine config: %w", err)
	}
	if v, _ := cmd.Flags().GetString("data-dir"); v != "" {
		cfg.DataDir = v
	}
	if v, _ := cmd.Flags().GetString("providers-file"); v != "" {
		cfg.ProvidersFile = v
	}

	aliases, err := config.LoadWrappedNativeAliases(cfg.WrappedNativeAliasesPath)
	if err != nil {
		return nil, fmt.Errorf("loading wrapped-native aliases: %w", err)
	}
	blocklist := config.DefaultAmbiguousSymbolBlocklist()
	if cfg.AmbiguousSymbolBlocklistPath != "" {
		blocklist, err = config.LoadAmbiguousSymbolBlocklist(cfg.AmbiguousSymbolBlocklistPath)
		if err != nil {
			return nil, fmt.Errorf("loading ambiguous-symbol blocklist: %w", err)
		}
	}
	chainAliases := &config.ChainAliases{}

	providersCfg, err := config.LoadProvidersConfig(cfg.ProvidersFile)
	if err != nil {
		return nil, fmt.Errorf("loading providers config: %w", err)
	}
	byName := providersCfg.ByName()

	res := resolver.New(aliases, blocklist, chainAliases)

	chains, err := buildChains(byName, res)
	if err != nil {
		return nil, err
	}

	historical, err := priceservice.NewHistoricalCache(cfg.DataDir + "/price_cache/historical.json")
	if err != nil {
		return nil, fmt.Errorf("opening historical price cache: %w", err)
	}
	hot := priceservice.NewHotCache(cfg.RedisAddr, 5*time.Minute)
	prices := priceservice.NewService(chains, historical, hot)

	st := store.New(cfg.DataDir)
	if err := st.Load(); err != nil {
		return nil, fmt.Errorf("loading tracking store: %w", err)
	}

	learning := reputation.NewEngineWithAlpha(cfg.TDAlpha)
	if err := learning.Load(cfg.DataDir); err != nil {
		return nil, fmt.Errorf("loading reputation state: %w", err)
	}

	return &engine{cfg: cfg, store: st, resolver: res, prices: prices, learning: learning}, nil
}

// buildChains assembles the four fallback chains of spec.md §4.B's table
// from whichever provider roles are configured; a missing optional role
// simply yields a shorter chain rather than failing startup.
func buildChains(byName map[string]config.ProviderConfig, res *resolver.Resolver) (priceservice.Chains, error) {
	var chains priceservice.Chains

	dex := sourceOrNil(byName, providerDEXAggregator, func(cfg config.ProviderConfig) priceservice.Source {
		return priceservice.NewDEXAggregatorSource(cfg.BaseURL, fetch.New(cfg), res)
	})
	multiChain := sourceOrNil(byName, providerMultiChainIndex, func(cfg config.ProviderConfig) priceservice.Source {
		return priceservice.NewMultiChainIndexSource(cfg.BaseURL, fetch.New(cfg), res)
	})
	onChain := sourceOrNil(byName, providerOnChainExplorer, func(cfg config.ProviderConfig) priceservice.Source {
		return priceservice.NewOnChainExplorerSource(cfg.BaseURL, fetch.New(cfg), res)
	})
	generalist := sourceOrNil(byName, providerGeneralistIndex, func(cfg config.ProviderConfig) priceservice.Source {
		return priceservice.NewGeneralistIndexSource(cfg.BaseURL, fetch.New(cfg), res)
	})
	archive := sourceOrNil(byName, providerHistoricalArchive, func(cfg config.ProviderConfig) priceservice.Source {
		return priceservice.NewHistoricalArchiveSource(cfg.BaseURL, fetch.New(cfg), res)
	})
	premium := sourceOrNil(byName, providerPremiumTimeseries, func(cfg config.ProviderConfig) priceservice.Source {
		return priceservice.NewPremiumTimeseriesSource(cfg.BaseURL, fetch.New(cfg), res)
	})
	currentAsProxy := sourceOrNil(byName, providerCurrentAsHistorical, func(cfg config.ProviderConfig) priceservice.Source {
		return priceservice.NewCurrentAsHistoricalProxySource(cfg.BaseURL, fetch.New(cfg), res, providerSourceTolerance)
	})

	chains.CurrentAddress = appendNonNil(dex, multiChain, onChain)
	chains.CurrentSymbol = appendNonNil(generalist, dex)
	chains.HistoricalAt = appendNonNil(archive, premium, currentAsProxy)
	chains.Forward = appendNonNil(archive, premium)

	if len(chains.CurrentAddress) == 0 && len(chains.CurrentSymbol) == 0 {
		return chains, fmt.Errorf("providers config: no current-price providers configured (need at least one of %s, %s, %s, %s)",
			providerDEXAggregator, providerMultiChainIndex, providerOnChainExplorer, providerGeneralistIndex)
	}
	return chains, nil
}

func sourceOrNil(byName map[string]config.ProviderConfig, name string, build func(config.ProviderConfig) priceservice.Source) priceservice.Source {
	cfg, ok := byName[name]
	if !ok {
		return nil
	}
	return build(cfg)
}

func appendNonNil(sources ...priceservice.Source) []priceservice.Source {
	out := make([]priceservice.Source, 0, len(sources))
	for _, s := range sources {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}

// Save persists every piece of state a subcommand is responsible for
// flushing before exit: the reputation engine's TD state. The tracking
// store persists itself after every mutation (spec.md §4.D), so it needs
// no explicit save here.
func (e *engine) Save() error {
	return e.learning.Save(e.cfg.DataDir)
}
