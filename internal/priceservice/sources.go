package priceservice

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sawpanic/calltrack/internal/fetch"
	"github.com/sawpanic/calltrack/internal/model"
	"github.com/sawpanic/calltrack/internal/resolver"
)

// unsupportedCapability is returned by a Source method the provider's real
// API does not offer (e.g. an on-chain explorer returning metadata only,
// no price — spec.md §4.B's provider table).
type unsupportedCapability struct {
	provider, capability string
}

func (e *unsupportedCapability) Error() string {
	return fmt.Sprintf("provider %s does not support %s", e.provider, e.capability)
}

// httpReading is the common JSON response shape this port's generic HTTP
// sources decode; real providers shape their payloads differently, but
// each concrete adapter below is responsible for its own endpoint
// construction, matching the spec's per-query-kind table.
type httpReading struct {
	Price     float64  `json:"price"`
	MarketCap *float64 `json:"market_cap,omitempty"`
	Liquidity *float64 `json:"liquidity,omitempty"`
	Volume24h *float64 `json:"volume_24h,omitempty"`
	Symbol    string   `json:"symbol,omitempty"`
}

type httpOHLCPoint struct {
	Day   string  `json:"day"`
	Open  float64 `json:"open"`
	High  float64 `json:"high"`
	Low   float64 `json:"low"`
	Close float64 `json:"close"`
}

// httpSource is a generic JSON-over-HTTP provider adapter, parameterized by
// which capabilities it supports — this is the shape
// internal/providers/adapters/coingecko.go uses (fixed base URL, per-method
// endpoint construction, JSON decode), generalized across the provider
// roles spec.md §4.B enumerates.
type httpSource struct {
	name          string
	baseURL       string
	fetcher       *fetch.Fetcher
	res           *resolver.Resolver
	supportsCurrent  bool
	supportsAt       bool
	supportsForward  bool
	toleranceForAt   time.Duration // only meaningful for the "rejected if too old" current-as-proxy source
}

func (s *httpSource) Name() string { return s.name }

func (s *httpSource) Current(ctx context.Context, ref model.TokenRef) (PriceReading, error) {
	if !s.supportsCurrent {
		return PriceReading{}, &unsupportedCapability{s.name, "current price"}
	}
	url := fmt.Sprintf("%s/current?chain=%s&address=%s&symbol=%s",
		s.baseURL, s.res.ProviderChain(ref.Chain, s.name), ref.Address, ref.Symbol)

	resp, err := s.fetcher.Do(ctx, fetch.Request{Method: "GET", URL: url})
	if err != nil {
		return PriceReading{}, err
	}
	var r httpReading
	if err := json.Unmarshal(resp.Body, &r); err != nil {
		return PriceReading{}, &fetch.ProviderError{Provider: s.name, Kind: fetch.KindParse, Cause: err}
	}
	if r.Price <= 0 {
		return PriceReading{}, &unsupportedCapability{s.name, "current price (empty result)"}
	}
	return PriceReading{
		Price:          r.Price,
		MarketCap:      r.MarketCap,
		Liquidity:      r.Liquidity,
		Volume24h:      r.Volume24h,
		SymbolResolved: r.Symbol,
		Source:         s.name,
	}, nil
}

func (s *httpSource) At(ctx context.Context, ref model.TokenRef, ts time.Time) (float64, error) {
	if !s.supportsAt {
		return 0, &unsupportedCapability{s.name, "historical price"}
	}
	if s.toleranceForAt > 0 && time.Since(ts) > s.toleranceForAt {
		return 0, &unsupportedCapability{s.name, "historical price beyond tolerance"}
	}
	url := fmt.Sprintf("%s/at?chain=%s&address=%s&symbol=%s&ts=%d",
		s.baseURL, s.res.ProviderChain(ref.Chain, s.name), ref.Address, ref.Symbol, ts.Unix())

	resp, err := s.fetcher.Do(ctx, fetch.Request{Method: "GET", URL: url})
	if err != nil {
		return 0, err
	}
	var r httpReading
	if err := json.Unmarshal(resp.Body, &r); err != nil {
		return 0, &fetch.ProviderError{Provider: s.name, Kind: fetch.KindParse, Cause: err}
	}
	if r.Price <= 0 {
		return 0, &unsupportedCapability{s.name, "historical price (no data)"}
	}
	return r.Price, nil
}

func (s *httpSource) Forward(ctx context.Context, ref model.TokenRef, from, until time.Time) (OHLCSeries, error) {
	if !s.supportsForward {
		return nil, &unsupportedCapability{s.name, "forward OHLC"}
	}
	url := fmt.Sprintf("%s/forward?chain=%s&address=%s&symbol=%s&from=%d&until=%d",
		s.baseURL, s.res.ProviderChain(ref.Chain, s.name), ref.Address, ref.Symbol, from.Unix(), until.Unix())

	resp, err := s.fetcher.Do(ctx, fetch.Request{Method: "GET", URL: url})
	if err != nil {
		return nil, err
	}
	var points []httpOHLCPoint
	if err := json.Unmarshal(resp.Body, &points); err != nil {
		return nil, &fetch.ProviderError{Provider: s.name, Kind: fetch.KindParse, Cause: err}
	}
	series := make(OHLCSeries, 0, len(points))
	for _, p := range points {
		day, err := time.Parse(time.RFC3339, p.Day)
		if err != nil {
			continue
		}
		series = append(series, OHLCPoint{DayTimestamp: day, Open: p.Open, High: p.High, Low: p.Low, Close: p.Close})
	}
	return series, nil
}

// NewDEXAggregatorSource builds the liquidity-driven aggregator source used
// first for current-address and last for current-symbol fallback.
func NewDEXAggregatorSource(baseURL string, fetcher *fetch.Fetcher, res *resolver.Resolver) Source {
	return &httpSource{name: "dex_aggregator", baseURL: baseURL, fetcher: fetcher, res: res, supportsCurrent: true, supportsForward: true}
}

// NewMultiChainIndexSource builds the multi-chain index source.
func NewMultiChainIndexSource(baseURL string, fetcher *fetch.Fetcher, res *resolver.Resolver) Source {
	return &httpSource{name: "multichain_index", baseURL: baseURL, fetcher: fetcher, res: res, supportsCurrent: true}
}

// NewOnChainExplorerSource builds the on-chain explorer source — metadata
// only, no price support (spec.md §4.B table).
func NewOnChainExplorerSource(baseURL string, fetcher *fetch.Fetcher, res *resolver.Resolver) Source {
	return &httpSource{name: "onchain_explorer", baseURL: baseURL, fetcher: fetcher, res: res}
}

// NewGeneralistIndexSource builds the generalist ticker->price index.
func NewGeneralistIndexSource(baseURL string, fetcher *fetch.Fetcher, res *resolver.Resolver) Source {
	return &httpSource{name: "generalist_index", baseURL: baseURL, fetcher: fetcher, res: res, supportsCurrent: true}
}

// NewHistoricalArchiveSource builds the no-key historical archive, the only
// source that covers arbitrary past points and forward OHLC cheaply.
func NewHistoricalArchiveSource(baseURL string, fetcher *fetch.Fetcher, res *resolver.Resolver) Source {
	return &httpSource{name: "historical_archive", baseURL: baseURL, fetcher: fetcher, res: res, supportsAt: true, supportsForward: true}
}

// NewPremiumTimeseriesSource builds the paid timeseries fallback.
func NewPremiumTimeseriesSource(baseURL string, fetcher *fetch.Fetcher, res *resolver.Resolver) Source {
	return &httpSource{name: "premium_timeseries", baseURL: baseURL, fetcher: fetcher, res: res, supportsAt: true, supportsForward: true}
}

// NewCurrentAsHistoricalProxySource builds the DEX aggregator acting as a
// last-resort historical source, rejected if the query is older than
// tolerance — spec.md §4.B: "rejected if now − timestamp > tolerance".
func NewCurrentAsHistoricalProxySource(baseURL string, fetcher *fetch.Fetcher, res *resolver.Resolver, tolerance time.Duration) Source {
	return &httpSource{name: "dex_aggregator", baseURL: baseURL, fetcher: fetcher, res: res, supportsAt: true, toleranceForAt: tolerance}
}
