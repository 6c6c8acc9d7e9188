package priceservice

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sawpanic/calltrack/internal/model"
)

const hotCacheTTL = 5 * time.Minute

// Service is the Price Data Service of spec.md §4.B. It routes each query
// kind through its own ordered provider fallback chain, and backs
// historical queries with a persistent, never-expiring cache.
type Service struct {
	currentAddressChain []Source
	currentSymbolChain  []Source
	historicalAtChain   []Source
	forwardChain        []Source

	historical *HistoricalCache
	hot        *HotCache
}

// Chains groups the four ordered fallback chains spec.md §4.B's table
// names.
type Chains struct {
	CurrentAddress []Source
	CurrentSymbol  []Source
	HistoricalAt   []Source
	Forward        []Source
}

// NewService builds a Service from its fallback chains and caches.
func NewService(chains Chains, historical *HistoricalCache, hot *HotCache) *Service {
	return &Service{
		currentAddressChain: chains.CurrentAddress,
		currentSymbolChain:  chains.CurrentSymbol,
		historicalAtChain:   chains.HistoricalAt,
		forwardChain:        chains.Forward,
		historical:          historical,
		hot:                 hot,
	}
}

// GetCurrent fetches the current price of a token, used by the Live
// Orchestrator. Reads the 5-minute hot cache before touching any provider.
func (s *Service) GetCurrent(ctx context.Context, ref model.TokenRef) (PriceReading, error) {
	tokenKey := ref.TokenKey()
	if reading, ok := s.hot.Get(ctx, tokenKey); ok {
		return reading, nil
	}

	chain := s.currentSymbolChain
	if ref.Address != "" {
		chain = s.currentAddressChain
	}

	reading, err := s.tryChain(ctx, chain, func(src Source) (PriceReading, error) {
		return src.Current(ctx, ref)
	})
	if err != nil {
		return PriceReading{}, err
	}

	s.hot.Set(ctx, tokenKey, reading)
	return reading, nil
}

// GetAt fetches the price at a specific past timestamp — used by backfill
// for the entry price of old messages. Historical cache hits never touch
// the network.
func (s *Service) GetAt(ctx context.Context, ref model.TokenRef, ts time.Time) (float64, error) {
	tokenKey := ref.TokenKey()
	if p, ok := s.historical.Get(tokenKey, ts); ok {
		return p.Price, nil
	}

	priceVal, allNoData, err := s.tryChainFloat(ctx, s.historicalAtChain, func(src Source) (float64, error) {
		return src.At(ctx, ref, ts)
	})
	if err != nil {
		if allNoData {
			return 0, &Error{Kind: KindDeadToken, TokenKey: tokenKey, Cause: err}
		}
		return 0, &Error{Kind: KindProviderAllFailed, TokenKey: tokenKey, Cause: err}
	}

	s.historical.Put(model.PricePoint{
		TokenKey:        tokenKey,
		TimestampBucket: ts.UTC().Truncate(24 * time.Hour),
		Price:           priceVal,
		SourceProvider:  "historical_archive",
		FetchedAt:       time.Now(),
	})
	return priceVal, nil
}

// GetForwardWindow fetches the forward daily OHLC series covering
// [entryTime, until]. It does not compute ATH itself: callers derive it
// from the series' High column. Every observed daily bucket is cached as a
// PricePoint holding its close price, and the historical cache is flushed
// to disk after each call.
func (s *Service) GetForwardWindow(ctx context.Context, ref model.TokenRef, entryTime, until time.Time) (OHLCSeries, error) {
	tokenKey := ref.TokenKey()

	series, err := s.tryChainGeneric(ctx, s.forwardChain, func(src Source) (OHLCSeries, error) {
		return src.Forward(ctx, ref, entryTime, until)
	})
	if err != nil {
		return nil, err
	}

	for _, point := range series {
		s.historical.Put(model.PricePoint{
			TokenKey:        tokenKey,
			TimestampBucket: point.DayTimestamp,
			Price:           point.Close,
			SourceProvider:  "historical_archive",
			FetchedAt:       time.Now(),
		})
	}
	if err := s.historical.Flush(); err != nil {
		log.Warn().Err(err).Msg("historical cache flush failed")
	}

	return series, nil
}

// CalculateSmartCheckpoints is a pure function: the subset of checkpoints
// whose offset has elapsed as of now, relative to entryTime.
func CalculateSmartCheckpoints(entryTime, now time.Time) map[model.Checkpoint]bool {
	reached := make(map[model.Checkpoint]bool, len(model.CheckpointOrder))
	elapsed := now.Sub(entryTime)
	for cp, offset := range model.DefaultCheckpointOffsets {
		if elapsed >= offset {
			reached[cp] = true
		}
	}
	return reached
}

func (s *Service) tryChain(ctx context.Context, chain []Source, call func(Source) (PriceReading, error)) (PriceReading, error) {
	var lastErr error
	for _, src := range chain {
		reading, err := call(src)
		if err == nil {
			return reading, nil
		}
		lastErr = err
		log.Debug().Str("provider", src.Name()).Err(err).Msg("price source failed, trying next")
	}
	return PriceReading{}, &Error{Kind: KindProviderAllFailed, Cause: lastErr}
}

// tryChainFloat runs call against every source in chain in order. allNoData
// is true only if every attempted source explicitly reported "no data"
// (an *unsupportedCapability error) rather than a transport/auth/parse
// failure — that distinction is what separates DeadToken from
// ProviderAllFailed (spec.md §4.B).
func (s *Service) tryChainFloat(ctx context.Context, chain []Source, call func(Source) (float64, error)) (price float64, allNoData bool, err error) {
	var lastErr error
	attempted := 0
	noDataCount := 0
	for _, src := range chain {
		attempted++
		p, callErr := call(src)
		if callErr == nil {
			return p, false, nil
		}
		lastErr = callErr
		if _, ok := callErr.(*unsupportedCapability); ok {
			noDataCount++
		}
		log.Debug().Str("provider", src.Name()).Err(callErr).Msg("price source failed, trying next")
	}
	return 0, attempted > 0 && noDataCount == attempted, lastErr
}

func (s *Service) tryChainGeneric(ctx context.Context, chain []Source, call func(Source) (OHLCSeries, error)) (OHLCSeries, error) {
	var lastErr error
	for _, src := range chain {
		series, err := call(src)
		if err == nil && len(series) > 0 {
			return series, nil
		}
		if err != nil {
			lastErr = err
		}
	}
	return nil, &Error{Kind: KindProviderAllFailed, Cause: lastErr}
}
