// Package priceservice implements the Price Data Service of spec.md §4.B:
// current price, price-at-timestamp, forward OHLC with ATH, provider
// fallback chains typed by query kind, and a persistent price-point cache.
package priceservice

import (
	"context"
	"time"

	"github.com/sawpanic/calltrack/internal/model"
)

// PriceReading is the result of GetCurrent.
type PriceReading struct {
	Price          float64
	MarketCap      *float64
	Liquidity      *float64
	Volume24h      *float64
	SymbolResolved string
	Source         string
}

// OHLCPoint is one daily bucket of a forward window.
type OHLCPoint struct {
	DayTimestamp time.Time
	Open         float64
	High         float64
	Low          float64
	Close        float64
}

// OHLCSeries is a forward daily window, ascending by day.
type OHLCSeries []OHLCPoint

// ATH derives the all-time-high price, its day, and days-to-ATH relative
// to entryTime from the series' High column — spec.md §4.B point 3.
func (s OHLCSeries) ATH(entryTime time.Time) (athPrice float64, athTime time.Time, daysToATH float64) {
	for _, p := range s {
		if p.High > athPrice {
			athPrice = p.High
			athTime = p.DayTimestamp
		}
	}
	if athTime.IsZero() {
		return athPrice, athTime, 0
	}
	daysToATH = athTime.Sub(entryTime).Hours() / 24
	if daysToATH < 0 {
		daysToATH = 0
	}
	return athPrice, athTime, daysToATH
}

// PriceAt returns the close price of the bucket covering t, or false if no
// bucket covers it.
func (s OHLCSeries) PriceAt(t time.Time) (float64, bool) {
	target := t.Truncate(24 * time.Hour)
	for _, p := range s {
		if p.DayTimestamp.Equal(target) {
			return p.Close, true
		}
	}
	return 0, false
}

// QueryKind distinguishes the four provider-fallback tables of spec.md
// §4.B.
type QueryKind string

const (
	QueryCurrentAddress QueryKind = "current_address"
	QueryCurrentSymbol  QueryKind = "current_symbol"
	QueryHistoricalAt   QueryKind = "historical_at"
	QueryForwardOHLC    QueryKind = "forward_ohlc"
)

// Source is one upstream price provider capable of answering one or more
// query kinds. Concrete sources (DEX aggregator, multi-chain index,
// on-chain explorer, generalist index, historical archive, premium
// timeseries) each implement the subset of methods their real API
// supports; the service only calls the method matching the query kind it
// routed to that source for.
type Source interface {
	Name() string
	Current(ctx context.Context, ref model.TokenRef) (PriceReading, error)
	At(ctx context.Context, ref model.TokenRef, ts time.Time) (float64, error)
	Forward(ctx context.Context, ref model.TokenRef, from, until time.Time) (OHLCSeries, error)
}
