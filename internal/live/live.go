// Package live implements the Live Orchestrator of spec.md §4.H: a
// periodic loop (default 2 h) that advances every in-progress signal
// through newly reached checkpoints using a bounded worker pool, and
// admits newly incoming mentions without ever touching forward windows.
package live

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/sawpanic/calltrack/internal/lifecycle"
	"github.com/sawpanic/calltrack/internal/model"
	"github.com/sawpanic/calltrack/internal/priceservice"
	"github.com/sawpanic/calltrack/internal/reputation"
	"github.com/sawpanic/calltrack/internal/resolver"
	"github.com/sawpanic/calltrack/internal/store"
)

// DefaultWorkerPoolSize is P from spec.md §5's concurrency model.
const DefaultWorkerPoolSize = 5

// maxConsecutiveFailures is the escalation threshold of spec.md §4.E's
// failure semantics: three consecutive terminal-attempt failures on the
// same signal force it to LOSER rather than stalling it forever.
const maxConsecutiveFailures = 3

// Orchestrator advances active signals on a periodic cycle and admits new
// mentions as they arrive.
type Orchestrator struct {
	store    *store.Store
	prices   *priceservice.Service
	resolver *resolver.Resolver
	learning *reputation.Engine
	workers  int
	now      func() time.Time
}

// New constructs a live Orchestrator with a bounded worker pool of the
// given size (spec.md §5; pass DefaultWorkerPoolSize for the spec
// default).
func New(st *store.Store, prices *priceservice.Service, res *resolver.Resolver, learning *reputation.Engine, workers int) *Orchestrator {
	if workers <= 0 {
		workers = DefaultWorkerPoolSize
	}
	return &Orchestrator{store: st, prices: prices, resolver: res, learning: learning, workers: workers, now: time.Now}
}

// AdvanceActive drives one cycle of the periodic loop across every
// in-progress signal, fanning out over a bounded worker pool. The first
// per-signal error is returned after all workers finish; other signals
// are not blocked by one signal's failure.
func (o *Orchestrator) AdvanceActive(ctx context.Context) error {
	keys := o.store.ActiveTokenKeys()

	sem := make(chan struct{}, o.workers)
	var wg sync.WaitGroup
	errs := make(chan error, len(keys))

	for _, tokenKey := range keys {
		tokenKey := tokenKey
		select {
		case <-ctx.Done():
			errs <- ctx.Err()
			continue
		default:
		}

		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			if err := o.advanceOne(ctx, tokenKey); err != nil {
				errs <- err
			}
		}()
	}

	wg.Wait()
	close(errs)

	var first error
	for err := range errs {
		if first == nil {
			first = err
		}
	}
	return first
}

// advanceOne owns tokenKey's signal for the duration of this call (spec.md
// §5 per-signal ordering guarantee): it computes newly reached checkpoints,
// fetches the current price once, feeds it to the lifecycle engine, and
// archives on terminal.
func (o *Orchestrator) advanceOne(ctx context.Context, tokenKey string) error {
	outcome, ok := o.store.GetActive(tokenKey)
	if !ok {
		return nil // archived by a concurrent cycle already
	}

	now := o.now()
	reached := priceservice.CalculateSmartCheckpoints(outcome.EntryTime, now)
	newlyReached := map[model.Checkpoint]bool{}
	for cp := range reached {
		if existing, done := outcome.Checkpoints[cp]; !done || !existing.Reached {
			newlyReached[cp] = true
		}
	}
	if len(newlyReached) == 0 {
		return nil
	}

	reading, err := o.prices.GetCurrent(ctx, outcome.TokenRef)
	if err != nil {
		return o.handleFetchFailure(tokenKey, outcome, err)
	}
	outcome.RetryCount = 0

	for _, cp := range model.CheckpointOrder {
		if !newlyReached[cp] {
			continue
		}
		price := reading.Price
		lifecycle.CaptureCheckpoint(&outcome, cp, now, &price)
	}

	if newlyReached[model.Checkpoint30d] {
		event := lifecycle.Terminalize(&outcome)
		if err := o.store.UpdateActive(outcome); err != nil {
			return err
		}
		if err := o.store.Archive(tokenKey); err != nil {
			return err
		}
		o.learning.OnTerminal(event)
		return nil
	}

	return o.store.UpdateActive(outcome)
}

// handleFetchFailure implements the three-consecutive-failure escalation
// of spec.md §4.E: the signal never stalls forever, and the force-complete
// is never silent.
func (o *Orchestrator) handleFetchFailure(tokenKey string, outcome model.SignalOutcome, fetchErr error) error {
	outcome.RetryCount++
	if outcome.RetryCount < maxConsecutiveFailures {
		log.Warn().Str("token_key", tokenKey).Int("retry_count", outcome.RetryCount).Err(fetchErr).
			Msg("live: price fetch failed, will retry next cycle")
		return o.store.UpdateActive(outcome)
	}

	outcome.OutcomeCategory = model.CategoryLoser
	outcome.IsWinner = false
	outcome.Status = model.StatusCompleted
	outcome.ProvenanceNote = fmt.Sprintf("force-completed after %d consecutive price-fetch failures: %v", outcome.RetryCount, fetchErr)
	log.Error().Str("token_key", tokenKey).Str("provenance", outcome.ProvenanceNote).Msg("live: escalating signal to forced LOSER completion")

	if err := o.store.UpdateActive(outcome); err != nil {
		return err
	}
	if err := o.store.Archive(tokenKey); err != nil {
		return err
	}
	o.learning.OnTerminal(lifecycle.EventFromOutcome(outcome))
	return nil
}

// AdmitMention runs the classify-mention/entry-price/first-advance
// sequence for one newly arrived message, never touching forward windows
// (live mode trusts the wall clock — spec.md §4.H). ok is false (with a
// nil error) for duplicates and unresolvable or price-unavailable
// mentions. An error from the first advance is returned with ok true,
// since the signal is already stored as active by then.
func (o *Orchestrator) AdmitMention(ctx context.Context, msg model.Mention) (ok bool, err error) {
	ref, resolveErr := o.resolver.Resolve(msg.TokenRef, msg.ExplicitPrefix)
	if resolveErr != nil {
		log.Warn().Str("channel", msg.ChannelName).Err(resolveErr).Msg("live: unresolved token reference, skipping")
		return false, nil
	}
	tokenKey := ref.TokenKey()

	dup, signalNumber, prevIDs := o.store.ClassifyMention(tokenKey)
	if dup {
		return false, nil
	}

	entryPrice, priceErr := o.prices.GetAt(ctx, ref, msg.EntryTime)
	if priceErr != nil {
		log.Debug().Str("token_key", tokenKey).Err(priceErr).Msg("live: entry price unavailable, skipping")
		return false, nil
	}

	signalID := uuid.NewString()
	o.learning.Predict(msg.ChannelName, tokenKey, signalID)

	outcome := lifecycle.New(signalID, msg.ChannelName, ref, signalNumber, prevIDs, msg.MessageID, msg.EntryTime, entryPrice)
	if err := o.store.AddActive(outcome); err != nil {
		return false, err
	}
	if err := o.advanceOne(ctx, tokenKey); err != nil {
		return true, fmt.Errorf("live: first advance of %s: %w", tokenKey, err)
	}
	return true, nil
}
