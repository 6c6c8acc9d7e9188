// Package bootstrap implements the Bootstrap Orchestrator of spec.md
// §4.G: replays historical messages through the price service, store and
// lifecycle engine, checkpointing progress for resume, and running a
// single chronological learning pass once every message has been
// processed.
package bootstrap

import (
	"context"
	"fmt"
	"sort"
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

const thirtyDays = 30 * 24 * time.Hour

// checkpointEvery is the message-count interval at which progress is
// persisted (spec.md §4.G step 6).
const checkpointEvery = 100

// Orchestrator drives historical backfill. now is overridable for tests;
// production callers get time.Now via New.
type Orchestrator struct {
	store    *store.Store
	prices   *priceservice.Service
	resolver *resolver.Resolver
	learning *reputation.Engine
	now      func() time.Time
}

// New constructs a bootstrap Orchestrator.
func New(st *store.Store, prices *priceservice.Service, res *resolver.Resolver, learning *reputation.Engine) *Orchestrator {
	return &Orchestrator{store: st, prices: prices, resolver: res, learning: learning, now: time.Now}
}

// Run replays messages in chronological order (callers must pre-sort by
// entry time), resuming from any existing progress checkpoint, and
// finishes with one learning pass over every terminal outcome.
func (o *Orchestrator) Run(ctx context.Context, messages []model.Mention) error {
	progress, resuming, err := o.store.LoadProgress()
	if err != nil {
		return fmt.Errorf("bootstrap: loading progress: %w", err)
	}

	processed := 0
	successful := 0
	failed := 0
	if resuming {
		processed = progress.ProcessedMessages
		successful = progress.SuccessfulOutcomes
		failed = progress.FailedOutcomes
	}

	for _, msg := range messages {
		if resuming && msg.MessageID <= progress.LastProcessedMessageID {
			continue
		}

		ok, err := o.processMention(ctx, msg)
		if err != nil {
			return fmt.Errorf("bootstrap: processing message %d: %w", msg.MessageID, err)
		}
		processed++
		if ok {
			successful++
		} else {
			failed++
		}

		if processed%checkpointEvery == 0 {
			if err := o.store.SaveProgress(model.BootstrapProgress{
				TotalMessages:          len(messages),
				ProcessedMessages:      processed,
				LastProcessedMessageID: msg.MessageID,
				LastCheckpointTime:     o.now(),
				SuccessfulOutcomes:     successful,
				FailedOutcomes:         failed,
			}); err != nil {
				return fmt.Errorf("bootstrap: saving progress: %w", err)
			}
		}
	}

	if err := o.runLearningPass(); err != nil {
		return fmt.Errorf("bootstrap: learning pass: %w", err)
	}

	if err := o.store.DeleteProgress(); err != nil {
		return fmt.Errorf("bootstrap: deleting progress: %w", err)
	}
	return nil
}

// processMention implements spec.md §4.G steps 1-5 for a single message.
// ok reports whether a tracked outcome was produced; a false return with a
// nil error means the mention was a duplicate or its price was
// unavailable — both are recorded and skipped, not failures of Run.
func (o *Orchestrator) processMention(ctx context.Context, msg model.Mention) (ok bool, err error) {
	ref, resolveErr := o.resolver.Resolve(msg.TokenRef, msg.ExplicitPrefix)
	if resolveErr != nil {
		log.Warn().Str("channel", msg.ChannelName).Err(resolveErr).Msg("bootstrap: unresolved token reference, skipping")
		return false, nil
	}
	tokenKey := ref.TokenKey()

	dup, signalNumber, prevIDs := o.store.ClassifyMention(tokenKey)
	if dup {
		return false, nil
	}

	entryPrice, priceErr := o.prices.GetAt(ctx, ref, msg.EntryTime)
	if priceErr != nil {
		log.Debug().Str("token_key", tokenKey).Err(priceErr).Msg("bootstrap: entry price unavailable, skipping")
		return false, nil
	}

	signalID := uuid.NewString()
	outcome := lifecycle.New(signalID, msg.ChannelName, ref, signalNumber, prevIDs, msg.MessageID, msg.EntryTime, entryPrice)

	now := o.now()
	elapsed := now.Sub(msg.EntryTime)

	if elapsed >= thirtyDays {
		until := msg.EntryTime.Add(thirtyDays)
		series, seriesErr := o.prices.GetForwardWindow(ctx, ref, msg.EntryTime, until)
		if seriesErr != nil {
			log.Debug().Str("token_key", tokenKey).Err(seriesErr).Msg("bootstrap: forward window unavailable, skipping")
			return false, nil
		}
		driveCheckpoints(&outcome, series, until)
		lifecycle.Terminalize(&outcome)

		if err := o.store.AddActive(outcome); err != nil {
			return false, err
		}
		if err := o.store.Archive(tokenKey); err != nil {
			return false, err
		}
		return true, nil
	}

	series, seriesErr := o.prices.GetForwardWindow(ctx, ref, msg.EntryTime, now)
	if seriesErr != nil {
		log.Debug().Str("token_key", tokenKey).Err(seriesErr).Msg("bootstrap: forward window unavailable, skipping")
		return false, nil
	}
	driveCheckpoints(&outcome, series, now)

	if err := o.store.AddActive(outcome); err != nil {
		return false, err
	}
	return true, nil
}

// driveCheckpoints walks the forward series' daily highs for continuous
// ATH tracking, then fills in every checkpoint whose offset has elapsed
// as of asOf.
func driveCheckpoints(outcome *model.SignalOutcome, series priceservice.OHLCSeries, asOf time.Time) {
	times := make([]time.Time, 0, len(series))
	highs := make([]float64, 0, len(series))
	for _, p := range series {
		times = append(times, p.DayTimestamp)
		highs = append(highs, p.High)
	}
	lifecycle.WalkDailyHighs(outcome, times, highs)

	reached := priceservice.CalculateSmartCheckpoints(outcome.EntryTime, asOf)
	lifecycle.AdvanceReachedCheckpoints(outcome, reached, func(cp model.Checkpoint, at time.Time) (*float64, time.Time) {
		price, found := series.PriceAt(at)
		if !found {
			return nil, at
		}
		p := price
		return &p, at
	})
}

// runLearningPass seeds all three TD levels from every completed signal,
// oldest entry_time first (spec.md §4.G step 7).
func (o *Orchestrator) runLearningPass() error {
	completed := o.store.AllCompleted()
	sort.Slice(completed, func(i, j int) bool {
		return completed[i].EntryTime.Before(completed[j].EntryTime)
	})
	for _, sig := range completed {
		o.learning.OnTerminal(lifecycle.EventFromOutcome(sig))
	}
	return nil
}
