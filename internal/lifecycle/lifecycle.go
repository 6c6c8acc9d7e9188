// Package lifecycle implements the Signal Lifecycle Engine of spec.md
// §4.E: the per-signal state machine that captures checkpoints, tracks
// all-time-high continuously, and classifies a signal on terminal reach.
package lifecycle

import (
	"time"

	"github.com/sawpanic/calltrack/internal/model"
)

// classification thresholds on the final ATH multiplier (spec.md §4.E).
const (
	moonThreshold      = 5.0
	winnerThreshold    = 2.0
	goodThreshold      = 1.5
	breakEvenThreshold = 1.0
	crashDay30Cutoff   = 0.5
)

// New constructs a fresh in_progress SignalOutcome for a newly obtained
// entry price — the "new --(entry_price obtained)--> in_progress"
// transition.
func New(signalID, channel string, ref model.TokenRef, signalNumber int, previousSignalIDs []string, firstMessageID int64, entryTime time.Time, entryPrice float64) model.SignalOutcome {
	return model.SignalOutcome{
		SignalID:          signalID,
		Channel:           channel,
		TokenRef:          ref,
		SignalNumber:      signalNumber,
		PreviousSignalIDs: previousSignalIDs,
		FirstMessageID:    firstMessageID,
		EntryTime:         entryTime,
		EntryPrice:        entryPrice,
		ATHPrice:          entryPrice,
		ATHTime:           entryTime,
		CurrentPrice:      entryPrice,
		CurrentTime:       entryTime,
		Checkpoints:       make(map[model.Checkpoint]model.CheckpointData),
		Status:            model.StatusInProgress,
	}
}

// Observe feeds one price observation into the signal's continuous ATH
// tracking. A price <= 0 is rejected as corrupt and dropped (spec.md §4.E
// edge cases).
func Observe(s *model.SignalOutcome, observedTime time.Time, price float64) {
	if price <= 0 {
		return
	}
	if price > s.ATHPrice {
		s.ATHPrice = price
		s.ATHTime = observedTime
		s.DaysToATH = observedTime.Sub(s.EntryTime).Hours() / 24
	}
	s.CurrentPrice = price
	s.CurrentTime = observedTime
}

// CaptureCheckpoint fills in the CheckpointData entry for checkpoint cp at
// the given observation, if not already captured. A nil price is the
// sentinel for "upstream had no data"; the checkpoint is still marked
// reached so the engine does not block on it (spec.md §4.E edge cases).
func CaptureCheckpoint(s *model.SignalOutcome, cp model.Checkpoint, observedTime time.Time, price *float64) {
	if existing, ok := s.Checkpoints[cp]; ok && existing.Reached {
		return
	}

	data := model.CheckpointData{Timestamp: observedTime, Reached: true}
	if price != nil && *price > 0 {
		data.Price = price
		data.ROIMultiplier = *price / s.EntryPrice
		data.ROIPercentage = (data.ROIMultiplier - 1) * 100
		Observe(s, observedTime, *price)
	}
	if s.Checkpoints == nil {
		s.Checkpoints = make(map[model.Checkpoint]model.CheckpointData)
	}
	s.Checkpoints[cp] = data
}

// AdvanceReachedCheckpoints captures every checkpoint in reached that has
// not yet been filled, fetching the price for each via get. get is called
// at most once per uncaptured checkpoint, in ascending offset order.
func AdvanceReachedCheckpoints(s *model.SignalOutcome, reached map[model.Checkpoint]bool, get func(model.Checkpoint, time.Time) (*float64, time.Time)) {
	for _, cp := range model.CheckpointOrder {
		if !reached[cp] {
			continue
		}
		if existing, ok := s.Checkpoints[cp]; ok && existing.Reached {
			continue
		}
		price, observedAt := get(cp, s.EntryTime.Add(model.DefaultCheckpointOffsets[cp]))
		CaptureCheckpoint(s, cp, observedAt, price)
	}
}

// WalkDailyHighs updates ath_price/ath_time/days_to_ath across a daily OHLC
// series for backfill mode, where the engine has the whole forward window
// at once rather than one live observation at a time. times and highs must
// be parallel slices of equal length, in chronological order.
func WalkDailyHighs(s *model.SignalOutcome, times []time.Time, highs []float64) {
	for i, t := range times {
		Observe(s, t, highs[i])
	}
}

// Terminalize applies the 30-day terminal transition: day-7 and day-30
// classification, trajectory, crash severity, peak timing, and the
// is_winner/outcome_category fields. It mutates s in place and returns the
// TerminalEvent handoff record for the learning engine (spec.md §4.F).
func Terminalize(s *model.SignalOutcome) model.TerminalEvent {
	day7 := checkpointMultiplier(s, model.Checkpoint7d)
	day30 := checkpointMultiplier(s, model.Checkpoint30d)

	athMultiplier := s.ATHMultiplier()

	if day7 != nil {
		d7 := *day7
		s.Day7Multiplier = &d7
		p7 := *s.Checkpoints[model.Checkpoint7d].Price
		s.Day7Price = &p7
		s.Day7Classification = classifyAtDay(athAtOrBefore(s, model.Checkpoint7d))
	}
	if day30 != nil {
		d30 := *day30
		s.Day30Multiplier = &d30
		p30 := *s.Checkpoints[model.Checkpoint30d].Price
		s.Day30Price = &p30
	}

	s.OutcomeCategory = classifyFinal(athMultiplier, day30)
	s.Day30Classification = s.OutcomeCategory
	s.IsWinner = s.OutcomeCategory == model.CategoryMoon || s.OutcomeCategory == model.CategoryWinner || s.OutcomeCategory == model.CategoryGood

	if day30 != nil && day7 != nil {
		if *day30 < *day7 {
			s.Trajectory = model.TrajectoryCrashed
			s.CrashSeverityPct = maxFloat(0, (*day7-*day30)/ *day7*100)
		} else {
			s.Trajectory = model.TrajectoryImproved
			s.CrashSeverityPct = 0
		}
	} else {
		// null day_7: trajectory tolerated as improved, severity 0
		// (spec.md §4.E edge cases).
		s.Trajectory = model.TrajectoryImproved
		s.CrashSeverityPct = 0
	}

	if s.DaysToATH <= 7 {
		s.PeakTiming = model.PeakEarly
	} else {
		s.PeakTiming = model.PeakLate
	}

	s.Status = model.StatusCompleted

	day30Mult := 0.0
	if s.Day30Multiplier != nil {
		day30Mult = *s.Day30Multiplier
	}

	return model.TerminalEvent{
		SignalID:        s.SignalID,
		Channel:         s.Channel,
		TokenKey:        s.TokenRef.TokenKey(),
		ATHMultiplier:   athMultiplier,
		Day30Multiplier: day30Mult,
		DaysToATH:       s.DaysToATH,
		Trajectory:      s.Trajectory,
	}
}

// EventFromOutcome reconstructs the TerminalEvent handoff record from an
// already-completed SignalOutcome, for replay scenarios where the engine
// itself isn't driving the transition live — the bootstrap orchestrator's
// single chronological learning pass (spec.md §4.G step 7) and resume.
func EventFromOutcome(s model.SignalOutcome) model.TerminalEvent {
	day30 := 0.0
	if s.Day30Multiplier != nil {
		day30 = *s.Day30Multiplier
	}
	return model.TerminalEvent{
		SignalID:        s.SignalID,
		Channel:         s.Channel,
		TokenKey:        s.TokenRef.TokenKey(),
		ATHMultiplier:   s.ATHMultiplier(),
		Day30Multiplier: day30,
		DaysToATH:       s.DaysToATH,
		Trajectory:      s.Trajectory,
	}
}

// checkpointMultiplier returns the ROI multiplier at cp, or nil if the
// checkpoint was never reached or recorded with a null price.
func checkpointMultiplier(s *model.SignalOutcome, cp model.Checkpoint) *float64 {
	data, ok := s.Checkpoints[cp]
	if !ok || !data.Reached || data.Price == nil {
		return nil
	}
	m := data.ROIMultiplier
	return &m
}

// athAtOrBefore returns the ATH multiplier as of a checkpoint's timestamp.
// The engine does not retain a full ATH history, so day-7 classification
// uses the signal's ATH-so-far if the ATH was reached at or before day 7,
// else the day-7 checkpoint price itself (a lower bound on ATH-so-far,
// consistent with "ATH-so-far at day 7" since no later peak has occurred
// yet when the checkpoint transition fires in live/backfill order).
func athAtOrBefore(s *model.SignalOutcome, cp model.Checkpoint) float64 {
	data, ok := s.Checkpoints[cp]
	if s.DaysToATH <= daysForCheckpoint(cp) && s.EntryPrice > 0 {
		return s.ATHMultiplier()
	}
	if ok && data.Price != nil && s.EntryPrice > 0 {
		return *data.Price / s.EntryPrice
	}
	return 0
}

func daysForCheckpoint(cp model.Checkpoint) float64 {
	return model.DefaultCheckpointOffsets[cp].Hours() / 24
}

// classifyAtDay applies the ATH-threshold ladder restricted to
// {MOON, WINNER, GOOD, LOSER} for the day-7 snapshot (spec.md §4.E).
func classifyAtDay(ath float64) model.OutcomeCategory {
	switch {
	case ath >= moonThreshold:
		return model.CategoryMoon
	case ath >= winnerThreshold:
		return model.CategoryWinner
	case ath >= goodThreshold:
		return model.CategoryGood
	default:
		return model.CategoryLoser
	}
}

// classifyFinal applies the full terminal classification ladder, CRASH
// overriding all else when day30 < 0.5 (spec.md §4.E).
func classifyFinal(ath float64, day30 *float64) model.OutcomeCategory {
	if day30 != nil && *day30 < crashDay30Cutoff {
		return model.CategoryCrash
	}
	d30 := 0.0
	if day30 != nil {
		d30 = *day30
	}
	switch {
	case ath >= moonThreshold:
		return model.CategoryMoon
	case ath >= winnerThreshold && d30 >= 1.0:
		return model.CategoryWinner
	case ath >= goodThreshold && d30 >= 0.9:
		return model.CategoryGood
	case ath >= breakEvenThreshold && d30 >= 0.9:
		return model.CategoryBreakEven
	default:
		return model.CategoryLoser
	}
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
