// Package report builds the read-only export snapshots of spec.md §6:
// MESSAGES, CHANNEL_RANKINGS, CHANNEL_TOKEN_PERFORMANCE,
// TOKEN_CROSS_CHANNEL and PERFORMANCE. These are pure projections over the
// store and the learning engine — no mutation, no I/O.
package report

import (
	"sort"
	"time"

	"github.com/sawpanic/calltrack/internal/model"
	"github.com/sawpanic/calltrack/internal/reputation"
	"github.com/sawpanic/calltrack/internal/store"
)

// PredictionSource identifies which blend levels fed a MESSAGES row's
// prediction, matching spec.md §6's enumerated values.
type PredictionSource string

const (
	PredictionNone         PredictionSource = "none"
	PredictionOverall      PredictionSource = "overall"
	PredictionChannelToken PredictionSource = "channel_token"
	PredictionBlended      PredictionSource = "blended"
)

// MessageRow is one row of the MESSAGES export.
type MessageRow struct {
	MessageID                int64
	Timestamp                time.Time
	Channel                  string
	TokenAddress             string
	TokenChain               model.Chain
	TokenSymbol              string
	ChannelReputationScore   float64
	ChannelReputationTier    string
	ChannelExpectedROIOverall float64
	ChannelExpectedROIToken  float64
	ChannelWinRate           float64
	PredictionSource         PredictionSource
}

// ChannelRankingRow is one row of the CHANNEL_RANKINGS export, the set
// sorted by ReputationScore descending.
type ChannelRankingRow struct {
	Channel         string
	TotalSignals    int
	WinRate         float64
	AvgROI          float64
	MedianROI       float64
	BestROI         float64
	WorstROI        float64
	ExpectedROI     float64
	SharpeLike      float64
	SpeedScore      float64
	ReputationScore float64
	ReputationTier  string
	PredictionCount int
	MAE             float64
	FirstSignalDate time.Time
	LastSignalDate  time.Time
	LastUpdated     time.Time
}

// ChannelTokenPerformanceRow is one row of the CHANNEL_TOKEN_PERFORMANCE
// export.
type ChannelTokenPerformanceRow struct {
	Channel            string
	TokenKey           string
	Mentions           int
	AvgROI             float64
	ExpectedROI        float64
	WinRate            float64
	BestROI            float64
	WorstROI           float64
	PredictionAccuracy float64
	LastMentioned      time.Time
	Recommendation     string
}

// TokenCrossChannelRow is one row of the TOKEN_CROSS_CHANNEL export.
type TokenCrossChannelRow struct {
	TokenKey          string
	TotalMentions     int
	ChannelCount      int
	AvgROI            float64
	BestChannel       string
	BestChannelROI    float64
	WorstChannel      string
	WorstChannelROI   float64
	ConsensusStrength float64
}

// PerformanceRow is one row of the per-signal PERFORMANCE export.
type PerformanceRow struct {
	TokenAddress       string
	Chain              model.Chain
	FirstMessageID     int64
	EntryPrice         float64
	EntryTime          time.Time
	ATHPrice           float64
	ATHTime            time.Time
	ATHMultiplier      float64
	CurrentMultiplier  float64
	DaysTracked        float64
	DaysToATH          float64
	PeakTiming         model.PeakTiming
	Day7Price          *float64
	Day7Multiplier     *float64
	Day7Classification model.OutcomeCategory
	Day30Price         *float64
	Day30Multiplier    *float64
	Day30Classification model.OutcomeCategory
	Trajectory         model.Trajectory
	OutcomeCategory    model.OutcomeCategory
}

// Builder projects store state and learning-engine state into the
// read-model tables. now is injected for deterministic tests.
type Builder struct {
	store    *store.Store
	learning *reputation.Engine
	now      func() time.Time
}

// NewBuilder constructs a report Builder.
func NewBuilder(st *store.Store, learning *reputation.Engine) *Builder {
	return &Builder{store: st, learning: learning, now: time.Now}
}

// Messages builds the MESSAGES export from a caller-supplied slice of
// mentions, one row per mention, each carrying the channel's current
// reputation and the prediction levels available for the mention's token.
// prediction_source is none only while neither the channel nor the
// channel×token pair has terminal history.
func (b *Builder) Messages(entries []MessageEntry) []MessageRow {
	rows := make([]MessageRow, 0, len(entries))
	for _, e := range entries {
		channel := e.Mention.ChannelName
		tokenKey := e.Mention.TokenRef.TokenKey()

		rep := b.channelReputationOrEmpty(channel)
		overall := rep.ExpectedROI
		tokenExpected := b.learning.Predict(channel, tokenKey, "")

		source := PredictionNone
		switch {
		case rep.TotalSignals > 0 && tokenExpected != overall:
			source = PredictionBlended
		case rep.TotalSignals > 0:
			source = PredictionOverall
		}
		if b.hasChannelTokenHistory(channel, tokenKey) {
			source = PredictionChannelToken
			if rep.TotalSignals > 0 {
				source = PredictionBlended
			}
		}

		rows = append(rows, MessageRow{
			MessageID:                 e.Mention.MessageID,
			Timestamp:                 e.Mention.EntryTime,
			Channel:                   channel,
			TokenAddress:              e.Mention.TokenRef.Address,
			TokenChain:                e.Mention.TokenRef.Chain,
			TokenSymbol:               e.Mention.TokenRef.Symbol,
			ChannelReputationScore:    rep.ReputationScore,
			ChannelReputationTier:     rep.ReputationTier,
			ChannelExpectedROIOverall: overall,
			ChannelExpectedROIToken:   tokenExpected,
			ChannelWinRate:            rep.WinRate,
			PredictionSource:          source,
		})
	}
	return rows
}

// MessageEntry wraps one inbound mention to render as a MESSAGES row.
type MessageEntry struct {
	Mention model.Mention
}

func (b *Builder) channelReputationOrEmpty(channel string) model.ChannelReputation {
	_, completed := b.store.Snapshot()
	var channelSignals []model.SignalOutcome
	for _, list := range completed {
		for _, sig := range list {
			if sig.Channel == channel {
				channelSignals = append(channelSignals, sig)
			}
		}
	}
	return *b.learning.ChannelReputation(channel, channelSignals)
}

func (b *Builder) hasChannelTokenHistory(channel, tokenKey string) bool {
	return b.learning.HasChannelTokenHistory(channel, tokenKey)
}

// ChannelRankings builds the CHANNEL_RANKINGS export, sorted by
// reputation_score descending (spec.md §6).
func (b *Builder) ChannelRankings() []ChannelRankingRow {
	_, completed := b.store.Snapshot()

	byChannel := map[string][]model.SignalOutcome{}
	for _, list := range completed {
		for _, sig := range list {
			byChannel[sig.Channel] = append(byChannel[sig.Channel], sig)
		}
	}

	rows := make([]ChannelRankingRow, 0, len(byChannel))
	now := b.now()
	for channel, signals := range byChannel {
		rep := b.learning.ChannelReputation(channel, signals)

		first, last := signals[0].EntryTime, signals[0].EntryTime
		for _, sig := range signals {
			if sig.EntryTime.Before(first) {
				first = sig.EntryTime
			}
			if sig.EntryTime.After(last) {
				last = sig.EntryTime
			}
		}

		speedScore := 0.0
		if rep.AvgDaysToATH > 0 || rep.TotalSignals > 0 {
			speedScore = clampToRange((14-rep.AvgDaysToATH)/14, 0, 1) * 100
		}

		rows = append(rows, ChannelRankingRow{
			Channel:         channel,
			TotalSignals:    rep.TotalSignals,
			WinRate:         rep.WinRate,
			AvgROI:          rep.AvgROI,
			MedianROI:       rep.MedianROI,
			BestROI:         rep.BestROI,
			WorstROI:        rep.WorstROI,
			ExpectedROI:     rep.ExpectedROI,
			SharpeLike:      rep.SharpeLikeRatio,
			SpeedScore:      speedScore,
			ReputationScore: rep.ReputationScore,
			ReputationTier:  rep.ReputationTier,
			PredictionCount: rep.PredictionCount,
			MAE:             rep.MAE,
			FirstSignalDate: first,
			LastSignalDate:  last,
			LastUpdated:     now,
		})
	}

	sort.Slice(rows, func(i, j int) bool {
		return rows[i].ReputationScore > rows[j].ReputationScore
	})
	return rows
}

func clampToRange(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// ChannelTokenPerformance builds the CHANNEL_TOKEN_PERFORMANCE export.
func (b *Builder) ChannelTokenPerformance() []ChannelTokenPerformanceRow {
	_, completed := b.store.Snapshot()

	byChannel := map[string][]model.SignalOutcome{}
	for _, list := range completed {
		for _, sig := range list {
			byChannel[sig.Channel] = append(byChannel[sig.Channel], sig)
		}
	}

	var rows []ChannelTokenPerformanceRow
	for channel, signals := range byChannel {
		rep := b.learning.ChannelReputation(channel, signals)
		for tokenKey, stat := range rep.CoinStats {
			recommendation := rep.RecommendedHoldPeriod
			rows = append(rows, ChannelTokenPerformanceRow{
				Channel:            channel,
				TokenKey:           tokenKey,
				Mentions:           stat.Mentions,
				AvgROI:             stat.AvgROI,
				ExpectedROI:        stat.ExpectedROI,
				WinRate:            winRateFor(signals, tokenKey),
				BestROI:            bestROIFor(signals, tokenKey),
				WorstROI:           worstROIFor(signals, tokenKey),
				PredictionAccuracy: stat.PredictionAccuracy,
				LastMentioned:      stat.LastMentioned,
				Recommendation:     recommendation,
			})
		}
	}
	return rows
}

func winRateFor(signals []model.SignalOutcome, tokenKey string) float64 {
	total, winners := 0, 0
	for _, sig := range signals {
		if sig.TokenRef.TokenKey() != tokenKey {
			continue
		}
		total++
		if sig.IsWinner {
			winners++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(winners) / float64(total)
}

func bestROIFor(signals []model.SignalOutcome, tokenKey string) float64 {
	best := 0.0
	for _, sig := range signals {
		if sig.TokenRef.TokenKey() != tokenKey {
			continue
		}
		if m := sig.ATHMultiplier(); m > best {
			best = m
		}
	}
	return best
}

func worstROIFor(signals []model.SignalOutcome, tokenKey string) float64 {
	worst := -1.0
	for _, sig := range signals {
		if sig.TokenRef.TokenKey() != tokenKey {
			continue
		}
		if m := sig.ATHMultiplier(); worst < 0 || m < worst {
			worst = m
		}
	}
	if worst < 0 {
		return 0
	}
	return worst
}

// TokenCrossChannel builds the TOKEN_CROSS_CHANNEL export over every
// token key with completed-signal history.
func (b *Builder) TokenCrossChannel() []TokenCrossChannelRow {
	_, completed := b.store.Snapshot()

	seen := map[string]bool{}
	var rows []TokenCrossChannelRow
	for _, list := range completed {
		for _, sig := range list {
			tokenKey := sig.TokenRef.TokenKey()
			if seen[tokenKey] {
				continue
			}
			seen[tokenKey] = true

			stats, ok := b.learning.TokenCrossChannelStats(tokenKey)
			if !ok {
				continue
			}
			rows = append(rows, TokenCrossChannelRow{
				TokenKey:          stats.TokenKey,
				TotalMentions:     stats.TotalMentions,
				ChannelCount:      stats.ChannelCount,
				AvgROI:            stats.AvgROI,
				BestChannel:       stats.BestChannelKey,
				BestChannelROI:    stats.BestChannelROI,
				WorstChannel:      stats.WorstChannelKey,
				WorstChannelROI:   stats.WorstChannelROI,
				ConsensusStrength: stats.ConsensusStrength,
			})
		}
	}
	return rows
}

// Performance builds the per-signal PERFORMANCE export across both active
// and completed signals.
func (b *Builder) Performance() []PerformanceRow {
	active, completed := b.store.Snapshot()

	var all []model.SignalOutcome
	for _, sig := range active {
		all = append(all, sig)
	}
	for _, list := range completed {
		all = append(all, list...)
	}

	now := b.now()
	rows := make([]PerformanceRow, 0, len(all))
	for _, sig := range all {
		daysTracked := now.Sub(sig.EntryTime).Hours() / 24
		currentMultiplier := 0.0
		if sig.EntryPrice > 0 {
			currentMultiplier = sig.CurrentPrice / sig.EntryPrice
		}

		rows = append(rows, PerformanceRow{
			TokenAddress:         sig.TokenRef.Address,
			Chain:                sig.TokenRef.Chain,
			FirstMessageID:       sig.FirstMessageID,
			EntryPrice:           sig.EntryPrice,
			EntryTime:            sig.EntryTime,
			ATHPrice:             sig.ATHPrice,
			ATHTime:              sig.ATHTime,
			ATHMultiplier:        sig.ATHMultiplier(),
			CurrentMultiplier:    currentMultiplier,
			DaysTracked:          daysTracked,
			DaysToATH:            sig.DaysToATH,
			PeakTiming:           sig.PeakTiming,
			Day7Price:            sig.Day7Price,
			Day7Multiplier:       sig.Day7Multiplier,
			Day7Classification:   sig.Day7Classification,
			Day30Price:           sig.Day30Price,
			Day30Multiplier:      sig.Day30Multiplier,
			Day30Classification:  sig.Day30Classification,
			Trajectory:           sig.Trajectory,
			OutcomeCategory:      sig.OutcomeCategory,
		})
	}
	return rows
}
