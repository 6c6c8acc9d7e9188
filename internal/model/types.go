// Package model defines the entities shared by the tracking store, the
// signal lifecycle engine, the price data service, and the reputation
// engine: TokenRef, SignalOutcome, ChannelReputation, CrossChannelTokenStats,
// PricePoint and BootstrapProgress.
package model

import (
	"fmt"
	"strings"
	"time"
)

// Chain identifies a blockchain using the system's generic, provider-agnostic
// spelling (e.g. "evm", "solana"). Providers translate to their own spelling
// via the resolver's chain-alias table.
type Chain string

const (
	ChainEVM      Chain = "evm"
	ChainSolana   Chain = "solana"
	ChainBitcoin  Chain = "bitcoin"
	ChainUnknown  Chain = "unknown"
)

// TokenRef identifies a token either by address+chain, by symbol, or both.
type TokenRef struct {
	Chain   Chain  `json:"chain"`
	Address string `json:"address,omitempty"`
	Symbol  string `json:"symbol,omitempty"`
}

// Valid reports whether the reference carries enough identity to resolve.
func (t TokenRef) Valid() bool {
	return t.Address != "" || t.Symbol != ""
}

// TokenKey is the canonical, provider-independent identifier for a token:
// (chain, address) lower-cased if an address is known, else the
// upper-cased symbol. Wrapped-native aliasing is applied by the resolver
// before this is computed; TokenKey itself does no aliasing.
func (t TokenRef) TokenKey() string {
	if t.Address != "" {
		return fmt.Sprintf("%s:%s", t.Chain, strings.ToLower(t.Address))
	}
	return strings.ToUpper(t.Symbol)
}

// Checkpoint is one of the fixed ordered offsets at which a signal's price
// is captured relative to its entry time.
type Checkpoint string

const (
	Checkpoint1h  Checkpoint = "1h"
	Checkpoint4h  Checkpoint = "4h"
	Checkpoint24h Checkpoint = "24h"
	Checkpoint3d  Checkpoint = "3d"
	Checkpoint7d  Checkpoint = "7d"
	Checkpoint30d Checkpoint = "30d"
)

// CheckpointOrder is the fixed ascending-offset ordering of all checkpoints.
var CheckpointOrder = []Checkpoint{
	Checkpoint1h, Checkpoint4h, Checkpoint24h, Checkpoint3d, Checkpoint7d, Checkpoint30d,
}

// DefaultCheckpointOffsets gives each checkpoint's offset from entry time.
// It is a fixed table: no configuration key or environment variable
// overrides it.
var DefaultCheckpointOffsets = map[Checkpoint]time.Duration{
	Checkpoint1h:  1 * time.Hour,
	Checkpoint4h:  4 * time.Hour,
	Checkpoint24h: 24 * time.Hour,
	Checkpoint3d:  3 * 24 * time.Hour,
	Checkpoint7d:  7 * 24 * time.Hour,
	Checkpoint30d: 30 * 24 * time.Hour,
}

// CheckpointData is one captured observation at a fixed checkpoint offset.
type CheckpointData struct {
	Timestamp      time.Time `json:"timestamp"`
	Price          *float64  `json:"price"` // nil sentinel: upstream had no data for this checkpoint
	ROIMultiplier  float64   `json:"roi_multiplier"`
	ROIPercentage  float64   `json:"roi_percentage"`
	Reached        bool      `json:"reached"`
}

// OutcomeCategory is the terminal classification of a completed signal.
type OutcomeCategory string

const (
	CategoryMoon      OutcomeCategory = "MOON"
	CategoryWinner    OutcomeCategory = "WINNER"
	CategoryGood      OutcomeCategory = "GOOD"
	CategoryBreakEven OutcomeCategory = "BREAK-EVEN"
	CategoryLoser     OutcomeCategory = "LOSER"
	CategoryCrash     OutcomeCategory = "CRASH"
)

// Trajectory describes how price moved between day 7 and day 30.
type Trajectory string

const (
	TrajectoryImproved Trajectory = "improved"
	TrajectoryCrashed  Trajectory = "crashed"
)

// PeakTiming buckets how early the all-time-high was reached.
type PeakTiming string

const (
	PeakEarly PeakTiming = "early_peaker"
	PeakLate  PeakTiming = "late_peaker"
)

// SignalStatus is the coarse lifecycle state of a SignalOutcome.
type SignalStatus string

const (
	StatusInProgress SignalStatus = "in_progress"
	StatusCompleted  SignalStatus = "completed"
)

// SignalOutcome is the full record of one mention of one token by one
// channel at one entry time, tracked through its 30-day window.
type SignalOutcome struct {
	// identity
	SignalID          string   `json:"signal_id"`
	Channel           string   `json:"channel"`
	TokenRef          TokenRef `json:"token_ref"`
	SignalNumber      int      `json:"signal_number"`
	PreviousSignalIDs []string `json:"previous_signal_ids"`
	FirstMessageID    int64    `json:"first_message_id"`

	// inputs
	EntryTime  time.Time `json:"entry_time"`
	EntryPrice float64   `json:"entry_price"`

	// continuous
	ATHPrice    float64   `json:"ath_price"`
	ATHTime     time.Time `json:"ath_time"`
	DaysToATH   float64   `json:"days_to_ath"`
	CurrentPrice float64  `json:"current_price"`
	CurrentTime  time.Time `json:"current_time"`

	// discrete
	Checkpoints map[Checkpoint]CheckpointData `json:"checkpoints"`

	// terminal (set only once Status == StatusCompleted)
	Day7Price          *float64        `json:"day_7_price,omitempty"`
	Day7Multiplier     *float64        `json:"day_7_multiplier,omitempty"`
	Day7Classification OutcomeCategory `json:"day_7_classification,omitempty"`
	Day30Price         *float64        `json:"day_30_price,omitempty"`
	Day30Multiplier    *float64        `json:"day_30_multiplier,omitempty"`
	Day30Classification OutcomeCategory `json:"day_30_classification,omitempty"`
	Trajectory         Trajectory      `json:"trajectory,omitempty"`
	CrashSeverityPct   float64         `json:"crash_severity_pct"`
	PeakTiming         PeakTiming      `json:"peak_timing,omitempty"`
	OutcomeCategory    OutcomeCategory `json:"outcome_category,omitempty"`
	IsWinner           bool            `json:"is_winner"`

	Status SignalStatus `json:"status"`

	// RetryCount tracks consecutive terminal-attempt failures on the same
	// checkpoint (spec.md §4.E failure semantics); reset on success.
	RetryCount int `json:"retry_count,omitempty"`
	// ProvenanceNote records why a signal was force-completed by the
	// orchestrator after repeated failures (never silent, spec.md §4.E).
	ProvenanceNote string `json:"provenance_note,omitempty"`
}

// ATHMultiplier returns ath_price / entry_price, the quantity the learning
// engine and the classifier both key off.
func (s *SignalOutcome) ATHMultiplier() float64 {
	if s.EntryPrice <= 0 {
		return 0
	}
	return s.ATHPrice / s.EntryPrice
}

// ChannelReputation is a channel's aggregate track record plus learned
// predictions.
type ChannelReputation struct {
	Channel string `json:"channel"`

	TotalSignals      int     `json:"total_signals"`
	Winners           int     `json:"winners"`
	WinRate           float64 `json:"win_rate"`
	AvgROI            float64 `json:"avg_roi"`
	MedianROI         float64 `json:"median_roi"`
	BestROI           float64 `json:"best_roi"`
	WorstROI          float64 `json:"worst_roi"`
	ROIStdDev         float64 `json:"roi_stddev"`
	SharpeLikeRatio   float64 `json:"sharpe_like_ratio"`
	AvgDaysToATH      float64 `json:"avg_days_to_ath"`
	EarlyPeakerPct    float64 `json:"early_peaker_pct"`
	LatePeakerPct     float64 `json:"late_peaker_pct"`
	CrashRatePostDay7 float64 `json:"crash_rate_post_day7"`

	ExpectedROI       float64             `json:"expected_roi"`
	PredictionCount   int                 `json:"prediction_count"`
	MAE               float64             `json:"mae"`
	PredictionHistory []PredictionRecord  `json:"prediction_history"`

	ReputationScore float64 `json:"reputation_score"`
	ReputationTier  string  `json:"reputation_tier"`

	RecommendedHoldPeriod string `json:"recommended_hold_period"`

	CoinStats map[string]*CoinStat `json:"coin_stats"`
}

// PredictionRecord is one (predicted, actual) pair used to compute MAE.
type PredictionRecord struct {
	SignalID  string    `json:"signal_id"`
	Predicted float64   `json:"predicted"`
	Actual    float64   `json:"actual"`
	At        time.Time `json:"at"`
}

// CoinStat is a channel's per-token-key submap entry.
type CoinStat struct {
	Mentions           int       `json:"mentions"`
	AvgROI             float64   `json:"avg_roi"`
	ExpectedROI        float64   `json:"expected_roi"`
	PredictionAccuracy float64   `json:"prediction_accuracy"`
	LastMentioned      time.Time `json:"last_mentioned"`
}

// CrossChannelTokenStats is a token's performance summary across all
// channels that have mentioned it.
type CrossChannelTokenStats struct {
	TokenKey         string  `json:"token_key"`
	TotalMentions    int     `json:"total_mentions"`
	ChannelCount     int     `json:"channel_count"`
	AvgROI           float64 `json:"avg_roi"`
	BestChannelKey   string  `json:"best_channel_key"`
	BestChannelROI   float64 `json:"best_channel_roi"`
	WorstChannelKey  string  `json:"worst_channel_key"`
	WorstChannelROI  float64 `json:"worst_channel_roi"`
	ConsensusStrength float64 `json:"consensus_strength"`
}

// PricePoint is one immutable cache entry: a price observed for a token at
// a daily-bucketed timestamp.
type PricePoint struct {
	TokenKey        string    `json:"token_key"`
	TimestampBucket time.Time `json:"timestamp_bucket"`
	Price           float64   `json:"price"`
	SourceProvider  string    `json:"source_provider"`
	FetchedAt       time.Time `json:"fetched_at"`
}

// BootstrapProgress is the transient checkpoint written by the bootstrap
// orchestrator every N messages, deleted on clean completion.
type BootstrapProgress struct {
	TotalMessages         int       `json:"total_messages"`
	ProcessedMessages     int       `json:"processed_messages"`
	LastProcessedMessageID int64    `json:"last_processed_message_id"`
	LastCheckpointTime    time.Time `json:"last_checkpoint_time"`
	SuccessfulOutcomes    int       `json:"successful_outcomes"`
	FailedOutcomes        int       `json:"failed_outcomes"`
}

// TerminalEvent is the explicit handoff record the lifecycle engine
// produces when a signal reaches its terminal state, consumed by the
// per-channel learning updater queue. This replaces the implicit
// callback/event-bus pattern the source used (see DESIGN.md).
type TerminalEvent struct {
	SignalID        string
	Channel         string
	TokenKey        string
	ATHMultiplier   float64
	Day30Multiplier float64
	DaysToATH       float64
	Trajectory      Trajectory
}

// Mention is the inbound tuple delivered by the (out-of-scope) extraction
// layer — spec.md §6.
type Mention struct {
	MessageID      int64     `json:"message_id"`
	ChannelID      string    `json:"channel_id"`
	ChannelName    string    `json:"channel_name"`
	TokenRef       TokenRef  `json:"token_ref"`
	EntryTime      time.Time `json:"entry_time"`
	ExplicitPrefix bool      `json:"explicit_prefix"`
}
