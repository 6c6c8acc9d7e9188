// Package reputation implements the Reputation & Learning Engine of
// spec.md §4.F: three independent temporal-difference updates per
// terminal outcome, a weighted blended prediction for new mentions, and
// lazily-recomputed composite channel scores.
package reputation

import (
	"sync"
	"time"

	"github.com/sawpanic/calltrack/internal/model"
)

// defaultTDAlpha matches config.DefaultEngineConfig().TDAlpha; used when an
// Engine is constructed without an explicit alpha (e.g. by tests).
const defaultTDAlpha = 0.1

// blend weights for Predict (spec.md §4.F).
const (
	weightOverall      = 0.4
	weightChannelToken = 0.5
	weightTokenCross   = 0.1
)

// tdState is one temporal-difference estimate: E <- E + alpha*(a - E),
// seeded to the first observation.
type tdState struct {
	value  float64
	seeded bool
}

func (s *tdState) update(alpha, actual float64) {
	if !s.seeded {
		s.value = actual
		s.seeded = true
		return
	}
	s.value = s.value + alpha*(actual-s.value)
}

// tokenCrossState is the per-token-key cross-channel running state:
// an overall running mean plus per-channel running means, from which
// best/worst channel and consensus_strength are derived.
type tokenCrossState struct {
	totalMentions int
	overallSum    float64
	overallCount  int
	channelSum    map[string]float64
	channelCount  map[string]int
}

func newTokenCrossState() *tokenCrossState {
	return &tokenCrossState{
		channelSum:   map[string]float64{},
		channelCount: map[string]int{},
	}
}

func (t *tokenCrossState) observe(channel string, actual float64) {
	t.totalMentions++
	t.overallSum += actual
	t.overallCount++
	t.channelSum[channel] += actual
	t.channelCount[channel]++
}

func (t *tokenCrossState) avgROI() float64 {
	if t.overallCount == 0 {
		return 0
	}
	return t.overallSum / float64(t.overallCount)
}

// Engine is the sole owner of the three TD states and the per-channel
// reputation cache. Updates are serialized per channel (spec.md §4.F);
// cross-channel token state is serialized by its own per-token-key lock
// since two different channels can update the same token concurrently.
type Engine struct {
	alpha float64

	channelMu sync.Mutex
	channels  map[string]*sync.Mutex

	tokenMu sync.Mutex
	tokens  map[string]*sync.Mutex

	mu           sync.Mutex // guards the three maps below
	overall      map[string]*tdState   // channel -> E_ch
	channelToken map[string]*tdState   // "channel|token_key" -> E
	tokenCross   map[string]*tokenCrossState

	predMu      sync.Mutex
	predictions map[string]float64 // signal_id -> predicted ROI, pending terminal resolution

	cacheMu           sync.Mutex
	predictionHistory map[string][]model.PredictionRecord // channel -> records
	reputationCache   map[string]*model.ChannelReputation
	dirty             map[string]bool
}

// NewEngine constructs an empty learning engine with the default TD alpha
// (0.1). State is filled either by Load from the persisted reputation files
// or by replaying terminal events through OnTerminal, as the bootstrap
// orchestrator's final learning pass does over every completed signal
// (spec.md §4.G step 7).
func NewEngine() *Engine {
	return NewEngineWithAlpha(defaultTDAlpha)
}

// NewEngineWithAlpha constructs an empty learning engine using alpha as the
// TD learning rate for all three update levels — config.EngineConfig.TDAlpha
// (spec.md §6) wired in by cmd/calltrack.
func NewEngineWithAlpha(alpha float64) *Engine {
	return &Engine{
		alpha:             alpha,
		channels:          map[string]*sync.Mutex{},
		tokens:            map[string]*sync.Mutex{},
		overall:           map[string]*tdState{},
		channelToken:      map[string]*tdState{},
		tokenCross:        map[string]*tokenCrossState{},
		predictions:       map[string]float64{},
		predictionHistory: map[string][]model.PredictionRecord{},
		reputationCache:   map[string]*model.ChannelReputation{},
		dirty:             map[string]bool{},
	}
}

func (e *Engine) lockFor(store map[string]*sync.Mutex, guard *sync.Mutex, key string) func() {
	guard.Lock()
	m, ok := store[key]
	if !ok {
		m = &sync.Mutex{}
		store[key] = m
	}
	guard.Unlock()

	m.Lock()
	return m.Unlock
}

func channelTokenKey(channel, tokenKey string) string { return channel + "|" + tokenKey }

// Predict computes the weighted blended ROI prediction for a new mention
// of (channel, tokenKey), recording it as pending so OnTerminal can later
// compute the prediction error for the channel's MAE. If signalID is
// empty, the prediction is not recorded (used for read-only previews).
func (e *Engine) Predict(channel, tokenKey, signalID string) float64 {
	e.mu.Lock()
	var sumWeight, sumWeighted float64
	if st, ok := e.overall[channel]; ok && st.seeded {
		sumWeight += weightOverall
		sumWeighted += weightOverall * st.value
	}
	if st, ok := e.channelToken[channelTokenKey(channel, tokenKey)]; ok && st.seeded {
		sumWeight += weightChannelToken
		sumWeighted += weightChannelToken * st.value
	}
	if tc, ok := e.tokenCross[tokenKey]; ok && tc.overallCount > 0 {
		sumWeight += weightTokenCross
		sumWeighted += weightTokenCross * tc.avgROI()
	}
	e.mu.Unlock()

	predicted := 1.0
	if sumWeight > 0 {
		predicted = sumWeighted / sumWeight
	}

	if signalID != "" {
		e.predMu.Lock()
		e.predictions[signalID] = predicted
		e.predMu.Unlock()
	}
	return predicted
}

// OnTerminal applies the three TD updates for one terminal outcome and
// invalidates the channel's cached reputation (spec.md §4.F). It is the
// consumer side of the lifecycle engine's explicit event handoff.
func (e *Engine) OnTerminal(event model.TerminalEvent) {
	unlockChannel := e.lockFor(e.channels, &e.channelMu, event.Channel)
	defer unlockChannel()

	e.mu.Lock()
	overall, ok := e.overall[event.Channel]
	if !ok {
		overall = &tdState{}
		e.overall[event.Channel] = overall
	}
	overall.update(e.alpha, event.ATHMultiplier)

	ctKey := channelTokenKey(event.Channel, event.TokenKey)
	ct, ok := e.channelToken[ctKey]
	if !ok {
		ct = &tdState{}
		e.channelToken[ctKey] = ct
	}
	ct.update(e.alpha, event.ATHMultiplier)
	e.mu.Unlock()

	unlockToken := e.lockFor(e.tokens, &e.tokenMu, event.TokenKey)
	e.mu.Lock()
	tc, ok := e.tokenCross[event.TokenKey]
	if !ok {
		tc = newTokenCrossState()
		e.tokenCross[event.TokenKey] = tc
	}
	tc.observe(event.Channel, event.ATHMultiplier)
	e.mu.Unlock()
	unlockToken()

	e.recordPrediction(event)
	e.markDirty(event.Channel)
}

func (e *Engine) recordPrediction(event model.TerminalEvent) {
	e.predMu.Lock()
	predicted, ok := e.predictions[event.SignalID]
	if ok {
		delete(e.predictions, event.SignalID)
	}
	e.predMu.Unlock()
	if !ok {
		return
	}

	e.cacheMu.Lock()
	e.predictionHistory[event.Channel] = append(e.predictionHistory[event.Channel], model.PredictionRecord{
		SignalID:  event.SignalID,
		Predicted: predicted,
		Actual:    event.ATHMultiplier,
		At:        time.Now(),
	})
	e.cacheMu.Unlock()
}

func (e *Engine) markDirty(channel string) {
	e.cacheMu.Lock()
	e.dirty[channel] = true
	e.cacheMu.Unlock()
}

// HasChannelTokenHistory reports whether (channel, tokenKey) has its own
// seeded TD state, distinct from the channel's overall or the token's
// cross-channel state (used by the report builder to label prediction_source).
func (e *Engine) HasChannelTokenHistory(channel, tokenKey string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	st, ok := e.channelToken[channelTokenKey(channel, tokenKey)]
	return ok && st.seeded
}

// TokenCrossChannelStats returns the cross-channel consensus view for a
// token key, or false if the token has no terminal history yet.
func (e *Engine) TokenCrossChannelStats(tokenKey string) (model.CrossChannelTokenStats, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	tc, ok := e.tokenCross[tokenKey]
	if !ok || tc.overallCount == 0 {
		return model.CrossChannelTokenStats{}, false
	}

	stats := model.CrossChannelTokenStats{
		TokenKey:      tokenKey,
		TotalMentions: tc.totalMentions,
		ChannelCount:  len(tc.channelSum),
		AvgROI:        tc.avgROI(),
	}

	var channelAvgs []float64
	bestROI, worstROI := -1.0, -1.0
	for channel, sum := range tc.channelSum {
		count := tc.channelCount[channel]
		if count == 0 {
			continue
		}
		avg := sum / float64(count)
		channelAvgs = append(channelAvgs, avg)
		if bestROI < 0 || avg > bestROI {
			bestROI = avg
			stats.BestChannelKey = channel
			stats.BestChannelROI = avg
		}
		if worstROI < 0 || avg < worstROI {
			worstROI = avg
			stats.WorstChannelKey = channel
			stats.WorstChannelROI = avg
		}
	}

	mean, stddev := meanStdDev(channelAvgs)
	if mean > 0 {
		consensus := 1 - (stddev / mean)
		stats.ConsensusStrength = clamp(consensus, 0, 1)
	}

	return stats, true
}
