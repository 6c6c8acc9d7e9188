package reputation

import (
	"math"
	"testing"

	"github.com/sawpanic/calltrack/internal/model"
)

func TestOnTerminal_SeedsAndConvergesTD(t *testing.T) {
	e := NewEngine()

	e.OnTerminal(model.TerminalEvent{SignalID: "s1", Channel: "chan", TokenKey: "ETH", ATHMultiplier: 3.0})
	e.mu.Lock()
	seeded := e.overall["chan"].value
	e.mu.Unlock()
	if seeded != 3.0 {
		t.Fatalf("expected first observation to seed E_ch, got %v", seeded)
	}

	// Repeated identical observations should converge toward that value,
	// never overshoot it: after n updates E_n = 5 - (5-3)*(1-alpha)^n.
	for i := 0; i < 50; i++ {
		e.OnTerminal(model.TerminalEvent{SignalID: "s", Channel: "chan", TokenKey: "ETH", ATHMultiplier: 5.0})
	}
	e.mu.Lock()
	converged := e.overall["chan"].value
	e.mu.Unlock()
	expected := 5.0 - 2.0*math.Pow(1-defaultTDAlpha, 50)
	if math.Abs(converged-expected) > 1e-9 {
		t.Errorf("expected E_50 = %v after repeated updates toward 5.0, got %v", expected, converged)
	}
}

func TestPredict_NoHistoryIsNeutral(t *testing.T) {
	e := NewEngine()
	predicted := e.Predict("chan", "ETH", "")
	if predicted != 1.0 {
		t.Errorf("expected neutral prediction 1.0 with no history, got %v", predicted)
	}
}

func TestPredict_BlendsAvailableLevels(t *testing.T) {
	e := NewEngine()
	e.OnTerminal(model.TerminalEvent{SignalID: "s1", Channel: "chan", TokenKey: "ETH", ATHMultiplier: 2.0})

	predicted := e.Predict("chan", "ETH", "")
	// One outcome seeds all three levels (overall, channel_token and
	// token_cross), each to 2.0.
	if math.Abs(predicted-2.0) > 1e-9 {
		t.Errorf("expected blended prediction 2.0, got %v", predicted)
	}
}

func TestOnTerminal_RecordsPredictionForMAE(t *testing.T) {
	e := NewEngine()
	predicted := e.Predict("chan", "ETH", "sig-1")
	if predicted != 1.0 {
		t.Fatalf("expected neutral first prediction, got %v", predicted)
	}

	e.OnTerminal(model.TerminalEvent{SignalID: "sig-1", Channel: "chan", TokenKey: "ETH", ATHMultiplier: 3.0})

	rep := e.ChannelReputation("chan", []model.SignalOutcome{
		{SignalID: "sig-1", Channel: "chan", TokenRef: model.TokenRef{Symbol: "ETH"}, EntryPrice: 1, ATHPrice: 3},
	})
	if rep.PredictionCount != 1 {
		t.Fatalf("expected 1 recorded prediction, got %d", rep.PredictionCount)
	}
	if math.Abs(rep.MAE-2.0) > 1e-9 {
		t.Errorf("expected MAE |1.0-3.0|=2.0, got %v", rep.MAE)
	}
}

func TestChannelReputation_SmallSampleForcedUnreliable(t *testing.T) {
	e := NewEngine()
	signals := []model.SignalOutcome{
		{SignalID: "1", Channel: "chan", TokenRef: model.TokenRef{Symbol: "A"}, EntryPrice: 1, ATHPrice: 10, DaysToATH: 1, PeakTiming: model.PeakEarly},
	}
	rep := e.ChannelReputation("chan", signals)
	if rep.ReputationTier != "Unreliable" {
		t.Errorf("expected Unreliable tier below 5 signals regardless of score, got %s", rep.ReputationTier)
	}
}

func TestChannelReputation_ScoreClippedTo100(t *testing.T) {
	e := NewEngine()
	var signals []model.SignalOutcome
	for i := 0; i < 10; i++ {
		signals = append(signals, model.SignalOutcome{
			SignalID:   "s",
			Channel:    "chan",
			TokenRef:   model.TokenRef{Symbol: "A"},
			EntryPrice: 1,
			ATHPrice:   20,
			DaysToATH:  1,
			PeakTiming: model.PeakEarly,
		})
	}
	rep := e.ChannelReputation("chan", signals)
	if rep.ReputationScore > 100 {
		t.Errorf("expected score clipped to 100, got %v", rep.ReputationScore)
	}
	if rep.ReputationTier != "Elite" {
		t.Errorf("expected Elite tier for a near-perfect track record, got %s", rep.ReputationTier)
	}
}

func TestTokenCrossChannelStats_ConsensusAndBestWorst(t *testing.T) {
	e := NewEngine()
	e.OnTerminal(model.TerminalEvent{SignalID: "1", Channel: "good-chan", TokenKey: "ETH", ATHMultiplier: 5.0})
	e.OnTerminal(model.TerminalEvent{SignalID: "2", Channel: "bad-chan", TokenKey: "ETH", ATHMultiplier: 1.0})

	stats, ok := e.TokenCrossChannelStats("ETH")
	if !ok {
		t.Fatal("expected stats present")
	}
	if stats.BestChannelKey != "good-chan" {
		t.Errorf("expected best channel good-chan, got %s", stats.BestChannelKey)
	}
	if stats.WorstChannelKey != "bad-chan" {
		t.Errorf("expected worst channel bad-chan, got %s", stats.WorstChannelKey)
	}
	if stats.ConsensusStrength < 0 || stats.ConsensusStrength > 1 {
		t.Errorf("expected consensus strength clamped to [0,1], got %v", stats.ConsensusStrength)
	}
}

func TestTokenCrossChannelStats_AbsentWhenNoHistory(t *testing.T) {
	e := NewEngine()
	_, ok := e.TokenCrossChannelStats("NOPE")
	if ok {
		t.Fatal("expected no stats for an unseen token")
	}
}

func TestOnTerminal_ConcurrentChannelsDoNotRace(t *testing.T) {
	e := NewEngine()
	done := make(chan struct{})
	for i := 0; i < 2; i++ {
		channel := "chan"
		if i == 1 {
			channel = "other"
		}
		go func(ch string) {
			for j := 0; j < 20; j++ {
				e.OnTerminal(model.TerminalEvent{SignalID: ch, Channel: ch, TokenKey: "SHARED", ATHMultiplier: 2.0})
			}
			done <- struct{}{}
		}(channel)
	}
	<-done
	<-done

	stats, ok := e.TokenCrossChannelStats("SHARED")
	if !ok || stats.TotalMentions != 40 {
		t.Errorf("expected 40 total mentions across both channels, got %+v", stats)
	}
}

func TestMedian_OddAndEven(t *testing.T) {
	if median([]float64{1, 2, 3}) != 2 {
		t.Error("expected median of odd-length slice")
	}
	if median([]float64{1, 2, 3, 4}) != 2.5 {
		t.Error("expected median of even-length slice")
	}
}
