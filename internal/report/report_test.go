package report

import (
	"testing"
	"time"

	"github.com/sawpanic/calltrack/internal/lifecycle"
	"github.com/sawpanic/calltrack/internal/model"
	"github.com/sawpanic/calltrack/internal/reputation"
	"github.com/sawpanic/calltrack/internal/store"
)

func ptr(f float64) *float64 { return &f }

func seedCompletedSignal(t *testing.T, st *store.Store, learning *reputation.Engine, channel, symbol string, athMultiplier float64, entry time.Time) {
	t.Helper()
	ref := model.TokenRef{Symbol: symbol}
	outcome := lifecycle.New("sig-"+symbol+"-"+channel, channel, ref, 1, nil, 1, entry, 1.0)
	outcome.ATHPrice = athMultiplier
	outcome.DaysToATH = 2
	outcome.Checkpoints[model.Checkpoint7d] = model.CheckpointData{Reached: true, Price: ptr(athMultiplier), ROIMultiplier: athMultiplier}
	outcome.Checkpoints[model.Checkpoint30d] = model.CheckpointData{Reached: true, Price: ptr(athMultiplier), ROIMultiplier: athMultiplier}
	event := lifecycle.Terminalize(&outcome)

	if err := st.AddActive(outcome); err != nil {
		t.Fatalf("unexpected error adding active: %v", err)
	}
	if err := st.Archive(ref.TokenKey()); err != nil {
		t.Fatalf("unexpected error archiving: %v", err)
	}
	learning.OnTerminal(event)
}

func TestChannelRankings_SortedByReputationScoreDescending(t *testing.T) {
	st := store.New(t.TempDir())
	learning := reputation.NewEngine()
	entry := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 6; i++ {
		seedCompletedSignal(t, st, learning, "strong-chan", "TOKA", 3.0, entry.AddDate(0, 0, i))
	}
	for i := 0; i < 6; i++ {
		seedCompletedSignal(t, st, learning, "weak-chan", "TOKB", 0.5, entry.AddDate(0, 0, i))
	}

	b := NewBuilder(st, learning)
	rows := b.ChannelRankings()
	if len(rows) != 2 {
		t.Fatalf("expected 2 channel rows, got %d", len(rows))
	}
	if rows[0].Channel != "strong-chan" {
		t.Errorf("expected strong-chan ranked first, got %s", rows[0].Channel)
	}
	if rows[0].ReputationScore < rows[1].ReputationScore {
		t.Errorf("expected descending reputation_score, got %v then %v", rows[0].ReputationScore, rows[1].ReputationScore)
	}
}

func TestChannelTokenPerformance_OneRowPerChannelToken(t *testing.T) {
	st := store.New(t.TempDir())
	learning := reputation.NewEngine()
	entry := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	seedCompletedSignal(t, st, learning, "chan", "TOKA", 2.0, entry)

	b := NewBuilder(st, learning)
	rows := b.ChannelTokenPerformance()
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	if rows[0].Channel != "chan" || rows[0].TokenKey != "TOKA" {
		t.Errorf("unexpected row identity: %+v", rows[0])
	}
	if rows[0].Mentions != 1 {
		t.Errorf("expected 1 mention, got %d", rows[0].Mentions)
	}
}

func TestTokenCrossChannel_ConsensusAcrossChannels(t *testing.T) {
	st := store.New(t.TempDir())
	learning := reputation.NewEngine()
	entry := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	seedCompletedSignal(t, st, learning, "chan-a", "SHARED", 2.0, entry)
	seedCompletedSignal(t, st, learning, "chan-b", "SHARED", 2.0, entry.AddDate(0, 0, 1))

	b := NewBuilder(st, learning)
	rows := b.TokenCrossChannel()
	if len(rows) != 1 {
		t.Fatalf("expected 1 cross-channel row, got %d", len(rows))
	}
	if rows[0].ChannelCount != 2 {
		t.Errorf("expected 2 channels, got %d", rows[0].ChannelCount)
	}
	if rows[0].TotalMentions != 2 {
		t.Errorf("expected 2 total mentions, got %d", rows[0].TotalMentions)
	}
}

func TestTokenCrossChannel_OmitsTokensWithNoHistory(t *testing.T) {
	st := store.New(t.TempDir())
	learning := reputation.NewEngine()

	b := NewBuilder(st, learning)
	rows := b.TokenCrossChannel()
	if len(rows) != 0 {
		t.Fatalf("expected no rows with no completed signals, got %d", len(rows))
	}
}

func TestPerformance_CarriesFirstMessageIDAndClassification(t *testing.T) {
	st := store.New(t.TempDir())
	learning := reputation.NewEngine()
	entry := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	ref := model.TokenRef{Symbol: "ETH"}
	outcome := lifecycle.New("sig-1", "chan", ref, 1, nil, 42, entry, 1.0)
	outcome.ATHPrice = 6.0
	outcome.DaysToATH = 3
	outcome.Checkpoints[model.Checkpoint7d] = model.CheckpointData{Reached: true, Price: ptr(4.0), ROIMultiplier: 4.0}
	outcome.Checkpoints[model.Checkpoint30d] = model.CheckpointData{Reached: true, Price: ptr(5.5), ROIMultiplier: 5.5}
	lifecycle.Terminalize(&outcome)

	if err := st.AddActive(outcome); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := st.Archive(ref.TokenKey()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	b := NewBuilder(st, learning)
	b.now = func() time.Time { return entry.AddDate(0, 0, 30) }
	rows := b.Performance()
	if len(rows) != 1 {
		t.Fatalf("expected 1 performance row, got %d", len(rows))
	}
	if rows[0].FirstMessageID != 42 {
		t.Errorf("expected first_message_id 42, got %d", rows[0].FirstMessageID)
	}
	if rows[0].OutcomeCategory != model.CategoryMoon {
		t.Errorf("expected MOON classification, got %s", rows[0].OutcomeCategory)
	}
}

func TestMessages_PredictionSourceNoneWithoutHistory(t *testing.T) {
	st := store.New(t.TempDir())
	learning := reputation.NewEngine()
	entry := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	b := NewBuilder(st, learning)
	rows := b.Messages([]MessageEntry{
		{Mention: model.Mention{MessageID: 1, ChannelName: "chan", TokenRef: model.TokenRef{Symbol: "ETH"}, EntryTime: entry}},
	})
	if len(rows) != 1 {
		t.Fatalf("expected 1 message row, got %d", len(rows))
	}
	if rows[0].PredictionSource != PredictionNone {
		t.Errorf("expected prediction_source=none with no history, got %s", rows[0].PredictionSource)
	}
}

func TestMessages_PredictionSourceChannelTokenAfterHistory(t *testing.T) {
	st := store.New(t.TempDir())
	learning := reputation.NewEngine()
	entry := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	seedCompletedSignal(t, st, learning, "chan", "ETH", 2.0, entry)

	b := NewBuilder(st, learning)
	rows := b.Messages([]MessageEntry{
		{Mention: model.Mention{MessageID: 2, ChannelName: "chan", TokenRef: model.TokenRef{Symbol: "ETH"}, EntryTime: entry.AddDate(0, 0, 1)}},
	})
	if len(rows) != 1 {
		t.Fatalf("expected 1 message row, got %d", len(rows))
	}
	if rows[0].PredictionSource == PredictionNone {
		t.Errorf("expected a non-none prediction source once channel/token history exists, got %s", rows[0].PredictionSource)
	}
}
