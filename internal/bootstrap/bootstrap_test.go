package bootstrap

import (
	"context"
	"testing"
	"time"

	"github.com/sawpanic/calltrack/internal/config"
	"github.com/sawpanic/calltrack/internal/model"
	"github.com/sawpanic/calltrack/internal/priceservice"
	"github.com/sawpanic/calltrack/internal/reputation"
	"github.com/sawpanic/calltrack/internal/resolver"
	"github.com/sawpanic/calltrack/internal/store"
)

func testResolver() *resolver.Resolver {
	return resolver.New(&config.WrappedNativeAliases{Aliases: map[string]string{}}, config.DefaultAmbiguousSymbolBlocklist(), nil)
}

type fakeSource struct {
	currentPrice float64
	atPrice      float64
	series       priceservice.OHLCSeries
}

func (f *fakeSource) Name() string { return "fake" }
func (f *fakeSource) Current(ctx context.Context, ref model.TokenRef) (priceservice.PriceReading, error) {
	return priceservice.PriceReading{Price: f.currentPrice}, nil
}
func (f *fakeSource) At(ctx context.Context, ref model.TokenRef, ts time.Time) (float64, error) {
	return f.atPrice, nil
}
func (f *fakeSource) Forward(ctx context.Context, ref model.TokenRef, from, until time.Time) (priceservice.OHLCSeries, error) {
	return f.series, nil
}

func buildSeries(entry time.Time, days int, closeFn func(int) float64) priceservice.OHLCSeries {
	var series priceservice.OHLCSeries
	for i := 0; i <= days; i++ {
		c := closeFn(i)
		series = append(series, priceservice.OHLCPoint{
			DayTimestamp: entry.AddDate(0, 0, i).Truncate(24 * time.Hour),
			Open:         c, High: c, Low: c, Close: c,
		})
	}
	return series
}

func newTestService(t *testing.T, source *fakeSource) *priceservice.Service {
	t.Helper()
	hist, err := priceservice.NewHistoricalCache("")
	if err != nil {
		t.Fatalf("unexpected error building historical cache: %v", err)
	}
	hot := priceservice.NewHotCache("", time.Minute)
	return priceservice.NewService(priceservice.Chains{
		CurrentSymbol: []priceservice.Source{source},
		HistoricalAt:  []priceservice.Source{source},
		Forward:       []priceservice.Source{source},
	}, hist, hot)
}

func TestRun_OldMentionTerminalizesAndArchives(t *testing.T) {
	entry := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	source := &fakeSource{
		atPrice: 1.0,
		series:  buildSeries(entry, 30, func(i int) float64 { return 1.0 + float64(i)*0.5 }),
	}
	svc := newTestService(t, source)
	st := store.New(t.TempDir())
	learning := reputation.NewEngine()
	o := New(st, svc, testResolver(), learning)
	o.now = func() time.Time { return entry.Add(60 * 24 * time.Hour) }

	err := o.Run(context.Background(), []model.Mention{
		{MessageID: 1, ChannelName: "chan", TokenRef: model.TokenRef{Symbol: "ETH"}, EntryTime: entry},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, completed := st.Snapshot()
	if len(completed["ETH"]) != 1 {
		t.Fatalf("expected 1 archived signal, got %d", len(completed["ETH"]))
	}
	if completed["ETH"][0].Status != model.StatusCompleted {
		t.Errorf("expected completed status, got %v", completed["ETH"][0].Status)
	}
}

func TestRun_RecentMentionStaysInProgress(t *testing.T) {
	entry := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	source := &fakeSource{
		atPrice: 1.0,
		series:  buildSeries(entry, 2, func(i int) float64 { return 1.0 }),
	}
	svc := newTestService(t, source)
	st := store.New(t.TempDir())
	learning := reputation.NewEngine()
	o := New(st, svc, testResolver(), learning)
	o.now = func() time.Time { return entry.Add(2 * 24 * time.Hour) }

	err := o.Run(context.Background(), []model.Mention{
		{MessageID: 1, ChannelName: "chan", TokenRef: model.TokenRef{Symbol: "ETH"}, EntryTime: entry},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	active, _ := st.Snapshot()
	if _, ok := active["ETH"]; !ok {
		t.Fatal("expected signal to remain active (in progress)")
	}
}

func TestRun_DuplicateMentionSkipped(t *testing.T) {
	entry := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	source := &fakeSource{atPrice: 1.0, series: buildSeries(entry, 1, func(i int) float64 { return 1.0 })}
	svc := newTestService(t, source)
	st := store.New(t.TempDir())
	learning := reputation.NewEngine()
	o := New(st, svc, testResolver(), learning)
	o.now = func() time.Time { return entry.Add(1 * 24 * time.Hour) }

	msgs := []model.Mention{
		{MessageID: 1, ChannelName: "chan", TokenRef: model.TokenRef{Symbol: "ETH"}, EntryTime: entry},
		{MessageID: 2, ChannelName: "chan", TokenRef: model.TokenRef{Symbol: "ETH"}, EntryTime: entry},
	}
	if err := o.Run(context.Background(), msgs); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	active, _ := st.Snapshot()
	if active["ETH"].SignalNumber != 1 {
		t.Errorf("expected only the first mention to create a signal, got signal_number %d", active["ETH"].SignalNumber)
	}
}

func TestRun_DeletesProgressFileOnCleanFinish(t *testing.T) {
	entry := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	source := &fakeSource{atPrice: 1.0, series: buildSeries(entry, 1, func(i int) float64 { return 1.0 })}
	svc := newTestService(t, source)
	st := store.New(t.TempDir())
	learning := reputation.NewEngine()
	o := New(st, svc, testResolver(), learning)
	o.now = func() time.Time { return entry.Add(1 * 24 * time.Hour) }

	if err := o.Run(context.Background(), []model.Mention{
		{MessageID: 1, ChannelName: "chan", TokenRef: model.TokenRef{Symbol: "ETH"}, EntryTime: entry},
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, found, err := st.LoadProgress()
	if err != nil {
		t.Fatalf("unexpected error loading progress: %v", err)
	}
	if found {
		t.Error("expected progress file to be deleted on clean finish")
	}
}

func TestRun_ChronologicalLearningPassSeedsReputation(t *testing.T) {
	entry := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	source := &fakeSource{
		atPrice: 1.0,
		series:  buildSeries(entry, 30, func(i int) float64 { return 1.0 + float64(i)*0.2 }),
	}
	svc := newTestService(t, source)
	st := store.New(t.TempDir())
	learning := reputation.NewEngine()
	o := New(st, svc, testResolver(), learning)
	o.now = func() time.Time { return entry.Add(60 * 24 * time.Hour) }

	if err := o.Run(context.Background(), []model.Mention{
		{MessageID: 1, ChannelName: "chan", TokenRef: model.TokenRef{Symbol: "ETH"}, EntryTime: entry},
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	predicted := learning.Predict("chan", "ETH", "")
	if predicted == 1.0 {
		t.Error("expected learning pass to have seeded channel history, prediction still neutral")
	}
}
