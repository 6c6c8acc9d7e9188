package httpapi

import (
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sawpanic/calltrack/internal/lifecycle"
	"github.com/sawpanic/calltrack/internal/model"
	"github.com/sawpanic/calltrack/internal/report"
	"github.com/sawpanic/calltrack/internal/reputation"
	"github.com/sawpanic/calltrack/internal/store"
)

func ptr(f float64) *float64 { return &f }

func newTestServer(t *testing.T) *Server {
	t.Helper()
	st := store.New(t.TempDir())
	learning := reputation.NewEngine()

	entry := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	ref := model.TokenRef{Symbol: "ETH"}
	outcome := lifecycle.New("sig-1", "chan", ref, 1, nil, 1, entry, 1.0)
	outcome.ATHPrice = 3.0
	outcome.DaysToATH = 2
	outcome.Checkpoints[model.Checkpoint7d] = model.CheckpointData{Reached: true, Price: ptr(2.0), ROIMultiplier: 2.0}
	outcome.Checkpoints[model.Checkpoint30d] = model.CheckpointData{Reached: true, Price: ptr(2.5), ROIMultiplier: 2.5}
	event := lifecycle.Terminalize(&outcome)
	if err := st.AddActive(outcome); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := st.Archive(ref.TokenKey()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	learning.OnTerminal(event)

	builder := report.NewBuilder(st, learning)
	metrics := NewMetricsRegistry()

	config := DefaultServerConfig()
	config.Port = freePort(t)
	srv, err := NewServer(config, builder, metrics)
	if err != nil {
		t.Fatalf("unexpected error constructing server: %v", err)
	}
	return srv
}

// freePort picks an ephemeral port so parallel test runs don't collide on
// NewServer's pre-bind availability check.
func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("unexpected error finding free port: %v", err)
	}
	defer ln.Close()
	return ln.Addr().(*net.TCPAddr).Port
}

func TestHealth_ReturnsOK(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("unexpected decode error: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("expected status=ok, got %v", body)
	}
}

func TestChannelRankings_ReturnsSeededChannel(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/channels", nil)
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var rows []report.ChannelRankingRow
	if err := json.Unmarshal(w.Body.Bytes(), &rows); err != nil {
		t.Fatalf("unexpected decode error: %v", err)
	}
	if len(rows) != 1 || rows[0].Channel != "chan" {
		t.Fatalf("expected 1 row for chan, got %+v", rows)
	}
}

func TestNotFound_ReturnsJSONError(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/nope", nil)
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected JSON content-type, got %s", ct)
	}
}

func TestMetricsEndpoint_ServesPrometheusFormat(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if w.Body.Len() == 0 {
		t.Error("expected non-empty metrics body")
	}
}

func TestCORSMiddleware_AllowsLocalhostOrigin(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)

	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Errorf("expected localhost origin echoed, got %q", got)
	}
}
