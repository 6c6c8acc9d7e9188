package main

import (
	"bytes"
	"encoding/csv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/calltrack/internal/report"
)

func TestWriteChannelRankings_HeaderAndRowCounts(t *testing.T) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	rows := []report.ChannelRankingRow{
		{Channel: "chan-a", TotalSignals: 10, ReputationScore: 72.5, ReputationTier: "Good", LastUpdated: time.Now()},
	}
	require.NoError(t, writeChannelRankings(w, rows))
	w.Flush()

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2, "expected header + 1 row")
	assert.True(t, strings.HasPrefix(lines[0], "channel,total_signals"), "expected header to start with channel,total_signals, got %q", lines[0])
	assert.Contains(t, lines[1], "chan-a")
}

func TestWritePerformance_RendersNilCheckpointsAsEmpty(t *testing.T) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	rows := []report.PerformanceRow{
		{TokenAddress: "0xabc", FirstMessageID: 7, Day7Price: nil, Day30Price: nil},
	}
	require.NoError(t, writePerformance(w, rows))
	w.Flush()

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2, "expected header + 1 row")
	fields := strings.Split(lines[1], ",")
	assert.Equal(t, "0xabc", fields[0], "expected first field to be the token address")
}
