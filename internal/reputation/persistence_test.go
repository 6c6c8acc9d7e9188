package reputation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/calltrack/internal/model"
)

func TestSaveLoad_RoundTripsTDState(t *testing.T) {
	dir := t.TempDir()

	e := NewEngine()
	e.OnTerminal(model.TerminalEvent{SignalID: "s1", Channel: "chan-a", TokenKey: "ETH", ATHMultiplier: 3.0})
	e.OnTerminal(model.TerminalEvent{SignalID: "s2", Channel: "chan-b", TokenKey: "ETH", ATHMultiplier: 1.5})
	e.OnTerminal(model.TerminalEvent{SignalID: "s3", Channel: "chan-a", TokenKey: "SOL", ATHMultiplier: 2.0})

	require.NoError(t, e.Save(dir))

	restored := NewEngine()
	require.NoError(t, restored.Load(dir))

	assert.True(t, restored.HasChannelTokenHistory("chan-a", "ETH"), "expected chan-a/ETH history to survive round-trip")
	assert.True(t, restored.HasChannelTokenHistory("chan-a", "SOL"), "expected chan-a/SOL history to survive round-trip")
	assert.False(t, restored.HasChannelTokenHistory("chan-b", "SOL"), "did not expect chan-b/SOL to have history")

	stats, ok := restored.TokenCrossChannelStats("ETH")
	require.True(t, ok, "expected cross-channel stats for ETH to survive round-trip")
	assert.Equal(t, 2, stats.ChannelCount)

	restored.mu.Lock()
	chanAOverall := restored.overall["chan-a"].value
	restored.mu.Unlock()
	e.mu.Lock()
	original := e.overall["chan-a"].value
	e.mu.Unlock()
	assert.Equal(t, original, chanAOverall, "expected overall TD value to round-trip exactly")
}

func TestLoad_MissingFilesYieldEmptyState(t *testing.T) {
	e := NewEngine()
	require.NoError(t, e.Load(t.TempDir()))
	assert.False(t, e.HasChannelTokenHistory("chan", "ETH"), "expected no history from empty directory")
	assert.Equal(t, 1.0, e.Predict("chan", "ETH", ""), "expected neutral prediction after empty load")
}
