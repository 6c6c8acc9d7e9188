package reputation

import (
	"encoding/json"
	"os"
	"path/filepath"

	atomicio "github.com/sawpanic/calltrack/internal/io"
)

// channelsDoc is the on-disk shape of reputation/channels.json — channel
// and channel×token TD state (spec.md §6).
type channelsDoc struct {
	Overall      map[string]tdStateDoc `json:"overall"`
	ChannelToken map[string]tdStateDoc `json:"channel_token"`
}

type tdStateDoc struct {
	Value  float64 `json:"value"`
	Seeded bool    `json:"seeded"`
}

// crossChannelDoc is the on-disk shape of reputation/cross_channel.json.
type crossChannelDoc struct {
	Tokens map[string]tokenCrossDoc `json:"tokens"`
}

type tokenCrossDoc struct {
	TotalMentions int            `json:"total_mentions"`
	OverallSum    float64        `json:"overall_sum"`
	OverallCount  int            `json:"overall_count"`
	ChannelSum    map[string]float64 `json:"channel_sum"`
	ChannelCount  map[string]int     `json:"channel_count"`
}

// Save writes the engine's TD state to dir/reputation/channels.json and
// dir/reputation/cross_channel.json, each atomically (spec.md §6). The
// prediction history and reputation cache are not persisted — they are
// rebuilt lazily from completed signals and terminal events on restart.
func (e *Engine) Save(dir string) error {
	e.mu.Lock()
	channels := channelsDoc{
		Overall:      make(map[string]tdStateDoc, len(e.overall)),
		ChannelToken: make(map[string]tdStateDoc, len(e.channelToken)),
	}
	for k, v := range e.overall {
		channels.Overall[k] = tdStateDoc{Value: v.value, Seeded: v.seeded}
	}
	for k, v := range e.channelToken {
		channels.ChannelToken[k] = tdStateDoc{Value: v.value, Seeded: v.seeded}
	}

	cross := crossChannelDoc{Tokens: make(map[string]tokenCrossDoc, len(e.tokenCross))}
	for k, v := range e.tokenCross {
		cross.Tokens[k] = tokenCrossDoc{
			TotalMentions: v.totalMentions,
			OverallSum:    v.overallSum,
			OverallCount:  v.overallCount,
			ChannelSum:    v.channelSum,
			ChannelCount:  v.channelCount,
		}
	}
	e.mu.Unlock()

	if err := atomicio.WriteJSONAtomic(filepath.Join(dir, "reputation", "channels.json"), channels); err != nil {
		return err
	}
	return atomicio.WriteJSONAtomic(filepath.Join(dir, "reputation", "cross_channel.json"), cross)
}

// Load restores TD state from dir/reputation/{channels,cross_channel}.json
// into e, replacing any in-memory state. Missing files are treated as
// empty state (first run) rather than an error.
func (e *Engine) Load(dir string) error {
	channels, err := loadChannelsDoc(filepath.Join(dir, "reputation", "channels.json"))
	if err != nil {
		return err
	}
	cross, err := loadCrossChannelDoc(filepath.Join(dir, "reputation", "cross_channel.json"))
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.overall = make(map[string]*tdState, len(channels.Overall))
	for k, v := range channels.Overall {
		e.overall[k] = &tdState{value: v.Value, seeded: v.Seeded}
	}
	e.channelToken = make(map[string]*tdState, len(channels.ChannelToken))
	for k, v := range channels.ChannelToken {
		e.channelToken[k] = &tdState{value: v.Value, seeded: v.Seeded}
	}

	e.tokenCross = make(map[string]*tokenCrossState, len(cross.Tokens))
	for k, v := range cross.Tokens {
		tc := newTokenCrossState()
		tc.totalMentions = v.TotalMentions
		tc.overallSum = v.OverallSum
		tc.overallCount = v.OverallCount
		for ch, sum := range v.ChannelSum {
			tc.channelSum[ch] = sum
		}
		for ch, count := range v.ChannelCount {
			tc.channelCount[ch] = count
		}
		e.tokenCross[k] = tc
	}

	return nil
}

func loadChannelsDoc(path string) (channelsDoc, error) {
	doc := channelsDoc{Overall: map[string]tdStateDoc{}, ChannelToken: map[string]tdStateDoc{}}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return doc, nil
	}
	if err != nil {
		return doc, err
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return doc, err
	}
	return doc, nil
}

func loadCrossChannelDoc(path string) (crossChannelDoc, error) {
	doc := crossChannelDoc{Tokens: map[string]tokenCrossDoc{}}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return doc, nil
	}
	if err != nil {
		return doc, err
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return doc, err
	}
	return doc, nil
}
