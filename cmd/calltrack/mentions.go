package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/sawpanic/calltrack/internal/model"
)

// loadMentions reads a JSON array of model.Mention from path — the
// contract this core consumes from the (out-of-scope) text-extraction
// layer, spec.md §6.
func loadMentions(path string) ([]model.Mention, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading mentions file: %w", err)
	}
	var mentions []model.Mention
	if err := json.Unmarshal(data, &mentions); err != nil {
		return nil, fmt.Errorf("parsing mentions file: %w", err)
	}
	sort.Slice(mentions, func(i, j int) bool { return mentions[i].EntryTime.Before(mentions[j].EntryTime) })
	return mentions, nil
}
