package store

import (
	"os"
	"path/filepath"

	calltrackio "github.com/sawpanic/calltrack/internal/io"
	"github.com/sawpanic/calltrack/internal/model"
)

// progressPath returns bootstrap_progress.json's path under the store's
// data directory — the third file of spec.md §4.D, owned by the Bootstrap
// Orchestrator but written through the same atomic primitive.
func (s *Store) progressPath() string {
	return filepath.Join(s.dir, "bootstrap_progress.json")
}

// SaveProgress writes the bootstrap progress checkpoint, called every 100
// processed messages (spec.md §4.G step 6).
func (s *Store) SaveProgress(p model.BootstrapProgress) error {
	if err := calltrackio.WriteJSONAtomic(s.progressPath(), p); err != nil {
		return &Error{Kind: KindIOFailure, Message: "writing bootstrap_progress.json", Cause: err}
	}
	return nil
}

// LoadProgress reads an existing checkpoint, if any, for resume.
func (s *Store) LoadProgress() (model.BootstrapProgress, bool, error) {
	var p model.BootstrapProgress
	ok, err := calltrackio.ReadJSONIfExists(s.progressPath(), &p)
	if err != nil {
		return model.BootstrapProgress{}, false, &Error{Kind: KindIOFailure, Message: "reading bootstrap_progress.json", Cause: err}
	}
	return p, ok, nil
}

// DeleteProgress removes the checkpoint file on clean finish (spec.md
// §4.G step 7).
func (s *Store) DeleteProgress() error {
	err := os.Remove(s.progressPath())
	if err != nil && !os.IsNotExist(err) {
		return &Error{Kind: KindIOFailure, Message: "deleting bootstrap_progress.json", Cause: err}
	}
	return nil
}
