// Package store implements the Two-File Tracking Store of spec.md §4.D: an
// atomic, deduplicating, resumable persistence layer separating
// in-progress signals from completed ones, enabling fresh-start
// re-monitoring of recurring tokens.
package store

import (
	"fmt"
	"path/filepath"
	"sort"
	"sync"

	"github.com/rs/zerolog/log"

	calltrackio "github.com/sawpanic/calltrack/internal/io"
	"github.com/sawpanic/calltrack/internal/model"
)

const storeVersion = 1

type activeDoc struct {
	Version int                              `json:"version"`
	Signals map[string]model.SignalOutcome `json:"signals"` // key: token_key
}

type completedDoc struct {
	Version int                                `json:"version"`
	Signals map[string][]model.SignalOutcome `json:"signals"` // key: token_key
}

// Store is the sole durable owner of SignalOutcome (spec.md §3). All
// mutations funnel through it; no other component writes
// active_tracking.json or completed_history.json (spec.md §9).
type Store struct {
	mu sync.Mutex // store-wide lock: serializes writes (spec.md §5)

	dir           string
	activePath    string
	completedPath string

	active    map[string]model.SignalOutcome   // token_key -> in-progress signal
	completed map[string][]model.SignalOutcome // token_key -> ordered completed signals
}

// New constructs a Store rooted at dir, without loading from disk — call
// Load to populate from existing files.
func New(dir string) *Store {
	return &Store{
		dir:           dir,
		activePath:    filepath.Join(dir, "active_tracking.json"),
		completedPath: filepath.Join(dir, "completed_history.json"),
		active:        map[string]model.SignalOutcome{},
		completed:     map[string][]model.SignalOutcome{},
	}
}

// Load reads both files from disk (if present), repairing what it safely
// can and logging what it cannot — spec.md §4.D's load-time invariants.
func (s *Store) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var aDoc activeDoc
	ok, err := calltrackio.ReadJSONIfExists(s.activePath, &aDoc)
	if err != nil {
		return &Error{Kind: KindIOFailure, Message: "reading active_tracking.json", Cause: err}
	}
	if ok {
		if aDoc.Version != storeVersion {
			return &Error{Kind: KindVersionMismatch, Message: fmt.Sprintf("active_tracking.json version %d, expected %d", aDoc.Version, storeVersion)}
		}
		s.active = aDoc.Signals
	}
	if s.active == nil {
		s.active = map[string]model.SignalOutcome{}
	}

	var cDoc completedDoc
	ok, err = calltrackio.ReadJSONIfExists(s.completedPath, &cDoc)
	if err != nil {
		return &Error{Kind: KindIOFailure, Message: "reading completed_history.json", Cause: err}
	}
	if ok {
		if cDoc.Version != storeVersion {
			return &Error{Kind: KindVersionMismatch, Message: fmt.Sprintf("completed_history.json version %d, expected %d", cDoc.Version, storeVersion)}
		}
		s.completed = cDoc.Signals
	}
	if s.completed == nil {
		s.completed = map[string][]model.SignalOutcome{}
	}

	s.repairInvariants()
	return nil
}

// repairInvariants enforces spec.md §4.D's load-time invariants, repairing
// what it safely can and logging the rest without renumbering.
func (s *Store) repairInvariants() {
	// active and completed share no signal_id.
	completedIDs := make(map[string]bool)
	for _, list := range s.completed {
		for _, sig := range list {
			completedIDs[sig.SignalID] = true
		}
	}
	for tokenKey, sig := range s.active {
		if completedIDs[sig.SignalID] {
			log.Error().Str("token_key", tokenKey).Str("signal_id", sig.SignalID).
				Msg("invariant violation: signal present in both active and completed, dropping from active")
			delete(s.active, tokenKey)
		}
	}

	// signal_number within completed[token_key] should be contiguous from 1.
	for tokenKey, list := range s.completed {
		sort.Slice(list, func(i, j int) bool { return list[i].SignalNumber < list[j].SignalNumber })
		s.completed[tokenKey] = list
		for i, sig := range list {
			if sig.SignalNumber != i+1 {
				log.Warn().Str("token_key", tokenKey).Int("expected", i+1).Int("got", sig.SignalNumber).
					Msg("non-contiguous signal_number in completed history, not renumbering")
			}
		}
	}
}

// ClassifyMention implements spec.md §4.D operation 1.
func (s *Store) ClassifyMention(tokenKey string) (isDuplicate bool, nextSignalNumber int, previousSignalIDs []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.active[tokenKey]; exists {
		return true, 0, nil
	}

	list := s.completed[tokenKey]
	prevIDs := make([]string, len(list))
	for i, sig := range list {
		prevIDs[i] = sig.SignalID
	}
	return false, len(list) + 1, prevIDs
}

// AddActive implements spec.md §4.D operation 2: precondition no
// active[token_key]; persists.
func (s *Store) AddActive(outcome model.SignalOutcome) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tokenKey := outcome.TokenRef.TokenKey()
	if _, exists := s.active[tokenKey]; exists {
		return &Error{Kind: KindInvariantViolation, Message: fmt.Sprintf("add_active precondition violated: active signal already exists for %s", tokenKey)}
	}
	s.active[tokenKey] = outcome
	return s.persistActive()
}

// UpdateActive implements spec.md §4.D operation 3: precondition
// active[token_key].signal_id == outcome.signal_id; persists.
func (s *Store) UpdateActive(outcome model.SignalOutcome) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tokenKey := outcome.TokenRef.TokenKey()
	existing, exists := s.active[tokenKey]
	if !exists || existing.SignalID != outcome.SignalID {
		return &Error{Kind: KindInvariantViolation, Message: fmt.Sprintf("update_active precondition violated for %s", tokenKey)}
	}
	s.active[tokenKey] = outcome
	return s.persistActive()
}

// Archive implements spec.md §4.D operation 4: moves active[token_key] to
// the end of completed[token_key], persisting completed_history.json
// *before* active_tracking.json. A process killed between the two writes
// therefore leaves the signal in both on-disk files rather than in
// neither: repairInvariants already detects a shared signal_id across
// active/completed on the next Load and drops the stale active copy,
// which is exactly the post-archive state this call was moving toward.
// Writing active first would instead risk the signal vanishing from both
// files if the process died before the completed write landed, which
// "every signal appears in exactly one file" (spec.md's testable
// property §8.9) cannot tolerate.
func (s *Store) Archive(tokenKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	outcome, exists := s.active[tokenKey]
	if !exists {
		return &Error{Kind: KindInvariantViolation, Message: fmt.Sprintf("archive called with no active signal for %s", tokenKey)}
	}

	// In-memory backups to roll back to if the second write fails.
	activeBackup := cloneActiveMap(s.active)
	completedBackup := cloneCompletedMap(s.completed)

	s.completed[tokenKey] = append(append([]model.SignalOutcome{}, s.completed[tokenKey]...), outcome)
	if err := s.persistCompleted(); err != nil {
		// Nothing durable changed yet: roll back in-memory state only.
		s.completed = completedBackup
		return err
	}

	delete(s.active, tokenKey)
	if err := s.persistActive(); err != nil {
		// completed_history.json already reflects the archive; restore
		// both files to the pre-archive state so the signal is not left
		// duplicated indefinitely by a retry that re-archives it.
		s.active = activeBackup
		s.completed = completedBackup
		if rollbackErr := s.persistCompleted(); rollbackErr != nil {
			log.Error().Err(rollbackErr).Msg("failed to roll back completed_history.json after archive failure")
		}
		return err
	}

	return nil
}

func cloneActiveMap(m map[string]model.SignalOutcome) map[string]model.SignalOutcome {
	out := make(map[string]model.SignalOutcome, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func cloneCompletedMap(m map[string][]model.SignalOutcome) map[string][]model.SignalOutcome {
	out := make(map[string][]model.SignalOutcome, len(m))
	for k, v := range m {
		out[k] = append([]model.SignalOutcome{}, v...)
	}
	return out
}

func (s *Store) persistActive() error {
	doc := activeDoc{Version: storeVersion, Signals: s.active}
	if err := calltrackio.WriteJSONAtomic(s.activePath, doc); err != nil {
		return &Error{Kind: KindIOFailure, Message: "writing active_tracking.json", Cause: err}
	}
	return nil
}

func (s *Store) persistCompleted() error {
	doc := completedDoc{Version: storeVersion, Signals: s.completed}
	if err := calltrackio.WriteJSONAtomic(s.completedPath, doc); err != nil {
		return &Error{Kind: KindIOFailure, Message: "writing completed_history.json", Cause: err}
	}
	return nil
}

// Snapshot returns a deep-enough copy of both maps for read-only use by
// reporting and reputation code.
func (s *Store) Snapshot() (active map[string]model.SignalOutcome, completed map[string][]model.SignalOutcome) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneActiveMap(s.active), cloneCompletedMap(s.completed)
}

// GetActive returns the in-progress signal for a token key, if any.
func (s *Store) GetActive(tokenKey string) (model.SignalOutcome, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sig, ok := s.active[tokenKey]
	return sig, ok
}

// ActiveTokenKeys returns every token_key currently in progress, for the
// Live Orchestrator's sweep.
func (s *Store) ActiveTokenKeys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.active))
	for k := range s.active {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// AllCompleted returns every completed signal across every token, in no
// particular cross-token order (used to seed the learning engine).
func (s *Store) AllCompleted() []model.SignalOutcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.SignalOutcome
	for _, list := range s.completed {
		out = append(out, list...)
	}
	return out
}

// Backup copies both tracking files to a sibling "<name>.bak" file, best
// effort: a file that doesn't exist yet (fresh store) is skipped rather
// than treated as an error. Intended for CLI drivers to call before a
// one-shot batch operation (e.g. backfill) that rewrites a lot of state
// in one run.
func (s *Store) Backup() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := calltrackio.CopyFile(s.activePath, s.activePath+".bak"); err != nil {
		return fmt.Errorf("backing up active_tracking.json: %w", err)
	}
	if err := calltrackio.CopyFile(s.completedPath, s.completedPath+".bak"); err != nil {
		return fmt.Errorf("backing up completed_history.json: %w", err)
	}
	return nil
}
