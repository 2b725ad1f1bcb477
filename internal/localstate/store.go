// Package localstate implements the local command boundary: a JSON state
// file holding the full snapshot, mutated through fine-grained commands
// that each persist atomically and return the refreshed snapshot.
//
// The local storage provider and the migration routine are built on this
// package. Note that the provider's Save is a no-op by design; this package
// is the only writer of the local state file.
package localstate

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"todo-overlay/internal/model"
)

// StateFileName is the snapshot file kept under the data directory.
const StateFileName = "todos.json"

// Store owns the local state file. All commands serialize on an internal
// mutex; each mutation persists before returning.
type Store struct {
	path   string
	logger *log.Logger

	mu   sync.Mutex
	data model.Snapshot
}

// Open loads the state file under dir, creating it with defaults when it
// does not exist. A file that fails to parse is reset to defaults rather
// than blocking startup; the old content is lost, which matches the
// original desktop app's recovery behavior.
func Open(dir string, logger *log.Logger) (*Store, error) {
	if logger == nil {
		logger = log.New(os.Stderr, "[localstate] ", log.LstdFlags)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	s := &Store{
		path:   filepath.Join(dir, StateFileName),
		logger: logger,
	}

	raw, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		s.data = defaultSnapshot()
		if err := s.persistLocked(); err != nil {
			return nil, err
		}
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read state file %s: %w", s.path, err)
	}

	var snap model.Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		logger.Printf("state file %s is corrupt (%v), resetting with defaults", s.path, err)
		s.data = defaultSnapshot()
		if err := s.persistLocked(); err != nil {
			return nil, err
		}
		return s, nil
	}

	snap.Settings = sanitizeSettings(snap.Settings)
	s.data = snap
	return s, nil
}

// Path returns the absolute path of the state file.
func (s *Store) Path() string {
	return s.path
}

// LoadState returns a copy of the current snapshot.
func (s *Store) LoadState() *model.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.Clone()
}

func defaultSnapshot() model.Snapshot {
	list := model.DefaultList()
	label := model.DefaultLabel()
	return model.Snapshot{
		Settings: model.DefaultSettings([]model.List{list}, []model.Label{label}),
		Tasks:    []model.Task{},
	}
}

// persistLocked writes the snapshot to disk via a temp file rename so a
// crash mid-write never leaves a truncated state file. Caller holds s.mu
// (or is the constructor before the store escapes).
func (s *Store) persistLocked() error {
	payload, err := json.MarshalIndent(&s.data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize state: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, payload, 0o644); err != nil {
		return fmt.Errorf("failed to write state file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to replace state file: %w", err)
	}
	return nil
}

// sanitizeSettings enforces the structural invariants on settings: at least
// one list always exists, list names are non-empty, and the active list id
// resolves to a real list.
func sanitizeSettings(settings model.Settings) model.Settings {
	if len(settings.Lists) == 0 {
		settings.Lists = append(settings.Lists, model.DefaultList())
	}

	for i := range settings.Lists {
		fallback := "New List"
		if i == 0 {
			fallback = model.DefaultListName
		}
		settings.Lists[i].Name = normalizeName(settings.Lists[i].Name, fallback)
	}

	active := false
	for _, l := range settings.Lists {
		if l.ID == settings.ActiveListID {
			active = true
			break
		}
	}
	if !active {
		settings.ActiveListID = settings.Lists[0].ID
	}

	return settings
}

func normalizeName(value, fallback string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return fallback
	}
	return trimmed
}

func normalizeOptional(value string) string {
	return strings.TrimSpace(value)
}
