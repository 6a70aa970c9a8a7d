// Package store owns the on-disk session snapshot exclusively: atomic
// load/save, existence checks, and enumeration. No other package reads or
// writes session.json.
//
// Grounded on the teacher's internal/state package (Load/Save against a
// single state.json via write-temp-then-rename); generalized here from the
// teacher's three-field State to the full WorkflowState snapshot and
// widened to support list/delete/exists for the CLI's "status"/"list"
// commands.
package store

import (
	"encoding/json"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/pkg/errors"

	"github.com/scottcm/aiwf-engine/internal/model"
)

const sessionFileName = "session.json"

// InvalidSessionData is raised when session.json exists but cannot be
// parsed into a WorkflowState. Per §7 this is fatal — the session is
// unreadable and must be handled externally.
type InvalidSessionData struct {
	SessionID string
	Err       error
}

func (e *InvalidSessionData) Error() string {
	return "store: invalid session data for " + e.SessionID + ": " + e.Err.Error()
}

func (e *InvalidSessionData) Unwrap() error { return e.Err }

// Store is the Session Store. Root is the directory containing one
// subdirectory per session (the "sessions root").
type Store struct {
	Root string
}

// New returns a Store rooted at root, creating it if necessary.
func New(root string) (*Store, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, errors.Wrap(err, "store: creating sessions root")
	}
	return &Store{Root: root}, nil
}

func (s *Store) sessionDir(sessionID string) string {
	return filepath.Join(s.Root, sessionID)
}

func (s *Store) sessionPath(sessionID string) string {
	return filepath.Join(s.sessionDir(sessionID), sessionFileName)
}

// SessionDir returns the session's root directory on disk.
func (s *Store) SessionDir(sessionID string) string {
	return s.sessionDir(sessionID)
}

// Exists reports whether a session directory with a session.json exists.
func (s *Store) Exists(sessionID string) bool {
	_, err := os.Stat(s.sessionPath(sessionID))
	return err == nil
}

// Load reads and parses the snapshot for sessionID.
func (s *Store) Load(sessionID string) (*model.WorkflowState, error) {
	path := s.sessionPath(sessionID)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, errors.Wrapf(err, "store: no session %q", sessionID)
		}
		return nil, errors.Wrap(err, "store: reading session file")
	}
	var st model.WorkflowState
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, &InvalidSessionData{SessionID: sessionID, Err: err}
	}
	return &st, nil
}

// Save atomically persists state, stamping UpdatedAt, and returns the
// path written.
func (s *Store) Save(state *model.WorkflowState) (string, error) {
	state.UpdatedAt = time.Now().UTC()
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return "", errors.Wrap(err, "store: marshaling session state")
	}
	path := s.sessionPath(state.SessionID)
	if err := writeFileAtomic(path, data, 0o644); err != nil {
		return "", err
	}
	return path, nil
}

// Delete removes a session directory entirely.
func (s *Store) Delete(sessionID string) error {
	if err := os.RemoveAll(s.sessionDir(sessionID)); err != nil {
		return errors.Wrapf(err, "store: deleting session %q", sessionID)
	}
	return nil
}

// List returns all session ids under Root, sorted.
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.Root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "store: listing sessions root")
	}
	var ids []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if _, err := os.Stat(filepath.Join(s.Root, e.Name(), sessionFileName)); err == nil {
			ids = append(ids, e.Name())
		}
	}
	sort.Strings(ids)
	return ids, nil
}
