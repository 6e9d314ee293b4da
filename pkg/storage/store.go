// Package storage implements the persisted blob store for sessions: a
// directory per session holding the two uploaded input artifacts, the session
// record, and the analysis outputs, all as human-readable indented JSON.
package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Logical blob paths inside a session's namespace.
const (
	SessionRecordPath      = "session.json"
	AgentsConfigPath       = "input/agents_config.json"
	MessagesDatasetPath    = "input/messages_dataset.json"
	EvaluationReportPath   = "analysis/evaluation_report.json"
	OptimizationResultPath = "analysis/optimization_result.json"
)

// ErrInvalidSessionID is returned for session ids that could escape the
// store's root directory.
var ErrInvalidSessionID = errors.New("invalid session id")

// Store is a file-backed JSON blob store rooted at a data directory.
type Store struct {
	root string
}

// NewStore creates the root directory if needed and returns a store.
func NewStore(root string) (*Store, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create session store root: %w", err)
	}
	return &Store{root: root}, nil
}

// Root returns the store's root directory.
func (s *Store) Root() string { return s.root }

// sessionPath resolves a blob path within a session's namespace, rejecting
// ids or paths that traverse outside the store.
func (s *Store) sessionPath(sessionID, rel string) (string, error) {
	if sessionID == "" || strings.ContainsAny(sessionID, `/\`) || strings.Contains(sessionID, "..") {
		return "", fmt.Errorf("%w: %q", ErrInvalidSessionID, sessionID)
	}
	p := filepath.Join(s.root, sessionID, filepath.FromSlash(rel))
	if !strings.HasPrefix(p, filepath.Join(s.root, sessionID)) {
		return "", fmt.Errorf("%w: path escapes session namespace", ErrInvalidSessionID)
	}
	return p, nil
}

// SaveJSON marshals v with two-space indentation and writes it to the given
// blob path, creating parent directories as needed.
func (s *Store) SaveJSON(sessionID, rel string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", rel, err)
	}
	return s.SaveBlob(sessionID, rel, append(data, '\n'))
}

// LoadJSON reads the given blob and unmarshals it into out.
func (s *Store) LoadJSON(sessionID, rel string, out any) error {
	data, err := s.LoadBlob(sessionID, rel)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to parse %s: %w", rel, err)
	}
	return nil
}

// SaveBlob writes raw bytes to the given blob path.
func (s *Store) SaveBlob(sessionID, rel string, data []byte) error {
	p, err := s.sessionPath(sessionID, rel)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", rel, err)
	}
	if err := os.WriteFile(p, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", rel, err)
	}
	return nil
}

// LoadBlob reads raw bytes from the given blob path. A missing blob yields an
// error satisfying errors.Is(err, fs.ErrNotExist).
func (s *Store) LoadBlob(sessionID, rel string) ([]byte, error) {
	p, err := s.sessionPath(sessionID, rel)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", rel, err)
	}
	return data, nil
}

// Exists reports whether the given blob is present.
func (s *Store) Exists(sessionID, rel string) bool {
	p, err := s.sessionPath(sessionID, rel)
	if err != nil {
		return false
	}
	_, statErr := os.Stat(p)
	return statErr == nil
}

// DeleteSession removes a session's entire namespace. It reports whether the
// namespace existed.
func (s *Store) DeleteSession(sessionID string) (bool, error) {
	p, err := s.sessionPath(sessionID, ".")
	if err != nil {
		return false, err
	}
	if _, err := os.Stat(p); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("failed to stat session directory: %w", err)
	}
	if err := os.RemoveAll(p); err != nil {
		return false, fmt.Errorf("failed to delete session directory: %w", err)
	}
	slog.Info("Deleted session namespace", "session_id", sessionID)
	return true, nil
}

// ListSessionIDs returns the ids of all sessions that have a session record,
// in directory order.
func (s *Store) ListSessionIDs() ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("failed to list session store: %w", err)
	}
	ids := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		if _, err := os.Stat(filepath.Join(s.root, entry.Name(), SessionRecordPath)); err != nil {
			continue
		}
		ids = append(ids, entry.Name())
	}
	return ids, nil
}
