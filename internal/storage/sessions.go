// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/jeranaias/theseus-tui/internal/model"
	"github.com/jeranaias/theseus-tui/internal/util"
)

// =============================================================================
// ERRORS
// =============================================================================

// StoreError represents a session-storage error.
// It implements the error interface and can be compared using errors.Is.
type StoreError struct {
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *StoreError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

// Unwrap returns the underlying cause.
func (e *StoreError) Unwrap() error {
	return e.Cause
}

// Is implements errors.Is support for comparing store errors.
func (e *StoreError) Is(target error) bool {
	t, ok := target.(*StoreError)
	if !ok {
		return false
	}
	return e.Message == t.Message
}

// Sentinel errors for easy checking.
var (
	// ErrSessionNotFound is returned when no session file exists for an ID.
	ErrSessionNotFound = &StoreError{Message: "session not found"}

	// ErrSessionCorrupt is returned when a session file exists but cannot
	// be parsed.
	ErrSessionCorrupt = &StoreError{Message: "session file is corrupt"}

	// ErrNoSessions is returned by LoadLatest when the directory holds no
	// readable sessions.
	ErrNoSessions = &StoreError{Message: "no sessions exist"}
)

// =============================================================================
// SESSION STORE
// =============================================================================

// SessionMeta contains metadata for listing sessions.
type SessionMeta struct {
	ID           string
	Label        string
	MessageCount int
}

// SessionStore persists sessions as one JSON file each.
type SessionStore struct {
	// BaseDir is the directory holding session files.
	// Default: ~/.theseus/sessions/
	BaseDir string
}

// NewSessionStore creates a store rooted in the user's home directory.
func NewSessionStore() (*SessionStore, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, &StoreError{Message: "failed to resolve home directory", Cause: err}
	}
	return NewSessionStoreWithDir(filepath.Join(homeDir, ".theseus", "sessions"))
}

// NewSessionStoreWithDir creates a store with a custom directory.
func NewSessionStoreWithDir(baseDir string) (*SessionStore, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, &StoreError{Message: "failed to create sessions directory", Cause: err}
	}
	return &SessionStore{BaseDir: baseDir}, nil
}

// =============================================================================
// CREATE / SAVE
// =============================================================================

// Create makes a new empty session and persists it immediately, so the
// session is visible to listing before the first message arrives.
func (s *SessionStore) Create() (*model.Session, error) {
	sess := model.NewSession()
	if err := s.Save(sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// Save persists the session's full message array. The write replaces
// the previous file contents; save-after-append keeps the file equal to
// the in-memory transcript.
func (s *SessionStore) Save(sess *model.Session) error {
	data, err := json.MarshalIndent(sess.Messages, "", "  ")
	if err != nil {
		return &StoreError{Message: "failed to encode session", Cause: err}
	}

	// RELIABILITY: Atomic write with fsync prevents data loss on crash
	if err := util.AtomicWriteFile(s.filePath(sess.ID), data, 0644); err != nil {
		return &StoreError{Message: "failed to write session file", Cause: err}
	}
	return nil
}

// =============================================================================
// LOAD
// =============================================================================

// Load retrieves a session by ID.
func (s *SessionStore) Load(id string) (*model.Session, error) {
	data, err := os.ReadFile(s.filePath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrSessionNotFound
		}
		return nil, &StoreError{Message: "failed to read session file", Cause: err}
	}

	var messages []*model.Message
	if err := json.Unmarshal(data, &messages); err != nil {
		return nil, &StoreError{Message: ErrSessionCorrupt.Message, Cause: err}
	}

	return &model.Session{
		ID:        id,
		CreatedAt: createdAtFromID(id),
		Messages:  messages,
	}, nil
}

// LoadLatest loads the most recently created session. Returns
// ErrNoSessions when the directory holds no readable session, so the
// caller can fall back to creating one.
func (s *SessionStore) LoadLatest() (*model.Session, error) {
	metas, err := s.List()
	if err != nil {
		return nil, err
	}
	if len(metas) == 0 {
		return nil, ErrNoSessions
	}
	return s.Load(metas[0].ID)
}

// =============================================================================
// LIST
// =============================================================================

// List returns all readable sessions, most recent first. Corrupt or
// unreadable files are skipped rather than failing the whole listing.
func (s *SessionStore) List() ([]SessionMeta, error) {
	entries, err := os.ReadDir(s.BaseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []SessionMeta{}, nil
		}
		return nil, &StoreError{Message: "failed to read sessions directory", Cause: err}
	}

	metas := make([]SessionMeta, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}

		id := strings.TrimSuffix(entry.Name(), ".json")
		sess, err := s.Load(id)
		if err != nil {
			continue // Skip corrupted files
		}

		label := model.LabelFor(sess.Messages)
		if label == "" {
			label = id
		}

		metas = append(metas, SessionMeta{
			ID:           id,
			Label:        label,
			MessageCount: len(sess.Messages),
		})
	}

	// IDs are timestamp-derived, so descending ID order is reverse
	// chronological.
	sort.Slice(metas, func(i, j int) bool {
		return metas[i].ID > metas[j].ID
	})

	return metas, nil
}

// =============================================================================
// EXPORT
// =============================================================================

// ExportMarkdown renders a session transcript as Markdown.
func ExportMarkdown(sess *model.Session) string {
	var sb strings.Builder
	sb.WriteString("# Session " + sess.ID + "\n\n")
	if !sess.CreatedAt.IsZero() {
		sb.WriteString("Created: " + sess.CreatedAt.Format(time.RFC3339) + "\n\n")
	}
	sb.WriteString("---\n\n")

	for _, msg := range sess.Messages {
		sb.WriteString("**" + msg.Role.DisplayName() + "**")
		if !msg.Timestamp.IsZero() {
			sb.WriteString(" (" + msg.Timestamp.Format("15:04") + ")")
		}
		sb.WriteString(":\n\n")
		sb.WriteString(msg.Content)
		sb.WriteString("\n\n---\n\n")
	}

	return sb.String()
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// filePath returns the file path for a session ID.
func (s *SessionStore) filePath(id string) string {
	return filepath.Join(s.BaseDir, id+".json")
}

// createdAtFromID recovers the creation time baked into a session ID.
// Returns the zero time for IDs that don't carry a parseable timestamp.
func createdAtFromID(id string) time.Time {
	raw, ok := strings.CutPrefix(id, "chat_")
	if !ok {
		return time.Time{}
	}
	t, err := time.ParseInLocation("20060102_150405", raw, time.Local)
	if err != nil {
		return time.Time{}
	}
	return t
}
