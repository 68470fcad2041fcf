// Package history persists past transcriptions as a JSON file.
//
// Entries are prepended on write and sorted newest-first on read.
// The pipeline treats history as best-effort: a failed write is logged
// by the caller and never fails the run.
package history

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// Entry is a single past transcription.
type Entry struct {
	// Text is the final text that was pasted or copied.
	Text string `json:"text"`
	// Timestamp is the creation time in Unix milliseconds.
	Timestamp int64 `json:"timestamp"`
	// RawText is the pre-polish text, when polish ran.
	RawText string `json:"raw_text,omitempty"`
}

// Store persists history entries in a single JSON file. Thread-safe for
// concurrent use.
type Store struct {
	mu   sync.Mutex
	path string

	// now is injectable for tests.
	now func() time.Time
}

// NewStore creates a Store backed by the given file path. The parent
// directory is created on first write.
func NewStore(path string) *Store {
	return &Store{path: path, now: time.Now}
}

// Add prepends a new entry with the current timestamp. rawText may be
// empty when no polish ran.
func (s *Store) Add(text, rawText string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.load()
	entry := Entry{
		Text:      text,
		Timestamp: s.now().UnixMilli(),
		RawText:   rawText,
	}
	entries = append([]Entry{entry}, entries...)

	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("history: create config directory: %w", err)
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("history: marshal entries: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("history: write file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("history: replace file: %w", err)
	}
	return nil
}

// Entries returns all entries sorted newest first. Read failures degrade
// to an empty list.
func (s *Store) Entries() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.load()
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Timestamp > entries[j].Timestamp
	})
	return entries
}

func (s *Store) load() []Entry {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil
	}
	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil
	}
	return entries
}

// Clear deletes all history.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("history: delete file: %w", err)
	}
	return nil
}

// DefaultPath returns the standard location of the history file under
// the user's config directory.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("history: locate config directory: %w", err)
	}
	return filepath.Join(dir, "voxpaste", "history.json"), nil
}
