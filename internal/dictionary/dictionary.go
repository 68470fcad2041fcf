// Package dictionary stores learned proper-noun corrections and detects
// new ones after a paste.
//
// Each entry maps an original (misheard) word to the user's correction.
// The polish and fusion prompts feed the entries back to the LLM so the
// same name is never misheard twice.
package dictionary

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Entry maps an original transcription to the user's correction.
type Entry struct {
	Original   string `json:"original"`
	Correction string `json:"correction"`
	CreatedAt  int64  `json:"created_at"`
}

// Store persists dictionary entries as a JSON array in a single file.
// Thread-safe for concurrent use.
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

// Entries returns all persisted entries. Read failures degrade to an
// empty list.
func (s *Store) Entries() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
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

// Upsert adds a correction keyed by its original word, replacing any
// existing entry for the same original.
func (s *Store) Upsert(original, correction string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.load()
	entry := Entry{
		Original:   original,
		Correction: correction,
		CreatedAt:  s.now().Unix(),
	}

	replaced := false
	for i := range entries {
		if entries[i].Original == original {
			entries[i] = entry
			replaced = true
			break
		}
	}
	if !replaced {
		entries = append(entries, entry)
	}
	return s.save(entries)
}

// Delete removes the entry keyed by original. Deleting a missing entry
// is an error, matching what a management UI needs to report.
func (s *Store) Delete(original string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.load()
	kept := entries[:0]
	for _, e := range entries {
		if e.Original != original {
			kept = append(kept, e)
		}
	}
	if len(kept) == len(entries) {
		return fmt.Errorf("dictionary: entry not found: %s", original)
	}
	if len(kept) == 0 {
		return s.removeFile()
	}
	return s.save(kept)
}

// Clear deletes every entry.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.removeFile()
}

func (s *Store) removeFile() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("dictionary: delete file: %w", err)
	}
	return nil
}

func (s *Store) save(entries []Entry) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("dictionary: create config directory: %w", err)
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("dictionary: marshal entries: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("dictionary: write file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("dictionary: replace file: %w", err)
	}
	return nil
}

// DefaultPath returns the standard location of the dictionary file under
// the user's config directory.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("dictionary: locate config directory: %w", err)
	}
	return filepath.Join(dir, "voxpaste", "dictionary.json"), nil
}
