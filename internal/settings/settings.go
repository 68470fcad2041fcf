// Package settings persists user settings as a single JSON document.
//
// Settings are read at the start of every pipeline run and written whole,
// never field by field: concurrent partial updates would be worse than a
// momentarily stale read for this kind of low-frequency config.
package settings

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// Provider names accepted for TranscriptionProvider.
const (
	ProviderOpenAI = "openai"
	ProviderGroq   = "groq"
	ProviderGladia = "gladia"
)

// DefaultShortcut is the global recording shortcut when none is configured.
const DefaultShortcut = "Alt+Space"

// Settings is the application's mutable configuration record.
type Settings struct {
	// AIPolishEnabled runs the LLM cleanup pass on transcriptions.
	AIPolishEnabled bool `json:"ai_polish_enabled"`
	// EnsembleEnabled allows multi-provider transcription when at least
	// two provider keys are available.
	EnsembleEnabled bool `json:"ensemble_enabled"`
	// TranscriptionProvider is the provider used in single-provider mode.
	TranscriptionProvider string `json:"transcription_provider"`
	// Shortcut is the global recording shortcut, e.g. "Alt+Space".
	Shortcut string `json:"shortcut"`
}

// Default returns the settings used when nothing is persisted.
func Default() Settings {
	return Settings{
		AIPolishEnabled:       true,
		EnsembleEnabled:       true,
		TranscriptionProvider: ProviderOpenAI,
		Shortcut:              DefaultShortcut,
	}
}

// Validate checks that the settings record is usable.
func (s Settings) Validate() error {
	switch s.TranscriptionProvider {
	case ProviderOpenAI, ProviderGroq, ProviderGladia:
	default:
		return fmt.Errorf("settings: unknown transcription provider %q", s.TranscriptionProvider)
	}
	if s.Shortcut == "" {
		return errors.New("settings: shortcut must not be empty")
	}
	return nil
}

// Store persists Settings as a JSON file. Thread-safe for concurrent use.
type Store struct {
	mu   sync.Mutex
	path string
}

// NewStore creates a Store backed by the given file path. The parent
// directory is created on first write.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Load reads the persisted settings. A missing, unreadable or corrupt file
// degrades to Default(); unset fields fall back to their default values.
func (s *Store) Load() Settings {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		return Default()
	}
	out := Default()
	if err := json.Unmarshal(data, &out); err != nil {
		return Default()
	}
	if out.TranscriptionProvider == "" {
		out.TranscriptionProvider = ProviderOpenAI
	}
	if out.Shortcut == "" {
		out.Shortcut = DefaultShortcut
	}
	return out
}

// Save validates and persists settings as a whole document.
func (s *Store) Save(settings Settings) error {
	if err := settings.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("settings: create config directory: %w", err)
	}
	data, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		return fmt.Errorf("settings: marshal: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("settings: write file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("settings: replace file: %w", err)
	}
	return nil
}

// Reset deletes the persisted file so Load returns defaults again.
func (s *Store) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("settings: delete file: %w", err)
	}
	return nil
}

// DefaultPath returns the standard location of the settings file under the
// user's config directory.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("settings: locate config directory: %w", err)
	}
	return filepath.Join(dir, "voxpaste", "settings.json"), nil
}
