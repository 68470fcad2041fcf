// Package credentials resolves per-provider API keys.
//
// Keys live in a plain JSON file under the app's config directory. An
// environment variable always wins over the persisted value for its
// provider, so keys exported in a shell session never get shadowed by
// stale file contents.
package credentials

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// Environment variables overriding the persisted keys, per provider.
const (
	EnvOpenAI = "OPENAI_API_KEY"
	EnvGroq   = "GROQ_API_KEY"
	EnvGladia = "GLADIA_API_KEY"
)

// Keys holds the persisted per-provider secrets. Empty means unset.
type Keys struct {
	OpenAI string `json:"openai,omitempty"`
	Groq   string `json:"groq,omitempty"`
	Gladia string `json:"gladia,omitempty"`
}

// Store persists Keys as a JSON file. Thread-safe for concurrent use.
// A missing or unreadable file reads as empty Keys.
type Store struct {
	mu   sync.Mutex
	path string
}

// NewStore creates a Store backed by the given file path. The parent
// directory is created on first write.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Load reads the persisted keys. Read failures degrade to empty Keys.
func (s *Store) Load() Keys {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

func (s *Store) load() Keys {
	var keys Keys
	data, err := os.ReadFile(s.path)
	if err != nil {
		return Keys{}
	}
	if err := json.Unmarshal(data, &keys); err != nil {
		return Keys{}
	}
	return keys
}

// Set persists the key for provider, replacing any previous value.
func (s *Store) Set(provider, key string) error {
	return s.update(provider, key)
}

// Delete removes the persisted key for provider. Deleting an unset key
// is not an error.
func (s *Store) Delete(provider string) error {
	return s.update(provider, "")
}

func (s *Store) update(provider, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys := s.load()
	switch provider {
	case "openai":
		keys.OpenAI = key
	case "groq":
		keys.Groq = key
	case "gladia":
		keys.Gladia = key
	default:
		return fmt.Errorf("credentials: unknown provider %q", provider)
	}
	return s.save(keys)
}

func (s *Store) save(keys Keys) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("credentials: create config directory: %w", err)
	}
	data, err := json.MarshalIndent(keys, "", "  ")
	if err != nil {
		return fmt.Errorf("credentials: marshal keys: %w", err)
	}

	// Write-then-rename so a crash mid-write never truncates the file.
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("credentials: write keys file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("credentials: replace keys file: %w", err)
	}
	return nil
}

// Resolve returns the effective keys: each provider's environment variable
// when set and non-empty, otherwise the persisted value.
func (s *Store) Resolve() Keys {
	keys := s.Load()
	if v := os.Getenv(EnvOpenAI); v != "" {
		keys.OpenAI = v
	}
	if v := os.Getenv(EnvGroq); v != "" {
		keys.Groq = v
	}
	if v := os.Getenv(EnvGladia); v != "" {
		keys.Gladia = v
	}
	return keys
}

// Available reports how many providers have a non-empty effective key.
func (k Keys) Available() int {
	n := 0
	for _, key := range []string{k.OpenAI, k.Groq, k.Gladia} {
		if key != "" {
			n++
		}
	}
	return n
}

// DefaultPath returns the standard location of the keys file under the
// user's config directory.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("credentials: locate config directory: %w", err)
	}
	return filepath.Join(dir, "voxpaste", "api-keys.json"), nil
}

// Exists reports whether the keys file is present on disk.
func (s *Store) Exists() bool {
	_, err := os.Stat(s.path)
	return !errors.Is(err, fs.ErrNotExist)
}
