package settings

import (
	"os"
	"path/filepath"
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(filepath.Join(t.TempDir(), "conf", "settings.json"))
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	s := newTestStore(t)
	if got := s.Load(); got != Default() {
		t.Errorf("Load() = %+v, want defaults", got)
	}
}

func TestSaveAndLoad(t *testing.T) {
	s := newTestStore(t)
	want := Settings{
		AIPolishEnabled:       false,
		EnsembleEnabled:       true,
		TranscriptionProvider: ProviderGroq,
		Shortcut:              "Ctrl+Shift+R",
	}
	if err := s.Save(want); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if got := s.Load(); got != want {
		t.Errorf("Load() = %+v, want %+v", got, want)
	}
}

func TestSaveRejectsInvalid(t *testing.T) {
	s := newTestStore(t)
	bad := Default()
	bad.TranscriptionProvider = "deepgram"
	if err := s.Save(bad); err == nil {
		t.Fatal("expected error for unknown provider")
	}
	bad = Default()
	bad.Shortcut = ""
	if err := s.Save(bad); err == nil {
		t.Fatal("expected error for empty shortcut")
	}
}

func TestLoadCorruptFileReturnsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	if err := os.WriteFile(path, []byte("?!"), 0o644); err != nil {
		t.Fatalf("write corrupt file: %v", err)
	}
	if got := NewStore(path).Load(); got != Default() {
		t.Errorf("Load() = %+v, want defaults", got)
	}
}

func TestLoadFillsMissingFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	if err := os.WriteFile(path, []byte(`{"ai_polish_enabled":false}`), 0o644); err != nil {
		t.Fatalf("write partial file: %v", err)
	}
	got := NewStore(path).Load()
	if got.AIPolishEnabled {
		t.Error("AIPolishEnabled should honor the persisted false")
	}
	if got.TranscriptionProvider != ProviderOpenAI {
		t.Errorf("TranscriptionProvider = %q, want default", got.TranscriptionProvider)
	}
	if got.Shortcut != DefaultShortcut {
		t.Errorf("Shortcut = %q, want default", got.Shortcut)
	}
}

func TestReset(t *testing.T) {
	s := newTestStore(t)
	custom := Default()
	custom.AIPolishEnabled = false
	if err := s.Save(custom); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := s.Reset(); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if got := s.Load(); got != Default() {
		t.Errorf("after Reset Load() = %+v, want defaults", got)
	}
	// Resetting an already-reset store is not an error.
	if err := s.Reset(); err != nil {
		t.Fatalf("second Reset: %v", err)
	}
}
