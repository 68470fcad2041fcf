package clipboard

import (
	"errors"
	"testing"
)

func TestGuardSnapshotAndRestore(t *testing.T) {
	clip := NewMemory("user's earlier copy")
	g := NewGuard(clip)

	if g.Snapshot() != "user's earlier copy" {
		t.Fatalf("Snapshot() = %q", g.Snapshot())
	}

	if err := g.WriteText("transcribed text"); err != nil {
		t.Fatalf("WriteText: %v", err)
	}
	if text, _ := clip.ReadText(); text != "transcribed text" {
		t.Fatalf("clipboard = %q after write", text)
	}

	if err := g.Restore(); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if text, _ := clip.ReadText(); text != "user's earlier copy" {
		t.Errorf("clipboard = %q after restore", text)
	}
}

func TestGuardWithoutRestoreLeavesText(t *testing.T) {
	clip := NewMemory("original")
	g := NewGuard(clip)

	if err := g.WriteText("final transcript"); err != nil {
		t.Fatalf("WriteText: %v", err)
	}
	// Failed-paste path: no Restore call, transcript stays available.
	if text, _ := clip.ReadText(); text != "final transcript" {
		t.Errorf("clipboard = %q, want the transcript left in place", text)
	}
}

func TestGuardUnreadableSnapshotDegradesToEmpty(t *testing.T) {
	clip := NewMemory("ignored")
	clip.ReadErr = errors.New("clipboard holds an image")

	g := NewGuard(clip)
	if g.Snapshot() != "" {
		t.Errorf("Snapshot() = %q, want empty for unreadable clipboard", g.Snapshot())
	}

	clip.ReadErr = nil
	if err := g.Restore(); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if text, _ := clip.ReadText(); text != "" {
		t.Errorf("clipboard = %q after restoring empty snapshot", text)
	}
}

func TestGuardWriteFailure(t *testing.T) {
	clip := NewMemory("original")
	g := NewGuard(clip)
	clip.WriteErr = errors.New("display gone")

	if err := g.WriteText("text"); err == nil {
		t.Fatal("expected write error to surface")
	}
	if err := g.Restore(); err == nil {
		t.Fatal("expected restore error to surface")
	}
}
