// Package clipboard wraps the system clipboard behind a small interface
// and provides the snapshot/restore guard the paste protocol needs.
//
// The clipboard is a single shared resource: the guard snapshots whatever
// the user had copied before a pipeline run, lets the pipeline write the
// transcript for pasting, and restores the snapshot only after a paste is
// known to have succeeded. A failed paste leaves the transcript in place
// so the user can paste it by hand.
package clipboard

import "fmt"

// Clipboard reads and writes the system clipboard as text.
type Clipboard interface {
	ReadText() (string, error)
	WriteText(text string) error
}

// Guard snapshots the clipboard at construction and can restore it later.
type Guard struct {
	clip     Clipboard
	snapshot string
}

// NewGuard snapshots the current clipboard content. An unreadable
// clipboard (empty, or holding a non-text format) snapshots as empty
// text rather than failing: losing an unreadable snapshot is acceptable,
// blocking the pipeline on it is not.
func NewGuard(clip Clipboard) *Guard {
	snapshot, err := clip.ReadText()
	if err != nil {
		snapshot = ""
	}
	return &Guard{clip: clip, snapshot: snapshot}
}

// Snapshot returns the content captured at construction.
func (g *Guard) Snapshot() string { return g.snapshot }

// WriteText puts text on the clipboard.
func (g *Guard) WriteText(text string) error {
	if err := g.clip.WriteText(text); err != nil {
		return fmt.Errorf("clipboard: write: %w", err)
	}
	return nil
}

// Restore writes the snapshot back. Call only after a successful paste.
func (g *Guard) Restore() error {
	if err := g.clip.WriteText(g.snapshot); err != nil {
		return fmt.Errorf("clipboard: restore: %w", err)
	}
	return nil
}
