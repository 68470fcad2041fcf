package clipboard

import (
	"fmt"

	"github.com/atotto/clipboard"
)

var _ Clipboard = (*System)(nil)

// System is the real clipboard, backed by github.com/atotto/clipboard.
type System struct{}

// NewSystem returns the process clipboard. On headless systems without a
// display the first read or write reports the failure.
func NewSystem() *System {
	return &System{}
}

// ReadText implements Clipboard.
func (s *System) ReadText() (string, error) {
	text, err := clipboard.ReadAll()
	if err != nil {
		return "", fmt.Errorf("clipboard: read: %w", err)
	}
	return text, nil
}

// WriteText implements Clipboard.
func (s *System) WriteText(text string) error {
	if err := clipboard.WriteAll(text); err != nil {
		return fmt.Errorf("clipboard: write: %w", err)
	}
	return nil
}
