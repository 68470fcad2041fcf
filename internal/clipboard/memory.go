package clipboard

import "sync"

var _ Clipboard = (*Memory)(nil)

// Memory is an in-process clipboard used in tests and headless runs.
type Memory struct {
	mu   sync.Mutex
	text string

	// ReadErr and WriteErr, when set, are returned by the respective
	// methods to exercise failure paths.
	ReadErr  error
	WriteErr error

	// Writes records every value passed to WriteText in order.
	Writes []string
}

// NewMemory creates a Memory clipboard holding text.
func NewMemory(text string) *Memory {
	return &Memory{text: text}
}

// ReadText implements Clipboard.
func (m *Memory) ReadText() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ReadErr != nil {
		return "", m.ReadErr
	}
	return m.text, nil
}

// WriteText implements Clipboard.
func (m *Memory) WriteText(text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.WriteErr != nil {
		return m.WriteErr
	}
	m.text = text
	m.Writes = append(m.Writes, text)
	return nil
}

// SetText replaces the stored text without recording a write. Used to
// simulate the user copying something new.
func (m *Memory) SetText(text string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.text = text
}
