package paste

import "sync"

var (
	_ Simulator = (*Stub)(nil)
	_ Checker   = (*Stub)(nil)
)

// Stub is a test double implementing both Simulator and Checker.
type Stub struct {
	mu sync.Mutex

	// AllowedResult is returned by Allowed.
	AllowedResult bool

	// PasteErr, if non-nil, is returned by Paste.
	PasteErr error

	// PastePanic, if non-nil, is raised as a panic inside Paste to
	// exercise the caller's panic isolation.
	PastePanic any

	// PasteCalls counts Paste invocations.
	PasteCalls int
}

// Allowed implements Checker.
func (s *Stub) Allowed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.AllowedResult
}

// Paste implements Simulator.
func (s *Stub) Paste() error {
	s.mu.Lock()
	s.PasteCalls++
	panicValue, err := s.PastePanic, s.PasteErr
	s.mu.Unlock()

	if panicValue != nil {
		panic(panicValue)
	}
	return err
}

// Calls returns how many times Paste ran. Thread-safe.
func (s *Stub) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.PasteCalls
}
