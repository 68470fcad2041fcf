// Package paste sends the platform paste keystroke into whatever window
// has focus.
//
// Keystroke injection and the permission to perform it are both opaque
// platform facilities; the rest of the app only sees the two narrow
// interfaces below. Platform implementations live in the _darwin, _linux
// and _windows files.
package paste

import "time"

// FocusDelay gives the target application time to regain focus before
// the keystroke is injected.
const FocusDelay = 100 * time.Millisecond

// Checker reports whether the platform permits keystroke simulation.
type Checker interface {
	// Allowed returns true when a simulated paste can be attempted.
	Allowed() bool
}

// Simulator injects the platform paste keystroke (Cmd+V or Ctrl+V).
type Simulator interface {
	// Paste sends the keystroke to the focused window.
	Paste() error
}

// NewSimulator returns the platform Simulator.
func NewSimulator() Simulator { return newSimulator() }

// NewChecker returns the platform permission Checker.
func NewChecker() Checker { return newChecker() }
