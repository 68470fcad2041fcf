// Package state owns the recording state machine.
//
// One process-wide Machine arbitrates push-to-talk, hands-free double-tap
// and tray toggling. Input handlers acquire the lock non-blockingly and
// drop events when it is contended: a stale key press queued behind a
// running pipeline would fire at a moment the user no longer intends.
package state

import (
	"sync"
	"time"
)

// State is the recording lifecycle phase.
type State int

const (
	// Idle means no recording or processing is in flight.
	Idle State = iota
	// Recording means audio capture is active.
	Recording
	// Processing means a captured recording is moving through the pipeline.
	Processing
)

// String returns the lower-case name of the state.
func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Recording:
		return "recording"
	case Processing:
		return "processing"
	default:
		return "unknown"
	}
}

// Effect is the side effect a transition asks the caller to perform.
type Effect int

const (
	// EffectNone means the event changed nothing actionable.
	EffectNone Effect = iota
	// EffectStartRecording asks the caller to begin audio capture.
	EffectStartRecording
	// EffectStopRecording asks the caller to stop capture and run the
	// pipeline on the result.
	EffectStopRecording
)

// DoubleTapWindow is how close two presses must be to count as a double tap.
const DoubleTapWindow = 300 * time.Millisecond

// snapshot is the full mutable state guarded by the Machine's lock.
type snapshot struct {
	state     State
	handsFree bool
	lastPress time.Time
}

// Machine is the process-wide recording state container.
// Event handlers (HandlePress, HandleRelease, HandleTrayToggle) never block;
// FinishProcessing and Reset wait for the lock because the pipeline must
// always manage to return the machine to Idle.
type Machine struct {
	mu   sync.Mutex
	snap snapshot

	window   time.Duration
	now      func() time.Time
	onChange func(State)
}

// Option configures a Machine.
type Option func(*Machine)

// WithOnChange registers a listener invoked after every state change.
// The listener runs outside the machine's lock and must not block for long.
func WithOnChange(fn func(State)) Option {
	return func(m *Machine) { m.onChange = fn }
}

// WithClock overrides the time source. Intended for tests.
func WithClock(now func() time.Time) Option {
	return func(m *Machine) { m.now = now }
}

// NewMachine creates a Machine in the Idle state.
func NewMachine(opts ...Option) *Machine {
	m := &Machine{
		window: DoubleTapWindow,
		now:    time.Now,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// State returns the current state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snap.state
}

// HandsFree reports whether hands-free mode is engaged.
func (m *Machine) HandsFree() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snap.handsFree
}

// HandlePress processes a shortcut press. dropped is true when the lock
// was contended and the event was discarded.
func (m *Machine) HandlePress() (effect Effect, dropped bool) {
	return m.handleEvent(pressTransition)
}

// HandleRelease processes a shortcut release. dropped is true when the
// lock was contended and the event was discarded.
func (m *Machine) HandleRelease() (effect Effect, dropped bool) {
	return m.handleEvent(releaseTransition)
}

// HandleTrayToggle processes a tray-menu click. A toggle from Idle forces
// hands-free mode, since a menu click has no release event.
func (m *Machine) HandleTrayToggle() (effect Effect, dropped bool) {
	return m.handleEvent(trayTransition)
}

func (m *Machine) handleEvent(transition func(snapshot, time.Time, time.Duration) (snapshot, Effect)) (Effect, bool) {
	if !m.mu.TryLock() {
		return EffectNone, true
	}
	before := m.snap.state
	next, effect := transition(m.snap, m.now(), m.window)
	m.snap = next
	after := m.snap.state
	m.mu.Unlock()

	if after != before {
		m.notify(after)
	}
	return effect, false
}

// FinishProcessing returns the machine from Processing to Idle. The
// pipeline calls this exactly once per run, on every exit path. Calling
// it in any other state is a no-op.
func (m *Machine) FinishProcessing() {
	m.mu.Lock()
	if m.snap.state != Processing {
		m.mu.Unlock()
		return
	}
	m.snap.state = Idle
	m.mu.Unlock()
	m.notify(Idle)
}

// Reset forces the machine to Idle and clears hands-free mode. Used when
// capture fails upstream or a recording is judged too short to process.
func (m *Machine) Reset() {
	m.mu.Lock()
	changed := m.snap.state != Idle
	m.snap.state = Idle
	m.snap.handsFree = false
	m.mu.Unlock()
	if changed {
		m.notify(Idle)
	}
}

func (m *Machine) notify(s State) {
	if m.onChange != nil {
		m.onChange(s)
	}
}

// pressTransition implements push-to-talk plus double-tap hands-free.
func pressTransition(s snapshot, now time.Time, window time.Duration) (snapshot, Effect) {
	doubleTap := !s.lastPress.IsZero() && now.Sub(s.lastPress) < window
	s.lastPress = now

	if doubleTap {
		switch {
		case s.state == Idle:
			s.handsFree = true
			s.state = Recording
			return s, EffectStartRecording
		case s.state == Recording && s.handsFree:
			s.handsFree = false
			s.state = Processing
			return s, EffectStopRecording
		default:
			// Double-tap during processing or a held push-to-talk press.
			return s, EffectNone
		}
	}

	if s.state == Idle {
		s.handsFree = false
		s.state = Recording
		return s, EffectStartRecording
	}
	return s, EffectNone
}

// releaseTransition stops a push-to-talk recording. Hands-free recordings
// ignore releases; they end on the next double-tap or tray toggle.
func releaseTransition(s snapshot, _ time.Time, _ time.Duration) (snapshot, Effect) {
	if !s.handsFree && s.state == Recording {
		s.state = Processing
		return s, EffectStopRecording
	}
	return s, EffectNone
}

// trayTransition toggles recording from the tray menu.
func trayTransition(s snapshot, _ time.Time, _ time.Duration) (snapshot, Effect) {
	switch s.state {
	case Idle:
		s.handsFree = true
		s.state = Recording
		return s, EffectStartRecording
	case Recording:
		s.handsFree = false
		s.state = Processing
		return s, EffectStopRecording
	default:
		// Already processing the previous recording.
		return s, EffectNone
	}
}
