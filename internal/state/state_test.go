package state

import (
	"testing"
	"time"
)

// fakeClock advances manually so double-tap timing is deterministic.
type fakeClock struct {
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(1_700_000_000, 0)}
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestMachine(t *testing.T) (*Machine, *fakeClock, *[]State) {
	t.Helper()
	clock := newFakeClock()
	var changes []State
	m := NewMachine(
		WithClock(clock.Now),
		WithOnChange(func(s State) { changes = append(changes, s) }),
	)
	return m, clock, &changes
}

func TestPushToTalk(t *testing.T) {
	m, _, changes := newTestMachine(t)

	effect, dropped := m.HandlePress()
	if dropped {
		t.Fatal("press dropped on uncontended lock")
	}
	if effect != EffectStartRecording {
		t.Fatalf("press effect = %v, want start", effect)
	}
	if m.State() != Recording || m.HandsFree() {
		t.Fatalf("state = %v handsFree = %v after press", m.State(), m.HandsFree())
	}

	effect, _ = m.HandleRelease()
	if effect != EffectStopRecording {
		t.Fatalf("release effect = %v, want stop", effect)
	}
	if m.State() != Processing {
		t.Fatalf("state = %v after release, want processing", m.State())
	}

	m.FinishProcessing()
	if m.State() != Idle {
		t.Fatalf("state = %v after FinishProcessing, want idle", m.State())
	}

	want := []State{Recording, Processing, Idle}
	if len(*changes) != len(want) {
		t.Fatalf("changes = %v, want %v", *changes, want)
	}
	for i, s := range want {
		if (*changes)[i] != s {
			t.Errorf("change %d = %v, want %v", i, (*changes)[i], s)
		}
	}
}

func TestDoubleTapEntersHandsFree(t *testing.T) {
	m, clock, _ := newTestMachine(t)

	// First tap: push-to-talk recording, released quickly and reset as
	// too short, so the machine is Idle again when the second tap lands.
	m.HandlePress()
	clock.Advance(50 * time.Millisecond)
	m.HandleRelease()
	m.Reset()

	clock.Advance(100 * time.Millisecond)
	effect, _ := m.HandlePress()
	if effect != EffectStartRecording {
		t.Fatalf("second tap effect = %v, want start", effect)
	}
	if !m.HandsFree() {
		t.Fatal("double tap within window should engage hands-free mode")
	}

	// Release must not stop a hands-free recording.
	if effect, _ := m.HandleRelease(); effect != EffectNone {
		t.Fatalf("release effect = %v, want none in hands-free", effect)
	}
	if m.State() != Recording {
		t.Fatalf("state = %v, want still recording", m.State())
	}
}

func TestDoubleTapStopsHandsFree(t *testing.T) {
	m, clock, _ := newTestMachine(t)

	// Enter hands-free via tray (no release event from a menu click).
	m.HandleTrayToggle()
	if !m.HandsFree() || m.State() != Recording {
		t.Fatalf("tray toggle: state = %v handsFree = %v", m.State(), m.HandsFree())
	}

	// Prime lastPress, then double-tap while recording hands-free.
	clock.Advance(2 * time.Second)
	if effect, _ := m.HandlePress(); effect != EffectNone {
		t.Fatalf("single press while hands-free recording should be ignored, got %v", effect)
	}
	clock.Advance(100 * time.Millisecond)
	effect, _ := m.HandlePress()
	if effect != EffectStopRecording {
		t.Fatalf("double tap effect = %v, want stop", effect)
	}
	if m.State() != Processing || m.HandsFree() {
		t.Fatalf("state = %v handsFree = %v after stop", m.State(), m.HandsFree())
	}
}

func TestSlowSecondTapIsNotDoubleTap(t *testing.T) {
	m, clock, _ := newTestMachine(t)

	m.HandlePress()
	clock.Advance(50 * time.Millisecond)
	m.HandleRelease()
	m.Reset()

	// 400 ms since the first press: outside the 300 ms window.
	clock.Advance(350 * time.Millisecond)
	effect, _ := m.HandlePress()
	if effect != EffectStartRecording {
		t.Fatalf("press effect = %v, want start", effect)
	}
	if m.HandsFree() {
		t.Fatal("slow second tap must start plain push-to-talk, not hands-free")
	}
}

func TestTrayToggleCycle(t *testing.T) {
	m, _, _ := newTestMachine(t)

	if effect, _ := m.HandleTrayToggle(); effect != EffectStartRecording {
		t.Fatalf("idle toggle effect = %v", effect)
	}
	if effect, _ := m.HandleTrayToggle(); effect != EffectStopRecording {
		t.Fatalf("recording toggle effect = %v", effect)
	}
	// Processing: toggle is a no-op, the pipeline owns the way back.
	if effect, _ := m.HandleTrayToggle(); effect != EffectNone {
		t.Fatalf("processing toggle effect = %v, want none", effect)
	}
	if m.State() != Processing {
		t.Fatalf("state = %v, want processing", m.State())
	}
}

func TestContendedLockDropsEvent(t *testing.T) {
	m, _, _ := newTestMachine(t)

	m.mu.Lock()
	effect, dropped := m.HandlePress()
	m.mu.Unlock()

	if !dropped {
		t.Fatal("press on a held lock should be dropped")
	}
	if effect != EffectNone {
		t.Fatalf("dropped event effect = %v, want none", effect)
	}
	if m.State() != Idle {
		t.Fatalf("dropped event must not change state, got %v", m.State())
	}
}

func TestFinishProcessingOutsideProcessing(t *testing.T) {
	m, _, changes := newTestMachine(t)

	m.FinishProcessing()
	if m.State() != Idle {
		t.Fatalf("state = %v", m.State())
	}
	if len(*changes) != 0 {
		t.Errorf("no-op FinishProcessing emitted changes: %v", *changes)
	}

	m.HandlePress()
	m.FinishProcessing()
	if m.State() != Recording {
		t.Fatalf("FinishProcessing during recording must be a no-op, state = %v", m.State())
	}
}

func TestResetClearsHandsFree(t *testing.T) {
	m, _, _ := newTestMachine(t)

	m.HandleTrayToggle()
	m.Reset()
	if m.State() != Idle || m.HandsFree() {
		t.Fatalf("after reset: state = %v handsFree = %v", m.State(), m.HandsFree())
	}
}
