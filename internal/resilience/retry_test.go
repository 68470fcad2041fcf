package resilience_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/voxpaste/voxpaste/internal/resilience"
)

// fastPolicy keeps tests quick while still exercising multi-attempt paths.
var fastPolicy = resilience.Policy{
	Backoff: []time.Duration{0, time.Millisecond, time.Millisecond},
}

func TestDo_SucceedsFirstAttempt(t *testing.T) {
	t.Parallel()

	calls := 0
	err := resilience.Do(context.Background(), fastPolicy, func() error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("Do returned error: %v", err)
	}
	if calls != 1 {
		t.Errorf("calls=%d, want 1", calls)
	}
}

func TestDo_RetriesUntilSuccess(t *testing.T) {
	t.Parallel()

	calls := 0
	err := resilience.Do(context.Background(), fastPolicy, func() error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Do returned error: %v", err)
	}
	if calls != 3 {
		t.Errorf("calls=%d, want 3", calls)
	}
}

func TestDo_ExhaustsAttempts(t *testing.T) {
	t.Parallel()

	sentinel := errors.New("still failing")
	calls := 0
	err := resilience.Do(context.Background(), fastPolicy, func() error {
		calls++
		return sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Fatalf("err=%v, want %v", err, sentinel)
	}
	if calls != 3 {
		t.Errorf("calls=%d, want 3", calls)
	}
}

func TestDo_PermanentStopsImmediately(t *testing.T) {
	t.Parallel()

	sentinel := errors.New("bad request")
	calls := 0
	err := resilience.Do(context.Background(), fastPolicy, func() error {
		calls++
		return resilience.Permanent(sentinel)
	})
	if !errors.Is(err, sentinel) {
		t.Fatalf("err=%v, want %v", err, sentinel)
	}
	if calls != 1 {
		t.Errorf("calls=%d, want 1 (no retry on permanent error)", calls)
	}
}

func TestDo_ContextCancelledDuringBackoff(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	policy := resilience.Policy{Backoff: []time.Duration{0, time.Hour}}

	calls := 0
	done := make(chan error, 1)
	go func() {
		done <- resilience.Do(ctx, policy, func() error {
			calls++
			return errors.New("transient")
		})
	}()

	// Give the first attempt time to fail, then cancel during the long wait.
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("err=%v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Do did not return after cancellation")
	}
	if calls != 1 {
		t.Errorf("calls=%d, want 1", calls)
	}
}

func TestDoWithResult_ReturnsValue(t *testing.T) {
	t.Parallel()

	calls := 0
	got, err := resilience.DoWithResult(context.Background(), fastPolicy, func() (string, error) {
		calls++
		if calls < 2 {
			return "", errors.New("transient")
		}
		return "hello", nil
	})
	if err != nil {
		t.Fatalf("DoWithResult returned error: %v", err)
	}
	if got != "hello" {
		t.Errorf("got=%q, want %q", got, "hello")
	}
}

func TestIsPermanent(t *testing.T) {
	t.Parallel()

	if resilience.IsPermanent(errors.New("plain")) {
		t.Error("plain error reported as permanent")
	}
	if !resilience.IsPermanent(resilience.Permanent(errors.New("wrapped"))) {
		t.Error("wrapped error not reported as permanent")
	}
	if resilience.Permanent(nil) != nil {
		t.Error("Permanent(nil) should be nil")
	}
}
