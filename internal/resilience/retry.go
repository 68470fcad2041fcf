// Package resilience provides the retry/backoff primitive shared by all
// network clients in the pipeline.
//
// The central entry point is [Do] (and its result-carrying sibling
// [DoWithResult]): it runs a function up to once per entry in the policy's
// backoff schedule, sleeping the scheduled delay before each attempt. Errors
// wrapped with [Permanent] stop the loop immediately — clients use this to
// mark HTTP 4xx responses (other than 429) as not worth resubmitting.
//
// All types are safe for concurrent use.
package resilience

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// DefaultPolicy is the retry schedule used by the transcription and
// chat-completion clients: three attempts with 0, 500 and 1000 ms delays
// before each attempt respectively.
var DefaultPolicy = Policy{
	Backoff: []time.Duration{0, 500 * time.Millisecond, 1000 * time.Millisecond},
}

// Policy describes a retry schedule. Backoff holds the delay slept before
// each attempt; its length is the maximum number of attempts.
type Policy struct {
	Backoff []time.Duration
}

// Attempts returns the maximum number of attempts the policy allows.
func (p Policy) Attempts() int { return len(p.Backoff) }

// permanentError wraps an error that must not be retried.
type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }

func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as non-retryable: [Do] returns it (unwrapped from the
// marker) without consuming further attempts. A nil err returns nil.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was marked with [Permanent].
func IsPermanent(err error) bool {
	var pe *permanentError
	return errors.As(err, &pe)
}

// Do runs fn according to the policy. It returns nil as soon as one attempt
// succeeds. It returns the last attempt's error when every attempt fails,
// the (unwrapped) error immediately when fn returns a [Permanent] error, and
// ctx.Err() when the context is cancelled while waiting between attempts.
//
// A policy with an empty schedule runs fn exactly once with no delay.
func Do(ctx context.Context, p Policy, fn func() error) error {
	backoff := p.Backoff
	if len(backoff) == 0 {
		backoff = []time.Duration{0}
	}

	var lastErr error
	for attempt, delay := range backoff {
		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		err := fn()
		if err == nil {
			return nil
		}

		var pe *permanentError
		if errors.As(err, &pe) {
			return pe.err
		}

		lastErr = err
		if attempt < len(backoff)-1 {
			slog.Debug("retryable failure, backing off",
				"attempt", attempt+1, "attempts", len(backoff), "error", err)
		}
	}
	return lastErr
}

// DoWithResult is [Do] for functions that produce a value. This is a
// package-level function because Go does not support method-level type
// parameters.
func DoWithResult[T any](ctx context.Context, p Policy, fn func() (T, error)) (T, error) {
	var result T
	err := Do(ctx, p, func() error {
		var innerErr error
		result, innerErr = fn()
		return innerErr
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return result, nil
}
