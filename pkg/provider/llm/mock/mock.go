// Package mock provides a test double for the llm.Completer interface.
//
// Use Completer in unit tests to verify the prompts the pipeline builds and
// to feed controlled completions without a live LLM backend. All fields are
// safe to set before calling any method; mutating them during a concurrent
// call is the caller's responsibility.
//
// Example:
//
//	c := &mock.Completer{Response: "Cleaned up text."}
//	out, err := c.Complete(ctx, req)
package mock

import (
	"context"
	"sync"

	"github.com/voxpaste/voxpaste/pkg/provider/llm"
)

// CompleteCall records a single invocation of Complete.
type CompleteCall struct {
	// Ctx is the context passed to Complete.
	Ctx context.Context
	// Req is the Request passed to Complete.
	Req llm.Request
}

// Completer is a mock implementation of llm.Completer.
// Zero values cause Complete to return "", nil. Set Err to inject a failure,
// or Fn to compute the response per call.
type Completer struct {
	mu sync.Mutex

	// --- Configurable responses ---

	// Response is returned by Complete on success.
	Response string

	// Err, if non-nil, is returned as the error from Complete.
	Err error

	// Fn, if non-nil, overrides Response and Err entirely.
	Fn func(ctx context.Context, req llm.Request) (string, error)

	// --- Call records (read after test) ---

	// CompleteCalls records every invocation of Complete in order.
	CompleteCalls []CompleteCall
}

// Complete records the call and returns the configured response.
func (c *Completer) Complete(ctx context.Context, req llm.Request) (string, error) {
	c.mu.Lock()
	c.CompleteCalls = append(c.CompleteCalls, CompleteCall{Ctx: ctx, Req: req})
	fn, resp, err := c.Fn, c.Response, c.Err
	c.mu.Unlock()

	if fn != nil {
		return fn(ctx, req)
	}
	return resp, err
}

// CallCount returns the number of Complete invocations. Thread-safe.
func (c *Completer) CallCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.CompleteCalls)
}

// Reset clears all recorded calls. Thread-safe.
func (c *Completer) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.CompleteCalls = nil
}

// Ensure Completer implements llm.Completer at compile time.
var _ llm.Completer = (*Completer)(nil)
