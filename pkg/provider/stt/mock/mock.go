// Package mock provides a test double for the stt.Provider interface.
//
// Use Provider in unit tests to feed controlled transcripts without a live
// speech backend and to assert which audio paths were submitted. All fields
// are safe to set before calling any method; mutating them during a
// concurrent call is the caller's responsibility.
//
// Example:
//
//	p := &mock.Provider{ProviderName: "Fake", Text: "hello world"}
//	text, err := p.Transcribe(ctx, "/tmp/clip.wav")
package mock

import (
	"context"
	"sync"
	"time"

	"github.com/voxpaste/voxpaste/pkg/provider/stt"
)

// TranscribeCall records a single invocation of Transcribe.
type TranscribeCall struct {
	// Ctx is the context passed to Transcribe.
	Ctx context.Context
	// AudioPath is the path passed to Transcribe.
	AudioPath string
}

// Provider is a mock implementation of stt.Provider.
// Zero values cause methods to return zero values and nil errors.
// Set Err to inject a failure.
type Provider struct {
	mu sync.Mutex

	// --- Configurable responses ---

	// ProviderName is returned by Name. Defaults to "Mock" when empty.
	ProviderName string

	// Text is returned by Transcribe on success.
	Text string

	// Err, if non-nil, is returned as the error from Transcribe.
	Err error

	// Delay, if positive, is how long Transcribe blocks before returning.
	// The context is honored while waiting.
	Delay time.Duration

	// --- Call records (read after test) ---

	// TranscribeCalls records every invocation of Transcribe in order.
	TranscribeCalls []TranscribeCall
}

// Name returns ProviderName, or "Mock" when unset.
func (p *Provider) Name() string {
	if p.ProviderName == "" {
		return "Mock"
	}
	return p.ProviderName
}

// Transcribe records the call, waits Delay if set, and returns Text, Err.
func (p *Provider) Transcribe(ctx context.Context, audioPath string) (string, error) {
	p.mu.Lock()
	p.TranscribeCalls = append(p.TranscribeCalls, TranscribeCall{Ctx: ctx, AudioPath: audioPath})
	delay, text, err := p.Delay, p.Text, p.Err
	p.mu.Unlock()

	if delay > 0 {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(delay):
		}
	}
	return text, err
}

// CallCount returns the number of Transcribe invocations. Thread-safe.
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.TranscribeCalls)
}

// Reset clears all recorded calls. Thread-safe.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.TranscribeCalls = nil
}

// Ensure Provider implements stt.Provider at compile time.
var _ stt.Provider = (*Provider)(nil)
