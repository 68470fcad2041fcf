// Package ensemble runs several transcription providers concurrently and
// collects every successful result.
//
// The orchestrator deliberately waits for all providers instead of racing
// for the first success: downstream fusion gets better with every agreeing
// signal, and the per-provider timeout bounds the wait anyway.
package ensemble

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/voxpaste/voxpaste/internal/observe"
	"github.com/voxpaste/voxpaste/pkg/provider/stt"
)

// ProviderTimeout bounds each provider call independently.
const ProviderTimeout = 30 * time.Second

// ErrAllProvidersFailed means every provider call failed outright.
var ErrAllProvidersFailed = errors.New("ensemble: all providers failed")

// ErrAllEmpty means at least one provider completed but none returned any
// text. Callers treat this as silence rather than a provider outage.
var ErrAllEmpty = errors.New("ensemble: all transcripts empty")

// Result is one provider's successful transcription.
type Result struct {
	// Provider is the provider's display name.
	Provider string
	// Text is the trimmed transcript.
	Text string
	// Latency is how long the provider call took.
	Latency time.Duration
}

// Orchestrator fans a recording out to providers and gathers successes.
type Orchestrator struct {
	timeout time.Duration
	log     *slog.Logger
	metrics *observe.Metrics
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithTimeout overrides the per-provider timeout. Intended for tests.
func WithTimeout(d time.Duration) Option {
	return func(o *Orchestrator) { o.timeout = d }
}

// WithMetrics overrides the metrics instance. Intended for tests.
func WithMetrics(m *observe.Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// New creates an Orchestrator logging through log.
func New(log *slog.Logger, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		timeout: ProviderTimeout,
		log:     log,
		metrics: observe.DefaultMetrics(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Transcribe calls every provider concurrently on audioPath, each under
// its own timeout, and returns the successes in provider order. Provider
// failures, timeouts and empty transcripts are logged and skipped. Zero
// successes is an error: ErrAllEmpty when some provider completed with an
// empty transcript, ErrAllProvidersFailed when every call failed.
func (o *Orchestrator) Transcribe(ctx context.Context, providers []stt.Provider, audioPath string) ([]Result, error) {
	if len(providers) == 0 {
		return nil, ErrAllProvidersFailed
	}

	// One slot per provider so result order is stable regardless of
	// which call finishes first.
	slots := make([]*Result, len(providers))
	empties := make([]bool, len(providers))

	g, gctx := errgroup.WithContext(ctx)
	for i, p := range providers {
		g.Go(func() error {
			callCtx, cancel := context.WithTimeout(gctx, o.timeout)
			defer cancel()

			start := time.Now()
			text, err := p.Transcribe(callCtx, audioPath)
			latency := time.Since(start)
			if err != nil {
				status := "error"
				if errors.Is(err, context.DeadlineExceeded) {
					status = "timeout"
				}
				o.metrics.RecordProviderRequest(gctx, p.Name(), status, latency.Seconds())
				o.log.Warn("provider transcription failed",
					"provider", p.Name(), "latency", latency, "error", err)
				return nil
			}
			text = strings.TrimSpace(text)
			if text == "" {
				empties[i] = true
				o.metrics.RecordProviderRequest(gctx, p.Name(), "empty", latency.Seconds())
				o.log.Warn("provider returned empty transcript",
					"provider", p.Name(), "latency", latency)
				return nil
			}
			o.metrics.RecordProviderRequest(gctx, p.Name(), "success", latency.Seconds())
			o.log.Info("provider transcription succeeded",
				"provider", p.Name(), "latency", latency, "chars", len(text))
			slots[i] = &Result{Provider: p.Name(), Text: text, Latency: latency}
			return nil
		})
	}
	// Worker closures always return nil; Wait only propagates a
	// cancellation of the parent context.
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	results := make([]Result, 0, len(providers))
	for _, r := range slots {
		if r != nil {
			results = append(results, *r)
		}
	}
	if len(results) == 0 {
		for _, e := range empties {
			if e {
				return nil, ErrAllEmpty
			}
		}
		return nil, ErrAllProvidersFailed
	}
	return results, nil
}
