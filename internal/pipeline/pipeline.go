// Package pipeline orchestrates one recording from audio file to pasted
// text: credential resolution, ensemble or single-provider transcription,
// fusion/polish, clipboard write, paste attempt, history and the
// correction-detection window.
//
// Every exit path, success or failure, returns the recording state machine
// to Idle exactly once. That invariant is the whole reason Run is a single
// linear function with deferred cleanup rather than a web of callbacks.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/voxpaste/voxpaste/internal/clipboard"
	"github.com/voxpaste/voxpaste/internal/credentials"
	"github.com/voxpaste/voxpaste/internal/dictionary"
	"github.com/voxpaste/voxpaste/internal/ensemble"
	"github.com/voxpaste/voxpaste/internal/observe"
	"github.com/voxpaste/voxpaste/internal/paste"
	"github.com/voxpaste/voxpaste/internal/settings"
	"github.com/voxpaste/voxpaste/pkg/provider/stt"
)

const (
	// MinAudioBytes is the smallest recording worth transcribing. Files
	// below this are silence or an accidental tap.
	MinAudioBytes = 10 * 1024

	// MinTranscriptChars guards single-provider transcripts: a cleanup
	// model given a couple of characters tends to answer instead of clean.
	MinTranscriptChars = 10

	// SettleDelay lets the target application consume the paste keystroke
	// before the clipboard is restored.
	SettleDelay = 150 * time.Millisecond
)

// Sentinel errors for the pipeline's terminating failures.
var (
	ErrNoCredentials  = errors.New("pipeline: no API key configured")
	ErrNoSpeech       = errors.New("pipeline: no speech detected")
	ErrAudioTooSmall  = errors.New("pipeline: recording too small")
	ErrClipboardWrite = errors.New("pipeline: clipboard write failed")
)

// Stage identifies a pipeline milestone in progress events.
type Stage string

const (
	StageTranscribing Stage = "transcribing"
	StagePolishing    Stage = "polishing"
	StagePasting      Stage = "pasting"
	StageComplete     Stage = "complete"
	StageError        Stage = "error"
)

// Progress is the tagged payload emitted at each pipeline milestone.
type Progress struct {
	Stage   Stage
	Message string
}

// StateFinisher returns the recording state machine to Idle after
// processing. Satisfied by *state.Machine.
type StateFinisher interface {
	FinishProcessing()
}

// Transcriber fans audio out to providers. Satisfied by
// *ensemble.Orchestrator.
type Transcriber interface {
	Transcribe(ctx context.Context, providers []stt.Provider, audioPath string) ([]ensemble.Result, error)
}

// Polisher cleans and fuses transcripts. Satisfied by *polish.Client.
type Polisher interface {
	Polish(ctx context.Context, raw string, dict []dictionary.Entry) (string, error)
	Fuse(ctx context.Context, results []ensemble.Result, dict []dictionary.Entry) (string, error)
}

// SettingsSource reads settings at the start of each run. Satisfied by
// *settings.Store.
type SettingsSource interface {
	Load() settings.Settings
}

// KeyResolver resolves effective provider keys. Satisfied by
// *credentials.Store.
type KeyResolver interface {
	Resolve() credentials.Keys
}

// DictionarySource lists learned corrections. Satisfied by
// *dictionary.Store.
type DictionarySource interface {
	Entries() []dictionary.Entry
}

// HistoryRecorder persists finished transcriptions. Satisfied by
// *history.Store.
type HistoryRecorder interface {
	Add(text, rawText string) error
}

// CorrectionScheduler starts the post-paste correction window. Satisfied
// by *dictionary.Detector.
type CorrectionScheduler interface {
	Schedule(ctx context.Context, pastedText string)
}

// ProviderFactory builds a transcription client for a provider name and
// its resolved API key.
type ProviderFactory func(provider, apiKey string) (stt.Provider, error)

// Pipeline wires the collaborators for processing one recording.
type Pipeline struct {
	Machine   StateFinisher
	Settings  SettingsSource
	Keys      KeyResolver
	Dict      DictionarySource
	History   HistoryRecorder
	Detector  CorrectionScheduler
	Orch      Transcriber
	Polisher  Polisher
	Clipboard clipboard.Clipboard
	Checker   paste.Checker
	Simulator paste.Simulator
	Providers ProviderFactory

	// OnProgress receives milestone events. Optional.
	OnProgress func(Progress)
	// Notify requests a user-visible notification. Optional.
	Notify func(message string)

	// Log defaults to slog.Default().
	Log *slog.Logger
	// Metrics defaults to observe.DefaultMetrics().
	Metrics *observe.Metrics

	// settleDelay is overridable in tests.
	settleDelay time.Duration
}

// SetSettleDelay overrides the clipboard settle delay. Intended for tests.
func (p *Pipeline) SetSettleDelay(d time.Duration) { p.settleDelay = d }

func (p *Pipeline) log() *slog.Logger {
	if p.Log != nil {
		return p.Log
	}
	return slog.Default()
}

func (p *Pipeline) metrics() *observe.Metrics {
	if p.Metrics != nil {
		return p.Metrics
	}
	return observe.DefaultMetrics()
}

func (p *Pipeline) emit(stage Stage, message string) {
	if p.OnProgress != nil {
		p.OnProgress(Progress{Stage: stage, Message: message})
	}
}

func (p *Pipeline) notify(message string) {
	if p.Notify != nil {
		p.Notify(message)
	}
}

// fail emits the terminal error event and notification for a failed run.
func (p *Pipeline) fail(event, notification string, err error) error {
	p.emit(StageError, event)
	p.notify(notification)
	return err
}

// Run processes one completed recording at audioPath and returns the final
// text. The state machine is returned to Idle exactly once on every path.
func (p *Pipeline) Run(ctx context.Context, audioPath string) (final string, err error) {
	start := time.Now()
	defer p.Machine.FinishProcessing()
	defer func() {
		outcome := "success"
		switch {
		case errors.Is(err, ErrNoSpeech), errors.Is(err, ErrAudioTooSmall):
			outcome = "rejected"
		case err != nil:
			outcome = "error"
		}
		p.metrics().RecordPipelineRun(ctx, outcome, time.Since(start).Seconds())
	}()

	ctx, span := observe.StartSpan(ctx, "pipeline.run")
	defer span.End()
	log := observe.Logger(ctx, p.log()).With("audio_path", audioPath)

	// Stage 1: reject empty or near-silent recordings before any network call.
	info, statErr := os.Stat(audioPath)
	if statErr != nil {
		log.Warn("recording file missing", "error", statErr)
		return "", p.fail("No speech detected", "No speech detected",
			fmt.Errorf("%w: %v", ErrAudioTooSmall, statErr))
	}
	if info.Size() < MinAudioBytes {
		log.Info("recording below minimum size, rejecting", "bytes", info.Size())
		return "", p.fail("No speech detected", "No speech detected", ErrAudioTooSmall)
	}

	// Stage 2: resolve credentials and pick the transcription path.
	cfg := p.Settings.Load()
	keys := p.Keys.Resolve()
	if keys.Available() == 0 {
		return "", p.fail("No API key configured",
			"Please set your OpenAI API key in settings", ErrNoCredentials)
	}

	p.emit(StageTranscribing, "Transcribing...")
	dict := p.Dict.Entries()

	raw, rawRecord, results, err := p.transcribe(ctx, cfg, keys, audioPath)
	if err != nil {
		if errors.Is(err, ErrNoSpeech) {
			return "", p.fail("No speech detected", "No speech detected", err)
		}
		log.Warn("transcription failed", "error", err)
		return "", p.fail("Transcription failed: "+err.Error(), "Transcription failed", err)
	}

	// Stage 3/4: fuse multiple transcripts, or polish a single one.
	if len(results) >= 2 {
		p.emit(StagePolishing, "Processing...")
		fuseStart := time.Now()
		final, err = p.Polisher.Fuse(ctx, results, dict)
		p.metrics().RecordPolish(ctx, "fusion", time.Since(fuseStart).Seconds())
		if err != nil {
			log.Warn("fusion failed", "error", err)
			return "", p.fail("Transcription failed: "+err.Error(), "Transcription failed", err)
		}
	} else {
		final = raw
		if cfg.AIPolishEnabled {
			p.emit(StagePolishing, "Processing...")
			polishStart := time.Now()
			polished, polishErr := p.Polisher.Polish(ctx, raw, dict)
			p.metrics().RecordPolish(ctx, "polish", time.Since(polishStart).Seconds())
			if polishErr != nil {
				log.Warn("polish failed, using raw text", "error", polishErr)
			} else {
				final = polished
			}
		}
	}

	// Stage 5: the clipboard write is unconditional so the user always
	// ends up with a usable copy, whatever the paste does next.
	p.emit(StagePasting, "")
	guard := clipboard.NewGuard(p.Clipboard)
	if writeErr := guard.WriteText(final); writeErr != nil {
		log.Error("clipboard write failed", "error", writeErr)
		return "", p.fail("Failed to write to clipboard",
			"Failed to copy text to clipboard", fmt.Errorf("%w: %v", ErrClipboardWrite, writeErr))
	}

	// Stages 6-8: permission-gated paste with clipboard fallback.
	pasted := p.attemptPaste(ctx, log, guard, final)

	// History is best effort; the text is already delivered.
	rawForHistory := ""
	if final != raw || len(results) >= 2 {
		rawForHistory = rawRecord
	}
	if histErr := p.History.Add(final, rawForHistory); histErr != nil {
		log.Warn("failed to persist history", "error", histErr)
	}

	if !pasted {
		p.notify(manualPasteHint())
	}
	p.emit(StageComplete, "")
	log.Info("pipeline complete", "pasted", pasted, "chars", len(final),
		"providers", len(results), "duration", time.Since(start))
	return final, nil
}

// transcribe obtains raw text via the ensemble or a single provider.
// It returns the text to polish, the provider-labeled raw record for
// history, and the per-provider results (len >= 2 means fusion).
func (p *Pipeline) transcribe(ctx context.Context, cfg settings.Settings, keys credentials.Keys, audioPath string) (raw, rawRecord string, results []ensemble.Result, err error) {
	var providers []stt.Provider
	if cfg.EnsembleEnabled && keys.Available() >= 2 {
		providers, err = p.buildProviders(keys)
	} else {
		providers, err = p.buildSingleProvider(cfg, keys)
	}
	if err != nil {
		return "", "", nil, err
	}

	results, err = p.Orch.Transcribe(ctx, providers, audioPath)
	if err != nil {
		if errors.Is(err, ensemble.ErrAllEmpty) {
			return "", "", nil, fmt.Errorf("%w: %v", ErrNoSpeech, err)
		}
		return "", "", nil, err
	}

	kept := results[:0]
	for _, r := range results {
		if isHallucination(r.Text) {
			p.log().Info("dropping hallucinated transcript",
				"provider", r.Provider, "text", r.Text)
			continue
		}
		kept = append(kept, r)
	}
	results = kept
	if len(results) == 0 {
		return "", "", nil, fmt.Errorf("%w: every transcript matches a known hallucination", ErrNoSpeech)
	}

	if len(results) >= 2 {
		labeled := make([]string, len(results))
		for i, r := range results {
			labeled[i] = fmt.Sprintf("[%s] %s", r.Provider, r.Text)
		}
		return "", strings.Join(labeled, "\n\n"), results, nil
	}

	raw = results[0].Text
	// The minimum-length guard applies only when a lone provider was asked
	// directly; a lone ensemble survivor already beat its peers.
	if len(providers) == 1 && len(strings.TrimSpace(raw)) < MinTranscriptChars {
		return "", "", nil, fmt.Errorf("%w: transcript too short (%d chars)", ErrNoSpeech, len(strings.TrimSpace(raw)))
	}
	return raw, raw, results, nil
}

// buildProviders constructs a client per non-empty key, in the fixed
// OpenAI, Groq, Gladia order.
func (p *Pipeline) buildProviders(keys credentials.Keys) ([]stt.Provider, error) {
	type candidate struct{ name, key string }
	var providers []stt.Provider
	for _, c := range []candidate{
		{settings.ProviderOpenAI, keys.OpenAI},
		{settings.ProviderGroq, keys.Groq},
		{settings.ProviderGladia, keys.Gladia},
	} {
		if c.key == "" {
			continue
		}
		prov, err := p.Providers(c.name, c.key)
		if err != nil {
			return nil, fmt.Errorf("pipeline: build %s provider: %w", c.name, err)
		}
		providers = append(providers, prov)
	}
	return providers, nil
}

// buildSingleProvider picks the configured provider, falling back to
// whichever provider has a key when the configured one has none.
func (p *Pipeline) buildSingleProvider(cfg settings.Settings, keys credentials.Keys) ([]stt.Provider, error) {
	keyFor := map[string]string{
		settings.ProviderOpenAI: keys.OpenAI,
		settings.ProviderGroq:   keys.Groq,
		settings.ProviderGladia: keys.Gladia,
	}

	name := cfg.TranscriptionProvider
	if keyFor[name] == "" {
		for _, fallback := range []string{settings.ProviderOpenAI, settings.ProviderGroq, settings.ProviderGladia} {
			if keyFor[fallback] != "" {
				p.log().Warn("configured provider has no key, falling back",
					"configured", name, "using", fallback)
				name = fallback
				break
			}
		}
	}
	if keyFor[name] == "" {
		return nil, ErrNoCredentials
	}

	prov, err := p.Providers(name, keyFor[name])
	if err != nil {
		return nil, fmt.Errorf("pipeline: build %s provider: %w", name, err)
	}
	return []stt.Provider{prov}, nil
}

// attemptPaste runs the permission check, keystroke simulation, settle
// delay and clipboard restore. Returns true when the keystroke was
// delivered; false leaves the transcript on the clipboard.
func (p *Pipeline) attemptPaste(ctx context.Context, log *slog.Logger, guard *clipboard.Guard, text string) bool {
	if !p.Checker.Allowed() {
		log.Info("keystroke permission unavailable, leaving text on clipboard")
		p.metrics().RecordPaste(ctx, "clipboard_fallback")
		return false
	}

	if err := p.simulate(); err != nil {
		log.Warn("paste simulation failed, leaving text on clipboard", "error", err)
		p.metrics().RecordPaste(ctx, "clipboard_fallback")
		return false
	}

	settle := p.settleDelay
	if settle == 0 {
		settle = SettleDelay
	}
	time.Sleep(settle)

	if err := guard.Restore(); err != nil {
		// Paste already landed; the user only loses their old clipboard.
		log.Warn("failed to restore clipboard", "error", err)
	}

	// The correction window outlives the pipeline run on purpose.
	p.Detector.Schedule(context.WithoutCancel(ctx), text)
	p.metrics().RecordPaste(ctx, "simulated")
	return true
}

// simulate isolates the keystroke injection: a panic inside the platform
// call becomes an ordinary error instead of taking the process down.
func (p *Pipeline) simulate() (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pipeline: paste simulation panicked: %v", r)
		}
	}()
	return p.Simulator.Paste()
}

func manualPasteHint() string {
	if runtime.GOOS == "darwin" {
		return "Text copied - paste with Cmd+V"
	}
	return "Text copied - paste with Ctrl+V"
}
