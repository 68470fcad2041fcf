package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/voxpaste/voxpaste/internal/clipboard"
	"github.com/voxpaste/voxpaste/internal/credentials"
	"github.com/voxpaste/voxpaste/internal/dictionary"
	"github.com/voxpaste/voxpaste/internal/ensemble"
	"github.com/voxpaste/voxpaste/internal/paste"
	"github.com/voxpaste/voxpaste/internal/settings"
	"github.com/voxpaste/voxpaste/pkg/provider/stt"
	sttmock "github.com/voxpaste/voxpaste/pkg/provider/stt/mock"
)

type finishCounter struct {
	mu    sync.Mutex
	calls int
}

func (f *finishCounter) FinishProcessing() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
}

func (f *finishCounter) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type settingsStub struct{ cfg settings.Settings }

func (s settingsStub) Load() settings.Settings { return s.cfg }

type keysStub struct{ keys credentials.Keys }

func (k keysStub) Resolve() credentials.Keys { return k.keys }

type dictStub struct{ entries []dictionary.Entry }

func (d dictStub) Entries() []dictionary.Entry { return d.entries }

type historyEntry struct{ text, raw string }

type historyStub struct {
	mu      sync.Mutex
	err     error
	entries []historyEntry
}

func (h *historyStub) Add(text, rawText string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.err != nil {
		return h.err
	}
	h.entries = append(h.entries, historyEntry{text: text, raw: rawText})
	return nil
}

type schedulerStub struct {
	mu    sync.Mutex
	texts []string
}

func (s *schedulerStub) Schedule(_ context.Context, pastedText string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.texts = append(s.texts, pastedText)
}

func (s *schedulerStub) scheduled() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.texts...)
}

type polisherStub struct {
	mu sync.Mutex

	polishOut string
	polishErr error
	fuseOut   string
	fuseErr   error

	polishCalls int
	fuseCalls   int
	lastRaw     string
	lastResults []ensemble.Result
}

func (p *polisherStub) Polish(_ context.Context, raw string, _ []dictionary.Entry) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.polishCalls++
	p.lastRaw = raw
	if p.polishErr != nil {
		return "", p.polishErr
	}
	if p.polishOut != "" {
		return p.polishOut, nil
	}
	return raw, nil
}

func (p *polisherStub) Fuse(_ context.Context, results []ensemble.Result, _ []dictionary.Entry) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fuseCalls++
	p.lastResults = results
	if p.fuseErr != nil {
		return "", p.fuseErr
	}
	return p.fuseOut, nil
}

type harness struct {
	pipe      *Pipeline
	machine   *finishCounter
	clip      *clipboard.Memory
	stub      *paste.Stub
	history   *historyStub
	polisher  *polisherStub
	detector  *schedulerStub
	providers map[string]*sttmock.Provider

	mu            sync.Mutex
	events        []Progress
	notifications []string
}

func newHarness(t *testing.T, cfg settings.Settings, keys credentials.Keys) *harness {
	t.Helper()
	log := slog.New(slog.DiscardHandler)
	h := &harness{
		machine:  &finishCounter{},
		clip:     clipboard.NewMemory("previous clipboard"),
		stub:     &paste.Stub{AllowedResult: true},
		history:  &historyStub{},
		polisher: &polisherStub{},
		detector: &schedulerStub{},
		providers: map[string]*sttmock.Provider{
			settings.ProviderOpenAI: {ProviderName: "OpenAI"},
			settings.ProviderGroq:   {ProviderName: "Groq"},
			settings.ProviderGladia: {ProviderName: "Gladia"},
		},
	}
	h.pipe = &Pipeline{
		Machine:   h.machine,
		Settings:  settingsStub{cfg: cfg},
		Keys:      keysStub{keys: keys},
		Dict:      dictStub{},
		History:   h.history,
		Detector:  h.detector,
		Orch:      ensemble.New(log),
		Polisher:  h.polisher,
		Clipboard: h.clip,
		Checker:   h.stub,
		Simulator: h.stub,
		Providers: func(provider, apiKey string) (stt.Provider, error) {
			p, ok := h.providers[provider]
			if !ok {
				return nil, fmt.Errorf("unknown provider %q", provider)
			}
			return p, nil
		},
		OnProgress: func(pr Progress) {
			h.mu.Lock()
			defer h.mu.Unlock()
			h.events = append(h.events, pr)
		},
		Notify: func(msg string) {
			h.mu.Lock()
			defer h.mu.Unlock()
			h.notifications = append(h.notifications, msg)
		},
		Log: log,
	}
	h.pipe.SetSettleDelay(time.Millisecond)
	return h
}

func (h *harness) stages() []Stage {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]Stage, len(h.events))
	for i, e := range h.events {
		out[i] = e.Stage
	}
	return out
}

func (h *harness) notified() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.notifications...)
}

func writeAudio(t *testing.T, size int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "recording.wav")
	if err := os.WriteFile(path, bytes.Repeat([]byte{0}, size), 0o644); err != nil {
		t.Fatalf("writing audio fixture: %v", err)
	}
	return path
}

func singleCfg() settings.Settings {
	cfg := settings.Default()
	cfg.EnsembleEnabled = false
	return cfg
}

func TestRunSingleProviderPolishAndPaste(t *testing.T) {
	h := newHarness(t, singleCfg(), credentials.Keys{OpenAI: "sk-test"})
	h.providers[settings.ProviderOpenAI].Text = "so the meeting is moved to thursday"
	h.polisher.polishOut = "The meeting is moved to Thursday."
	audio := writeAudio(t, MinAudioBytes)

	final, err := h.pipe.Run(t.Context(), audio)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if final != "The meeting is moved to Thursday." {
		t.Errorf("final = %q", final)
	}
	if got := h.machine.count(); got != 1 {
		t.Errorf("FinishProcessing calls = %d, want 1", got)
	}
	if h.stub.Calls() != 1 {
		t.Errorf("paste calls = %d, want 1", h.stub.Calls())
	}
	// Paste succeeded, so the clipboard is back to its old content.
	if text, _ := h.clip.ReadText(); text != "previous clipboard" {
		t.Errorf("clipboard after restore = %q", text)
	}
	if got := h.detector.scheduled(); len(got) != 1 || got[0] != final {
		t.Errorf("detector scheduled %v, want [%q]", got, final)
	}
	if len(h.history.entries) != 1 {
		t.Fatalf("history entries = %d, want 1", len(h.history.entries))
	}
	if h.history.entries[0].raw != "so the meeting is moved to thursday" {
		t.Errorf("history raw = %q", h.history.entries[0].raw)
	}
	wantStages := []Stage{StageTranscribing, StagePolishing, StagePasting, StageComplete}
	if got := h.stages(); len(got) != len(wantStages) {
		t.Fatalf("stages = %v, want %v", got, wantStages)
	} else {
		for i := range wantStages {
			if got[i] != wantStages[i] {
				t.Errorf("stage[%d] = %q, want %q", i, got[i], wantStages[i])
			}
		}
	}
}

func TestRunRejectsSmallRecordingWithoutNetworkCalls(t *testing.T) {
	h := newHarness(t, singleCfg(), credentials.Keys{OpenAI: "sk-test"})
	audio := writeAudio(t, MinAudioBytes-1)

	_, err := h.pipe.Run(t.Context(), audio)
	if !errors.Is(err, ErrAudioTooSmall) {
		t.Fatalf("Run error = %v, want ErrAudioTooSmall", err)
	}
	for name, p := range h.providers {
		if p.CallCount() != 0 {
			t.Errorf("provider %s called %d times on rejected audio", name, p.CallCount())
		}
	}
	if got := h.machine.count(); got != 1 {
		t.Errorf("FinishProcessing calls = %d, want 1", got)
	}
	if notes := h.notified(); len(notes) != 1 || notes[0] != "No speech detected" {
		t.Errorf("notifications = %v", notes)
	}
}

func TestRunNoCredentials(t *testing.T) {
	h := newHarness(t, singleCfg(), credentials.Keys{})
	audio := writeAudio(t, MinAudioBytes)

	_, err := h.pipe.Run(t.Context(), audio)
	if !errors.Is(err, ErrNoCredentials) {
		t.Fatalf("Run error = %v, want ErrNoCredentials", err)
	}
	if notes := h.notified(); len(notes) != 1 || notes[0] != "Please set your OpenAI API key in settings" {
		t.Errorf("notifications = %v", notes)
	}
	if got := h.machine.count(); got != 1 {
		t.Errorf("FinishProcessing calls = %d, want 1", got)
	}
}

func TestRunEnsembleFusesMultipleResults(t *testing.T) {
	h := newHarness(t, settings.Default(), credentials.Keys{OpenAI: "a", Groq: "b", Gladia: "c"})
	h.providers[settings.ProviderOpenAI].Text = "hello from openai"
	h.providers[settings.ProviderGroq].Text = "hello from groq"
	h.providers[settings.ProviderGladia].Text = "hello from gladia"
	h.polisher.fuseOut = "hello from everyone"
	audio := writeAudio(t, MinAudioBytes)

	final, err := h.pipe.Run(t.Context(), audio)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if final != "hello from everyone" {
		t.Errorf("final = %q", final)
	}
	if h.polisher.fuseCalls != 1 {
		t.Errorf("fuse calls = %d, want 1", h.polisher.fuseCalls)
	}
	if h.polisher.polishCalls != 0 {
		t.Errorf("polish calls = %d, want 0", h.polisher.polishCalls)
	}
	if len(h.polisher.lastResults) != 3 {
		t.Errorf("fused %d results, want 3", len(h.polisher.lastResults))
	}
	if len(h.history.entries) != 1 {
		t.Fatalf("history entries = %d, want 1", len(h.history.entries))
	}
	raw := h.history.entries[0].raw
	for _, want := range []string{"[OpenAI]", "[Groq]", "[Gladia]"} {
		if !strings.Contains(raw, want) {
			t.Errorf("history raw record missing %s label: %q", want, raw)
		}
	}
}

func TestRunSingleEnsembleSurvivorSkipsFusion(t *testing.T) {
	h := newHarness(t, settings.Default(), credentials.Keys{OpenAI: "a", Groq: "b", Gladia: "c"})
	h.providers[settings.ProviderOpenAI].Err = errors.New("boom")
	h.providers[settings.ProviderGroq].Text = "hi"
	h.providers[settings.ProviderGroq].Err = errors.New("boom")
	h.providers[settings.ProviderGladia].Text = "hi"
	audio := writeAudio(t, MinAudioBytes)

	final, err := h.pipe.Run(t.Context(), audio)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	// A short transcript is fine here: the length floor only applies when
	// a single provider was asked in the first place.
	if final != "hi" {
		t.Errorf("final = %q", final)
	}
	if h.polisher.fuseCalls != 0 {
		t.Errorf("fuse calls = %d, want 0", h.polisher.fuseCalls)
	}
	if h.polisher.polishCalls != 1 {
		t.Errorf("polish calls = %d, want 1", h.polisher.polishCalls)
	}
}

func TestRunRejectsHallucination(t *testing.T) {
	h := newHarness(t, singleCfg(), credentials.Keys{OpenAI: "sk-test"})
	h.providers[settings.ProviderOpenAI].Text = "Thank you."
	audio := writeAudio(t, MinAudioBytes)

	_, err := h.pipe.Run(t.Context(), audio)
	if !errors.Is(err, ErrNoSpeech) {
		t.Fatalf("Run error = %v, want ErrNoSpeech", err)
	}
	if len(h.clip.Writes) != 0 {
		t.Errorf("clipboard writes = %v, want none", h.clip.Writes)
	}
	if got := h.machine.count(); got != 1 {
		t.Errorf("FinishProcessing calls = %d, want 1", got)
	}
}

func TestRunRejectsWhitespaceOnlyTranscript(t *testing.T) {
	h := newHarness(t, singleCfg(), credentials.Keys{OpenAI: "sk-test"})
	h.providers[settings.ProviderOpenAI].Text = "   "
	audio := writeAudio(t, MinAudioBytes)

	// The provider call succeeded but heard nothing; that is silence,
	// not a transcription failure.
	_, err := h.pipe.Run(t.Context(), audio)
	if !errors.Is(err, ErrNoSpeech) {
		t.Fatalf("Run error = %v, want ErrNoSpeech", err)
	}
	if notes := h.notified(); len(notes) != 1 || notes[0] != "No speech detected" {
		t.Errorf("notifications = %v, want [No speech detected]", notes)
	}
	if h.polisher.polishCalls != 0 {
		t.Errorf("polish calls = %d, want 0", h.polisher.polishCalls)
	}
	if len(h.clip.Writes) != 0 {
		t.Errorf("clipboard writes = %v, want none", h.clip.Writes)
	}
	if got := h.machine.count(); got != 1 {
		t.Errorf("FinishProcessing calls = %d, want 1", got)
	}
}

func TestRunEnsembleDropsHallucinatedResults(t *testing.T) {
	h := newHarness(t, settings.Default(), credentials.Keys{OpenAI: "a", Groq: "b", Gladia: "c"})
	h.providers[settings.ProviderOpenAI].Text = "hello from openai"
	h.providers[settings.ProviderGroq].Text = "Thank you."
	h.providers[settings.ProviderGladia].Text = "hello from gladia"
	h.polisher.fuseOut = "hello from everyone"
	audio := writeAudio(t, MinAudioBytes)

	final, err := h.pipe.Run(t.Context(), audio)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if final != "hello from everyone" {
		t.Errorf("final = %q", final)
	}
	if len(h.polisher.lastResults) != 2 {
		t.Fatalf("fused %d results, want 2", len(h.polisher.lastResults))
	}
	for _, r := range h.polisher.lastResults {
		if r.Provider == "Groq" {
			t.Errorf("hallucinated Groq result reached fusion: %+v", r)
		}
	}
}

func TestRunEnsembleAllHallucinatedIsNoSpeech(t *testing.T) {
	h := newHarness(t, settings.Default(), credentials.Keys{OpenAI: "a", Groq: "b"})
	h.providers[settings.ProviderOpenAI].Text = "Thank you."
	h.providers[settings.ProviderGroq].Text = "thank you"
	audio := writeAudio(t, MinAudioBytes)

	_, err := h.pipe.Run(t.Context(), audio)
	if !errors.Is(err, ErrNoSpeech) {
		t.Fatalf("Run error = %v, want ErrNoSpeech", err)
	}
	if h.polisher.fuseCalls != 0 {
		t.Errorf("fuse calls = %d, want 0", h.polisher.fuseCalls)
	}
	if len(h.clip.Writes) != 0 {
		t.Errorf("clipboard writes = %v, want none", h.clip.Writes)
	}
}

func TestRunRejectsShortSingleProviderTranscript(t *testing.T) {
	h := newHarness(t, singleCfg(), credentials.Keys{OpenAI: "sk-test"})
	h.providers[settings.ProviderOpenAI].Text = "um hi"
	audio := writeAudio(t, MinAudioBytes)

	_, err := h.pipe.Run(t.Context(), audio)
	if !errors.Is(err, ErrNoSpeech) {
		t.Fatalf("Run error = %v, want ErrNoSpeech", err)
	}
}

func TestRunPolishFailureFallsBackToRaw(t *testing.T) {
	h := newHarness(t, singleCfg(), credentials.Keys{OpenAI: "sk-test"})
	h.providers[settings.ProviderOpenAI].Text = "the raw transcript text"
	h.polisher.polishErr = errors.New("model unavailable")
	audio := writeAudio(t, MinAudioBytes)

	final, err := h.pipe.Run(t.Context(), audio)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if final != "the raw transcript text" {
		t.Errorf("final = %q, want raw transcript", final)
	}
}

func TestRunFusionFailureIsFatal(t *testing.T) {
	h := newHarness(t, settings.Default(), credentials.Keys{OpenAI: "a", Groq: "b"})
	h.providers[settings.ProviderOpenAI].Text = "variant one"
	h.providers[settings.ProviderGroq].Text = "variant two"
	h.polisher.fuseErr = errors.New("model unavailable")
	audio := writeAudio(t, MinAudioBytes)

	_, err := h.pipe.Run(t.Context(), audio)
	if err == nil {
		t.Fatal("Run succeeded, want fusion error")
	}
	if notes := h.notified(); len(notes) != 1 || notes[0] != "Transcription failed" {
		t.Errorf("notifications = %v", notes)
	}
	if got := h.machine.count(); got != 1 {
		t.Errorf("FinishProcessing calls = %d, want 1", got)
	}
}

func TestRunPasteDeniedLeavesTextOnClipboard(t *testing.T) {
	h := newHarness(t, singleCfg(), credentials.Keys{OpenAI: "sk-test"})
	h.providers[settings.ProviderOpenAI].Text = "the raw transcript text"
	h.stub.AllowedResult = false
	audio := writeAudio(t, MinAudioBytes)

	final, err := h.pipe.Run(t.Context(), audio)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if h.stub.Calls() != 0 {
		t.Errorf("paste calls = %d, want 0", h.stub.Calls())
	}
	// No restore happened: the transcript stays available to paste by hand.
	if text, _ := h.clip.ReadText(); text != final {
		t.Errorf("clipboard = %q, want %q", text, final)
	}
	if got := h.detector.scheduled(); len(got) != 0 {
		t.Errorf("detector scheduled %v on a manual-paste run", got)
	}
	found := false
	for _, n := range h.notified() {
		if strings.Contains(n, "Text copied - paste with") {
			found = true
		}
	}
	if !found {
		t.Errorf("missing manual paste hint, notifications = %v", h.notified())
	}
}

func TestRunPastePanicIsIsolated(t *testing.T) {
	h := newHarness(t, singleCfg(), credentials.Keys{OpenAI: "sk-test"})
	h.providers[settings.ProviderOpenAI].Text = "the raw transcript text"
	h.stub.PastePanic = "native call exploded"
	audio := writeAudio(t, MinAudioBytes)

	final, err := h.pipe.Run(t.Context(), audio)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if text, _ := h.clip.ReadText(); text != final {
		t.Errorf("clipboard = %q, want %q", text, final)
	}
	if got := h.machine.count(); got != 1 {
		t.Errorf("FinishProcessing calls = %d, want 1", got)
	}
}

func TestRunClipboardWriteFailure(t *testing.T) {
	h := newHarness(t, singleCfg(), credentials.Keys{OpenAI: "sk-test"})
	h.providers[settings.ProviderOpenAI].Text = "the raw transcript text"
	h.clip.WriteErr = errors.New("display gone")
	audio := writeAudio(t, MinAudioBytes)

	_, err := h.pipe.Run(t.Context(), audio)
	if !errors.Is(err, ErrClipboardWrite) {
		t.Fatalf("Run error = %v, want ErrClipboardWrite", err)
	}
	if notes := h.notified(); len(notes) != 1 || notes[0] != "Failed to copy text to clipboard" {
		t.Errorf("notifications = %v", notes)
	}
	if h.stub.Calls() != 0 {
		t.Errorf("paste attempted after clipboard failure")
	}
}

func TestRunFallsBackWhenConfiguredProviderHasNoKey(t *testing.T) {
	cfg := singleCfg()
	cfg.TranscriptionProvider = settings.ProviderGladia
	h := newHarness(t, cfg, credentials.Keys{Groq: "gk-test"})
	h.providers[settings.ProviderGroq].Text = "the raw transcript text"
	audio := writeAudio(t, MinAudioBytes)

	final, err := h.pipe.Run(t.Context(), audio)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if final != "the raw transcript text" {
		t.Errorf("final = %q", final)
	}
	if h.providers[settings.ProviderGroq].CallCount() != 1 {
		t.Errorf("groq calls = %d, want 1", h.providers[settings.ProviderGroq].CallCount())
	}
	if h.providers[settings.ProviderGladia].CallCount() != 0 {
		t.Errorf("gladia called despite missing key")
	}
}

func TestRunHistoryFailureIsNonFatal(t *testing.T) {
	h := newHarness(t, singleCfg(), credentials.Keys{OpenAI: "sk-test"})
	h.providers[settings.ProviderOpenAI].Text = "the raw transcript text"
	h.history.err = errors.New("disk full")
	audio := writeAudio(t, MinAudioBytes)

	if _, err := h.pipe.Run(t.Context(), audio); err != nil {
		t.Fatalf("Run: %v", err)
	}
}
