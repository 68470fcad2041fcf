// Package app wires all voxpaste subsystems into a running application.
//
// The App struct owns the full lifecycle: New creates and connects the
// stores, recorder, state machine and pipeline collaborators, Run blocks
// until shutdown, and Shutdown tears everything down in order.
//
// For testing, inject doubles via functional options (WithRecorder,
// WithClipboard, etc.). When an option is not provided, New creates real
// implementations from the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/voxpaste/voxpaste/internal/clipboard"
	"github.com/voxpaste/voxpaste/internal/config"
	"github.com/voxpaste/voxpaste/internal/credentials"
	"github.com/voxpaste/voxpaste/internal/dictionary"
	"github.com/voxpaste/voxpaste/internal/ensemble"
	"github.com/voxpaste/voxpaste/internal/health"
	"github.com/voxpaste/voxpaste/internal/history"
	"github.com/voxpaste/voxpaste/internal/notify"
	"github.com/voxpaste/voxpaste/internal/paste"
	"github.com/voxpaste/voxpaste/internal/pipeline"
	"github.com/voxpaste/voxpaste/internal/polish"
	"github.com/voxpaste/voxpaste/internal/recording"
	"github.com/voxpaste/voxpaste/internal/settings"
	"github.com/voxpaste/voxpaste/internal/state"
	"github.com/voxpaste/voxpaste/pkg/provider/llm"
	llmopenai "github.com/voxpaste/voxpaste/pkg/provider/llm/openai"
	"github.com/voxpaste/voxpaste/pkg/provider/stt"
	"github.com/voxpaste/voxpaste/pkg/provider/stt/gladia"
	"github.com/voxpaste/voxpaste/pkg/provider/stt/groq"
	sttopenai "github.com/voxpaste/voxpaste/pkg/provider/stt/openai"
)

// Recorder captures audio between hotkey events. Satisfied by
// *recording.Recorder.
type Recorder interface {
	Start() error
	Stop(dir string) (string, error)
	Recording() bool
}

// App owns all subsystem lifetimes and routes hotkey and tray events
// through the state machine into the transcription pipeline.
type App struct {
	cfg *config.Config
	log *slog.Logger

	// Stores under the data directory.
	Creds    *credentials.Store
	Settings *settings.Store
	Dict     *dictionary.Store
	History  *history.Store

	machine  *state.Machine
	recorder Recorder
	recDir   string
	registry *config.Registry
	notifier *notify.Notifier
	clip     clipboard.Clipboard
	checker  paste.Checker
	sim      paste.Simulator
	orch     *ensemble.Orchestrator
	detector *dictionary.Detector

	onState    func(state.State)
	onProgress func(pipeline.Progress)

	// runs tracks in-flight pipeline goroutines for Shutdown.
	runs sync.WaitGroup

	closers  []func()
	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithRecorder injects an audio recorder instead of opening the microphone.
func WithRecorder(r Recorder) Option {
	return func(a *App) { a.recorder = r }
}

// WithClipboard injects a clipboard instead of the system one.
func WithClipboard(c clipboard.Clipboard) Option {
	return func(a *App) { a.clip = c }
}

// WithPaste injects the permission checker and keystroke simulator.
func WithPaste(checker paste.Checker, sim paste.Simulator) Option {
	return func(a *App) {
		a.checker = checker
		a.sim = sim
	}
}

// WithRegistry injects a provider registry instead of the default one.
func WithRegistry(r *config.Registry) Option {
	return func(a *App) { a.registry = r }
}

// WithStateListener registers a callback for recording state changes,
// used to keep the tray icon in sync.
func WithStateListener(fn func(state.State)) Option {
	return func(a *App) { a.onState = fn }
}

// WithProgressListener registers a callback for pipeline milestones.
func WithProgressListener(fn func(pipeline.Progress)) Option {
	return func(a *App) { a.onProgress = fn }
}

// New creates an App by wiring all subsystems together. Use Option
// functions to inject test doubles for any collaborator.
func New(cfg *config.Config, log *slog.Logger, opts ...Option) (*App, error) {
	a := &App{cfg: cfg, log: log}
	for _, o := range opts {
		o(a)
	}

	dataDir, err := resolveDataDir(cfg)
	if err != nil {
		return nil, err
	}

	a.Creds = credentials.NewStore(filepath.Join(dataDir, "api-keys.json"))
	a.Settings = settings.NewStore(filepath.Join(dataDir, "settings.json"))
	a.Dict = dictionary.NewStore(filepath.Join(dataDir, "dictionary.json"))
	a.History = history.NewStore(filepath.Join(dataDir, "history.json"))

	a.recDir, err = recording.Dir(dataDir)
	if err != nil {
		return nil, fmt.Errorf("app: init recordings dir: %w", err)
	}

	if a.recorder == nil {
		rec, err := recording.NewRecorder(log)
		if err != nil {
			return nil, fmt.Errorf("app: init recorder: %w", err)
		}
		a.recorder = rec
		a.closers = append(a.closers, rec.Close)
	}

	if a.clip == nil {
		a.clip = clipboard.NewSystem()
	}
	if a.checker == nil {
		a.checker = paste.NewChecker()
	}
	if a.sim == nil {
		a.sim = paste.NewSimulator()
	}
	if a.registry == nil {
		a.registry = defaultRegistry(cfg)
	}

	a.notifier = notify.New(true)
	a.orch = ensemble.New(log)
	a.detector = dictionary.NewDetector(a.Dict, a.clip, log)
	a.machine = state.NewMachine(state.WithOnChange(a.stateChanged))

	return a, nil
}

// resolveDataDir picks the configured data directory or the per-user
// default, creating it if needed.
func resolveDataDir(cfg *config.Config) (string, error) {
	dir := cfg.DataDir
	if dir == "" {
		base, err := os.UserConfigDir()
		if err != nil {
			return "", fmt.Errorf("app: locate config directory: %w", err)
		}
		dir = filepath.Join(base, "voxpaste")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("app: create data dir %q: %w", dir, err)
	}
	return dir, nil
}

// defaultRegistry registers the real provider constructors, applying any
// config overrides.
func defaultRegistry(cfg *config.Config) *config.Registry {
	r := config.NewRegistry()

	r.RegisterSTT(settings.ProviderOpenAI, func(entry config.ProviderEntry, apiKey string) (stt.Provider, error) {
		var opts []sttopenai.Option
		if entry.Model != "" {
			opts = append(opts, sttopenai.WithModel(entry.Model))
		}
		if entry.BaseURL != "" {
			opts = append(opts, sttopenai.WithBaseURL(entry.BaseURL))
		}
		return sttopenai.New(apiKey, opts...)
	})
	r.RegisterSTT(settings.ProviderGroq, func(entry config.ProviderEntry, apiKey string) (stt.Provider, error) {
		var opts []groq.Option
		if entry.Model != "" {
			opts = append(opts, groq.WithModel(entry.Model))
		}
		if entry.BaseURL != "" {
			opts = append(opts, groq.WithBaseURL(entry.BaseURL))
		}
		return groq.New(apiKey, opts...)
	})
	r.RegisterSTT(settings.ProviderGladia, func(entry config.ProviderEntry, apiKey string) (stt.Provider, error) {
		var opts []gladia.Option
		if entry.BaseURL != "" {
			opts = append(opts, gladia.WithBaseURL(entry.BaseURL))
		}
		return gladia.New(apiKey, opts...)
	})

	r.RegisterLLM("openai", func(entry config.ProviderEntry, apiKey string) (llm.Completer, error) {
		var opts []llmopenai.Option
		if entry.Model != "" {
			opts = append(opts, llmopenai.WithModel(entry.Model))
		}
		if entry.BaseURL != "" {
			opts = append(opts, llmopenai.WithBaseURL(entry.BaseURL))
		}
		return llmopenai.New(apiKey, opts...)
	})

	return r
}

// HealthCheckers returns the readiness probes for the diagnostics
// endpoint.
func (a *App) HealthCheckers() []health.Checker {
	return []health.Checker{
		{Name: "credentials", Check: func(context.Context) error {
			if a.Creds.Resolve().Available() == 0 {
				return errors.New("no provider API key configured")
			}
			return nil
		}},
		{Name: "clipboard", Check: func(context.Context) error {
			_, err := a.clip.ReadText()
			return err
		}},
		{Name: "recordings", Check: func(context.Context) error {
			_, err := os.Stat(a.recDir)
			return err
		}},
	}
}

// State returns the current recording state.
func (a *App) State() state.State { return a.machine.State() }

// HandlePress processes a shortcut key press.
func (a *App) HandlePress() { a.apply(a.machine.HandlePress()) }

// HandleRelease processes a shortcut key release.
func (a *App) HandleRelease() { a.apply(a.machine.HandleRelease()) }

// HandleTrayToggle processes a click on the tray recording item.
func (a *App) HandleTrayToggle() { a.apply(a.machine.HandleTrayToggle()) }

func (a *App) apply(effect state.Effect, dropped bool) {
	if dropped {
		a.log.Debug("input event dropped, state machine busy")
		return
	}
	switch effect {
	case state.EffectStartRecording:
		if err := a.recorder.Start(); err != nil {
			a.log.Error("failed to start recording", "error", err)
			a.machine.Reset()
		}
	case state.EffectStopRecording:
		path, err := a.recorder.Stop(a.recDir)
		if err != nil {
			a.log.Error("failed to stop recording", "error", err)
			a.machine.Reset()
			return
		}
		a.runs.Add(1)
		go func() {
			defer a.runs.Done()
			a.runPipeline(path)
		}()
	}
}

// runPipeline assembles a pipeline for one recording and runs it to
// completion. The run owns its own context; a shutdown mid-transcription
// lets the in-flight run finish.
func (a *App) runPipeline(audioPath string) {
	p := &pipeline.Pipeline{
		Machine:    a.machine,
		Settings:   a.Settings,
		Keys:       a.Creds,
		Dict:       a.Dict,
		History:    a.History,
		Detector:   a.detector,
		Orch:       a.orch,
		Polisher:   polish.NewClient(a.completer(), a.log),
		Clipboard:  a.clip,
		Checker:    a.checker,
		Simulator:  a.sim,
		Providers:  a.buildSTT,
		OnProgress: a.onProgress,
		Notify:     a.notifier.Notify,
		Log:        a.log,
	}
	if _, err := p.Run(context.Background(), audioPath); err != nil {
		a.log.Warn("pipeline run failed", "error", err)
	}
}

// completer returns the chat-completion backend for polish and fusion,
// or a failing stand-in when no key is configured. The pipeline treats a
// polish failure as a raw-text fallback.
func (a *App) completer() llm.Completer {
	key := a.Creds.Resolve().OpenAI
	c, err := a.registry.CreateLLM("openai", a.cfg.Providers.Entry("polish"), key)
	if err != nil {
		return unavailableCompleter{err: err}
	}
	return c
}

// buildSTT is the pipeline's provider factory.
func (a *App) buildSTT(provider, apiKey string) (stt.Provider, error) {
	return a.registry.CreateSTT(provider, a.cfg.Providers.Entry(provider), apiKey)
}

func (a *App) stateChanged(s state.State) {
	a.log.Info("recording state changed", "state", s.String())
	if a.onState != nil {
		a.onState(s)
	}
}

// Run blocks until ctx is cancelled, then waits for in-flight pipeline
// runs to finish.
func (a *App) Run(ctx context.Context) error {
	a.log.Info("voxpaste running")
	<-ctx.Done()
	a.runs.Wait()
	return ctx.Err()
}

// Shutdown tears down subsystems. Safe to call more than once.
func (a *App) Shutdown() {
	a.stopOnce.Do(func() {
		a.log.Info("shutting down")
		a.runs.Wait()
		for _, closer := range a.closers {
			closer()
		}
	})
}

// unavailableCompleter reports the registry error on every call.
type unavailableCompleter struct{ err error }

func (u unavailableCompleter) Complete(context.Context, llm.Request) (string, error) {
	return "", fmt.Errorf("app: completion backend unavailable: %w", u.err)
}
