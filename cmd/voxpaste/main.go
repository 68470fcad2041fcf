// Command voxpaste is the tray dictation tool: hold the shortcut, speak,
// release, and the transcribed text is pasted into the focused window.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/voxpaste/voxpaste/internal/app"
	"github.com/voxpaste/voxpaste/internal/config"
	"github.com/voxpaste/voxpaste/internal/health"
	"github.com/voxpaste/voxpaste/internal/hotkey"
	"github.com/voxpaste/voxpaste/internal/observe"
	"github.com/voxpaste/voxpaste/internal/settings"
	"github.com/voxpaste/voxpaste/internal/state"
	"github.com/voxpaste/voxpaste/internal/tray"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", defaultConfigPath(), "path to the YAML configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "voxpaste: %v\n", err)
		return 1
	}

	level := new(slog.LevelVar)
	level.Set(cfg.Server.LogLevel.Slog())
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	slog.Info("voxpaste starting", "config", *configPath, "log_level", cfg.Server.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Observability ────────────────────────────────────────────────────
	shutdownObserve, err := observe.InitProvider(ctx, observe.ProviderConfig{})
	if err != nil {
		slog.Error("failed to init metrics provider", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownObserve(shutdownCtx); err != nil {
			slog.Warn("metrics shutdown error", "err", err)
		}
	}()
	// The diagnostics mux is completed (health checks) once the app exists.
	diagnostics := http.NewServeMux()
	diagnostics.Handle("/metrics", promhttp.Handler())
	if addr := cfg.Server.MetricsAddr; addr != "" {
		go func() {
			slog.Info("diagnostics endpoint listening", "addr", addr)
			if err := http.ListenAndServe(addr, diagnostics); err != nil {
				slog.Error("diagnostics server error", "err", err)
			}
		}()
	}

	// ── Config hot reload (log level only) ───────────────────────────────
	watcher := config.NewWatcher(*configPath, cfg, func(old, new *config.Config) {
		d := config.Diff(old, new)
		if d.LogLevelChanged {
			level.Set(d.NewLogLevel.Slog())
			slog.Info("log level changed", "level", d.NewLogLevel)
		}
		if d.ProvidersChanged {
			slog.Info("provider overrides changed; restart to apply")
		}
	})
	watcher.Start()
	defer watcher.Stop()

	// ── Application ──────────────────────────────────────────────────────
	var tr *tray.Tray

	application, err := app.New(cfg, logger,
		app.WithStateListener(func(s state.State) {
			if tr != nil {
				tr.SetState(s)
			}
		}),
	)
	if err != nil {
		slog.Error("failed to initialise application", "err", err)
		return 1
	}
	defer application.Shutdown()

	health.New(application.HealthCheckers()...).Register(diagnostics)

	tr = tray.New(tray.Callbacks{
		OnToggleRecording: application.HandleTrayToggle,
		OnPolishToggle: func() bool {
			s := application.Settings.Load()
			s.AIPolishEnabled = !s.AIPolishEnabled
			if err := application.Settings.Save(s); err != nil {
				slog.Warn("failed to save settings", "err", err)
			}
			return s.AIPolishEnabled
		},
		OnQuit: stop,
	}, application.Settings.Load().AIPolishEnabled)

	// ── Shortcut + tray main loop ────────────────────────────────────────
	handler := hotkey.New(application.HandlePress, application.HandleRelease, logger)

	hotkey.RunOnMainThread(func() {
		if err := handler.Register(loadShortcut(application)); err != nil {
			slog.Error("failed to register global shortcut", "err", err)
			// Tray toggling still works without the shortcut.
		}
		defer handler.Unregister()

		go func() {
			<-ctx.Done()
			tr.Quit()
		}()

		tr.Run(func() {
			slog.Info("ready - hold the shortcut and speak")
		})
	})

	if err := application.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// loadShortcut parses the configured shortcut, falling back to the default
// when the stored string does not parse.
func loadShortcut(application *app.App) hotkey.Shortcut {
	text := application.Settings.Load().Shortcut
	sc, err := hotkey.Parse(text)
	if err != nil {
		slog.Warn("invalid shortcut in settings, using default",
			"shortcut", text, "default", settings.DefaultShortcut, "err", err)
		sc, err = hotkey.Parse(settings.DefaultShortcut)
		if err != nil {
			panic(fmt.Sprintf("default shortcut %q does not parse: %v", settings.DefaultShortcut, err))
		}
	}
	return sc
}

// defaultConfigPath is the per-user config file location.
func defaultConfigPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "config.yaml"
	}
	return filepath.Join(dir, "voxpaste", "config.yaml")
}
