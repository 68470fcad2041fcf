// Package config provides the application configuration schema, loader,
// provider registry and file watcher for voxpaste.
//
// This is operator configuration (log level, endpoint overrides, data
// directory), loaded once at startup from YAML. User-facing preferences
// live in the settings store and are read per pipeline run.
package config

import "log/slog"

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Slog maps l to the corresponding slog level. Unknown values map to Info.
func (l LogLevel) Slog() slog.Level {
	switch l {
	case LogDebug:
		return slog.LevelDebug
	case LogWarn:
		return slog.LevelWarn
	case LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Config is the root configuration structure for voxpaste.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Providers ProvidersConfig `yaml:"providers"`

	// DataDir overrides where stores and recordings live. Empty means
	// the per-user config directory.
	DataDir string `yaml:"data_dir"`
}

// ServerConfig holds logging and diagnostics settings.
type ServerConfig struct {
	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`

	// MetricsAddr is the TCP address serving Prometheus metrics
	// (e.g., "127.0.0.1:9090"). Empty disables the endpoint.
	MetricsAddr string `yaml:"metrics_addr"`
}

// ProvidersConfig holds per-provider overrides. Each block tunes one
// backend; zero values mean the provider's built-in defaults.
type ProvidersConfig struct {
	OpenAI ProviderEntry `yaml:"openai"`
	Groq   ProviderEntry `yaml:"groq"`
	Gladia ProviderEntry `yaml:"gladia"`

	// Polish configures the chat-completion backend used for transcript
	// cleanup and fusion.
	Polish ProviderEntry `yaml:"polish"`
}

// ProviderEntry is the common override block shared by all providers.
type ProviderEntry struct {
	// BaseURL overrides the provider's default API endpoint.
	BaseURL string `yaml:"base_url"`

	// Model selects a specific model within the provider
	// (e.g., "whisper-large-v3", "gpt-4o-mini").
	Model string `yaml:"model"`
}

// Entry returns the override block for the named provider, or the zero
// entry when the name is unknown.
func (p ProvidersConfig) Entry(name string) ProviderEntry {
	switch name {
	case "openai":
		return p.OpenAI
	case "groq":
		return p.Groq
	case "gladia":
		return p.Gladia
	case "polish":
		return p.Polish
	}
	return ProviderEntry{}
}
