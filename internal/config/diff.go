package config

// ConfigDiff describes what changed between two configs. Only fields that
// can be safely applied without a restart are tracked.
type ConfigDiff struct {
	LogLevelChanged  bool
	NewLogLevel      LogLevel
	ProvidersChanged bool
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}
	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}
	if old.Providers != new.Providers {
		d.ProvidersChanged = true
	}
	return d
}
