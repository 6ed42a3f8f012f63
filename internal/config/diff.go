package config

// ConfigDiff describes what changed between two configs.
// Only fields that can be safely hot-reloaded are tracked; everything else
// (listen address, audio backend, service URLs) requires a restart.
type ConfigDiff struct {
	ScanChanged     bool
	NewScan         ScanConfig
	LogLevelChanged bool
	NewLogLevel     LogLevel
}

// Diff compares old and new configs and returns what changed.
// Only tracks changes that are safe to apply without restart.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	if old.Scan != new.Scan {
		d.ScanChanged = true
		d.NewScan = new.Scan
	}

	return d
}
