package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"
)

// Load reads the YAML configuration file at path and returns a validated
// [Config] with defaults applied. It is a convenience wrapper around
// [LoadFromReader].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, validates it, and applies
// defaults. Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	cfg.Defaults()
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if cfg.Server.TLS != nil {
		if cfg.Server.TLS.CertFile == "" || cfg.Server.TLS.KeyFile == "" {
			errs = append(errs, errors.New("server.tls requires both cert_file and key_file"))
		}
	}

	// Speech
	if cfg.Speech.BaseURL == "" {
		errs = append(errs, errors.New("speech.base_url is required"))
	}
	if cfg.Speech.TimeoutMS < 0 {
		errs = append(errs, fmt.Errorf("speech.timeout_ms %d must not be negative", cfg.Speech.TimeoutMS))
	}
	if cfg.Speech.Breaker.FailureThreshold < 0 {
		errs = append(errs, fmt.Errorf("speech.breaker.failure_threshold %d must not be negative", cfg.Speech.Breaker.FailureThreshold))
	}

	// Symbols
	if cfg.Symbols.BaseURL == "" {
		slog.Warn("symbols.base_url is empty; items will render without images")
	}
	if cfg.Symbols.TimeoutMS < 0 {
		errs = append(errs, fmt.Errorf("symbols.timeout_ms %d must not be negative", cfg.Symbols.TimeoutMS))
	}
	if cfg.Symbols.LookupLimit < 0 {
		errs = append(errs, fmt.Errorf("symbols.lookup_limit %d must not be negative", cfg.Symbols.LookupLimit))
	}

	// Cache
	if cfg.Cache.Dir != "" && cfg.Cache.PostgresDSN != "" {
		errs = append(errs, errors.New("cache.dir and cache.postgres_dsn are mutually exclusive"))
	}
	if cfg.Cache.TTLMinutes < 0 {
		errs = append(errs, fmt.Errorf("cache.ttl_minutes %d must not be negative", cfg.Cache.TTLMinutes))
	}

	// Scan
	if cfg.Scan.DelayMS < 0 {
		errs = append(errs, fmt.Errorf("scan.delay_ms %d must not be negative", cfg.Scan.DelayMS))
	}
	if cfg.Scan.DelayMS > 0 && cfg.Scan.DelayMS < MinScanDelayMS {
		slog.Warn("scan.delay_ms below minimum; clamping",
			"configured", cfg.Scan.DelayMS,
			"minimum", MinScanDelayMS,
		)
	}
	if cfg.Scan.LoopLimit < 0 {
		errs = append(errs, fmt.Errorf("scan.loop_limit %d must not be negative; use 0 for unlimited", cfg.Scan.LoopLimit))
	}
	if cfg.Scan.SegmentGapMS < 0 {
		errs = append(errs, fmt.Errorf("scan.segment_gap_ms %d must not be negative", cfg.Scan.SegmentGapMS))
	}

	// Audio
	if cfg.Audio.Backend != "" && !cfg.Audio.Backend.IsValid() {
		errs = append(errs, fmt.Errorf("audio.backend %q is invalid; valid values: speaker, mock", cfg.Audio.Backend))
	}
	if cfg.Audio.Channels != 0 && cfg.Audio.Channels != 1 && cfg.Audio.Channels != 2 {
		errs = append(errs, fmt.Errorf("audio.channels %d is invalid; valid values: 1, 2", cfg.Audio.Channels))
	}
	if cfg.Audio.SampleRate < 0 {
		errs = append(errs, fmt.Errorf("audio.sample_rate %d must not be negative", cfg.Audio.SampleRate))
	}

	return errors.Join(errs...)
}
