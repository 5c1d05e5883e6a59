// Package testsupport provides helpers shared by package tests.
package testsupport

import (
	"path/filepath"
	"testing"

	"mediacat/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.InputFolder = filepath.Join(base, "input")
	cfg.Paths.OutputFolder = filepath.Join(base, "output")
	cfg.Paths.CacheFolder = filepath.Join(base, "cache")
	cfg.Paths.ModelsFolder = filepath.Join(base, "models")
	cfg.Paths.QueueFolder = filepath.Join(base, "queue")
	cfg.Paths.LogFolder = filepath.Join(base, "logs")
	cfg.Paths.Database = filepath.Join(base, "catalog.db")
	cfg.Metadata.TMDB.APIKey = "test"

	for _, opt := range opts {
		opt(&cfg)
	}
	return &cfg
}

// WithMaxRetries sets the processing retry budget on the test config.
func WithMaxRetries(n int) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Processing.MaxRetries = n
	}
}

// WithScanRate sets the ingest scan rate limit on the test config.
func WithScanRate(rate float64) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Processing.ScanRate = rate
	}
}
