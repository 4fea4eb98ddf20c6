package testsupport

import (
	"path/filepath"
	"testing"

	"mindcast/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per
// test. It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.APIBind = "127.0.0.1:0"
	cfg.Generation.APIKey = "test"
	cfg.Audio.APIKey = "test"
	cfg.Audio.BaseURL = "http://127.0.0.1:0"
	cfg.Scheduler.Enabled = false

	for _, opt := range opts {
		opt(&cfg)
	}
	return &cfg
}

// WithThresholds overrides the promotion policy on the test config.
func WithThresholds(thresholds config.Thresholds) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Thresholds = thresholds
	}
}

// WithAPIToken sets the bearer token on the test config.
func WithAPIToken(token string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Paths.APIToken = token
	}
}
