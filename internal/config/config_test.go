package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	cfg, resolved, exists, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if exists {
		t.Error("exists = true for a missing file")
	}
	if resolved != path {
		t.Errorf("resolved = %q, want %q", resolved, path)
	}
	if cfg.Paths.APIBind != "127.0.0.1:7319" {
		t.Errorf("api bind = %q", cfg.Paths.APIBind)
	}
	if cfg.Thresholds.MinRequests != 30 || cfg.Thresholds.MinUsers != 20 {
		t.Errorf("thresholds = %+v", cfg.Thresholds)
	}
	if !cfg.Scheduler.Enabled {
		t.Error("scheduler should default to enabled")
	}
}

func TestLoadOverridesAndFillsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[paths]
data_dir = "~/mindcast-data"
api_token = " secret "

[thresholds]
sweep_min_requests = 2
min_requests = 10
min_users = 3

[logging]
format = "JSON"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, _, exists, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !exists {
		t.Fatal("exists = false for a written file")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		t.Fatalf("home: %v", err)
	}
	if cfg.Paths.DataDir != filepath.Join(home, "mindcast-data") {
		t.Errorf("data_dir = %q, want tilde expanded", cfg.Paths.DataDir)
	}
	if cfg.Paths.APIToken != "secret" {
		t.Errorf("api_token = %q, want trimmed", cfg.Paths.APIToken)
	}
	if cfg.Thresholds.MinRequests != 10 {
		t.Errorf("min_requests = %d", cfg.Thresholds.MinRequests)
	}
	// Untouched sections keep their defaults.
	if cfg.Thresholds.MinCompletion != 0.6 {
		t.Errorf("min_completion = %v", cfg.Thresholds.MinCompletion)
	}
	if cfg.Generation.TimeoutSeconds != 120 {
		t.Errorf("generation timeout = %d", cfg.Generation.TimeoutSeconds)
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("logging format = %q, want lowercased json", cfg.Logging.Format)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"sweep min below one", func(c *Config) { c.Thresholds.SweepMinRequests = 0 }},
		{"min requests below sweep min", func(c *Config) {
			c.Thresholds.SweepMinRequests = 10
			c.Thresholds.MinRequests = 5
		}},
		{"completion above one", func(c *Config) { c.Thresholds.MinCompletion = 1.5 }},
		{"negative save rate", func(c *Config) { c.Thresholds.MinSaveRate = -0.1 }},
		{"retry max delay below base", func(c *Config) {
			c.Worker.RetryBaseDelayMillis = 5000
			c.Worker.RetryMaxDelayMillis = 1000
		}},
		{"unknown log format", func(c *Config) { c.Logging.Format = "yaml" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("want validation error, got nil")
			}
		})
	}
}

func TestGenerationKeyFromEnvironment(t *testing.T) {
	t.Setenv("MINDCAST_GENERATION_API_KEY", "env-key")
	cfg := Default()
	if err := cfg.normalize(); err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if cfg.Generation.APIKey != "env-key" {
		t.Errorf("api key = %q, want env fallback", cfg.Generation.APIKey)
	}
}

func TestCanonThresholdsConversion(t *testing.T) {
	cfg := Default()
	cfg.Thresholds.MinScore = 0.7
	th := cfg.CanonThresholds()
	if th.MinScore != 0.7 || th.MinRequests != cfg.Thresholds.MinRequests {
		t.Errorf("converted thresholds = %+v", th)
	}
}

func TestWriteSample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := WriteSample(path); err != nil {
		t.Fatalf("write sample: %v", err)
	}
	if _, _, exists, err := Load(path); err != nil || !exists {
		t.Fatalf("sample must load cleanly: exists=%v err=%v", exists, err)
	}
}
