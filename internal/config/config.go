package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"mindcast/internal/canon"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	DataDir  string `toml:"data_dir"`
	LogDir   string `toml:"log_dir"`
	APIBind  string `toml:"api_bind"`
	APIToken string `toml:"api_token"`
}

// Thresholds contains the promotion policy constants. These are tunable
// policy, not structural contract; defaults mirror the product policy.
type Thresholds struct {
	SweepMinRequests int64   `toml:"sweep_min_requests"`
	MinRequests      int64   `toml:"min_requests"`
	MinUsers         int64   `toml:"min_users"`
	MinCompletion    float64 `toml:"min_completion"`
	MinSaveRate      float64 `toml:"min_save_rate"`
	MinScore         float64 `toml:"min_score"`
}

// Generation contains settings for the transcript generation service.
type Generation struct {
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	Model          string `toml:"model"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	TargetMinutes  int    `toml:"target_minutes"`
}

// Audio contains settings for the text-to-speech and storage service.
type Audio struct {
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	Voice          string `toml:"voice"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Worker contains remaster worker timing, retry, and breaker settings.
type Worker struct {
	BudgetSeconds          int `toml:"budget_seconds"`
	RetryMaxAttempts       int `toml:"retry_max_attempts"`
	RetryBaseDelayMillis   int `toml:"retry_base_delay_millis"`
	RetryMaxDelayMillis    int `toml:"retry_max_delay_millis"`
	BreakerFailureCount    int `toml:"breaker_failure_count"`
	BreakerWindowSeconds   int `toml:"breaker_window_seconds"`
	BreakerCooldownSeconds int `toml:"breaker_cooldown_seconds"`
}

// Scheduler contains cron expressions for the periodic batch triggers.
type Scheduler struct {
	Enabled      bool   `toml:"enabled"`
	SweepSpec    string `toml:"sweep_spec"`
	RemasterSpec string `toml:"remaster_spec"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for mindcastd.
//
// Configuration sections by subsystem:
//   - Paths: data/log directories, API bind address and shared secret
//   - Thresholds: sweep eligibility and promotion policy constants
//   - Generation: LLM transcript generation connection settings
//   - Audio: text-to-speech synthesis and storage settings
//   - Worker: remaster budget, retry policy, circuit breaker tuning
//   - Scheduler: cron expressions for sweep and remaster triggers
//   - Logging: log format and level
type Config struct {
	Paths      Paths      `toml:"paths"`
	Thresholds Thresholds `toml:"thresholds"`
	Generation Generation `toml:"generation"`
	Audio      Audio      `toml:"audio"`
	Worker     Worker     `toml:"worker"`
	Scheduler  Scheduler  `toml:"scheduler"`
	Logging    Logging    `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/mindcast/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		if _, err := os.Stat(expanded); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}
	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	return defaultPath, false, nil
}

// WriteSample writes the embedded sample configuration to path.
func WriteSample(path string) error {
	expanded, err := expandPath(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(expanded), 0o755); err != nil {
		return fmt.Errorf("ensure config directory: %w", err)
	}
	if err := os.WriteFile(expanded, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// EnsureDirectories creates the data and log directories if missing.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}

// CanonThresholds converts the config section into the domain policy type.
func (c *Config) CanonThresholds() canon.Thresholds {
	return canon.Thresholds{
		SweepMinRequests: c.Thresholds.SweepMinRequests,
		MinRequests:      c.Thresholds.MinRequests,
		MinUsers:         c.Thresholds.MinUsers,
		MinCompletion:    c.Thresholds.MinCompletion,
		MinSaveRate:      c.Thresholds.MinSaveRate,
		MinScore:         c.Thresholds.MinScore,
	}
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", nil
	}
	if trimmed == "~" || strings.HasPrefix(trimmed, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if trimmed == "~" {
			return home, nil
		}
		return filepath.Join(home, trimmed[2:]), nil
	}
	abs, err := filepath.Abs(trimmed)
	if err != nil {
		return "", fmt.Errorf("resolve path %s: %w", trimmed, err)
	}
	return abs, nil
}
