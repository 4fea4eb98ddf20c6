package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	c.Paths.APIToken = strings.TrimSpace(c.Paths.APIToken)

	if c.Generation.APIKey == "" {
		if value, ok := os.LookupEnv("MINDCAST_GENERATION_API_KEY"); ok {
			c.Generation.APIKey = value
		}
	}
	c.Generation.BaseURL = strings.TrimSpace(c.Generation.BaseURL)
	if c.Generation.BaseURL == "" {
		c.Generation.BaseURL = defaultGenerationBaseURL
	}
	c.Generation.Model = strings.TrimSpace(c.Generation.Model)
	if c.Generation.Model == "" {
		c.Generation.Model = defaultGenerationModel
	}
	if c.Generation.TimeoutSeconds <= 0 {
		c.Generation.TimeoutSeconds = defaultGenerationTimeout
	}
	if c.Generation.TargetMinutes <= 0 {
		c.Generation.TargetMinutes = defaultTargetMinutes
	}

	if c.Audio.APIKey == "" {
		if value, ok := os.LookupEnv("MINDCAST_AUDIO_API_KEY"); ok {
			c.Audio.APIKey = value
		}
	}
	c.Audio.BaseURL = strings.TrimSpace(c.Audio.BaseURL)
	if c.Audio.BaseURL == "" {
		c.Audio.BaseURL = defaultAudioBaseURL
	}
	c.Audio.Voice = strings.TrimSpace(c.Audio.Voice)
	if c.Audio.Voice == "" {
		c.Audio.Voice = defaultAudioVoice
	}
	if c.Audio.TimeoutSeconds <= 0 {
		c.Audio.TimeoutSeconds = defaultAudioTimeout
	}

	if c.Worker.BudgetSeconds <= 0 {
		c.Worker.BudgetSeconds = defaultWorkerBudgetSeconds
	}
	if c.Worker.RetryMaxAttempts <= 0 {
		c.Worker.RetryMaxAttempts = defaultRetryMaxAttempts
	}
	if c.Worker.RetryBaseDelayMillis <= 0 {
		c.Worker.RetryBaseDelayMillis = defaultRetryBaseDelayMillis
	}
	if c.Worker.RetryMaxDelayMillis <= 0 {
		c.Worker.RetryMaxDelayMillis = defaultRetryMaxDelayMillis
	}
	if c.Worker.BreakerFailureCount <= 0 {
		c.Worker.BreakerFailureCount = defaultBreakerFailureCount
	}
	if c.Worker.BreakerWindowSeconds <= 0 {
		c.Worker.BreakerWindowSeconds = defaultBreakerWindowSeconds
	}
	if c.Worker.BreakerCooldownSeconds <= 0 {
		c.Worker.BreakerCooldownSeconds = defaultBreakerCooldownSeconds
	}

	c.Scheduler.SweepSpec = strings.TrimSpace(c.Scheduler.SweepSpec)
	if c.Scheduler.SweepSpec == "" {
		c.Scheduler.SweepSpec = defaultSweepSpec
	}
	c.Scheduler.RemasterSpec = strings.TrimSpace(c.Scheduler.RemasterSpec)
	if c.Scheduler.RemasterSpec == "" {
		c.Scheduler.RemasterSpec = defaultRemasterSpec
	}

	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	return nil
}
