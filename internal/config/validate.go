package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateThresholds(); err != nil {
		return err
	}
	if err := c.validateWorker(); err != nil {
		return err
	}
	if c.Logging.Format != "console" && c.Logging.Format != "json" {
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	return nil
}

func (c *Config) validateThresholds() error {
	t := c.Thresholds
	if t.SweepMinRequests < 1 {
		return errors.New("thresholds.sweep_min_requests must be at least 1")
	}
	if t.MinRequests < t.SweepMinRequests {
		return errors.New("thresholds.min_requests must not be below thresholds.sweep_min_requests")
	}
	if t.MinUsers < 1 {
		return errors.New("thresholds.min_users must be at least 1")
	}
	if t.MinCompletion < 0 || t.MinCompletion > 1 {
		return errors.New("thresholds.min_completion must be between 0 and 1")
	}
	if t.MinSaveRate < 0 || t.MinSaveRate > 1 {
		return errors.New("thresholds.min_save_rate must be between 0 and 1")
	}
	if t.MinScore < 0 {
		return errors.New("thresholds.min_score must not be negative")
	}
	return nil
}

func (c *Config) validateWorker() error {
	if c.Worker.RetryMaxDelayMillis < c.Worker.RetryBaseDelayMillis {
		return errors.New("worker.retry_max_delay_millis must not be below worker.retry_base_delay_millis")
	}
	return nil
}
