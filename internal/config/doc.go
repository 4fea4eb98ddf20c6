// Package config loads, validates, and normalizes mindcastd configuration.
//
// Configuration is a TOML file (default ~/.config/mindcast/config.toml)
// decoded over repository defaults, then normalized (path expansion,
// env-var fallbacks for API keys) and validated. The promotion thresholds
// live here as tunable policy constants and are converted to the domain
// type via CanonThresholds.
package config
