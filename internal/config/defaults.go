package config

const (
	defaultDataDir = "~/.local/share/mindcast"
	defaultLogDir  = "~/.local/share/mindcast/logs"
	defaultAPIBind = "127.0.0.1:7319"

	defaultSweepMinRequests = 5
	defaultMinRequests      = 30
	defaultMinUsers         = 20
	defaultMinCompletion    = 0.6
	defaultMinSaveRate      = 0.2
	defaultMinScore         = 0.5

	defaultGenerationBaseURL = "https://openrouter.ai/api/v1/chat/completions"
	defaultGenerationModel   = "anthropic/claude-sonnet-4.5"
	defaultGenerationTimeout = 120
	defaultTargetMinutes     = 10

	defaultAudioBaseURL = "https://api.openai.com/v1/audio/speech"
	defaultAudioVoice   = "nova"
	defaultAudioTimeout = 180

	defaultWorkerBudgetSeconds    = 240
	defaultRetryMaxAttempts       = 3
	defaultRetryBaseDelayMillis   = 1000
	defaultRetryMaxDelayMillis    = 10000
	defaultBreakerFailureCount    = 5
	defaultBreakerWindowSeconds   = 120
	defaultBreakerCooldownSeconds = 300

	defaultSweepSpec    = "*/15 * * * *"
	defaultRemasterSpec = "*/5 * * * *"

	defaultLogFormat = "console"
	defaultLogLevel  = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
			APIBind: defaultAPIBind,
		},
		Thresholds: Thresholds{
			SweepMinRequests: defaultSweepMinRequests,
			MinRequests:      defaultMinRequests,
			MinUsers:         defaultMinUsers,
			MinCompletion:    defaultMinCompletion,
			MinSaveRate:      defaultMinSaveRate,
			MinScore:         defaultMinScore,
		},
		Generation: Generation{
			BaseURL:        defaultGenerationBaseURL,
			Model:          defaultGenerationModel,
			TimeoutSeconds: defaultGenerationTimeout,
			TargetMinutes:  defaultTargetMinutes,
		},
		Audio: Audio{
			BaseURL:        defaultAudioBaseURL,
			Voice:          defaultAudioVoice,
			TimeoutSeconds: defaultAudioTimeout,
		},
		Worker: Worker{
			BudgetSeconds:          defaultWorkerBudgetSeconds,
			RetryMaxAttempts:       defaultRetryMaxAttempts,
			RetryBaseDelayMillis:   defaultRetryBaseDelayMillis,
			RetryMaxDelayMillis:    defaultRetryMaxDelayMillis,
			BreakerFailureCount:    defaultBreakerFailureCount,
			BreakerWindowSeconds:   defaultBreakerWindowSeconds,
			BreakerCooldownSeconds: defaultBreakerCooldownSeconds,
		},
		Scheduler: Scheduler{
			Enabled:      true,
			SweepSpec:    defaultSweepSpec,
			RemasterSpec: defaultRemasterSpec,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
