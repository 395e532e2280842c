package config

const (
	defaultLibraryDir             = "~/takevault/library"
	defaultLogDir                 = "~/.local/share/takevault/logs"
	defaultStateDir               = "~/.local/share/takevault/state"
	defaultProviderBaseURL        = "https://api.elevenlabs.io"
	defaultProviderTimeoutSeconds = 120
	defaultOutputFormat           = "mp3_44100_128"
	defaultVariantsPerLine        = 3
	defaultMinFreeGiB             = 1
	defaultJobPollInterval        = 5
	defaultErrorRetryInterval     = 30
	defaultMaxJobAttempts         = 3
	defaultLogFormat              = "console"
	defaultLogLevel               = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			LibraryDir: defaultLibraryDir,
			LogDir:     defaultLogDir,
			StateDir:   defaultStateDir,
		},
		Provider: Provider{
			BaseURL:        defaultProviderBaseURL,
			TimeoutSeconds: defaultProviderTimeoutSeconds,
			OutputFormat:   defaultOutputFormat,
		},
		Generation: Generation{
			VariantsPerLine: defaultVariantsPerLine,
			MinFreeGiB:      defaultMinFreeGiB,
		},
		Workflow: Workflow{
			JobPollInterval:    defaultJobPollInterval,
			ErrorRetryInterval: defaultErrorRetryInterval,
			MaxJobAttempts:     defaultMaxJobAttempts,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
