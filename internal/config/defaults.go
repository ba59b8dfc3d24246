package config

const (
	defaultDataDir = "~/.local/share/lister"
	defaultLogDir  = "~/.local/share/lister/logs"

	defaultHourlyLimit     = 10
	defaultDefaultPriority = 0

	defaultRateLimitSeconds = 2.0
	defaultMaxRetries       = 3
	defaultBatchSize        = 10

	defaultDaemonInterval  = 60
	defaultStatusEveryTick = 10

	defaultSupervisorCheckInterval = 60
	defaultStopGraceSeconds        = 10

	defaultBusinessStartHour = 6
	defaultBusinessEndHour   = 23

	defaultLogFormat = "console"
	defaultLogLevel  = "info"

	defaultBaseAPIURL = "https://api.thebase.in"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
		},
		Queue: Queue{
			DefaultPriority: defaultDefaultPriority,
			HourlyLimit:     defaultHourlyLimit,
		},
		Dispatch: Dispatch{
			RateLimitSeconds: defaultRateLimitSeconds,
			MaxRetries:       defaultMaxRetries,
			BatchSize:        defaultBatchSize,
		},
		Daemon: Daemon{
			IntervalSeconds: defaultDaemonInterval,
			StatusEveryTick: defaultStatusEveryTick,
		},
		Supervisor: Supervisor{
			CheckIntervalSeconds: defaultSupervisorCheckInterval,
			StopGraceSeconds:     defaultStopGraceSeconds,
		},
		BusinessHours: BusinessHours{
			StartHour: defaultBusinessStartHour,
			EndHour:   defaultBusinessEndHour,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
		Platforms: map[string]Platform{
			"base": {
				Enabled:    true,
				APIBaseURL: defaultBaseAPIURL,
			},
		},
	}
}
