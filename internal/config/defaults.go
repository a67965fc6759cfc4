package config

const (
	NetworkOn  = "ON"
	NetworkOff = "OFF"
)

const (
	defaultMode                 = "TEST"
	defaultNetwork              = NetworkOff
	defaultActor                = "surplus"
	defaultArtifactDir          = "~/.local/share/surplus/artifacts"
	defaultAuditDir             = "~/.local/share/surplus/audit"
	defaultLogDir               = "~/.local/share/surplus/logs"
	defaultFixturesDir          = "~/.local/share/surplus/fixtures"
	defaultStateDir             = "~/.local/share/surplus/state"
	defaultRetryDelayMS         = 250
	defaultFetchUserAgent       = "surplus/dev"
	defaultFetchRequestTimeout  = 15
	defaultFetchMinIntervalMS   = 1000
	defaultNotifyRequestTimeout = 10
	defaultLogFormat            = "console"
	defaultLogLevel             = "info"
	defaultLogRetentionDays     = 30
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Run: Run{
			Mode:    defaultMode,
			Network: defaultNetwork,
			Actor:   defaultActor,
		},
		Paths: Paths{
			ArtifactDir: defaultArtifactDir,
			AuditDir:    defaultAuditDir,
			LogDir:      defaultLogDir,
			FixturesDir: defaultFixturesDir,
			StateDir:    defaultStateDir,
		},
		Pipeline: Pipeline{
			RetryDelayMS:   defaultRetryDelayMS,
			PersistReports: true,
			RecordHistory:  true,
		},
		Fetch: Fetch{
			UserAgent:      defaultFetchUserAgent,
			RequestTimeout: defaultFetchRequestTimeout,
			MinIntervalMS:  defaultFetchMinIntervalMS,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
