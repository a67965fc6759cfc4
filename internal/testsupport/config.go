package testsupport

import (
	"path/filepath"
	"testing"

	"surplus/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.ArtifactDir = filepath.Join(base, "artifacts")
	cfgVal.Paths.AuditDir = filepath.Join(base, "audit")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.FixturesDir = filepath.Join(base, "fixtures")
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.Pipeline.RetryDelayMS = 0

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithMode sets the operating mode on the test config.
func WithMode(mode string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Run.Mode = mode
	}
}

// WithNetwork enables network access against baseURL.
func WithNetwork(baseURL string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Run.Network = config.NetworkOn
		b.cfg.Fetch.BaseURL = baseURL
		b.cfg.Fetch.MinIntervalMS = 0
	}
}

// WithWebhook sets the notification webhook URL.
func WithWebhook(url string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Notifications.WebhookURL = url
	}
}

// WithRequiredFields replaces the compliance required-field list.
func WithRequiredFields(fields ...string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Compliance.RequiredFields = append([]string(nil), fields...)
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.ArtifactDir)
}
