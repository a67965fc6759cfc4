package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	c.applyEnv()
	c.normalizeRun()
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeFetch()
	c.normalizeNotifications()
	c.normalizeCompliance()
	c.normalizeLogging()
	return nil
}

// applyEnv lets SURPLUS_* variables override file values.
func (c *Config) applyEnv() {
	if value, ok := lookupEnv("SURPLUS_MODE"); ok {
		c.Run.Mode = value
	}
	if value, ok := lookupEnv("SURPLUS_NETWORK"); ok {
		c.Run.Network = value
	}
	if value, ok := lookupEnv("SURPLUS_ARTIFACT_DIR"); ok {
		c.Paths.ArtifactDir = value
	}
	if value, ok := lookupEnv("SURPLUS_AUDIT_DIR"); ok {
		c.Paths.AuditDir = value
	}
	if value, ok := lookupEnv("SURPLUS_WEBHOOK_URL"); ok {
		c.Notifications.WebhookURL = value
	}
}

func lookupEnv(key string) (string, bool) {
	value, ok := os.LookupEnv(key)
	if !ok {
		return "", false
	}
	value = strings.TrimSpace(value)
	return value, value != ""
}

func (c *Config) normalizeRun() {
	c.Run.Mode = strings.ToUpper(strings.TrimSpace(c.Run.Mode))
	if c.Run.Mode == "" {
		c.Run.Mode = defaultMode
	}
	c.Run.Network = strings.ToUpper(strings.TrimSpace(c.Run.Network))
	if c.Run.Network == "" {
		c.Run.Network = defaultNetwork
	}
	c.Run.Actor = strings.TrimSpace(c.Run.Actor)
	if c.Run.Actor == "" {
		c.Run.Actor = defaultActor
	}
}

func (c *Config) normalizePaths() error {
	fields := []struct {
		key      string
		value    *string
		fallback string
	}{
		{"paths.artifact_dir", &c.Paths.ArtifactDir, defaultArtifactDir},
		{"paths.audit_dir", &c.Paths.AuditDir, defaultAuditDir},
		{"paths.log_dir", &c.Paths.LogDir, defaultLogDir},
		{"paths.fixtures_dir", &c.Paths.FixturesDir, defaultFixturesDir},
		{"paths.state_dir", &c.Paths.StateDir, defaultStateDir},
	}
	for _, field := range fields {
		if strings.TrimSpace(*field.value) == "" {
			*field.value = field.fallback
		}
		expanded, err := expandPath(*field.value)
		if err != nil {
			return fmt.Errorf("%s: %w", field.key, err)
		}
		*field.value = expanded
	}
	return nil
}

func (c *Config) normalizeFetch() {
	c.Fetch.BaseURL = strings.TrimRight(strings.TrimSpace(c.Fetch.BaseURL), "/")
	c.Fetch.UserAgent = strings.TrimSpace(c.Fetch.UserAgent)
	if c.Fetch.UserAgent == "" {
		c.Fetch.UserAgent = defaultFetchUserAgent
	}
	if c.Fetch.RequestTimeout <= 0 {
		c.Fetch.RequestTimeout = defaultFetchRequestTimeout
	}
	if c.Fetch.MinIntervalMS < 0 {
		c.Fetch.MinIntervalMS = 0
	}
}

func (c *Config) normalizeNotifications() {
	c.Notifications.WebhookURL = strings.TrimSpace(c.Notifications.WebhookURL)
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNotifyRequestTimeout
	}
}

func (c *Config) normalizeCompliance() {
	if len(c.Compliance.RequiredFields) == 0 {
		return
	}
	fields := make([]string, 0, len(c.Compliance.RequiredFields))
	seen := make(map[string]struct{}, len(c.Compliance.RequiredFields))
	for _, field := range c.Compliance.RequiredFields {
		normalized := strings.TrimSpace(field)
		if normalized == "" {
			continue
		}
		if _, exists := seen[normalized]; exists {
			continue
		}
		seen[normalized] = struct{}{}
		fields = append(fields, normalized)
	}
	c.Compliance.RequiredFields = fields
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
}
