package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"surplus/internal/compliance"
)

//go:embed sample_config.toml
var sampleConfig string

// Run contains the operating mode and network switch shared by every component.
type Run struct {
	Mode    string `toml:"mode"`
	Network string `toml:"network"`
	Actor   string `toml:"actor"`
}

// Paths contains directory configuration.
type Paths struct {
	ArtifactDir string `toml:"artifact_dir"`
	AuditDir    string `toml:"audit_dir"`
	LogDir      string `toml:"log_dir"`
	FixturesDir string `toml:"fixtures_dir"`
	StateDir    string `toml:"state_dir"`
}

// Pipeline contains orchestrator tuning.
type Pipeline struct {
	RetryDelayMS   int  `toml:"retry_delay_ms"`
	PersistReports bool `toml:"persist_reports"`
	RecordHistory  bool `toml:"record_history"`
}

// Fetch contains settings for the network-aware record fetcher.
type Fetch struct {
	BaseURL        string `toml:"base_url"`
	UserAgent      string `toml:"user_agent"`
	RequestTimeout int    `toml:"request_timeout"`
	MinIntervalMS  int    `toml:"min_interval_ms"`
}

// Notifications contains webhook delivery settings for the notify stage.
type Notifications struct {
	WebhookURL     string `toml:"webhook_url"`
	RequestTimeout int    `toml:"request_timeout"`
}

// Compliance contains data rules applied by the validate stage.
type Compliance struct {
	RequiredFields []string          `toml:"required_fields"`
	FieldFormats   map[string]string `toml:"field_formats"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format         string            `toml:"format"`
	Level          string            `toml:"level"`
	RetentionDays  int               `toml:"retention_days"`
	StageOverrides map[string]string `toml:"stage_overrides"`
}

// Config encapsulates all configuration values for surplus.
//
// Configuration sections by subsystem:
//   - Run: operating mode, network switch, audit actor
//   - Paths: artifact, audit, log, fixture, and state directories
//   - Pipeline: retry delay and persistence toggles
//   - Fetch: record fetcher endpoint and rate limit
//   - Notifications: webhook used by the notify stage in LIVE mode
//   - Compliance: required fields and field formats for validation
//   - Logging: log format, level, and retention
type Config struct {
	Run           Run           `toml:"run"`
	Paths         Paths         `toml:"paths"`
	Pipeline      Pipeline      `toml:"pipeline"`
	Fetch         Fetch         `toml:"fetch"`
	Notifications Notifications `toml:"notifications"`
	Compliance    Compliance    `toml:"compliance"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/surplus/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
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
		_, err = os.Stat(expanded)
		if err != nil {
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

	projectPath, err := filepath.Abs("surplus.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the directories a pipeline run writes into.
// The fixtures directory is read-only input and is left alone.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.ArtifactDir, c.Paths.AuditDir, c.Paths.LogDir, c.Paths.StateDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// OperatingMode returns the parsed run mode. Load has already validated it, so
// the zero value is only returned for hand-built configs with a bad mode.
func (c *Config) OperatingMode() compliance.Mode {
	mode, err := compliance.ParseMode(c.Run.Mode)
	if err != nil {
		return compliance.ModeTest
	}
	return mode
}

// NetworkEnabled reports whether outbound HTTP is permitted.
func (c *Config) NetworkEnabled() bool {
	return c.Run.Network == NetworkOn
}

// RetryDelay returns the fixed delay between handler attempts.
func (c *Config) RetryDelay() time.Duration {
	return time.Duration(c.Pipeline.RetryDelayMS) * time.Millisecond
}

// AuditFile returns the JSONL audit log path.
func (c *Config) AuditFile() string {
	return filepath.Join(c.Paths.AuditDir, "audit.jsonl")
}

// RunStorePath returns the SQLite run history database path.
func (c *Config) RunStorePath() string {
	return filepath.Join(c.Paths.StateDir, "runs.db")
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
