package config

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"surplus/internal/compliance"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateRun(); err != nil {
		return err
	}
	if err := c.validatePipeline(); err != nil {
		return err
	}
	if err := c.validateFetch(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	if err := c.validateCompliance(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateRun() error {
	if _, err := compliance.ParseMode(c.Run.Mode); err != nil {
		return fmt.Errorf("run.mode: %w", err)
	}
	switch c.Run.Network {
	case NetworkOn, NetworkOff:
	default:
		return fmt.Errorf("run.network must be ON or OFF, got %q", c.Run.Network)
	}
	return nil
}

func (c *Config) validatePipeline() error {
	if c.Pipeline.RetryDelayMS < 0 {
		return errors.New("pipeline.retry_delay_ms must be >= 0")
	}
	return nil
}

func (c *Config) validateFetch() error {
	if c.Fetch.BaseURL != "" {
		if err := validateHTTPURL(c.Fetch.BaseURL); err != nil {
			return fmt.Errorf("fetch.base_url: %w", err)
		}
	}
	if c.NetworkEnabled() && c.Fetch.BaseURL == "" {
		return errors.New("fetch.base_url must be set when run.network is ON")
	}
	return ensurePositiveMap(map[string]int{
		"fetch.request_timeout": c.Fetch.RequestTimeout,
	})
}

func (c *Config) validateNotifications() error {
	if c.Notifications.WebhookURL != "" {
		if err := validateHTTPURL(c.Notifications.WebhookURL); err != nil {
			return fmt.Errorf("notifications.webhook_url: %w", err)
		}
	}
	return ensurePositiveMap(map[string]int{
		"notifications.request_timeout": c.Notifications.RequestTimeout,
	})
}

func (c *Config) validateCompliance() error {
	for field, pattern := range c.Compliance.FieldFormats {
		if strings.TrimSpace(field) == "" {
			return errors.New("compliance.field_formats contains an empty field name")
		}
		if _, err := regexp.Compile(pattern); err != nil {
			return fmt.Errorf("compliance.field_formats.%s: %w", field, err)
		}
	}
	return nil
}

func validateHTTPURL(raw string) error {
	parsed, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("unsupported scheme %q", parsed.Scheme)
	}
	if parsed.Host == "" {
		return errors.New("missing host")
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
