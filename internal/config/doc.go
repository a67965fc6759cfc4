// Package config loads, normalizes, and validates surplus configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours SURPLUS_* environment overrides
// for the operating mode, network switch, and output directories. The Config
// type centralizes every knob the CLI and pipeline need, so artifact and audit
// locations, retry timing, and compliance rules are discovered in one pass.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, a validated operating mode, and clear validation errors.
package config
