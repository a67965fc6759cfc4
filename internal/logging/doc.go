// Package logging assembles structured slog loggers and formatting helpers used
// across surplus packages.
//
// It owns the configurable console/JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so orchestrator and stage code
// automatically tag log lines with run IDs, pipeline names, stages, and attempt
// numbers. The package also provides a no-op logger for tests and wiring code
// that cannot fail.
//
// Prefer these constructors over hand-rolled slog setup to ensure new
// components emit data with the same shape and routing guarantees as the rest
// of the system.
package logging
