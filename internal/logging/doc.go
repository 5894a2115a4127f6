// Package logging assembles structured slog loggers and formatting helpers used
// across purpleify.
//
// It owns the configurable console/JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so decode and correlation code
// can tag log lines with the request correlation ID. The package also provides
// a no-op logger for tests and wiring code that cannot fail.
package logging
