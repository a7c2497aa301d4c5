// Package logging assembles structured slog loggers and formatting helpers used
// across the autorip daemon and CLI.
//
// It owns the console and JSON handlers, resolves levels and output paths from
// configuration, and exposes context helpers so dispatch code can tag every
// line with the run identifier and drive it is working on. A no-op logger is
// provided for tests and wiring code that must not fail.
package logging
