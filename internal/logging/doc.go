// Package logging wires log/slog with the console and JSON handlers used by
// the daemon and CLI, plus context-derived field helpers and log retention.
package logging
