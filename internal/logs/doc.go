// Package logs provides file tailing helpers shared by the CLI and the
// daemon diagnostics surface.
//
// It reads log files with bounded memory usage, supports negative offsets
// for "tail last N lines" requests, and powers follow-mode updates for
// `conveyor logs --follow`. Callers supply context deadlines so follow
// polling shuts down cleanly when the CLI exits.
package logs
