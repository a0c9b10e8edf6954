// Package config loads, validates, and normalizes the runner configuration.
//
// Configuration lives in a TOML file (default ~/.config/conveyor/config.toml)
// and controls paths, runner behavior, and logging. Pipeline files themselves
// are parsed by internal/pipeline; this package only covers the runner's own
// settings.
package config
