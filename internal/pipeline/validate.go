package pipeline

import (
	"errors"
	"fmt"
	"strings"
)

// Validate checks a parsed pipeline file for schema-level problems the
// planner cannot recover from.
func (f *File) Validate() error {
	if len(f.Script) == 0 {
		return errors.New("pipeline: script stage must contain at least one command")
	}
	if err := validateCommands("script", f.Script); err != nil {
		return err
	}
	if err := validateCommands("install", f.Install); err != nil {
		return err
	}
	if err := validateCommands("before_script", f.BeforeScript); err != nil {
		return err
	}

	seen := make(map[string]struct{}, len(f.OS))
	for _, osName := range f.OS {
		switch osName {
		case OSLinux, OSMacOS:
		default:
			return fmt.Errorf("pipeline: unknown os %q (expected %s or %s)", osName, OSLinux, OSMacOS)
		}
		if _, dup := seen[osName]; dup {
			return fmt.Errorf("pipeline: duplicate os entry %q", osName)
		}
		seen[osName] = struct{}{}
	}

	for _, version := range f.Python {
		if strings.TrimSpace(version) == "" {
			return errors.New("pipeline: python version entries must not be empty")
		}
	}

	for _, entry := range append(append([]string{}, f.Env.Global...), f.Env.Matrix...) {
		if _, err := ParseVars(entry); err != nil {
			return fmt.Errorf("pipeline: %w", err)
		}
	}

	for _, host := range f.Addons.SSHKnownHosts {
		if strings.TrimSpace(host) == "" {
			return errors.New("pipeline: addons.ssh_known_hosts entries must not be empty")
		}
	}
	for _, pkg := range f.Addons.Apt.Packages {
		if strings.TrimSpace(pkg) == "" {
			return errors.New("pipeline: addons.apt.packages entries must not be empty")
		}
	}

	return nil
}

func validateCommands(stage string, commands StringList) error {
	for _, command := range commands {
		if strings.TrimSpace(command) == "" {
			return fmt.Errorf("pipeline: %s stage contains an empty command", stage)
		}
	}
	return nil
}
