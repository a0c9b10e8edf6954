// Package deps reports availability of the external binaries job commands
// rely on. The daemon surfaces these checks through status output so a
// missing shell or addon helper is visible before builds start erroring.
package deps

import (
	"fmt"
	"os/exec"
	"strings"
)

// Requirement defines an external binary the runner relies on.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status reports the availability of a dependency.
type Status struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	Available   bool
	Detail      string
}

// Default returns the requirements for the configured job shell plus the
// helpers that addon synthesis can invoke.
func Default(shell string) []Requirement {
	return []Requirement{
		{Name: "Shell", Command: shell, Description: "shell used to run job commands"},
		{Name: "Git", Command: "git", Description: "repository checkouts in job scripts", Optional: true},
		{Name: "ssh-keyscan", Command: "ssh-keyscan", Description: "ssh_known_hosts addon support", Optional: true},
		{Name: "apt-get", Command: "apt-get", Description: "apt addon package installation", Optional: true},
	}
}

// CheckBinaries evaluates the provided requirements and reports availability.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		cmd := strings.TrimSpace(req.Command)
		status := Status{
			Name:        req.Name,
			Command:     cmd,
			Description: strings.TrimSpace(req.Description),
			Optional:    req.Optional,
		}
		if cmd == "" {
			status.Detail = "command not configured"
			results = append(results, status)
			continue
		}
		if _, err := exec.LookPath(cmd); err != nil {
			status.Detail = fmt.Sprintf("binary %q not found", cmd)
			results = append(results, status)
			continue
		}
		status.Available = true
		results = append(results, status)
	}
	return results
}
