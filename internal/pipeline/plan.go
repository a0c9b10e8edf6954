package pipeline

import (
	"fmt"
	"strings"
)

// Stage names a phase of a job. Stages run in StageOrder; within a stage
// every command must exit zero before the next one runs.
type Stage string

const (
	StageInstall      Stage = "install"
	StageBeforeScript Stage = "before_script"
	StageScript       Stage = "script"
)

// StageOrder is the execution order of job stages.
var StageOrder = []Stage{StageInstall, StageBeforeScript, StageScript}

// Command is one shell command scheduled for a leg. Synthesized commands are
// generated from addons rather than written by the user.
type Command struct {
	Stage       Stage
	Line        string
	Synthesized bool
}

// Leg is one independent job of the expanded matrix.
type Leg struct {
	OS        string
	Python    string
	MatrixEnv []Var
	Env       []Var
	Commands  []Command
}

// Plan is the full expansion of a pipeline file into matrix legs.
type Plan struct {
	Legs []Leg
}

// Name identifies a leg by its matrix coordinates, e.g.
// "linux python=3.6 OPENMP=0".
func (l Leg) Name() string {
	parts := []string{l.OS}
	if l.Python != "" {
		parts = append(parts, "python="+l.Python)
	}
	for _, v := range l.MatrixEnv {
		parts = append(parts, v.String())
	}
	return strings.Join(parts, " ")
}

// StageCommands returns the leg's commands for one stage, in order.
func (l Leg) StageCommands(stage Stage) []Command {
	var out []Command
	for _, cmd := range l.Commands {
		if cmd.Stage == stage {
			out = append(out, cmd)
		}
	}
	return out
}

// Plan expands the os/python/env matrix. Dimensions without values contribute
// a single empty slot, so every pipeline yields at least one leg.
func (f *File) Plan() (Plan, error) {
	if err := f.Validate(); err != nil {
		return Plan{}, err
	}

	global, err := parseEntries(f.Env.Global)
	if err != nil {
		return Plan{}, err
	}

	pythons := f.Python
	if len(pythons) == 0 {
		pythons = StringList{""}
	}
	matrixEntries := f.Env.Matrix
	if len(matrixEntries) == 0 {
		matrixEntries = StringList{""}
	}

	var legs []Leg
	for _, osName := range f.OS {
		for _, python := range pythons {
			for _, entry := range matrixEntries {
				var matrixVars []Var
				if entry != "" {
					matrixVars, err = ParseVars(entry)
					if err != nil {
						return Plan{}, err
					}
				}
				leg := Leg{
					OS:        osName,
					Python:    python,
					MatrixEnv: matrixVars,
				}
				leg.Env = MergeVars(f.builtinEnv(leg), global, matrixVars)
				leg.Commands = f.legCommands(leg)
				legs = append(legs, leg)
			}
		}
	}

	return Plan{Legs: legs}, nil
}

func (f *File) builtinEnv(leg Leg) []Var {
	vars := []Var{
		{Key: "CI", Value: "true"},
		{Key: "CONVEYOR", Value: "true"},
		{Key: "CONVEYOR_OS_NAME", Value: leg.OS},
	}
	if f.Language != "" {
		vars = append(vars, Var{Key: "CONVEYOR_LANGUAGE", Value: f.Language})
	}
	if leg.Python != "" {
		vars = append(vars, Var{Key: "CONVEYOR_PYTHON_VERSION", Value: leg.Python})
	}
	return vars
}

func (f *File) legCommands(leg Leg) []Command {
	var commands []Command

	// Apt addon packages install ahead of user install commands, linux only.
	if leg.OS == OSLinux && len(f.Addons.Apt.Packages) > 0 {
		prefix := ""
		if bool(f.Sudo) {
			prefix = "sudo "
		}
		commands = append(commands,
			Command{Stage: StageInstall, Line: prefix + "apt-get update -qq", Synthesized: true},
			Command{
				Stage:       StageInstall,
				Line:        fmt.Sprintf("%sapt-get install -y %s", prefix, strings.Join(f.Addons.Apt.Packages, " ")),
				Synthesized: true,
			},
		)
	}
	for _, line := range f.Install {
		commands = append(commands, Command{Stage: StageInstall, Line: line})
	}

	// Known-hosts registration precedes user before_script commands so
	// deployment steps never hit an interactive host-key prompt.
	if len(f.Addons.SSHKnownHosts) > 0 {
		commands = append(commands, Command{Stage: StageBeforeScript, Line: "mkdir -p ~/.ssh", Synthesized: true})
		for _, host := range f.Addons.SSHKnownHosts {
			commands = append(commands, Command{
				Stage:       StageBeforeScript,
				Line:        fmt.Sprintf("ssh-keyscan -H %s >> ~/.ssh/known_hosts", host),
				Synthesized: true,
			})
		}
	}
	for _, line := range f.BeforeScript {
		commands = append(commands, Command{Stage: StageBeforeScript, Line: line})
	}

	for _, line := range f.Script {
		commands = append(commands, Command{Stage: StageScript, Line: line})
	}

	return commands
}

func parseEntries(entries []string) ([]Var, error) {
	var vars []Var
	for _, entry := range entries {
		parsed, err := ParseVars(entry)
		if err != nil {
			return nil, err
		}
		vars = append(vars, parsed...)
	}
	return vars, nil
}
