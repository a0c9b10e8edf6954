// Package executor runs a single matrix job: the ordered install,
// before_script, and script stages of one leg, each command through the
// configured shell with the leg's merged environment. Commands are strictly
// sequential and fail-fast; setup-stage failures error the job while
// script-stage failures fail it.
package executor
