package executor

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/exec"
	"sync"
)

// CommandSpec describes one shell command to execute.
type CommandSpec struct {
	Shell string
	Line  string
	Dir   string
	Env   []string
}

// Executor abstracts command execution for testability.
type Executor interface {
	Run(ctx context.Context, spec CommandSpec, onLine func(string)) error
}

type shellExecutor struct{}

// NewShellExecutor returns the production executor backed by os/exec.
func NewShellExecutor() Executor {
	return shellExecutor{}
}

func (shellExecutor) Run(ctx context.Context, spec CommandSpec, onLine func(string)) error {
	cmd := exec.CommandContext(ctx, spec.Shell, "-c", spec.Line) //nolint:gosec
	cmd.Dir = spec.Dir
	cmd.Env = spec.Env

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start command: %w", err)
	}

	var wg sync.WaitGroup
	var scanErr error
	var once sync.Once

	scan := func(r io.Reader) {
		defer wg.Done()
		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			if onLine != nil {
				onLine(scanner.Text())
			}
		}
		if err := scanner.Err(); err != nil {
			once.Do(func() {
				scanErr = err
			})
		}
	}

	wg.Add(2)
	go scan(stdout)
	go scan(stderr)
	wg.Wait()

	if err := cmd.Wait(); err != nil {
		return err
	}
	if scanErr != nil {
		return fmt.Errorf("read command output: %w", scanErr)
	}
	return nil
}
