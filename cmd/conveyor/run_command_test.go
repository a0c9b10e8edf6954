package main

import (
	"strings"
	"testing"
)

const matrixPipelineYAML = `os:
  - linux
  - osx
python:
  - "3.6"
env:
  - OPENMP=0
  - OPENMP=1
install:
  - pip install -e .
script:
  - py.test tests/
`

func TestValidateCommandShowsMatrix(t *testing.T) {
	path := writePipelineFile(t, matrixPipelineYAML)

	out, _, err := runCLI(t, []string{"validate", path}, "", "")
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	requireContains(t, out, "Pipeline valid")
	requireContains(t, out, "linux python=3.6 OPENMP=0")
	requireContains(t, out, "osx python=3.6 OPENMP=1")
}

func TestValidateCommandRejectsUnknownKey(t *testing.T) {
	path := writePipelineFile(t, "scrpit:\n  - true\n")

	if _, _, err := runCLI(t, []string{"validate", path}, "", ""); err == nil {
		t.Fatal("expected validation to fail for unknown key")
	}
}

func TestRunCommandExecutesPipeline(t *testing.T) {
	env := setupCLITestEnv(t)
	path := writePipelineFile(t, "script:\n  - echo hello from conveyor\n")

	out, _, err := runCLI(t, []string{"run", path}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	requireContains(t, out, "Build passed")
}

func TestRunCommandReportsScriptFailure(t *testing.T) {
	env := setupCLITestEnv(t)
	path := writePipelineFile(t, "script:\n  - echo before the failure\n  - exit 3\n")

	out, _, err := runCLI(t, []string{"run", path}, env.socketPath, env.configPath)
	if err == nil {
		t.Fatal("expected run to fail")
	}
	if !strings.Contains(err.Error(), "failed") {
		t.Fatalf("unexpected error: %v", err)
	}
	requireContains(t, out, "failed at stage Script")
	requireContains(t, out, "echo before the failure")
}
