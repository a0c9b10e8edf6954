package pipeline_test

import (
	"strings"
	"testing"

	"conveyor/internal/pipeline"
)

const examplePipeline = `
os:
  - linux
  - osx
language: python
python:
  - "3.6"
sudo: false
env:
  global:
    - COMMIT_AUTHOR_EMAIL=ci@example.com
  matrix:
    - OPENMP=0
    - OPENMP=1 ARCH=gcc
addons:
  apt:
    packages:
      - libopenmpi-dev
  ssh_known_hosts:
    - example.com
install:
  - pip install -r requirements.txt
before_script:
  - echo preparing
script:
  - flake8 .
  - py.test tests/
  - python examples/acoustic_example.py
  - sh docs/deploy.sh
`

func TestParseFullPipeline(t *testing.T) {
	file, err := pipeline.Parse([]byte(examplePipeline))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(file.OS) != 2 || file.OS[0] != "linux" || file.OS[1] != "osx" {
		t.Fatalf("unexpected os matrix: %v", file.OS)
	}
	if file.Language != "python" {
		t.Fatalf("unexpected language: %q", file.Language)
	}
	if len(file.Python) != 1 || file.Python[0] != "3.6" {
		t.Fatalf("unexpected python versions: %v", file.Python)
	}
	if file.Sudo {
		t.Fatal("expected sudo false")
	}
	if len(file.Env.Global) != 1 || len(file.Env.Matrix) != 2 {
		t.Fatalf("unexpected env block: %+v", file.Env)
	}
	if len(file.Script) != 4 {
		t.Fatalf("unexpected script commands: %v", file.Script)
	}
	if !strings.HasSuffix(file.Script[len(file.Script)-1], "deploy.sh") {
		t.Fatalf("expected deploy script last, got %q", file.Script[len(file.Script)-1])
	}
}

func TestParseScalarsPromoteToLists(t *testing.T) {
	file, err := pipeline.Parse([]byte("script: make test\nenv: FOO=1\n"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(file.Script) != 1 || file.Script[0] != "make test" {
		t.Fatalf("scalar script not promoted: %v", file.Script)
	}
	if len(file.Env.Matrix) != 1 || file.Env.Matrix[0] != "FOO=1" {
		t.Fatalf("scalar env not promoted: %+v", file.Env)
	}
}

func TestParseDefaultsOSToLinux(t *testing.T) {
	file, err := pipeline.Parse([]byte("script:\n  - true\n"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(file.OS) != 1 || file.OS[0] != pipeline.OSLinux {
		t.Fatalf("expected default linux os, got %v", file.OS)
	}
}

func TestParseSudoRequiredString(t *testing.T) {
	file, err := pipeline.Parse([]byte("sudo: required\nscript:\n  - true\n"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !file.Sudo {
		t.Fatal("expected sudo true for \"required\"")
	}
}

func TestParseRejectsUnknownKeys(t *testing.T) {
	_, err := pipeline.Parse([]byte("script:\n  - true\nscirpt:\n  - oops\n"))
	if err == nil {
		t.Fatal("expected error for unknown top-level key")
	}
}

func TestValidateErrors(t *testing.T) {
	cases := []struct {
		name    string
		yaml    string
		wantSub string
	}{
		{"missing script", "os:\n  - linux\n", "script stage"},
		{"unknown os", "os:\n  - windows\nscript:\n  - true\n", "unknown os"},
		{"duplicate os", "os:\n  - linux\n  - linux\nscript:\n  - true\n", "duplicate os"},
		{"bad env entry", "env:\n  - NOT_AN_ASSIGNMENT\nscript:\n  - true\n", "KEY=value"},
		{"empty command", "script:\n  - \"  \"\n", "empty command"},
		{"bad sudo", "sudo: maybe\nscript:\n  - true\n", "sudo"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := pipeline.Parse([]byte(tc.yaml))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tc.wantSub) {
				t.Fatalf("error %q missing %q", err, tc.wantSub)
			}
		})
	}
}
