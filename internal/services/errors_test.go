package services_test

import (
	"errors"
	"testing"

	"conveyor/internal/queue"
	"conveyor/internal/services"
)

func TestWrapTagsMarkerAndDetail(t *testing.T) {
	underlying := errors.New("exit status 1")
	err := services.Wrap(services.ErrCommand, "script", "py.test tests/", "", underlying)

	if !errors.Is(err, services.ErrCommand) {
		t.Fatal("wrapped error lost its marker")
	}
	if !errors.Is(err, underlying) {
		t.Fatal("wrapped error lost its cause")
	}
}

func TestWrapDefaultsToTransient(t *testing.T) {
	err := services.Wrap(nil, "", "", "", nil)
	if !errors.Is(err, services.ErrTransient) {
		t.Fatal("nil marker should default to transient")
	}
}

func TestFailureStatusClassification(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want queue.JobStatus
	}{
		{"install failure errors the job", services.Wrap(services.ErrEnvironment, "install", "pip install", "", errors.New("exit 1")), queue.JobErrored},
		{"script failure fails the job", services.Wrap(services.ErrCommand, "script", "py.test", "", errors.New("exit 2")), queue.JobFailed},
		{"timeout errors the job", services.Wrap(services.ErrTimeout, "script", "py.test", "deadline exceeded", nil), queue.JobErrored},
		{"unknown errors the job", errors.New("boom"), queue.JobErrored},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := services.FailureStatus(tc.err); got != tc.want {
				t.Fatalf("got %q want %q", got, tc.want)
			}
		})
	}
}
