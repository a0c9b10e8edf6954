package executor_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"

	"conveyor/internal/executor"
	"conveyor/internal/logging"
	"conveyor/internal/pipeline"
	"conveyor/internal/queue"
	"conveyor/internal/services"
	"conveyor/internal/testsupport"
)

type fakeExecutor struct {
	mu       sync.Mutex
	specs    []executor.CommandSpec
	failOn   string
	failWith error
	output   []string
	onRun    func(spec executor.CommandSpec)
}

func (f *fakeExecutor) Run(ctx context.Context, spec executor.CommandSpec, onLine func(string)) error {
	f.mu.Lock()
	f.specs = append(f.specs, spec)
	f.mu.Unlock()

	if f.onRun != nil {
		f.onRun(spec)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	for _, line := range f.output {
		onLine(line)
	}
	if f.failOn != "" && spec.Line == f.failOn {
		if f.failWith != nil {
			return f.failWith
		}
		return errors.New("exit status 1")
	}
	return nil
}

func (f *fakeExecutor) commands() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	lines := make([]string, 0, len(f.specs))
	for _, spec := range f.specs {
		lines = append(lines, spec.Line)
	}
	return lines
}

type fixture struct {
	runner *executor.Runner
	store  *queue.Store
	build  *queue.Build
	job    *queue.Job
	leg    pipeline.Leg
	fake   *fakeExecutor
}

func newFixture(t *testing.T, yaml string, opts ...testsupport.ConfigOption) *fixture {
	t.Helper()

	cfg := testsupport.NewConfig(t, opts...)
	store := testsupport.MustOpenStore(t, cfg)

	file, err := pipeline.Parse([]byte(yaml))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	plan, err := file.Plan()
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	leg := plan.Legs[0]

	build := testsupport.NewBuild(t, store, yaml)
	job := &queue.Job{
		ID:      uuid.NewString(),
		BuildID: build.ID,
		Number:  1,
		Name:    leg.Name(),
		OS:      leg.OS,
	}
	if err := store.InsertJob(context.Background(), job); err != nil {
		t.Fatalf("InsertJob: %v", err)
	}

	fake := &fakeExecutor{}
	runner, err := executor.New(cfg, store, logging.NewNop(), executor.WithExecutor(fake))
	if err != nil {
		t.Fatalf("executor.New: %v", err)
	}

	return &fixture{runner: runner, store: store, build: build, job: job, leg: leg, fake: fake}
}

func (f *fixture) reload(t *testing.T) *queue.Job {
	t.Helper()
	job, err := f.store.GetJob(context.Background(), f.job.ID)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	return job
}

const passingPipeline = `
install:
  - pip install -r requirements.txt
before_script:
  - echo ready
script:
  - py.test tests/
  - sh docs/deploy.sh
`

func TestRunJobPassesAndPersistsLifecycle(t *testing.T) {
	fx := newFixture(t, passingPipeline)
	fx.fake.output = []string{"collected 42 items", "all passed"}

	if err := fx.runner.RunJob(context.Background(), fx.build, fx.job, fx.leg); err != nil {
		t.Fatalf("RunJob: %v", err)
	}

	job := fx.reload(t)
	if job.Status != queue.JobPassed {
		t.Fatalf("unexpected status: %q", job.Status)
	}
	if job.StartedAt == nil || job.FinishedAt == nil {
		t.Fatal("expected start and finish timestamps")
	}
	if job.Stage != string(pipeline.StageScript) {
		t.Fatalf("expected final stage script, got %q", job.Stage)
	}

	want := []string{
		"pip install -r requirements.txt",
		"echo ready",
		"py.test tests/",
		"sh docs/deploy.sh",
	}
	got := fx.fake.commands()
	if len(got) != len(want) {
		t.Fatalf("command count: got %v want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("command %d: got %q want %q", i, got[i], want[i])
		}
	}
}

func TestRunJobWritesCommandLog(t *testing.T) {
	fx := newFixture(t, passingPipeline)
	fx.fake.output = []string{"collected 42 items"}

	if err := fx.runner.RunJob(context.Background(), fx.build, fx.job, fx.leg); err != nil {
		t.Fatalf("RunJob: %v", err)
	}

	job := fx.reload(t)
	if job.LogPath == "" {
		t.Fatal("expected job log path")
	}
	data, err := os.ReadFile(job.LogPath)
	if err != nil {
		t.Fatalf("read job log: %v", err)
	}
	log := string(data)
	if !strings.Contains(log, "$ py.test tests/") {
		t.Fatalf("log missing command echo:\n%s", log)
	}
	if !strings.Contains(log, "collected 42 items") {
		t.Fatalf("log missing command output:\n%s", log)
	}
}

func TestRunJobInstallFailureErrorsJobAndStops(t *testing.T) {
	fx := newFixture(t, passingPipeline)
	fx.fake.failOn = "pip install -r requirements.txt"

	err := fx.runner.RunJob(context.Background(), fx.build, fx.job, fx.leg)
	if !errors.Is(err, services.ErrEnvironment) {
		t.Fatalf("expected environment error, got %v", err)
	}

	job := fx.reload(t)
	if job.Status != queue.JobErrored {
		t.Fatalf("unexpected status: %q", job.Status)
	}
	if job.FailedCommand != "pip install -r requirements.txt" {
		t.Fatalf("unexpected failed command: %q", job.FailedCommand)
	}
	if got := fx.fake.commands(); len(got) != 1 {
		t.Fatalf("remaining commands should not run, got %v", got)
	}
}

func TestRunJobScriptFailureFailsJob(t *testing.T) {
	fx := newFixture(t, passingPipeline)
	fx.fake.failOn = "py.test tests/"

	err := fx.runner.RunJob(context.Background(), fx.build, fx.job, fx.leg)
	if !errors.Is(err, services.ErrCommand) {
		t.Fatalf("expected command error, got %v", err)
	}

	job := fx.reload(t)
	if job.Status != queue.JobFailed {
		t.Fatalf("unexpected status: %q", job.Status)
	}
	if job.Stage != string(pipeline.StageScript) {
		t.Fatalf("unexpected stage: %q", job.Stage)
	}
	// The deploy command after the failing test run must not execute.
	for _, line := range fx.fake.commands() {
		if strings.Contains(line, "deploy.sh") {
			t.Fatalf("deploy ran after script failure: %v", fx.fake.commands())
		}
	}
}

func TestRunJobExportsMergedEnvironment(t *testing.T) {
	fx := newFixture(t, `
os:
  - osx
env:
  - OPENMP=1 ARCH=clang
script:
  - true
`)

	if err := fx.runner.RunJob(context.Background(), fx.build, fx.job, fx.leg); err != nil {
		t.Fatalf("RunJob: %v", err)
	}

	spec := fx.fake.specs[0]
	envSet := make(map[string]string, len(spec.Env))
	for _, entry := range spec.Env {
		if idx := strings.IndexByte(entry, '='); idx > 0 {
			envSet[entry[:idx]] = entry[idx+1:]
		}
	}

	for key, want := range map[string]string{
		"CI":                    "true",
		"CONVEYOR_OS_NAME":      "osx",
		"OPENMP":                "1",
		"ARCH":                  "clang",
		"CONVEYOR_BUILD_NUMBER": fmt.Sprintf("%d", fx.build.ID),
		"CONVEYOR_JOB_NUMBER":   fmt.Sprintf("%d.1", fx.build.ID),
	} {
		if got := envSet[key]; got != want {
			t.Fatalf("env %s: got %q want %q", key, got, want)
		}
	}
	if envSet["CONVEYOR_BUILD_DIR"] == "" {
		t.Fatal("expected CONVEYOR_BUILD_DIR to be set")
	}
	if spec.Dir != envSet["CONVEYOR_BUILD_DIR"] {
		t.Fatalf("working dir %q does not match build dir %q", spec.Dir, envSet["CONVEYOR_BUILD_DIR"])
	}
}

func TestRunJobCancellationMarksCanceled(t *testing.T) {
	fx := newFixture(t, passingPipeline)

	ctx, cancel := context.WithCancel(context.Background())
	fx.fake.onRun = func(executor.CommandSpec) { cancel() }

	err := fx.runner.RunJob(ctx, fx.build, fx.job, fx.leg)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected canceled, got %v", err)
	}

	job := fx.reload(t)
	if job.Status != queue.JobCanceled {
		t.Fatalf("unexpected status: %q", job.Status)
	}
	if job.ErrorMessage != queue.DaemonStopReason {
		t.Fatalf("unexpected error message: %q", job.ErrorMessage)
	}
}

func TestRunJobTimeoutErrorsJob(t *testing.T) {
	fx := newFixture(t, passingPipeline, testsupport.WithCommandTimeout(1))
	fx.fake.failOn = "pip install -r requirements.txt"
	fx.fake.failWith = fmt.Errorf("%w: command exceeded 1s", services.ErrTimeout)

	err := fx.runner.RunJob(context.Background(), fx.build, fx.job, fx.leg)
	if !errors.Is(err, services.ErrTimeout) {
		t.Fatalf("expected timeout error, got %v", err)
	}
	if job := fx.reload(t); job.Status != queue.JobErrored {
		t.Fatalf("unexpected status: %q", job.Status)
	}
}
