package testsupport

import (
	"context"
	"testing"

	"conveyor/internal/config"
	"conveyor/internal/queue"
)

// MustOpenStore opens a queue.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *queue.Store {
	t.Helper()

	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("queue.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewBuild submits a build for tests using the provided store.
func NewBuild(t testing.TB, store *queue.Store, pipelineYAML string) *queue.Build {
	t.Helper()

	build, err := store.NewBuild(context.Background(), "", pipelineYAML)
	if err != nil {
		t.Fatalf("store.NewBuild: %v", err)
	}
	return build
}
