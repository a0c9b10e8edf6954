package main

import (
	"context"
	"log/slog"
	"path/filepath"

	"conveyor/internal/config"
	"conveyor/internal/logging"
	"conveyor/internal/queue"
)

func retentionTargets(cfg *config.Config) []logging.RetentionTarget {
	if cfg == nil {
		return nil
	}
	return []logging.RetentionTarget{
		{Dir: filepath.Join(cfg.Paths.LogDir, "jobs"), Pattern: "*.log"},
	}
}

// recoverInFlight marks work left running by an earlier daemon process as
// errored so it does not appear active forever.
func recoverInFlight(ctx context.Context, store *queue.Store, logger *slog.Logger) error {
	updated, err := store.ResetInFlight(ctx)
	if err != nil {
		return err
	}
	if updated > 0 {
		logger.Warn("reset in-flight work from previous run",
			logging.Int64("updated_count", updated),
			logging.String(logging.FieldEventType, "queue_reset_in_flight"),
		)
	}
	return nil
}
