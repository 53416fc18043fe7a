package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/nerrad567/gray-logic-wiz/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-wiz/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-wiz/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-wiz/migrations"
)

// migrationStatus is the JSON printed by `wizctl migrate status`.
type migrationStatus struct {
	Success bool           `json:"success"`
	Applied []appliedEntry `json:"applied"`
	Pending []string       `json:"pending"`
	Action  string         `json:"action,omitempty"`
	Path    string         `json:"path"`
}

type appliedEntry struct {
	Version   string    `json:"version"`
	AppliedAt time.Time `json:"applied_at"`
}

// migrate manages the bulb log schema: up (default), down (roll back the
// newest migration) or status. Works whether or not database.enabled is set,
// so the schema can be prepared before the bulb log is switched on.
func migrate(ctx context.Context, cfg *config.Config, log *logging.Logger, args []string, stdout io.Writer) error {
	action := "up"
	if len(args) > 0 {
		action = args[0]
	}
	if action != "up" && action != "down" && action != "status" {
		return fmt.Errorf("%w: unknown migrate action %q (want up, down or status)", errUsage, action)
	}

	db, err := database.Open(ctx, database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()

	switch action {
	case "up":
		err = db.Migrate(ctx, migrations.FS)
	case "down":
		err = db.MigrateDown(ctx, migrations.FS)
	}
	if err != nil {
		return fmt.Errorf("migrate %s: %w", action, err)
	}
	log.Info("migrations checked", "action", action, "path", db.Path())

	applied, pending, err := db.MigrationStatus(ctx, migrations.FS)
	if err != nil {
		return fmt.Errorf("reading migration status: %w", err)
	}

	status := migrationStatus{
		Success: true,
		Applied: make([]appliedEntry, 0, len(applied)),
		Pending: make([]string, 0, len(pending)),
		Path:    db.Path(),
	}
	if action != "status" {
		status.Action = action
	}
	for _, m := range applied {
		status.Applied = append(status.Applied, appliedEntry{Version: m.Version, AppliedAt: m.AppliedAt})
	}
	for _, m := range pending {
		status.Pending = append(status.Pending, m.Version+"_"+m.Name)
	}
	return printJSON(stdout, status)
}
