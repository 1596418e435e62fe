// Command migrate runs the legacy emails.json backfill once and exits.
// Safe to re-run: a completion marker plus a store emptiness check make the
// job idempotent. Exits non-zero when the source is unreadable or the store
// is unreachable.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/storyforge-cloud/email-capture-service/internal/config"
	"github.com/storyforge-cloud/email-capture-service/internal/migration"
	"github.com/storyforge-cloud/email-capture-service/internal/store"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	pgStore, err := store.NewPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	defer pgStore.Close()

	if err := pgStore.RunMigrations(ctx, "migrations"); err != nil {
		logger.Error("failed to run schema migrations", "error", err)
		os.Exit(1)
	}

	report, err := migration.New(pgStore, cfg.DataDir, logger).Run(ctx)
	if err != nil {
		logger.Error("legacy email migration failed", "error", err)
		os.Exit(1)
	}

	if report == nil {
		logger.Info("nothing to do, migration already completed")
		return
	}
	logger.Info("migration finished",
		"total", report.Total,
		"migrated", report.Migrated,
		"skipped", report.Skipped,
		"failed", report.Failed,
	)
}
