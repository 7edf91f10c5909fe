// Command sqlite-migrate copies a legacy SQLite database into the
// destination database. The legacy file is opened read-only.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/p-n-ai/pai-quiz-import/internal/importer"
	"github.com/p-n-ai/pai-quiz-import/internal/legacy"
	"github.com/p-n-ai/pai-quiz-import/internal/platform/config"
	"github.com/p-n-ai/pai-quiz-import/internal/platform/logging"
	"github.com/p-n-ai/pai-quiz-import/internal/reconcile"
	"github.com/p-n-ai/pai-quiz-import/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	logging.New(cfg.Log)

	if err := cfg.Validate(config.KindLegacy); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	if err := run(ctx, cfg, os.Stdout); err != nil {
		slog.Error("migration aborted", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, out io.Writer) error {
	reader, err := legacy.Open(ctx, cfg.Legacy.SQLitePath)
	if err != nil {
		return err
	}
	defer reader.Close()

	dest, err := store.Open(ctx, cfg.Database.URL, cfg.Database.MaxConns, cfg.Database.MinConns)
	if err != nil {
		return fmt.Errorf("open destination: %w", err)
	}
	defer dest.Close()

	before, err := dest.Counts(ctx)
	if err != nil {
		return fmt.Errorf("count destination rows: %w", err)
	}
	slog.Info("starting migration",
		"legacy", cfg.Legacy.SQLitePath,
		"batch_size", cfg.Migrate.BatchSize,
		"batch_pause", cfg.Migrate.BatchPause.String(),
		"existing_courses", before.Courses,
	)

	engine := reconcile.New(dest, reconcile.Policy{QuizPlacement: reconcile.Placement(cfg.Import.QuizPlacement)})
	pipeline := importer.NewLegacy(reader, engine, importer.WithThrottle(cfg.Migrate.BatchSize, cfg.Migrate.BatchPause))

	report, runErr := pipeline.Run(ctx)
	report.Log()
	if report.HasErrors() {
		slog.Warn("migration finished with row errors", "errors", report.Totals().Errors)
	}
	if err := report.Print(out); err != nil {
		slog.Error("printing report failed", "error", err)
	}
	if cfg.Import.ReportXLSX != "" {
		if err := report.WriteXLSX(cfg.Import.ReportXLSX); err != nil {
			slog.Error("writing report failed", "error", err)
		}
	}
	return runErr
}
