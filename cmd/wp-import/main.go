// Command wp-import pulls courses, topics, quizzes, questions and answers out
// of a WordPress / Tutor LMS installation into the destination database.
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
	"github.com/p-n-ai/pai-quiz-import/internal/platform/cache"
	"github.com/p-n-ai/pai-quiz-import/internal/platform/config"
	"github.com/p-n-ai/pai-quiz-import/internal/platform/logging"
	"github.com/p-n-ai/pai-quiz-import/internal/reconcile"
	"github.com/p-n-ai/pai-quiz-import/internal/store"
	"github.com/p-n-ai/pai-quiz-import/internal/wordpress"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	logging.New(cfg.Log)

	if err := cfg.Validate(config.KindWordPress); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	if err := run(ctx, cfg, os.Stdout); err != nil {
		slog.Error("import aborted", "error", err)
		os.Exit(1)
	}
}

// run executes one import. Per-entity failures end up in the report; only
// structural failures are returned.
func run(ctx context.Context, cfg *config.Config, out io.Writer) error {
	dest, err := store.Open(ctx, cfg.Database.URL, cfg.Database.MaxConns, cfg.Database.MinConns)
	if err != nil {
		return fmt.Errorf("open destination: %w", err)
	}
	defer dest.Close()

	var responses *cache.Cache
	if cfg.HasCache() {
		responses, err = cache.New(ctx, cfg.Cache.URL, cfg.Cache.TTL)
		if err != nil {
			slog.Warn("response cache unavailable, continuing without it", "error", err)
			responses = nil
		} else {
			defer responses.Close()
		}
	}

	opts, err := connectorOptions(cfg, responses)
	if err != nil {
		return err
	}
	connector := wordpress.New(cfg.Source.URL, opts...)

	engine := reconcile.New(dest, reconcile.Policy{QuizPlacement: reconcile.Placement(cfg.Import.QuizPlacement)})
	slog.Info("starting import", "source", cfg.Source.URL, "quiz_placement", cfg.Import.QuizPlacement)

	report, runErr := importer.NewWordPress(connector, engine).Run(ctx)
	if err := publish(report, cfg.Import.ReportXLSX, out); err != nil {
		slog.Error("writing report failed", "error", err)
	}
	return runErr
}

func connectorOptions(cfg *config.Config, responses *cache.Cache) ([]wordpress.Option, error) {
	opts := []wordpress.Option{
		wordpress.WithTimeouts(cfg.Source.Timeout, cfg.Source.SlowTimeout),
		wordpress.WithPerPage(cfg.Source.PerPage),
	}
	if cfg.Source.Username != "" {
		opts = append(opts, wordpress.WithBasicAuth(cfg.Source.Username, cfg.Source.AppPassword))
	}
	if cfg.Source.StrategiesFile != "" {
		strategies, err := wordpress.LoadStrategies(cfg.Source.StrategiesFile)
		if err != nil {
			return nil, fmt.Errorf("load strategies: %w", err)
		}
		opts = append(opts, wordpress.WithStrategies(strategies))
	}
	if responses != nil {
		opts = append(opts, wordpress.WithCache(responses))
	}
	return opts, nil
}

func publish(report *importer.Report, xlsxPath string, out io.Writer) error {
	if report == nil {
		return nil
	}
	report.Log()
	if report.HasErrors() {
		slog.Warn("import finished with row errors", "errors", report.Totals().Errors)
	}
	if err := report.Print(out); err != nil {
		return err
	}
	if xlsxPath != "" {
		if err := report.WriteXLSX(xlsxPath); err != nil {
			return err
		}
		slog.Info("report written", "path", xlsxPath)
	}
	return nil
}
