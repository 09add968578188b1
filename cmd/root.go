package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/dhcgn/mail-graph/config"
	"github.com/dhcgn/mail-graph/corpus"
	"github.com/dhcgn/mail-graph/filter"
	"github.com/dhcgn/mail-graph/graph"
	"github.com/dhcgn/mail-graph/progress"
	"github.com/dhcgn/mail-graph/runner"
	"github.com/dhcgn/mail-graph/stats"
)

// NewRootCommand returns the mail-graph command with all flags and sub
// commands registered.
func NewRootCommand() (*cobra.Command, error) {
	rootCmd := &cobra.Command{
		Use:          "mail-graph",
		Short:        "Build a sender/recipient graph in DOT format from a mail corpus",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(cmd)
			if err != nil {
				return err
			}

			logger, cleanup, err := setupLogger(cfg)
			if err != nil {
				return err
			}
			defer func() {
				_ = cleanup()
			}()

			slog.SetDefault(logger)
			logger.Info("starting mail-graph", "source", cfg.Source(), "output", cfg.OutputPath)

			return run(cmd.Context(), cfg, logger, cmd.OutOrStdout())
		},
	}

	if err := config.RegisterFlags(rootCmd); err != nil {
		return nil, err
	}
	rootCmd.AddCommand(newStatsCommand())

	return rootCmd, nil
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger, stdout io.Writer) error {
	result, err := buildGraph(ctx, cfg, logger)
	if err != nil {
		return err
	}

	if cfg.List {
		if err := graph.WriteListing(stdout, result.store); err != nil {
			return fmt.Errorf("print listing: %w", err)
		}
	}

	if err := graph.WriteFile(cfg.OutputPath, result.store); err != nil {
		logger.Error("error saving graph", "path", cfg.OutputPath, "err", err)
		return fmt.Errorf("save graph: %w", err)
	}
	logger.Info("graph saved", "path", cfg.OutputPath)

	return nil
}

type scanResult struct {
	store   *graph.Store
	summary stats.Summary
	filter  *filter.Filter
}

// buildGraph scans the configured corpus into a fresh store and logs the
// scan summary.
func buildGraph(ctx context.Context, cfg config.Config, logger *slog.Logger) (*scanResult, error) {
	f, err := filter.New(filter.Options{
		IncludeHeader: cfg.IncludeHeader,
		IncludeBody:   cfg.IncludeBody,
		ExcludeHeader: cfg.ExcludeHeader,
		ExcludeBody:   cfg.ExcludeBody,
	})
	if err != nil {
		return nil, fmt.Errorf("filter.New: %w", err)
	}

	src, err := corpus.Open(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("corpus.Open: %w", err)
	}

	store := graph.NewStore()
	r, err := runner.New(store, f, logger)
	if err != nil {
		return nil, fmt.Errorf("runner.New: %w", err)
	}

	bar := newProgress(ctx, cfg, src, logger)
	if bar != nil {
		r.Observe(bar.Update)
	}

	started := time.Now()
	err = r.Run(ctx, src)
	if bar != nil {
		bar.Stop(store.NodeCount(), store.EdgeCount(), err)
	}
	if err != nil {
		logger.Error("scan aborted", "err", err)
		return nil, fmt.Errorf("scan corpus: %w", err)
	}

	summary := r.Summary()
	attrs := append([]any{"identities", store.NodeCount()}, summary.LogAttrs()...)
	attrs = append(attrs, "duration", time.Since(started))
	logger.Info("scan summary", attrs...)

	return &scanResult{store: store, summary: summary, filter: f}, nil
}

func newProgress(ctx context.Context, cfg config.Config, src corpus.Source, logger *slog.Logger) *progress.Bar {
	if !cfg.Progress {
		return nil
	}
	counter, ok := src.(corpus.Counter)
	if !ok {
		logger.Debug("progress bar unavailable for source", "source", cfg.Source())
		return nil
	}
	total, err := counter.Count(ctx)
	if err != nil {
		logger.Warn("could not count corpus documents", "err", err)
		return nil
	}
	return progress.New(total, cfg.LogLevel, nil)
}

func setupLogger(cfg config.Config) (*slog.Logger, func() error, error) {
	level := new(slog.LevelVar)
	level.Set(slog.LevelInfo)

	switch cfg.LogLevel {
	case "debug":
		level.Set(slog.LevelDebug)
	case "info":
		level.Set(slog.LevelInfo)
	case "warn":
		level.Set(slog.LevelWarn)
	case "error":
		level.Set(slog.LevelError)
	}

	opts := &slog.HandlerOptions{Level: level}
	cleanup := func() error { return nil }

	if cfg.LogDir != "" {
		if err := os.MkdirAll(cfg.LogDir, 0o755); err != nil {
			return nil, cleanup, err
		}

		logFilePath := filepath.Join(cfg.LogDir, fmt.Sprintf("mail-graph-%s.log", time.Now().Format("20060102T150405")))
		file, err := os.OpenFile(logFilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, cleanup, err
		}

		handler := slog.NewTextHandler(io.MultiWriter(os.Stdout, file), opts)
		cleanup = func() error {
			return file.Close()
		}
		return slog.New(handler), cleanup, nil
	}

	handler := slog.NewTextHandler(os.Stdout, opts)
	return slog.New(handler), cleanup, nil
}
