package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aluiziolira/beerme/config"
	"github.com/aluiziolira/beerme/pipeline"
	"github.com/aluiziolira/beerme/scraper"
	"github.com/spf13/cobra"
)

func newURLsCmd(cfg *config.Config) *cobra.Command {
	var start, pages int

	cmd := &cobra.Command{
		Use:   "urls",
		Short: "Walk the recipe listing and append recipe URLs to the URL ledger",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, args []string) error {
			return runURLs(c.Context(), cfg, start, pages)
		},
	}

	cmd.Flags().IntVar(&start, "start", 1, "First listing page to read")
	cmd.Flags().IntVar(&pages, "pages", 0, "Number of listing pages to read, start through start+pages-1 inclusive (0 = all)")
	cmd.Flags().BoolVar(&cfg.SortByRating, "by-rating", cfg.SortByRating, "Walk the listing sorted by rating")

	return cmd
}

func runURLs(ctx context.Context, cfg *config.Config, start, pages int) error {
	metrics := scraper.NewMetrics()
	fetcher, err := scraper.NewFetcher(cfg, metrics)
	if err != nil {
		return fmt.Errorf("initialising fetcher: %w", err)
	}

	writer, err := pipeline.NewLedgerWriter(cfg.URLLedgerPath)
	if err != nil {
		return fmt.Errorf("open url ledger: %w", err)
	}

	shutdown := startMetricsServer(cfg, metrics)
	defer shutdown()

	walker := scraper.NewWalker(fetcher, cfg)
	walker.Start = start
	walker.Pages = pages

	slog.Info("walking recipe listing",
		slog.String("base_url", cfg.BaseURL),
		slog.Int("start", start),
		slog.Int("pages", pages),
	)

	count, walkErr := pipeline.RecordURLs(ctx, walker.URLs(ctx), writer)
	closeErr := writer.Close()

	slog.Info("url ledger updated",
		slog.Int("recorded", count),
		slog.String("ledger", cfg.URLLedgerPath),
	)

	if interrupted(ctx, walkErr) {
		slog.Warn("listing walk interrupted", slog.Any("error", walkErr))
		walkErr = nil
	}
	if closeErr != nil {
		closeErr = fmt.Errorf("close url ledger: %w", closeErr)
	}
	return errors.Join(walkErr, closeErr)
}
