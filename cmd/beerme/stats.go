package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/aluiziolira/beerme/analysis"
	"github.com/aluiziolira/beerme/config"
	"github.com/aluiziolira/beerme/store"
	"github.com/spf13/cobra"
)

func newStatsCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Summarise gravity and ABV across the stored collection",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, args []string) error {
			return runStats(c.Context(), cfg)
		},
	}
}

func runStats(ctx context.Context, cfg *config.Config) error {
	db := store.NewDB(cfg.DBPath)
	if err := db.Open(); err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			slog.Error("close store", slog.Any("error", err))
		}
	}()

	collection, err := db.LoadCollection(ctx)
	if err != nil {
		return fmt.Errorf("load collection: %w", err)
	}

	analysis.Summarize(collection).Render(os.Stdout)
	return nil
}
