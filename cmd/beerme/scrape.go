package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aluiziolira/beerme/config"
	"github.com/aluiziolira/beerme/models"
	"github.com/aluiziolira/beerme/pipeline"
	"github.com/aluiziolira/beerme/scraper"
	"github.com/aluiziolira/beerme/store"
	"github.com/spf13/cobra"
)

type scrapeOptions struct {
	number        int
	currentLength bool
	example       bool
	fromListing   bool
}

func newScrapeCmd(cfg *config.Config) *cobra.Command {
	opts := &scrapeOptions{}

	cmd := &cobra.Command{
		Use:   "scrape",
		Short: "Scrape new recipes into the collection",
		Long: `Scrape new recipes into the collection.

Recipe URLs come from the URL ledger (see "beerme urls") or, with
--from-listing, straight from the recipe listing. Recipes already stored
or already recorded as failed are skipped without fetching.

Progress logs and the run summary are written to stderr; stdout only
carries the output of -l and --example.`,
		Example: `  # Add up to 100 new recipes from the URL ledger
  beerme scrape

  # Add 500 recipes straight from the listing and export JSON and CSV
  beerme scrape -n 500 --from-listing --export dual

  # Show how many recipes are stored
  beerme scrape -l`,
		Args: cobra.NoArgs,
		RunE: func(c *cobra.Command, args []string) error {
			cfg.ExportFormat = strings.ToLower(cfg.ExportFormat)
			if !c.Flags().Changed("export-path") {
				cfg.ExportPath = defaultExportPath(cfg.ExportPath, cfg.ExportFormat)
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return runScrape(c.Context(), cfg, opts)
		},
	}

	cmd.Flags().IntVarP(&opts.number, "number", "n", 100, "Number of new recipes to add (negative = no limit)")
	cmd.Flags().BoolVarP(&opts.currentLength, "current-length", "l", false, "Print the number of stored recipes and exit")
	cmd.Flags().BoolVar(&opts.example, "example", false, "Print the most recently added recipe and exit")
	cmd.Flags().BoolVar(&opts.fromListing, "from-listing", false, "Read recipe URLs from the listing instead of the URL ledger")
	cmd.Flags().StringVar(&cfg.ExportFormat, "export", cfg.ExportFormat, "Export the collection after the run: json, csv, or dual")
	cmd.Flags().StringVar(&cfg.ExportPath, "export-path", cfg.ExportPath, "Export file path")
	cmd.Flags().IntVar(&cfg.CheckpointEvery, "checkpoint", cfg.CheckpointEvery, "Save the collection every N added recipes")

	return cmd
}

func runScrape(ctx context.Context, cfg *config.Config, opts *scrapeOptions) error {
	db := store.NewDB(cfg.DBPath)
	if err := db.Open(); err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			slog.Error("close store", slog.Any("error", err))
		}
	}()

	if opts.currentLength || opts.example {
		collection, err := db.LoadCollection(ctx)
		if err != nil {
			return fmt.Errorf("load collection: %w", err)
		}
		if opts.currentLength {
			fmt.Println(collection.Len())
		}
		if opts.example {
			return printExample(collection)
		}
		return nil
	}

	metrics := scraper.NewMetrics()
	fetcher, err := scraper.NewFetcher(cfg, metrics)
	if err != nil {
		return fmt.Errorf("initialising fetcher: %w", err)
	}

	var source iter.Seq2[string, error]
	if opts.fromListing {
		source = scraper.NewWalker(fetcher, cfg).URLs(ctx)
	} else {
		source = pipeline.NewLedgerReader(cfg.URLLedgerPath, cfg).URLs(ctx)
	}

	ingester := pipeline.NewIngester(db, fetcher, cfg, metrics)
	if cfg.ExportFormat != "" {
		exporter, err := pipeline.NewExporter(cfg.ExportFormat, cfg.ExportPath)
		if err != nil {
			return fmt.Errorf("creating exporter: %w", err)
		}
		ingester.WithExporter(exporter)
	}

	shutdown := startMetricsServer(cfg, metrics)
	defer shutdown()

	slog.Info("starting scrape",
		slog.String("base_url", cfg.BaseURL),
		slog.Int("target", opts.number),
		slog.Bool("from_listing", opts.fromListing),
	)

	result, err := ingester.Run(ctx, opts.number, source)
	printSummary(result, fetcher.TotalRetries(), cfg)

	if interrupted(ctx, err) {
		slog.Warn("scrape interrupted", slog.Any("error", err))
		return nil
	}
	return err
}

func printExample(collection *models.Collection) error {
	recipe, ok := collection.Last()
	if !ok {
		return errors.New("collection is empty")
	}
	data, err := json.MarshalIndent(recipe, "", "  ")
	if err != nil {
		return fmt.Errorf("encode recipe %s: %w", recipe.ID, err)
	}
	fmt.Println(string(data))
	return nil
}

// defaultExportPath keeps path's directory and stem and picks the extension
// matching format. Dual exports derive both file names from the stem.
func defaultExportPath(path, format string) string {
	base := strings.TrimSuffix(path, filepath.Ext(path))
	switch format {
	case "csv":
		return base + ".csv"
	case "json", "dual":
		return base + ".json"
	default:
		return path
	}
}

func printSummary(result *models.IngestResult, retries int, cfg *config.Config) {
	if result == nil {
		return
	}
	duration := result.EndTime.Sub(result.StartTime)
	perSec := 0.0
	if duration.Seconds() > 0 {
		perSec = float64(result.Added) / duration.Seconds()
	}

	separator := "--------------------------------------------------"
	fmt.Fprintln(os.Stderr, "\n"+separator)
	fmt.Fprintln(os.Stderr, "Scrape complete")
	fmt.Fprintf(os.Stderr, "  Added:         %d\n", result.Added)
	fmt.Fprintf(os.Stderr, "  URLs read:     %d\n", result.Total)
	fmt.Fprintf(os.Stderr, "  Already known: %d\n", result.Known)
	fmt.Fprintf(os.Stderr, "  Prev. failed:  %d\n", result.PreviouslyFailed)
	fmt.Fprintf(os.Stderr, "  Denied:        %d\n", result.Denied)
	fmt.Fprintf(os.Stderr, "  Parse errors:  %d\n", result.ParseFailed)
	fmt.Fprintf(os.Stderr, "  Not found:     %d\n", result.NotFound)
	fmt.Fprintf(os.Stderr, "  Checkpoints:   %d\n", result.Checkpoints)
	fmt.Fprintf(os.Stderr, "  Retries:       %d\n", retries)
	fmt.Fprintf(os.Stderr, "  Duration:      %v\n", duration.Round(time.Millisecond))
	fmt.Fprintf(os.Stderr, "  Recipes/sec:   %.2f\n", perSec)
	fmt.Fprintf(os.Stderr, "  Database:      %s\n", cfg.DBPath)
	if cfg.ExportFormat != "" {
		fmt.Fprintf(os.Stderr, "  Export:        %s (%s)\n", cfg.ExportPath, cfg.ExportFormat)
	}
	fmt.Fprintln(os.Stderr, separator)
}
