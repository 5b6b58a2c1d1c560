// Package pipeline drives recipe ingestion: it reads recipe URLs, scrapes the
// ones not yet known, and persists the collection, URL ledger and exports.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"time"

	"github.com/aluiziolira/beerme/config"
	"github.com/aluiziolira/beerme/models"
	"github.com/aluiziolira/beerme/parser"
	"github.com/aluiziolira/beerme/scraper"
)

var (
	// ErrLayoutChanged is returned when too many consecutive recipe pages
	// fail to parse.
	ErrLayoutChanged = errors.New("pipeline: consecutive parse failures, page layout likely changed")
)

// Store persists the collection and the failure ledger as whole snapshots.
type Store interface {
	LoadCollection(ctx context.Context) (*models.Collection, error)
	SaveCollection(ctx context.Context, c *models.Collection) error
	LoadFailures(ctx context.Context) (*models.FailureLedger, error)
	SaveFailures(ctx context.Context, l *models.FailureLedger) error
}

// Exporter writes a snapshot of the collection outside the store.
type Exporter interface {
	Export(c *models.Collection) error
}

// Ingester runs the crawl/accumulate/checkpoint loop.
type Ingester struct {
	store    Store
	fetcher  scraper.PageFetcher
	cfg      *config.Config
	metrics  *scraper.Metrics
	exporter Exporter
}

// NewIngester wires an ingester. metrics may be nil.
func NewIngester(store Store, fetcher scraper.PageFetcher, cfg *config.Config, metrics *scraper.Metrics) *Ingester {
	return &Ingester{
		store:   store,
		fetcher: fetcher,
		cfg:     cfg,
		metrics: metrics,
	}
}

// WithExporter sets the exporter run after the final save.
func (in *Ingester) WithExporter(e Exporter) *Ingester {
	in.exporter = e
	return in
}

// Run consumes source until target new recipes have been added (target < 0
// means no limit, target == 0 adds nothing) or source is exhausted. The
// failure ledger is always saved on exit and the collection is saved when
// anything was added, including when the run stops on an error or on
// cancellation. The returned result is never nil.
func (in *Ingester) Run(ctx context.Context, target int, source iter.Seq2[string, error]) (*models.IngestResult, error) {
	result := &models.IngestResult{StartTime: time.Now()}

	collection, err := in.store.LoadCollection(ctx)
	if err != nil {
		result.EndTime = time.Now()
		return result, fmt.Errorf("load collection: %w", err)
	}
	failures, err := in.store.LoadFailures(ctx)
	if err != nil {
		result.EndTime = time.Now()
		return result, fmt.Errorf("load failures: %w", err)
	}

	slog.Info("starting ingest",
		slog.Int("known", collection.Len()),
		slog.Int("failed", failures.Len()),
		slog.Int("target", target),
	)

	runErr := in.consume(ctx, target, source, collection, failures, result)

	saveCtx := context.WithoutCancel(ctx)
	var saveErrs []error
	if err := in.store.SaveFailures(saveCtx, failures); err != nil {
		saveErrs = append(saveErrs, fmt.Errorf("save failures: %w", err))
	}
	if result.Added > 0 {
		if err := in.store.SaveCollection(saveCtx, collection); err != nil {
			saveErrs = append(saveErrs, fmt.Errorf("save collection: %w", err))
		} else if in.exporter != nil {
			if err := in.exporter.Export(collection); err != nil {
				saveErrs = append(saveErrs, fmt.Errorf("export: %w", err))
			}
		}
	}

	result.EndTime = time.Now()
	slog.Info("ingest finished",
		slog.Int("added", result.Added),
		slog.Int("total", collection.Len()),
		slog.Duration("duration", result.EndTime.Sub(result.StartTime)),
	)
	return result, errors.Join(append([]error{runErr}, saveErrs...)...)
}

func (in *Ingester) consume(ctx context.Context, target int, source iter.Seq2[string, error], collection *models.Collection, failures *models.FailureLedger, result *models.IngestResult) error {
	if target == 0 {
		return nil
	}

	consecutiveParseFailures := 0
	for rawURL, err := range source {
		if err != nil {
			return fmt.Errorf("recipe source: %w", err)
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		result.Total++

		id, name, err := parser.ParseRecipeURL(rawURL)
		if err != nil {
			in.metrics.IncSkipped("invalid_url")
			slog.Warn("skipping malformed recipe url", slog.String("url", rawURL), slog.Any("error", err))
			continue
		}
		key := parser.LedgerKey(id, name)

		if failures.Has(key) {
			result.PreviouslyFailed++
			in.metrics.IncSkipped("failed")
			slog.Debug("already failed", slog.String("recipe", key))
			continue
		}
		if collection.Has(id) {
			result.Known++
			in.metrics.IncSkipped("known")
			slog.Debug("already have", slog.String("recipe", key))
			continue
		}

		if target > 0 {
			slog.Info("scraping recipe",
				slog.Int("n", result.Added+1),
				slog.Int("of", target),
				slog.String("recipe", key),
			)
		} else {
			slog.Info("scraping recipe", slog.Int("n", result.Added+1), slog.String("recipe", key))
		}

		recipe, err := in.scrape(ctx, rawURL)
		switch {
		case err == nil:
		case errors.Is(err, parser.ErrPermissionDenied):
			failures.Add(key)
			result.Denied++
			in.metrics.IncFailure("denied")
			consecutiveParseFailures = 0
			slog.Info("unable to scrape recipe", slog.String("recipe", key), slog.String("reason", "permission denied"))
			continue
		case parser.IsParseError(err):
			failures.Add(key)
			result.ParseFailed++
			in.metrics.IncFailure("parse")
			consecutiveParseFailures++
			slog.Warn("unable to parse recipe", slog.String("recipe", key), slog.Any("error", err))
			if limit := in.cfg.MaxConsecutiveParseFailures; limit > 0 && consecutiveParseFailures >= limit {
				return fmt.Errorf("%w (%d in a row, last %s)", ErrLayoutChanged, consecutiveParseFailures, key)
			}
			continue
		case scraper.IsNotFound(err):
			failures.Add(key)
			result.NotFound++
			in.metrics.IncFailure("not_found")
			slog.Warn("recipe not found", slog.String("recipe", key))
			continue
		default:
			return fmt.Errorf("scrape %s: %w", key, err)
		}
		consecutiveParseFailures = 0

		recipe.ID, recipe.Name, recipe.URL = id, name, rawURL
		collection.Add(recipe)
		result.Added++
		in.metrics.IncAdded()

		if target > 0 && result.Added >= target {
			return nil
		}
		if result.Added%in.cfg.CheckpointEvery == 0 {
			if err := in.store.SaveCollection(context.WithoutCancel(ctx), collection); err != nil {
				return fmt.Errorf("checkpoint: %w", err)
			}
			result.Checkpoints++
			in.metrics.IncCheckpoint()
			slog.Info("checkpoint saved", slog.Int("added", result.Added), slog.Int("total", collection.Len()))
		}
	}
	return nil
}

func (in *Ingester) scrape(ctx context.Context, rawURL string) (*models.Recipe, error) {
	doc, err := in.fetcher.Fetch(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	return parser.ExtractRecipe(doc)
}
