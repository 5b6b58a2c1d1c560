package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aluiziolira/beerme/config"
	"github.com/aluiziolira/beerme/scraper"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

func main() {
	root, err := newRootCmd()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	ctx, stop := withSignals(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := root.ExecuteContext(ctx); err != nil {
		slog.Error("beerme failed", slog.Any("error", err))
		stop()
		os.Exit(1)
	}
}

var errInterrupted = errors.New("interrupted")

// withSignals returns a context canceled when one of sigs arrives, with a
// cause wrapping errInterrupted. The returned stop function cancels the
// context without a signal cause and releases the signal handler.
func withSignals(parent context.Context, sigs ...os.Signal) (context.Context, func()) {
	ctx, cancel := context.WithCancelCause(parent)
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, sigs...)

	go func() {
		defer signal.Stop(ch)
		select {
		case sig := <-ch:
			slog.Info("shutdown signal received, saving progress before exit", slog.String("signal", sig.String()))
			cancel(fmt.Errorf("%w by %s", errInterrupted, sig))
		case <-ctx.Done():
		}
	}()

	return ctx, func() { cancel(context.Canceled) }
}

// interrupted reports whether err stems from a signal canceling ctx.
func interrupted(ctx context.Context, err error) bool {
	return err != nil && errors.Is(err, context.Canceled) && errors.Is(context.Cause(ctx), errInterrupted)
}

func newRootCmd() (*cobra.Command, error) {
	cfg := config.DefaultConfig()
	if err := applyEnv(cfg); err != nil {
		return nil, err
	}

	cmd := &cobra.Command{
		Use:   "beerme",
		Short: "Scrape homebrew recipes from brewersfriend.com",
		Long: `beerme collects homebrew recipes from brewersfriend.com.

Recipe URLs are gathered from the paginated listing into a URL ledger,
recipe pages are scraped into a local SQLite collection, and the
collection can be summarised or exported as JSON and CSV.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(c *cobra.Command, args []string) error {
			logger, level := newLogger(cfg.Verbose)
			slog.SetDefault(logger)
			slog.SetLogLoggerLevel(level.Level())
			return cfg.Validate()
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&cfg.DBPath, "db", cfg.DBPath, "SQLite database holding the collection and failure ledger")
	flags.StringVar(&cfg.URLLedgerPath, "ledger", cfg.URLLedgerPath, "CSV ledger of recipe URLs")
	flags.StringVar(&cfg.BaseURL, "base-url", cfg.BaseURL, "Base URL of the recipe site")
	flags.BoolVarP(&cfg.Verbose, "verbose", "v", false, "Enable verbose logging")
	flags.StringVar(&cfg.MetricsAddr, "metrics-addr", cfg.MetricsAddr, "Prometheus metrics listen address (e.g. :9090)")
	flags.DurationVar(&cfg.Delay, "delay", cfg.Delay, "Delay between requests")
	flags.IntVar(&cfg.MaxRetries, "max-retries", cfg.MaxRetries, "Maximum retry attempts per URL")
	flags.BoolVar(&cfg.RespectRobotsTxt, "respect-robots", cfg.RespectRobotsTxt, "Respect robots.txt directives")

	cmd.AddCommand(newScrapeCmd(cfg), newURLsCmd(cfg), newStatsCmd(cfg))
	return cmd, nil
}

func applyEnv(cfg *config.Config) error {
	if value, ok := config.EnvString("BEERME_DB"); ok {
		cfg.DBPath = value
	}
	if value, ok := config.EnvString("BEERME_LEDGER"); ok {
		cfg.URLLedgerPath = value
	}
	if value, ok := config.EnvString("BEERME_METRICS_ADDR"); ok {
		cfg.MetricsAddr = value
	}
	if value, ok, err := config.EnvInt("BEERME_CHECKPOINT"); err != nil {
		return fmt.Errorf("invalid BEERME_CHECKPOINT: %w", err)
	} else if ok {
		cfg.CheckpointEvery = value
	}
	return nil
}

// startMetricsServer serves metrics on cfg.MetricsAddr when set. The returned
// function shuts the server down and is always safe to call.
func startMetricsServer(cfg *config.Config, metrics *scraper.Metrics) func() {
	if cfg.MetricsAddr == "" || metrics == nil {
		return func() {}
	}

	server := &http.Server{
		Addr:    cfg.MetricsAddr,
		Handler: promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}),
	}
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server failed", slog.Any("error", err))
		}
	}()
	slog.Info("metrics server enabled", slog.String("addr", cfg.MetricsAddr))

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			slog.Error("metrics server shutdown failed", slog.Any("error", err))
		}
	}
}

func newLogger(verbose bool) (*slog.Logger, *slog.LevelVar) {
	level := &slog.LevelVar{}
	if verbose {
		level.Set(slog.LevelDebug)
	} else {
		level.Set(slog.LevelInfo)
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if isTerminal(os.Stderr) {
		handler = slog.NewTextHandler(os.Stderr, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}

	return slog.New(handler), level
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
