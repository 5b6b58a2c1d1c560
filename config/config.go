package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds scraper and ingest configuration.
type Config struct {
	BaseURL          string
	UserAgent        string
	Timeout          time.Duration
	Delay            time.Duration
	RandomDelay      time.Duration
	MaxRetries       int
	RetryBackoff     time.Duration
	RetryBackoffMax  time.Duration
	RespectRobotsTxt bool
	CacheSize        int

	SortByRating bool

	DBPath        string
	URLLedgerPath string
	ExportPath    string
	ExportFormat  string // "", json, csv, or dual

	CheckpointEvery             int
	MaxConsecutiveParseFailures int

	MetricsAddr string
	Verbose     bool
}

// DefaultConfig returns polite defaults for brewersfriend.com.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:                     "https://www.brewersfriend.com",
		UserAgent:                   "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.11 (KHTML, like Gecko) Chrome/23.0.1271.64 Safari/537.11",
		Timeout:                     15 * time.Second,
		Delay:                       500 * time.Millisecond,
		RandomDelay:                 250 * time.Millisecond,
		MaxRetries:                  2,
		RetryBackoff:                500 * time.Millisecond,
		RetryBackoffMax:             5 * time.Second,
		RespectRobotsTxt:            false,
		CacheSize:                   64,
		SortByRating:                true,
		DBPath:                      "data/beerme.db",
		URLLedgerPath:               "data/beer_urls.csv",
		ExportPath:                  "data/beerme.json",
		ExportFormat:                "",
		CheckpointEvery:             100,
		MaxConsecutiveParseFailures: 10,
	}
}

// Validate ensures all configuration values are coherent.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("base URL cannot be empty")
	}

	parsedURL, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid base URL: %w", err)
	}
	if parsedURL.Host == "" {
		return fmt.Errorf("base URL must include a host")
	}

	if c.UserAgent == "" {
		return fmt.Errorf("user agent cannot be empty")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.Delay < 0 {
		return fmt.Errorf("delay cannot be negative")
	}
	if c.RandomDelay < 0 {
		return fmt.Errorf("random delay cannot be negative")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max retries cannot be negative")
	}
	if c.RetryBackoff < 0 {
		return fmt.Errorf("retry backoff cannot be negative")
	}
	if c.RetryBackoffMax < 0 {
		return fmt.Errorf("retry backoff max cannot be negative")
	}
	if c.RetryBackoffMax > 0 && c.RetryBackoff > c.RetryBackoffMax {
		return fmt.Errorf("retry backoff (%s) cannot exceed retry backoff max (%s)", c.RetryBackoff, c.RetryBackoffMax)
	}
	if c.CacheSize < 0 {
		return fmt.Errorf("cache size cannot be negative")
	}
	if c.DBPath == "" {
		return fmt.Errorf("database path cannot be empty")
	}
	if c.URLLedgerPath == "" {
		return fmt.Errorf("url ledger path cannot be empty")
	}
	switch c.ExportFormat {
	case "":
	case "csv", "json", "dual":
		if c.ExportPath == "" {
			return fmt.Errorf("export path cannot be empty when exporting")
		}
	default:
		return fmt.Errorf("export format must be csv, json, or dual")
	}
	if c.CheckpointEvery <= 0 {
		return fmt.Errorf("checkpoint interval must be positive")
	}
	if c.MaxConsecutiveParseFailures < 0 {
		return fmt.Errorf("max consecutive parse failures cannot be negative")
	}

	return nil
}

// RecipeURL builds the canonical recipe page URL from its identifier and name.
func (c *Config) RecipeURL(id, name string) string {
	return strings.TrimRight(c.BaseURL, "/") + "/homebrew/recipe/view/" + id + "/" + name
}

// ListingURL builds the URL of one page of the recipe listing.
func (c *Config) ListingURL(page int) string {
	u := fmt.Sprintf("%s/homebrew-recipes/page/%d", strings.TrimRight(c.BaseURL, "/"), page)
	if c.SortByRating {
		u += "?sort=rating-desc"
	}
	return u
}

// EnvInt reads an integer from the environment. ok is false when the
// variable is unset or blank.
func EnvInt(key string) (value int, ok bool, err error) {
	raw, ok := EnvString(key)
	if !ok {
		return 0, false, nil
	}
	value, err = strconv.Atoi(raw)
	if err != nil {
		return 0, false, fmt.Errorf("%s: %w", key, err)
	}
	return value, true, nil
}

// EnvString reads a trimmed, non-empty string from the environment.
func EnvString(key string) (string, bool) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return "", false
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}
	return raw, true
}
