// Package scraper fetches brewersfriend.com pages and walks the recipe listing.
package scraper

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/aluiziolira/beerme/config"
)

// Fetcher loads pages through a synchronous colly collector and parses them
// into goquery documents. Successful pages are kept in a small LRU cache.
type Fetcher struct {
	cfg       *config.Config
	collector *colly.Collector
	cache     *lru.Cache[string, *goquery.Document]
	Metrics   *Metrics

	mu           sync.Mutex
	totalRetries int
}

// NewFetcher builds a fetcher configured from cfg. A nil metrics value
// disables instrumentation.
func NewFetcher(cfg *config.Config, metrics *Metrics) (*Fetcher, error) {
	parsed, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if parsed.Host == "" {
		return nil, fmt.Errorf("base url must include a host")
	}

	collector := colly.NewCollector(
		colly.AllowedDomains(parsed.Hostname()),
		colly.UserAgent(cfg.UserAgent),
		colly.AllowURLRevisit(),
		colly.ParseHTTPErrorResponse(),
	)

	collector.SetRequestTimeout(cfg.Timeout)
	collector.IgnoreRobotsTxt = !cfg.RespectRobotsTxt
	collector.WithTransport(&http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   cfg.Timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	})

	if err := collector.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: 1,
		Delay:       cfg.Delay,
		RandomDelay: cfg.RandomDelay,
	}); err != nil {
		return nil, fmt.Errorf("configure rate limits: %w", err)
	}

	f := &Fetcher{
		cfg:       cfg,
		collector: collector,
		Metrics:   metrics,
	}
	if cfg.CacheSize > 0 {
		cache, err := lru.New[string, *goquery.Document](cfg.CacheSize)
		if err != nil {
			return nil, fmt.Errorf("create page cache: %w", err)
		}
		f.cache = cache
	}
	return f, nil
}

// WithTransport replaces the HTTP transport used for every request.
func (f *Fetcher) WithTransport(rt http.RoundTripper) {
	f.collector.WithTransport(rt)
}

// Fetch returns the parsed document at rawURL. Timeouts, connection failures,
// rate limiting and 5xx responses are retried with capped exponential
// backoff. A 403 response with a body is returned as a document so callers
// can recognise the site's permission page.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*goquery.Document, error) {
	if f.cache != nil {
		if doc, ok := f.cache.Get(rawURL); ok {
			f.Metrics.IncCacheHit()
			return doc, nil
		}
	}

	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		doc, status, err := f.fetchOnce(rawURL)
		if err == nil {
			if status == http.StatusOK && f.cache != nil {
				f.cache.Add(rawURL, doc)
			}
			return doc, nil
		}

		category := ErrorLabel(err)
		f.Metrics.IncError(category)
		if !retryable(err) || attempt >= f.cfg.MaxRetries {
			slog.Debug("fetch failed",
				slog.String("url", rawURL),
				slog.String("category", category),
				slog.Int("attempts", attempt+1),
			)
			return nil, fmt.Errorf("fetch %s: %w", rawURL, err)
		}

		delay := f.backoff(attempt + 1)
		f.recordRetry()
		slog.Warn("retrying fetch",
			slog.String("url", rawURL),
			slog.String("category", category),
			slog.Duration("delay", delay),
		)
		if err := sleep(ctx, delay); err != nil {
			return nil, err
		}
	}
}

// TotalRetries returns the number of retries issued so far.
func (f *Fetcher) TotalRetries() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.totalRetries
}

func (f *Fetcher) fetchOnce(rawURL string) (*goquery.Document, int, error) {
	c := f.collector.Clone()
	c.AllowURLRevisit = true
	c.ParseHTTPErrorResponse = true
	c.UserAgent = f.cfg.UserAgent

	var resp *colly.Response
	c.OnRequest(func(r *colly.Request) {
		r.Ctx.Put("start", time.Now())
		f.Metrics.IncRequest("started")
	})
	c.OnResponse(func(r *colly.Response) {
		resp = r
		f.Metrics.IncRequest("completed")
		if start, ok := r.Request.Ctx.GetAny("start").(time.Time); ok {
			f.Metrics.ObserveDuration(time.Since(start))
		}
	})
	c.OnError(func(r *colly.Response, _ error) {
		if r != nil && r.StatusCode != 0 {
			resp = r
		}
	})

	visitErr := c.Visit(rawURL)

	status := 0
	if resp != nil {
		status = resp.StatusCode
	}
	if visitErr == nil && resp == nil {
		return nil, 0, fmt.Errorf("no response for %s", rawURL)
	}
	if !(status == http.StatusForbidden && visitErr == nil && len(resp.Body) > 0) {
		if err := classifyError(visitErr, status); err != nil {
			return nil, status, err
		}
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body))
	if err != nil {
		return nil, status, fmt.Errorf("parse html: %w", err)
	}
	doc.Url = resp.Request.URL
	return doc, status, nil
}

func (f *Fetcher) backoff(attempt int) time.Duration {
	if attempt <= 0 {
		attempt = 1
	}

	base := f.cfg.RetryBackoff
	if base <= 0 {
		base = 100 * time.Millisecond
	}

	delay := base * time.Duration(1<<(attempt-1))
	if max := f.cfg.RetryBackoffMax; max > 0 && delay > max {
		delay = max
	}
	return delay
}

func (f *Fetcher) recordRetry() {
	f.mu.Lock()
	f.totalRetries++
	f.mu.Unlock()
	f.Metrics.IncRetries()
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func classifyError(err error, statusCode int) error {
	if err == nil && statusCode < http.StatusBadRequest {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout{Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrTimeout{Err: err}
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return ErrConnection{Err: err}
	}

	if statusCode >= http.StatusBadRequest {
		wrapped := err
		if wrapped == nil {
			wrapped = fmt.Errorf("http status %d", statusCode)
		}
		switch {
		case statusCode == http.StatusForbidden:
			return ErrForbidden{Err: wrapped}
		case statusCode == http.StatusNotFound:
			return ErrNotFound{Err: wrapped}
		case statusCode == http.StatusTooManyRequests:
			return ErrRateLimited{Err: wrapped}
		case statusCode >= http.StatusInternalServerError:
			return ErrServer{Status: statusCode, Err: wrapped}
		}
		return wrapped
	}

	return err
}
