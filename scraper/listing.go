package scraper

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/aluiziolira/beerme/config"
)

// PageFetcher loads a page as a parsed document.
type PageFetcher interface {
	Fetch(ctx context.Context, url string) (*goquery.Document, error)
}

// Walker enumerates recipe URLs from the paginated recipe listing.
type Walker struct {
	fetcher PageFetcher
	cfg     *config.Config

	// Start is the first listing page to read (1-based).
	Start int
	// Pages is the number of pages to read; zero or negative reads all pages.
	Pages int
	// FullURL prefixes each relative href with the base URL.
	FullURL bool
}

// NewWalker returns a walker over every listing page, yielding full URLs.
func NewWalker(fetcher PageFetcher, cfg *config.Config) *Walker {
	return &Walker{
		fetcher: fetcher,
		cfg:     cfg,
		Start:   1,
		FullURL: true,
	}
}

// URLs lazily yields recipe URLs in listing order. Pages are fetched only as
// the consumer advances; a fetch or pagination error is yielded once and ends
// the sequence.
func (w *Walker) URLs(ctx context.Context) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		start := max(w.Start, 1)

		last, err := w.LastPage(ctx)
		if err != nil {
			yield("", err)
			return
		}

		end := last
		if w.Pages > 0 {
			end = min(start+w.Pages-1, last)
		}

		for page := start; page <= end; page++ {
			if err := ctx.Err(); err != nil {
				yield("", err)
				return
			}

			doc, err := w.fetcher.Fetch(ctx, w.cfg.ListingURL(page))
			if err != nil {
				yield("", fmt.Errorf("listing page %d: %w", page, err))
				return
			}

			hrefs := recipeLinks(doc)
			slog.Debug("listing page read",
				slog.Int("page", page),
				slog.Int("last_page", last),
				slog.Int("recipes", len(hrefs)),
			)
			for _, href := range hrefs {
				if !yield(w.resolve(href), nil) {
					return
				}
			}
		}
	}
}

// LastPage reads the number of the final listing page from the pagination
// block of the first page to be walked.
func (w *Walker) LastPage(ctx context.Context) (int, error) {
	doc, err := w.fetcher.Fetch(ctx, w.cfg.ListingURL(max(w.Start, 1)))
	if err != nil {
		return 0, fmt.Errorf("listing last page: %w", err)
	}
	return ParseLastPage(doc)
}

// ParseLastPage extracts the last page number from the final ul.pagination
// block: the trailing token of its first item, with thousands separators
// removed ("Page 1 of 8,048").
func ParseLastPage(doc *goquery.Document) (int, error) {
	pagination := doc.Find("ul.pagination").Last()
	if pagination.Length() == 0 {
		return 0, fmt.Errorf("pagination block not found")
	}
	fields := strings.Fields(pagination.Find("li").First().Text())
	if len(fields) == 0 {
		return 0, fmt.Errorf("pagination block is empty")
	}
	raw := strings.ReplaceAll(fields[len(fields)-1], ",", "")
	last, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("parse last page %q: %w", raw, err)
	}
	return last, nil
}

func recipeLinks(doc *goquery.Document) []string {
	var hrefs []string
	doc.Find("a.recipetitle").Each(func(_ int, a *goquery.Selection) {
		if href, ok := a.Attr("href"); ok && href != "" {
			hrefs = append(hrefs, href)
		}
	})
	return hrefs
}

func (w *Walker) resolve(href string) string {
	if !w.FullURL || strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	return strings.TrimRight(w.cfg.BaseURL, "/") + "/" + strings.TrimLeft(href, "/")
}
