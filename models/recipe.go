// Package models defines data structures for the scraper.
package models

import "time"

// Recipe represents one homebrew recipe scraped from a recipe page.
type Recipe struct {
	ID        string              `json:"id"`
	Name      string              `json:"name"`
	URL       string              `json:"url"`
	Author    *string             `json:"author"`
	Stats     map[string]*float64 `json:"stats"`
	Recipe    map[string]string   `json:"recipe"`
	Sections  map[string]Table    `json:"sections"`
	Comments  []Comment           `json:"comments"`
	ScrapedAt time.Time           `json:"scraped_at"`
}

// Stat returns the named stat and whether it holds a value.
func (r *Recipe) Stat(name string) (float64, bool) {
	if r == nil {
		return 0, false
	}
	v, ok := r.Stats[name]
	if !ok || v == nil {
		return 0, false
	}
	return *v, true
}

// Comment is a single user comment left on a recipe page.
type Comment struct {
	User     string `json:"user"`
	DateTime string `json:"date_time"`
	Rating   *int   `json:"rating"`
	Comment  string `json:"comment"`
}

// Table is a normalized brew section. Two-row sections carry one row of
// values; matrix sections carry every data row below the header.
type Table struct {
	Columns []string `json:"columns"`
	Rows    [][]any  `json:"rows"`
}

// Empty reports whether the table has neither a header nor rows.
func (t Table) Empty() bool {
	return len(t.Columns) == 0 && len(t.Rows) == 0
}

// Value returns the value of column in the first row.
func (t Table) Value(column string) (any, bool) {
	if len(t.Rows) == 0 {
		return nil, false
	}
	for i, c := range t.Columns {
		if c == column && i < len(t.Rows[0]) {
			return t.Rows[0][i], true
		}
	}
	return nil, false
}

// IngestResult holds the overall result of an ingest run.
type IngestResult struct {
	StartTime        time.Time
	EndTime          time.Time
	Added            int
	Known            int
	PreviouslyFailed int
	Denied           int
	ParseFailed      int
	NotFound         int
	Checkpoints      int
	Total            int
}
