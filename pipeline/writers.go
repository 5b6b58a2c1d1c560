package pipeline

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/aluiziolira/beerme/models"
)

// OutputWriter defines the interface for export output.
type OutputWriter interface {
	Write(recipes []*models.Recipe) error
	Close() error
	Validate() error
}

// FileExporter rewrites an export file from the whole collection.
type FileExporter struct {
	format string
	path   string
}

// NewExporter returns an exporter for format (json, csv or dual). For dual
// output, path's extension is replaced with .csv and .json.
func NewExporter(format, path string) (*FileExporter, error) {
	switch format {
	case "json", "csv", "dual":
	default:
		return nil, fmt.Errorf("unsupported format: %s", format)
	}
	if path == "" {
		return nil, fmt.Errorf("export path cannot be empty")
	}
	return &FileExporter{format: format, path: path}, nil
}

// Export writes every recipe in c, in insertion order. A dual export writes
// the CSV table and then the JSON snapshot, attempting both even when the
// first fails.
func (e *FileExporter) Export(c *models.Collection) error {
	recipes := c.Recipes()
	statColumns := StatNames(recipes)

	var errs []error
	for _, target := range e.targets() {
		if err := target.write(recipes, statColumns); err != nil {
			errs = append(errs, fmt.Errorf("export %s: %w", target.path, err))
		}
	}
	return errors.Join(errs...)
}

type exportTarget struct {
	format string
	path   string
}

func (e *FileExporter) targets() []exportTarget {
	if e.format != "dual" {
		return []exportTarget{{format: e.format, path: e.path}}
	}
	base := strings.TrimSuffix(e.path, filepath.Ext(e.path))
	return []exportTarget{
		{format: "csv", path: base + ".csv"},
		{format: "json", path: base + ".json"},
	}
}

func (t exportTarget) write(recipes []*models.Recipe, statColumns []string) error {
	var (
		writer OutputWriter
		err    error
	)
	if t.format == "csv" {
		writer, err = NewCSVWriter(t.path, statColumns)
	} else {
		writer, err = NewJSONWriter(t.path)
	}
	if err != nil {
		return err
	}
	if err := writer.Write(recipes); err != nil {
		writer.Close()
		return err
	}
	if err := writer.Close(); err != nil {
		return err
	}
	return writer.Validate()
}

// StatNames returns the sorted union of stat names across recipes.
func StatNames(recipes []*models.Recipe) []string {
	seen := make(map[string]struct{})
	for _, r := range recipes {
		for name := range r.Stats {
			seen[name] = struct{}{}
		}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CSVWriter writes one row of identity fields and stats per recipe.
type CSVWriter struct {
	file        *os.File
	writer      *csv.Writer
	statColumns []string
	mu          sync.Mutex
}

// NewCSVWriter initialises a CSV writer and writes the header row.
func NewCSVWriter(filename string, statColumns []string) (*CSVWriter, error) {
	if err := ensureDir(filename); err != nil {
		return nil, err
	}

	f, err := os.Create(filename)
	if err != nil {
		return nil, fmt.Errorf("create csv file: %w", err)
	}

	writer := csv.NewWriter(f)
	header := append([]string{"id", "name", "url", "author", "style"}, statColumns...)
	header = append(header, "scraped_at")
	if err := writer.Write(header); err != nil {
		f.Close()
		return nil, fmt.Errorf("write csv header: %w", err)
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		f.Close()
		return nil, fmt.Errorf("flush csv header: %w", err)
	}

	return &CSVWriter{
		file:        f,
		writer:      writer,
		statColumns: statColumns,
	}, nil
}

// Write appends recipes to the CSV output. Missing or n/a stats are empty cells.
func (cw *CSVWriter) Write(recipes []*models.Recipe) error {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	for _, r := range recipes {
		author := ""
		if r.Author != nil {
			author = *r.Author
		}
		record := []string{r.ID, r.Name, r.URL, author, r.Recipe["Style"]}
		for _, name := range cw.statColumns {
			cell := ""
			if v, ok := r.Stat(name); ok {
				cell = strconv.FormatFloat(v, 'f', -1, 64)
			}
			record = append(record, cell)
		}
		record = append(record, r.ScrapedAt.Format(time.RFC3339))
		if err := cw.writer.Write(record); err != nil {
			return fmt.Errorf("write csv record: %w", err)
		}
	}
	cw.writer.Flush()
	if err := cw.writer.Error(); err != nil {
		return fmt.Errorf("flush csv records: %w", err)
	}
	return nil
}

// Close flushes and closes the file handle.
func (cw *CSVWriter) Close() error {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	cw.writer.Flush()
	if err := cw.writer.Error(); err != nil {
		return fmt.Errorf("flush csv writer: %w", err)
	}
	return cw.file.Close()
}

// Validate ensures the file has content besides the header.
func (cw *CSVWriter) Validate() error {
	info, err := os.Stat(cw.file.Name())
	if err != nil {
		return fmt.Errorf("stat csv file: %w", err)
	}
	if info.Size() <= 0 {
		return fmt.Errorf("csv file is empty")
	}
	return nil
}

// JSONWriter writes the collection as one indented JSON object keyed by
// recipe identifier. Records are buffered until Close.
type JSONWriter struct {
	file    *os.File
	writer  *bufio.Writer
	recipes map[string]*models.Recipe
	mu      sync.Mutex
}

// NewJSONWriter initialises the JSON writer.
func NewJSONWriter(filename string) (*JSONWriter, error) {
	if err := ensureDir(filename); err != nil {
		return nil, err
	}

	f, err := os.Create(filename)
	if err != nil {
		return nil, fmt.Errorf("create json file: %w", err)
	}

	return &JSONWriter{
		file:    f,
		writer:  bufio.NewWriter(f),
		recipes: make(map[string]*models.Recipe),
	}, nil
}

// Write buffers recipes for the snapshot.
func (jw *JSONWriter) Write(recipes []*models.Recipe) error {
	jw.mu.Lock()
	defer jw.mu.Unlock()

	for _, r := range recipes {
		jw.recipes[r.ID] = r
	}
	return nil
}

// Close encodes the snapshot, flushes buffers and closes the file.
func (jw *JSONWriter) Close() error {
	jw.mu.Lock()
	defer jw.mu.Unlock()

	encoder := json.NewEncoder(jw.writer)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(jw.recipes); err != nil {
		jw.file.Close()
		return fmt.Errorf("encode json snapshot: %w", err)
	}
	if err := jw.writer.Flush(); err != nil {
		jw.file.Close()
		return fmt.Errorf("flush json writer: %w", err)
	}
	return jw.file.Close()
}

// Validate ensures the JSON file has data.
func (jw *JSONWriter) Validate() error {
	info, err := os.Stat(jw.file.Name())
	if err != nil {
		return fmt.Errorf("stat json file: %w", err)
	}
	if info.Size() <= 0 {
		return fmt.Errorf("json file is empty")
	}
	return nil
}

func ensureDir(filename string) error {
	dir := filepath.Dir(filename)
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %q: %w", dir, err)
	}
	return nil
}
