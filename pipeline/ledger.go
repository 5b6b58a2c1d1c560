package pipeline

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"os"
	"sync"

	"github.com/aluiziolira/beerme/config"
	"github.com/aluiziolira/beerme/parser"
)

// ledgerFlushEvery is the number of buffered rows written per flush.
const ledgerFlushEvery = 1000

// LedgerReader replays the URL ledger as full recipe URLs.
type LedgerReader struct {
	path string
	cfg  *config.Config
}

// NewLedgerReader reads the ledger at path.
func NewLedgerReader(path string, cfg *config.Config) *LedgerReader {
	return &LedgerReader{path: path, cfg: cfg}
}

// URLs yields one recipe URL per ledger row, in file order. A missing ledger
// is an empty source; a malformed row is yielded as an error and ends the
// sequence.
func (r *LedgerReader) URLs(ctx context.Context) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		f, err := os.Open(r.path)
		if errors.Is(err, os.ErrNotExist) {
			slog.Warn("url ledger not found", slog.String("path", r.path))
			return
		}
		if err != nil {
			yield("", fmt.Errorf("open url ledger: %w", err))
			return
		}
		defer f.Close()

		reader := csv.NewReader(f)
		reader.FieldsPerRecord = 2
		reader.ReuseRecord = true
		for {
			if err := ctx.Err(); err != nil {
				yield("", err)
				return
			}
			record, err := reader.Read()
			if err == io.EOF {
				return
			}
			if err != nil {
				yield("", fmt.Errorf("read url ledger: %w", err))
				return
			}
			if !yield(r.cfg.RecipeURL(record[0], record[1]), nil) {
				return
			}
		}
	}
}

// LedgerWriter appends (identifier, name) rows to the URL ledger, flushing
// every ledgerFlushEvery rows and on Close.
type LedgerWriter struct {
	file    *os.File
	writer  *csv.Writer
	pending int
	total   int
	mu      sync.Mutex
}

// NewLedgerWriter opens the ledger at path for appending.
func NewLedgerWriter(path string) (*LedgerWriter, error) {
	if err := ensureDir(path); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open url ledger: %w", err)
	}
	return &LedgerWriter{file: f, writer: csv.NewWriter(f)}, nil
}

// Append records the recipe at rawURL.
func (lw *LedgerWriter) Append(rawURL string) error {
	id, name, err := parser.ParseRecipeURL(rawURL)
	if err != nil {
		return err
	}

	lw.mu.Lock()
	defer lw.mu.Unlock()

	if err := lw.writer.Write([]string{id, name}); err != nil {
		return fmt.Errorf("write ledger row: %w", err)
	}
	lw.pending++
	lw.total++
	if lw.pending >= ledgerFlushEvery {
		return lw.flushLocked()
	}
	return nil
}

// Total returns the number of rows appended by this writer.
func (lw *LedgerWriter) Total() int {
	lw.mu.Lock()
	defer lw.mu.Unlock()
	return lw.total
}

// Close flushes buffered rows and closes the file.
func (lw *LedgerWriter) Close() error {
	lw.mu.Lock()
	defer lw.mu.Unlock()

	if err := lw.flushLocked(); err != nil {
		lw.file.Close()
		return err
	}
	return lw.file.Close()
}

func (lw *LedgerWriter) flushLocked() error {
	lw.writer.Flush()
	if err := lw.writer.Error(); err != nil {
		return fmt.Errorf("flush url ledger: %w", err)
	}
	if lw.pending > 0 {
		slog.Info("url ledger flushed", slog.Int("rows", lw.pending), slog.Int("total", lw.total))
	}
	lw.pending = 0
	return nil
}

// RecordURLs drains source into w. Rows appended before an error stay in the
// ledger once w is closed.
func RecordURLs(ctx context.Context, source iter.Seq2[string, error], w *LedgerWriter) (int, error) {
	count := 0
	for rawURL, err := range source {
		if err != nil {
			return count, err
		}
		if err := ctx.Err(); err != nil {
			return count, err
		}
		if err := w.Append(rawURL); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}
