package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func readLedger(t *testing.T, r *LedgerReader) ([]string, error) {
	t.Helper()
	var urls []string
	for u, err := range r.URLs(context.Background()) {
		if err != nil {
			return urls, err
		}
		urls = append(urls, u)
	}
	return urls, nil
}

func TestLedgerRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "beer_urls.csv")
	cfg := testConfig()

	writer, err := NewLedgerWriter(path)
	if err != nil {
		t.Fatalf("new ledger writer: %v", err)
	}
	inputs := []string{
		"/homebrew/recipe/view/16367/southern-tier-pumking-clone",
		"http://example.test/homebrew/recipe/view/110851/60-minute-clone",
	}
	for _, u := range inputs {
		if err := writer.Append(u); err != nil {
			t.Fatalf("append %s: %v", u, err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read ledger: %v", err)
	}
	if got := string(raw); got != "16367,southern-tier-pumking-clone\n110851,60-minute-clone\n" {
		t.Fatalf("ledger contents = %q", got)
	}

	urls, err := readLedger(t, NewLedgerReader(path, cfg))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	want := []string{
		"http://example.test/homebrew/recipe/view/16367/southern-tier-pumking-clone",
		"http://example.test/homebrew/recipe/view/110851/60-minute-clone",
	}
	if !reflect.DeepEqual(urls, want) {
		t.Fatalf("urls = %v, want %v", urls, want)
	}
}

func TestLedgerWriterAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "beer_urls.csv")

	for i := 1; i <= 2; i++ {
		writer, err := NewLedgerWriter(path)
		if err != nil {
			t.Fatalf("new ledger writer: %v", err)
		}
		if err := writer.Append(fmt.Sprintf("/homebrew/recipe/view/%d/beer", i)); err != nil {
			t.Fatalf("append: %v", err)
		}
		if err := writer.Close(); err != nil {
			t.Fatalf("close: %v", err)
		}
	}

	urls, err := readLedger(t, NewLedgerReader(path, testConfig()))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(urls) != 2 {
		t.Fatalf("urls = %v, want two rows across sessions", urls)
	}
}

func TestLedgerWriterFlushesInBatches(t *testing.T) {
	path := filepath.Join(t.TempDir(), "beer_urls.csv")
	writer, err := NewLedgerWriter(path)
	if err != nil {
		t.Fatalf("new ledger writer: %v", err)
	}

	for i := 0; i < ledgerFlushEvery; i++ {
		if err := writer.Append(fmt.Sprintf("/homebrew/recipe/view/%d/beer", i)); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read ledger: %v", err)
	}
	if got := strings.Count(string(raw), "\n"); got != ledgerFlushEvery {
		t.Fatalf("flushed rows = %d, want %d before close", got, ledgerFlushEvery)
	}
	if writer.Total() != ledgerFlushEvery {
		t.Fatalf("total = %d", writer.Total())
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestLedgerReaderMissingFile(t *testing.T) {
	urls, err := readLedger(t, NewLedgerReader(filepath.Join(t.TempDir(), "missing.csv"), testConfig()))
	if err != nil || len(urls) != 0 {
		t.Fatalf("missing ledger should be empty, got %v, %v", urls, err)
	}
}

func TestLedgerReaderMalformedRow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "beer_urls.csv")
	if err := os.WriteFile(path, []byte("1,a\nbroken\n"), 0o644); err != nil {
		t.Fatalf("write ledger: %v", err)
	}

	urls, err := readLedger(t, NewLedgerReader(path, testConfig()))
	if len(urls) != 1 || err == nil {
		t.Fatalf("urls=%v err=%v, want one url then an error", urls, err)
	}
}

func TestRecordURLs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "beer_urls.csv")
	writer, err := NewLedgerWriter(path)
	if err != nil {
		t.Fatalf("new ledger writer: %v", err)
	}

	walkErr := errors.New("listing page 3: timeout")
	source := func(yield func(string, error) bool) {
		if !yield("/homebrew/recipe/view/1/a", nil) || !yield("/homebrew/recipe/view/2/b", nil) {
			return
		}
		yield("", walkErr)
	}

	count, err := RecordURLs(context.Background(), source, writer)
	if !errors.Is(err, walkErr) {
		t.Fatalf("expected walk error, got %v", err)
	}
	if count != 2 {
		t.Fatalf("count = %d, want 2", count)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	urls, err := readLedger(t, NewLedgerReader(path, testConfig()))
	if err != nil || len(urls) != 2 {
		t.Fatalf("urls=%v err=%v, want rows recorded before the error", urls, err)
	}
}
