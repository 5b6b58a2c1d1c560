package store_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aluiziolira/beerme/models"
	"github.com/aluiziolira/beerme/store"
)

func openMemory(t *testing.T) *store.DB {
	t.Helper()
	db := store.NewDB(":memory:")
	require.NoError(t, db.Open())
	t.Cleanup(func() { db.Close() })
	return db
}

func sampleRecipe(id, name string) *models.Recipe {
	og, fg := 1.065, 1.012
	author := "brewmaster"
	rating := 4
	return &models.Recipe{
		ID:     id,
		Name:   name,
		URL:    "http://example.test/homebrew/recipe/view/" + id + "/" + name,
		Author: &author,
		Stats: map[string]*float64{
			"Original Gravity": &og,
			"Final Gravity":    &fg,
			"Mash pH":          nil,
		},
		Recipe: map[string]string{"Style": "American IPA", "notes": ""},
		Sections: map[string]models.Table{
			"water": {Columns: []string{"Ca_+2", "Mg_+2", "description"}, Rows: [][]any{{50.0, nil, ""}}},
		},
		Comments:  []models.Comment{{User: "alice", DateTime: "01/01/2020", Rating: &rating, Comment: "Nice"}},
		ScrapedAt: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestDB_Open(t *testing.T) {
	t.Parallel()

	t.Run("creates schema on first open", func(t *testing.T) {
		t.Parallel()

		db := openMemory(t)
		ctx := context.Background()

		var recipeCount, failureCount int
		require.NoError(t, db.QueryRowContext(ctx, "SELECT COUNT(*) FROM recipes").Scan(&recipeCount))
		require.NoError(t, db.QueryRowContext(ctx, "SELECT COUNT(*) FROM failures").Scan(&failureCount))
	})

	t.Run("creates missing directories", func(t *testing.T) {
		t.Parallel()

		dbPath := filepath.Join(t.TempDir(), "nested", "beerme.db")
		db := store.NewDB(dbPath)
		require.NoError(t, db.Open())
		defer db.Close()

		var journalMode string
		require.NoError(t, db.QueryRowContext(context.Background(), "PRAGMA journal_mode").Scan(&journalMode))
		assert.Equal(t, "wal", journalMode)
	})
}

func TestCollectionRoundTrip(t *testing.T) {
	t.Parallel()

	db := openMemory(t)
	ctx := context.Background()

	empty, err := db.LoadCollection(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, empty.Len())

	c := models.NewCollection()
	c.Add(sampleRecipe("30", "third"))
	c.Add(sampleRecipe("10", "first"))
	require.NoError(t, db.SaveCollection(ctx, c))

	loaded, err := db.LoadCollection(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, loaded.Len())

	recipes := loaded.Recipes()
	assert.Equal(t, "30", recipes[0].ID)
	assert.Equal(t, "10", recipes[1].ID)

	got, ok := loaded.Get("10")
	require.True(t, ok)
	assert.Equal(t, "first", got.Name)
	require.NotNil(t, got.Author)
	assert.Equal(t, "brewmaster", *got.Author)
	og, ok := got.Stat("Original Gravity")
	assert.True(t, ok)
	assert.InDelta(t, 1.065, og, 1e-12)
	assert.Contains(t, got.Stats, "Mash pH")
	assert.Nil(t, got.Stats["Mash pH"])
	assert.Equal(t, []any{50.0, nil, ""}, got.Sections["water"].Rows[0])
	require.Len(t, got.Comments, 1)
	assert.Equal(t, 4, *got.Comments[0].Rating)
	assert.True(t, got.ScrapedAt.Equal(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)))
}

func TestSaveCollectionReplacesSnapshot(t *testing.T) {
	t.Parallel()

	db := openMemory(t)
	ctx := context.Background()

	first := models.NewCollection()
	first.Add(sampleRecipe("1", "a"))
	first.Add(sampleRecipe("2", "b"))
	require.NoError(t, db.SaveCollection(ctx, first))

	second := models.NewCollection()
	second.Add(sampleRecipe("3", "c"))
	require.NoError(t, db.SaveCollection(ctx, second))

	loaded, err := db.LoadCollection(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, loaded.Len())
	assert.True(t, loaded.Has("3"))
	assert.False(t, loaded.Has("1"))
}

func TestFailuresRoundTrip(t *testing.T) {
	t.Parallel()

	db := openMemory(t)
	ctx := context.Background()

	ledger := models.NewFailureLedger()
	ledger.Add("2/private")
	ledger.Add("1/broken")
	require.NoError(t, db.SaveFailures(ctx, ledger))

	loaded, err := db.LoadFailures(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"1/broken", "2/private"}, loaded.Keys())

	ledger.Add("3/new")
	require.NoError(t, db.SaveFailures(ctx, ledger))
	loaded, err = db.LoadFailures(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, loaded.Len())
}

func TestSnapshotSurvivesReopen(t *testing.T) {
	t.Parallel()

	dbPath := filepath.Join(t.TempDir(), "beerme.db")
	ctx := context.Background()

	db := store.NewDB(dbPath)
	require.NoError(t, db.Open())
	c := models.NewCollection()
	c.Add(sampleRecipe("7", "lager"))
	require.NoError(t, db.SaveCollection(ctx, c))
	require.NoError(t, db.Close())

	reopened := store.NewDB(dbPath)
	require.NoError(t, reopened.Open())
	defer reopened.Close()

	loaded, err := reopened.LoadCollection(ctx)
	require.NoError(t, err)
	assert.True(t, loaded.Has("7"))
}
