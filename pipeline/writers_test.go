package pipeline

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/aluiziolira/beerme/models"
)

func exportRecipe(id, name string, og float64) *models.Recipe {
	author := "brewmaster"
	return &models.Recipe{
		ID:     id,
		Name:   name,
		URL:    "http://example.test/homebrew/recipe/view/" + id + "/" + name,
		Author: &author,
		Stats: map[string]*float64{
			"Original Gravity": &og,
			"Mash pH":          nil,
		},
		Recipe:    map[string]string{"Style": "Saison"},
		ScrapedAt: time.Date(2025, 11, 4, 13, 9, 13, 0, time.UTC),
	}
}

func TestCSVWriterWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "recipes.csv")

	writer, err := NewCSVWriter(path, []string{"Mash pH", "Original Gravity"})
	if err != nil {
		t.Fatalf("create csv writer: %v", err)
	}

	if err := writer.Write([]*models.Recipe{exportRecipe("1", "saison", 1.055)}); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close csv: %v", err)
	}
	if err := writer.Validate(); err != nil {
		t.Fatalf("validate csv: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open csv: %v", err)
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("records=%d, want 2", len(records))
	}
	wantHeader := []string{"id", "name", "url", "author", "style", "Mash pH", "Original Gravity", "scraped_at"}
	if !reflect.DeepEqual(records[0], wantHeader) {
		t.Fatalf("header = %v, want %v", records[0], wantHeader)
	}
	row := records[1]
	if row[0] != "1" || row[3] != "brewmaster" || row[4] != "Saison" {
		t.Fatalf("unexpected identity cells: %v", row)
	}
	if row[5] != "" || row[6] != "1.055" {
		t.Fatalf("stat cells = %q, %q; want empty and 1.055", row[5], row[6])
	}
	if row[7] != "2025-11-04T13:09:13Z" {
		t.Fatalf("scraped_at = %q", row[7])
	}
}

func TestJSONWriterWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "recipes.json")

	writer, err := NewJSONWriter(path)
	if err != nil {
		t.Fatalf("create json writer: %v", err)
	}
	recipes := []*models.Recipe{exportRecipe("1", "saison", 1.055), exportRecipe("2", "stout", 1.070)}
	if err := writer.Write(recipes); err != nil {
		t.Fatalf("write json: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close json: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read json: %v", err)
	}
	var decoded map[string]models.Recipe
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("invalid json snapshot: %v", err)
	}
	if len(decoded) != 2 {
		t.Fatalf("recipes=%d, want 2", len(decoded))
	}
	if decoded["2"].Name != "stout" {
		t.Fatalf("recipe 2 = %+v", decoded["2"])
	}
	if v, ok := decoded["1"].Stats["Mash pH"]; !ok || v != nil {
		t.Fatalf("Mash pH should be kept as null")
	}
}

func TestFileExporter(t *testing.T) {
	dir := t.TempDir()
	c := models.NewCollection()
	c.Add(exportRecipe("1", "saison", 1.055))

	tests := []struct {
		format string
		path   string
		files  []string
	}{
		{format: "json", path: filepath.Join(dir, "json", "beerme.json"), files: []string{"json/beerme.json"}},
		{format: "csv", path: filepath.Join(dir, "csv", "beerme.csv"), files: []string{"csv/beerme.csv"}},
		{format: "dual", path: filepath.Join(dir, "dual", "beerme.json"), files: []string{"dual/beerme.csv", "dual/beerme.json"}},
	}

	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			exporter, err := NewExporter(tt.format, tt.path)
			if err != nil {
				t.Fatalf("new exporter: %v", err)
			}
			if err := exporter.Export(c); err != nil {
				t.Fatalf("export: %v", err)
			}
			for _, name := range tt.files {
				if info, err := os.Stat(filepath.Join(dir, name)); err != nil || info.Size() == 0 {
					t.Fatalf("%s missing or empty", name)
				}
			}
		})
	}

	if _, err := NewExporter("xml", filepath.Join(dir, "x.xml")); err == nil {
		t.Fatal("expected unsupported format error")
	}
}

func TestFileExporterDual(t *testing.T) {
	dir := t.TempDir()
	c := models.NewCollection()
	c.Add(exportRecipe("1", "saison", 1.055))
	c.Add(exportRecipe("2", "stout", 1.070))

	exporter, err := NewExporter("dual", filepath.Join(dir, "beerme.json"))
	if err != nil {
		t.Fatalf("new exporter: %v", err)
	}
	if err := exporter.Export(c); err != nil {
		t.Fatalf("export: %v", err)
	}

	f, err := os.Open(filepath.Join(dir, "beerme.csv"))
	if err != nil {
		t.Fatalf("open csv: %v", err)
	}
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if len(records) != 3 || records[0][0] != "id" || records[2][1] != "stout" {
		t.Fatalf("csv records = %v", records)
	}

	data, err := os.ReadFile(filepath.Join(dir, "beerme.json"))
	if err != nil {
		t.Fatalf("read json: %v", err)
	}
	var decoded map[string]models.Recipe
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("invalid json snapshot: %v", err)
	}
	if len(decoded) != 2 {
		t.Fatalf("json recipes = %d, want 2", len(decoded))
	}
}

func TestFileExporterFormatWinsOverExtension(t *testing.T) {
	path := filepath.Join(t.TempDir(), "beerme.json")
	c := models.NewCollection()
	c.Add(exportRecipe("1", "saison", 1.055))

	exporter, err := NewExporter("csv", path)
	if err != nil {
		t.Fatalf("new exporter: %v", err)
	}
	if err := exporter.Export(c); err != nil {
		t.Fatalf("export: %v", err)
	}
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open export: %v", err)
	}
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	if err != nil || len(records) != 2 || records[0][0] != "id" {
		t.Fatalf("expected a csv table, got %v (%v)", records, err)
	}
}

func TestStatNames(t *testing.T) {
	fg := 1.010
	a := exportRecipe("1", "a", 1.05)
	b := exportRecipe("2", "b", 1.06)
	b.Stats["Final Gravity"] = &fg

	got := StatNames([]*models.Recipe{a, b})
	want := []string{"Final Gravity", "Mash pH", "Original Gravity"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("StatNames = %v, want %v", got, want)
	}
}
