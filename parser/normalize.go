package parser

import (
	"strconv"
	"strings"

	"github.com/aluiziolira/beerme/models"
)

// Separator joins the text nodes of one table cell.
const Separator = "||"

// Section kinds with dedicated normalization policies.
const (
	KindComments      = ""
	KindMashSteps     = "mashsteps"
	KindOthers        = "others"
	KindYeasts        = "yeasts"
	KindPrimingMethod = "primingmethod"
	KindWater         = "water"
	KindFermentables  = "fermentables"
)

var commentColumns = []string{"user", "date_time", "rating", "comment"}

type normalizeFunc func(kind string, rows [][]string) (models.Table, error)

var policies = map[string]normalizeFunc{
	KindMashSteps:     normalizeVerbatim,
	KindOthers:        normalizeVerbatim,
	KindYeasts:        normalizeYeasts,
	KindPrimingMethod: normalizePrimingMethod,
	KindWater:         normalizeWater,
	KindComments:      normalizeComments,
}

// Normalize converts the raw rows of one brew section into a table using the
// policy registered for kind. Kinds without a policy keep the text before the
// first separator of every cell.
func Normalize(kind string, rows [][]string) (models.Table, error) {
	if fn, ok := policies[kind]; ok {
		return fn(kind, rows)
	}
	return normalizeDefault(kind, rows)
}

// ParseComments decodes the rows of a normalized comments table.
func ParseComments(t models.Table) []models.Comment {
	comments := make([]models.Comment, 0, len(t.Rows))
	for _, row := range t.Rows {
		if len(row) < 4 {
			continue
		}
		c := models.Comment{}
		c.User, _ = row[0].(string)
		c.DateTime, _ = row[1].(string)
		if rating, ok := row[2].(int); ok {
			c.Rating = &rating
		}
		c.Comment, _ = row[3].(string)
		comments = append(comments, c)
	}
	return comments
}

func normalizeVerbatim(_ string, rows [][]string) (models.Table, error) {
	return matrix(rows), nil
}

func normalizeYeasts(kind string, rows [][]string) (models.Table, error) {
	if len(rows) < 2 || len(rows[0]) == 0 || len(rows[1]) == 0 {
		return models.Table{}, sectionErrorf(kind, "expected name row and detail row, got %d rows", len(rows))
	}
	tokens := append([]string{"name", rows[0][0]}, strings.Split(rows[1][0], Separator)...)
	return alternating(tokens), nil
}

func normalizePrimingMethod(kind string, rows [][]string) (models.Table, error) {
	if len(rows) == 0 || len(rows[0]) == 0 {
		return models.Table{}, sectionErrorf(kind, "missing priming text")
	}
	var tokens []string
	for _, line := range strings.Split(rows[0][0], "\n") {
		for _, part := range strings.Split(line, ": ") {
			part = strings.ReplaceAll(part, Separator, "_")
			tokens = append(tokens, strings.Trim(part, "\u00a0\t\r "))
		}
	}
	return alternating(tokens), nil
}

func normalizeWater(kind string, rows [][]string) (models.Table, error) {
	if len(rows) < 2 {
		return models.Table{}, sectionErrorf(kind, "expected ion row and value row, got %d rows", len(rows))
	}
	columns := make([]string, 0, len(rows[0])+1)
	for _, c := range rows[0] {
		columns = append(columns, strings.ReplaceAll(c, Separator, "_"))
	}
	values := make([]any, 0, len(rows[1])+1)
	for _, c := range rows[1] {
		if c == "" {
			values = append(values, nil)
			continue
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(c), 64)
		if err != nil {
			return models.Table{}, sectionErrorf(kind, "ion value %q: %w", c, err)
		}
		values = append(values, v)
	}
	description := ""
	if len(rows) > 2 && len(rows[2]) > 0 {
		description = rows[2][0]
	}
	columns = append(columns, "description")
	values = append(values, description)
	return models.Table{Columns: columns, Rows: [][]any{values}}, nil
}

func normalizeComments(kind string, rows [][]string) (models.Table, error) {
	var flat []string
	for _, row := range rows {
		flat = append(flat, row...)
	}
	table := models.Table{Columns: append([]string(nil), commentColumns...), Rows: [][]any{}}
	if len(flat) == 0 {
		return table, nil
	}
	// the first cell is the aggregate comment count
	for _, packed := range flat[1:] {
		if packed == "" {
			continue
		}
		row, err := unpackComment(kind, packed)
		if err != nil {
			return models.Table{}, err
		}
		table.Rows = append(table.Rows, row)
	}
	return table, nil
}

func unpackComment(kind, packed string) ([]any, error) {
	parts := strings.Split(packed, Separator)
	if len(parts) < 2 {
		return nil, sectionErrorf(kind, "comment %q has no date", packed)
	}
	user, dateTime := parts[0], parts[1]
	if len(parts) == 2 {
		return []any{user, dateTime, nil, ""}, nil
	}
	if rating, ok := RatingToNumeric(parts[2]); ok {
		return []any{user, dateTime, rating, strings.Join(parts[3:], "\n")}, nil
	}
	return []any{user, dateTime, nil, strings.Join(parts[2:], "\n")}, nil
}

func normalizeDefault(kind string, rows [][]string) (models.Table, error) {
	trimmed := make([][]string, 0, len(rows))
	for _, row := range rows {
		out := make([]string, len(row))
		for i, cell := range row {
			out[i], _, _ = strings.Cut(cell, Separator)
		}
		trimmed = append(trimmed, out)
	}
	if kind == KindFermentables && len(trimmed) > 0 && containsCell(trimmed[len(trimmed)-1], "Total") {
		trimmed = trimmed[:len(trimmed)-1]
	}
	return matrix(trimmed), nil
}

func matrix(rows [][]string) models.Table {
	if len(rows) == 0 {
		return models.Table{}
	}
	t := models.Table{
		Columns: append([]string(nil), rows[0]...),
		Rows:    make([][]any, 0, len(rows)-1),
	}
	for _, row := range rows[1:] {
		values := make([]any, len(row))
		for i, cell := range row {
			values[i] = cell
		}
		t.Rows = append(t.Rows, values)
	}
	return t
}

// alternating reshapes name, value, name, value... into a header and one row.
func alternating(tokens []string) models.Table {
	t := models.Table{Rows: [][]any{{}}}
	for i, tok := range tokens {
		if i%2 == 0 {
			t.Columns = append(t.Columns, tok)
		} else {
			t.Rows[0] = append(t.Rows[0], tok)
		}
	}
	return t
}

func containsCell(row []string, text string) bool {
	for _, cell := range row {
		if cell == text {
			return true
		}
	}
	return false
}
