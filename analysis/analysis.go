// Package analysis summarizes gravity and alcohol distributions across the
// stored recipe collection.
package analysis

import (
	"fmt"
	"io"
	"math"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/aluiziolira/beerme/models"
)

// Stat names read from each recipe.
const (
	StatOG           = "Original Gravity"
	StatFG           = "Final Gravity"
	StatABV          = "ABV (standard)"
	StatABVAlternate = "ABV (alternate)"
)

// Point is one recipe's gravity and alcohol readings. ABV is in percent.
type Point struct {
	ID      string
	OG      float64
	FG      float64
	ABV     float64
	ABVName string
}

// Measure describes the distribution of one reading.
type Measure struct {
	Name   string
	Count  int
	Min    float64
	Max    float64
	Mean   float64
	StdDev float64
}

// Summary is the distribution report for a collection.
type Summary struct {
	Recipes   int
	Points    []Point
	Skipped   int
	Measures  []Measure
	ABVSource map[string]int
}

// Summarize collects OG, FG and ABV from every recipe that reports all
// three. ABV falls back to the alternate formula when the standard one is
// missing.
func Summarize(c *models.Collection) Summary {
	s := Summary{Recipes: c.Len(), ABVSource: make(map[string]int)}

	for _, r := range c.Recipes() {
		og, okOG := r.Stat(StatOG)
		fg, okFG := r.Stat(StatFG)
		abvName := StatABV
		abv, okABV := r.Stat(abvName)
		if !okABV {
			abvName = StatABVAlternate
			abv, okABV = r.Stat(abvName)
		}
		if !okOG || !okFG || !okABV {
			s.Skipped++
			continue
		}
		s.Points = append(s.Points, Point{ID: r.ID, OG: og, FG: fg, ABV: abv * 100, ABVName: abvName})
		s.ABVSource[abvName]++
	}

	og := make([]float64, len(s.Points))
	fg := make([]float64, len(s.Points))
	abv := make([]float64, len(s.Points))
	for i, p := range s.Points {
		og[i], fg[i], abv[i] = p.OG, p.FG, p.ABV
	}
	s.Measures = []Measure{
		describe("OG", og),
		describe("FG", fg),
		describe("ABV (%)", abv),
	}
	return s
}

// describe computes count, range, mean and sample standard deviation.
func describe(name string, values []float64) Measure {
	m := Measure{Name: name, Count: len(values)}
	if len(values) == 0 {
		return m
	}

	m.Min, m.Max = values[0], values[0]
	var sum float64
	for _, v := range values {
		m.Min = math.Min(m.Min, v)
		m.Max = math.Max(m.Max, v)
		sum += v
	}
	m.Mean = sum / float64(len(values))

	if len(values) > 1 {
		var sq float64
		for _, v := range values {
			d := v - m.Mean
			sq += d * d
		}
		m.StdDev = math.Sqrt(sq / float64(len(values)-1))
	}
	return m
}

// Render writes the summary as a table.
func (s Summary) Render(w io.Writer) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"Measure", "Count", "Min", "Max", "Mean", "Std Dev"})

	for _, m := range s.Measures {
		if m.Count == 0 {
			t.AppendRow(table.Row{m.Name, 0, "-", "-", "-", "-"})
			continue
		}
		t.AppendRow(table.Row{
			m.Name,
			m.Count,
			fmt.Sprintf("%.3f", m.Min),
			fmt.Sprintf("%.3f", m.Max),
			fmt.Sprintf("%.3f", m.Mean),
			fmt.Sprintf("%.3f", m.StdDev),
		})
	}

	t.AppendFooter(table.Row{
		"Recipes", s.Recipes,
		fmt.Sprintf("skipped %d", s.Skipped),
		fmt.Sprintf("standard %d", s.ABVSource[StatABV]),
		fmt.Sprintf("alternate %d", s.ABVSource[StatABVAlternate]),
		"",
	})
	t.SetStyle(table.StyleRounded)
	t.Render()
}
