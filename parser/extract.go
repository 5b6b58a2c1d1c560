package parser

import (
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/aluiziolira/beerme/models"
)

const permissionTitlePrefix = "Permission Error"

// ExtractRecipe parses a fully loaded recipe page. It returns
// ErrPermissionDenied when the page refused access; ID, Name and URL are left
// for the caller to fill from the request.
func ExtractRecipe(doc *goquery.Document) (*models.Recipe, error) {
	if strings.HasPrefix(strings.TrimSpace(doc.Find("title").First().Text()), permissionTitlePrefix) {
		return nil, ErrPermissionDenied
	}
	removeHidden(doc.Selection)

	sections, comments, err := extractSections(doc.Selection)
	if err != nil {
		return nil, err
	}

	bar := doc.Find("div#calStatsGreyBar").First()
	if bar.Length() == 0 {
		return nil, sectionErrorf("stats", "stats bar not found")
	}
	stats, err := ParseStats(statTokens(bar))
	if err != nil {
		return nil, err
	}

	meta := extractMeta(doc.Selection)
	meta["notes"] = extractNotes(doc.Selection)

	return &models.Recipe{
		Author:    extractAuthor(doc.Selection),
		Stats:     stats,
		Recipe:    meta,
		Sections:  sections,
		Comments:  comments,
		ScrapedAt: time.Now().UTC(),
	}, nil
}

// TableRows returns the cell texts of every row in table.
func TableRows(table *goquery.Selection) [][]string {
	var rows [][]string
	table.Find("tr").Each(func(_ int, tr *goquery.Selection) {
		var row []string
		tr.Find("th, td").Each(func(_ int, cell *goquery.Selection) {
			row = append(row, strings.Trim(Text(cell, Separator), "-"))
		})
		rows = append(rows, row)
	})
	return rows
}

// Text joins the whitespace-trimmed, non-empty text nodes under sel with sep.
func Text(sel *goquery.Selection, sep string) string {
	var parts []string
	for _, n := range sel.Nodes {
		collectText(n, &parts)
	}
	return strings.Join(parts, sep)
}

func collectText(n *html.Node, parts *[]string) {
	if n.Type == html.TextNode {
		if t := strings.TrimSpace(n.Data); t != "" {
			*parts = append(*parts, t)
		}
		return
	}
	if n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style") {
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(c, parts)
	}
}

func removeHidden(sel *goquery.Selection) {
	sel.Find("[style]").FilterFunction(func(_ int, s *goquery.Selection) bool {
		style, _ := s.Attr("style")
		style = strings.ToLower(strings.ReplaceAll(style, " ", ""))
		return strings.Contains(style, "display:none")
	}).Remove()
}

func extractSections(root *goquery.Selection) (map[string]models.Table, []models.Comment, error) {
	sections := make(map[string]models.Table)
	var comments []models.Comment
	var err error

	root.Find("div.brewpart").EachWithBreak(func(_ int, part *goquery.Selection) bool {
		table := part.Find("table").First()
		if table.Length() == 0 {
			return true
		}
		rows := TableRows(table)
		if len(rows) == 0 {
			return true
		}
		kind, _ := part.Attr("id")
		var t models.Table
		t, err = Normalize(kind, rows)
		if err != nil {
			return false
		}
		if kind == KindComments {
			comments = ParseComments(t)
			return true
		}
		if !t.Empty() {
			sections[kind] = t
		}
		return true
	})
	if err != nil {
		return nil, nil, err
	}
	return sections, comments, nil
}

func statTokens(bar *goquery.Selection) []string {
	text := Text(bar, Separator)
	text = strings.ReplaceAll(text, "\t", "")
	text = strings.ReplaceAll(text, ":", "")
	var tokens []string
	for _, tok := range strings.Split(text, Separator) {
		if tok = strings.TrimSpace(tok); tok != "" {
			tokens = append(tokens, tok)
		}
	}
	return tokens
}

func extractMeta(root *goquery.Selection) map[string]string {
	var tokens []string
	root.Find("span.viewStats").Each(func(_ int, s *goquery.Selection) {
		for _, tok := range strings.Split(Text(s, ""), ":") {
			if tok != "" {
				tokens = append(tokens, tok)
			}
		}
	})
	meta := make(map[string]string, len(tokens)/2+1)
	for i := 0; i+1 < len(tokens); i += 2 {
		meta[tokens[i]] = tokens[i+1]
	}
	return meta
}

func extractAuthor(root *goquery.Selection) *string {
	for _, selector := range []string{"[itemprop=author]", "div.center.aligned.header"} {
		if s := root.Find(selector).First(); s.Length() > 0 {
			author := strings.TrimSpace(s.Text())
			return &author
		}
	}
	return nil
}

func extractNotes(root *goquery.Selection) string {
	p := root.Find("div.ui.message").First().Find("p").First()
	if p.Length() == 0 {
		return ""
	}
	return p.Text()
}
