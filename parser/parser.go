// Package parser turns brewersfriend recipe pages into normalized recipe records.
package parser

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

// ParseRecipeURL returns the recipe ID and slug name from the last two path
// segments of a recipe URL, e.g. ".../view/16367/southern-tier-pumking-clone".
func ParseRecipeURL(raw string) (id, name string, err error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", "", fmt.Errorf("parse recipe url: %w", err)
	}
	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(segments) < 2 {
		return "", "", fmt.Errorf("recipe url %q: expected id and name segments", raw)
	}
	id, name = segments[len(segments)-2], segments[len(segments)-1]
	if id == "" || name == "" {
		return "", "", fmt.Errorf("recipe url %q: empty id or name", raw)
	}
	return id, name, nil
}

// LedgerKey builds the failure ledger key for a recipe.
func LedgerKey(id, name string) string {
	return id + "/" + name
}

var ratingPattern = regexp.MustCompile(`^([0-5]) of 5`)

// RatingToNumeric converts a "<n> of 5" rating token to its numeric value.
func RatingToNumeric(token string) (int, bool) {
	m := ratingPattern.FindStringSubmatch(token)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}
