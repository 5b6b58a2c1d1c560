package parser

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// PlatoToSG converts degrees Plato to specific gravity.
func PlatoToSG(plato float64) float64 {
	return 1 + plato/(258.6-227.1*(plato/258.2))
}

// ConvertStat converts one stat-bar value token. "n/a" yields nil, percentages
// are returned as fractions and Plato readings are converted to SG.
func ConvertStat(label, value string) (*float64, error) {
	value = strings.TrimSpace(value)
	var (
		v   float64
		err error
	)
	switch {
	case value == "n/a":
		return nil, nil
	case strings.Contains(value, "%"):
		v, err = parseNumber(strings.TrimSuffix(value, "%"))
		v /= 100
	case strings.Contains(value, "P"):
		v, err = parseNumber(strings.TrimRight(value, "P°\u00a0 "))
		v = PlatoToSG(v)
	default:
		v, err = parseNumber(value)
	}
	if err != nil {
		return nil, &StatValueParseError{Label: label, Value: value, Err: err}
	}
	return &v, nil
}

func parseNumber(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("non-finite value %q", s)
	}
	return v, nil
}

// ParseStats pairs the stat bar tokens into labels and converted values.
// Tokens alternate label, value; a trailing label without a value is dropped.
func ParseStats(tokens []string) (map[string]*float64, error) {
	stats := make(map[string]*float64, len(tokens)/2)
	for i := 0; i+1 < len(tokens); i += 2 {
		v, err := ConvertStat(tokens[i], tokens[i+1])
		if err != nil {
			return nil, err
		}
		stats[tokens[i]] = v
	}
	return stats, nil
}
