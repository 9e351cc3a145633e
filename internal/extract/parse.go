// File: internal/extract/parse.go
package extract

import (
	"math"
	"strconv"
	"strings"
)

// ParseMetric converts abbreviated metric strings like "1.2K", "5.7M",
// "12,345", or "423" to integers. Suffixes are case-insensitive, thousands
// separators are stripped, and anything unparsable yields 0.
func ParseMetric(s string) int {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	s = strings.ReplaceAll(s, ",", "")

	multiplier := 1.0
	switch {
	case strings.HasSuffix(strings.ToUpper(s), "K"):
		multiplier = 1000
		s = s[:len(s)-1]
	case strings.HasSuffix(strings.ToUpper(s), "M"):
		multiplier = 1000000
		s = s[:len(s)-1]
	}

	value, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	// Round, don't truncate: 4.1 * 1e6 is 4099999.999... in float64.
	return int(math.Round(value * multiplier))
}
