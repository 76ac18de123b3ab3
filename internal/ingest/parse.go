// Package ingest is the normalization boundary: locale-formatted numbers are
// parsed and package-unit quantities divided exactly once, here, before any
// record reaches a repository.
package ingest

import (
	"strconv"
	"strings"
)

// ParseLocaleNumber parses a number that may use the European decimal comma
// and thousands dot ("1.234,56") or the plain dot form ("1234.56"). When both
// separators appear, the rightmost one is the decimal separator. Malformed
// input parses to 0.
func ParseLocaleNumber(s string) float64 {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, " ", "")
	s = strings.ReplaceAll(s, " ", "")
	if s == "" {
		return 0
	}

	lastComma := strings.LastIndex(s, ",")
	lastDot := strings.LastIndex(s, ".")
	switch {
	case lastComma >= 0 && lastDot >= 0:
		if lastComma > lastDot {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case lastComma >= 0:
		if strings.Count(s, ",") > 1 {
			return 0
		}
		s = strings.Replace(s, ",", ".", 1)
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}
