// Package conference identifies top-tier venues in free-form paper metadata.
//
// Matching is rule based: a static registry of venues, a four-tier fuzzy
// matcher and a classifier that walks paper fields in priority order.
package conference

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	delimiterReplacer = strings.NewReplacer(
		"-", " ",
		"_", " ",
		"/", " ",
		`\`, " ",
	)
	quoteReplacer = strings.NewReplacer(
		"‘", "'",
		"’", "'",
		"‚", "'",
		"‛", "'",
		"`", "'",
		"´", "'",
		"′", "'",
	)
	yearExpr = regexp.MustCompile(`(?:'?\s*)?(\d{4}|\d{2})(?:\s|$|[^\d])`)
)

// Normalize canonicalizes text for matching. Normalize(Normalize(s)) == Normalize(s).
func Normalize(text string) string {
	text = strings.ToUpper(text)
	text = delimiterReplacer.Replace(text)
	text = quoteReplacer.Replace(text)
	return strings.Join(strings.Fields(text), " ")
}

// ExtractYear returns the first plausible conference year found in text.
// Four-digit years must fall in [2020, 2030]; two-digit years in [20, 30]
// are expanded to 20xx.
func ExtractYear(text string) (string, bool) {
	for _, m := range yearExpr.FindAllStringSubmatch(Normalize(text), -1) {
		digits := m[1]
		n, err := strconv.Atoi(digits)
		if err != nil {
			continue
		}
		switch len(digits) {
		case 4:
			if n >= 2020 && n <= 2030 {
				return digits, true
			}
		case 2:
			if n >= 20 && n <= 30 {
				return "20" + digits, true
			}
		}
	}
	return "", false
}

// truncateRunes cuts s to at most n characters.
func truncateRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
