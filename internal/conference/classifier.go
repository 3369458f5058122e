package conference

import (
	"strconv"
	"strings"
	"time"

	"PaperScanner/internal/domain"
)

// Field acceptance bars and discounts of the classification cascade.
const (
	commentFloor  = 0.80
	titleFloor    = 0.85
	abstractFloor = 0.70

	abstractDiscount = 0.9
	combinedDiscount = 0.85

	abstractPrefix = 500
	combinedPrefix = 200

	multiVenueConfidence = 0.95
)

// Classifier decides whether a paper belongs to a known venue by consulting
// its fields in priority order: comment, title, abstract, title+abstract.
type Classifier struct {
	matcher *Matcher
	now     func() time.Time
}

// NewClassifier builds a classifier; now defaults to time.Now.
func NewClassifier(matcher *Matcher, now func() time.Time) *Classifier {
	if now == nil {
		now = time.Now
	}
	return &Classifier{matcher: matcher, now: now}
}

// Matcher exposes the underlying matcher.
func (c *Classifier) Matcher() *Matcher {
	return c.matcher
}

// Classify returns the venue verdict, or false when no field is convincing enough.
func (c *Classifier) Classify(title, abstract, comment string) (domain.MatchResult, bool) {
	if strings.TrimSpace(comment) != "" {
		if res, ok := c.matchWithYear(comment); ok && res.Confidence > commentFloor {
			return res, true
		}
	}

	if res, ok := c.matchWithYear(title); ok && res.Confidence > titleFloor {
		return res, true
	}

	if res, ok := c.matchWithYear(truncateRunes(abstract, abstractPrefix)); ok && res.Confidence > abstractFloor {
		res.Confidence *= abstractDiscount
		return res, true
	}

	combined := title + " " + truncateRunes(abstract, combinedPrefix)
	if res, ok := c.matchWithYear(combined); ok {
		res.Confidence *= combinedDiscount
		return res, true
	}

	return domain.MatchResult{}, false
}

// FindAll lists every venue whose abbreviation appears in text, e.g. a
// workshop comment naming both the workshop host and the main conference.
func (c *Classifier) FindAll(text string) []domain.MatchResult {
	names := c.matcher.matchingAbbreviations(text)
	if len(names) == 0 {
		return nil
	}
	year := c.yearOf(text)
	results := make([]domain.MatchResult, 0, len(names))
	for _, name := range names {
		results = append(results, domain.MatchResult{
			Conference: name,
			Confidence: multiVenueConfidence,
			Year:       year,
		})
	}
	return results
}

func (c *Classifier) matchWithYear(text string) (domain.MatchResult, bool) {
	cand, ok := c.matcher.Match(text)
	if !ok {
		return domain.MatchResult{}, false
	}
	return domain.MatchResult{
		Conference: cand.Conference,
		Confidence: cand.Confidence,
		Year:       c.yearOf(text),
	}, true
}

func (c *Classifier) yearOf(text string) string {
	if year, ok := ExtractYear(text); ok {
		return year
	}
	return strconv.Itoa(c.now().Year())
}
