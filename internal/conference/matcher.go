package conference

import (
	"github.com/pmezard/go-difflib/difflib"
)

// DefaultThreshold is the minimum similarity and keyword share the matcher accepts.
const DefaultThreshold = 0.75

// Tier scores.
const (
	abbreviationScore = 1.0
	patternScore      = 0.9
	keywordDiscount   = 0.8
)

// Candidate is the best venue the matcher found for a text.
type Candidate struct {
	Conference string
	Confidence float64
}

type scoredDefinition struct {
	def     Definition
	aliases [][]string
}

// Matcher scores texts against a registry. It holds no mutable state after
// construction and is safe for concurrent use.
type Matcher struct {
	entries   []scoredDefinition
	threshold float64
}

// NewMatcher prepares alias sequences for reg. A non-positive threshold falls back to DefaultThreshold.
func NewMatcher(reg *Registry, threshold float64) *Matcher {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	m := &Matcher{threshold: threshold}
	for _, def := range reg.All() {
		sd := scoredDefinition{def: def}
		for _, alias := range def.Aliases {
			sd.aliases = append(sd.aliases, chars(Normalize(alias)))
		}
		m.entries = append(m.entries, sd)
	}
	return m
}

// Threshold returns the configured acceptance threshold.
func (m *Matcher) Threshold() float64 {
	return m.threshold
}

// Match scores text with the configured threshold.
func (m *Matcher) Match(text string) (Candidate, bool) {
	return m.MatchThreshold(text, m.threshold)
}

// MatchThreshold evaluates every registry entry and keeps the first entry
// with the strictly highest score.
func (m *Matcher) MatchThreshold(text string, threshold float64) (Candidate, bool) {
	text = Normalize(text)
	// the text side is indexed once and reused for every alias
	seq := difflib.NewMatcher(nil, chars(text))

	var best Candidate
	for _, e := range m.entries {
		score := e.score(text, seq, threshold)
		if score > best.Confidence {
			best = Candidate{Conference: e.def.Name, Confidence: score}
		}
	}
	if best.Confidence <= 0 {
		return Candidate{}, false
	}
	return best, true
}

// Resolve maps a free-form venue query such as "neurips 2025" to its canonical name.
func (m *Matcher) Resolve(query string) (string, bool) {
	c, ok := m.Match(query)
	if !ok {
		return "", false
	}
	return c.Conference, true
}

// SearchTerms lists the aliases and abbreviations of a canonical conference, without repeats.
func (m *Matcher) SearchTerms(conference string) []string {
	for _, e := range m.entries {
		if e.def.Name != conference {
			continue
		}
		seen := map[string]struct{}{}
		var terms []string
		for _, term := range append(append([]string(nil), e.def.Aliases...), e.def.Abbreviations...) {
			key := Normalize(term)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			terms = append(terms, term)
		}
		return terms
	}
	return nil
}

// matchingAbbreviations lists entries whose abbreviation occurs in text, in registry order.
func (m *Matcher) matchingAbbreviations(text string) []string {
	text = Normalize(text)
	var names []string
	for _, e := range m.entries {
		if e.def.MatchesAbbreviation(text) {
			names = append(names, e.def.Name)
		}
	}
	return names
}

func (e scoredDefinition) score(text string, seq *difflib.SequenceMatcher, threshold float64) float64 {
	var score float64

	if e.def.MatchesAbbreviation(text) {
		score = abbreviationScore
	}
	if e.def.MatchesPattern(text) {
		score = max(score, patternScore)
	}
	for _, alias := range e.aliases {
		seq.SetSeq1(alias)
		ratio := seq.Ratio()
		if ratio > threshold {
			score = max(score, ratio)
		}
	}
	if fraction := e.def.KeywordFraction(text); fraction > threshold {
		score = max(score, fraction*keywordDiscount)
	}
	return score
}

func chars(s string) []string {
	out := make([]string, 0, len(s))
	for _, r := range s {
		out = append(out, string(r))
	}
	return out
}
