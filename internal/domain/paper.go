package domain

import "time"

// DateLayout is the calendar-date format used for published and fetched dates.
const DateLayout = "2006-01-02"

// RawEntry is a paper as returned by an upstream metadata source.
type RawEntry struct {
	ID         string
	Title      string
	Authors    []string
	Summary    string
	Published  time.Time
	PDFURL     string
	Categories []string
	Comment    string
}

// MatchResult is the classifier verdict for a single paper.
type MatchResult struct {
	Conference string
	Confidence float64
	Year       string
}

// PaperRecord is a classified paper persisted into the cache.
type PaperRecord struct {
	ID         string
	Title      string
	Authors    string
	Abstract   string
	Published  time.Time
	PDFURL     string
	Categories []string
	Comment    string
	Conference string
	Year       string
	Confidence float64
	FetchedAt  time.Time
}

// ConferenceStats is the aggregate row kept per conference.
type ConferenceStats struct {
	Conference    string
	TotalPapers   int
	AvgConfidence float64
	LastUpdated   time.Time
}

// ConferenceBreakdown is a live confidence distribution for one conference.
type ConferenceBreakdown struct {
	Conference       string
	Total            int
	AvgConfidence    float64
	MinConfidence    float64
	MaxConfidence    float64
	HighConfidence   int
	MediumConfidence int
	LowConfidence    int
}

// Confidence bands used by run statistics and breakdowns.
const (
	HighConfidenceFloor   = 0.9
	MediumConfidenceFloor = 0.75
)

// ConfidenceBand names the band a confidence value falls in.
func ConfidenceBand(confidence float64) string {
	switch {
	case confidence >= HighConfidenceFloor:
		return "high"
	case confidence >= MediumConfidenceFloor:
		return "medium"
	default:
		return "low"
	}
}

// RunStats summarizes one fetch-classify-upsert cycle.
type RunStats struct {
	RunID            string
	TotalFetched     int
	Matched          int
	HighConfidence   int
	MediumConfidence int
	LowConfidence    int
	Unmatched        int
	Duplicates       int
	Skipped          int
	Stored           int
	FailedCategories []string
}

// Record counts a classified paper into the matched buckets.
func (s *RunStats) Record(confidence float64) {
	s.Matched++
	switch ConfidenceBand(confidence) {
	case "high":
		s.HighConfidence++
	case "medium":
		s.MediumConfidence++
	default:
		s.LowConfidence++
	}
}

// SortOrder enumerates the upstream orderings we request.
type SortOrder string

const (
	SortSubmittedDesc SortOrder = "submittedDate:descending"
	SortRelevance     SortOrder = "relevance"
)

// SearchQuery describes one upstream search. Either Category or Terms is set.
type SearchQuery struct {
	Category   string
	Terms      string
	MaxResults int
	Sort       SortOrder
}
