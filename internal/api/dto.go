package api

import (
	"time"

	"PaperScanner/internal/domain"
)

type paperResponse struct {
	ID         string   `json:"id"`
	Title      string   `json:"title"`
	Authors    string   `json:"authors"`
	Abstract   string   `json:"abstract"`
	Published  string   `json:"published,omitempty"`
	PDFURL     string   `json:"pdf_url"`
	Categories []string `json:"categories"`
	Comment    string   `json:"comment,omitempty"`
	Conference string   `json:"conference"`
	Year       string   `json:"conference_year"`
	Confidence float64  `json:"confidence"`
	FetchedAt  string   `json:"fetched_date,omitempty"`
}

type statsResponse struct {
	Conference    string  `json:"conference"`
	TotalPapers   int     `json:"total_papers"`
	AvgConfidence float64 `json:"avg_confidence"`
	LastUpdated   string  `json:"last_updated,omitempty"`
}

type breakdownResponse struct {
	Conference    string  `json:"conference"`
	Total         int     `json:"total"`
	AvgConfidence float64 `json:"avg_confidence"`
	MinConfidence float64 `json:"min_confidence"`
	MaxConfidence float64 `json:"max_confidence"`
	High          int     `json:"high_confidence"`
	Medium        int     `json:"medium_confidence"`
	Low           int     `json:"low_confidence"`
}

type runResponse struct {
	RunID            string   `json:"run_id"`
	Conference       string   `json:"conference,omitempty"`
	TotalFetched     int      `json:"total_fetched"`
	Matched          int      `json:"matched"`
	HighConfidence   int      `json:"high_confidence"`
	MediumConfidence int      `json:"medium_confidence"`
	LowConfidence    int      `json:"low_confidence"`
	Unmatched        int      `json:"unmatched"`
	Duplicates       int      `json:"duplicates"`
	Skipped          int      `json:"skipped"`
	Stored           int      `json:"stored"`
	FailedCategories []string `json:"failed_categories,omitempty"`
	Error            string   `json:"error,omitempty"`
}

type matchResponse struct {
	Conference string  `json:"conference"`
	Confidence float64 `json:"confidence"`
	Year       string  `json:"year"`
}

type searchRequest struct {
	Query string `json:"query" binding:"required"`
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(domain.DateLayout)
}

func toPaperResponses(records []domain.PaperRecord) []paperResponse {
	out := make([]paperResponse, 0, len(records))
	for _, r := range records {
		categories := r.Categories
		if categories == nil {
			categories = []string{}
		}
		out = append(out, paperResponse{
			ID:         r.ID,
			Title:      r.Title,
			Authors:    r.Authors,
			Abstract:   r.Abstract,
			Published:  formatDate(r.Published),
			PDFURL:     r.PDFURL,
			Categories: categories,
			Comment:    r.Comment,
			Conference: r.Conference,
			Year:       r.Year,
			Confidence: r.Confidence,
			FetchedAt:  formatDate(r.FetchedAt),
		})
	}
	return out
}

func toStatsResponses(stats []domain.ConferenceStats) []statsResponse {
	out := make([]statsResponse, 0, len(stats))
	for _, s := range stats {
		out = append(out, statsResponse{
			Conference:    s.Conference,
			TotalPapers:   s.TotalPapers,
			AvgConfidence: s.AvgConfidence,
			LastUpdated:   formatDate(s.LastUpdated),
		})
	}
	return out
}

func toBreakdownResponses(rows []domain.ConferenceBreakdown) []breakdownResponse {
	out := make([]breakdownResponse, 0, len(rows))
	for _, b := range rows {
		out = append(out, breakdownResponse{
			Conference:    b.Conference,
			Total:         b.Total,
			AvgConfidence: b.AvgConfidence,
			MinConfidence: b.MinConfidence,
			MaxConfidence: b.MaxConfidence,
			High:          b.HighConfidence,
			Medium:        b.MediumConfidence,
			Low:           b.LowConfidence,
		})
	}
	return out
}

func toRunResponse(stats domain.RunStats, conference string, err error) runResponse {
	resp := runResponse{
		RunID:            stats.RunID,
		Conference:       conference,
		TotalFetched:     stats.TotalFetched,
		Matched:          stats.Matched,
		HighConfidence:   stats.HighConfidence,
		MediumConfidence: stats.MediumConfidence,
		LowConfidence:    stats.LowConfidence,
		Unmatched:        stats.Unmatched,
		Duplicates:       stats.Duplicates,
		Skipped:          stats.Skipped,
		Stored:           stats.Stored,
		FailedCategories: stats.FailedCategories,
	}
	if err != nil {
		resp.Error = err.Error()
	}
	return resp
}

func toMatchResponses(results []domain.MatchResult) []matchResponse {
	out := make([]matchResponse, 0, len(results))
	for _, r := range results {
		out = append(out, matchResponse{Conference: r.Conference, Confidence: r.Confidence, Year: r.Year})
	}
	return out
}
