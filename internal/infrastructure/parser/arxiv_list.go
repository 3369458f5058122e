package parser

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/time/rate"

	"PaperScanner/internal/domain"
	"PaperScanner/internal/scanner"
)

const (
	// ArxivListName identifies the listing-page strategy in the scanner registry.
	ArxivListName = "arxiv-list"

	arxivBaseURL = "https://arxiv.org"
)

var (
	dateExpr    = regexp.MustCompile(`\d{1,2} [A-Za-z]{3} \d{4}`)
	subjectExpr = regexp.MustCompile(`\(([a-z\-]+(?:\.[A-Za-z\-]+)?)\)`)
)

// ArxivListScanner crawls the /list/<category>/recent pages, newest first.
type ArxivListScanner struct {
	client   *http.Client
	baseURL  string
	pageSize int
	limiter  *rate.Limiter
	now      func() time.Time
}

var _ scanner.Scanner = (*ArxivListScanner)(nil)

// NewArxivListScanner wires an HTTP client; pageSize defaults to 200.
func NewArxivListScanner(client *http.Client, baseURL string, interval time.Duration) *ArxivListScanner {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	if baseURL == "" {
		baseURL = arxivBaseURL
	}
	limiter := rate.NewLimiter(rate.Inf, 1)
	if interval > 0 {
		limiter = rate.NewLimiter(rate.Every(interval), 1)
	}
	return &ArxivListScanner{
		client:   client,
		baseURL:  strings.TrimSuffix(baseURL, "/"),
		pageSize: 200,
		limiter:  limiter,
		now:      time.Now,
	}
}

func (a *ArxivListScanner) Name() string {
	return ArxivListName
}

// Search pages through the recent listing of query.Category until MaxResults entries are collected.
// Listing pages cannot be searched by free text.
func (a *ArxivListScanner) Search(ctx context.Context, query domain.SearchQuery) ([]domain.RawEntry, error) {
	if query.Category == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "arxiv list", fmt.Errorf("category required"))
	}
	if query.Terms != "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "arxiv list", fmt.Errorf("term search is not supported"))
	}
	limit := query.MaxResults
	if limit <= 0 {
		limit = a.pageSize
	}

	var results []domain.RawEntry
	for skip := 0; len(results) < limit; skip += a.pageSize {
		pageURL, err := buildPageURL(a.baseURL+"/list/"+query.Category+"/recent", skip, min(a.pageSize, limit))
		if err != nil {
			return nil, fmt.Errorf("category %s: %w", query.Category, err)
		}
		if err := a.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit: %w", err)
		}
		doc, err := a.fetchDocument(ctx, pageURL)
		if err != nil {
			return nil, fmt.Errorf("category %s: %w", query.Category, err)
		}

		page := a.extractEntries(doc)
		for _, entry := range page {
			if len(results) == limit {
				break
			}
			results = append(results, entry)
		}
		if len(page) < min(a.pageSize, limit) {
			break
		}
	}
	return results, nil
}

func (a *ArxivListScanner) fetchDocument(ctx context.Context, pageURL string) (*goquery.Document, error) {
	resp, err := get(ctx, a.client, pageURL)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}
	return doc, nil
}

// extractEntries walks the listing in document order; day headings (h3) date the entries below them.
func (a *ArxivListScanner) extractEntries(doc *goquery.Document) []domain.RawEntry {
	var (
		collected []domain.RawEntry
		day       time.Time
	)
	doc.Find("dl").Children().Each(func(_ int, node *goquery.Selection) {
		switch goquery.NodeName(node) {
		case "h3":
			if parsed, ok := parseDate(node.Text()); ok {
				day = parsed
			}
		case "dt":
			entry, ok := a.parseEntry(node, node.Next(), day)
			if ok {
				collected = append(collected, entry)
			}
		}
	})
	// headings may also sit outside the dl
	fallback, ok := parseDate(doc.Find("h3").First().Text())
	if !ok {
		fallback = a.now().UTC().Truncate(24 * time.Hour)
	}
	for i := range collected {
		if collected[i].Published.IsZero() {
			collected[i].Published = fallback
		}
	}
	return collected
}

func (a *ArxivListScanner) parseEntry(dt, dd *goquery.Selection, day time.Time) (domain.RawEntry, bool) {
	link := dt.Find(`a[href*="/abs/"]`).First()
	id := shortID(link.Text())
	if id == "" {
		href, _ := link.Attr("href")
		id = shortID(href)
	}
	if id == "" {
		return domain.RawEntry{}, false
	}

	entry := domain.RawEntry{
		ID:      id,
		Title:   squash(strings.TrimPrefix(squash(dd.Find(".list-title").First().Text()), "Title:")),
		Summary: squash(strings.TrimPrefix(squash(dd.Find("p.mathjax").First().Text()), "Abstract:")),
		Comment: squash(strings.TrimPrefix(squash(dd.Find(".list-comments").First().Text()), "Comments:")),
		PDFURL:  a.baseURL + "/pdf/" + id,
	}
	dd.Find(".list-authors a").Each(func(_ int, s *goquery.Selection) {
		if name := squash(s.Text()); name != "" {
			entry.Authors = append(entry.Authors, name)
		}
	})
	for _, m := range subjectExpr.FindAllStringSubmatch(dd.Find(".list-subjects").First().Text(), -1) {
		entry.Categories = append(entry.Categories, m[1])
	}

	dateText := dd.Find(".list-date").First().Text()
	if strings.TrimSpace(dateText) == "" {
		dateText = dd.Find(".list-dateline").First().Text()
	}
	if parsed, ok := parseDate(dateText); ok {
		entry.Published = parsed
	} else {
		entry.Published = day
	}
	return entry, true
}

func parseDate(text string) (time.Time, bool) {
	match := dateExpr.FindString(text)
	if match == "" {
		return time.Time{}, false
	}
	parsed, err := time.Parse("2 Jan 2006", match)
	if err != nil {
		return time.Time{}, false
	}
	return parsed, true
}

func buildPageURL(base string, skip, pageSize int) (string, error) {
	parsed, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid category url %s: %w", base, err)
	}

	query := parsed.Query()
	query.Set("skip", strconv.Itoa(skip))
	query.Set("show", strconv.Itoa(pageSize))
	parsed.RawQuery = query.Encode()
	return parsed.String(), nil
}
