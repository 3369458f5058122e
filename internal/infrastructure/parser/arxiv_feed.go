package parser

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
	"golang.org/x/time/rate"

	"PaperScanner/internal/domain"
	"PaperScanner/internal/scanner"
)

const (
	// ArxivFeedName identifies the Atom API strategy in the scanner registry.
	ArxivFeedName = "arxiv-api"

	arxivAPIURL = "https://export.arxiv.org/api/query"
)

// ArxivFeedScanner queries the arXiv Atom API.
type ArxivFeedScanner struct {
	client  *http.Client
	baseURL string
	limiter *rate.Limiter
	parser  *gofeed.Parser
}

var _ scanner.Scanner = (*ArxivFeedScanner)(nil)

// NewArxivFeedScanner allows one request per interval; arXiv asks for three seconds between calls.
// A zero interval disables throttling.
func NewArxivFeedScanner(client *http.Client, baseURL string, interval time.Duration) *ArxivFeedScanner {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if baseURL == "" {
		baseURL = arxivAPIURL
	}
	limiter := rate.NewLimiter(rate.Inf, 1)
	if interval > 0 {
		limiter = rate.NewLimiter(rate.Every(interval), 1)
	}
	return &ArxivFeedScanner{
		client:  client,
		baseURL: baseURL,
		limiter: limiter,
		parser:  gofeed.NewParser(),
	}
}

func (a *ArxivFeedScanner) Name() string {
	return ArxivFeedName
}

// Search fetches one page of results for a category and/or free-text terms.
func (a *ArxivFeedScanner) Search(ctx context.Context, query domain.SearchQuery) ([]domain.RawEntry, error) {
	target, err := a.buildURL(query)
	if err != nil {
		return nil, err
	}
	if err := a.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit: %w", err)
	}

	resp, err := get(ctx, a.client, target)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	feed, err := a.parser.Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}

	entries := make([]domain.RawEntry, 0, len(feed.Items))
	for _, item := range feed.Items {
		if entry, ok := toRawEntry(item); ok {
			entries = append(entries, entry)
		}
	}
	return entries, nil
}

func (a *ArxivFeedScanner) buildURL(query domain.SearchQuery) (string, error) {
	var clauses []string
	if query.Category != "" {
		clauses = append(clauses, "cat:"+query.Category)
	}
	if terms := strings.TrimSpace(query.Terms); terms != "" {
		clauses = append(clauses, `all:"`+strings.ReplaceAll(terms, `"`, "")+`"`)
	}
	if len(clauses) == 0 {
		return "", domain.WrapError(domain.ErrInvalidInput, "arxiv search", fmt.Errorf("category or terms required"))
	}

	parsed, err := url.Parse(a.baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid api url %s: %w", a.baseURL, err)
	}
	limit := query.MaxResults
	if limit <= 0 {
		limit = 10
	}
	values := parsed.Query()
	values.Set("search_query", strings.Join(clauses, " AND "))
	values.Set("start", "0")
	values.Set("max_results", strconv.Itoa(limit))
	if field, order, ok := strings.Cut(string(query.Sort), ":"); ok {
		values.Set("sortBy", field)
		values.Set("sortOrder", order)
	} else if query.Sort != "" {
		values.Set("sortBy", string(query.Sort))
	}
	parsed.RawQuery = values.Encode()
	return parsed.String(), nil
}

func toRawEntry(item *gofeed.Item) (domain.RawEntry, bool) {
	id := shortID(item.GUID)
	if id == "" {
		id = shortID(item.Link)
	}
	if id == "" {
		return domain.RawEntry{}, false
	}

	entry := domain.RawEntry{
		ID:         id,
		Title:      squash(item.Title),
		Summary:    squash(item.Description),
		Categories: append([]string(nil), item.Categories...),
		Comment:    squash(extensionValue(item, "arxiv", "comment")),
	}
	for _, author := range item.Authors {
		if author != nil && author.Name != "" {
			entry.Authors = append(entry.Authors, squash(author.Name))
		}
	}
	switch {
	case item.PublishedParsed != nil:
		entry.Published = item.PublishedParsed.UTC()
	case item.UpdatedParsed != nil:
		entry.Published = item.UpdatedParsed.UTC()
	}
	for _, link := range item.Links {
		if strings.Contains(link, "/pdf/") {
			entry.PDFURL = link
			break
		}
	}
	if entry.PDFURL == "" {
		entry.PDFURL = "https://arxiv.org/pdf/" + id
	}
	return entry, true
}

func extensionValue(item *gofeed.Item, prefix, name string) string {
	values := item.Extensions[prefix][name]
	if len(values) == 0 {
		return ""
	}
	return values[0].Value
}
