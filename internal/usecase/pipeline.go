package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"PaperScanner/internal/domain"
	"PaperScanner/internal/ports"
)

// PipelineDeps wires all driven adapters into the orchestration pipeline.
type PipelineDeps struct {
	Source     ports.EntrySource
	Store      ports.PaperStore
	Classifier ports.PaperClassifier
	Venues     ports.VenueResolver
	Metrics    ports.RunObserver
	Notifier   ports.RunNotifier
	Logger     *slog.Logger
	Clock      func() time.Time

	Categories []string
	// MaxResults bounds each category request.
	MaxResults int
	// DaysBack skips entries published earlier; zero keeps everything.
	DaysBack int
	// RetentionDays is the expiry applied by SmartRefresh; zero disables it.
	RetentionDays     int
	LegacyConferences []string
	SearchMaxResults  int
}

// Pipeline implements the fetch-classify-store workflow.
type Pipeline struct {
	source     ports.EntrySource
	store      ports.PaperStore
	classifier ports.PaperClassifier
	venues     ports.VenueResolver
	metrics    ports.RunObserver
	notifier   ports.RunNotifier
	logger     *slog.Logger
	now        func() time.Time

	categories        []string
	maxResults        int
	daysBack          int
	retentionDays     int
	legacyConferences []string
	searchMaxResults  int

	// serializes scheduled and manual runs
	mu sync.Mutex
}

// NewPipeline constructs the orchestration component.
func NewPipeline(deps PipelineDeps) *Pipeline {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	searchMax := deps.SearchMaxResults
	if searchMax <= 0 {
		searchMax = 20
	}
	return &Pipeline{
		source:            deps.Source,
		store:             deps.Store,
		classifier:        deps.Classifier,
		venues:            deps.Venues,
		metrics:           deps.Metrics,
		notifier:          deps.Notifier,
		logger:            logger.With("component", "pipeline"),
		now:               clock,
		categories:        append([]string(nil), deps.Categories...),
		maxResults:        deps.MaxResults,
		daysBack:          deps.DaysBack,
		retentionDays:     deps.RetentionDays,
		legacyConferences: append([]string(nil), deps.LegacyConferences...),
		searchMaxResults:  searchMax,
	}
}

// Refresh fetches every configured category, classifies the entries and stores accepted papers in one batch.
// A failing category is logged and recorded in the stats; only a store failure fails the run.
func (p *Pipeline) Refresh(ctx context.Context) (domain.RunStats, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.refresh(ctx)
}

// SmartRefresh purges legacy conferences, then expired papers, then refreshes.
// Purge failures are logged and do not prevent the refresh.
func (p *Pipeline) SmartRefresh(ctx context.Context) (domain.RunStats, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.store != nil {
		for _, name := range p.legacyConferences {
			removed, err := p.store.PurgeConference(ctx, name)
			if err != nil {
				p.logger.Error("purge legacy conference failed", "conference", name, "error", err)
				continue
			}
			if removed > 0 {
				p.logger.Info("purged legacy conference", "conference", name, "removed", removed)
			}
		}
		if p.retentionDays > 0 {
			removed, err := p.store.PurgeExpired(ctx, p.retentionDays)
			if err != nil {
				p.logger.Error("purge expired failed", "retention_days", p.retentionDays, "error", err)
			} else if removed > 0 {
				p.logger.Info("purged expired papers", "retention_days", p.retentionDays, "removed", removed)
			}
		}
	}
	return p.refresh(ctx)
}

// SearchConference looks a single venue up by every name it is known by and stores
// the results the classifier assigns to that venue.
func (p *Pipeline) SearchConference(ctx context.Context, query string) (string, domain.RunStats, error) {
	if p.venues == nil || p.source == nil {
		return "", domain.RunStats{}, fmt.Errorf("venue search is not configured")
	}
	name, ok := p.venues.Resolve(query)
	if !ok {
		return "", domain.RunStats{}, domain.WrapError(domain.ErrUnknownConference, "search conference", fmt.Errorf("%q", query))
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	log, stats := p.startRun("search")
	log = log.With("conference", name)
	start := p.now()
	acc := newBatch(p.now())

	for _, term := range p.venues.SearchTerms(name) {
		if err := ctx.Err(); err != nil {
			break
		}
		entries, err := p.source.Search(ctx, domain.SearchQuery{
			Terms:      term,
			MaxResults: p.searchMaxResults,
			Sort:       domain.SortSubmittedDesc,
		})
		if err != nil {
			log.Error("term search failed", "term", term, "error", err)
			stats.FailedCategories = append(stats.FailedCategories, term)
			continue
		}
		acc.add(p.classify(entries, acc, &stats, time.Time{}, name))
	}
	err := p.finish(ctx, log, acc, &stats, start)
	return name, stats, err
}

func (p *Pipeline) refresh(ctx context.Context) (domain.RunStats, error) {
	log, stats := p.startRun("refresh")
	start := p.now()
	if p.source == nil {
		return stats, fmt.Errorf("entry source is not configured")
	}

	var cutoff time.Time
	if p.daysBack > 0 {
		cutoff = start.AddDate(0, 0, -p.daysBack)
	}
	acc := newBatch(start)

	for _, category := range p.categories {
		if err := ctx.Err(); err != nil {
			log.Warn("run cancelled, skipping remaining categories", "next_category", category)
			break
		}
		entries, err := p.source.Search(ctx, domain.SearchQuery{
			Category:   category,
			MaxResults: p.maxResults,
			Sort:       domain.SortSubmittedDesc,
		})
		if err != nil {
			log.Error("category fetch failed", "category", category, "error", err)
			stats.FailedCategories = append(stats.FailedCategories, category)
			if p.metrics != nil {
				p.metrics.CategoryFailed(category)
			}
			continue
		}
		accepted := p.classify(entries, acc, &stats, cutoff, "")
		log.Debug("category processed", "category", category, "fetched", len(entries), "accepted", len(accepted))
		acc.add(accepted)
	}
	err := p.finish(ctx, log, acc, &stats, start)
	return stats, err
}

func (p *Pipeline) startRun(kind string) (*slog.Logger, domain.RunStats) {
	runID := uuid.NewString()
	log := p.logger.With("run_id", runID, "run", kind)
	log.Info("run started")
	return log, domain.RunStats{RunID: runID}
}

// classify filters one response: duplicates, entries older than cutoff and unmatched papers are counted and dropped.
// When only is set, papers assigned elsewhere count as unmatched.
func (p *Pipeline) classify(entries []domain.RawEntry, b *batch, stats *domain.RunStats, cutoff time.Time, only string) []domain.PaperRecord {
	var accepted []domain.PaperRecord
	for _, entry := range entries {
		stats.TotalFetched++
		if b.seen(entry.ID) {
			stats.Duplicates++
			continue
		}
		if !cutoff.IsZero() && !entry.Published.IsZero() && entry.Published.Before(cutoff) {
			stats.Skipped++
			continue
		}

		match, ok := p.classifier.Classify(entry.Title, entry.Summary, entry.Comment)
		if !ok || (only != "" && match.Conference != only) {
			stats.Unmatched++
			continue
		}
		stats.Record(match.Confidence)
		accepted = append(accepted, toRecord(entry, match, b.fetchedAt))
	}
	return accepted
}

func (p *Pipeline) finish(ctx context.Context, log *slog.Logger, b *batch, stats *domain.RunStats, start time.Time) error {
	if err := ctx.Err(); err != nil {
		log.Warn("run cancelled before storing", "pending", len(b.records))
		return err
	}

	if len(b.records) > 0 {
		if p.store == nil {
			return fmt.Errorf("paper store is not configured")
		}
		stored, err := p.store.Upsert(ctx, b.records)
		if err != nil {
			if p.metrics != nil {
				p.metrics.RunFailed(p.now().Sub(start))
			}
			log.Error("store batch failed", "records", len(b.records), "error", err)
			return fmt.Errorf("store batch: %w", err)
		}
		stats.Stored = stored
	}

	elapsed := p.now().Sub(start)
	if p.metrics != nil {
		p.metrics.ObserveRun(*stats, elapsed)
	}
	log.Info("run finished",
		"fetched", stats.TotalFetched,
		"matched", stats.Matched,
		"high", stats.HighConfidence,
		"medium", stats.MediumConfidence,
		"low", stats.LowConfidence,
		"unmatched", stats.Unmatched,
		"duplicates", stats.Duplicates,
		"skipped", stats.Skipped,
		"stored", stats.Stored,
		"failed", strings.Join(stats.FailedCategories, ","),
		"duration", elapsed,
	)

	// only runs that changed the cache are announced
	if p.notifier != nil && stats.Stored > 0 {
		if err := p.notifier.NotifyRun(ctx, *stats); err != nil {
			log.Warn("run notification failed", "error", err)
		}
	}
	return nil
}

// batch accumulates accepted records and the ids already seen during one run.
type batch struct {
	fetchedAt time.Time
	ids       map[string]struct{}
	records   []domain.PaperRecord
}

func newBatch(now time.Time) *batch {
	return &batch{fetchedAt: now, ids: map[string]struct{}{}}
}

func (b *batch) seen(id string) bool {
	if _, ok := b.ids[id]; ok {
		return true
	}
	b.ids[id] = struct{}{}
	return false
}

func (b *batch) add(records []domain.PaperRecord) {
	b.records = append(b.records, records...)
}

func toRecord(entry domain.RawEntry, match domain.MatchResult, fetchedAt time.Time) domain.PaperRecord {
	return domain.PaperRecord{
		ID:         entry.ID,
		Title:      entry.Title,
		Authors:    strings.Join(entry.Authors, ", "),
		Abstract:   entry.Summary,
		Published:  entry.Published,
		PDFURL:     entry.PDFURL,
		Categories: append([]string(nil), entry.Categories...),
		Comment:    entry.Comment,
		Conference: match.Conference,
		Year:       match.Year,
		Confidence: match.Confidence,
		FetchedAt:  fetchedAt,
	}
}
