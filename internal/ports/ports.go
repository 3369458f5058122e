package ports

import (
	"context"
	"time"

	"PaperScanner/internal/domain"
)

// EntrySource pulls raw paper metadata from upstream providers.
type EntrySource interface {
	Search(ctx context.Context, query domain.SearchQuery) ([]domain.RawEntry, error)
}

// PaperClassifier assigns a venue to a paper, or reports that none fits.
type PaperClassifier interface {
	Classify(title, abstract, comment string) (domain.MatchResult, bool)
}

// VenueResolver maps a free-form venue query to a canonical conference and its search terms.
type VenueResolver interface {
	Resolve(query string) (string, bool)
	SearchTerms(conference string) []string
}

// PaperStore persists classified papers together with their aggregate statistics.
type PaperStore interface {
	Upsert(ctx context.Context, records []domain.PaperRecord) (int, error)
	RecomputeStats(ctx context.Context) error
	SampleRandom(ctx context.Context, n int, minConfidence float64) ([]domain.PaperRecord, error)
	PurgeExpired(ctx context.Context, retentionDays int) (int64, error)
	PurgeConference(ctx context.Context, name string) (int64, error)
	Wipe(ctx context.Context, confirm bool) error
	Stats(ctx context.Context) ([]domain.ConferenceStats, error)
	Breakdown(ctx context.Context) ([]domain.ConferenceBreakdown, error)
}

// RunObserver receives pipeline outcomes for metrics.
type RunObserver interface {
	ObserveRun(stats domain.RunStats, duration time.Duration)
	RunFailed(duration time.Duration)
	CategoryFailed(category string)
}

// RunNotifier publishes a digest of a finished run.
type RunNotifier interface {
	NotifyRun(ctx context.Context, stats domain.RunStats) error
}

// Scheduler controls when pipelines execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
