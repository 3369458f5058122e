package usecase

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PaperScanner/internal/conference"
	"PaperScanner/internal/domain"
	"PaperScanner/internal/infrastructure/storage"
)

func newClassifier() *conference.Classifier {
	return conference.NewClassifier(conference.NewMatcher(conference.DefaultRegistry(), conference.DefaultThreshold), fixedClock)
}

func entry(id, title, abstract, comment string, ageDays int) domain.RawEntry {
	return domain.RawEntry{
		ID:         id,
		Title:      title,
		Authors:    []string{"Ada Lovelace", "Alan Turing"},
		Summary:    abstract,
		Published:  testNow.AddDate(0, 0, -ageDays),
		PDFURL:     "https://arxiv.org/pdf/" + id,
		Categories: []string{"cs.LG"},
		Comment:    comment,
	}
}

var (
	neuripsEntry   = entry("2602.00001", "Graph transformers at scale", "We propose a new method.", "To appear in NeurIPS 2025", 1)
	unmatchedEntry = entry("2602.00002", "A study of graph transformers", "We propose a new method.", "", 1)
	staleEntry     = entry("2601.00003", "Graph transformers at scale", "", "Accepted at ICML 2024", 30)
	iclrEntry      = entry("2602.00004", "ICLR 2023 reproducibility report", "", "", 2)
)

func newPipeline(src *fakeSource, store *fakeStore, obs *fakeObserver, categories ...string) *Pipeline {
	return NewPipeline(PipelineDeps{
		Source:            src,
		Store:             store,
		Classifier:        newClassifier(),
		Venues:            newClassifier().Matcher(),
		Metrics:           obs,
		Clock:             fixedClock,
		Categories:        categories,
		MaxResults:        5,
		DaysBack:          7,
		RetentionDays:     90,
		LegacyConferences: []string{"CRYPTO", "EUROCRYPT"},
	})
}

func TestRefreshClassifiesAndStoresOneBatch(t *testing.T) {
	t.Parallel()

	src := &fakeSource{entries: map[string][]domain.RawEntry{
		"cs.AI": {neuripsEntry, unmatchedEntry, staleEntry},
		"cs.LG": {neuripsEntry, iclrEntry},
	}}
	store := &fakeStore{}
	obs := &fakeObserver{}

	stats, err := newPipeline(src, store, obs, "cs.AI", "cs.LG").Refresh(context.Background())
	require.NoError(t, err)

	assert.NotEmpty(t, stats.RunID)
	assert.Equal(t, 5, stats.TotalFetched)
	assert.Equal(t, 1, stats.Duplicates)
	assert.Equal(t, 1, stats.Skipped)
	assert.Equal(t, 1, stats.Unmatched)
	assert.Equal(t, 2, stats.Matched)
	assert.Equal(t, 2, stats.HighConfidence)
	assert.Equal(t, 2, stats.Stored)
	assert.Empty(t, stats.FailedCategories)

	require.Len(t, store.upserts, 1)
	batch := store.upserts[0]
	require.Len(t, batch, 2)
	assert.Equal(t, domain.PaperRecord{
		ID:         neuripsEntry.ID,
		Title:      neuripsEntry.Title,
		Authors:    "Ada Lovelace, Alan Turing",
		Abstract:   neuripsEntry.Summary,
		Published:  neuripsEntry.Published,
		PDFURL:     neuripsEntry.PDFURL,
		Categories: []string{"cs.LG"},
		Comment:    neuripsEntry.Comment,
		Conference: "NeurIPS",
		Year:       "2025",
		Confidence: 1.0,
		FetchedAt:  testNow,
	}, batch[0])
	assert.Equal(t, "ICLR", batch[1].Conference)
	assert.Equal(t, "2023", batch[1].Year)

	for _, q := range src.queries {
		assert.Equal(t, 5, q.MaxResults)
		assert.Equal(t, domain.SortSubmittedDesc, q.Sort)
	}
	require.Len(t, obs.runs, 1)
	assert.Equal(t, stats, obs.runs[0])
}

func TestRefreshIsolatesCategoryFailure(t *testing.T) {
	t.Parallel()

	src := &fakeSource{
		entries: map[string][]domain.RawEntry{
			"cs.AI": {neuripsEntry},
			"cs.LG": {iclrEntry},
		},
		errs: map[string]error{"cs.CR": errors.New("connection reset")},
	}
	store := &fakeStore{}
	obs := &fakeObserver{}

	stats, err := newPipeline(src, store, obs, "cs.AI", "cs.CR", "cs.LG").Refresh(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"cs.CR"}, stats.FailedCategories)
	assert.Equal(t, []string{"cs.CR"}, obs.failed)
	assert.Equal(t, 2, stats.Stored)
	require.Len(t, src.queries, 3)
}

func TestRefreshWithoutMatchesSkipsStore(t *testing.T) {
	t.Parallel()

	src := &fakeSource{entries: map[string][]domain.RawEntry{"cs.AI": {unmatchedEntry}}}
	store := &fakeStore{}

	stats, err := newPipeline(src, store, &fakeObserver{}, "cs.AI").Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Unmatched)
	assert.Empty(t, store.operations())
}

func TestRefreshReturnsStoreError(t *testing.T) {
	t.Parallel()

	src := &fakeSource{entries: map[string][]domain.RawEntry{"cs.AI": {neuripsEntry}}}
	store := &fakeStore{failOps: map[string]error{"upsert": errors.New("disk full")}}
	obs := &fakeObserver{}

	_, err := newPipeline(src, store, obs, "cs.AI").Refresh(context.Background())
	require.Error(t, err)
	assert.Equal(t, 1, obs.failures)
	assert.Empty(t, obs.runs)
}

func TestRefreshStopsWhenCancelled(t *testing.T) {
	t.Parallel()

	src := &fakeSource{entries: map[string][]domain.RawEntry{"cs.AI": {neuripsEntry}}}
	store := &fakeStore{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newPipeline(src, store, &fakeObserver{}, "cs.AI", "cs.LG").Refresh(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, src.queries)
	assert.Empty(t, store.operations())
}

func TestSmartRefreshPurgesBeforeFetching(t *testing.T) {
	t.Parallel()

	src := &fakeSource{entries: map[string][]domain.RawEntry{"cs.AI": {neuripsEntry}}}
	store := &fakeStore{failOps: map[string]error{"purge_conference:CRYPTO": errors.New("locked")}}

	stats, err := newPipeline(src, store, &fakeObserver{}, "cs.AI").SmartRefresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Stored)
	assert.Equal(t, []string{
		"purge_conference:CRYPTO",
		"purge_conference:EUROCRYPT",
		"purge_expired:90",
		"upsert",
	}, store.operations())
}

func TestSearchConference(t *testing.T) {
	t.Parallel()

	icmlEntry := entry("2602.00009", "Graph transformers at scale", "", "Accepted at ICML 2024", 400)
	src := &fakeSource{entries: map[string][]domain.RawEntry{
		"NeurIPS": {neuripsEntry, icmlEntry},
		"NIPS":    {neuripsEntry},
	}}
	store := &fakeStore{}

	name, stats, err := newPipeline(src, store, &fakeObserver{}).SearchConference(context.Background(), "neurips 2025")
	require.NoError(t, err)
	assert.Equal(t, "NeurIPS", name)
	assert.Equal(t, 1, stats.Stored)
	assert.Equal(t, 1, stats.Duplicates)
	assert.Equal(t, 1, stats.Unmatched)

	var terms []string
	for _, q := range src.queries {
		terms = append(terms, q.Terms)
		assert.Equal(t, domain.SortSubmittedDesc, q.Sort)
	}
	assert.Equal(t, []string{"NeurIPS", "NIPS", "Neural Information Processing Systems"}, terms)

	_, _, err = newPipeline(src, store, &fakeObserver{}).SearchConference(context.Background(), "weather report")
	assert.ErrorIs(t, err, domain.ErrUnknownConference)
}

func TestRefreshEndToEnd(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	repo, err := storage.OpenSQLite(ctx, filepath.Join(t.TempDir(), "papers.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })

	src := &fakeSource{entries: map[string][]domain.RawEntry{"cs.LG": {neuripsEntry}}}
	pipeline := NewPipeline(PipelineDeps{
		Source:     src,
		Store:      repo,
		Classifier: newClassifier(),
		Clock:      fixedClock,
		Categories: []string{"cs.LG"},
		MaxResults: 5,
	})

	stats, err := pipeline.Refresh(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Stored)

	sample, err := NewCatalog(repo, nil).Sample(ctx, 5, 0.8)
	require.NoError(t, err)
	require.Len(t, sample, 1)
	assert.Equal(t, "NeurIPS", sample[0].Conference)
	assert.Greater(t, sample[0].Confidence, 0.8)
	assert.Equal(t, "2025", sample[0].Year)
	assert.Equal(t, neuripsEntry.ID, sample[0].ID)
}

func TestRefreshNotifiesOnlyWhenStored(t *testing.T) {
	t.Parallel()

	notifier := &fakeNotifier{err: errors.New("telegram error: 502 Bad Gateway")}
	newNotifying := func(src *fakeSource) *Pipeline {
		return NewPipeline(PipelineDeps{
			Source:     src,
			Store:      &fakeStore{},
			Classifier: newClassifier(),
			Notifier:   notifier,
			Clock:      fixedClock,
			Categories: []string{"cs.LG"},
			MaxResults: 5,
		})
	}

	stats, err := newNotifying(&fakeSource{entries: map[string][]domain.RawEntry{
		"cs.LG": {neuripsEntry},
	}}).Refresh(context.Background())
	require.NoError(t, err, "notification failure must not fail the run")
	require.Len(t, notifier.runs, 1)
	assert.Equal(t, stats, notifier.runs[0])

	_, err = newNotifying(&fakeSource{entries: map[string][]domain.RawEntry{
		"cs.LG": {unmatchedEntry},
	}}).Refresh(context.Background())
	require.NoError(t, err)
	assert.Len(t, notifier.runs, 1)
}
