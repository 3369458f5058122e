package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"PaperScanner/internal/domain"
)

var testNow = time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return testNow }

type fakeSource struct {
	mu      sync.Mutex
	entries map[string][]domain.RawEntry
	errs    map[string]error
	queries []domain.SearchQuery
}

func (f *fakeSource) Search(_ context.Context, q domain.SearchQuery) ([]domain.RawEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, q)
	key := q.Category
	if key == "" {
		key = q.Terms
	}
	if err := f.errs[key]; err != nil {
		return nil, err
	}
	return f.entries[key], nil
}

type fakeStore struct {
	mu       sync.Mutex
	ops      []string
	upserts  [][]domain.PaperRecord
	failOps  map[string]error
	samples  []domain.PaperRecord
	removals int64
}

func (f *fakeStore) record(op string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ops = append(f.ops, op)
	for prefix, err := range f.failOps {
		if len(op) >= len(prefix) && op[:len(prefix)] == prefix {
			return err
		}
	}
	return nil
}

func (f *fakeStore) Upsert(_ context.Context, records []domain.PaperRecord) (int, error) {
	if err := f.record("upsert"); err != nil {
		return 0, err
	}
	f.mu.Lock()
	f.upserts = append(f.upserts, append([]domain.PaperRecord(nil), records...))
	f.mu.Unlock()
	return len(records), nil
}

func (f *fakeStore) RecomputeStats(context.Context) error { return f.record("recompute") }

func (f *fakeStore) SampleRandom(_ context.Context, n int, _ float64) ([]domain.PaperRecord, error) {
	if err := f.record("sample"); err != nil {
		return nil, err
	}
	return f.samples[:min(n, len(f.samples))], nil
}

func (f *fakeStore) PurgeExpired(_ context.Context, days int) (int64, error) {
	if err := f.record(fmt.Sprintf("purge_expired:%d", days)); err != nil {
		return 0, err
	}
	return f.removals, nil
}

func (f *fakeStore) PurgeConference(_ context.Context, name string) (int64, error) {
	if err := f.record("purge_conference:" + name); err != nil {
		return 0, err
	}
	return f.removals, nil
}

func (f *fakeStore) Wipe(_ context.Context, confirm bool) error {
	if !confirm {
		return domain.ErrNotConfirmed
	}
	return f.record("wipe")
}

func (f *fakeStore) Stats(context.Context) ([]domain.ConferenceStats, error) {
	if err := f.record("stats"); err != nil {
		return nil, err
	}
	return []domain.ConferenceStats{{Conference: "ICML", TotalPapers: 1, AvgConfidence: 1}}, nil
}

func (f *fakeStore) Breakdown(context.Context) ([]domain.ConferenceBreakdown, error) {
	if err := f.record("breakdown"); err != nil {
		return nil, err
	}
	return nil, nil
}

func (f *fakeStore) operations() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.ops...)
}

type fakeObserver struct {
	runs     []domain.RunStats
	failed   []string
	failures int
}

func (f *fakeObserver) ObserveRun(stats domain.RunStats, _ time.Duration) { f.runs = append(f.runs, stats) }
func (f *fakeObserver) RunFailed(time.Duration) { f.failures++ }
func (f *fakeObserver) CategoryFailed(category string) { f.failed = append(f.failed, category) }

type fakeNotifier struct {
	runs []domain.RunStats
	err  error
}

func (f *fakeNotifier) NotifyRun(_ context.Context, stats domain.RunStats) error {
	f.runs = append(f.runs, stats)
	return f.err
}
