package storage

import (
	"context"
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PaperScanner/internal/domain"
)

var testNow = time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "papers.db"))
	require.NoError(t, err)
	repo.now = func() time.Time { return testNow }
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func day(s string) time.Time {
	t, err := time.Parse(domain.DateLayout, s)
	if err != nil {
		panic(err)
	}
	return t
}

func paper(id, conference string, confidence float64, published string) domain.PaperRecord {
	return domain.PaperRecord{
		ID:         id,
		Title:      "Paper " + id,
		Authors:    "Ada Lovelace, Alan Turing",
		Abstract:   "Abstract of " + id,
		Published:  day(published),
		PDFURL:     "https://arxiv.org/pdf/" + id,
		Categories: []string{"cs.LG", "cs.AI"},
		Comment:    "Accepted at " + conference,
		Conference: conference,
		Year:       "2025",
		Confidence: confidence,
	}
}

func TestUpsertIsIdempotent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo := newTestRepo(t)

	batch := []domain.PaperRecord{
		paper("2501.00001", "NeurIPS", 0.9, "2026-02-20"),
		paper("2501.00002", "NeurIPS", 1.0, "2026-02-21"),
		paper("2501.00003", "ICML", 0.8, "2026-02-22"),
	}
	for i := 0; i < 2; i++ {
		n, err := repo.Upsert(ctx, batch)
		require.NoError(t, err)
		assert.Equal(t, 3, n)
	}

	count, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	got, err := repo.Get(ctx, "2501.00001")
	require.NoError(t, err)
	want := batch[0]
	want.FetchedAt = day("2026-03-01")
	assert.Equal(t, want, got)

	stats, err := repo.Stats(ctx)
	require.NoError(t, err)
	require.Len(t, stats, 2)
	assert.Equal(t, "NeurIPS", stats[0].Conference)
	assert.Equal(t, 2, stats[0].TotalPapers)
	assert.InDelta(t, 0.95, stats[0].AvgConfidence, 1e-9)
	assert.Equal(t, day("2026-03-01"), stats[0].LastUpdated)
	assert.Equal(t, "ICML", stats[1].Conference)
	assert.Equal(t, 1, stats[1].TotalPapers)
}

func TestUpsertReplacesByID(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo := newTestRepo(t)

	_, err := repo.Upsert(ctx, []domain.PaperRecord{paper("2501.00001", "ICML", 0.8, "2026-02-20")})
	require.NoError(t, err)
	_, err = repo.Upsert(ctx, []domain.PaperRecord{paper("2501.00001", "ICLR", 0.95, "2026-02-20")})
	require.NoError(t, err)

	got, err := repo.Get(ctx, "2501.00001")
	require.NoError(t, err)
	assert.Equal(t, "ICLR", got.Conference)

	stats, err := repo.Stats(ctx)
	require.NoError(t, err)
	require.Len(t, stats, 1)
	assert.Equal(t, "ICLR", stats[0].Conference)
}

func TestUpsertRejectsInvalidBatch(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo := newTestRepo(t)

	cases := map[string]domain.PaperRecord{
		"missing conference": paper("2501.00002", "", 0.9, "2026-02-20"),
		"missing id":         paper("", "ICML", 0.9, "2026-02-20"),
		"nan confidence":     paper("2501.00003", "ICML", math.NaN(), "2026-02-20"),
	}
	for name, bad := range cases {
		_, err := repo.Upsert(ctx, []domain.PaperRecord{paper("2501.00001", "ICML", 0.9, "2026-02-20"), bad})
		assert.ErrorIs(t, err, domain.ErrInvalidInput, name)
	}

	count, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestUpsertClampsConfidence(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo := newTestRepo(t)

	_, err := repo.Upsert(ctx, []domain.PaperRecord{
		paper("2501.00001", "ICML", 1.4, "2026-02-20"),
		paper("2501.00002", "ICML", -0.2, "2026-02-20"),
	})
	require.NoError(t, err)

	high, err := repo.Get(ctx, "2501.00001")
	require.NoError(t, err)
	assert.Equal(t, 1.0, high.Confidence)

	low, err := repo.Get(ctx, "2501.00002")
	require.NoError(t, err)
	assert.Equal(t, 0.0, low.Confidence)
}

func TestGetMissing(t *testing.T) {
	t.Parallel()
	repo := newTestRepo(t)

	_, err := repo.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSampleRandomRespectsMinConfidence(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo := newTestRepo(t)

	_, err := repo.Upsert(ctx, []domain.PaperRecord{
		paper("a", "NeurIPS", 0.95, "2026-02-20"),
		paper("b", "ICML", 0.92, "2026-02-20"),
		paper("c", "ICLR", 0.8, "2026-02-20"),
		paper("d", "CVPR", 0.7, "2026-02-20"),
	})
	require.NoError(t, err)

	sample, err := repo.SampleRandom(ctx, 5, 0.9)
	require.NoError(t, err)
	assert.Len(t, sample, 2)
	for _, p := range sample {
		assert.GreaterOrEqual(t, p.Confidence, 0.9)
	}

	sample, err = repo.SampleRandom(ctx, 2, 0)
	require.NoError(t, err)
	assert.Len(t, sample, 2)

	sample, err = repo.SampleRandom(ctx, 0, 0)
	require.NoError(t, err)
	assert.NotNil(t, sample)
	assert.Empty(t, sample)

	sample, err = repo.SampleRandom(ctx, 5, 0.99)
	require.NoError(t, err)
	assert.Empty(t, sample)
}

func TestPurgeExpired(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo := newTestRepo(t)

	_, err := repo.Upsert(ctx, []domain.PaperRecord{
		paper("fresh", "NeurIPS", 0.9, "2026-02-20"),
		paper("edge", "NeurIPS", 0.9, "2026-01-30"),
		paper("stale", "NeurIPS", 0.9, "2026-01-29"),
		paper("ancient", "ICML", 0.9, "2025-06-01"),
	})
	require.NoError(t, err)

	deleted, err := repo.PurgeExpired(ctx, 30)
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)

	for _, id := range []string{"fresh", "edge"} {
		_, err := repo.Get(ctx, id)
		assert.NoError(t, err, id)
	}
	_, err = repo.Get(ctx, "stale")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	stats, err := repo.Stats(ctx)
	require.NoError(t, err)
	require.Len(t, stats, 1)
	assert.Equal(t, domain.ConferenceStats{
		Conference:    "NeurIPS",
		TotalPapers:   2,
		AvgConfidence: 0.9,
		LastUpdated:   day("2026-03-01"),
	}, stats[0])

	_, err = repo.PurgeExpired(ctx, -1)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestPurgeConferenceIsExact(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo := newTestRepo(t)

	_, err := repo.Upsert(ctx, []domain.PaperRecord{
		paper("a", "CRYPTO", 0.9, "2026-02-20"),
		paper("b", "CRYPTO", 0.9, "2026-02-20"),
		paper("c", "ICML", 0.9, "2026-02-20"),
	})
	require.NoError(t, err)

	deleted, err := repo.PurgeConference(ctx, "crypto")
	require.NoError(t, err)
	assert.Zero(t, deleted)

	deleted, err = repo.PurgeConference(ctx, "CRYPTO")
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)

	stats, err := repo.Stats(ctx)
	require.NoError(t, err)
	require.Len(t, stats, 1)
	assert.Equal(t, "ICML", stats[0].Conference)

	_, err = repo.PurgeConference(ctx, " ")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestWipe(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo := newTestRepo(t)

	_, err := repo.Upsert(ctx, []domain.PaperRecord{paper("a", "ICML", 0.9, "2026-02-20")})
	require.NoError(t, err)

	err = repo.Wipe(ctx, false)
	assert.ErrorIs(t, err, domain.ErrNotConfirmed)
	count, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	require.NoError(t, repo.Wipe(ctx, true))
	count, err = repo.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
	stats, err := repo.Stats(ctx)
	require.NoError(t, err)
	assert.Empty(t, stats)
}

func TestBreakdown(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo := newTestRepo(t)

	_, err := repo.Upsert(ctx, []domain.PaperRecord{
		paper("a", "NeurIPS", 1.0, "2026-02-20"),
		paper("b", "NeurIPS", 0.8, "2026-02-20"),
		paper("c", "NeurIPS", 0.6, "2026-02-20"),
		paper("d", "ICML", 0.9, "2026-02-20"),
	})
	require.NoError(t, err)

	got, err := repo.Breakdown(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)

	neurips := got[0]
	assert.Equal(t, "NeurIPS", neurips.Conference)
	assert.Equal(t, 3, neurips.Total)
	assert.InDelta(t, 0.8, neurips.AvgConfidence, 1e-9)
	assert.InDelta(t, 0.6, neurips.MinConfidence, 1e-9)
	assert.InDelta(t, 1.0, neurips.MaxConfidence, 1e-9)
	assert.Equal(t, 1, neurips.HighConfidence)
	assert.Equal(t, 1, neurips.MediumConfidence)
	assert.Equal(t, 1, neurips.LowConfidence)

	assert.Equal(t, "ICML", got[1].Conference)
	assert.Equal(t, 1, got[1].HighConfidence)
}

func TestWipeRollsBackOnFailure(t *testing.T) {
	t.Parallel()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	diskErr := errors.New("disk I/O error")
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM papers")).WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM conference_stats")).WillReturnError(diskErr)
	mock.ExpectRollback()

	repo := NewSQLiteRepository(db, func() time.Time { return testNow })
	err = repo.Wipe(context.Background(), true)
	assert.ErrorIs(t, err, diskErr)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWipeWithoutConfirmIssuesNoQueries(t *testing.T) {
	t.Parallel()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewSQLiteRepository(db, nil)
	assert.ErrorIs(t, repo.Wipe(context.Background(), false), domain.ErrNotConfirmed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertRollsBackWhenStatsFail(t *testing.T) {
	t.Parallel()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("REPLACE INTO papers")).
		WithArgs("2501.00001", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), "2026-02-20",
			sqlmock.AnyArg(), "ICML", "2025", 0.9, "cs.LG, cs.AI", sqlmock.AnyArg(), "2026-03-01").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM conference_stats")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO conference_stats")).
		WithArgs("2026-03-01").
		WillReturnError(errors.New("database is locked"))
	mock.ExpectRollback()

	repo := NewSQLiteRepository(db, func() time.Time { return testNow })
	n, err := repo.Upsert(context.Background(), []domain.PaperRecord{paper("2501.00001", "ICML", 0.9, "2026-02-20")})
	assert.Error(t, err)
	assert.Zero(t, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPurgeConferenceRollsBackOnFailure(t *testing.T) {
	t.Parallel()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM papers WHERE conference = ?")).
		WithArgs("CRYPTO").
		WillReturnError(errors.New("disk I/O error"))
	mock.ExpectRollback()

	repo := NewSQLiteRepository(db, nil)
	n, err := repo.PurgeConference(context.Background(), "CRYPTO")
	assert.Error(t, err)
	assert.Zero(t, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecomputeStatsRepairsTable(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo := newTestRepo(t)

	_, err := repo.Upsert(ctx, []domain.PaperRecord{
		paper("a", "NeurIPS", 1.0, "2026-02-20"),
		paper("b", "NeurIPS", 0.8, "2026-02-21"),
		paper("c", "ICML", 0.85, "2026-02-22"),
	})
	require.NoError(t, err)

	_, err = repo.db.ExecContext(ctx, "UPDATE conference_stats SET total_papers = 99, avg_confidence = 0.1")
	require.NoError(t, err)
	_, err = repo.db.ExecContext(ctx, "INSERT INTO conference_stats (conference, total_papers, avg_confidence, last_updated) VALUES ('GHOST', 7, 0.5, '2020-01-01')")
	require.NoError(t, err)

	require.NoError(t, repo.RecomputeStats(ctx))

	stats, err := repo.Stats(ctx)
	require.NoError(t, err)
	require.Len(t, stats, 2)
	assert.Equal(t, "NeurIPS", stats[0].Conference)
	assert.Equal(t, 2, stats[0].TotalPapers)
	assert.InDelta(t, 0.9, stats[0].AvgConfidence, 1e-9)
	assert.Equal(t, day("2026-03-01"), stats[0].LastUpdated)
	assert.Equal(t, "ICML", stats[1].Conference)
	assert.Equal(t, 1, stats[1].TotalPapers)
	assert.InDelta(t, 0.85, stats[1].AvgConfidence, 1e-9)
}

func TestSampleNeverSeesPartialBatch(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo := newTestRepo(t)

	const (
		batches   = 40
		batchSize = 50
	)

	done := make(chan struct{})
	type observation struct {
		counts []int
		err    error
	}
	observed := make(chan observation, 1)
	go func() {
		var obs observation
		defer func() { observed <- obs }()
		for {
			select {
			case <-done:
				return
			default:
			}
			sample, err := repo.SampleRandom(ctx, batches*batchSize, 0)
			if err != nil {
				obs.err = err
				return
			}
			obs.counts = append(obs.counts, len(sample))
		}
	}()

	for i := 0; i < batches; i++ {
		records := make([]domain.PaperRecord, 0, batchSize)
		for j := 0; j < batchSize; j++ {
			records = append(records, paper(fmt.Sprintf("2602.%02d%03d", i, j), "NeurIPS", 0.9, "2026-02-20"))
		}
		_, err := repo.Upsert(ctx, records)
		require.NoError(t, err)
	}
	close(done)

	obs := <-observed
	require.NoError(t, obs.err)
	for _, n := range obs.counts {
		assert.Zero(t, n%batchSize, "sample saw %d rows, a partly applied batch", n)
	}

	total, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, batches*batchSize, total)
}
