package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "modernc.org/sqlite"

	"PaperScanner/internal/domain"
	"PaperScanner/internal/ports"
)

// SQLiteRepository keeps classified papers and per-conference aggregates in an embedded SQLite file.
// Every write that changes papers rebuilds conference_stats inside the same transaction.
type SQLiteRepository struct {
	db  *sql.DB
	now func() time.Time
}

var _ ports.PaperStore = (*SQLiteRepository)(nil)

// OpenSQLite opens (or creates) the database file at path and ensures the schema.
func OpenSQLite(ctx context.Context, path string) (*SQLiteRepository, error) {
	dsn := "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// one connection: readers wait for an open write transaction instead of seeing part of it
	db.SetMaxOpenConns(1)

	repo := NewSQLiteRepository(db, nil)
	if err := repo.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return repo, nil
}

// NewSQLiteRepository wraps an existing handle; now defaults to time.Now.
func NewSQLiteRepository(db *sql.DB, now func() time.Time) *SQLiteRepository {
	if now == nil {
		now = time.Now
	}
	return &SQLiteRepository{db: db, now: now}
}

// EnsureSchema creates both tables and their indexes when missing.
func (r *SQLiteRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}

// Upsert replaces papers by id and rebuilds statistics atomically.
// The whole batch is rejected when any record lacks an id or conference or has a NaN confidence.
func (r *SQLiteRepository) Upsert(ctx context.Context, records []domain.PaperRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}
	for i := range records {
		if err := validate(records[i]); err != nil {
			return 0, domain.WrapError(domain.ErrInvalidInput, "upsert", err)
		}
	}

	today := r.today()
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		for _, rec := range records {
			query, args, err := sq.Replace(papersTable).
				Columns(paperColumns...).
				Values(recordValues(rec, today)...).
				ToSql()
			if err != nil {
				return fmt.Errorf("build upsert: %w", err)
			}
			if _, err := tx.ExecContext(ctx, query, args...); err != nil {
				return fmt.Errorf("upsert paper %s: %w", rec.ID, err)
			}
		}
		return r.rebuildStats(ctx, tx)
	})
	if err != nil {
		return 0, err
	}
	return len(records), nil
}

// RecomputeStats replaces conference_stats with a fresh aggregate over papers.
func (r *SQLiteRepository) RecomputeStats(ctx context.Context) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		return r.rebuildStats(ctx, tx)
	})
}

// SampleRandom returns up to n classified papers with confidence >= minConfidence in random order.
func (r *SQLiteRepository) SampleRandom(ctx context.Context, n int, minConfidence float64) ([]domain.PaperRecord, error) {
	if n <= 0 {
		return []domain.PaperRecord{}, nil
	}
	query, args, err := sq.Select(paperColumns...).
		From(papersTable).
		Where(sq.And{
			sq.NotEq{"conference": nil},
			sq.GtOrEq{"confidence": minConfidence},
		}).
		OrderBy("RANDOM()").
		Limit(uint64(n)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build sample: %w", err)
	}
	return r.queryPapers(ctx, query, args...)
}

// PurgeExpired deletes papers published before today minus retentionDays.
func (r *SQLiteRepository) PurgeExpired(ctx context.Context, retentionDays int) (int64, error) {
	if retentionDays < 0 {
		return 0, domain.WrapError(domain.ErrInvalidInput, "purge expired", fmt.Errorf("negative retention %d", retentionDays))
	}
	cutoff := r.now().UTC().AddDate(0, 0, -retentionDays).Format(domain.DateLayout)
	return r.deleteAndRebuild(ctx, "purge expired", sq.Delete(papersTable).Where(sq.Lt{"published": cutoff}))
}

// PurgeConference deletes every paper assigned exactly to name.
func (r *SQLiteRepository) PurgeConference(ctx context.Context, name string) (int64, error) {
	if strings.TrimSpace(name) == "" {
		return 0, domain.WrapError(domain.ErrInvalidInput, "purge conference", fmt.Errorf("empty conference name"))
	}
	return r.deleteAndRebuild(ctx, "purge conference", sq.Delete(papersTable).Where(sq.Eq{"conference": name}))
}

// Wipe empties both tables. Without confirm nothing is touched and domain.ErrNotConfirmed is returned.
func (r *SQLiteRepository) Wipe(ctx context.Context, confirm bool) error {
	if !confirm {
		return domain.ErrNotConfirmed
	}
	return r.withTx(ctx, func(tx *sql.Tx) error {
		for _, table := range []string{papersTable, statsTable} {
			query, args, err := sq.Delete(table).ToSql()
			if err != nil {
				return fmt.Errorf("build wipe %s: %w", table, err)
			}
			if _, err := tx.ExecContext(ctx, query, args...); err != nil {
				return fmt.Errorf("wipe %s: %w", table, err)
			}
		}
		return nil
	})
}

// Stats lists the aggregate rows, largest conference first.
func (r *SQLiteRepository) Stats(ctx context.Context) ([]domain.ConferenceStats, error) {
	query, args, err := sq.Select("conference", "total_papers", "avg_confidence", "last_updated").
		From(statsTable).
		OrderBy("total_papers DESC", "conference").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build stats: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query stats: %w", err)
	}
	defer rows.Close()

	var stats []domain.ConferenceStats
	for rows.Next() {
		var (
			s       domain.ConferenceStats
			avg     sql.NullFloat64
			updated sqlDate
		)
		if err := rows.Scan(&s.Conference, &s.TotalPapers, &avg, &updated); err != nil {
			return nil, fmt.Errorf("scan stats: %w", err)
		}
		s.AvgConfidence = avg.Float64
		s.LastUpdated = updated.Time
		stats = append(stats, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("stats rows: %w", err)
	}
	return stats, nil
}

// Breakdown computes the live confidence distribution per conference.
func (r *SQLiteRepository) Breakdown(ctx context.Context) ([]domain.ConferenceBreakdown, error) {
	query, args, err := sq.Select("conference", "COUNT(*)", "AVG(confidence)", "MIN(confidence)", "MAX(confidence)").
		Column(sq.Expr("SUM(CASE WHEN confidence >= ? THEN 1 ELSE 0 END)", domain.HighConfidenceFloor)).
		Column(sq.Expr("SUM(CASE WHEN confidence >= ? AND confidence < ? THEN 1 ELSE 0 END)",
			domain.MediumConfidenceFloor, domain.HighConfidenceFloor)).
		Column(sq.Expr("SUM(CASE WHEN confidence < ? THEN 1 ELSE 0 END)", domain.MediumConfidenceFloor)).
		From(papersTable).
		Where(sq.NotEq{"conference": nil}).
		GroupBy("conference").
		OrderBy("COUNT(*) DESC", "conference").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build breakdown: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query breakdown: %w", err)
	}
	defer rows.Close()

	var out []domain.ConferenceBreakdown
	for rows.Next() {
		var (
			b           domain.ConferenceBreakdown
			avg, lo, hi sql.NullFloat64
		)
		if err := rows.Scan(&b.Conference, &b.Total, &avg, &lo, &hi,
			&b.HighConfidence, &b.MediumConfidence, &b.LowConfidence); err != nil {
			return nil, fmt.Errorf("scan breakdown: %w", err)
		}
		b.AvgConfidence, b.MinConfidence, b.MaxConfidence = avg.Float64, lo.Float64, hi.Float64
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("breakdown rows: %w", err)
	}
	return out, nil
}

// Count returns the number of cached papers.
func (r *SQLiteRepository) Count(ctx context.Context) (int, error) {
	query, args, err := sq.Select("COUNT(*)").From(papersTable).ToSql()
	if err != nil {
		return 0, fmt.Errorf("build count: %w", err)
	}
	var n int
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count papers: %w", err)
	}
	return n, nil
}

// Get loads one paper by id; a missing row yields domain.ErrNotFound.
func (r *SQLiteRepository) Get(ctx context.Context, id string) (domain.PaperRecord, error) {
	query, args, err := sq.Select(paperColumns...).From(papersTable).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return domain.PaperRecord{}, fmt.Errorf("build get: %w", err)
	}
	papers, err := r.queryPapers(ctx, query, args...)
	if err != nil {
		return domain.PaperRecord{}, err
	}
	if len(papers) == 0 {
		return domain.PaperRecord{}, domain.WrapError(domain.ErrNotFound, "get paper", fmt.Errorf("id %s", id))
	}
	return papers[0], nil
}

func (r *SQLiteRepository) deleteAndRebuild(ctx context.Context, op string, del sq.DeleteBuilder) (int64, error) {
	query, args, err := del.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build %s: %w", op, err)
	}

	var deleted int64
	err = r.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		if deleted, err = res.RowsAffected(); err != nil {
			return fmt.Errorf("%s rows affected: %w", op, err)
		}
		return r.rebuildStats(ctx, tx)
	})
	if err != nil {
		return 0, err
	}
	return deleted, nil
}

func (r *SQLiteRepository) rebuildStats(ctx context.Context, tx *sql.Tx) error {
	reset, resetArgs, err := sq.Delete(statsTable).ToSql()
	if err != nil {
		return fmt.Errorf("build stats reset: %w", err)
	}
	if _, err := tx.ExecContext(ctx, reset, resetArgs...); err != nil {
		return fmt.Errorf("reset stats: %w", err)
	}

	aggregate := sq.Select("conference", "COUNT(*)", "AVG(confidence)").
		Column(sq.Expr("?", r.today())).
		From(papersTable).
		Where(sq.NotEq{"conference": nil}).
		GroupBy("conference")
	insert, insertArgs, err := sq.Insert(statsTable).
		Columns("conference", "total_papers", "avg_confidence", "last_updated").
		Select(aggregate).
		ToSql()
	if err != nil {
		return fmt.Errorf("build stats aggregate: %w", err)
	}
	if _, err := tx.ExecContext(ctx, insert, insertArgs...); err != nil {
		return fmt.Errorf("aggregate stats: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) queryPapers(ctx context.Context, query string, args ...any) ([]domain.PaperRecord, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query papers: %w", err)
	}
	defer rows.Close()

	papers := []domain.PaperRecord{}
	for rows.Next() {
		var (
			p                                  domain.PaperRecord
			authors, abstract, pdfURL, comment sql.NullString
			conference, year, categories       sql.NullString
			confidence                         sql.NullFloat64
			published, fetched                 sqlDate
		)
		if err := rows.Scan(&p.ID, &p.Title, &authors, &abstract, &published, &pdfURL,
			&conference, &year, &confidence, &categories, &comment, &fetched); err != nil {
			return nil, fmt.Errorf("scan paper: %w", err)
		}
		p.Authors = authors.String
		p.Abstract = abstract.String
		p.Published = published.Time
		p.PDFURL = pdfURL.String
		p.Conference = conference.String
		p.Year = year.String
		p.Confidence = confidence.Float64
		p.Categories = splitCategories(categories.String)
		p.Comment = comment.String
		p.FetchedAt = fetched.Time
		papers = append(papers, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("paper rows: %w", err)
	}
	return papers, nil
}

func (r *SQLiteRepository) today() string {
	return r.now().UTC().Format(domain.DateLayout)
}

func validate(rec domain.PaperRecord) error {
	switch {
	case strings.TrimSpace(rec.ID) == "":
		return errors.New("paper without id")
	case strings.TrimSpace(rec.Conference) == "":
		return fmt.Errorf("paper %s without conference", rec.ID)
	case math.IsNaN(rec.Confidence):
		return fmt.Errorf("paper %s has NaN confidence", rec.ID)
	}
	return nil
}

func recordValues(rec domain.PaperRecord, today string) []any {
	fetched := today
	if !rec.FetchedAt.IsZero() {
		fetched = rec.FetchedAt.UTC().Format(domain.DateLayout)
	}
	var published any
	if !rec.Published.IsZero() {
		published = rec.Published.UTC().Format(domain.DateLayout)
	}
	var year any
	if rec.Year != "" {
		year = rec.Year
	}
	return []any{
		rec.ID,
		rec.Title,
		rec.Authors,
		rec.Abstract,
		published,
		rec.PDFURL,
		rec.Conference,
		year,
		clamp(rec.Confidence),
		strings.Join(rec.Categories, categorySeparator),
		rec.Comment,
		fetched,
	}
}

func clamp(c float64) float64 {
	return math.Min(1, math.Max(0, c))
}

func splitCategories(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, categorySeparator)
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// sqlDate accepts both the text we write and the time.Time the driver produces for DATE columns.
type sqlDate struct {
	Time time.Time
}

func (d *sqlDate) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		d.Time = time.Time{}
		return nil
	case time.Time:
		d.Time = v.UTC()
		return nil
	case []byte:
		return d.parse(string(v))
	case string:
		return d.parse(v)
	default:
		return fmt.Errorf("unsupported date value %T", src)
	}
}

func (d *sqlDate) parse(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		d.Time = time.Time{}
		return nil
	}
	if len(s) >= len(domain.DateLayout) {
		if t, err := time.Parse(domain.DateLayout, s[:len(domain.DateLayout)]); err == nil {
			d.Time = t
			return nil
		}
	}
	return fmt.Errorf("unparseable date %q", s)
}
