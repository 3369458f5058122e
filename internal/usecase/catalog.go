package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"PaperScanner/internal/domain"
	"PaperScanner/internal/ports"
)

// Catalog is the read and retention surface offered to display clients.
// Deletion failures never cross this boundary as errors: they are logged and reported as false or 0.
type Catalog struct {
	store  ports.PaperStore
	logger *slog.Logger
}

func NewCatalog(store ports.PaperStore, logger *slog.Logger) *Catalog {
	if logger == nil {
		logger = slog.Default()
	}
	return &Catalog{store: store, logger: logger.With("component", "catalog")}
}

// Sample returns up to n random papers with confidence >= minConfidence.
func (c *Catalog) Sample(ctx context.Context, n int, minConfidence float64) ([]domain.PaperRecord, error) {
	if !(minConfidence >= 0 && minConfidence <= 1) {
		return nil, domain.WrapError(domain.ErrInvalidInput, "sample", fmt.Errorf("min confidence %.2f out of range", minConfidence))
	}
	papers, err := c.store.SampleRandom(ctx, n, minConfidence)
	if err != nil {
		return nil, fmt.Errorf("sample papers: %w", err)
	}
	return papers, nil
}

func (c *Catalog) Stats(ctx context.Context) ([]domain.ConferenceStats, error) {
	stats, err := c.store.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("conference stats: %w", err)
	}
	return stats, nil
}

func (c *Catalog) Breakdown(ctx context.Context) ([]domain.ConferenceBreakdown, error) {
	out, err := c.store.Breakdown(ctx)
	if err != nil {
		return nil, fmt.Errorf("conference breakdown: %w", err)
	}
	return out, nil
}

// Wipe deletes everything when confirm is set and reports whether it did.
func (c *Catalog) Wipe(ctx context.Context, confirm bool) bool {
	if err := c.store.Wipe(ctx, confirm); err != nil {
		if errors.Is(err, domain.ErrNotConfirmed) {
			c.logger.Warn("wipe refused without confirmation")
		} else {
			c.logger.Error("wipe failed", "error", err)
		}
		return false
	}
	c.logger.Info("cache wiped")
	return true
}

// PurgeExpired returns the number of papers removed, 0 on failure.
func (c *Catalog) PurgeExpired(ctx context.Context, days int) int64 {
	removed, err := c.store.PurgeExpired(ctx, days)
	if err != nil {
		c.logger.Error("purge expired failed", "days", days, "error", err)
		return 0
	}
	c.logger.Info("purged expired papers", "days", days, "removed", removed)
	return removed
}

// PurgeConference returns the number of papers removed, 0 on failure.
func (c *Catalog) PurgeConference(ctx context.Context, name string) int64 {
	removed, err := c.store.PurgeConference(ctx, name)
	if err != nil {
		c.logger.Error("purge conference failed", "conference", name, "error", err)
		return 0
	}
	c.logger.Info("purged conference", "conference", name, "removed", removed)
	return removed
}
