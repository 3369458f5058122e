package parser

import (
	"context"
	"fmt"
	"log/slog"

	"PaperScanner/internal/domain"
	"PaperScanner/internal/infrastructure/resilience"
	"PaperScanner/internal/ports"
	"PaperScanner/internal/scanner"
)

// StrategySource implements EntrySource via a registered scanner strategy.
type StrategySource struct {
	registry *scanner.Registry
	strategy string
	executor *resilience.Executor
	logger   *slog.Logger
}

var _ ports.EntrySource = (*StrategySource)(nil)

// NewStrategySource resolves strategy on every call so the registry can be swapped in tests.
// A nil executor calls the scanner directly.
func NewStrategySource(reg *scanner.Registry, strategy string, executor *resilience.Executor, log *slog.Logger) *StrategySource {
	return &StrategySource{
		registry: reg,
		strategy: strategy,
		executor: executor,
		logger:   log,
	}
}

// Search runs the configured scanner under the retry and breaker policy.
func (s *StrategySource) Search(ctx context.Context, query domain.SearchQuery) ([]domain.RawEntry, error) {
	if s.registry == nil {
		return nil, fmt.Errorf("scanner registry is not configured")
	}
	strategy, err := s.registry.Resolve(s.strategy)
	if err != nil {
		return nil, err
	}

	s.debug("search", "scanner", s.strategy, "category", query.Category, "terms", query.Terms, "max_results", query.MaxResults)

	var entries []domain.RawEntry
	call := func(ctx context.Context) error {
		var searchErr error
		entries, searchErr = strategy.Search(ctx, query)
		return searchErr
	}
	if s.executor == nil {
		err = call(ctx)
	} else {
		err = s.executor.Execute(ctx, strategy.Name(), call)
	}
	if err != nil {
		return nil, fmt.Errorf("scanner %s: %w", strategy.Name(), err)
	}

	s.debug("search done", "scanner", s.strategy, "count", len(entries))
	return entries, nil
}

func (s *StrategySource) debug(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}
