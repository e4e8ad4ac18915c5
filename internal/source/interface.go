// Package source describes where bulk jobs get their item sets from.
package source

import (
	"context"

	"github.com/timmy/stockcast/internal/domain"
)

// ItemSource resolves a scope to the items a bulk job should forecast.
// Implementations must return items in a stable order so that progress
// labels are reproducible between runs.
type ItemSource interface {
	// ListByScope returns the items in scope.
	// Parameters:
	//   - ctx: context for cancellation and deadlines.
	//   - scope: scope identifier, e.g. a depot name.
	// Returns:
	//   - []domain.Item: items in stable order; empty when the scope has none.
	//   - error: non-nil if the lookup fails.
	ListByScope(ctx context.Context, scope string) ([]domain.Item, error)
}

// StaticSource serves a fixed item list grouped by depot.
type StaticSource struct {
	byScope map[string][]domain.Item
}

// NewStaticSource groups items by their depot, preserving input order.
func NewStaticSource(items []domain.Item) *StaticSource {
	s := &StaticSource{byScope: map[string][]domain.Item{}}
	for _, it := range items {
		s.byScope[it.Depot] = append(s.byScope[it.Depot], it)
	}
	return s
}

// ListByScope returns a copy of the items for scope.
func (s *StaticSource) ListByScope(_ context.Context, scope string) ([]domain.Item, error) {
	items := s.byScope[scope]
	out := make([]domain.Item, len(items))
	copy(out, items)
	return out, nil
}
