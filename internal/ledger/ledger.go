// Package ledger holds the latest forecast result per item.
package ledger

import (
	"context"
	"errors"

	"github.com/timmy/stockcast/internal/domain"
)

// ErrNotFound is returned by Get when no result exists for the key.
var ErrNotFound = errors.New("forecast not found")

// Ledger maps SKU -> latest ForecastResult.
//
// Upsert replaces any previous entry for the key; the last call wins.
// Writes to different keys never wait on each other, writes to the same key
// are serialized.
type Ledger interface {
	Upsert(ctx context.Context, res *domain.ForecastResult) error
	Get(ctx context.Context, sku string) (*domain.ForecastResult, error)
	// ListByScope returns all results for a scope; an empty scope returns everything.
	ListByScope(ctx context.Context, scope string) ([]domain.ForecastResult, error)
}
