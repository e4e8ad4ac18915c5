package repository

import (
	"context"

	"github.com/timmy/stockcast/internal/domain"
	"gorm.io/gorm"
)

// ProductRepository reads the item catalogue. Items are owned by the
// inventory application; this service never writes them.
type ProductRepository struct {
	db *gorm.DB
}

// NewProductRepository creates a new ProductRepository.
func NewProductRepository(db *gorm.DB) *ProductRepository {
	return &ProductRepository{db: db}
}

// ListByScope returns the items stocked in the depot named by scope, in SKU order.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - scope: depot name.
//
// Returns:
//   - []domain.Item: items in a stable order; empty when the depot has none.
//   - error: non-nil if the query fails.
func (r *ProductRepository) ListByScope(ctx context.Context, scope string) ([]domain.Item, error) {
	var items []domain.Item
	err := r.db.WithContext(ctx).
		Where("location = ?", scope).
		Order("sku ASC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

// ListScopes returns the distinct depot names that have at least one item.
func (r *ProductRepository) ListScopes(ctx context.Context) ([]string, error) {
	var scopes []string
	err := r.db.WithContext(ctx).Model(&domain.Item{}).
		Where("location <> ''").
		Distinct("location").
		Order("location ASC").
		Pluck("location", &scopes).Error
	if err != nil {
		return nil, err
	}
	return scopes, nil
}
