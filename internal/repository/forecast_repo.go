package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/timmy/stockcast/internal/domain"
	"github.com/timmy/stockcast/internal/ledger"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ForecastRepository is the persistent ledger backed by the forecasts table.
type ForecastRepository struct {
	db    *gorm.DB
	locks *ledger.KeyedMutex
}

var _ ledger.Ledger = (*ForecastRepository)(nil)

// NewForecastRepository creates a new ForecastRepository.
func NewForecastRepository(db *gorm.DB) *ForecastRepository {
	return &ForecastRepository{db: db, locks: ledger.NewKeyedMutex()}
}

// Upsert replaces the stored result for res.SKU.
// Writers for the same SKU are serialized in-process so the later call
// always lands last; different SKUs proceed in parallel.
func (r *ForecastRepository) Upsert(ctx context.Context, res *domain.ForecastResult) error {
	if res == nil || res.SKU == "" {
		return fmt.Errorf("forecast result without sku")
	}
	rec, err := res.ToRecord()
	if err != nil {
		return err
	}

	unlock := r.locks.Lock(res.SKU)
	defer unlock()

	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "sku"}},
		UpdateAll: true,
	}).Create(rec).Error
}

// Get returns the latest result for sku, or ledger.ErrNotFound.
func (r *ForecastRepository) Get(ctx context.Context, sku string) (*domain.ForecastResult, error) {
	var rec domain.ForecastRecord
	if err := r.db.WithContext(ctx).First(&rec, "sku = ?", sku).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ledger.ErrNotFound
		}
		return nil, err
	}
	return rec.ToResult()
}

// ListByScope returns every result recorded for scope, ordered by SKU.
// An empty scope returns all results.
func (r *ForecastRepository) ListByScope(ctx context.Context, scope string) ([]domain.ForecastResult, error) {
	query := r.db.WithContext(ctx).Model(&domain.ForecastRecord{})
	if scope != "" {
		query = query.Where("scope = ?", scope)
	}

	var recs []domain.ForecastRecord
	if err := query.Order("sku ASC").Find(&recs).Error; err != nil {
		return nil, err
	}

	out := make([]domain.ForecastResult, 0, len(recs))
	for i := range recs {
		res, err := recs[i].ToResult()
		if err != nil {
			return nil, err
		}
		out = append(out, *res)
	}
	return out, nil
}

// CountByTier returns the number of stored results per risk tier for scope.
func (r *ForecastRepository) CountByTier(ctx context.Context, scope string) (map[domain.RiskTier]int64, error) {
	type row struct {
		RiskTier string
		Count    int64
	}
	query := r.db.WithContext(ctx).Model(&domain.ForecastRecord{}).
		Select("risk_tier, COUNT(*) as count")
	if scope != "" {
		query = query.Where("scope = ?", scope)
	}

	var rows []row
	if err := query.Group("risk_tier").Scan(&rows).Error; err != nil {
		return nil, err
	}
	counts := make(map[domain.RiskTier]int64, len(rows))
	for _, rw := range rows {
		counts[domain.RiskTier(rw.RiskTier)] = rw.Count
	}
	return counts, nil
}
