package ledger

import (
	"context"
	"sort"
	"sync"

	"github.com/timmy/stockcast/internal/domain"
)

// Memory is a thread-safe in-process Ledger.
// Each SKU lives in its own slot with its own lock; the slot index is a sync.Map
// so writers for different SKUs do not share a write lock.
type Memory struct {
	slots sync.Map // sku -> *slot
}

type slot struct {
	mu  sync.RWMutex
	res *domain.ForecastResult
}

// NewMemory creates an empty in-memory ledger.
func NewMemory() *Memory {
	return &Memory{}
}

// Upsert stores a copy of res, replacing any previous entry for res.SKU.
func (m *Memory) Upsert(ctx context.Context, res *domain.ForecastResult) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	cp := res.Clone()
	v, _ := m.slots.LoadOrStore(res.SKU, &slot{})
	s := v.(*slot)
	s.mu.Lock()
	s.res = cp
	s.mu.Unlock()
	return nil
}

// Get returns a copy of the entry for sku.
func (m *Memory) Get(ctx context.Context, sku string) (*domain.ForecastResult, error) {
	v, ok := m.slots.Load(sku)
	if !ok {
		return nil, ErrNotFound
	}
	s := v.(*slot)
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.res == nil {
		return nil, ErrNotFound
	}
	return s.res.Clone(), nil
}

// ListByScope returns copies of all entries in scope, ordered by SKU.
func (m *Memory) ListByScope(ctx context.Context, scope string) ([]domain.ForecastResult, error) {
	var out []domain.ForecastResult
	m.slots.Range(func(_, v any) bool {
		s := v.(*slot)
		s.mu.RLock()
		res := s.res
		s.mu.RUnlock()
		if res != nil && (scope == "" || res.Scope == scope) {
			out = append(out, *res.Clone())
		}
		return true
	})
	sort.Slice(out, func(i, j int) bool { return out[i].SKU < out[j].SKU })
	return out, nil
}
