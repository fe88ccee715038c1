package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/kailas-cloud/routedex/internal/domain/indexing"
)

type debtKey struct {
	entity string
	id     int64
}

// DebtRepo keeps reconciliation debt in memory.
type DebtRepo struct {
	mu    sync.Mutex
	debts map[debtKey]indexing.Debt
}

// NewDebtRepo creates an empty debt repository.
func NewDebtRepo() *DebtRepo {
	return &DebtRepo{debts: make(map[debtKey]indexing.Debt)}
}

// Record stores or refreshes the debt for one id.
func (r *DebtRepo) Record(_ context.Context, d indexing.Debt) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	k := debtKey{d.Entity, d.ID}
	if prev, ok := r.debts[k]; ok {
		d.Version = max(d.Version, prev.Version)
		d.Attempts += prev.Attempts
	}
	d.RecordedAt = time.Now()
	r.debts[k] = d
	return nil
}

// List returns up to limit debts of entity, oldest first.
func (r *DebtRepo) List(_ context.Context, entity string, limit int) ([]indexing.Debt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []indexing.Debt
	for k, d := range r.debts {
		if k.entity == entity {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].RecordedAt.Equal(out[j].RecordedAt) {
			return out[i].RecordedAt.Before(out[j].RecordedAt)
		}
		return out[i].ID < out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Clear removes the debt of id unless a newer version was recorded meanwhile.
func (r *DebtRepo) Clear(_ context.Context, entity string, id, version int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	k := debtKey{entity, id}
	if d, ok := r.debts[k]; ok && d.Version <= version {
		delete(r.debts, k)
	}
	return nil
}

// Count returns the number of outstanding debts per entity.
func (r *DebtRepo) Count(context.Context) (map[string]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[string]int64)
	for k := range r.debts {
		out[k.entity]++
	}
	return out, nil
}
