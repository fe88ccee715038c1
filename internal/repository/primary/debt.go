package primary

import (
	"context"

	"github.com/kailas-cloud/routedex/internal/db"
	"github.com/kailas-cloud/routedex/internal/db/postgres"
	"github.com/kailas-cloud/routedex/internal/domain/indexing"
)

// DebtRepo persists reconciliation debt in the index_debt table.
type DebtRepo struct {
	db querier
}

// NewDebtRepo creates a debt repository.
func NewDebtRepo(q querier) *DebtRepo {
	return &DebtRepo{db: q}
}

// Record stores or refreshes the debt for one id. The newest version wins and
// attempts accumulate.
func (r *DebtRepo) Record(ctx context.Context, d indexing.Debt) error {
	const sql = `INSERT INTO index_debt (entity, entity_id, version, attempts, last_error, recorded_at)
VALUES ($1, $2, $3, $4, $5, now())
ON CONFLICT (entity, entity_id) DO UPDATE SET
    version     = GREATEST(index_debt.version, EXCLUDED.version),
    attempts    = index_debt.attempts + EXCLUDED.attempts,
    last_error  = EXCLUDED.last_error,
    recorded_at = EXCLUDED.recorded_at`
	if _, err := r.db.Exec(ctx, sql, d.Entity, d.ID, d.Version, int32(d.Attempts), d.LastError); err != nil {
		return postgres.Wrap(db.OpInsert, err)
	}
	return nil
}

// List returns up to limit debts of entity, oldest first.
func (r *DebtRepo) List(ctx context.Context, entity string, limit int) ([]indexing.Debt, error) {
	const sql = `SELECT entity, entity_id, version, attempts, last_error, recorded_at
FROM index_debt WHERE entity = $1 ORDER BY recorded_at, entity_id LIMIT $2`
	rows, err := r.db.Query(ctx, sql, entity, int64(limit))
	if err != nil {
		return nil, postgres.Wrap(db.OpSelect, err)
	}
	defer rows.Close()

	var out []indexing.Debt
	for rows.Next() {
		var (
			d        indexing.Debt
			attempts int32
		)
		if err := rows.Scan(&d.Entity, &d.ID, &d.Version, &attempts, &d.LastError, &d.RecordedAt); err != nil {
			return nil, postgres.Wrap(db.OpSelect, err)
		}
		d.Attempts = int(attempts)
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, postgres.Wrap(db.OpSelect, err)
	}
	return out, nil
}

// Clear removes the debt of id unless a newer version was recorded meanwhile.
func (r *DebtRepo) Clear(ctx context.Context, entity string, id, version int64) error {
	const sql = `DELETE FROM index_debt WHERE entity = $1 AND entity_id = $2 AND version <= $3`
	if _, err := r.db.Exec(ctx, sql, entity, id, version); err != nil {
		return postgres.Wrap(db.OpDelete, err)
	}
	return nil
}

// Count returns the number of outstanding debts per entity.
func (r *DebtRepo) Count(ctx context.Context) (map[string]int64, error) {
	rows, err := r.db.Query(ctx, `SELECT entity, count(*) FROM index_debt GROUP BY entity`)
	if err != nil {
		return nil, postgres.Wrap(db.OpCount, err)
	}
	defer rows.Close()

	out := make(map[string]int64)
	for rows.Next() {
		var (
			entity string
			n      int64
		)
		if err := rows.Scan(&entity, &n); err != nil {
			return nil, postgres.Wrap(db.OpCount, err)
		}
		out[entity] = n
	}
	if err := rows.Err(); err != nil {
		return nil, postgres.Wrap(db.OpCount, err)
	}
	return out, nil
}
