package primary

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/kailas-cloud/routedex/internal/db"
	"github.com/kailas-cloud/routedex/internal/db/postgres"
	"github.com/kailas-cloud/routedex/internal/domain"
	"github.com/kailas-cloud/routedex/internal/domain/criteria"
	"github.com/kailas-cloud/routedex/internal/domain/paging"
	"github.com/kailas-cloud/routedex/internal/domain/record"
)

// querier is satisfied by both the pool client and pgx.Tx.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// database is the consumer interface for the primary store (ISP).
type database interface {
	querier
	WithTx(ctx context.Context, fn func(pgx.Tx) error) error
}

// Repo implements usecase/entity.Repository on PostgreSQL.
type Repo struct {
	db      database
	timeout time.Duration
}

// New creates a primary repository. A positive timeout bounds every statement.
func New(d database, timeout time.Duration) *Repo {
	return &Repo{db: d, timeout: timeout}
}

func (r *Repo) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, r.timeout)
}

// Insert stores a new row and returns it as committed.
func (r *Repo) Insert(ctx context.Context, schema *criteria.Schema, rec record.Record) (record.Record, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	b := newSQLBuilder()
	var cols, phs []string
	for _, p := range projections(schema) {
		if !p.writable {
			continue
		}
		ph, err := b.bindColumn(p, rec)
		if err != nil {
			return record.Record{}, err
		}
		cols = append(cols, p.column)
		phs = append(phs, ph)
	}
	sql := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING %s",
		schema.Table, strings.Join(cols, ", "), strings.Join(phs, ", "), selectList(schema, ""))

	var out record.Record
	err := r.db.WithTx(ctx, func(tx pgx.Tx) error {
		var err error
		out, err = scanRecord(schema, tx.QueryRow(ctx, sql, b.args...))
		return err
	})
	if err != nil {
		return record.Record{}, mapWriteError(db.OpInsert, err)
	}
	return out, nil
}

// Update replaces every writable column of row rec.ID(). A positive
// expectedVersion must equal the stored version.
func (r *Repo) Update(
	ctx context.Context, schema *criteria.Schema, rec record.Record, expectedVersion int64,
) (record.Record, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	b := newSQLBuilder()
	var sets []string
	for _, p := range projections(schema) {
		if !p.writable {
			continue
		}
		ph, err := b.bindColumn(p, rec)
		if err != nil {
			return record.Record{}, err
		}
		sets = append(sets, p.column+" = "+ph)
	}
	sets = append(sets, "version = version + 1", "updated_at = now()")
	where := "id = " + b.placeholder(b.addArg(rec.ID()))
	if expectedVersion > 0 {
		where += " AND version = " + b.placeholder(b.addArg(expectedVersion))
	}
	sql := fmt.Sprintf("UPDATE %s SET %s WHERE %s RETURNING %s",
		schema.Table, strings.Join(sets, ", "), where, selectList(schema, ""))

	var out record.Record
	err := r.db.WithTx(ctx, func(tx pgx.Tx) error {
		var err error
		out, err = scanRecord(schema, tx.QueryRow(ctx, sql, b.args...))
		if errors.Is(err, pgx.ErrNoRows) {
			return missOrConflict(ctx, tx, schema, rec.ID())
		}
		return err
	})
	if err != nil {
		return record.Record{}, mapWriteError(db.OpUpdate, err)
	}
	return out, nil
}

// Delete removes row id and returns the version it had. A positive
// expectedVersion must equal the stored version.
func (r *Repo) Delete(ctx context.Context, schema *criteria.Schema, id, expectedVersion int64) (int64, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	b := newSQLBuilder()
	where := "id = " + b.placeholder(b.addArg(id))
	if expectedVersion > 0 {
		where += " AND version = " + b.placeholder(b.addArg(expectedVersion))
	}
	sql := fmt.Sprintf("DELETE FROM %s WHERE %s RETURNING version", schema.Table, where)

	var version int64
	err := r.db.WithTx(ctx, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, sql, b.args...).Scan(&version)
		if errors.Is(err, pgx.ErrNoRows) {
			return missOrConflict(ctx, tx, schema, id)
		}
		return err
	})
	if err != nil {
		// A delete that violates a foreign key is still referenced by other rows.
		if errors.Is(postgres.Wrap(db.OpDelete, err), db.ErrForeignKeyViolation) {
			return 0, fmt.Errorf("%w: %s %d is still referenced", domain.ErrConflict, schema.Entity, id)
		}
		return 0, mapWriteError(db.OpDelete, err)
	}
	return version, nil
}

func missOrConflict(ctx context.Context, q querier, schema *criteria.Schema, id int64) error {
	var current int64
	err := q.QueryRow(ctx, fmt.Sprintf("SELECT version FROM %s WHERE id = $1", schema.Table), id).Scan(&current)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrNotFound
	}
	if err != nil {
		return err
	}
	return domain.NewVersionConflict(current)
}

// Get returns row id.
func (r *Repo) Get(ctx context.Context, schema *criteria.Schema, id int64) (record.Record, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	sql := fmt.Sprintf("SELECT %s FROM %s %s WHERE %s.id = $1",
		selectList(schema, ownerAlias), schema.Table, ownerAlias, ownerAlias)
	rec, err := scanRecord(schema, r.db.QueryRow(ctx, sql, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return record.Record{}, domain.ErrNotFound
	}
	if err != nil {
		return record.Record{}, postgres.Wrap(db.OpSelect, err)
	}
	return rec, nil
}

// Find returns the rows matching c, ordered by the requested sort and then id.
func (r *Repo) Find(
	ctx context.Context, c *criteria.Criteria, page paging.Request,
) ([]record.Record, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	schema := c.Schema()
	b := newSQLBuilder()
	preds, err := translate(c, ownerAlias, b)
	if err != nil {
		return nil, err
	}
	orderBy, err := orderClause(schema, page.Sort)
	if err != nil {
		return nil, err
	}

	sql := fmt.Sprintf("SELECT %s FROM %s %s%s ORDER BY %s LIMIT %s OFFSET %s",
		selectList(schema, ownerAlias), schema.Table, ownerAlias, whereClause(preds), orderBy,
		b.placeholder(b.addArg(int64(page.Size))), b.placeholder(b.addArg(int64(page.Offset()))))

	rows, err := r.db.Query(ctx, sql, b.args...)
	if err != nil {
		return nil, postgres.Wrap(db.OpSelect, err)
	}
	defer rows.Close()

	var out []record.Record
	for rows.Next() {
		rec, err := scanRecord(schema, rows)
		if err != nil {
			return nil, postgres.Wrap(db.OpSelect, err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, postgres.Wrap(db.OpSelect, err)
	}
	return out, nil
}

// Count returns the number of rows matching c. It shares Find's predicate.
func (r *Repo) Count(ctx context.Context, c *criteria.Criteria) (int64, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	b := newSQLBuilder()
	preds, err := translate(c, ownerAlias, b)
	if err != nil {
		return 0, err
	}
	sql := fmt.Sprintf("SELECT count(*) FROM %s %s%s", c.Schema().Table, ownerAlias, whereClause(preds))

	var n int64
	if err := r.db.QueryRow(ctx, sql, b.args...).Scan(&n); err != nil {
		return 0, postgres.Wrap(db.OpCount, err)
	}
	return n, nil
}

// Stamps returns up to limit (id, version) pairs with id > afterID in id order.
func (r *Repo) Stamps(
	ctx context.Context, schema *criteria.Schema, afterID int64, limit int,
) ([]record.Stamp, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	sql := fmt.Sprintf("SELECT id, version FROM %s WHERE id > $1 ORDER BY id LIMIT $2", schema.Table)
	rows, err := r.db.Query(ctx, sql, afterID, int64(limit))
	if err != nil {
		return nil, postgres.Wrap(db.OpSelect, err)
	}
	defer rows.Close()

	var out []record.Stamp
	for rows.Next() {
		var s record.Stamp
		if err := rows.Scan(&s.ID, &s.Version); err != nil {
			return nil, postgres.Wrap(db.OpSelect, err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, postgres.Wrap(db.OpSelect, err)
	}
	return out, nil
}

// bindColumn binds rec's value for a writable column, NULL when absent.
func (b *sqlBuilder) bindColumn(p projection, rec record.Record) (string, error) {
	v, ok := rec.Value(p.key)
	if !ok {
		return b.placeholder(b.addArg(nil)) + scalarCast(p.kind), nil
	}
	if v.Kind() != p.kind {
		return "", fmt.Errorf("%w: %s expects %s", domain.ErrValidation, p.key, p.kind)
	}
	return b.bind(v)
}

func whereClause(preds []string) string {
	if len(preds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(preds, " AND ")
}

func orderClause(schema *criteria.Schema, sort []paging.Order) (string, error) {
	parts := make([]string, 0, len(sort)+1)
	hasID := false
	for _, o := range sort {
		col, err := column(schema, ownerAlias, o.Key)
		if err != nil {
			return "", fmt.Errorf("%w: cannot sort by %q", domain.ErrValidation, o.Key)
		}
		dir := "ASC"
		if o.Desc {
			dir = "DESC"
		}
		parts = append(parts, col+" "+dir)
		if o.Key == criteria.IDField {
			hasID = true
		}
	}
	if !hasID {
		parts = append(parts, ownerAlias+".id ASC")
	}
	return strings.Join(parts, ", "), nil
}

// mapWriteError translates constraint violations into domain errors.
func mapWriteError(op string, err error) error {
	var conflict *domain.VersionConflictError
	if errors.Is(err, domain.ErrNotFound) || errors.As(err, &conflict) {
		return err
	}
	wrapped := postgres.Wrap(op, err)
	switch {
	case errors.Is(wrapped, db.ErrUniqueViolation), errors.Is(wrapped, db.ErrSerialization):
		return fmt.Errorf("%w: %w", domain.ErrConflict, wrapped)
	case errors.Is(wrapped, db.ErrForeignKeyViolation):
		return fmt.Errorf("%w: %w", domain.ErrInvalidReference, wrapped)
	default:
		return wrapped
	}
}
