package entity

import (
	"context"

	"github.com/kailas-cloud/routedex/internal/domain/criteria"
	"github.com/kailas-cloud/routedex/internal/domain/paging"
	"github.com/kailas-cloud/routedex/internal/domain/record"
)

// Repository is the primary-store contract. Writes commit before returning.
type Repository interface {
	Insert(ctx context.Context, schema *criteria.Schema, rec record.Record) (record.Record, error)
	Update(ctx context.Context, schema *criteria.Schema, rec record.Record, expectedVersion int64) (record.Record, error)
	Delete(ctx context.Context, schema *criteria.Schema, id, expectedVersion int64) (int64, error)
	Get(ctx context.Context, schema *criteria.Schema, id int64) (record.Record, error)
	Find(ctx context.Context, c *criteria.Criteria, page paging.Request) ([]record.Record, error)
	Count(ctx context.Context, c *criteria.Criteria) (int64, error)
}

// CommitHook observes committed mutations. It must not fail the caller.
type CommitHook interface {
	OnCommitted(ctx context.Context, c record.Change)
}
