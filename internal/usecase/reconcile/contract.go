package reconcile

import (
	"context"

	"github.com/kailas-cloud/routedex/internal/domain/criteria"
	"github.com/kailas-cloud/routedex/internal/domain/indexing"
	"github.com/kailas-cloud/routedex/internal/domain/record"
)

// Primary is the read side of the primary store.
type Primary interface {
	Stamps(ctx context.Context, schema *criteria.Schema, afterID int64, limit int) ([]record.Stamp, error)
	Get(ctx context.Context, schema *criteria.Schema, id int64) (record.Record, error)
}

// Index lists the versions held by the search index.
type Index interface {
	Stamps(ctx context.Context, schema *criteria.Schema) ([]record.Stamp, error)
}

// Debts is the reconciliation debt store.
type Debts interface {
	List(ctx context.Context, entity string, limit int) ([]indexing.Debt, error)
	Clear(ctx context.Context, entity string, id, version int64) error
	Count(ctx context.Context) (map[string]int64, error)
}

// Resyncer re-queues a change regardless of what was last applied.
type Resyncer interface {
	Resync(ctx context.Context, c record.Change)
}
