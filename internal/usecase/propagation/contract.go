package propagation

import (
	"context"

	"github.com/kailas-cloud/routedex/internal/domain/criteria"
	"github.com/kailas-cloud/routedex/internal/domain/indexing"
	"github.com/kailas-cloud/routedex/internal/domain/record"
)

// Index is the version-guarded write side of the search index.
type Index interface {
	Put(ctx context.Context, schema *criteria.Schema, rec record.Record) (indexing.Outcome, error)
	Delete(ctx context.Context, schema *criteria.Schema, id, version int64) (indexing.Outcome, error)
	Get(ctx context.Context, schema *criteria.Schema, id int64) (record.Record, error)
}

// DebtRecorder persists changes whose propagation exhausted its retries.
type DebtRecorder interface {
	Record(ctx context.Context, d indexing.Debt) error
}

// Schemas resolves entity names.
type Schemas interface {
	Entity(name string) (*criteria.Schema, error)
}
