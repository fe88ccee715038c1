package search

import (
	"context"

	"github.com/kailas-cloud/routedex/internal/domain/criteria"
	"github.com/kailas-cloud/routedex/internal/domain/paging"
	"github.com/kailas-cloud/routedex/internal/domain/record"
	"github.com/kailas-cloud/routedex/internal/domain/search/query"
)

// Index defines the read contract of the search index.
type Index interface {
	Search(ctx context.Context, schema *criteria.Schema, q query.Query, page paging.Request) (
		[]record.Record, int, error,
	)
	Count(ctx context.Context, schema *criteria.Schema, q query.Query) (int, error)
	SupportsKeywords(ctx context.Context) bool
}
