package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kailas-cloud/routedex/internal/domain"
	"github.com/kailas-cloud/routedex/internal/domain/catalog"
	"github.com/kailas-cloud/routedex/internal/domain/criteria"
	"github.com/kailas-cloud/routedex/internal/domain/indexing"
	"github.com/kailas-cloud/routedex/internal/domain/paging"
	"github.com/kailas-cloud/routedex/internal/domain/record"
	"github.com/kailas-cloud/routedex/internal/domain/search/query"
)

func station(id, version int64, code, name string) record.Record {
	return record.Reconstruct(catalog.EntityStation, id, version, map[string]criteria.Value{
		"code": criteria.String(code),
		"name": criteria.String(name),
	})
}

func TestIndex_VersionGuards(t *testing.T) {
	ctx := context.Background()
	schema := catalog.Station()
	x := NewIndex()

	out, err := x.Put(ctx, schema, station(1, 2, "HAN", "Hanoi"))
	require.NoError(t, err)
	assert.Equal(t, indexing.Applied, out)

	out, _ = x.Put(ctx, schema, station(1, 1, "OLD", "Old"))
	assert.Equal(t, indexing.Stale, out, "older version must not overwrite")

	out, _ = x.Put(ctx, schema, station(1, 2, "HAN", "Hanoi"))
	assert.Equal(t, indexing.Applied, out, "replaying the same version is idempotent")

	out, _ = x.Delete(ctx, schema, 1, 2)
	assert.Equal(t, indexing.Stale, out, "tombstone must be newer than the document")

	out, _ = x.Delete(ctx, schema, 1, 3)
	assert.Equal(t, indexing.Applied, out)

	out, _ = x.Delete(ctx, schema, 1, 3)
	assert.Equal(t, indexing.Missing, out)

	_, err = x.Get(ctx, schema, 1)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestIndex_SearchAndStamps(t *testing.T) {
	ctx := context.Background()
	schema := catalog.Station()
	x := NewIndex()
	require.NoError(t, x.EnsureIndex(ctx, schema))

	for i, name := range []string{"Hanoi Central", "Hai Phong", "Hanoi West"} {
		_, err := x.Put(ctx, schema, station(int64(3-i), 1, "S"+name[:2], name))
		require.NoError(t, err)
	}

	q, err := query.Parse(schema, "hanoi")
	require.NoError(t, err)

	recs, total, err := x.Search(ctx, schema, q, paging.Request{Size: 1})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, recs, 1)
	assert.Equal(t, int64(1), recs[0].ID(), "results are ordered by id")

	recs, _, err = x.Search(ctx, schema, q, paging.Request{Page: 5, Size: 10})
	require.NoError(t, err)
	assert.Empty(t, recs)

	n, err := x.Count(ctx, schema, query.MatchAll())
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	stamps, err := x.Stamps(ctx, schema)
	require.NoError(t, err)
	assert.Equal(t, []record.Stamp{{ID: 1, Version: 1}, {ID: 2, Version: 1}, {ID: 3, Version: 1}}, stamps)
}
