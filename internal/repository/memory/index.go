package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/kailas-cloud/routedex/internal/domain"
	"github.com/kailas-cloud/routedex/internal/domain/criteria"
	"github.com/kailas-cloud/routedex/internal/domain/indexing"
	"github.com/kailas-cloud/routedex/internal/domain/paging"
	"github.com/kailas-cloud/routedex/internal/domain/record"
	"github.com/kailas-cloud/routedex/internal/domain/search/query"
)

// Index is an in-memory search index with the version guards of the FT
// index scripts. Keyword search is always available.
type Index struct {
	mu   sync.RWMutex
	docs map[string]map[int64]record.Record
}

// NewIndex creates an empty index.
func NewIndex() *Index {
	return &Index{docs: make(map[string]map[int64]record.Record)}
}

// SupportsKeywords always reports true.
func (x *Index) SupportsKeywords(context.Context) bool { return true }

// EnsureIndex registers the entity.
func (x *Index) EnsureIndex(_ context.Context, schema *criteria.Schema) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.entity(schema.Entity)
	return nil
}

func (x *Index) entity(name string) map[int64]record.Record {
	docs, ok := x.docs[name]
	if !ok {
		docs = make(map[int64]record.Record)
		x.docs[name] = docs
	}
	return docs
}

// Put stores rec unless a newer version is already indexed.
func (x *Index) Put(_ context.Context, schema *criteria.Schema, rec record.Record) (indexing.Outcome, error) {
	x.mu.Lock()
	defer x.mu.Unlock()

	docs := x.entity(schema.Entity)
	if cur, ok := docs[rec.ID()]; ok && cur.Version() > rec.Version() {
		return indexing.Stale, nil
	}
	docs[rec.ID()] = rec
	return indexing.Applied, nil
}

// Delete removes id unless the indexed version is at or above version.
func (x *Index) Delete(_ context.Context, schema *criteria.Schema, id, version int64) (indexing.Outcome, error) {
	x.mu.Lock()
	defer x.mu.Unlock()

	docs := x.entity(schema.Entity)
	cur, ok := docs[id]
	switch {
	case !ok:
		return indexing.Missing, nil
	case cur.Version() >= version:
		return indexing.Stale, nil
	}
	delete(docs, id)
	return indexing.Applied, nil
}

// Get returns the indexed document.
func (x *Index) Get(_ context.Context, schema *criteria.Schema, id int64) (record.Record, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	rec, ok := x.docs[schema.Entity][id]
	if !ok {
		return record.Record{}, domain.ErrNotFound
	}
	return rec, nil
}

// Search returns one page of matching documents ordered by id.
func (x *Index) Search(
	_ context.Context, schema *criteria.Schema, q query.Query, page paging.Request,
) ([]record.Record, int, error) {
	matched := x.match(schema, q)
	start := min(page.Offset(), len(matched))
	end := min(start+page.Size, len(matched))
	return matched[start:end], len(matched), nil
}

// Count returns the number of matching documents.
func (x *Index) Count(_ context.Context, schema *criteria.Schema, q query.Query) (int, error) {
	return len(x.match(schema, q)), nil
}

// Stamps lists every indexed id and version, ordered by id.
func (x *Index) Stamps(_ context.Context, schema *criteria.Schema) ([]record.Stamp, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	docs := x.docs[schema.Entity]
	out := make([]record.Stamp, 0, len(docs))
	for id, rec := range docs {
		out = append(out, record.Stamp{ID: id, Version: rec.Version()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (x *Index) match(schema *criteria.Schema, q query.Query) []record.Record {
	x.mu.RLock()
	defer x.mu.RUnlock()

	var out []record.Record
	for _, rec := range x.docs[schema.Entity] {
		if q.Matches(schema, rec) {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

// Ping always succeeds.
func (x *Index) Ping(context.Context) error { return nil }
