package document

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/kailas-cloud/routedex/internal/db"
	"github.com/kailas-cloud/routedex/internal/domain"
	"github.com/kailas-cloud/routedex/internal/domain/criteria"
	"github.com/kailas-cloud/routedex/internal/domain/indexing"
	"github.com/kailas-cloud/routedex/internal/domain/paging"
	"github.com/kailas-cloud/routedex/internal/domain/record"
	"github.com/kailas-cloud/routedex/internal/domain/search/query"
)

// stampBatch bounds the HGET pipeline used when listing document versions.
const stampBatch = 500

// store is the consumer interface for index documents (ISP).
type store interface {
	ReplaceHash(ctx context.Context, key string, version int64, fields map[string]string) (db.WriteResult, error)
	DeleteHash(ctx context.Context, key string, version int64) (db.WriteResult, error)
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HGetFieldMulti(ctx context.Context, field string, keys []string) ([]string, error)
	Scan(ctx context.Context, pattern string) ([]string, error)
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	IndexExists(ctx context.Context, name string) (bool, error)
	SupportsTextSearch(ctx context.Context) bool
	SearchList(ctx context.Context, q *db.ListQuery) (*db.SearchResult, error)
	SearchCount(ctx context.Context, index, query string) (int, error)
}

// Repo keeps one FT index of hash documents per entity.
type Repo struct {
	store  store
	prefix string
}

// New creates an index repository. Keys are `<prefix><entity>:<id>`.
func New(s store, prefix string) *Repo {
	return &Repo{store: s, prefix: prefix}
}

// SupportsKeywords reports whether bare-word search is available.
func (r *Repo) SupportsKeywords(ctx context.Context) bool {
	return r.store.SupportsTextSearch(ctx)
}

// EnsureIndex creates the entity's FT index when it does not exist yet.
func (r *Repo) EnsureIndex(ctx context.Context, schema *criteria.Schema) error {
	name := r.indexName(schema.Entity)
	exists, err := r.store.IndexExists(ctx, name)
	if err != nil {
		return fmt.Errorf("check index %s: %w", name, err)
	}
	if exists {
		return nil
	}

	def, err := buildIndex(name, r.entityPrefix(schema.Entity), schema, r.store.SupportsTextSearch(ctx))
	if err != nil {
		return err
	}
	if err := r.store.CreateIndex(ctx, def); err != nil && !errors.Is(err, db.ErrIndexExists) {
		return fmt.Errorf("create index %s: %w", name, err)
	}
	return nil
}

// Put replaces the document with rec unless a newer version is stored.
func (r *Repo) Put(ctx context.Context, schema *criteria.Schema, rec record.Record) (indexing.Outcome, error) {
	key := r.docKey(schema.Entity, rec.ID())
	res, err := r.store.ReplaceHash(ctx, key, rec.Version(), toHash(schema, rec))
	if err != nil {
		return "", fmt.Errorf("replace %s: %w", key, err)
	}
	return outcome(res), nil
}

// Delete removes the document for a tombstone of the given version.
func (r *Repo) Delete(ctx context.Context, schema *criteria.Schema, id, version int64) (indexing.Outcome, error) {
	key := r.docKey(schema.Entity, id)
	res, err := r.store.DeleteHash(ctx, key, version)
	if err != nil {
		return "", fmt.Errorf("delete %s: %w", key, err)
	}
	return outcome(res), nil
}

// Get returns the indexed document by id.
func (r *Repo) Get(ctx context.Context, schema *criteria.Schema, id int64) (record.Record, error) {
	key := r.docKey(schema.Entity, id)
	fields, err := r.store.HGetAll(ctx, key)
	if err != nil {
		return record.Record{}, fmt.Errorf("hgetall %s: %w", key, err)
	}
	if len(fields) == 0 {
		return record.Record{}, domain.ErrNotFound
	}
	return fromHash(schema, fields)
}

// Search returns one page of matching documents ordered by id.
func (r *Repo) Search(
	ctx context.Context, schema *criteria.Schema, q query.Query, page paging.Request,
) ([]record.Record, int, error) {
	compiled, err := compile(schema, q, r.store.SupportsTextSearch(ctx))
	if err != nil {
		return nil, 0, err
	}

	result, err := r.store.SearchList(ctx, &db.ListQuery{
		Index:  r.indexName(schema.Entity),
		Query:  compiled,
		Offset: page.Offset(),
		Limit:  page.Size,
		SortBy: criteria.IDField,
	})
	if err != nil {
		return nil, 0, fmt.Errorf("search %s: %w", schema.Entity, err)
	}
	if result == nil {
		return nil, 0, nil
	}

	out := make([]record.Record, 0, len(result.Entries))
	for _, entry := range result.Entries {
		rec, err := fromHash(schema, entry.Fields)
		if err != nil {
			return nil, 0, fmt.Errorf("decode %s: %w", entry.Key, err)
		}
		out = append(out, rec)
	}
	return out, result.Total, nil
}

// Count returns the number of matching documents.
func (r *Repo) Count(ctx context.Context, schema *criteria.Schema, q query.Query) (int, error) {
	compiled, err := compile(schema, q, r.store.SupportsTextSearch(ctx))
	if err != nil {
		return 0, err
	}
	n, err := r.store.SearchCount(ctx, r.indexName(schema.Entity), compiled)
	if err != nil {
		return 0, fmt.Errorf("search count %s: %w", schema.Entity, err)
	}
	return n, nil
}

// Stamps lists the id and version of every indexed document, ordered by id.
func (r *Repo) Stamps(ctx context.Context, schema *criteria.Schema) ([]record.Stamp, error) {
	prefix := r.entityPrefix(schema.Entity)
	keys, err := r.store.Scan(ctx, prefix+"*")
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", schema.Entity, err)
	}

	ids := make([]int64, 0, len(keys))
	docKeys := make([]string, 0, len(keys))
	for _, key := range keys {
		id, err := strconv.ParseInt(strings.TrimPrefix(key, prefix), 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
		docKeys = append(docKeys, key)
	}

	stamps := make([]record.Stamp, 0, len(ids))
	for start := 0; start < len(docKeys); start += stampBatch {
		end := min(start+stampBatch, len(docKeys))
		versions, err := r.store.HGetFieldMulti(ctx, db.VersionField, docKeys[start:end])
		if err != nil {
			return nil, fmt.Errorf("read versions %s: %w", schema.Entity, err)
		}
		for i, v := range versions {
			if v == "" {
				continue // removed since SCAN
			}
			version, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("key %s: bad version %q", docKeys[start+i], v)
			}
			stamps = append(stamps, record.Stamp{ID: ids[start+i], Version: version})
		}
	}

	sort.Slice(stamps, func(i, j int) bool { return stamps[i].ID < stamps[j].ID })
	return stamps, nil
}

func outcome(res db.WriteResult) indexing.Outcome {
	switch res {
	case db.Stale:
		return indexing.Stale
	case db.Missing:
		return indexing.Missing
	default:
		return indexing.Applied
	}
}

func (r *Repo) entityPrefix(entity string) string {
	return r.prefix + entity + ":"
}

func (r *Repo) docKey(entity string, id int64) string {
	return r.entityPrefix(entity) + strconv.FormatInt(id, 10)
}

func (r *Repo) indexName(entity string) string {
	return r.prefix + entity + ":idx"
}
