// Package esdocument keeps entity documents in Elasticsearch, one index per
// entity, written with external versioning so stale replays are rejected.
package esdocument

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/kailas-cloud/routedex/internal/db"
	"github.com/kailas-cloud/routedex/internal/db/elastic"
	"github.com/kailas-cloud/routedex/internal/domain"
	"github.com/kailas-cloud/routedex/internal/domain/criteria"
	"github.com/kailas-cloud/routedex/internal/domain/indexing"
	"github.com/kailas-cloud/routedex/internal/domain/paging"
	"github.com/kailas-cloud/routedex/internal/domain/record"
	"github.com/kailas-cloud/routedex/internal/domain/search/query"
)

// stampPage is the search_after page size used when listing versions.
const stampPage = 1000

// client is the consumer interface over the Elasticsearch wrapper (ISP).
type client interface {
	IndexExists(ctx context.Context, name string) (bool, error)
	CreateIndex(ctx context.Context, name string, body map[string]any) error
	Put(ctx context.Context, index, id string, version int64, doc any) (db.WriteResult, error)
	Delete(ctx context.Context, index, id string, version int64) (db.WriteResult, error)
	Get(ctx context.Context, index, id string) (map[string]json.RawMessage, error)
	Search(ctx context.Context, index string, body map[string]any) (*elastic.Hits, error)
	Count(ctx context.Context, index string, query map[string]any) (int, error)
}

// Repo implements the index repository on Elasticsearch.
type Repo struct {
	client client
	prefix string
}

// New creates a repository. Index names are `<prefix>-<entity>`.
func New(c client, prefix string) *Repo {
	prefix = strings.ToLower(strings.Trim(prefix, ":-_ "))
	if prefix == "" {
		prefix = "routedex"
	}
	return &Repo{client: c, prefix: prefix}
}

// SupportsKeywords is always true: every text field is analyzed.
func (r *Repo) SupportsKeywords(context.Context) bool { return true }

// EnsureIndex creates the entity index with explicit mappings if missing.
func (r *Repo) EnsureIndex(ctx context.Context, schema *criteria.Schema) error {
	name := r.indexName(schema.Entity)
	exists, err := r.client.IndexExists(ctx, name)
	if err != nil {
		return fmt.Errorf("check index %s: %w", name, err)
	}
	if exists {
		return nil
	}
	if err := r.client.CreateIndex(ctx, name, mappings(schema)); err != nil && !errors.Is(err, db.ErrIndexExists) {
		return fmt.Errorf("create index %s: %w", name, err)
	}
	return nil
}

// Put replaces the document unless the index holds the same or a newer version.
func (r *Repo) Put(ctx context.Context, schema *criteria.Schema, rec record.Record) (indexing.Outcome, error) {
	res, err := r.client.Put(ctx, r.indexName(schema.Entity), docID(rec.ID()), rec.Version(), record.Encode(schema, rec))
	if err != nil {
		return "", fmt.Errorf("index %s %d: %w", schema.Entity, rec.ID(), err)
	}
	return outcome(res), nil
}

// Delete removes the document for a tombstone of the given version.
func (r *Repo) Delete(ctx context.Context, schema *criteria.Schema, id, version int64) (indexing.Outcome, error) {
	res, err := r.client.Delete(ctx, r.indexName(schema.Entity), docID(id), version)
	if err != nil {
		return "", fmt.Errorf("delete %s %d: %w", schema.Entity, id, err)
	}
	return outcome(res), nil
}

// Get returns the indexed document by id.
func (r *Repo) Get(ctx context.Context, schema *criteria.Schema, id int64) (record.Record, error) {
	src, err := r.client.Get(ctx, r.indexName(schema.Entity), docID(id))
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return record.Record{}, domain.ErrNotFound
		}
		return record.Record{}, fmt.Errorf("get %s %d: %w", schema.Entity, id, err)
	}
	return record.DecodeDocument(schema, src)
}

// Search returns one page of hits ordered by score, then id.
func (r *Repo) Search(
	ctx context.Context, schema *criteria.Schema, q query.Query, page paging.Request,
) ([]record.Record, int, error) {
	if page.Offset()+page.Size > elastic.MaxResultWindow {
		return nil, 0, fmt.Errorf("%w: page window exceeds %d results", domain.ErrValidation, elastic.MaxResultWindow)
	}
	compiled, err := compile(schema, q)
	if err != nil {
		return nil, 0, err
	}

	hits, err := r.client.Search(ctx, r.indexName(schema.Entity), map[string]any{
		"query": compiled,
		"from":  page.Offset(),
		"size":  page.Size,
		"sort": []map[string]any{
			{"_score": "desc"},
			{criteria.IDField: "asc"},
		},
	})
	if err != nil {
		return nil, 0, fmt.Errorf("search %s: %w", schema.Entity, err)
	}

	out := make([]record.Record, 0, len(hits.Hits))
	for _, h := range hits.Hits {
		rec, err := record.DecodeDocument(schema, h.Source)
		if err != nil {
			return nil, 0, fmt.Errorf("decode hit %s: %w", h.ID, err)
		}
		out = append(out, rec)
	}
	return out, hits.Total, nil
}

// Count returns the number of matching documents.
func (r *Repo) Count(ctx context.Context, schema *criteria.Schema, q query.Query) (int, error) {
	compiled, err := compile(schema, q)
	if err != nil {
		return 0, err
	}
	n, err := r.client.Count(ctx, r.indexName(schema.Entity), compiled)
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", schema.Entity, err)
	}
	return n, nil
}

// Stamps lists the id and version of every document, ordered by id, paging
// with search_after.
func (r *Repo) Stamps(ctx context.Context, schema *criteria.Schema) ([]record.Stamp, error) {
	var (
		stamps []record.Stamp
		after  []any
	)
	for {
		body := map[string]any{
			"query":   map[string]any{"match_all": map[string]any{}},
			"size":    stampPage,
			"_source": []string{criteria.IDField, record.VersionField},
			"sort":    []map[string]any{{criteria.IDField: "asc"}},
		}
		if after != nil {
			body["search_after"] = after
		}

		hits, err := r.client.Search(ctx, r.indexName(schema.Entity), body)
		if err != nil {
			return nil, fmt.Errorf("list versions %s: %w", schema.Entity, err)
		}
		for _, h := range hits.Hits {
			var s record.Stamp
			if err := json.Unmarshal(h.Source[criteria.IDField], &s.ID); err != nil {
				return nil, fmt.Errorf("decode stamp %s: %w", h.ID, err)
			}
			if err := json.Unmarshal(h.Source[record.VersionField], &s.Version); err != nil {
				return nil, fmt.Errorf("decode stamp %s: %w", h.ID, err)
			}
			stamps = append(stamps, s)
		}
		if len(hits.Hits) < stampPage {
			return stamps, nil
		}
		after = hits.Hits[len(hits.Hits)-1].Sort
	}
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

func (r *Repo) indexName(entity string) string {
	return r.prefix + "-" + entity
}

func docID(id int64) string {
	return strconv.FormatInt(id, 10)
}
