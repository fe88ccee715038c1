// Package search executes query expressions against the search index. It
// never touches the primary store.
package search

import (
	"context"
	"fmt"

	"github.com/kailas-cloud/routedex/internal/domain"
	"github.com/kailas-cloud/routedex/internal/domain/criteria"
	"github.com/kailas-cloud/routedex/internal/domain/paging"
	"github.com/kailas-cloud/routedex/internal/domain/record"
	"github.com/kailas-cloud/routedex/internal/domain/search/query"
)

// Page is one page of search hits.
type Page struct {
	Records []record.Record
	Total   int
}

// Service handles search requests.
type Service struct {
	index Index
}

// New creates a search service.
func New(index Index) *Service {
	return &Service{index: index}
}

// Search parses raw against schema and returns one page of hits.
func (s *Service) Search(
	ctx context.Context, schema *criteria.Schema, raw string, page paging.Request,
) (Page, error) {
	q, err := s.parse(ctx, schema, raw)
	if err != nil {
		return Page{}, err
	}

	recs, total, err := s.index.Search(ctx, schema, q, page)
	if err != nil {
		return Page{}, fmt.Errorf("search %s: %w", schema.Entity, err)
	}
	if recs == nil {
		recs = []record.Record{}
	}
	return Page{Records: recs, Total: total}, nil
}

// Count returns the number of documents matching raw.
func (s *Service) Count(ctx context.Context, schema *criteria.Schema, raw string) (int, error) {
	q, err := s.parse(ctx, schema, raw)
	if err != nil {
		return 0, err
	}
	n, err := s.index.Count(ctx, schema, q)
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", schema.Entity, err)
	}
	return n, nil
}

func (s *Service) parse(ctx context.Context, schema *criteria.Schema, raw string) (query.Query, error) {
	q, err := query.Parse(schema, raw)
	if err != nil {
		return query.Query{}, err //nolint:wrapcheck // carries ErrInvalidQuery
	}
	if q.HasKeywords() && !s.index.SupportsKeywords(ctx) {
		return query.Query{}, fmt.Errorf("%w: use field:value terms", domain.ErrKeywordSearchNotSupported)
	}
	return q, nil
}
