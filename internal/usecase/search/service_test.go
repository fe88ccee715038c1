package search

import (
	"context"
	"errors"
	"testing"

	"github.com/kailas-cloud/routedex/internal/domain"
	"github.com/kailas-cloud/routedex/internal/domain/catalog"
	"github.com/kailas-cloud/routedex/internal/domain/criteria"
	"github.com/kailas-cloud/routedex/internal/domain/paging"
	"github.com/kailas-cloud/routedex/internal/domain/record"
	"github.com/kailas-cloud/routedex/internal/domain/search/query"
)

// --- Mocks ---

type mockIndex struct {
	keywords   bool
	records    []record.Record
	total      int
	err        error
	lastQuery  query.Query
	lastPage   paging.Request
	countValue int
}

func (m *mockIndex) Search(
	_ context.Context, _ *criteria.Schema, q query.Query, page paging.Request,
) ([]record.Record, int, error) {
	m.lastQuery, m.lastPage = q, page
	return m.records, m.total, m.err
}

func (m *mockIndex) Count(_ context.Context, _ *criteria.Schema, q query.Query) (int, error) {
	m.lastQuery = q
	return m.countValue, m.err
}

func (m *mockIndex) SupportsKeywords(context.Context) bool { return m.keywords }

// --- Tests ---

func TestSearch_ReturnsPage(t *testing.T) {
	idx := &mockIndex{
		keywords: true,
		records:  []record.Record{record.Reconstruct("station", 1, 1, nil)},
		total:    7,
	}
	page, err := New(idx).Search(context.Background(), catalog.Station(), "hanoi isActive:true",
		paging.Request{Page: 1, Size: 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if page.Total != 7 || len(page.Records) != 1 {
		t.Errorf("unexpected page %+v", page)
	}
	if len(idx.lastQuery.Terms()) != 2 {
		t.Errorf("expected 2 terms, got %d", len(idx.lastQuery.Terms()))
	}
	if idx.lastPage.Offset() != 1 {
		t.Errorf("expected offset 1, got %d", idx.lastPage.Offset())
	}
}

func TestSearch_ZeroMatchesIsEmptyPage(t *testing.T) {
	page, err := New(&mockIndex{}).Search(context.Background(), catalog.Route(), "", paging.Request{Size: 20})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if page.Records == nil || len(page.Records) != 0 || page.Total != 0 {
		t.Errorf("expected empty non-nil page, got %+v", page)
	}
}

func TestSearch_KeywordsNeedTextBackend(t *testing.T) {
	idx := &mockIndex{keywords: false}
	svc := New(idx)

	_, err := svc.Search(context.Background(), catalog.Station(), "hanoi", paging.Request{Size: 20})
	if !errors.Is(err, domain.ErrKeywordSearchNotSupported) {
		t.Fatalf("expected ErrKeywordSearchNotSupported, got %v", err)
	}

	if _, err := svc.Search(context.Background(), catalog.Station(), "code:HAN", paging.Request{Size: 20}); err != nil {
		t.Fatalf("field terms work without text support: %v", err)
	}
}

func TestSearch_InvalidQuery(t *testing.T) {
	_, err := New(&mockIndex{}).Search(context.Background(), catalog.Route(), "wardCode:1", paging.Request{Size: 1})
	if !errors.Is(err, domain.ErrInvalidQuery) {
		t.Fatalf("expected ErrInvalidQuery, got %v", err)
	}
}

func TestSearch_IndexError(t *testing.T) {
	boom := errors.New("index down")
	_, err := New(&mockIndex{err: boom}).Search(context.Background(), catalog.Route(), "*", paging.Request{Size: 1})
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped index error, got %v", err)
	}
}

func TestCount(t *testing.T) {
	n, err := New(&mockIndex{countValue: 3}).Count(context.Background(), catalog.Trip(), "status:SCHEDULED")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 3 {
		t.Errorf("expected 3, got %d", n)
	}
}
