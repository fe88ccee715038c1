package document

import (
	"context"
	"testing"

	"github.com/kailas-cloud/routedex/internal/db"
	"github.com/kailas-cloud/routedex/internal/domain/catalog"
	"github.com/kailas-cloud/routedex/internal/domain/criteria"
	"github.com/kailas-cloud/routedex/internal/domain/record"
)

// mockStore implements the consumer interface for tests.
type mockStore struct {
	text bool

	replaceFn     func(ctx context.Context, key string, version int64, fields map[string]string) (db.WriteResult, error)
	deleteFn      func(ctx context.Context, key string, version int64) (db.WriteResult, error)
	hgetAllFn     func(ctx context.Context, key string) (map[string]string, error)
	hgetFieldFn   func(ctx context.Context, field string, keys []string) ([]string, error)
	scanFn        func(ctx context.Context, pattern string) ([]string, error)
	createIndexFn func(ctx context.Context, def *db.IndexDefinition) error
	indexExistsFn func(ctx context.Context, name string) (bool, error)
	searchListFn  func(ctx context.Context, q *db.ListQuery) (*db.SearchResult, error)
	searchCountFn func(ctx context.Context, index, query string) (int, error)
}

func (m *mockStore) ReplaceHash(
	ctx context.Context, key string, version int64, fields map[string]string,
) (db.WriteResult, error) {
	if m.replaceFn != nil {
		return m.replaceFn(ctx, key, version, fields)
	}
	return db.Applied, nil
}

func (m *mockStore) DeleteHash(ctx context.Context, key string, version int64) (db.WriteResult, error) {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, key, version)
	}
	return db.Applied, nil
}

func (m *mockStore) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	if m.hgetAllFn != nil {
		return m.hgetAllFn(ctx, key)
	}
	return map[string]string{}, nil
}

func (m *mockStore) HGetFieldMulti(ctx context.Context, field string, keys []string) ([]string, error) {
	if m.hgetFieldFn != nil {
		return m.hgetFieldFn(ctx, field, keys)
	}
	return make([]string, len(keys)), nil
}

func (m *mockStore) Scan(ctx context.Context, pattern string) ([]string, error) {
	if m.scanFn != nil {
		return m.scanFn(ctx, pattern)
	}
	return nil, nil
}

func (m *mockStore) CreateIndex(ctx context.Context, def *db.IndexDefinition) error {
	if m.createIndexFn != nil {
		return m.createIndexFn(ctx, def)
	}
	return nil
}

func (m *mockStore) IndexExists(ctx context.Context, name string) (bool, error) {
	if m.indexExistsFn != nil {
		return m.indexExistsFn(ctx, name)
	}
	return false, nil
}

func (m *mockStore) SupportsTextSearch(context.Context) bool { return m.text }

func (m *mockStore) SearchList(ctx context.Context, q *db.ListQuery) (*db.SearchResult, error) {
	if m.searchListFn != nil {
		return m.searchListFn(ctx, q)
	}
	return &db.SearchResult{}, nil
}

func (m *mockStore) SearchCount(ctx context.Context, index, query string) (int, error) {
	if m.searchCountFn != nil {
		return m.searchCountFn(ctx, index, query)
	}
	return 0, nil
}

func newTestRepo(t *testing.T, text bool) (*Repo, *mockStore) {
	t.Helper()
	ms := &mockStore{text: text}
	return New(ms, "rd:"), ms
}

func testRoute(t *testing.T) record.Record {
	t.Helper()
	dist, err := criteria.KindDecimal.Parse("12.50")
	if err != nil {
		t.Fatal(err)
	}
	return record.Reconstruct(catalog.EntityRoute, 7, 3, map[string]criteria.Value{
		"routeCode":     criteria.String("HN-HP"),
		"transportType": criteria.String("BUS"),
		"distanceKm":    dist,
		"isActive":      criteria.Boolean(true),
		"originId":      criteria.Integer(1),
	})
}
