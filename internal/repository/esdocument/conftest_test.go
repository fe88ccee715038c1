package esdocument

import (
	"context"
	"encoding/json"

	"github.com/kailas-cloud/routedex/internal/db"
	"github.com/kailas-cloud/routedex/internal/db/elastic"
)

type mockClient struct {
	indexExistsFn func(ctx context.Context, name string) (bool, error)
	createIndexFn func(ctx context.Context, name string, body map[string]any) error
	putFn         func(ctx context.Context, index, id string, version int64, doc any) (db.WriteResult, error)
	deleteFn      func(ctx context.Context, index, id string, version int64) (db.WriteResult, error)
	getFn         func(ctx context.Context, index, id string) (map[string]json.RawMessage, error)
	searchFn      func(ctx context.Context, index string, body map[string]any) (*elastic.Hits, error)
	countFn       func(ctx context.Context, index string, query map[string]any) (int, error)
}

func (m *mockClient) IndexExists(ctx context.Context, name string) (bool, error) {
	if m.indexExistsFn != nil {
		return m.indexExistsFn(ctx, name)
	}
	return true, nil
}

func (m *mockClient) CreateIndex(ctx context.Context, name string, body map[string]any) error {
	if m.createIndexFn != nil {
		return m.createIndexFn(ctx, name, body)
	}
	return nil
}

func (m *mockClient) Put(ctx context.Context, index, id string, version int64, doc any) (db.WriteResult, error) {
	if m.putFn != nil {
		return m.putFn(ctx, index, id, version, doc)
	}
	return db.Applied, nil
}

func (m *mockClient) Delete(ctx context.Context, index, id string, version int64) (db.WriteResult, error) {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, index, id, version)
	}
	return db.Applied, nil
}

func (m *mockClient) Get(ctx context.Context, index, id string) (map[string]json.RawMessage, error) {
	if m.getFn != nil {
		return m.getFn(ctx, index, id)
	}
	return nil, db.ErrKeyNotFound
}

func (m *mockClient) Search(ctx context.Context, index string, body map[string]any) (*elastic.Hits, error) {
	if m.searchFn != nil {
		return m.searchFn(ctx, index, body)
	}
	return &elastic.Hits{}, nil
}

func (m *mockClient) Count(ctx context.Context, index string, query map[string]any) (int, error) {
	if m.countFn != nil {
		return m.countFn(ctx, index, query)
	}
	return 0, nil
}

func rawSource(pairs map[string]string) map[string]json.RawMessage {
	out := make(map[string]json.RawMessage, len(pairs))
	for k, v := range pairs {
		out[k] = json.RawMessage(v)
	}
	return out
}
