package routedex

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/kailas-cloud/routedex/internal/domain/catalog"
	"github.com/kailas-cloud/routedex/internal/domain/criteria"
	"github.com/kailas-cloud/routedex/internal/domain/indexing"
	"github.com/kailas-cloud/routedex/internal/domain/paging"
	"github.com/kailas-cloud/routedex/internal/domain/record"
	searchuc "github.com/kailas-cloud/routedex/internal/usecase/search"
)

// --- Mocks ---

type mockEntityUC struct {
	entityUseCase
	createFn func(ctx context.Context, schema *criteria.Schema, payload map[string]json.RawMessage) (record.Record, error)
	listFn   func(ctx context.Context, c *criteria.Criteria, page paging.Request) ([]record.Record, int64, error)
}

func (m *mockEntityUC) Create(
	ctx context.Context, schema *criteria.Schema, payload map[string]json.RawMessage,
) (record.Record, error) {
	return m.createFn(ctx, schema, payload)
}

func (m *mockEntityUC) List(
	ctx context.Context, c *criteria.Criteria, page paging.Request,
) ([]record.Record, int64, error) {
	return m.listFn(ctx, c, page)
}

type mockSearchUC struct {
	searchFn func(ctx context.Context, schema *criteria.Schema, raw string, page paging.Request) (searchuc.Page, error)
}

func (m *mockSearchUC) Search(
	ctx context.Context, schema *criteria.Schema, raw string, page paging.Request,
) (searchuc.Page, error) {
	return m.searchFn(ctx, schema, raw, page)
}

type stateFunc func(ctx context.Context, entity string, id int64) (indexing.State, error)

func (f stateFunc) State(ctx context.Context, entity string, id int64) (indexing.State, error) {
	return f(ctx, entity, id)
}

func testService(e entityUseCase, s searchUseCase, st stateReader) *EntityService {
	return &EntityService{schema: catalog.Station(), entities: e, search: s, state: st}
}

// --- Tests ---

func TestEntityService_Create_PayloadAndRecord(t *testing.T) {
	mock := &mockEntityUC{
		createFn: func(_ context.Context, schema *criteria.Schema, payload map[string]json.RawMessage) (record.Record, error) {
			if schema.Entity != catalog.EntityStation {
				t.Errorf("entity = %q", schema.Entity)
			}
			if string(payload["isActive"]) != "true" || string(payload["code"]) != `"HN"` {
				t.Errorf("unexpected payload %s", payload)
			}
			return record.Reconstruct(schema.Entity, 9, 1, map[string]criteria.Value{
				"code": criteria.String("HN"),
			}), nil
		},
	}

	rec, err := testService(mock, nil, nil).Create(context.Background(), map[string]any{"code": "HN", "isActive": true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.ID != 9 || rec.Version != 1 || rec.Fields["code"] != "HN" {
		t.Fatalf("unexpected record %+v", rec)
	}
	if _, ok := rec.Fields["id"]; ok {
		t.Error("id must not be repeated in Fields")
	}
	if v, ok := rec.Fields["nameEn"]; !ok || v != nil {
		t.Errorf("absent fields should be present as nil, got %v", v)
	}
}

func TestEntityService_Create_Unmarshalable(t *testing.T) {
	_, err := testService(&mockEntityUC{}, nil, nil).Create(context.Background(), map[string]any{"code": make(chan int)})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestEntityService_List_ParsesFilterAndPage(t *testing.T) {
	mock := &mockEntityUC{
		listFn: func(_ context.Context, c *criteria.Criteria, page paging.Request) ([]record.Record, int64, error) {
			if page.Page != 2 || page.Size != 5 || len(page.Sort) != 1 || !page.Sort[0].Desc {
				t.Errorf("unexpected page %+v", page)
			}
			return nil, 0, nil
		},
	}
	svc := testService(mock, nil, nil)

	res, err := svc.List(context.Background(), Where("code").Equals("HN"), Page{Page: 2, Size: 5, Sort: []string{"name,desc"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Records == nil || len(res.Records) != 0 {
		t.Fatalf("expected empty non-nil records, got %#v", res.Records)
	}

	if _, err := svc.List(context.Background(), Where("colour").Equals("red"), Page{}); !errors.Is(err, ErrInvalidCriteria) {
		t.Fatalf("expected ErrInvalidCriteria, got %v", err)
	}
	if _, err := svc.List(context.Background(), Filter{}, Page{Size: 5000}); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestEntityService_Search_WrapsErrors(t *testing.T) {
	mock := &mockSearchUC{
		searchFn: func(context.Context, *criteria.Schema, string, paging.Request) (searchuc.Page, error) {
			return searchuc.Page{}, ErrKeywordSearchNotSupported
		},
	}
	_, err := testService(nil, mock, nil).Search(context.Background(), "hanoi", Page{})
	if !errors.Is(err, ErrKeywordSearchNotSupported) {
		t.Fatalf("expected ErrKeywordSearchNotSupported, got %v", err)
	}
}

func TestEntityService_WaitIndexed(t *testing.T) {
	calls := 0
	st := stateFunc(func(context.Context, string, int64) (indexing.State, error) {
		calls++
		if calls < 3 {
			return indexing.Syncing, nil
		}
		return indexing.Present, nil
	})
	if err := testService(nil, nil, st).WaitIndexed(context.Background(), 1, IndexPresent, time.Second); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 polls, got %d", calls)
	}

	boom := errors.New("index down")
	failing := stateFunc(func(context.Context, string, int64) (indexing.State, error) { return "", boom })
	if err := testService(nil, nil, failing).WaitIndexed(context.Background(), 1, IndexPresent, time.Second); !errors.Is(err, boom) {
		t.Fatalf("expected state error, got %v", err)
	}
}
