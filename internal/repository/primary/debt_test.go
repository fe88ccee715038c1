package primary

import (
	"context"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/kailas-cloud/routedex/internal/domain/indexing"
)

func TestDebtRepo_Record(t *testing.T) {
	var gotSQL string
	var gotArgs []any
	fdb := &fakeDB{
		execFn: func(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
			gotSQL, gotArgs = sql, args
			return pgconn.NewCommandTag("INSERT 0 1"), nil
		},
	}
	err := NewDebtRepo(fdb).Record(context.Background(), indexing.Debt{
		Entity: "route", ID: 4, Version: 2, Attempts: 3, LastError: "timeout",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(gotSQL, "ON CONFLICT (entity, entity_id)") {
		t.Errorf("sql = %s", gotSQL)
	}
	if gotArgs[0] != "route" || gotArgs[1] != int64(4) || gotArgs[3] != int32(3) {
		t.Errorf("args = %v", gotArgs)
	}
}

func TestDebtRepo_List(t *testing.T) {
	fdb := &fakeDB{
		queryFn: func(_ context.Context, _ string, args ...any) (pgx.Rows, error) {
			if args[0] != "trip" {
				t.Errorf("entity arg = %v", args[0])
			}
			return &fakeRows{rows: []fakeRow{
				{values: []any{"trip", int64(9), int64(2), int32(5), "boom", testTime}},
			}}, nil
		},
	}
	debts, err := NewDebtRepo(fdb).List(context.Background(), "trip", 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(debts) != 1 || debts[0].ID != 9 || debts[0].Attempts != 5 || !debts[0].RecordedAt.Equal(testTime) {
		t.Errorf("debts = %+v", debts)
	}
}

func TestDebtRepo_Count(t *testing.T) {
	fdb := &fakeDB{
		queryFn: func(context.Context, string, ...any) (pgx.Rows, error) {
			return &fakeRows{rows: []fakeRow{
				{values: []any{"route", int64(2)}},
				{values: []any{"trip", int64(1)}},
			}}, nil
		},
	}
	counts, err := NewDebtRepo(fdb).Count(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if counts["route"] != 2 || counts["trip"] != 1 {
		t.Errorf("counts = %v", counts)
	}
}
