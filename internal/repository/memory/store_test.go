package memory

import (
	"context"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kailas-cloud/routedex/internal/domain"
	"github.com/kailas-cloud/routedex/internal/domain/catalog"
	"github.com/kailas-cloud/routedex/internal/domain/criteria"
	"github.com/kailas-cloud/routedex/internal/domain/indexing"
	"github.com/kailas-cloud/routedex/internal/domain/paging"
	"github.com/kailas-cloud/routedex/internal/domain/record"
)

func value(t *testing.T, k criteria.Kind, raw string) criteria.Value {
	t.Helper()
	v, err := k.Parse(raw)
	require.NoError(t, err)
	return v
}

type fixture struct {
	store    *Store
	stations []record.Record
	routes   []record.Record
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	s := New(catalog.Default())
	f := &fixture{store: s}

	for _, code := range []string{"HAN", "HPH", "DAD"} {
		rec, err := s.Insert(ctx, catalog.Station(), record.New(catalog.EntityStation, map[string]criteria.Value{
			"code": criteria.String(code), "name": criteria.String("Station " + code),
		}))
		require.NoError(t, err)
		f.stations = append(f.stations, rec)
	}

	routes := []map[string]criteria.Value{
		{"routeCode": criteria.String("R1"), "transportType": criteria.String("BUS"),
			"distanceKm": value(t, criteria.KindDecimal, "1.00"), "basePrice": value(t, criteria.KindDecimal, "50")},
		{"routeCode": criteria.String("R2"), "transportType": criteria.String("BUS"),
			"distanceKm": value(t, criteria.KindDecimal, "12.5")},
		{"routeCode": criteria.String("R3"), "transportType": criteria.String("TRAIN")},
	}
	for i, values := range routes {
		values["originId"] = criteria.Integer(f.stations[i].ID())
		rec, err := s.Insert(ctx, catalog.Route(), record.New(catalog.EntityRoute, values))
		require.NoError(t, err)
		f.routes = append(f.routes, rec)
	}
	return f
}

func (f *fixture) find(t *testing.T, query string) []int64 {
	t.Helper()
	params, err := url.ParseQuery(query)
	require.NoError(t, err)
	c, err := criteria.Parse(catalog.Route(), params)
	require.NoError(t, err)
	page, err := paging.New(0, paging.MaxSize, nil)
	require.NoError(t, err)

	recs, err := f.store.Find(context.Background(), c, page)
	require.NoError(t, err)
	n, err := f.store.Count(context.Background(), c)
	require.NoError(t, err)
	assert.Equal(t, int64(len(recs)), n, "count must agree with list for %q", query)

	ids := make([]int64, 0, len(recs))
	for _, r := range recs {
		ids = append(ids, r.ID())
	}
	return ids
}

func TestInsert_AssignsIdentity(t *testing.T) {
	f := newFixture(t)
	r := f.routes[0]
	assert.Equal(t, int64(1), r.ID())
	assert.Equal(t, int64(1), r.Version())
	_, ok := r.Value("createdAt")
	assert.True(t, ok)
}

func TestInsert_Constraints(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.store.Insert(ctx, catalog.Station(), record.New(catalog.EntityStation, map[string]criteria.Value{
		"code": criteria.String("HAN"), "name": criteria.String("dup"),
	}))
	assert.ErrorIs(t, err, domain.ErrConflict)

	_, err = f.store.Insert(ctx, catalog.Route(), record.New(catalog.EntityRoute, map[string]criteria.Value{
		"routeCode": criteria.String("R9"), "transportType": criteria.String("BUS"), "originId": criteria.Integer(404),
	}))
	assert.ErrorIs(t, err, domain.ErrInvalidReference)
}

func TestUpdate_Versioning(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	r := f.routes[1]

	updated, err := f.store.Update(ctx, catalog.Route(), r.WithValue("transportType", criteria.String("VAN")), 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), updated.Version())
	created, _ := updated.Value("createdAt")
	orig, _ := r.Value("createdAt")
	assert.True(t, criteria.Equal(orig, created))

	_, err = f.store.Update(ctx, catalog.Route(), r, 1)
	var conflict *domain.VersionConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, int64(2), conflict.CurrentVersion)

	_, err = f.store.Update(ctx, catalog.Route(), r.WithIdentity(99, 0), 0)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDelete_RestrictsReferencedRows(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.store.Delete(ctx, catalog.Station(), f.stations[0].ID(), 0)
	assert.ErrorIs(t, err, domain.ErrConflict)

	v, err := f.store.Delete(ctx, catalog.Route(), f.routes[0].ID(), 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), v)

	_, err = f.store.Get(ctx, catalog.Route(), f.routes[0].ID())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestFind_Semantics(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name  string
		query string
		want  []int64
	}{
		{"no criteria", "", []int64{1, 2, 3}},
		{"decimal equality is numeric", "distanceKm.equals=1", []int64{1}},
		{"in single equals", "distanceKm.in=1", []int64{1}},
		{"empty in", "distanceKm.in=", []int64{}},
		{"empty notIn", "distanceKm.notIn=", []int64{1, 2, 3}},
		{"notEquals skips null", "distanceKm.notEquals=1", []int64{2}},
		{"specified true", "distanceKm.specified=true", []int64{1, 2}},
		{"specified false", "distanceKm.specified=false", []int64{3}},
		{"range", "distanceKm.greaterThan=0.5&distanceKm.lessThanOrEqual=12.5", []int64{1, 2}},
		{"to-one id", "originId.equals=2", []int64{2}},
		{"distance and price", "distanceKm.equals=1.00&basePrice.lessThan=100", []int64{1}},
		{"notContains skips null", "routeCode.notContains=1", []int64{2, 3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, f.find(t, tt.query))
		})
	}
}

func TestFind_ToManyRelation(t *testing.T) {
	f := newFixture(t)
	params := url.Values{"originRoutesId.specified": {"true"}}
	c, err := criteria.Parse(catalog.Station(), params)
	require.NoError(t, err)
	page, _ := paging.New(0, 10, nil)

	recs, err := f.store.Find(context.Background(), c, page)
	require.NoError(t, err)
	assert.Len(t, recs, 3)

	c, err = criteria.Parse(catalog.Station(), url.Values{"originRoutesId.equals": {"2"}})
	require.NoError(t, err)
	recs, err = f.store.Find(context.Background(), c, page)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, f.stations[1].ID(), recs[0].ID())
}

func TestFind_SortAndPage(t *testing.T) {
	f := newFixture(t)
	c := criteria.New(catalog.Route())

	page, err := paging.New(0, 2, []paging.Order{{Key: "distanceKm", Desc: true}})
	require.NoError(t, err)
	recs, err := f.store.Find(context.Background(), c, page)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	// NULL first when descending, like PostgreSQL.
	assert.Equal(t, int64(3), recs[0].ID())
	assert.Equal(t, int64(2), recs[1].ID())

	page, _ = paging.New(1, 2, []paging.Order{{Key: "distanceKm", Desc: true}})
	recs, err = f.store.Find(context.Background(), c, page)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, int64(1), recs[0].ID())
}

func TestStamps(t *testing.T) {
	f := newFixture(t)
	stamps, err := f.store.Stamps(context.Background(), catalog.Route(), 1, 1)
	require.NoError(t, err)
	assert.Equal(t, []record.Stamp{{ID: 2, Version: 1}}, stamps)
}

func TestDebtRepo(t *testing.T) {
	ctx := context.Background()
	r := NewDebtRepo()
	require.NoError(t, r.Record(ctx, debt("route", 1, 2)))
	require.NoError(t, r.Record(ctx, debt("route", 1, 3)))
	require.NoError(t, r.Record(ctx, debt("trip", 5, 1)))

	debts, err := r.List(ctx, "route", 10)
	require.NoError(t, err)
	require.Len(t, debts, 1)
	assert.Equal(t, int64(3), debts[0].Version)
	assert.Equal(t, 2, debts[0].Attempts)

	require.NoError(t, r.Clear(ctx, "route", 1, 2))
	counts, _ := r.Count(ctx)
	assert.Equal(t, int64(1), counts["route"], "a newer debt survives clearing an older version")

	require.NoError(t, r.Clear(ctx, "route", 1, 3))
	counts, _ = r.Count(ctx)
	assert.Equal(t, map[string]int64{"trip": 1}, counts)
}

func debt(entity string, id, version int64) indexing.Debt {
	return indexing.Debt{Entity: entity, ID: id, Version: version, Attempts: 1, LastError: "boom", RecordedAt: time.Time{}}
}
