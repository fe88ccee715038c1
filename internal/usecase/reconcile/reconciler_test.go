package reconcile

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kailas-cloud/routedex/internal/domain/catalog"
	"github.com/kailas-cloud/routedex/internal/domain/criteria"
	"github.com/kailas-cloud/routedex/internal/domain/indexing"
	"github.com/kailas-cloud/routedex/internal/domain/record"
	"github.com/kailas-cloud/routedex/internal/metrics"
	"github.com/kailas-cloud/routedex/internal/repository/memory"
)

// applyingResyncer writes changes straight into the index.
type applyingResyncer struct {
	index   *memory.Index
	changes []record.Change
}

func (a *applyingResyncer) Resync(ctx context.Context, c record.Change) {
	a.changes = append(a.changes, c)
	schema := catalog.Station()
	if c.IsTombstone() {
		_, _ = a.index.Delete(ctx, schema, c.ID, c.Version)
		return
	}
	_, _ = a.index.Put(ctx, schema, *c.Record)
}

type fixture struct {
	store  *memory.Store
	index  *memory.Index
	debts  *memory.DebtRepo
	resync *applyingResyncer
	rec    *Reconciler
}

func newFixture(t *testing.T, batch int) *fixture {
	t.Helper()
	f := &fixture{
		store: memory.New(catalog.Default()),
		index: memory.NewIndex(),
		debts: memory.NewDebtRepo(),
	}
	f.resync = &applyingResyncer{index: f.index}
	rec, err := New([]*criteria.Schema{catalog.Station()}, f.store, f.index, f.debts, f.resync,
		"*/5 * * * *", batch, zap.NewNop())
	require.NoError(t, err)
	f.rec = rec
	return f
}

func (f *fixture) insert(t *testing.T, code string) record.Record {
	t.Helper()
	rec, err := f.store.Insert(context.Background(), catalog.Station(), record.New(catalog.EntityStation,
		map[string]criteria.Value{"code": criteria.String(code), "name": criteria.String(code)}))
	require.NoError(t, err)
	return rec
}

func TestNew_RejectsBadSchedule(t *testing.T) {
	_, err := New(nil, nil, nil, nil, nil, "every minute", 0, zap.NewNop())
	assert.Error(t, err)
}

func TestReconcileEntity_Converges(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 2)
	schema := catalog.Station()

	inSync := f.insert(t, "A")
	behind := f.insert(t, "B")
	missing := f.insert(t, "C")

	_, _ = f.index.Put(ctx, schema, inSync)
	_, _ = f.index.Put(ctx, schema, behind)
	behindNow, err := f.store.Update(ctx, schema, behind.WithValue("name", criteria.String("B2")), 0)
	require.NoError(t, err)
	_, _ = f.index.Put(ctx, schema, record.Reconstruct(catalog.EntityStation, 99, 4, nil))
	require.NoError(t, f.debts.Record(ctx, indexing.Debt{Entity: catalog.EntityStation, ID: missing.ID(), Version: 1}))

	sum, err := f.rec.ReconcileEntity(ctx, schema)
	require.NoError(t, err)
	assert.Equal(t, Summary{Entity: "station", Scanned: 3, Reindexed: 2, Removed: 1, DebtCleared: 1}, sum)

	stamps, err := f.index.Stamps(ctx, schema)
	require.NoError(t, err)
	assert.Equal(t, []record.Stamp{
		{ID: inSync.ID(), Version: 1},
		{ID: behindNow.ID(), Version: 2},
		{ID: missing.ID(), Version: 1},
	}, stamps)

	left, err := f.debts.List(ctx, catalog.EntityStation, 0)
	require.NoError(t, err)
	assert.Empty(t, left)

	again, err := f.rec.ReconcileEntity(ctx, schema)
	require.NoError(t, err)
	assert.Zero(t, again.Reindexed+again.Removed, "a converged entity needs no work")
}

type failingIndex struct{}

func (failingIndex) Stamps(context.Context, *criteria.Schema) ([]record.Stamp, error) {
	return nil, errors.New("index down")
}

func TestRunOnce_ReportsErrors(t *testing.T) {
	f := newFixture(t, 10)
	f.rec.index = failingIndex{}

	before := testutil.ToFloat64(metrics.ReconcileRunsTotal.WithLabelValues("error"))
	_, err := f.rec.RunOnce(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "station")
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.ReconcileRunsTotal.WithLabelValues("error")))
}

func TestRunOnce_SetsDebtGauge(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 10)
	f.rec.index = failingIndex{}
	require.NoError(t, f.debts.Record(ctx, indexing.Debt{Entity: catalog.EntityStation, ID: 1, Version: 1}))

	_, _ = f.rec.RunOnce(ctx)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.ReconciliationDebt.WithLabelValues("station")), 0)
}

func TestRun_StopsOnCancel(t *testing.T) {
	f := newFixture(t, 10)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.rec.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop")
	}
}
