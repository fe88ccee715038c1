package routedex

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/kailas-cloud/routedex/internal/domain"
)

func newMemoryClient(t *testing.T, opts ...Option) *Client {
	t.Helper()
	opts = append([]Option{WithMemoryStore(), WithIndex(IndexMemory), WithSync(2, 2)}, opts...)
	c, err := New(context.Background(), opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = c.Close(context.Background()) })
	return c
}

func entity(t *testing.T, c *Client, name string) *EntityService {
	t.Helper()
	svc, err := c.Entity(name)
	if err != nil {
		t.Fatalf("Entity(%q): %v", name, err)
	}
	return svc
}

func TestNew_RequiresStores(t *testing.T) {
	tests := []struct {
		name string
		opts []Option
		want string
	}{
		{"no store", []Option{WithIndex(IndexMemory)}, "primary store required"},
		{"no index", []Option{WithMemoryStore()}, "index required"},
		{"unknown index", []Option{WithMemoryStore(), WithIndex("solr")}, "unknown index driver"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(context.Background(), tt.opts...)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestClient_UnknownEntity(t *testing.T) {
	c := newMemoryClient(t)
	if _, err := c.Entity("plane"); !errors.Is(err, ErrUnknownEntity) {
		t.Fatalf("expected ErrUnknownEntity, got %v", err)
	}
	if got := c.Entities(); len(got) != 6 {
		t.Fatalf("expected 6 entities, got %v", got)
	}
}

func TestClient_RouteLifecycle(t *testing.T) {
	ctx := context.Background()
	c := newMemoryClient(t)
	stations := entity(t, c, "station")
	routes := entity(t, c, "route")

	a, err := stations.Create(ctx, map[string]any{"code": "HN", "name": "Ha Noi"})
	if err != nil {
		t.Fatalf("create station: %v", err)
	}
	b, err := stations.Create(ctx, map[string]any{"code": "HP", "name": "Hai Phong"})
	if err != nil {
		t.Fatalf("create station: %v", err)
	}

	r, err := routes.Create(ctx, map[string]any{
		"routeCode":     "HN-HP",
		"transportType": "BUS",
		"distanceKm":    "120.5",
		"basePrice":     45,
		"originId":      a.ID,
		"destinationId": b.ID,
	})
	if err != nil {
		t.Fatalf("create route: %v", err)
	}
	if r.Version != 1 || r.Fields["routeCode"] != "HN-HP" {
		t.Fatalf("unexpected route %+v", r)
	}

	if err := routes.WaitIndexed(ctx, r.ID, IndexPresent, 5*time.Second); err != nil {
		t.Fatalf("WaitIndexed: %v", err)
	}

	f := Where("distanceKm").GreaterThan(100).And(Where("basePrice").LessThan(50))
	page, err := routes.List(ctx, f, Page{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if page.Total != 1 || len(page.Records) != 1 || page.Records[0].ID != r.ID {
		t.Fatalf("unexpected list %+v", page)
	}
	n, err := routes.Count(ctx, f)
	if err != nil || n != page.Total {
		t.Fatalf("count = %d, %v; want %d", n, err, page.Total)
	}

	hits, err := routes.Search(ctx, "routeCode:HN-HP", Page{})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if hits.Total != 1 {
		t.Fatalf("expected 1 hit, got %d", hits.Total)
	}

	updated, err := routes.Update(ctx, r.ID, r.Version, r.Fields)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Version != 2 {
		t.Fatalf("expected version 2, got %d", updated.Version)
	}

	_, err = routes.Update(ctx, r.ID, r.Version, r.Fields)
	var conflict *VersionConflictError
	if !errors.As(err, &conflict) || conflict.CurrentVersion != 2 {
		t.Fatalf("expected version conflict at 2, got %v", err)
	}

	if err := stations.Delete(ctx, a.ID, 0); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected referenced station delete to conflict, got %v", err)
	}
	if err := routes.Delete(ctx, r.ID, 0); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := routes.Get(ctx, r.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := routes.WaitIndexed(ctx, r.ID, IndexAbsent, 5*time.Second); err != nil {
		t.Fatalf("WaitIndexed absent: %v", err)
	}
}

func TestWaitIndexed_Timeout(t *testing.T) {
	c := newMemoryClient(t)
	stations := entity(t, c, "station")

	err := stations.WaitIndexed(context.Background(), 404, IndexPresent, 50*time.Millisecond)
	if !errors.Is(err, ErrIndexTimeout) {
		t.Fatalf("expected ErrIndexTimeout, got %v", err)
	}
}

func TestClient_HealthAndReconcile(t *testing.T) {
	ctx := context.Background()
	c := newMemoryClient(t)

	h := c.Health(ctx)
	if h.Status != HealthOK || h.Checks["database"] != "ok" || h.Checks["index"] != "ok" || h.Debt != 0 {
		t.Fatalf("unexpected health %+v", h)
	}
	if !h.Serving() || len(h.DebtByEntity) != 0 {
		t.Fatalf("unexpected health %+v", h)
	}

	stations := entity(t, c, "station")
	s, err := stations.Create(ctx, map[string]any{"code": "DN", "name": "Da Nang"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := stations.WaitIndexed(ctx, s.ID, IndexPresent, 5*time.Second); err != nil {
		t.Fatalf("WaitIndexed: %v", err)
	}
	n, err := c.Reconcile(ctx)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected a converged index, %d changes re-queued", n)
	}
}

func TestClient_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := newMemoryClient(t, WithPrometheus(reg))
	stations := entity(t, c, "station")

	if _, err := stations.Create(context.Background(), map[string]any{"code": "X"}); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	if _, err := stations.Create(context.Background(), map[string]any{"code": "X", "name": "Ok"}); err != nil {
		t.Fatalf("create: %v", err)
	}

	ops := c.obs.metrics.operations
	if got := testutil.ToFloat64(ops.WithLabelValues("station", "create", "rejected")); got != 1 {
		t.Fatalf("rejected creates = %v, want 1", got)
	}
	if got := testutil.ToFloat64(ops.WithLabelValues("station", "create", "ok")); got != 1 {
		t.Fatalf("ok creates = %v, want 1", got)
	}
	if got := testutil.ToFloat64(ops.WithLabelValues("station", "create", "error")); got != 0 {
		t.Fatalf("failed creates = %v, want 0", got)
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, statusOK},
		{fmt.Errorf("get station: %w", ErrNotFound), statusRejected},
		{domain.NewVersionConflict(3), statusRejected},
		{fmt.Errorf("create route: %w", ErrInvalidReference), statusRejected},
		{ErrIndexTimeout, statusError},
		{errors.New("connection reset"), statusError},
	}
	for _, tt := range tests {
		if got := classify(tt.err); got != tt.want {
			t.Errorf("classify(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

func TestRegisterOrReuse_SharesCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := newSDKMetrics(reg)
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	second, err := newSDKMetrics(reg)
	if err != nil {
		t.Fatalf("second: %v", err)
	}
	if first.operations != second.operations || first.duration != second.duration {
		t.Fatal("second registration must reuse the existing collectors")
	}
}
