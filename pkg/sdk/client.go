package routedex

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/routedex/internal/db/elastic"
	"github.com/kailas-cloud/routedex/internal/db/postgres"
	dbRedis "github.com/kailas-cloud/routedex/internal/db/redis"
	"github.com/kailas-cloud/routedex/internal/domain/catalog"
	"github.com/kailas-cloud/routedex/internal/domain/criteria"
	"github.com/kailas-cloud/routedex/internal/domain/indexing"
	"github.com/kailas-cloud/routedex/internal/domain/paging"
	"github.com/kailas-cloud/routedex/internal/domain/record"
	"github.com/kailas-cloud/routedex/internal/metrics"
	"github.com/kailas-cloud/routedex/internal/repository/document"
	"github.com/kailas-cloud/routedex/internal/repository/esdocument"
	"github.com/kailas-cloud/routedex/internal/repository/memory"
	"github.com/kailas-cloud/routedex/internal/repository/primary"
	entityuc "github.com/kailas-cloud/routedex/internal/usecase/entity"
	healthuc "github.com/kailas-cloud/routedex/internal/usecase/health"
	"github.com/kailas-cloud/routedex/internal/usecase/propagation"
	"github.com/kailas-cloud/routedex/internal/usecase/reconcile"
	searchuc "github.com/kailas-cloud/routedex/internal/usecase/search"
)

const (
	defaultReadinessTimeout = 10 * time.Second
	defaultKeyPrefix        = "routedex:"
	queryTimeout            = 5 * time.Second
)

// Internal interfaces for substitution in tests.
type entityUseCase interface {
	Create(ctx context.Context, schema *criteria.Schema, payload map[string]json.RawMessage) (record.Record, error)
	Update(
		ctx context.Context, schema *criteria.Schema, id, expectedVersion int64, payload map[string]json.RawMessage,
	) (record.Record, error)
	Delete(ctx context.Context, schema *criteria.Schema, id, expectedVersion int64) error
	Get(ctx context.Context, schema *criteria.Schema, id int64) (record.Record, error)
	List(ctx context.Context, c *criteria.Criteria, page paging.Request) ([]record.Record, int64, error)
	Count(ctx context.Context, c *criteria.Criteria) (int64, error)
}

type searchUseCase interface {
	Search(ctx context.Context, schema *criteria.Schema, raw string, page paging.Request) (searchuc.Page, error)
}

type stateReader interface {
	State(ctx context.Context, entity string, id int64) (indexing.State, error)
}

type healthUseCase interface {
	Check(ctx context.Context) healthuc.Report
}

type primaryStore interface {
	entityuc.Repository
	reconcile.Primary
}

type debtStore interface {
	propagation.DebtRecorder
	reconcile.Debts
}

type searchIndex interface {
	propagation.Index
	searchuc.Index
	reconcile.Index
	EnsureIndex(ctx context.Context, schema *criteria.Schema) error
}

type pinger interface {
	Ping(ctx context.Context) error
}

// Client is the routedex SDK entry point.
type Client struct {
	catalog    *catalog.Catalog
	entities   entityUseCase
	search     searchUseCase
	state      stateReader
	healthSvc  healthUseCase
	propagator *propagation.Propagator
	reconciler *reconcile.Reconciler
	closers    []func()
	obs        *observer
}

// New creates a Client, connects both stores and ensures an index per entity.
// The provided context bounds the readiness checks.
func New(ctx context.Context, opts ...Option) (*Client, error) {
	cfg := &clientConfig{keyPrefix: defaultKeyPrefix}
	for _, o := range opts {
		o.apply(cfg)
	}
	if cfg.storeDriver == "" {
		return nil, errors.New("routedex: primary store required (use WithPostgres or WithMemoryStore)")
	}
	if cfg.indexDriver == "" {
		return nil, errors.New("routedex: index required (use WithValkey, WithRedis, WithElasticsearch or WithIndex)")
	}

	obs, err := newObserver(cfg.logger, cfg.metricsReg)
	if err != nil {
		return nil, err
	}
	if cfg.metricsReg != nil {
		if err := metrics.Register(cfg.metricsReg); err != nil {
			return nil, fmt.Errorf("routedex: register metrics: %w", err)
		}
	}

	c := &Client{catalog: catalog.Default(), obs: obs}
	if err := c.wire(ctx, cfg); err != nil {
		c.closeStores()
		return nil, err
	}
	return c, nil
}

func (c *Client) wire(ctx context.Context, cfg *clientConfig) error {
	log := zap.NewNop()

	store, debts, dbPing, err := c.openPrimary(ctx, cfg, log)
	if err != nil {
		return err
	}
	index, indexPing, err := c.openIndex(ctx, cfg, log)
	if err != nil {
		return err
	}
	for _, schema := range c.catalog.All() {
		if err := index.EnsureIndex(ctx, schema); err != nil {
			return fmt.Errorf("routedex: ensure index %s: %w", schema.Entity, err)
		}
	}

	prop, err := propagation.New(propagation.Config{
		Workers:    cfg.workers,
		MaxRetries: cfg.maxRetries,
	}, index, debts, c.catalog, log)
	if err != nil {
		return fmt.Errorf("routedex: create propagator: %w", err)
	}
	rec, err := reconcile.New(c.catalog.All(), store, index, debts, prop, "@hourly", 0, log)
	if err != nil {
		return fmt.Errorf("routedex: create reconciler: %w", err)
	}

	c.entities = entityuc.New(store, prop)
	c.search = searchuc.New(index)
	c.state = prop
	c.healthSvc = healthuc.New(dbPing, indexPing, debts)
	c.propagator = prop
	c.reconciler = rec
	return nil
}

func (c *Client) openPrimary(
	ctx context.Context, cfg *clientConfig, log *zap.Logger,
) (primaryStore, debtStore, pinger, error) {
	switch cfg.storeDriver {
	case storeMemory:
		s := memory.New(c.catalog)
		return s, memory.NewDebtRepo(), s, nil
	case storePostgres:
		if cfg.migrate {
			if err := postgres.Migrate(cfg.dsn, log); err != nil {
				return nil, nil, nil, fmt.Errorf("routedex: migrate: %w", err)
			}
		}
		client, err := postgres.NewClient(ctx, postgres.Config{DSN: cfg.dsn}, log)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("routedex: create postgres client: %w", err)
		}
		c.closers = append(c.closers, client.Close)
		if err := client.WaitForReady(ctx, defaultReadinessTimeout); err != nil {
			return nil, nil, nil, fmt.Errorf("routedex: database not ready: %w", err)
		}
		return primary.New(client, queryTimeout), primary.NewDebtRepo(client), client, nil
	default:
		return nil, nil, nil, fmt.Errorf("routedex: unknown store driver %q", cfg.storeDriver)
	}
}

func (c *Client) openIndex(ctx context.Context, cfg *clientConfig, log *zap.Logger) (searchIndex, pinger, error) {
	switch cfg.indexDriver {
	case IndexMemory:
		idx := memory.NewIndex()
		return idx, idx, nil
	case IndexElasticsearch:
		client, err := elastic.NewClient(elastic.Config{Addrs: cfg.indexAddrs}, log)
		if err != nil {
			return nil, nil, fmt.Errorf("routedex: create elasticsearch client: %w", err)
		}
		if err := client.WaitForReady(ctx, defaultReadinessTimeout); err != nil {
			return nil, nil, fmt.Errorf("routedex: elasticsearch not ready: %w", err)
		}
		return esdocument.New(client, cfg.keyPrefix), client, nil
	case IndexValkey, IndexRedis:
		store, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.indexAddrs,
			Password: cfg.indexPass,
			Flavor:   dbRedis.Flavor(cfg.indexDriver),
		})
		if err != nil {
			return nil, nil, fmt.Errorf("routedex: create %s store: %w", cfg.indexDriver, err)
		}
		c.closers = append(c.closers, store.Close)
		if err := store.WaitForReady(ctx, defaultReadinessTimeout); err != nil {
			return nil, nil, fmt.Errorf("routedex: %s not ready: %w", cfg.indexDriver, err)
		}
		return document.New(store, cfg.keyPrefix), store, nil
	default:
		return nil, nil, fmt.Errorf("routedex: unknown index driver %q", cfg.indexDriver)
	}
}

// Close drains queued index changes, bounded by ctx, and releases connections.
func (c *Client) Close(ctx context.Context) error {
	var err error
	if c.propagator != nil {
		err = c.propagator.Close(ctx)
	}
	c.closeStores()
	if err != nil {
		return fmt.Errorf("routedex: close: %w", err)
	}
	return nil
}

func (c *Client) closeStores() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
	c.closers = nil
}

// Entity returns the service for one entity ("station", "route", "trip").
func (c *Client) Entity(name string) (*EntityService, error) {
	schema, err := c.catalog.Entity(name)
	if err != nil {
		return nil, fmt.Errorf("routedex: %w", err)
	}
	return &EntityService{
		schema:   schema,
		entities: c.entities,
		search:   c.search,
		state:    c.state,
		obs:      c.obs,
	}, nil
}

// Entities returns the names of every entity the client serves.
func (c *Client) Entities() []string {
	out := make([]string, 0, len(c.catalog.All()))
	for _, s := range c.catalog.All() {
		out = append(out, s.Entity)
	}
	return out
}

// Reconcile compares the primary store with the index once and re-queues
// every difference. It returns the number of re-queued changes.
func (c *Client) Reconcile(ctx context.Context) (n int, err error) {
	start := time.Now()
	defer func() { c.obs.observe("", "reconcile", start, err) }()

	summaries, err := c.reconciler.RunOnce(ctx)
	for _, s := range summaries {
		n += s.Reindexed + s.Removed
	}
	if err != nil {
		return n, fmt.Errorf("reconcile: %w", err)
	}
	return n, nil
}

// compile-time checks for the stores the client wires.
var (
	_ searchIndex  = (*memory.Index)(nil)
	_ searchIndex  = (*document.Repo)(nil)
	_ searchIndex  = (*esdocument.Repo)(nil)
	_ primaryStore = (*memory.Store)(nil)
	_ primaryStore = (*primary.Repo)(nil)
	_ debtStore    = (*memory.DebtRepo)(nil)
	_ debtStore    = (*primary.DebtRepo)(nil)
)
