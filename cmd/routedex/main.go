package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/routedex/internal/config"
	"github.com/kailas-cloud/routedex/internal/db/elastic"
	"github.com/kailas-cloud/routedex/internal/db/postgres"
	dbRedis "github.com/kailas-cloud/routedex/internal/db/redis"
	"github.com/kailas-cloud/routedex/internal/domain/catalog"
	"github.com/kailas-cloud/routedex/internal/domain/criteria"
	"github.com/kailas-cloud/routedex/internal/domain/indexing"
	"github.com/kailas-cloud/routedex/internal/domain/paging"
	"github.com/kailas-cloud/routedex/internal/domain/record"
	"github.com/kailas-cloud/routedex/internal/domain/search/query"
	logpkg "github.com/kailas-cloud/routedex/internal/logger"
	"github.com/kailas-cloud/routedex/internal/metrics"
	"github.com/kailas-cloud/routedex/internal/repository/document"
	"github.com/kailas-cloud/routedex/internal/repository/esdocument"
	"github.com/kailas-cloud/routedex/internal/repository/memory"
	"github.com/kailas-cloud/routedex/internal/repository/primary"
	chiTransport "github.com/kailas-cloud/routedex/internal/transport/chi"
	entityuc "github.com/kailas-cloud/routedex/internal/usecase/entity"
	healthuc "github.com/kailas-cloud/routedex/internal/usecase/health"
	"github.com/kailas-cloud/routedex/internal/usecase/propagation"
	"github.com/kailas-cloud/routedex/internal/usecase/reconcile"
	searchuc "github.com/kailas-cloud/routedex/internal/usecase/search"
	"github.com/kailas-cloud/routedex/internal/version"
)

// primaryStore is everything the composition root needs from the primary store.
type primaryStore interface {
	entityuc.Repository
	reconcile.Primary
}

// debtStore is the reconciliation debt table.
type debtStore interface {
	propagation.DebtRecorder
	reconcile.Debts
}

// searchIndex is everything the composition root needs from the search index.
type searchIndex interface {
	EnsureIndex(ctx context.Context, schema *criteria.Schema) error
	Put(ctx context.Context, schema *criteria.Schema, rec record.Record) (indexing.Outcome, error)
	Delete(ctx context.Context, schema *criteria.Schema, id, version int64) (indexing.Outcome, error)
	Get(ctx context.Context, schema *criteria.Schema, id int64) (record.Record, error)
	Search(ctx context.Context, schema *criteria.Schema, q query.Query, page paging.Request) ([]record.Record, int, error)
	Count(ctx context.Context, schema *criteria.Schema, q query.Query) (int, error)
	Stamps(ctx context.Context, schema *criteria.Schema) ([]record.Stamp, error)
	SupportsKeywords(ctx context.Context) bool
}

type pinger interface {
	Ping(ctx context.Context) error
}

// backend is one opened store plus its health probe and close hook.
type backend[T any] struct {
	store T
	ping  pinger
	close func()
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting routedex API server",
		zap.String("version", version.String()),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("db_driver", cfg.Database.Driver),
		zap.String("index_driver", cfg.Index.Driver),
		zap.Strings("index_addrs", cfg.Index.Addrs),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}

	cat := catalog.Default()

	repo, debts, err := openPrimary(ctx, cfg, cat, logger)
	if err != nil {
		return err
	}
	defer repo.close()

	index, err := openIndex(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer index.close()

	for _, schema := range cat.All() {
		if err := index.store.EnsureIndex(ctx, schema); err != nil {
			return fmt.Errorf("ensure index %s: %w", schema.Entity, err)
		}
	}

	prop, err := propagation.New(propagation.Config{
		Workers:        cfg.Sync.Workers,
		QueueSize:      cfg.Sync.QueueSize,
		EnqueueTimeout: time.Duration(cfg.Sync.EnqueueTimeoutMs) * time.Millisecond,
		AttemptTimeout: time.Duration(cfg.Sync.AttemptTimeoutMs) * time.Millisecond,
		MaxRetries:     cfg.Sync.MaxRetries,
		InitialBackoff: time.Duration(cfg.Sync.InitialBackoffMs) * time.Millisecond,
		MaxBackoff:     time.Duration(cfg.Sync.MaxBackoffMs) * time.Millisecond,
		CacheSize:      cfg.Sync.VersionCacheSize,
	}, index.store, debts, cat, logger)
	if err != nil {
		return fmt.Errorf("create propagator: %w", err)
	}

	server := chiTransport.NewServer(
		cat,
		entityuc.New(repo.store, prop),
		searchuc.New(index.store),
		healthuc.New(repo.ping, index.ping, debts),
		prop,
		logger,
	)

	var reconciler *reconcile.Reconciler
	if cfg.Reconcile.Enabled {
		reconciler, err = reconcile.New(cat.All(), repo.store, index.store, debts, prop,
			cfg.Reconcile.Schedule, cfg.Reconcile.BatchSize, logger.Named("reconcile"))
		if err != nil {
			return fmt.Errorf("create reconciler: %w", err)
		}
	}

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      chiTransport.NewRouter(server, logger, cfg.HTTP.CORSOrigins),
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	if reconciler != nil {
		g.Go(func() error { return reconciler.Run(gctx) })
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(),
			time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
		defer cancel()

		var errs []error
		if err := srv.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("http shutdown: %w", err))
		}
		// Writes have stopped; drain what they queued.
		if err := prop.Close(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("propagator shutdown: %w", err))
		}
		return errors.Join(errs...)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server stopped with error", zap.Error(err))
		return err
	}
	logger.Info("Server stopped")
	return nil
}

func openPrimary(
	ctx context.Context, cfg config.Config, cat *catalog.Catalog, logger *zap.Logger,
) (backend[primaryStore], debtStore, error) {
	if cfg.Database.Driver == config.DriverMemory {
		store := memory.New(cat)
		logger.Warn("Using in-memory primary store; data is lost on restart")
		return backend[primaryStore]{store: store, ping: store, close: func() {}}, memory.NewDebtRepo(), nil
	}

	if cfg.Database.MigrateOnStart {
		if err := postgres.Migrate(cfg.Database.DSN, logger); err != nil {
			return backend[primaryStore]{}, nil, fmt.Errorf("migrate database: %w", err)
		}
	}

	client, err := postgres.NewClient(ctx, postgres.Config{
		DSN:             cfg.Database.DSN,
		MaxConns:        cfg.Database.MaxConns,
		MinConns:        cfg.Database.MinConns,
		MaxConnLifetime: time.Duration(cfg.Database.ConnMaxLifetimeSec) * time.Second,
	}, logger)
	if err != nil {
		return backend[primaryStore]{}, nil, fmt.Errorf("create database client: %w", err)
	}
	if err := client.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		client.Close()
		return backend[primaryStore]{}, nil, fmt.Errorf("database not ready: %w", err)
	}
	logger.Info("Connected to database")

	repo := primary.New(client, time.Duration(cfg.Database.QueryTimeoutSec)*time.Second)
	return backend[primaryStore]{store: repo, ping: client, close: client.Close}, primary.NewDebtRepo(client), nil
}

func openIndex(ctx context.Context, cfg config.Config, logger *zap.Logger) (backend[searchIndex], error) {
	timeout := time.Duration(cfg.Index.ReadinessTimeout) * time.Second

	switch cfg.Index.Driver {
	case config.IndexMemory:
		idx := memory.NewIndex()
		logger.Warn("Using in-memory search index")
		return backend[searchIndex]{store: idx, ping: idx, close: func() {}}, nil

	case config.IndexElasticsearch:
		refresh := ""
		if cfg.Index.RefreshOnWrite {
			refresh = "wait_for"
		}
		client, err := elastic.NewClient(elastic.Config{
			Addrs:    cfg.Index.Addrs,
			Username: cfg.Index.Username,
			Password: cfg.Index.Password,
			Refresh:  refresh,
		}, logger)
		if err != nil {
			return backend[searchIndex]{}, fmt.Errorf("create elasticsearch client: %w", err)
		}
		if err := client.WaitForReady(ctx, timeout); err != nil {
			return backend[searchIndex]{}, fmt.Errorf("elasticsearch not ready: %w", err)
		}
		logger.Info("Connected to elasticsearch")
		return backend[searchIndex]{
			store: esdocument.New(client, cfg.Index.KeyPrefix),
			ping:  client,
			close: client.Close,
		}, nil

	default:
		flavor := dbRedis.FlavorValkey
		if cfg.Index.Driver == config.IndexRedis {
			flavor = dbRedis.FlavorRedis
		}
		store, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:      cfg.Index.Addrs,
			Username:   cfg.Index.Username,
			Password:   cfg.Index.Password,
			Flavor:     flavor,
			MaxResults: cfg.Index.MaxResults,
		})
		if err != nil {
			return backend[searchIndex]{}, fmt.Errorf("create %s store: %w", flavor, err)
		}
		if err := store.WaitForReady(ctx, timeout); err != nil {
			store.Close()
			return backend[searchIndex]{}, fmt.Errorf("%s not ready: %w", flavor, err)
		}
		logger.Info("Connected to index", zap.String("flavor", string(flavor)))
		return backend[searchIndex]{
			store: document.New(store, cfg.Index.KeyPrefix),
			ping:  store,
			close: store.Close,
		}, nil
	}
}
