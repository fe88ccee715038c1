package routedex

import (
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
)

// Option configures the Client.
type Option interface {
	apply(*clientConfig)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*clientConfig)

func (f optionFunc) apply(c *clientConfig) { f(c) }

// Index drivers accepted by WithIndex.
const (
	IndexValkey        = "valkey"
	IndexRedis         = "redis"
	IndexElasticsearch = "elasticsearch"
	IndexMemory        = "memory"
)

const (
	storePostgres = "postgres"
	storeMemory   = "memory"
)

type clientConfig struct {
	storeDriver string // "postgres" or "memory"
	dsn         string
	migrate     bool

	indexDriver string
	indexAddrs  []string
	indexPass   string
	keyPrefix   string

	workers    int
	maxRetries int

	logger     *slog.Logger
	metricsReg prometheus.Registerer
}

// WithPostgres stores rows in PostgreSQL and applies pending migrations on connect.
func WithPostgres(dsn string) Option {
	return optionFunc(func(c *clientConfig) {
		c.storeDriver = storePostgres
		c.dsn = dsn
		c.migrate = true
	})
}

// WithMemoryStore keeps rows in process memory. Data is lost on Close.
func WithMemoryStore() Option {
	return optionFunc(func(c *clientConfig) {
		c.storeDriver = storeMemory
	})
}

// WithValkey indexes documents in Valkey with valkey-search.
func WithValkey(addr, password string) Option {
	return WithIndex(IndexValkey, addr).withPassword(password)
}

// WithRedis indexes documents in Redis 8+ with the query engine.
func WithRedis(addr, password string) Option {
	return WithIndex(IndexRedis, addr).withPassword(password)
}

// WithElasticsearch indexes documents in Elasticsearch 7.
func WithElasticsearch(addr string) Option {
	return WithIndex(IndexElasticsearch, addr)
}

// IndexOption selects the search index backend.
type IndexOption struct {
	driver   string
	addrs    []string
	password string
}

func (o IndexOption) apply(c *clientConfig) {
	c.indexDriver = o.driver
	c.indexAddrs = o.addrs
	c.indexPass = o.password
}

func (o IndexOption) withPassword(password string) IndexOption {
	o.password = password
	return o
}

// WithIndex selects an index driver by name (see the Index* constants).
// IndexMemory needs no address and is meant for tests.
func WithIndex(driver string, addrs ...string) IndexOption {
	return IndexOption{driver: driver, addrs: addrs}
}

// WithKeyPrefix namespaces index keys (Valkey/Redis) or index names
// (Elasticsearch). Default: "routedex:".
func WithKeyPrefix(prefix string) Option {
	return optionFunc(func(c *clientConfig) {
		c.keyPrefix = prefix
	})
}

// WithSync tunes index propagation: parallel workers and attempts per change.
func WithSync(workers, maxRetries int) Option {
	return optionFunc(func(c *clientConfig) {
		c.workers = workers
		c.maxRetries = maxRetries
	})
}

// WithLogger enables structured logging for SDK operations.
// Pass nil to disable (default). Uses standard library slog.
func WithLogger(l *slog.Logger) Option {
	return optionFunc(func(c *clientConfig) {
		c.logger = l
	})
}

// WithPrometheus registers SDK metrics (operation counts and durations) and
// the engine's propagation metrics on the given registerer. Pass nil to
// disable (default).
func WithPrometheus(reg prometheus.Registerer) Option {
	return optionFunc(func(c *clientConfig) {
		c.metricsReg = reg
	})
}
