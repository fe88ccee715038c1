// Package propagation applies committed primary-store changes to the search
// index asynchronously. Changes of one id are applied in commit order; changes
// of different ids run in parallel across shards.
package propagation

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"strconv"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/kailas-cloud/routedex/internal/domain/indexing"
	"github.com/kailas-cloud/routedex/internal/domain/record"
	"github.com/kailas-cloud/routedex/internal/metrics"
)

// ErrClosed is recorded as the debt reason for changes committed after Close.
var ErrClosed = errors.New("propagator closed")

// ErrQueueFull is recorded as the debt reason for changes that found their
// shard queue full for longer than EnqueueTimeout.
var ErrQueueFull = errors.New("propagation queue full")

// Config tunes the worker pool and retry policy.
type Config struct {
	Workers        int
	QueueSize      int
	EnqueueTimeout time.Duration
	AttemptTimeout time.Duration
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	CacheSize      int
}

func (c *Config) applyDefaults() {
	if c.Workers <= 0 {
		c.Workers = 4
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 1024
	}
	if c.EnqueueTimeout <= 0 {
		c.EnqueueTimeout = time.Second
	}
	if c.AttemptTimeout <= 0 {
		c.AttemptTimeout = 5 * time.Second
	}
	if c.MaxRetries < 1 {
		c.MaxRetries = 1
	}
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = 100 * time.Millisecond
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = 5 * time.Second
	}
	if c.CacheSize <= 0 {
		c.CacheSize = 100_000
	}
}

type docKey struct {
	entity string
	id     int64
}

type applied struct {
	version   int64
	tombstone bool
}

type job struct {
	change   record.Change
	enqueued time.Time
}

// Propagator implements the entity service commit hook.
type Propagator struct {
	cfg     Config
	index   Index
	debt    DebtRecorder
	schemas Schemas
	logger  *zap.Logger

	shards  []chan job
	applied *lru.Cache[docKey, applied]

	pendingMu sync.Mutex
	pending   map[docKey]int

	mu     sync.RWMutex
	closed bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New starts cfg.Workers shard goroutines.
func New(cfg Config, index Index, debt DebtRecorder, schemas Schemas, logger *zap.Logger) (*Propagator, error) {
	cfg.applyDefaults()
	cache, err := lru.New[docKey, applied](cfg.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("create version cache: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &Propagator{
		cfg:     cfg,
		index:   index,
		debt:    debt,
		schemas: schemas,
		logger:  logger,
		shards:  make([]chan job, cfg.Workers),
		applied: cache,
		pending: make(map[docKey]int),
		ctx:     ctx,
		cancel:  cancel,
	}
	for i := range p.shards {
		p.shards[i] = make(chan job, cfg.QueueSize)
		p.wg.Add(1)
		go p.run(i)
	}
	return p, nil
}

// OnCommitted queues c for its shard. While the shard queue is full it waits
// up to EnqueueTimeout (or until ctx is done) and then records c as
// reconciliation debt; the caller never sees propagation failures.
func (p *Propagator) OnCommitted(ctx context.Context, c record.Change) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	key := docKey{c.Entity, c.ID}
	if p.closed {
		p.recordDebt(c, 0, ErrClosed)
		return
	}

	p.addPending(key, 1)
	shard := p.shardOf(key)
	j := job{change: c, enqueued: time.Now()}
	select {
	case p.shards[shard] <- j:
		p.queued(shard)
		return
	default:
	}

	timer := time.NewTimer(p.cfg.EnqueueTimeout)
	defer timer.Stop()
	select {
	case p.shards[shard] <- j:
		p.queued(shard)
	case <-timer.C:
		p.addPending(key, -1)
		p.recordDebt(c, 0, ErrQueueFull)
	case <-ctx.Done():
		p.addPending(key, -1)
		p.recordDebt(c, 0, fmt.Errorf("enqueue: %w", ctx.Err()))
	}
}

func (p *Propagator) queued(shard int) {
	metrics.PropagationQueueDepth.WithLabelValues(strconv.Itoa(shard)).Set(float64(len(p.shards[shard])))
}

// Resync queues c even when the version cache already holds its version. The
// reconciler uses it to restore documents lost from the index.
func (p *Propagator) Resync(ctx context.Context, c record.Change) {
	p.applied.Remove(docKey{c.Entity, c.ID})
	p.OnCommitted(ctx, c)
}

// Close stops accepting changes and drains the queues. When ctx expires first,
// in-flight retries are cancelled and their changes become debt.
func (p *Propagator) Close(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	for _, ch := range p.shards {
		close(ch)
	}
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.cancel()
		return nil
	case <-ctx.Done():
		p.cancel()
		<-done
		return fmt.Errorf("drain propagation queues: %w", ctx.Err())
	}
}

func (p *Propagator) shardOf(key docKey) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key.entity))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write(strconv.AppendInt(nil, key.id, 10))
	return int(h.Sum32() % uint32(len(p.shards)))
}

func (p *Propagator) run(shard int) {
	defer p.wg.Done()
	depth := metrics.PropagationQueueDepth.WithLabelValues(strconv.Itoa(shard))
	for j := range p.shards[shard] {
		depth.Set(float64(len(p.shards[shard])))
		p.apply(j)
		p.addPending(docKey{j.change.Entity, j.change.ID}, -1)
	}
}

func (p *Propagator) apply(j job) {
	c := j.change
	key := docKey{c.Entity, c.ID}
	log := p.logger.With(
		zap.String("entity", c.Entity),
		zap.Int64("id", c.ID),
		zap.Int64("version", c.Version),
		zap.String("change", string(c.Kind)),
	)
	defer func() {
		metrics.PropagationDuration.WithLabelValues(c.Entity).Observe(time.Since(j.enqueued).Seconds())
	}()

	if last, ok := p.applied.Get(key); ok && last.version >= c.Version {
		metrics.PropagationTotal.WithLabelValues(c.Entity, string(c.Kind), "skipped").Inc()
		log.Debug("skip stale change", zap.Int64("applied_version", last.version))
		return
	}

	schema, err := p.schemas.Entity(c.Entity)
	if err != nil {
		metrics.PropagationTotal.WithLabelValues(c.Entity, string(c.Kind), "failed").Inc()
		log.Error("propagation dropped", zap.Error(err))
		return
	}

	attempt := 0
	var outcome indexing.Outcome
	op := func() error {
		attempt++
		ctx, cancel := context.WithTimeout(p.ctx, p.cfg.AttemptTimeout)
		defer cancel()

		var err error
		if c.IsTombstone() {
			outcome, err = p.index.Delete(ctx, schema, c.ID, c.Version)
		} else {
			outcome, err = p.index.Put(ctx, schema, *c.Record)
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		metrics.PropagationRetries.WithLabelValues(c.Entity).Inc()
		log.Warn("index write failed, retrying",
			zap.Int("attempt", attempt), zap.Duration("wait", wait), zap.Error(err))
	}

	if err := backoff.RetryNotify(op, p.policy(), notify); err != nil {
		metrics.PropagationTotal.WithLabelValues(c.Entity, string(c.Kind), "failed").Inc()
		log.Error("propagation exhausted retries", zap.Int("attempt", attempt), zap.Error(err))
		p.recordDebt(c, attempt, err)
		return
	}

	p.remember(key, applied{version: c.Version, tombstone: c.IsTombstone()})
	metrics.PropagationTotal.WithLabelValues(c.Entity, string(c.Kind), string(outcome)).Inc()
	log.Debug("propagated", zap.String("outcome", string(outcome)), zap.Int("attempt", attempt))
}

func (p *Propagator) policy() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.cfg.InitialBackoff
	b.MaxInterval = p.cfg.MaxBackoff
	b.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(p.cfg.MaxRetries)), p.ctx)
}

// remember keeps the highest version seen for key.
func (p *Propagator) remember(key docKey, a applied) {
	if last, ok := p.applied.Get(key); ok && last.version > a.version {
		return
	}
	p.applied.Add(key, a)
}

func (p *Propagator) recordDebt(c record.Change, attempts int, cause error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(p.ctx), p.cfg.AttemptTimeout)
	defer cancel()

	err := p.debt.Record(ctx, indexing.Debt{
		Entity:    c.Entity,
		ID:        c.ID,
		Version:   c.Version,
		Attempts:  attempts,
		LastError: cause.Error(),
	})
	if err != nil {
		p.logger.Error("record reconciliation debt",
			zap.String("entity", c.Entity), zap.Int64("id", c.ID), zap.Int64("version", c.Version), zap.Error(err))
		return
	}
	metrics.ReconciliationDebt.WithLabelValues(c.Entity).Inc()
}

func (p *Propagator) addPending(key docKey, delta int) {
	p.pendingMu.Lock()
	defer p.pendingMu.Unlock()

	n := p.pending[key] + delta
	if n <= 0 {
		delete(p.pending, key)
		return
	}
	p.pending[key] = n
}
