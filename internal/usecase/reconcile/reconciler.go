// Package reconcile converges the search index with the primary store. It
// re-queues rows whose document is missing or behind, removes orphan
// documents and drains the debt left by exhausted propagation retries.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/adhocore/gronx"
	"go.uber.org/zap"

	"github.com/kailas-cloud/routedex/internal/domain"
	"github.com/kailas-cloud/routedex/internal/domain/criteria"
	"github.com/kailas-cloud/routedex/internal/domain/record"
	"github.com/kailas-cloud/routedex/internal/metrics"
)

// DefaultBatchSize bounds primary-store pages and debt listings.
const DefaultBatchSize = 500

// Summary describes one entity pass.
type Summary struct {
	Entity      string
	Scanned     int
	Reindexed   int
	Removed     int
	DebtCleared int
}

// Reconciler runs reconciliation passes on a cron schedule.
type Reconciler struct {
	schemas   []*criteria.Schema
	primary   Primary
	index     Index
	debts     Debts
	sync      Resyncer
	schedule  string
	batchSize int
	logger    *zap.Logger
	now       func() time.Time
}

// New validates schedule and creates a reconciler.
func New(
	schemas []*criteria.Schema, primary Primary, index Index, debts Debts, sync Resyncer,
	schedule string, batchSize int, logger *zap.Logger,
) (*Reconciler, error) {
	if !gronx.New().IsValid(schedule) {
		return nil, fmt.Errorf("invalid reconcile schedule %q", schedule)
	}
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Reconciler{
		schemas:   schemas,
		primary:   primary,
		index:     index,
		debts:     debts,
		sync:      sync,
		schedule:  schedule,
		batchSize: batchSize,
		logger:    logger,
		now:       time.Now,
	}, nil
}

// Run reconciles on every schedule tick until ctx is cancelled.
func (r *Reconciler) Run(ctx context.Context) error {
	r.logger.Info("reconciler started", zap.String("schedule", r.schedule))
	for {
		next, err := gronx.NextTickAfter(r.schedule, r.now(), false)
		if err != nil {
			return fmt.Errorf("next reconcile tick: %w", err)
		}

		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			r.logger.Info("reconciler stopped")
			return nil
		case <-timer.C:
		}

		if _, err := r.RunOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
			r.logger.Error("reconcile run failed", zap.Error(err))
		}
	}
}

// RunOnce reconciles every entity and refreshes the debt gauge.
func (r *Reconciler) RunOnce(ctx context.Context) ([]Summary, error) {
	summaries := make([]Summary, 0, len(r.schemas))
	var errs []error
	for _, schema := range r.schemas {
		s, err := r.ReconcileEntity(ctx, schema)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", schema.Entity, err))
			continue
		}
		summaries = append(summaries, s)
		if s.Reindexed > 0 || s.Removed > 0 || s.DebtCleared > 0 {
			r.logger.Info("reconciled",
				zap.String("entity", s.Entity),
				zap.Int("scanned", s.Scanned),
				zap.Int("reindexed", s.Reindexed),
				zap.Int("removed", s.Removed),
				zap.Int("debt_cleared", s.DebtCleared),
			)
		}
	}
	r.refreshDebtGauge(ctx)

	if err := errors.Join(errs...); err != nil {
		metrics.ReconcileRunsTotal.WithLabelValues("error").Inc()
		return summaries, err
	}
	metrics.ReconcileRunsTotal.WithLabelValues("ok").Inc()
	return summaries, nil
}

// ReconcileEntity compares primary and index versions of one entity and
// re-queues every difference. Queued changes converge asynchronously.
func (r *Reconciler) ReconcileEntity(ctx context.Context, schema *criteria.Schema) (Summary, error) {
	sum := Summary{Entity: schema.Entity}

	pending, err := r.debts.List(ctx, schema.Entity, r.batchSize)
	if err != nil {
		return sum, fmt.Errorf("list debt: %w", err)
	}

	indexed, err := r.index.Stamps(ctx, schema)
	if err != nil {
		return sum, fmt.Errorf("list index versions: %w", err)
	}
	inIndex := make(map[int64]int64, len(indexed))
	for _, s := range indexed {
		inIndex[s.ID] = s.Version
	}

	var after int64
	for {
		page, err := r.primary.Stamps(ctx, schema, after, r.batchSize)
		if err != nil {
			return sum, fmt.Errorf("list primary versions: %w", err)
		}
		for _, s := range page {
			sum.Scanned++
			v, ok := inIndex[s.ID]
			delete(inIndex, s.ID)
			if ok && v == s.Version {
				continue
			}
			requeued, err := r.reindex(ctx, schema, s.ID)
			if err != nil {
				return sum, err
			}
			if requeued {
				sum.Reindexed++
			}
		}
		if len(page) < r.batchSize {
			break
		}
		after = page[len(page)-1].ID
	}

	for id, version := range inIndex {
		r.sync.Resync(ctx, record.NewTombstone(schema.Entity, id, version))
		sum.Removed++
	}

	for _, d := range pending {
		if err := r.debts.Clear(ctx, d.Entity, d.ID, d.Version); err != nil {
			return sum, fmt.Errorf("clear debt %d: %w", d.ID, err)
		}
		sum.DebtCleared++
	}
	return sum, nil
}

func (r *Reconciler) reindex(ctx context.Context, schema *criteria.Schema, id int64) (bool, error) {
	rec, err := r.primary.Get(ctx, schema, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return false, nil // deleted since the scan; its tombstone is queued
		}
		return false, fmt.Errorf("read %s %d: %w", schema.Entity, id, err)
	}
	r.sync.Resync(ctx, record.NewUpsert(record.Updated, rec))
	return true, nil
}

func (r *Reconciler) refreshDebtGauge(ctx context.Context) {
	counts, err := r.debts.Count(ctx)
	if err != nil {
		r.logger.Warn("count reconciliation debt", zap.Error(err))
		return
	}
	for _, schema := range r.schemas {
		metrics.ReconciliationDebt.WithLabelValues(schema.Entity).Set(float64(counts[schema.Entity]))
	}
}
