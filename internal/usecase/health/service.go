package health

import (
	"context"
	"time"
)

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates the index is unavailable; writes still commit.
	Degraded Status = "degraded"
	// Unhealthy indicates the primary store is unavailable.
	Unhealthy Status = "error"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
)

const checkTimeout = 2 * time.Second

// Report aggregates health check results.
type Report struct {
	Status Status
	Checks map[string]CheckResult
	// Debt is the number of changes awaiting reconciliation, or -1 when unknown.
	Debt int64
	// DebtByEntity splits Debt per entity; nil when unknown.
	DebtByEntity map[string]int64
}

// Service coordinates health checks.
type Service struct {
	db    Pinger
	index Pinger
	debt  DebtCounter
}

// New creates a Service. debt can be nil.
func New(db, index Pinger, debt DebtCounter) *Service {
	return &Service{db: db, index: index, debt: debt}
}

// Check runs health checks against all components.
func (s *Service) Check(ctx context.Context) Report {
	checks := map[string]CheckResult{
		"database": ping(ctx, s.db),
		"index":    ping(ctx, s.index),
	}

	status := Healthy
	switch {
	case checks["database"] == CheckError:
		status = Unhealthy
	case checks["index"] == CheckError:
		status = Degraded
	}

	report := Report{Status: status, Checks: checks, Debt: -1}
	if counts, ok := s.outstandingDebt(ctx); ok {
		report.DebtByEntity = counts
		report.Debt = 0
		for _, n := range counts {
			report.Debt += n
		}
	}
	return report
}

func (s *Service) outstandingDebt(ctx context.Context) (map[string]int64, bool) {
	if s.debt == nil {
		return nil, false
	}
	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	counts, err := s.debt.Count(ctx)
	if err != nil {
		return nil, false
	}
	if counts == nil {
		counts = map[string]int64{}
	}
	return counts, true
}

func ping(ctx context.Context, p Pinger) CheckResult {
	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	if err := p.Ping(ctx); err != nil {
		return CheckError
	}
	return CheckOK
}
