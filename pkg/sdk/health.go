package routedex

import (
	"context"
	"time"
)

// Health statuses.
const (
	HealthOK       = "ok"       // both stores answer
	HealthDegraded = "degraded" // index down; writes still commit and queue
	HealthError    = "error"    // primary store down
)

// HealthStatus is the aggregated state of the primary store and the index.
type HealthStatus struct {
	Status string            // HealthOK, HealthDegraded or HealthError
	Checks map[string]string // "database", "index" -> "ok" or "error"
	Debt   int64             // changes awaiting reconciliation, -1 when unknown
	// DebtByEntity splits Debt per entity; nil when unknown.
	DebtByEntity map[string]int64
}

// Serving reports whether writes can commit (the primary store answers).
func (h HealthStatus) Serving() bool { return h.Status != HealthError }

// Health pings both stores and reads the reconciliation debt.
func (c *Client) Health(ctx context.Context) HealthStatus {
	start := time.Now()
	report := c.healthSvc.Check(ctx)

	checks := make(map[string]string, len(report.Checks))
	for name, res := range report.Checks {
		checks[name] = string(res)
	}
	h := HealthStatus{
		Status:       string(report.Status),
		Checks:       checks,
		Debt:         report.Debt,
		DebtByEntity: report.DebtByEntity,
	}
	c.obs.observe("", "health", start, nil)
	return h
}
