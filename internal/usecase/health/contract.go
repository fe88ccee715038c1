package health

import "context"

// Pinger checks availability of a backing store.
type Pinger interface {
	Ping(ctx context.Context) error
}

// DebtCounter reports outstanding reconciliation debt per entity.
type DebtCounter interface {
	Count(ctx context.Context) (map[string]int64, error)
}
