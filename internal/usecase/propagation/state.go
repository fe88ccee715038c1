package propagation

import (
	"context"
	"errors"
	"fmt"

	"github.com/kailas-cloud/routedex/internal/domain"
	"github.com/kailas-cloud/routedex/internal/domain/indexing"
)

// State reports the index state of one id: syncing while a change is queued or
// in flight, otherwise present or absent as last applied. Ids the version cache
// no longer tracks are looked up in the index.
func (p *Propagator) State(ctx context.Context, entity string, id int64) (indexing.State, error) {
	key := docKey{entity, id}

	p.pendingMu.Lock()
	queued := p.pending[key] > 0
	p.pendingMu.Unlock()
	if queued {
		return indexing.Syncing, nil
	}

	if last, ok := p.applied.Get(key); ok {
		if last.tombstone {
			return indexing.Absent, nil
		}
		return indexing.Present, nil
	}

	schema, err := p.schemas.Entity(entity)
	if err != nil {
		return "", err //nolint:wrapcheck // domain sentinel
	}
	if _, err := p.index.Get(ctx, schema, id); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return indexing.Absent, nil
		}
		return "", fmt.Errorf("read index: %w", err)
	}
	return indexing.Present, nil
}

// Pending returns the number of queued or in-flight changes.
func (p *Propagator) Pending() int {
	p.pendingMu.Lock()
	defer p.pendingMu.Unlock()

	n := 0
	for _, c := range p.pending {
		n += c
	}
	return n
}
