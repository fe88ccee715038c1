// Package entity is the dual-store writer: it commits mutations to the primary
// store and hands every committed change to the index propagation hook.
package entity

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/kailas-cloud/routedex/internal/domain/criteria"
	"github.com/kailas-cloud/routedex/internal/domain/paging"
	"github.com/kailas-cloud/routedex/internal/domain/record"
)

// Service handles schema-driven CRUD for every catalog entity.
type Service struct {
	repo Repository
	hook CommitHook
}

// New creates an entity service. A nil hook disables propagation.
func New(repo Repository, hook CommitHook) *Service {
	return &Service{repo: repo, hook: hook}
}

// Create validates payload against schema and inserts a new row.
func (s *Service) Create(
	ctx context.Context, schema *criteria.Schema, payload map[string]json.RawMessage,
) (record.Record, error) {
	values, err := record.Decode(schema, payload)
	if err != nil {
		return record.Record{}, err //nolint:wrapcheck // validation error is user-facing as is
	}

	stored, err := s.repo.Insert(ctx, schema, record.New(schema.Entity, values))
	if err != nil {
		return record.Record{}, fmt.Errorf("insert %s: %w", schema.Entity, err)
	}
	s.committed(ctx, record.NewUpsert(record.Created, stored))
	return stored, nil
}

// Update replaces every writable value of row id. A positive expectedVersion
// makes the write conditional on the current version.
func (s *Service) Update(
	ctx context.Context, schema *criteria.Schema, id, expectedVersion int64, payload map[string]json.RawMessage,
) (record.Record, error) {
	values, err := record.Decode(schema, payload)
	if err != nil {
		return record.Record{}, err //nolint:wrapcheck // validation error is user-facing as is
	}

	rec := record.Reconstruct(schema.Entity, id, 0, values)
	stored, err := s.repo.Update(ctx, schema, rec, expectedVersion)
	if err != nil {
		return record.Record{}, fmt.Errorf("update %s %d: %w", schema.Entity, id, err)
	}
	s.committed(ctx, record.NewUpsert(record.Updated, stored))
	return stored, nil
}

// Delete removes row id and propagates a tombstone.
func (s *Service) Delete(ctx context.Context, schema *criteria.Schema, id, expectedVersion int64) error {
	version, err := s.repo.Delete(ctx, schema, id, expectedVersion)
	if err != nil {
		return fmt.Errorf("delete %s %d: %w", schema.Entity, id, err)
	}
	s.committed(ctx, record.NewTombstone(schema.Entity, id, version))
	return nil
}

// Get returns row id.
func (s *Service) Get(ctx context.Context, schema *criteria.Schema, id int64) (record.Record, error) {
	rec, err := s.repo.Get(ctx, schema, id)
	if err != nil {
		return record.Record{}, fmt.Errorf("get %s %d: %w", schema.Entity, id, err)
	}
	return rec, nil
}

// List returns one page of rows matching c plus the total match count.
func (s *Service) List(
	ctx context.Context, c *criteria.Criteria, page paging.Request,
) ([]record.Record, int64, error) {
	total, err := s.repo.Count(ctx, c)
	if err != nil {
		return nil, 0, fmt.Errorf("count %s: %w", c.Schema().Entity, err)
	}
	if total == 0 {
		return []record.Record{}, 0, nil
	}

	rows, err := s.repo.Find(ctx, c, page)
	if err != nil {
		return nil, 0, fmt.Errorf("find %s: %w", c.Schema().Entity, err)
	}
	return rows, total, nil
}

// Count returns the number of rows matching c.
func (s *Service) Count(ctx context.Context, c *criteria.Criteria) (int64, error) {
	n, err := s.repo.Count(ctx, c)
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", c.Schema().Entity, err)
	}
	return n, nil
}

func (s *Service) committed(ctx context.Context, c record.Change) {
	if s.hook != nil {
		s.hook.OnCommitted(context.WithoutCancel(ctx), c)
	}
}
