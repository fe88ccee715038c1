package routedex

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/kailas-cloud/routedex/internal/domain/criteria"
	"github.com/kailas-cloud/routedex/internal/domain/indexing"
	"github.com/kailas-cloud/routedex/internal/domain/paging"
	"github.com/kailas-cloud/routedex/internal/domain/record"
)

const waitPollInterval = 20 * time.Millisecond

// Record is one stored row. Fields holds every schema key with JSON-ready
// values: string, int64, bool, json.Number (decimals) or nil.
type Record struct {
	ID      int64
	Version int64
	Fields  map[string]any
}

// ListResult is one page of records plus the total number of matches.
type ListResult struct {
	Records []Record
	Total   int64
}

// Page selects a zero-based page. Size 0 means 20. Sort items are
// "field" or "field,asc|desc" and apply to List only.
type Page struct {
	Page int
	Size int
	Sort []string
}

// IndexState is the index state of one id.
type IndexState string

// Index states.
const (
	IndexAbsent  IndexState = IndexState(indexing.Absent)
	IndexSyncing IndexState = IndexState(indexing.Syncing)
	IndexPresent IndexState = IndexState(indexing.Present)
)

// EntityService manages the rows of one entity.
type EntityService struct {
	schema   *criteria.Schema
	entities entityUseCase
	search   searchUseCase
	state    stateReader
	obs      *observer
}

// Name returns the entity name.
func (s *EntityService) Name() string { return s.schema.Entity }

// Create inserts a row. Read-only keys (id, version, timestamps) are ignored.
func (s *EntityService) Create(ctx context.Context, fields map[string]any) (_ Record, err error) {
	start := time.Now()
	defer func() { s.obs.observe(s.schema.Entity, "create", start, err) }()

	payload, err := toPayload(fields)
	if err != nil {
		return Record{}, fmt.Errorf("create %s: %w", s.schema.Entity, err)
	}
	rec, err := s.entities.Create(ctx, s.schema, payload)
	if err != nil {
		return Record{}, fmt.Errorf("create %s: %w", s.schema.Entity, err)
	}
	return s.fromInternal(rec), nil
}

// Update replaces every writable field of row id. A positive version makes the
// write conditional; a mismatch returns a *VersionConflictError.
func (s *EntityService) Update(ctx context.Context, id, version int64, fields map[string]any) (_ Record, err error) {
	start := time.Now()
	defer func() { s.obs.observe(s.schema.Entity, "update", start, err) }()

	payload, err := toPayload(fields)
	if err != nil {
		return Record{}, fmt.Errorf("update %s: %w", s.schema.Entity, err)
	}
	rec, err := s.entities.Update(ctx, s.schema, id, version, payload)
	if err != nil {
		return Record{}, fmt.Errorf("update %s: %w", s.schema.Entity, err)
	}
	return s.fromInternal(rec), nil
}

// Delete removes row id. A positive version makes the delete conditional.
func (s *EntityService) Delete(ctx context.Context, id, version int64) (err error) {
	start := time.Now()
	defer func() { s.obs.observe(s.schema.Entity, "delete", start, err) }()

	if err = s.entities.Delete(ctx, s.schema, id, version); err != nil {
		return fmt.Errorf("delete %s: %w", s.schema.Entity, err)
	}
	return nil
}

// Get returns row id.
func (s *EntityService) Get(ctx context.Context, id int64) (_ Record, err error) {
	start := time.Now()
	defer func() { s.obs.observe(s.schema.Entity, "get", start, err) }()

	rec, err := s.entities.Get(ctx, s.schema, id)
	if err != nil {
		return Record{}, fmt.Errorf("get %s: %w", s.schema.Entity, err)
	}
	return s.fromInternal(rec), nil
}

// List returns the rows matching f from the primary store.
func (s *EntityService) List(ctx context.Context, f Filter, p Page) (_ ListResult, err error) {
	start := time.Now()
	defer func() { s.obs.observe(s.schema.Entity, "list", start, err) }()

	c, err := criteria.Parse(s.schema, f.Values())
	if err != nil {
		return ListResult{}, fmt.Errorf("list %s: %w", s.schema.Entity, err)
	}
	req, err := s.pageRequest(p, true)
	if err != nil {
		return ListResult{}, fmt.Errorf("list %s: %w", s.schema.Entity, err)
	}
	recs, total, err := s.entities.List(ctx, c, req)
	if err != nil {
		return ListResult{}, fmt.Errorf("list %s: %w", s.schema.Entity, err)
	}
	return ListResult{Records: s.fromInternalAll(recs), Total: total}, nil
}

// Count returns the number of rows matching f.
func (s *EntityService) Count(ctx context.Context, f Filter) (_ int64, err error) {
	start := time.Now()
	defer func() { s.obs.observe(s.schema.Entity, "count", start, err) }()

	c, err := criteria.Parse(s.schema, f.Values())
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", s.schema.Entity, err)
	}
	n, err := s.entities.Count(ctx, c)
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", s.schema.Entity, err)
	}
	return n, nil
}

// Search runs a query expression (`field:value` terms and bare keywords, ANDed)
// against the search index. Results reflect the index, which trails writes.
func (s *EntityService) Search(ctx context.Context, q string, p Page) (_ ListResult, err error) {
	start := time.Now()
	defer func() { s.obs.observe(s.schema.Entity, "search", start, err) }()

	req, err := s.pageRequest(p, false)
	if err != nil {
		return ListResult{}, fmt.Errorf("search %s: %w", s.schema.Entity, err)
	}
	res, err := s.search.Search(ctx, s.schema, q, req)
	if err != nil {
		return ListResult{}, fmt.Errorf("search %s: %w", s.schema.Entity, err)
	}
	return ListResult{Records: s.fromInternalAll(res.Records), Total: int64(res.Total)}, nil
}

// IndexState reports whether row id is absent, syncing or present in the index.
func (s *EntityService) IndexState(ctx context.Context, id int64) (IndexState, error) {
	st, err := s.state.State(ctx, s.schema.Entity, id)
	if err != nil {
		return "", fmt.Errorf("index state %s %d: %w", s.schema.Entity, id, err)
	}
	return IndexState(st), nil
}

// WaitIndexed polls the index state of id until it equals want or timeout
// elapses (ErrIndexTimeout).
func (s *EntityService) WaitIndexed(
	ctx context.Context, id int64, want IndexState, timeout time.Duration,
) (err error) {
	start := time.Now()
	defer func() { s.obs.observe(s.schema.Entity, "wait_indexed", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var last IndexState
	poll := func() error {
		st, err := s.IndexState(ctx, id)
		if err != nil {
			return backoff.Permanent(err)
		}
		last = st
		if st != want {
			return fmt.Errorf("state is %s", st)
		}
		return nil
	}
	b := backoff.WithContext(backoff.NewConstantBackOff(waitPollInterval), ctx)
	if err = backoff.Retry(poll, b); err != nil {
		if ctx.Err() != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("%s %d is %s, want %s: %w", s.schema.Entity, id, last, want, ErrIndexTimeout)
		}
		return err
	}
	return nil
}

func (s *EntityService) pageRequest(p Page, sortable bool) (paging.Request, error) {
	var sort []paging.Order
	if sortable {
		var err error
		if sort, err = paging.ParseSort(s.schema, p.Sort); err != nil {
			return paging.Request{}, err //nolint:wrapcheck // wrapped by the caller
		}
	}
	return paging.New(p.Page, p.Size, sort) //nolint:wrapcheck // wrapped by the caller
}

func (s *EntityService) fromInternal(rec record.Record) Record {
	fields := record.Encode(s.schema, rec)
	delete(fields, criteria.IDField)
	delete(fields, record.VersionField)
	return Record{ID: rec.ID(), Version: rec.Version(), Fields: fields}
}

func (s *EntityService) fromInternalAll(recs []record.Record) []Record {
	out := make([]Record, len(recs))
	for i, rec := range recs {
		out[i] = s.fromInternal(rec)
	}
	return out
}

func toPayload(fields map[string]any) (map[string]json.RawMessage, error) {
	payload := make(map[string]json.RawMessage, len(fields))
	for k, v := range fields {
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("%w: field %q: %w", ErrValidation, k, err)
		}
		payload[k] = raw
	}
	return payload, nil
}
