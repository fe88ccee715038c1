package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/kailas-cloud/routedex/internal/domain"
	"github.com/kailas-cloud/routedex/internal/domain/catalog"
	"github.com/kailas-cloud/routedex/internal/domain/criteria"
	"github.com/kailas-cloud/routedex/internal/domain/paging"
	"github.com/kailas-cloud/routedex/internal/domain/record"
)

type table struct {
	nextID int64
	rows   map[int64]record.Record
}

// Store is an in-memory primary store with the constraint and filter semantics
// of the PostgreSQL repository: unique columns, restricted foreign keys, optimistic
// versions and criteria evaluated by criteria.Matches.
type Store struct {
	mu      sync.RWMutex
	catalog *catalog.Catalog
	tables  map[string]*table
	now     func() time.Time
}

// New creates an empty store for every entity of the catalog.
func New(c *catalog.Catalog) *Store {
	s := &Store{
		catalog: c,
		tables:  make(map[string]*table, len(c.All())),
		now:     time.Now,
	}
	for _, schema := range c.All() {
		s.tables[schema.Entity] = &table{rows: make(map[int64]record.Record)}
	}
	return s
}

func (s *Store) table(schema *criteria.Schema) (*table, error) {
	t, ok := s.tables[schema.Entity]
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownEntity, schema.Entity)
	}
	return t, nil
}

// Insert stores a new row and returns it as committed.
func (s *Store) Insert(_ context.Context, schema *criteria.Schema, rec record.Record) (record.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.table(schema)
	if err != nil {
		return record.Record{}, err
	}
	if err := s.checkConstraints(schema, t, 0, rec); err != nil {
		return record.Record{}, err
	}

	t.nextID++
	now := criteria.NewInstant(s.now())
	stored := writable(schema, rec).WithIdentity(t.nextID, 1).
		WithValue("createdAt", now).
		WithValue("updatedAt", now)
	t.rows[stored.ID()] = stored
	return stored, nil
}

// Update replaces every writable value of row rec.ID().
func (s *Store) Update(
	_ context.Context, schema *criteria.Schema, rec record.Record, expectedVersion int64,
) (record.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.table(schema)
	if err != nil {
		return record.Record{}, err
	}
	current, ok := t.rows[rec.ID()]
	if !ok {
		return record.Record{}, domain.ErrNotFound
	}
	if expectedVersion > 0 && current.Version() != expectedVersion {
		return record.Record{}, domain.NewVersionConflict(current.Version())
	}
	if err := s.checkConstraints(schema, t, rec.ID(), rec); err != nil {
		return record.Record{}, err
	}

	createdAt, _ := current.Value("createdAt")
	stored := writable(schema, rec).WithIdentity(current.ID(), current.Version()+1).
		WithValue("createdAt", createdAt).
		WithValue("updatedAt", criteria.NewInstant(s.now()))
	t.rows[stored.ID()] = stored
	return stored, nil
}

// Delete removes row id and returns the version it had.
func (s *Store) Delete(_ context.Context, schema *criteria.Schema, id, expectedVersion int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.table(schema)
	if err != nil {
		return 0, err
	}
	current, ok := t.rows[id]
	if !ok {
		return 0, domain.ErrNotFound
	}
	if expectedVersion > 0 && current.Version() != expectedVersion {
		return 0, domain.NewVersionConflict(current.Version())
	}
	if s.referenced(schema.Entity, id) {
		return 0, fmt.Errorf("%w: %s %d is still referenced", domain.ErrConflict, schema.Entity, id)
	}
	delete(t.rows, id)
	return current.Version(), nil
}

// Get returns row id.
func (s *Store) Get(_ context.Context, schema *criteria.Schema, id int64) (record.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, err := s.table(schema)
	if err != nil {
		return record.Record{}, err
	}
	rec, ok := t.rows[id]
	if !ok {
		return record.Record{}, domain.ErrNotFound
	}
	return rec, nil
}

// Find returns the rows matching c in the requested order.
func (s *Store) Find(_ context.Context, c *criteria.Criteria, page paging.Request) ([]record.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched, err := s.match(c)
	if err != nil {
		return nil, err
	}
	for _, o := range page.Sort {
		if !paging.Sortable(c.Schema(), o.Key) {
			return nil, fmt.Errorf("%w: cannot sort by %q", domain.ErrValidation, o.Key)
		}
	}
	sort.SliceStable(matched, func(i, j int) bool {
		return less(matched[i], matched[j], page.Sort)
	})

	start := min(page.Offset(), len(matched))
	end := min(start+page.Size, len(matched))
	return matched[start:end], nil
}

// Count returns the number of rows matching c.
func (s *Store) Count(_ context.Context, c *criteria.Criteria) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched, err := s.match(c)
	if err != nil {
		return 0, err
	}
	return int64(len(matched)), nil
}

// Stamps returns up to limit (id, version) pairs with id > afterID in id order.
func (s *Store) Stamps(
	_ context.Context, schema *criteria.Schema, afterID int64, limit int,
) ([]record.Stamp, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, err := s.table(schema)
	if err != nil {
		return nil, err
	}
	var out []record.Stamp
	for id, rec := range t.rows {
		if id > afterID {
			out = append(out, record.Stamp{ID: id, Version: rec.Version()})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// row resolves to-many relation ids against the store for criteria.Matches.
type row struct {
	record.Record
	store  *Store
	schema *criteria.Schema
}

func (r row) RelatedIDs(relation string) []int64 {
	for _, rel := range r.schema.ToMany() {
		if rel.Name == relation {
			return r.store.relatedIDs(rel, r.ID())
		}
	}
	return nil
}

func (s *Store) match(c *criteria.Criteria) ([]record.Record, error) {
	t, err := s.table(c.Schema())
	if err != nil {
		return nil, err
	}
	var out []record.Record
	for _, rec := range t.rows {
		if c.Matches(row{Record: rec, store: s, schema: c.Schema()}) {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out, nil
}

// relatedIDs returns the ids of rows of rel.Target whose FK column points at id.
func (s *Store) relatedIDs(rel criteria.Relation, id int64) []int64 {
	target, err := s.catalog.Entity(rel.Target)
	if err != nil {
		return nil
	}
	fk, ok := foreignKey(target, rel.Column)
	if !ok {
		return nil
	}
	var ids []int64
	for _, rec := range s.tables[target.Entity].rows {
		if v, ok := rec.Value(fk); ok && v == criteria.Integer(id) {
			ids = append(ids, rec.ID())
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// foreignKey finds the to-one relation key of schema stored in column.
func foreignKey(schema *criteria.Schema, column string) (string, bool) {
	for _, r := range schema.ToOne() {
		if r.Column == column {
			return r.Key(), true
		}
	}
	return "", false
}

func (s *Store) referenced(entity string, id int64) bool {
	for _, schema := range s.catalog.All() {
		for _, rel := range schema.ToOne() {
			if rel.Target != entity {
				continue
			}
			for _, rec := range s.tables[schema.Entity].rows {
				if v, ok := rec.Value(rel.Key()); ok && v == criteria.Integer(id) {
					return true
				}
			}
		}
	}
	return false
}

func (s *Store) checkConstraints(schema *criteria.Schema, t *table, selfID int64, rec record.Record) error {
	for _, rel := range schema.ToOne() {
		v, ok := rec.Value(rel.Key())
		if !ok {
			continue
		}
		id, isInt := v.(criteria.Integer)
		target, exists := s.tables[rel.Target]
		if !isInt || !exists {
			return fmt.Errorf("%w: %s", domain.ErrInvalidReference, rel.Key())
		}
		if _, found := target.rows[int64(id)]; !found {
			return fmt.Errorf("%w: %s %d does not exist", domain.ErrInvalidReference, rel.Target, id)
		}
	}
	for _, f := range schema.Fields {
		if !f.Unique {
			continue
		}
		v, ok := rec.Value(f.Name)
		if !ok {
			continue
		}
		for id, other := range t.rows {
			if id == selfID {
				continue
			}
			if ov, ok := other.Value(f.Name); ok && criteria.Equal(ov, v) {
				return fmt.Errorf("%w: %s %q already exists", domain.ErrConflict, f.Name, v)
			}
		}
	}
	return nil
}

// writable keeps the values a client may set: non read-only fields and to-one keys.
func writable(schema *criteria.Schema, rec record.Record) record.Record {
	values := make(map[string]criteria.Value)
	for _, f := range schema.Fields {
		if f.ReadOnly {
			continue
		}
		if v, ok := rec.Value(f.Name); ok {
			values[f.Name] = v
		}
	}
	for _, r := range schema.ToOne() {
		if v, ok := rec.Value(r.Key()); ok {
			values[r.Key()] = v
		}
	}
	return record.New(schema.Entity, values)
}

// less orders like PostgreSQL: NULLs sort last ascending and first descending;
// id breaks ties.
func less(a, b record.Record, orders []paging.Order) bool {
	for _, o := range orders {
		av, aok := a.Value(o.Key)
		bv, bok := b.Value(o.Key)
		var cmp int
		switch {
		case !aok && !bok:
			cmp = 0
		case !aok:
			cmp = 1
		case !bok:
			cmp = -1
		default:
			cmp = compare(av, bv)
		}
		if o.Desc {
			cmp = -cmp
		}
		if cmp != 0 {
			return cmp < 0
		}
	}
	return a.ID() < b.ID()
}

func compare(a, b criteria.Value) int {
	if cmp, ok := criteria.Compare(a, b); ok {
		return cmp
	}
	if ab, ok := a.(criteria.Boolean); ok {
		bb, _ := b.(criteria.Boolean)
		switch {
		case ab == bb:
			return 0
		case !bool(ab):
			return -1
		default:
			return 1
		}
	}
	return strings.Compare(a.String(), b.String())
}

// Ping always succeeds.
func (s *Store) Ping(context.Context) error { return nil }
