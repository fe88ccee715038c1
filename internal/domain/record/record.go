package record

import (
	"maps"

	"github.com/kailas-cloud/routedex/internal/domain/criteria"
)

// VersionField is the optimistic-locking version key in payloads and documents.
const VersionField = "version"

// Record is one entity row: identity, version and typed values keyed by field name
// or to-one relation key. A missing key is NULL.
type Record struct {
	entity  string
	id      int64
	version int64
	values  map[string]criteria.Value
}

// New creates an unsaved record (id and version are assigned by the store).
func New(entity string, values map[string]criteria.Value) Record {
	return Record{entity: entity, values: cloneValues(values)}
}

// Reconstruct creates a record without validation (storage hydration).
func Reconstruct(entity string, id, version int64, values map[string]criteria.Value) Record {
	return Record{entity: entity, id: id, version: version, values: values}
}

// Entity returns the entity name.
func (r Record) Entity() string { return r.entity }

// ID returns the primary key (0 when unsaved).
func (r Record) ID() int64 { return r.id }

// Version returns the row version.
func (r Record) Version() int64 { return r.version }

// Values returns a copy of the non-NULL values.
func (r Record) Values() map[string]criteria.Value { return cloneValues(r.values) }

// Value implements criteria.Resolver.
func (r Record) Value(key string) (criteria.Value, bool) {
	switch key {
	case criteria.IDField:
		return criteria.Integer(r.id), true
	case VersionField:
		return criteria.Integer(r.version), true
	}
	v, ok := r.values[key]
	return v, ok
}

// RelatedIDs implements criteria.Resolver; a bare record knows no to-many links.
func (r Record) RelatedIDs(string) []int64 { return nil }

// WithIdentity returns a copy with id and version set.
func (r Record) WithIdentity(id, version int64) Record {
	return Record{entity: r.entity, id: id, version: version, values: cloneValues(r.values)}
}

// WithValue returns a copy with key set to v (nil removes it).
func (r Record) WithValue(key string, v criteria.Value) Record {
	values := cloneValues(r.values)
	if v == nil {
		delete(values, key)
	} else {
		values[key] = v
	}
	return Record{entity: r.entity, id: r.id, version: r.version, values: values}
}

func cloneValues(m map[string]criteria.Value) map[string]criteria.Value {
	out := make(map[string]criteria.Value, len(m))
	maps.Copy(out, m)
	return out
}
