package document

import (
	"fmt"
	"strconv"

	"github.com/kailas-cloud/routedex/internal/db"
	"github.com/kailas-cloud/routedex/internal/domain/criteria"
	"github.com/kailas-cloud/routedex/internal/domain/record"
)

// toHash flattens a record into hash fields. NULL values are omitted so
// the field is absent from the index; the version field is added by the store.
func toHash(schema *criteria.Schema, rec record.Record) map[string]string {
	fields := make(map[string]string, len(schema.Fields)+len(schema.Relations))
	for _, key := range documentKeys(schema) {
		if v, ok := rec.Value(key); ok && v != nil {
			fields[key] = v.String()
		}
	}
	return fields
}

// fromHash rebuilds a record from hash fields.
func fromHash(schema *criteria.Schema, fields map[string]string) (record.Record, error) {
	id, err := strconv.ParseInt(fields[criteria.IDField], 10, 64)
	if err != nil {
		return record.Record{}, fmt.Errorf("document id %q: %w", fields[criteria.IDField], err)
	}
	version, err := strconv.ParseInt(fields[db.VersionField], 10, 64)
	if err != nil {
		return record.Record{}, fmt.Errorf("document version %q: %w", fields[db.VersionField], err)
	}

	values := make(map[string]criteria.Value, len(fields))
	for _, key := range documentKeys(schema) {
		raw, ok := fields[key]
		if !ok || key == criteria.IDField {
			continue
		}
		kind, _ := schema.KindOf(key)
		v, err := kind.Parse(raw)
		if err != nil {
			return record.Record{}, fmt.Errorf("document field %q: %w", key, err)
		}
		values[key] = v
	}
	return record.Reconstruct(schema.Entity, id, version, values), nil
}

// documentKeys lists the projected keys: every field plus to-one relation keys.
// To-many relation ids are not projected.
func documentKeys(schema *criteria.Schema) []string {
	keys := make([]string, 0, len(schema.Fields)+len(schema.Relations))
	for _, f := range schema.Fields {
		keys = append(keys, f.Name)
	}
	for _, rel := range schema.ToOne() {
		keys = append(keys, rel.Key())
	}
	return keys
}
