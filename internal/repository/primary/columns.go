package primary

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kailas-cloud/routedex/internal/domain/criteria"
	"github.com/kailas-cloud/routedex/internal/domain/record"
)

// projection is one selected column: the record key it hydrates and its kind.
type projection struct {
	key      string
	column   string
	kind     criteria.Kind
	writable bool
}

// projections lists every stored column of the schema: fields, then to-one
// relation keys. version is selected separately.
func projections(schema *criteria.Schema) []projection {
	out := make([]projection, 0, len(schema.Fields)+len(schema.Relations))
	for _, f := range schema.Fields {
		out = append(out, projection{key: f.Name, column: f.Column, kind: f.Kind, writable: !f.ReadOnly})
	}
	for _, r := range schema.ToOne() {
		out = append(out, projection{key: r.Key(), column: r.Column, kind: criteria.KindInteger, writable: true})
	}
	return out
}

// selectList renders the projected columns, qualified by alias when non-empty.
// Decimal and UUID columns are read as text to keep them exact.
func selectList(schema *criteria.Schema, alias string) string {
	qualify := func(col string) string {
		if alias == "" {
			return col
		}
		return alias + "." + col
	}
	parts := make([]string, 0, len(schema.Fields)+len(schema.Relations)+1)
	for _, p := range projections(schema) {
		switch p.kind {
		case criteria.KindDecimal, criteria.KindUUID:
			parts = append(parts, qualify(p.column)+"::text")
		default:
			parts = append(parts, qualify(p.column))
		}
	}
	parts = append(parts, qualify(record.VersionField))
	return strings.Join(parts, ", ")
}

type scanner interface {
	Scan(dest ...any) error
}

// scanRecord reads one row produced by selectList.
func scanRecord(schema *criteria.Schema, row scanner) (record.Record, error) {
	projs := projections(schema)
	dest := make([]any, 0, len(projs)+1)
	for _, p := range projs {
		dest = append(dest, scanTarget(p.kind))
	}
	var version int64
	dest = append(dest, &version)

	if err := row.Scan(dest...); err != nil {
		return record.Record{}, err
	}

	var id int64
	values := make(map[string]criteria.Value, len(projs))
	for i, p := range projs {
		v, ok, err := fromScan(p.kind, dest[i])
		if err != nil {
			return record.Record{}, fmt.Errorf("column %s: %w", p.column, err)
		}
		if !ok {
			continue
		}
		if p.key == criteria.IDField {
			id = int64(v.(criteria.Integer))
			continue
		}
		values[p.key] = v
	}
	return record.Reconstruct(schema.Entity, id, version, values), nil
}

func scanTarget(k criteria.Kind) any {
	switch k {
	case criteria.KindInteger:
		return new(*int64)
	case criteria.KindBoolean:
		return new(*bool)
	case criteria.KindInstant, criteria.KindDate:
		return new(*time.Time)
	default:
		return new(*string)
	}
}

func fromScan(k criteria.Kind, dest any) (criteria.Value, bool, error) {
	switch k {
	case criteria.KindInteger:
		p := *dest.(**int64)
		if p == nil {
			return nil, false, nil
		}
		return criteria.Integer(*p), true, nil
	case criteria.KindBoolean:
		p := *dest.(**bool)
		if p == nil {
			return nil, false, nil
		}
		return criteria.Boolean(*p), true, nil
	case criteria.KindInstant:
		p := *dest.(**time.Time)
		if p == nil {
			return nil, false, nil
		}
		return criteria.NewInstant(*p), true, nil
	case criteria.KindDate:
		p := *dest.(**time.Time)
		if p == nil {
			return nil, false, nil
		}
		return criteria.NewDate(*p), true, nil
	case criteria.KindString:
		p := *dest.(**string)
		if p == nil {
			return nil, false, nil
		}
		return criteria.String(*p), true, nil
	case criteria.KindDecimal:
		p := *dest.(**string)
		if p == nil {
			return nil, false, nil
		}
		d, err := decimal.NewFromString(*p)
		if err != nil {
			return nil, false, err
		}
		return criteria.NewDecimal(d), true, nil
	case criteria.KindUUID:
		p := *dest.(**string)
		if p == nil {
			return nil, false, nil
		}
		u, err := uuid.Parse(*p)
		if err != nil {
			return nil, false, err
		}
		return criteria.UUID(u), true, nil
	default:
		return nil, false, fmt.Errorf("unsupported kind %s", k)
	}
}
