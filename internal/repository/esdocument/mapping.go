package esdocument

import (
	"github.com/kailas-cloud/routedex/internal/domain/criteria"
	"github.com/kailas-cloud/routedex/internal/domain/record"
)

// mappings builds explicit index mappings from the schema. Text fields are
// analyzed with a keyword sub-field; every other string is a keyword.
func mappings(schema *criteria.Schema) map[string]any {
	props := map[string]any{
		record.VersionField: map[string]any{"type": "long"},
	}
	for _, f := range schema.Fields {
		props[f.Name] = fieldMapping(f)
	}
	for _, rel := range schema.ToOne() {
		props[rel.Key()] = map[string]any{"type": "long"}
	}

	return map[string]any{
		"settings": map[string]any{
			"number_of_shards":   1,
			"number_of_replicas": 0,
		},
		"mappings": map[string]any{
			"dynamic":    "strict",
			"properties": props,
		},
	}
}

func fieldMapping(f criteria.Field) map[string]any {
	switch f.Kind {
	case criteria.KindInteger:
		return map[string]any{"type": "long"}
	case criteria.KindDecimal:
		return map[string]any{"type": "double"}
	case criteria.KindBoolean:
		return map[string]any{"type": "boolean"}
	case criteria.KindInstant:
		return map[string]any{"type": "date", "format": "strict_date_optional_time_nanos"}
	case criteria.KindDate:
		return map[string]any{"type": "date", "format": "strict_date"}
	case criteria.KindString:
		if f.Text {
			return map[string]any{
				"type":   "text",
				"fields": map[string]any{"raw": map[string]any{"type": "keyword"}},
			}
		}
		return map[string]any{"type": "keyword"}
	default:
		return map[string]any{"type": "keyword"}
	}
}
