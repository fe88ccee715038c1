package document

import (
	"fmt"

	"github.com/kailas-cloud/routedex/internal/db"
	"github.com/kailas-cloud/routedex/internal/domain/criteria"
)

// tagSeparator is a separator valkey-search accepts that does not occur in
// codes, names or canonical value renderings.
const tagSeparator = "^"

// buildIndex creates an IndexDefinition from an entity schema. String fields
// marked Text become TEXT when the backend supports it, TAG otherwise.
func buildIndex(name, prefix string, schema *criteria.Schema, textSearch bool) (*db.IndexDefinition, error) {
	b := db.NewIndex(name, prefix)

	for _, f := range schema.Fields {
		if f.Name == criteria.IDField {
			b.SortKey(f.Name)
			continue
		}
		switch fieldType(f, textSearch) {
		case db.IndexFieldNumeric:
			b.Numeric(f.Name)
		case db.IndexFieldText:
			b.Text(f.Name)
		case db.IndexFieldTag:
			b.Tag(f.Name, tagSeparator)
		}
	}
	for _, rel := range schema.ToOne() {
		b.Numeric(rel.Key())
	}

	def, err := b.Build()
	if err != nil {
		return nil, fmt.Errorf("build index for %s: %w", schema.Entity, err)
	}
	return def, nil
}

func fieldType(f criteria.Field, textSearch bool) db.IndexFieldType {
	switch f.Kind {
	case criteria.KindInteger, criteria.KindDecimal:
		return db.IndexFieldNumeric
	case criteria.KindString:
		if f.Text && textSearch {
			return db.IndexFieldText
		}
		return db.IndexFieldTag
	default:
		return db.IndexFieldTag
	}
}
