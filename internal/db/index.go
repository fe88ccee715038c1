package db

import (
	"errors"
	"fmt"
	"strings"
)

// IndexFieldType enumerates the FT schema attribute types documents use.
type IndexFieldType int

const (
	// IndexFieldNumeric holds integers and decimals; ranges compile to [a b].
	IndexFieldNumeric IndexFieldType = iota
	// IndexFieldTag holds exact-match values.
	IndexFieldTag
	// IndexFieldText holds tokenized text (Redis only).
	IndexFieldText
)

func (t IndexFieldType) String() string {
	switch t {
	case IndexFieldNumeric:
		return "NUMERIC"
	case IndexFieldTag:
		return "TAG"
	case IndexFieldText:
		return "TEXT"
	default:
		return fmt.Sprintf("IndexFieldType(%d)", int(t))
	}
}

// IndexField is one attribute of an FT schema. Separator applies to TAG only.
type IndexField struct {
	Name      string
	Type      IndexFieldType
	Sortable  bool
	Separator string
}

// IndexDefinition is an FT index over the hashes stored under Prefix.
type IndexDefinition struct {
	Name   string
	Prefix string
	Fields []IndexField
}

// Validate checks the definition before it reaches FT.CREATE.
func (idx *IndexDefinition) Validate() error {
	if !isIdentifier(idx.Name) {
		return fmt.Errorf("invalid index name %q", idx.Name)
	}
	if idx.Prefix == "" {
		return errors.New("index prefix is required")
	}
	if len(idx.Fields) == 0 {
		return errors.New("at least one field is required")
	}

	seen := make(map[string]struct{}, len(idx.Fields))
	sortKeys := 0
	for _, f := range idx.Fields {
		if f.Name == "" {
			return errors.New("field name is required")
		}
		if _, dup := seen[f.Name]; dup {
			return fmt.Errorf("duplicate field %q", f.Name)
		}
		seen[f.Name] = struct{}{}

		if f.Sortable {
			if f.Type != IndexFieldNumeric {
				return fmt.Errorf("field %q: only numeric fields are sortable", f.Name)
			}
			sortKeys++
		}
		if f.Separator != "" && f.Type != IndexFieldTag {
			return fmt.Errorf("field %q: separator on a %s field", f.Name, f.Type)
		}
	}
	if sortKeys > 1 {
		return errors.New("at most one sortable field is allowed")
	}
	return nil
}

// isIdentifier reports whether s matches [a-zA-Z0-9_:-]+.
func isIdentifier(s string) bool {
	return s != "" && strings.IndexFunc(s, func(r rune) bool {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return false
		case r == '_' || r == ':' || r == '-':
			return false
		default:
			return true
		}
	}) < 0
}
