package query

import (
	"strings"

	"github.com/kailas-cloud/routedex/internal/domain/criteria"
)

// Matches evaluates q against a record the way a text-capable index does:
// string fields and keywords match case-insensitively on whole words or the
// whole value, every other kind matches by exact value.
func (q Query) Matches(schema *criteria.Schema, r criteria.Resolver) bool {
	for _, t := range q.terms {
		if !t.matches(schema, r) {
			return false
		}
	}
	return true
}

func (t Term) matches(schema *criteria.Schema, r criteria.Resolver) bool {
	switch t.Kind {
	case TermKeyword:
		for _, name := range schema.TextFields() {
			if v, ok := r.Value(name); ok && textMatch(v.String(), t.Text) {
				return true
			}
		}
		return false
	case TermID, TermField:
		v, ok := r.Value(t.Key)
		if !ok {
			return false
		}
		if s, isString := t.Value.(criteria.String); isString {
			return textMatch(v.String(), string(s))
		}
		return criteria.Equal(v, t.Value)
	default:
		return false
	}
}

func textMatch(have, want string) bool {
	if strings.EqualFold(have, want) {
		return true
	}
	for _, word := range strings.FieldsFunc(have, isSeparator) {
		if strings.EqualFold(word, want) {
			return true
		}
	}
	return false
}

func isSeparator(r rune) bool {
	switch r {
	case ' ', '\t', ',', '.', ';', ':', '-', '/', '(', ')', '_':
		return true
	}
	return false
}
