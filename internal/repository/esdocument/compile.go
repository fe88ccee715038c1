package esdocument

import (
	"fmt"

	"github.com/kailas-cloud/routedex/internal/domain"
	"github.com/kailas-cloud/routedex/internal/domain/criteria"
	"github.com/kailas-cloud/routedex/internal/domain/search/query"
)

// compile translates a parsed query into a bool.must of term and match clauses.
func compile(schema *criteria.Schema, q query.Query) (map[string]any, error) {
	if q.IsMatchAll() {
		return map[string]any{"match_all": map[string]any{}}, nil
	}

	must := make([]map[string]any, 0, len(q.Terms()))
	for _, t := range q.Terms() {
		clause, err := compileTerm(schema, t)
		if err != nil {
			return nil, err
		}
		must = append(must, clause)
	}
	return map[string]any{"bool": map[string]any{"must": must}}, nil
}

func compileTerm(schema *criteria.Schema, t query.Term) (map[string]any, error) {
	switch t.Kind {
	case query.TermKeyword:
		return map[string]any{"multi_match": map[string]any{
			"query":  t.Text,
			"fields": schema.TextFields(),
		}}, nil

	case query.TermID:
		return term(t.Key, termValue(t.Value)), nil

	case query.TermField:
		if f, ok := schema.Field(t.Key); ok && f.Kind == criteria.KindString && f.Text {
			return map[string]any{"match": map[string]any{
				t.Key: map[string]any{"query": t.Value.String(), "operator": "and"},
			}}, nil
		}
		return term(t.Key, termValue(t.Value)), nil

	default:
		return nil, fmt.Errorf("%w: unsupported term", domain.ErrInvalidQuery)
	}
}

func term(key string, v any) map[string]any {
	return map[string]any{"term": map[string]any{key: v}}
}

func termValue(v criteria.Value) any {
	switch tv := v.(type) {
	case criteria.Integer:
		return int64(tv)
	case criteria.Boolean:
		return bool(tv)
	default:
		return v.String()
	}
}
