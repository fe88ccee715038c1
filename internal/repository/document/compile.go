package document

import (
	"fmt"
	"strings"

	"github.com/kailas-cloud/routedex/internal/db"
	"github.com/kailas-cloud/routedex/internal/domain"
	"github.com/kailas-cloud/routedex/internal/domain/criteria"
	"github.com/kailas-cloud/routedex/internal/domain/search/query"
)

// compile translates a parsed query into FT.SEARCH syntax. Terms are ANDed.
func compile(schema *criteria.Schema, q query.Query, textSearch bool) (string, error) {
	if q.IsMatchAll() {
		return db.MatchAll, nil
	}

	parts := make([]string, 0, len(q.Terms()))
	for _, t := range q.Terms() {
		part, err := compileTerm(schema, t, textSearch)
		if err != nil {
			return "", err
		}
		parts = append(parts, part)
	}
	return strings.Join(parts, " "), nil
}

func compileTerm(schema *criteria.Schema, t query.Term, textSearch bool) (string, error) {
	switch t.Kind {
	case query.TermKeyword:
		if !textSearch {
			return "", domain.ErrKeywordSearchNotSupported
		}
		return fmt.Sprintf("@%s:(%s)", strings.Join(schema.TextFields(), "|"), db.EscapeText(t.Text)), nil

	case query.TermID:
		return buildNumericFilter(t.Key, t.Value), nil

	case query.TermField:
		if _, ok := schema.Relation(t.Key); ok {
			return buildNumericFilter(t.Key, t.Value), nil
		}
		f, ok := schema.Field(t.Key)
		if !ok {
			return "", fmt.Errorf("%w: unknown field %q", domain.ErrInvalidQuery, t.Key)
		}
		switch fieldType(f, textSearch) {
		case db.IndexFieldNumeric:
			return buildNumericFilter(t.Key, t.Value), nil
		case db.IndexFieldText:
			return fmt.Sprintf("@%s:(%s)", t.Key, db.EscapeText(t.Value.String())), nil
		default:
			return buildTagFilter(t.Key, t.Value.String()), nil
		}

	default:
		return "", fmt.Errorf("%w: unsupported term", domain.ErrInvalidQuery)
	}
}

func buildTagFilter(key, value string) string {
	return fmt.Sprintf("@%s:{%s}", key, db.EscapeTag(value))
}

func buildNumericFilter(key string, v criteria.Value) string {
	return fmt.Sprintf("@%s:[%s %s]", key, v.String(), v.String())
}
