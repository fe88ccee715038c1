// Package query parses search expressions such as `id:12`, `routeCode:HN-HP`
// or bare keywords into typed terms that index backends compile.
package query

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/kailas-cloud/routedex/internal/domain"
	"github.com/kailas-cloud/routedex/internal/domain/criteria"
)

// Limits on a search expression.
const (
	MaxQueryLength = 4096
	MaxTerms       = 32
)

// TermKind distinguishes the three term shapes.
type TermKind int

const (
	// TermID matches the primary key.
	TermID TermKind = iota + 1
	// TermField matches one field or to-one relation key exactly.
	TermField
	// TermKeyword matches the word across every text field.
	TermKeyword
)

// Term is one ANDed clause of a query.
type Term struct {
	Kind  TermKind
	Key   string         // empty for TermKeyword
	Value criteria.Value // nil for TermKeyword
	Text  string         // raw operand as written
}

// Query is a parsed search expression. The zero value matches everything.
type Query struct {
	raw   string
	terms []Term
}

// MatchAll returns the query matching every document.
func MatchAll() Query { return Query{raw: "*"} }

// Parse validates raw against schema. An empty string or "*" matches all.
func Parse(schema *criteria.Schema, raw string) (Query, error) {
	raw = strings.TrimSpace(raw)
	if len(raw) > MaxQueryLength {
		return Query{}, fmt.Errorf("%w: query too long (max %d chars)", domain.ErrInvalidQuery, MaxQueryLength)
	}
	if raw == "" || raw == "*" {
		return MatchAll(), nil
	}

	tokens, err := tokenize(raw)
	if err != nil {
		return Query{}, err
	}
	if len(tokens) > MaxTerms {
		return Query{}, fmt.Errorf("%w: too many terms (max %d)", domain.ErrInvalidQuery, MaxTerms)
	}

	q := Query{raw: raw, terms: make([]Term, 0, len(tokens))}
	for _, tok := range tokens {
		term, err := parseTerm(schema, tok)
		if err != nil {
			return Query{}, err
		}
		q.terms = append(q.terms, term)
	}
	return q, nil
}

// Terms returns the ANDed terms.
func (q Query) Terms() []Term { return q.terms }

// IsMatchAll reports whether the query has no terms.
func (q Query) IsMatchAll() bool { return len(q.terms) == 0 }

// HasKeywords reports whether any term is a bare keyword.
func (q Query) HasKeywords() bool {
	for _, t := range q.terms {
		if t.Kind == TermKeyword {
			return true
		}
	}
	return false
}

// String returns the expression as given.
func (q Query) String() string {
	if q.raw == "" {
		return "*"
	}
	return q.raw
}

type token struct {
	key    string
	value  string
	scoped bool
}

// tokenize splits on whitespace, honoring double quotes around values
// (`name:"Ha Noi"`). A key ends at the first colon.
func tokenize(raw string) ([]token, error) {
	var (
		tokens  []token
		cur     strings.Builder
		key     string
		scoped  bool
		inQuote bool
		quoted  bool
	)
	flush := func() {
		if cur.Len() == 0 && !scoped && !quoted {
			return
		}
		tokens = append(tokens, token{key: key, value: cur.String(), scoped: scoped})
		cur.Reset()
		key, scoped, quoted = "", false, false
	}

	for _, r := range raw {
		switch {
		case r == '"':
			inQuote = !inQuote
			quoted = true
		case inQuote:
			cur.WriteRune(r)
		case unicode.IsSpace(r):
			flush()
		case r == ':' && !scoped && !quoted:
			key, scoped = cur.String(), true
			cur.Reset()
		default:
			cur.WriteRune(r)
		}
	}
	if inQuote {
		return nil, fmt.Errorf("%w: unterminated quote", domain.ErrInvalidQuery)
	}
	flush()
	return tokens, nil
}

func parseTerm(schema *criteria.Schema, tok token) (Term, error) {
	if !tok.scoped {
		if len(schema.TextFields()) == 0 {
			return Term{}, fmt.Errorf("%w: %s has no keyword-searchable fields", domain.ErrInvalidQuery, schema.Entity)
		}
		return Term{Kind: TermKeyword, Text: tok.value}, nil
	}

	if tok.key == "" {
		return Term{}, fmt.Errorf("%w: empty field name before ':'", domain.ErrInvalidQuery)
	}
	if tok.value == "" {
		return Term{}, fmt.Errorf("%w: empty value for %q", domain.ErrInvalidQuery, tok.key)
	}

	kind, ok := searchableKind(schema, tok.key)
	if !ok {
		return Term{}, fmt.Errorf("%w: unknown field %q", domain.ErrInvalidQuery, tok.key)
	}
	v, err := kind.Parse(tok.value)
	if err != nil {
		return Term{}, fmt.Errorf("%w: field %q: %w", domain.ErrInvalidQuery, tok.key, err)
	}

	t := Term{Kind: TermField, Key: tok.key, Value: v, Text: tok.value}
	if tok.key == criteria.IDField {
		t.Kind = TermID
	}
	return t, nil
}

// searchableKind resolves fields and to-one relation keys; to-many relation
// ids are not projected into documents.
func searchableKind(schema *criteria.Schema, key string) (criteria.Kind, bool) {
	if f, ok := schema.Field(key); ok {
		return f.Kind, true
	}
	if r, ok := schema.Relation(key); ok && r.Kind == criteria.ToOne {
		return criteria.KindInteger, true
	}
	return 0, false
}
