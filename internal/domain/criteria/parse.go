package criteria

import (
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/kailas-cloud/routedex/internal/domain"
)

// Parse builds criteria from `<field>.<operator>=<value>` query parameters.
//
// in/notIn take comma-separated operands and may be repeated; `field.in=` is the empty set.
// A literal comma inside an operand is written `\,` and a literal backslash `\\`.
// Every other operator must appear once per field. Callers strip non-filter parameters
// (paging, sorting) before parsing; anything else unrecognized is an ErrInvalidCriteria.
func Parse(schema *Schema, params url.Values) (*Criteria, error) {
	c := New(schema)

	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		raw := params[key]
		if key == DistinctParam {
			v, err := singleBool(key, raw)
			if err != nil {
				return nil, err
			}
			c.distinct = v
			continue
		}

		field, opName, ok := cutLast(key, ".")
		if !ok {
			return nil, fmt.Errorf("%w: unknown parameter %q", domain.ErrInvalidCriteria, key)
		}
		op, ok := ParseOperator(opName)
		if !ok {
			return nil, fmt.Errorf("%w: unknown operator %q in %q", domain.ErrInvalidCriteria, opName, key)
		}
		f, err := c.On(field)
		if err != nil {
			return nil, err
		}
		if err := apply(f, op, key, raw); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func apply(f *Filter, op Operator, key string, raw []string) error {
	if op == OpSpecified {
		v, err := singleBool(key, raw)
		if err != nil {
			return err
		}
		return f.SetSpecified(v)
	}

	if op.IsSet() {
		var values []Value
		for _, r := range raw {
			if r == "" {
				continue
			}
			for _, part := range SplitList(r) {
				v, err := f.kind.Parse(part)
				if err != nil {
					return fmt.Errorf("%s: %w", key, err)
				}
				values = append(values, v)
			}
		}
		return f.Set(op, values...)
	}

	if len(raw) != 1 {
		return fmt.Errorf("%w: %q given more than once", domain.ErrInvalidCriteria, key)
	}
	v, err := f.kind.Parse(raw[0])
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	return f.Set(op, v)
}

func singleBool(key string, raw []string) (bool, error) {
	if len(raw) != 1 {
		return false, fmt.Errorf("%w: %q given more than once", domain.ErrInvalidCriteria, key)
	}
	v, err := strconv.ParseBool(raw[0])
	if err != nil {
		return false, fmt.Errorf("%w: %q expects true or false", domain.ErrInvalidCriteria, key)
	}
	return v, nil
}

func cutLast(s, sep string) (before, after string, found bool) {
	i := strings.LastIndex(s, sep)
	if i < 0 {
		return s, "", false
	}
	return s[:i], s[i+len(sep):], true
}

// SplitList splits an in/notIn operand list on unescaped commas and resolves
// the `\,` and `\\` escapes. A trailing lone backslash is kept as is.
func SplitList(s string) []string {
	var (
		parts []string
		cur   strings.Builder
	)
	for i := 0; i < len(s); i++ {
		switch c := s[i]; {
		case c == '\\' && i+1 < len(s) && (s[i+1] == ',' || s[i+1] == '\\'):
			i++
			cur.WriteByte(s[i])
		case c == ',':
			parts = append(parts, cur.String())
			cur.Reset()
		default:
			cur.WriteByte(c)
		}
	}
	return append(parts, cur.String())
}

// JoinList is the inverse of SplitList.
func JoinList(parts []string) string {
	escaped := make([]string, len(parts))
	for i, p := range parts {
		escaped[i] = listEscaper.Replace(p)
	}
	return strings.Join(escaped, ",")
}

var listEscaper = strings.NewReplacer(`\`, `\\`, ",", `\,`)
