package routedex

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/kailas-cloud/routedex/internal/domain/criteria"
)

// Filter is a conjunction of field conditions rendered as criteria query
// parameters (`<field>.<operator>=<value>`). The zero Filter matches every row.
type Filter struct {
	params url.Values
}

// Condition names the field a filter operator applies to. Relation keys
// (originId, routeId, tripsId, ...) filter by the related row's id.
type Condition struct {
	field string
}

// Where starts a condition on field.
func Where(field string) Condition { return Condition{field: field} }

// Equals matches rows whose field equals v.
func (c Condition) Equals(v any) Filter { return c.one("equals", v) }

// NotEquals matches rows whose field is set and differs from v.
func (c Condition) NotEquals(v any) Filter { return c.one("notEquals", v) }

// Contains matches rows whose text field contains v, ignoring case.
func (c Condition) Contains(v string) Filter { return c.one("contains", v) }

// DoesNotContain matches rows whose text field is set and does not contain v.
func (c Condition) DoesNotContain(v string) Filter { return c.one("notContains", v) }

// GreaterThan matches rows whose field is greater than v.
func (c Condition) GreaterThan(v any) Filter { return c.one("greaterThan", v) }

// GreaterThanOrEqual matches rows whose field is at least v.
func (c Condition) GreaterThanOrEqual(v any) Filter { return c.one("greaterThanOrEqual", v) }

// LessThan matches rows whose field is less than v.
func (c Condition) LessThan(v any) Filter { return c.one("lessThan", v) }

// LessThanOrEqual matches rows whose field is at most v.
func (c Condition) LessThanOrEqual(v any) Filter { return c.one("lessThanOrEqual", v) }

// In matches rows whose field equals any of vs. An empty In matches nothing.
func (c Condition) In(vs ...any) Filter { return c.set("in", vs) }

// NotIn matches rows whose field is set and equals none of vs.
func (c Condition) NotIn(vs ...any) Filter { return c.set("notIn", vs) }

// Specified matches rows whose field is set (true) or NULL (false).
func (c Condition) Specified(set bool) Filter {
	return c.one("specified", set)
}

func (c Condition) one(op string, v any) Filter {
	return Filter{params: url.Values{c.field + "." + op: {operand(v)}}}
}

func (c Condition) set(op string, vs []any) Filter {
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = operand(v)
	}
	return Filter{params: url.Values{c.field + "." + op: {criteria.JoinList(parts)}}}
}

// And combines f with others. Conditions on the same field and operator keep
// the last value, except in/notIn which accumulate operands.
func (f Filter) And(others ...Filter) Filter {
	out := f.Values()
	for _, o := range others {
		for k, vs := range o.params {
			if strings.HasSuffix(k, ".in") || strings.HasSuffix(k, ".notIn") {
				out[k] = append(out[k], vs...)
				continue
			}
			out[k] = append([]string(nil), vs...)
		}
	}
	return Filter{params: out}
}

// Distinct asks for rows reached through several to-many matches once.
func (f Filter) Distinct() Filter {
	out := f.Values()
	out.Set("distinct", "true")
	return Filter{params: out}
}

// Values returns a copy of the query parameters.
func (f Filter) Values() url.Values {
	out := make(url.Values, len(f.params))
	for k, vs := range f.params {
		out[k] = append([]string(nil), vs...)
	}
	return out
}

// String renders the filter as an encoded query string.
func (f Filter) String() string { return f.params.Encode() }

func operand(v any) string {
	switch tv := v.(type) {
	case string:
		return tv
	case bool:
		return strconv.FormatBool(tv)
	case int:
		return strconv.Itoa(tv)
	case int32:
		return strconv.FormatInt(int64(tv), 10)
	case int64:
		return strconv.FormatInt(tv, 10)
	case float64:
		return strconv.FormatFloat(tv, 'f', -1, 64)
	case json.Number:
		return tv.String()
	case time.Time:
		return tv.UTC().Format(time.RFC3339Nano)
	case fmt.Stringer:
		return tv.String()
	default:
		return fmt.Sprint(v)
	}
}
