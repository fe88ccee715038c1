package criteria

import (
	"fmt"
	"net/url"
	"strconv"

	"github.com/kailas-cloud/routedex/internal/domain"
)

// DistinctParam is the flag parameter accepted next to filter keys.
const DistinctParam = "distinct"

// Criteria is the conjunction of per-field filters for one query against one entity.
type Criteria struct {
	schema   *Schema
	filters  []*Filter
	distinct bool
}

// New creates empty criteria (no constraint) for the schema.
func New(schema *Schema) *Criteria {
	return &Criteria{schema: schema}
}

// Schema returns the entity schema the criteria apply to.
func (c *Criteria) Schema() *Schema { return c.schema }

// Filters returns the filters in creation order.
func (c *Criteria) Filters() []*Filter { return c.filters }

// IsEmpty reports whether no filter is present.
func (c *Criteria) IsEmpty() bool { return len(c.filters) == 0 }

// Distinct reports whether the caller asked for distinct rows.
func (c *Criteria) Distinct() bool { return c.distinct }

// SetDistinct sets the distinct flag.
func (c *Criteria) SetDistinct(v bool) { c.distinct = v }

// Filter returns the filter for key, if present.
func (c *Criteria) Filter(key string) (*Filter, bool) {
	for _, f := range c.filters {
		if f.key == key {
			return f, true
		}
	}
	return nil, false
}

// On returns the filter for key, creating it when absent.
// Unknown keys are rejected with ErrInvalidCriteria.
func (c *Criteria) On(key string) (*Filter, error) {
	if f, ok := c.Filter(key); ok {
		return f, nil
	}
	kind, ok := c.schema.KindOf(key)
	if !ok {
		return nil, fmt.Errorf("%w: unknown field %q for %s", domain.ErrInvalidCriteria, key, c.schema.Entity)
	}
	f := NewFilter(key, kind)
	c.filters = append(c.filters, f)
	return f, nil
}

// Encode renders the criteria back into query parameters.
func (c *Criteria) Encode() url.Values {
	out := url.Values{}
	for _, f := range c.filters {
		for _, cond := range f.conds {
			key := f.key + "." + string(cond.op)
			switch {
			case cond.op == OpSpecified:
				out.Set(key, strconv.FormatBool(cond.specified))
			case cond.op.IsSet():
				parts := make([]string, len(cond.values))
				for i, v := range cond.values {
					parts[i] = v.String()
				}
				out.Set(key, JoinList(parts))
			default:
				out.Set(key, cond.operand.String())
			}
		}
	}
	if c.distinct {
		out.Set(DistinctParam, "true")
	}
	return out
}
