package criteria

import "strings"

// Resolver exposes an entity's values to in-memory matching.
type Resolver interface {
	// Value returns the value of a field or to-one relation key; false means NULL.
	Value(key string) (Value, bool)
	// RelatedIDs returns the ids linked through a to-many relation.
	RelatedIDs(relation string) []int64
}

// Matches evaluates the criteria against one entity with the same semantics
// the SQL translation has: NULL never satisfies a value operator, in() matches
// nothing, notIn() constrains nothing, and each to-many condition is an
// independent existence test.
func (c *Criteria) Matches(r Resolver) bool {
	for _, f := range c.filters {
		if rel, ok := c.schema.Relation(f.key); ok && rel.Kind == ToMany {
			if !matchMany(f, r.RelatedIDs(rel.Name)) {
				return false
			}
			continue
		}
		v, present := r.Value(f.key)
		for _, cond := range f.conds {
			if !matchCondition(cond, v, present) {
				return false
			}
		}
	}
	return true
}

func matchMany(f *Filter, ids []int64) bool {
	for _, cond := range f.conds {
		switch {
		case cond.op == OpSpecified:
			if (len(ids) > 0) != cond.specified {
				return false
			}
		case cond.op == OpNotIn && len(cond.values) == 0:
			// no constraint
		default:
			found := false
			for _, id := range ids {
				if matchCondition(cond, Integer(id), true) {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		}
	}
	return true
}

func matchCondition(c Condition, v Value, present bool) bool {
	if c.op == OpSpecified {
		return present == c.specified
	}
	if c.op == OpNotIn && len(c.values) == 0 {
		return true
	}
	if !present {
		return false
	}

	switch c.op {
	case OpEquals:
		return Equal(v, c.operand)
	case OpNotEquals:
		return !Equal(v, c.operand)
	case OpIn:
		return containsValue(c.values, v)
	case OpNotIn:
		return !containsValue(c.values, v)
	case OpContains:
		return strings.Contains(v.String(), c.operand.String())
	case OpNotContains:
		return !strings.Contains(v.String(), c.operand.String())
	case OpGreaterThan, OpGreaterThanOrEqual, OpLessThan, OpLessThanOrEqual:
		cmp, ok := Compare(v, c.operand)
		if !ok {
			return false
		}
		switch c.op {
		case OpGreaterThan:
			return cmp > 0
		case OpGreaterThanOrEqual:
			return cmp >= 0
		case OpLessThan:
			return cmp < 0
		default:
			return cmp <= 0
		}
	default:
		return false
	}
}

func containsValue(set []Value, v Value) bool {
	for _, s := range set {
		if Equal(s, v) {
			return true
		}
	}
	return false
}
