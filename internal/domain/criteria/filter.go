package criteria

import (
	"fmt"

	"github.com/kailas-cloud/routedex/internal/domain"
)

// Condition is one operator with its operand(s) applied to a field.
type Condition struct {
	op        Operator
	operand   Value
	values    []Value
	specified bool
}

// Operator returns the condition operator.
func (c Condition) Operator() Operator { return c.op }

// Operand returns the single operand of a scalar operator.
func (c Condition) Operand() Value { return c.operand }

// Values returns the operand list of in/notIn.
func (c Condition) Values() []Value { return c.values }

// Specified returns the flag of a specified condition.
func (c Condition) Specified() bool { return c.specified }

// Filter is the typed constraint on one field: a conjunction of conditions,
// at most one per operator.
type Filter struct {
	key   string
	kind  Kind
	conds []Condition
}

// NewFilter creates an empty filter for key of the given kind.
func NewFilter(key string, kind Kind) *Filter {
	return &Filter{key: key, kind: kind}
}

// Key returns the filter key (field name or `<relation>Id`).
func (f *Filter) Key() string { return f.key }

// Kind returns the scalar kind of the filtered field.
func (f *Filter) Kind() Kind { return f.kind }

// Conditions returns the conditions in the order they were added.
func (f *Filter) Conditions() []Condition { return f.conds }

// Condition returns the condition for op, if present.
func (f *Filter) Condition(op Operator) (Condition, bool) {
	for _, c := range f.conds {
		if c.op == op {
			return c, true
		}
	}
	return Condition{}, false
}

// Set adds a value operator. in/notIn accept any number of values (including none),
// every other operator exactly one.
func (f *Filter) Set(op Operator, values ...Value) error {
	if op == OpSpecified {
		return fmt.Errorf("%w: use SetSpecified for %s.specified", domain.ErrInvalidCriteria, f.key)
	}
	if err := f.checkOp(op); err != nil {
		return err
	}
	for _, v := range values {
		if v == nil || v.Kind() != f.kind {
			return fmt.Errorf("%w: %s.%s expects %s operands", domain.ErrInvalidCriteria, f.key, op, f.kind)
		}
	}

	c := Condition{op: op}
	if op.IsSet() {
		c.values = append([]Value(nil), values...)
	} else {
		if len(values) != 1 {
			return fmt.Errorf("%w: %s.%s expects exactly one operand", domain.ErrInvalidCriteria, f.key, op)
		}
		c.operand = values[0]
	}
	f.conds = append(f.conds, c)
	return nil
}

// SetSpecified adds a specified(true|false) condition.
func (f *Filter) SetSpecified(specified bool) error {
	if err := f.checkOp(OpSpecified); err != nil {
		return err
	}
	f.conds = append(f.conds, Condition{op: OpSpecified, specified: specified})
	return nil
}

func (f *Filter) checkOp(op Operator) error {
	if !f.kind.Supports(op) {
		return fmt.Errorf("%w: operator %s is not supported for %s field %s",
			domain.ErrInvalidCriteria, op, f.kind, f.key)
	}
	if _, dup := f.Condition(op); dup {
		return fmt.Errorf("%w: %s.%s given more than once", domain.ErrInvalidCriteria, f.key, op)
	}
	return nil
}
