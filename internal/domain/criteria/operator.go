package criteria

// Operator is a filter operator name as it appears in the query string (`<field>.<operator>=<value>`).
type Operator string

// Supported operators.
const (
	OpEquals             Operator = "equals"
	OpNotEquals          Operator = "notEquals"
	OpIn                 Operator = "in"
	OpNotIn              Operator = "notIn"
	OpContains           Operator = "contains"
	OpNotContains        Operator = "notContains"
	OpGreaterThan        Operator = "greaterThan"
	OpGreaterThanOrEqual Operator = "greaterThanOrEqual"
	OpLessThan           Operator = "lessThan"
	OpLessThanOrEqual    Operator = "lessThanOrEqual"
	OpSpecified          Operator = "specified"
)

// operatorAliases maps alternative spellings onto canonical operators.
var operatorAliases = map[string]Operator{
	"doesNotContain": OpNotContains,
}

var allOperators = []Operator{
	OpEquals, OpNotEquals, OpIn, OpNotIn, OpContains, OpNotContains,
	OpGreaterThan, OpGreaterThanOrEqual, OpLessThan, OpLessThanOrEqual, OpSpecified,
}

// ParseOperator resolves an operator name, including aliases.
func ParseOperator(s string) (Operator, bool) {
	if op, ok := operatorAliases[s]; ok {
		return op, true
	}
	for _, op := range allOperators {
		if string(op) == s {
			return op, true
		}
	}
	return "", false
}

// IsSet reports whether the operator takes a list of operands.
func (o Operator) IsSet() bool {
	return o == OpIn || o == OpNotIn
}

// IsRange reports whether the operator is an ordering comparison.
func (o Operator) IsRange() bool {
	switch o {
	case OpGreaterThan, OpGreaterThanOrEqual, OpLessThan, OpLessThanOrEqual:
		return true
	default:
		return false
	}
}
