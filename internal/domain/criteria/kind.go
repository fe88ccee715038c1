package criteria

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kailas-cloud/routedex/internal/domain"
)

// Kind is the scalar kind of a filterable field.
type Kind int

// Scalar kinds.
const (
	KindString Kind = iota + 1
	KindInteger
	KindDecimal
	KindBoolean
	KindInstant
	KindDate
	KindUUID
)

// DateLayout is the wire format of Date values.
const DateLayout = "2006-01-02"

var kindNames = map[Kind]string{
	KindString:  "string",
	KindInteger: "integer",
	KindDecimal: "decimal",
	KindBoolean: "boolean",
	KindInstant: "instant",
	KindDate:    "date",
	KindUUID:    "uuid",
}

func (k Kind) String() string {
	if n, ok := kindNames[k]; ok {
		return n
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

// IsValid reports whether k is one of the declared kinds.
func (k Kind) IsValid() bool {
	_, ok := kindNames[k]
	return ok
}

// Ordered reports whether values of this kind have a total order usable by range operators.
func (k Kind) Ordered() bool {
	switch k {
	case KindInteger, KindDecimal, KindInstant, KindDate:
		return true
	default:
		return false
	}
}

// Supports reports whether the operator is meaningful for this kind.
func (k Kind) Supports(op Operator) bool {
	switch op {
	case OpEquals, OpNotEquals, OpIn, OpNotIn, OpSpecified:
		return k.IsValid()
	case OpContains, OpNotContains:
		return k == KindString
	case OpGreaterThan, OpGreaterThanOrEqual, OpLessThan, OpLessThanOrEqual:
		return k.Ordered()
	default:
		return false
	}
}

// Parse converts a raw operand into a Value of this kind.
func (k Kind) Parse(raw string) (Value, error) {
	switch k {
	case KindString:
		return String(raw), nil
	case KindInteger:
		n, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
		if err != nil {
			return nil, invalidOperand(k, raw)
		}
		return Integer(n), nil
	case KindDecimal:
		d, err := decimal.NewFromString(strings.TrimSpace(raw))
		if err != nil {
			return nil, invalidOperand(k, raw)
		}
		return NewDecimal(d), nil
	case KindBoolean:
		switch strings.TrimSpace(raw) {
		case "true":
			return Boolean(true), nil
		case "false":
			return Boolean(false), nil
		}
		return nil, invalidOperand(k, raw)
	case KindInstant:
		t, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(raw))
		if err != nil {
			return nil, invalidOperand(k, raw)
		}
		return NewInstant(t), nil
	case KindDate:
		t, err := time.Parse(DateLayout, strings.TrimSpace(raw))
		if err != nil {
			return nil, invalidOperand(k, raw)
		}
		return NewDate(t), nil
	case KindUUID:
		u, err := uuid.Parse(strings.TrimSpace(raw))
		if err != nil {
			return nil, invalidOperand(k, raw)
		}
		return UUID(u), nil
	default:
		return nil, fmt.Errorf("%w: unsupported kind %s", domain.ErrInvalidCriteria, k)
	}
}

func invalidOperand(k Kind, raw string) error {
	return fmt.Errorf("%w: %q is not a valid %s", domain.ErrInvalidCriteria, raw, k)
}
