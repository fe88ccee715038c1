package criteria

import (
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Value is a typed scalar operand. The set of implementations is closed:
// String, Integer, Decimal, Boolean, Instant, Date, UUID.
type Value interface {
	Kind() Kind
	String() string
	isValue()
}

// String is a string value.
type String string

// Kind implements Value.
func (String) Kind() Kind       { return KindString }
func (s String) String() string { return string(s) }
func (String) isValue()         {}

// Integer is a 64-bit integer value.
type Integer int64

// Kind implements Value.
func (Integer) Kind() Kind       { return KindInteger }
func (i Integer) String() string { return strconv.FormatInt(int64(i), 10) }
func (Integer) isValue()         {}

// Decimal is an exact decimal value.
type Decimal struct {
	d decimal.Decimal
}

// NewDecimal wraps d.
func NewDecimal(d decimal.Decimal) Decimal { return Decimal{d: d} }

// Kind implements Value.
func (Decimal) Kind() Kind { return KindDecimal }

// Decimal returns the underlying decimal.
func (d Decimal) Decimal() decimal.Decimal { return d.d }

func (d Decimal) String() string { return d.d.String() }
func (Decimal) isValue()         {}

// Boolean is a boolean value.
type Boolean bool

// Kind implements Value.
func (Boolean) Kind() Kind       { return KindBoolean }
func (b Boolean) String() string { return strconv.FormatBool(bool(b)) }
func (Boolean) isValue()         {}

// Instant is a point in time, normalized to UTC at microsecond precision
// (the precision of a PostgreSQL timestamptz).
type Instant struct {
	t time.Time
}

// NewInstant normalizes t into an Instant: UTC at microsecond precision, the
// resolution of a Postgres timestamptz. Operands and stored values compare
// equal only because both sides are truncated the same way.
func NewInstant(t time.Time) Instant { return Instant{t: t.UTC().Truncate(time.Microsecond)} }

// Kind implements Value.
func (Instant) Kind() Kind { return KindInstant }

// Time returns the instant as a UTC time.
func (i Instant) Time() time.Time { return i.t }

func (i Instant) String() string { return i.t.Format(time.RFC3339Nano) }
func (Instant) isValue()         {}

// Date is a calendar date without time zone.
type Date struct {
	t time.Time
}

// NewDate keeps only the calendar date of t.
func NewDate(t time.Time) Date {
	y, m, d := t.Date()
	return Date{t: time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

// Kind implements Value.
func (Date) Kind() Kind { return KindDate }

// Time returns midnight UTC of the date.
func (d Date) Time() time.Time { return d.t }

func (d Date) String() string { return d.t.Format(DateLayout) }
func (Date) isValue()         {}

// UUID is a UUID value.
type UUID uuid.UUID

// Kind implements Value.
func (UUID) Kind() Kind       { return KindUUID }
func (u UUID) String() string { return uuid.UUID(u).String() }
func (UUID) isValue()         {}

// Equal reports whether a and b have the same kind and value.
// Decimals compare numerically, so 1 and 1.00 are equal.
func Equal(a, b Value) bool {
	if a == nil || b == nil || a.Kind() != b.Kind() {
		return false
	}
	switch av := a.(type) {
	case Decimal:
		return av.d.Equal(b.(Decimal).d)
	case Instant:
		return av.t.Equal(b.(Instant).t)
	case Date:
		return av.t.Equal(b.(Date).t)
	default:
		return a == b
	}
}

// Compare orders two values of the same ordered kind.
// ok is false when the kinds differ or the kind has no order.
func Compare(a, b Value) (cmp int, ok bool) {
	if a == nil || b == nil || a.Kind() != b.Kind() {
		return 0, false
	}
	switch av := a.(type) {
	case Integer:
		bv := b.(Integer)
		switch {
		case av < bv:
			return -1, true
		case av > bv:
			return 1, true
		}
		return 0, true
	case Decimal:
		return av.d.Cmp(b.(Decimal).d), true
	case Instant:
		return av.t.Compare(b.(Instant).t), true
	case Date:
		return av.t.Compare(b.(Date).t), true
	default:
		return 0, false
	}
}
