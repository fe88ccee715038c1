package criteria

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kailas-cloud/routedex/internal/domain"
)

func TestKind_Supports(t *testing.T) {
	tests := []struct {
		kind Kind
		op   Operator
		want bool
	}{
		{KindString, OpContains, true},
		{KindString, OpNotContains, true},
		{KindString, OpGreaterThan, false},
		{KindInteger, OpGreaterThanOrEqual, true},
		{KindInteger, OpContains, false},
		{KindDecimal, OpLessThan, true},
		{KindInstant, OpLessThanOrEqual, true},
		{KindDate, OpGreaterThan, true},
		{KindBoolean, OpGreaterThan, false},
		{KindBoolean, OpIn, true},
		{KindUUID, OpContains, false},
		{KindUUID, OpNotIn, true},
		{KindUUID, OpSpecified, true},
		{Kind(99), OpEquals, false},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, tc.kind.Supports(tc.op), "%s supports %s", tc.kind, tc.op)
	}
}

func TestKind_Parse(t *testing.T) {
	v, err := KindInteger.Parse(" 42 ")
	require.NoError(t, err)
	assert.Equal(t, Integer(42), v)

	v, err = KindDecimal.Parse("1.00")
	require.NoError(t, err)
	assert.True(t, Equal(v, dec("1")))

	v, err = KindBoolean.Parse("false")
	require.NoError(t, err)
	assert.Equal(t, Boolean(false), v)

	v, err = KindInstant.Parse("2024-05-01T10:00:00+02:00")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC), v.(Instant).Time())

	v, err = KindDate.Parse("2024-02-29")
	require.NoError(t, err)
	assert.Equal(t, "2024-02-29", v.String())

	v, err = KindUUID.Parse("0b0e6e6a-3f0c-4a53-9d0c-7a7b9c1f2d11")
	require.NoError(t, err)
	assert.Equal(t, "0b0e6e6a-3f0c-4a53-9d0c-7a7b9c1f2d11", v.String())
}

func TestKind_Parse_Malformed(t *testing.T) {
	tests := []struct {
		kind Kind
		raw  string
	}{
		{KindInteger, "abc"},
		{KindInteger, "1.5"},
		{KindDecimal, "ten"},
		{KindBoolean, "yes"},
		{KindInstant, "2024-05-01"},
		{KindDate, "01/05/2024"},
		{KindUUID, "not-a-uuid"},
	}
	for _, tc := range tests {
		_, err := tc.kind.Parse(tc.raw)
		if !errors.Is(err, domain.ErrInvalidCriteria) {
			t.Errorf("%s.Parse(%q): expected ErrInvalidCriteria, got %v", tc.kind, tc.raw, err)
		}
	}
}

func TestEqual_DecimalScale(t *testing.T) {
	assert.True(t, Equal(dec("1"), dec("1.00")))
	assert.True(t, Equal(dec("0.10"), dec("0.1")))
	assert.False(t, Equal(dec("1"), dec("1.0001")))
	assert.False(t, Equal(dec("1"), Integer(1)), "different kinds never compare equal")
}

func TestCompare(t *testing.T) {
	cmp, ok := Compare(Integer(1), Integer(2))
	assert.True(t, ok)
	assert.Equal(t, -1, cmp)

	cmp, ok = Compare(dec("2.50"), dec("2.5"))
	assert.True(t, ok)
	assert.Equal(t, 0, cmp)

	_, ok = Compare(Boolean(true), Boolean(false))
	assert.False(t, ok)

	_, ok = Compare(Integer(1), dec("1"))
	assert.False(t, ok)
}

func TestParseOperator_Alias(t *testing.T) {
	op, ok := ParseOperator("doesNotContain")
	require.True(t, ok)
	assert.Equal(t, OpNotContains, op)

	_, ok = ParseOperator("between")
	assert.False(t, ok)
}
