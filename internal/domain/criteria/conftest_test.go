package criteria

import (
	"net/url"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

// testSchema mirrors a route: scalar fields of every kind plus one relation of each shape.
func testSchema() *Schema {
	return &Schema{
		Entity: "route",
		Plural: "routes",
		Table:  "routes",
		Fields: []Field{
			{Name: "id", Column: "id", Kind: KindInteger, ReadOnly: true},
			{Name: "routeCode", Column: "route_code", Kind: KindString, Required: true, Text: true},
			{Name: "distanceKm", Column: "distance_km", Kind: KindDecimal, Nullable: true},
			{Name: "estimatedDuration", Column: "estimated_duration", Kind: KindInteger, Nullable: true},
			{Name: "isActive", Column: "is_active", Kind: KindBoolean, Nullable: true},
			{Name: "createdAt", Column: "created_at", Kind: KindInstant, ReadOnly: true},
			{Name: "serviceDate", Column: "service_date", Kind: KindDate, Nullable: true},
			{Name: "operatorId", Column: "operator_id", Kind: KindUUID, Nullable: true},
		},
		Relations: []Relation{
			{Name: "origin", Kind: ToOne, Target: "station", Column: "origin_id"},
			{Name: "trips", Kind: ToMany, Target: "trip", Table: "trips", Column: "route_id"},
		},
	}
}

// row is an in-memory Resolver.
type row struct {
	values map[string]Value
	many   map[string][]int64
}

func (r row) Value(key string) (Value, bool) {
	v, ok := r.values[key]
	return v, ok
}

func (r row) RelatedIDs(relation string) []int64 { return r.many[relation] }

func mustParse(t *testing.T, q string) *Criteria {
	t.Helper()
	params, err := url.ParseQuery(q)
	require.NoError(t, err)
	c, err := Parse(testSchema(), params)
	require.NoError(t, err)
	return c
}

func dec(s string) Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return NewDecimal(d)
}

func filterRows(c *Criteria, rows []row) []int {
	var out []int
	for i, r := range rows {
		if c.Matches(r) {
			out = append(out, i)
		}
	}
	return out
}
