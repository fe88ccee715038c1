package primary

import (
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kailas-cloud/routedex/internal/domain/catalog"
	"github.com/kailas-cloud/routedex/internal/domain/criteria"
)

func parse(t *testing.T, schema *criteria.Schema, params url.Values) *criteria.Criteria {
	t.Helper()
	c, err := criteria.Parse(schema, params)
	require.NoError(t, err)
	return c
}

func TestWhere(t *testing.T) {
	tests := []struct {
		name   string
		schema *criteria.Schema
		params url.Values
		want   string
		args   []any
	}{
		{
			name:   "empty criteria",
			schema: catalog.Route(),
			params: url.Values{},
			want:   "TRUE",
			args:   []any{},
		},
		{
			name:   "decimal equals binds text",
			schema: catalog.Route(),
			params: url.Values{"distanceKm.equals": {"2.5"}},
			want:   "t.distance_km = $1::text::numeric",
			args:   []any{"2.5"},
		},
		{
			name:   "not equals excludes null",
			schema: catalog.Route(),
			params: url.Values{"routeCode.notEquals": {"A"}},
			want:   "(t.route_code IS NOT NULL AND t.route_code <> $1::text)",
			args:   []any{"A"},
		},
		{
			name:   "range on one field",
			schema: catalog.Route(),
			params: url.Values{"distanceKm.greaterThan": {"1"}, "distanceKm.lessThan": {"9"}},
			want:   "t.distance_km > $1::text::numeric AND t.distance_km < $2::text::numeric",
			args:   []any{"1", "9"},
		},
		{
			name:   "in binds one array",
			schema: catalog.Route(),
			params: url.Values{"estimatedDuration.in": {"1,2"}},
			want:   "t.estimated_duration = ANY($1::bigint[])",
			args:   []any{[]int64{1, 2}},
		},
		{
			name:   "empty in matches nothing",
			schema: catalog.Route(),
			params: url.Values{"estimatedDuration.in": {""}},
			want:   "FALSE",
			args:   []any{},
		},
		{
			name:   "empty notIn constrains nothing",
			schema: catalog.Route(),
			params: url.Values{"estimatedDuration.notIn": {""}},
			want:   "TRUE",
			args:   []any{},
		},
		{
			name:   "notIn excludes null",
			schema: catalog.Route(),
			params: url.Values{"transportType.notIn": {"BUS,TRAIN"}},
			want:   "(t.transport_type IS NOT NULL AND NOT (t.transport_type = ANY($1::text[])))",
			args:   []any{[]string{"BUS", "TRAIN"}},
		},
		{
			name:   "contains escapes wildcards",
			schema: catalog.Route(),
			params: url.Values{"routeCode.contains": {`50%_a\b`}},
			want:   `t.route_code LIKE $1 ESCAPE '\'`,
			args:   []any{`%50\%\_a\\b%`},
		},
		{
			name:   "notContains excludes null",
			schema: catalog.Route(),
			params: url.Values{"routeCode.doesNotContain": {"X"}},
			want:   `(t.route_code IS NOT NULL AND t.route_code NOT LIKE $1 ESCAPE '\')`,
			args:   []any{"%X%"},
		},
		{
			name:   "specified",
			schema: catalog.Route(),
			params: url.Values{"basePrice.specified": {"false"}, "isActive.specified": {"true"}},
			want:   "t.base_price IS NULL AND t.is_active IS NOT NULL",
			args:   []any{},
		},
		{
			name:   "to-one relation filters the foreign key",
			schema: catalog.Route(),
			params: url.Values{"originId.equals": {"7"}},
			want:   "t.origin_id = $1::bigint",
			args:   []any{int64(7)},
		},
		{
			name:   "to-many relation is a semi-join",
			schema: catalog.Route(),
			params: url.Values{"tripsId.equals": {"5"}},
			want:   "EXISTS (SELECT 1 FROM trips r1 WHERE r1.route_id = t.id AND r1.id = $1::bigint)",
			args:   []any{int64(5)},
		},
		{
			name:   "to-many specified false",
			schema: catalog.Route(),
			params: url.Values{"tripsId.specified": {"false"}},
			want:   "NOT EXISTS (SELECT 1 FROM trips r1 WHERE r1.route_id = t.id)",
			args:   []any{},
		},
		{
			name:   "to-many conditions are independent",
			schema: catalog.Station(),
			params: url.Values{"originRoutesId.in": {"1,2"}, "originRoutesId.notEquals": {"3"}},
			want: "EXISTS (SELECT 1 FROM routes r1 WHERE r1.origin_id = t.id AND r1.id = ANY($1::bigint[])) AND " +
				"EXISTS (SELECT 1 FROM routes r2 WHERE r2.origin_id = t.id AND (r2.id IS NOT NULL AND r2.id <> $2::bigint))",
			args: []any{[]int64{1, 2}, int64(3)},
		},
		{
			name:   "uuid and date cast from text",
			schema: catalog.Trip(),
			params: url.Values{
				"driverId.equals": {"0b0e6e6a-3f0c-4a53-9d0c-7a7b9c1f2d11"},
				"serviceDate.in":  {"2024-05-01,2024-05-02"},
			},
			want: "t.driver_id = $1::text::uuid AND t.service_date = ANY($2::text[]::date[])",
			args: []any{"0b0e6e6a-3f0c-4a53-9d0c-7a7b9c1f2d11", []string{"2024-05-01", "2024-05-02"}},
		},
		{
			name:   "instant binds time",
			schema: catalog.Trip(),
			params: url.Values{"departureTime.greaterThanOrEqual": {"2024-05-01T08:00:00+02:00"}},
			want:   "t.departure_time >= $1::timestamptz",
			args:   []any{time.Date(2024, 5, 1, 6, 0, 0, 0, time.UTC)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			where, args, err := Where(parse(t, tt.schema, tt.params))
			require.NoError(t, err)
			assert.Equal(t, tt.want, where)
			assert.Equal(t, tt.args, args)
		})
	}
}

func TestWhere_StartsAfterExistingArgs(t *testing.T) {
	b := newSQLBuilder()
	b.addArg(int64(1))
	preds, err := translate(parse(t, catalog.Route(), url.Values{"isActive.equals": {"true"}}), ownerAlias, b)
	require.NoError(t, err)
	assert.Equal(t, []string{"t.is_active = $2::boolean"}, preds)
	assert.Equal(t, []any{int64(1), true}, b.args)
}
