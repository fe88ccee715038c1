package catalog

import "github.com/kailas-cloud/routedex/internal/domain/criteria"

// Entity names.
const (
	EntityStation = "station"
	EntityRoute   = "route"
	EntityTrip    = "trip"

	EntityProvince = "province"
	EntityDistrict = "district"
	EntityWard     = "ward"
)

// systemFields wraps an entity's own fields with the id, the store-managed
// timestamps and the soft-delete audit trail every entity carries.
func systemFields(fields ...criteria.Field) []criteria.Field {
	out := []criteria.Field{
		{Name: criteria.IDField, Column: "id", Kind: criteria.KindInteger, ReadOnly: true},
	}
	out = append(out, fields...)
	return append(out,
		criteria.Field{Name: "createdAt", Column: "created_at", Kind: criteria.KindInstant, ReadOnly: true},
		criteria.Field{Name: "updatedAt", Column: "updated_at", Kind: criteria.KindInstant, ReadOnly: true},
		criteria.Field{Name: "isDeleted", Column: "is_deleted", Kind: criteria.KindBoolean, Nullable: true},
		criteria.Field{Name: "deletedAt", Column: "deleted_at", Kind: criteria.KindInstant, Nullable: true},
		criteria.Field{Name: "deletedBy", Column: "deleted_by", Kind: criteria.KindUUID, Nullable: true},
	)
}

// divisionFields are the naming columns shared by the administrative
// divisions; code is the division's own code field.
func divisionFields(code, codeColumn string) []criteria.Field {
	return []criteria.Field{
		{Name: code, Column: codeColumn, Kind: criteria.KindString, Required: true, Text: true, Unique: true},
		{Name: "name", Column: "name", Kind: criteria.KindString, Required: true, Text: true},
		{Name: "nameEn", Column: "name_en", Kind: criteria.KindString, Nullable: true, Text: true},
		{Name: "fullName", Column: "full_name", Kind: criteria.KindString, Nullable: true, Text: true},
		{Name: "fullNameEn", Column: "full_name_en", Kind: criteria.KindString, Nullable: true, Text: true},
		{Name: "codeName", Column: "code_name", Kind: criteria.KindString, Nullable: true},
		{Name: "administrativeUnitId", Column: "administrative_unit_id", Kind: criteria.KindInteger, Nullable: true},
	}
}

// Station is a stop served by routes.
func Station() *criteria.Schema {
	return &criteria.Schema{
		Entity: EntityStation,
		Plural: "stations",
		Table:  "stations",
		Fields: systemFields(
			criteria.Field{Name: "code", Column: "code", Kind: criteria.KindString, Required: true, Text: true, Unique: true},
			criteria.Field{Name: "name", Column: "name", Kind: criteria.KindString, Required: true, Text: true},
			criteria.Field{Name: "nameEn", Column: "name_en", Kind: criteria.KindString, Nullable: true, Text: true},
			criteria.Field{Name: "addressId", Column: "address_id", Kind: criteria.KindUUID, Nullable: true},
			criteria.Field{Name: "facilities", Column: "facilities", Kind: criteria.KindString, Nullable: true, Text: true},
			criteria.Field{Name: "operatingHours", Column: "operating_hours", Kind: criteria.KindString, Nullable: true},
			criteria.Field{Name: "isActive", Column: "is_active", Kind: criteria.KindBoolean, Nullable: true},
		),
		Relations: []criteria.Relation{
			{Name: "originRoutes", Kind: criteria.ToMany, Target: EntityRoute, Table: "routes", Column: "origin_id"},
			{Name: "destinationRoutes", Kind: criteria.ToMany, Target: EntityRoute, Table: "routes", Column: "destination_id"},
		},
	}
}

// Route connects an origin station to a destination station.
func Route() *criteria.Schema {
	return &criteria.Schema{
		Entity: EntityRoute,
		Plural: "routes",
		Table:  "routes",
		Fields: systemFields(
			criteria.Field{
				Name: "routeCode", Column: "route_code", Kind: criteria.KindString, Required: true, Text: true, Unique: true,
			},
			criteria.Field{Name: "transportType", Column: "transport_type", Kind: criteria.KindString, Required: true},
			criteria.Field{Name: "distanceKm", Column: "distance_km", Kind: criteria.KindDecimal, Nullable: true},
			criteria.Field{
				Name: "estimatedDuration", Column: "estimated_duration", Kind: criteria.KindInteger, Nullable: true,
			},
			criteria.Field{Name: "basePrice", Column: "base_price", Kind: criteria.KindDecimal, Nullable: true},
			criteria.Field{Name: "isActive", Column: "is_active", Kind: criteria.KindBoolean, Nullable: true},
		),
		Relations: []criteria.Relation{
			{Name: "origin", Kind: criteria.ToOne, Target: EntityStation, Column: "origin_id"},
			{Name: "destination", Kind: criteria.ToOne, Target: EntityStation, Column: "destination_id"},
			{Name: "trips", Kind: criteria.ToMany, Target: EntityTrip, Table: "trips", Column: "route_id"},
		},
	}
}

// Trip is one scheduled run of a route.
func Trip() *criteria.Schema {
	return &criteria.Schema{
		Entity: EntityTrip,
		Plural: "trips",
		Table:  "trips",
		Fields: systemFields(
			criteria.Field{
				Name: "tripCode", Column: "trip_code", Kind: criteria.KindString, Required: true, Text: true, Unique: true,
			},
			criteria.Field{Name: "departureTime", Column: "departure_time", Kind: criteria.KindInstant, Required: true},
			criteria.Field{Name: "arrivalTime", Column: "arrival_time", Kind: criteria.KindInstant, Nullable: true},
			criteria.Field{Name: "serviceDate", Column: "service_date", Kind: criteria.KindDate, Nullable: true},
			criteria.Field{Name: "baseFare", Column: "base_fare", Kind: criteria.KindDecimal, Nullable: true},
			criteria.Field{Name: "availableSeats", Column: "available_seats", Kind: criteria.KindInteger, Nullable: true},
			criteria.Field{Name: "totalSeats", Column: "total_seats", Kind: criteria.KindInteger, Nullable: true},
			criteria.Field{Name: "status", Column: "status", Kind: criteria.KindString, Nullable: true},
			criteria.Field{Name: "driverId", Column: "driver_id", Kind: criteria.KindUUID, Nullable: true},
		),
		Relations: []criteria.Relation{
			{Name: "route", Kind: criteria.ToOne, Target: EntityRoute, Column: "route_id"},
		},
	}
}

// Province is the top administrative division.
func Province() *criteria.Schema {
	fields := append(divisionFields("provinceCode", "province_code"), criteria.Field{
		Name: "administrativeRegionId", Column: "administrative_region_id", Kind: criteria.KindInteger, Nullable: true,
	})
	return &criteria.Schema{
		Entity: EntityProvince,
		Plural: "provinces",
		Table:  "provinces",
		Fields: systemFields(fields...),
		Relations: []criteria.Relation{
			{Name: "districts", Kind: criteria.ToMany, Target: EntityDistrict, Table: "districts", Column: "province_id"},
		},
	}
}

// District belongs to a province and groups wards.
func District() *criteria.Schema {
	return &criteria.Schema{
		Entity: EntityDistrict,
		Plural: "districts",
		Table:  "districts",
		Fields: systemFields(divisionFields("districtCode", "district_code")...),
		Relations: []criteria.Relation{
			{Name: "province", Kind: criteria.ToOne, Target: EntityProvince, Column: "province_id"},
			{Name: "wards", Kind: criteria.ToMany, Target: EntityWard, Table: "wards", Column: "district_id"},
		},
	}
}

// Ward is the smallest administrative division.
func Ward() *criteria.Schema {
	return &criteria.Schema{
		Entity: EntityWard,
		Plural: "wards",
		Table:  "wards",
		Fields: systemFields(divisionFields("wardCode", "ward_code")...),
		Relations: []criteria.Relation{
			{Name: "district", Kind: criteria.ToOne, Target: EntityDistrict, Column: "district_id"},
		},
	}
}
