package record

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/kailas-cloud/routedex/internal/domain"
	"github.com/kailas-cloud/routedex/internal/domain/catalog"
	"github.com/kailas-cloud/routedex/internal/domain/criteria"
)

func payload(t *testing.T, s string) map[string]json.RawMessage {
	t.Helper()
	var m map[string]json.RawMessage
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		t.Fatalf("bad payload: %v", err)
	}
	return m
}

func TestDecode_Route(t *testing.T) {
	schema := catalog.Route()
	values, err := Decode(schema, payload(t, `{
		"id": 99, "version": 4, "createdAt": "2024-01-01T00:00:00Z",
		"routeCode": "HN-HP", "transportType": "BUS",
		"distanceKm": 1.00, "basePrice": "12.50", "estimatedDuration": 90,
		"isActive": true, "originId": 7, "destinationId": null
	}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, ok := values["id"]; ok {
		t.Error("read-only id must be ignored")
	}
	if _, ok := values["createdAt"]; ok {
		t.Error("read-only createdAt must be ignored")
	}
	if _, ok := values["destinationId"]; ok {
		t.Error("null must decode to absent")
	}
	if !criteria.Equal(values["distanceKm"], mustValue(t, criteria.KindDecimal, "1")) {
		t.Errorf("distanceKm = %v, want 1", values["distanceKm"])
	}
	if values["basePrice"].String() != "12.5" {
		t.Errorf("basePrice = %v, want 12.5", values["basePrice"])
	}
	if values["estimatedDuration"] != criteria.Integer(90) {
		t.Errorf("estimatedDuration = %v", values["estimatedDuration"])
	}
	if values["originId"] != criteria.Integer(7) {
		t.Errorf("originId = %v", values["originId"])
	}
}

func TestDecode_ValidationErrors(t *testing.T) {
	schema := catalog.Route()
	tests := []struct {
		name string
		body string
	}{
		{"missing required", `{"transportType": "BUS"}`},
		{"required null", `{"routeCode": null, "transportType": "BUS"}`},
		{"unknown field", `{"routeCode": "A", "transportType": "BUS", "wardCode": "x"}`},
		{"to-many key not writable", `{"routeCode": "A", "transportType": "BUS", "tripsId": 1}`},
		{"wrong type", `{"routeCode": "A", "transportType": "BUS", "isActive": "yes"}`},
		{"bad decimal", `{"routeCode": "A", "transportType": "BUS", "distanceKm": "far"}`},
		{"fractional integer", `{"routeCode": "A", "transportType": "BUS", "estimatedDuration": 1.5}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(schema, payload(t, tt.body))
			if !errors.Is(err, domain.ErrValidation) {
				t.Fatalf("expected ErrValidation, got %v", err)
			}
		})
	}
}

func TestEncodeDecodeDocument(t *testing.T) {
	schema := catalog.Trip()
	values, err := Decode(schema, payload(t, `{
		"tripCode": "T-1", "departureTime": "2024-05-01T08:00:00Z",
		"serviceDate": "2024-05-01", "baseFare": "10.10",
		"driverId": "0b0e6e6a-3f0c-4a53-9d0c-7a7b9c1f2d11", "routeId": 3
	}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	rec := Reconstruct(schema.Entity, 5, 2, values)

	encoded := Encode(schema, rec)
	if encoded["id"] != int64(5) || encoded["version"] != int64(2) {
		t.Errorf("identity not encoded: %v", encoded)
	}
	if encoded["arrivalTime"] != nil {
		t.Errorf("absent field must encode as null, got %v", encoded["arrivalTime"])
	}
	if encoded["baseFare"] != json.Number("10.1") {
		t.Errorf("baseFare = %#v", encoded["baseFare"])
	}

	data, err := json.Marshal(encoded)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	back, err := DecodeDocument(schema, payload(t, string(data)))
	if err != nil {
		t.Fatalf("decode document: %v", err)
	}
	if back.ID() != 5 || back.Version() != 2 {
		t.Errorf("identity = %d/%d", back.ID(), back.Version())
	}
	for key, v := range values {
		got, ok := back.Value(key)
		if !ok || !criteria.Equal(got, v) {
			t.Errorf("%s = %v, want %v", key, got, v)
		}
	}
}

func TestRecord_Resolver(t *testing.T) {
	rec := Reconstruct("route", 3, 7, map[string]criteria.Value{"routeCode": criteria.String("A")})
	if v, _ := rec.Value("id"); v != criteria.Integer(3) {
		t.Errorf("id = %v", v)
	}
	if v, _ := rec.Value("version"); v != criteria.Integer(7) {
		t.Errorf("version = %v", v)
	}
	if _, ok := rec.Value("distanceKm"); ok {
		t.Error("absent key must resolve as NULL")
	}

	updated := rec.WithValue("routeCode", nil)
	if _, ok := updated.Value("routeCode"); ok {
		t.Error("WithValue(nil) must remove the key")
	}
	if _, ok := rec.Value("routeCode"); !ok {
		t.Error("WithValue must not mutate the original")
	}
}

func TestTombstoneOrdersAfterRow(t *testing.T) {
	c := NewTombstone("station", 1, 3)
	if c.Version != 4 || !c.IsTombstone() || c.Record != nil {
		t.Errorf("unexpected tombstone %+v", c)
	}
}

func mustValue(t *testing.T, k criteria.Kind, raw string) criteria.Value {
	t.Helper()
	v, err := k.Parse(raw)
	if err != nil {
		t.Fatalf("parse %q: %v", raw, err)
	}
	return v
}
