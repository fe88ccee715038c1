package record

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/kailas-cloud/routedex/internal/domain"
	"github.com/kailas-cloud/routedex/internal/domain/criteria"
)

// Decode converts a write payload into typed values. Read-only keys (id, version,
// timestamps) are ignored so clients can send back what they read. Unknown keys,
// type mismatches and missing required keys fail with ErrValidation.
func Decode(schema *criteria.Schema, payload map[string]json.RawMessage) (map[string]criteria.Value, error) {
	values := make(map[string]criteria.Value, len(payload))
	var errs []error

	for key, raw := range payload {
		if key == VersionField {
			continue
		}
		kind, required, readOnly, ok := writable(schema, key)
		if !ok {
			errs = append(errs, fmt.Errorf("unknown field %q", key))
			continue
		}
		if readOnly {
			continue
		}
		v, isNull, err := decodeValue(kind, raw)
		if err != nil {
			errs = append(errs, fmt.Errorf("field %q: %w", key, err))
			continue
		}
		if isNull {
			if required {
				errs = append(errs, fmt.Errorf("field %q is required", key))
			}
			continue
		}
		values[key] = v
	}

	for _, f := range schema.Fields {
		if _, present := payload[f.Name]; f.Required && !f.ReadOnly && !present {
			errs = append(errs, fmt.Errorf("field %q is required", f.Name))
		}
	}
	for _, r := range schema.Relations {
		if _, present := payload[r.Key()]; r.Kind == criteria.ToOne && r.Required && !present {
			errs = append(errs, fmt.Errorf("field %q is required", r.Key()))
		}
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("%w: %w", domain.ErrValidation, errors.Join(errs...))
	}
	return values, nil
}

// Encode renders a record as a JSON-ready map with every schema key present
// (NULL as nil). Decimals are emitted as exact JSON numbers.
func Encode(schema *criteria.Schema, rec Record) map[string]any {
	out := make(map[string]any, len(schema.Fields)+len(schema.Relations)+1)
	out[VersionField] = rec.Version()
	for _, f := range schema.Fields {
		v, ok := rec.Value(f.Name)
		out[f.Name] = encodeValue(v, ok)
	}
	for _, r := range schema.ToOne() {
		v, ok := rec.Value(r.Key())
		out[r.Key()] = encodeValue(v, ok)
	}
	return out
}

// DecodeDocument rebuilds a full record, identity included, from an encoded
// document (the inverse of Encode).
func DecodeDocument(schema *criteria.Schema, doc map[string]json.RawMessage) (Record, error) {
	id, err := decodeInt(doc[criteria.IDField])
	if err != nil {
		return Record{}, fmt.Errorf("document id: %w", err)
	}
	version, err := decodeInt(doc[VersionField])
	if err != nil {
		return Record{}, fmt.Errorf("document version: %w", err)
	}

	values := make(map[string]criteria.Value, len(doc))
	for key, raw := range doc {
		if key == criteria.IDField || key == VersionField {
			continue
		}
		kind, ok := schema.KindOf(key)
		if !ok {
			continue
		}
		v, isNull, err := decodeValue(kind, raw)
		if err != nil {
			return Record{}, fmt.Errorf("document field %q: %w", key, err)
		}
		if !isNull {
			values[key] = v
		}
	}
	return Reconstruct(schema.Entity, id, version, values), nil
}

func writable(schema *criteria.Schema, key string) (kind criteria.Kind, required, readOnly, ok bool) {
	if f, found := schema.Field(key); found {
		return f.Kind, f.Required, f.ReadOnly, true
	}
	if r, found := schema.Relation(key); found && r.Kind == criteria.ToOne {
		return criteria.KindInteger, r.Required, false, true
	}
	return 0, false, false, false
}

func decodeValue(kind criteria.Kind, raw json.RawMessage) (criteria.Value, bool, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, true, nil
	}

	var text string
	switch kind {
	case criteria.KindBoolean:
		var b bool
		if err := json.Unmarshal(raw, &b); err != nil {
			return nil, false, fmt.Errorf("expected boolean")
		}
		return criteria.Boolean(b), false, nil
	case criteria.KindInteger, criteria.KindDecimal:
		if raw[0] == '"' {
			if err := json.Unmarshal(raw, &text); err != nil {
				return nil, false, fmt.Errorf("expected %s", kind)
			}
		} else {
			var n json.Number
			if err := json.Unmarshal(raw, &n); err != nil {
				return nil, false, fmt.Errorf("expected %s", kind)
			}
			text = n.String()
		}
	default:
		if err := json.Unmarshal(raw, &text); err != nil {
			return nil, false, fmt.Errorf("expected %s string", kind)
		}
	}

	v, err := kind.Parse(text)
	if err != nil {
		return nil, false, fmt.Errorf("expected %s, got %q", kind, text)
	}
	return v, false, nil
}

func decodeInt(raw json.RawMessage) (int64, error) {
	v, isNull, err := decodeValue(criteria.KindInteger, raw)
	if err != nil {
		return 0, err
	}
	if isNull {
		return 0, errors.New("missing")
	}
	return int64(v.(criteria.Integer)), nil
}

func encodeValue(v criteria.Value, ok bool) any {
	if !ok || v == nil {
		return nil
	}
	switch tv := v.(type) {
	case criteria.Integer:
		return int64(tv)
	case criteria.Boolean:
		return bool(tv)
	case criteria.Decimal:
		return json.Number(tv.String())
	default:
		return v.String()
	}
}
