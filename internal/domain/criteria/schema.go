package criteria

import (
	"errors"
	"fmt"
)

// IDField is the primary key field every schema carries.
const IDField = "id"

// Field describes one filterable scalar attribute of an entity.
type Field struct {
	Name     string
	Column   string
	Kind     Kind
	Nullable bool
	Required bool // must be present in write payloads
	ReadOnly bool // managed by the store (id, version, timestamps)
	Text     bool // full-text searchable in the index
	Unique   bool
}

// RelationKind distinguishes to-one from to-many relations.
type RelationKind int

// Relation kinds.
const (
	ToOne RelationKind = iota + 1
	ToMany
)

// Relation is a foreign-key link to another entity. It is filterable by the
// related row's id only, under the key `<Name>Id`.
//
// For ToOne the FK Column lives on the owner table; for ToMany it lives on Table
// and points back to the owner's id.
type Relation struct {
	Name     string
	Kind     RelationKind
	Target   string
	Table    string
	Column   string
	Required bool
}

// Key returns the filter key of the relation.
func (r Relation) Key() string { return r.Name + "Id" }

// Schema describes a filterable entity.
type Schema struct {
	Entity    string
	Plural    string
	Table     string
	Fields    []Field
	Relations []Relation
}

// Field returns the field with the given name.
func (s *Schema) Field(name string) (Field, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Relation returns the relation filtered by key (`<relation>Id`).
func (s *Schema) Relation(key string) (Relation, bool) {
	for _, r := range s.Relations {
		if r.Key() == key {
			return r, true
		}
	}
	return Relation{}, false
}

// KindOf resolves the kind of a filter key: a field name or a relation key.
func (s *Schema) KindOf(key string) (Kind, bool) {
	if f, ok := s.Field(key); ok {
		return f.Kind, true
	}
	if _, ok := s.Relation(key); ok {
		return KindInteger, true
	}
	return 0, false
}

func (s *Schema) relations(kind RelationKind) []Relation {
	var out []Relation
	for _, r := range s.Relations {
		if r.Kind == kind {
			out = append(out, r)
		}
	}
	return out
}

// ToOne returns the to-one relations.
func (s *Schema) ToOne() []Relation { return s.relations(ToOne) }

// ToMany returns the to-many relations.
func (s *Schema) ToMany() []Relation { return s.relations(ToMany) }

// TextFields returns the names of full-text searchable fields.
func (s *Schema) TextFields() []string {
	var out []string
	for _, f := range s.Fields {
		if f.Text {
			out = append(out, f.Name)
		}
	}
	return out
}

// Validate checks the schema is well-formed.
func (s *Schema) Validate() error {
	if s.Entity == "" || s.Plural == "" || s.Table == "" {
		return errors.New("schema entity, plural and table are required")
	}
	if f, ok := s.Field(IDField); !ok || f.Kind != KindInteger {
		return fmt.Errorf("schema %s: integer %q field is required", s.Entity, IDField)
	}

	seen := make(map[string]bool)
	for _, f := range s.Fields {
		if f.Name == "" || f.Column == "" {
			return fmt.Errorf("schema %s: field name and column are required", s.Entity)
		}
		if !f.Kind.IsValid() {
			return fmt.Errorf("schema %s: field %s has invalid kind", s.Entity, f.Name)
		}
		if f.Text && f.Kind != KindString {
			return fmt.Errorf("schema %s: text field %s must be a string", s.Entity, f.Name)
		}
		if seen[f.Name] {
			return fmt.Errorf("schema %s: duplicate key %s", s.Entity, f.Name)
		}
		seen[f.Name] = true
	}
	for _, r := range s.Relations {
		if r.Name == "" || r.Column == "" || r.Target == "" {
			return fmt.Errorf("schema %s: relation name, column and target are required", s.Entity)
		}
		if r.Kind == ToMany && r.Table == "" {
			return fmt.Errorf("schema %s: to-many relation %s requires a table", s.Entity, r.Name)
		}
		if r.Kind != ToOne && r.Kind != ToMany {
			return fmt.Errorf("schema %s: relation %s has invalid kind", s.Entity, r.Name)
		}
		if seen[r.Key()] {
			return fmt.Errorf("schema %s: duplicate key %s", s.Entity, r.Key())
		}
		seen[r.Key()] = true
	}
	return nil
}
