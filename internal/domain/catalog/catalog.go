package catalog

import (
	"fmt"

	"github.com/kailas-cloud/routedex/internal/domain"
	"github.com/kailas-cloud/routedex/internal/domain/criteria"
)

// Catalog is the registry of searchable entity schemas.
type Catalog struct {
	schemas  []*criteria.Schema
	byEntity map[string]*criteria.Schema
	byPlural map[string]*criteria.Schema
}

// New validates schemas and cross-checks relation targets.
func New(schemas ...*criteria.Schema) (*Catalog, error) {
	c := &Catalog{
		byEntity: make(map[string]*criteria.Schema, len(schemas)),
		byPlural: make(map[string]*criteria.Schema, len(schemas)),
	}
	for _, s := range schemas {
		if err := s.Validate(); err != nil {
			return nil, err
		}
		if _, dup := c.byEntity[s.Entity]; dup {
			return nil, fmt.Errorf("duplicate entity %q", s.Entity)
		}
		if _, dup := c.byPlural[s.Plural]; dup {
			return nil, fmt.Errorf("duplicate plural %q", s.Plural)
		}
		c.schemas = append(c.schemas, s)
		c.byEntity[s.Entity] = s
		c.byPlural[s.Plural] = s
	}
	for _, s := range schemas {
		for _, r := range s.Relations {
			if _, ok := c.byEntity[r.Target]; !ok {
				return nil, fmt.Errorf("entity %s: relation %s targets unknown entity %q", s.Entity, r.Name, r.Target)
			}
		}
	}
	return c, nil
}

// Default returns the route catalog: the administrative divisions, stations,
// routes and trips.
func Default() *Catalog {
	c, err := New(Province(), District(), Ward(), Station(), Route(), Trip())
	if err != nil {
		panic(err)
	}
	return c
}

// All returns every schema in registration order.
func (c *Catalog) All() []*criteria.Schema { return c.schemas }

// Entity returns the schema by entity name.
func (c *Catalog) Entity(name string) (*criteria.Schema, error) {
	if s, ok := c.byEntity[name]; ok {
		return s, nil
	}
	return nil, fmt.Errorf("%w: %q", domain.ErrUnknownEntity, name)
}

// Resource returns the schema by its plural (URL) name.
func (c *Catalog) Resource(plural string) (*criteria.Schema, error) {
	if s, ok := c.byPlural[plural]; ok {
		return s, nil
	}
	return nil, fmt.Errorf("%w: %q", domain.ErrUnknownEntity, plural)
}
