package redis

import (
	"context"
	"fmt"

	"github.com/kailas-cloud/routedex/internal/db"
)

// CreateIndex runs FT.CREATE for def. An existing index yields db.ErrIndexExists.
func (s *Store) CreateIndex(ctx context.Context, def *db.IndexDefinition) error {
	args, err := createArgs(def, s.flavor)
	if err != nil {
		return err
	}

	cmd := s.b().Arbitrary("FT.CREATE").Args(args...).Build()
	if err := s.do(ctx, cmd).Error(); err != nil {
		if isRedisErr(err, "already exists") {
			return db.ErrIndexExists
		}
		return &db.Error{Op: db.OpCreateIndex, Err: err}
	}
	return nil
}

// IndexExists probes the index with FT.INFO. Both flavors answer an
// "unknown index name" (Redis) or "not found" (valkey-search) error for a
// missing index.
func (s *Store) IndexExists(ctx context.Context, name string) (bool, error) {
	cmd := s.b().Arbitrary("FT.INFO").Args(name).Build()
	err := s.do(ctx, cmd).Error()
	switch {
	case err == nil:
		return true, nil
	case isRedisErr(err, "unknown index name"), isRedisErr(err, "not found"):
		return false, nil
	default:
		return false, &db.Error{Op: db.OpIndexInfo, Err: err}
	}
}

// SupportsTextSearch reports TEXT attribute support: Redis 8+ has it,
// valkey-search does not.
func (s *Store) SupportsTextSearch(context.Context) bool {
	return s.flavor == FlavorRedis
}

// createArgs renders FT.CREATE arguments: name ON HASH PREFIX 1 p SCHEMA ...
func createArgs(def *db.IndexDefinition, flavor Flavor) ([]string, error) {
	if err := def.Validate(); err != nil {
		return nil, fmt.Errorf("index %s: %w", def.Name, err)
	}

	args := []string{def.Name, "ON", "HASH", "PREFIX", "1", def.Prefix, "SCHEMA"}
	for _, f := range def.Fields {
		attr, err := attributeArgs(f, flavor)
		if err != nil {
			return nil, fmt.Errorf("index %s: %w", def.Name, err)
		}
		args = append(args, attr...)
	}
	return args, nil
}

func attributeArgs(f db.IndexField, flavor Flavor) ([]string, error) {
	args := []string{f.Name, f.Type.String()}

	switch f.Type {
	case db.IndexFieldNumeric:
		// valkey-search rejects SORTABLE; ordering happens client-side there.
		if f.Sortable && flavor == FlavorRedis {
			args = append(args, "SORTABLE")
		}
	case db.IndexFieldTag:
		if f.Separator != "" {
			args = append(args, "SEPARATOR", f.Separator)
		}
	case db.IndexFieldText:
		if flavor == FlavorValkey {
			return nil, fmt.Errorf("valkey-search has no TEXT attribute (field %s)", f.Name)
		}
	default:
		return nil, fmt.Errorf("field %s: unsupported type %s", f.Name, f.Type)
	}
	return args, nil
}
