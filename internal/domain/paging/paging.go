package paging

import (
	"fmt"
	"strings"

	"github.com/kailas-cloud/routedex/internal/domain"
	"github.com/kailas-cloud/routedex/internal/domain/criteria"
)

// Defaults for list and search pages.
const (
	DefaultSize = 20
	MaxSize     = 1000
)

// Order is one sort key.
type Order struct {
	Key  string
	Desc bool
}

// Request is a zero-based page request with an optional sort.
type Request struct {
	Page int
	Size int
	Sort []Order
}

// Offset returns the number of rows to skip.
func (r Request) Offset() int { return r.Page * r.Size }

// New validates page and size and applies defaults (size 0 means DefaultSize).
func New(page, size int, sort []Order) (Request, error) {
	if page < 0 {
		return Request{}, fmt.Errorf("%w: page must be >= 0", domain.ErrValidation)
	}
	if size < 0 || size > MaxSize {
		return Request{}, fmt.Errorf("%w: size must be between 1 and %d", domain.ErrValidation, MaxSize)
	}
	if size == 0 {
		size = DefaultSize
	}
	return Request{Page: page, Size: size, Sort: sort}, nil
}

// ParseSort parses `key` or `key,asc|desc` items. Keys must be schema fields or
// to-one relation keys; to-many relations are not sortable.
func ParseSort(schema *criteria.Schema, raw []string) ([]Order, error) {
	var out []Order
	seen := make(map[string]bool)
	for _, item := range raw {
		if item == "" {
			continue
		}
		key, dir, _ := strings.Cut(item, ",")
		key = strings.TrimSpace(key)
		if !Sortable(schema, key) {
			return nil, fmt.Errorf("%w: cannot sort by %q", domain.ErrValidation, key)
		}
		o := Order{Key: key}
		switch strings.ToLower(strings.TrimSpace(dir)) {
		case "", "asc":
		case "desc":
			o.Desc = true
		default:
			return nil, fmt.Errorf("%w: sort direction %q", domain.ErrValidation, dir)
		}
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, o)
	}
	return out, nil
}

// Sortable reports whether key can be used as a sort key.
func Sortable(schema *criteria.Schema, key string) bool {
	if _, ok := schema.Field(key); ok {
		return true
	}
	rel, ok := schema.Relation(key)
	return ok && rel.Kind == criteria.ToOne
}
