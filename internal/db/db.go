package db

import (
	"context"
	"time"
)

// Store is the index database facade combining all sub-interfaces.
//
//nolint:interfacebloat // facade by design -- consumers use narrow sub-interfaces (ISP)
type Store interface {
	Pinger
	HashStore
	IndexManager
	Searcher
	Close()
	WaitForReady(ctx context.Context, timeout time.Duration) error
}

// Pinger checks database connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// WriteResult reports the outcome of a version-guarded write.
type WriteResult int

const (
	// Applied means the write changed the stored document.
	Applied WriteResult = iota
	// Stale means a newer version is already stored; nothing changed.
	Stale
	// Missing means there was nothing to delete.
	Missing
)

func (r WriteResult) String() string {
	switch r {
	case Applied:
		return "applied"
	case Stale:
		return "stale"
	case Missing:
		return "missing"
	default:
		return "unknown"
	}
}

// HashStore provides hash document operations. Writes are guarded by the
// document version kept in the VersionField hash field.
type HashStore interface {
	ReplaceHash(ctx context.Context, key string, version int64, fields map[string]string) (WriteResult, error)
	DeleteHash(ctx context.Context, key string, version int64) (WriteResult, error)
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error)
	HGetFieldMulti(ctx context.Context, field string, keys []string) ([]string, error)
	Scan(ctx context.Context, pattern string) ([]string, error)
}

// VersionField is the hash field holding the document version.
const VersionField = "_version"

// IndexManager provides FT index lifecycle operations.
type IndexManager interface {
	CreateIndex(ctx context.Context, def *IndexDefinition) error
	IndexExists(ctx context.Context, name string) (bool, error)
	SupportsTextSearch(ctx context.Context) bool
}

// Searcher provides search operations over FT indexes.
type Searcher interface {
	SearchList(ctx context.Context, q *ListQuery) (*SearchResult, error)
	SearchCount(ctx context.Context, index, query string) (int, error)
}
