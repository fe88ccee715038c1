package db

import "errors"

// Sentinel errors for database operations.
var (
	ErrKeyNotFound = errors.New("db: key not found")
	ErrIndexExists = errors.New("db: index already exists")

	ErrNoRows              = errors.New("db: no rows")
	ErrUniqueViolation     = errors.New("db: unique violation")
	ErrForeignKeyViolation = errors.New("db: foreign key violation")
	ErrSerialization       = errors.New("db: serialization failure")
)

// Op constants map to Valkey/Redis command names, Elasticsearch APIs and SQL
// statements for error context.
const (
	OpCreateIndex = "FT.CREATE"
	OpIndexInfo   = "FT.INFO"
	OpSearch      = "FT.SEARCH"
	OpDel         = "DEL"
	OpHGetAll     = "HGETALL"
	OpReplace     = "EVALSHA replace"
	OpScan        = "SCAN"

	OpESIndex  = "es.index"
	OpESDelete = "es.delete"
	OpESGet    = "es.get"
	OpESSearch = "es.search"
	OpESCount  = "es.count"
	OpESCreate = "es.indices.create"
	OpESExists = "es.indices.exists"

	OpInsert  = "INSERT"
	OpUpdate  = "UPDATE"
	OpDelete  = "DELETE"
	OpSelect  = "SELECT"
	OpCount   = "SELECT count"
	OpBegin   = "BEGIN"
	OpCommit  = "COMMIT"
	OpMigrate = "migrate"
)

// Error wraps an underlying error with the operation name for diagnostics.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string { return e.Op + ": " + e.Err.Error() }
func (e *Error) Unwrap() error { return e.Err }
