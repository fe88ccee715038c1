package record

// ChangeKind is the kind of a committed mutation.
type ChangeKind string

const (
	// Created marks an insert.
	Created ChangeKind = "created"
	// Updated marks a full update.
	Updated ChangeKind = "updated"
	// Deleted marks a delete; the change carries no record.
	Deleted ChangeKind = "deleted"
)

// Change describes one committed primary-store mutation. Record is the full
// post-commit row, or nil for a delete (tombstone).
type Change struct {
	Entity  string
	Kind    ChangeKind
	ID      int64
	Version int64
	Record  *Record
}

// NewUpsert builds the change for a created or updated row.
func NewUpsert(kind ChangeKind, rec Record) Change {
	return Change{Entity: rec.Entity(), Kind: kind, ID: rec.ID(), Version: rec.Version(), Record: &rec}
}

// NewTombstone builds the change for a deleted row whose last committed version
// was rowVersion. The tombstone is versioned one past it so it orders after every
// upsert of the row.
func NewTombstone(entity string, id, rowVersion int64) Change {
	return Change{Entity: entity, Kind: Deleted, ID: id, Version: rowVersion + 1}
}

// IsTombstone reports whether the change removes the row.
func (c Change) IsTombstone() bool { return c.Kind == Deleted }

// Stamp is the identity and version of a stored row or index document.
type Stamp struct {
	ID      int64
	Version int64
}
