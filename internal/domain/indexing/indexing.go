package indexing

import "time"

// State is the index state of one entity id, as observed by the propagator.
type State string

// Index states.
const (
	// Absent means the id has no document in the index.
	Absent State = "absent"
	// Syncing means a change for the id is queued or being applied.
	Syncing State = "syncing"
	// Present means the index holds the last committed version of the row.
	Present State = "present"
)

// Debt is a change whose propagation exhausted its retries. The reconciler
// drains debt by re-deriving the document from the primary store.
type Debt struct {
	Entity     string
	ID         int64
	Version    int64
	Attempts   int
	LastError  string
	RecordedAt time.Time
}

// Outcome is the result of one version-guarded index write.
type Outcome string

// Write outcomes.
const (
	// Applied means the index now holds the written version.
	Applied Outcome = "applied"
	// Stale means the index already held a newer version; nothing changed.
	Stale Outcome = "stale"
	// Missing means a delete found no document.
	Missing Outcome = "missing"
)
