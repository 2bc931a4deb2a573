package core

import "time"

// SnapshotVersion is the current snapshot document format version.
const SnapshotVersion = 1

// DefaultDatabase is the non-deletable, non-renameable default database every
// deployment is guaranteed to have.
const DefaultDatabase = "dbo"

// Snapshot is the complete serialized state of all virtual databases. It is
// the sole unit of durable persistence and must round-trip losslessly for
// supported column types, subject to the per-table row cap.
type Snapshot struct {
	Version        int                        `json:"version"`
	CreatedAt      time.Time                  `json:"createdAt"`
	ActiveDatabase string                     `json:"activeDatabase"`
	Databases      map[string]DatabaseContent `json:"databases"`
}

// DatabaseContent holds one virtual database inside a snapshot: the row data
// per table and the reconstructed CREATE TABLE text per table.
type DatabaseContent struct {
	Tables      map[string][]Row  `json:"tables"`
	Schema      map[string]string `json:"schema"`
	LastUpdated time.Time         `json:"lastUpdated"`
}

// ChangeEvent announces that tables in a database were modified. An empty
// Tables set signals a structural change (created/dropped/altered table),
// which subscribers interpret as "invalidate everything in this database".
type ChangeEvent struct {
	Database  string    `json:"database"`
	Tables    []string  `json:"tables"`
	Timestamp time.Time `json:"timestamp"`
	OriginID  string    `json:"originId"`
}

// Structural reports whether the event carries no table-level detail.
func (e ChangeEvent) Structural() bool {
	return len(e.Tables) == 0
}
