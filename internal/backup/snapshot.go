// Package backup creates, indexes, prunes and restores compressed
// point-in-time snapshots of a named database.
//
// Snapshots are produced by an external dump utility reached over the
// network; the dump format is opaque to this package. The archive directory
// and its manifest.json are the only shared mutable state, and both assume
// a single controlling process.
package backup

import (
	"fmt"
	"time"
)

// Kind distinguishes operator-requested snapshots from policy-driven ones.
type Kind string

const (
	KindAuto   Kind = "auto"
	KindManual Kind = "manual"
)

// Reasons recorded in snapshot filenames and the manifest.
const (
	ReasonPostScraping = "post_scraping"
	ReasonDeletion     = "deletion"
	ReasonDuplicates   = "duplicates"
	ReasonClearAll     = "clear_all"
	ReasonManual       = "manual"
)

// Snapshot is one archived dump plus its metadata. Filename doubles as the
// manifest key and encodes creation time, kind and reason.
type Snapshot struct {
	Filename  string    `json:"filename"`
	Database  string    `json:"database"`
	SizeBytes int64     `json:"size_bytes"`
	CreatedAt time.Time `json:"created_at"`
	Kind      Kind      `json:"kind"`
	Reason    string    `json:"reason"`
	Verified  bool      `json:"verified"`
}

// snapshotFilename builds `<db>_<YYYYMMDD>_<HHmmss>_<kind>_<reason>.sql.gz`.
// The timestamp layout keeps names of the same database lexicographically
// sortable by creation time.
func snapshotFilename(database string, t time.Time, kind Kind, reason string) string {
	return fmt.Sprintf("%s_%s_%s_%s.sql.gz", database, t.Format("20060102_150405"), kind, reason)
}
