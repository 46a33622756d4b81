// Package dedupe implements the duplicate-group scanner (C10): it scans one
// side, groups files by full content hash, persists the groups under a
// fresh scan_id, and executes deletion of every group member except the
// one the operator chooses to keep.
package dedupe

import (
	"time"

	"github.com/localmodels/modellake/internal/pathmodel"
	"github.com/localmodels/modellake/internal/queue"
	"github.com/localmodels/modellake/internal/sides"
)

// GroupFile is one member of a duplicate group.
type GroupFile struct {
	RelPath pathmodel.RelPath
	Size    int64
	ModTime time.Time
}

// Group is a set of ≥2 files on one side sharing a BLAKE3 digest.
type Group struct {
	ID    string
	Hash  string
	Side  sides.Side
	Files []GroupFile
}

// ScanResult is the persisted outcome of one dedupe_scan task.
type ScanResult struct {
	ScanID              string
	Side                sides.Side
	Mode                queue.DedupeMode
	MinSizeBytes        int64
	CreatedAt           time.Time
	Groups              []Group
	TotalBytesRedundant int64
}

// Selection picks which file to keep within one group for an execute-deletion
// call; every other member of that group is deleted.
type Selection struct {
	GroupID     string
	KeepRelPath pathmodel.RelPath
}

// SkippedGroup records a selected group that was not deleted: its ID is not
// in the scan, a member could not be stat'ed, or a member's on-disk stat no
// longer matches what the scan recorded.
type SkippedGroup struct {
	GroupID string
	Reason  string
}

// Summary is the result of an execute-deletion call.
type Summary struct {
	Deleted    int
	FreedBytes int64
	Skipped    []SkippedGroup
}
