// Package queue implements the persistent, ordered task queue (C7): the
// durable, strongly-ordered, single-consumer-by-default spine of the
// engine. Tasks are copy/delete/verify/hash_file/dedupe_scan; the queue
// owns their state transitions, FIFO ordering, same-key mutual exclusion,
// pause/resume, cancellation, and retry bookkeeping. Execution itself
// belongs to internal/executor, which borrows the running task.
package queue

import (
	"time"

	"github.com/localmodels/modellake/internal/pathmodel"
	"github.com/localmodels/modellake/internal/sides"
)

// Type identifies the kind of work a task performs.
type Type string

const (
	TypeCopy       Type = "copy"
	TypeDelete     Type = "delete"
	TypeVerify     Type = "verify"
	TypeHashFile   Type = "hash_file"
	TypeDedupeScan Type = "dedupe_scan"
)

// Status is a task's lifecycle state. Italicized states in the spec
// (completed, failed, cancelled) are terminal.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// DedupeMode selects how a dedupe_scan task groups candidates before
// hashing.
type DedupeMode string

const (
	DedupeFast DedupeMode = "fast"
	DedupeFull DedupeMode = "full"
)

// Payload is a tagged variant over the five task types. Callers populate
// the fields relevant to Type; Enqueue stores the payload as given and does
// not check which fields are set.
type Payload struct {
	// copy
	SrcSide    sides.Side
	SrcRelPath pathmodel.RelPath
	DstSide    sides.Side
	DstRelPath pathmodel.RelPath

	// delete (also used by dedupe-initiated deletes, which set
	// DedupeInitiated to bypass the sync-path policy gate)
	Side            sides.Side
	RelPath         pathmodel.RelPath
	DedupeInitiated bool

	// verify: Folder XOR RelPath; Side scopes a folder verify.
	Folder pathmodel.RelPath

	// dedupe_scan
	DedupeSide        sides.Side
	DedupeModeValue   DedupeMode
	MinSizeBytes      int64
}

// Key returns the (side, relpath) mutual-exclusion key for copy/delete
// tasks, or (0, "", false) for task types the exclusion rule does not apply to.
func (p Payload) Key(t Type) (sides.Side, pathmodel.RelPath, bool) {
	switch t {
	case TypeCopy:
		return p.DstSide, p.DstRelPath, true
	case TypeDelete:
		return p.Side, p.RelPath, true
	default:
		return 0, "", false
	}
}

// Task is a single unit of queued work.
type Task struct {
	ID               string
	Type             Type
	Status           Status
	CreatedAt        time.Time
	StartedAt        *time.Time
	FinishedAt       *time.Time
	Payload          Payload
	SizeBytes        *int64
	BytesTransferred int64
	Error            string
	RetryCount       int
	NextAttemptAt    time.Time
}
