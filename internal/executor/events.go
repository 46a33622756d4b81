package executor

import (
	"github.com/localmodels/modellake/internal/pathmodel"
	"github.com/localmodels/modellake/internal/queue"
	"github.com/localmodels/modellake/internal/sides"
)

// TaskStarted is published on the reliable task_started topic the moment a
// task transitions into running.
type TaskStarted struct {
	TaskID string
	Type   queue.Type
}

// TaskComplete is published on the reliable task_complete topic once a task
// reaches a terminal or re-pending state. Result carries type-specific
// output (e.g. a dedupe scan summary); it is nil for copy/delete/verify.
type TaskComplete struct {
	TaskID string
	Type   queue.Type
	Status queue.Status
	Error  string
	Result any
}

// QueueProgress is published at ≥250ms intervals during a copy's byte
// streaming.
type QueueProgress struct {
	TaskID           string
	BytesTransferred int64
	TotalBytes       int64
	ProgressPct      float64
}

// VerifyProgress is published while a folder-scoped verify task works
// through its files.
type VerifyProgress struct {
	Side    sides.Side
	Folder  pathmodel.RelPath
	Current int
	Total   int
}

// progressPct computes a 0-100 percentage, returning 0 when total is
// unknown to avoid a divide-by-zero.
func progressPct(transferred, total int64) float64 {
	if total <= 0 {
		return 0
	}

	return float64(transferred) / float64(total) * 100
}
