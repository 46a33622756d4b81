package engine

import (
	"context"
	"fmt"

	"github.com/localmodels/modellake/internal/apperr"
	"github.com/localmodels/modellake/internal/pathmodel"
	"github.com/localmodels/modellake/internal/queue"
	"github.com/localmodels/modellake/internal/sides"
)

// EnqueueHashFile enqueues a hash_file task for (side, relpath).
func (e *Engine) EnqueueHashFile(ctx context.Context, side sides.Side, relpath pathmodel.RelPath) (queue.Task, error) {
	return e.queue.Enqueue(ctx, queue.TypeHashFile, queue.Payload{Side: side, RelPath: relpath})
}

// EnqueueVerify enqueues a verify task scoped to either a single relpath or
// an entire folder on side. Exactly one of relpath, folder must be set.
func (e *Engine) EnqueueVerify(ctx context.Context, side sides.Side, folder, relpath pathmodel.RelPath) (queue.Task, error) {
	if (folder == "") == (relpath == "") {
		return queue.Task{}, fmt.Errorf("engine: verify requires exactly one of folder or relpath")
	}

	payload := queue.Payload{Side: side, Folder: folder, RelPath: relpath}

	return e.queue.Enqueue(ctx, queue.TypeVerify, payload)
}

// EnqueueCopy enqueues a copy task from (srcSide, relpath) to the same
// relpath on dstSide.
func (e *Engine) EnqueueCopy(ctx context.Context, srcSide sides.Side, relpath pathmodel.RelPath, dstSide sides.Side) (queue.Task, error) {
	return e.queue.Enqueue(ctx, queue.TypeCopy, queue.Payload{
		SrcSide: srcSide, SrcRelPath: relpath,
		DstSide: dstSide, DstRelPath: relpath,
	})
}

// EnqueueDelete enqueues a sync-path delete, refusing it up front when the
// side's allow_delete_from_sync policy is false so a policy-denied delete
// never transitions to running at all.
func (e *Engine) EnqueueDelete(ctx context.Context, side sides.Side, relpath pathmodel.RelPath) (queue.Task, error) {
	if !e.sides.Get(side).AllowDeleteFromSync {
		return queue.Task{}, fmt.Errorf("%w: sync-path delete of %s refused, allow_delete_from_sync is false", apperr.ErrPolicyDenied, relpath)
	}

	return e.queue.Enqueue(ctx, queue.TypeDelete, queue.Payload{Side: side, RelPath: relpath})
}

// ListTasks returns every task, running first per the listing contract.
func (e *Engine) ListTasks(ctx context.Context) ([]queue.Task, error) {
	return e.queue.List(ctx)
}

// GetTask returns a single task by ID.
func (e *Engine) GetTask(ctx context.Context, id string) (queue.Task, error) {
	return e.queue.Get(ctx, id)
}

// PauseQueue stops the queue from claiming new tasks; a running task
// finishes normally.
func (e *Engine) PauseQueue(ctx context.Context) error {
	return e.queue.Pause(ctx)
}

// ResumeQueue clears the pause flag.
func (e *Engine) ResumeQueue(ctx context.Context) error {
	return e.queue.Resume(ctx)
}

// CancelTask cancels a single task by ID.
func (e *Engine) CancelTask(ctx context.Context, id string) error {
	return e.queue.Cancel(ctx, id)
}

// CancelAllTasks cancels every pending and running task.
func (e *Engine) CancelAllTasks(ctx context.Context) error {
	return e.queue.CancelAll(ctx)
}
