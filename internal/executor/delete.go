package executor

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/localmodels/modellake/internal/apperr"
	"github.com/localmodels/modellake/internal/pathmodel"
	"github.com/localmodels/modellake/internal/queue"
	"github.com/localmodels/modellake/internal/sourceurl"
)

// runDelete implements the §4.6 delete task protocol. The sync-path policy
// gate (step 1) is primarily enforced upstream, at enqueue time (so a
// policy-denied delete never becomes a task at all, satisfying the
// invariant that it never transitions to running) — this is a defensive
// second check in case a task was enqueued directly.
func (e *Executor) runDelete(ctx context.Context, t queue.Task) error {
	p := t.Payload

	if !p.DedupeInitiated && !e.sides.Get(p.Side).AllowDeleteFromSync {
		return fmt.Errorf("%w: sync-path delete of %s refused, allow_delete_from_sync is false", apperr.ErrPolicyDenied, p.RelPath)
	}

	abs, err := pathmodel.Join(e.rootFor(p.Side), p.RelPath)
	if err != nil {
		return err
	}

	if err := os.Remove(abs); err != nil && !errors.Is(err, os.ErrNotExist) {
		return classifyIOError(err)
	}

	if e.cache != nil {
		_ = e.cache.Invalidate(ctx, p.Side, p.RelPath)
	}

	if store := e.indexFor(p.Side); store != nil {
		store.Delete(p.RelPath)
	}

	if e.sources != nil {
		_ = e.sources.Delete(sourceurl.RelPathKey(p.RelPath.String()))
	}

	return nil
}
