package executor

import (
	"context"
	"fmt"

	"github.com/localmodels/modellake/internal/apperr"
	"github.com/localmodels/modellake/internal/queue"
)

// runDedupeScan implements the §4.8 dedupe scan task: it runs candidate
// selection and hashing for one side and persists the resulting groups,
// returning the scan summary as the task_complete event's Result.
func (e *Executor) runDedupeScan(ctx context.Context, t queue.Task) (any, error) {
	if e.dedupe == nil {
		return nil, fmt.Errorf("%w: dedupe engine not configured", apperr.ErrNotFound)
	}

	p := t.Payload

	result, err := e.dedupe.Scan(ctx, p.DedupeSide, e.rootFor(p.DedupeSide), e.indexFor(p.DedupeSide), p.DedupeModeValue, p.MinSizeBytes)
	if err != nil {
		return nil, err
	}

	return result, nil
}
