package engine

import (
	"context"

	"github.com/localmodels/modellake/internal/dedupe"
	"github.com/localmodels/modellake/internal/queue"
	"github.com/localmodels/modellake/internal/sides"
)

// EnqueueDedupeScan enqueues a dedupe_scan task for side; the executor's
// runDedupeScan runs the actual scan and hands back a dedupe.ScanResult as
// the task's Result.
func (e *Engine) EnqueueDedupeScan(ctx context.Context, side sides.Side, mode queue.DedupeMode, minSizeBytes int64) (queue.Task, error) {
	return e.queue.Enqueue(ctx, queue.TypeDedupeScan, queue.Payload{
		DedupeSide:      side,
		DedupeModeValue: mode,
		MinSizeBytes:    minSizeBytes,
	})
}

// DedupeLatestScan returns the most recently persisted scan for side.
func (e *Engine) DedupeLatestScan(ctx context.Context, side sides.Side) (dedupe.ScanResult, error) {
	return e.dedupe.LatestScan(ctx, side)
}

// DedupeGetScan returns a previously persisted scan by ID.
func (e *Engine) DedupeGetScan(ctx context.Context, scanID string) (dedupe.ScanResult, error) {
	return e.dedupe.GetScan(ctx, scanID)
}

// DedupeResults returns the duplicate groups for a persisted scan.
func (e *Engine) DedupeResults(ctx context.Context, scanID string) ([]dedupe.Group, error) {
	result, err := e.dedupe.GetScan(ctx, scanID)
	if err != nil {
		return nil, err
	}

	return result.Groups, nil
}

// DedupeDeleteScan removes a persisted scan result.
func (e *Engine) DedupeDeleteScan(ctx context.Context, scanID string) error {
	return e.dedupe.DeleteScan(ctx, scanID)
}

// DedupeExecute enqueues policy-bypassing deletes for the operator's chosen
// selections within scanID's groups.
func (e *Engine) DedupeExecute(ctx context.Context, scanID string, selections []dedupe.Selection) (dedupe.Summary, error) {
	result, err := e.dedupe.GetScan(ctx, scanID)
	if err != nil {
		return dedupe.Summary{}, err
	}

	return e.dedupe.ExecuteDeletion(ctx, e.rootFor(result.Side), scanID, selections)
}
