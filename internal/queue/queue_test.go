package queue

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/localmodels/modellake/internal/pathmodel"
	"github.com/localmodels/modellake/internal/sides"
)

func openTestQueue(t *testing.T, opts ...Option) *Queue {
	t.Helper()

	q, err := Open(context.Background(), ":memory:", nil, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { q.Close() })

	return q
}

func deletePayload(t *testing.T, relpath string) Payload {
	t.Helper()

	rp, err := pathmodel.New(relpath)
	require.NoError(t, err)

	return Payload{Side: sides.Local, RelPath: rp}
}

func TestEnqueueAndClaimNextFIFO(t *testing.T) {
	q := openTestQueue(t)
	ctx := context.Background()

	first, err := q.Enqueue(ctx, TypeDelete, deletePayload(t, "a.bin"))
	require.NoError(t, err)
	_, err = q.Enqueue(ctx, TypeDelete, deletePayload(t, "b.bin"))
	require.NoError(t, err)

	claimed, taskCtx, ok, err := q.ClaimNext(ctx, ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.NotNil(t, taskCtx)
	assert.Equal(t, first.ID, claimed.ID)
	assert.Equal(t, StatusRunning, claimed.Status)
}

func TestClaimNextRespectsConcurrencyLimit(t *testing.T) {
	q := openTestQueue(t, WithConcurrency(1))
	ctx := context.Background()

	_, err := q.Enqueue(ctx, TypeDelete, deletePayload(t, "a.bin"))
	require.NoError(t, err)
	_, err = q.Enqueue(ctx, TypeDelete, deletePayload(t, "b.bin"))
	require.NoError(t, err)

	_, _, ok, err := q.ClaimNext(ctx, ctx)
	require.NoError(t, err)
	require.True(t, ok)

	_, _, ok, err = q.ClaimNext(ctx, ctx)
	require.NoError(t, err)
	assert.False(t, ok, "concurrency limit of 1 must block a second claim")
}

func TestClaimNextSkipsSameKeyMutualExclusion(t *testing.T) {
	q := openTestQueue(t, WithConcurrency(2))
	ctx := context.Background()

	rp, err := pathmodel.New("x.bin")
	require.NoError(t, err)

	_, err = q.Enqueue(ctx, TypeDelete, Payload{Side: sides.Local, RelPath: rp})
	require.NoError(t, err)
	// A copy targeting the same (dst_side, relpath) key is mutually exclusive
	// with the pending delete above once the delete is running.
	_, err = q.Enqueue(ctx, TypeCopy, Payload{
		SrcSide: sides.Lake, SrcRelPath: rp, DstSide: sides.Local, DstRelPath: rp,
	})
	require.NoError(t, err)

	first, _, ok, err := q.ClaimNext(ctx, ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, TypeDelete, first.Type)

	// The copy is blocked: it shares the (local, x.bin) key with the running delete.
	_, _, ok, err = q.ClaimNext(ctx, ctx)
	require.NoError(t, err)
	assert.False(t, ok, "copy with the same key as a running delete must not be claimable")
}

func TestClaimNextPausedReturnsNotOK(t *testing.T) {
	q := openTestQueue(t)
	ctx := context.Background()

	_, err := q.Enqueue(ctx, TypeDelete, deletePayload(t, "a.bin"))
	require.NoError(t, err)
	require.NoError(t, q.Pause(ctx))

	_, _, ok, err := q.ClaimNext(ctx, ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, q.Resume(ctx))

	_, _, ok, err = q.ClaimNext(ctx, ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}

// TestFailTransientReenqueuesWithBackoff grounds spec §4.6 step 8: a
// transient failure with retries remaining goes back to pending, but is not
// claimable again until its computed backoff has elapsed.
func TestFailTransientReenqueuesWithBackoff(t *testing.T) {
	now := time.UnixMilli(1_700_000_000_000)
	q := openTestQueue(t, WithClock(func() time.Time { return now }), WithRetryCount(3))
	ctx := context.Background()

	task, err := q.Enqueue(ctx, TypeDelete, deletePayload(t, "a.bin"))
	require.NoError(t, err)

	claimed, _, ok, err := q.ClaimNext(ctx, ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, task.ID, claimed.ID)

	require.NoError(t, q.Fail(ctx, claimed.ID, errors.New("transient io"), true))

	reloaded, err := q.Get(ctx, claimed.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, reloaded.Status)
	assert.Equal(t, 1, reloaded.RetryCount)
	assert.True(t, reloaded.NextAttemptAt.After(now), "retry must not be immediately claimable")

	// Still "now": the backoff has not elapsed, so the retried task must not
	// be claimable.
	_, _, ok, err = q.ClaimNext(ctx, ctx)
	require.NoError(t, err)
	assert.False(t, ok, "retried task must not be claimable before next_attempt_at")

	// Advance the clock past the computed backoff.
	now = reloaded.NextAttemptAt.Add(time.Millisecond)

	claimedAgain, _, ok, err := q.ClaimNext(ctx, ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, claimed.ID, claimedAgain.ID)
}

// TestFailExhaustedRetriesTerminatesFailed grounds §4.6 step 8's other half:
// once QUEUE_RETRY_COUNT is exhausted, the task terminates as failed instead
// of retrying again.
func TestFailExhaustedRetriesTerminatesFailed(t *testing.T) {
	now := time.UnixMilli(1_700_000_000_000)
	q := openTestQueue(t, WithClock(func() time.Time { return now }), WithRetryCount(1))
	ctx := context.Background()

	task, err := q.Enqueue(ctx, TypeDelete, deletePayload(t, "a.bin"))
	require.NoError(t, err)

	claimed, _, ok, err := q.ClaimNext(ctx, ctx)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, q.Fail(ctx, claimed.ID, errors.New("transient io"), true))

	// Step past the retry's backoff so it is claimable again.
	now = now.Add(backoffCap)

	reclaimed, _, ok, err := q.ClaimNext(ctx, ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, task.ID, reclaimed.ID)

	require.NoError(t, q.Fail(ctx, reclaimed.ID, errors.New("transient io again"), true))

	final, err := q.Get(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, final.Status)
	assert.Equal(t, "transient io again", final.Error)
}

// TestFailFatalTerminatesImmediately grounds §7: a non-transient error fails
// the task on the first attempt regardless of retries remaining.
func TestFailFatalTerminatesImmediately(t *testing.T) {
	q := openTestQueue(t, WithRetryCount(3))
	ctx := context.Background()

	task, err := q.Enqueue(ctx, TypeDelete, deletePayload(t, "a.bin"))
	require.NoError(t, err)

	claimed, _, ok, err := q.ClaimNext(ctx, ctx)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, q.Fail(ctx, claimed.ID, errors.New("not found"), false))

	final, err := q.Get(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, final.Status)
	assert.Equal(t, 0, final.RetryCount)
}

// TestCancelPendingMarksCancelledDirectly grounds cancel of a task that has
// not yet started running.
func TestCancelPendingMarksCancelledDirectly(t *testing.T) {
	q := openTestQueue(t)
	ctx := context.Background()

	task, err := q.Enqueue(ctx, TypeDelete, deletePayload(t, "a.bin"))
	require.NoError(t, err)

	require.NoError(t, q.Cancel(ctx, task.ID))

	reloaded, err := q.Get(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, reloaded.Status)
}

// TestCancelRunningSignalsContextWithoutMarkingTerminal grounds §6's
// cancel-mid-copy contract (S6): Cancel signals the task's derived context
// but leaves the terminal transition to the executor's own cleanup path via
// MarkCancelled.
func TestCancelRunningSignalsContextWithoutMarkingTerminal(t *testing.T) {
	q := openTestQueue(t)
	ctx := context.Background()

	task, err := q.Enqueue(ctx, TypeDelete, deletePayload(t, "a.bin"))
	require.NoError(t, err)

	claimed, taskCtx, ok, err := q.ClaimNext(ctx, ctx)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, q.Cancel(ctx, claimed.ID))

	select {
	case <-taskCtx.Done():
	case <-time.After(time.Second):
		t.Fatal("cancelling a running task must cancel its derived context")
	}

	stillRunning, err := q.Get(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusRunning, stillRunning.Status, "Cancel leaves the terminal write to MarkCancelled")

	require.NoError(t, q.MarkCancelled(ctx, claimed.ID))

	final, err := q.Get(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, final.Status)
}

func TestCancelTerminalTaskIsIdempotent(t *testing.T) {
	q := openTestQueue(t)
	ctx := context.Background()

	task, err := q.Enqueue(ctx, TypeDelete, deletePayload(t, "a.bin"))
	require.NoError(t, err)
	require.NoError(t, q.Cancel(ctx, task.ID))

	assert.NoError(t, q.Cancel(ctx, task.ID))
}

func TestCancelAllCancelsEveryNonTerminalTask(t *testing.T) {
	q := openTestQueue(t, WithConcurrency(2))
	ctx := context.Background()

	_, err := q.Enqueue(ctx, TypeDelete, deletePayload(t, "a.bin"))
	require.NoError(t, err)
	pending, err := q.Enqueue(ctx, TypeDelete, deletePayload(t, "b.bin"))
	require.NoError(t, err)

	running, _, ok, err := q.ClaimNext(ctx, ctx)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, q.CancelAll(ctx))

	reloadedPending, err := q.Get(ctx, pending.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, reloadedPending.Status)

	// The running task's context is signalled but its terminal state is left
	// to the executor, same as a single Cancel call.
	reloadedRunning, err := q.Get(ctx, running.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusRunning, reloadedRunning.Status)
}

func TestBackoffDoublesAndCaps(t *testing.T) {
	assert.Equal(t, backoffBase, backoff(1))
	assert.Equal(t, 2*backoffBase, backoff(2))
	assert.Equal(t, 4*backoffBase, backoff(3))
	assert.Equal(t, backoffCap, backoff(20), "backoff must cap rather than overflow")
}
