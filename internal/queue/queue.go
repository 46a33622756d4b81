package queue

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/localmodels/modellake/internal/pathmodel"
	"github.com/localmodels/modellake/internal/sides"
)

// pausedFlagKey is the queue_flags row holding the global pause state.
const pausedFlagKey = "paused"

// DefaultConcurrency matches the spec's QUEUE_CONCURRENCY default: one task
// runs at a time unless the operator raises it.
const DefaultConcurrency = 1

// DefaultRetryCount matches QUEUE_RETRY_COUNT's default.
const DefaultRetryCount = 3

// backoffBase is the exponential-backoff unit applied to transient retries:
// attempt N waits backoffBase * 2^(N-1), capped at backoffCap.
const (
	backoffBase = 2 * time.Second
	backoffCap  = 2 * time.Minute
)

// Clock is injectable so retry backoff and ordering are deterministic in
// tests, mirroring the teacher's failure-tracker nowFunc idiom.
type Clock func() time.Time

// Queue is the durable, strongly-ordered task spine (C7). It owns task state
// transitions, FIFO ordering, same-key copy/delete mutual exclusion,
// pause/resume, cancellation signaling, and retry bookkeeping. Execution
// itself belongs to internal/executor, which borrows the running task via
// ClaimNext and reports back through Complete/Fail/Cancel.
type Queue struct {
	store  *store
	logger *slog.Logger
	now    Clock

	mu          sync.Mutex
	running     map[string]context.CancelFunc // taskID -> cancel handle
	idGen       func() string
	wake        chan struct{}
	concurrency int
	retryCount  int
}

// Option configures a Queue at construction time.
type Option func(*Queue)

// WithConcurrency overrides DefaultConcurrency (QUEUE_CONCURRENCY).
func WithConcurrency(n int) Option {
	return func(q *Queue) {
		if n > 0 {
			q.concurrency = n
		}
	}
}

// WithRetryCount overrides DefaultRetryCount (QUEUE_RETRY_COUNT).
func WithRetryCount(n int) Option {
	return func(q *Queue) {
		if n >= 0 {
			q.retryCount = n
		}
	}
}

// WithClock overrides the queue's time source, for deterministic tests.
func WithClock(c Clock) Option {
	return func(q *Queue) { q.now = c }
}

// Open opens the queue's SQLite database at dbPath and returns a ready Queue.
func Open(ctx context.Context, dbPath string, logger *slog.Logger, opts ...Option) (*Queue, error) {
	if logger == nil {
		logger = slog.Default()
	}

	st, err := openStore(ctx, dbPath, logger)
	if err != nil {
		return nil, err
	}

	q := &Queue{
		store:       st,
		logger:      logger,
		now:         time.Now,
		running:     make(map[string]context.CancelFunc),
		idGen:       func() string { return uuid.Must(uuid.NewV7()).String() },
		wake:        make(chan struct{}, 1),
		concurrency: DefaultConcurrency,
		retryCount:  DefaultRetryCount,
	}

	for _, opt := range opts {
		opt(q)
	}

	return q, nil
}

// Close releases the underlying database connection.
func (q *Queue) Close() error { return q.store.close() }

// Enqueue appends a new task in status pending and returns it. created_at is
// the queue's clock so FIFO ordering is deterministic under test.
func (q *Queue) Enqueue(ctx context.Context, typ Type, payload Payload) (Task, error) {
	t := Task{
		ID:        q.idGen(),
		Type:      typ,
		Status:    StatusPending,
		CreatedAt: q.now(),
		Payload:   payload,
	}

	if err := q.store.insert(ctx, t); err != nil {
		return Task{}, err
	}

	q.notify()

	return t, nil
}

// Notify returns a channel that receives a value whenever a task becomes
// potentially runnable (enqueued, resumed, or re-enqueued after a transient
// failure). The executor selects on it instead of busy-polling for the
// "next runnable task" condition in §5.
func (q *Queue) Notify() <-chan struct{} { return q.wake }

func (q *Queue) notify() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// Get returns a single task by ID.
func (q *Queue) Get(ctx context.Context, id string) (Task, error) {
	return q.store.get(ctx, id)
}

// List returns every task, running first, then pending FIFO order, per
// spec §4.6 "Running task first in any listing."
func (q *Queue) List(ctx context.Context) ([]Task, error) {
	return q.store.listAll(ctx)
}

// Paused reports the queue-level pause flag. A paused queue finishes any
// currently running task but does not claim new ones.
func (q *Queue) Paused(ctx context.Context) (bool, error) {
	v, err := q.store.getFlag(ctx, pausedFlagKey)
	if err != nil {
		return false, err
	}

	return v == "true", nil
}

// Pause sets the queue-level pause flag.
func (q *Queue) Pause(ctx context.Context) error {
	return q.store.setFlag(ctx, pausedFlagKey, "true")
}

// Resume clears the queue-level pause flag.
func (q *Queue) Resume(ctx context.Context) error {
	if err := q.store.setFlag(ctx, pausedFlagKey, "false"); err != nil {
		return err
	}

	q.notify()

	return nil
}

// Concurrency returns the configured maximum number of simultaneously
// running tasks.
func (q *Queue) Concurrency() int { return q.concurrency }

// RetryLimit returns QUEUE_RETRY_COUNT.
func (q *Queue) RetryLimit() int { return q.retryCount }

// ClaimNext selects and marks running the oldest pending task that is both
// within the concurrency budget and not blocked by the same-key mutual
// exclusion rule (a copy targeting (dst_side,relpath) is mutually exclusive
// with a delete of that same key, and vice versa). It returns ok=false if
// the queue is paused, at its concurrency limit, or has no runnable task.
// The returned context is derived from parentCtx and is cancelled when a
// caller invokes Cancel(id); the executor's chunked I/O loops must observe
// it between chunks per the cooperative-cancellation contract in §4.6.
func (q *Queue) ClaimNext(ctx context.Context, parentCtx context.Context) (Task, context.Context, bool, error) {
	paused, err := q.Paused(ctx)
	if err != nil {
		return Task{}, nil, false, err
	}

	if paused {
		return Task{}, nil, false, nil
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.running) >= q.concurrency {
		return Task{}, nil, false, nil
	}

	running, err := q.store.listRunning(ctx)
	if err != nil {
		return Task{}, nil, false, err
	}

	busy := make(map[string]struct{}, len(running))
	for _, r := range running {
		if side, rp, ok := r.Payload.Key(r.Type); ok {
			busy[busyKey(side, rp)] = struct{}{}
		}
	}

	pending, err := q.store.listPendingOrdered(ctx, q.now())
	if err != nil {
		return Task{}, nil, false, err
	}

	for _, t := range pending {
		if side, rp, ok := t.Payload.Key(t.Type); ok {
			if _, blocked := busy[busyKey(side, rp)]; blocked {
				continue
			}
		}

		started := q.now()
		t.Status = StatusRunning
		t.StartedAt = &started

		if err := q.store.update(ctx, t); err != nil {
			return Task{}, nil, false, err
		}

		taskCtx, cancel := context.WithCancel(parentCtx)
		q.running[t.ID] = cancel

		return t, taskCtx, true, nil
	}

	return Task{}, nil, false, nil
}

func busyKey(side sides.Side, rp pathmodel.RelPath) string {
	return side.String() + "/" + rp.String()
}

// UpdateProgress persists bytes_transferred for a running task so listeners
// reconnecting after a crash see the last known progress. Callers also
// publish queue_progress events directly; this is the durable counterpart.
func (q *Queue) UpdateProgress(ctx context.Context, id string, bytesTransferred int64) error {
	t, err := q.store.get(ctx, id)
	if err != nil {
		return err
	}

	t.BytesTransferred = bytesTransferred

	return q.store.update(ctx, t)
}

// SetSizeBytes records the task's known total size once discovered (e.g.
// after a source stat), used by progress_pct computation.
func (q *Queue) SetSizeBytes(ctx context.Context, id string, size int64) error {
	return q.store.setSizeBytes(ctx, id, size)
}

// Complete transitions a running task to completed and releases its claim.
func (q *Queue) Complete(ctx context.Context, id string) error {
	return q.finish(ctx, id, StatusCompleted, "")
}

// Fail transitions a task per the §4.6/§7 retry rule: a transient error with
// retries remaining re-enqueues at pending (running→pending, retry_count++);
// a fatal error or exhausted retries terminates it as failed. Cancelled
// copy tasks never reach Fail — the executor records them through
// MarkCancelled, which per spec §9 does not count against QUEUE_RETRY_COUNT.
func (q *Queue) Fail(ctx context.Context, id string, taskErr error, transient bool) error {
	t, err := q.store.get(ctx, id)
	if err != nil {
		return err
	}

	q.releaseClaim(id)

	if transient && t.RetryCount < q.retryCount {
		t.RetryCount++
		t.Status = StatusPending
		t.StartedAt = nil
		t.Error = taskErr.Error()
		t.NextAttemptAt = q.now().Add(backoff(t.RetryCount))

		if err := q.store.update(ctx, t); err != nil {
			return err
		}

		q.notify()

		return nil
	}

	finished := q.now()
	t.Status = StatusFailed
	t.FinishedAt = &finished
	t.Error = taskErr.Error()

	return q.store.update(ctx, t)
}

// Cancel signals a running task's cancellation handle and leaves the
// running→cancelled write to the executor (via MarkCancelled), or, if the
// task is still pending, marks it cancelled directly.
// Re-cancelling an already-terminal task is idempotent and returns nil.
func (q *Queue) Cancel(ctx context.Context, id string) error {
	t, err := q.store.get(ctx, id)
	if err != nil {
		return err
	}

	switch t.Status {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return nil
	case StatusPending:
		finished := q.now()
		t.Status = StatusCancelled
		t.FinishedAt = &finished

		return q.store.update(ctx, t)
	case StatusRunning:
		q.mu.Lock()
		cancel, ok := q.running[id]
		q.mu.Unlock()

		if ok {
			cancel()
		}
		// The executor observes ctx.Done() at the next chunk boundary and
		// calls finish(StatusCancelled) itself once cleanup completes; we
		// do not mark it cancelled here to avoid racing the executor's own
		// terminal write.
		return nil
	default:
		return fmt.Errorf("queue: task %q has unknown status %q", id, t.Status)
	}
}

// CancelAll cancels every pending and running task.
func (q *Queue) CancelAll(ctx context.Context) error {
	all, err := q.store.listAll(ctx)
	if err != nil {
		return err
	}

	for _, t := range all {
		if t.Status == StatusPending || t.Status == StatusRunning {
			if err := q.Cancel(ctx, t.ID); err != nil {
				return err
			}
		}
	}

	return nil
}

// MarkCancelled is called by the executor once a cooperative cancellation
// has finished cleaning up, transitioning running→cancelled.
func (q *Queue) MarkCancelled(ctx context.Context, id string) error {
	return q.finish(ctx, id, StatusCancelled, "")
}

func (q *Queue) finish(ctx context.Context, id string, status Status, errMsg string) error {
	t, err := q.store.get(ctx, id)
	if err != nil {
		return err
	}

	q.releaseClaim(id)

	finished := q.now()
	t.Status = status
	t.FinishedAt = &finished
	t.Error = errMsg

	if err := q.store.update(ctx, t); err != nil {
		return err
	}

	q.notify()

	return nil
}

func (q *Queue) releaseClaim(id string) {
	q.mu.Lock()
	cancel, ok := q.running[id]
	delete(q.running, id)
	q.mu.Unlock()

	if ok {
		cancel()
	}
}

// backoff computes exponential backoff for the given retry attempt number
// (1-indexed), capped at backoffCap.
func backoff(attempt int) time.Duration {
	d := backoffBase

	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= backoffCap {
			return backoffCap
		}
	}

	return d
}
