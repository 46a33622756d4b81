// Package executor implements the single-worker claim-and-dispatch loop
// (C8): it claims the next runnable task from the queue and dispatches it
// to a type-specific handler, streaming progress through the event bus and
// reporting the outcome back to the queue for state-transition and retry
// bookkeeping.
package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/localmodels/modellake/internal/apperr"
	"github.com/localmodels/modellake/internal/dedupe"
	"github.com/localmodels/modellake/internal/eventbus"
	"github.com/localmodels/modellake/internal/hashcache"
	"github.com/localmodels/modellake/internal/hashpool"
	"github.com/localmodels/modellake/internal/index"
	"github.com/localmodels/modellake/internal/queue"
	"github.com/localmodels/modellake/internal/sides"
	"github.com/localmodels/modellake/internal/sourceurl"
)

// idlePoll bounds how long Run waits between checking Queue.Notify() even if
// no notification arrives, as a defensive fallback (e.g. a NextAttemptAt
// backoff elapsing without a fresh notify).
const idlePoll = 500 * time.Millisecond

// Executor is the engine's single transfer/delete/verify/hash worker. One
// instance drives the whole queue; concurrency above 1 is expressed as
// multiple goroutines running the same claim loop against the same Queue,
// which arbitrates concurrency and same-key exclusion itself.
type Executor struct {
	queue   *queue.Queue
	sides   sides.Pair
	indexes map[sides.Side]*index.Store
	cache   *hashcache.Store
	hashes  *hashpool.Pool
	dedupe  *dedupe.Engine
	sources *sourceurl.Store
	bus     *eventbus.Bus
	logger  *slog.Logger
}

// Config bundles the collaborators an Executor dispatches into.
type Config struct {
	Queue   *queue.Queue
	Sides   sides.Pair
	Indexes map[sides.Side]*index.Store
	Cache   *hashcache.Store
	Hashes  *hashpool.Pool
	Dedupe  *dedupe.Engine
	// Sources is optional: when set, a completed dedupe-initiated or
	// sync delete also drops the file's source-URL sidecar entry keyed by
	// relpath, since the file it documented no longer exists on disk.
	Sources *sourceurl.Store
	Bus     *eventbus.Bus
	Logger  *slog.Logger
}

// New constructs an Executor from cfg.
func New(cfg Config) *Executor {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Executor{
		queue:   cfg.Queue,
		sides:   cfg.Sides,
		indexes: cfg.Indexes,
		cache:   cfg.Cache,
		hashes:  cfg.Hashes,
		dedupe:  cfg.Dedupe,
		sources: cfg.Sources,
		bus:     cfg.Bus,
		logger:  logger,
	}
}

// Run claims and dispatches tasks until ctx is cancelled. It is meant to be
// run in its own goroutine; Config.Queue.Concurrency() callers may start
// that many goroutines calling Run against the same Executor.
func (e *Executor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		t, taskCtx, ok, err := e.queue.ClaimNext(ctx, ctx)
		if err != nil {
			e.logger.Error("executor: claim failed", slog.Any("error", err))
			e.wait(ctx)

			continue
		}

		if !ok {
			e.wait(ctx)
			continue
		}

		e.dispatch(taskCtx, t)
	}
}

// wait blocks until the queue signals a potentially-runnable task, the idle
// poll fallback elapses, or ctx is cancelled.
func (e *Executor) wait(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-e.queue.Notify():
	case <-time.After(idlePoll):
	}
}

// dispatch runs one task to completion (or failure/cancellation) and
// reports the result back to the queue.
func (e *Executor) dispatch(ctx context.Context, t queue.Task) {
	e.publish(eventbus.TopicTaskStarted, TaskStarted{TaskID: t.ID, Type: t.Type})

	e.logger.Info("executor: task started", slog.String("task_id", t.ID), slog.String("type", string(t.Type)))

	var (
		result any
		runErr error
	)

	switch t.Type {
	case queue.TypeCopy:
		runErr = e.runCopy(ctx, t)
	case queue.TypeDelete:
		runErr = e.runDelete(ctx, t)
	case queue.TypeVerify:
		runErr = e.runVerify(ctx, t)
	case queue.TypeHashFile:
		runErr = e.runHashFile(ctx, t)
	case queue.TypeDedupeScan:
		result, runErr = e.runDedupeScan(ctx, t)
	default:
		runErr = fmt.Errorf("executor: unknown task type %q", t.Type)
	}

	e.finish(ctx, t, result, runErr)
}

func (e *Executor) finish(ctx context.Context, t queue.Task, result any, runErr error) {
	switch {
	case runErr == nil:
		if err := e.queue.Complete(ctx, t.ID); err != nil {
			e.logger.Error("executor: marking complete failed", slog.String("task_id", t.ID), slog.Any("error", err))
		}

		e.publish(eventbus.TopicTaskComplete, TaskComplete{TaskID: t.ID, Type: t.Type, Status: queue.StatusCompleted, Result: result})
		e.logger.Info("executor: task completed", slog.String("task_id", t.ID))

	case errors.Is(runErr, context.Canceled):
		if err := e.queue.MarkCancelled(context.Background(), t.ID); err != nil {
			e.logger.Error("executor: marking cancelled failed", slog.String("task_id", t.ID), slog.Any("error", err))
		}

		e.publish(eventbus.TopicTaskComplete, TaskComplete{TaskID: t.ID, Type: t.Type, Status: queue.StatusCancelled})
		e.logger.Info("executor: task cancelled", slog.String("task_id", t.ID))

	default:
		transient := apperr.Transient(runErr)

		if err := e.queue.Fail(context.Background(), t.ID, runErr, transient); err != nil {
			e.logger.Error("executor: marking failed failed", slog.String("task_id", t.ID), slog.Any("error", err))
		}

		status := queue.StatusFailed
		if transient && t.RetryCount < e.queue.RetryLimit() {
			status = queue.StatusPending
		}

		e.publish(eventbus.TopicTaskComplete, TaskComplete{TaskID: t.ID, Type: t.Type, Status: status, Error: runErr.Error()})
		e.logger.Warn("executor: task failed",
			slog.String("task_id", t.ID), slog.Bool("transient", transient), slog.Any("error", runErr))
	}
}

func (e *Executor) publish(topic eventbus.Topic, data any) {
	if e.bus == nil {
		return
	}

	e.bus.Publish(eventbus.Event{Topic: topic, Data: data})
}

func (e *Executor) indexFor(side sides.Side) *index.Store {
	return e.indexes[side]
}

func (e *Executor) rootFor(side sides.Side) string {
	return e.sides.Get(side).Root
}
