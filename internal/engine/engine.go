// Package engine wires the library's components (C1-C11, plus the bundle
// and source-URL stores) into a single Go API: the same handle the CLI's
// one-shot subcommands and the HTTP/WebSocket adapter both call into, per
// the design note that the queue is "an explicit service handle, not a
// process global."
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/localmodels/modellake/internal/bundle"
	"github.com/localmodels/modellake/internal/config"
	"github.com/localmodels/modellake/internal/dedupe"
	"github.com/localmodels/modellake/internal/eventbus"
	"github.com/localmodels/modellake/internal/executor"
	"github.com/localmodels/modellake/internal/hashcache"
	"github.com/localmodels/modellake/internal/hashpool"
	"github.com/localmodels/modellake/internal/index"
	"github.com/localmodels/modellake/internal/queue"
	"github.com/localmodels/modellake/internal/sides"
	"github.com/localmodels/modellake/internal/sourceurl"
)

const (
	hashCacheFileName = "hashcache.db"
	queueFileName     = "queue.db"
	dedupeFileName    = "dedupe.db"
	bundleFileName    = "bundles.db"
)

// Engine owns every long-lived collaborator and exposes the operations the
// CLI and adapter call. One Engine serves one (local_root, lake_root) pair
// for the lifetime of a daemon process.
type Engine struct {
	holder *config.Holder
	sides  sides.Pair
	logger *slog.Logger

	bus *eventbus.Bus

	indexes map[sides.Side]*index.Store
	cache   *hashcache.Store
	hashes  *hashpool.Pool

	queue   *queue.Queue
	exec    *executor.Executor
	dedupe  *dedupe.Engine
	bundles *bundle.Store
	sources *sourceurl.Store

	cancelWorkers context.CancelFunc
}

// Open constructs an Engine from a resolved configuration: it opens the
// hash cache, queue, and dedupe databases under cfg.AppDataDir, builds both
// sides' in-memory indexes, and starts cfg.QueueConcurrency executor
// goroutines. Callers must call Close when done.
func Open(ctx context.Context, holder *config.Holder, logger *slog.Logger) (*Engine, error) {
	if logger == nil {
		logger = slog.Default()
	}

	cfg := holder.Config()

	sp := sides.Pair{
		Local: sides.NewConfig(cfg.LocalRoot, cfg.LocalAllowDeleteFromSync),
		Lake:  sides.NewConfig(cfg.LakeRoot, cfg.LakeAllowDeleteFromSync),
	}

	bus := eventbus.New(logger)

	cache, err := hashcache.Open(ctx, filepath.Join(cfg.AppDataDir, hashCacheFileName), logger)
	if err != nil {
		return nil, fmt.Errorf("engine: opening hash cache: %w", err)
	}

	hashes := hashpool.New(cache, bus, cfg.HashWorkers, logger)

	q, err := queue.Open(ctx, filepath.Join(cfg.AppDataDir, queueFileName), logger,
		queue.WithConcurrency(cfg.QueueConcurrency), queue.WithRetryCount(cfg.QueueRetryCount))
	if err != nil {
		cache.Close()
		return nil, fmt.Errorf("engine: opening queue: %w", err)
	}

	dd, err := dedupe.Open(ctx, filepath.Join(cfg.AppDataDir, dedupeFileName), hashes, cache, q, bus, logger)
	if err != nil {
		q.Close()
		cache.Close()
		return nil, fmt.Errorf("engine: opening dedupe engine: %w", err)
	}

	bd, err := bundle.Open(ctx, filepath.Join(cfg.AppDataDir, bundleFileName), logger)
	if err != nil {
		dd.Close()
		q.Close()
		cache.Close()
		return nil, fmt.Errorf("engine: opening bundle store: %w", err)
	}

	indexes := map[sides.Side]*index.Store{
		sides.Local: index.NewStore(),
		sides.Lake:  index.NewStore(),
	}

	sources := sourceurl.New(cfg.LakeRoot)

	exec := executor.New(executor.Config{
		Queue:   q,
		Sides:   sp,
		Indexes: indexes,
		Cache:   cache,
		Hashes:  hashes,
		Dedupe:  dd,
		Sources: sources,
		Bus:     bus,
		Logger:  logger,
	})

	e := &Engine{
		holder:  holder,
		sides:   sp,
		logger:  logger,
		bus:     bus,
		indexes: indexes,
		cache:   cache,
		hashes:  hashes,
		queue:   q,
		exec:    exec,
		dedupe:  dd,
		bundles: bd,
		sources: sources,
	}

	e.startWorkers(cfg.QueueConcurrency)

	return e, nil
}

// startWorkers launches n executor goroutines sharing the same Queue, per
// the contract that concurrency above 1 is multiple Run loops against one
// queue arbitrating its own exclusion rules.
func (e *Engine) startWorkers(n int) {
	ctx, cancel := context.WithCancel(context.Background())
	e.cancelWorkers = cancel

	if n < 1 {
		n = 1
	}

	for range n {
		go e.exec.Run(ctx)
	}
}

// Close stops the executor workers and releases every database connection.
func (e *Engine) Close() error {
	if e.cancelWorkers != nil {
		e.cancelWorkers()
	}

	var errs []error

	if err := e.bundles.Close(); err != nil {
		errs = append(errs, err)
	}

	if err := e.dedupe.Close(); err != nil {
		errs = append(errs, err)
	}

	if err := e.queue.Close(); err != nil {
		errs = append(errs, err)
	}

	if err := e.cache.Close(); err != nil {
		errs = append(errs, err)
	}

	if len(errs) == 0 {
		return nil
	}

	return fmt.Errorf("engine: closing: %v", errs)
}

// Config returns the engine's current resolved configuration.
func (e *Engine) Config() *config.Config {
	return e.holder.Config()
}

func (e *Engine) indexFor(side sides.Side) *index.Store {
	return e.indexes[side]
}

func (e *Engine) rootFor(side sides.Side) string {
	return e.sides.Get(side).Root
}

// Events returns a subscription to the engine's event bus, used by the
// WebSocket adapter to relay progress and lifecycle events to clients.
func (e *Engine) Events(topics ...eventbus.Topic) *eventbus.Subscription {
	return e.bus.Subscribe(topics...)
}

// Unsubscribe releases a subscription obtained from Events.
func (e *Engine) Unsubscribe(sub *eventbus.Subscription) {
	e.bus.Unsubscribe(sub)
}
