// Package hashpool implements the hash worker pool (C5): given a
// {side, relpath} request it re-stats the file, serves a cached hash when
// the stat still matches, otherwise streams the file through BLAKE3,
// publishing hash_progress events, writing the result to the hash cache,
// and updating the in-memory index entry. A file mutated during hashing
// fails with ErrHashRaced so the caller can retry.
package hashpool

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"golang.org/x/sync/errgroup"

	"github.com/localmodels/modellake/internal/eventbus"
	"github.com/localmodels/modellake/internal/hashcache"
	"github.com/localmodels/modellake/internal/hashutil"
	"github.com/localmodels/modellake/internal/index"
	"github.com/localmodels/modellake/internal/pathmodel"
	"github.com/localmodels/modellake/internal/sides"
)

// ErrHashRaced is returned when the file's stat changed between the start
// and end of hashing — retryable per the spec's §7 error taxonomy.
var ErrHashRaced = errors.New("hashpool: file changed while hashing (raced)")

// HashProgress is published at ≥250ms intervals while a file is hashing.
type HashProgress struct {
	Side        sides.Side
	RelPath     pathmodel.RelPath
	BytesHashed int64
	TotalBytes  int64
}

// Pool hashes files for one side pair, bounded to a configured worker count.
type Pool struct {
	cache   *hashcache.Store
	bus     *eventbus.Bus
	workers int
	logger  *slog.Logger
}

// New creates a Pool. workers bounds the concurrent hash operations of one
// HashMany call (HASH_WORKERS in configuration); HashMany calls that run at
// the same time are each bounded separately, not together. A single
// HashFile call always runs on the caller's goroutine, outside that bound.
func New(cache *hashcache.Store, bus *eventbus.Bus, workers int, logger *slog.Logger) *Pool {
	if workers < 1 {
		workers = 1
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Pool{cache: cache, bus: bus, workers: workers, logger: logger}
}

// Request identifies a single file to hash (or verify, by passing force).
type Request struct {
	Side    sides.Side
	Root    string
	RelPath pathmodel.RelPath
	Store   *index.Store
	// Force re-hashes even if the cache already has a matching entry,
	// used by verify tasks.
	Force bool
}

// HashFile hashes a single file per the §4.5 protocol: re-stat, cache
// lookup, stream+hash, race check, cache write, index update.
func (p *Pool) HashFile(ctx context.Context, req Request) (string, error) {
	abs, err := pathmodel.Join(req.Root, req.RelPath)
	if err != nil {
		return "", err
	}

	before, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("hashpool: stat %q: %w", abs, err)
	}

	if !req.Force {
		if hash, ok, err := p.cache.Get(ctx, req.Side, req.RelPath, before.Size(), before.ModTime().UTC()); err != nil {
			return "", err
		} else if ok {
			p.updateIndex(req, hash, before)
			return hash, nil
		}
	}

	f, err := os.Open(abs)
	if err != nil {
		return "", fmt.Errorf("hashpool: open %q: %w", abs, err)
	}
	defer f.Close()

	digest, err := hashutil.Stream(f, before.Size(), func(hashed, total int64) {
		if p.bus != nil {
			p.bus.Publish(eventbus.Event{Topic: eventbus.TopicHashProgress, Data: HashProgress{
				Side: req.Side, RelPath: req.RelPath, BytesHashed: hashed, TotalBytes: total,
			}})
		}
	})
	if err != nil {
		return "", fmt.Errorf("hashpool: hashing %q: %w", abs, err)
	}

	after, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("hashpool: re-stat %q: %w", abs, err)
	}

	if after.Size() != before.Size() || !after.ModTime().Equal(before.ModTime()) {
		return "", fmt.Errorf("%w: %s", ErrHashRaced, req.RelPath)
	}

	hash := digest.Hex()

	if err := p.cache.Put(ctx, req.Side, req.RelPath, before.Size(), before.ModTime().UTC(), hash); err != nil {
		return "", err
	}

	p.updateIndex(req, hash, before)

	return hash, nil
}

func (p *Pool) updateIndex(req Request, hash string, info os.FileInfo) {
	if req.Store == nil {
		return
	}

	req.Store.Put(index.Entry{
		RelPath: req.RelPath,
		Size:    info.Size(),
		ModTime: info.ModTime().UTC(),
		Hash:    hash,
	})
}

// HashMany hashes every request concurrently, bounded by the pool's worker
// count, via a bounded errgroup fan-out. Results preserve input order;
// per-request errors are returned alongside a partial result so callers can
// report per-file failures without aborting the whole batch.
func (p *Pool) HashMany(ctx context.Context, reqs []Request) ([]string, []error) {
	hashes := make([]string, len(reqs))
	errs := make([]error, len(reqs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)

	for i, req := range reqs {
		i, req := i, req

		g.Go(func() error {
			hash, err := p.HashFile(gctx, req)
			hashes[i] = hash
			errs[i] = err

			return nil // per-item errors are reported, not fatal to the batch
		})
	}

	_ = g.Wait()

	return hashes, errs
}
