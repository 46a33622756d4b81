package executor

import (
	"context"
	"fmt"
	"os"
	"sort"

	"github.com/localmodels/modellake/internal/apperr"
	"github.com/localmodels/modellake/internal/eventbus"
	"github.com/localmodels/modellake/internal/hashpool"
	"github.com/localmodels/modellake/internal/pathmodel"
	"github.com/localmodels/modellake/internal/queue"
	"github.com/localmodels/modellake/internal/sides"
)

// badHashSuffix is appended to a file's on-disk name when verify finds its
// recomputed digest contradicts the previously cached one (§7). The file is
// preserved for inspection rather than deleted.
const badHashSuffix = ".badhash"

// runVerify forces re-hashing of the requested scope, upgrading any
// probable_same entries the diff engine will classify once the hash lands.
// A single-file verify whose recomputed digest contradicts what the hash
// cache held for the same (size, mtime) coordinates is a HashMismatch
// (fatal) per §7 — the cache row is invalidated either way. A folder-scoped
// verify hashes its files through the bounded pool (HASH_WORKERS) rather
// than one at a time.
func (e *Executor) runVerify(ctx context.Context, t queue.Task) error {
	p := t.Payload

	if p.RelPath != "" {
		return e.verifyOne(ctx, p.Side, p.RelPath)
	}

	store := e.indexFor(p.Side)
	if store == nil {
		return fmt.Errorf("%w: unknown side for verify", apperr.ErrNotFound)
	}

	snapshot := store.Snapshot()

	var relpaths []pathmodel.RelPath

	for rp := range snapshot {
		if rp.IsUnder(p.Folder) {
			relpaths = append(relpaths, rp)
		}
	}

	sort.Slice(relpaths, func(i, j int) bool { return relpaths[i] < relpaths[j] })

	if ctx.Err() != nil {
		return ctx.Err()
	}

	results := e.verifyMany(ctx, p.Side, relpaths)

	total := len(results)

	for i, res := range results {
		if res.err != nil {
			return res.err
		}

		e.publish(eventbus.TopicVerifyProgress, VerifyProgress{Side: p.Side, Folder: p.Folder, Current: i + 1, Total: total})
	}

	return nil
}

// verifyResult is the outcome of re-hashing and mismatch-checking one file.
type verifyResult struct {
	relpath pathmodel.RelPath
	err     error
}

// verifyMany re-hashes every relpath concurrently through the bounded hash
// pool and resolves each against its cached digest, in relpaths order.
// Files that fail to stat up front never reach the pool; their classified
// stat error is reported in place.
func (e *Executor) verifyMany(ctx context.Context, side sides.Side, relpaths []pathmodel.RelPath) []verifyResult {
	root := e.rootFor(side)
	store := e.indexFor(side)

	results := make([]verifyResult, len(relpaths))
	oldHashes := make([]string, len(relpaths))
	reqs := make([]hashpool.Request, 0, len(relpaths))
	reqIdx := make([]int, 0, len(relpaths))

	for i, rp := range relpaths {
		results[i] = verifyResult{relpath: rp}

		abs, err := pathmodel.Join(root, rp)
		if err != nil {
			results[i].err = err
			continue
		}

		if _, err := os.Stat(abs); err != nil {
			results[i].err = classifyStatError(err)
			continue
		}

		oldHashes[i] = e.cachedHash(ctx, side, rp)
		reqIdx = append(reqIdx, i)
		reqs = append(reqs, hashpool.Request{Side: side, Root: root, RelPath: rp, Store: store, Force: true})
	}

	newHashes, errs := e.hashes.HashMany(ctx, reqs)

	for j, i := range reqIdx {
		if errs[j] != nil {
			results[i].err = errs[j]
			continue
		}

		results[i].err = e.resolveMismatch(root, side, relpaths[i], oldHashes[i], newHashes[j])
	}

	return results
}

// cachedHash looks up the hash cache's current entry for relpath, so a
// post-hash re-verify can be compared against it. A lookup miss or error
// yields "", meaning no mismatch is possible (nothing to contradict).
func (e *Executor) cachedHash(ctx context.Context, side sides.Side, relpath pathmodel.RelPath) string {
	if e.cache == nil {
		return ""
	}

	abs, err := pathmodel.Join(e.rootFor(side), relpath)
	if err != nil {
		return ""
	}

	info, err := os.Stat(abs)
	if err != nil {
		return ""
	}

	hash, ok, err := e.cache.Get(ctx, side, relpath, info.Size(), info.ModTime().UTC())
	if err != nil || !ok {
		return ""
	}

	return hash
}

// verifyOne forces a rehash of one file and detects a mismatch against the
// previously cached digest for the same on-disk coordinates.
func (e *Executor) verifyOne(ctx context.Context, side sides.Side, relpath pathmodel.RelPath) error {
	root := e.rootFor(side)
	store := e.indexFor(side)

	abs, err := pathmodel.Join(root, relpath)
	if err != nil {
		return err
	}

	if _, err := os.Stat(abs); err != nil {
		return classifyStatError(err)
	}

	oldHash := e.cachedHash(ctx, side, relpath)

	newHash, err := e.hashes.HashFile(ctx, hashpool.Request{
		Side: side, Root: root, RelPath: relpath, Store: store, Force: true,
	})
	if err != nil {
		return err
	}

	return e.resolveMismatch(root, side, relpath, oldHash, newHash)
}

// resolveMismatch compares a freshly recomputed digest against the cache's
// prior one, and on mismatch invalidates the cache, drops the index entry,
// and renames the file to <relpath>.badhash (§7) instead of deleting it.
func (e *Executor) resolveMismatch(root string, side sides.Side, relpath pathmodel.RelPath, oldHash, newHash string) error {
	if oldHash == "" || oldHash == newHash {
		return nil
	}

	ctx := context.Background()

	if e.cache != nil {
		_ = e.cache.Invalidate(ctx, side, relpath)
	}

	if store := e.indexFor(side); store != nil {
		store.Delete(relpath)
	}

	if abs, err := pathmodel.Join(root, relpath); err == nil {
		if renameErr := os.Rename(abs, abs+badHashSuffix); renameErr != nil && !os.IsNotExist(renameErr) {
			return fmt.Errorf("%w: renaming %s after hash mismatch: %v", apperr.ErrTransientIO, relpath, renameErr)
		}
	}

	return fmt.Errorf("%w: %s (cached %s, recomputed %s)", apperr.ErrHashMismatch, relpath, oldHash, newHash)
}
