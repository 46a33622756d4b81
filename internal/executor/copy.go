package executor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/localmodels/modellake/internal/apperr"
	"github.com/localmodels/modellake/internal/eventbus"
	"github.com/localmodels/modellake/internal/hashutil"
	"github.com/localmodels/modellake/internal/index"
	"github.com/localmodels/modellake/internal/pathmodel"
	"github.com/localmodels/modellake/internal/queue"
)

// partSuffix names the staging file a copy streams into before the atomic
// rename into place (§4.6 copy protocol step 4-5).
const partSuffix = ".part"

// progressPublishInterval matches the ≥250ms cadence required of
// queue_progress events.
const progressPublishInterval = 250 * time.Millisecond

// runCopy implements the locked copy protocol of §4.6.
func (e *Executor) runCopy(ctx context.Context, t queue.Task) error {
	p := t.Payload

	srcRoot := e.rootFor(p.SrcSide)
	dstRoot := e.rootFor(p.DstSide)

	srcAbs, err := pathmodel.Join(srcRoot, p.SrcRelPath)
	if err != nil {
		return err // ErrPathEscape, fatal
	}

	dstAbs, err := pathmodel.Join(dstRoot, p.DstRelPath)
	if err != nil {
		return err
	}

	before, err := os.Stat(srcAbs)
	if err != nil {
		return classifyStatError(err)
	}

	if before.IsDir() {
		return fmt.Errorf("%w: %s is a directory", apperr.ErrNotFound, p.SrcRelPath)
	}

	if conflict := e.destinationConflicts(p, before); conflict {
		return fmt.Errorf("%w: %s", apperr.ErrConflictRefused, p.DstRelPath)
	}

	if err := os.MkdirAll(filepath.Dir(dstAbs), 0o755); err != nil {
		return classifyIOError(err)
	}

	partPath := dstAbs + partSuffix

	hash, err := e.streamCopy(ctx, t, srcAbs, partPath, before)
	if err != nil {
		os.Remove(partPath)
		return err
	}

	after, err := os.Stat(srcAbs)
	if err != nil {
		os.Remove(partPath)
		return classifyStatError(err)
	}

	if after.Size() != before.Size() || !after.ModTime().Equal(before.ModTime()) {
		os.Remove(partPath)
		return fmt.Errorf("%w: source %s changed during copy", apperr.ErrTransientIO, p.SrcRelPath)
	}

	if err := os.Chtimes(partPath, before.ModTime(), before.ModTime()); err != nil {
		os.Remove(partPath)
		return classifyIOError(err)
	}

	if err := os.Rename(partPath, dstAbs); err != nil {
		os.Remove(partPath)
		return classifyIOError(err)
	}

	e.updateIndexAfterCopy(p, before, hash)

	return nil
}

// destinationConflicts reports whether the destination's current index
// entry is a confirmed conflict against the source (§4.6 step 2). A
// probable_same destination (matching size, unknown hashes) is NOT a
// conflict and the copy proceeds, overwriting it — the open question in §9
// is resolved as "refuse on confirmed conflict only."
func (e *Executor) destinationConflicts(p queue.Payload, before os.FileInfo) bool {
	dstStore := e.indexFor(p.DstSide)
	if dstStore == nil {
		return false
	}

	dstEntry, hasDst := dstStore.Get(p.DstRelPath)
	if !hasDst {
		return false
	}

	srcEntry := index.Entry{RelPath: p.SrcRelPath, Size: before.Size(), ModTime: before.ModTime().UTC()}

	if srcStore := e.indexFor(p.SrcSide); srcStore != nil {
		if cached, ok := srcStore.Get(p.SrcRelPath); ok && cached.Size == before.Size() && cached.ModTime.Equal(before.ModTime().UTC()) {
			srcEntry.Hash = cached.Hash
		}
	}

	return index.ClassifyPair(srcEntry, dstEntry) == index.StatusConflict
}

// streamCopy streams srcAbs into partPath while hashing in the same pass,
// publishing queue_progress at the required cadence and fsyncing before
// return so the caller's chtimes+rename see durable bytes.
func (e *Executor) streamCopy(ctx context.Context, t queue.Task, srcAbs, partPath string, before os.FileInfo) (string, error) {
	src, err := os.Open(srcAbs)
	if err != nil {
		return "", classifyStatError(err)
	}
	defer src.Close()

	dst, err := os.OpenFile(partPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return "", classifyIOError(err)
	}

	lastPublish := time.Time{}

	digest, _, err := hashutil.CopyWithHash(ctx, dst, src, before.Size(), func(transferred, total int64) {
		now := time.Now()
		if !lastPublish.IsZero() && now.Sub(lastPublish) < progressPublishInterval {
			return
		}

		lastPublish = now

		e.publish(eventbus.TopicQueueProgress, QueueProgress{
			TaskID: t.ID, BytesTransferred: transferred, TotalBytes: total, ProgressPct: progressPct(transferred, total),
		})

		_ = e.queue.UpdateProgress(context.Background(), t.ID, transferred)
	})
	if err != nil {
		dst.Close()

		if errors.Is(err, context.Canceled) {
			return "", err
		}

		return "", classifyIOError(err)
	}

	if err := dst.Sync(); err != nil {
		dst.Close()
		return "", classifyIOError(err)
	}

	if err := dst.Close(); err != nil {
		return "", classifyIOError(err)
	}

	return digest.Hex(), nil
}

// updateIndexAfterCopy records the destination's new entry and, since the
// copy hashed the source's bytes for free, backfills the source's hash too
// if it wasn't already known.
func (e *Executor) updateIndexAfterCopy(p queue.Payload, before os.FileInfo, hash string) {
	mtime := before.ModTime().UTC()

	if dstStore := e.indexFor(p.DstSide); dstStore != nil {
		dstStore.Put(index.Entry{RelPath: p.DstRelPath, Size: before.Size(), ModTime: mtime, Hash: hash})
	}

	if srcStore := e.indexFor(p.SrcSide); srcStore != nil {
		if existing, ok := srcStore.Get(p.SrcRelPath); !ok || existing.Hash == "" {
			srcStore.Put(index.Entry{RelPath: p.SrcRelPath, Size: before.Size(), ModTime: mtime, Hash: hash})
		}
	}

	if e.cache != nil {
		_ = e.cache.Put(context.Background(), p.DstSide, p.DstRelPath, before.Size(), mtime, hash)
		_ = e.cache.Put(context.Background(), p.SrcSide, p.SrcRelPath, before.Size(), mtime, hash)
	}
}
