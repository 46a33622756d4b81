package engine

import (
	"context"

	"github.com/localmodels/modellake/internal/pathmodel"
	"github.com/localmodels/modellake/internal/queue"
	"github.com/localmodels/modellake/internal/sides"
	"github.com/localmodels/modellake/internal/sourceurl"
)

// ListSources returns every recorded source-URL entry.
func (e *Engine) ListSources() ([]sourceurl.Entry, error) {
	return e.sources.List()
}

// PutSourceByHash records url for a file identified by its content hash.
func (e *Engine) PutSourceByHash(hash, url, notes, filenameHint string) error {
	return e.sources.Put(hash, url, notes, filenameHint)
}

// DeleteSourceByHash removes the entry keyed by a content hash.
func (e *Engine) DeleteSourceByHash(hash string) error {
	return e.sources.Delete(hash)
}

// PutSourceByRelPath records url for a Lake-side file identified by relpath,
// used when the file has not been hashed yet. If queueHash is true and the
// file's current index entry has no hash, a hash_file task is enqueued to
// hash the file; the source entry itself stays keyed by relpath and is not
// re-keyed by that hash.
func (e *Engine) PutSourceByRelPath(ctx context.Context, relpath pathmodel.RelPath, url, notes, filenameHint string, queueHash bool) (*queue.Task, error) {
	if err := e.sources.Put(sourceurl.RelPathKey(relpath.String()), url, notes, filenameHint); err != nil {
		return nil, err
	}

	if !queueHash {
		return nil, nil
	}

	if entry, ok := e.indexFor(sides.Lake).Get(relpath); ok && entry.Hash != "" {
		return nil, nil
	}

	t, err := e.EnqueueHashFile(ctx, sides.Lake, relpath)
	if err != nil {
		return nil, err
	}

	return &t, nil
}

// DeleteSourceByRelPath removes the relpath-keyed fallback entry.
func (e *Engine) DeleteSourceByRelPath(relpath pathmodel.RelPath) error {
	return e.sources.Delete(sourceurl.RelPathKey(relpath.String()))
}
