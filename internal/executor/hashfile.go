package executor

import (
	"context"

	"github.com/localmodels/modellake/internal/hashpool"
	"github.com/localmodels/modellake/internal/queue"
)

// runHashFile implements the §4.5 background hashing task: hash a file
// whose (size, mtime) isn't yet in the cache. Unlike verify, it does not
// force a rehash of already-cached coordinates.
func (e *Executor) runHashFile(ctx context.Context, t queue.Task) error {
	p := t.Payload

	_, err := e.hashes.HashFile(ctx, hashpool.Request{
		Side:    p.Side,
		Root:    e.rootFor(p.Side),
		RelPath: p.RelPath,
		Store:   e.indexFor(p.Side),
	})

	return err
}
