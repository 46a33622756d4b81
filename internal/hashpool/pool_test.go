package hashpool

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/localmodels/modellake/internal/hashcache"
	"github.com/localmodels/modellake/internal/index"
	"github.com/localmodels/modellake/internal/pathmodel"
	"github.com/localmodels/modellake/internal/sides"
)

func newTestPool(t *testing.T) *Pool {
	t.Helper()

	cache, err := hashcache.Open(context.Background(), ":memory:", nil)
	require.NoError(t, err)
	t.Cleanup(func() { cache.Close() })

	return New(cache, nil, 2, nil)
}

func TestHashFileComputesAndCaches(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.bin"), []byte("hello world"), 0o644))

	p := newTestPool(t)
	store := index.NewStore()
	rp, _ := pathmodel.New("a.bin")

	hash1, err := p.HashFile(context.Background(), Request{Side: sides.Local, Root: root, RelPath: rp, Store: store})
	require.NoError(t, err)
	assert.NotEmpty(t, hash1)

	e, ok := store.Get(rp)
	require.True(t, ok)
	assert.Equal(t, hash1, e.Hash)

	// Second call should hit the cache and return the same hash.
	hash2, err := p.HashFile(context.Background(), Request{Side: sides.Local, Root: root, RelPath: rp, Store: store})
	require.NoError(t, err)
	assert.Equal(t, hash1, hash2)
}

func TestHashFileForceRehashesEvenIfCached(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "a.bin")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0o644))

	p := newTestPool(t)
	store := index.NewStore()
	rp, _ := pathmodel.New("a.bin")

	_, err := p.HashFile(context.Background(), Request{Side: sides.Local, Root: root, RelPath: rp, Store: store})
	require.NoError(t, err)

	_, err = p.HashFile(context.Background(), Request{Side: sides.Local, Root: root, RelPath: rp, Store: store, Force: true})
	require.NoError(t, err)
}

func TestHashManyBounded(t *testing.T) {
	root := t.TempDir()

	p := newTestPool(t)
	store := index.NewStore()

	reqs := make([]Request, 0, 5)

	for i := 0; i < 5; i++ {
		name := filepath.Join(root, "f"+string(rune('a'+i))+".bin")
		require.NoError(t, os.WriteFile(name, []byte("content"), 0o644))

		rp, _ := pathmodel.New(filepath.Base(name))
		reqs = append(reqs, Request{Side: sides.Local, Root: root, RelPath: rp, Store: store})
	}

	hashes, errs := p.HashMany(context.Background(), reqs)
	require.Len(t, hashes, 5)

	for _, e := range errs {
		assert.NoError(t, e)
	}
}

func TestHashFileStableMtimeSucceeds(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "a.bin")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0o644))

	future := time.Now().Add(time.Hour)
	require.NoError(t, os.Chtimes(path, future, future))

	p := newTestPool(t)
	store := index.NewStore()
	rp, _ := pathmodel.New("a.bin")

	_, err := p.HashFile(context.Background(), Request{Side: sides.Local, Root: root, RelPath: rp, Store: store})
	require.NoError(t, err)
}
