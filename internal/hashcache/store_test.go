package hashcache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/localmodels/modellake/internal/pathmodel"
	"github.com/localmodels/modellake/internal/sides"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()

	s, err := Open(context.Background(), ":memory:", nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	return s
}

func TestGetMissReturnsFalse(t *testing.T) {
	s := openTestStore(t)
	rp, _ := pathmodel.New("a.bin")

	_, ok, err := s.Get(context.Background(), sides.Local, rp, 10, time.Now())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPutThenGetExactMatch(t *testing.T) {
	s := openTestStore(t)
	rp, _ := pathmodel.New("a.bin")
	mtime := time.UnixMilli(1700000000000)

	require.NoError(t, s.Put(context.Background(), sides.Local, rp, 100, mtime, "deadbeef"))

	hash, ok, err := s.Get(context.Background(), sides.Local, rp, 100, mtime)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "deadbeef", hash)
}

// TestGetRequiresExactMatch grounds the spec invariant 6: a hash is returned
// only if all four key coordinates match exactly.
func TestGetRequiresExactMatch(t *testing.T) {
	s := openTestStore(t)
	rp, _ := pathmodel.New("a.bin")
	mtime := time.UnixMilli(1700000000000)

	require.NoError(t, s.Put(context.Background(), sides.Local, rp, 100, mtime, "deadbeef"))

	_, ok, err := s.Get(context.Background(), sides.Local, rp, 101, mtime)
	require.NoError(t, err)
	assert.False(t, ok, "size mismatch must miss")

	_, ok, err = s.Get(context.Background(), sides.Local, rp, 100, mtime.Add(time.Millisecond))
	require.NoError(t, err)
	assert.False(t, ok, "mtime mismatch must miss")
}

func TestInvalidate(t *testing.T) {
	s := openTestStore(t)
	rp, _ := pathmodel.New("a.bin")
	mtime := time.Now()

	require.NoError(t, s.Put(context.Background(), sides.Local, rp, 100, mtime, "deadbeef"))
	require.NoError(t, s.Invalidate(context.Background(), sides.Local, rp))

	_, ok, err := s.Get(context.Background(), sides.Local, rp, 100, mtime)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSidesAreIndependent(t *testing.T) {
	s := openTestStore(t)
	rp, _ := pathmodel.New("a.bin")
	mtime := time.Now()

	require.NoError(t, s.Put(context.Background(), sides.Local, rp, 100, mtime, "local-hash"))
	require.NoError(t, s.Put(context.Background(), sides.Lake, rp, 100, mtime, "lake-hash"))

	h, _, err := s.Get(context.Background(), sides.Local, rp, 100, mtime)
	require.NoError(t, err)
	assert.Equal(t, "local-hash", h)

	h, _, err = s.Get(context.Background(), sides.Lake, rp, 100, mtime)
	require.NoError(t, err)
	assert.Equal(t, "lake-hash", h)
}

func TestIterate(t *testing.T) {
	s := openTestStore(t)
	mtime := time.Now()

	for _, name := range []string{"a.bin", "b.bin", "c.bin"} {
		rp, _ := pathmodel.New(name)
		require.NoError(t, s.Put(context.Background(), sides.Local, rp, 10, mtime, "h-"+name))
	}

	var count int

	err := s.Iterate(context.Background(), sides.Local, func(rp pathmodel.RelPath, size int64, mtime time.Time, hash string) error {
		count++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}
