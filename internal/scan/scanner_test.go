package scan

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/localmodels/modellake/internal/index"
	"github.com/localmodels/modellake/internal/pathmodel"
	"github.com/localmodels/modellake/internal/sides"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()

	p := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
}

func TestScanPopulatesIndex(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.bin", "hello")
	writeFile(t, root, "sub/b.bin", "world")

	store := index.NewStore()
	s := New(sides.Local, root, store, nil, nil)

	n, err := s.Scan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 2, store.Len())

	rp, _ := pathmodel.New("sub/b.bin")
	e, ok := store.Get(rp)
	require.True(t, ok)
	assert.Equal(t, int64(5), e.Size)
}

func TestScanSkipsRootHiddenFile(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, ".model_sources.json", "{}")
	writeFile(t, root, "a.bin", "hello")

	store := index.NewStore()
	s := New(sides.Lake, root, store, nil, nil)

	n, err := s.Scan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestScanSkipsSymlinks(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.bin", "hello")
	require.NoError(t, os.Symlink(filepath.Join(root, "a.bin"), filepath.Join(root, "link.bin")))

	store := index.NewStore()
	s := New(sides.Local, root, store, nil, nil)

	n, err := s.Scan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestScanFatalOnMissingRoot(t *testing.T) {
	store := index.NewStore()
	s := New(sides.Local, filepath.Join(t.TempDir(), "missing"), store, nil, nil)

	_, err := s.Scan(context.Background())
	assert.Error(t, err)
}

func TestScanRetainsKnownHashForUnchangedFile(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.bin", "hello")

	store := index.NewStore()
	s := New(sides.Local, root, store, nil, nil)

	_, err := s.Scan(context.Background())
	require.NoError(t, err)

	rp, _ := pathmodel.New("a.bin")
	e, _ := store.Get(rp)
	e.Hash = "deadbeef"
	store.Put(e)

	_, err = s.Scan(context.Background())
	require.NoError(t, err)

	e2, _ := store.Get(rp)
	assert.Equal(t, "deadbeef", e2.Hash, "rescan of an unchanged file must not discard its known hash")
}
