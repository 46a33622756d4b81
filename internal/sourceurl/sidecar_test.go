package sourceurl

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetOnMissingFileTolerated(t *testing.T) {
	s := New(t.TempDir())

	_, ok, err := s.Get("somehash")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPutThenGet(t *testing.T) {
	s := New(t.TempDir())

	require.NoError(t, s.Put("abc123", "https://example.test/model.bin", "", "model.bin"))

	e, ok, err := s.Get("abc123")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "https://example.test/model.bin", e.URL)
}

func TestDelete(t *testing.T) {
	s := New(t.TempDir())

	require.NoError(t, s.Put("abc123", "https://example.test/model.bin", "", ""))
	require.NoError(t, s.Delete("abc123"))

	_, ok, err := s.Get("abc123")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRelPathKeyFallback(t *testing.T) {
	assert.Equal(t, "relpath:a/b.bin", RelPathKey("a/b.bin"))
}

func TestSaveLeavesNoStaleTempFiles(t *testing.T) {
	root := t.TempDir()
	s := New(root)

	require.NoError(t, s.Put("abc123", "https://example.test/model.bin", "", ""))

	entries, err := os.ReadDir(root)
	require.NoError(t, err)

	for _, e := range entries {
		assert.Equal(t, FileName, e.Name())
	}

	assert.FileExists(t, filepath.Join(root, FileName))
}
