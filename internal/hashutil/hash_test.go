package hashutil

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStreamEmptyFile(t *testing.T) {
	d, err := Stream(bytes.NewReader(nil), 0, nil)
	require.NoError(t, err)
	// BLAKE3 empty-input digest is well known and stable; boundary behavior
	// from the spec: empty files hash to the BLAKE3 empty digest.
	assert.Equal(t, "af1349b9f5f9a1a6a0404dea36dcc9499bcb25c9adc112b7cc9a93cae41f3262", d.Hex())
}

func TestStreamDeterministic(t *testing.T) {
	content := strings.Repeat("model-weights", 100000)

	d1, err := Stream(strings.NewReader(content), int64(len(content)), nil)
	require.NoError(t, err)

	d2, err := Stream(strings.NewReader(content), int64(len(content)), nil)
	require.NoError(t, err)

	assert.Equal(t, d1, d2)
}

func TestStreamProgress(t *testing.T) {
	content := strings.Repeat("x", ChunkSize*3)

	var calls int

	_, err := Stream(strings.NewReader(content), int64(len(content)), func(hashed, total int64) {
		calls++
		assert.LessOrEqual(t, hashed, total)
	})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, calls, 1)
}

func TestDifferentContentDifferentDigest(t *testing.T) {
	d1, err := Stream(strings.NewReader("a"), 1, nil)
	require.NoError(t, err)

	d2, err := Stream(strings.NewReader("b"), 1, nil)
	require.NoError(t, err)

	assert.NotEqual(t, d1, d2)
}
