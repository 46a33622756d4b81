package config

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewHolder(t *testing.T) {
	cfg := DefaultConfig()
	h := NewHolder(cfg, "/data/modellake/config.toml")

	require.NotNil(t, h)
	assert.Equal(t, cfg, h.Config())
	assert.Equal(t, "/data/modellake/config.toml", h.Path())
}

func TestHolderUpdate(t *testing.T) {
	cfg1 := DefaultConfig()
	h := NewHolder(cfg1, "/data/modellake/config.toml")

	cfg2 := DefaultConfig()
	cfg2.HashWorkers = 16

	h.Update(cfg2)

	got := h.Config()
	assert.Equal(t, cfg2, got)
	assert.NotEqual(t, cfg1, got)
}

func TestHolderPathImmutable(t *testing.T) {
	h := NewHolder(DefaultConfig(), "/original/path.toml")

	assert.Equal(t, "/original/path.toml", h.Path())
	assert.Equal(t, "/original/path.toml", h.Path())
}

func TestHolderConcurrentReadWrite(t *testing.T) {
	h := NewHolder(DefaultConfig(), "/data/modellake/config.toml")

	var wg sync.WaitGroup

	for range 20 {
		wg.Add(1)

		go func() {
			defer wg.Done()

			for range 100 {
				got := h.Config()
				assert.NotNil(t, got)
			}
		}()
	}

	for range 5 {
		wg.Add(1)

		go func() {
			defer wg.Done()

			for range 100 {
				h.Update(DefaultConfig())
			}
		}()
	}

	wg.Wait()
}
