package engine

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/localmodels/modellake/internal/config"
	"github.com/localmodels/modellake/internal/queue"
	"github.com/localmodels/modellake/internal/sides"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()

	cfg := config.DefaultConfig()
	cfg.LocalRoot = t.TempDir()
	cfg.LakeRoot = t.TempDir()
	cfg.AppDataDir = t.TempDir()

	holder := config.NewHolder(cfg, "")

	e, err := Open(context.Background(), holder, nil)
	require.NoError(t, err)

	t.Cleanup(func() { _ = e.Close() })

	return e
}

func writeFile(t *testing.T, root, relpath, content string) {
	t.Helper()

	full := filepath.Join(root, relpath)
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
}

func TestRefreshIndexAndDiff(t *testing.T) {
	e := newTestEngine(t)
	cfg := e.Config()

	writeFile(t, cfg.LocalRoot, "models/a.bin", "hello")
	writeFile(t, cfg.LakeRoot, "models/b.bin", "world")

	_, err := e.RefreshIndex(context.Background(), nil)
	require.NoError(t, err)

	diff := e.Diff(context.Background())
	require.Len(t, diff, 2)

	stats := e.Stats(context.Background())
	assert.Equal(t, 1, stats.Local.FileCount)
	assert.Equal(t, 1, stats.Lake.FileCount)
}

func TestEnqueueDeletePolicyGate(t *testing.T) {
	e := newTestEngine(t)

	_, err := e.EnqueueDelete(context.Background(), sides.Local, "models/a.bin")
	require.Error(t, err)
}

func TestEnqueueCopyExecutesAsynchronously(t *testing.T) {
	e := newTestEngine(t)
	cfg := e.Config()

	writeFile(t, cfg.LocalRoot, "models/a.bin", "hello")

	_, err := e.RefreshIndex(context.Background(), nil)
	require.NoError(t, err)

	task, err := e.EnqueueCopy(context.Background(), sides.Local, "models/a.bin", sides.Lake)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		got, err := e.GetTask(context.Background(), task.ID)
		return err == nil && got.Status == queue.StatusCompleted
	}, 5*time.Second, 20*time.Millisecond)

	_, err = os.Stat(filepath.Join(cfg.LakeRoot, "models/a.bin"))
	assert.NoError(t, err)
}

func TestMirrorPlanAndExecute(t *testing.T) {
	e := newTestEngine(t)
	cfg := e.Config()

	writeFile(t, cfg.LocalRoot, "models/a.bin", "hello")
	writeFile(t, cfg.LocalRoot, "models/b.bin", "world")

	_, err := e.RefreshIndex(context.Background(), nil)
	require.NoError(t, err)

	plan := e.MirrorPlan(sides.Local, "", sides.Lake, "")
	require.Len(t, plan.Copy, 2)

	copyIDs, deleteIDs, err := e.MirrorExecute(context.Background(), plan)
	require.NoError(t, err)
	assert.Len(t, copyIDs, 2)
	assert.Empty(t, deleteIDs)
}

func TestBundleCRUDRoundTrip(t *testing.T) {
	e := newTestEngine(t)

	b, err := e.CreateBundle(context.Background(), "release-1", nil)
	require.NoError(t, err)

	got, err := e.GetBundleByName(context.Background(), "release-1")
	require.NoError(t, err)
	assert.Equal(t, b.ID, got.ID)

	require.NoError(t, e.DeleteBundle(context.Background(), b.ID))
}

func TestSourceURLRoundTrip(t *testing.T) {
	e := newTestEngine(t)

	require.NoError(t, e.PutSourceByHash("deadbeef", "https://example.com/model.bin", "", ""))

	sources, err := e.ListSources()
	require.NoError(t, err)
	require.Len(t, sources, 1)
	assert.Equal(t, "deadbeef", sources[0].Key)
}
