package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/localmodels/modellake/internal/config"
	"github.com/localmodels/modellake/internal/engine"
)

func newTestServer(t *testing.T) (*httptest.Server, *engine.Engine) {
	t.Helper()

	cfg := config.DefaultConfig()
	cfg.LocalRoot = t.TempDir()
	cfg.LakeRoot = t.TempDir()
	cfg.AppDataDir = t.TempDir()

	holder := config.NewHolder(cfg, "")

	eng, err := engine.Open(context.Background(), holder, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = eng.Close() })

	srv := New(eng, nil)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	return ts, eng
}

func writeModel(t *testing.T, root, relpath, content string) {
	t.Helper()

	full := filepath.Join(root, relpath)
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
}

func doJSON(t *testing.T, ts *httptest.Server, method, path string, body any) *http.Response {
	t.Helper()

	var reader *bytes.Reader

	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, ts.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })

	return resp
}

func decodeBody(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func TestHandleRefreshAndDiff(t *testing.T) {
	ts, eng := newTestServer(t)
	cfg := eng.Config()

	writeModel(t, cfg.LocalRoot, "models/a.bin", "hello")
	writeModel(t, cfg.LakeRoot, "models/b.bin", "world")

	resp := doJSON(t, ts, http.MethodPost, "/api/index/refresh", nil)
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	resp = doJSON(t, ts, http.MethodGet, "/api/index/diff", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var diff []map[string]any
	decodeBody(t, resp, &diff)
	assert.Len(t, diff, 2)
}

func TestHandleRefreshSingleSide(t *testing.T) {
	ts, eng := newTestServer(t)
	cfg := eng.Config()

	writeModel(t, cfg.LocalRoot, "models/a.bin", "hello")

	resp := doJSON(t, ts, http.MethodPost, "/api/index/refresh", map[string]string{"side": "local"})
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	resp = doJSON(t, ts, http.MethodGet, "/api/index/stats", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var stats map[string]any
	decodeBody(t, resp, &stats)
	assert.NotEmpty(t, stats)
}

func TestHandleConfigView(t *testing.T) {
	ts, _ := newTestServer(t)

	resp := doJSON(t, ts, http.MethodGet, "/api/index/config", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var view map[string]any
	decodeBody(t, resp, &view)
	assert.NotEmpty(t, view)
}

func TestHandleSourcesByRelPathCRUD(t *testing.T) {
	ts, eng := newTestServer(t)
	cfg := eng.Config()

	writeModel(t, cfg.LocalRoot, "models/a.bin", "hello")
	doJSON(t, ts, http.MethodPost, "/api/index/refresh", nil)

	resp := doJSON(t, ts, http.MethodPut, "/api/index/sources/by-relpath/models%2Fa.bin",
		map[string]any{"url": "https://example.com/a.bin", "queue_hash": false})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = doJSON(t, ts, http.MethodGet, "/api/index/sources", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]any
	decodeBody(t, resp, &body)
	sources, _ := body["sources"].([]any)
	assert.Len(t, sources, 1)

	resp = doJSON(t, ts, http.MethodDelete, "/api/index/sources/by-relpath/models%2Fa.bin", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = doJSON(t, ts, http.MethodGet, "/api/index/sources", nil)
	decodeBody(t, resp, &body)
	sources, _ = body["sources"].([]any)
	assert.Empty(t, sources)
}

func TestHandleSourcesByRelPathInvalidPath(t *testing.T) {
	ts, _ := newTestServer(t)

	resp := doJSON(t, ts, http.MethodPut, "/api/index/sources/by-relpath/..%2Fescape",
		map[string]any{"url": "https://example.com/x.bin"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHandleQueueCopyAndTasks(t *testing.T) {
	ts, eng := newTestServer(t)
	cfg := eng.Config()

	writeModel(t, cfg.LocalRoot, "models/a.bin", "hello")
	doJSON(t, ts, http.MethodPost, "/api/index/refresh", nil)

	resp := doJSON(t, ts, http.MethodPost, "/api/queue/copy",
		map[string]string{"src_side": "local", "relpath": "models/a.bin", "dst_side": "lake"})
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	var task map[string]any
	decodeBody(t, resp, &task)
	assert.NotEmpty(t, task["ID"])

	resp = doJSON(t, ts, http.MethodGet, "/api/queue/tasks", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]any
	decodeBody(t, resp, &body)
	tasks, _ := body["tasks"].([]any)
	assert.Len(t, tasks, 1)
}

func TestHandleQueuePauseResume(t *testing.T) {
	ts, _ := newTestServer(t)

	resp := doJSON(t, ts, http.MethodPost, "/api/queue/pause", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = doJSON(t, ts, http.MethodPost, "/api/queue/resume", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestHandleQueueCancelAll(t *testing.T) {
	ts, _ := newTestServer(t)

	resp := doJSON(t, ts, http.MethodPost, "/api/queue/cancel/all", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestHandleMirrorPlanAndExecute(t *testing.T) {
	ts, eng := newTestServer(t)
	cfg := eng.Config()

	writeModel(t, cfg.LocalRoot, "models/a.bin", "hello")
	writeModel(t, cfg.LocalRoot, "models/b.bin", "world")
	doJSON(t, ts, http.MethodPost, "/api/index/refresh", nil)

	resp := doJSON(t, ts, http.MethodPost, "/api/mirror/plan",
		map[string]string{"src_side": "local", "dst_side": "lake"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var plan map[string]any
	decodeBody(t, resp, &plan)

	copyList, ok := plan["Copy"].([]any)
	require.True(t, ok)
	assert.Len(t, copyList, 2)

	resp = doJSON(t, ts, http.MethodPost, "/api/mirror/execute", plan)
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	var result map[string]any
	decodeBody(t, resp, &result)

	copyIDs, ok := result["copy_task_ids"].([]any)
	require.True(t, ok)
	assert.Len(t, copyIDs, 2)
}

func TestHandleDedupeScanAndLatest(t *testing.T) {
	ts, eng := newTestServer(t)
	cfg := eng.Config()

	writeModel(t, cfg.LocalRoot, "models/a.bin", "same-bytes")
	writeModel(t, cfg.LocalRoot, "models/b.bin", "same-bytes")
	doJSON(t, ts, http.MethodPost, "/api/index/refresh", nil)

	resp := doJSON(t, ts, http.MethodPost, "/api/dedupe/scan",
		map[string]any{"side": "local", "mode": "full"})
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	var task map[string]any
	decodeBody(t, resp, &task)
	assert.NotEmpty(t, task["ID"])

	require.Eventually(t, func() bool {
		resp := doJSON(t, ts, http.MethodGet, "/api/dedupe/scan/latest?side=local", nil)
		if resp.StatusCode != http.StatusOK {
			return false
		}

		var result map[string]any
		decodeBody(t, resp, &result)
		groups, _ := result["Groups"].([]any)

		return len(groups) == 1
	}, 5*time.Second, 20*time.Millisecond)
}

func TestHandleWS(t *testing.T) {
	ts, _ := newTestServer(t)

	wsURL := "ws" + ts.URL[len("http"):] + "/ws"

	conn, _, err := websocket.Dial(context.Background(), wsURL, nil)
	require.NoError(t, err)

	conn.Close(websocket.StatusNormalClosure, "")
}
