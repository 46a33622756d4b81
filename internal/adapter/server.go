// Package adapter implements the thin HTTP/WebSocket binding (C14) over
// internal/engine's Go API: one route per operation in §6, JSON marshaling
// only, no business logic of its own.
package adapter

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/localmodels/modellake/internal/apperr"
	"github.com/localmodels/modellake/internal/bundle"
	"github.com/localmodels/modellake/internal/engine"
	"github.com/localmodels/modellake/internal/pathmodel"
)

// Server wraps an *engine.Engine with an http.Handler implementing §6's
// routes.
type Server struct {
	eng    *engine.Engine
	logger *slog.Logger
	mux    *http.ServeMux
}

// New builds a Server bound to eng. Call Handler to obtain the http.Handler
// to pass to http.Server, or ListenAndServe to run it directly.
func New(eng *engine.Engine, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{eng: eng, logger: logger, mux: http.NewServeMux()}
	s.routes()

	return s
}

// Handler returns the server's http.Handler.
func (s *Server) Handler() http.Handler { return s.mux }

// ListenAndServe runs the HTTP server on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	httpSrv := &http.Server{Addr: addr, Handler: s.mux}

	errCh := make(chan error, 1)

	go func() {
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		return httpSrv.Shutdown(context.Background())
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}

		return err
	}
}

func (s *Server) routes() {
	s.mux.HandleFunc("POST /api/index/refresh", s.handleRefresh)
	s.mux.HandleFunc("GET /api/index/diff", s.handleDiff)
	s.mux.HandleFunc("GET /api/index/stats", s.handleStats)
	s.mux.HandleFunc("GET /api/index/config", s.handleConfigView)
	s.mux.HandleFunc("GET /api/index/sources", s.handleListSources)
	s.mux.HandleFunc("PUT /api/index/sources/{hash}", s.handlePutSourceByHash)
	s.mux.HandleFunc("PUT /api/index/sources/by-relpath/{relpath}", s.handlePutSourceByRelPath)
	s.mux.HandleFunc("DELETE /api/index/sources/{hash}", s.handleDeleteSourceByHash)
	s.mux.HandleFunc("DELETE /api/index/sources/by-relpath/{relpath}", s.handleDeleteSourceByRelPath)
	s.mux.HandleFunc("POST /api/index/hash-file", s.handleHashFile)
	s.mux.HandleFunc("POST /api/index/verify", s.handleVerify)

	s.mux.HandleFunc("POST /api/queue/copy", s.handleQueueCopy)
	s.mux.HandleFunc("POST /api/queue/delete", s.handleQueueDelete)
	s.mux.HandleFunc("GET /api/queue/tasks", s.handleQueueTasks)
	s.mux.HandleFunc("POST /api/queue/pause", s.handleQueuePause)
	s.mux.HandleFunc("POST /api/queue/resume", s.handleQueueResume)
	s.mux.HandleFunc("POST /api/queue/cancel/all", s.handleQueueCancelAll)
	s.mux.HandleFunc("POST /api/queue/cancel/{id}", s.handleQueueCancel)

	s.mux.HandleFunc("POST /api/mirror/plan", s.handleMirrorPlan)
	s.mux.HandleFunc("POST /api/mirror/execute", s.handleMirrorExecute)

	s.mux.HandleFunc("POST /api/dedupe/scan", s.handleDedupeScan)
	s.mux.HandleFunc("GET /api/dedupe/scan/status", s.handleDedupeScanStatus)
	s.mux.HandleFunc("GET /api/dedupe/scan/latest", s.handleDedupeScanLatest)
	s.mux.HandleFunc("DELETE /api/dedupe/scan/{id}", s.handleDedupeScanDelete)
	s.mux.HandleFunc("GET /api/dedupe/results/{scan_id}", s.handleDedupeResults)
	s.mux.HandleFunc("POST /api/dedupe/execute", s.handleDedupeExecute)

	s.mux.HandleFunc("GET /ws", s.handleWS)
}

// writeJSON encodes v as the response body with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

// writeError maps a Go error to an HTTP status per the §7 taxonomy and
// writes a {"error": "..."} body.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError

	switch {
	case errors.Is(err, apperr.ErrNotFound), errors.Is(err, bundle.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, apperr.ErrConflictRefused):
		status = http.StatusConflict
	case errors.Is(err, apperr.ErrPolicyDenied), errors.Is(err, apperr.ErrPermissionDenied):
		status = http.StatusForbidden
	case errors.Is(err, pathmodel.ErrPathEscape):
		status = http.StatusBadRequest
	}

	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func decodeJSON(r *http.Request, v any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}

	dec := json.NewDecoder(r.Body)

	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}

	return nil
}
