package adapter

import (
	"net/http"

	"github.com/localmodels/modellake/internal/dedupe"
	"github.com/localmodels/modellake/internal/queue"
	"github.com/localmodels/modellake/internal/sides"
)

type dedupeScanRequest struct {
	Side         string `json:"side"`
	Mode         string `json:"mode"`
	MinSizeBytes int64  `json:"min_size_bytes"`
}

func (s *Server) handleDedupeScan(w http.ResponseWriter, r *http.Request) {
	var req dedupeScanRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	side, err := sides.Parse(req.Side)
	if err != nil {
		writeError(w, err)
		return
	}

	mode := queue.DedupeFast
	if req.Mode == "full" {
		mode = queue.DedupeFull
	}

	task, err := s.eng.EnqueueDedupeScan(r.Context(), side, mode, req.MinSizeBytes)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, task)
}

func (s *Server) handleDedupeScanStatus(w http.ResponseWriter, r *http.Request) {
	scanID := r.URL.Query().Get("scan_id")

	result, err := s.eng.DedupeGetScan(r.Context(), scanID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleDedupeScanLatest(w http.ResponseWriter, r *http.Request) {
	side, err := sideFromQuery(r, "side")
	if err != nil {
		writeError(w, err)
		return
	}

	result, err := s.eng.DedupeLatestScan(r.Context(), side)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleDedupeScanDelete(w http.ResponseWriter, r *http.Request) {
	scanID := r.PathValue("id")

	if err := s.eng.DedupeDeleteScan(r.Context(), scanID); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusNoContent, nil)
}

func (s *Server) handleDedupeResults(w http.ResponseWriter, r *http.Request) {
	scanID := r.PathValue("scan_id")

	groups, err := s.eng.DedupeResults(r.Context(), scanID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string][]dedupe.Group{"groups": groups})
}

type dedupeExecuteRequest struct {
	ScanID     string              `json:"scan_id"`
	Selections []dedupe.Selection `json:"selections"`
}

func (s *Server) handleDedupeExecute(w http.ResponseWriter, r *http.Request) {
	var req dedupeExecuteRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	summary, err := s.eng.DedupeExecute(r.Context(), req.ScanID, req.Selections)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, summary)
}
