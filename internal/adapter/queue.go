package adapter

import (
	"net/http"

	"github.com/localmodels/modellake/internal/pathmodel"
	"github.com/localmodels/modellake/internal/sides"
)

type copyRequest struct {
	SrcSide string `json:"src_side"`
	RelPath string `json:"relpath"`
	DstSide string `json:"dst_side"`
}

func (s *Server) handleQueueCopy(w http.ResponseWriter, r *http.Request) {
	var req copyRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	srcSide, err := sides.Parse(req.SrcSide)
	if err != nil {
		writeError(w, err)
		return
	}

	dstSide, err := sides.Parse(req.DstSide)
	if err != nil {
		writeError(w, err)
		return
	}

	relpath, err := pathmodel.New(req.RelPath)
	if err != nil {
		writeError(w, err)
		return
	}

	task, err := s.eng.EnqueueCopy(r.Context(), srcSide, relpath, dstSide)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, task)
}

type deleteRequest struct {
	Side    string `json:"side"`
	RelPath string `json:"relpath"`
}

func (s *Server) handleQueueDelete(w http.ResponseWriter, r *http.Request) {
	var req deleteRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	side, err := sides.Parse(req.Side)
	if err != nil {
		writeError(w, err)
		return
	}

	relpath, err := pathmodel.New(req.RelPath)
	if err != nil {
		writeError(w, err)
		return
	}

	task, err := s.eng.EnqueueDelete(r.Context(), side, relpath)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, task)
}

func (s *Server) handleQueueTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := s.eng.ListTasks(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"tasks": tasks})
}

func (s *Server) handleQueuePause(w http.ResponseWriter, r *http.Request) {
	if err := s.eng.PauseQueue(r.Context()); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, nil)
}

func (s *Server) handleQueueResume(w http.ResponseWriter, r *http.Request) {
	if err := s.eng.ResumeQueue(r.Context()); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, nil)
}

func (s *Server) handleQueueCancelAll(w http.ResponseWriter, r *http.Request) {
	if err := s.eng.CancelAllTasks(r.Context()); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, nil)
}

func (s *Server) handleQueueCancel(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	if err := s.eng.CancelTask(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, nil)
}
