package adapter

import (
	"net/http"

	"github.com/localmodels/modellake/internal/pathmodel"
	"github.com/localmodels/modellake/internal/sides"
	"github.com/localmodels/modellake/internal/sourceurl"
)

type refreshRequest struct {
	Side string `json:"side"`
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	var side *sides.Side

	if req.Side != "" && req.Side != "both" {
		parsed, err := sides.Parse(req.Side)
		if err != nil {
			writeError(w, err)
			return
		}

		side = &parsed
	}

	if _, err := s.eng.RefreshIndex(r.Context(), side); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, nil)
}

func (s *Server) handleDiff(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.eng.Diff(r.Context()))
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.eng.Stats(r.Context()))
}

func (s *Server) handleConfigView(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.eng.ConfigView())
}

func (s *Server) handleListSources(w http.ResponseWriter, r *http.Request) {
	sources, err := s.eng.ListSources()
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string][]sourceurl.Entry{"sources": sources})
}

type putSourceRequest struct {
	URL          string `json:"url"`
	FilenameHint string `json:"filename_hint"`
	QueueHash    bool   `json:"queue_hash"`
}

func (s *Server) handlePutSourceByHash(w http.ResponseWriter, r *http.Request) {
	hash := r.PathValue("hash")

	var req putSourceRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	if err := s.eng.PutSourceByHash(hash, req.URL, "", req.FilenameHint); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, nil)
}

func (s *Server) handlePutSourceByRelPath(w http.ResponseWriter, r *http.Request) {
	relpath, err := pathmodel.New(r.PathValue("relpath"))
	if err != nil {
		writeError(w, err)
		return
	}

	var req putSourceRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	task, err := s.eng.PutSourceByRelPath(r.Context(), relpath, req.URL, "", req.FilenameHint, req.QueueHash)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, task)
}

func (s *Server) handleDeleteSourceByHash(w http.ResponseWriter, r *http.Request) {
	if err := s.eng.DeleteSourceByHash(r.PathValue("hash")); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusNoContent, nil)
}

func (s *Server) handleDeleteSourceByRelPath(w http.ResponseWriter, r *http.Request) {
	relpath, err := pathmodel.New(r.PathValue("relpath"))
	if err != nil {
		writeError(w, err)
		return
	}

	if err := s.eng.DeleteSourceByRelPath(relpath); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusNoContent, nil)
}

func (s *Server) handleHashFile(w http.ResponseWriter, r *http.Request) {
	relpath, err := pathmodel.New(r.URL.Query().Get("relpath"))
	if err != nil {
		writeError(w, err)
		return
	}

	side, err := sideFromQuery(r, "side")
	if err != nil {
		writeError(w, err)
		return
	}

	task, err := s.eng.EnqueueHashFile(r.Context(), side, relpath)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, task)
}

type verifyRequest struct {
	Side    string `json:"side"`
	Folder  string `json:"folder"`
	RelPath string `json:"relpath"`
}

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	side, err := sides.Parse(req.Side)
	if err != nil {
		writeError(w, err)
		return
	}

	var folder, relpath pathmodel.RelPath

	if req.Folder != "" {
		if folder, err = pathmodel.New(req.Folder); err != nil {
			writeError(w, err)
			return
		}
	}

	if req.RelPath != "" {
		if relpath, err = pathmodel.New(req.RelPath); err != nil {
			writeError(w, err)
			return
		}
	}

	task, err := s.eng.EnqueueVerify(r.Context(), side, folder, relpath)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, task)
}

func sideFromQuery(r *http.Request, key string) (sides.Side, error) {
	return sides.Parse(r.URL.Query().Get(key))
}
