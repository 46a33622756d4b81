package adapter

import (
	"net/http"

	"github.com/localmodels/modellake/internal/mirror"
	"github.com/localmodels/modellake/internal/pathmodel"
	"github.com/localmodels/modellake/internal/sides"
)

type mirrorPlanRequest struct {
	SrcSide   string `json:"src_side"`
	SrcFolder string `json:"src_folder"`
	DstSide   string `json:"dst_side"`
	DstFolder string `json:"dst_folder"`
}

func (s *Server) handleMirrorPlan(w http.ResponseWriter, r *http.Request) {
	var req mirrorPlanRequest
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

	var srcFolder, dstFolder pathmodel.RelPath

	if req.SrcFolder != "" {
		if srcFolder, err = pathmodel.New(req.SrcFolder); err != nil {
			writeError(w, err)
			return
		}
	}

	if req.DstFolder != "" {
		if dstFolder, err = pathmodel.New(req.DstFolder); err != nil {
			writeError(w, err)
			return
		}
	}

	plan := s.eng.MirrorPlan(srcSide, srcFolder, dstSide, dstFolder)

	writeJSON(w, http.StatusOK, plan)
}

func (s *Server) handleMirrorExecute(w http.ResponseWriter, r *http.Request) {
	var plan mirror.Plan
	if err := decodeJSON(r, &plan); err != nil {
		writeError(w, err)
		return
	}

	copyIDs, deleteIDs, err := s.eng.MirrorExecute(r.Context(), plan)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]any{
		"copy_task_ids":   copyIDs,
		"delete_task_ids": deleteIDs,
	})
}
