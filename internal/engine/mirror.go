package engine

import (
	"context"

	"github.com/localmodels/modellake/internal/mirror"
	"github.com/localmodels/modellake/internal/pathmodel"
	"github.com/localmodels/modellake/internal/sides"
)

// MirrorPlan computes a copy/delete/conflict plan that brings dstFolder on
// dstSide into agreement with srcFolder on srcSide, using the destination
// side's configured allow_delete_from_sync policy.
func (e *Engine) MirrorPlan(srcSide sides.Side, srcFolder pathmodel.RelPath, dstSide sides.Side, dstFolder pathmodel.RelPath) mirror.Plan {
	src := e.indexFor(srcSide).Snapshot()
	dst := e.indexFor(dstSide).Snapshot()
	dstAllowDelete := e.sides.Get(dstSide).AllowDeleteFromSync

	return mirror.ComputePlan(srcSide, srcFolder, src, dstSide, dstFolder, dst, dstAllowDelete)
}

// MirrorExecute enqueues a plan's copy list, then its delete list, skipping
// conflicts entirely.
func (e *Engine) MirrorExecute(ctx context.Context, plan mirror.Plan) (copyIDs, deleteIDs []string, err error) {
	return mirror.Execute(ctx, e.queue, plan)
}
