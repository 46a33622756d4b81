package engine

import (
	"context"
	"fmt"

	"github.com/localmodels/modellake/internal/index"
	"github.com/localmodels/modellake/internal/pathmodel"
	"github.com/localmodels/modellake/internal/scan"
	"github.com/localmodels/modellake/internal/sides"
)

// RefreshIndex runs a full filesystem scan for side and replaces its index
// snapshot. side == nil refreshes both sides, matching the route's
// side: local|lake|both parameter.
func (e *Engine) RefreshIndex(ctx context.Context, side *sides.Side) (map[sides.Side]int, error) {
	targets := []sides.Side{sides.Local, sides.Lake}
	if side != nil {
		targets = []sides.Side{*side}
	}

	counts := make(map[sides.Side]int, len(targets))

	for _, s := range targets {
		scanner := scan.New(s, e.rootFor(s), e.indexFor(s), e.bus, e.logger)

		n, err := scanner.Scan(ctx)
		if err != nil {
			return counts, fmt.Errorf("engine: refreshing %s index: %w", s, err)
		}

		counts[s] = n
	}

	return counts, nil
}

// Diff joins the two sides' current index snapshots.
func (e *Engine) Diff(ctx context.Context) []index.DiffEntry {
	local := e.indexFor(sides.Local).Snapshot()
	lake := e.indexFor(sides.Lake).Snapshot()

	return index.Diff(local, lake)
}

// Stats reports each side's current file count and total byte size.
func (e *Engine) Stats(ctx context.Context) Stats {
	return Stats{
		Local: sideStats(e.indexFor(sides.Local).Snapshot()),
		Lake:  sideStats(e.indexFor(sides.Lake).Snapshot()),
	}
}

func sideStats(snapshot map[pathmodel.RelPath]index.Entry) SideStats {
	var s SideStats

	s.FileCount = len(snapshot)
	for _, e := range snapshot {
		s.TotalBytes += e.Size
	}

	return s
}

// ConfigView returns the policy-relevant subset of the resolved
// configuration.
func (e *Engine) ConfigView() ConfigView {
	cfg := e.Config()

	return ConfigView{
		LocalAllowDelete: cfg.LocalAllowDeleteFromSync,
		LakeAllowDelete:  cfg.LakeAllowDeleteFromSync,
		QueueConcurrency: cfg.QueueConcurrency,
		HashWorkers:      cfg.HashWorkers,
	}
}
