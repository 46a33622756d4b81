// Package mirror implements the mirror planner (C9): a pure function over
// two index snapshots and a (src_side, src_folder, dst_side, dst_folder)
// tuple that produces copy/delete/conflict/extras lists with no I/O of its
// own. Executing a plan is a separate step that enqueues ordinary tasks.
package mirror

import (
	"context"
	"fmt"
	"sort"

	"github.com/localmodels/modellake/internal/index"
	"github.com/localmodels/modellake/internal/pathmodel"
	"github.com/localmodels/modellake/internal/queue"
	"github.com/localmodels/modellake/internal/sides"
)

// Entry is one file referenced by a plan list.
type Entry struct {
	RelPath pathmodel.RelPath
	Size    int64
}

// Plan is the pure output of ComputePlan(): copy and delete are disjoint action
// lists, conflicts lists relpaths present on both sides with a confirmed
// conflict status (never acted on automatically), and extras lists
// dst-only files that would have been deleted had the destination side
// allowed sync-path deletes.
type Plan struct {
	SrcSide   sides.Side
	SrcFolder pathmodel.RelPath
	DstSide   sides.Side
	DstFolder pathmodel.RelPath

	Copy      []Entry
	Delete    []Entry
	Conflicts []Entry
	Extras    []Entry

	TotalCopyBytes   int64
	TotalDeleteBytes int64
}

// ComputePlan computes a copy/delete/conflict plan to bring dstFolder on
// dstSide into agreement with srcFolder on srcSide. src and dst are the
// full-side index snapshots (as returned by index.Store.Snapshot);
// dstAllowDelete is the destination side's allow_delete_from_sync policy bit
// (§4.7: a denied delete list becomes an informational Extras list instead).
func ComputePlan(srcSide sides.Side, srcFolder pathmodel.RelPath, src map[pathmodel.RelPath]index.Entry,
	dstSide sides.Side, dstFolder pathmodel.RelPath, dst map[pathmodel.RelPath]index.Entry,
	dstAllowDelete bool,
) Plan {
	p := Plan{SrcSide: srcSide, SrcFolder: srcFolder, DstSide: dstSide, DstFolder: dstFolder}

	srcUnder := underFolder(src, srcFolder)
	dstUnder := underFolder(dst, dstFolder)

	for relpath, e := range srcUnder {
		dstRel := remapFolder(relpath, srcFolder, dstFolder)

		dstEntry, hasDst := dstUnder[dstRel]
		if !hasDst {
			p.Copy = append(p.Copy, Entry{RelPath: relpath, Size: e.Size})
			p.TotalCopyBytes += e.Size

			continue
		}

		if index.ClassifyPair(e, dstEntry) == index.StatusConflict {
			p.Conflicts = append(p.Conflicts, Entry{RelPath: relpath, Size: e.Size})
		}
	}

	for relpath, e := range dstUnder {
		srcRel := remapFolder(relpath, dstFolder, srcFolder)

		if _, hasSrc := srcUnder[srcRel]; hasSrc {
			continue
		}

		if dstAllowDelete {
			p.Delete = append(p.Delete, Entry{RelPath: relpath, Size: e.Size})
			p.TotalDeleteBytes += e.Size
		} else {
			p.Extras = append(p.Extras, Entry{RelPath: relpath, Size: e.Size})
		}
	}

	sortEntries(p.Copy)
	sortEntries(p.Delete)
	sortEntries(p.Conflicts)
	sortEntries(p.Extras)

	return p
}

func sortEntries(e []Entry) {
	sort.Slice(e, func(i, j int) bool { return e[i].RelPath < e[j].RelPath })
}

// underFolder filters a full-side snapshot down to entries lexically under
// folder (an empty folder means the whole side).
func underFolder(entries map[pathmodel.RelPath]index.Entry, folder pathmodel.RelPath) map[pathmodel.RelPath]index.Entry {
	if folder == "" {
		return entries
	}

	out := make(map[pathmodel.RelPath]index.Entry, len(entries))

	for relpath, e := range entries {
		if relpath.IsUnder(folder) {
			out[relpath] = e
		}
	}

	return out
}

// remapFolder translates a relpath rooted at fromFolder into its equivalent
// under toFolder, so a mirror between two differently-named folders (e.g.
// "staging/modelA" -> "archive/modelA") still joins by the file's position
// relative to each folder rather than its absolute relpath.
func remapFolder(relpath, fromFolder, toFolder pathmodel.RelPath) pathmodel.RelPath {
	if fromFolder == toFolder {
		return relpath
	}

	rel := string(relpath)
	from := string(fromFolder)

	if from != "" {
		rel = rel[len(from):]
		if len(rel) > 0 && rel[0] == '/' {
			rel = rel[1:]
		}
	}

	if toFolder == "" {
		return pathmodel.RelPath(rel)
	}

	if rel == "" {
		return toFolder
	}

	return pathmodel.RelPath(string(toFolder) + "/" + rel)
}

// Execute enqueues the plan's copy list then its delete list as ordinary
// tasks, in that order, skipping conflicts entirely per §4.7.
func Execute(ctx context.Context, q *queue.Queue, p Plan) (copyIDs, deleteIDs []string, err error) {
	for _, e := range p.Copy {
		t, err := q.Enqueue(ctx, queue.TypeCopy, queue.Payload{
			SrcSide: p.SrcSide, SrcRelPath: e.RelPath,
			DstSide: p.DstSide, DstRelPath: remapFolder(e.RelPath, p.SrcFolder, p.DstFolder),
		})
		if err != nil {
			return copyIDs, deleteIDs, fmt.Errorf("mirror: enqueue copy %s: %w", e.RelPath, err)
		}

		copyIDs = append(copyIDs, t.ID)
	}

	for _, e := range p.Delete {
		t, err := q.Enqueue(ctx, queue.TypeDelete, queue.Payload{
			Side: p.DstSide, RelPath: e.RelPath,
		})
		if err != nil {
			return copyIDs, deleteIDs, fmt.Errorf("mirror: enqueue delete %s: %w", e.RelPath, err)
		}

		deleteIDs = append(deleteIDs, t.ID)
	}

	return copyIDs, deleteIDs, nil
}
