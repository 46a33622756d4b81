package index

import (
	"sort"

	"github.com/localmodels/modellake/internal/pathmodel"
)

// Diff joins the Local and Lake snapshots by relpath and classifies each
// entry per the table in §4.3. Results are sorted by relpath for stable
// output.
func Diff(local, lake map[pathmodel.RelPath]Entry) []DiffEntry {
	seen := make(map[pathmodel.RelPath]struct{}, len(local)+len(lake))
	for k := range local {
		seen[k] = struct{}{}
	}

	for k := range lake {
		seen[k] = struct{}{}
	}

	out := make([]DiffEntry, 0, len(seen))

	for rp := range seen {
		l, hasLocal := local[rp]
		k, hasLake := lake[rp]

		d := DiffEntry{RelPath: rp}

		switch {
		case hasLocal && !hasLake:
			d.LocalSize = &l.Size
			d.LocalHash = l.Hash
			d.Status = StatusOnlyLocal
		case !hasLocal && hasLake:
			d.LakeSize = &k.Size
			d.LakeHash = k.Hash
			d.Status = StatusOnlyLake
		default:
			d.LocalSize = &l.Size
			d.LocalHash = l.Hash
			d.LakeSize = &k.Size
			d.LakeHash = k.Hash
			d.Status = classifyBoth(l, k)
		}

		out = append(out, d)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].RelPath < out[j].RelPath })

	return out
}

// ClassifyPair exposes the both-sides-present classification rule for a
// single relpath, used by the executor's copy protocol to decide whether a
// destination that already exists is a confirmed conflict (§4.6 step 2)
// without re-running a full two-side diff.
func ClassifyPair(src, dst Entry) Status {
	return classifyBoth(src, dst)
}

// classifyBoth implements the both-sides-present rows of the §4.3 table.
func classifyBoth(l, k Entry) Status {
	bothHashed := l.Hash != "" && k.Hash != ""

	switch {
	case bothHashed && l.Hash == k.Hash:
		return StatusSame
	case bothHashed && l.Hash != k.Hash:
		return StatusConflict
	case !bothHashed && l.Size == k.Size:
		return StatusProbableSame
	default:
		return StatusConflict
	}
}
