// Package index implements the per-side copy-on-write file index (C3) and the
// diff engine (C6) that joins two side snapshots into classified DiffEntry
// records.
package index

import (
	"time"

	"github.com/localmodels/modellake/internal/pathmodel"
)

// Entry is one live file on a side: relpath, size, mtime, and an optional
// content hash (absent until a hash worker fills it in).
type Entry struct {
	RelPath pathmodel.RelPath
	Size    int64
	ModTime time.Time
	Hash    string // hex BLAKE3 digest, "" if not yet hashed
}

// Status classifies a DiffEntry per the join table in §4.3.
type Status string

const (
	StatusOnlyLocal    Status = "only_local"
	StatusOnlyLake     Status = "only_lake"
	StatusSame         Status = "same"
	StatusProbableSame Status = "probable_same"
	StatusConflict     Status = "conflict"
)

// DiffEntry is the per-relpath join of the two side indexes.
type DiffEntry struct {
	RelPath   pathmodel.RelPath
	LocalSize *int64
	LocalHash string
	LakeSize  *int64
	LakeHash  string
	Status    Status
}
