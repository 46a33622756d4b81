// Package bundle implements the bundle store (C15): named ordered file
// lists persisted independently of the per-side indexes, for external
// provisioning flows to read. The engine itself never reads a bundle.
package bundle

import "github.com/localmodels/modellake/internal/pathmodel"

// Item is one entry of a bundle's ordered file list. Hash and
// SourceURLOverride are both optional annotations a provisioning flow may
// attach; neither is validated against either side's index.
type Item struct {
	RelPath           pathmodel.RelPath
	Hash              string
	SourceURLOverride string
}

// Bundle is a named, ordered set of items.
type Bundle struct {
	ID        string
	Name      string
	Items     []Item
	CreatedAt int64 // unix millis
	UpdatedAt int64 // unix millis
}
