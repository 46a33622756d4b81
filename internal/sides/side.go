// Package sides models the Local/Lake distinction as two instances of a
// common, configuration-parameterized capability rather than as a type
// hierarchy — per the engine's design note that the two storage roots differ
// only in their configured root path and delete policy.
package sides

import "fmt"

// Side identifies one of the two storage roots the engine coordinates.
type Side int

const (
	// Local is the fast working root (typically an SSD).
	Local Side = iota
	// Lake is the slow archival root (typically a NAS share).
	Lake
)

// String returns the canonical lowercase name used in logs, task payloads,
// and the HTTP API.
func (s Side) String() string {
	switch s {
	case Local:
		return "local"
	case Lake:
		return "lake"
	default:
		return fmt.Sprintf("side(%d)", int(s))
	}
}

// Parse parses the canonical lowercase name back into a Side.
func Parse(s string) (Side, error) {
	switch s {
	case "local":
		return Local, nil
	case "lake":
		return Lake, nil
	default:
		return 0, fmt.Errorf("sides: unrecognized side %q", s)
	}
}

// Other returns the opposite side.
func (s Side) Other() Side {
	if s == Local {
		return Lake
	}

	return Local
}

// Config holds a single side's root path and delete policy. AllowDeleteFromDedupe
// is always true by contract: dedupe-initiated deletes are never policy-gated,
// only sync-path deletes are.
type Config struct {
	Root                 string
	AllowDeleteFromSync  bool
	AllowDeleteFromDedupe bool
}

// NewConfig constructs a Config with AllowDeleteFromDedupe pinned to true.
func NewConfig(root string, allowDeleteFromSync bool) Config {
	return Config{
		Root:                  root,
		AllowDeleteFromSync:   allowDeleteFromSync,
		AllowDeleteFromDedupe: true,
	}
}

// Pair bundles both sides' configuration, the unit the engine is constructed
// from.
type Pair struct {
	Local Config
	Lake  Config
}

// Get returns the Config for the given side.
func (p Pair) Get(s Side) Config {
	if s == Local {
		return p.Local
	}

	return p.Lake
}
