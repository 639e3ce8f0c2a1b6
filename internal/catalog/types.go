package catalog

import (
	"github.com/3leaps/jobd/internal/jobstate"
	"github.com/3leaps/jobd/internal/manifest"
)

// Job is C2's persisted form: a stable row_id, the human label, lifecycle
// state, and the manifest sub-record (spec.md §3).
type Job struct {
	RowID int64
	ID    string
	State jobstate.State
	// IncomingEdges is not filled in by the catalog's read functions and
	// stays zero; live incoming-edge counts are kept by internal/solver.
	IncomingEdges int
	Manifest      manifest.Record
}
