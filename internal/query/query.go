// Package query is C7: read-only views over the catalog for jobstat and
// jobcfg's own reporting, never blocking (or blocked by) a writer
// (spec.md §4.7).
package query

import (
	"sort"

	"github.com/3leaps/jobd/internal/catalog"
)

// JobSummary is the (id, state) pair spec.md §4.7's list() returns.
type JobSummary struct {
	ID    string
	State string
}

// List returns every job's (id, state), sorted by id.
func List(q catalog.Queryer) ([]JobSummary, error) {
	jobs, err := catalog.SelectAll(q)
	if err != nil {
		return nil, err
	}
	out := make([]JobSummary, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, JobSummary{ID: j.ID, State: string(j.State)})
	}
	sort.Slice(out, func(i, k int) bool { return out[i].ID < out[k].ID })
	return out, nil
}

// Find is an exact-match lookup by id.
func Find(q catalog.Queryer, id string) (*catalog.Job, error) {
	return catalog.FindByID(q, id)
}

// FindByPid resolves the job id owning a live pid, for diagnostics (e.g.
// "which job is pid 4242").
func FindByPid(q catalog.Queryer, pid int) (id string, ok bool, err error) {
	return catalog.GetLabelByPid(q, pid)
}
