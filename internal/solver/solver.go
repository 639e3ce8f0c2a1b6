// Package solver is C3: given the catalog's current jobs and dependency
// edges, compute a legal start order and detect cycles (spec.md §4.3).
//
// The algorithm is Kahn's algorithm with a twist: incoming-edge counts only
// count predecessors that are not already Running, so a solver seeded
// mid-flight (some jobs already up from a previous supervisor run) treats
// them as satisfied rather than forcing a restart. Ties among otherwise-
// ready jobs break lexicographically on id for determinism (spec.md §4.3,
// §8 S1/S2).
package solver

import "sort"

// JobInfo is the solver's view of one catalog row: just enough to drive
// the graph walk, not the full manifest.
type JobInfo struct {
	ID      string
	Enabled bool
	Running bool
}

// Edge is a dependency edge, predecessor must be Running before successor
// is eligible to start.
type Edge struct {
	Predecessor string
	Successor   string
}

// Solver holds live incoming-edge counts for an in-progress solve. The
// supervisor queries it for startable jobs; tests and the supervisor's
// shutdown ordering instead drain it to completion with Plan.
type Solver struct {
	enabled    map[string]bool
	done       map[string]bool
	incoming   map[string]int
	successors map[string][]string
	known      map[string]bool
}

// New builds a Solver from the current catalog snapshot. Jobs referenced
// only by an edge but absent from jobs (a soft edge that never resolved) is
// not an error here — it simply never contributes a satisfied predecessor,
// so anything waiting on it never becomes startable and is reported as a
// cycle member by Cycles, consistent with treating it as permanently
// blocked.
func New(jobs []JobInfo, edges []Edge) *Solver {
	s := &Solver{
		enabled:    make(map[string]bool, len(jobs)),
		done:       make(map[string]bool, len(jobs)),
		incoming:   make(map[string]int, len(jobs)),
		successors: make(map[string][]string),
		known:      make(map[string]bool, len(jobs)),
	}
	for _, j := range jobs {
		s.known[j.ID] = true
		s.enabled[j.ID] = j.Enabled
		if j.Running {
			s.done[j.ID] = true
		}
	}
	for _, e := range edges {
		if s.done[e.Predecessor] {
			continue // already satisfied, never counted
		}
		s.incoming[e.Successor]++
		s.successors[e.Predecessor] = append(s.successors[e.Predecessor], e.Successor)
	}
	return s
}

// Startable returns the ids of jobs with zero live incoming-edge count that
// are enabled and not already Running, sorted lexicographically.
func (s *Solver) Startable() []string {
	var out []string
	for id := range s.known {
		if s.done[id] || !s.enabled[id] {
			continue
		}
		if s.incoming[id] == 0 {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

// MarkRunning records that id has successfully transitioned to Running,
// decrements its dependents' live counts, and returns the ids that became
// newly startable as a result (sorted). Calling MarkRunning for an id not
// returned by Startable is a caller error but harmless: its dependents
// still get decremented.
func (s *Solver) MarkRunning(id string) []string {
	s.done[id] = true
	var newly []string
	for _, dep := range s.successors[id] {
		if s.incoming[dep] > 0 {
			s.incoming[dep]--
		}
		if s.incoming[dep] == 0 && s.enabled[dep] && !s.done[dep] {
			newly = append(newly, dep)
		}
	}
	sort.Strings(newly)
	return newly
}

// Cycles returns the ids of enabled, not-yet-Running jobs that still carry
// a nonzero incoming count once no further progress is possible — the
// members of a dependency cycle (or jobs blocked transitively on one),
// per spec.md §4.3 and §8 S3.
func (s *Solver) Cycles() []string {
	var out []string
	for id := range s.known {
		if s.done[id] || !s.enabled[id] {
			continue
		}
		if s.incoming[id] > 0 {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

// Plan drains a fresh Solver to completion, as if every startable job
// immediately transitioned to Running, and returns the full legal start
// order plus any cycle members left over. It does not model exclusive-job
// contention or real transition failures — those are the supervisor's
// concern (internal/supervisor) once it decides whether a startable job
// can actually be forked right now.
func Plan(jobs []JobInfo, edges []Edge) (order []string, cycleMembers []string) {
	s := New(jobs, edges)
	frontier := s.Startable()
	for len(frontier) > 0 {
		var next []string
		for _, id := range frontier {
			order = append(order, id)
			next = append(next, s.MarkRunning(id)...)
		}
		sort.Strings(next)
		frontier = dedupe(next)
	}
	return order, s.Cycles()
}

func dedupe(in []string) []string {
	if len(in) < 2 {
		return in
	}
	out := in[:1]
	for _, v := range in[1:] {
		if v != out[len(out)-1] {
			out = append(out, v)
		}
	}
	return out
}
