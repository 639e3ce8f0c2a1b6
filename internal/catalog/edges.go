package catalog

import "fmt"

// Edge is one dependency edge as stored in job_edges, identified by job id
// rather than row_id so it tolerates soft (not-yet-resolved) references.
type Edge struct {
	Predecessor string
	Successor   string
}

// AllEdges returns the full edge set, deduplicated by (predecessor,
// successor) — the ownership bookkeeping in job_edges.owner_id is an
// internal implementation detail of re-import idempotence and is not
// exposed here (spec.md §4.3 operates on the edge set itself).
func AllEdges(q Queryer) ([]Edge, error) {
	rows, err := q.Query(`SELECT DISTINCT predecessor_id, successor_id FROM job_edges`)
	if err != nil {
		return nil, fmt.Errorf("select all edges: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var edges []Edge
	for rows.Next() {
		var e Edge
		if err := rows.Scan(&e.Predecessor, &e.Successor); err != nil {
			return nil, fmt.Errorf("scan edge: %w", err)
		}
		edges = append(edges, e)
	}
	return edges, rows.Err()
}
