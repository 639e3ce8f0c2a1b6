// Package pidregistry is C6: the supervisor's in-process, in-memory
// bidirectional map between live PIDs and catalog row_ids. It mirrors the
// persisted job_pids table (internal/catalog) but serves the supervisor's
// event loop without a database round-trip on every SIGCHLD (spec.md §5,
// §7).
package pidregistry

import (
	"fmt"
	"sync"
)

// Registry tracks which row_id a PID belongs to and vice versa. All
// methods are safe for concurrent use, though the supervisor's event loop
// is expected to be single-threaded (spec.md §5) and mostly uses this
// without contention.
type Registry struct {
	mu        sync.RWMutex
	pidToRow  map[int]int64
	rowToPid  map[int64]int
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{
		pidToRow: make(map[int]int64),
		rowToPid: make(map[int64]int),
	}
}

// Register binds pid to rowID. It fails if either side already has a
// binding, mirroring the catalog's AlreadyRegistered invariant (spec.md §3
// invariant 5): a row may have at most one live PID, and a PID belongs to
// at most one row.
func (r *Registry) Register(rowID int64, pid int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.rowToPid[rowID]; ok {
		return fmt.Errorf("row %d already registered to pid %d", rowID, existing)
	}
	if existing, ok := r.pidToRow[pid]; ok {
		return fmt.Errorf("pid %d already registered to row %d", pid, existing)
	}
	r.pidToRow[pid] = rowID
	r.rowToPid[rowID] = pid
	return nil
}

// Release removes pid's binding and returns the row_id it was bound to.
func (r *Registry) Release(pid int) (rowID int64, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rowID, ok = r.pidToRow[pid]
	if !ok {
		return 0, false
	}
	delete(r.pidToRow, pid)
	delete(r.rowToPid, rowID)
	return rowID, true
}

// ReleaseRow removes the binding for rowID, if any, and returns the pid it
// was bound to. Used when a job is force-stopped and the supervisor needs
// to reap without waiting for the child's own exit to surface first.
func (r *Registry) ReleaseRow(rowID int64) (pid int, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	pid, ok = r.rowToPid[rowID]
	if !ok {
		return 0, false
	}
	delete(r.rowToPid, rowID)
	delete(r.pidToRow, pid)
	return pid, true
}

// RowFor returns the row_id bound to pid, if any.
func (r *Registry) RowFor(pid int) (rowID int64, ok bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rowID, ok = r.pidToRow[pid]
	return rowID, ok
}

// PidFor returns the pid bound to rowID, if any.
func (r *Registry) PidFor(rowID int64) (pid int, ok bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	pid, ok = r.rowToPid[rowID]
	return pid, ok
}

// Len returns the number of live bindings.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.pidToRow)
}

// Snapshot returns a copy of the row_id -> pid bindings, for reconciliation
// against the persisted job_pids table on supervisor startup (spec.md §4.6).
func (r *Registry) Snapshot() map[int64]int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[int64]int, len(r.rowToPid))
	for row, pid := range r.rowToPid {
		out[row] = pid
	}
	return out
}
