package catalog

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/3leaps/jobd/internal/apperrors"
)

// DBTX is satisfied by *sql.DB and *sql.Tx; the volatile PID table's
// operations don't need a long-lived transaction the way import does, but
// accepting either lets callers batch a registration with other writes.
type DBTX interface {
	Exec(query string, args ...any) (sql.Result, error)
	Query(query string, args ...any) (*sql.Rows, error)
	QueryRow(query string, args ...any) *sql.Row
}

// RegisterPid inserts a volatile (pid, row_id) pair. Fails with
// AlreadyRegistered if row_id already has a live PID (spec.md §3 invariant
// 5, §7).
func RegisterPid(x DBTX, rowID int64, pid int) error {
	var existing int
	err := x.QueryRow(`SELECT pid FROM job_pids WHERE row_id = ?`, rowID).Scan(&existing)
	if err == nil {
		return apperrors.New(apperrors.KindAlreadyRegistered, fmt.Errorf("row %d already has pid %d", rowID, existing))
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("check existing pid for row %d: %w", rowID, err)
	}

	if _, err := x.Exec(`INSERT INTO job_pids (row_id, pid) VALUES (?, ?)`, rowID, pid); err != nil {
		return fmt.Errorf("register pid %d for row %d: %w", pid, rowID, err)
	}
	return nil
}

// GetPid returns the live PID registered for row_id, if any.
func GetPid(q Queryer, rowID int64) (pid int, ok bool, err error) {
	err = q.QueryRow(`SELECT pid FROM job_pids WHERE row_id = ?`, rowID).Scan(&pid)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("get pid for row %d: %w", rowID, err)
	}
	return pid, true, nil
}

// GetLabelByPid resolves the job id owning a live pid.
func GetLabelByPid(q Queryer, pid int) (id string, ok bool, err error) {
	err = q.QueryRow(`SELECT jobs.id FROM job_pids JOIN jobs ON jobs.row_id = job_pids.row_id WHERE job_pids.pid = ?`, pid).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get label for pid %d: %w", pid, err)
	}
	return id, true, nil
}

// releasePid removes pid's registration and returns the row_id it was
// bound to, so the caller can drive that job's state machine. Used by both
// SetExitStatus and SetSignalStatus, which differ only in what the
// supervisor does with the terminal outcome afterwards (spec.md §4.2).
func releasePid(x DBTX, pid int) (rowID int64, err error) {
	err = x.QueryRow(`SELECT row_id FROM job_pids WHERE pid = ?`, pid).Scan(&rowID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, apperrors.New(apperrors.KindNotFound, fmt.Errorf("pid %d", pid))
	}
	if err != nil {
		return 0, fmt.Errorf("find row for pid %d: %w", pid, err)
	}
	if _, err := x.Exec(`DELETE FROM job_pids WHERE pid = ?`, pid); err != nil {
		return 0, fmt.Errorf("release pid %d: %w", pid, err)
	}
	return rowID, nil
}

// SetExitStatus is the registry's clean-exit terminal-outcome call (spec.md
// §6), called when pid exited without a signal. job_pids is a volatile
// pid->row_id registry only (truncated whenever the catalog reopens, per
// §4.6), not a history table, so code itself has nothing to persist into
// here; the actual terminal outcome is recorded by the caller via
// runtimestate.Record immediately after release. code is accepted to keep
// the call site self-describing and symmetric with SetSignalStatus, and so
// a future persisted exit-history table has an obvious home to slot into.
func SetExitStatus(x DBTX, pid int, code int) (rowID int64, err error) {
	return releasePid(x, pid)
}

// SetSignalStatus is the registry's signaled-exit terminal-outcome call,
// called when pid was killed by signum rather than exiting on its own. See
// SetExitStatus: the registry itself is volatile, so signum is for call-site
// clarity, not storage.
func SetSignalStatus(x DBTX, pid int, signum int) (rowID int64, err error) {
	return releasePid(x, pid)
}
