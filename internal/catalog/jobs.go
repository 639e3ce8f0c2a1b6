package catalog

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/3leaps/jobd/internal/apperrors"
	"github.com/3leaps/jobd/internal/jobstate"
	"github.com/3leaps/jobd/internal/manifest"
)

// Insert upserts a job by id within tx: replacing row contents but
// preserving row_id if the id already exists, otherwise allocating a new
// row_id (spec.md §4.2). before/after are expanded into job_edges; a
// referenced job that hasn't been imported yet is tolerated (a soft edge,
// re-resolved at solve time).
func Insert(tx *sql.Tx, m *manifest.Record) (int64, error) {
	rowID, isNew, err := upsertJobRow(tx, m)
	if err != nil {
		return 0, err
	}

	if err := replaceOrdered(tx, "job_env", rowID, m.EnvironmentVariables); err != nil {
		return 0, err
	}
	if err := replaceOrdered(tx, "job_options", rowID, m.Options); err != nil {
		return 0, err
	}
	if err := replaceOwnedEdges(tx, m); err != nil {
		return 0, err
	}

	if isNew {
		if _, err := tx.Exec(`UPDATE jobs SET state = ? WHERE row_id = ?`, jobstate.Stopped, rowID); err != nil {
			return 0, fmt.Errorf("initialize job state: %w", err)
		}
	} else {
		// Re-importing a job in Error returns it to Stopped (spec.md §4.4).
		if _, err := tx.Exec(`UPDATE jobs SET state = ? WHERE row_id = ? AND state = ?`,
			string(jobstate.Stopped), rowID, string(jobstate.Error)); err != nil {
			return 0, fmt.Errorf("reset errored job state: %w", err)
		}
	}

	return rowID, nil
}

func upsertJobRow(tx *sql.Tx, m *manifest.Record) (rowID int64, isNew bool, err error) {
	var existing int64
	err = tx.QueryRow(`SELECT row_id FROM jobs WHERE id = ?`, m.ID).Scan(&existing)
	switch {
	case err == nil:
		rowID = existing
	case errors.Is(err, sql.ErrNoRows):
		isNew = true
	default:
		return 0, false, fmt.Errorf("lookup job %q: %w", m.ID, err)
	}

	if isNew {
		res, err := tx.Exec(insertJobSQL,
			m.ID, m.Command, m.Description, m.Enable, m.Exclusive, m.KeepAlive,
			m.RestartAfter, m.Title, m.RootDirectory, m.WorkingDirectory,
			m.StandardInPath, m.StandardOutPath, m.StandardErrPath,
			m.Umask, m.UID, m.GID, m.UserName, m.GroupName, m.InitGroups,
		)
		if err != nil {
			return 0, false, fmt.Errorf("insert job %q: %w", m.ID, err)
		}
		rowID, err = res.LastInsertId()
		if err != nil {
			return 0, false, fmt.Errorf("resolve new row id for %q: %w", m.ID, err)
		}
		return rowID, true, nil
	}

	_, err = tx.Exec(updateJobSQL,
		m.Command, m.Description, m.Enable, m.Exclusive, m.KeepAlive,
		m.RestartAfter, m.Title, m.RootDirectory, m.WorkingDirectory,
		m.StandardInPath, m.StandardOutPath, m.StandardErrPath,
		m.Umask, m.UID, m.GID, m.UserName, m.GroupName, m.InitGroups,
		rowID,
	)
	if err != nil {
		return 0, false, fmt.Errorf("update job %q: %w", m.ID, err)
	}
	return rowID, false, nil
}

const insertJobSQL = `
INSERT INTO jobs (
	id, command, description, enable, exclusive, keep_alive, restart_after,
	title, root_directory, working_directory, standard_in_path,
	standard_out_path, standard_err_path, umask, uid, gid, user_name,
	group_name, init_groups
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

const updateJobSQL = `
UPDATE jobs SET
	command = ?, description = ?, enable = ?, exclusive = ?, keep_alive = ?,
	restart_after = ?, title = ?, root_directory = ?, working_directory = ?,
	standard_in_path = ?, standard_out_path = ?, standard_err_path = ?,
	umask = ?, uid = ?, gid = ?, user_name = ?, group_name = ?, init_groups = ?
WHERE row_id = ?`

func replaceOrdered(tx *sql.Tx, table string, rowID int64, values []string) error {
	if _, err := tx.Exec(fmt.Sprintf(`DELETE FROM %s WHERE row_id = ?`, table), rowID); err != nil {
		return fmt.Errorf("clear %s for row %d: %w", table, rowID, err)
	}
	for i, v := range values {
		if _, err := tx.Exec(fmt.Sprintf(`INSERT INTO %s (row_id, ordinal, value) VALUES (?, ?, ?)`, table), rowID, i, v); err != nil {
			return fmt.Errorf("insert %s[%d] for row %d: %w", table, i, rowID, err)
		}
	}
	return nil
}

// replaceOwnedEdges deletes the edges m's manifest previously declared and
// re-derives them from its current before/after lists (spec.md §3: "Edges
// are created/destroyed atomically with their owning job").
func replaceOwnedEdges(tx *sql.Tx, m *manifest.Record) error {
	if _, err := tx.Exec(`DELETE FROM job_edges WHERE owner_id = ?`, m.ID); err != nil {
		return fmt.Errorf("clear edges owned by %q: %w", m.ID, err)
	}

	upsert := `INSERT INTO job_edges (predecessor_id, successor_id, owner_id) VALUES (?, ?, ?)
		ON CONFLICT (predecessor_id, successor_id) DO UPDATE SET owner_id = excluded.owner_id`

	for _, successor := range m.Before {
		if _, err := tx.Exec(upsert, m.ID, successor, m.ID); err != nil {
			return fmt.Errorf("insert before-edge %s -> %s: %w", m.ID, successor, err)
		}
	}
	for _, predecessor := range m.After {
		if _, err := tx.Exec(upsert, predecessor, m.ID, m.ID); err != nil {
			return fmt.Errorf("insert after-edge %s -> %s: %w", predecessor, m.ID, err)
		}
	}
	return nil
}

// SelectAll returns every job, stable-ordered by id (spec.md §4.2, §4.7).
func SelectAll(q Queryer) ([]Job, error) {
	rows, err := q.Query(`SELECT row_id, id, state FROM jobs ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("select all jobs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var jobs []Job
	for rows.Next() {
		var j Job
		var state string
		if err := rows.Scan(&j.RowID, &j.ID, &state); err != nil {
			return nil, fmt.Errorf("scan job row: %w", err)
		}
		j.State = jobstate.State(state)
		jobs = append(jobs, j)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range jobs {
		full, err := loadJobByRowID(q, jobs[i].RowID)
		if err != nil {
			return nil, err
		}
		jobs[i] = *full
	}
	return jobs, nil
}

// SetState persists a job's lifecycle state, independent of any other
// column. Callers compute the next state via internal/jobstate and persist
// it here so a reader never observes the old state alongside a live PID
// for the new one (spec.md §5 ordering guarantee).
func SetState(x DBTX, rowID int64, state jobstate.State) error {
	if _, err := x.Exec(`UPDATE jobs SET state = ? WHERE row_id = ?`, string(state), rowID); err != nil {
		return fmt.Errorf("set state for row %d: %w", rowID, err)
	}
	return nil
}

// SetEnable flips the enable flag, used by disable() (spec.md §4.4 "any ->
// disable() -> Stopped") without requiring a full re-import.
func SetEnable(x DBTX, rowID int64, enable bool) error {
	if _, err := x.Exec(`UPDATE jobs SET enable = ? WHERE row_id = ?`, enable, rowID); err != nil {
		return fmt.Errorf("set enable for row %d: %w", rowID, err)
	}
	return nil
}

// FindByID returns the job with the given human label.
func FindByID(q Queryer, id string) (*Job, error) {
	var rowID int64
	err := q.QueryRow(`SELECT row_id FROM jobs WHERE id = ?`, id).Scan(&rowID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.New(apperrors.KindNotFound, fmt.Errorf("job %q", id)).WithJobID(id)
	}
	if err != nil {
		return nil, fmt.Errorf("find job %q: %w", id, err)
	}
	return loadJobByRowID(q, rowID)
}

// Queryer is satisfied by both *sql.DB and *sql.Tx, so read paths work
// inside or outside a transaction.
type Queryer interface {
	Query(query string, args ...any) (*sql.Rows, error)
	QueryRow(query string, args ...any) *sql.Row
}

// FindByRowID loads a job by its stable row_id, used by the supervisor
// when an exit event resolves to a row_id via the PID registry rather
// than a human label.
func FindByRowID(q Queryer, rowID int64) (*Job, error) {
	return loadJobByRowID(q, rowID)
}

func loadJobByRowID(q Queryer, rowID int64) (*Job, error) {
	row := q.QueryRow(`SELECT
		row_id, id, state, command, description, enable, exclusive, keep_alive,
		restart_after, title, root_directory, working_directory,
		standard_in_path, standard_out_path, standard_err_path, umask, uid,
		gid, user_name, group_name, init_groups
		FROM jobs WHERE row_id = ?`, rowID)

	var j Job
	var state string
	m := &j.Manifest
	if err := row.Scan(
		&j.RowID, &j.ID, &state, &m.Command, &m.Description, &m.Enable,
		&m.Exclusive, &m.KeepAlive, &m.RestartAfter, &m.Title, &m.RootDirectory,
		&m.WorkingDirectory, &m.StandardInPath, &m.StandardOutPath,
		&m.StandardErrPath, &m.Umask, &m.UID, &m.GID, &m.UserName,
		&m.GroupName, &m.InitGroups,
	); err != nil {
		return nil, fmt.Errorf("load job row %d: %w", rowID, err)
	}
	j.State = jobstate.State(state)
	m.ID = j.ID

	env, err := loadOrdered(q, "job_env", rowID)
	if err != nil {
		return nil, err
	}
	m.EnvironmentVariables = env

	opts, err := loadOrdered(q, "job_options", rowID)
	if err != nil {
		return nil, err
	}
	m.Options = opts

	before, after, err := loadEdgeLists(q, j.ID)
	if err != nil {
		return nil, err
	}
	m.Before = before
	m.After = after

	return &j, nil
}

func loadOrdered(q Queryer, table string, rowID int64) ([]string, error) {
	rows, err := q.Query(fmt.Sprintf(`SELECT value FROM %s WHERE row_id = ? ORDER BY ordinal`, table), rowID)
	if err != nil {
		return nil, fmt.Errorf("load %s for row %d: %w", table, rowID, err)
	}
	defer func() { _ = rows.Close() }()

	var out []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func loadEdgeLists(q Queryer, id string) (before, after []string, err error) {
	rows, err := q.Query(`SELECT successor_id FROM job_edges WHERE owner_id = ? AND predecessor_id = ?`, id, id)
	if err != nil {
		return nil, nil, fmt.Errorf("load before-edges for %q: %w", id, err)
	}
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			_ = rows.Close()
			return nil, nil, err
		}
		before = append(before, v)
	}
	if err := rows.Close(); err != nil {
		return nil, nil, err
	}

	rows, err = q.Query(`SELECT predecessor_id FROM job_edges WHERE owner_id = ? AND successor_id = ?`, id, id)
	if err != nil {
		return nil, nil, fmt.Errorf("load after-edges for %q: %w", id, err)
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, nil, err
		}
		after = append(after, v)
	}
	return before, after, rows.Err()
}
