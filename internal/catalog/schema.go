package catalog

// schema is the logical layout of spec.md §6, expressed as SQL for the
// embedded modernc.org/sqlite engine. job_pids is the volatile table:
// truncated whenever Create or a writable Open migrates the catalog (see
// clearVolatileTable in catalog.go).
const schema = `
CREATE TABLE IF NOT EXISTS jobs (
	row_id             INTEGER PRIMARY KEY AUTOINCREMENT,
	id                 TEXT NOT NULL UNIQUE,
	command            TEXT NOT NULL,
	description        TEXT NOT NULL DEFAULT '',
	state              TEXT NOT NULL DEFAULT 'unknown',
	enable             INTEGER NOT NULL DEFAULT 1,
	exclusive          INTEGER NOT NULL DEFAULT 0,
	keep_alive         INTEGER NOT NULL DEFAULT 0,
	restart_after      INTEGER NOT NULL DEFAULT 0,
	title              TEXT NOT NULL DEFAULT '',
	root_directory     TEXT NOT NULL DEFAULT '',
	working_directory  TEXT NOT NULL DEFAULT '',
	standard_in_path   TEXT NOT NULL DEFAULT '',
	standard_out_path  TEXT NOT NULL DEFAULT '',
	standard_err_path  TEXT NOT NULL DEFAULT '',
	umask              INTEGER NOT NULL DEFAULT 0,
	uid                INTEGER NOT NULL DEFAULT 0,
	gid                INTEGER NOT NULL DEFAULT 0,
	user_name          TEXT NOT NULL DEFAULT '',
	group_name         TEXT NOT NULL DEFAULT '',
	init_groups        INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS job_env (
	row_id  INTEGER NOT NULL REFERENCES jobs(row_id) ON DELETE CASCADE,
	ordinal INTEGER NOT NULL,
	value   TEXT NOT NULL,
	PRIMARY KEY (row_id, ordinal)
);

CREATE TABLE IF NOT EXISTS job_options (
	row_id  INTEGER NOT NULL REFERENCES jobs(row_id) ON DELETE CASCADE,
	ordinal INTEGER NOT NULL,
	value   TEXT NOT NULL,
	PRIMARY KEY (row_id, ordinal)
);

-- predecessor/successor store the *job id* (not row_id) for soft-edge
-- tolerance: an edge naming a not-yet-imported job is retained and
-- re-resolved to a row at solve time (spec §4.2). owner_id is whichever
-- job's manifest declared the edge (via before or after); re-importing
-- owner_id replaces only the edges it owns, per "edges are created/
-- destroyed atomically with their owning job" (spec §3 invariants).
CREATE TABLE IF NOT EXISTS job_edges (
	predecessor_id TEXT NOT NULL,
	successor_id   TEXT NOT NULL,
	owner_id       TEXT NOT NULL,
	UNIQUE (predecessor_id, successor_id)
);

CREATE TABLE IF NOT EXISTS job_pids (
	row_id     INTEGER NOT NULL UNIQUE REFERENCES jobs(row_id) ON DELETE CASCADE,
	pid        INTEGER NOT NULL UNIQUE,
	started_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`
