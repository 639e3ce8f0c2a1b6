// Package catalog is C2: durable, transactional persistence of jobs,
// dependency edges, and volatile PID registrations (spec.md §2, §3, §6).
//
// The embedded SQL engine is modernc.org/sqlite, a pure-Go, cgo-free
// driver — already reachable from this repo's dependency graph via
// fulmenhq/gofulmen's own transitive use of an embedded SQLite/libSQL
// engine, so this is not a new kind of runtime dependency for the stack,
// just a direct one. A gofrs/flock advisory lock on "<db>.lock" enforces
// spec.md §5's "exactly one writer process at a time" — sqlite itself
// serializes writers, but the lock gives a clear, fast failure instead of
// a blocked writer when two jobcfg/jobd processes race for the same file.
package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	"github.com/gofrs/flock"
	_ "modernc.org/sqlite"
)

// Catalog is the durable job store. It owns the database connection and,
// when opened for writing, an advisory file lock.
type Catalog struct {
	db   *sql.DB
	lock *flock.Flock
	path string
}

// Create initializes a new catalog at dbPath. It refuses if dbPath already
// exists, per spec.md §4.2.
func Create(dbPath string) (*Catalog, error) {
	if _, err := os.Stat(dbPath); err == nil {
		return nil, fmt.Errorf("catalog already exists at %s", dbPath)
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("stat %s: %w", dbPath, err)
	}

	c, err := openWithLock(dbPath, false)
	if err != nil {
		return nil, err
	}
	if err := c.migrate(); err != nil {
		_ = c.Close()
		return nil, err
	}
	return c, nil
}

// Open opens an existing catalog. readOnly governs whether a write lock is
// taken; readers (e.g. jobstat) never block a writer and are never blocked
// by one, per spec.md §4.7.
func Open(dbPath string, readOnly bool) (*Catalog, error) {
	if _, err := os.Stat(dbPath); err != nil {
		return nil, fmt.Errorf("open catalog %s: %w", dbPath, err)
	}
	c, err := openWithLock(dbPath, readOnly)
	if err != nil {
		return nil, err
	}
	if readOnly {
		// A read-only connection can't run the (idempotent but still
		// DDL/DML) migrate step; the catalog was already migrated by
		// whichever writer created or last reopened it.
		return c, nil
	}
	if err := c.migrate(); err != nil {
		_ = c.Close()
		return nil, err
	}
	return c, nil
}

func openWithLock(dbPath string, readOnly bool) (*Catalog, error) {
	dsn := dbPath
	if readOnly {
		dsn = dbPath + "?mode=ro"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite catalog %s: %w", dbPath, err)
	}
	db.SetMaxOpenConns(1) // sqlite has one writer; serialize through database/sql too

	c := &Catalog{db: db, path: dbPath}
	if !readOnly {
		c.lock = flock.New(dbPath + ".lock")
		locked, err := c.lock.TryLock()
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("acquire catalog lock: %w", err)
		}
		if !locked {
			_ = db.Close()
			return nil, fmt.Errorf("catalog %s is locked by another writer", dbPath)
		}
	}
	return c, nil
}

func (c *Catalog) migrate() error {
	_, err := c.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("apply catalog schema: %w", err)
	}
	return c.clearVolatileTable()
}

// clearVolatileTable truncates job_pids on startup, per spec.md §4.6/§9:
// any PID a previous supervisor process registered is presumed dead. The
// caller (supervisor startup) is responsible for moving those jobs' states
// to Stopped or Starting; this only clears the persisted mapping.
func (c *Catalog) clearVolatileTable() error {
	_, err := c.db.Exec("DELETE FROM job_pids")
	if err != nil {
		return fmt.Errorf("clear volatile pid table: %w", err)
	}
	return nil
}

// Close releases the database handle and, if held, the writer lock.
func (c *Catalog) Close() error {
	var lockErr error
	if c.lock != nil {
		lockErr = c.lock.Unlock()
	}
	dbErr := c.db.Close()
	if dbErr != nil {
		return dbErr
	}
	return lockErr
}

// DB exposes the underlying *sql.DB for read paths and single-statement
// writes that don't need an explicit transaction (the PID table ops, state
// updates). It satisfies both Queryer and DBTX.
func (c *Catalog) DB() *sql.DB {
	return c.db
}

// WithTx runs fn inside a single transaction, committing on success and
// rolling back on any error fn returns — the "caller's transaction" spec.md
// §4.2 refers to for insert, and the whole-directory-or-nothing semantics
// for import (§4.2, §8 S6).
func (c *Catalog) WithTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("%w (rollback also failed: %v)", err, rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
