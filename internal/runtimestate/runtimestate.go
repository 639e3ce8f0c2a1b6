// Package runtimestate persists one status record per job under the
// supervisor's runtime directory (spec.md §6: "a per-supervisor runtime
// directory containing one status record per job, name <id>.json").
//
// Writes are atomic (temp file + rename) so a reader never observes a
// half-written record, following the same pattern the catalog's teacher
// lineage uses for its own per-job JSON records.
package runtimestate

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Record mirrors spec.md §6's status record fields exactly.
type Record struct {
	JobStatusAPI   int    `json:"JobStatusAPI"`
	Pid            int    `json:"Pid"`
	LastExitStatus int    `json:"LastExitStatus"`
	TermSignal     int    `json:"TermSignal"`
	Label          string `json:"Label"`
}

// Store writes and reads Records under a root directory, one file per job.
type Store struct {
	root string
}

// NewStore returns a Store rooted at dir. dir is created lazily on first
// write, not at construction, so a read-only caller (jobstat) never
// creates directories it doesn't own.
func NewStore(dir string) *Store {
	return &Store{root: strings.TrimSpace(dir)}
}

// RootDir returns the directory Records are stored under.
func (s *Store) RootDir() string {
	return s.root
}

func (s *Store) path(jobID string) string {
	return filepath.Join(s.root, jobID+".json")
}

// Write persists rec for jobID atomically: a temp file in the same
// directory is written and fsynced, then renamed over the final path, so a
// concurrent reader (jobstat, or the supervisor restarting) never sees a
// torn record.
func (s *Store) Write(jobID string, rec Record) error {
	jobID = strings.TrimSpace(jobID)
	if jobID == "" {
		return fmt.Errorf("job id is required")
	}
	if s.root == "" {
		return fmt.Errorf("runtime state root is empty")
	}
	if err := os.MkdirAll(s.root, 0o755); err != nil {
		return fmt.Errorf("create runtime state dir: %w", err)
	}

	b, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal runtime state for %q: %w", jobID, err)
	}
	b = append(b, '\n')

	tmp, err := os.CreateTemp(s.root, jobID+".json.tmp.*")
	if err != nil {
		return fmt.Errorf("create temp runtime state file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp runtime state for %q: %w", jobID, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync temp runtime state for %q: %w", jobID, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp runtime state for %q: %w", jobID, err)
	}
	if err := os.Rename(tmpName, s.path(jobID)); err != nil {
		return fmt.Errorf("rename runtime state for %q: %w", jobID, err)
	}
	return nil
}

// Read loads the Record for jobID. A missing file is reported via the
// returned error wrapping os.ErrNotExist, checkable with errors.Is.
func (s *Store) Read(jobID string) (Record, error) {
	b, err := os.ReadFile(s.path(jobID))
	if err != nil {
		return Record{}, err
	}
	var rec Record
	if err := json.Unmarshal(b, &rec); err != nil {
		return Record{}, fmt.Errorf("parse runtime state for %q: %w", jobID, err)
	}
	return rec, nil
}

// Remove deletes jobID's status record, if present. Used when a job is
// deleted from the catalog so stale runtime state doesn't linger.
func (s *Store) Remove(jobID string) error {
	err := os.Remove(s.path(jobID))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove runtime state for %q: %w", jobID, err)
	}
	return nil
}
