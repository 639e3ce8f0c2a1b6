package catalog

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/3leaps/jobd/internal/jobstate"
	"github.com/3leaps/jobd/internal/manifest"
)

func newTestCatalog(t *testing.T) *Catalog {
	t.Helper()
	path := filepath.Join(t.TempDir(), "catalog.db")
	c, err := Create(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestCreate_RefusesExistingPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.db")
	c, err := Create(path)
	require.NoError(t, err)
	require.NoError(t, c.Close())

	_, err = Create(path)
	assert.Error(t, err)
}

func TestOpen_RequiresExistingPath(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing.db"), false)
	assert.Error(t, err)
}

func TestInsertAndFindByID(t *testing.T) {
	c := newTestCatalog(t)
	m := &manifest.Record{ID: "web", Command: "true", Enable: true}

	_, err := c.Import(context.Background(), []*manifest.Record{m})
	require.NoError(t, err)

	job, err := FindByID(c.DB(), "web")
	require.NoError(t, err)
	assert.Equal(t, "web", job.ID)
	assert.Equal(t, jobstate.Stopped, job.State)
	assert.Equal(t, "true", job.Manifest.Command)
}

func TestFindByID_MissingReturnsNotFound(t *testing.T) {
	c := newTestCatalog(t)
	_, err := FindByID(c.DB(), "ghost")
	assert.Error(t, err)
}

func TestSelectAll_StableOrderByID(t *testing.T) {
	c := newTestCatalog(t)
	records := []*manifest.Record{
		{ID: "zeta", Command: "true", Enable: true},
		{ID: "alpha", Command: "true", Enable: true},
		{ID: "mid", Command: "true", Enable: true},
	}
	_, err := c.Import(context.Background(), records)
	require.NoError(t, err)

	jobs, err := SelectAll(c.DB())
	require.NoError(t, err)
	require.Len(t, jobs, 3)
	assert.Equal(t, []string{"alpha", "mid", "zeta"}, []string{jobs[0].ID, jobs[1].ID, jobs[2].ID})
}

func TestImport_RollsBackWholeBatchOnFailure(t *testing.T) {
	c := newTestCatalog(t)
	good1 := &manifest.Record{ID: "a", Command: "true", Enable: true}
	good2 := &manifest.Record{ID: "b", Command: "true", Enable: true}
	bad := &manifest.Record{ID: "bad", Command: "true", Enable: true}

	// catalog.Insert has no validation of its own, so a trigger makes the
	// third insert fail inside the transaction, after the first two rows
	// were already written.
	_, err := c.DB().Exec(`CREATE TRIGGER reject_bad BEFORE INSERT ON jobs
		WHEN NEW.id = 'bad' BEGIN SELECT RAISE(ABORT, 'forced failure'); END`)
	require.NoError(t, err)

	_, err = c.Import(context.Background(), []*manifest.Record{good1, good2, bad})
	require.Error(t, err)

	jobs, err := SelectAll(c.DB())
	require.NoError(t, err)
	assert.Empty(t, jobs)
}

func TestInsert_IdempotentReimportPreservesRowID(t *testing.T) {
	c := newTestCatalog(t)
	m := &manifest.Record{ID: "web", Command: "true", Enable: true, Before: []string{"db"}}

	rowIDs1, err := c.Import(context.Background(), []*manifest.Record{m})
	require.NoError(t, err)

	rowIDs2, err := c.Import(context.Background(), []*manifest.Record{m})
	require.NoError(t, err)

	assert.Equal(t, rowIDs1, rowIDs2)

	edges, err := AllEdges(c.DB())
	require.NoError(t, err)
	assert.Len(t, edges, 1)
}

func TestInsert_SoftEdgeToleratesForwardReference(t *testing.T) {
	c := newTestCatalog(t)
	a := &manifest.Record{ID: "a", Command: "true", Enable: true, After: []string{"not-yet-imported"}}

	_, err := c.Import(context.Background(), []*manifest.Record{a})
	require.NoError(t, err)

	edges, err := AllEdges(c.DB())
	require.NoError(t, err)
	require.Len(t, edges, 1)
	assert.Equal(t, "not-yet-imported", edges[0].Predecessor)
	assert.Equal(t, "a", edges[0].Successor)
}

func TestPidRegistration_RoundTrip(t *testing.T) {
	c := newTestCatalog(t)
	m := &manifest.Record{ID: "web", Command: "true", Enable: true}
	rowIDs, err := c.Import(context.Background(), []*manifest.Record{m})
	require.NoError(t, err)
	rowID := rowIDs[0]

	require.NoError(t, RegisterPid(c.DB(), rowID, 4242))

	pid, ok, err := GetPid(c.DB(), rowID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 4242, pid)

	label, ok, err := GetLabelByPid(c.DB(), 4242)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "web", label)

	_, err = SetExitStatus(c.DB(), 4242, 0)
	require.NoError(t, err)

	_, ok, err = GetPid(c.DB(), rowID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPidRegistration_DuplicateRejected(t *testing.T) {
	c := newTestCatalog(t)
	m := &manifest.Record{ID: "web", Command: "true", Enable: true}
	rowIDs, err := c.Import(context.Background(), []*manifest.Record{m})
	require.NoError(t, err)
	rowID := rowIDs[0]

	require.NoError(t, RegisterPid(c.DB(), rowID, 1))
	assert.Error(t, RegisterPid(c.DB(), rowID, 2))
}

func TestClearVolatileTable_RunsOnReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.db")
	c, err := Create(path)
	require.NoError(t, err)
	m := &manifest.Record{ID: "web", Command: "true", Enable: true}
	rowIDs, err := c.Import(context.Background(), []*manifest.Record{m})
	require.NoError(t, err)
	require.NoError(t, RegisterPid(c.DB(), rowIDs[0], 999))
	require.NoError(t, c.Close())

	c2, err := Open(path, false)
	require.NoError(t, err)
	defer func() { _ = c2.Close() }()

	_, ok, err := GetPid(c2.DB(), rowIDs[0])
	require.NoError(t, err)
	assert.False(t, ok, "job_pids must be truncated on reopen")
}
