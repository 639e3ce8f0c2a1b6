package supervisor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/3leaps/jobd/internal/catalog"
	"github.com/3leaps/jobd/internal/jobstate"
	"github.com/3leaps/jobd/internal/manifest"
)

func newTestCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	c, err := catalog.Create(t.TempDir() + "/catalog.db")
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func pumpOneEvent(t *testing.T, s *Supervisor, ctx context.Context) {
	t.Helper()
	pumpOneEventTimeout(t, s, ctx, 2*time.Second)
}

func pumpOneEventTimeout(t *testing.T, s *Supervisor, ctx context.Context, timeout time.Duration) {
	t.Helper()
	select {
	case ev := <-s.events:
		s.handleEvent(ctx, ev)
	case <-time.After(timeout):
		t.Fatal("timed out waiting for a supervisor event")
	}
}

func TestStartJob_CleanExitWithoutKeepAliveEndsStopped(t *testing.T) {
	c := newTestCatalog(t)
	_, err := c.Import(context.Background(), []*manifest.Record{
		{ID: "once", Command: "true", Enable: true},
	})
	require.NoError(t, err)

	s := New(c, nil, nil)
	ctx := context.Background()

	require.NoError(t, s.StartJob(ctx, "once"))
	pumpOneEvent(t, s, ctx)

	job, err := catalog.FindByID(c.DB(), "once")
	require.NoError(t, err)
	assert.Equal(t, jobstate.Stopped, job.State)
}

func TestStartJob_NonzeroExitWithoutKeepAliveEndsError(t *testing.T) {
	c := newTestCatalog(t)
	_, err := c.Import(context.Background(), []*manifest.Record{
		{ID: "fails", Command: "false", Enable: true},
	})
	require.NoError(t, err)

	s := New(c, nil, nil)
	ctx := context.Background()

	require.NoError(t, s.StartJob(ctx, "fails"))
	pumpOneEvent(t, s, ctx)

	job, err := catalog.FindByID(c.DB(), "fails")
	require.NoError(t, err)
	assert.Equal(t, jobstate.Error, job.State)
}

func TestStartJob_KeepAliveSchedulesRestart(t *testing.T) {
	c := newTestCatalog(t)
	_, err := c.Import(context.Background(), []*manifest.Record{
		{ID: "respawn", Command: "true", Enable: true, KeepAlive: true, RestartAfter: 1},
	})
	require.NoError(t, err)

	s := New(c, nil, nil)
	ctx := context.Background()

	require.NoError(t, s.StartJob(ctx, "respawn"))
	pumpOneEvent(t, s, ctx) // child exit -> Starting, restart scheduled

	job, err := catalog.FindByID(c.DB(), "respawn")
	require.NoError(t, err)
	assert.Equal(t, jobstate.Starting, job.State)

	pumpOneEventTimeout(t, s, ctx, 3*time.Second) // eventRestartDue -> StartJob runs it again
	job, err = catalog.FindByID(c.DB(), "respawn")
	require.NoError(t, err)
	assert.Equal(t, jobstate.Running, job.State)
}

func TestStartJob_RejectsDisabledJob(t *testing.T) {
	c := newTestCatalog(t)
	_, err := c.Import(context.Background(), []*manifest.Record{
		{ID: "off", Command: "true", Enable: false},
	})
	require.NoError(t, err)

	s := New(c, nil, nil)
	err = s.StartJob(context.Background(), "off")
	assert.Error(t, err)
}

func TestStartJob_ExclusiveConflictRejectsSecondJob(t *testing.T) {
	c := newTestCatalog(t)
	_, err := c.Import(context.Background(), []*manifest.Record{
		{ID: "excl-a", Command: "sleep 5", Enable: true, Exclusive: true},
		{ID: "excl-b", Command: "sleep 5", Enable: true, Exclusive: true},
	})
	require.NoError(t, err)

	s := New(c, nil, nil)
	ctx := context.Background()
	require.NoError(t, s.StartJob(ctx, "excl-a"))

	err = s.StartJob(ctx, "excl-b")
	assert.Error(t, err)

	require.NoError(t, s.StopJob("excl-a"))
}

func TestStopJob_SendsTermAndEndsStopped(t *testing.T) {
	c := newTestCatalog(t)
	_, err := c.Import(context.Background(), []*manifest.Record{
		{ID: "longrun", Command: "sleep 30", Enable: true},
	})
	require.NoError(t, err)

	s := New(c, nil, nil)
	ctx := context.Background()
	require.NoError(t, s.StartJob(ctx, "longrun"))
	require.NoError(t, s.StopJob("longrun"))

	pumpOneEvent(t, s, ctx) // the signaled child's exit event

	job, err := catalog.FindByID(c.DB(), "longrun")
	require.NoError(t, err)
	assert.Equal(t, jobstate.Stopped, job.State)
}

func TestDisableJob_StopsARunningJob(t *testing.T) {
	c := newTestCatalog(t)
	_, err := c.Import(context.Background(), []*manifest.Record{
		{ID: "toggled", Command: "sleep 30", Enable: true},
	})
	require.NoError(t, err)

	s := New(c, nil, nil)
	ctx := context.Background()
	require.NoError(t, s.StartJob(ctx, "toggled"))

	require.NoError(t, s.DisableJob("toggled"))
	pumpOneEvent(t, s, ctx)

	job, err := catalog.FindByID(c.DB(), "toggled")
	require.NoError(t, err)
	assert.False(t, job.Manifest.Enable)
	assert.Equal(t, jobstate.Stopped, job.State)
}

func TestReconcile_StartsEverythingEnabledAndIndependent(t *testing.T) {
	c := newTestCatalog(t)
	_, err := c.Import(context.Background(), []*manifest.Record{
		{ID: "a", Command: "sleep 30", Enable: true},
		{ID: "b", Command: "sleep 30", Enable: true},
		{ID: "disabled", Command: "sleep 30", Enable: false},
	})
	require.NoError(t, err)

	s := New(c, nil, nil)
	ctx := context.Background()
	require.NoError(t, s.Reconcile(ctx))

	jobA, err := catalog.FindByID(c.DB(), "a")
	require.NoError(t, err)
	assert.Equal(t, jobstate.Running, jobA.State)

	jobDisabled, err := catalog.FindByID(c.DB(), "disabled")
	require.NoError(t, err)
	assert.Equal(t, jobstate.Stopped, jobDisabled.State)

	require.NoError(t, s.StopJob("a"))
	require.NoError(t, s.StopJob("b"))
}
