package pidregistry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegister_RoundTrip(t *testing.T) {
	r := New()
	require.NoError(t, r.Register(1, 100))

	pid, ok := r.PidFor(1)
	require.True(t, ok)
	assert.Equal(t, 100, pid)

	row, ok := r.RowFor(100)
	require.True(t, ok)
	assert.Equal(t, int64(1), row)
}

func TestRegister_DuplicateRowRejected(t *testing.T) {
	r := New()
	require.NoError(t, r.Register(1, 100))
	err := r.Register(1, 200)
	assert.Error(t, err)
}

func TestRegister_DuplicatePidRejected(t *testing.T) {
	r := New()
	require.NoError(t, r.Register(1, 100))
	err := r.Register(2, 100)
	assert.Error(t, err)
}

func TestRelease_ClearsBothSides(t *testing.T) {
	r := New()
	require.NoError(t, r.Register(1, 100))

	row, ok := r.Release(100)
	require.True(t, ok)
	assert.Equal(t, int64(1), row)

	_, ok = r.PidFor(1)
	assert.False(t, ok)
	_, ok = r.RowFor(100)
	assert.False(t, ok)
}

func TestReleaseRow_ClearsBothSides(t *testing.T) {
	r := New()
	require.NoError(t, r.Register(1, 100))

	pid, ok := r.ReleaseRow(1)
	require.True(t, ok)
	assert.Equal(t, 100, pid)
	assert.Equal(t, 0, r.Len())
}

func TestRelease_UnknownPidIsNoop(t *testing.T) {
	r := New()
	_, ok := r.Release(999)
	assert.False(t, ok)
}

func TestSnapshot_IsACopy(t *testing.T) {
	r := New()
	require.NoError(t, r.Register(1, 100))

	snap := r.Snapshot()
	assert.Equal(t, map[int64]int{1: 100}, snap)

	snap[2] = 200
	_, ok := r.PidFor(2)
	assert.False(t, ok, "mutating the snapshot must not affect the registry")
}
