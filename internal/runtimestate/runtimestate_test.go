package runtimestate

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteRead_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir)

	rec := Record{JobStatusAPI: 2, Pid: 4242, Label: "web"}
	require.NoError(t, s.Write("web", rec))

	got, err := s.Read("web")
	require.NoError(t, err)
	assert.Equal(t, rec, got)
}

func TestWrite_NoTempFilesLeftBehind(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir)
	require.NoError(t, s.Write("web", Record{Label: "web"}))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "web.json", entries[0].Name())
}

func TestRead_MissingFileIsNotExist(t *testing.T) {
	s := NewStore(t.TempDir())
	_, err := s.Read("ghost")
	assert.True(t, os.IsNotExist(err))
}

func TestRemove_DeletesRecord(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir)
	require.NoError(t, s.Write("web", Record{Label: "web"}))
	require.NoError(t, s.Remove("web"))

	_, err := os.Stat(filepath.Join(dir, "web.json"))
	assert.True(t, os.IsNotExist(err))
}

func TestRemove_MissingIsNoop(t *testing.T) {
	s := NewStore(t.TempDir())
	assert.NoError(t, s.Remove("ghost"))
}
