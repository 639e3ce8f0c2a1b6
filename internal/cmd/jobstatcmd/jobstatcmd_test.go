package jobstatcmd

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/3leaps/jobd/internal/catalog"
	"github.com/3leaps/jobd/internal/manifest"
)

func runCmd(t *testing.T, args ...string) (stdout string, err error) {
	t.Helper()
	var buf bytes.Buffer
	RootCmd.SetOut(&buf)
	RootCmd.SetErr(&buf)
	RootCmd.SetArgs(args)
	err = RootCmd.Execute()
	return buf.String(), err
}

func seedCatalog(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "catalog.db")
	c, err := catalog.Create(path)
	require.NoError(t, err)
	_, err = c.Import(context.Background(), []*manifest.Record{
		{ID: "zeta", Command: "true", Enable: true},
		{ID: "alpha", Command: "true", Enable: true},
	})
	require.NoError(t, err)
	require.NoError(t, c.Close())
	return path
}

func TestJobstat_TableFormatListsIDsSorted(t *testing.T) {
	path := seedCatalog(t)
	t.Setenv("JOBD_DB_PATH", path)

	out, err := runCmd(t, "--format", "table")
	require.NoError(t, err)
	assert.Equal(t, "alpha\nzeta\n", out)
}

func TestJobstat_JSONFormat(t *testing.T) {
	path := seedCatalog(t)
	t.Setenv("JOBD_DB_PATH", path)

	out, err := runCmd(t, "--format", "json")
	require.NoError(t, err)
	assert.Contains(t, out, "\"alpha\"")
}

func TestJobstat_UnknownFormatErrors(t *testing.T) {
	path := seedCatalog(t)
	t.Setenv("JOBD_DB_PATH", path)

	_, err := runCmd(t, "--format", "xml")
	assert.Error(t, err)
}
