package supervisor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/3leaps/jobd/internal/manifest"
)

func TestRunPreflight_PassesForMinimalJob(t *testing.T) {
	m := &manifest.Record{ID: "web", Command: "true", Enable: true}
	results := runPreflight(m)
	check, err := firstFailure(results)
	assert.Empty(t, check)
	assert.NoError(t, err)
}

func TestRunPreflight_RejectsMissingRootDirectory(t *testing.T) {
	m := &manifest.Record{ID: "web", Command: "true", RootDirectory: "/no/such/chroot/target"}
	check, err := firstFailure(runPreflight(m))
	require.Error(t, err)
	assert.Equal(t, "root_directory", check)
}

func TestRunPreflight_RejectsMissingWorkingDirectory(t *testing.T) {
	m := &manifest.Record{ID: "web", Command: "true", WorkingDirectory: "/no/such/working/dir"}
	check, err := firstFailure(runPreflight(m))
	require.Error(t, err)
	assert.Equal(t, "working_directory", check)
}

func TestRunPreflight_RejectsUnknownUser(t *testing.T) {
	m := &manifest.Record{ID: "web", Command: "true", UserName: "no-such-user-should-exist"}
	check, err := firstFailure(runPreflight(m))
	require.Error(t, err)
	assert.Equal(t, "user_name", check)
}

func TestRunPreflight_AcceptsExistingDirectories(t *testing.T) {
	dir := t.TempDir()
	m := &manifest.Record{ID: "web", Command: "true", WorkingDirectory: dir, RootDirectory: dir}
	check, err := firstFailure(runPreflight(m))
	assert.Empty(t, check)
	assert.NoError(t, err)
}
