package supervisor

import (
	"fmt"
	"os"
	"os/user"

	"github.com/3leaps/jobd/internal/manifest"
)

// preflightResult records one precondition check performed before a job is
// forked, so a start failure names which step would have failed rather
// than surfacing a bare fork/exec error (spec.md §4.5, §7 StartFailed
// "carries which step failed").
type preflightResult struct {
	Check string
	OK    bool
	Err   error
}

// runPreflight checks, without forking, that user_name (if set) exists,
// the identity resolves, and root_directory and working_directory (each if
// set) exist and are directories. The stdio redirection paths are not
// checked here; a failure to open them surfaces from buildCmd. This is not
// in spec.md's component list; it supplements C5 so a misconfigured
// manifest fails fast with a named step instead of a bare errno from the
// child setup sequence.
func runPreflight(m *manifest.Record) []preflightResult {
	var results []preflightResult

	if m.UserName != "" {
		_, lookupErr := user.Lookup(m.UserName)
		results = append(results, preflightResult{Check: "user_name", OK: lookupErr == nil, Err: lookupErr})
	}

	_, err := resolveIdentity(m)
	results = append(results, preflightResult{Check: "resolve_credentials", OK: err == nil, Err: err})

	if m.RootDirectory != "" {
		info, statErr := os.Stat(m.RootDirectory)
		ok := statErr == nil && info.IsDir()
		var checkErr error
		switch {
		case statErr != nil:
			checkErr = statErr
		case !info.IsDir():
			checkErr = fmt.Errorf("root_directory %q is not a directory", m.RootDirectory)
		}
		results = append(results, preflightResult{Check: "root_directory", OK: ok, Err: checkErr})
	}

	if m.WorkingDirectory != "" {
		info, statErr := os.Stat(m.WorkingDirectory)
		ok := statErr == nil && info.IsDir()
		var checkErr error
		switch {
		case statErr != nil:
			checkErr = statErr
		case !info.IsDir():
			checkErr = fmt.Errorf("working_directory %q is not a directory", m.WorkingDirectory)
		}
		results = append(results, preflightResult{Check: "working_directory", OK: ok, Err: checkErr})
	}

	return results
}

// firstFailure returns the first failing result's check name and error, or
// ("", nil) if every check passed.
func firstFailure(results []preflightResult) (check string, err error) {
	for _, r := range results {
		if !r.OK {
			return r.Check, r.Err
		}
	}
	return "", nil
}
