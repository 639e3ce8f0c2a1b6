package supervisor

import (
	"fmt"
	"os"
	"os/exec"
	"syscall"

	"github.com/3leaps/jobd/internal/manifest"
)

// buildCmd assembles the exec.Cmd for m following spec.md §4.5's ordered
// child-setup sequence (steps 1-9). Go's runtime forks and execs atomically
// (no arbitrary code runs between clone and exec), so steps that classic
// preexec hooks would perform in the child are instead expressed through
// os/exec's own primitives: SysProcAttr.Credential for the uid/gid/groups
// switch, SysProcAttr.Chroot for the root_directory jail, Dir for chdir,
// and pre-opened files for stdio redirection. Umask is process-wide on
// Unix, so it is set on the calling thread immediately before Start and
// restored immediately after, mirroring how a single-threaded supervisor
// would apply it around fork in the original source.
func buildCmd(m *manifest.Record) (cmd *exec.Cmd, cleanup func(), err error) {
	id, err := resolveIdentity(m)
	if err != nil {
		return nil, nil, fmt.Errorf("resolve credentials: %w", err)
	}

	stdin, stdout, stderr, closers, err := openStdio(m)
	if err != nil {
		return nil, nil, fmt.Errorf("redirect stdio: %w", err)
	}
	cleanup = func() {
		for _, c := range closers {
			_ = c.Close()
		}
	}

	dir := m.WorkingDirectory
	if dir == "" {
		dir = id.Home
	}
	if dir == "" {
		dir = "/"
	}

	cmd = exec.Command("/bin/sh", "-c", m.Command)
	cmd.Dir = dir
	cmd.Stdin = stdin
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	cmd.Env = environment(m, id)

	attr := &syscall.SysProcAttr{
		Credential: &syscall.Credential{
			Uid:    id.UID,
			Gid:    id.GID,
			Groups: id.Groups,
		},
		// Setsid isolates the child from the supervisor's controlling
		// terminal and signal group, so a SIGTERM meant for one job never
		// fans out to its siblings.
		Setsid: true,
	}
	if m.RootDirectory != "" {
		attr.Chroot = m.RootDirectory
	}
	cmd.SysProcAttr = attr

	return cmd, cleanup, nil
}

// openStdio opens the redirection targets for stdin/stdout/stderr per
// spec.md §4.5 step 5: stdin defaults to /dev/null read-only; stdout/stderr
// default to the supervisor's own stderr and otherwise append, creating
// with mode 0600.
func openStdio(m *manifest.Record) (stdin, stdout, stderr *os.File, closers []*os.File, err error) {
	in := m.StandardInPath
	if in == "" {
		in = os.DevNull
	}
	stdinFile, err := os.OpenFile(in, os.O_RDONLY, 0)
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("open stdin %q: %w", in, err)
	}
	closers = append(closers, stdinFile)

	stdoutFile, err := openOutput(m.StandardOutPath, os.Stderr)
	if err != nil {
		closeAll(closers)
		return nil, nil, nil, nil, fmt.Errorf("open stdout: %w", err)
	}
	if stdoutFile != os.Stderr {
		closers = append(closers, stdoutFile)
	}

	stderrFile, err := openOutput(m.StandardErrPath, os.Stderr)
	if err != nil {
		closeAll(closers)
		return nil, nil, nil, nil, fmt.Errorf("open stderr: %w", err)
	}
	if stderrFile != os.Stderr {
		closers = append(closers, stderrFile)
	}

	return stdinFile, stdoutFile, stderrFile, closers, nil
}

func openOutput(path string, fallback *os.File) (*os.File, error) {
	if path == "" {
		return fallback, nil
	}
	return os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o600)
}

func closeAll(files []*os.File) {
	for _, f := range files {
		_ = f.Close()
	}
}

// withUmask sets the process umask for the duration of fn and restores the
// previous value afterward. Umask is process-wide, not per-thread-group on
// Linux, so this narrows the window rather than eliminating the race; the
// supervisor's own event loop is single-threaded (spec.md §5) which keeps
// that window to just the Start call.
func withUmask(mask uint32, fn func() error) error {
	old := syscall.Umask(int(mask))
	defer syscall.Umask(old)
	return fn()
}
