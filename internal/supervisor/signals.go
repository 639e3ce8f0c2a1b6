package supervisor

import (
	"os"
	"syscall"
)

// sendTerm and sendKill deliver the two signals the grace-period escalation
// in spec.md §5 needs. Both route through os.Process rather than raw
// syscall.Kill so stale/reused PIDs surface as a normal error instead of
// silently signaling an unrelated process.
func sendTerm(pid int) error {
	return signalPid(pid, syscall.SIGTERM)
}

func sendKill(pid int) error {
	return signalPid(pid, syscall.SIGKILL)
}

func signalPid(pid int, sig syscall.Signal) error {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return err
	}
	return proc.Signal(sig)
}
