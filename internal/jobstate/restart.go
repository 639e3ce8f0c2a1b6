package jobstate

import (
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// CrashLoopWindow and CrashLoopMaxRestarts bound keep_alive restarts: a job
// that exceeds CrashLoopMaxRestarts within CrashLoopWindow is judged to be
// crash-looping and is escalated to Error instead of restarted again, even
// though spec.md's restart_after nominal delay (§9) would otherwise have let
// it retry forever.
const (
	CrashLoopWindow      = 5 * time.Minute
	CrashLoopMaxRestarts = 10
)

// CrashLoopDetector tracks repeated keep_alive restarts for a single job.
// It uses backoff.ExponentialBackOff purely as a windowed elapsed-time
// clock: NextBackOff returning backoff.Stop means the job has been
// restarting continuously for longer than the window allows.
type CrashLoopDetector struct {
	mu          sync.Mutex
	bo          *backoff.ExponentialBackOff
	restarts    int
	maxRestarts int
}

// NewCrashLoopDetector returns a detector with the package defaults.
func NewCrashLoopDetector() *CrashLoopDetector {
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = CrashLoopWindow
	bo.InitialInterval = time.Second
	return &CrashLoopDetector{bo: bo, maxRestarts: CrashLoopMaxRestarts}
}

// RecordRestart registers one more keep_alive restart attempt and reports
// whether the job has crossed the crash-loop threshold.
func (d *CrashLoopDetector) RecordRestart() bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.restarts++
	if d.restarts > d.maxRestarts {
		return true
	}
	return d.bo.NextBackOff() == backoff.Stop
}

// Reset clears the detector after a job has reached Running and stayed
// there — a successful start that isn't immediately followed by another
// exit should not count against the crash-loop window.
func (d *CrashLoopDetector) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.restarts = 0
	d.bo.Reset()
}
