// Package supervisor is C5: forks and configures child processes per
// manifest, registers PIDs, consumes exit/signal events, and drives C4's
// state machine (spec.md §4.5).
//
// The loop is cooperative and single-threaded (spec.md §5): Run's goroutine
// is the only one that ever mutates supervisor or catalog state. Child
// processes are the only source of parallelism — each started job gets one
// goroutine blocked in cmd.Wait(), which does nothing but translate the
// result into an event and hand it to the loop.
package supervisor

import (
	"context"
	"fmt"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/3leaps/jobd/internal/apperrors"
	"github.com/3leaps/jobd/internal/catalog"
	"github.com/3leaps/jobd/internal/jobstate"
	"github.com/3leaps/jobd/internal/pidregistry"
	"github.com/3leaps/jobd/internal/runtimestate"
	"github.com/3leaps/jobd/internal/solver"
)

// gracePeriod is the default interval between SIGTERM and SIGKILL, spec.md
// §5's "grace timer (default 10 s)".
const gracePeriod = 10 * time.Second

type eventKind int

const (
	eventExit eventKind = iota
	eventSignal
	eventRestartDue
	eventGraceExpired
)

type procEvent struct {
	Kind     eventKind
	Pid      int
	ExitCode int
	Signal   int
	RowID    int64
	JobID    string
}

// runningJob tracks the supervisor-side bookkeeping for one live or
// restart-pending job, keyed by row_id.
type runningJob struct {
	ID       string
	Cleanup  func()
	Stopping bool
}

// Supervisor owns the catalog, the PID registry, and every in-flight
// child's bookkeeping.
type Supervisor struct {
	cat     *catalog.Catalog
	pids    *pidregistry.Registry
	runtime *runtimestate.Store
	logger  *zap.Logger

	events chan procEvent

	mu              sync.Mutex
	running         map[int64]*runningJob
	exclusiveHolder int64 // row_id of the currently Running exclusive job, 0 if none
	crashLoops      map[int64]*jobstate.CrashLoopDetector
	restartLimiter  *rate.Limiter
}

// New builds a Supervisor. runtime may be nil, in which case status records
// are not written (useful for tests that only exercise the state machine).
func New(cat *catalog.Catalog, runtime *runtimestate.Store, logger *zap.Logger) *Supervisor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Supervisor{
		cat:     cat,
		pids:    pidregistry.New(),
		runtime: runtime,
		logger:  logger,
		events:  make(chan procEvent, 64),
		running: make(map[int64]*runningJob),
		// At most 5 restarts/sec across the whole supervisor, independent of
		// the per-job crash-loop detector, so a fleet of simultaneously
		// crash-looping jobs can't busy-loop fork() (spec.md §9 "Restart
		// delay... is specified here to close the behavior gap").
		restartLimiter: rate.NewLimiter(rate.Limit(5), 5),
		crashLoops:     make(map[int64]*jobstate.CrashLoopDetector),
	}
}

// Reconcile runs once at supervisor startup. The catalog's volatile PID
// table is already truncated by catalog.Open/Create, so any job this
// process finds in Running is stale (spec.md §4.6, §9): it resets to
// Stopped, or to Starting (scheduled for restart) if keep_alive is set.
// It then computes the initial solve and starts whatever is immediately
// startable.
func (s *Supervisor) Reconcile(ctx context.Context) error {
	jobs, err := catalog.SelectAll(s.cat.DB())
	if err != nil {
		return fmt.Errorf("reconcile: select all: %w", err)
	}

	for _, j := range jobs {
		if j.State != jobstate.Running && j.State != jobstate.Starting {
			continue
		}
		next := jobstate.Stopped
		if j.Manifest.KeepAlive {
			next = jobstate.Starting
		}
		if err := catalog.SetState(s.cat.DB(), j.RowID, next); err != nil {
			return fmt.Errorf("reconcile %q: %w", j.ID, err)
		}
		s.logger.Warn("reset stale state on startup", zap.String("job", j.ID), zap.String("state", string(next)))
		if next == jobstate.Starting {
			s.scheduleRestart(j.ID, j.RowID, j.Manifest.RestartAfter)
		}
	}

	return s.solveAndStart(ctx, 0)
}

// solveAndStart reads the current catalog, computes the startable set, and
// attempts to start each one (in lexicographic order, per spec.md §4.3).
// skipRowID, when nonzero, names a job this pass does not start: the job
// whose exit triggered the solve.
func (s *Supervisor) solveAndStart(ctx context.Context, skipRowID int64) error {
	jobs, err := catalog.SelectAll(s.cat.DB())
	if err != nil {
		return fmt.Errorf("solve: select all: %w", err)
	}
	edges, err := catalog.AllEdges(s.cat.DB())
	if err != nil {
		return fmt.Errorf("solve: select edges: %w", err)
	}

	byID := make(map[string]catalog.Job, len(jobs))
	infos := make([]solver.JobInfo, 0, len(jobs))
	for _, j := range jobs {
		byID[j.ID] = j
		infos = append(infos, solver.JobInfo{
			ID:      j.ID,
			Enabled: j.Manifest.Enable,
			Running: j.State == jobstate.Running,
		})
	}
	sEdges := make([]solver.Edge, 0, len(edges))
	for _, e := range edges {
		sEdges = append(sEdges, solver.Edge{Predecessor: e.Predecessor, Successor: e.Successor})
	}

	sv := solver.New(infos, sEdges)
	for _, id := range sv.Startable() {
		job := byID[id]
		if job.State != jobstate.Stopped || job.RowID == skipRowID {
			continue
		}
		if err := s.StartJob(ctx, job.ID); err != nil {
			s.logger.Error("start failed", zap.String("job", job.ID), zap.Error(err))
		}
	}

	cycles := sv.Cycles()
	for _, id := range cycles {
		job := byID[id]
		if err := catalog.SetState(s.cat.DB(), job.RowID, jobstate.Error); err != nil {
			s.logger.Error("mark cycle member error failed", zap.String("job", id), zap.Error(err))
		}
	}
	if len(cycles) > 0 {
		return apperrors.New(apperrors.KindCycleDetected, fmt.Errorf("jobs in a dependency cycle: %v", cycles))
	}
	return nil
}

// StartJob forks and execs job per spec.md §4.5, after checking
// preconditions: enabled, Stopped (or Starting, when a keep_alive restart
// falls due), predecessors Running (the caller is
// expected to only call this for jobs the solver already reports
// startable, but StartJob re-checks enable/state/exclusive itself since it
// is also reachable from jobcfg-triggered restarts and manual starts).
func (s *Supervisor) StartJob(ctx context.Context, id string) error {
	attempt := uuid.NewString()
	job, err := catalog.FindByID(s.cat.DB(), id)
	if err != nil {
		return err
	}
	s.logger.Debug("start attempt", zap.String("job_id", id), zap.String("attempt_id", attempt))
	if !job.Manifest.Enable {
		return apperrors.New(apperrors.KindStartFailed, fmt.Errorf("job %q is disabled", id))
	}
	if job.State != jobstate.Stopped && job.State != jobstate.Starting {
		return apperrors.New(apperrors.KindStartFailed, fmt.Errorf("job %q is not stopped (state=%s)", id, job.State))
	}

	s.mu.Lock()
	if job.Manifest.Exclusive && s.exclusiveHolder != 0 && s.exclusiveHolder != job.RowID {
		s.mu.Unlock()
		return apperrors.New(apperrors.KindStartFailed, fmt.Errorf("job %q conflicts with running exclusive job", id))
	}
	s.mu.Unlock()

	if check, perr := firstFailure(runPreflight(&job.Manifest)); perr != nil {
		_ = catalog.SetState(s.cat.DB(), job.RowID, jobstate.Error)
		return apperrors.New(apperrors.KindStartFailed, fmt.Errorf("preflight %s: %w", check, perr))
	}

	if err := catalog.SetState(s.cat.DB(), job.RowID, jobstate.Starting); err != nil {
		return err
	}

	cmd, cleanup, err := buildCmd(&job.Manifest)
	if err != nil {
		_ = catalog.SetState(s.cat.DB(), job.RowID, jobstate.Error)
		return apperrors.New(apperrors.KindStartFailed, fmt.Errorf("build child for %q: %w", id, err))
	}

	startErr := withUmask(job.Manifest.Umask, cmd.Start)
	if startErr != nil {
		cleanup()
		_ = catalog.SetState(s.cat.DB(), job.RowID, jobstate.Error)
		return apperrors.New(apperrors.KindStartFailed, fmt.Errorf("fork/exec %q: %w", id, startErr))
	}

	pid := cmd.Process.Pid
	if err := s.pids.Register(job.RowID, pid); err != nil {
		cleanup()
		return apperrors.New(apperrors.KindAlreadyRegistered, err)
	}
	if err := catalog.RegisterPid(s.cat.DB(), job.RowID, pid); err != nil {
		_, _ = s.pids.Release(pid)
		cleanup()
		return err
	}

	s.mu.Lock()
	s.running[job.RowID] = &runningJob{ID: id, Cleanup: cleanup}
	if job.Manifest.Exclusive {
		s.exclusiveHolder = job.RowID
	}
	s.mu.Unlock()

	// The post-fork parent-side success is treated as Running directly
	// (spec.md §4.5 explicitly allows this simplification rather than
	// waiting for an exec-confirmation handshake with the child).
	if err := catalog.SetState(s.cat.DB(), job.RowID, jobstate.Running); err != nil {
		return err
	}
	s.writeRuntimeState(id, jobstate.Running, pid, 0, 0)
	s.logger.Info("job started", zap.String("job_id", id), zap.String("attempt_id", attempt), zap.Int("pid", pid))

	// Reaching Running is the sustained-health signal: whatever crash-loop
	// count this job was carrying from prior keep_alive restarts no longer
	// applies, otherwise a job that happens to restart once every few hours
	// would eventually hit CrashLoopMaxRestarts/CrashLoopWindow and be
	// wrongly escalated to Error instead of restarting (spec.md §4.4's
	// keep_alive contract never bounds healthy, well-spaced restarts).
	s.resetCrashLoop(job.RowID)

	go s.waitForExit(cmd, pid, job.RowID)
	return nil
}

// resetCrashLoop clears rowID's crash-loop detector, if one exists, after
// a successful start.
func (s *Supervisor) resetCrashLoop(rowID int64) {
	s.mu.Lock()
	det, ok := s.crashLoops[rowID]
	s.mu.Unlock()
	if ok {
		det.Reset()
	}
}

func (s *Supervisor) waitForExit(cmd *exec.Cmd, pid int, rowID int64) {
	err := cmd.Wait()
	ev := procEvent{Pid: pid, RowID: rowID}
	switch exitErr := err.(type) {
	case nil:
		ev.Kind = eventExit
		ev.ExitCode = 0
	case *exec.ExitError:
		if ws, ok := exitErr.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
			ev.Kind = eventSignal
			ev.Signal = int(ws.Signal())
		} else {
			ev.Kind = eventExit
			ev.ExitCode = exitErr.ExitCode()
		}
	default:
		ev.Kind = eventExit
		ev.ExitCode = -1
	}
	s.events <- ev
}

// Run drains events until ctx is cancelled, then shuts every job down.
func (s *Supervisor) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return s.Shutdown(context.Background())
		case ev := <-s.events:
			s.handleEvent(ctx, ev)
		}
	}
}

func (s *Supervisor) handleEvent(ctx context.Context, ev procEvent) {
	switch ev.Kind {
	case eventExit, eventSignal:
		s.handleChildTerminated(ctx, ev)
	case eventRestartDue:
		if err := s.StartJob(ctx, ev.JobID); err != nil {
			s.logger.Error("restart failed", zap.String("job", ev.JobID), zap.Error(err))
		}
	case eventGraceExpired:
		s.escalateToKill(ev.RowID)
	}
}

func (s *Supervisor) handleChildTerminated(ctx context.Context, ev procEvent) {
	rowID, released, err := s.releasePid(ev)
	if err != nil {
		s.logger.Error("release pid failed", zap.Int("pid", ev.Pid), zap.Error(err))
		return
	}
	if !released {
		return
	}

	job, err := catalog.FindByRowID(s.cat.DB(), rowID)
	if err != nil {
		s.logger.Error("find job by row failed", zap.Int64("row_id", rowID), zap.Error(err))
		return
	}

	event := jobstate.EventExitClean
	switch {
	case ev.Kind == eventSignal:
		event = jobstate.EventSignaled
	case ev.ExitCode != 0:
		event = jobstate.EventExitNonzero
	}

	stopping := s.isStopping(rowID)
	var next jobstate.State
	if stopping {
		next = jobstate.Stopped
	} else {
		next, err = jobstate.Next(job.State, event, job.Manifest.KeepAlive)
		if err != nil {
			s.logger.Error("illegal transition on exit", zap.String("job", job.ID), zap.Error(err))
			next = jobstate.Error
		}
	}

	if err := catalog.SetState(s.cat.DB(), rowID, next); err != nil {
		s.logger.Error("persist state after exit failed", zap.String("job", job.ID), zap.Error(err))
	}
	s.writeRuntimeState(job.ID, next, 0, ev.ExitCode, ev.Signal)

	s.mu.Lock()
	if s.exclusiveHolder == rowID {
		s.exclusiveHolder = 0
	}
	if rj, ok := s.running[rowID]; ok {
		rj.Cleanup()
		delete(s.running, rowID)
	}
	s.mu.Unlock()

	if next == jobstate.Starting && job.Manifest.KeepAlive && !stopping {
		s.scheduleRestart(job.ID, rowID, job.Manifest.RestartAfter)
		return
	}

	if next == jobstate.Stopped {
		if err := s.solveAndStart(ctx, rowID); err != nil {
			s.logger.Error("post-exit solve failed", zap.String("job", job.ID), zap.Error(err))
		}
	}
}

// releasePid drops ev.Pid from the in-memory registry and removes its row
// from the catalog's volatile PID table, dispatching to the registry's two
// distinct operations per spec.md §6: set_exit_status for a plain exit,
// set_signal_status when the child was killed by a signal. The exit code
// or signal itself is written by the caller to the runtime status record.
func (s *Supervisor) releasePid(ev procEvent) (rowID int64, ok bool, err error) {
	rowID, ok = s.pids.Release(ev.Pid)
	if !ok {
		return 0, false, nil
	}
	if ev.Kind == eventSignal {
		_, err = catalog.SetSignalStatus(s.cat.DB(), ev.Pid, ev.Signal)
	} else {
		_, err = catalog.SetExitStatus(s.cat.DB(), ev.Pid, ev.ExitCode)
	}
	if err != nil {
		return rowID, true, err
	}
	return rowID, true, nil
}

func (s *Supervisor) isStopping(rowID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	rj, ok := s.running[rowID]
	return ok && rj.Stopping
}

// scheduleRestart arranges StartJob to run again after the keep_alive
// delay, throttled by both the per-job crash-loop detector and the
// supervisor-wide restart rate limiter (spec.md §4.4, §9).
func (s *Supervisor) scheduleRestart(id string, rowID int64, restartAfter int) {
	s.mu.Lock()
	det, ok := s.crashLoops[rowID]
	if !ok {
		det = jobstate.NewCrashLoopDetector()
		s.crashLoops[rowID] = det
	}
	s.mu.Unlock()

	if det.RecordRestart() {
		s.logger.Warn("crash loop detected, giving up on restarts", zap.String("job", id))
		_ = catalog.SetState(s.cat.DB(), rowID, jobstate.Error)
		return
	}

	delay := time.Duration(jobstate.RestartDelaySeconds(restartAfter)) * time.Second
	time.AfterFunc(delay, func() {
		// Wait until the limiter admits one more restart: restarts queue
		// behind the limiter's own pace instead of being dropped.
		_ = s.restartLimiter.Wait(context.Background())
		s.events <- procEvent{Kind: eventRestartDue, RowID: rowID, JobID: id}
	})
}

// StopJob sends SIGTERM and arms the grace timer (spec.md §5).
func (s *Supervisor) StopJob(id string) error {
	job, err := catalog.FindByID(s.cat.DB(), id)
	if err != nil {
		return err
	}
	pid, ok := s.pids.PidFor(job.RowID)
	if !ok {
		return apperrors.New(apperrors.KindNotFound, fmt.Errorf("job %q has no live process", id))
	}

	s.mu.Lock()
	if rj, ok := s.running[job.RowID]; ok {
		rj.Stopping = true
	}
	s.mu.Unlock()

	if err := catalog.SetState(s.cat.DB(), job.RowID, jobstate.Stopping); err != nil {
		return err
	}
	if err := sendTerm(pid); err != nil {
		return fmt.Errorf("signal %q: %w", id, err)
	}

	rowID := job.RowID
	time.AfterFunc(gracePeriod, func() {
		s.events <- procEvent{Kind: eventGraceExpired, RowID: rowID, Pid: pid}
	})
	return nil
}

func (s *Supervisor) escalateToKill(rowID int64) {
	pid, ok := s.pids.PidFor(rowID)
	if !ok {
		return // already exited before the grace period elapsed
	}
	s.logger.Warn("grace period expired, sending SIGKILL", zap.Int64("row_id", rowID), zap.Int("pid", pid))
	if err := sendKill(pid); err != nil {
		s.logger.Error("sigkill failed", zap.Int("pid", pid), zap.Error(err))
	}
}

// DisableJob clears the job's enable flag (spec.md §4.4: "any ->
// disable() -> Stopped"). A job with a live process is stopped through
// StopJob: SIGTERM first, SIGKILL only once the grace period expires, and
// the state reaches Stopped when the exit event is handled. A job with no
// live process is set to Stopped directly.
func (s *Supervisor) DisableJob(id string) error {
	job, err := catalog.FindByID(s.cat.DB(), id)
	if err != nil {
		return err
	}
	if err := catalog.SetEnable(s.cat.DB(), job.RowID, false); err != nil {
		return err
	}
	if job.State == jobstate.Running || job.State == jobstate.Starting {
		if _, live := s.pids.PidFor(job.RowID); live {
			return s.StopJob(id)
		}
	}
	return catalog.SetState(s.cat.DB(), job.RowID, jobstate.Stopped)
}

// Shutdown sends SIGTERM to every live job in reverse topological order
// (spec.md §5) and arms each one's SIGKILL grace timer. It returns as soon
// as the signals are sent: it does not wait for the children to exit, and
// once Run has returned nothing services the grace timers.
func (s *Supervisor) Shutdown(ctx context.Context) error {
	jobs, err := catalog.SelectAll(s.cat.DB())
	if err != nil {
		return fmt.Errorf("shutdown: select all: %w", err)
	}
	edges, err := catalog.AllEdges(s.cat.DB())
	if err != nil {
		return fmt.Errorf("shutdown: select edges: %w", err)
	}

	// Every job is planned as enabled and not yet Running, so the order
	// covers the live jobs too; StopJob reports NotFound for the others.
	infos := make([]solver.JobInfo, 0, len(jobs))
	for _, j := range jobs {
		infos = append(infos, solver.JobInfo{ID: j.ID, Enabled: true})
	}
	sEdges := make([]solver.Edge, 0, len(edges))
	for _, e := range edges {
		sEdges = append(sEdges, solver.Edge{Predecessor: e.Predecessor, Successor: e.Successor})
	}
	order, _ := solver.Plan(infos, sEdges)

	for i := len(order) - 1; i >= 0; i-- {
		if err := s.StopJob(order[i]); err != nil {
			s.logger.Warn("stop during shutdown failed", zap.String("job", order[i]), zap.Error(err))
		}
	}
	return nil
}

func (s *Supervisor) writeRuntimeState(id string, state jobstate.State, pid, exitCode, signum int) {
	if s.runtime == nil {
		return
	}
	rec := runtimestate.Record{
		JobStatusAPI:   jobstate.APICode(state),
		Pid:            pid,
		LastExitStatus: exitCode,
		TermSignal:     signum,
		Label:          id,
	}
	if err := s.runtime.Write(id, rec); err != nil {
		s.logger.Error("write runtime state failed", zap.String("job", id), zap.Error(err))
	}
}
