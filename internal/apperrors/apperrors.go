// Package apperrors defines the typed error kinds surfaced by jobd's core
// (spec §7): ManifestInvalid, CatalogUnavailable, CycleDetected, StartFailed,
// StopTimedOut, AlreadyRegistered, and NotFound. Callers branch on Kind via
// errors.Is against the sentinel values rather than matching strings.
package apperrors

import (
	"errors"
	"fmt"

	"github.com/fulmenhq/gofulmen/foundry"
)

// Kind identifies which class of failure an Error carries.
type Kind int

const (
	KindManifestInvalid Kind = iota
	KindCatalogUnavailable
	KindCycleDetected
	KindStartFailed
	KindStopTimedOut
	KindAlreadyRegistered
	KindNotFound
)

// Sentinel values for errors.Is comparisons.
var (
	ErrManifestInvalid    = errors.New("manifest invalid")
	ErrCatalogUnavailable = errors.New("catalog unavailable")
	ErrCycleDetected      = errors.New("dependency cycle detected")
	ErrStartFailed        = errors.New("job start failed")
	ErrStopTimedOut       = errors.New("job stop timed out")
	ErrAlreadyRegistered  = errors.New("pid already registered")
	ErrNotFound           = errors.New("not found")
)

var sentinelByKind = map[Kind]error{
	KindManifestInvalid:    ErrManifestInvalid,
	KindCatalogUnavailable: ErrCatalogUnavailable,
	KindCycleDetected:      ErrCycleDetected,
	KindStartFailed:        ErrStartFailed,
	KindStopTimedOut:       ErrStopTimedOut,
	KindAlreadyRegistered:  ErrAlreadyRegistered,
	KindNotFound:           ErrNotFound,
}

// exitGeneralError is the fallback exit code for kinds that gofulmen/foundry
// has no dedicated constant for (it defines argument/IO/service-availability
// codes, not a general-failure one distinct from 1).
const exitGeneralError = 1

// exitCodeByKind maps each kind to the CLI exit code a command should use
// when it is the outermost error. Codes come from gofulmen/foundry so all
// jobd commands share the same exit-code taxonomy as the rest of the
// examples pack.
var exitCodeByKind = map[Kind]int{
	KindManifestInvalid:    foundry.ExitInvalidArgument,
	KindCatalogUnavailable: foundry.ExitExternalServiceUnavailable,
	KindCycleDetected:      foundry.ExitInvalidArgument,
	KindStartFailed:        exitGeneralError,
	KindStopTimedOut:       exitGeneralError,
	KindAlreadyRegistered:  exitGeneralError,
	KindNotFound:           foundry.ExitFileNotFound,
}

// Error is a kinded, wrapped error. Field carries the first offending field
// name for ManifestInvalid, or the fork/exec step name for StartFailed; it
// is empty when not applicable.
type Error struct {
	Kind  Kind
	Field string
	JobID string
	Err   error
}

func (e *Error) Error() string {
	prefix := sentinelByKind[e.Kind].Error()
	switch {
	case e.JobID != "" && e.Field != "":
		return fmt.Sprintf("%s: job %q, field %q: %v", prefix, e.JobID, e.Field, e.Err)
	case e.JobID != "":
		return fmt.Sprintf("%s: job %q: %v", prefix, e.JobID, e.Err)
	case e.Field != "":
		return fmt.Sprintf("%s: field %q: %v", prefix, e.Field, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", prefix, e.Err)
	default:
		return prefix
	}
}

func (e *Error) Unwrap() error {
	if e.Err != nil {
		return errors.Join(sentinelByKind[e.Kind], e.Err)
	}
	return sentinelByKind[e.Kind]
}

// ExitCode returns the CLI exit code for this error's kind.
func (e *Error) ExitCode() int {
	if code, ok := exitCodeByKind[e.Kind]; ok {
		return code
	}
	return exitGeneralError
}

// New constructs an Error of the given kind wrapping err.
func New(kind Kind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}

// WithField attaches a field name (used for ManifestInvalid and StartFailed).
func (e *Error) WithField(field string) *Error {
	e.Field = field
	return e
}

// WithJobID attaches the job whose operation failed.
func (e *Error) WithJobID(jobID string) *Error {
	e.JobID = jobID
	return e
}

// ExitCodeOf returns the CLI exit code for any error, falling back to a
// generic failure code if err is not (or does not wrap) an *Error.
func ExitCodeOf(err error) int {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.ExitCode()
	}
	if err != nil {
		return exitGeneralError
	}
	return 0
}
