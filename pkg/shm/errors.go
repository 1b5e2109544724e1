package shm

import (
	"errors"
	"fmt"
	"strings"

	internalshm "github.com/srediag/shmem/internal/shm"
)

// Errors returned by Create.
var (
	ErrNameCollision = errors.New("shm: region name already hosted by this process")
	ErrAllocation    = errors.New("shm: cannot allocate backing memory object")
	ErrMapping       = errors.New("shm: cannot map region")
)

// Errors returned by Attach.
var (
	ErrPermission       = errors.New("shm: not permitted to inspect host descriptors")
	ErrNotFound         = errors.New("shm: region not found")
	ErrVersionMismatch  = errors.New("shm: region version mismatch")
	ErrReadinessTimeout = errors.New("shm: region did not become ready in time")
)

var (
	ErrNotSupported  = internalshm.ErrNotSupported
	ErrInvalidConfig = errors.New("shm: invalid config")
	ErrClosed        = errors.New("shm: region closed")
)

const (
	opCreate = "create"
	opAttach = "attach"
)

// Error describes a failed Create or Attach. It matches both its Kind and
// its underlying cause with errors.Is.
type Error struct {
	Op   string
	Name string
	// Pid is the host process id, or zero when unknown.
	Pid  int
	Kind error
	Err  error
}

func newError(op, name string, pid int, kind, cause error) *Error {
	return &Error{Op: op, Name: name, Pid: pid, Kind: kind, Err: cause}
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %q", e.Op, e.Name)
	if e.Pid > 0 {
		fmt.Fprintf(&b, " (pid %d)", e.Pid)
	}
	b.WriteString(": ")
	switch {
	case e.Err == nil:
		b.WriteString(e.Kind.Error())
	case errors.Is(e.Err, e.Kind):
		// The cause already names the kind.
		b.WriteString(e.Err.Error())
	default:
		b.WriteString(e.Kind.Error())
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap returns the kind and the cause, for errors.Is and errors.As.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// kindLabel names the failure class of err for metrics.
func kindLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrNameCollision):
		return "name_collision"
	case errors.Is(err, ErrAllocation):
		return "allocation"
	case errors.Is(err, ErrMapping):
		return "mapping"
	case errors.Is(err, ErrPermission):
		return "permission"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrVersionMismatch):
		return "version_mismatch"
	case errors.Is(err, ErrReadinessTimeout):
		return "readiness_timeout"
	default:
		return "other"
	}
}
