package kernel

import (
	"errors"
	"fmt"
)

// Errno is the result code of a thread operation.
//
// Operations return nil for SUCCESS and one of the Errno values otherwise,
// usually wrapped with detail. Match with errors.Is.
type Errno uint8

const (
	// ErrFail reports capacity exhaustion, an unknown thread or an invalid state.
	ErrFail Errno = iota + 1
	// ErrAlready reports that a thread identifier is bound to an active thread.
	ErrAlready
	// ErrBusy reports that the thread holds mutexes.
	ErrBusy
)

func (e Errno) Error() string { return e.String() }

func (e Errno) String() string {
	switch e {
	case ErrFail:
		return "FAIL"
	case ErrAlready:
		return "EALREADY"
	case ErrBusy:
		return "EBUSY"
	default:
		return "unknown"
	}
}

var (
	// ErrPanicked is returned by Step once a thread has panicked.
	ErrPanicked = errors.New("kernel panicked")
	// ErrClosed is returned by Step after Close.
	ErrClosed = errors.New("kernel closed")

	errArenaExhausted = errors.New("stack arena exhausted")
	errStackSize      = errors.New("invalid stack size")
	errDoubleRelease  = errors.New("stack region released twice")
	errNoSlot         = errors.New("thread table full")
	errHoldsMutex     = errors.New("thread holds mutexes")
	errNotThread      = errors.New("not called from a thread")
	errStale          = errors.New("thread no longer exists")
)

// FatalError describes caller misuse that would corrupt scheduler state,
// such as releasing a mutex the caller does not own. It is raised as a panic.
type FatalError struct {
	Op     string
	Thread ThreadID
	Reason string
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("fatal: %s by %s: %s", e.Op, e.Thread, e.Reason)
}

// PanicInfo contains details about a panic recovered from a thread.
type PanicInfo struct {
	Thread ThreadID
	Value  any
	Stack  []byte
}

func (p *PanicInfo) Error() string {
	return fmt.Sprintf("%s: thread %s: %v", ErrPanicked, p.Thread, p.Value)
}

func (p *PanicInfo) Unwrap() []error {
	if err, ok := p.Value.(error); ok {
		return []error{ErrPanicked, err}
	}
	return []error{ErrPanicked}
}
