package sysvipc

import (
	"errors"
	"fmt"
	"syscall"
)

// Lifecycle and validation errors. Validation errors are produced locally,
// before any syscall is attempted, and are usually wrapped with the offending
// values; test for them with errors.Is.
var (
	// ErrClosedHandle is returned by every operation on a removed handle.
	ErrClosedHandle = errors.New("sysvipc: closed handle")

	// ErrAlreadyRemoved is returned by Remove on a removed handle.
	ErrAlreadyRemoved = errors.New("sysvipc: already removed")

	// ErrWouldBlock is returned when the caller asked for a non-blocking
	// operation and the kernel could not complete it immediately.
	ErrWouldBlock = errors.New("sysvipc: operation would block")

	// ErrInvalidIndex is returned when a semaphore index is outside the set.
	ErrInvalidIndex = errors.New("sysvipc: invalid semaphore index")

	// ErrCountMismatch is returned when a value slice does not match the
	// number of semaphores in the set.
	ErrCountMismatch = errors.New("sysvipc: value count does not match semaphore count")

	// ErrOutOfRange is returned when a shared memory access extends past the
	// end of the segment.
	ErrOutOfRange = errors.New("sysvipc: access outside shared memory segment")

	// ErrAlreadyAttached is returned by Attach when a mapping is already held.
	ErrAlreadyAttached = errors.New("sysvipc: already attached")

	// ErrNotAttached is returned by operations that need a mapping when none is held.
	ErrNotAttached = errors.New("sysvipc: not attached")

	// ErrReadOnly is returned by writes to a segment attached with AttachReadOnly.
	ErrReadOnly = errors.New("sysvipc: segment attached read-only")

	// ErrUnsupported is returned on platforms without System V IPC support.
	ErrUnsupported = errors.New("sysvipc: System V IPC is not supported on this platform")
)

// KernelError reports a failed System V IPC syscall.
// It unwraps to the underlying syscall.Errno, so callers can match specific
// conditions with errors.Is(err, syscall.EACCES) and similar.
type KernelError struct {
	// Op is the syscall name, e.g. "msgsnd" or "semctl(GETVAL)".
	Op string

	// Errno is the errno value reported by the kernel.
	Errno syscall.Errno
}

func (e *KernelError) Error() string {
	return fmt.Sprintf("sysvipc: %s: %v", e.Op, e.Errno)
}

func (e *KernelError) Unwrap() error {
	return e.Errno
}

// kernelError converts a raw syscall error into a *KernelError.
// A nil err yields nil.
func kernelError(op string, err error) error {
	if err == nil {
		return nil
	}
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return &KernelError{Op: op, Errno: errno}
	}
	return fmt.Errorf("sysvipc: %s: %w", op, err)
}

// isWouldBlock reports whether errno means the call could not complete
// without waiting. ENOMSG is included because msgrcv reports an empty queue
// that way under IPC_NOWAIT.
func isWouldBlock(errno syscall.Errno) bool {
	return errno == syscall.EAGAIN || errno == syscall.EWOULDBLOCK || errno == syscall.ENOMSG
}
