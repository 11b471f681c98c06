package sysvipc

import (
	"sync"

	"go.uber.org/zap"
)

// Kind identifies which System V facility a Handle refers to.
type Kind int

const (
	KindMessageQueue Kind = iota + 1
	KindSemaphoreSet
	KindSharedMemory
)

func (k Kind) String() string {
	switch k {
	case KindMessageQueue:
		return "message queue"
	case KindSemaphoreSet:
		return "semaphore set"
	case KindSharedMemory:
		return "shared memory"
	default:
		return "unknown"
	}
}

// facility is the per-kind behaviour behind a Handle. The set of
// implementations is closed: msgFacility, semFacility and shmFacility.
// Each one owns the kernel statistics last fetched for the object.
type facility interface {
	kind() Kind

	// ctl names the control syscall, for errors and metrics.
	ctl() string

	// stat refreshes the cached statistics with IPC_STAT.
	stat(id int) error

	// remove destroys the kernel object with IPC_RMID.
	remove(id int) error

	// perm snapshots the permissions from the cached statistics.
	perm() PermissionView
}

const removedID = -1

// Handle is an in-process reference to a kernel IPC object. It is embedded in
// MessageQueue, SemaphoreSet and SharedMemory, which add the operations
// specific to each facility.
//
// Once removed a handle is inert: every operation fails with ErrClosedHandle.
// Dropping a handle never destroys the kernel object; objects persist until
// Remove is called (from any process) or the system reboots.
//
// A Handle guards its own bookkeeping and may be shared between goroutines,
// but it does not serialize kernel operations, and bytes of an attached
// shared memory segment are never locked.
type Handle struct {
	mu    sync.Mutex
	id    int
	key   Key
	flags CreateFlag
	fac   facility

	// data is the attached mapping; used by shared memory only.
	data     []byte
	readOnly bool

	opts options
}

func newHandle(key Key, id int, flags CreateFlag, fac facility, opts options) *Handle {
	h := &Handle{
		id:    id,
		key:   key,
		flags: flags,
		fac:   fac,
		opts:  opts,
	}
	opts.logger.Debug("opened ipc object",
		zap.Stringer("kind", fac.kind()),
		zap.Int32("key", int32(key)),
		zap.Int("id", id),
		zap.Int("flags", int(flags)))
	return h
}

// open performs the facility's get call and wraps the result in a Handle.
func open(op string, key Key, flags CreateFlag, fac facility, opts []Option, get func() (int, error)) (*Handle, error) {
	o := buildOptions(opts)
	id, err := get()
	o.observer.KernelCall(op, err)
	if err != nil {
		o.logger.Warn("ipc get failed",
			zap.Stringer("kind", fac.kind()),
			zap.Int32("key", int32(key)),
			zap.Error(err))
		return nil, kernelError(op, err)
	}
	return newHandle(key, id, flags, fac, o), nil
}

// ID returns the kernel identifier, or -1 once the handle is removed.
func (h *Handle) ID() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.id
}

// Kind reports which facility the handle refers to.
func (h *Handle) Kind() Kind {
	return h.fac.kind()
}

// Key returns the key the handle was opened with.
func (h *Handle) Key() Key {
	return h.key
}

// Flags returns the flags the handle was opened with.
func (h *Handle) Flags() CreateFlag {
	return h.flags
}

// Removed reports whether Remove has succeeded on this handle.
func (h *Handle) Removed() bool {
	return h.ID() == removedID
}

// Remove destroys the kernel object. The handle is marked removed only after
// the kernel call succeeds, so a failed Remove leaves it usable. A mapping
// still attached through this handle is detached afterwards.
func (h *Handle) Remove() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.id == removedID {
		return ErrAlreadyRemoved
	}
	op := h.fac.ctl() + "(IPC_RMID)"
	if err := h.call(op, h.fac.remove(h.id)); err != nil {
		return err
	}
	h.opts.logger.Debug("removed ipc object", zap.Stringer("kind", h.fac.kind()), zap.Int("id", h.id))
	h.id = removedID

	if h.data != nil {
		if err := h.call("shmdt", shmdt(h.data)); err != nil {
			h.opts.logger.Warn("detach after remove failed", zap.Error(err))
		}
		h.data = nil
	}
	return nil
}

// Permissions refreshes the kernel statistics and returns a snapshot of the
// object's ownership and mode.
func (h *Handle) Permissions() (PermissionView, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, err := h.refreshLocked(); err != nil {
		return PermissionView{}, err
	}
	return h.fac.perm(), nil
}

// liveID returns the kernel identifier of a handle that has not been removed.
func (h *Handle) liveID() (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.liveLocked()
}

func (h *Handle) liveLocked() (int, error) {
	if h.id == removedID {
		return removedID, ErrClosedHandle
	}
	return h.id, nil
}

// refreshLocked checks the handle is live and refetches its statistics.
// The caller holds h.mu.
func (h *Handle) refreshLocked() (int, error) {
	id, err := h.liveLocked()
	if err != nil {
		return id, err
	}
	if err := h.call(h.fac.ctl()+"(IPC_STAT)", h.fac.stat(id)); err != nil {
		return id, err
	}
	return id, nil
}

// call reports a finished kernel call to the observer and converts a failure
// into a *KernelError.
func (h *Handle) call(op string, err error) error {
	h.opts.observer.KernelCall(op, err)
	if err != nil {
		h.opts.logger.Warn("ipc call failed",
			zap.String("op", op),
			zap.Stringer("kind", h.fac.kind()),
			zap.Int32("key", int32(h.key)),
			zap.Error(err))
		return kernelError(op, err)
	}
	return nil
}
