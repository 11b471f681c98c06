package sysvipc

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// SemaphoreSet is a handle to a System V semaphore set.
//
// Index-taking methods check the index against the current size of the set,
// fetched from the kernel on every call, and fail with ErrInvalidIndex
// before any semaphore is touched.
//
// Example:
//
//	set, _ := sysvipc.OpenSemaphoreSet(key, 3, sysvipc.Create|0600)
//	set.SetValues([]uint16{1, 1, 1})
//	set.Apply(ctx, sysvipc.SemaphoreOperation{Index: 1, Delta: -1})
//	vals, _ := set.Values() // [1 0 1]
type SemaphoreSet struct {
	*Handle
	fac *semFacility
}

// SemaphoreOperation is one element of an Apply batch: add Delta to the
// semaphore at Index. A negative Delta waits until the value is large
// enough; a zero Delta waits until the value is zero.
type SemaphoreOperation struct {
	Index uint16
	Delta int16
	Flags SemFlag
}

func (op SemaphoreOperation) String() string {
	return fmt.Sprintf("sem[%d]%+d", op.Index, op.Delta)
}

// SemaphoreSetStats holds the kernel statistics of a semaphore set.
type SemaphoreSetStats struct {
	Perm PermissionView

	// Count is the number of semaphores in the set.
	Count int

	// OpTime is the time of the last semop call, zero if none.
	OpTime time.Time

	ChangeTime time.Time
}

type semFacility struct {
	ds semidDS
}

func (f *semFacility) kind() Kind          { return KindSemaphoreSet }
func (f *semFacility) ctl() string         { return "semctl" }
func (f *semFacility) stat(id int) error   { return semStat(id, &f.ds) }
func (f *semFacility) remove(id int) error { return semRemove(id) }

func (f *semFacility) perm() PermissionView {
	return f.ds.Perm.view()
}

// OpenSemaphoreSet opens the semaphore set identified by key, creating a set
// of count semaphores if flags include Create. When opening an existing set
// count may be 0.
func OpenSemaphoreSet(key Key, count int, flags CreateFlag, opts ...Option) (*SemaphoreSet, error) {
	fac := &semFacility{}
	h, err := open("semget", key, flags, fac, opts, func() (int, error) {
		return semget(key, count, int(flags))
	})
	if err != nil {
		return nil, err
	}
	return &SemaphoreSet{Handle: h, fac: fac}, nil
}

// Size returns the number of semaphores in the set.
func (s *SemaphoreSet) Size() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.refreshLocked(); err != nil {
		return 0, err
	}
	return s.countLocked(), nil
}

// Values returns the value of every semaphore, in index order.
func (s *SemaphoreSet) Values() ([]uint16, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, err := s.refreshLocked()
	if err != nil {
		return nil, err
	}
	values := make([]uint16, s.countLocked())
	if len(values) == 0 {
		return values, nil
	}
	if err := s.call("semctl(GETALL)", semGetAll(id, values)); err != nil {
		return nil, err
	}
	return values, nil
}

// SetValues sets every semaphore at once. values must hold exactly one entry
// per semaphore, otherwise SetValues fails with ErrCountMismatch and leaves
// the set unchanged.
func (s *SemaphoreSet) SetValues(values []uint16) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, err := s.refreshLocked()
	if err != nil {
		return err
	}
	n := s.countLocked()
	if len(values) != n {
		return fmt.Errorf("%w: got %d values for %d semaphores", ErrCountMismatch, len(values), n)
	}
	if n == 0 {
		return nil
	}
	return s.call("semctl(SETALL)", semSetAll(id, values))
}

// Value returns the value of the semaphore at index.
func (s *SemaphoreSet) Value(index int) (int, error) {
	return s.control(index, getVal, "semctl(GETVAL)", 0)
}

// SetValue sets the value of the semaphore at index.
func (s *SemaphoreSet) SetValue(index, value int) error {
	_, err := s.control(index, setVal, "semctl(SETVAL)", uintptr(value))
	return err
}

// WaitingForIncrease returns the number of processes waiting for the
// semaphore at index to increase.
//
// Goroutines waiting in Apply under a cancellable context poll with
// IPC_NOWAIT and are not counted.
func (s *SemaphoreSet) WaitingForIncrease(index int) (int, error) {
	return s.control(index, getNCnt, "semctl(GETNCNT)", 0)
}

// WaitingForZero returns the number of processes waiting for the semaphore
// at index to become zero. The caveat of WaitingForIncrease applies.
func (s *SemaphoreSet) WaitingForZero(index int) (int, error) {
	return s.control(index, getZCnt, "semctl(GETZCNT)", 0)
}

// LastPID returns the PID of the process that last operated on the
// semaphore at index, or 0 if none has.
func (s *SemaphoreSet) LastPID(index int) (int, error) {
	return s.control(index, getPID, "semctl(GETPID)", 0)
}

func (s *SemaphoreSet) control(index, cmd int, op string, arg uintptr) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, err := s.refreshLocked()
	if err != nil {
		return 0, err
	}
	if err := s.checkIndexLocked(index); err != nil {
		return 0, err
	}
	r, err := semctl(id, index, cmd, arg)
	if err := s.call(op, err); err != nil {
		return 0, err
	}
	return r, nil
}

// Apply performs ops as one atomic semop call: either every operation is
// applied or none is. All indexes are validated first, so an out-of-range
// index fails with ErrInvalidIndex without touching the set.
//
// If the batch cannot complete at once Apply waits, unless some operation
// carries SemNoWait, in which case it fails with ErrWouldBlock. While waiting
// the whole batch is resubmitted on every attempt. An empty batch does
// nothing.
func (s *SemaphoreSet) Apply(ctx context.Context, ops ...SemaphoreOperation) error {
	s.mu.Lock()
	id, err := s.refreshLocked()
	if err != nil {
		s.mu.Unlock()
		return err
	}
	sops := make([]sembuf, len(ops))
	noWait := false
	for i, op := range ops {
		if err := s.checkIndexLocked(int(op.Index)); err != nil {
			s.mu.Unlock()
			return err
		}
		sops[i] = sembuf{Num: op.Index, Op: op.Delta, Flg: int16(op.Flags)}
		noWait = noWait || op.Flags&SemNoWait != 0
	}
	s.mu.Unlock()

	if len(sops) == 0 {
		return nil
	}
	return s.block(ctx, "semop", noWait, func(forceNoWait bool) error {
		if forceNoWait {
			for i := range sops {
				sops[i].Flg |= ipcNoWait
			}
		}
		return semop(id, sops)
	})
}

// Stats refreshes and returns the set statistics.
func (s *SemaphoreSet) Stats() (SemaphoreSetStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.refreshLocked(); err != nil {
		return SemaphoreSetStats{}, err
	}
	ds := &s.fac.ds
	return SemaphoreSetStats{
		Perm:       ds.Perm.view(),
		Count:      int(ds.Nsems),
		OpTime:     unixTime(ds.Otime),
		ChangeTime: unixTime(ds.Ctime),
	}, nil
}

func (s *SemaphoreSet) countLocked() int {
	return int(s.fac.ds.Nsems)
}

func (s *SemaphoreSet) checkIndexLocked(index int) error {
	if n := s.countLocked(); index < 0 || index >= n {
		return fmt.Errorf("%w: %d not in [0, %d)", ErrInvalidIndex, index, n)
	}
	return nil
}

// Semaphore provides cross-process mutual exclusion on top of a single
// element of a semaphore set.
//
// Create one with SemaphoreSet.Semaphore. Every process must agree on the
// key and the index.
//
// Example:
//
//	set, _ := sysvipc.OpenSemaphoreSet(key, 1, sysvipc.Create|0600)
//	sem, _ := set.Semaphore(0, true)
//	defer sem.Close()
//
//	sem.Acquire()
//	// critical section - access shared resource
//	sem.Release()
type Semaphore interface {
	// Acquire blocks until the semaphore can be decremented.
	Acquire() error

	// Release increments the semaphore, potentially unblocking waiters.
	Release() error

	// TryAcquire attempts to decrement the semaphore without blocking.
	// Returns true if acquired, false if the semaphore was not available.
	TryAcquire() (bool, error)

	// AcquireTimeout attempts to acquire with a maximum wait time in milliseconds.
	// Returns true if acquired, false if the timeout elapsed.
	AcquireTimeout(timeoutMs int) (bool, error)

	// Close releases the binding. The semaphore set itself is left in place;
	// remove it through the SemaphoreSet.
	Close() error
}

// Semaphore binds a Semaphore to the element at index. With undo set every
// adjustment carries SemUndo, so the kernel reverts it if the process exits
// while holding the semaphore.
func (s *SemaphoreSet) Semaphore(index int, undo bool) (Semaphore, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.refreshLocked(); err != nil {
		return nil, err
	}
	if err := s.checkIndexLocked(index); err != nil {
		return nil, err
	}
	var flags SemFlag
	if undo {
		flags = SemUndo
	}
	return &setSemaphore{set: s, index: uint16(index), flags: flags}, nil
}

type setSemaphore struct {
	set   *SemaphoreSet
	index uint16
	flags SemFlag

	mu     sync.Mutex
	closed bool
}

func (sem *setSemaphore) apply(ctx context.Context, delta int16, flags SemFlag) error {
	sem.mu.Lock()
	closed := sem.closed
	sem.mu.Unlock()
	if closed {
		return ErrClosedHandle
	}
	return sem.set.Apply(ctx, SemaphoreOperation{Index: sem.index, Delta: delta, Flags: sem.flags | flags})
}

func (sem *setSemaphore) Acquire() error {
	return sem.apply(context.Background(), -1, 0)
}

func (sem *setSemaphore) Release() error {
	return sem.apply(context.Background(), 1, 0)
}

func (sem *setSemaphore) TryAcquire() (bool, error) {
	err := sem.apply(context.Background(), -1, SemNoWait)
	if errors.Is(err, ErrWouldBlock) {
		return false, nil
	}
	return err == nil, err
}

func (sem *setSemaphore) AcquireTimeout(timeoutMs int) (bool, error) {
	if timeoutMs <= 0 {
		return sem.TryAcquire()
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(timeoutMs)*time.Millisecond)
	defer cancel()
	err := sem.apply(ctx, -1, 0)
	if errors.Is(err, context.DeadlineExceeded) {
		return false, nil
	}
	return err == nil, err
}

func (sem *setSemaphore) Close() error {
	sem.mu.Lock()
	defer sem.mu.Unlock()
	sem.closed = true
	return nil
}
