package sysvipc

import (
	"errors"
	"syscall"
	"testing"

	"github.com/stretchr/testify/require"
)

// requireSysV skips the test when the kernel refuses System V IPC, as
// sandboxes and some containers do.
func requireSysV(t *testing.T) {
	t.Helper()
	q, err := OpenMessageQueue(IPCPrivate, Create|0o600)
	if err != nil {
		if errors.Is(err, ErrUnsupported) || errors.Is(err, syscall.ENOSYS) || errors.Is(err, syscall.EPERM) {
			t.Skipf("System V IPC unavailable: %v", err)
		}
		require.NoError(t, err)
	}
	require.NoError(t, q.Remove())
}

// removeOnCleanup removes h when the test ends unless the test already did.
func removeOnCleanup(t *testing.T, h interface{ Remove() error }) {
	t.Cleanup(func() {
		if err := h.Remove(); err != nil && !errors.Is(err, ErrAlreadyRemoved) {
			t.Errorf("cleanup remove: %v", err)
		}
	})
}

func newQueue(t *testing.T, opts ...Option) *MessageQueue {
	t.Helper()
	requireSysV(t)
	q, err := OpenMessageQueue(IPCPrivate, Create|0o600, opts...)
	require.NoError(t, err)
	removeOnCleanup(t, q)
	return q
}

func newSemaphoreSet(t *testing.T, count int, opts ...Option) *SemaphoreSet {
	t.Helper()
	requireSysV(t)
	s, err := OpenSemaphoreSet(IPCPrivate, count, Create|0o600, opts...)
	require.NoError(t, err)
	removeOnCleanup(t, s)
	return s
}

func newSegment(t *testing.T, size int, opts ...Option) *SharedMemory {
	t.Helper()
	requireSysV(t)
	s, err := OpenSharedMemory(IPCPrivate, size, Create|0o600, opts...)
	require.NoError(t, err)
	removeOnCleanup(t, s)
	return s
}

// testKey returns a key derived from the test's PID so parallel runs of the
// suite do not share objects.
func testKey(t *testing.T, salt int32) Key {
	t.Helper()
	return Key(0x51000000 | (int32(syscall.Getpid())&0xffff)<<8 | salt&0xff)
}
