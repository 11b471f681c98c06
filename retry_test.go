package sysvipc

import (
	"context"
	"errors"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingObserver counts Observer callbacks.
type recordingObserver struct {
	mu      sync.Mutex
	calls   map[string]int
	retries map[string]int
}

func newRecordingObserver() *recordingObserver {
	return &recordingObserver{calls: map[string]int{}, retries: map[string]int{}}
}

func (o *recordingObserver) KernelCall(op string, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.calls[op]++
}

func (o *recordingObserver) Retry(op string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.retries[op]++
}

func (o *recordingObserver) count(m map[string]int, op string) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return m[op]
}

// detachedHandle returns a Handle that never reaches the kernel, for
// exercising block directly.
func detachedHandle(opts ...Option) *Handle {
	return &Handle{id: 1, fac: &msgFacility{}, opts: buildOptions(opts)}
}

func fastPolicy() RetryPolicy {
	return RetryPolicy{InitialInterval: time.Millisecond, MaxInterval: 2 * time.Millisecond, Multiplier: 1.5}
}

func TestBlockNativeRetriesEINTR(t *testing.T) {
	h := detachedHandle()
	calls := 0
	err := h.block(context.Background(), "msgsnd", false, func(forceNoWait bool) error {
		assert.False(t, forceNoWait, "an uncancellable context blocks in the kernel")
		calls++
		if calls < 3 {
			return syscall.EINTR
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestBlockNoWaitReportsWouldBlock(t *testing.T) {
	for _, errno := range []syscall.Errno{syscall.EAGAIN, syscall.ENOMSG} {
		t.Run(errno.Error(), func(t *testing.T) {
			obs := newRecordingObserver()
			h := detachedHandle(WithObserver(obs))
			err := h.block(context.Background(), "msgrcv", true, func(bool) error {
				return errno
			})
			assert.ErrorIs(t, err, ErrWouldBlock)
			assert.Equal(t, 1, obs.count(obs.calls, "msgrcv"))
		})
	}
}

func TestBlockWrapsKernelErrors(t *testing.T) {
	h := detachedHandle()
	err := h.block(context.Background(), "semop", false, func(bool) error {
		return syscall.EIDRM
	})
	var kerr *KernelError
	require.ErrorAs(t, err, &kerr)
	assert.Equal(t, "semop", kerr.Op)
	assert.ErrorIs(t, err, syscall.EIDRM)
}

func TestBlockPollsUnderCancellableContext(t *testing.T) {
	obs := newRecordingObserver()
	h := detachedHandle(WithObserver(obs), WithRetryPolicy(fastPolicy()))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	calls := 0
	err := h.block(ctx, "msgrcv", false, func(forceNoWait bool) error {
		assert.True(t, forceNoWait, "a cancellable context polls")
		calls++
		switch calls {
		case 1:
			return syscall.ENOMSG
		case 2:
			return syscall.EINTR
		case 3:
			return syscall.EAGAIN
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 4, calls)
	assert.Equal(t, 2, obs.count(obs.retries, "msgrcv"))
}

func TestBlockStopsOnPermanentError(t *testing.T) {
	h := detachedHandle(WithRetryPolicy(fastPolicy()))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	calls := 0
	err := h.block(ctx, "msgsnd", false, func(bool) error {
		calls++
		return syscall.EACCES
	})
	assert.ErrorIs(t, err, syscall.EACCES)
	assert.Equal(t, 1, calls)
}

func TestBlockReturnsContextError(t *testing.T) {
	h := detachedHandle(WithRetryPolicy(fastPolicy()))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := h.block(ctx, "semop", false, func(bool) error {
		return syscall.EAGAIN
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	cancelled, cancel2 := context.WithCancel(context.Background())
	cancel2()
	calls := 0
	err = h.block(cancelled, "semop", false, func(bool) error {
		calls++
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, calls, "nothing is attempted once the context is done")
}

func TestBlockWaitsOutDeadlineShorterThanInterval(t *testing.T) {
	// The first poll interval already overruns the deadline, so the backoff
	// stops before the context is done.
	h := detachedHandle(WithRetryPolicy(RetryPolicy{
		InitialInterval: 40 * time.Millisecond,
		MaxInterval:     40 * time.Millisecond,
		Multiplier:      1,
	}))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	calls := 0
	err := h.block(ctx, "semop", false, func(forceNoWait bool) error {
		calls++
		return syscall.EAGAIN
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.NotErrorIs(t, err, syscall.EAGAIN)
	assert.NotErrorIs(t, err, ErrWouldBlock)
	var kerr *KernelError
	assert.False(t, errors.As(err, &kerr), "would-block does not surface as a kernel error")
	assert.Error(t, ctx.Err(), "block returns only once the deadline has passed")
	assert.GreaterOrEqual(t, calls, 1)
}

func TestRetryPolicyBackOff(t *testing.T) {
	b := RetryPolicy{InitialInterval: 10 * time.Millisecond, MaxInterval: 20 * time.Millisecond, Multiplier: 2}.backOff(context.Background())
	for i := 0; i < 10; i++ {
		d := b.NextBackOff()
		assert.Greater(t, d, time.Duration(0))
		assert.LessOrEqual(t, d, 30*time.Millisecond, "interval stays near MaxInterval with jitter")
	}
}
