package sysvipc

import (
	"context"
	"errors"
	"fmt"
	"syscall"
	"time"

	"github.com/cenkalti/backoff"
	"go.uber.org/zap"
)

// RetryPolicy is the polling schedule used while a blocking operation waits
// under a cancellable context. Intervals grow geometrically from
// InitialInterval to MaxInterval; there is no overall deadline other than the
// context's.
type RetryPolicy struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64
}

// DefaultRetryPolicy returns the policy used when none is configured.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		InitialInterval: 500 * time.Microsecond,
		MaxInterval:     50 * time.Millisecond,
		Multiplier:      1.5,
	}
}

func (p RetryPolicy) backOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	if p.InitialInterval > 0 {
		b.InitialInterval = p.InitialInterval
	}
	if p.MaxInterval > 0 {
		b.MaxInterval = p.MaxInterval
	}
	if p.Multiplier >= 1 {
		b.Multiplier = p.Multiplier
	}
	b.MaxElapsedTime = 0
	b.Reset()
	return backoff.WithContext(b, ctx)
}

// attemptFunc performs one kernel call. When forceNoWait is set the call
// must carry IPC_NOWAIT in addition to the caller's own flags.
type attemptFunc func(forceNoWait bool) error

// block runs a potentially blocking kernel call.
//
// With a context that can never be cancelled the call blocks in the kernel;
// the runtime keeps other goroutines running while this one is parked in the
// syscall. Otherwise the call is forced non-blocking and polled with backoff
// until it succeeds, fails for another reason, or ctx is done. EINTR is
// retried in both modes. If the caller asked for no-wait behaviour, a call
// that would block fails with ErrWouldBlock.
func (h *Handle) block(ctx context.Context, op string, noWait bool, attempt attemptFunc) error {
	if noWait || ctx.Done() == nil {
		for {
			err := attempt(false)
			errno := errnoOf(err)
			if errno == syscall.EINTR {
				continue
			}
			if noWait && isWouldBlock(errno) {
				h.opts.observer.KernelCall(op, err)
				return fmt.Errorf("sysvipc: %s: %w", op, ErrWouldBlock)
			}
			return h.call(op, err)
		}
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	poll := func() error {
		for {
			err := attempt(true)
			if err == nil {
				return nil
			}
			errno := errnoOf(err)
			if errno == syscall.EINTR {
				continue
			}
			if isWouldBlock(errno) {
				h.opts.observer.Retry(op)
				return err
			}
			return backoff.Permanent(err)
		}
	}
	err := backoff.Retry(poll, h.opts.retry.backOff(ctx))
	if err != nil && isWouldBlock(errnoOf(err)) {
		// The backoff gives up once the next interval would overrun the
		// deadline, which can be before ctx is done. Would-block never
		// escapes this path, so wait out the rest of the deadline.
		<-ctx.Done()
		h.opts.logger.Debug("blocking call abandoned", zap.String("op", op), zap.Error(ctx.Err()))
		return ctx.Err()
	}
	return h.call(op, err)
}

func errnoOf(err error) syscall.Errno {
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return errno
	}
	return 0
}
