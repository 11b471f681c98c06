package sysvipc

import "go.uber.org/zap"

// Observer receives a callback for every kernel call a handle makes and for
// every poll that found the object busy. Implementations must be safe for
// concurrent use. See the metrics package for a Prometheus implementation.
type Observer interface {
	// KernelCall is invoked after a syscall completes; err is nil on success.
	KernelCall(op string, err error)

	// Retry is invoked each time a polled operation would have blocked.
	Retry(op string)
}

type nopObserver struct{}

func (nopObserver) KernelCall(string, error) {}
func (nopObserver) Retry(string) {}

// Option configures a handle at open time.
type Option func(*options)

type options struct {
	logger     *zap.Logger
	observer   Observer
	retry      RetryPolicy
	serializer Serializer
	pool       *BufferPool
}

// sharedPool serves message buffers up to the default Linux MSGMAX.
var sharedPool = NewBufferPool(msgHeaderSize+8192, 16)

func buildOptions(opts []Option) options {
	o := options{
		logger:     zap.NewNop(),
		observer:   nopObserver{},
		retry:      DefaultRetryPolicy(),
		serializer: MsgpackSerializer{},
		pool:       sharedPool,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithLogger sets the logger used for lifecycle and failure events.
// The default discards everything.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithObserver installs an Observer.
func WithObserver(observer Observer) Option {
	return func(o *options) {
		if observer != nil {
			o.observer = observer
		}
	}
}

// WithRetryPolicy sets the polling schedule for blocking operations that run
// under a cancellable context.
func WithRetryPolicy(policy RetryPolicy) Option {
	return func(o *options) {
		o.retry = policy
	}
}

// WithSerializer sets the codec used by SendValue and ReceiveValue.
// The default is MessagePack.
func WithSerializer(serializer Serializer) Option {
	return func(o *options) {
		if serializer != nil {
			o.serializer = serializer
		}
	}
}

// WithBufferPool sets the pool message buffers are drawn from.
func WithBufferPool(pool *BufferPool) Option {
	return func(o *options) {
		if pool != nil {
			o.pool = pool
		}
	}
}
