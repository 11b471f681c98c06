package sysvipc

// BufferPool recycles the fixed-size buffers that carry messages between
// user space and the kernel, so that a busy queue does not allocate a fresh
// buffer per Send or Receive. It holds at most count idle buffers and fills
// up lazily as buffers are returned.
//
// BufferPool is safe for concurrent use by multiple goroutines. The channel
// provides the synchronization for both Get and Put.
type BufferPool struct {
	pool    chan []byte
	bufSize int
}

// NewBufferPool creates a pool of bufSize-byte buffers keeping up to count idle.
func NewBufferPool(bufSize, count int) *BufferPool {
	return &BufferPool{
		pool:    make(chan []byte, count),
		bufSize: bufSize,
	}
}

// Size returns the length of the buffers handed out by Get.
func (bp *BufferPool) Size() int {
	return bp.bufSize
}

// Get returns an idle buffer, or allocates one if none is idle.
// The returned buffer has length and capacity bufSize.
func (bp *BufferPool) Get() []byte {
	select {
	case buf := <-bp.pool:
		return buf
	default:
		return make([]byte, bp.bufSize)
	}
}

// Put returns a buffer to the pool. Buffers of another capacity, and buffers
// arriving while the pool is full, are dropped for the garbage collector.
func (bp *BufferPool) Put(buf []byte) {
	if cap(buf) != bp.bufSize {
		return
	}

	select {
	case bp.pool <- buf[:bp.bufSize]:
	default:
	}
}
