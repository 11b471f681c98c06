package sysvipc

import (
	"context"
	"sync"

	"github.com/vmihailenco/msgpack/v5"
)

// MsgpackSerializer encodes values with MessagePack.
type MsgpackSerializer struct{}

// Marshal encodes v as MessagePack.
func (ms MsgpackSerializer) Marshal(v interface{}) ([]byte, error) {
	return msgpack.Marshal(v)
}

// Unmarshal decodes MessagePack data into v.
func (ms MsgpackSerializer) Unmarshal(data []byte, v interface{}) error {
	return msgpack.Unmarshal(data, v)
}

// QueueTransport carries byte messages over a message queue. Outgoing
// messages are sent with one message type and incoming ones are received
// with another, so two peers can share a single queue by swapping the types.
//
// Receive waits for a message until Close is called. Closing the transport
// does not remove the queue.
type QueueTransport struct {
	queue     *MessageQueue
	sendType  int64
	recvType  int64
	maxLength int

	ctx    context.Context
	cancel context.CancelFunc
	once   sync.Once
}

var (
	_ Serializer = MsgpackSerializer{}
	_ Transport  = (*QueueTransport)(nil)
)

// NewQueueTransport creates a transport on q. Messages are sent as sendType
// and received as recvType, truncated to maxLength bytes.
func NewQueueTransport(q *MessageQueue, sendType, recvType int64, maxLength int) *QueueTransport {
	ctx, cancel := context.WithCancel(context.Background())
	return &QueueTransport{
		queue:     q,
		sendType:  sendType,
		recvType:  recvType,
		maxLength: maxLength,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Send queues data as one message of the transport's send type.
func (qt *QueueTransport) Send(data []byte) error {
	return qt.queue.Send(qt.ctx, qt.sendType, data, 0)
}

// Receive waits for the next message of the transport's receive type,
// truncating it to the configured maximum length.
func (qt *QueueTransport) Receive() ([]byte, error) {
	return qt.queue.Receive(qt.ctx, qt.recvType, qt.maxLength, MsgNoError)
}

// Close unblocks pending calls; they, and every later call, fail with
// context.Canceled.
func (qt *QueueTransport) Close() error {
	qt.once.Do(qt.cancel)
	return nil
}

// Flush is a no-op: every Send hands its message to the kernel immediately.
func (qt *QueueTransport) Flush() error {
	return nil
}
