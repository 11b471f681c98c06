package sysvipc

import (
	"context"
	"encoding/binary"
	"syscall"
	"time"
)

// msgHeaderSize is the size of the long mtype field that precedes the
// payload in a kernel message buffer.
const msgHeaderSize = 8

// MessageQueue is a handle to a System V message queue.
//
// Send and Receive block while the queue is full or holds no matching
// message. Under a context that can be cancelled they poll instead, so the
// wait ends when the context does.
//
// Example:
//
//	q, _ := sysvipc.OpenMessageQueue(key, sysvipc.Create|0600)
//	q.Send(ctx, 1, []byte("hello"), 0)
//	msg, _ := q.Receive(ctx, 1, 8192, 0) // "hello"
type MessageQueue struct {
	*Handle
	fac *msgFacility
}

// Message is a received message together with its type.
type Message struct {
	Type int64
	Data []byte
}

// QueueStats holds the kernel statistics of a message queue.
type QueueStats struct {
	Perm PermissionView

	// Bytes is the number of payload bytes currently queued.
	Bytes uint64

	// Messages is the number of messages currently queued.
	Messages uint64

	// MaxBytes is the maximum number of payload bytes the queue may hold.
	MaxBytes uint64

	LastSendPID    int
	LastReceivePID int
	SendTime       time.Time
	ReceiveTime    time.Time
	ChangeTime     time.Time
}

type msgFacility struct {
	ds msqidDS
}

func (f *msgFacility) kind() Kind          { return KindMessageQueue }
func (f *msgFacility) ctl() string         { return "msgctl" }
func (f *msgFacility) stat(id int) error   { return msgStat(id, &f.ds) }
func (f *msgFacility) remove(id int) error { return msgRemove(id) }

func (f *msgFacility) perm() PermissionView {
	return f.ds.Perm.view()
}

// OpenMessageQueue opens the message queue identified by key, creating it if
// flags include Create. It fails with a *KernelError if msgget does, for
// example when the key is unknown and Create is absent, when Exclusive is set
// and the queue exists, or when access is denied.
func OpenMessageQueue(key Key, flags CreateFlag, opts ...Option) (*MessageQueue, error) {
	fac := &msgFacility{}
	h, err := open("msgget", key, flags, fac, opts, func() (int, error) {
		return msgget(key, int(flags))
	})
	if err != nil {
		return nil, err
	}
	return &MessageQueue{Handle: h, fac: fac}, nil
}

// Send enqueues payload as a message of type mtype, which must be positive.
// If the queue is full Send waits for room unless flags include MsgNoWait,
// in which case it fails with ErrWouldBlock.
func (q *MessageQueue) Send(ctx context.Context, mtype int64, payload []byte, flags MsgFlag) error {
	id, err := q.liveID()
	if err != nil {
		return err
	}

	size := msgHeaderSize + len(payload)
	buf := q.buffer(size)
	defer q.release(buf)
	binary.NativeEndian.PutUint64(buf, uint64(mtype))
	copy(buf[msgHeaderSize:], payload)

	return q.block(ctx, "msgsnd", flags&MsgNoWait != 0, func(forceNoWait bool) error {
		f := int(flags)
		if forceNoWait {
			f |= ipcNoWait
		}
		return msgsnd(id, buf, f)
	})
}

// Receive dequeues the next message selected by mtype and returns its
// payload. mtype 0 takes the first message of any type, a positive mtype
// the first message of that type, and a negative mtype the first message
// with the lowest type not above -mtype. At most maxLength bytes are
// returned; a longer message fails with E2BIG unless flags include
// MsgNoError. Without MsgNoWait, Receive waits for a matching message.
func (q *MessageQueue) Receive(ctx context.Context, mtype int64, maxLength int, flags MsgFlag) ([]byte, error) {
	msg, err := q.ReceiveMessage(ctx, mtype, maxLength, flags)
	if err != nil {
		return nil, err
	}
	return msg.Data, nil
}

// ReceiveMessage is like Receive but also reports the type of the message,
// which is useful when mtype selects more than one type.
func (q *MessageQueue) ReceiveMessage(ctx context.Context, mtype int64, maxLength int, flags MsgFlag) (Message, error) {
	id, err := q.liveID()
	if err != nil {
		return Message{}, err
	}
	if maxLength < 0 {
		return Message{}, &KernelError{Op: "msgrcv", Errno: syscall.EINVAL}
	}

	buf := q.buffer(msgHeaderSize + maxLength)
	defer q.release(buf)

	var n int
	err = q.block(ctx, "msgrcv", flags&MsgNoWait != 0, func(forceNoWait bool) error {
		f := int(flags)
		if forceNoWait {
			f |= ipcNoWait
		}
		var err error
		n, err = msgrcv(id, buf, mtype, f)
		return err
	})
	if err != nil {
		return Message{}, err
	}

	data := make([]byte, n)
	copy(data, buf[msgHeaderSize:msgHeaderSize+n])
	return Message{
		Type: int64(binary.NativeEndian.Uint64(buf)),
		Data: data,
	}, nil
}

// SendValue encodes v with the handle's Serializer and sends it.
func (q *MessageQueue) SendValue(ctx context.Context, mtype int64, v interface{}, flags MsgFlag) error {
	data, err := q.opts.serializer.Marshal(v)
	if err != nil {
		return err
	}
	return q.Send(ctx, mtype, data, flags)
}

// ReceiveValue receives a message and decodes it into v with the handle's
// Serializer.
func (q *MessageQueue) ReceiveValue(ctx context.Context, mtype int64, maxLength int, flags MsgFlag, v interface{}) error {
	data, err := q.Receive(ctx, mtype, maxLength, flags)
	if err != nil {
		return err
	}
	return q.opts.serializer.Unmarshal(data, v)
}

// Stats refreshes and returns the queue statistics.
func (q *MessageQueue) Stats() (QueueStats, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, err := q.refreshLocked(); err != nil {
		return QueueStats{}, err
	}
	ds := &q.fac.ds
	return QueueStats{
		Perm:           ds.Perm.view(),
		Bytes:          ds.Cbytes,
		Messages:       ds.Qnum,
		MaxBytes:       ds.Qbytes,
		LastSendPID:    int(ds.Lspid),
		LastReceivePID: int(ds.Lrpid),
		SendTime:       unixTime(ds.Stime),
		ReceiveTime:    unixTime(ds.Rtime),
		ChangeTime:     unixTime(ds.Ctime),
	}, nil
}

// buffer returns a message buffer of exactly size bytes, pooled when it fits.
func (q *MessageQueue) buffer(size int) []byte {
	if size <= q.opts.pool.Size() {
		return q.opts.pool.Get()[:size]
	}
	return make([]byte, size)
}

func (q *MessageQueue) release(buf []byte) {
	q.opts.pool.Put(buf)
}

// unixTime converts a kernel timestamp; zero means "never" and stays the zero Time.
func unixTime(sec int64) time.Time {
	if sec == 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0)
}
