package sysvipc

// Serializer defines the interface for message encoding and decoding.
// Implementations convert between Go values and message payloads for
// MessageQueue.SendValue and ReceiveValue. The default implementation uses
// MessagePack.
type Serializer interface {
	// Marshal encodes a Go value to bytes.
	Marshal(v interface{}) ([]byte, error)

	// Unmarshal decodes bytes into a Go value.
	Unmarshal(data []byte, v interface{}) error
}

// Transport defines the interface for sending and receiving byte messages.
// QueueTransport implements it on top of a message queue, so code written
// against a byte-message transport can run over System V IPC.
type Transport interface {
	// Send transmits a message to the remote endpoint.
	Send(data []byte) error

	// Receive reads a complete message from the remote endpoint.
	Receive() ([]byte, error)

	// Close releases transport resources.
	Close() error

	// Flush ensures any buffered data is sent immediately.
	Flush() error
}
