package sysvipc

import (
	"fmt"
	"io"
	"unsafe"
)

// SegmentCursor reads and writes an attached segment sequentially. It
// implements io.Reader, io.Writer and io.Seeker on top of the ReadAt and
// WriteAt methods of SharedMemory, so every access is bounds checked against
// the current segment size.
//
// A cursor keeps its own position and is not safe for concurrent use.
type SegmentCursor struct {
	seg *SharedMemory
	pos int64
}

// NewSegmentCursor returns a cursor positioned at the start of seg.
func NewSegmentCursor(seg *SharedMemory) *SegmentCursor {
	return &SegmentCursor{seg: seg}
}

// Read reads up to len(p) bytes at the current position.
func (c *SegmentCursor) Read(p []byte) (int, error) {
	n, err := c.seg.ReadAt(p, c.pos)
	c.pos += int64(n)
	if err == io.EOF && n > 0 {
		return n, nil
	}
	return n, err
}

// Write writes p at the current position.
func (c *SegmentCursor) Write(p []byte) (int, error) {
	n, err := c.seg.WriteAt(p, c.pos)
	c.pos += int64(n)
	return n, err
}

// Seek sets the position for the next Read or Write. Positions outside
// [0, size] are rejected.
func (c *SegmentCursor) Seek(offset int64, whence int) (int64, error) {
	switch whence {
	case io.SeekStart:
	case io.SeekCurrent:
		offset += c.pos
	case io.SeekEnd:
		size, err := c.seg.Size()
		if err != nil {
			return 0, err
		}
		offset += int64(size)
	default:
		return 0, fmt.Errorf("sysvipc: invalid whence %d", whence)
	}
	size, err := c.seg.Size()
	if err != nil {
		return 0, err
	}
	if offset < 0 || offset > int64(size) {
		return 0, fmt.Errorf("%w: seek to %d, segment size %d", ErrOutOfRange, offset, size)
	}
	c.pos = offset
	return offset, nil
}

// TypedSlice returns a zero-copy view of the attached segment as a slice of
// T, starting at offset and covering as many whole elements as fit. Changes
// made through the slice are immediately visible to every process attached
// to the segment.
//
// Warning: the slice is only valid while the segment stays attached. Using
// it after Detach or Remove results in undefined behavior.
func TypedSlice[T any](seg *SharedMemory, offset int) ([]T, error) {
	seg.mu.Lock()
	defer seg.mu.Unlock()

	size, err := seg.mappedSizeLocked()
	if err != nil {
		return nil, err
	}
	if offset < 0 || offset > size {
		return nil, fmt.Errorf("%w: offset %d, segment size %d", ErrOutOfRange, offset, size)
	}
	elementSize := int(unsafe.Sizeof(*new(T)))
	if elementSize == 0 {
		return nil, fmt.Errorf("sysvipc: zero-size element type")
	}
	count := (size - offset) / elementSize
	if count == 0 {
		return []T{}, nil
	}
	if uintptr(offset)%unsafe.Alignof(*new(T)) != 0 {
		return nil, fmt.Errorf("sysvipc: offset %d is not aligned for element size %d", offset, elementSize)
	}
	if seg.readOnly {
		return nil, ErrReadOnly
	}
	return unsafe.Slice((*T)(unsafe.Pointer(&seg.data[offset])), count), nil
}
