package sysvipc

import (
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSharedMemoryRoundTrip(t *testing.T) {
	seg := newSegment(t, 8192)

	require.NoError(t, seg.Attach(0))
	require.NoError(t, seg.Write([]byte("testing"), 0))
	require.NoError(t, seg.Write([]byte("tail"), 8188))
	require.NoError(t, seg.Detach())
	assert.False(t, seg.Attached())

	require.NoError(t, seg.Attach(0))
	defer seg.Detach()
	got, err := seg.Read(7, 0)
	require.NoError(t, err)
	assert.Equal(t, []byte("testing"), got)

	got, err = seg.Read(4, 8188)
	require.NoError(t, err)
	assert.Equal(t, []byte("tail"), got)

	all, err := seg.ReadAll()
	require.NoError(t, err)
	assert.Len(t, all, 8192)
}

func TestSharedMemoryAcrossHandles(t *testing.T) {
	requireSysV(t)
	key := testKey(t, 0x20)

	writer, err := OpenSharedMemory(key, 4096, Create|0o600)
	require.NoError(t, err)
	removeOnCleanup(t, writer)
	reader, err := OpenSharedMemory(key, 0, 0)
	require.NoError(t, err)

	require.NoError(t, writer.Attach(0))
	defer writer.Detach()
	require.NoError(t, reader.Attach(AttachReadOnly))
	defer reader.Detach()

	require.NoError(t, writer.Write([]byte("shared"), 100))
	got, err := reader.Read(6, 100)
	require.NoError(t, err)
	assert.Equal(t, []byte("shared"), got)

	stats, err := reader.Stats()
	require.NoError(t, err)
	assert.Equal(t, 4096, stats.Size)
	assert.Equal(t, 2, stats.Attaches)
	assert.False(t, stats.AttachTime.IsZero())
}

func TestSharedMemoryBounds(t *testing.T) {
	seg := newSegment(t, 100)
	require.NoError(t, seg.Attach(0))
	defer seg.Detach()

	size, err := seg.Size()
	require.NoError(t, err)
	assert.Equal(t, 100, size)

	_, err = seg.Read(101, 0)
	assert.ErrorIs(t, err, ErrOutOfRange)
	_, err = seg.Read(1, 100)
	assert.ErrorIs(t, err, ErrOutOfRange)
	_, err = seg.Read(-1, 0)
	assert.ErrorIs(t, err, ErrOutOfRange)
	_, err = seg.Read(1, -1)
	assert.ErrorIs(t, err, ErrOutOfRange)
	assert.ErrorIs(t, seg.Write(make([]byte, 101), 0), ErrOutOfRange)
	assert.ErrorIs(t, seg.Write([]byte("xy"), 99), ErrOutOfRange)

	got, err := seg.Read(0, 100)
	require.NoError(t, err)
	assert.Empty(t, got)
	require.NoError(t, seg.Write(make([]byte, 100), 0))
}

func TestSharedMemoryAttachState(t *testing.T) {
	seg := newSegment(t, 64)

	_, err := seg.Read(1, 0)
	assert.ErrorIs(t, err, ErrNotAttached)
	assert.ErrorIs(t, seg.Write([]byte("x"), 0), ErrNotAttached)
	assert.ErrorIs(t, seg.Detach(), ErrNotAttached)

	require.NoError(t, seg.Attach(0))
	assert.True(t, seg.Attached())
	assert.ErrorIs(t, seg.Attach(0), ErrAlreadyAttached)
	require.NoError(t, seg.Detach())
}

func TestSharedMemoryReadOnly(t *testing.T) {
	seg := newSegment(t, 64)
	require.NoError(t, seg.Attach(AttachReadOnly))
	defer seg.Detach()

	assert.ErrorIs(t, seg.Write([]byte("x"), 0), ErrReadOnly)
	_, err := seg.WriteAt([]byte("x"), 0)
	assert.ErrorIs(t, err, ErrReadOnly)
	_, err = TypedSlice[uint32](seg, 0)
	assert.ErrorIs(t, err, ErrReadOnly)

	got, err := seg.Read(4, 0)
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 0, 0, 0}, got)
}

func TestRemoveDetachesSegment(t *testing.T) {
	seg := newSegment(t, 64)
	require.NoError(t, seg.Attach(0))

	require.NoError(t, seg.Remove())
	assert.False(t, seg.Attached())
	assert.ErrorIs(t, seg.Detach(), ErrClosedHandle)
}

func TestSharedMemoryReaderAt(t *testing.T) {
	seg := newSegment(t, 16)
	require.NoError(t, seg.Attach(0))
	defer seg.Detach()

	n, err := seg.WriteAt([]byte("0123456789abcdef"), 0)
	require.NoError(t, err)
	assert.Equal(t, 16, n)

	buf := make([]byte, 4)
	n, err = seg.ReadAt(buf, 14)
	assert.Equal(t, 2, n)
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, []byte("ef"), buf[:n])

	_, err = seg.ReadAt(buf, 17)
	assert.ErrorIs(t, err, ErrOutOfRange)
	_, err = seg.WriteAt([]byte("xyz"), 14)
	assert.ErrorIs(t, err, ErrOutOfRange)

	section := io.NewSectionReader(seg, 4, 6)
	data, err := io.ReadAll(section)
	require.NoError(t, err)
	assert.Equal(t, []byte("456789"), data)
}

func TestSegmentCursor(t *testing.T) {
	seg := newSegment(t, 32)
	require.NoError(t, seg.Attach(0))
	defer seg.Detach()

	c := NewSegmentCursor(seg)
	n, err := io.WriteString(c, "hello, ")
	require.NoError(t, err)
	assert.Equal(t, 7, n)
	_, err = c.Write([]byte("world"))
	require.NoError(t, err)

	pos, err := c.Seek(0, io.SeekStart)
	require.NoError(t, err)
	assert.Zero(t, pos)

	buf := make([]byte, 12)
	_, err = io.ReadFull(c, buf)
	require.NoError(t, err)
	assert.Equal(t, "hello, world", string(buf))

	pos, err = c.Seek(-2, io.SeekEnd)
	require.NoError(t, err)
	assert.EqualValues(t, 30, pos)
	rest, err := io.ReadAll(c)
	require.NoError(t, err)
	assert.Len(t, rest, 2)

	_, err = c.Seek(1, io.SeekEnd)
	assert.ErrorIs(t, err, ErrOutOfRange)
	_, err = c.Seek(-1, io.SeekStart)
	assert.ErrorIs(t, err, ErrOutOfRange)
	_, err = c.Seek(0, 42)
	assert.Error(t, err)
}

func TestTypedSlice(t *testing.T) {
	seg := newSegment(t, 64)
	require.NoError(t, seg.Attach(0))
	defer seg.Detach()

	words, err := TypedSlice[uint32](seg, 8)
	require.NoError(t, err)
	assert.Len(t, words, 14)
	words[0] = 0xdeadbeef

	other, err := TypedSlice[uint32](seg, 8)
	require.NoError(t, err)
	assert.Equal(t, uint32(0xdeadbeef), other[0])

	_, err = TypedSlice[uint32](seg, 3)
	assert.Error(t, err, "misaligned offset")
	_, err = TypedSlice[uint32](seg, 65)
	assert.ErrorIs(t, err, ErrOutOfRange)
	_, err = TypedSlice[struct{}](seg, 0)
	assert.Error(t, err)

	empty, err := TypedSlice[uint64](seg, 60)
	require.NoError(t, err)
	assert.Empty(t, empty)
}
