package sysvipc

import (
	"fmt"
	"io"
	"time"
)

// SharedMemory is a handle to a System V shared memory segment.
//
// The segment has to be attached before it can be read or written. Reads
// and writes are bounds checked against the segment size reported by the
// kernel at the time of the call. The handle owns its mapping: it can be
// attached once at a time, and the mapped bytes are not locked, so
// concurrent writers must coordinate, for example with a Semaphore.
//
// Example:
//
//	shm, _ := sysvipc.OpenSharedMemory(key, 8192, sysvipc.Create|0660)
//	shm.Attach(0)
//	shm.Write([]byte("testing"), 0)
//	data, _ := shm.Read(7, 0) // "testing"
//	shm.Detach()
type SharedMemory struct {
	*Handle
	fac *shmFacility
}

// SegmentStats holds the kernel statistics of a shared memory segment.
type SegmentStats struct {
	Perm PermissionView

	// Size is the segment size in bytes.
	Size int

	// Attaches is the number of current attaches across all processes.
	Attaches int

	CreatorPID int

	// LastPID is the PID of the last shmat or shmdt caller.
	LastPID int

	AttachTime time.Time
	DetachTime time.Time
	ChangeTime time.Time
}

type shmFacility struct {
	ds shmidDS
}

func (f *shmFacility) kind() Kind          { return KindSharedMemory }
func (f *shmFacility) ctl() string         { return "shmctl" }
func (f *shmFacility) stat(id int) error   { return shmStat(id, &f.ds) }
func (f *shmFacility) remove(id int) error { return shmRemove(id) }

func (f *shmFacility) perm() PermissionView {
	return shmPermView(&f.ds)
}

// OpenSharedMemory opens the segment identified by key, creating a segment
// of size bytes if flags include Create. When opening an existing segment
// size may be 0.
func OpenSharedMemory(key Key, size int, flags CreateFlag, opts ...Option) (*SharedMemory, error) {
	fac := &shmFacility{}
	h, err := open("shmget", key, flags, fac, opts, func() (int, error) {
		return shmget(key, size, int(flags))
	})
	if err != nil {
		return nil, err
	}
	return &SharedMemory{Handle: h, fac: fac}, nil
}

// Attach maps the segment into the process. It fails with
// ErrAlreadyAttached if this handle already holds a mapping.
func (s *SharedMemory) Attach(flags AttachFlag) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, err := s.liveLocked()
	if err != nil {
		return err
	}
	if s.data != nil {
		return ErrAlreadyAttached
	}
	data, err := shmat(id, int(flags))
	if err := s.call("shmat", err); err != nil {
		return err
	}
	s.data = data
	s.readOnly = flags&AttachReadOnly != 0
	return nil
}

// Detach unmaps the segment. Slices obtained from TypedSlice become invalid.
func (s *SharedMemory) Detach() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.liveLocked(); err != nil {
		return err
	}
	if s.data == nil {
		return ErrNotAttached
	}
	if err := s.call("shmdt", shmdt(s.data)); err != nil {
		return err
	}
	s.data = nil
	s.readOnly = false
	return nil
}

// Attached reports whether the handle currently holds a mapping.
func (s *SharedMemory) Attached() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data != nil
}

// Size returns the segment size in bytes.
func (s *SharedMemory) Size() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.refreshLocked(); err != nil {
		return 0, err
	}
	return int(s.fac.ds.Segsz), nil
}

// Read returns a copy of length bytes starting at offset. It fails with
// ErrOutOfRange if offset+length exceeds the segment size.
func (s *SharedMemory) Read(length, offset int) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	size, err := s.mappedSizeLocked()
	if err != nil {
		return nil, err
	}
	if err := checkRange(offset, length, size); err != nil {
		return nil, err
	}
	out := make([]byte, length)
	copy(out, s.data[offset:offset+length])
	return out, nil
}

// ReadAll returns a copy of the whole segment.
func (s *SharedMemory) ReadAll() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	size, err := s.mappedSizeLocked()
	if err != nil {
		return nil, err
	}
	out := make([]byte, size)
	copy(out, s.data[:size])
	return out, nil
}

// Write copies data into the segment at offset. It fails with ErrOutOfRange
// if offset+len(data) exceeds the segment size, and with ErrReadOnly if the
// segment was attached with AttachReadOnly.
func (s *SharedMemory) Write(data []byte, offset int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	size, err := s.mappedSizeLocked()
	if err != nil {
		return err
	}
	if s.readOnly {
		return ErrReadOnly
	}
	if err := checkRange(offset, len(data), size); err != nil {
		return err
	}
	copy(s.data[offset:], data)
	return nil
}

// ReadAt implements io.ReaderAt. A read reaching past the end of the segment
// returns the bytes up to the end and io.EOF.
func (s *SharedMemory) ReadAt(p []byte, off int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	size, err := s.mappedSizeLocked()
	if err != nil {
		return 0, err
	}
	if off < 0 || off > int64(size) {
		return 0, fmt.Errorf("%w: offset %d, segment size %d", ErrOutOfRange, off, size)
	}
	n := copy(p, s.data[off:size])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// WriteAt implements io.WriterAt. Writes never extend the segment: a write
// that does not fit fails with ErrOutOfRange and writes nothing.
func (s *SharedMemory) WriteAt(p []byte, off int64) (int, error) {
	if off > int64(maxInt) {
		return 0, fmt.Errorf("%w: offset %d", ErrOutOfRange, off)
	}
	if err := s.Write(p, int(off)); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Stats refreshes and returns the segment statistics.
func (s *SharedMemory) Stats() (SegmentStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.refreshLocked(); err != nil {
		return SegmentStats{}, err
	}
	ds := &s.fac.ds
	return SegmentStats{
		Perm:       shmPermView(ds),
		Size:       int(ds.Segsz),
		Attaches:   int(ds.Nattch),
		CreatorPID: int(ds.Cpid),
		LastPID:    int(ds.Lpid),
		AttachTime: unixTime(int64(ds.Atime)),
		DetachTime: unixTime(int64(ds.Dtime)),
		ChangeTime: unixTime(int64(ds.Ctime)),
	}, nil
}

// mappedSizeLocked checks that the handle is live and attached, refreshes
// the statistics and returns the usable size. The caller holds s.mu.
func (s *SharedMemory) mappedSizeLocked() (int, error) {
	if _, err := s.liveLocked(); err != nil {
		return 0, err
	}
	if s.data == nil {
		return 0, ErrNotAttached
	}
	if _, err := s.refreshLocked(); err != nil {
		return 0, err
	}
	size := int(s.fac.ds.Segsz)
	if size > len(s.data) {
		size = len(s.data)
	}
	return size, nil
}

const maxInt = int(^uint(0) >> 1)

func checkRange(offset, length, size int) error {
	if offset < 0 || length < 0 || offset > size || length > size-offset {
		return fmt.Errorf("%w: offset %d + length %d, segment size %d", ErrOutOfRange, offset, length, size)
	}
	return nil
}
