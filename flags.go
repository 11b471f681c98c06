package sysvipc

import "os"

// Key names a System V IPC object. Cooperating processes agree on a key by
// convention, typically derived with ftok(3).
type Key int32

// IPCPrivate asks the kernel for a new object that no other key can reach.
const IPCPrivate Key = 0

// CreateFlag is the flag argument of the msgget/semget/shmget calls: an OR of
// Create, Exclusive and the permission bits of the new object.
//
//	q, err := sysvipc.OpenMessageQueue(key, sysvipc.Create|0600)
type CreateFlag int

const (
	// Create creates the object if no object exists for the key (IPC_CREAT).
	Create CreateFlag = 0o1000

	// Exclusive makes Create fail if the object already exists (IPC_EXCL).
	Exclusive CreateFlag = 0o2000
)

// Perm returns the permission bits carried in the flag.
func (f CreateFlag) Perm() os.FileMode {
	return os.FileMode(f & 0o777)
}

// MsgFlag modifies Send and Receive.
type MsgFlag int

const (
	// MsgNoWait fails with ErrWouldBlock instead of waiting (IPC_NOWAIT).
	MsgNoWait MsgFlag = 0o4000

	// MsgNoError truncates messages longer than the receive buffer instead of
	// failing with E2BIG (MSG_NOERROR).
	MsgNoError MsgFlag = 0o10000

	// MsgExcept receives the first message whose type differs from the
	// requested type (MSG_EXCEPT, Linux only).
	MsgExcept MsgFlag = 0o20000
)

// SemFlag modifies a single SemaphoreOperation.
type SemFlag int16

const (
	// SemNoWait fails the whole batch with ErrWouldBlock instead of waiting.
	SemNoWait SemFlag = 0o4000

	// SemUndo asks the kernel to reverse the adjustment when the process
	// exits (SEM_UNDO).
	SemUndo SemFlag = 0x1000
)

// AttachFlag modifies SharedMemory.Attach.
type AttachFlag int

const (
	// AttachReadOnly maps the segment read-only (SHM_RDONLY).
	AttachReadOnly AttachFlag = 0o10000

	// AttachRound rounds the attach address down to SHMLBA (SHM_RND).
	AttachRound AttachFlag = 0o20000
)

const (
	ipcNoWait = 0o4000
	ipcRmID   = 0
	ipcStat   = 2
)

// semctl commands.
const (
	getPID  = 11
	getVal  = 12
	getAll  = 13
	getNCnt = 14
	getZCnt = 15
	setVal  = 16
	setAll  = 17
)
