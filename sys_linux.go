//go:build linux && (amd64 || arm64 || riscv64 || loong64)

package sysvipc

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

// ipcPerm is struct ipc64_perm.
type ipcPerm struct {
	Key  int32
	Uid  uint32
	Gid  uint32
	Cuid uint32
	Cgid uint32
	Mode uint32
	Seq  uint16
	_    uint16
	_    [2]uint64
}

// msqidDS is struct msqid64_ds. x86-64 and asm-generic agree on it; semidDS
// does not and is declared per architecture.
type msqidDS struct {
	Perm   ipcPerm
	Stime  int64
	Rtime  int64
	Ctime  int64
	Cbytes uint64
	Qnum   uint64
	Qbytes uint64
	Lspid  int32
	Lrpid  int32
	_      [2]uint64
}

// shmidDS is struct shmid64_ds.
type shmidDS = unix.SysvShmDesc

// sembuf is struct sembuf.
type sembuf struct {
	Num uint16
	Op  int16
	Flg int16
}

func msgget(key Key, flags int) (int, error) {
	r, _, errno := unix.Syscall(unix.SYS_MSGGET, uintptr(key), uintptr(flags), 0)
	if errno != 0 {
		return -1, errno
	}
	return int(r), nil
}

func msgStat(id int, ds *msqidDS) error {
	_, _, errno := unix.Syscall(unix.SYS_MSGCTL, uintptr(id), ipcStat, uintptr(unsafe.Pointer(ds)))
	if errno != 0 {
		return errno
	}
	return nil
}

func msgRemove(id int) error {
	_, _, errno := unix.Syscall(unix.SYS_MSGCTL, uintptr(id), ipcRmID, 0)
	if errno != 0 {
		return errno
	}
	return nil
}

// msgsnd sends msg, which starts with the native-endian message type.
func msgsnd(id int, msg []byte, flags int) error {
	_, _, errno := unix.Syscall6(unix.SYS_MSGSND, uintptr(id), uintptr(unsafe.Pointer(&msg[0])),
		uintptr(len(msg)-msgHeaderSize), uintptr(flags), 0, 0)
	if errno != 0 {
		return errno
	}
	return nil
}

// msgrcv receives into buf, which must have room for the message type
// header, and returns the number of payload bytes.
func msgrcv(id int, buf []byte, mtype int64, flags int) (int, error) {
	n, _, errno := unix.Syscall6(unix.SYS_MSGRCV, uintptr(id), uintptr(unsafe.Pointer(&buf[0])),
		uintptr(len(buf)-msgHeaderSize), uintptr(mtype), uintptr(flags), 0)
	if errno != 0 {
		return 0, errno
	}
	return int(n), nil
}

func semget(key Key, nsems int, flags int) (int, error) {
	r, _, errno := unix.Syscall(unix.SYS_SEMGET, uintptr(key), uintptr(nsems), uintptr(flags))
	if errno != 0 {
		return -1, errno
	}
	return int(r), nil
}

func semStat(id int, ds *semidDS) error {
	_, _, errno := unix.Syscall6(unix.SYS_SEMCTL, uintptr(id), 0, ipcStat, uintptr(unsafe.Pointer(ds)), 0, 0)
	if errno != 0 {
		return errno
	}
	return nil
}

func semRemove(id int) error {
	_, _, errno := unix.Syscall6(unix.SYS_SEMCTL, uintptr(id), 0, ipcRmID, 0, 0, 0)
	if errno != 0 {
		return errno
	}
	return nil
}

// semctl issues a scalar semctl command. SETVAL passes the value itself as
// arg; the union semun is passed by value.
func semctl(id, num, cmd int, arg uintptr) (int, error) {
	r, _, errno := unix.Syscall6(unix.SYS_SEMCTL, uintptr(id), uintptr(num), uintptr(cmd), arg, 0, 0)
	if errno != 0 {
		return -1, errno
	}
	return int(r), nil
}

func semGetAll(id int, values []uint16) error {
	_, _, errno := unix.Syscall6(unix.SYS_SEMCTL, uintptr(id), 0, getAll, uintptr(unsafe.Pointer(&values[0])), 0, 0)
	if errno != 0 {
		return errno
	}
	return nil
}

func semSetAll(id int, values []uint16) error {
	_, _, errno := unix.Syscall6(unix.SYS_SEMCTL, uintptr(id), 0, setAll, uintptr(unsafe.Pointer(&values[0])), 0, 0)
	if errno != 0 {
		return errno
	}
	return nil
}

func semop(id int, sops []sembuf) error {
	_, _, errno := unix.Syscall(unix.SYS_SEMOP, uintptr(id), uintptr(unsafe.Pointer(&sops[0])), uintptr(len(sops)))
	if errno != 0 {
		return errno
	}
	return nil
}

func shmget(key Key, size int, flags int) (int, error) {
	return unix.SysvShmGet(int(key), size, flags)
}

func shmStat(id int, ds *shmidDS) error {
	_, err := unix.SysvShmCtl(id, ipcStat, ds)
	return err
}

func shmRemove(id int) error {
	_, err := unix.SysvShmCtl(id, ipcRmID, nil)
	return err
}

func shmat(id int, flags int) ([]byte, error) {
	return unix.SysvShmAttach(id, 0, flags)
}

func shmdt(data []byte) error {
	return unix.SysvShmDetach(data)
}

func (p *ipcPerm) view() PermissionView {
	return PermissionView{
		Key:        Key(p.Key),
		CreatorUID: p.Cuid,
		CreatorGID: p.Cgid,
		OwnerUID:   p.Uid,
		OwnerGID:   p.Gid,
		Mode:       p.Mode,
		Seq:        p.Seq,
	}
}

func shmPermView(ds *shmidDS) PermissionView {
	return PermissionView{
		Key:        Key(ds.Perm.Key),
		CreatorUID: uint32(ds.Perm.Cuid),
		CreatorGID: uint32(ds.Perm.Cgid),
		OwnerUID:   uint32(ds.Perm.Uid),
		OwnerGID:   uint32(ds.Perm.Gid),
		Mode:       uint32(ds.Perm.Mode),
		Seq:        uint16(ds.Perm.Seq),
	}
}
