//go:build !(linux && (amd64 || arm64 || riscv64 || loong64))

package sysvipc

// The kernel structure layouts differ between platforms and are only
// declared for the Linux 64-bit ABIs above. Everything else builds against
// these stubs, which fail with ErrUnsupported.

type ipcPerm struct {
	Key  int32
	Uid  uint32
	Gid  uint32
	Cuid uint32
	Cgid uint32
	Mode uint32
	Seq  uint16
}

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
}

type semidDS struct {
	Perm  ipcPerm
	Otime int64
	Ctime int64
	Nsems uint64
}

type shmidDS struct {
	Perm   ipcPerm
	Segsz  uint64
	Atime  int64
	Dtime  int64
	Ctime  int64
	Cpid   int32
	Lpid   int32
	Nattch uint64
}

type sembuf struct {
	Num uint16
	Op  int16
	Flg int16
}

func msgget(Key, int) (int, error) { return -1, ErrUnsupported }
func msgStat(int, *msqidDS) error { return ErrUnsupported }
func msgRemove(int) error { return ErrUnsupported }
func msgsnd(int, []byte, int) error { return ErrUnsupported }
func msgrcv(int, []byte, int64, int) (int, error) { return 0, ErrUnsupported }
func semget(Key, int, int) (int, error) { return -1, ErrUnsupported }
func semStat(int, *semidDS) error { return ErrUnsupported }
func semRemove(int) error { return ErrUnsupported }
func semctl(int, int, int, uintptr) (int, error) { return -1, ErrUnsupported }
func semGetAll(int, []uint16) error { return ErrUnsupported }
func semSetAll(int, []uint16) error { return ErrUnsupported }
func semop(int, []sembuf) error { return ErrUnsupported }
func shmget(Key, int, int) (int, error) { return -1, ErrUnsupported }
func shmStat(int, *shmidDS) error { return ErrUnsupported }
func shmRemove(int) error { return ErrUnsupported }
func shmat(int, int) ([]byte, error) { return nil, ErrUnsupported }
func shmdt([]byte) error { return ErrUnsupported }

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
	return ds.Perm.view()
}
