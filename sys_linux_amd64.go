//go:build linux && amd64

package sysvipc

// semidDS is the x86-64 struct semid64_ds, which pads each timestamp to
// 16 bytes.
type semidDS struct {
	Perm  ipcPerm
	Otime int64
	_     uint64
	Ctime int64
	_     uint64
	Nsems uint64
	_     [2]uint64
}
