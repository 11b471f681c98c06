//go:build linux && (arm64 || riscv64 || loong64)

package sysvipc

// semidDS is the asm-generic struct semid64_ds.
type semidDS struct {
	Perm  ipcPerm
	Otime int64
	Ctime int64
	Nsems uint64
	_     [2]uint64
}
