package sysvipc

import (
	"fmt"
	"os"
)

// Mode bits the kernel reports for shared memory segments in addition to the
// permission bits.
const (
	// ModeDestroyed is set on a segment marked for removal that is still attached somewhere.
	ModeDestroyed = 0o1000

	// ModeLocked is set on a segment locked into memory with SHM_LOCK.
	ModeLocked = 0o2000
)

// PermissionView is a snapshot of the ownership and mode of an IPC object,
// taken from the kernel statistics at the moment it was created. It never
// refreshes itself; call Permissions again for current values.
type PermissionView struct {
	// Key is the key the object was created with.
	Key Key

	// CreatorUID is the effective UID of the creator.
	CreatorUID uint32

	// CreatorGID is the effective GID of the creator.
	CreatorGID uint32

	// OwnerUID is the effective UID of the owner.
	OwnerUID uint32

	// OwnerGID is the effective GID of the owner.
	OwnerGID uint32

	// Mode holds the permission bits and, for segments, ModeDestroyed and ModeLocked.
	Mode uint32

	// Seq is the kernel's slot usage sequence number.
	Seq uint16
}

// Perm returns the permission bits of Mode.
func (p PermissionView) Perm() os.FileMode {
	return os.FileMode(p.Mode & 0o777)
}

func (p PermissionView) String() string {
	return fmt.Sprintf("key=%#x owner=%d:%d creator=%d:%d mode=%v",
		uint32(p.Key), p.OwnerUID, p.OwnerGID, p.CreatorUID, p.CreatorGID, p.Perm())
}
