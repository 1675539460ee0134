//go:build linux

package watcher

import "golang.org/x/sys/unix"

// statfs magic numbers, see statfs(2)
const (
	nfsSuperMagic  = 0x6969
	smbSuperMagic  = 0x517b
	cifsMagic      = 0xff534d42
	smb2MagicNum   = 0xfe534d42
	fuseSuperMagic = 0x65735546
)

func detectFilesystemType(path string) FilesystemType {
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return FSTypeUnknown
	}
	switch uint32(st.Type) {
	case nfsSuperMagic:
		return FSTypeNFS
	case smbSuperMagic, cifsMagic, smb2MagicNum:
		return FSTypeSMB
	case fuseSuperMagic:
		// sshfs is the common FUSE mount for remote data; both poll.
		return FSTypeFUSE
	default:
		return FSTypeLocal
	}
}
