package watcher

import (
	"os"
	"path/filepath"
)

// FilesystemType is a coarse classification of the filesystem holding a
// watched file. Remote and FUSE filesystems often drop inotify events.
type FilesystemType int

const (
	FSTypeUnknown FilesystemType = iota
	FSTypeLocal
	FSTypeNFS
	FSTypeSMB
	FSTypeSSHFS
	FSTypeFUSE
)

func (t FilesystemType) String() string {
	switch t {
	case FSTypeLocal:
		return "local"
	case FSTypeNFS:
		return "nfs"
	case FSTypeSMB:
		return "smb"
	case FSTypeSSHFS:
		return "sshfs"
	case FSTypeFUSE:
		return "fuse"
	default:
		return "unknown"
	}
}

func isRemoteFilesystem(t FilesystemType) bool {
	switch t {
	case FSTypeNFS, FSTypeSMB, FSTypeSSHFS, FSTypeFUSE:
		return true
	default:
		return false
	}
}

// detectFilesystemTypeFunc is swapped out by tests.
var detectFilesystemTypeFunc = detectFilesystemType

// DetectFilesystemType classifies the filesystem of path. A missing file is
// classified by its nearest existing parent directory.
func DetectFilesystemType(path string) FilesystemType {
	if path == "" {
		return FSTypeUnknown
	}
	p := path
	for {
		if _, err := os.Stat(p); err == nil {
			return detectFilesystemTypeFunc(p)
		}
		parent := filepath.Dir(p)
		if parent == p {
			return FSTypeUnknown
		}
		p = parent
	}
}
