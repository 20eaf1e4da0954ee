//go:build linux

package vfs

import (
	"path/filepath"

	"golang.org/x/sys/unix"
)

// Magic numbers of network file systems in statfs(2) f_type.
var networkFSMagic = map[uint32]bool{
	0x6969:     true, // NFS
	0x517B:     true, // SMB
	0xFF534D42: true, // CIFS
	0xFE534D42: true, // SMB2
	0x564C:     true, // NCP
	0x73757245: true, // Coda
}

// FreeSpace returns the bytes available to unprivileged users.
func (f *OSFS) FreeSpace(dir string) (int64, error) {
	var st unix.Statfs_t
	if err := unix.Statfs(dir, &st); err != nil {
		return 0, err
	}
	return int64(st.Bavail) * int64(st.Bsize), nil
}

func onNetworkFS(path string) bool {
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		if err := unix.Statfs(filepath.Dir(path), &st); err != nil {
			return false
		}
	}
	return networkFSMagic[uint32(st.Type)]
}
