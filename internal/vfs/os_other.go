//go:build !linux && !darwin && !freebsd

package vfs

// FreeSpace is not available on this platform.
func (f *OSFS) FreeSpace(string) (int64, error) {
	return 0, ErrFreeSpaceUnknown
}

func onNetworkFS(string) bool { return false }
