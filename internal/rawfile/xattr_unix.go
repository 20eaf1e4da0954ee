//go:build linux || darwin

package rawfile

import "golang.org/x/sys/unix"

// hasExtendedAttributes reports whether path carries extended attributes
// that recreating the file would drop.
func hasExtendedAttributes(path string) bool {
	n, err := unix.Listxattr(path, nil)
	return err == nil && n > 0
}
