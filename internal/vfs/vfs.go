// Package vfs is the file system seam of the document core. It exposes the
// metadata queries, attribute handling and free-space checks that loading
// and saving rely on, plus a Prober that bounds metadata calls against
// storage that may never answer.
package vfs

import (
	"errors"
	"io"
	"io/fs"
	"path/filepath"
	"strings"
	"time"
)

// Errors returned by file system operations.
var (
	// ErrFreeSpaceUnknown is returned when the platform cannot report
	// available space.
	ErrFreeSpaceUnknown = errors.New("free space unknown")

	// ErrProbeTimeout is returned when a metadata query did not finish in
	// time. The query is abandoned, not cancelled.
	ErrProbeTimeout = errors.New("metadata query timed out")
)

// FS is the set of file system operations the document core needs.
type FS interface {
	// Open opens a file for reading.
	Open(path string) (io.ReadCloser, error)

	// Stat returns file information.
	Stat(path string) (FileInfo, error)

	// Exists returns true if the path exists.
	Exists(path string) bool

	// Remove removes a file.
	Remove(path string) error

	// Rename renames (moves) a file.
	Rename(oldPath, newPath string) error

	// MkdirAll creates a directory and all parent directories.
	MkdirAll(path string, perm fs.FileMode) error

	// FreeSpace returns the bytes available to the caller on the volume
	// holding dir.
	FreeSpace(dir string) (int64, error)

	// Attributes returns the attribute bits of path.
	Attributes(path string) (Attr, error)

	// SetAttributes applies attribute bits to path. Bits the platform
	// derives from elsewhere (such as a leading dot) are ignored.
	SetAttributes(path string, attr Attr) error

	// IsNetworkPath reports whether path lives on a network share.
	IsNetworkPath(path string) bool
}

// Attr is a set of file attribute bits.
type Attr uint8

const (
	// AttrReadOnly means the file cannot be written by the owner.
	AttrReadOnly Attr = 1 << iota
	// AttrHidden marks a hidden file.
	AttrHidden
	// AttrSystem marks an operating-system file.
	AttrSystem
)

// Has reports whether all bits of b are set.
func (a Attr) Has(b Attr) bool { return a&b == b }

func (a Attr) String() string {
	var parts []string
	if a.Has(AttrReadOnly) {
		parts = append(parts, "readonly")
	}
	if a.Has(AttrHidden) {
		parts = append(parts, "hidden")
	}
	if a.Has(AttrSystem) {
		parts = append(parts, "system")
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "|")
}

// FileInfo describes a file.
type FileInfo struct {
	path    string
	name    string
	size    int64
	mode    fs.FileMode
	modTime time.Time
}

// NewFileInfo creates a FileInfo from the given parameters.
func NewFileInfo(path string, size int64, mode fs.FileMode, modTime time.Time) FileInfo {
	return FileInfo{
		path:    path,
		name:    filepath.Base(path),
		size:    size,
		mode:    mode,
		modTime: modTime,
	}
}

// Path returns the full path.
func (fi FileInfo) Path() string { return fi.path }

// Name returns the base name.
func (fi FileInfo) Name() string { return fi.name }

// Size returns the file size in bytes.
func (fi FileInfo) Size() int64 { return fi.size }

// Mode returns the file mode.
func (fi FileInfo) Mode() fs.FileMode { return fi.mode }

// ModTime returns the modification time.
func (fi FileInfo) ModTime() time.Time { return fi.modTime }

// IsDir returns true if this is a directory.
func (fi FileInfo) IsDir() bool { return fi.mode.IsDir() }

// IsRegular returns true if this is a regular file.
func (fi FileInfo) IsRegular() bool { return fi.mode.IsRegular() }

// ReadOnly reports whether the owner write bit is clear.
func (fi FileInfo) ReadOnly() bool { return fi.mode.Perm()&0o200 == 0 }

// longPathPrefix marks a path that must not be normalised.
const longPathPrefix = `\\?\`

// Canonical returns the absolute, cleaned form of path. Paths carrying the
// long-path prefix are returned unchanged.
func Canonical(path string) string {
	if strings.HasPrefix(path, longPathPrefix) {
		return path
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return filepath.Clean(path)
	}
	return abs
}
