package vfs

import (
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// OSFS implements FS on the operating system's file system.
type OSFS struct{}

// NewOSFS creates a new OS file system.
func NewOSFS() *OSFS {
	return &OSFS{}
}

// Ensure OSFS implements FS.
var _ FS = (*OSFS)(nil)

// Open opens a file for reading.
func (f *OSFS) Open(path string) (io.ReadCloser, error) {
	return os.Open(path)
}

// Stat returns file information.
func (f *OSFS) Stat(path string) (FileInfo, error) {
	info, err := os.Stat(path)
	if err != nil {
		return FileInfo{}, err
	}
	return NewFileInfo(path, info.Size(), info.Mode(), info.ModTime()), nil
}

// Exists returns true if the path exists.
func (f *OSFS) Exists(path string) bool {
	_, err := os.Stat(path)
	// A permission error still means something is there.
	return !errors.Is(err, os.ErrNotExist)
}

// Remove removes a file.
func (f *OSFS) Remove(path string) error {
	return os.Remove(path)
}

// Rename renames (moves) a file.
func (f *OSFS) Rename(oldPath, newPath string) error {
	return os.Rename(oldPath, newPath)
}

// MkdirAll creates a directory and all parent directories.
func (f *OSFS) MkdirAll(path string, perm fs.FileMode) error {
	return os.MkdirAll(path, perm)
}

// Attributes maps the owner write bit to AttrReadOnly and a leading dot to
// AttrHidden. AttrSystem is never set.
func (f *OSFS) Attributes(path string) (Attr, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	var a Attr
	if info.Mode().Perm()&0o200 == 0 {
		a |= AttrReadOnly
	}
	if strings.HasPrefix(filepath.Base(path), ".") {
		a |= AttrHidden
	}
	return a, nil
}

// SetAttributes applies AttrReadOnly through the write bits.
func (f *OSFS) SetAttributes(path string, attr Attr) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	perm := info.Mode().Perm()
	if attr.Has(AttrReadOnly) {
		perm &^= 0o222
	} else {
		perm |= 0o200
	}
	if perm == info.Mode().Perm() {
		return nil
	}
	return os.Chmod(path, perm)
}

// IsNetworkPath reports UNC-style paths and network file systems.
func (f *OSFS) IsNetworkPath(path string) bool {
	if strings.HasPrefix(path, `\\`) && !strings.HasPrefix(path, longPathPrefix) {
		return true
	}
	return onNetworkFS(path)
}
