package filemanager

import (
	"context"
	"errors"
	"io/fs"

	"github.com/dshills/docsync/internal/buffer"
	"github.com/dshills/docsync/internal/vfs"
)

// DeleteFile removes the buffer's file from disk. The buffer stays open;
// the next file state check marks it deleted.
func (fm *FileManager) DeleteFile(ctx context.Context, id buffer.ID) error {
	defer fm.lock()()
	b, err := fm.get("delete", id)
	if err != nil {
		return err
	}
	path := b.FullPath()
	if b.IsUntitled() || !fm.fs.Exists(path) {
		return &PathError{Op: "delete", Path: path, Err: fs.ErrNotExist}
	}
	if err := fm.fs.Remove(path); err != nil {
		return &PathError{Op: "delete", Path: path, Err: err}
	}
	b.CheckFileState(ctx)
	return nil
}

// MoveFile renames the buffer's file, replacing newPath if it exists, and
// points the buffer at it.
func (fm *FileManager) MoveFile(ctx context.Context, id buffer.ID, newPath string) error {
	defer fm.lock()()
	b, err := fm.get("move", id)
	if err != nil {
		return err
	}
	newPath = vfs.Canonical(newPath)
	if err := fm.fs.Rename(b.FullPath(), newPath); err != nil {
		return &PathError{Op: "move", Path: b.FullPath(), Err: err}
	}
	b.SetFileName(ctx, newPath, fm.defaults.Language)
	return nil
}

// CreateEmptyFile creates path, or truncates it if it exists.
func (fm *FileManager) CreateEmptyFile(path string) error {
	f, err := fm.openTarget(path)
	if err != nil {
		return &PathError{Op: "create", Path: path, Err: err}
	}
	if err := f.Close(); err != nil {
		return &PathError{Op: "create", Path: path, Err: err}
	}
	return nil
}

// DeleteBufferBackup removes the buffer's sidecar, if any, and unlinks it.
func (fm *FileManager) DeleteBufferBackup(id buffer.ID) error {
	defer fm.lock()()
	b, err := fm.get("backup", id)
	if err != nil {
		return err
	}
	bp := b.BackupPath()
	if bp == "" {
		return nil
	}
	b.SetBackupPath("")
	if err := fm.fs.Remove(bp); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return &PathError{Op: "backup", Path: bp, Err: err}
	}
	return nil
}
