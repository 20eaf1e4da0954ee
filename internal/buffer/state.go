package buffer

import (
	"context"
	"errors"
	"io/fs"
	"path/filepath"
	"time"

	"github.com/dshills/docsync/internal/lang"
	"github.com/dshills/docsync/internal/vfs"
)

// SetFileName changes the path and re-derives the display name, network
// flag and, unless the user picked one, the language. defaultLang is used
// when the path says nothing about the language.
func (b *Buffer) SetFileName(ctx context.Context, path string, defaultLang lang.Language) {
	if path == b.fullPath && b.fullPath != "" {
		b.UpdateTimeStamp(ctx)
		b.notify(ChangeTimestamp)
		return
	}

	b.fullPath = path
	b.fileName = filepath.Base(path)
	b.network = b.status != StatusUnnamed && b.env.Prober != nil && b.env.Prober.FS().IsNetworkPath(path)

	detected := lang.FromPath(path)
	if detected == lang.Text && defaultLang != "" {
		detected = defaultLang
	}

	b.UpdateTimeStamp(ctx)

	mask := ChangeFilename | ChangeTimestamp
	if !b.langFromMenu {
		if b.largeFile {
			detected = lang.Text
		}
		if detected != b.language {
			b.language = detected
			b.needLexer = true
			mask |= ChangeLanguage | ChangeLexing
		}
	}
	b.notify(mask)
}

// UpdateTimeStamp refreshes the known modification time from disk. The
// query is bounded by the prober timeout; a query that does not finish in
// time leaves the timestamp untouched. It reports whether the timestamp
// changed.
func (b *Buffer) UpdateTimeStamp(ctx context.Context) bool {
	if b.status == StatusUnnamed || b.env.Prober == nil || b.fullPath == "" {
		return false
	}
	fi, err := b.env.Prober.Stat(ctx, b.fullPath)
	if err != nil {
		if errors.Is(err, vfs.ErrProbeTimeout) {
			b.env.Logger.Debug("timestamp probe abandoned for %s", b.fullPath)
		}
		return false
	}
	disk := fi.ModTime()
	cmp := disk.Compare(b.timestamp)
	if cmp == 0 {
		return false
	}
	if cmp < 0 {
		b.recordTimestampMismatch("UpdateTimeStamp", disk)
	}
	b.timestamp = disk
	b.notify(ChangeTimestamp)
	return true
}

// CheckFileState reconciles status, read-only flag and timestamp with the
// file on disk. It reports whether anything changed. Untitled buffers and
// buffers in monitoring mode are never checked.
func (b *Buffer) CheckFileState(ctx context.Context) bool {
	if b.status == StatusUnnamed || b.monitoring || b.env.Prober == nil {
		return false
	}

	fi, err := b.env.Prober.Stat(ctx, b.fullPath)
	switch {
	case err == nil:
	case errors.Is(err, fs.ErrNotExist):
		return b.markDeleted()
	default:
		b.env.Logger.Debug("file state check skipped for %s: %v", b.fullPath, err)
		return false
	}

	attr, err := b.env.Prober.Attributes(ctx, b.fullPath)
	if err != nil {
		b.env.Logger.Debug("attribute probe failed for %s: %v", b.fullPath, err)
		return false
	}
	readOnly := attr.Has(vfs.AttrReadOnly)
	disk := fi.ModTime()

	if b.status == StatusDeleted {
		b.fileReadOnly = readOnly
		b.status = StatusModified
		b.timestamp = disk
		b.notifyGuarded(ChangeStatus | ChangeReadonly | ChangeTimestamp)
		return true
	}

	var mask ChangeMask
	if readOnly != b.fileReadOnly {
		b.fileReadOnly = readOnly
		mask |= ChangeReadonly
	}
	if cmp := disk.Compare(b.timestamp); cmp != 0 {
		if cmp < 0 {
			b.recordTimestampMismatch("CheckFileState", disk)
		}
		b.timestamp = disk
		b.status = StatusModified
		mask |= ChangeTimestamp | ChangeStatus
	}
	if mask == 0 {
		return false
	}
	b.notifyGuarded(mask)
	return true
}

func (b *Buffer) markDeleted() bool {
	switch b.status {
	case StatusDeleted:
		return false
	case StatusInaccessible:
		b.inaccessible = true
		b.fileReadOnly = true
		b.dirty = false
	default:
		b.fileReadOnly = false
		b.dirty = true
	}
	b.status = StatusDeleted
	b.timestamp = time.Time{}
	b.notify(ChangeStatus | ChangeReadonly | ChangeTimestamp | ChangeDirty)
	return true
}

// notifyGuarded raises mask tagged ChangeGuarded unless the reload guard
// is held, which means a reload triggered by an earlier check is still
// running and this cycle is skipped. The guard is released again before
// notifying; the receiver takes it while delivering.
func (b *Buffer) notifyGuarded(mask ChangeMask) {
	if !b.reloadGuard.TryLock() {
		b.env.Logger.Debug("notification for %s skipped: reload in progress", b.fullPath)
		return
	}
	b.reloadGuard.Unlock()
	b.notify(mask | ChangeGuarded)
}

func (b *Buffer) recordTimestampMismatch(op string, disk time.Time) {
	b.env.Diagnostics.Record(b.fullPath, "%s: disk time %s is earlier than buffer time %s",
		op, disk.Format(time.RFC3339Nano), b.timestamp.Format(time.RFC3339Nano))
}

// Reload records the current disk timestamp and asks for the content to
// be re-read. It is used when following a file in monitoring mode.
func (b *Buffer) Reload(ctx context.Context) bool {
	if b.env.Prober == nil {
		return false
	}
	fi, err := b.env.Prober.Stat(ctx, b.fullPath)
	if err != nil {
		return false
	}
	b.timestamp = fi.ModTime()
	b.status = StatusNeedReload
	b.notify(ChangeTimestamp | ChangeStatus)
	return true
}

// FileLength returns the on-disk size, or -1 when the buffer is untitled
// or the size cannot be determined.
func (b *Buffer) FileLength(ctx context.Context) int64 {
	if b.status == StatusUnnamed || b.env.Prober == nil {
		return -1
	}
	n, err := b.env.Prober.Size(ctx, b.fullPath)
	if err != nil {
		return -1
	}
	return n
}
