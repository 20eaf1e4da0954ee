package filemanager

import (
	"context"
	"errors"
	"io"
	"path/filepath"

	"github.com/dshills/docsync/internal/buffer"
	"github.com/dshills/docsync/internal/codec"
	"github.com/dshills/docsync/internal/document"
	"github.com/dshills/docsync/internal/lang"
	"github.com/dshills/docsync/internal/rawfile"
	"github.com/dshills/docsync/internal/vfs"
)

// target is an open file being rewritten.
type target interface {
	io.Writer
	Close() error
}

func (fm *FileManager) openRawFile(path string) (target, error) {
	return rawfile.Open(path, rawfile.Options{
		Logger:       fm.logger,
		Diagnostics:  fm.diag,
		Warner:       fm.prompter,
		ShuttingDown: fm.shutdown,
	})
}

// SaveBuffer writes the buffer to path. With isCopy the buffer keeps its
// identity; otherwise it adopts path and becomes clean. A failed save
// leaves the buffer untouched and dirty.
func (fm *FileManager) SaveBuffer(ctx context.Context, id buffer.ID, path string, isCopy bool) error {
	fm.saveMu.Lock()
	defer fm.saveMu.Unlock()
	defer fm.lock()()

	b, err := fm.get("save", id)
	if err != nil {
		return err
	}
	fullPath := vfs.Canonical(path)
	doc := b.Document()

	if err := fm.checkRoom(ctx, b, fullPath); err != nil {
		return &PathError{Op: "save", Path: fullPath, Err: err}
	}

	restore := fm.clearHiddenAttributes(fullPath)

	head, err := fm.writeDocument(doc, fullPath, b.Format())
	restore()
	if err != nil {
		return &PathError{Op: "save", Path: fullPath, Err: err}
	}

	if isCopy {
		return nil
	}

	language := lang.SniffContent(head)
	if language == lang.Text {
		language = fm.defaults.Language
	}

	b.SetStatus(buffer.StatusRegular)
	b.SetFileName(ctx, fullPath, language)
	b.SetDirty(false)
	b.SetUnsync(false)
	b.SetSavePointDirty(false)
	b.SetLoadedDirty(false)
	b.CheckFileState(ctx)
	fm.store.SetSavePoint(doc)

	if bp := b.BackupPath(); bp != "" {
		b.SetBackupPath("")
		if err := fm.fs.Remove(bp); err != nil {
			fm.logger.Warn("could not remove backup %s: %v", bp, err)
		}
	}
	fm.logger.Info("saved #%d to %s", b.ID(), fullPath)
	return nil
}

// checkRoom fails with ErrNotEnoughRoom when the volume holding path
// cannot take the document. Saving over the buffer's own file counts the
// space the old content frees.
func (fm *FileManager) checkRoom(ctx context.Context, b *buffer.Buffer, path string) error {
	need := fm.store.Length(b.Document())

	var reclaimed int64
	if !b.IsUntitled() && path == b.FullPath() {
		if n := b.FileLength(ctx); n > 0 {
			reclaimed = n
		}
	}

	free, err := fm.fs.FreeSpace(filepath.Dir(path))
	if err != nil {
		if errors.Is(err, vfs.ErrFreeSpaceUnknown) {
			fm.logger.Warn("free space unknown for %s, skipping check", path)
		} else {
			fm.logger.Debug("free space query failed for %s: %v", path, err)
		}
		return nil
	}
	if free+reclaimed < need {
		fm.logger.Warn("not enough room for %s: need %d, have %d", path, need, free+reclaimed)
		return ErrNotEnoughRoom
	}
	return nil
}

// clearHiddenAttributes strips hidden and system bits from an existing
// target for the duration of a write. The returned function restores
// them.
func (fm *FileManager) clearHiddenAttributes(path string) func() {
	if !fm.fs.Exists(path) {
		return func() {}
	}
	attr, err := fm.fs.Attributes(path)
	if err != nil || attr&(vfs.AttrHidden|vfs.AttrSystem) == 0 {
		return func() {}
	}
	if err := fm.fs.SetAttributes(path, attr&^(vfs.AttrHidden|vfs.AttrSystem)); err != nil {
		fm.logger.Debug("could not clear attributes of %s: %v", path, err)
	}
	return func() {
		if err := fm.fs.SetAttributes(path, attr); err != nil {
			fm.logger.Warn("could not restore attributes of %s: %v", path, err)
		}
	}
}

// WriteSnapshot writes the buffer's document to path in the buffer's
// format without touching buffer state. It shares the save lock with
// SaveBuffer.
func (fm *FileManager) WriteSnapshot(ctx context.Context, id buffer.ID, path string) error {
	fm.saveMu.Lock()
	defer fm.saveMu.Unlock()
	defer fm.lock()()

	b, err := fm.get("backup", id)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := fm.writeDocument(b.Document(), path, b.Format()); err != nil {
		return &PathError{Op: "backup", Path: path, Err: err}
	}
	return nil
}

// writeDocument streams doc to path through the encoder for f, in blocks
// of blockSize, carrying incomplete characters across blocks. It returns
// the start of the document text for content sniffing.
func (fm *FileManager) writeDocument(doc document.Handle, path string, f codec.Format) ([]byte, error) {
	enc, err := codec.NewEncoder(f)
	if err != nil {
		return nil, errors.Join(ErrSaveWritingFailed, err)
	}

	out, err := fm.openTarget(path)
	if err != nil {
		return nil, errors.Join(ErrSaveOpenFailed, err)
	}

	fm.scratch.Attach(doc)
	defer fm.scratch.Reset()

	head, werr := fm.stream(fm.scratch.Current(), out, enc)
	cerr := out.Close()
	if werr != nil {
		return nil, errors.Join(ErrSaveWritingFailed, werr)
	}
	if cerr != nil {
		return nil, errors.Join(ErrSaveWritingFailed, cerr)
	}
	return head, nil
}

func (fm *FileManager) stream(doc document.Handle, w io.Writer, enc *codec.Encoder) ([]byte, error) {
	length := fm.store.Length(doc)
	block := make([]byte, blockSize+multibyteSlack)
	var head []byte

	if length == 0 {
		// Still emits a byte-order mark for modes that carry one.
		b, _, err := enc.Encode(nil, true)
		if err != nil {
			return nil, err
		}
		_, err = w.Write(b)
		return nil, err
	}

	var off int64
	carry := 0
	for off < length || carry > 0 {
		n, err := fm.store.ReadAt(doc, block[carry:blockSize], off)
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, err
		}
		off += int64(n)
		chunk := block[:carry+n]
		atEOF := off >= length
		if head == nil {
			head = append([]byte(nil), chunk[:min(len(chunk), 256)]...)
		}

		b, incomplete, err := enc.Encode(chunk, atEOF)
		if err != nil {
			return nil, err
		}
		if _, err := w.Write(b); err != nil {
			return nil, err
		}
		carry = copy(block, chunk[len(chunk)-incomplete:])
		if atEOF {
			break
		}
	}
	return head, nil
}
