package filemanager

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"math"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/dshills/docsync/internal/buffer"
	"github.com/dshills/docsync/internal/codec"
	"github.com/dshills/docsync/internal/document"
	"github.com/dshills/docsync/internal/lang"
	"github.com/dshills/docsync/internal/vfs"
)

// LoadOptions are the optional inputs of LoadFile.
type LoadOptions struct {
	// Doc is an existing document to fill. Zero creates a new one.
	Doc document.Handle

	// Encoding is a codepage hint. Values below 1 mean none.
	Encoding int

	// BackupPath is a sidecar to load instead of the file, restoring
	// unsaved edits from a previous session.
	BackupPath string

	// Timestamp is the file time recorded with the sidecar. When set it
	// replaces the time read from disk, so that a file changed since the
	// session was saved is reported as modified.
	Timestamp time.Time
}

// loadedFormat is what a streamed load found out about a file.
type loadedFormat struct {
	encoding int
	mode     codec.UniMode
	eol      codec.EOL
	language lang.Language
}

// LoadFile reads path into a new buffer and registers it.
func (fm *FileManager) LoadFile(ctx context.Context, path string, opts LoadOptions) (buffer.ID, error) {
	defer fm.lock()()
	return fm.loadFile(ctx, path, opts)
}

func (fm *FileManager) loadFile(ctx context.Context, path string, opts LoadOptions) (buffer.ID, error) {
	fullPath := vfs.Canonical(path)

	fileInfo, fileErr := fm.prober.Stat(ctx, fullPath)
	fileExists := fileErr == nil

	snapshot := false
	readPath := fullPath
	info := fileInfo
	if opts.BackupPath != "" {
		if bi, err := fm.prober.Stat(ctx, opts.BackupPath); err == nil {
			snapshot = true
			readPath = opts.BackupPath
			info = bi
		}
	}
	if !snapshot && !fileExists {
		return 0, fm.unreadable(path, fileErr)
	}
	if info.IsDir() {
		return 0, &PathError{Op: "load", Path: path, Err: ErrInvalid}
	}

	size := info.Size()
	large := size >= fm.cfg.Load.LargeFileSize

	status := buffer.StatusRegular
	if snapshot && !fileExists {
		// A sidecar without its file is an untitled document; path is
		// its label.
		fullPath = path
		status = buffer.StatusUnnamed
	}

	doc := opts.Doc
	ownDoc := false
	if doc == 0 {
		h, err := fm.store.Create(large)
		if err != nil {
			return 0, &PathError{Op: "load", Path: path, Err: err}
		}
		doc = h
		ownDoc = true
	}

	hint := opts.Encoding
	if hint < 1 {
		hint = codec.NoCodepage
	}
	format := loadedFormat{encoding: hint, eol: codec.EOLUnknown, language: lang.Text}
	if err := fm.loadFileData(ctx, doc, size, readPath, large, &format); err != nil {
		if ownDoc {
			fm.store.Release(doc)
		}
		return 0, err
	}

	d := fm.defaults
	d.EOL = format.eol
	d.Codepage, d.UnicodeMode = fm.resolveFormat(format)
	if format.language != lang.Text {
		d.Language = format.language
	}

	b := buffer.New(ctx, fm.allocID(), doc, status, fullPath, large, d, fm.env)
	prev := b.SetNotify(false)
	if snapshot {
		b.SetBackupPath(opts.BackupPath)
		b.SetLoadedDirty(true)
		b.SetDirty(true)
	}
	if !opts.Timestamp.IsZero() {
		b.SetTimestamp(opts.Timestamp)
	}
	b.SetNotify(prev)

	fm.register(b)
	fm.logger.Debug("loaded %s as #%d (%s, %s, %s)", readPath, b.ID(), b.Format().Mode, b.EOL(), b.Language())
	return b.ID(), nil
}

func (fm *FileManager) unreadable(path string, err error) error {
	if errors.Is(err, vfs.ErrProbeTimeout) {
		return &PathError{Op: "load", Path: path, Err: errors.Join(ErrInvalid, ErrUnreachable)}
	}
	return &PathError{Op: "load", Path: path, Err: ErrInvalid}
}

// resolveFormat turns what the load detected into the buffer's codepage
// and Unicode mode.
func (fm *FileManager) resolveFormat(f loadedFormat) (int, codec.UniMode) {
	if f.encoding != codec.NoCodepage {
		if f.encoding == codec.CodepageUTF8 {
			return codec.NoCodepage, codec.UniCookie
		}
		return f.encoding, codec.UniCookie
	}
	mode := f.mode
	if mode == codec.Uni7Bit {
		if fm.defaults.OpenANSIAsUTF8 {
			mode = codec.UniCookie
		} else {
			mode = codec.Uni8Bit
		}
	}
	return codec.NoCodepage, mode
}

// ReloadBuffer re-reads the buffer's file into its document in place.
// Notifications are held back during the read so the intermediate empty
// document does not mark the buffer dirty.
func (fm *FileManager) ReloadBuffer(ctx context.Context, id buffer.ID) error {
	defer fm.lock()()
	b, err := fm.get("reload", id)
	if err != nil {
		return err
	}

	format := loadedFormat{encoding: b.Encoding(), eol: codec.EOLUnknown, language: b.Language()}
	b.SetLoadedDirty(false)

	info, err := fm.prober.Stat(ctx, b.FullPath())
	if err != nil {
		return fm.unreadable(b.FullPath(), err)
	}

	prev := b.SetNotify(false)
	err = fm.loadFileData(ctx, b.Document(), info.Size(), b.FullPath(), b.LargeFile(), &format)
	b.SetNotify(prev)
	if err != nil {
		return err
	}

	b.SetUnsync(false)
	b.SetDirty(false)
	b.SetSavePointDirty(false)
	b.SetModified(false)
	b.ClearNeedReload()

	enc, mode := fm.resolveFormat(format)
	b.SetEncoding(enc)
	b.SetUnicodeMode(mode)
	b.SetEOL(format.eol)

	if b.Status() != buffer.StatusRegular {
		b.SetStatus(buffer.StatusRegular)
	}
	b.UpdateTimeStamp(ctx)
	return nil
}

// ReloadBufferDeferred marks the buffer clean and asks for a reload the
// next time it is activated.
func (fm *FileManager) ReloadBufferDeferred(id buffer.ID) error {
	defer fm.lock()()
	b, err := fm.get("reload", id)
	if err != nil {
		return err
	}
	b.SetDeferredReload()
	return nil
}

// loadFileData streams path into doc through the scratch view. It
// detects the encoding, the line endings and, for files that are not
// large, the language from the first block.
func (fm *FileManager) loadFileData(ctx context.Context, doc document.Handle, size int64, path string, large bool, f *loadedFormat) error {
	r, err := fm.fs.Open(path)
	if err != nil {
		return &PathError{Op: "load", Path: path, Err: err}
	}
	defer r.Close()

	// Room for the file plus editing headroom, capped at 1 MiB.
	requested := size + min(1<<20, size/6)
	if requested > math.MaxInt32 {
		if intSize == 32 {
			fm.prompter.ShowError("File size problem", "File is too big to be opened")
			return &PathError{Op: "load", Path: path, Err: ErrFileTooBig}
		}
		if !fm.prompter.AskYesNo("Opening huge file warning",
			"Opening a huge file of 2GB+ could take several minutes.\nDo you want to open it?") {
			return &PathError{Op: "load", Path: path, Err: ErrLoadCancelled}
		}
	}

	fm.scratch.Attach(doc)
	defer fm.scratch.Reset()
	doc = fm.scratch.Current()

	ro := fm.store.ReadOnly(doc)
	if ro {
		fm.store.SetReadOnly(doc, false)
		defer fm.store.SetReadOnly(doc, true)
	}

	if err := fm.store.Clear(doc); err != nil {
		return fm.loadFailure(path, err)
	}
	if err := fm.store.Allocate(doc, requested); err != nil {
		return fm.loadFailure(path, err)
	}

	var (
		data  = make([]byte, blockSize+multibyteSlack)
		carry int
		dec   *codec.Decoder
		eol   = codec.EOLUnknown
	)
	for {
		if err := ctx.Err(); err != nil {
			return &PathError{Op: "load", Path: path, Err: err}
		}

		n, rerr := io.ReadFull(r, data[carry:blockSize])
		atEOF := errors.Is(rerr, io.EOF) || errors.Is(rerr, io.ErrUnexpectedEOF)
		if rerr != nil && !atEOF {
			return &PathError{Op: "load", Path: path, Err: rerr}
		}
		block := data[:carry+n]
		if len(block) == 0 {
			break
		}

		if dec == nil {
			dec, err = fm.firstBlock(block, large, f)
			if err != nil {
				return &PathError{Op: "load", Path: path, Err: err}
			}
		}

		out, incomplete, err := dec.Decode(block, atEOF)
		if err != nil {
			return &PathError{Op: "load", Path: path, Err: err}
		}
		if err := fm.store.Append(doc, out); err != nil {
			return fm.loadFailure(path, err)
		}
		if eol == codec.EOLUnknown {
			eol = codec.DetectEOL(out)
		}

		carry = copy(data, block[len(block)-incomplete:])
		if atEOF {
			break
		}
	}

	if eol == codec.EOLUnknown {
		f.eol = fm.defaults.EOL
		if dec == nil {
			f.mode = fm.defaults.UnicodeMode
		}
		// An empty file opened while new documents default to UTF-8 is
		// UTF-8.
		if size == 0 && f.encoding < 1 && fm.defaults.UnicodeMode == codec.UniCookie && fm.defaults.OpenANSIAsUTF8 {
			f.encoding = codec.CodepageUTF8
		}
	} else {
		f.eol = eol
	}

	fm.store.EmptyUndoBuffer(doc)
	fm.store.SetSavePoint(doc)
	return nil
}

// firstBlock settles the format of a file from its first block.
func (fm *FileManager) firstBlock(block []byte, large bool, f *loadedFormat) (*codec.Decoder, error) {
	mode := codec.DetermineEncoding(block)
	switch {
	case mode != codec.Uni8Bit:
		// A byte-order mark, UTF-16 or clean UTF-8/ASCII overrides any hint.
		f.encoding = codec.NoCodepage
	case f.encoding == codec.NoCodepage && fm.cfg.Load.DetectEncoding:
		if det, ok := codec.DetectCodepage(block); ok {
			fm.logger.Debug("detected %s (confidence %d)", det.Charset, det.Confidence)
			f.encoding = det.Codepage
		}
	}
	f.mode = mode

	if f.language == lang.Text && !large {
		sniff := block
		if mode.IsUTF16() {
			if text, err := codec.DecodeAll(block[:len(block)&^1], codec.Format{Mode: mode, Codepage: codec.NoCodepage}); err == nil {
				sniff = text
			}
		}
		f.language = lang.SniffContent(sniff)
	}

	if f.encoding != codec.NoCodepage {
		return codec.NewDecoder(codec.Format{Mode: codec.UniCookie, Codepage: f.encoding})
	}
	return codec.NewDecoder(codec.Format{Mode: mode, Codepage: codec.NoCodepage})
}

func (fm *FileManager) loadFailure(path string, err error) error {
	if errors.Is(err, document.ErrBadAlloc) {
		fm.prompter.ShowError("File size problem", "File is too big to be opened")
	} else {
		fm.prompter.ShowError("Loading error", "An error occurred while loading the file: "+err.Error())
	}
	return &PathError{Op: "load", Path: path, Err: errors.Join(ErrLoadFailed, err)}
}

// LoadGlob loads every regular file matching pattern. Directories and
// files that cannot be read are skipped. It returns the ids of the
// buffers created and the errors met, joined.
func (fm *FileManager) LoadGlob(ctx context.Context, pattern string, opts LoadOptions) ([]buffer.ID, error) {
	matches, err := doublestar.FilepathGlob(pattern, doublestar.WithFilesOnly())
	if err != nil {
		return nil, &PathError{Op: "glob", Path: pattern, Err: err}
	}

	defer fm.lock()()
	var ids []buffer.ID
	var errs []error
	for _, m := range matches {
		id, err := fm.loadFile(ctx, m, opts)
		switch {
		case err == nil:
			ids = append(ids, id)
		case errors.Is(err, ErrInvalid), errors.Is(err, fs.ErrNotExist):
			fm.logger.Debug("glob skipped %s: %v", m, err)
		default:
			errs = append(errs, err)
		}
	}
	return ids, errors.Join(errs...)
}
