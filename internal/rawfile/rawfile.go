// Package rawfile wraps an OS file opened for a full rewrite. It closes the
// handle exactly once, flushes to stable storage on close when anything was
// written, and reports write completion precisely.
package rawfile

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math"
	"os"
	"syscall"

	"github.com/dshills/docsync/internal/logging"
)

// Errors returned by File operations.
var (
	// ErrShortWrite means the OS accepted fewer bytes than requested.
	ErrShortWrite = io.ErrShortWrite

	// ErrClosed is returned by Write after Close.
	ErrClosed = errors.New("file already closed")

	// ErrFlushFailed wraps a failed fsync on Close.
	ErrFlushFailed = errors.New("flush failed")
)

// DefaultMaxChunk bounds one OS write so that byte counts always fit the
// 32-bit size type some platforms use for write(2).
const DefaultMaxChunk = math.MaxInt32

// Disposition describes how the target was opened.
type Disposition int

const (
	// CreateAlways creates the file or truncates it.
	CreateAlways Disposition = iota
	// TruncateExisting truncates an existing file in place, keeping its
	// extended attributes.
	TruncateExisting
)

func (d Disposition) String() string {
	if d == TruncateExisting {
		return "truncate-existing"
	}
	return "create-always"
}

// Warner surfaces a blocking message to the user.
type Warner interface {
	ShowError(title, message string)
}

// Options configures Open.
type Options struct {
	// Perm is used when the file is created. Defaults to 0644.
	Perm fs.FileMode

	// MaxChunk bounds a single OS write. Defaults to DefaultMaxChunk.
	MaxChunk int

	// Logger receives flush failures during shutdown.
	Logger *logging.Logger

	// Diagnostics records open, write and flush events.
	Diagnostics *logging.Diagnostics

	// Warner is told about flush failures during normal operation.
	Warner Warner

	// ShuttingDown reports whether the process is exiting, in which case
	// flush failures are only logged.
	ShuttingDown func() bool
}

// File is an open target file. The zero value is not usable; call Open.
type File struct {
	f           *os.File
	path        string
	disposition Disposition
	opts        Options

	written bool
	closed  bool

	writeFn func([]byte) (int, error)
	syncFn  func() error
}

// Open opens path for a complete rewrite.
//
// An existing file that carries extended attributes is truncated in place
// instead of recreated. If it disappears between the check and the open,
// Open falls back to creating it. The permission bits of an existing file
// are preserved.
func Open(path string, opts Options) (*File, error) {
	if opts.Perm == 0 {
		opts.Perm = 0o644
	}
	if opts.MaxChunk <= 0 {
		opts.MaxChunk = DefaultMaxChunk
	}
	if opts.Logger == nil {
		opts.Logger = logging.Null()
	}

	info, statErr := os.Stat(path)
	exists := statErr == nil

	disp := CreateAlways
	if exists && hasExtendedAttributes(path) {
		disp = TruncateExisting
	}

	f, err := openWith(path, disp, opts.Perm)
	if err != nil && disp == TruncateExisting && errors.Is(err, fs.ErrNotExist) {
		// Vanished after the existence check.
		disp = CreateAlways
		exists = false
		f, err = openWith(path, disp, opts.Perm)
	}
	if err != nil {
		opts.Diagnostics.Record(path, "open failed (%s): %v", disp, err)
		return nil, err
	}
	opts.Diagnostics.Record(path, "opened (%s)", disp)

	if exists {
		if err := f.Chmod(info.Mode().Perm()); err != nil {
			opts.Logger.Debug("could not restore mode of %s: %v", path, err)
		}
	}

	file := &File{f: f, path: path, disposition: disp, opts: opts}
	file.writeFn = f.Write
	file.syncFn = f.Sync
	return file, nil
}

func openWith(path string, disp Disposition, perm fs.FileMode) (*os.File, error) {
	flags := os.O_WRONLY | os.O_TRUNC
	if disp == CreateAlways {
		flags |= os.O_CREATE
	}
	return os.OpenFile(path, flags, perm)
}

// Path returns the path passed to Open.
func (f *File) Path() string { return f.path }

// Disposition returns how the file was opened.
func (f *File) Disposition() Disposition { return f.disposition }

// Write writes all of p in chunks of at most MaxChunk bytes. It returns
// ErrShortWrite if any chunk is only partly accepted.
func (f *File) Write(p []byte) (int, error) {
	if f.closed {
		return 0, ErrClosed
	}

	total := 0
	for total < len(p) {
		chunk := min(len(p)-total, f.opts.MaxChunk)
		n, err := f.writeFn(p[total : total+chunk])
		if n > 0 {
			f.written = true
			total += n
		}
		f.opts.Diagnostics.Record(f.path, "write %d/%d bytes", n, chunk)
		if err != nil {
			return total, err
		}
		if n < chunk {
			return total, ErrShortWrite
		}
	}
	return total, nil
}

// Close flushes (if anything was written) and closes the handle. Calling it
// again is a no-op. A flush failure is reported to the Warner, or only
// logged while shutting down, and returned wrapped in ErrFlushFailed.
func (f *File) Close() error {
	if f.closed {
		return nil
	}
	f.closed = true

	var flushErr error
	if f.written {
		if err := f.syncFn(); err != nil {
			flushErr = fmt.Errorf("%w: %s: %w", ErrFlushFailed, f.path, err)
			f.reportFlushFailure(err)
		}
	}

	closeErr := f.f.Close()
	return errors.Join(flushErr, closeErr)
}

func (f *File) reportFlushFailure(err error) {
	code := errorCode(err)
	f.opts.Diagnostics.Record(f.path, "flush failed, error code %d: %v", code, err)

	if f.opts.ShuttingDown != nil && f.opts.ShuttingDown() {
		f.opts.Logger.Warn("flush of %s failed during shutdown (code %d): %v", f.path, code, err)
		return
	}
	if f.opts.Warner != nil {
		f.opts.Warner.ShowError("Flush error",
			fmt.Sprintf("Data of %s may not be on disk (error code %d): %v", f.path, code, err))
		return
	}
	f.opts.Logger.Error("flush of %s failed (code %d): %v", f.path, code, err)
}

func errorCode(err error) int {
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return int(errno)
	}
	return -1
}
