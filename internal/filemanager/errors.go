package filemanager

import (
	"errors"
	"fmt"
)

// Errors returned by FileManager operations.
var (
	// ErrInvalid means there is nothing to load at the requested path. It
	// is also what glob or directory probing runs into, so callers may
	// treat it as a quiet miss.
	ErrInvalid = errors.New("nothing to load")

	// ErrUnreachable means a metadata query did not finish in time.
	ErrUnreachable = errors.New("file system unreachable")

	// ErrBufferNotFound is returned for an unknown buffer id.
	ErrBufferNotFound = errors.New("buffer not found")

	// ErrNotEnoughRoom means the target volume cannot hold the document.
	ErrNotEnoughRoom = errors.New("not enough room on disk")

	// ErrSaveOpenFailed means the target could not be opened for writing.
	ErrSaveOpenFailed = errors.New("cannot open file for writing")

	// ErrSaveWritingFailed means the document was not completely written.
	ErrSaveWritingFailed = errors.New("writing failed")

	// ErrFileTooBig means the file cannot be loaded in this address space.
	ErrFileTooBig = errors.New("file too big to open")

	// ErrLoadCancelled means the user declined to open a huge file. It is
	// a normal outcome, not a failure.
	ErrLoadCancelled = errors.New("load cancelled")

	// ErrLoadFailed wraps a failure of the document store while loading.
	ErrLoadFailed = errors.New("error while loading the file")
)

// PathError records an operation, the path it was applied to and the
// cause.
type PathError struct {
	Op   string // load, reload, save, delete, move, backup
	Path string
	Err  error
}

func (e *PathError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *PathError) Unwrap() error {
	return e.Err
}

// SaveStatus is the coarse outcome of a save, for callers that show one
// message per case.
type SaveStatus int

const (
	SaveOK SaveStatus = iota
	SaveOpenFailed
	SaveWritingFailed
	NotEnoughRoom
)

func (s SaveStatus) String() string {
	switch s {
	case SaveOK:
		return "ok"
	case SaveOpenFailed:
		return "open failed"
	case SaveWritingFailed:
		return "writing failed"
	case NotEnoughRoom:
		return "not enough room"
	default:
		return fmt.Sprintf("SaveStatus(%d)", int(s))
	}
}

// SavingStatus maps an error returned by SaveBuffer to a SaveStatus.
func SavingStatus(err error) SaveStatus {
	switch {
	case err == nil:
		return SaveOK
	case errors.Is(err, ErrNotEnoughRoom):
		return NotEnoughRoom
	case errors.Is(err, ErrSaveWritingFailed):
		return SaveWritingFailed
	default:
		return SaveOpenFailed
	}
}
