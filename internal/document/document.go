// Package document defines the contract between the document core and the
// text widget that owns document content. The core never edits text; it
// creates documents, streams bytes into and out of them and moves their
// save point.
package document

import (
	"errors"
	"fmt"
)

// Errors reported by a Store.
var (
	// ErrBadAlloc means the store could not grow a document.
	ErrBadAlloc = errors.New("document allocation failed")

	// ErrNoDocument is returned for an unknown or released handle.
	ErrNoDocument = errors.New("no such document")

	// ErrReadOnly is returned when modifying a read-only document.
	ErrReadOnly = errors.New("document is read-only")
)

// Handle identifies a document inside a Store. The zero Handle is never
// issued.
type Handle uint64

// SavePointFunc is called when a document leaves (dirty=true) or returns to
// (dirty=false) its save point.
type SavePointFunc func(h Handle, dirty bool)

// ModifyFunc is called after every successful modification of a document.
type ModifyFunc func(h Handle)

// Store is the document side of the text widget.
type Store interface {
	// Create makes an empty document with one reference. large selects a
	// lighter storage strategy.
	Create(large bool) (Handle, error)

	// AddRef adds a reference to h.
	AddRef(h Handle)

	// Release drops a reference. The document is destroyed at zero.
	Release(h Handle)

	// Clear removes all content.
	Clear(h Handle) error

	// Allocate reserves capacity for n bytes.
	Allocate(h Handle, n int64) error

	// Append adds p at the end.
	Append(h Handle, p []byte) error

	// Length returns the content length in bytes.
	Length(h Handle) int64

	// ReadAt copies content starting at off into p.
	ReadAt(h Handle, p []byte, off int64) (int, error)

	// ReadOnly reports whether h refuses modification.
	ReadOnly(h Handle) bool

	// SetReadOnly changes the read-only flag of h.
	SetReadOnly(h Handle, ro bool)

	// SetSavePoint marks the current content as saved.
	SetSavePoint(h Handle)

	// EmptyUndoBuffer forgets undo history.
	EmptyUndoBuffer(h Handle)

	// OnSavePoint registers fn for save point transitions of any document.
	OnSavePoint(fn SavePointFunc)

	// OnModify registers fn for every modification of any document.
	OnModify(fn ModifyFunc)
}

// Scratch is the staging view used for loads and saves. Streaming reads
// and writes address the document through Current while it is attached.
// Reset falls back to the view's own default document, so that no live
// document stays attached after an I/O operation, including a failed
// save.
// A Scratch is not safe for concurrent use; callers serialise access.
type Scratch struct {
	store Store
	def   Handle
	cur   Handle
}

// NewScratch creates a scratch view with its own default document.
func NewScratch(store Store) (*Scratch, error) {
	def, err := store.Create(false)
	if err != nil {
		return nil, fmt.Errorf("creating scratch document: %w", err)
	}
	return &Scratch{store: store, def: def, cur: def}, nil
}

// Store returns the underlying store.
func (s *Scratch) Store() Store { return s.store }

// Attach points the scratch view at h.
func (s *Scratch) Attach(h Handle) { s.cur = h }

// Reset points the scratch view back at its default document.
func (s *Scratch) Reset() { s.cur = s.def }

// Current returns the attached document.
func (s *Scratch) Current() Handle { return s.cur }

// Attached reports whether a document other than the default is attached.
func (s *Scratch) Attached() bool { return s.cur != s.def }
