package document

import (
	"io"
	"sync"
)

type memDoc struct {
	data     []byte
	refs     int
	readOnly bool
	dirty    bool
	large    bool
	undo     int
}

// MemStore is an in-memory Store. It is the document model of the command
// line tool and of tests; an editor embeds its own widget instead.
type MemStore struct {
	mu        sync.Mutex
	docs      map[Handle]*memDoc
	next      Handle
	listeners []SavePointFunc
	modifiers []ModifyFunc

	// AllocLimit makes Allocate and Append fail with ErrBadAlloc when a
	// document would exceed it. Zero means no limit.
	AllocLimit int64
}

// NewMemStore creates an empty store.
func NewMemStore() *MemStore {
	return &MemStore{docs: make(map[Handle]*memDoc)}
}

// Create implements Store.
func (m *MemStore) Create(large bool) (Handle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.next++
	m.docs[m.next] = &memDoc{refs: 1, large: large}
	return m.next, nil
}

// AddRef implements Store.
func (m *MemStore) AddRef(h Handle) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d, ok := m.docs[h]; ok {
		d.refs++
	}
}

// Release implements Store.
func (m *MemStore) Release(h Handle) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d, ok := m.docs[h]; ok {
		d.refs--
		if d.refs <= 0 {
			delete(m.docs, h)
		}
	}
}

// Exists reports whether h is still alive.
func (m *MemStore) Exists(h Handle) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.docs[h]
	return ok
}

// Refs returns the reference count of h.
func (m *MemStore) Refs(h Handle) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d, ok := m.docs[h]; ok {
		return d.refs
	}
	return 0
}

// Count returns the number of live documents.
func (m *MemStore) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.docs)
}

// Clear implements Store.
func (m *MemStore) Clear(h Handle) error {
	return m.modify(h, func(d *memDoc) error {
		d.data = d.data[:0]
		return nil
	})
}

// Allocate implements Store.
func (m *MemStore) Allocate(h Handle, n int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.docs[h]
	if !ok {
		return ErrNoDocument
	}
	if m.AllocLimit > 0 && n > m.AllocLimit {
		return ErrBadAlloc
	}
	if int64(cap(d.data)) < n {
		grown := make([]byte, len(d.data), n)
		copy(grown, d.data)
		d.data = grown
	}
	return nil
}

// Append implements Store.
func (m *MemStore) Append(h Handle, p []byte) error {
	return m.modify(h, func(d *memDoc) error {
		if m.AllocLimit > 0 && int64(len(d.data)+len(p)) > m.AllocLimit {
			return ErrBadAlloc
		}
		d.data = append(d.data, p...)
		return nil
	})
}

// Insert places p at off. It stands in for user typing.
func (m *MemStore) Insert(h Handle, off int64, p []byte) error {
	return m.modify(h, func(d *memDoc) error {
		if off < 0 || off > int64(len(d.data)) {
			return io.ErrUnexpectedEOF
		}
		d.data = append(d.data[:off], append(append([]byte(nil), p...), d.data[off:]...)...)
		return nil
	})
}

// Delete removes n bytes at off.
func (m *MemStore) Delete(h Handle, off, n int64) error {
	return m.modify(h, func(d *memDoc) error {
		if off < 0 || n < 0 || off+n > int64(len(d.data)) {
			return io.ErrUnexpectedEOF
		}
		d.data = append(d.data[:off], d.data[off+n:]...)
		return nil
	})
}

// Length implements Store.
func (m *MemStore) Length(h Handle) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d, ok := m.docs[h]; ok {
		return int64(len(d.data))
	}
	return 0
}

// ReadAt implements Store.
func (m *MemStore) ReadAt(h Handle, p []byte, off int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.docs[h]
	if !ok {
		return 0, ErrNoDocument
	}
	if off >= int64(len(d.data)) {
		return 0, io.EOF
	}
	n := copy(p, d.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// Text returns a copy of the content of h.
func (m *MemStore) Text(h Handle) []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d, ok := m.docs[h]; ok {
		return append([]byte(nil), d.data...)
	}
	return nil
}

// ReadOnly implements Store.
func (m *MemStore) ReadOnly(h Handle) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d, ok := m.docs[h]; ok {
		return d.readOnly
	}
	return false
}

// SetReadOnly implements Store.
func (m *MemStore) SetReadOnly(h Handle, ro bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d, ok := m.docs[h]; ok {
		d.readOnly = ro
	}
}

// SetSavePoint implements Store.
func (m *MemStore) SetSavePoint(h Handle) {
	m.mu.Lock()
	d, ok := m.docs[h]
	if !ok || !d.dirty {
		m.mu.Unlock()
		return
	}
	d.dirty = false
	listeners := m.snapshotListeners()
	m.mu.Unlock()

	for _, fn := range listeners {
		fn(h, false)
	}
}

// EmptyUndoBuffer implements Store.
func (m *MemStore) EmptyUndoBuffer(h Handle) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d, ok := m.docs[h]; ok {
		d.undo = 0
	}
}

// UndoDepth returns the number of modifications since the undo history
// was last emptied.
func (m *MemStore) UndoDepth(h Handle) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d, ok := m.docs[h]; ok {
		return d.undo
	}
	return 0
}

// OnSavePoint implements Store.
func (m *MemStore) OnSavePoint(fn SavePointFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, fn)
}

// OnModify implements Store.
func (m *MemStore) OnModify(fn ModifyFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.modifiers = append(m.modifiers, fn)
}

// modify applies fn and reports a save point departure. Listeners run
// without the lock held.
func (m *MemStore) modify(h Handle, fn func(*memDoc) error) error {
	m.mu.Lock()
	d, ok := m.docs[h]
	if !ok {
		m.mu.Unlock()
		return ErrNoDocument
	}
	if d.readOnly {
		m.mu.Unlock()
		return ErrReadOnly
	}
	if err := fn(d); err != nil {
		m.mu.Unlock()
		return err
	}
	d.undo++
	left := !d.dirty
	d.dirty = true
	listeners := m.snapshotListeners()
	modifiers := append([]ModifyFunc(nil), m.modifiers...)
	m.mu.Unlock()

	for _, fn := range modifiers {
		fn(h)
	}
	if left {
		for _, fn := range listeners {
			fn(h, true)
		}
	}
	return nil
}

func (m *MemStore) snapshotListeners() []SavePointFunc {
	return append([]SavePointFunc(nil), m.listeners...)
}

var _ Store = (*MemStore)(nil)
