// Package filemanager owns every open buffer. It creates buffers from disk
// loads or as untitled documents, looks them up, and runs the load,
// reload, save, delete, move and backup-write operations against them.
//
// All registry operations are serialised on one lock, standing in for the
// editor's UI thread. Buffer change notifications raised during an
// operation are coalesced per buffer and delivered after the lock is
// released, so handlers may call back into the FileManager.
package filemanager

import (
	"context"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/dshills/docsync/internal/buffer"
	"github.com/dshills/docsync/internal/config"
	"github.com/dshills/docsync/internal/document"
	"github.com/dshills/docsync/internal/logging"
	"github.com/dshills/docsync/internal/prompt"
	"github.com/dshills/docsync/internal/vfs"
)

// blockSize is the unit of streamed reads and writes.
const blockSize = 128 * 1024

// multibyteSlack is room after a block for a carried incomplete character.
const multibyteSlack = 8

// intSize is the width of int in bits. Builds with 32-bit ints cannot hold
// two copies of a document near 2 GiB.
var intSize = strconv.IntSize

// ChangeHandler receives coalesced buffer change notifications.
type ChangeHandler func(b *buffer.Buffer, mask buffer.ChangeMask)

// FileManager is the registry of open buffers.
type FileManager struct {
	// mu serialises registry operations.
	mu sync.Mutex
	// saveMu keeps saves and snapshot writes from interleaving on the
	// scratch document. Acquired before mu.
	saveMu sync.Mutex

	// regMu guards buffers for lookups made from document store callbacks,
	// which can run while mu is held. Writers hold both.
	regMu   sync.RWMutex
	buffers []*buffer.Buffer

	nextID    buffer.ID
	recentTag int64

	store   document.Store
	scratch *document.Scratch

	fs          vfs.FS
	prober      *vfs.Prober
	env         *buffer.Env
	cfg         *config.Config
	defaults    buffer.Defaults
	logger      *logging.Logger
	diag        *logging.Diagnostics
	prompter    prompt.Prompter
	shutdown    func() bool
	openTarget  func(path string) (target, error)
	handlersMu  sync.RWMutex
	handlers    []ChangeHandler
	closeHooks  []func(id buffer.ID)
	pendingMu   sync.Mutex
	depth       int
	pending     []pendingChange
	pendingByID map[buffer.ID]int
}

type pendingChange struct {
	b    *buffer.Buffer
	mask buffer.ChangeMask
}

// Option configures a FileManager.
type Option func(*FileManager)

// WithFS sets the file system. Defaults to the OS.
func WithFS(fsys vfs.FS) Option {
	return func(fm *FileManager) { fm.fs = fsys }
}

// WithConfig sets the configuration. Defaults to config.Default().
func WithConfig(cfg *config.Config) Option {
	return func(fm *FileManager) { fm.cfg = cfg }
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(fm *FileManager) { fm.logger = l }
}

// WithDiagnostics enables the diagnostic log.
func WithDiagnostics(d *logging.Diagnostics) Option {
	return func(fm *FileManager) { fm.diag = d }
}

// WithPrompter sets how the user is asked and warned.
func WithPrompter(p prompt.Prompter) Option {
	return func(fm *FileManager) { fm.prompter = p }
}

// WithShuttingDown reports process shutdown, during which flush failures
// are logged instead of shown.
func WithShuttingDown(fn func() bool) Option {
	return func(fm *FileManager) { fm.shutdown = fn }
}

// New creates a FileManager over store.
func New(store document.Store, opts ...Option) (*FileManager, error) {
	fm := &FileManager{
		store:       store,
		nextID:      1,
		pendingByID: make(map[buffer.ID]int),
	}
	for _, opt := range opts {
		opt(fm)
	}
	if fm.fs == nil {
		fm.fs = vfs.NewOSFS()
	}
	if fm.cfg == nil {
		fm.cfg = config.Default()
	}
	if fm.logger == nil {
		fm.logger = logging.Null()
	}
	fm.logger = fm.logger.WithComponent("filemanager")
	if fm.prompter == nil {
		fm.prompter = &prompt.Auto{}
	}
	if fm.shutdown == nil {
		fm.shutdown = func() bool { return false }
	}
	if fm.openTarget == nil {
		fm.openTarget = fm.openRawFile
	}

	d, err := buffer.DefaultsFromConfig(fm.cfg.NewDocument)
	if err != nil {
		return nil, err
	}
	fm.defaults = d

	scratch, err := document.NewScratch(store)
	if err != nil {
		return nil, err
	}
	fm.scratch = scratch

	fm.prober = vfs.NewProber(fm.fs, fm.cfg.Load.MetadataTimeout.Std())
	fm.env = &buffer.Env{
		Prober:      fm.prober,
		Notifier:    fm,
		Logger:      fm.logger.WithComponent("buffer"),
		Diagnostics: fm.diag,
	}

	store.OnSavePoint(fm.savePointChanged)
	store.OnModify(fm.documentModified)
	return fm, nil
}

// Config returns the configuration in use.
func (fm *FileManager) Config() *config.Config { return fm.cfg }

// FS returns the file system in use.
func (fm *FileManager) FS() vfs.FS { return fm.fs }

// Store returns the document store.
func (fm *FileManager) Store() document.Store { return fm.store }

// Defaults returns the format settings of new documents.
func (fm *FileManager) Defaults() buffer.Defaults { return fm.defaults }

// OnBufferChanged registers a change handler.
func (fm *FileManager) OnBufferChanged(h ChangeHandler) {
	fm.handlersMu.Lock()
	defer fm.handlersMu.Unlock()
	fm.handlers = append(fm.handlers, h)
}

// OnBufferClosed registers a hook run after a buffer is destroyed.
func (fm *FileManager) OnBufferClosed(fn func(id buffer.ID)) {
	fm.handlersMu.Lock()
	defer fm.handlersMu.Unlock()
	fm.closeHooks = append(fm.closeHooks, fn)
}

// lock starts a registry operation. The returned function ends it and
// delivers the notifications it queued. Use as defer fm.lock()().
func (fm *FileManager) lock() func() {
	fm.pendingMu.Lock()
	fm.depth++
	fm.pendingMu.Unlock()
	fm.mu.Lock()
	return func() {
		fm.mu.Unlock()
		fm.flush()
	}
}

// BufferChanged implements buffer.Notifier.
func (fm *FileManager) BufferChanged(b *buffer.Buffer, mask buffer.ChangeMask) {
	fm.pendingMu.Lock()
	if fm.depth == 0 {
		fm.pendingMu.Unlock()
		fm.deliver([]pendingChange{{b, mask}})
		return
	}
	if i, ok := fm.pendingByID[b.ID()]; ok {
		fm.pending[i].mask |= mask
	} else {
		fm.pendingByID[b.ID()] = len(fm.pending)
		fm.pending = append(fm.pending, pendingChange{b, mask})
	}
	fm.pendingMu.Unlock()
}

func (fm *FileManager) flush() {
	fm.pendingMu.Lock()
	fm.depth--
	if fm.depth > 0 || len(fm.pending) == 0 {
		fm.pendingMu.Unlock()
		return
	}
	batch := fm.pending
	fm.pending = nil
	clear(fm.pendingByID)
	fm.pendingMu.Unlock()

	fm.deliver(batch)
}

func (fm *FileManager) deliver(batch []pendingChange) {
	fm.handlersMu.RLock()
	handlers := slices.Clone(fm.handlers)
	fm.handlersMu.RUnlock()

	for _, c := range batch {
		mask := c.mask
		if mask&buffer.ChangeGuarded != 0 {
			if !c.b.TryReloadGuard() {
				fm.logger.Debug("skipped overlapping notification for %s", c.b.FullPath())
				continue
			}
			mask &^= buffer.ChangeGuarded
			for _, h := range handlers {
				h(c.b, mask)
			}
			c.b.ReleaseReloadGuard()
			continue
		}
		for _, h := range handlers {
			h(c.b, mask)
		}
	}
}

// savePointChanged tracks dirtiness from the document store. Buffers with
// notifications off are being reloaded and ignore the transient states.
func (fm *FileManager) savePointChanged(h document.Handle, dirty bool) {
	b := fm.bufferByDocument(h)
	if b == nil || !b.CanNotify() {
		return
	}
	if !dirty && b.LoadedDirty() {
		// Content restored from a sidecar never matches the file on disk.
		return
	}
	b.SetDirty(dirty)
}

func (fm *FileManager) documentModified(h document.Handle) {
	b := fm.bufferByDocument(h)
	if b == nil || !b.CanNotify() {
		return
	}
	b.SetModified(true)
}

func (fm *FileManager) bufferByDocument(h document.Handle) *buffer.Buffer {
	fm.regMu.RLock()
	defer fm.regMu.RUnlock()
	for _, b := range fm.buffers {
		if b.Document() == h {
			return b
		}
	}
	return nil
}

func (fm *FileManager) register(b *buffer.Buffer) {
	fm.regMu.Lock()
	fm.buffers = append(fm.buffers, b)
	fm.regMu.Unlock()
}

func (fm *FileManager) allocID() buffer.ID {
	id := fm.nextID
	fm.nextID++
	return id
}

func (fm *FileManager) find(id buffer.ID) (*buffer.Buffer, int) {
	for i, b := range fm.buffers {
		if b.ID() == id {
			return b, i
		}
	}
	return nil, -1
}

func (fm *FileManager) get(op string, id buffer.ID) (*buffer.Buffer, error) {
	b, _ := fm.find(id)
	if b == nil {
		return nil, &PathError{Op: op, Path: "#" + strconv.FormatUint(uint64(id), 10), Err: ErrBufferNotFound}
	}
	return b, nil
}

// Buffer returns the buffer with id.
func (fm *FileManager) Buffer(id buffer.ID) (*buffer.Buffer, bool) {
	defer fm.lock()()
	b, _ := fm.find(id)
	return b, b != nil
}

// Buffers returns all buffers in creation order.
func (fm *FileManager) Buffers() []*buffer.Buffer {
	fm.regMu.RLock()
	defer fm.regMu.RUnlock()
	return slices.Clone(fm.buffers)
}

// Count returns the number of buffers.
func (fm *FileManager) Count() int {
	fm.regMu.RLock()
	defer fm.regMu.RUnlock()
	return len(fm.buffers)
}

// IndexOf returns the position of id in creation order, or -1.
func (fm *FileManager) IndexOf(id buffer.ID) int {
	defer fm.lock()()
	_, i := fm.find(id)
	return i
}

// BufferByIndex returns the buffer at position i.
func (fm *FileManager) BufferByIndex(i int) (*buffer.Buffer, bool) {
	defer fm.lock()()
	if i < 0 || i >= len(fm.buffers) {
		return nil, false
	}
	return fm.buffers[i], true
}

// WithBuffer runs fn on the buffer with id inside a registry operation.
func (fm *FileManager) WithBuffer(id buffer.ID, fn func(b *buffer.Buffer) error) error {
	defer fm.lock()()
	b, err := fm.get("access", id)
	if err != nil {
		return err
	}
	return fn(b)
}

// BufferFromName returns the buffer whose path matches name, ignoring
// case, and whose first view is visible.
func (fm *FileManager) BufferFromName(name string) (buffer.ID, bool) {
	defer fm.lock()()
	for _, b := range fm.buffers {
		if strings.EqualFold(name, b.FullPath()) && b.VisibleInFirstView() {
			return b.ID(), true
		}
	}
	return 0, false
}

// BuffersByPath returns the buffers whose path matches path, ignoring
// case, whatever their views.
func (fm *FileManager) BuffersByPath(path string) []buffer.ID {
	defer fm.lock()()
	var ids []buffer.ID
	for _, b := range fm.buffers {
		if !b.IsUntitled() && strings.EqualFold(path, b.FullPath()) {
			ids = append(ids, b.ID())
		}
	}
	return ids
}

// OnDiskPaths returns the paths of all buffers backed by a file,
// including files that are currently missing.
func (fm *FileManager) OnDiskPaths() []string {
	defer fm.lock()()
	var paths []string
	for _, b := range fm.buffers {
		if !b.IsUntitled() {
			paths = append(paths, b.FullPath())
		}
	}
	return paths
}

// BufferFromDocument returns the buffer owning h.
func (fm *FileManager) BufferFromDocument(h document.Handle) (buffer.ID, bool) {
	if b := fm.bufferByDocument(h); b != nil {
		return b.ID(), true
	}
	return 0, false
}

// AddBufferReference attaches a view to a buffer.
func (fm *FileManager) AddBufferReference(id buffer.ID, v buffer.View) error {
	defer fm.lock()()
	b, err := fm.get("reference", id)
	if err != nil {
		return err
	}
	b.AddReference(v)
	return nil
}

// CloseBuffer detaches v. When no view is left the buffer's document is
// released and the buffer is destroyed.
func (fm *FileManager) CloseBuffer(id buffer.ID, v buffer.View) error {
	closed, err := fm.closeBuffer(id, v)
	if err != nil || !closed {
		return err
	}
	fm.handlersMu.RLock()
	hooks := slices.Clone(fm.closeHooks)
	fm.handlersMu.RUnlock()
	for _, fn := range hooks {
		fn(id)
	}
	return nil
}

func (fm *FileManager) closeBuffer(id buffer.ID, v buffer.View) (bool, error) {
	defer fm.lock()()
	b, i := fm.find(id)
	if b == nil {
		return false, &PathError{Op: "close", Path: "#" + strconv.FormatUint(uint64(id), 10), Err: ErrBufferNotFound}
	}
	if b.RemoveReference(v) > 0 {
		return false, nil
	}
	fm.regMu.Lock()
	fm.buffers = slices.Delete(fm.buffers, i, i+1)
	fm.regMu.Unlock()
	fm.store.Release(b.Document())
	fm.dropPending(id)
	return true, nil
}

func (fm *FileManager) dropPending(id buffer.ID) {
	fm.pendingMu.Lock()
	defer fm.pendingMu.Unlock()
	i, ok := fm.pendingByID[id]
	if !ok {
		return
	}
	fm.pending = slices.Delete(fm.pending, i, i+1)
	clear(fm.pendingByID)
	for j, c := range fm.pending {
		fm.pendingByID[c.b.ID()] = j
	}
}

// NextUntitledNumber returns the smallest N such that no untitled buffer
// is called "new N". Untitled buffers whose first view is hidden give
// their number back; buffers not yet shown in any view keep theirs.
func (fm *FileManager) NextUntitledNumber() int {
	defer fm.lock()()
	return fm.nextUntitledNumber()
}

func (fm *FileManager) nextUntitledNumber() int {
	used := make(map[int]bool)
	for _, b := range fm.buffers {
		if !b.IsUntitled() {
			continue
		}
		if b.References() > 0 && !b.VisibleInFirstView() {
			continue
		}
		n, err := strconv.Atoi(strings.TrimPrefix(b.FileName(), buffer.UntitledPrefix))
		if err == nil {
			used[n] = true
		}
	}
	n := 1
	for used[n] {
		n++
	}
	return n
}

func (fm *FileManager) untitledName() string {
	return buffer.UntitledPrefix + strconv.Itoa(fm.nextUntitledNumber())
}

// NewEmptyDocument creates an untitled buffer with a fresh document.
func (fm *FileManager) NewEmptyDocument(ctx context.Context) (buffer.ID, error) {
	defer fm.lock()()
	doc, err := fm.store.Create(false)
	if err != nil {
		return 0, &PathError{Op: "new", Path: buffer.UntitledPrefix, Err: err}
	}
	b := buffer.New(ctx, fm.allocID(), doc, buffer.StatusUnnamed, fm.untitledName(), false, fm.defaults, fm.env)
	fm.register(b)
	return b.ID(), nil
}

// FromDocument creates an untitled buffer around an existing document.
// addRef takes a reference on behalf of the registry; pass false when the
// caller hands its own reference over.
func (fm *FileManager) FromDocument(ctx context.Context, h document.Handle, addRef bool) buffer.ID {
	defer fm.lock()()
	if addRef {
		fm.store.AddRef(h)
	}
	b := buffer.New(ctx, fm.allocID(), h, buffer.StatusUnnamed, fm.untitledName(), false, fm.defaults, fm.env)
	fm.register(b)
	return b.ID()
}

// NewPlaceholderDocument creates an empty stand-in for a file that could
// not be opened, so a session keeps its slot. The buffer ends up Deleted,
// read-only and clean.
func (fm *FileManager) NewPlaceholderDocument(ctx context.Context, missingPath string) (buffer.ID, error) {
	defer fm.lock()()
	doc, err := fm.store.Create(false)
	if err != nil {
		return 0, &PathError{Op: "placeholder", Path: missingPath, Err: err}
	}
	b := buffer.New(ctx, fm.allocID(), doc, buffer.StatusInaccessible, vfs.Canonical(missingPath), false, fm.defaults, fm.env)
	fm.register(b)
	return b.ID(), nil
}

// NbDirtyBuffers counts buffers with unsaved changes.
func (fm *FileManager) NbDirtyBuffers() int {
	defer fm.lock()()
	n := 0
	for _, b := range fm.buffers {
		if b.Dirty() {
			n++
		}
	}
	return n
}

// DocLength returns the length in bytes of the buffer's document.
func (fm *FileManager) DocLength(id buffer.ID) (int64, error) {
	defer fm.lock()()
	b, err := fm.get("length", id)
	if err != nil {
		return 0, err
	}
	return fm.store.Length(b.Document()), nil
}

// IncreaseRecentTag stamps the buffer as the most recently activated.
func (fm *FileManager) IncreaseRecentTag(id buffer.ID) error {
	defer fm.lock()()
	b, err := fm.get("activate", id)
	if err != nil {
		return err
	}
	fm.recentTag++
	b.SetRecentTag(fm.recentTag)
	return nil
}

// CheckFilesystemChanges reconciles buffers with the file system. With a
// non-zero only, just that buffer is checked.
func (fm *FileManager) CheckFilesystemChanges(ctx context.Context, only buffer.ID) {
	defer fm.lock()()
	if only != 0 {
		if b, _ := fm.find(only); b != nil {
			b.CheckFileState(ctx)
		}
		return
	}
	for _, b := range slices.Backward(slices.Clone(fm.buffers)) {
		b.CheckFileState(ctx)
	}
}
