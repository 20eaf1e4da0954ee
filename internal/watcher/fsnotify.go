package watcher

import (
	"errors"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/dshills/docsync/internal/vfs"
)

// FSNotifyWatcher watches directories with fsnotify and reports events
// for the files inside them.
type FSNotifyWatcher struct {
	mu     sync.RWMutex
	fsw    *fsnotify.Watcher
	ignore *IgnorePatterns
	dirs   map[string]struct{}

	events chan Event
	errors chan error

	delivered atomic.Int64
	dropped   atomic.Int64

	closed   bool
	closeCh  chan struct{}
	closedWg sync.WaitGroup
}

// NewFSNotifyWatcher creates a new fsnotify-based watcher.
func NewFSNotifyWatcher(opts ...Option) (*FSNotifyWatcher, error) {
	config := DefaultConfig()
	for _, opt := range opts {
		opt(&config)
	}

	ignore := NewIgnorePatterns()
	if err := ignore.AddPatterns(config.IgnorePatterns); err != nil {
		return nil, err
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	size := max(config.BufferSize, 1)
	w := &FSNotifyWatcher{
		fsw:     fsw,
		ignore:  ignore,
		dirs:    make(map[string]struct{}),
		events:  make(chan Event, size),
		errors:  make(chan error, size),
		closeCh: make(chan struct{}),
	}
	w.closedWg.Add(1)
	go w.pump()
	return w, nil
}

// Watch starts watching a directory.
func (w *FSNotifyWatcher) Watch(dir string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrWatcherClosed
	}

	dir = vfs.Canonical(dir)
	if _, err := os.Stat(dir); err != nil {
		if os.IsNotExist(err) {
			return ErrPathNotExist
		}
		return err
	}
	if _, ok := w.dirs[dir]; ok {
		return ErrAlreadyWatching
	}
	if err := w.fsw.Add(dir); err != nil {
		return err
	}
	w.dirs[dir] = struct{}{}
	return nil
}

// Unwatch stops watching a directory.
func (w *FSNotifyWatcher) Unwatch(dir string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrWatcherClosed
	}

	dir = vfs.Canonical(dir)
	if _, ok := w.dirs[dir]; !ok {
		return ErrNotWatching
	}
	delete(w.dirs, dir)
	// A removed directory has already lost its watch.
	if err := w.fsw.Remove(dir); err != nil && !errors.Is(err, fsnotify.ErrNonExistentWatch) {
		return err
	}
	return nil
}

// Events returns the event channel.
func (w *FSNotifyWatcher) Events() <-chan Event {
	return w.events
}

// Errors returns the error channel.
func (w *FSNotifyWatcher) Errors() <-chan error {
	return w.errors
}

// Close stops the watcher. The event and error channels are closed.
func (w *FSNotifyWatcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	close(w.closeCh)
	w.mu.Unlock()

	w.closedWg.Wait()
	close(w.events)
	close(w.errors)
	return w.fsw.Close()
}

// IsWatching returns true if the directory is being watched.
func (w *FSNotifyWatcher) IsWatching(dir string) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()

	_, ok := w.dirs[vfs.Canonical(dir)]
	return ok
}

// WatchedPaths returns all watched directories.
func (w *FSNotifyWatcher) WatchedPaths() []string {
	w.mu.RLock()
	defer w.mu.RUnlock()

	dirs := make([]string, 0, len(w.dirs))
	for d := range w.dirs {
		dirs = append(dirs, d)
	}
	return dirs
}

// Counts returns the number of events delivered and dropped.
func (w *FSNotifyWatcher) Counts() (delivered, dropped int64) {
	return w.delivered.Load(), w.dropped.Load()
}

// pump forwards fsnotify events until Close.
func (w *FSNotifyWatcher) pump() {
	defer w.closedWg.Done()
	for {
		select {
		case <-w.closeCh:
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if op := convertOp(ev.Op); op != 0 && !w.ignore.Match(ev.Name) {
				w.send(Event{Path: ev.Name, Op: op, Timestamp: time.Now()})
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			select {
			case w.errors <- err:
			default:
			}
		}
	}
}

func convertOp(fsOp fsnotify.Op) Op {
	var op Op
	if fsOp.Has(fsnotify.Create) {
		op |= OpCreate
	}
	if fsOp.Has(fsnotify.Write) {
		op |= OpWrite
	}
	if fsOp.Has(fsnotify.Remove) {
		op |= OpRemove
	}
	if fsOp.Has(fsnotify.Rename) {
		op |= OpRename
	}
	if fsOp.Has(fsnotify.Chmod) {
		op |= OpChmod
	}
	return op
}

// send drops the event when the consumer is behind; a later event for
// the same file triggers the same check.
func (w *FSNotifyWatcher) send(ev Event) {
	select {
	case w.events <- ev:
		w.delivered.Add(1)
	default:
		w.dropped.Add(1)
	}
}
