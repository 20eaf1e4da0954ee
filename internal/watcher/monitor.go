package watcher

import (
	"context"
	"errors"
	"path/filepath"
	"sync"

	"github.com/dshills/docsync/internal/buffer"
	"github.com/dshills/docsync/internal/filemanager"
	"github.com/dshills/docsync/internal/logging"
	"github.com/dshills/docsync/internal/vfs"
)

// Monitor keeps a watch on the directory of every file-backed buffer and
// re-checks a buffer whenever its file changes.
type Monitor struct {
	fm     *filemanager.FileManager
	w      *FSNotifyWatcher
	d      *Debouncer
	logger *logging.Logger

	mu   sync.Mutex
	dirs map[string]bool
}

// NewMonitor creates a monitor for the buffers of fm. It follows buffers
// being renamed or closed on its own; call Sync after loading files.
func NewMonitor(fm *filemanager.FileManager, logger *logging.Logger, opts ...Option) (*Monitor, error) {
	config := DefaultConfig()
	for _, opt := range opts {
		opt(&config)
	}
	if logger == nil {
		logger = logging.Null()
	}

	w, err := NewFSNotifyWatcher(opts...)
	if err != nil {
		return nil, err
	}

	m := &Monitor{
		fm:     fm,
		w:      w,
		d:      NewDebouncer(w, config.DebounceDelay),
		logger: logger.WithComponent("watcher"),
		dirs:   make(map[string]bool),
	}

	fm.OnBufferChanged(func(_ *buffer.Buffer, mask buffer.ChangeMask) {
		if mask&buffer.ChangeFilename != 0 {
			m.Sync()
		}
	})
	fm.OnBufferClosed(func(buffer.ID) { m.Sync() })
	return m, nil
}

// Sync brings the watched directories in line with the open buffers.
func (m *Monitor) Sync() {
	want := make(map[string]bool)
	for _, p := range m.fm.OnDiskPaths() {
		want[filepath.Dir(p)] = true
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for dir := range m.dirs {
		if want[dir] {
			continue
		}
		if err := m.w.Unwatch(dir); err != nil && !errors.Is(err, ErrNotWatching) {
			m.logger.Debug("unwatch %s: %v", dir, err)
		}
		delete(m.dirs, dir)
	}
	for dir := range want {
		if m.dirs[dir] {
			continue
		}
		switch err := m.w.Watch(dir); {
		case err == nil, errors.Is(err, ErrAlreadyWatching):
			m.dirs[dir] = true
		case errors.Is(err, ErrPathNotExist):
			m.logger.Debug("not watching missing directory %s", dir)
		default:
			m.logger.Warn("watch %s: %v", dir, err)
		}
	}
}

// Dirs returns the watched directories.
func (m *Monitor) Dirs() []string {
	return m.w.WatchedPaths()
}

// Run delivers file state checks until ctx is done or the monitor is
// closed.
func (m *Monitor) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-m.d.Events():
			if !ok {
				return nil
			}
			m.handle(ctx, ev)
		case err, ok := <-m.d.Errors():
			if !ok {
				return nil
			}
			m.logger.Warn("watch error: %v", err)
		}
	}
}

func (m *Monitor) handle(ctx context.Context, ev Event) {
	ids := m.fm.BuffersByPath(vfs.Canonical(ev.Path))
	if len(ids) == 0 {
		return
	}
	m.logger.Debug("%s %s", ev.Op, ev.Path)
	for _, id := range ids {
		m.fm.CheckFilesystemChanges(ctx, id)
	}
}

// Close stops watching.
func (m *Monitor) Close() error {
	return m.d.Close()
}
