// Package backup keeps crash-recovery snapshots of dirty buffers.
//
// Each dirty buffer that changed since its last snapshot is written to a
// sidecar file named <file-name>@<YYYY-MM-DD_HHMMSS> in the backup
// directory. A buffer that becomes clean loses its sidecar. Whenever a
// sidecar appears or disappears the session metadata is saved so the
// sidecar can be found after a crash.
package backup

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sync"
	"time"

	"github.com/dshills/docsync/internal/buffer"
	"github.com/dshills/docsync/internal/logging"
	"github.com/dshills/docsync/internal/vfs"
)

// TimeLayout is the timestamp suffix of a sidecar name.
const TimeLayout = "2006-01-02_150405"

// tmpSuffix marks a sidecar that is still being written.
const tmpSuffix = ".tmp"

// Registry is the part of the file manager the snapshotter drives.
type Registry interface {
	Buffers() []*buffer.Buffer
	WithBuffer(id buffer.ID, fn func(b *buffer.Buffer) error) error
	WriteSnapshot(ctx context.Context, id buffer.ID, path string) error
	FS() vfs.FS
}

// SessionSaver persists session metadata.
type SessionSaver func(ctx context.Context) error

// Outcome describes what one snapshot pass did to a buffer.
type Outcome int

const (
	// Skipped means the buffer is never snapshotted (large file).
	Skipped Outcome = iota
	// Clean means the buffer was clean and had no sidecar.
	Clean
	// Removed means the buffer was clean and its sidecar was deleted.
	Removed
	// Unchanged means the buffer is dirty but its sidecar is current.
	Unchanged
	// Written means the sidecar was written.
	Written
)

func (o Outcome) String() string {
	switch o {
	case Skipped:
		return "skipped"
	case Clean:
		return "clean"
	case Removed:
		return "removed"
	case Unchanged:
		return "unchanged"
	case Written:
		return "written"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// Snapshotter runs the per-buffer snapshot state machine.
type Snapshotter struct {
	// mu serialises snapshot passes. It is taken before the file
	// manager's save lock.
	mu sync.Mutex

	reg    Registry
	fs     vfs.FS
	dir    string
	now    func() time.Time
	logger *logging.Logger
	saver  SessionSaver

	loopMu   sync.Mutex
	interval time.Duration
	running  bool
	stop     chan struct{}
	done     chan struct{}
}

// Option configures a Snapshotter.
type Option func(*Snapshotter)

// WithClock replaces time.Now for sidecar names.
func WithClock(now func() time.Time) Option {
	return func(s *Snapshotter) { s.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(s *Snapshotter) { s.logger = l.WithComponent("backup") }
}

// WithSessionSaver sets the callback run when a sidecar is created or
// deleted.
func WithSessionSaver(fn SessionSaver) Option {
	return func(s *Snapshotter) { s.saver = fn }
}

// WithInterval sets the period of the background loop.
func WithInterval(d time.Duration) Option {
	return func(s *Snapshotter) { s.interval = d }
}

// New creates a snapshotter writing sidecars into dir.
func New(reg Registry, dir string, opts ...Option) *Snapshotter {
	s := &Snapshotter{
		reg:      reg,
		fs:       reg.FS(),
		dir:      dir,
		now:      time.Now,
		logger:   logging.Null(),
		interval: 7 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Dir returns the backup directory.
func (s *Snapshotter) Dir() string { return s.dir }

// state is what a pass needs to know about a buffer, read under the
// registry lock.
type state struct {
	large    bool
	dirty    bool
	modified bool
	untitled bool
	name     string
	sidecar  string
}

// Snapshot brings the sidecar of buffer id in line with its content.
func (s *Snapshotter) Snapshot(ctx context.Context, id buffer.ID) (Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var st state
	err := s.reg.WithBuffer(id, func(b *buffer.Buffer) error {
		st = state{
			large:    b.LargeFile(),
			dirty:    b.Dirty(),
			modified: b.Modified(),
			untitled: b.IsUntitled(),
			name:     b.FileName(),
			sidecar:  b.BackupPath(),
		}
		switch {
		case st.large:
		case !st.dirty:
			b.SetBackupPath("")
		case st.modified:
			// Edits made while the sidecar is written set it again.
			b.SetModified(false)
		}
		return nil
	})
	if err != nil {
		return Skipped, err
	}

	switch {
	case st.large:
		return Skipped, nil
	case !st.dirty:
		if st.sidecar == "" {
			return Clean, nil
		}
		return Removed, s.remove(ctx, st.sidecar)
	case !st.modified:
		return Unchanged, nil
	}
	return s.write(ctx, id, st)
}

func (s *Snapshotter) remove(ctx context.Context, path string) error {
	if err := s.fs.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		s.logger.Warn("could not delete sidecar %s: %v", path, err)
	}
	return s.saveSession(ctx)
}

func (s *Snapshotter) write(ctx context.Context, id buffer.ID, st state) (Outcome, error) {
	path := st.sidecar
	fresh := path == ""
	if fresh {
		if err := s.fs.MkdirAll(s.dir, 0o755); err != nil {
			s.restoreModified(id)
			return Written, fmt.Errorf("creating backup directory: %w", err)
		}
		path = filepath.Join(s.dir, st.name+"@"+s.now().Format(TimeLayout))
	}
	s.clearReadOnly(path)

	var err error
	if st.untitled {
		err = s.writeReplace(ctx, id, path)
	} else {
		err = s.reg.WriteSnapshot(ctx, id, path)
	}
	if err != nil {
		s.restoreModified(id)
		return Written, err
	}

	var stale bool
	_ = s.reg.WithBuffer(id, func(b *buffer.Buffer) error {
		if !b.Dirty() {
			// Saved while the sidecar was being written.
			stale = true
			return nil
		}
		b.SetBackupPath(path)
		return nil
	})
	if stale {
		if err := s.fs.Remove(path); err != nil {
			s.logger.Warn("could not delete sidecar %s: %v", path, err)
		}
		return Clean, nil
	}

	s.logger.Debug("snapshot #%d to %s", id, path)
	if fresh {
		return Written, s.saveSession(ctx)
	}
	return Written, nil
}

// writeReplace writes to a temporary sibling and moves it into place, so
// a partial sidecar never appears under its real name.
func (s *Snapshotter) writeReplace(ctx context.Context, id buffer.ID, path string) error {
	tmp := path + tmpSuffix
	if err := s.reg.WriteSnapshot(ctx, id, tmp); err != nil {
		_ = s.fs.Remove(tmp)
		return err
	}
	if err := s.fs.Rename(tmp, path); err != nil {
		_ = s.fs.Remove(tmp)
		return fmt.Errorf("moving sidecar into place: %w", err)
	}
	return nil
}

func (s *Snapshotter) clearReadOnly(path string) {
	if !s.fs.Exists(path) {
		return
	}
	attr, err := s.fs.Attributes(path)
	if err != nil || !attr.Has(vfs.AttrReadOnly) {
		return
	}
	if err := s.fs.SetAttributes(path, attr&^vfs.AttrReadOnly); err != nil {
		s.logger.Debug("could not clear read-only on %s: %v", path, err)
	}
}

func (s *Snapshotter) restoreModified(id buffer.ID) {
	_ = s.reg.WithBuffer(id, func(b *buffer.Buffer) error {
		b.SetModified(true)
		return nil
	})
}

func (s *Snapshotter) saveSession(ctx context.Context) error {
	if s.saver == nil {
		return nil
	}
	if err := s.saver(ctx); err != nil {
		return fmt.Errorf("saving session: %w", err)
	}
	return nil
}

// SnapshotAll runs a pass over every registered buffer. Errors are
// joined; one failing buffer does not stop the others.
func (s *Snapshotter) SnapshotAll(ctx context.Context) error {
	var errs []error
	for _, b := range s.reg.Buffers() {
		if _, err := s.Snapshot(ctx, b.ID()); err != nil && !errors.Is(err, context.Canceled) {
			errs = append(errs, fmt.Errorf("buffer #%d: %w", b.ID(), err))
		}
	}
	return errors.Join(errs...)
}
