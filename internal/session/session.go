// Package session records which documents are open and where their
// snapshot sidecars live, so an editor can reopen them after a crash.
package session

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dshills/docsync/internal/buffer"
	"github.com/dshills/docsync/internal/codec"
	"github.com/dshills/docsync/internal/filemanager"
	"github.com/dshills/docsync/internal/lang"
)

// Version is the format version written to new session files.
const Version = 1

// tempFilePrefix names the temporary file used for atomic writes.
const tempFilePrefix = "docsync-session-"

// ErrVersion is returned for a session file written by a newer format.
var ErrVersion = errors.New("unsupported session version")

// Entry describes one open document.
type Entry struct {
	// Path is the file path, or the "new N" label of an untitled document.
	Path      string    `yaml:"path"`
	Untitled  bool      `yaml:"untitled,omitempty"`
	Backup    string    `yaml:"backup,omitempty"`
	Timestamp time.Time `yaml:"timestamp,omitempty"`
	Encoding  int       `yaml:"encoding,omitempty"`
	Language  string    `yaml:"language,omitempty"`
	RecentTag int64     `yaml:"recentTag,omitempty"`
	Created   string    `yaml:"created,omitempty"`
}

// Session is the content of a session file.
type Session struct {
	Version int       `yaml:"version"`
	SavedAt time.Time `yaml:"savedAt"`
	// Active is the index of the active entry, -1 for none.
	Active  int     `yaml:"active"`
	Entries []Entry `yaml:"buffers"`
}

// Load reads a session file. A missing file is an empty session.
func Load(path string) (*Session, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return &Session{Version: Version, Active: -1}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading session: %w", err)
	}

	var s Session
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parsing session %s: %w", path, err)
	}
	if s.Version > Version {
		return nil, fmt.Errorf("%w: %d", ErrVersion, s.Version)
	}
	if s.Active >= len(s.Entries) {
		s.Active = -1
	}
	return &s, nil
}

// Save writes s to path atomically.
func Save(path string, s *Session) error {
	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("encoding session: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating session directory: %w", err)
	}
	return writeFileAtomic(path, data, 0o644)
}

func writeFileAtomic(filename string, data []byte, perm os.FileMode) error {
	tmpFile, err := os.CreateTemp(filepath.Dir(filename), tempFilePrefix+"*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmpFile.Name())

	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to write to temp file: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Chmod(tmpFile.Name(), perm); err != nil {
		return fmt.Errorf("failed to chmod temp file: %w", err)
	}
	if err := os.Rename(tmpFile.Name(), filename); err != nil {
		return fmt.Errorf("failed to rename temp file to %s: %w", filename, err)
	}
	return nil
}

// Capture records the open buffers of fm. Untitled documents without a
// sidecar have nothing to restore and are left out. active names the
// active buffer; pass 0 for none.
func Capture(fm *filemanager.FileManager, active buffer.ID) *Session {
	s := &Session{Version: Version, SavedAt: time.Now(), Active: -1}
	for _, b := range fm.Buffers() {
		var e Entry
		var keep bool
		_ = fm.WithBuffer(b.ID(), func(b *buffer.Buffer) error {
			if b.IsUntitled() && b.BackupPath() == "" {
				return nil
			}
			keep = true
			e = Entry{
				Path:      b.FullPath(),
				Untitled:  b.IsUntitled(),
				Backup:    b.BackupPath(),
				Timestamp: b.Timestamp(),
				Language:  string(b.Language()),
				RecentTag: b.RecentTag(),
				Created:   b.CreatedAtString(),
			}
			if cp := b.Encoding(); cp != codec.NoCodepage {
				e.Encoding = cp
			}
			return nil
		})
		if !keep {
			continue
		}
		if b.ID() == active {
			s.Active = len(s.Entries)
		}
		s.Entries = append(s.Entries, e)
	}
	return s
}

// Saver returns a callback that captures fm and writes it to path. It
// is meant for backup.WithSessionSaver.
func Saver(fm *filemanager.FileManager, path string, active func() buffer.ID) func(context.Context) error {
	return func(context.Context) error {
		var id buffer.ID
		if active != nil {
			id = active()
		}
		return Save(path, Capture(fm, id))
	}
}

// Result is the outcome of Restore.
type Result struct {
	// IDs holds the restored buffers in session order.
	IDs []buffer.ID
	// Active is the restored active buffer, 0 when none.
	Active buffer.ID
	// FromBackup counts buffers read from a sidecar.
	FromBackup int
	// Placeholders counts files that were missing.
	Placeholders int
}

// Restore reopens the documents of s. A sidecar wins over its file: the
// buffer comes back dirty and linked to the sidecar, and keeps the
// recorded timestamp so a later file check reports edits made on disk
// in the meantime. A file that is gone becomes a placeholder. Errors for
// single entries are joined and do not stop the restore.
func Restore(ctx context.Context, fm *filemanager.FileManager, s *Session) (Result, error) {
	var (
		res  Result
		errs []error
	)
	for i, e := range s.Entries {
		id, fromBackup, err := restoreEntry(ctx, fm, e)
		if err != nil {
			errs = append(errs, fmt.Errorf("restoring %s: %w", e.Path, err))
			continue
		}
		if id == 0 {
			continue
		}
		switch {
		case fromBackup:
			res.FromBackup++
		case !e.Untitled && !fm.FS().Exists(e.Path):
			res.Placeholders++
		}
		if e.Language != "" || e.RecentTag != 0 {
			_ = fm.WithBuffer(id, func(b *buffer.Buffer) error {
				if e.Language != "" && lang.Language(e.Language) != b.Language() {
					b.SetLanguage(lang.Language(e.Language), false)
				}
				if e.RecentTag != 0 {
					b.SetRecentTag(e.RecentTag)
				}
				return nil
			})
		}
		res.IDs = append(res.IDs, id)
		if i == s.Active {
			res.Active = id
		}
	}
	return res, errors.Join(errs...)
}

func restoreEntry(ctx context.Context, fm *filemanager.FileManager, e Entry) (buffer.ID, bool, error) {
	fsys := fm.FS()
	if e.Backup != "" && fsys.Exists(e.Backup) {
		id, err := fm.LoadFile(ctx, e.Path, filemanager.LoadOptions{
			Encoding:   e.Encoding,
			BackupPath: e.Backup,
			Timestamp:  e.Timestamp,
		})
		return id, err == nil, err
	}
	if e.Untitled {
		// The sidecar is gone; there is nothing left of the document.
		return 0, false, nil
	}
	if fsys.Exists(e.Path) {
		id, err := fm.LoadFile(ctx, e.Path, filemanager.LoadOptions{Encoding: e.Encoding})
		return id, false, err
	}
	id, err := fm.NewPlaceholderDocument(ctx, e.Path)
	return id, false, err
}
