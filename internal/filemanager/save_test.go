package filemanager

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dshills/docsync/internal/buffer"
	"github.com/dshills/docsync/internal/config"
	"github.com/dshills/docsync/internal/document"
	"github.com/dshills/docsync/internal/lang"
	"github.com/dshills/docsync/internal/vfs"
)

// roomFS reports a fixed amount of free space.
type roomFS struct {
	*vfs.OSFS
	free int64
	err  error
}

func (r *roomFS) FreeSpace(string) (int64, error) { return r.free, r.err }

// attrFS reports fixed attributes and records every change.
type attrFS struct {
	*vfs.OSFS
	attr vfs.Attr
	sets []vfs.Attr
}

func (a *attrFS) Attributes(string) (vfs.Attr, error) { return a.attr, nil }

func (a *attrFS) SetAttributes(_ string, attr vfs.Attr) error {
	a.sets = append(a.sets, attr)
	return nil
}

type failingTarget struct{ closed bool }

func (f *failingTarget) Write([]byte) (int, error) { return 0, io.ErrShortWrite }
func (f *failingTarget) Close() error              { f.closed = true; return nil }

func (h *harness) untitled(t *testing.T, text string) *buffer.Buffer {
	t.Helper()
	id, err := h.fm.NewEmptyDocument(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	b, _ := h.fm.Buffer(id)
	if err := h.store.Append(b.Document(), []byte(text)); err != nil {
		t.Fatal(err)
	}
	return b
}

func TestSaveNeedsRoom(t *testing.T) {
	tests := []struct {
		name    string
		free    int64
		wantErr error
	}{
		{"exact fit", 10, nil},
		{"one byte short", 9, ErrNotEnoughRoom},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fsys := &roomFS{OSFS: vfs.NewOSFS(), free: tt.free}
			h := newHarness(t, WithFS(fsys))
			b := h.untitled(t, "0123456789")
			out := h.path("out.txt")

			err := h.fm.SaveBuffer(context.Background(), b.ID(), out, false)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("SaveBuffer() error = %v, want %v", err, tt.wantErr)
			}
			if tt.wantErr == nil {
				return
			}
			if SavingStatus(err) != NotEnoughRoom {
				t.Errorf("SavingStatus() = %v", SavingStatus(err))
			}
			if _, err := os.Stat(out); !os.IsNotExist(err) {
				t.Errorf("target exists after refused save: %v", err)
			}
			if !b.Dirty() || !b.IsUntitled() {
				t.Errorf("Dirty() = %v, IsUntitled() = %v", b.Dirty(), b.IsUntitled())
			}
		})
	}
}

func TestSaveOverOwnFileReclaimsSpace(t *testing.T) {
	fsys := &roomFS{OSFS: vfs.NewOSFS(), free: 30}
	h := newHarness(t, WithFS(fsys))
	p := h.write(t, "a.txt", bytes.Repeat([]byte("x"), 100))
	b := h.load(t, p)
	if err := h.store.Append(b.Document(), bytes.Repeat([]byte("y"), 20)); err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	if err := h.fm.SaveBuffer(ctx, b.ID(), p, false); err != nil {
		t.Fatalf("SaveBuffer(own file) error = %v", err)
	}
	if err := h.fm.SaveBuffer(ctx, b.ID(), h.path("b.txt"), true); !errors.Is(err, ErrNotEnoughRoom) {
		t.Errorf("SaveBuffer(other file) error = %v, want ErrNotEnoughRoom", err)
	}
}

func TestSaveSkipsUnknownFreeSpace(t *testing.T) {
	fsys := &roomFS{OSFS: vfs.NewOSFS(), err: vfs.ErrFreeSpaceUnknown}
	h := newHarness(t, WithFS(fsys))
	b := h.untitled(t, "hello")
	if err := h.fm.SaveBuffer(context.Background(), b.ID(), h.path("out.txt"), false); err != nil {
		t.Fatalf("SaveBuffer() error = %v", err)
	}
}

func TestSaveWriteFailureKeepsBufferDirty(t *testing.T) {
	h := newHarness(t)
	b := h.untitled(t, "data")
	ft := &failingTarget{}
	h.fm.openTarget = func(string) (target, error) { return ft, nil }

	err := h.fm.SaveBuffer(context.Background(), b.ID(), h.path("out.txt"), false)
	if !errors.Is(err, ErrSaveWritingFailed) {
		t.Fatalf("SaveBuffer() error = %v, want ErrSaveWritingFailed", err)
	}
	if SavingStatus(err) != SaveWritingFailed {
		t.Errorf("SavingStatus() = %v", SavingStatus(err))
	}
	if !ft.closed {
		t.Error("target not closed after failed write")
	}
	if !b.Dirty() || !b.IsUntitled() || b.FullPath() != buffer.UntitledPrefix+"1" {
		t.Errorf("buffer changed: Dirty() = %v, FullPath() = %q", b.Dirty(), b.FullPath())
	}
	if h.fm.scratch.Attached() {
		t.Error("scratch view still attached")
	}
}

func TestSaveOpenFailure(t *testing.T) {
	h := newHarness(t)
	b := h.untitled(t, "data")
	err := h.fm.SaveBuffer(context.Background(), b.ID(), h.path("missing/dir/out.txt"), false)
	if !errors.Is(err, ErrSaveOpenFailed) {
		t.Fatalf("SaveBuffer() error = %v, want ErrSaveOpenFailed", err)
	}
	if SavingStatus(err) != SaveOpenFailed {
		t.Errorf("SavingStatus() = %v", SavingStatus(err))
	}
	if !b.Dirty() {
		t.Error("buffer became clean")
	}
}

func TestSaveAsAdoptsPath(t *testing.T) {
	h := newHarness(t)
	const script = "#!/bin/sh\necho hi\n"
	b := h.untitled(t, script)
	out := h.path("deploy")

	if err := h.fm.SaveBuffer(context.Background(), b.ID(), out, false); err != nil {
		t.Fatal(err)
	}
	if data, _ := os.ReadFile(out); string(data) != script {
		t.Errorf("file = %q", data)
	}
	if b.IsUntitled() || b.Status() != buffer.StatusRegular {
		t.Errorf("Status() = %v", b.Status())
	}
	if b.FullPath() != out || b.FileName() != "deploy" {
		t.Errorf("FullPath() = %q, FileName() = %q", b.FullPath(), b.FileName())
	}
	if b.Language() != lang.Shell {
		t.Errorf("Language() = %q, want Shell", b.Language())
	}
	if b.Dirty() || b.Unsync() || b.SavePointDirty() || b.LoadedDirty() {
		t.Error("flags not cleared after save")
	}
	if b.Timestamp().IsZero() {
		t.Error("Timestamp() not set after save")
	}

	// Editing then returning to the save point is clean again.
	if err := h.store.Append(b.Document(), []byte("x")); err != nil {
		t.Fatal(err)
	}
	if !b.Dirty() {
		t.Error("edit after save did not dirty the buffer")
	}
}

func TestSaveCopyKeepsIdentity(t *testing.T) {
	h := newHarness(t)
	p := h.write(t, "a.txt", []byte("one\n"))
	b := h.load(t, p)
	_ = h.store.Append(b.Document(), []byte("two\n"))
	out := h.path("copy.txt")

	if err := h.fm.SaveBuffer(context.Background(), b.ID(), out, true); err != nil {
		t.Fatal(err)
	}
	if data, _ := os.ReadFile(out); string(data) != "one\ntwo\n" {
		t.Errorf("copy = %q", data)
	}
	if b.FullPath() != p || !b.Dirty() {
		t.Errorf("FullPath() = %q, Dirty() = %v", b.FullPath(), b.Dirty())
	}
}

func TestSaveDeletesBackup(t *testing.T) {
	h := newHarness(t)
	b := h.untitled(t, "draft")
	sidecar := h.write(t, "new 1@2024-05-01_101010", []byte("draft"))
	if err := h.fm.WithBuffer(b.ID(), func(b *buffer.Buffer) error {
		b.SetBackupPath(sidecar)
		return nil
	}); err != nil {
		t.Fatal(err)
	}

	if err := h.fm.SaveBuffer(context.Background(), b.ID(), h.path("draft.txt"), false); err != nil {
		t.Fatal(err)
	}
	if b.BackupPath() != "" {
		t.Errorf("BackupPath() = %q", b.BackupPath())
	}
	if _, err := os.Stat(sidecar); !os.IsNotExist(err) {
		t.Errorf("sidecar still present: %v", err)
	}
}

func TestSaveRestoresHiddenAttributes(t *testing.T) {
	fsys := &attrFS{OSFS: vfs.NewOSFS(), attr: vfs.AttrHidden | vfs.AttrReadOnly}
	h := newHarness(t, WithFS(fsys))
	p := h.write(t, "a.txt", []byte("x"))
	b := h.load(t, p)
	fsys.sets = nil

	if err := h.fm.SaveBuffer(context.Background(), b.ID(), p, false); err != nil {
		t.Fatal(err)
	}
	want := []vfs.Attr{vfs.AttrReadOnly, vfs.AttrHidden | vfs.AttrReadOnly}
	if len(fsys.sets) != 2 || fsys.sets[0] != want[0] || fsys.sets[1] != want[1] {
		t.Errorf("attribute changes = %v, want %v", fsys.sets, want)
	}
}

func TestWriteSnapshotLeavesStateAlone(t *testing.T) {
	h := newHarness(t)
	b := h.untitled(t, "snap\n")
	h.changes = nil
	out := h.path("snap")

	if err := h.fm.WriteSnapshot(context.Background(), b.ID(), out); err != nil {
		t.Fatal(err)
	}
	if data, _ := os.ReadFile(out); string(data) != "snap\n" {
		t.Errorf("snapshot = %q", data)
	}
	if !b.Dirty() || !b.IsUntitled() {
		t.Error("snapshot changed buffer state")
	}
	if len(h.changes) != 0 {
		t.Errorf("changes = %v", h.changes)
	}
}

func TestSavingStatus(t *testing.T) {
	tests := []struct {
		err  error
		want SaveStatus
	}{
		{nil, SaveOK},
		{&PathError{Op: "save", Path: "x", Err: ErrNotEnoughRoom}, NotEnoughRoom},
		{errors.Join(ErrSaveOpenFailed, os.ErrPermission), SaveOpenFailed},
		{errors.Join(ErrSaveWritingFailed, io.ErrShortWrite), SaveWritingFailed},
		{errors.New("other"), SaveOpenFailed},
	}
	for _, tt := range tests {
		if got := SavingStatus(tt.err); got != tt.want {
			t.Errorf("SavingStatus(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
	if !strings.Contains(NotEnoughRoom.String(), "room") {
		t.Errorf("NotEnoughRoom.String() = %q", NotEnoughRoom.String())
	}
}

// stagingStore records whether every streamed read and write addressed
// the document attached to the scratch view.
type stagingStore struct {
	*document.MemStore
	fm      *FileManager
	calls   int
	strayed int
}

func (s *stagingStore) staged(h document.Handle) {
	s.calls++
	if !s.fm.scratch.Attached() || s.fm.scratch.Current() != h {
		s.strayed++
	}
}

func (s *stagingStore) Append(h document.Handle, p []byte) error {
	s.staged(h)
	return s.MemStore.Append(h, p)
}

func (s *stagingStore) ReadAt(h document.Handle, p []byte, off int64) (int, error) {
	s.staged(h)
	return s.MemStore.ReadAt(h, p, off)
}

func TestStreamingGoesThroughScratch(t *testing.T) {
	cfg := config.Default()
	cfg.NewDocument.EOL = "unix"
	store := &stagingStore{MemStore: document.NewMemStore()}
	fm, err := New(store, WithConfig(cfg))
	if err != nil {
		t.Fatal(err)
	}
	store.fm = fm

	dir := t.TempDir()
	src := filepath.Join(dir, "a.txt")
	if err := os.WriteFile(src, []byte("hello\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	id, err := fm.LoadFile(ctx, src, LoadOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if err := fm.SaveBuffer(ctx, id, filepath.Join(dir, "b.txt"), true); err != nil {
		t.Fatal(err)
	}

	if store.calls == 0 {
		t.Fatal("no streamed store calls recorded")
	}
	if store.strayed != 0 {
		t.Errorf("%d of %d store calls bypassed the scratch view", store.strayed, store.calls)
	}
	if fm.scratch.Attached() {
		t.Error("scratch view still attached after save")
	}
}
