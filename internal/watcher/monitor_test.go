package watcher

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/dshills/docsync/internal/buffer"
	"github.com/dshills/docsync/internal/document"
	"github.com/dshills/docsync/internal/filemanager"
)

func TestMonitorChecksChangedFile(t *testing.T) {
	store := document.NewMemStore()
	fm, err := filemanager.New(store)
	if err != nil {
		t.Fatal(err)
	}
	dir := t.TempDir()
	p := filepath.Join(dir, "watched.txt")
	if err := os.WriteFile(p, []byte("one\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	id, err := fm.LoadFile(ctx, p, filemanager.LoadOptions{})
	if err != nil {
		t.Fatal(err)
	}

	m, err := NewMonitor(fm, nil, WithDebounceDelay(10*time.Millisecond))
	if err != nil {
		t.Fatal(err)
	}
	defer m.Close()
	m.Sync()
	if !slices.Contains(m.Dirs(), dir) {
		t.Fatalf("Dirs() = %v, want %s", m.Dirs(), dir)
	}

	statusChanged := make(chan buffer.Status, 10)
	fm.OnBufferChanged(func(b *buffer.Buffer, mask buffer.ChangeMask) {
		if b.ID() == id && mask&buffer.ChangeStatus != 0 {
			statusChanged <- b.Status()
		}
	})

	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()

	later := time.Now().Add(time.Hour)
	if err := os.WriteFile(p, []byte("two\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Chtimes(p, later, later); err != nil {
		t.Fatal(err)
	}

	select {
	case st := <-statusChanged:
		if st != buffer.StatusModified {
			t.Errorf("status = %v, want modified", st)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no status change after external write")
	}

	cancel()
	if err := <-done; err != context.Canceled {
		t.Errorf("Run() error = %v", err)
	}
}

func TestMonitorFollowsClose(t *testing.T) {
	fm, err := filemanager.New(document.NewMemStore())
	if err != nil {
		t.Fatal(err)
	}
	dir := t.TempDir()
	p := filepath.Join(dir, "a.txt")
	if err := os.WriteFile(p, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	id, err := fm.LoadFile(context.Background(), p, filemanager.LoadOptions{})
	if err != nil {
		t.Fatal(err)
	}

	m, err := NewMonitor(fm, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer m.Close()
	m.Sync()
	if len(m.Dirs()) != 1 {
		t.Fatalf("Dirs() = %v", m.Dirs())
	}

	if err := fm.CloseBuffer(id, nil); err != nil {
		t.Fatal(err)
	}
	if len(m.Dirs()) != 0 {
		t.Errorf("Dirs() after close = %v", m.Dirs())
	}
}
