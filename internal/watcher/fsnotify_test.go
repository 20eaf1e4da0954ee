package watcher

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func waitEvent(t *testing.T, ch <-chan Event, path string, op Op) Event {
	t.Helper()
	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				t.Fatal("event channel closed")
			}
			if ev.Path == path && ev.Op.Has(op) {
				return ev
			}
		case <-timeout:
			t.Fatalf("no %v event for %s", op, path)
		}
	}
}

func TestFSNotifyWatcher(t *testing.T) {
	dir := t.TempDir()
	w, err := NewFSNotifyWatcher(WithIgnorePatterns([]string{"*.swp"}))
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	if err := w.Watch(dir); err != nil {
		t.Fatal(err)
	}
	if !w.IsWatching(dir) {
		t.Error("IsWatching() = false")
	}
	if err := w.Watch(dir); !errors.Is(err, ErrAlreadyWatching) {
		t.Errorf("second Watch() error = %v", err)
	}
	if err := w.Watch(filepath.Join(dir, "nope")); !errors.Is(err, ErrPathNotExist) {
		t.Errorf("Watch(missing) error = %v", err)
	}

	// Ignored first, so its absence can be checked once the next event
	// arrives.
	if err := os.WriteFile(filepath.Join(dir, ".a.txt.swp"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	p := filepath.Join(dir, "a.txt")
	if err := os.WriteFile(p, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	ev := waitEvent(t, w.Events(), p, OpCreate)
	if ev.Timestamp.IsZero() {
		t.Error("event without timestamp")
	}
	if err := os.Remove(p); err != nil {
		t.Fatal(err)
	}
	waitEvent(t, w.Events(), p, OpRemove)

	if err := w.Unwatch(dir); err != nil {
		t.Fatal(err)
	}
	if err := w.Unwatch(dir); !errors.Is(err, ErrNotWatching) {
		t.Errorf("second Unwatch() error = %v", err)
	}
	if len(w.WatchedPaths()) != 0 {
		t.Errorf("WatchedPaths() = %v", w.WatchedPaths())
	}
	if delivered, _ := w.Counts(); delivered < 2 {
		t.Errorf("delivered = %d", delivered)
	}
}

func TestFSNotifyWatcherClose(t *testing.T) {
	w, err := NewFSNotifyWatcher()
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
	if err := w.Watch(t.TempDir()); !errors.Is(err, ErrWatcherClosed) {
		t.Errorf("Watch after Close error = %v", err)
	}
	if _, ok := <-w.Events(); ok {
		t.Error("events channel open after Close")
	}
}

func TestNewFSNotifyWatcherRejectsBadPattern(t *testing.T) {
	if _, err := NewFSNotifyWatcher(WithIgnorePatterns([]string{"[x"})); err == nil {
		t.Error("NewFSNotifyWatcher accepted an invalid ignore pattern")
	}
}
