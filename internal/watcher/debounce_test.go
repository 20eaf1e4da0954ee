package watcher

import (
	"sync"
	"testing"
	"time"
)

// mockSource is a hand-fed event source.
type mockSource struct {
	mu     sync.Mutex
	events chan Event
	errors chan error
	closed bool
}

func newMockSource() *mockSource {
	return &mockSource{
		events: make(chan Event, 100),
		errors: make(chan error, 100),
	}
}

func (m *mockSource) Events() <-chan Event { return m.events }
func (m *mockSource) Errors() <-chan error { return m.errors }

func (m *mockSource) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.closed {
		m.closed = true
		close(m.events)
		close(m.errors)
	}
	return nil
}

func (m *mockSource) send(path string, op Op) {
	m.events <- Event{Path: path, Op: op, Timestamp: time.Now()}
}

func TestDebouncerCoalesces(t *testing.T) {
	src := newMockSource()
	d := NewDebouncer(src, 50*time.Millisecond)
	defer d.Close()

	src.send("/a.txt", OpWrite)
	src.send("/a.txt", OpChmod)
	src.send("/b.txt", OpRemove)
	src.send("/a.txt", OpWrite)

	got := map[string]Op{}
	timeout := time.After(2 * time.Second)
	for len(got) < 2 {
		select {
		case ev := <-d.Events():
			if _, dup := got[ev.Path]; dup {
				t.Fatalf("second event for %s", ev.Path)
			}
			got[ev.Path] = ev.Op
		case <-timeout:
			t.Fatalf("timed out, got %v", got)
		}
	}
	if got["/a.txt"] != OpWrite|OpChmod {
		t.Errorf("/a.txt op = %v, want WRITE|CHMOD", got["/a.txt"])
	}
	if got["/b.txt"] != OpRemove {
		t.Errorf("/b.txt op = %v", got["/b.txt"])
	}

	select {
	case ev := <-d.Events():
		t.Errorf("unexpected extra event %+v", ev)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestDebouncerFlush(t *testing.T) {
	src := newMockSource()
	d := NewDebouncer(src, time.Hour)
	defer d.Close()

	src.send("/a.txt", OpWrite)
	deadline := time.Now().Add(time.Second)
	for d.PendingCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("event never became pending")
		}
		time.Sleep(time.Millisecond)
	}

	d.Flush()
	select {
	case ev := <-d.Events():
		if ev.Path != "/a.txt" {
			t.Errorf("Path = %q", ev.Path)
		}
	case <-time.After(time.Second):
		t.Fatal("Flush did not deliver")
	}
	if d.PendingCount() != 0 {
		t.Errorf("PendingCount() = %d", d.PendingCount())
	}
}

func TestDebouncerForwardsErrorsAndCloses(t *testing.T) {
	src := newMockSource()
	d := NewDebouncer(src, time.Hour)

	src.errors <- ErrWatcherClosed
	select {
	case err := <-d.Errors():
		if err != ErrWatcherClosed {
			t.Errorf("error = %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("error not forwarded")
	}

	src.send("/a.txt", OpWrite)
	if err := d.Close(); err != nil {
		t.Fatal(err)
	}
	if err := d.Close(); err != nil {
		t.Fatal(err)
	}
	if _, ok := <-d.Events(); ok {
		t.Error("events channel still open after Close")
	}
	if !src.closed {
		t.Error("source not closed")
	}
}

func TestOpString(t *testing.T) {
	tests := []struct {
		op   Op
		want string
	}{
		{OpCreate, "CREATE"},
		{OpWrite | OpRename, "WRITE|RENAME"},
		{0, "UNKNOWN"},
	}
	for _, tt := range tests {
		if got := tt.op.String(); got != tt.want {
			t.Errorf("Op(%d).String() = %q, want %q", tt.op, got, tt.want)
		}
	}
}
