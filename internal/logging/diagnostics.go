package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Diagnostics appends "<timestamp> <path> <event>" lines to a post-mortem
// log. It is best effort: write failures are dropped. A nil *Diagnostics
// is valid and records nothing.
type Diagnostics struct {
	mu  sync.Mutex
	out io.Writer
	c   io.Closer
	now func() time.Time
}

// NewDiagnostics wraps w as a diagnostic sink.
func NewDiagnostics(w io.Writer) *Diagnostics {
	return &Diagnostics{out: w, now: time.Now}
}

// OpenDiagnostics opens (or creates) the diagnostic log file at path in
// append mode.
func OpenDiagnostics(path string) (*Diagnostics, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	return &Diagnostics{out: f, c: f, now: time.Now}, nil
}

// Record writes one event for path.
func (d *Diagnostics) Record(path, event string, args ...any) {
	if d == nil {
		return
	}
	if len(args) > 0 {
		event = fmt.Sprintf(event, args...)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	_, _ = fmt.Fprintf(d.out, "%s %s %s\n", d.now().Format("2006-01-02 15:04:05.000"), path, event)
}

// Close closes the underlying file if Diagnostics owns one.
func (d *Diagnostics) Close() error {
	if d == nil || d.c == nil {
		return nil
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	err := d.c.Close()
	d.c = nil
	d.out = io.Discard
	return err
}
