package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func fixedLogger(buf *bytes.Buffer, level Level) *Logger {
	l := New(Config{Level: level, Output: buf, Prefix: "test"})
	l.now = func() time.Time { return time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC) }
	return l
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want Level
	}{
		{"debug", LevelDebug},
		{"INFO", LevelInfo},
		{"warning", LevelWarn},
		{" Error ", LevelError},
		{"bogus", LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestLoggerFiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	l := fixedLogger(&buf, LevelWarn)

	l.Debug("hidden")
	l.Info("hidden")
	l.Warn("shown %d", 1)

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("output contains filtered message: %q", out)
	}
	if !strings.Contains(out, "[WARN] test: shown 1") {
		t.Errorf("output = %q, want warn line", out)
	}
}

func TestLoggerFieldsSorted(t *testing.T) {
	var buf bytes.Buffer
	l := fixedLogger(&buf, LevelDebug).WithComponent("rawfile").WithField("path", "/a")

	l.Info("opened")

	want := "2024-01-02T03:04:05.000 [INFO] test: opened {component=rawfile, path=/a}\n"
	if buf.String() != want {
		t.Errorf("line = %q, want %q", buf.String(), want)
	}
}

func TestDerivedLoggerKeepsOwnDisabledFlag(t *testing.T) {
	var buf bytes.Buffer
	parent := fixedLogger(&buf, LevelInfo)
	child := parent.WithField("k", "v")

	parent.Disable()
	child.Info("still on")
	if buf.Len() == 0 {
		t.Fatal("child logger should keep its own disabled flag")
	}
}

func TestNullLogger(t *testing.T) {
	l := Null()
	l.Error("nothing %s", "here")
	var nilLogger *Logger
	nilLogger.Info("no panic")
}

func TestDiagnosticsRecord(t *testing.T) {
	var buf bytes.Buffer
	d := NewDiagnostics(&buf)
	d.now = func() time.Time { return time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC) }

	d.Record("/tmp/a.txt", "write %d bytes", 42)

	want := "2024-01-02 03:04:05.000 /tmp/a.txt write 42 bytes\n"
	if buf.String() != want {
		t.Errorf("line = %q, want %q", buf.String(), want)
	}

	var none *Diagnostics
	none.Record("/x", "ignored")
	if err := none.Close(); err != nil {
		t.Errorf("nil Close() = %v", err)
	}
}

func TestOpenDiagnosticsAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "diag.log")

	for i := 0; i < 2; i++ {
		d, err := OpenDiagnostics(path)
		if err != nil {
			t.Fatalf("OpenDiagnostics() error = %v", err)
		}
		d.Record("/f", "event")
		if err := d.Close(); err != nil {
			t.Fatalf("Close() error = %v", err)
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if n := strings.Count(string(data), "/f event"); n != 2 {
		t.Errorf("lines = %d, want 2", n)
	}
}
