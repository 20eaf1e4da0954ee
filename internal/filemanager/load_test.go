package filemanager

import (
	"bytes"
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"

	"github.com/dshills/docsync/internal/buffer"
	"github.com/dshills/docsync/internal/codec"
	"github.com/dshills/docsync/internal/config"
	"github.com/dshills/docsync/internal/document"
	"github.com/dshills/docsync/internal/lang"
	"github.com/dshills/docsync/internal/prompt"
	"github.com/dshills/docsync/internal/vfs"
)

func TestLoadEmptyFileFallsBackToDefaults(t *testing.T) {
	tests := []struct {
		name     string
		eol      string
		mode     string
		openANSI bool
		wantEOL  codec.EOL
		wantMode codec.UniMode
	}{
		{"utf8 default", "unix", "utf8", true, codec.EOLUnix, codec.UniCookie},
		{"utf8 bom default", "windows", "utf8bom", true, codec.EOLWindows, codec.UniUTF8},
		{"ansi default", "mac", "8bit", false, codec.EOLMac, codec.Uni8Bit},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			cfg.NewDocument.EOL = tt.eol
			cfg.NewDocument.UnicodeMode = tt.mode
			cfg.NewDocument.OpenANSIAsUTF8 = tt.openANSI
			h := newHarnessWithConfig(t, cfg)

			b := h.load(t, h.write(t, "empty.txt", nil))
			if b.EOL() != tt.wantEOL {
				t.Errorf("EOL() = %v, want %v", b.EOL(), tt.wantEOL)
			}
			if b.UnicodeMode() != tt.wantMode {
				t.Errorf("UnicodeMode() = %v, want %v", b.UnicodeMode(), tt.wantMode)
			}
			if b.Encoding() != codec.NoCodepage {
				t.Errorf("Encoding() = %d", b.Encoding())
			}
		})
	}
}

func TestLoadBOMXML(t *testing.T) {
	h := newHarness(t)
	raw := []byte("\xEF\xBB\xBF<?xml version=\"1.0\"?>\n<root/>\n")
	// ".txt" leaves the language to the content.
	p := h.write(t, "data.txt", raw)
	b := h.load(t, p)

	if b.Encoding() != codec.NoCodepage {
		t.Errorf("Encoding() = %d, want no codepage", b.Encoding())
	}
	if b.UnicodeMode() != codec.UniUTF8 {
		t.Errorf("UnicodeMode() = %v, want utf8bom", b.UnicodeMode())
	}
	if b.Language() != lang.XML {
		t.Errorf("Language() = %q, want XML", b.Language())
	}
	if got := h.text(b); got != "<?xml version=\"1.0\"?>\n<root/>\n" {
		t.Errorf("text = %q", got)
	}

	out := h.path("copy.xml")
	if err := h.fm.SaveBuffer(context.Background(), b.ID(), out, true); err != nil {
		t.Fatal(err)
	}
	if data, _ := os.ReadFile(out); !bytes.Equal(data, raw) {
		t.Errorf("saved bytes = %q, want %q", data, raw)
	}
}

func TestLoadASCII(t *testing.T) {
	for _, openANSI := range []bool{true, false} {
		cfg := config.Default()
		cfg.NewDocument.OpenANSIAsUTF8 = openANSI
		h := newHarnessWithConfig(t, cfg)
		b := h.load(t, h.write(t, "a.txt", []byte("plain\r\ntext\r\n")))

		want := codec.Uni8Bit
		if openANSI {
			want = codec.UniCookie
		}
		if b.UnicodeMode() != want {
			t.Errorf("openAnsiAsUtf8=%v: UnicodeMode() = %v, want %v", openANSI, b.UnicodeMode(), want)
		}
		if b.EOL() != codec.EOLWindows {
			t.Errorf("EOL() = %v", b.EOL())
		}
	}
}

func TestLoadUTF16AcrossBlocks(t *testing.T) {
	h := newHarness(t)
	text := strings.Repeat("a\U0001F600é\r\n", 30000)
	raw, err := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewEncoder().Bytes([]byte(text))
	if err != nil {
		t.Fatal(err)
	}
	if len(raw) <= 2*blockSize {
		t.Fatalf("fixture too small: %d bytes", len(raw))
	}
	b := h.load(t, h.write(t, "wide.txt", raw))

	if b.UnicodeMode() != codec.Uni16LE {
		t.Errorf("UnicodeMode() = %v", b.UnicodeMode())
	}
	if b.EOL() != codec.EOLWindows {
		t.Errorf("EOL() = %v", b.EOL())
	}
	if got := h.text(b); got != text {
		t.Fatalf("decoded text differs: %d bytes, want %d", len(got), len(text))
	}

	out := h.path("wide-copy.txt")
	if err := h.fm.SaveBuffer(context.Background(), b.ID(), out, true); err != nil {
		t.Fatal(err)
	}
	if data, _ := os.ReadFile(out); !bytes.Equal(data, raw) {
		t.Errorf("re-encoded file differs: %d bytes, want %d", len(data), len(raw))
	}
}

func TestLoadUTF16WithoutBOM(t *testing.T) {
	h := newHarness(t)
	text := "#!/usr/bin/env python3\r\nprint('h\u00e9')\r\n"
	raw, err := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewEncoder().Bytes([]byte(text))
	if err != nil {
		t.Fatal(err)
	}
	id, err := h.fm.LoadFile(context.Background(), h.write(t, "wide", raw), LoadOptions{Encoding: 1252})
	if err != nil {
		t.Fatal(err)
	}
	b, _ := h.fm.Buffer(id)

	if b.UnicodeMode() != codec.Uni16LENoBOM {
		t.Errorf("UnicodeMode() = %v, want %v", b.UnicodeMode(), codec.Uni16LENoBOM)
	}
	if b.Encoding() != codec.NoCodepage {
		t.Errorf("Encoding() = %d, the hint must be dropped", b.Encoding())
	}
	if b.EOL() != codec.EOLWindows {
		t.Errorf("EOL() = %v", b.EOL())
	}
	if b.Language() != lang.Python {
		t.Errorf("Language() = %q, want Python", b.Language())
	}
	if got := h.text(b); got != text {
		t.Errorf("text = %q, want %q", got, text)
	}

	out := h.path("wide-copy")
	if err := h.fm.SaveBuffer(context.Background(), id, out, true); err != nil {
		t.Fatal(err)
	}
	if data, _ := os.ReadFile(out); !bytes.Equal(data, raw) {
		t.Errorf("saved bytes = % x, want % x", data, raw)
	}
}

func TestLoadWithCodepageHint(t *testing.T) {
	h := newHarness(t)
	text := "Привет, мир\n"
	raw, err := charmap.Windows1251.NewEncoder().Bytes([]byte(text))
	if err != nil {
		t.Fatal(err)
	}
	id, err := h.fm.LoadFile(context.Background(), h.write(t, "ru.txt", raw), LoadOptions{Encoding: 1251})
	if err != nil {
		t.Fatal(err)
	}
	b, _ := h.fm.Buffer(id)
	if b.Encoding() != 1251 || b.UnicodeMode() != codec.UniCookie {
		t.Errorf("Encoding() = %d, UnicodeMode() = %v", b.Encoding(), b.UnicodeMode())
	}
	if got := h.text(b); got != text {
		t.Errorf("text = %q", got)
	}

	out := h.path("ru-copy.txt")
	if err := h.fm.SaveBuffer(context.Background(), id, out, true); err != nil {
		t.Fatal(err)
	}
	if data, _ := os.ReadFile(out); !bytes.Equal(data, raw) {
		t.Errorf("saved bytes = %x, want %x", data, raw)
	}
}

func TestLoadLanguage(t *testing.T) {
	h := newHarness(t)
	b := h.load(t, h.write(t, "run", []byte("#!/usr/bin/env python3\nprint(1)\n")))
	if b.Language() != lang.Python {
		t.Errorf("sniffed Language() = %q, want Python", b.Language())
	}

	b = h.load(t, h.write(t, "page.rb", []byte("<?xml version=\"1.0\"?>\n")))
	if b.Language() != lang.Ruby {
		t.Errorf("Language() = %q, extension must win over content", b.Language())
	}

	cfg := config.Default()
	cfg.Load.LargeFileSize = 8
	hl := newHarnessWithConfig(t, cfg)
	b = hl.load(t, hl.write(t, "big", []byte("#!/bin/sh\necho hello\n")))
	if !b.LargeFile() {
		t.Error("LargeFile() = false")
	}
	if b.Language() != lang.Text {
		t.Errorf("large file Language() = %q, want Text", b.Language())
	}
}

func TestLoadMissingOrDirectory(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	if _, err := h.fm.LoadFile(ctx, h.path("nope.txt"), LoadOptions{}); !errors.Is(err, ErrInvalid) {
		t.Errorf("LoadFile(missing) error = %v, want ErrInvalid", err)
	}
	if _, err := h.fm.LoadFile(ctx, h.dir, LoadOptions{}); !errors.Is(err, ErrInvalid) {
		t.Errorf("LoadFile(dir) error = %v, want ErrInvalid", err)
	}
	if _, err := h.fm.LoadFile(ctx, h.path("nope.txt"), LoadOptions{BackupPath: h.path("nope@1")}); !errors.Is(err, ErrInvalid) {
		t.Errorf("LoadFile(missing, missing backup) error = %v", err)
	}
	if h.fm.Count() != 0 {
		t.Errorf("Count() = %d", h.fm.Count())
	}
}

func TestLoadUntitledFromBackup(t *testing.T) {
	h := newHarness(t)
	sidecar := h.write(t, "new 1@2024-05-01_101010", []byte("unsaved work\n"))

	id, err := h.fm.LoadFile(context.Background(), "new 1", LoadOptions{BackupPath: sidecar})
	if err != nil {
		t.Fatal(err)
	}
	b, _ := h.fm.Buffer(id)
	if !b.IsUntitled() || b.FullPath() != "new 1" {
		t.Errorf("IsUntitled() = %v, FullPath() = %q", b.IsUntitled(), b.FullPath())
	}
	if !b.Dirty() || !b.LoadedDirty() {
		t.Errorf("Dirty() = %v, LoadedDirty() = %v", b.Dirty(), b.LoadedDirty())
	}
	if b.BackupPath() != sidecar {
		t.Errorf("BackupPath() = %q", b.BackupPath())
	}
	if got := h.text(b); got != "unsaved work\n" {
		t.Errorf("text = %q", got)
	}
}

func TestLoadFileFromBackupWithRecordedTimestamp(t *testing.T) {
	h := newHarness(t)
	p := h.write(t, "a.txt", []byte("on disk\n"))
	sidecar := h.write(t, "a.txt@2024-05-01_101010", []byte("edited\n"))
	recorded := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)

	id, err := h.fm.LoadFile(context.Background(), p, LoadOptions{BackupPath: sidecar, Timestamp: recorded})
	if err != nil {
		t.Fatal(err)
	}
	b, _ := h.fm.Buffer(id)
	if got := h.text(b); got != "edited\n" {
		t.Errorf("text = %q, want sidecar content", got)
	}
	if b.IsUntitled() || !b.Dirty() {
		t.Errorf("IsUntitled() = %v, Dirty() = %v", b.IsUntitled(), b.Dirty())
	}
	if !b.Timestamp().Equal(recorded) {
		t.Errorf("Timestamp() = %v", b.Timestamp())
	}

	// Reaching the load save point does not clean restored content.
	h.store.SetSavePoint(b.Document())
	if !b.Dirty() {
		t.Error("restored buffer became clean at its load save point")
	}

	h.fm.CheckFilesystemChanges(context.Background(), id)
	if b.Status() != buffer.StatusModified {
		t.Errorf("Status() = %v, want modified", b.Status())
	}
}

func TestReloadBuffer(t *testing.T) {
	h := newHarness(t)
	p := h.write(t, "a.txt", []byte("one\n"))
	b := h.load(t, p)
	ctx := context.Background()

	if err := h.store.Append(b.Document(), []byte("local\n")); err != nil {
		t.Fatal(err)
	}
	if !b.Dirty() {
		t.Fatal("edit did not dirty the buffer")
	}

	if err := os.WriteFile(p, []byte("two\r\nlines\r\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	later := time.Now().Add(time.Minute).Truncate(time.Second)
	_ = os.Chtimes(p, later, later)
	h.fm.CheckFilesystemChanges(ctx, b.ID())
	h.changes = nil

	if err := h.fm.ReloadBuffer(ctx, b.ID()); err != nil {
		t.Fatalf("ReloadBuffer() error = %v", err)
	}
	if got := h.text(b); got != "two\r\nlines\r\n" {
		t.Errorf("text = %q", got)
	}
	if b.Dirty() || b.Modified() || b.Unsync() {
		t.Errorf("Dirty() = %v, Modified() = %v, Unsync() = %v", b.Dirty(), b.Modified(), b.Unsync())
	}
	if b.EOL() != codec.EOLWindows {
		t.Errorf("EOL() = %v", b.EOL())
	}
	if b.Status() != buffer.StatusRegular {
		t.Errorf("Status() = %v", b.Status())
	}
	if !b.Timestamp().Equal(later) {
		t.Errorf("Timestamp() = %v, want %v", b.Timestamp(), later)
	}
	if len(h.changes) != 1 {
		t.Errorf("changes = %v, want one coalesced notification", h.changes)
	}
}

func TestReloadBufferDeferred(t *testing.T) {
	h := newHarness(t)
	b := h.load(t, h.write(t, "a.txt", []byte("x")))
	_ = h.store.Append(b.Document(), []byte("y"))
	if err := h.fm.ReloadBufferDeferred(b.ID()); err != nil {
		t.Fatal(err)
	}
	if b.Dirty() || !b.NeedReload() {
		t.Errorf("Dirty() = %v, NeedReload() = %v", b.Dirty(), b.NeedReload())
	}
}

// hugeFS reports every file as 3 GiB.
type hugeFS struct{ *vfs.OSFS }

func (h hugeFS) Stat(path string) (vfs.FileInfo, error) {
	fi, err := h.OSFS.Stat(path)
	if err != nil {
		return fi, err
	}
	return vfs.NewFileInfo(path, 3<<30, fi.Mode(), fi.ModTime()), nil
}

func TestHugeFile(t *testing.T) {
	defer func(v int) { intSize = v }(intSize)

	tests := []struct {
		name    string
		intSize int
		answer  bool
		wantErr error
	}{
		{"32-bit refuses", 32, true, ErrFileTooBig},
		{"64-bit declined", 64, false, ErrLoadCancelled},
		{"64-bit accepted, allocation fails", 64, true, document.ErrBadAlloc},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			intSize = tt.intSize
			p := &prompt.Auto{Answer: tt.answer}
			h := newHarness(t, WithFS(hugeFS{vfs.NewOSFS()}), WithPrompter(p))
			h.store.AllocLimit = 1 << 20
			path := h.write(t, "huge.log", []byte("tiny"))

			_, err := h.fm.LoadFile(context.Background(), path, LoadOptions{})
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("LoadFile() error = %v, want %v", err, tt.wantErr)
			}
			if h.store.Count() != 1 {
				t.Errorf("store holds %d documents, want only the scratch default", h.store.Count())
			}
			if tt.intSize == 64 && len(p.Asked()) != 1 {
				t.Errorf("asked = %v", p.Asked())
			}
			if tt.intSize == 32 && len(p.Errors()) != 1 {
				t.Errorf("errors = %v", p.Errors())
			}
		})
	}
}

func TestLoadGlob(t *testing.T) {
	h := newHarness(t)
	h.write(t, "a.txt", []byte("a"))
	h.write(t, "b.txt", []byte("b"))
	h.write(t, "c.md", []byte("c"))
	if err := os.Mkdir(h.path("d.txt"), 0o755); err != nil {
		t.Fatal(err)
	}

	ids, err := h.fm.LoadGlob(context.Background(), h.path("*.txt"), LoadOptions{})
	if err != nil {
		t.Fatalf("LoadGlob() error = %v", err)
	}
	if len(ids) != 2 {
		t.Errorf("loaded %d buffers, want 2", len(ids))
	}
}
