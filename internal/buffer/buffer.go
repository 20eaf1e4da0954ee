// Package buffer models one open document: its path, on-disk format,
// language, synchronisation status against the file system, the views that
// display it and its crash-recovery sidecar.
//
// A Buffer is not safe for concurrent use. The registry that owns it
// serialises every call.
package buffer

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dshills/docsync/internal/codec"
	"github.com/dshills/docsync/internal/config"
	"github.com/dshills/docsync/internal/document"
	"github.com/dshills/docsync/internal/lang"
	"github.com/dshills/docsync/internal/logging"
	"github.com/dshills/docsync/internal/vfs"
)

// ID identifies a buffer for its whole lifetime. IDs are never reused.
type ID uint64

// UntitledPrefix starts the synthetic name of a new document ("new 1").
const UntitledPrefix = "new "

// Status is the synchronisation state of a buffer against its file.
type Status int

const (
	// StatusRegular means memory and disk agree as far as we know.
	StatusRegular Status = iota
	// StatusUnnamed is a document that has never been saved.
	StatusUnnamed
	// StatusDeleted means the file disappeared from disk.
	StatusDeleted
	// StatusModified means the file changed on disk.
	StatusModified
	// StatusNeedReload means the file must be re-read before use.
	StatusNeedReload
	// StatusInaccessible is a placeholder for a file that could not be
	// opened, typically a missing session entry.
	StatusInaccessible
)

func (s Status) String() string {
	switch s {
	case StatusRegular:
		return "regular"
	case StatusUnnamed:
		return "unnamed"
	case StatusDeleted:
		return "deleted"
	case StatusModified:
		return "modified"
	case StatusNeedReload:
		return "need-reload"
	case StatusInaccessible:
		return "inaccessible"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// ChangeMask describes what changed in a buffer. Bits are combined so a
// consumer sees one notification per logical change.
type ChangeMask uint32

const (
	ChangeLanguage  ChangeMask = 0x001
	ChangeDirty     ChangeMask = 0x002
	ChangeFormat    ChangeMask = 0x004
	ChangeUnicode   ChangeMask = 0x008
	ChangeReadonly  ChangeMask = 0x010
	ChangeStatus    ChangeMask = 0x020
	ChangeTimestamp ChangeMask = 0x040
	ChangeFilename  ChangeMask = 0x080
	ChangeRecentTag ChangeMask = 0x100
	ChangeLexing    ChangeMask = 0x200

	// ChangeAll covers every public bit.
	ChangeAll ChangeMask = 0x3FF

	// ChangeGuarded marks a notification raised from CheckFileState. The
	// receiver must hold the buffer's reload guard while delivering it.
	ChangeGuarded ChangeMask = 1 << 31
)

var changeNames = []struct {
	bit  ChangeMask
	name string
}{
	{ChangeLanguage, "language"},
	{ChangeDirty, "dirty"},
	{ChangeFormat, "format"},
	{ChangeUnicode, "unicode"},
	{ChangeReadonly, "readonly"},
	{ChangeStatus, "status"},
	{ChangeTimestamp, "timestamp"},
	{ChangeFilename, "filename"},
	{ChangeRecentTag, "recent-tag"},
	{ChangeLexing, "lexing"},
}

func (m ChangeMask) String() string {
	var parts []string
	for _, c := range changeNames {
		if m&c.bit != 0 {
			parts = append(parts, c.name)
		}
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "|")
}

// Notifier receives buffer change notifications.
type Notifier interface {
	BufferChanged(b *Buffer, mask ChangeMask)
}

// Env holds the collaborators shared by every buffer of a registry.
type Env struct {
	Prober      *vfs.Prober
	Notifier    Notifier
	Logger      *logging.Logger
	Diagnostics *logging.Diagnostics
}

// Defaults are the format settings given to new documents.
type Defaults struct {
	EOL            codec.EOL
	UnicodeMode    codec.UniMode
	Codepage       int
	Language       lang.Language
	OpenANSIAsUTF8 bool
}

// DefaultsFromConfig converts the [newDocument] section.
func DefaultsFromConfig(c config.NewDocumentConfig) (Defaults, error) {
	eol, ok := codec.ParseEOL(c.EOL)
	if !ok {
		return Defaults{}, fmt.Errorf("newDocument.eol: unknown value %q", c.EOL)
	}
	mode, ok := codec.ParseUniMode(c.UnicodeMode)
	if !ok {
		return Defaults{}, fmt.Errorf("newDocument.unicodeMode: unknown value %q", c.UnicodeMode)
	}
	cp := c.Codepage
	if cp != codec.NoCodepage && !codec.KnownCodepage(cp) {
		return Defaults{}, fmt.Errorf("newDocument.codepage: unsupported codepage %d", cp)
	}
	l := lang.Language(c.Language)
	if l == "" {
		l = lang.Text
	}
	return Defaults{EOL: eol, UnicodeMode: mode, Codepage: cp, Language: l, OpenANSIAsUTF8: c.OpenANSIAsUTF8}, nil
}

// Position is the caret and scroll state of one view.
type Position struct {
	Anchor           int64
	Caret            int64
	FirstVisibleLine int
	XOffset          int
}

// View is a UI view that can display a buffer.
type View interface {
	Visible() bool
}

type viewState struct {
	view  View
	pos   Position
	folds []int
}

// Buffer is one open document.
type Buffer struct {
	id  ID
	doc document.Handle
	env *Env

	fullPath string
	fileName string
	network  bool

	encoding     int
	unicodeMode  codec.UniMode
	eol          codec.EOL
	language     lang.Language
	langFromMenu bool
	needLexer    bool

	status         Status
	dirty          bool
	fileReadOnly   bool
	userReadOnly   bool
	largeFile      bool
	monitoring     bool
	unsync         bool
	savePointDirty bool
	modified       bool
	loadedDirty    bool
	needReload     bool
	inaccessible   bool

	timestamp time.Time
	createdAt time.Time

	views []viewState

	backupPath string
	recentTag  int64

	canNotify   bool
	reloadGuard sync.Mutex
}

// New creates a buffer around doc. status is StatusRegular for files,
// StatusUnnamed for untitled documents and StatusInaccessible for
// placeholders of files that could not be opened. The constructor
// resolves the language from path, reads the on-disk timestamp and
// reconciles status before enabling notifications.
func New(ctx context.Context, id ID, doc document.Handle, status Status, path string, large bool, d Defaults, env *Env) *Buffer {
	if env.Logger == nil {
		env.Logger = logging.Null()
	}
	b := &Buffer{
		id:          id,
		doc:         doc,
		env:         env,
		eol:         d.EOL,
		unicodeMode: d.UnicodeMode,
		encoding:    d.Codepage,
		language:    lang.Text,
		status:      status,
		largeFile:   large,
		createdAt:   time.Now(),
	}
	if b.encoding != codec.NoCodepage {
		b.unicodeMode = codec.UniCookie
	}

	if status == StatusInaccessible {
		b.inaccessible = true
	}

	b.SetFileName(ctx, path, d.Language)
	b.UpdateTimeStamp(ctx)
	b.CheckFileState(ctx)

	b.canNotify = true
	return b
}

func (b *Buffer) notify(mask ChangeMask) {
	if b.canNotify && b.env.Notifier != nil && mask != 0 {
		b.env.Notifier.BufferChanged(b, mask)
	}
}

// ID returns the buffer id.
func (b *Buffer) ID() ID { return b.id }

// Document returns the handle of the owned document.
func (b *Buffer) Document() document.Handle { return b.doc }

// FullPath returns the path, or the synthetic label of an untitled document.
func (b *Buffer) FullPath() string { return b.fullPath }

// FileName returns the last path element.
func (b *Buffer) FileName() string { return b.fileName }

// IsNetwork reports whether the file lives on a network share.
func (b *Buffer) IsNetwork() bool { return b.network }

// IsUntitled reports whether the buffer has never been saved.
func (b *Buffer) IsUntitled() bool { return b.status == StatusUnnamed }

// Encoding returns the codepage, or codec.NoCodepage in Unicode mode.
func (b *Buffer) Encoding() int { return b.encoding }

// SetEncoding changes the codepage.
func (b *Buffer) SetEncoding(cp int) {
	b.encoding = cp
	b.notify(ChangeUnicode | ChangeDirty)
}

// UnicodeMode returns the Unicode form.
func (b *Buffer) UnicodeMode() codec.UniMode { return b.unicodeMode }

// SetUnicodeMode changes the Unicode form.
func (b *Buffer) SetUnicodeMode(m codec.UniMode) {
	b.unicodeMode = m
	b.notify(ChangeUnicode | ChangeDirty)
}

// Format returns the on-disk format used to encode the document.
func (b *Buffer) Format() codec.Format {
	return codec.Format{Mode: b.unicodeMode, Codepage: b.encoding}
}

// EOL returns the line-ending convention.
func (b *Buffer) EOL() codec.EOL { return b.eol }

// SetEOL changes the line-ending convention.
func (b *Buffer) SetEOL(e codec.EOL) {
	b.eol = e
	b.notify(ChangeFormat)
}

// Language returns the language classification.
func (b *Buffer) Language() lang.Language { return b.language }

// SetLanguage changes the language. fromMenu pins the choice so later
// renames do not re-derive it.
func (b *Buffer) SetLanguage(l lang.Language, fromMenu bool) {
	if fromMenu {
		b.langFromMenu = true
	}
	if l == b.language {
		return
	}
	b.language = l
	b.needLexer = true
	b.notify(ChangeLanguage | ChangeLexing)
}

// LanguageFromMenu reports whether the user picked the language.
func (b *Buffer) LanguageFromMenu() bool { return b.langFromMenu }

// NeedsLexing reports whether the language changed since the last styling.
func (b *Buffer) NeedsLexing() bool { return b.needLexer }

// SetNeedsLexing sets or clears the lexing request.
func (b *Buffer) SetNeedsLexing(v bool) {
	b.needLexer = v
	if v {
		b.notify(ChangeLexing)
	}
}

// Status returns the file system status.
func (b *Buffer) Status() Status { return b.status }

// SetStatus changes the status.
func (b *Buffer) SetStatus(s Status) {
	b.status = s
	b.notify(ChangeStatus)
}

// Dirty reports unsaved changes.
func (b *Buffer) Dirty() bool { return b.dirty }

// SetDirty changes the dirty flag.
func (b *Buffer) SetDirty(dirty bool) {
	b.dirty = dirty
	b.notify(ChangeDirty)
}

// Modified reports whether content changed since the last snapshot check.
func (b *Buffer) Modified() bool { return b.modified }

// SetModified sets the modified-since-last-snapshot flag.
func (b *Buffer) SetModified(v bool) { b.modified = v }

// Unsync reports content that diverged from disk outside normal edits.
func (b *Buffer) Unsync() bool { return b.unsync }

// SetUnsync changes the unsynchronised flag.
func (b *Buffer) SetUnsync(v bool) { b.unsync = v }

// SavePointDirty reports whether the save point was lost by a reload.
func (b *Buffer) SavePointDirty() bool { return b.savePointDirty }

// SetSavePointDirty changes the save point dirty flag.
func (b *Buffer) SetSavePointDirty(v bool) { b.savePointDirty = v }

// LoadedDirty reports whether the buffer was restored dirty from a sidecar.
func (b *Buffer) LoadedDirty() bool { return b.loadedDirty }

// SetLoadedDirty changes the loaded-dirty flag.
func (b *Buffer) SetLoadedDirty(v bool) { b.loadedDirty = v }

// FileReadOnly reports the on-disk read-only attribute.
func (b *Buffer) FileReadOnly() bool { return b.fileReadOnly }

// SetFileReadOnly records the on-disk read-only attribute.
func (b *Buffer) SetFileReadOnly(v bool) {
	b.fileReadOnly = v
	b.notify(ChangeReadonly)
}

// UserReadOnly reports the user's read-only toggle.
func (b *Buffer) UserReadOnly() bool { return b.userReadOnly }

// SetUserReadOnly changes the user's read-only toggle.
func (b *Buffer) SetUserReadOnly(v bool) {
	b.userReadOnly = v
	b.notify(ChangeReadonly)
}

// ReadOnly reports whether either read-only flag is set.
func (b *Buffer) ReadOnly() bool { return b.fileReadOnly || b.userReadOnly }

// Inaccessible reports a placeholder for a file that could not be read.
func (b *Buffer) Inaccessible() bool { return b.inaccessible }

// SetInaccessible marks or clears the placeholder state.
func (b *Buffer) SetInaccessible(v bool) { b.inaccessible = v }

// LargeFile reports whether the file exceeded the large-file threshold.
func (b *Buffer) LargeFile() bool { return b.largeFile }

// Monitoring reports whether the buffer follows its file like tail -f.
func (b *Buffer) Monitoring() bool { return b.monitoring }

// SetMonitoring toggles tail-following mode.
func (b *Buffer) SetMonitoring(v bool) { b.monitoring = v }

// Timestamp returns the last known on-disk modification time. The zero
// time means unknown or deleted.
func (b *Buffer) Timestamp() time.Time { return b.timestamp }

// SetTimestamp overrides the known modification time, e.g. with a value
// recorded in a session file.
func (b *Buffer) SetTimestamp(t time.Time) {
	b.timestamp = t
	b.notify(ChangeTimestamp)
}

// CreatedAt returns when the buffer was created.
func (b *Buffer) CreatedAt() time.Time { return b.createdAt }

// CreatedAtString formats CreatedAt for display in restore dialogs.
func (b *Buffer) CreatedAtString() string {
	return b.createdAt.Format("2006-01-02 15:04:05")
}

// BackupPath returns the sidecar path, empty when none exists.
func (b *Buffer) BackupPath() string { return b.backupPath }

// SetBackupPath links or unlinks the sidecar.
func (b *Buffer) SetBackupPath(p string) { b.backupPath = p }

// RecentTag returns the last-activation ordinal.
func (b *Buffer) RecentTag() int64 { return b.recentTag }

// SetRecentTag records an activation ordinal.
func (b *Buffer) SetRecentTag(tag int64) {
	b.recentTag = tag
	b.notify(ChangeRecentTag)
}

// NeedReload reports a deferred reload request.
func (b *Buffer) NeedReload() bool { return b.needReload }

// SetDeferredReload marks the buffer clean and asks for a reload on next
// activation.
func (b *Buffer) SetDeferredReload() {
	b.dirty = false
	b.needReload = true
	b.notify(ChangeDirty)
}

// ClearNeedReload drops a deferred reload request after it was served.
func (b *Buffer) ClearNeedReload() { b.needReload = false }

// SetNotify enables or disables change notifications. It returns the
// previous setting.
func (b *Buffer) SetNotify(on bool) bool {
	prev := b.canNotify
	b.canNotify = on
	return prev
}

// CanNotify reports whether notifications are delivered.
func (b *Buffer) CanNotify() bool { return b.canNotify }

// TryReloadGuard acquires the reload guard without blocking.
func (b *Buffer) TryReloadGuard() bool { return b.reloadGuard.TryLock() }

// ReleaseReloadGuard releases a guard taken with TryReloadGuard.
func (b *Buffer) ReleaseReloadGuard() { b.reloadGuard.Unlock() }
