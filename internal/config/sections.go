package config

import (
	"fmt"
	"time"
)

// Duration is a time.Duration that reads and writes as a Go duration
// string ("3s", "150ms") in TOML.
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", b, err)
	}
	*d = Duration(v)
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// NewDocumentConfig holds the format defaults applied to new documents and
// to loads where detection found nothing.
type NewDocumentConfig struct {
	// EOL is the default line ending: "windows", "unix" or "mac".
	EOL string `toml:"eol"`

	// UnicodeMode is the default Unicode mode: "8bit", "utf8bom", "utf8",
	// "utf16be" or "utf16le".
	UnicodeMode string `toml:"unicodeMode"`

	// Codepage is the default codepage, -1 for none.
	Codepage int `toml:"codepage"`

	// Language is the default language name for new documents.
	Language string `toml:"language"`

	// OpenANSIAsUTF8 treats files detected as plain 7-bit as UTF-8 when
	// UnicodeMode is "utf8".
	OpenANSIAsUTF8 bool `toml:"openAnsiAsUtf8"`
}

// LoadConfig controls how files are read.
type LoadConfig struct {
	// LargeFileSize is the size in bytes above which a file is large.
	LargeFileSize int64 `toml:"largeFileSize"`

	// DetectEncoding enables heuristic codepage detection.
	DetectEncoding bool `toml:"detectEncoding"`

	// MetadataTimeout bounds stat calls against slow storage.
	MetadataTimeout Duration `toml:"metadataTimeout"`
}

// LargeFileRestrictionConfig controls which features stay on for large files.
type LargeFileRestrictionConfig struct {
	Enabled             bool `toml:"enabled"`
	AllowBraceMatch     bool `toml:"allowBraceMatch"`
	AllowAutoCompletion bool `toml:"allowAutoCompletion"`
	AllowSmartHighlight bool `toml:"allowSmartHighlight"`
	AllowClickableLink  bool `toml:"allowClickableLink"`
}

// BackupConfig controls snapshot backups.
type BackupConfig struct {
	// Enabled turns the periodic snapshot loop on.
	Enabled bool `toml:"enabled"`

	// Dir overrides <userDataDir>/backup.
	Dir string `toml:"dir"`

	// Interval is the snapshot period.
	Interval Duration `toml:"interval"`
}

// SessionConfig locates the session file.
type SessionConfig struct {
	// Path overrides <userDataDir>/session.yaml.
	Path string `toml:"path"`
}

// WatchConfig controls filesystem observation.
type WatchConfig struct {
	// Debounce coalesces bursts of events for one path.
	Debounce Duration `toml:"debounce"`

	// Ignore lists doublestar patterns for paths never checked.
	Ignore []string `toml:"ignore"`
}

// DiagnosticsConfig controls the post-mortem diagnostic log.
type DiagnosticsConfig struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// LoggingConfig controls the process logger.
type LoggingConfig struct {
	// Level is "debug", "info", "warn" or "error".
	Level string `toml:"level"`
}
