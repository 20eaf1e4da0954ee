package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// EnvPrefix is the prefix of environment overrides.
const EnvPrefix = "DOCSYNC_"

// Config is the full set of docsync settings.
type Config struct {
	// UserDataDir holds backups, the session file and the diagnostic log.
	UserDataDir string `toml:"userDataDir"`

	NewDocument          NewDocumentConfig          `toml:"newDocument"`
	Load                 LoadConfig                 `toml:"load"`
	LargeFileRestriction LargeFileRestrictionConfig `toml:"largeFileRestriction"`
	Backup               BackupConfig               `toml:"backup"`
	Session              SessionConfig              `toml:"session"`
	Watch                WatchConfig                `toml:"watch"`
	Diagnostics          DiagnosticsConfig          `toml:"diagnostics"`
	Logging              LoggingConfig              `toml:"logging"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		UserDataDir: defaultUserDataDir(),
		NewDocument: NewDocumentConfig{
			EOL:            defaultEOL(),
			UnicodeMode:    "utf8",
			Codepage:       -1,
			Language:       "Text",
			OpenANSIAsUTF8: true,
		},
		Load: LoadConfig{
			LargeFileSize:   200 << 20,
			DetectEncoding:  true,
			MetadataTimeout: Duration(3 * time.Second),
		},
		LargeFileRestriction: LargeFileRestrictionConfig{
			Enabled: true,
		},
		Backup: BackupConfig{
			Enabled:  true,
			Interval: Duration(7 * time.Second),
		},
		Watch: WatchConfig{
			Debounce: Duration(100 * time.Millisecond),
			Ignore:   []string{"**/.git/**", "**/*.swp", "**/*~"},
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads path (if it exists) and the environment over the defaults.
// An empty path skips the file layer.
func Load(path string) (*Config, error) {
	var fileLayer map[string]any
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			fileLayer, err = parse(path, data)
			if err != nil {
				return nil, err
			}
		case os.IsNotExist(err):
			// Missing file is not an error.
		default:
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
	}

	envLayer := NewEnvLoader(EnvPrefix).Load()
	return decode(DeepMerge(fileLayer, envLayer))
}

// Parse decodes TOML data over the defaults without consulting the
// environment.
func Parse(data []byte) (*Config, error) {
	layer, err := parse("<bytes>", data)
	if err != nil {
		return nil, err
	}
	return decode(layer)
}

func parse(source string, data []byte) (map[string]any, error) {
	var layer map[string]any
	if err := toml.Unmarshal(data, &layer); err != nil {
		pe := &ParseError{Path: source, Message: err.Error(), Err: err}
		var de *toml.DecodeError
		if errors.As(err, &de) {
			pe.Line, pe.Column = de.Position()
		}
		return nil, pe
	}
	return layer, nil
}

// decode re-encodes the merged layers and decodes them over Default, so
// that only keys present in some layer replace a default.
func decode(layer map[string]any) (*Config, error) {
	cfg := Default()
	if len(layer) > 0 {
		data, err := toml.Marshal(layer)
		if err != nil {
			return nil, fmt.Errorf("encoding merged config: %w", err)
		}
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, &ParseError{Path: "<merged>", Message: err.Error(), Err: err}
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks enumerated and ranged settings.
func (c *Config) Validate() error {
	switch c.NewDocument.EOL {
	case "windows", "unix", "mac":
	default:
		return &ValidationError{Path: "newDocument.eol", Message: "must be windows, unix or mac", Value: c.NewDocument.EOL}
	}
	switch c.NewDocument.UnicodeMode {
	case "8bit", "utf8bom", "utf8", "utf16be", "utf16le":
	default:
		return &ValidationError{Path: "newDocument.unicodeMode", Message: "unknown mode", Value: c.NewDocument.UnicodeMode}
	}
	if c.Load.LargeFileSize <= 0 {
		return &ValidationError{Path: "load.largeFileSize", Message: "must be positive", Value: c.Load.LargeFileSize}
	}
	if c.Load.MetadataTimeout <= 0 {
		return &ValidationError{Path: "load.metadataTimeout", Message: "must be positive", Value: c.Load.MetadataTimeout.Std()}
	}
	if c.Backup.Enabled && c.Backup.Interval <= 0 {
		return &ValidationError{Path: "backup.interval", Message: "must be positive", Value: c.Backup.Interval.Std()}
	}
	return nil
}

// BackupDir returns the directory snapshot sidecars are written to.
func (c *Config) BackupDir() string {
	if c.Backup.Dir != "" {
		return c.Backup.Dir
	}
	return filepath.Join(c.UserDataDir, "backup")
}

// SessionPath returns the session metadata file path.
func (c *Config) SessionPath() string {
	if c.Session.Path != "" {
		return c.Session.Path
	}
	return filepath.Join(c.UserDataDir, "session.yaml")
}

// DiagnosticsPath returns the diagnostic log path.
func (c *Config) DiagnosticsPath() string {
	if c.Diagnostics.Path != "" {
		return c.Diagnostics.Path
	}
	return filepath.Join(c.UserDataDir, "diagnostics.log")
}

func defaultUserDataDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "docsync")
	}
	return filepath.Join(os.TempDir(), "docsync")
}
