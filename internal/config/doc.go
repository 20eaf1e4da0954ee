// Package config loads docsync settings.
//
// Settings come from three layers, lowest priority first: built-in
// defaults, a TOML file, and DOCSYNC_* environment variables. The file and
// environment layers are parsed into maps, merged, and decoded over the
// defaults, so keys that no layer sets keep their default value.
//
// Example file:
//
//	userDataDir = "/home/me/.config/docsync"
//
//	[newDocument]
//	eol = "unix"
//	unicodeMode = "utf8"
//	openAnsiAsUtf8 = true
//
//	[load]
//	largeFileSize = 209715200
//	detectEncoding = true
//	metadataTimeout = "3s"
//
//	[backup]
//	enabled = true
//	interval = "7s"
package config
