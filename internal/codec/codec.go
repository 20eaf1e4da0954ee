// Package codec detects the on-disk encoding and line-ending convention of a
// text file and transcodes it block by block to and from the UTF-8 (or raw
// 8-bit) form held in a document.
package codec

import "strings"

// UniMode is the Unicode form of a document.
type UniMode int

const (
	// Uni8Bit is a non-Unicode 8-bit document, stored as raw bytes unless a
	// codepage is set.
	Uni8Bit UniMode = iota
	// UniUTF8 is UTF-8 with a byte-order mark.
	UniUTF8
	// Uni16BE is UTF-16 big-endian with a byte-order mark.
	Uni16BE
	// Uni16LE is UTF-16 little-endian with a byte-order mark.
	Uni16LE
	// UniCookie is UTF-8 without a byte-order mark.
	UniCookie
	// Uni7Bit is plain ASCII. Detection only; a loaded document never keeps it.
	Uni7Bit
	// Uni16BENoBOM is UTF-16 big-endian written without a byte-order mark.
	Uni16BENoBOM
	// Uni16LENoBOM is UTF-16 little-endian written without a byte-order mark.
	Uni16LENoBOM
)

var uniModeNames = map[UniMode]string{
	Uni8Bit:      "8bit",
	UniUTF8:      "utf8bom",
	Uni16BE:      "utf16be",
	Uni16LE:      "utf16le",
	UniCookie:    "utf8",
	Uni7Bit:      "7bit",
	Uni16BENoBOM: "utf16be-nobom",
	Uni16LENoBOM: "utf16le-nobom",
}

func (m UniMode) String() string {
	if s, ok := uniModeNames[m]; ok {
		return s
	}
	return "unknown"
}

// ParseUniMode converts a name produced by String back to a UniMode.
func ParseUniMode(s string) (UniMode, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	for m, name := range uniModeNames {
		if name == s {
			return m, true
		}
	}
	return Uni8Bit, false
}

// HasBOM reports whether writing in this mode starts with a byte-order mark.
func (m UniMode) HasBOM() bool {
	return m == UniUTF8 || m == Uni16BE || m == Uni16LE
}

// IsUTF16 reports whether the mode is one of the UTF-16 forms.
func (m UniMode) IsUTF16() bool {
	return m == Uni16BE || m == Uni16LE || m == Uni16BENoBOM || m == Uni16LENoBOM
}

// EOL is a line-ending convention.
type EOL int

const (
	// EOLWindows is CR LF.
	EOLWindows EOL = iota
	// EOLMac is a bare CR.
	EOLMac
	// EOLUnix is a bare LF.
	EOLUnix
	// EOLUnknown means no line terminator has been seen.
	EOLUnknown
)

func (e EOL) String() string {
	switch e {
	case EOLWindows:
		return "windows"
	case EOLMac:
		return "mac"
	case EOLUnix:
		return "unix"
	default:
		return "unknown"
	}
}

// ParseEOL converts "windows", "mac" or "unix" (also "crlf", "cr", "lf").
func ParseEOL(s string) (EOL, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "windows", "crlf":
		return EOLWindows, true
	case "mac", "cr":
		return EOLMac, true
	case "unix", "lf":
		return EOLUnix, true
	default:
		return EOLUnknown, false
	}
}

// ConvertEOL rewrites every line ending in text (CR LF, CR or LF) to the
// terminator of e. Text is returned unchanged for EOLUnknown.
func ConvertEOL(text []byte, e EOL) []byte {
	seq := e.Sequence()
	if seq == "" {
		return text
	}
	out := make([]byte, 0, len(text))
	for i := 0; i < len(text); i++ {
		switch c := text[i]; c {
		case '\r':
			if i+1 < len(text) && text[i+1] == '\n' {
				i++
			}
			out = append(out, seq...)
		case '\n':
			out = append(out, seq...)
		default:
			out = append(out, c)
		}
	}
	return out
}

// Sequence returns the bytes of the terminator.
func (e EOL) Sequence() string {
	switch e {
	case EOLWindows:
		return "\r\n"
	case EOLMac:
		return "\r"
	case EOLUnix:
		return "\n"
	default:
		return ""
	}
}
