package codec

import (
	"bytes"
	"unicode/utf16"
	"unicode/utf8"

	"github.com/saintfish/chardet"
)

// Byte-order marks.
var (
	bomUTF8    = []byte{0xEF, 0xBB, 0xBF}
	bomUTF16BE = []byte{0xFE, 0xFF}
	bomUTF16LE = []byte{0xFF, 0xFE}
)

// BOM returns the byte-order mark written for mode, or nil.
func BOM(mode UniMode) []byte {
	switch mode {
	case UniUTF8:
		return bomUTF8
	case Uni16BE:
		return bomUTF16BE
	case Uni16LE:
		return bomUTF16LE
	default:
		return nil
	}
}

// DetectBOM inspects the first bytes of a stream. It returns the mode the
// mark stands for and the mark's length, or ok=false when there is none.
func DetectBOM(b []byte) (mode UniMode, n int, ok bool) {
	switch {
	case bytes.HasPrefix(b, bomUTF16BE):
		return Uni16BE, len(bomUTF16BE), true
	case bytes.HasPrefix(b, bomUTF16LE):
		return Uni16LE, len(bomUTF16LE), true
	case bytes.HasPrefix(b, bomUTF8):
		return UniUTF8, len(bomUTF8), true
	default:
		return Uni8Bit, 0, false
	}
}

// DetermineEncoding classifies a block: a byte-order mark wins, then
// little-endian UTF-16 without a mark, otherwise the block is 7-bit, UTF-8
// without a mark, or 8-bit. Big-endian UTF-16 without a mark is not
// guessed.
func DetermineEncoding(b []byte) UniMode {
	if mode, _, ok := DetectBOM(b); ok {
		return mode
	}
	if LooksUTF16LE(b) {
		return Uni16LENoBOM
	}
	return ClassifyBytes(b)
}

// LooksUTF16LE reports whether b reads as little-endian UTF-16 text: an
// even length starting with a non-NUL byte followed by NUL, no U+0000,
// no stray low surrogate, and at least half of the code units in
// the Latin-1 range.
func LooksUTF16LE(b []byte) bool {
	if len(b) < 2 || len(b)%2 != 0 || b[0] == 0 || b[1] != 0 {
		return false
	}
	units := len(b) / 2
	latin := 0
	for i := 0; i < len(b); i += 2 {
		u := uint16(b[i]) | uint16(b[i+1])<<8
		switch {
		case u == 0:
			return false
		case u < 0x100:
			latin++
		case utf16.IsSurrogate(rune(u)):
			if u >= 0xDC00 {
				return false
			}
			if i+3 >= len(b) {
				// A pair cut by the end of the block.
				break
			}
			next := uint16(b[i+2]) | uint16(b[i+3])<<8
			if next < 0xDC00 || next > 0xDFFF {
				return false
			}
			i += 2
		}
	}
	return latin*2 >= units
}

// ClassifyBytes reports Uni7Bit for pure ASCII, UniCookie for valid UTF-8
// with at least one multi-byte sequence and Uni8Bit otherwise. A NUL byte
// rules out UTF-8. An incomplete sequence at the very end is tolerated
// since b may be the first block of a longer stream.
func ClassifyBytes(b []byte) UniMode {
	ascii := true
	for _, c := range b {
		if c == 0 {
			return Uni8Bit
		}
		if c >= 0x80 {
			ascii = false
		}
	}
	if ascii {
		return Uni7Bit
	}

	body := b[:len(b)-IncompleteUTF8Tail(b)]
	if utf8.Valid(body) {
		return UniCookie
	}
	return Uni8Bit
}

// IncompleteUTF8Tail returns how many trailing bytes of b start a UTF-8
// sequence that b does not finish.
func IncompleteUTF8Tail(b []byte) int {
	for i := 1; i <= utf8.UTFMax-1 && i <= len(b); i++ {
		c := b[len(b)-i]
		if c < 0x80 {
			return 0
		}
		if utf8.RuneStart(c) {
			if utf8.FullRune(b[len(b)-i:]) {
				return 0
			}
			return i
		}
	}
	return 0
}

// DetectEOL returns the convention of the first line terminator in b.
func DetectEOL(b []byte) EOL {
	for i, c := range b {
		switch c {
		case '\r':
			if i+1 < len(b) && b[i+1] == '\n' {
				return EOLWindows
			}
			return EOLMac
		case '\n':
			return EOLUnix
		}
	}
	return EOLUnknown
}

// DetectEOLFromUTF16 finds the first terminator in UTF-16 data.
func DetectEOLFromUTF16(b []byte, bigEndian bool) EOL {
	unit := func(i int) uint16 {
		if bigEndian {
			return uint16(b[i])<<8 | uint16(b[i+1])
		}
		return uint16(b[i+1])<<8 | uint16(b[i])
	}
	for i := 0; i+1 < len(b); i += 2 {
		switch unit(i) {
		case '\r':
			if i+3 < len(b) && unit(i+2) == '\n' {
				return EOLWindows
			}
			return EOLMac
		case '\n':
			return EOLUnix
		}
	}
	return EOLUnknown
}

// Detection is the outcome of a heuristic codepage guess.
type Detection struct {
	Codepage   int
	Charset    string
	Confidence int
}

// DetectCodepage guesses the codepage of 8-bit text. It returns ok=false
// when the guess maps to no known codepage.
func DetectCodepage(b []byte) (Detection, bool) {
	if len(b) == 0 {
		return Detection{Codepage: -1}, false
	}
	res, err := chardet.NewTextDetector().DetectBest(b)
	if err != nil || res == nil {
		return Detection{Codepage: -1}, false
	}
	cp, ok := CodepageFromName(res.Charset)
	if !ok {
		return Detection{Codepage: -1, Charset: res.Charset, Confidence: res.Confidence}, false
	}
	return Detection{Codepage: cp, Charset: res.Charset, Confidence: res.Confidence}, true
}
