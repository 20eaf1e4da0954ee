package codec

import (
	"sort"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/ianaindex"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/encoding/korean"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/encoding/traditionalchinese"
	"golang.org/x/text/encoding/unicode"
)

// CodepageUTF8 is the codepage number of UTF-8. A document whose encoding
// is CodepageUTF8 is handled in Unicode mode.
const CodepageUTF8 = 65001

// NoCodepage marks a document held in Unicode mode.
const NoCodepage = -1

type codepageEntry struct {
	name    string
	aliases []string
	enc     encoding.Encoding
}

// codepages maps Windows codepage numbers to transcoders.
var codepages = map[int]codepageEntry{
	437:   {name: "IBM437", enc: charmap.CodePage437},
	850:   {name: "IBM850", enc: charmap.CodePage850},
	852:   {name: "IBM852", enc: charmap.CodePage852},
	855:   {name: "IBM855", enc: charmap.CodePage855},
	858:   {name: "IBM00858", enc: charmap.CodePage858},
	860:   {name: "IBM860", enc: charmap.CodePage860},
	862:   {name: "IBM862", enc: charmap.CodePage862},
	863:   {name: "IBM863", enc: charmap.CodePage863},
	865:   {name: "IBM865", enc: charmap.CodePage865},
	866:   {name: "IBM866", enc: charmap.CodePage866},
	874:   {name: "windows-874", aliases: []string{"tis-620"}, enc: charmap.Windows874},
	932:   {name: "Shift_JIS", aliases: []string{"sjis", "shift-jis"}, enc: japanese.ShiftJIS},
	936:   {name: "GBK", aliases: []string{"gb2312", "cp936"}, enc: simplifiedchinese.GBK},
	949:   {name: "EUC-KR", aliases: []string{"ks_c_5601-1987", "uhc"}, enc: korean.EUCKR},
	950:   {name: "Big5", aliases: []string{"big5-hkscs"}, enc: traditionalchinese.Big5},
	1250:  {name: "windows-1250", enc: charmap.Windows1250},
	1251:  {name: "windows-1251", enc: charmap.Windows1251},
	1252:  {name: "windows-1252", enc: charmap.Windows1252},
	1253:  {name: "windows-1253", enc: charmap.Windows1253},
	1254:  {name: "windows-1254", enc: charmap.Windows1254},
	1255:  {name: "windows-1255", enc: charmap.Windows1255},
	1256:  {name: "windows-1256", enc: charmap.Windows1256},
	1257:  {name: "windows-1257", enc: charmap.Windows1257},
	1258:  {name: "windows-1258", enc: charmap.Windows1258},
	10000: {name: "macintosh", enc: charmap.Macintosh},
	20866: {name: "KOI8-R", enc: charmap.KOI8R},
	21866: {name: "KOI8-U", enc: charmap.KOI8U},
	28591: {name: "ISO-8859-1", aliases: []string{"latin1"}, enc: charmap.ISO8859_1},
	28592: {name: "ISO-8859-2", enc: charmap.ISO8859_2},
	28593: {name: "ISO-8859-3", enc: charmap.ISO8859_3},
	28594: {name: "ISO-8859-4", enc: charmap.ISO8859_4},
	28595: {name: "ISO-8859-5", enc: charmap.ISO8859_5},
	28596: {name: "ISO-8859-6", enc: charmap.ISO8859_6},
	28597: {name: "ISO-8859-7", enc: charmap.ISO8859_7},
	28598: {name: "ISO-8859-8", enc: charmap.ISO8859_8},
	28599: {name: "ISO-8859-9", enc: charmap.ISO8859_9},
	28603: {name: "ISO-8859-13", enc: charmap.ISO8859_13},
	28605: {name: "ISO-8859-15", enc: charmap.ISO8859_15},
	50220: {name: "ISO-2022-JP", enc: japanese.ISO2022JP},
	51932: {name: "EUC-JP", enc: japanese.EUCJP},
	51949: {name: "EUC-KR", enc: korean.EUCKR},
	54936: {name: "GB18030", aliases: []string{"gb-18030"}, enc: simplifiedchinese.GB18030},
	65001: {name: "UTF-8", aliases: []string{"utf8", "ascii", "us-ascii"}, enc: unicode.UTF8},
}

// CodepageName returns the charset name of cp.
func CodepageName(cp int) (string, bool) {
	e, ok := codepages[cp]
	return e.name, ok
}

// KnownCodepage reports whether cp can be transcoded.
func KnownCodepage(cp int) bool {
	_, ok := codepages[cp]
	return ok
}

// Codepages returns the supported codepage numbers in ascending order.
func Codepages() []int {
	out := make([]int, 0, len(codepages))
	for cp := range codepages {
		out = append(out, cp)
	}
	sort.Ints(out)
	return out
}

// CodepageFromName maps a charset name to a codepage number. Names are
// canonicalised through the IANA registry first, then matched against the
// table's own names and aliases.
func CodepageFromName(name string) (int, bool) {
	name = strings.TrimSpace(name)
	if name == "" {
		return 0, false
	}

	if enc, err := ianaindex.IANA.Encoding(name); err == nil && enc != nil {
		best := 0
		for cp, e := range codepages {
			// 949 and 51949 share EUC-KR; prefer the lower number.
			if e.enc == enc && (best == 0 || cp < best) {
				best = cp
			}
		}
		if best != 0 {
			return best, true
		}
	}

	lower := strings.ToLower(name)
	best := 0
	for cp, e := range codepages {
		match := strings.ToLower(e.name) == lower
		for _, a := range e.aliases {
			match = match || a == lower
		}
		if match && (best == 0 || cp < best) {
			best = cp
		}
	}
	return best, best != 0
}

func codepageEncoding(cp int) (encoding.Encoding, bool) {
	e, ok := codepages[cp]
	if !ok {
		return nil, false
	}
	return e.enc, true
}
