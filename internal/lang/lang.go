// Package lang classifies documents by programming language, from their
// file name or from the first line of their content.
package lang

import (
	"bytes"
	"path/filepath"
	"slices"
	"strings"

	"github.com/go-enry/go-enry/v2"
)

// Language is a language name as used by linguist (e.g. "Python").
// The empty Language means "not determined".
type Language string

// Languages the core distinguishes itself. Any other linguist name is valid.
const (
	Text       Language = "Text"
	XML        Language = "XML"
	HTML       Language = "HTML"
	PHP        Language = "PHP"
	Shell      Language = "Shell"
	Python     Language = "Python"
	Perl       Language = "Perl"
	Ruby       Language = "Ruby"
	JavaScript Language = "JavaScript"
	Makefile   Language = "Makefile"
	CMake      Language = "CMake"
)

// wellKnownNames maps extension-less or build-system file names, compared
// case-insensitively.
var wellKnownNames = map[string]Language{
	"makefile":       Makefile,
	"gnumakefile":    Makefile,
	"cmakelists.txt": CMake,
	"sconstruct":     Python,
	"sconscript":     Python,
	"wscript":        Python,
	"rakefile":       Ruby,
	"vagrantfile":    Ruby,
	"crontab":        Shell,
}

// FromExtension returns the language implied by path's extension, or ""
// when the extension is absent, unknown or shared by several languages.
// An ambiguous extension that plain text may use (".txt") gives Text.
func FromExtension(path string) Language {
	base := filepath.Base(path)
	if filepath.Ext(base) == "" {
		return ""
	}
	if name, safe := enry.GetLanguageByExtension(base); safe {
		return Language(name)
	}
	if slices.Contains(enry.GetLanguagesByExtension(base, nil, nil), string(Text)) {
		return Text
	}
	return ""
}

// FromFilename returns the language of a well-known file name, or "".
func FromFilename(path string) Language {
	base := filepath.Base(path)
	if l, ok := wellKnownNames[strings.ToLower(base)]; ok {
		return l
	}
	if name, safe := enry.GetLanguageByFilename(base); safe {
		return Language(name)
	}
	return ""
}

// FromPath derives a language from well-known file names, then from the
// extension, defaulting to Text.
func FromPath(path string) Language {
	if l := FromFilename(path); l != "" {
		return l
	}
	if l := FromExtension(path); l != "" {
		return l
	}
	return Text
}

// sniffWindow is how many bytes of the first line are examined.
const sniffWindow = 40

var shebangs = []struct {
	pattern string
	lang    Language
}{
	{"sh", Shell},
	{"python", Python},
	{"perl", Perl},
	{"php", PHP},
	{"ruby", Ruby},
	{"node", JavaScript},
}

// Order matters: the bare "<?" must come after the longer prologues.
var prologues = []struct {
	prefix string
	lang   Language
}{
	{"<?xml", XML},
	{"<?php", PHP},
	{"<html", HTML},
	{"<!DOCTYPE html", HTML},
	{"<?", PHP},
}

// SniffContent guesses a language from the beginning of a document: a
// shebang line or an XML/HTML/PHP prologue. It returns Text when nothing
// matches or the data is too short.
func SniffContent(data []byte) Language {
	if len(data) <= 3 {
		return Text
	}

	i := 0
	if bytes.HasPrefix(data, []byte{0xEF, 0xBB, 0xBF}) ||
		bytes.HasPrefix(data, []byte{0xFE, 0xFF, 0x00}) ||
		bytes.HasPrefix(data, []byte{0xFF, 0xFE, 0x00}) {
		i = 3
	}
	for i < len(data) && isSpace(data[i]) {
		i++
	}

	line := data[i:min(i+sniffWindow, len(data))]
	if cut := bytes.IndexAny(line, "\r\n"); cut >= 0 {
		line = line[:cut]
	}

	if bytes.HasPrefix(line, []byte("#!")) {
		for _, s := range shebangs {
			if bytes.Contains(line, []byte(s.pattern)) {
				return s.lang
			}
		}
		return Text
	}

	for _, p := range prologues {
		if bytes.HasPrefix(line, []byte(p.prefix)) {
			return p.lang
		}
	}
	return Text
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}
