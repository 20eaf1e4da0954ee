package watcher

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
)

// IgnorePatterns decides which paths produce no events. Patterns use
// doublestar syntax and are matched against the slash-separated path:
//   - **/*.swp      editor swap files anywhere
//   - **/.git/**    anything inside a .git directory
//   - !**/keep.swp  a negation re-includes an earlier match
//
// A pattern without a slash is matched against the base name only.
// Later patterns override earlier ones.
type IgnorePatterns struct {
	mu       sync.RWMutex
	patterns []ignorePattern
}

type ignorePattern struct {
	pattern  string
	negation bool
	baseOnly bool
}

// NewIgnorePatterns creates an empty matcher.
func NewIgnorePatterns() *IgnorePatterns {
	return &IgnorePatterns{}
}

// AddPattern adds one pattern. Blank lines and # comments are skipped.
func (ip *IgnorePatterns) AddPattern(pattern string) error {
	pattern = strings.TrimSpace(pattern)
	if pattern == "" || strings.HasPrefix(pattern, "#") {
		return nil
	}

	var p ignorePattern
	if rest, ok := strings.CutPrefix(pattern, "!"); ok {
		p.negation = true
		pattern = rest
	}
	if !doublestar.ValidatePattern(pattern) {
		return fmt.Errorf("invalid ignore pattern %q", pattern)
	}
	p.pattern = pattern
	p.baseOnly = !strings.Contains(pattern, "/")

	ip.mu.Lock()
	ip.patterns = append(ip.patterns, p)
	ip.mu.Unlock()
	return nil
}

// AddPatterns adds several patterns, stopping at the first invalid one.
func (ip *IgnorePatterns) AddPatterns(patterns []string) error {
	for _, pattern := range patterns {
		if err := ip.AddPattern(pattern); err != nil {
			return err
		}
	}
	return nil
}

// Match reports whether path is ignored.
func (ip *IgnorePatterns) Match(path string) bool {
	ip.mu.RLock()
	defer ip.mu.RUnlock()

	slashed := filepath.ToSlash(path)
	base := filepath.Base(path)
	ignored := false
	for _, p := range ip.patterns {
		subject := slashed
		if p.baseOnly {
			subject = base
		}
		if ok, _ := doublestar.Match(p.pattern, subject); ok {
			ignored = !p.negation
		}
	}
	return ignored
}

// Len returns the number of patterns.
func (ip *IgnorePatterns) Len() int {
	ip.mu.RLock()
	defer ip.mu.RUnlock()
	return len(ip.patterns)
}
