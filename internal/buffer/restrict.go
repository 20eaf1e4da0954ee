package buffer

import "github.com/dshills/docsync/internal/config"

func allowed(large bool, r config.LargeFileRestrictionConfig, allow bool) bool {
	return !large || !r.Enabled || allow
}

// AllowBraceMatch reports whether brace matching runs for a document.
func AllowBraceMatch(large bool, r config.LargeFileRestrictionConfig) bool {
	return allowed(large, r, r.AllowBraceMatch)
}

// AllowAutoCompletion reports whether auto-completion runs for a document.
func AllowAutoCompletion(large bool, r config.LargeFileRestrictionConfig) bool {
	return allowed(large, r, r.AllowAutoCompletion)
}

// AllowSmartHighlight reports whether smart highlighting runs for a document.
func AllowSmartHighlight(large bool, r config.LargeFileRestrictionConfig) bool {
	return allowed(large, r, r.AllowSmartHighlight)
}

// AllowClickableLink reports whether links are clickable in a document.
func AllowClickableLink(large bool, r config.LargeFileRestrictionConfig) bool {
	return allowed(large, r, r.AllowClickableLink)
}

// Restrictions evaluates all four capability checks for b.
type Restrictions struct {
	BraceMatch     bool
	AutoCompletion bool
	SmartHighlight bool
	ClickableLink  bool
}

// Restrictions returns the capabilities left enabled for b under r.
func (b *Buffer) Restrictions(r config.LargeFileRestrictionConfig) Restrictions {
	return Restrictions{
		BraceMatch:     AllowBraceMatch(b.largeFile, r),
		AutoCompletion: AllowAutoCompletion(b.largeFile, r),
		SmartHighlight: AllowSmartHighlight(b.largeFile, r),
		ClickableLink:  AllowClickableLink(b.largeFile, r),
	}
}
