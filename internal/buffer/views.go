package buffer

import "slices"

func (b *Buffer) viewIndex(v View) int {
	return slices.IndexFunc(b.views, func(s viewState) bool { return s.view == v })
}

// AddReference attaches a view. Adding a view twice is a no-op. It returns
// the number of views after the call.
func (b *Buffer) AddReference(v View) int {
	if b.viewIndex(v) < 0 {
		b.views = append(b.views, viewState{view: v})
	}
	return len(b.views)
}

// RemoveReference detaches a view together with its position and fold
// state. It returns the number of views left; zero means the buffer can
// be released.
func (b *Buffer) RemoveReference(v View) int {
	if i := b.viewIndex(v); i >= 0 {
		b.views = slices.Delete(b.views, i, i+1)
	}
	return len(b.views)
}

// References returns the number of attached views.
func (b *Buffer) References() int { return len(b.views) }

// HasReference reports whether v displays this buffer.
func (b *Buffer) HasReference(v View) bool { return b.viewIndex(v) >= 0 }

// Views returns the attached views in attach order.
func (b *Buffer) Views() []View {
	out := make([]View, len(b.views))
	for i, s := range b.views {
		out[i] = s.view
	}
	return out
}

// VisibleInFirstView reports whether the first attached view is visible.
func (b *Buffer) VisibleInFirstView() bool {
	return len(b.views) > 0 && b.views[0].view != nil && b.views[0].view.Visible()
}

// Position returns the caret state saved for v.
func (b *Buffer) Position(v View) (Position, bool) {
	i := b.viewIndex(v)
	if i < 0 {
		return Position{}, false
	}
	return b.views[i].pos, true
}

// SetPosition saves the caret state of v. Unknown views are ignored.
func (b *Buffer) SetPosition(v View, p Position) {
	if i := b.viewIndex(v); i >= 0 {
		b.views[i].pos = p
	}
}

// FoldState returns the folded header lines saved for v.
func (b *Buffer) FoldState(v View) []int {
	i := b.viewIndex(v)
	if i < 0 {
		return nil
	}
	return slices.Clone(b.views[i].folds)
}

// SetFoldState saves the folded header lines of v. Unknown views are
// ignored.
func (b *Buffer) SetFoldState(v View, lines []int) {
	if i := b.viewIndex(v); i >= 0 {
		b.views[i].folds = slices.Clone(lines)
	}
}
