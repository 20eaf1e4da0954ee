package buffer

import (
	"context"
	"slices"
	"testing"

	"github.com/dshills/docsync/internal/vfs"
)

type fakeView struct {
	name    string
	visible bool
}

func (v *fakeView) Visible() bool { return v.visible }

func TestViewSlotsStayInLockStep(t *testing.T) {
	env, _ := newEnv(vfs.NewOSFS())
	b := New(context.Background(), 1, 1, StatusUnnamed, "new 1", false, testDefaults, env)

	main := &fakeView{name: "main", visible: true}
	sub := &fakeView{name: "sub"}
	third := &fakeView{name: "third"}

	if n := b.AddReference(main); n != 1 {
		t.Fatalf("AddReference() = %d", n)
	}
	b.AddReference(sub)
	b.AddReference(third)
	if n := b.AddReference(sub); n != 3 {
		t.Errorf("duplicate AddReference() = %d, want 3", n)
	}

	b.SetPosition(main, Position{Caret: 1})
	b.SetPosition(sub, Position{Caret: 2})
	b.SetPosition(third, Position{Caret: 3})
	b.SetFoldState(sub, []int{10, 20})
	b.SetFoldState(third, []int{30})

	if n := b.RemoveReference(sub); n != 2 {
		t.Fatalf("RemoveReference() = %d, want 2", n)
	}
	if b.HasReference(sub) {
		t.Error("removed view still referenced")
	}
	if _, ok := b.Position(sub); ok {
		t.Error("position of removed view still present")
	}
	if p, _ := b.Position(third); p.Caret != 3 {
		t.Errorf("third view caret = %d, want 3", p.Caret)
	}
	if f := b.FoldState(third); !slices.Equal(f, []int{30}) {
		t.Errorf("third view folds = %v", f)
	}
	if got := b.Views(); len(got) != 2 || got[0] != main || got[1] != third {
		t.Errorf("Views() = %v", got)
	}
	if !b.VisibleInFirstView() {
		t.Error("VisibleInFirstView() = false")
	}

	b.RemoveReference(main)
	if b.VisibleInFirstView() {
		t.Error("VisibleInFirstView() = true for hidden view")
	}
	if n := b.RemoveReference(third); n != 0 {
		t.Errorf("RemoveReference() of last view = %d", n)
	}
	if n := b.RemoveReference(third); n != 0 {
		t.Errorf("RemoveReference() of unknown view = %d", n)
	}
}

func TestFoldStateIsCopied(t *testing.T) {
	env, _ := newEnv(vfs.NewOSFS())
	b := New(context.Background(), 1, 1, StatusUnnamed, "new 1", false, testDefaults, env)
	v := &fakeView{}
	b.AddReference(v)

	folds := []int{1, 2}
	b.SetFoldState(v, folds)
	folds[0] = 99
	if got := b.FoldState(v); got[0] != 1 {
		t.Errorf("FoldState() aliased caller slice: %v", got)
	}
}
