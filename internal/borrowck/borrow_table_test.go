package borrowck

import (
	"testing"

	"vexcheck/internal/ir"
	"vexcheck/internal/scope"
	"vexcheck/internal/source"
)

func tableFixture() (*scope.Table, scope.BindingID, scope.ScopeID) {
	tbl := scope.NewTable()
	sc := tbl.Enter(scope.ScopeFunction)
	bid := tbl.Declare("s", true, ir.NoTypeID, source.Span{File: 1, Start: 1, End: 2})
	return tbl, bid, sc
}

func TestBorrowTableSharedThenMutable(t *testing.T) {
	_, bid, sc := tableFixture()
	bt := NewBorrowTable()

	id, conflict := bt.Begin(BorrowImmutable, bid, source.Span{File: 1, Start: 4, End: 5}, sc)
	if conflict.Blocked() {
		t.Fatalf("first shared borrow blocked: %+v", conflict)
	}
	if id == NoBorrowID {
		t.Fatal("first shared borrow got no id")
	}

	_, conflict = bt.Begin(BorrowImmutable, bid, source.Span{File: 1, Start: 6, End: 7}, sc)
	if conflict.Blocked() {
		t.Fatalf("second shared borrow blocked: %+v", conflict)
	}
	if n := bt.LiveCount(bid); n != 2 {
		t.Fatalf("LiveCount = %d, want 2", n)
	}

	_, conflict = bt.Begin(BorrowMutable, bid, source.Span{File: 1, Start: 8, End: 9}, sc)
	if conflict.Kind != ConflictShared {
		t.Fatalf("mutable borrow over shared: conflict = %+v, want ConflictShared", conflict)
	}
	info := bt.Info(conflict.Borrow)
	if info == nil || info.Kind != BorrowImmutable {
		t.Fatalf("blocking borrow info = %+v, want the first shared entry", info)
	}
}

func TestBorrowTableMutableIsExclusive(t *testing.T) {
	_, bid, sc := tableFixture()
	bt := NewBorrowTable()

	if _, conflict := bt.Begin(BorrowMutable, bid, source.Span{}, sc); conflict.Blocked() {
		t.Fatalf("first mutable borrow blocked: %+v", conflict)
	}
	if _, conflict := bt.Begin(BorrowMutable, bid, source.Span{}, sc); conflict.Kind != ConflictMutable {
		t.Fatalf("second mutable borrow: conflict = %+v, want ConflictMutable", conflict)
	}
	if _, conflict := bt.Begin(BorrowImmutable, bid, source.Span{}, sc); conflict.Kind != ConflictMutable {
		t.Fatalf("shared borrow over mutable: conflict = %+v, want ConflictMutable", conflict)
	}
	if conflict := bt.MutationAllowed(bid); !conflict.Blocked() {
		t.Fatal("mutation allowed while mutably borrowed")
	}
	if conflict := bt.MoveAllowed(bid); !conflict.Blocked() {
		t.Fatal("move allowed while mutably borrowed")
	}
}

func TestBorrowTableProbeDoesNotRegister(t *testing.T) {
	_, bid, sc := tableFixture()
	bt := NewBorrowTable()

	if conflict := bt.Probe(BorrowMutable, bid); conflict.Blocked() {
		t.Fatalf("probe on unborrowed place blocked: %+v", conflict)
	}
	if n := bt.LiveCount(bid); n != 0 {
		t.Fatalf("probe registered a borrow, LiveCount = %d", n)
	}

	bt.Begin(BorrowImmutable, bid, source.Span{}, sc)
	if conflict := bt.Probe(BorrowMutable, bid); conflict.Kind != ConflictShared {
		t.Fatalf("probe = %+v, want ConflictShared", conflict)
	}
	if conflict := bt.Probe(BorrowImmutable, bid); conflict.Blocked() {
		t.Fatalf("shared probe over shared borrow blocked: %+v", conflict)
	}
}

func TestLexicalReleaseEndsScopeBorrows(t *testing.T) {
	tbl, bid, _ := tableFixture()
	bt := NewBorrowTable()

	inner := tbl.Enter(scope.ScopeBlock)
	bt.Begin(BorrowMutable, bid, source.Span{}, inner)
	if conflict := bt.MutationAllowed(bid); !conflict.Blocked() {
		t.Fatal("mutation allowed with live inner borrow")
	}

	LexicalRelease{}.ScopeExited(bt, inner)
	if conflict := bt.MutationAllowed(bid); conflict.Blocked() {
		t.Fatalf("borrow survived scope release: %+v", conflict)
	}
	if n := bt.LiveCount(bid); n != 0 {
		t.Fatalf("LiveCount = %d after release, want 0", n)
	}
}
