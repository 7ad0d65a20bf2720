package diag

import (
	"testing"

	"vexcheck/internal/source"
)

func TestBagLimit(t *testing.T) {
	bag := NewBag(2)
	if !bag.Add(NewError(OwnUseAfterMove, source.Span{}, "one")) {
		t.Fatal("first add should succeed")
	}
	if !bag.Add(NewError(OwnUseAfterMove, source.Span{}, "two")) {
		t.Fatal("second add should succeed")
	}
	if bag.Add(NewError(OwnUseAfterMove, source.Span{}, "three")) {
		t.Fatal("third add should be dropped at the limit")
	}
	if bag.Len() != 2 {
		t.Fatalf("Len = %d, want 2", bag.Len())
	}
}

func TestBagSortDeterministic(t *testing.T) {
	bag := NewBag(10)
	bag.Add(NewError(OwnUseAfterMove, source.Span{File: 1, Start: 20, End: 21}, "later"))
	bag.Add(NewError(OwnImmutableAssignment, source.Span{File: 1, Start: 5, End: 6}, "earlier"))
	bag.Add(New(SevWarning, OwnInfo, source.Span{File: 0, Start: 0, End: 0}, "first file"))
	bag.Sort()

	items := bag.Items()
	if items[0].Message != "first file" || items[1].Message != "earlier" || items[2].Message != "later" {
		t.Fatalf("unexpected order: %q, %q, %q", items[0].Message, items[1].Message, items[2].Message)
	}
}

func TestBagMergeGrowsLimit(t *testing.T) {
	a := NewBag(1)
	a.Add(NewError(OwnUseAfterMove, source.Span{}, "a"))
	b := NewBag(1)
	b.Add(NewError(OwnMoveWhileBorrowed, source.Span{}, "b"))

	a.Merge(b)
	if a.Len() != 2 {
		t.Fatalf("merged Len = %d, want 2", a.Len())
	}
	if a.ErrorCount() != 2 {
		t.Fatalf("ErrorCount = %d, want 2", a.ErrorCount())
	}
}

func TestDedupReporterSuppressesRepeats(t *testing.T) {
	bag := NewBag(10)
	r := NewDedupReporter(BagReporter{Bag: bag})
	span := source.Span{File: 1, Start: 3, End: 4}

	r.Report(OwnUseAfterMove, SevError, span, "use of moved value `a`", nil, nil)
	r.Report(OwnUseAfterMove, SevError, span, "use of moved value `a`", nil, nil)
	r.Report(OwnUseAfterMove, SevError, span, "use of moved value `b`", nil, nil)

	if bag.Len() != 2 {
		t.Fatalf("Len = %d, want 2 (exact repeat suppressed)", bag.Len())
	}
}

func TestCodeIDBlocks(t *testing.T) {
	if got := OwnUseAfterMove.ID(); got != "OWN4010" {
		t.Fatalf("ID = %q", got)
	}
	if got := IOLoadFileError.ID(); got != "IO5001" {
		t.Fatalf("ID = %q", got)
	}
	if !OwnMutableWhileImmutablyBorrowed.IsBorrowConflict() {
		t.Fatal("expected borrow conflict classification")
	}
	if OwnMutationWhileBorrowed.IsBorrowConflict() {
		t.Fatal("mutation-while-borrowed is not a borrow conflict code")
	}
}
