package borrowck

import (
	"context"
	"errors"
	"testing"

	"vexcheck/internal/diag"
)

func TestCheckPassGatesOnErrors(t *testing.T) {
	m := newTestModule()
	body := m.block(
		m.let("x", false, m.intT, m.intLit()),
		m.assign(m.ident("x", m.intT), m.intLit()),
	)
	m.fn("f", body)

	res, bag := m.check(t, Options{})
	if res.Pass() {
		t.Fatal("Pass() = true with error diagnostics present")
	}
	if res.ErrorCount() != int64(bag.ErrorCount()) {
		t.Fatalf("ErrorCount() = %d, bag has %d", res.ErrorCount(), bag.ErrorCount())
	}
}

func TestCheckPassOnCleanModule(t *testing.T) {
	m := newTestModule()
	body := m.block(
		m.let("x", true, m.intT, m.intLit()),
		m.assign(m.ident("x", m.intT), m.intLit()),
	)
	m.fn("f", body)

	res, bag := m.check(t, Options{})
	wantClean(t, bag)
	if !res.Pass() {
		t.Fatal("Pass() = false on a clean module")
	}
}

// All phases report into one run: an immutability error must not suppress an
// independent move error elsewhere.
func TestAllPhasesReportInOneRun(t *testing.T) {
	m := newTestModule()
	body := m.block(
		m.let("x", false, m.intT, m.intLit()),
		m.assign(m.ident("x", m.intT), m.intLit()),
		m.let("a", false, m.strT, m.strLit()),
		m.let("b", false, m.strT, m.ident("a", m.strT)),
		m.let("c", false, m.strT, m.ident("a", m.strT)),
	)
	m.fn("f", body)

	_, bag := m.check(t, Options{})
	if !hasCode(bag, diag.OwnImmutableAssignment) || !hasCode(bag, diag.OwnUseAfterMove) {
		t.Fatalf("expected both phase 1 and phase 2 findings, got %v", codesOf(bag))
	}
}

// Check never mutates the module: a second run over the same tree yields the
// same diagnostics.
func TestCheckIsIdempotent(t *testing.T) {
	m := newTestModule()
	body := m.block(
		m.let("s", false, m.strT, m.strLit()),
		m.let("r", false, m.refStrT, m.ref(m.refStrT, m.ident("s", m.strT))),
		m.let("u", false, m.strT, m.ident("s", m.strT)),
	)
	m.fn("f", body)

	_, first := m.check(t, Options{})
	_, second := m.check(t, Options{})
	a, b := codesOf(first), codesOf(second)
	if len(a) != len(b) {
		t.Fatalf("run 1 produced %v, run 2 produced %v", a, b)
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("run 1 produced %v, run 2 produced %v", a, b)
		}
	}
}

// A cancelled context stops the run at the next function boundary and
// surfaces context.Canceled, keeping it apart from invariant violations.
func TestCheckStopsOnCancelledContext(t *testing.T) {
	m := newTestModule()
	body := m.block(
		m.let("x", false, m.intT, m.intLit()),
		m.assign(m.ident("x", m.intT), m.intLit()),
	)
	m.fn("f", body)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	bag := diag.NewBag(64)
	_, err := Check(ctx, m.mod, Options{Reporter: diag.BagReporter{Bag: bag}})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if bag.Len() != 0 {
		t.Fatalf("cancelled run still reported %v", codesOf(bag))
	}
}

func TestCustomBuiltinRegistry(t *testing.T) {
	reg := NewBuiltinRegistry()
	if _, ok := reg.Get("push"); !ok {
		t.Fatal("expected push in the default registry")
	}
	if !reg.IsUnsafe("alloc") {
		t.Fatal("alloc must be in the unsafe family")
	}
	if reg.IsUnsafe("print") {
		t.Fatal("print must not be in the unsafe family")
	}
}
