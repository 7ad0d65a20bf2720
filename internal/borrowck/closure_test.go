package borrowck

import (
	"testing"

	"vexcheck/internal/diag"
	"vexcheck/internal/ir"
)

func TestClosureReadCaptureIsReadOnlyCallable(t *testing.T) {
	m := newTestModule()
	clo := m.mod.Exprs.NewClosure(m.span(), m.funcT, ir.ExprClosureData{
		Body: m.block(
			m.exprStmt(m.ident("x", m.intT)),
		),
	})
	body := m.block(
		m.let("x", false, m.intT, m.intLit()),
		m.let("f", false, m.funcT, clo),
	)
	m.fn("main", body)

	res, bag := m.check(t, Options{})
	wantClean(t, bag)
	got, ok := res.Capability(clo)
	if !ok {
		t.Fatalf("closure %d was not analyzed", clo)
	}
	if got != ReadOnlyCallable {
		t.Fatalf("capability = %v, want %v", got, ReadOnlyCallable)
	}
}

func TestClosureWriteCaptureIsMutableCallable(t *testing.T) {
	m := newTestModule()
	clo := m.mod.Exprs.NewClosure(m.span(), m.funcT, ir.ExprClosureData{
		Body: m.block(
			m.assign(m.ident("x", m.intT), m.intLit()),
		),
	})
	body := m.block(
		m.let("x", true, m.intT, m.intLit()),
		m.let("f", false, m.funcT, clo),
	)
	m.fn("main", body)

	res, bag := m.check(t, Options{})
	wantClean(t, bag)
	got, ok := res.Capability(clo)
	if !ok {
		t.Fatalf("closure %d was not analyzed", clo)
	}
	if got != MutableCallable {
		t.Fatalf("capability = %v, want %v", got, MutableCallable)
	}
}

func TestClosureConsumingCaptureIsOneShot(t *testing.T) {
	m := newTestModule()
	clo := m.mod.Exprs.NewClosure(m.span(), m.funcT, ir.ExprClosureData{
		Body: m.block(
			m.let("y", false, m.strT, m.ident("s", m.strT)),
		),
	})
	body := m.block(
		m.let("s", false, m.strT, m.strLit()),
		m.let("f", false, m.funcT, clo),
	)
	m.fn("main", body)

	res, bag := m.check(t, Options{})
	wantClean(t, bag)
	got, ok := res.Capability(clo)
	if !ok {
		t.Fatalf("closure %d was not analyzed", clo)
	}
	if got != OneShotCallable {
		t.Fatalf("capability = %v, want %v", got, OneShotCallable)
	}
}

func TestClosureParametersAreNotCaptures(t *testing.T) {
	m := newTestModule()
	clo := m.mod.Exprs.NewClosure(m.span(), m.funcT, ir.ExprClosureData{
		Params: []ir.Param{{Name: "v", Type: m.strT, Span: m.span()}},
		Body: m.block(
			m.let("y", false, m.strT, m.ident("v", m.strT)),
		),
	})
	body := m.block(
		m.let("f", false, m.funcT, clo),
	)
	m.fn("main", body)

	res, bag := m.check(t, Options{})
	wantClean(t, bag)
	got, ok := res.Capability(clo)
	if !ok {
		t.Fatalf("closure %d was not analyzed", clo)
	}
	if got != ReadOnlyCallable {
		t.Fatalf("capability = %v, want %v", got, ReadOnlyCallable)
	}
}

func TestClosureConsumesCapturedBindingInEnclosingScope(t *testing.T) {
	m := newTestModule()
	clo := m.mod.Exprs.NewClosure(m.span(), m.funcT, ir.ExprClosureData{
		Body: m.block(
			m.let("y", false, m.strT, m.ident("s", m.strT)),
		),
	})
	body := m.block(
		m.let("s", false, m.strT, m.strLit()),
		m.let("f", false, m.funcT, clo),
		m.let("u", false, m.strT, m.ident("s", m.strT)),
	)
	m.fn("main", body)

	_, bag := m.check(t, Options{})
	if !hasCode(bag, diag.OwnUseAfterMove) {
		t.Fatalf("expected use-after-move after by-move capture, got %v", codesOf(bag))
	}
}

func TestClosureMutCaptureConflictsWithSharedBorrow(t *testing.T) {
	m := newTestModule()
	clo := m.mod.Exprs.NewClosure(m.span(), m.funcT, ir.ExprClosureData{
		Body: m.block(
			m.assign(m.ident("s", m.strT), m.strLit()),
		),
	})
	body := m.block(
		m.let("s", true, m.strT, m.strLit()),
		m.let("r", false, m.refStrT, m.ref(m.refStrT, m.ident("s", m.strT))),
		m.let("f", false, m.funcT, clo),
	)
	m.fn("main", body)

	_, bag := m.check(t, Options{})
	if !hasCode(bag, diag.OwnMutableWhileImmutablyBorrowed) {
		t.Fatalf("expected capture conflict with live shared borrow, got %v", codesOf(bag))
	}
}

func TestClosureMoveCaptureWhileBorrowed(t *testing.T) {
	m := newTestModule()
	clo := m.mod.Exprs.NewClosure(m.span(), m.funcT, ir.ExprClosureData{
		Body: m.block(
			m.let("y", false, m.strT, m.ident("s", m.strT)),
		),
	})
	body := m.block(
		m.let("s", false, m.strT, m.strLit()),
		m.let("r", false, m.refStrT, m.ref(m.refStrT, m.ident("s", m.strT))),
		m.let("f", false, m.funcT, clo),
	)
	m.fn("main", body)

	_, bag := m.check(t, Options{})
	if !hasCode(bag, diag.OwnMoveWhileBorrowed) {
		t.Fatalf("expected move-while-borrowed on by-move capture, got %v", codesOf(bag))
	}
}

func TestCaptureModeCapabilityMapping(t *testing.T) {
	cases := []struct {
		mode CaptureMode
		want Capability
	}{
		{CaptureByRef, ReadOnlyCallable},
		{CaptureByMutRef, MutableCallable},
		{CaptureByMove, OneShotCallable},
	}
	for _, tc := range cases {
		if got := tc.mode.Capability(); got != tc.want {
			t.Errorf("%v.Capability() = %v, want %v", tc.mode, got, tc.want)
		}
	}
}
