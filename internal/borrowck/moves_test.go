package borrowck

import (
	"testing"

	"vexcheck/internal/diag"
	"vexcheck/internal/ir"
)

func TestUseAfterMove(t *testing.T) {
	m := newTestModule()
	body := m.block(
		m.let("a", false, m.strT, m.strLit()),
		m.let("b", false, m.strT, m.ident("a", m.strT)),
		m.let("c", false, m.strT, m.ident("a", m.strT)),
	)
	m.fn("f", body)

	_, bag := m.check(t, Options{})
	wantOnly(t, bag, diag.OwnUseAfterMove)
}

func TestCopyTypesAreNeverMoved(t *testing.T) {
	m := newTestModule()
	body := m.block(
		m.let("a", false, m.intT, m.intLit()),
		m.let("b", false, m.intT, m.ident("a", m.intT)),
		m.let("c", false, m.intT, m.ident("a", m.intT)),
	)
	m.fn("f", body)

	_, bag := m.check(t, Options{})
	wantClean(t, bag)
}

func TestReassignmentRestoresOwnership(t *testing.T) {
	m := newTestModule()
	body := m.block(
		m.let("a", true, m.strT, m.strLit()),
		m.let("b", false, m.strT, m.ident("a", m.strT)),
		m.assign(m.ident("a", m.strT), m.strLit()),
		m.let("c", false, m.strT, m.ident("a", m.strT)),
	)
	m.fn("f", body)

	_, bag := m.check(t, Options{})
	wantClean(t, bag)
}

func TestMoveInOneBranchPoisonsJoin(t *testing.T) {
	m := newTestModule()
	then := m.block(
		m.let("b", false, m.strT, m.ident("a", m.strT)),
	)
	body := m.block(
		m.let("a", false, m.strT, m.strLit()),
		m.mod.Stmts.NewIf(m.span(), m.boolLit(), then, ir.NoStmtID),
		m.let("c", false, m.strT, m.ident("a", m.strT)),
	)
	m.fn("f", body)

	_, bag := m.check(t, Options{})
	wantOnly(t, bag, diag.OwnUseAfterMove)
}

func TestMoveRestoredOnBothBranches(t *testing.T) {
	m := newTestModule()
	then := m.block(
		m.let("b", false, m.strT, m.ident("a", m.strT)),
		m.assign(m.ident("a", m.strT), m.strLit()),
	)
	els := m.block(
		m.assign(m.ident("a", m.strT), m.strLit()),
	)
	body := m.block(
		m.let("a", true, m.strT, m.strLit()),
		m.mod.Stmts.NewIf(m.span(), m.boolLit(), then, els),
		m.let("c", false, m.strT, m.ident("a", m.strT)),
	)
	m.fn("f", body)

	_, bag := m.check(t, Options{})
	wantClean(t, bag)
}

func TestMoveInLoopBodySurfacesOnBackEdge(t *testing.T) {
	m := newTestModule()
	loopBody := m.block(
		m.let("b", false, m.strT, m.ident("a", m.strT)),
	)
	body := m.block(
		m.let("a", false, m.strT, m.strLit()),
		m.mod.Stmts.NewWhile(m.span(), m.boolLit(), loopBody),
	)
	m.fn("f", body)

	_, bag := m.check(t, Options{})
	wantOnly(t, bag, diag.OwnUseAfterMove)
}

func TestPartialMoveAllowsSiblingField(t *testing.T) {
	m := newTestModule()
	body := m.block(
		m.let("p", false, m.pairT, m.strLit()),
		m.let("x", false, m.strT, m.field(m.strT, m.ident("p", m.pairT), "a")),
		m.let("y", false, m.strT, m.field(m.strT, m.ident("p", m.pairT), "b")),
	)
	m.fn("f", body)

	_, bag := m.check(t, Options{})
	wantClean(t, bag)
}

func TestPartialMoveRejectsWholeUse(t *testing.T) {
	m := newTestModule()
	body := m.block(
		m.let("p", false, m.pairT, m.strLit()),
		m.let("x", false, m.strT, m.field(m.strT, m.ident("p", m.pairT), "a")),
		m.let("q", false, m.pairT, m.ident("p", m.pairT)),
	)
	m.fn("f", body)

	_, bag := m.check(t, Options{})
	wantOnly(t, bag, diag.OwnUseOfPartiallyMovedValue)
}

func TestPartialMoveRejectsMovedField(t *testing.T) {
	m := newTestModule()
	body := m.block(
		m.let("p", false, m.pairT, m.strLit()),
		m.let("x", false, m.strT, m.field(m.strT, m.ident("p", m.pairT), "a")),
		m.let("y", false, m.strT, m.field(m.strT, m.ident("p", m.pairT), "a")),
	)
	m.fn("f", body)

	_, bag := m.check(t, Options{})
	wantOnly(t, bag, diag.OwnUseAfterMove)
}

func TestFieldReassignmentClearsPartialMove(t *testing.T) {
	m := newTestModule()
	body := m.block(
		m.let("p", true, m.pairT, m.strLit()),
		m.let("x", false, m.strT, m.field(m.strT, m.ident("p", m.pairT), "a")),
		m.assign(m.field(m.strT, m.ident("p", m.pairT), "a"), m.strLit()),
		m.let("q", false, m.pairT, m.ident("p", m.pairT)),
	)
	m.fn("f", body)

	_, bag := m.check(t, Options{})
	wantClean(t, bag)
}

func TestUninitializedBindingIsMovedFrom(t *testing.T) {
	m := newTestModule()
	body := m.block(
		m.let("x", true, m.strT, ir.NoExprID),
		m.let("y", false, m.strT, m.ident("x", m.strT)),
	)
	m.fn("f", body)

	_, bag := m.check(t, Options{})
	wantOnly(t, bag, diag.OwnUseAfterMove)
}

func TestUninitializedBindingAssignedBeforeUse(t *testing.T) {
	m := newTestModule()
	body := m.block(
		m.let("x", true, m.strT, ir.NoExprID),
		m.assign(m.ident("x", m.strT), m.strLit()),
		m.let("y", false, m.strT, m.ident("x", m.strT)),
	)
	m.fn("f", body)

	_, bag := m.check(t, Options{})
	wantClean(t, bag)
}

func TestArgumentPassingByValueMoves(t *testing.T) {
	m := newTestModule()
	take := m.mod.Funcs.New(ir.Func{
		Name:   "take",
		Params: []ir.Param{{Name: "v", Type: m.strT, Span: m.span()}},
		Ret:    m.unitT,
		Span:   m.span(),
	})
	call := m.mod.Exprs.NewCall(m.span(), m.unitT, ir.ExprCallData{
		Callee: "take",
		Func:   take,
		Args:   []ir.ExprID{m.ident("a", m.strT)},
	})
	body := m.block(
		m.let("a", false, m.strT, m.strLit()),
		m.exprStmt(call),
		m.let("b", false, m.strT, m.ident("a", m.strT)),
	)
	m.fn("f", body)

	_, bag := m.check(t, Options{})
	wantOnly(t, bag, diag.OwnUseAfterMove)
}

func TestReferenceArgumentDoesNotMove(t *testing.T) {
	m := newTestModule()
	peek := m.mod.Funcs.New(ir.Func{
		Name:   "peek",
		Params: []ir.Param{{Name: "v", Type: m.refStrT, Span: m.span()}},
		Ret:    m.unitT,
		Span:   m.span(),
	})
	call := m.mod.Exprs.NewCall(m.span(), m.unitT, ir.ExprCallData{
		Callee: "peek",
		Func:   peek,
		Args:   []ir.ExprID{m.ref(m.refStrT, m.ident("a", m.strT))},
	})
	body := m.block(
		m.let("a", false, m.strT, m.strLit()),
		m.exprStmt(call),
		m.let("b", false, m.strT, m.ident("a", m.strT)),
	)
	m.fn("f", body)

	_, bag := m.check(t, Options{})
	wantClean(t, bag)
}
