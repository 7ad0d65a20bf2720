package borrowck

import (
	"context"
	"testing"

	"vexcheck/internal/diag"
	"vexcheck/internal/ir"
	"vexcheck/internal/source"
)

// testModule wraps an ir.Module with a pre-registered type palette and
// monotonically increasing spans so every node is distinguishable in
// dedup keys and diagnostics.
type testModule struct {
	mod  *ir.Module
	next uint32

	unitT      ir.TypeID
	boolT      ir.TypeID
	intT       ir.TypeID
	strT       ir.TypeID // non-Copy
	pairT      ir.TypeID // struct { a, b: str }, non-Copy
	refStrT    ir.TypeID
	refMutStrT ir.TypeID
	refPairT   ir.TypeID
	rawPtrT    ir.TypeID
	holderT    ir.TypeID // struct { r: &str }, region-carrying
	funcT      ir.TypeID
}

func newTestModule() *testModule {
	mod := ir.NewModule("fixture", ir.Hints{})
	m := &testModule{mod: mod}
	m.unitT = mod.Types.Add(ir.Type{Kind: ir.TypeUnit})
	m.boolT = mod.Types.Add(ir.Type{Kind: ir.TypeBool})
	m.intT = mod.Types.Add(ir.Type{Kind: ir.TypeInt})
	m.strT = mod.Types.Add(ir.Type{Kind: ir.TypeString})
	m.pairT = mod.Types.Add(ir.Type{Kind: ir.TypeStruct, Name: "Pair", Fields: []ir.Field{
		{Name: "a", Type: m.strT},
		{Name: "b", Type: m.strT},
	}})
	m.refStrT = mod.Types.Add(ir.Type{Kind: ir.TypeRef, Elem: m.strT})
	m.refMutStrT = mod.Types.Add(ir.Type{Kind: ir.TypeRef, Elem: m.strT, Mut: true})
	m.refPairT = mod.Types.Add(ir.Type{Kind: ir.TypeRef, Elem: m.pairT})
	m.rawPtrT = mod.Types.Add(ir.Type{Kind: ir.TypeRawPtr, Elem: m.intT})
	m.holderT = mod.Types.Add(ir.Type{Kind: ir.TypeStruct, Name: "Holder", Fields: []ir.Field{
		{Name: "r", Type: m.refStrT},
	}})
	m.funcT = mod.Types.Add(ir.Type{Kind: ir.TypeFunc})
	return m
}

func (m *testModule) span() source.Span {
	m.next += 4
	return source.Span{File: 1, Start: m.next, End: m.next + 2}
}

func (m *testModule) ident(name string, ty ir.TypeID) ir.ExprID {
	return m.mod.Exprs.NewIdent(m.span(), ty, name)
}

func (m *testModule) strLit() ir.ExprID {
	return m.mod.Exprs.NewLiteral(m.span(), m.strT, ir.ExprLitString, "s")
}

func (m *testModule) intLit() ir.ExprID {
	return m.mod.Exprs.NewLiteral(m.span(), m.intT, ir.ExprLitInt, "1")
}

func (m *testModule) boolLit() ir.ExprID {
	return m.mod.Exprs.NewLiteral(m.span(), m.boolT, ir.ExprLitBool, "true")
}

func (m *testModule) let(name string, mutable bool, ty ir.TypeID, init ir.ExprID) ir.StmtID {
	return m.mod.Stmts.NewLet(m.span(), ir.StmtLetData{
		Name: name, Mutable: mutable, Type: ty, Init: init,
	})
}

func (m *testModule) assign(target, value ir.ExprID) ir.StmtID {
	return m.mod.Stmts.NewAssign(m.span(), target, value)
}

func (m *testModule) block(stmts ...ir.StmtID) ir.StmtID {
	return m.mod.Stmts.NewBlock(m.span(), ir.StmtBlockData{Stmts: stmts})
}

func (m *testModule) unsafeBlock(stmts ...ir.StmtID) ir.StmtID {
	return m.mod.Stmts.NewBlock(m.span(), ir.StmtBlockData{Stmts: stmts, Unsafe: true})
}

func (m *testModule) exprStmt(e ir.ExprID) ir.StmtID {
	return m.mod.Stmts.NewExpr(m.span(), e)
}

func (m *testModule) ret(value ir.ExprID) ir.StmtID {
	return m.mod.Stmts.NewReturn(m.span(), value)
}

func (m *testModule) ref(ty ir.TypeID, operand ir.ExprID) ir.ExprID {
	return m.mod.Exprs.NewUnary(m.span(), ty, ir.ExprUnaryRef, operand)
}

func (m *testModule) refMut(ty ir.TypeID, operand ir.ExprID) ir.ExprID {
	return m.mod.Exprs.NewUnary(m.span(), ty, ir.ExprUnaryRefMut, operand)
}

func (m *testModule) deref(ty ir.TypeID, operand ir.ExprID) ir.ExprID {
	return m.mod.Exprs.NewUnary(m.span(), ty, ir.ExprUnaryDeref, operand)
}

func (m *testModule) field(ty ir.TypeID, object ir.ExprID, name string) ir.ExprID {
	return m.mod.Exprs.NewField(m.span(), ty, object, name)
}

// fn registers a void free function with the given body.
func (m *testModule) fn(name string, body ir.StmtID, params ...ir.Param) ir.FuncID {
	return m.mod.Funcs.New(ir.Func{
		Name:   name,
		Params: params,
		Ret:    m.unitT,
		Body:   body,
		Span:   m.span(),
	})
}

func (m *testModule) param(name string, ty ir.TypeID) ir.Param {
	return ir.Param{Name: name, Type: ty, Span: m.span()}
}

// check runs all phases over the accumulated module.
func (m *testModule) check(t *testing.T, opts Options) (*Result, *diag.Bag) {
	t.Helper()
	bag := diag.NewBag(64)
	opts.Reporter = diag.BagReporter{Bag: bag}
	res, err := Check(context.Background(), m.mod, opts)
	if err != nil {
		t.Fatalf("Check: unexpected internal error: %v", err)
	}
	return res, bag
}

func codesOf(bag *diag.Bag) []diag.Code {
	items := bag.Items()
	codes := make([]diag.Code, len(items))
	for i, d := range items {
		codes[i] = d.Code
	}
	return codes
}

func hasCode(bag *diag.Bag, code diag.Code) bool {
	for _, d := range bag.Items() {
		if d.Code == code {
			return true
		}
	}
	return false
}

func wantOnly(t *testing.T, bag *diag.Bag, want ...diag.Code) {
	t.Helper()
	got := codesOf(bag)
	if len(got) != len(want) {
		t.Fatalf("diagnostics = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("diagnostics = %v, want %v", got, want)
		}
	}
}

func wantClean(t *testing.T, bag *diag.Bag) {
	t.Helper()
	if bag.Len() != 0 {
		t.Fatalf("expected no diagnostics, got %v: %v", codesOf(bag), bag.Items())
	}
}
