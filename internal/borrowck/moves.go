package borrowck

import (
	"context"
	"fmt"

	"vexcheck/internal/diag"
	"vexcheck/internal/ir"
	"vexcheck/internal/scope"
	"vexcheck/internal/source"
)

// moves is phase 2: a single forward pass per function maintaining ownership
// state per binding, intersecting at control-flow joins. Loop bodies are
// walked twice so back-edge effects surface; the dedup reporter suppresses
// the repeats.
type moves struct {
	mod      *ir.Module
	reporter diag.Reporter
	oracle   ir.CopyOracle
	tbl      *scope.Table
	state    ownMap
}

func newMoves(mod *ir.Module, reporter diag.Reporter, oracle ir.CopyOracle) *moves {
	return &moves{
		mod:    mod,
		oracle: oracle,
		// Loop bodies are re-walked; duplicates must not reach the sink.
		reporter: diag.NewDedupReporter(reporter),
	}
}

func (c *moves) checkModule(ctx context.Context) error {
	var errs []error
	funcs := c.mod.Funcs
	for i := uint32(1); i <= funcs.Len(); i++ {
		if ctx.Err() != nil {
			break
		}
		id := ir.FuncID(i)
		if err := guard(func() { c.checkFunc(id) }); err != nil {
			errs = append(errs, fmt.Errorf("moves: %s: %w", funcs.Get(id).Name, err))
		}
	}
	return joinErrs(errs)
}

func (c *moves) checkFunc(id ir.FuncID) {
	fn := c.mod.Funcs.Get(id)
	if fn == nil || !fn.Body.IsValid() {
		return
	}
	c.tbl = newFunctionTable(c.mod)
	c.state = make(ownMap)

	fnScope := c.tbl.Enter(scope.ScopeFunction)
	if fn.Receiver != nil {
		c.tbl.Declare(fn.Receiver.Name, true, fn.Receiver.Type, fn.Receiver.Span)
	}
	for _, p := range fn.Params {
		c.tbl.Declare(p.Name, true, p.Type, p.Span)
	}
	c.stmt(fn.Body)
	c.tbl.Exit(fnScope)
}

// tracked reports whether the binding participates in move tracking:
// Copy-classified values are implicitly duplicated, module-level names
// never relinquish ownership.
func (c *moves) tracked(id scope.BindingID) bool {
	if moduleBinding(c.tbl, id) {
		return false
	}
	b := c.tbl.Binding(id)
	return !c.oracle.IsCopy(b.Type)
}

func (c *moves) stmt(id ir.StmtID) {
	st := c.mod.Stmts.Get(id)
	if st == nil {
		invariant("missing statement %d", id)
	}
	switch st.Kind {
	case ir.StmtBlock:
		data, _ := c.mod.Stmts.Block(id)
		sc := c.tbl.Enter(scope.ScopeBlock)
		for _, child := range data.Stmts {
			c.stmt(child)
		}
		c.tbl.Exit(sc)

	case ir.StmtLet:
		data, _ := c.mod.Stmts.Let(id)
		if data.Init.IsValid() {
			c.expr(data.Init, true)
		}
		bid := c.tbl.Declare(data.Name, data.Mutable, data.Type, st.Span)
		if !c.tracked(bid) {
			return
		}
		if data.Init.IsValid() {
			delete(c.state, bid)
		} else {
			// Uninitialized slot: any use fails until assigned on every path.
			c.state[bid] = ownState{kind: StateMoved, movedAt: st.Span}
		}

	case ir.StmtAssign:
		data, _ := c.mod.Stmts.Assign(id)
		c.expr(data.Value, true)
		c.assignTarget(data.Target)

	case ir.StmtExpr:
		data, _ := c.mod.Stmts.Expr(id)
		c.expr(data.Expr, false)

	case ir.StmtReturn:
		data, _ := c.mod.Stmts.Return(id)
		if data.Value.IsValid() {
			c.expr(data.Value, true)
		}

	case ir.StmtIf:
		data, _ := c.mod.Stmts.If(id)
		c.expr(data.Cond, false)
		entry := c.state.clone()
		c.stmt(data.Then)
		afterThen := c.state
		c.state = entry
		if data.Else.IsValid() {
			c.stmt(data.Else)
		}
		c.state = intersect(afterThen, c.state)

	case ir.StmtWhile:
		data, _ := c.mod.Stmts.While(id)
		c.expr(data.Cond, false)
		entry := c.state.clone()
		c.stmt(data.Body)
		// Back edge: a later iteration observes the body's effects.
		merged := intersect(entry, c.state)
		c.state = merged.clone()
		c.expr(data.Cond, false)
		c.stmt(data.Body)
		c.state = intersect(merged, c.state)

	default:
		invariant("unknown statement kind %d", st.Kind)
	}
}

// assignTarget restores ownership where the write lands: reassignment
// through a mutable binding resets it to Owned (phase 1 already rejected
// writes through immutable bindings).
func (c *moves) assignTarget(id ir.ExprID) {
	expr := c.mod.Exprs.Get(id)
	if expr == nil {
		invariant("missing assignment target %d", id)
	}
	switch expr.Kind {
	case ir.ExprIdent:
		bid := identBinding(c.mod, c.tbl, id)
		delete(c.state, bid)

	case ir.ExprField:
		data, _ := c.mod.Exprs.Field(id)
		place := resolvePlace(c.mod, c.tbl, id)
		if !place.IsValid() || place.Field == "" {
			return
		}
		st, ok := c.state[place.Binding]
		if !ok || st.kind != StatePartiallyMoved {
			return
		}
		delete(st.movedFields, data.Name)
		if len(st.movedFields) == 0 {
			delete(c.state, place.Binding)
		} else {
			c.state[place.Binding] = st
		}

	case ir.ExprIndex:
		data, _ := c.mod.Exprs.Index(id)
		c.expr(data.Object, false)
		c.expr(data.Index, false)

	case ir.ExprUnary:
		data, _ := c.mod.Exprs.Unary(id)
		c.expr(data.Operand, false)
	}
}

// expr walks an expression; consume marks a context that takes ownership of
// the yielded value (let initializer, assignment RHS, owning argument,
// aggregate field, returned value).
func (c *moves) expr(id ir.ExprID, consume bool) {
	expr := c.mod.Exprs.Get(id)
	if expr == nil {
		invariant("missing expression %d", id)
	}
	switch expr.Kind {
	case ir.ExprIdent:
		c.useIdent(id, expr, consume)

	case ir.ExprLit:
		// Nothing to track.

	case ir.ExprUnary:
		data, _ := c.mod.Exprs.Unary(id)
		// Borrowing reads the place but never transfers ownership.
		c.expr(data.Operand, false)

	case ir.ExprBinary:
		data, _ := c.mod.Exprs.Binary(id)
		c.expr(data.Left, false)
		c.expr(data.Right, false)

	case ir.ExprCall:
		data, _ := c.mod.Exprs.Call(id)
		if data.Receiver.IsValid() {
			// Methods borrow their receiver.
			c.expr(data.Receiver, false)
		}
		for _, arg := range data.Args {
			c.expr(arg, c.argConsumes(arg))
		}

	case ir.ExprField:
		c.useField(id, expr, consume)

	case ir.ExprIndex:
		data, _ := c.mod.Exprs.Index(id)
		c.expr(data.Object, false)
		c.expr(data.Index, false)

	case ir.ExprStruct:
		data, _ := c.mod.Exprs.Struct(id)
		for _, f := range data.Fields {
			c.expr(f.Value, true)
		}

	case ir.ExprClosure:
		data, _ := c.mod.Exprs.Closure(id)
		sc := c.tbl.Enter(scope.ScopeClosure)
		for _, p := range data.Params {
			c.tbl.Declare(p.Name, true, p.Type, p.Span)
		}
		// The closure body shares the enclosing state: a consuming use of a
		// captured binding moves it out of the enclosing function.
		c.stmt(data.Body)
		c.tbl.Exit(sc)

	case ir.ExprCast:
		data, _ := c.mod.Exprs.Cast(id)
		c.expr(data.Value, false)

	default:
		invariant("unknown expression kind %d", expr.Kind)
	}
}

// argConsumes decides whether passing arg transfers ownership: by-value
// passing of a non-Copy value is a move, reference-typed arguments borrow.
func (c *moves) argConsumes(arg ir.ExprID) bool {
	expr := c.mod.Exprs.Get(arg)
	if expr == nil {
		return false
	}
	ty := c.mod.Types.Get(expr.Type)
	if ty != nil && (ty.Kind == ir.TypeRef || ty.Kind == ir.TypeRawPtr) {
		return false
	}
	return true
}

func (c *moves) useIdent(id ir.ExprID, expr *ir.Expr, consume bool) {
	bid := identBinding(c.mod, c.tbl, id)
	if !c.tracked(bid) {
		return
	}
	b := c.tbl.Binding(bid)
	st, ok := c.state[bid]
	if ok {
		switch st.kind {
		case StateMoved:
			diag.ReportError(c.reporter, diag.OwnUseAfterMove, expr.Span,
				fmt.Sprintf("use of moved value `%s`", b.Name)).
				WithNote(st.movedAt, "value moved here").
				Emit()
			return
		case StatePartiallyMoved:
			d := diag.ReportError(c.reporter, diag.OwnUseOfPartiallyMovedValue, expr.Span,
				fmt.Sprintf("use of partially moved value `%s`", b.Name))
			for name, span := range st.movedFields {
				d.WithNote(span, fmt.Sprintf("field `%s` moved here", name))
			}
			d.Emit()
			return
		}
	}
	if consume {
		c.state[bid] = ownState{kind: StateMoved, movedAt: expr.Span}
	}
}

func (c *moves) useField(id ir.ExprID, expr *ir.Expr, consume bool) {
	data, _ := c.mod.Exprs.Field(id)
	c.checkFieldObject(data.Object)

	place := resolvePlace(c.mod, c.tbl, id)
	if !place.IsValid() || place.Field == "" || !c.tracked(place.Binding) {
		return
	}
	b := c.tbl.Binding(place.Binding)
	st, tracked := c.state[place.Binding]
	if tracked && st.kind == StateMoved {
		// Already reported as a whole-value use by checkFieldObject.
		return
	}
	if tracked && st.kind == StatePartiallyMoved {
		if movedAt, moved := st.movedFields[place.Field]; moved {
			diag.ReportError(c.reporter, diag.OwnUseAfterMove, expr.Span,
				fmt.Sprintf("use of moved field `%s.%s`", b.Name, place.Field)).
				WithNote(movedAt, "field moved here").
				Emit()
			return
		}
	}
	if !consume || c.oracle.IsCopy(expr.Type) {
		return
	}
	// Extracting one field marks only that field moved.
	if st.movedFields == nil {
		st = ownState{kind: StatePartiallyMoved, movedFields: make(map[string]source.Span)}
	}
	st.kind = StatePartiallyMoved
	st.movedFields[place.Field] = expr.Span
	c.state[place.Binding] = st
}

// checkFieldObject validates the base of a field access without treating
// it as a whole-value use: s.b after a partial move of s.a must stay legal,
// while any access through a fully moved binding must fail.
func (c *moves) checkFieldObject(id ir.ExprID) {
	expr := c.mod.Exprs.Get(id)
	if expr == nil {
		return
	}
	if expr.Kind != ir.ExprIdent {
		c.expr(id, false)
		return
	}
	bid := identBinding(c.mod, c.tbl, id)
	if !c.tracked(bid) {
		return
	}
	if st, ok := c.state[bid]; ok && st.kind == StateMoved {
		b := c.tbl.Binding(bid)
		diag.ReportError(c.reporter, diag.OwnUseAfterMove, expr.Span,
			fmt.Sprintf("use of moved value `%s`", b.Name)).
			WithNote(st.movedAt, "value moved here").
			Emit()
	}
}
