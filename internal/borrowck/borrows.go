package borrowck

import (
	"context"
	"fmt"

	"vexcheck/internal/diag"
	"vexcheck/internal/ir"
	"vexcheck/internal/scope"
	"vexcheck/internal/source"
)

// borrows is phase 3: track the live borrow set per binding and enforce
// many-readers-xor-one-writer. Borrows end per the configured release
// strategy; the v1 lexical policy hooks scope exit. Closures are analyzed
// at their definition site: captured bindings are borrowed (or moved)
// according to how the body uses them.
type borrows struct {
	mod      *ir.Module
	reporter diag.Reporter
	oracle   ir.CopyOracle
	builtins *BuiltinRegistry
	release  ReleaseStrategy

	tbl   *scope.Table
	bt    *BorrowTable
	modes map[ir.ExprID]CaptureMode
}

func newBorrows(mod *ir.Module, reporter diag.Reporter, oracle ir.CopyOracle, builtins *BuiltinRegistry, release ReleaseStrategy) *borrows {
	return &borrows{
		mod:      mod,
		oracle:   oracle,
		builtins: builtins,
		release:  release,
		// Closure bodies are visited twice (conflict walk + capture
		// classification); duplicates must not reach the sink.
		reporter: diag.NewDedupReporter(reporter),
		modes:    make(map[ir.ExprID]CaptureMode),
	}
}

func (c *borrows) checkModule(ctx context.Context) error {
	var errs []error
	funcs := c.mod.Funcs
	for i := uint32(1); i <= funcs.Len(); i++ {
		if ctx.Err() != nil {
			break
		}
		id := ir.FuncID(i)
		if err := guard(func() { c.checkFunc(id) }); err != nil {
			errs = append(errs, fmt.Errorf("borrows: %s: %w", funcs.Get(id).Name, err))
		}
	}
	return joinErrs(errs)
}

func (c *borrows) checkFunc(id ir.FuncID) {
	fn := c.mod.Funcs.Get(id)
	if fn == nil || !fn.Body.IsValid() {
		return
	}
	c.tbl = newFunctionTable(c.mod)
	c.bt = NewBorrowTable()

	fnScope := c.enter(scope.ScopeFunction)
	if fn.Receiver != nil {
		c.tbl.Declare(fn.Receiver.Name, true, fn.Receiver.Type, fn.Receiver.Span)
	}
	for _, p := range fn.Params {
		c.tbl.Declare(p.Name, true, p.Type, p.Span)
	}
	c.stmt(fn.Body)
	c.tbl.Exit(fnScope)
}

// enter opens a scope and arranges for its borrows to end on exit.
func (c *borrows) enter(kind scope.ScopeKind) scope.ScopeID {
	sc := c.tbl.Enter(kind)
	bt := c.bt
	c.tbl.OnExit(sc, func() {
		c.release.ScopeExited(bt, sc)
	})
	return sc
}

func (c *borrows) stmt(id ir.StmtID) {
	st := c.mod.Stmts.Get(id)
	if st == nil {
		invariant("missing statement %d", id)
	}
	switch st.Kind {
	case ir.StmtBlock:
		data, _ := c.mod.Stmts.Block(id)
		sc := c.enter(scope.ScopeBlock)
		for _, child := range data.Stmts {
			c.stmt(child)
		}
		c.tbl.Exit(sc)

	case ir.StmtLet:
		data, _ := c.mod.Stmts.Let(id)
		if data.Init.IsValid() {
			c.expr(data.Init, true, true)
		}
		c.tbl.Declare(data.Name, data.Mutable, data.Type, st.Span)

	case ir.StmtAssign:
		data, _ := c.mod.Stmts.Assign(id)
		c.expr(data.Value, true, true)
		c.assignTarget(data.Target)

	case ir.StmtExpr:
		data, _ := c.mod.Stmts.Expr(id)
		c.expr(data.Expr, false, false)

	case ir.StmtReturn:
		data, _ := c.mod.Stmts.Return(id)
		if data.Value.IsValid() {
			// The function is unwinding; any borrow the value creates ends
			// with the call frame.
			c.expr(data.Value, true, false)
		}

	case ir.StmtIf:
		data, _ := c.mod.Stmts.If(id)
		c.expr(data.Cond, false, false)
		c.stmt(data.Then)
		if data.Else.IsValid() {
			c.stmt(data.Else)
		}

	case ir.StmtWhile:
		data, _ := c.mod.Stmts.While(id)
		c.expr(data.Cond, false, false)
		c.stmt(data.Body)

	default:
		invariant("unknown statement kind %d", st.Kind)
	}
}

// assignTarget rejects writes to a borrowed binding. Writes through a
// dereference go through the borrow itself and are authorized by it.
func (c *borrows) assignTarget(id ir.ExprID) {
	expr := c.mod.Exprs.Get(id)
	if expr == nil {
		invariant("missing assignment target %d", id)
	}
	switch expr.Kind {
	case ir.ExprIdent, ir.ExprField, ir.ExprIndex:
		if expr.Kind == ir.ExprIndex {
			data, _ := c.mod.Exprs.Index(id)
			c.expr(data.Index, false, false)
		}
		place := resolvePlace(c.mod, c.tbl, id)
		if !place.IsValid() || moduleBinding(c.tbl, place.Binding) {
			return
		}
		if conflict := c.bt.MutationAllowed(place.Binding); conflict.Blocked() {
			c.reportMutationWhileBorrowed(place.Binding, expr.Span, conflict)
		}

	case ir.ExprUnary:
		data, _ := c.mod.Exprs.Unary(id)
		c.expr(data.Operand, false, false)
	}
}

// expr walks one expression. consume marks ownership-taking contexts; bind
// marks values that land in storage outliving the expression, which is what
// decides whether a borrow created here persists or is a temporary.
func (c *borrows) expr(id ir.ExprID, consume, bind bool) {
	expr := c.mod.Exprs.Get(id)
	if expr == nil {
		invariant("missing expression %d", id)
	}
	switch expr.Kind {
	case ir.ExprIdent:
		if consume {
			c.checkMove(id, expr)
		}

	case ir.ExprLit:

	case ir.ExprUnary:
		data, _ := c.mod.Exprs.Unary(id)
		switch data.Op {
		case ir.ExprUnaryRef:
			c.expr(data.Operand, false, false)
			c.beginBorrow(BorrowImmutable, data.Operand, expr.Span, bind)
		case ir.ExprUnaryRefMut:
			c.expr(data.Operand, false, false)
			c.beginBorrow(BorrowMutable, data.Operand, expr.Span, bind)
		default:
			c.expr(data.Operand, false, false)
		}

	case ir.ExprBinary:
		data, _ := c.mod.Exprs.Binary(id)
		c.expr(data.Left, false, false)
		c.expr(data.Right, false, false)

	case ir.ExprCall:
		data, _ := c.mod.Exprs.Call(id)
		if data.Receiver.IsValid() {
			c.expr(data.Receiver, false, false)
			if c.callMutates(data) {
				c.mutatingReceiver(data)
			}
		}
		for _, arg := range data.Args {
			// Argument borrows end with the call.
			c.expr(arg, c.argConsumes(arg), false)
		}

	case ir.ExprField:
		data, _ := c.mod.Exprs.Field(id)
		c.expr(data.Object, false, false)
		if consume && !c.oracle.IsCopy(expr.Type) {
			// Moving a field out moves from the base binding.
			c.checkMove(data.Object, expr)
		}

	case ir.ExprIndex:
		data, _ := c.mod.Exprs.Index(id)
		c.expr(data.Object, false, false)
		c.expr(data.Index, false, false)

	case ir.ExprStruct:
		data, _ := c.mod.Exprs.Struct(id)
		for _, f := range data.Fields {
			c.expr(f.Value, true, bind)
		}

	case ir.ExprClosure:
		c.closure(id, expr)

	case ir.ExprCast:
		data, _ := c.mod.Exprs.Cast(id)
		c.expr(data.Value, consume, bind)

	default:
		invariant("unknown expression kind %d", expr.Kind)
	}
}

// beginBorrow checks a borrow of the operand's base binding, reporting the
// exclusivity violation on conflict. When keep is set the borrow is
// registered in the current scope and lives until the release strategy ends
// it; otherwise it is a temporary and only probed.
func (c *borrows) beginBorrow(kind BorrowKind, operand ir.ExprID, span source.Span, keep bool) {
	place := resolvePlace(c.mod, c.tbl, operand)
	if !place.IsValid() || moduleBinding(c.tbl, place.Binding) {
		return
	}
	var conflict Conflict
	if keep {
		_, conflict = c.bt.Begin(kind, place.Binding, span, c.tbl.Current())
	} else {
		conflict = c.bt.Probe(kind, place.Binding)
	}
	if !conflict.Blocked() {
		return
	}
	b := c.tbl.Binding(place.Binding)
	var code diag.Code
	var msg string
	switch {
	case kind == BorrowImmutable:
		code = diag.OwnImmutableWhileMutablyBorrowed
		msg = fmt.Sprintf("cannot immutably borrow `%s` while it is mutably borrowed", b.Name)
	case conflict.Kind == ConflictShared:
		code = diag.OwnMutableWhileImmutablyBorrowed
		msg = fmt.Sprintf("cannot mutably borrow `%s` while it is immutably borrowed", b.Name)
	default:
		code = diag.OwnMutableWhileMutablyBorrowed
		msg = fmt.Sprintf("cannot mutably borrow `%s` more than once", b.Name)
	}
	report := diag.ReportError(c.reporter, code, span, msg)
	if info := c.bt.Info(conflict.Borrow); info != nil {
		report.WithNote(info.Span, fmt.Sprintf("%s borrow of `%s` created here", info.Kind, b.Name))
	}
	report.Emit()
}

// checkMove rejects consuming uses of a borrowed binding. Copy values are
// duplicated rather than moved and never conflict.
func (c *borrows) checkMove(id ir.ExprID, use *ir.Expr) {
	bid := identBinding(c.mod, c.tbl, id)
	if !bid.IsValid() || moduleBinding(c.tbl, bid) {
		return
	}
	b := c.tbl.Binding(bid)
	if c.oracle.IsCopy(b.Type) {
		return
	}
	conflict := c.bt.MoveAllowed(bid)
	if !conflict.Blocked() {
		return
	}
	report := diag.ReportError(c.reporter, diag.OwnMoveWhileBorrowed, use.Span,
		fmt.Sprintf("cannot move out of `%s` while it is borrowed", b.Name))
	if info := c.bt.Info(conflict.Borrow); info != nil {
		report.WithNote(info.Span, fmt.Sprintf("%s borrow of `%s` created here", info.Kind, b.Name))
	}
	report.Emit()
}

// mutatingReceiver rejects mutating method calls on a borrowed receiver.
func (c *borrows) mutatingReceiver(data *ir.ExprCallData) {
	place := resolvePlace(c.mod, c.tbl, data.Receiver)
	if !place.IsValid() || moduleBinding(c.tbl, place.Binding) {
		return
	}
	conflict := c.bt.MutationAllowed(place.Binding)
	if !conflict.Blocked() {
		return
	}
	recv := c.mod.Exprs.Get(data.Receiver)
	c.reportMutationWhileBorrowed(place.Binding, recv.Span, conflict)
}

func (c *borrows) reportMutationWhileBorrowed(bid scope.BindingID, span source.Span, conflict Conflict) {
	b := c.tbl.Binding(bid)
	report := diag.ReportError(c.reporter, diag.OwnMutationWhileBorrowed, span,
		fmt.Sprintf("cannot mutate `%s` while it is borrowed", b.Name))
	if info := c.bt.Info(conflict.Borrow); info != nil {
		report.WithNote(info.Span, fmt.Sprintf("%s borrow of `%s` created here", info.Kind, b.Name))
	}
	report.Emit()
}

// closure walks the body for conflicts against live borrows, then registers
// the capture borrows in the enclosing scope so code after the definition
// sees the captured bindings as borrowed (or moved) until the closure value
// goes out of scope.
func (c *borrows) closure(id ir.ExprID, expr *ir.Expr) {
	data, _ := c.mod.Exprs.Closure(id)

	sc := c.enter(scope.ScopeClosure)
	for _, p := range data.Params {
		c.tbl.Declare(p.Name, true, p.Type, p.Span)
	}
	c.stmt(data.Body)
	c.tbl.Exit(sc)

	mode, uses := analyzeCaptures(c.mod, c.tbl, c.oracle, data)
	c.modes[id] = mode
	for _, use := range uses {
		b := c.tbl.Binding(use.binding)
		switch {
		case use.consumed:
			conflict := c.bt.MoveAllowed(use.binding)
			if !conflict.Blocked() {
				continue
			}
			report := diag.ReportError(c.reporter, diag.OwnMoveWhileBorrowed, use.span,
				fmt.Sprintf("closure captures `%s` by move while it is borrowed", b.Name))
			if info := c.bt.Info(conflict.Borrow); info != nil {
				report.WithNote(info.Span, fmt.Sprintf("%s borrow of `%s` created here", info.Kind, b.Name))
			}
			report.Emit()
		case use.written:
			c.captureBorrow(BorrowMutable, use, expr.Span)
		default:
			c.captureBorrow(BorrowImmutable, use, expr.Span)
		}
	}
}

func (c *borrows) captureBorrow(kind BorrowKind, use *captureUse, closureSpan source.Span) {
	_, conflict := c.bt.Begin(kind, use.binding, closureSpan, c.tbl.Current())
	if !conflict.Blocked() {
		return
	}
	b := c.tbl.Binding(use.binding)
	code := diag.OwnImmutableWhileMutablyBorrowed
	how := "immutably"
	if kind == BorrowMutable {
		how = "mutably"
		code = diag.OwnMutableWhileImmutablyBorrowed
		if conflict.Kind == ConflictMutable {
			code = diag.OwnMutableWhileMutablyBorrowed
		}
	}
	report := diag.ReportError(c.reporter, code, closureSpan,
		fmt.Sprintf("closure captures `%s` %s while it is already borrowed", b.Name, how))
	if info := c.bt.Info(conflict.Borrow); info != nil {
		report.WithNote(info.Span, fmt.Sprintf("%s borrow of `%s` created here", info.Kind, b.Name))
	}
	report.Emit()
}

// callMutates resolves whether the call mutates its receiver.
func (c *borrows) callMutates(data *ir.ExprCallData) bool {
	if data.Func.IsValid() {
		fn := c.mod.Funcs.Get(data.Func)
		return fn != nil && fn.Mutating
	}
	if info, ok := c.builtins.Get(data.Callee); ok {
		return info.Mutating
	}
	return data.MutMarker
}

// argConsumes mirrors the move-phase rule: by-value non-Copy arguments move,
// reference-typed arguments borrow for the duration of the call.
func (c *borrows) argConsumes(arg ir.ExprID) bool {
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
