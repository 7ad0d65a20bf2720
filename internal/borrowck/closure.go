package borrowck

import (
	"sort"

	"vexcheck/internal/ir"
	"vexcheck/internal/scope"
	"vexcheck/internal/source"
)

// captureUse accumulates how one captured binding is used inside a closure
// body.
type captureUse struct {
	binding  scope.BindingID
	read     bool
	written  bool
	consumed bool
	span     source.Span // first use, for notes
}

// captureAnalyzer walks a closure body classifying free-variable uses.
// Names introduced inside the body (parameters, lets, nested closure
// parameters) are locals; everything else that resolves to a function-local
// binding of the enclosing table is a capture.
type captureAnalyzer struct {
	mod    *ir.Module
	tbl    *scope.Table
	oracle ir.CopyOracle

	locals   []map[string]struct{}
	captures map[scope.BindingID]*captureUse
}

// analyzeCaptures classifies the closure's captured bindings and infers the
// capture mode: any consuming use forces by-move, otherwise any write forces
// by-mut-ref, otherwise by-ref.
func analyzeCaptures(mod *ir.Module, tbl *scope.Table, oracle ir.CopyOracle, data *ir.ExprClosureData) (CaptureMode, []*captureUse) {
	a := &captureAnalyzer{
		mod:      mod,
		tbl:      tbl,
		oracle:   oracle,
		captures: make(map[scope.BindingID]*captureUse),
	}
	a.pushLocals()
	for _, p := range data.Params {
		a.declareLocal(p.Name)
	}
	a.stmt(data.Body)
	a.popLocals()

	mode := CaptureByRef
	list := make([]*captureUse, 0, len(a.captures))
	for _, use := range a.captures {
		list = append(list, use)
		switch {
		case use.consumed:
			mode = CaptureByMove
		case use.written && mode != CaptureByMove:
			mode = CaptureByMutRef
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].binding < list[j].binding })
	return mode, list
}

func (a *captureAnalyzer) pushLocals() {
	a.locals = append(a.locals, make(map[string]struct{}))
}

func (a *captureAnalyzer) popLocals() {
	a.locals = a.locals[:len(a.locals)-1]
}

func (a *captureAnalyzer) declareLocal(name string) {
	a.locals[len(a.locals)-1][name] = struct{}{}
}

func (a *captureAnalyzer) isLocal(name string) bool {
	for i := len(a.locals) - 1; i >= 0; i-- {
		if _, ok := a.locals[i][name]; ok {
			return true
		}
	}
	return false
}

// capture records a use of name when it resolves to an enclosing
// function-local binding. Module-level names are globals, not captures.
func (a *captureAnalyzer) capture(name string, span source.Span) *captureUse {
	if a.isLocal(name) {
		return nil
	}
	bid, ok := a.tbl.Lookup(name)
	if !ok {
		invariant("unresolved name %q in closure", name)
	}
	if moduleBinding(a.tbl, bid) {
		return nil
	}
	use, seen := a.captures[bid]
	if !seen {
		use = &captureUse{binding: bid, span: span}
		a.captures[bid] = use
	}
	return use
}

func (a *captureAnalyzer) stmt(id ir.StmtID) {
	st := a.mod.Stmts.Get(id)
	if st == nil {
		invariant("missing statement %d", id)
	}
	switch st.Kind {
	case ir.StmtBlock:
		data, _ := a.mod.Stmts.Block(id)
		a.pushLocals()
		for _, child := range data.Stmts {
			a.stmt(child)
		}
		a.popLocals()

	case ir.StmtLet:
		data, _ := a.mod.Stmts.Let(id)
		if data.Init.IsValid() {
			a.expr(data.Init, true)
		}
		a.declareLocal(data.Name)

	case ir.StmtAssign:
		data, _ := a.mod.Stmts.Assign(id)
		a.expr(data.Value, true)
		a.writeTarget(data.Target)

	case ir.StmtExpr:
		data, _ := a.mod.Stmts.Expr(id)
		a.expr(data.Expr, false)

	case ir.StmtReturn:
		data, _ := a.mod.Stmts.Return(id)
		if data.Value.IsValid() {
			a.expr(data.Value, true)
		}

	case ir.StmtIf:
		data, _ := a.mod.Stmts.If(id)
		a.expr(data.Cond, false)
		a.stmt(data.Then)
		if data.Else.IsValid() {
			a.stmt(data.Else)
		}

	case ir.StmtWhile:
		data, _ := a.mod.Stmts.While(id)
		a.expr(data.Cond, false)
		a.stmt(data.Body)
	}
}

// writeTarget marks the base of an assignment target as written.
func (a *captureAnalyzer) writeTarget(id ir.ExprID) {
	expr := a.mod.Exprs.Get(id)
	if expr == nil {
		return
	}
	switch expr.Kind {
	case ir.ExprIdent:
		data, _ := a.mod.Exprs.Ident(id)
		if use := a.capture(data.Name, expr.Span); use != nil {
			use.written = true
		}
	case ir.ExprField:
		data, _ := a.mod.Exprs.Field(id)
		a.writeTarget(data.Object)
	case ir.ExprIndex:
		data, _ := a.mod.Exprs.Index(id)
		a.writeTarget(data.Object)
		a.expr(data.Index, false)
	case ir.ExprUnary:
		data, _ := a.mod.Exprs.Unary(id)
		a.expr(data.Operand, false)
	}
}

func (a *captureAnalyzer) expr(id ir.ExprID, consume bool) {
	expr := a.mod.Exprs.Get(id)
	if expr == nil {
		invariant("missing expression %d", id)
	}
	switch expr.Kind {
	case ir.ExprIdent:
		data, _ := a.mod.Exprs.Ident(id)
		use := a.capture(data.Name, expr.Span)
		if use == nil {
			return
		}
		use.read = true
		if consume && !a.oracle.IsCopy(expr.Type) {
			use.consumed = true
		}

	case ir.ExprLit:

	case ir.ExprUnary:
		data, _ := a.mod.Exprs.Unary(id)
		if data.Op == ir.ExprUnaryRefMut {
			a.writeTarget(data.Operand)
			return
		}
		a.expr(data.Operand, false)

	case ir.ExprBinary:
		data, _ := a.mod.Exprs.Binary(id)
		a.expr(data.Left, false)
		a.expr(data.Right, false)

	case ir.ExprCall:
		data, _ := a.mod.Exprs.Call(id)
		if data.Receiver.IsValid() {
			if a.callMutatesReceiver(data) {
				a.writeTarget(data.Receiver)
			} else {
				a.expr(data.Receiver, false)
			}
		}
		for _, arg := range data.Args {
			a.expr(arg, a.argConsumes(arg))
		}

	case ir.ExprField:
		data, _ := a.mod.Exprs.Field(id)
		a.expr(data.Object, consume && !a.oracle.IsCopy(expr.Type))

	case ir.ExprIndex:
		data, _ := a.mod.Exprs.Index(id)
		a.expr(data.Object, false)
		a.expr(data.Index, false)

	case ir.ExprStruct:
		data, _ := a.mod.Exprs.Struct(id)
		for _, f := range data.Fields {
			a.expr(f.Value, true)
		}

	case ir.ExprClosure:
		data, _ := a.mod.Exprs.Closure(id)
		a.pushLocals()
		for _, p := range data.Params {
			a.declareLocal(p.Name)
		}
		a.stmt(data.Body)
		a.popLocals()

	case ir.ExprCast:
		data, _ := a.mod.Exprs.Cast(id)
		a.expr(data.Value, false)
	}
}

func (a *captureAnalyzer) callMutatesReceiver(data *ir.ExprCallData) bool {
	if data.Func.IsValid() {
		fn := a.mod.Funcs.Get(data.Func)
		return fn != nil && fn.Mutating
	}
	return data.MutMarker
}

func (a *captureAnalyzer) argConsumes(arg ir.ExprID) bool {
	expr := a.mod.Exprs.Get(arg)
	if expr == nil {
		return false
	}
	ty := a.mod.Types.Get(expr.Type)
	if ty != nil && (ty.Kind == ir.TypeRef || ty.Kind == ir.TypeRawPtr) {
		return false
	}
	return !a.oracle.IsCopy(expr.Type)
}
