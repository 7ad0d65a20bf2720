package borrowck

import (
	"context"
	"fmt"

	"vexcheck/internal/diag"
	"vexcheck/internal/ir"
	"vexcheck/internal/scope"
	"vexcheck/internal/source"
)

// immutability is phase 1: every write must go through a binding declared
// mutable, mutating methods must agree with their call-site markers and
// contract declarations, and raw-pointer operations must sit inside an
// unsafe block.
type immutability struct {
	mod      *ir.Module
	reporter diag.Reporter
	builtins *BuiltinRegistry
	tbl      *scope.Table

	fn       *ir.Func
	receiver scope.BindingID
	inUnsafe bool
}

func newImmutability(mod *ir.Module, reporter diag.Reporter, builtins *BuiltinRegistry) *immutability {
	return &immutability{
		mod:      mod,
		reporter: reporter,
		builtins: builtins,
	}
}

func (c *immutability) checkModule(ctx context.Context) error {
	c.checkContracts()

	var errs []error
	funcs := c.mod.Funcs
	for i := uint32(1); i <= funcs.Len(); i++ {
		if ctx.Err() != nil {
			break
		}
		id := ir.FuncID(i)
		if err := guard(func() { c.checkFunc(id) }); err != nil {
			errs = append(errs, fmt.Errorf("immutability: %s: %w", funcs.Get(id).Name, err))
		}
	}
	return joinErrs(errs)
}

// checkContracts verifies that every implementing method's mutability flag
// equals the contract's declared flag for that method name.
func (c *immutability) checkContracts() {
	contracts := c.mod.ContractTable()
	for _, impl := range c.mod.Impls {
		for _, fid := range impl.Methods {
			fn := c.mod.Funcs.Get(fid)
			if fn == nil {
				continue
			}
			decl, ok := contracts.Lookup(impl.Contract, fn.Name)
			if !ok {
				// Upstream resolution admits only declared methods into an
				// impl; a miss is not a user mistake.
				continue
			}
			if decl.Mutating != fn.Mutating {
				want, have := "non-mutating", "mutating"
				if decl.Mutating {
					want, have = have, want
				}
				diag.ReportError(c.reporter, diag.OwnMutabilityContractMismatch, fn.Span,
					fmt.Sprintf("method `%s` is %s but contract `%s` declares it %s", fn.Name, have, impl.Contract, want)).
					WithNote(impl.Span, "implementation declared here").
					Emit()
			}
		}
	}
}

func (c *immutability) checkFunc(id ir.FuncID) {
	fn := c.mod.Funcs.Get(id)
	if fn == nil || !fn.Body.IsValid() {
		return
	}
	c.fn = fn
	c.receiver = scope.NoBindingID
	c.inUnsafe = false
	c.tbl = newFunctionTable(c.mod)

	fnScope := c.tbl.Enter(scope.ScopeFunction)
	if fn.Receiver != nil {
		recvMutable := fn.Mutating || c.refMut(fn.Receiver.Type)
		c.receiver = c.tbl.Declare(fn.Receiver.Name, recvMutable, fn.Receiver.Type, fn.Receiver.Span)
	}
	for _, p := range fn.Params {
		// Parameters are local bindings and freely reassignable.
		c.tbl.Declare(p.Name, true, p.Type, p.Span)
	}
	c.stmt(fn.Body)
	c.tbl.Exit(fnScope)
	c.fn = nil
}

func (c *immutability) refMut(ty ir.TypeID) bool {
	t := c.mod.Types.Get(ty)
	return t != nil && t.Kind == ir.TypeRef && t.Mut
}

func (c *immutability) stmt(id ir.StmtID) {
	st := c.mod.Stmts.Get(id)
	if st == nil {
		invariant("missing statement %d", id)
	}
	switch st.Kind {
	case ir.StmtBlock:
		data, _ := c.mod.Stmts.Block(id)
		sc := c.tbl.Enter(scope.ScopeBlock)
		prevUnsafe := c.inUnsafe
		if data.Unsafe {
			c.inUnsafe = true
		}
		for _, child := range data.Stmts {
			c.stmt(child)
		}
		c.inUnsafe = prevUnsafe
		c.tbl.Exit(sc)

	case ir.StmtLet:
		data, _ := c.mod.Stmts.Let(id)
		if data.Init.IsValid() {
			c.expr(data.Init)
		}
		c.tbl.Declare(data.Name, data.Mutable, data.Type, st.Span)

	case ir.StmtAssign:
		data, _ := c.mod.Stmts.Assign(id)
		c.expr(data.Value)
		c.assignTarget(data.Target)

	case ir.StmtExpr:
		data, _ := c.mod.Stmts.Expr(id)
		c.expr(data.Expr)

	case ir.StmtReturn:
		data, _ := c.mod.Stmts.Return(id)
		if data.Value.IsValid() {
			c.expr(data.Value)
		}

	case ir.StmtIf:
		data, _ := c.mod.Stmts.If(id)
		c.expr(data.Cond)
		c.stmt(data.Then)
		if data.Else.IsValid() {
			c.stmt(data.Else)
		}

	case ir.StmtWhile:
		data, _ := c.mod.Stmts.While(id)
		c.expr(data.Cond)
		c.stmt(data.Body)

	default:
		invariant("unknown statement kind %d", st.Kind)
	}
}

// assignTarget validates the left-hand side of an assignment.
func (c *immutability) assignTarget(id ir.ExprID) {
	expr := c.mod.Exprs.Get(id)
	if expr == nil {
		invariant("missing assignment target %d", id)
	}
	switch expr.Kind {
	case ir.ExprIdent:
		data, _ := c.mod.Exprs.Ident(id)
		bid, ok := c.tbl.Lookup(data.Name)
		if !ok {
			invariant("unresolved assignment target %q", data.Name)
		}
		b := c.tbl.Binding(bid)
		if !b.Mutable {
			diag.ReportError(c.reporter, diag.OwnImmutableAssignment, expr.Span,
				fmt.Sprintf("cannot assign to immutable binding `%s`", data.Name)).
				WithNote(b.Span, "binding declared here").
				WithSuggestion(fmt.Sprintf("consider making this binding mutable: `let! %s`", data.Name)).
				Emit()
		}

	case ir.ExprField, ir.ExprIndex:
		if expr.Kind == ir.ExprIndex {
			data, _ := c.mod.Exprs.Index(id)
			c.expr(data.Index)
		}
		place := resolvePlace(c.mod, c.tbl, id)
		if !place.IsValid() {
			return
		}
		b := c.tbl.Binding(place.Binding)
		switch {
		case place.Binding == c.receiver && c.fn != nil && c.fn.IsMethod() && !c.fn.Mutating:
			diag.ReportError(c.reporter, diag.OwnMutableSelfInImmutableMethod, expr.Span,
				fmt.Sprintf("method `%s` mutates `%s` but is not declared mutating", c.fn.Name, b.Name)).
				WithSuggestion(fmt.Sprintf("declare the method mutating: `fn %s()!`", c.fn.Name)).
				Emit()
		case !b.Mutable:
			msg := fmt.Sprintf("cannot assign to field of immutable binding `%s`", b.Name)
			if place.Field != "" {
				msg = fmt.Sprintf("cannot assign to field `%s` of immutable binding `%s`", place.Field, b.Name)
			}
			diag.ReportError(c.reporter, diag.OwnImmutableAssignment, expr.Span, msg).
				WithNote(b.Span, "binding declared here").
				WithSuggestion(fmt.Sprintf("consider making this binding mutable: `let! %s`", b.Name)).
				Emit()
		}

	case ir.ExprUnary:
		data, _ := c.mod.Exprs.Unary(id)
		if data.Op != ir.ExprUnaryDeref {
			invariant("assignment target is not a place")
		}
		c.expr(data.Operand)
		operand := c.mod.Exprs.Get(data.Operand)
		ot := c.mod.Types.Get(operand.Type)
		switch {
		case ot != nil && ot.Kind == ir.TypeRawPtr:
			c.requireUnsafe(expr.Span, "write through raw pointer")
		case ot != nil && ot.Kind == ir.TypeRef && !ot.Mut:
			diag.ReportError(c.reporter, diag.OwnImmutableAssignment, expr.Span,
				"cannot assign through immutable reference").
				WithSuggestion("borrow mutably instead: `&value!`").
				Emit()
		}

	default:
		invariant("assignment target is not a place")
	}
}

func (c *immutability) expr(id ir.ExprID) {
	expr := c.mod.Exprs.Get(id)
	if expr == nil {
		invariant("missing expression %d", id)
	}
	switch expr.Kind {
	case ir.ExprIdent, ir.ExprLit:
		// Reads carry no mutability obligations.

	case ir.ExprUnary:
		data, _ := c.mod.Exprs.Unary(id)
		c.expr(data.Operand)
		switch {
		case data.Op == ir.ExprUnaryDeref && c.isRawPointer(data.Operand):
			c.requireUnsafe(expr.Span, "raw pointer dereference")
		case data.Op == ir.ExprUnaryRefMut:
			c.mutBorrowTarget(data.Operand, expr.Span)
		}

	case ir.ExprBinary:
		data, _ := c.mod.Exprs.Binary(id)
		c.expr(data.Left)
		c.expr(data.Right)

	case ir.ExprCall:
		c.call(id, expr)

	case ir.ExprField:
		data, _ := c.mod.Exprs.Field(id)
		c.expr(data.Object)

	case ir.ExprIndex:
		data, _ := c.mod.Exprs.Index(id)
		c.expr(data.Object)
		c.expr(data.Index)

	case ir.ExprStruct:
		data, _ := c.mod.Exprs.Struct(id)
		for _, f := range data.Fields {
			c.expr(f.Value)
		}

	case ir.ExprClosure:
		data, _ := c.mod.Exprs.Closure(id)
		sc := c.tbl.Enter(scope.ScopeClosure)
		// Unlike function parameters, closure parameters are read-only.
		for _, p := range data.Params {
			c.tbl.Declare(p.Name, false, p.Type, p.Span)
		}
		c.stmt(data.Body)
		c.tbl.Exit(sc)

	case ir.ExprCast:
		data, _ := c.mod.Exprs.Cast(id)
		c.expr(data.Value)
		if c.mod.Types.IsRawPtr(data.Target) {
			c.requireUnsafe(expr.Span, "cast to raw pointer")
		}

	default:
		invariant("unknown expression kind %d", expr.Kind)
	}
}

// call cross-checks the callee's mutating flag against the call-site marker
// and the receiver's mutability.
func (c *immutability) call(id ir.ExprID, expr *ir.Expr) {
	data, _ := c.mod.Exprs.Call(id)
	if data.Receiver.IsValid() {
		c.expr(data.Receiver)
	}
	for _, arg := range data.Args {
		c.expr(arg)
	}

	if c.builtins.IsUnsafe(data.Callee) {
		c.requireUnsafe(expr.Span, fmt.Sprintf("call to `%s`", data.Callee))
	}

	mutating, known := c.calleeMutability(data)
	if !known {
		return
	}
	if mutating && !data.MutMarker {
		diag.ReportError(c.reporter, diag.OwnMissingMutationMarker, expr.Span,
			fmt.Sprintf("call to mutating method `%s` requires a mutation marker", data.Callee)).
			WithSuggestion(fmt.Sprintf("mark the call site: `%s!(...)`", data.Callee)).
			Emit()
	}
	if !mutating && data.MutMarker {
		diag.ReportError(c.reporter, diag.OwnSpuriousMutationMarker, expr.Span,
			fmt.Sprintf("`%s` is not a mutating method; remove the marker", data.Callee)).
			Emit()
	}

	if !mutating || !data.Receiver.IsValid() {
		return
	}
	place := resolvePlace(c.mod, c.tbl, data.Receiver)
	if !place.IsValid() {
		return
	}
	b := c.tbl.Binding(place.Binding)
	switch {
	case place.Binding == c.receiver && c.fn != nil && c.fn.IsMethod() && !c.fn.Mutating:
		diag.ReportError(c.reporter, diag.OwnMutableSelfInImmutableMethod, expr.Span,
			fmt.Sprintf("method `%s` calls mutating `%s` on `%s` but is not declared mutating", c.fn.Name, data.Callee, b.Name)).
			WithSuggestion(fmt.Sprintf("declare the method mutating: `fn %s()!`", c.fn.Name)).
			Emit()
	case !b.Mutable:
		diag.ReportError(c.reporter, diag.OwnImmutableAssignment, expr.Span,
			fmt.Sprintf("cannot call mutating method `%s` on immutable binding `%s`", data.Callee, b.Name)).
			WithNote(b.Span, "binding declared here").
			WithSuggestion(fmt.Sprintf("consider making this binding mutable: `let! %s`", b.Name)).
			Emit()
	}
}

// calleeMutability resolves the callee's declared mutating flag. Calls
// through closure values have no method mutability; markers are not checked
// for them.
func (c *immutability) calleeMutability(data *ir.ExprCallData) (mutating, known bool) {
	if data.Func.IsValid() {
		fn := c.mod.Funcs.Get(data.Func)
		if fn == nil {
			invariant("call resolved to missing callable %d", data.Func)
		}
		return fn.Mutating, true
	}
	if info, ok := c.builtins.Get(data.Callee); ok {
		return info.Mutating, true
	}
	if _, ok := c.tbl.Lookup(data.Callee); ok {
		// Closure or function value: capability is checked in phase 3.
		return false, false
	}
	invariant("call to unresolved callee %q", data.Callee)
	return false, false
}

// isRawPointer reports whether the expression yields an unmanaged pointer.
// The resolved type is authoritative; the syntactic fallback covers frontend
// output that predates explicit raw-pointer types (casts and the alloc
// family of builtins).
func (c *immutability) isRawPointer(id ir.ExprID) bool {
	expr := c.mod.Exprs.Get(id)
	if expr == nil {
		return false
	}
	if c.mod.Types.IsRawPtr(expr.Type) {
		return true
	}
	switch expr.Kind {
	case ir.ExprCast:
		data, _ := c.mod.Exprs.Cast(id)
		return c.mod.Types.IsRawPtr(data.Target)
	case ir.ExprCall:
		data, _ := c.mod.Exprs.Call(id)
		return c.builtins.IsUnsafe(data.Callee)
	default:
		return false
	}
}

// mutBorrowTarget requires the borrowed binding to be mutable: a mutable
// reference grants write access, which the binding must already allow.
func (c *immutability) mutBorrowTarget(operand ir.ExprID, span source.Span) {
	place := resolvePlace(c.mod, c.tbl, operand)
	if !place.IsValid() {
		return
	}
	b := c.tbl.Binding(place.Binding)
	if b.Mutable {
		return
	}
	diag.ReportError(c.reporter, diag.OwnImmutableAssignment, span,
		fmt.Sprintf("cannot mutably borrow immutable binding `%s`", b.Name)).
		WithNote(b.Span, "binding declared here").
		WithSuggestion(fmt.Sprintf("consider making this binding mutable: `let! %s`", b.Name)).
		Emit()
}

func (c *immutability) requireUnsafe(span source.Span, operation string) {
	if c.inUnsafe {
		return
	}
	diag.ReportError(c.reporter, diag.OwnUnsafeOperationOutsideUnsafe, span,
		fmt.Sprintf("%s outside unsafe block", operation)).
		WithSuggestion("wrap the operation in an `unsafe { ... }` block").
		Emit()
}
