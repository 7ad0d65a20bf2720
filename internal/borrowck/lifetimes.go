package borrowck

import (
	"context"
	"fmt"

	"vexcheck/internal/diag"
	"vexcheck/internal/ir"
	"vexcheck/internal/scope"
)

// callerRegion is the region depth assigned to reference values that enter
// the function from outside (reference parameters, call results): the caller
// guarantees the referent outlives the whole call.
const callerRegion uint32 = 1

// lifetimes is phase 4: every reference value carries the region depth of
// its referent, a plain scope-nesting level. A reference must not be stored
// in a location that outlives its referent, and must not be returned when
// the referent is function-local. No annotations: regions are compared as
// integers.
type lifetimes struct {
	mod      *ir.Module
	reporter diag.Reporter
	tbl      *scope.Table

	// regions maps region-carrying bindings to the depth of the innermost
	// scope their value borrows from.
	regions map[scope.BindingID]uint32
}

func newLifetimes(mod *ir.Module, reporter diag.Reporter) *lifetimes {
	return &lifetimes{
		mod: mod,
		// Loop bodies are re-walked with joined regions.
		reporter: diag.NewDedupReporter(reporter),
	}
}

func (c *lifetimes) checkModule(ctx context.Context) error {
	var errs []error
	funcs := c.mod.Funcs
	for i := uint32(1); i <= funcs.Len(); i++ {
		if ctx.Err() != nil {
			break
		}
		id := ir.FuncID(i)
		if err := guard(func() { c.checkFunc(id) }); err != nil {
			errs = append(errs, fmt.Errorf("lifetimes: %s: %w", funcs.Get(id).Name, err))
		}
	}
	return joinErrs(errs)
}

func (c *lifetimes) checkFunc(id ir.FuncID) {
	fn := c.mod.Funcs.Get(id)
	if fn == nil || !fn.Body.IsValid() {
		return
	}
	c.tbl = newFunctionTable(c.mod)
	c.regions = make(map[scope.BindingID]uint32)

	fnScope := c.tbl.Enter(scope.ScopeFunction)
	if fn.Receiver != nil {
		bid := c.tbl.Declare(fn.Receiver.Name, true, fn.Receiver.Type, fn.Receiver.Span)
		if c.carriesRegion(fn.Receiver.Type) {
			c.regions[bid] = callerRegion
		}
	}
	for _, p := range fn.Params {
		bid := c.tbl.Declare(p.Name, true, p.Type, p.Span)
		if c.carriesRegion(p.Type) {
			c.regions[bid] = callerRegion
		}
	}
	c.stmt(fn.Body)
	c.tbl.Exit(fnScope)
}

// carriesRegion reports whether values of the type embed a borrow: plain
// references, and aggregates with reference-typed members anywhere inside.
func (c *lifetimes) carriesRegion(id ir.TypeID) bool {
	return c.carriesRegionRec(id, make(map[ir.TypeID]bool))
}

func (c *lifetimes) carriesRegionRec(id ir.TypeID, seen map[ir.TypeID]bool) bool {
	if seen[id] {
		return false
	}
	seen[id] = true
	ty := c.mod.Types.Get(id)
	if ty == nil {
		return false
	}
	switch ty.Kind {
	case ir.TypeRef:
		return true
	case ir.TypeBox:
		return c.carriesRegionRec(ty.Elem, seen)
	case ir.TypeStruct:
		for _, f := range ty.Fields {
			if c.carriesRegionRec(f.Type, seen) {
				return true
			}
		}
	}
	return false
}

func (c *lifetimes) stmt(id ir.StmtID) {
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
		region := callerRegion
		if data.Init.IsValid() {
			c.exprWalk(data.Init)
			if c.carriesRegion(data.Type) {
				region = c.exprRegion(data.Init)
			}
		}
		bid := c.tbl.Declare(data.Name, data.Mutable, data.Type, st.Span)
		if data.Init.IsValid() && c.carriesRegion(data.Type) {
			// A fresh binding never outlives anything in scope at its own
			// declaration; just record where the value borrows from.
			c.regions[bid] = region
		}

	case ir.StmtAssign:
		data, _ := c.mod.Stmts.Assign(id)
		c.exprWalk(data.Value)
		c.assign(data.Target, data.Value)

	case ir.StmtExpr:
		data, _ := c.mod.Stmts.Expr(id)
		c.exprWalk(data.Expr)

	case ir.StmtReturn:
		data, _ := c.mod.Stmts.Return(id)
		if !data.Value.IsValid() {
			return
		}
		c.exprWalk(data.Value)
		value := c.mod.Exprs.Get(data.Value)
		if value == nil || !c.carriesRegion(value.Type) {
			return
		}
		if region := c.exprRegion(data.Value); region > callerRegion {
			diag.ReportError(c.reporter, diag.OwnReturnDanglingReference, value.Span,
				"cannot return a reference to a function-local value").
				WithSuggestion("return the value itself to transfer ownership to the caller").
				Emit()
		}

	case ir.StmtIf:
		data, _ := c.mod.Stmts.If(id)
		c.exprWalk(data.Cond)
		entry := c.cloneRegions()
		c.stmt(data.Then)
		afterThen := c.regions
		c.regions = entry
		if data.Else.IsValid() {
			c.stmt(data.Else)
		}
		c.regions = joinRegions(afterThen, c.regions)

	case ir.StmtWhile:
		data, _ := c.mod.Stmts.While(id)
		c.exprWalk(data.Cond)
		entry := c.cloneRegions()
		c.stmt(data.Body)
		// Back edge: re-walk with joined regions so a reference reseated to
		// deeper data on iteration N is checked against uses on N+1.
		merged := joinRegions(entry, c.regions)
		c.regions = cloneRegionMap(merged)
		c.exprWalk(data.Cond)
		c.stmt(data.Body)
		c.regions = joinRegions(merged, c.regions)

	default:
		invariant("unknown statement kind %d", st.Kind)
	}
}

// assign enforces the store rule: the written location must not outlive the
// region the assigned value borrows from.
func (c *lifetimes) assign(target, value ir.ExprID) {
	texpr := c.mod.Exprs.Get(target)
	if texpr == nil {
		invariant("missing assignment target %d", target)
	}
	if !c.carriesRegion(texpr.Type) {
		return
	}
	region := c.exprRegion(value)

	place := resolvePlace(c.mod, c.tbl, target)
	if !place.IsValid() || moduleBinding(c.tbl, place.Binding) {
		return
	}
	targetDepth := c.locationDepth(target, place)
	if targetDepth < region {
		b := c.tbl.Binding(place.Binding)
		diag.ReportError(c.reporter, diag.OwnReferenceOutlivesReferent, texpr.Span,
			fmt.Sprintf("`%s` outlives the value this reference borrows from", b.Name)).
			WithNote(b.Span, "binding declared here, in an outer scope").
			Emit()
		return
	}
	if texpr.Kind == ir.ExprIdent {
		c.regions[place.Binding] = region
	} else if cur, ok := c.regions[place.Binding]; !ok || region > cur {
		// Storing into a member deepens the aggregate's borrow region.
		c.regions[place.Binding] = region
	}
}

// locationDepth is the scope depth of the storage the write lands in: the
// binding itself, or the referent's region when writing through a reference.
func (c *lifetimes) locationDepth(target ir.ExprID, place Place) uint32 {
	texpr := c.mod.Exprs.Get(target)
	if texpr.Kind == ir.ExprUnary {
		data, _ := c.mod.Exprs.Unary(target)
		if data.Op == ir.ExprUnaryDeref {
			return c.exprRegion(data.Operand)
		}
	}
	return c.tbl.Depth(place.Binding)
}

// exprRegion computes the region depth a region-carrying expression borrows
// from. Values arriving from outside the function body default to the caller
// region.
func (c *lifetimes) exprRegion(id ir.ExprID) uint32 {
	expr := c.mod.Exprs.Get(id)
	if expr == nil {
		return callerRegion
	}
	switch expr.Kind {
	case ir.ExprIdent:
		bid := identBinding(c.mod, c.tbl, id)
		if region, ok := c.regions[bid]; ok {
			return region
		}
		return callerRegion

	case ir.ExprUnary:
		data, _ := c.mod.Exprs.Unary(id)
		switch data.Op {
		case ir.ExprUnaryRef, ir.ExprUnaryRefMut:
			return c.referentDepth(data.Operand)
		case ir.ExprUnaryDeref:
			// Copying a reference out of *r borrows from wherever the
			// pointed-at slot borrows from.
			return c.exprRegion(data.Operand)
		}
		return callerRegion

	case ir.ExprField:
		data, _ := c.mod.Exprs.Field(id)
		return c.exprRegion(data.Object)

	case ir.ExprIndex:
		data, _ := c.mod.Exprs.Index(id)
		return c.exprRegion(data.Object)

	case ir.ExprStruct:
		data, _ := c.mod.Exprs.Struct(id)
		region := callerRegion
		for _, f := range data.Fields {
			fexpr := c.mod.Exprs.Get(f.Value)
			if fexpr == nil || !c.carriesRegion(fexpr.Type) {
				continue
			}
			if r := c.exprRegion(f.Value); r > region {
				region = r
			}
		}
		return region

	case ir.ExprCast:
		data, _ := c.mod.Exprs.Cast(id)
		return c.exprRegion(data.Value)

	case ir.ExprCall:
		// The callee's own return rule guarantees anything it hands back
		// outlives the call.
		return callerRegion

	default:
		return callerRegion
	}
}

// referentDepth is the region depth of the place a borrow expression points
// at: the declaring scope of the base binding, or, when borrowing through a
// dereference, the region of the inner reference.
func (c *lifetimes) referentDepth(operand ir.ExprID) uint32 {
	expr := c.mod.Exprs.Get(operand)
	if expr == nil {
		return c.tbl.CurrentDepth()
	}
	switch expr.Kind {
	case ir.ExprIdent:
		bid := identBinding(c.mod, c.tbl, operand)
		if moduleBinding(c.tbl, bid) {
			return 0
		}
		return c.tbl.Depth(bid)
	case ir.ExprField:
		data, _ := c.mod.Exprs.Field(operand)
		return c.referentDepth(data.Object)
	case ir.ExprIndex:
		data, _ := c.mod.Exprs.Index(operand)
		return c.referentDepth(data.Object)
	case ir.ExprUnary:
		data, _ := c.mod.Exprs.Unary(operand)
		if data.Op == ir.ExprUnaryDeref {
			return c.exprRegion(data.Operand)
		}
	}
	// Borrow of a temporary: it lives exactly as long as the current scope.
	return c.tbl.CurrentDepth()
}

// exprWalk visits nested statements so lets inside closures and nested
// borrows are checked; region bookkeeping itself happens at stores.
func (c *lifetimes) exprWalk(id ir.ExprID) {
	expr := c.mod.Exprs.Get(id)
	if expr == nil {
		invariant("missing expression %d", id)
	}
	switch expr.Kind {
	case ir.ExprIdent, ir.ExprLit:

	case ir.ExprUnary:
		data, _ := c.mod.Exprs.Unary(id)
		c.exprWalk(data.Operand)

	case ir.ExprBinary:
		data, _ := c.mod.Exprs.Binary(id)
		c.exprWalk(data.Left)
		c.exprWalk(data.Right)

	case ir.ExprCall:
		data, _ := c.mod.Exprs.Call(id)
		if data.Receiver.IsValid() {
			c.exprWalk(data.Receiver)
		}
		for _, arg := range data.Args {
			c.exprWalk(arg)
		}

	case ir.ExprField:
		data, _ := c.mod.Exprs.Field(id)
		c.exprWalk(data.Object)

	case ir.ExprIndex:
		data, _ := c.mod.Exprs.Index(id)
		c.exprWalk(data.Object)
		c.exprWalk(data.Index)

	case ir.ExprStruct:
		data, _ := c.mod.Exprs.Struct(id)
		for _, f := range data.Fields {
			c.exprWalk(f.Value)
		}

	case ir.ExprClosure:
		data, _ := c.mod.Exprs.Closure(id)
		sc := c.tbl.Enter(scope.ScopeClosure)
		for _, p := range data.Params {
			bid := c.tbl.Declare(p.Name, true, p.Type, p.Span)
			if c.carriesRegion(p.Type) {
				c.regions[bid] = callerRegion
			}
		}
		c.stmt(data.Body)
		c.tbl.Exit(sc)

	case ir.ExprCast:
		data, _ := c.mod.Exprs.Cast(id)
		c.exprWalk(data.Value)

	default:
		invariant("unknown expression kind %d", expr.Kind)
	}
}

func (c *lifetimes) cloneRegions() map[scope.BindingID]uint32 {
	return cloneRegionMap(c.regions)
}

func cloneRegionMap(m map[scope.BindingID]uint32) map[scope.BindingID]uint32 {
	out := make(map[scope.BindingID]uint32, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// joinRegions merges two branch states: the deeper region wins, since it is
// the stricter constraint on where the value may still be stored.
func joinRegions(a, b map[scope.BindingID]uint32) map[scope.BindingID]uint32 {
	out := cloneRegionMap(a)
	for k, v := range b {
		if cur, ok := out[k]; !ok || v > cur {
			out[k] = v
		}
	}
	return out
}
