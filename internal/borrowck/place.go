package borrowck

import (
	"vexcheck/internal/ir"
	"vexcheck/internal/scope"
)

// Place is an addressable storage location participating in ownership
// tracking: a binding, optionally narrowed to one top-level field. Deeper
// projections (s.a.b, v[i]) collapse to their base with field precision
// dropped, which is coarse but sound.
type Place struct {
	Binding scope.BindingID
	Field   string // "" means the whole binding
}

func (p Place) IsValid() bool {
	return p.Binding.IsValid()
}

// Whole returns the place covering the entire binding.
func (p Place) Whole() Place {
	return Place{Binding: p.Binding}
}

// resolvePlace maps an lvalue-shaped expression to the place it names.
// Returns an invalid place for expressions that are not storage locations
// (literals, calls, arithmetic). An identifier that does not resolve is an
// internal invariant violation: upstream name resolution guarantees it.
func resolvePlace(mod *ir.Module, tbl *scope.Table, id ir.ExprID) Place {
	expr := mod.Exprs.Get(id)
	if expr == nil {
		return Place{}
	}
	switch expr.Kind {
	case ir.ExprIdent:
		data, _ := mod.Exprs.Ident(id)
		b, ok := tbl.Lookup(data.Name)
		if !ok {
			invariant("unresolved name %q", data.Name)
		}
		return Place{Binding: b}
	case ir.ExprField:
		data, _ := mod.Exprs.Field(id)
		base := resolvePlace(mod, tbl, data.Object)
		if !base.IsValid() {
			return Place{}
		}
		if base.Field != "" {
			// Nested projection: keep the base binding, drop precision.
			return base.Whole()
		}
		base.Field = data.Name
		return base
	case ir.ExprIndex:
		data, _ := mod.Exprs.Index(id)
		return resolvePlace(mod, tbl, data.Object).Whole()
	case ir.ExprUnary:
		data, _ := mod.Exprs.Unary(id)
		if data.Op == ir.ExprUnaryDeref {
			return resolvePlace(mod, tbl, data.Operand).Whole()
		}
		return Place{}
	default:
		return Place{}
	}
}

// identBinding resolves a bare identifier expression to its binding, or
// NoBindingID when the expression is not an identifier.
func identBinding(mod *ir.Module, tbl *scope.Table, id ir.ExprID) scope.BindingID {
	expr := mod.Exprs.Get(id)
	if expr == nil || expr.Kind != ir.ExprIdent {
		return scope.NoBindingID
	}
	data, _ := mod.Exprs.Ident(id)
	b, ok := tbl.Lookup(data.Name)
	if !ok {
		invariant("unresolved name %q", data.Name)
	}
	return b
}
