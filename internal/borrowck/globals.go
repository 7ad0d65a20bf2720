package borrowck

import (
	"errors"

	"vexcheck/internal/ir"
	"vexcheck/internal/scope"
)

// newFunctionTable builds a fresh scope table whose module scope carries the
// unit's always-valid global names: functions and constants never go out of
// scope and are never moved from.
func newFunctionTable(mod *ir.Module) *scope.Table {
	tbl := scope.NewTable()
	funcs := mod.Funcs.Arena.Slice()
	for i := range funcs {
		tbl.Declare(funcs[i].Name, false, ir.NoTypeID, funcs[i].Span)
	}
	for _, c := range mod.Consts {
		tbl.Declare(c.Name, false, c.Type, c.Span)
	}
	return tbl
}

// moduleBinding reports whether the binding lives in the module scope.
func moduleBinding(tbl *scope.Table, id scope.BindingID) bool {
	b := tbl.Binding(id)
	return b != nil && b.Depth == 0
}

func joinErrs(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	return errors.Join(errs...)
}
