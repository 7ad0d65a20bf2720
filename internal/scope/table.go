package scope

import (
	"fmt"

	"fortio.org/safecast"

	"vexcheck/internal/ir"
	"vexcheck/internal/source"
)

// Table tracks the live scope stack and every binding declared during one
// function check. Storage follows strict stack discipline: Enter pushes,
// Exit pops, and aborting between whole-function checks leaves nothing
// dangling.
type Table struct {
	scopes   *ir.Arena[Scope]
	bindings *ir.Arena[Binding]
	current  ScopeID
}

// NewTable creates a table with a module scope (depth 0) already entered.
func NewTable() *Table {
	t := &Table{
		scopes:   ir.NewArena[Scope](1 << 4),
		bindings: ir.NewArena[Binding](1 << 6),
	}
	t.current = t.push(ScopeModule)
	return t
}

func (t *Table) push(kind ScopeKind) ScopeID {
	depth := uint32(0)
	if parent := t.scope(t.current); parent != nil {
		depth = parent.Depth + 1
	}
	if _, err := safecast.Conv[uint32](int(t.scopes.Len()) + 1); err != nil {
		panic(fmt.Errorf("scope arena overflow: %w", err))
	}
	id := ScopeID(t.scopes.Allocate(Scope{
		Kind:   kind,
		Parent: t.current,
		Depth:  depth,
		names:  make(map[string]BindingID),
	}))
	return id
}

func (t *Table) scope(id ScopeID) *Scope {
	return t.scopes.Get(uint32(id))
}

// Current returns the innermost live scope.
func (t *Table) Current() ScopeID {
	return t.current
}

// CurrentDepth returns the depth of the innermost live scope.
func (t *Table) CurrentDepth() uint32 {
	return t.scope(t.current).Depth
}

// Enter opens a nested scope and returns its id.
func (t *Table) Enter(kind ScopeKind) ScopeID {
	id := t.push(kind)
	t.current = id
	return id
}

// Exit closes the scope. Exiting out of stack order is an internal
// invariant violation. Exit hooks run newest-first, before the scope's
// bindings stop resolving.
func (t *Table) Exit(id ScopeID) {
	if id != t.current {
		panic(fmt.Errorf("scope exit out of order: have %d, want %d", id, t.current))
	}
	sc := t.scope(id)
	for i := len(sc.exitHooks) - 1; i >= 0; i-- {
		sc.exitHooks[i]()
	}
	sc.exitHooks = nil
	t.current = sc.Parent
}

// OnExit registers a cleanup callback (borrow release, escape checks) to run
// when the scope exits.
func (t *Table) OnExit(id ScopeID, fn func()) {
	sc := t.scope(id)
	if sc == nil {
		panic(fmt.Errorf("OnExit: unknown scope %d", id))
	}
	sc.exitHooks = append(sc.exitHooks, fn)
}

// Declare introduces a binding in the current scope. Re-declaring a name in
// the same scope mints a fresh id that shadows the old one; ids captured
// before the shadowing still resolve to the old binding.
func (t *Table) Declare(name string, mutable bool, ty ir.TypeID, span source.Span) BindingID {
	sc := t.scope(t.current)
	id := BindingID(t.bindings.Allocate(Binding{
		Name:    name,
		Mutable: mutable,
		Type:    ty,
		Scope:   t.current,
		Depth:   sc.Depth,
		Span:    span,
	}))
	sc.Bindings = append(sc.Bindings, id)
	sc.names[name] = id
	return id
}

// Lookup resolves a name against the live scope chain, innermost scope
// first. A miss means upstream name resolution was violated; callers treat
// it as an internal invariant failure, not a user diagnostic.
func (t *Table) Lookup(name string) (BindingID, bool) {
	for id := t.current; id.IsValid(); {
		sc := t.scope(id)
		if b, ok := sc.names[name]; ok {
			return b, true
		}
		id = sc.Parent
	}
	return NoBindingID, false
}

// Binding returns the record for id.
func (t *Table) Binding(id BindingID) *Binding {
	return t.bindings.Get(uint32(id))
}

// Depth returns the region depth of the binding: the scope depth at which
// it was declared.
func (t *Table) Depth(id BindingID) uint32 {
	b := t.Binding(id)
	if b == nil {
		panic(fmt.Errorf("Depth: unknown binding %d", id))
	}
	return b.Depth
}

// ScopeDepth returns the depth of the given scope.
func (t *Table) ScopeDepth(id ScopeID) uint32 {
	sc := t.scope(id)
	if sc == nil {
		panic(fmt.Errorf("ScopeDepth: unknown scope %d", id))
	}
	return sc.Depth
}

// ScopeKindOf returns the kind of the given scope.
func (t *Table) ScopeKindOf(id ScopeID) ScopeKind {
	sc := t.scope(id)
	if sc == nil {
		return ScopeInvalid
	}
	return sc.Kind
}
