// Package scope owns lexical nesting for a single function check: binding
// declarations, their declared mutability, and their region depth. Scopes
// live in a flat arena; the parent link is an index used only for lookup,
// never an owning pointer.
package scope

import (
	"vexcheck/internal/ir"
	"vexcheck/internal/source"
)

type (
	ScopeID   uint32
	BindingID uint32
)

const (
	NoScopeID   ScopeID   = 0
	NoBindingID BindingID = 0
)

func (id ScopeID) IsValid() bool   { return id != NoScopeID }
func (id BindingID) IsValid() bool { return id != NoBindingID }

// ScopeKind enumerates supported scope categories.
type ScopeKind uint8

const (
	ScopeInvalid  ScopeKind = iota
	ScopeModule             // module-level names: functions, constants
	ScopeFunction           // function root, holds parameters (depth 1)
	ScopeBlock              // any nested block: body, if arm, loop body
	ScopeClosure            // closure body
)

func (k ScopeKind) String() string {
	switch k {
	case ScopeModule:
		return "module"
	case ScopeFunction:
		return "function"
	case ScopeBlock:
		return "block"
	case ScopeClosure:
		return "closure"
	default:
		return "invalid"
	}
}

// Binding is a declared name. Depth is the region depth: the scope depth at
// which the binding was declared, assigned once and immutable thereafter.
type Binding struct {
	Name    string
	Mutable bool
	Type    ir.TypeID
	Scope   ScopeID
	Depth   uint32
	Span    source.Span
}

// Scope is one ordered frame of the lexical tree.
type Scope struct {
	Kind      ScopeKind
	Parent    ScopeID
	Depth     uint32
	Bindings  []BindingID
	names     map[string]BindingID // latest declaration wins (shadowing)
	exitHooks []func()
}
