package ir

import (
	"vexcheck/internal/source"
)

// GlobalConst is a module-level constant: an always-valid, immutable name.
type GlobalConst struct {
	Name string      `msgpack:"name"`
	Type TypeID      `msgpack:"type"`
	Span source.Span `msgpack:"span"`
}

// Module is one compilation unit as handed over by the frontend: fully
// parsed, name-resolved, and type-annotated. Span file ids index into
// SourceFiles until the driver remaps them onto its FileSet.
type Module struct {
	Name        string
	SourceFiles []string

	Funcs     *Funcs
	Stmts     *Stmts
	Exprs     *Exprs
	Types     *TypeTable
	Contracts []Contract
	Impls     []Impl
	Consts    []GlobalConst
}

type Hints struct{ Funcs, Stmts, Exprs, Types uint }

// NewModule creates an empty module with preallocated arenas.
func NewModule(name string, hints Hints) *Module {
	return &Module{
		Name:  name,
		Funcs: NewFuncs(hints.Funcs),
		Stmts: NewStmts(hints.Stmts),
		Exprs: NewExprs(hints.Exprs),
		Types: NewTypeTable(hints.Types),
	}
}

// ContractTable indexes the module's contract declarations for conformance
// checks.
func (m *Module) ContractTable() *ContractTable {
	return NewContractTable(m.Contracts)
}

// Oracle returns the Copy-classification oracle derived from the module's
// type table.
func (m *Module) Oracle() CopyOracle {
	return TableOracle{Types: m.Types}
}

// RemapFiles rewrites every span's file id. The driver uses it to translate
// module-local file indices into the run-wide FileSet.
func (m *Module) RemapFiles(remap func(source.FileID) source.FileID) {
	exprs := m.Exprs.Arena.Slice()
	for i := range exprs {
		exprs[i].Span.File = remap(exprs[i].Span.File)
	}
	stmts := m.Stmts.Arena.Slice()
	for i := range stmts {
		stmts[i].Span.File = remap(stmts[i].Span.File)
	}
	funcs := m.Funcs.Arena.Slice()
	for i := range funcs {
		funcs[i].Span.File = remap(funcs[i].Span.File)
		if funcs[i].Receiver != nil {
			funcs[i].Receiver.Span.File = remap(funcs[i].Receiver.Span.File)
		}
		for j := range funcs[i].Params {
			funcs[i].Params[j].Span.File = remap(funcs[i].Params[j].Span.File)
		}
	}
	closures := m.Exprs.Closures.Slice()
	for i := range closures {
		for j := range closures[i].Params {
			closures[i].Params[j].Span.File = remap(closures[i].Params[j].Span.File)
		}
	}
	for i := range m.Contracts {
		m.Contracts[i].Span.File = remap(m.Contracts[i].Span.File)
	}
	for i := range m.Impls {
		m.Impls[i].Span.File = remap(m.Impls[i].Span.File)
	}
	for i := range m.Consts {
		m.Consts[i].Span.File = remap(m.Consts[i].Span.File)
	}
}
