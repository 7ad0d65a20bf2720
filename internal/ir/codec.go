package ir

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// Wire schema version. Bump whenever the serialized layout changes; decoding
// rejects mismatches instead of misreading stale frontend output.
const codecSchemaVersion uint16 = 1

// wireModule flattens the arena-backed Module into plain slices msgpack can
// handle by reflection.
type wireModule struct {
	Schema      uint16   `msgpack:"schema"`
	Name        string   `msgpack:"name"`
	SourceFiles []string `msgpack:"source_files,omitempty"`

	Funcs []Func `msgpack:"funcs,omitempty"`
	Types []Type `msgpack:"types,omitempty"`

	Stmts        []Stmt            `msgpack:"stmts,omitempty"`
	StmtBlocks   []StmtBlockData   `msgpack:"stmt_blocks,omitempty"`
	StmtLets     []StmtLetData     `msgpack:"stmt_lets,omitempty"`
	StmtAssigns  []StmtAssignData  `msgpack:"stmt_assigns,omitempty"`
	StmtExprs    []StmtExprData    `msgpack:"stmt_exprs,omitempty"`
	StmtReturns  []StmtReturnData  `msgpack:"stmt_returns,omitempty"`
	StmtIfs      []StmtIfData      `msgpack:"stmt_ifs,omitempty"`
	StmtWhiles   []StmtWhileData   `msgpack:"stmt_whiles,omitempty"`
	Exprs        []Expr            `msgpack:"exprs,omitempty"`
	ExprIdents   []ExprIdentData   `msgpack:"expr_idents,omitempty"`
	ExprLiterals []ExprLiteralData `msgpack:"expr_literals,omitempty"`
	ExprUnaries  []ExprUnaryData   `msgpack:"expr_unaries,omitempty"`
	ExprBinaries []ExprBinaryData  `msgpack:"expr_binaries,omitempty"`
	ExprCalls    []ExprCallData    `msgpack:"expr_calls,omitempty"`
	ExprFields   []ExprFieldData   `msgpack:"expr_fields,omitempty"`
	ExprIndices  []ExprIndexData   `msgpack:"expr_indices,omitempty"`
	ExprStructs  []ExprStructData  `msgpack:"expr_structs,omitempty"`
	ExprClosures []ExprClosureData `msgpack:"expr_closures,omitempty"`
	ExprCasts    []ExprCastData    `msgpack:"expr_casts,omitempty"`

	Contracts []Contract    `msgpack:"contracts,omitempty"`
	Impls     []Impl        `msgpack:"impls,omitempty"`
	Consts    []GlobalConst `msgpack:"consts,omitempty"`
}

// EncodeModule serializes the module for transport between the frontend and
// the verifier.
func EncodeModule(m *Module) ([]byte, error) {
	w := wireModule{
		Schema:      codecSchemaVersion,
		Name:        m.Name,
		SourceFiles: m.SourceFiles,

		Funcs: m.Funcs.Arena.Slice(),
		Types: m.Types.arena.Slice(),

		Stmts:        m.Stmts.Arena.Slice(),
		StmtBlocks:   m.Stmts.Blocks.Slice(),
		StmtLets:     m.Stmts.Lets.Slice(),
		StmtAssigns:  m.Stmts.Assigns.Slice(),
		StmtExprs:    m.Stmts.Exprs.Slice(),
		StmtReturns:  m.Stmts.Returns.Slice(),
		StmtIfs:      m.Stmts.Ifs.Slice(),
		StmtWhiles:   m.Stmts.Whiles.Slice(),
		Exprs:        m.Exprs.Arena.Slice(),
		ExprIdents:   m.Exprs.Idents.Slice(),
		ExprLiterals: m.Exprs.Literals.Slice(),
		ExprUnaries:  m.Exprs.Unaries.Slice(),
		ExprBinaries: m.Exprs.Binaries.Slice(),
		ExprCalls:    m.Exprs.Calls.Slice(),
		ExprFields:   m.Exprs.Fields.Slice(),
		ExprIndices:  m.Exprs.Indices.Slice(),
		ExprStructs:  m.Exprs.Structs.Slice(),
		ExprClosures: m.Exprs.Closures.Slice(),
		ExprCasts:    m.Exprs.Casts.Slice(),

		Contracts: m.Contracts,
		Impls:     m.Impls,
		Consts:    m.Consts,
	}
	return msgpack.Marshal(&w)
}

// DecodeModule deserializes a module produced by EncodeModule.
func DecodeModule(data []byte) (*Module, error) {
	var w wireModule
	if err := msgpack.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("decode module: %w", err)
	}
	if w.Schema != codecSchemaVersion {
		return nil, fmt.Errorf("decode module: schema %d, verifier expects %d", w.Schema, codecSchemaVersion)
	}

	m := NewModule(w.Name, Hints{})
	m.SourceFiles = w.SourceFiles

	m.Funcs.Arena.Restore(w.Funcs)
	m.Funcs.rebuildIndex()
	m.Types.arena.Restore(w.Types)

	m.Stmts.Arena.Restore(w.Stmts)
	m.Stmts.Blocks.Restore(w.StmtBlocks)
	m.Stmts.Lets.Restore(w.StmtLets)
	m.Stmts.Assigns.Restore(w.StmtAssigns)
	m.Stmts.Exprs.Restore(w.StmtExprs)
	m.Stmts.Returns.Restore(w.StmtReturns)
	m.Stmts.Ifs.Restore(w.StmtIfs)
	m.Stmts.Whiles.Restore(w.StmtWhiles)
	m.Exprs.Arena.Restore(w.Exprs)
	m.Exprs.Idents.Restore(w.ExprIdents)
	m.Exprs.Literals.Restore(w.ExprLiterals)
	m.Exprs.Unaries.Restore(w.ExprUnaries)
	m.Exprs.Binaries.Restore(w.ExprBinaries)
	m.Exprs.Calls.Restore(w.ExprCalls)
	m.Exprs.Fields.Restore(w.ExprFields)
	m.Exprs.Indices.Restore(w.ExprIndices)
	m.Exprs.Structs.Restore(w.ExprStructs)
	m.Exprs.Closures.Restore(w.ExprClosures)
	m.Exprs.Casts.Restore(w.ExprCasts)

	m.Contracts = w.Contracts
	m.Impls = w.Impls
	m.Consts = w.Consts

	return m, nil
}
