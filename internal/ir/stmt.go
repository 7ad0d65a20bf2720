package ir

import (
	"vexcheck/internal/source"
)

type StmtKind uint8

const (
	StmtInvalid StmtKind = iota
	StmtBlock
	StmtLet
	StmtAssign
	StmtExpr
	StmtReturn
	StmtIf
	StmtWhile
)

type Stmt struct {
	Kind    StmtKind    `msgpack:"kind"`
	Span    source.Span `msgpack:"span"`
	Payload PayloadID   `msgpack:"payload"`
}

// StmtBlockData is an ordered statement list. Unsafe marks a designated
// unsafe region gating raw-pointer operations.
type StmtBlockData struct {
	Stmts  []StmtID `msgpack:"stmts,omitempty"`
	Unsafe bool     `msgpack:"unsafe,omitempty"`
}

// StmtLetData introduces a binding. Init may be invalid: `let mut x;`
// declares an uninitialized slot the move checker treats as moved-from.
type StmtLetData struct {
	Name    string `msgpack:"name"`
	Mutable bool   `msgpack:"mutable,omitempty"`
	Type    TypeID `msgpack:"type"`
	Init    ExprID `msgpack:"init,omitempty"`
}

// StmtAssignData writes Value into the place denoted by Target
// (identifier, field, index, or deref chain).
type StmtAssignData struct {
	Target ExprID `msgpack:"target"`
	Value  ExprID `msgpack:"value"`
}

type StmtExprData struct {
	Expr ExprID `msgpack:"expr"`
}

type StmtReturnData struct {
	Value ExprID `msgpack:"value,omitempty"`
}

type StmtIfData struct {
	Cond ExprID `msgpack:"cond"`
	Then StmtID `msgpack:"then"`
	Else StmtID `msgpack:"else,omitempty"`
}

type StmtWhileData struct {
	Cond ExprID `msgpack:"cond"`
	Body StmtID `msgpack:"body"`
}

// Stmts manages allocation of statements.
type Stmts struct {
	Arena   *Arena[Stmt]
	Blocks  *Arena[StmtBlockData]
	Lets    *Arena[StmtLetData]
	Assigns *Arena[StmtAssignData]
	Exprs   *Arena[StmtExprData]
	Returns *Arena[StmtReturnData]
	Ifs     *Arena[StmtIfData]
	Whiles  *Arena[StmtWhileData]
}

func NewStmts(capHint uint) *Stmts {
	if capHint == 0 {
		capHint = 1 << 8
	}
	return &Stmts{
		Arena:   NewArena[Stmt](capHint),
		Blocks:  NewArena[StmtBlockData](capHint),
		Lets:    NewArena[StmtLetData](capHint),
		Assigns: NewArena[StmtAssignData](capHint),
		Exprs:   NewArena[StmtExprData](capHint),
		Returns: NewArena[StmtReturnData](capHint),
		Ifs:     NewArena[StmtIfData](capHint),
		Whiles:  NewArena[StmtWhileData](capHint),
	}
}

func (s *Stmts) new(kind StmtKind, span source.Span, payload PayloadID) StmtID {
	return StmtID(s.Arena.Allocate(Stmt{
		Kind:    kind,
		Span:    span,
		Payload: payload,
	}))
}

func (s *Stmts) Get(id StmtID) *Stmt {
	return s.Arena.Get(uint32(id))
}

func (s *Stmts) NewBlock(span source.Span, data StmtBlockData) StmtID {
	payload := s.Blocks.Allocate(data)
	return s.new(StmtBlock, span, PayloadID(payload))
}

func (s *Stmts) Block(id StmtID) (*StmtBlockData, bool) {
	stmt := s.Get(id)
	if stmt == nil || stmt.Kind != StmtBlock {
		return nil, false
	}
	return s.Blocks.Get(uint32(stmt.Payload)), true
}

func (s *Stmts) NewLet(span source.Span, data StmtLetData) StmtID {
	payload := s.Lets.Allocate(data)
	return s.new(StmtLet, span, PayloadID(payload))
}

func (s *Stmts) Let(id StmtID) (*StmtLetData, bool) {
	stmt := s.Get(id)
	if stmt == nil || stmt.Kind != StmtLet {
		return nil, false
	}
	return s.Lets.Get(uint32(stmt.Payload)), true
}

func (s *Stmts) NewAssign(span source.Span, target, value ExprID) StmtID {
	payload := s.Assigns.Allocate(StmtAssignData{Target: target, Value: value})
	return s.new(StmtAssign, span, PayloadID(payload))
}

func (s *Stmts) Assign(id StmtID) (*StmtAssignData, bool) {
	stmt := s.Get(id)
	if stmt == nil || stmt.Kind != StmtAssign {
		return nil, false
	}
	return s.Assigns.Get(uint32(stmt.Payload)), true
}

func (s *Stmts) NewExpr(span source.Span, expr ExprID) StmtID {
	payload := s.Exprs.Allocate(StmtExprData{Expr: expr})
	return s.new(StmtExpr, span, PayloadID(payload))
}

func (s *Stmts) Expr(id StmtID) (*StmtExprData, bool) {
	stmt := s.Get(id)
	if stmt == nil || stmt.Kind != StmtExpr {
		return nil, false
	}
	return s.Exprs.Get(uint32(stmt.Payload)), true
}

func (s *Stmts) NewReturn(span source.Span, value ExprID) StmtID {
	payload := s.Returns.Allocate(StmtReturnData{Value: value})
	return s.new(StmtReturn, span, PayloadID(payload))
}

func (s *Stmts) Return(id StmtID) (*StmtReturnData, bool) {
	stmt := s.Get(id)
	if stmt == nil || stmt.Kind != StmtReturn {
		return nil, false
	}
	return s.Returns.Get(uint32(stmt.Payload)), true
}

func (s *Stmts) NewIf(span source.Span, cond ExprID, then, els StmtID) StmtID {
	payload := s.Ifs.Allocate(StmtIfData{Cond: cond, Then: then, Else: els})
	return s.new(StmtIf, span, PayloadID(payload))
}

func (s *Stmts) If(id StmtID) (*StmtIfData, bool) {
	stmt := s.Get(id)
	if stmt == nil || stmt.Kind != StmtIf {
		return nil, false
	}
	return s.Ifs.Get(uint32(stmt.Payload)), true
}

func (s *Stmts) NewWhile(span source.Span, cond ExprID, body StmtID) StmtID {
	payload := s.Whiles.Allocate(StmtWhileData{Cond: cond, Body: body})
	return s.new(StmtWhile, span, PayloadID(payload))
}

func (s *Stmts) While(id StmtID) (*StmtWhileData, bool) {
	stmt := s.Get(id)
	if stmt == nil || stmt.Kind != StmtWhile {
		return nil, false
	}
	return s.Whiles.Get(uint32(stmt.Payload)), true
}
