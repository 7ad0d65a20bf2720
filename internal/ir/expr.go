package ir

import (
	"vexcheck/internal/source"
)

type ExprKind uint8

const (
	ExprInvalid ExprKind = iota
	ExprIdent
	ExprLit
	ExprUnary
	ExprBinary
	ExprCall
	ExprField
	ExprIndex
	ExprStruct
	ExprClosure
	ExprCast
)

// Expr is the per-node header: kind tag, source span, and the resolved type
// the upstream checker annotated the node with.
type Expr struct {
	Kind    ExprKind    `msgpack:"kind"`
	Span    source.Span `msgpack:"span"`
	Type    TypeID      `msgpack:"type"`
	Payload PayloadID   `msgpack:"payload"`
}

type ExprLitKind uint8

const (
	ExprLitInt ExprLitKind = iota
	ExprLitFloat
	ExprLitBool
	ExprLitString
	ExprLitUnit
)

type ExprUnaryOp uint8

const (
	ExprUnaryNeg ExprUnaryOp = iota
	ExprUnaryNot
	ExprUnaryDeref
	ExprUnaryRef    // &x
	ExprUnaryRefMut // &x!
)

type ExprBinaryOp uint8

const (
	ExprBinaryAdd ExprBinaryOp = iota
	ExprBinarySub
	ExprBinaryMul
	ExprBinaryDiv
	ExprBinaryMod
	ExprBinaryEq
	ExprBinaryNe
	ExprBinaryLt
	ExprBinaryLe
	ExprBinaryGt
	ExprBinaryGe
	ExprBinaryAnd
	ExprBinaryOr
)

type ExprIdentData struct {
	Name string `msgpack:"name"`
}

type ExprLiteralData struct {
	Kind  ExprLitKind `msgpack:"kind"`
	Value string      `msgpack:"value"`
}

type ExprUnaryData struct {
	Op      ExprUnaryOp `msgpack:"op"`
	Operand ExprID      `msgpack:"operand"`
}

type ExprBinaryData struct {
	Op    ExprBinaryOp `msgpack:"op"`
	Left  ExprID       `msgpack:"left"`
	Right ExprID       `msgpack:"right"`
}

// ExprCallData covers free calls, method calls (Receiver valid), and calls
// through closure values (Func invalid, Callee names the binding).
// MutMarker is the call-site `!` the immutability phase cross-checks.
type ExprCallData struct {
	Callee    string   `msgpack:"callee"`
	Func      FuncID   `msgpack:"func,omitempty"`
	Receiver  ExprID   `msgpack:"receiver,omitempty"`
	Args      []ExprID `msgpack:"args,omitempty"`
	MutMarker bool     `msgpack:"mut_marker,omitempty"`
}

type ExprFieldData struct {
	Object ExprID `msgpack:"object"`
	Name   string `msgpack:"name"`
}

type ExprIndexData struct {
	Object ExprID `msgpack:"object"`
	Index  ExprID `msgpack:"index"`
}

// StructFieldInit is one `name: value` entry in an aggregate literal.
type StructFieldInit struct {
	Name  string `msgpack:"name"`
	Value ExprID `msgpack:"value"`
}

type ExprStructData struct {
	Type   TypeID            `msgpack:"type"`
	Fields []StructFieldInit `msgpack:"fields,omitempty"`
}

type ExprClosureData struct {
	Params []Param `msgpack:"params,omitempty"`
	Body   StmtID  `msgpack:"body"`
}

type ExprCastData struct {
	Value  ExprID `msgpack:"value"`
	Target TypeID `msgpack:"target"`
}

// Exprs manages allocation of expressions.
type Exprs struct {
	Arena    *Arena[Expr]
	Idents   *Arena[ExprIdentData]
	Literals *Arena[ExprLiteralData]
	Unaries  *Arena[ExprUnaryData]
	Binaries *Arena[ExprBinaryData]
	Calls    *Arena[ExprCallData]
	Fields   *Arena[ExprFieldData]
	Indices  *Arena[ExprIndexData]
	Structs  *Arena[ExprStructData]
	Closures *Arena[ExprClosureData]
	Casts    *Arena[ExprCastData]
}

func NewExprs(capHint uint) *Exprs {
	if capHint == 0 {
		capHint = 1 << 8
	}
	return &Exprs{
		Arena:    NewArena[Expr](capHint),
		Idents:   NewArena[ExprIdentData](capHint),
		Literals: NewArena[ExprLiteralData](capHint),
		Unaries:  NewArena[ExprUnaryData](capHint),
		Binaries: NewArena[ExprBinaryData](capHint),
		Calls:    NewArena[ExprCallData](capHint),
		Fields:   NewArena[ExprFieldData](capHint),
		Indices:  NewArena[ExprIndexData](capHint),
		Structs:  NewArena[ExprStructData](capHint),
		Closures: NewArena[ExprClosureData](capHint),
		Casts:    NewArena[ExprCastData](capHint),
	}
}

func (e *Exprs) new(kind ExprKind, span source.Span, ty TypeID, payload PayloadID) ExprID {
	return ExprID(e.Arena.Allocate(Expr{
		Kind:    kind,
		Span:    span,
		Type:    ty,
		Payload: payload,
	}))
}

// Get returns the expression header for the given ID.
func (e *Exprs) Get(id ExprID) *Expr {
	return e.Arena.Get(uint32(id))
}

// NewIdent creates an identifier expression.
func (e *Exprs) NewIdent(span source.Span, ty TypeID, name string) ExprID {
	payload := e.Idents.Allocate(ExprIdentData{Name: name})
	return e.new(ExprIdent, span, ty, PayloadID(payload))
}

func (e *Exprs) Ident(id ExprID) (*ExprIdentData, bool) {
	expr := e.Get(id)
	if expr == nil || expr.Kind != ExprIdent {
		return nil, false
	}
	return e.Idents.Get(uint32(expr.Payload)), true
}

// NewLiteral creates a literal expression.
func (e *Exprs) NewLiteral(span source.Span, ty TypeID, kind ExprLitKind, value string) ExprID {
	payload := e.Literals.Allocate(ExprLiteralData{Kind: kind, Value: value})
	return e.new(ExprLit, span, ty, PayloadID(payload))
}

func (e *Exprs) Literal(id ExprID) (*ExprLiteralData, bool) {
	expr := e.Get(id)
	if expr == nil || expr.Kind != ExprLit {
		return nil, false
	}
	return e.Literals.Get(uint32(expr.Payload)), true
}

// NewUnary creates a unary expression (including the borrow operators).
func (e *Exprs) NewUnary(span source.Span, ty TypeID, op ExprUnaryOp, operand ExprID) ExprID {
	payload := e.Unaries.Allocate(ExprUnaryData{Op: op, Operand: operand})
	return e.new(ExprUnary, span, ty, PayloadID(payload))
}

func (e *Exprs) Unary(id ExprID) (*ExprUnaryData, bool) {
	expr := e.Get(id)
	if expr == nil || expr.Kind != ExprUnary {
		return nil, false
	}
	return e.Unaries.Get(uint32(expr.Payload)), true
}

// NewBinary creates a binary expression.
func (e *Exprs) NewBinary(span source.Span, ty TypeID, op ExprBinaryOp, left, right ExprID) ExprID {
	payload := e.Binaries.Allocate(ExprBinaryData{Op: op, Left: left, Right: right})
	return e.new(ExprBinary, span, ty, PayloadID(payload))
}

func (e *Exprs) Binary(id ExprID) (*ExprBinaryData, bool) {
	expr := e.Get(id)
	if expr == nil || expr.Kind != ExprBinary {
		return nil, false
	}
	return e.Binaries.Get(uint32(expr.Payload)), true
}

// NewCall creates a call expression.
func (e *Exprs) NewCall(span source.Span, ty TypeID, data ExprCallData) ExprID {
	payload := e.Calls.Allocate(data)
	return e.new(ExprCall, span, ty, PayloadID(payload))
}

func (e *Exprs) Call(id ExprID) (*ExprCallData, bool) {
	expr := e.Get(id)
	if expr == nil || expr.Kind != ExprCall {
		return nil, false
	}
	return e.Calls.Get(uint32(expr.Payload)), true
}

// NewField creates a field access expression.
func (e *Exprs) NewField(span source.Span, ty TypeID, object ExprID, name string) ExprID {
	payload := e.Fields.Allocate(ExprFieldData{Object: object, Name: name})
	return e.new(ExprField, span, ty, PayloadID(payload))
}

func (e *Exprs) Field(id ExprID) (*ExprFieldData, bool) {
	expr := e.Get(id)
	if expr == nil || expr.Kind != ExprField {
		return nil, false
	}
	return e.Fields.Get(uint32(expr.Payload)), true
}

// NewIndex creates an index expression.
func (e *Exprs) NewIndex(span source.Span, ty TypeID, object, index ExprID) ExprID {
	payload := e.Indices.Allocate(ExprIndexData{Object: object, Index: index})
	return e.new(ExprIndex, span, ty, PayloadID(payload))
}

func (e *Exprs) Index(id ExprID) (*ExprIndexData, bool) {
	expr := e.Get(id)
	if expr == nil || expr.Kind != ExprIndex {
		return nil, false
	}
	return e.Indices.Get(uint32(expr.Payload)), true
}

// NewStruct creates an aggregate literal expression.
func (e *Exprs) NewStruct(span source.Span, ty TypeID, data ExprStructData) ExprID {
	payload := e.Structs.Allocate(data)
	return e.new(ExprStruct, span, ty, PayloadID(payload))
}

func (e *Exprs) Struct(id ExprID) (*ExprStructData, bool) {
	expr := e.Get(id)
	if expr == nil || expr.Kind != ExprStruct {
		return nil, false
	}
	return e.Structs.Get(uint32(expr.Payload)), true
}

// NewClosure creates a closure expression.
func (e *Exprs) NewClosure(span source.Span, ty TypeID, data ExprClosureData) ExprID {
	payload := e.Closures.Allocate(data)
	return e.new(ExprClosure, span, ty, PayloadID(payload))
}

func (e *Exprs) Closure(id ExprID) (*ExprClosureData, bool) {
	expr := e.Get(id)
	if expr == nil || expr.Kind != ExprClosure {
		return nil, false
	}
	return e.Closures.Get(uint32(expr.Payload)), true
}

// NewCast creates a cast expression.
func (e *Exprs) NewCast(span source.Span, ty TypeID, value ExprID, target TypeID) ExprID {
	payload := e.Casts.Allocate(ExprCastData{Value: value, Target: target})
	return e.new(ExprCast, span, ty, PayloadID(payload))
}

func (e *Exprs) Cast(id ExprID) (*ExprCastData, bool) {
	expr := e.Get(id)
	if expr == nil || expr.Kind != ExprCast {
		return nil, false
	}
	return e.Casts.Get(uint32(expr.Payload)), true
}
