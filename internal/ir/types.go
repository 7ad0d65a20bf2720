package ir

import (
	"fmt"

	"fortio.org/safecast"
)

// TypeKind enumerates the resolved type shapes the verifier distinguishes.
// Anything richer (generics, unions, aliases) is flattened away upstream;
// the analysis only needs ownership-relevant structure.
type TypeKind uint8

const (
	TypeInvalid TypeKind = iota
	TypeUnit
	TypeBool
	TypeInt
	TypeFloat
	TypeString
	TypeStruct
	TypeBox // owning heap value
	TypeRef // borrowed reference, Mut distinguishes &T from &T!
	TypeRawPtr
	TypeFunc
)

func (k TypeKind) String() string {
	switch k {
	case TypeUnit:
		return "unit"
	case TypeBool:
		return "bool"
	case TypeInt:
		return "int"
	case TypeFloat:
		return "float"
	case TypeString:
		return "string"
	case TypeStruct:
		return "struct"
	case TypeBox:
		return "box"
	case TypeRef:
		return "ref"
	case TypeRawPtr:
		return "rawptr"
	case TypeFunc:
		return "func"
	default:
		return "invalid"
	}
}

// Field is a named struct member.
type Field struct {
	Name string `msgpack:"name"`
	Type TypeID `msgpack:"type"`
}

// Type is one interned entry of the type table. Copy carries the upstream
// Copy classification (builtin scalars plus @copy-annotated aggregates).
type Type struct {
	Kind   TypeKind `msgpack:"kind"`
	Name   string   `msgpack:"name,omitempty"`
	Elem   TypeID   `msgpack:"elem,omitempty"` // Ref/RawPtr/Box element
	Mut    bool     `msgpack:"mut,omitempty"`  // Ref only: &T! vs &T
	Copy   bool     `msgpack:"copy,omitempty"`
	Fields []Field  `msgpack:"fields,omitempty"` // Struct only
}

// TypeTable stores resolved types in a flat arena.
type TypeTable struct {
	arena *Arena[Type]
}

func NewTypeTable(capHint uint) *TypeTable {
	if capHint == 0 {
		capHint = 1 << 6
	}
	return &TypeTable{arena: NewArena[Type](capHint)}
}

func (t *TypeTable) Add(ty Type) TypeID {
	if _, err := safecast.Conv[uint32](int(t.arena.Len()) + 1); err != nil {
		panic(fmt.Errorf("type table overflow: %w", err))
	}
	return TypeID(t.arena.Allocate(ty))
}

func (t *TypeTable) Get(id TypeID) *Type {
	if t == nil {
		return nil
	}
	return t.arena.Get(uint32(id))
}

func (t *TypeTable) Len() uint32 {
	return t.arena.Len()
}

// IsRef reports whether id resolves to a reference type.
func (t *TypeTable) IsRef(id TypeID) bool {
	ty := t.Get(id)
	return ty != nil && ty.Kind == TypeRef
}

// IsRawPtr reports whether id resolves to an unmanaged pointer type.
func (t *TypeTable) IsRawPtr(id TypeID) bool {
	ty := t.Get(id)
	return ty != nil && ty.Kind == TypeRawPtr
}

// FieldType returns the type of a named struct field, if present.
func (t *TypeTable) FieldType(id TypeID, name string) (TypeID, bool) {
	ty := t.Get(id)
	if ty == nil || ty.Kind != TypeStruct {
		return NoTypeID, false
	}
	for _, f := range ty.Fields {
		if f.Name == name {
			return f.Type, true
		}
	}
	return NoTypeID, false
}

// CopyOracle is the external Copy-classification interface consumed by the
// move checker: values of Copy types bypass ownership tracking entirely.
type CopyOracle interface {
	IsCopy(id TypeID) bool
}

// TableOracle answers Copy queries from type-table metadata. References and
// raw pointers are always Copy; an unknown type is conservatively non-Copy.
type TableOracle struct {
	Types *TypeTable
}

func (o TableOracle) IsCopy(id TypeID) bool {
	if o.Types == nil {
		return false
	}
	ty := o.Types.Get(id)
	if ty == nil {
		return false
	}
	switch ty.Kind {
	case TypeUnit, TypeBool, TypeInt, TypeFloat, TypeRef, TypeRawPtr:
		return true
	default:
		return ty.Copy
	}
}
