package ir

import (
	"vexcheck/internal/source"
)

// Param is a function, method, or closure parameter. Ownership semantics
// follow the type: a Ref parameter borrows its argument, anything else
// takes the argument by value (moving non-Copy values).
type Param struct {
	Name string      `msgpack:"name"`
	Type TypeID      `msgpack:"type"`
	Span source.Span `msgpack:"span"`
}

// Func is a resolved callable: a free function or, when Receiver is set,
// a method. Mutating is the declared `!` flag that must agree with the
// contract declaration and every call-site marker.
type Func struct {
	Name     string      `msgpack:"name"`
	Receiver *Param      `msgpack:"receiver,omitempty"`
	RecvType TypeID      `msgpack:"recv_type,omitempty"` // method owner type
	Mutating bool        `msgpack:"mutating,omitempty"`
	Params   []Param     `msgpack:"params,omitempty"`
	Ret      TypeID      `msgpack:"ret"`
	Body     StmtID      `msgpack:"body,omitempty"` // invalid for extern decls
	Span     source.Span `msgpack:"span"`
}

// IsMethod reports whether the callable has a receiver.
func (f *Func) IsMethod() bool {
	return f != nil && f.Receiver != nil
}

// Funcs manages allocation of callables.
type Funcs struct {
	Arena *Arena[Func]
	index map[string]FuncID
}

func NewFuncs(capHint uint) *Funcs {
	if capHint == 0 {
		capHint = 1 << 6
	}
	return &Funcs{
		Arena: NewArena[Func](capHint),
		index: make(map[string]FuncID, capHint),
	}
}

func (f *Funcs) New(fn Func) FuncID {
	id := FuncID(f.Arena.Allocate(fn))
	f.index[fn.Name] = id
	return id
}

func (f *Funcs) Get(id FuncID) *Func {
	return f.Arena.Get(uint32(id))
}

// ByName returns the callable registered under name, if any.
func (f *Funcs) ByName(name string) (FuncID, bool) {
	id, ok := f.index[name]
	return id, ok
}

func (f *Funcs) Len() uint32 {
	return f.Arena.Len()
}

// rebuildIndex restores the name index after decoding.
func (f *Funcs) rebuildIndex() {
	f.index = make(map[string]FuncID, f.Arena.Len())
	for i, fn := range f.Arena.Slice() {
		f.index[fn.Name] = FuncID(uint32(i) + 1)
	}
}
