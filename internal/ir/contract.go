package ir

import (
	"vexcheck/internal/source"
)

// ContractMethod is one declared method of a contract: its name, the
// declared mutability flag, and the parameter count of the signature.
type ContractMethod struct {
	Name     string `msgpack:"name"`
	Mutating bool   `msgpack:"mutating,omitempty"`
	Arity    int    `msgpack:"arity"`
}

// Contract is a declared interface.
type Contract struct {
	Name    string           `msgpack:"name"`
	Methods []ContractMethod `msgpack:"methods,omitempty"`
	Span    source.Span      `msgpack:"span"`
}

// Impl binds a type's methods to a contract; each listed callable must
// match the contract's declared mutability for its method name.
type Impl struct {
	Contract string      `msgpack:"contract"`
	Type     TypeID      `msgpack:"type"`
	Methods  []FuncID    `msgpack:"methods,omitempty"`
	Span     source.Span `msgpack:"span"`
}

type contractKey struct {
	contract string
	method   string
}

// ContractTable answers (contract, method) -> declared mutability lookups.
type ContractTable struct {
	byKey map[contractKey]ContractMethod
}

// NewContractTable indexes the module's contract declarations.
func NewContractTable(contracts []Contract) *ContractTable {
	t := &ContractTable{byKey: make(map[contractKey]ContractMethod)}
	for _, c := range contracts {
		for _, m := range c.Methods {
			t.byKey[contractKey{contract: c.Name, method: m.Name}] = m
		}
	}
	return t
}

// Lookup returns the declared method entry for (contract, method).
func (t *ContractTable) Lookup(contract, method string) (ContractMethod, bool) {
	if t == nil {
		return ContractMethod{}, false
	}
	m, ok := t.byKey[contractKey{contract: contract, method: method}]
	return m, ok
}
