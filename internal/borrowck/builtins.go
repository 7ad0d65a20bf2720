package borrowck

// BuiltinInfo describes how a runtime builtin behaves for ownership
// purposes: whether calling it mutates its receiver-like first argument,
// and whether it belongs to the unmanaged-memory family that must sit
// inside an unsafe block.
type BuiltinInfo struct {
	Name     string
	Mutating bool
	Unsafe   bool
}

// BuiltinRegistry resolves callables the module does not define itself.
type BuiltinRegistry struct {
	byName map[string]BuiltinInfo
}

// NewBuiltinRegistry returns the registry preloaded with the runtime
// builtins the frontend may resolve calls to.
func NewBuiltinRegistry() *BuiltinRegistry {
	r := &BuiltinRegistry{byName: make(map[string]BuiltinInfo)}

	// Core I/O and assertions: read-only.
	for _, name := range []string{"print", "println", "panic", "assert", "sizeof", "alignof"} {
		r.register(BuiltinInfo{Name: name})
	}

	// Unmanaged memory family: unsafe, never analyzed beyond the gate.
	for _, name := range []string{"alloc", "free", "realloc", "ptr_read", "ptr_write", "ptr_offset"} {
		r.register(BuiltinInfo{Name: name, Unsafe: true})
	}

	// String/byte helpers with in-place mutation.
	for _, name := range []string{"strcpy", "strcat", "memcpy", "memset", "memmove"} {
		r.register(BuiltinInfo{Name: name, Mutating: true})
	}
	for _, name := range []string{"strlen", "strcmp", "strdup", "memcmp", "utf8_valid", "utf8_char_count", "utf8_char_at"} {
		r.register(BuiltinInfo{Name: name})
	}

	// Collection builtins that mutate their first argument.
	for _, name := range []string{"push", "pop", "insert", "remove", "clear", "map_insert", "map_remove"} {
		r.register(BuiltinInfo{Name: name, Mutating: true})
	}
	for _, name := range []string{"len", "contains", "map_get", "map_contains"} {
		r.register(BuiltinInfo{Name: name})
	}

	return r
}

func (r *BuiltinRegistry) register(info BuiltinInfo) {
	r.byName[info.Name] = info
}

// Get returns the builtin entry for name.
func (r *BuiltinRegistry) Get(name string) (BuiltinInfo, bool) {
	if r == nil {
		return BuiltinInfo{}, false
	}
	info, ok := r.byName[name]
	return info, ok
}

// IsUnsafe reports whether name belongs to the unmanaged-memory family.
func (r *BuiltinRegistry) IsUnsafe(name string) bool {
	info, ok := r.Get(name)
	return ok && info.Unsafe
}
