package ir

// Arena is a flat, append-only store addressed by 1-based indices.
// Index 0 is reserved as "absent" so zero-valued ids stay invalid.
type Arena[T any] struct {
	data []T
}

// NewArena returns an arena whose backing slice is preallocated to capHint.
func NewArena[T any](capHint uint) *Arena[T] {
	return &Arena[T]{
		data: make([]T, 0, capHint),
	}
}

// Allocate stores value and returns its 1-based index.
func (a *Arena[T]) Allocate(value T) uint32 {
	a.data = append(a.data, value)
	return uint32(len(a.data))
}

func (a *Arena[T]) Get(index uint32) *T {
	if index == 0 {
		return nil
	}
	return &a.data[index-1]
}

// Slice exposes the backing storage. Callers must treat it as read-only;
// the codec uses it to serialize arenas wholesale.
func (a *Arena[T]) Slice() []T {
	return a.data
}

// Restore replaces the backing storage. Used by the codec when decoding.
func (a *Arena[T]) Restore(data []T) {
	a.data = data
}

func (a *Arena[T]) Len() uint32 {
	return uint32(len(a.data))
}
