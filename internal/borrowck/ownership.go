package borrowck

import (
	"vexcheck/internal/scope"
	"vexcheck/internal/source"
)

// OwnershipKind is the per-binding move state at a program point.
type OwnershipKind uint8

const (
	// StateOwned: the binding holds its value and every field is intact.
	StateOwned OwnershipKind = iota
	// StateMoved: ownership was transferred away (or the binding was never
	// initialized); reads fail until reassignment.
	StateMoved
	// StatePartiallyMoved: some fields were moved out; untouched fields
	// remain usable, whole-value use fails.
	StatePartiallyMoved
)

func (k OwnershipKind) String() string {
	switch k {
	case StateOwned:
		return "owned"
	case StateMoved:
		return "moved"
	case StatePartiallyMoved:
		return "partially-moved"
	default:
		return "unknown"
	}
}

// ownState carries the kind plus the spans needed for "moved here" notes.
type ownState struct {
	kind        OwnershipKind
	movedAt     source.Span
	movedFields map[string]source.Span
}

func (s ownState) clone() ownState {
	out := s
	if s.movedFields != nil {
		out.movedFields = make(map[string]source.Span, len(s.movedFields))
		for k, v := range s.movedFields {
			out.movedFields[k] = v
		}
	}
	return out
}

// ownMap tracks move state per binding. A binding that is absent is Owned;
// binding ids are never reused within a function, so states of dead scopes
// are harmless leftovers.
type ownMap map[scope.BindingID]ownState

func (m ownMap) clone() ownMap {
	out := make(ownMap, len(m))
	for k, v := range m {
		out[k] = v.clone()
	}
	return out
}

// intersect merges two join-point states conservatively: a binding is Owned
// only when Owned on both paths; partial moves accumulate the union of the
// moved fields; Moved on either path dominates.
func intersect(a, b ownMap) ownMap {
	out := make(ownMap, len(a)+len(b))
	for id, sa := range a {
		sb, ok := b[id]
		if !ok {
			sb = ownState{kind: StateOwned}
		}
		out[id] = joinStates(sa, sb)
	}
	for id, sb := range b {
		if _, seen := a[id]; seen {
			continue
		}
		out[id] = joinStates(ownState{kind: StateOwned}, sb)
	}
	for id, st := range out {
		if st.kind == StateOwned {
			delete(out, id)
		}
	}
	return out
}

func joinStates(a, b ownState) ownState {
	if a.kind == StateMoved {
		return a.clone()
	}
	if b.kind == StateMoved {
		return b.clone()
	}
	if a.kind == StateOwned && b.kind == StateOwned {
		return ownState{kind: StateOwned}
	}
	// At least one side is partially moved: union the fields.
	out := ownState{kind: StatePartiallyMoved, movedFields: make(map[string]source.Span)}
	for k, v := range a.movedFields {
		out.movedFields[k] = v
	}
	for k, v := range b.movedFields {
		out.movedFields[k] = v
	}
	return out
}
