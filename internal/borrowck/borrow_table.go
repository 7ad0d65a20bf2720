package borrowck

import (
	"fmt"

	"fortio.org/safecast"

	"vexcheck/internal/scope"
	"vexcheck/internal/source"
)

// BorrowID identifies an active borrow entry.
type BorrowID uint32

// NoBorrowID marks the absence of a borrow.
const NoBorrowID BorrowID = 0

// BorrowKind differentiates immutable (shared) vs mutable (exclusive)
// borrows.
type BorrowKind uint8

const (
	BorrowImmutable BorrowKind = iota
	BorrowMutable
)

func (k BorrowKind) String() string {
	if k == BorrowMutable {
		return "mutable"
	}
	return "immutable"
}

// BorrowInfo stores metadata about each borrow: what is borrowed, how, where
// the borrow expression sits, and the scope whose exit ends it.
type BorrowInfo struct {
	ID    BorrowID
	Kind  BorrowKind
	Place scope.BindingID
	Span  source.Span
	Scope scope.ScopeID
}

type borrowState struct {
	shared []BorrowID
	mut    BorrowID
}

// ConflictKind enumerates reasons a borrow-related action fails.
type ConflictKind uint8

const (
	ConflictNone ConflictKind = iota
	// ConflictShared: the place has live immutable borrows.
	ConflictShared
	// ConflictMutable: the place has a live mutable borrow.
	ConflictMutable
)

// Conflict carries information about the blocking borrow.
type Conflict struct {
	Kind   ConflictKind
	Borrow BorrowID
}

func (c Conflict) Blocked() bool {
	return c.Kind != ConflictNone
}

// BorrowTable tracks the live borrow set per storage location. The decision
// of when a borrow ends is delegated to a ReleaseStrategy so the lexical v1
// policy can be swapped without touching the phase logic.
type BorrowTable struct {
	infos        []BorrowInfo
	placeState   map[scope.BindingID]borrowState
	scopeBorrows map[scope.ScopeID][]BorrowID
}

// NewBorrowTable builds an empty borrow table ready for tracking.
func NewBorrowTable() *BorrowTable {
	return &BorrowTable{
		infos:        []BorrowInfo{{}},
		placeState:   make(map[scope.BindingID]borrowState),
		scopeBorrows: make(map[scope.ScopeID][]BorrowID),
	}
}

// Begin registers a borrow of place created in scope. On conflict the borrow
// is not recorded and the blocking entry is returned.
func (bt *BorrowTable) Begin(kind BorrowKind, place scope.BindingID, span source.Span, sc scope.ScopeID) (BorrowID, Conflict) {
	if bt == nil || !place.IsValid() || !sc.IsValid() {
		return NoBorrowID, Conflict{}
	}
	state := bt.placeState[place]
	switch kind {
	case BorrowImmutable:
		if state.mut != NoBorrowID {
			return NoBorrowID, Conflict{Kind: ConflictMutable, Borrow: state.mut}
		}
	case BorrowMutable:
		if len(state.shared) > 0 {
			return NoBorrowID, Conflict{Kind: ConflictShared, Borrow: state.shared[0]}
		}
		if state.mut != NoBorrowID {
			return NoBorrowID, Conflict{Kind: ConflictMutable, Borrow: state.mut}
		}
	}
	value, err := safecast.Conv[uint32](len(bt.infos))
	if err != nil {
		panic(fmt.Errorf("borrow table overflow: %w", err))
	}
	id := BorrowID(value)
	bt.infos = append(bt.infos, BorrowInfo{
		ID:    id,
		Kind:  kind,
		Place: place,
		Span:  span,
		Scope: sc,
	})
	switch kind {
	case BorrowImmutable:
		state.shared = append(state.shared, id)
	case BorrowMutable:
		state.mut = id
	}
	bt.placeState[place] = state
	bt.scopeBorrows[sc] = append(bt.scopeBorrows[sc], id)
	return id, Conflict{}
}

// Probe checks whether a borrow of the given kind could be created right
// now, without registering it. Temporary borrows (argument position, bare
// expression statements) end with their expression and only need the
// conflict check.
func (bt *BorrowTable) Probe(kind BorrowKind, place scope.BindingID) Conflict {
	if bt == nil || !place.IsValid() {
		return Conflict{}
	}
	state, ok := bt.placeState[place]
	if !ok {
		return Conflict{}
	}
	if state.mut != NoBorrowID {
		return Conflict{Kind: ConflictMutable, Borrow: state.mut}
	}
	if kind == BorrowMutable && len(state.shared) > 0 {
		return Conflict{Kind: ConflictShared, Borrow: state.shared[0]}
	}
	return Conflict{}
}

// MutationAllowed verifies whether the place can be written.
func (bt *BorrowTable) MutationAllowed(place scope.BindingID) Conflict {
	return bt.lookupConflict(place)
}

// MoveAllowed verifies whether the place can be moved from.
func (bt *BorrowTable) MoveAllowed(place scope.BindingID) Conflict {
	return bt.lookupConflict(place)
}

func (bt *BorrowTable) lookupConflict(place scope.BindingID) Conflict {
	if bt == nil || !place.IsValid() {
		return Conflict{}
	}
	state, ok := bt.placeState[place]
	if !ok {
		return Conflict{}
	}
	if len(state.shared) > 0 {
		return Conflict{Kind: ConflictShared, Borrow: state.shared[0]}
	}
	if state.mut != NoBorrowID {
		return Conflict{Kind: ConflictMutable, Borrow: state.mut}
	}
	return Conflict{}
}

// ReleaseScope expires every borrow created in the given scope.
func (bt *BorrowTable) ReleaseScope(sc scope.ScopeID) {
	if bt == nil || !sc.IsValid() {
		return
	}
	ids := bt.scopeBorrows[sc]
	if len(ids) == 0 {
		return
	}
	for _, id := range ids {
		info := bt.Info(id)
		if info == nil {
			continue
		}
		state := bt.placeState[info.Place]
		switch info.Kind {
		case BorrowImmutable:
			state.shared = dropBorrowID(state.shared, id)
		case BorrowMutable:
			if state.mut == id {
				state.mut = NoBorrowID
			}
		}
		if len(state.shared) == 0 && state.mut == NoBorrowID {
			delete(bt.placeState, info.Place)
		} else {
			bt.placeState[info.Place] = state
		}
	}
	delete(bt.scopeBorrows, sc)
}

// Info returns metadata for the borrow.
func (bt *BorrowTable) Info(id BorrowID) *BorrowInfo {
	if bt == nil || id == NoBorrowID || int(id) >= len(bt.infos) {
		return nil
	}
	return &bt.infos[id]
}

// LiveCount returns the number of live borrows of place.
func (bt *BorrowTable) LiveCount(place scope.BindingID) int {
	state, ok := bt.placeState[place]
	if !ok {
		return 0
	}
	n := len(state.shared)
	if state.mut != NoBorrowID {
		n++
	}
	return n
}

func dropBorrowID(ids []BorrowID, target BorrowID) []BorrowID {
	for i, id := range ids {
		if id == target {
			ids[i] = ids[len(ids)-1]
			return ids[:len(ids)-1]
		}
	}
	return ids
}

// ReleaseStrategy decides when borrows end. The v1 policy is lexical: a
// borrow ends when the scope it was created in exits. Non-lexical liveness
// (release at last use) can replace this without touching the phase walk.
type ReleaseStrategy interface {
	ScopeExited(bt *BorrowTable, exited scope.ScopeID)
}

// LexicalRelease is the v1 strategy: release everything the scope created.
type LexicalRelease struct{}

func (LexicalRelease) ScopeExited(bt *BorrowTable, exited scope.ScopeID) {
	bt.ReleaseScope(exited)
}
