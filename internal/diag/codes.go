package diag

import (
	"fmt"
)

type Code uint16

const (
	// UnknownCode is the zero value; nothing should emit it.
	UnknownCode Code = 0

	// Ownership analysis (phases 1-4).
	OwnInfo Code = 4000

	// Phase 1: immutability.
	OwnImmutableAssignment          Code = 4001
	OwnMissingMutationMarker        Code = 4002
	OwnSpuriousMutationMarker       Code = 4003
	OwnMutableSelfInImmutableMethod Code = 4004
	OwnMutabilityContractMismatch   Code = 4005
	OwnUnsafeOperationOutsideUnsafe Code = 4006

	// Phase 2: moves.
	OwnUseAfterMove             Code = 4010
	OwnUseOfPartiallyMovedValue Code = 4011

	// Phase 3: borrows.
	OwnMutableWhileImmutablyBorrowed Code = 4020
	OwnImmutableWhileMutablyBorrowed Code = 4021
	OwnMutableWhileMutablyBorrowed   Code = 4022
	OwnMutationWhileBorrowed         Code = 4023
	OwnMoveWhileBorrowed             Code = 4024

	// Phase 4: lifetimes.
	OwnReturnDanglingReference   Code = 4030
	OwnReferenceOutlivesReferent Code = 4031

	// IO / driver.
	IOLoadFileError Code = 5001
	IODecodeError   Code = 5002
	ProjInfo        Code = 6000
	ProjBadManifest Code = 6001
)

var codeDescription = map[Code]string{
	UnknownCode:                      "Unknown error",
	OwnInfo:                          "Ownership information",
	OwnImmutableAssignment:           "assignment to immutable binding",
	OwnMissingMutationMarker:         "mutating call without mutation marker",
	OwnSpuriousMutationMarker:        "mutation marker on non-mutating callee",
	OwnMutableSelfInImmutableMethod:  "mutable self access in non-mutating method",
	OwnMutabilityContractMismatch:    "method mutability differs from contract declaration",
	OwnUnsafeOperationOutsideUnsafe:  "unsafe operation outside unsafe block",
	OwnUseAfterMove:                  "use of moved value",
	OwnUseOfPartiallyMovedValue:      "use of partially moved value",
	OwnMutableWhileImmutablyBorrowed: "mutable borrow while immutably borrowed",
	OwnImmutableWhileMutablyBorrowed: "immutable borrow while mutably borrowed",
	OwnMutableWhileMutablyBorrowed:   "mutable borrow while mutably borrowed",
	OwnMutationWhileBorrowed:         "mutation of borrowed binding",
	OwnMoveWhileBorrowed:             "move of borrowed binding",
	OwnReturnDanglingReference:       "returning reference to function-local value",
	OwnReferenceOutlivesReferent:     "reference outlives its referent",
	IOLoadFileError:                  "I/O load file error",
	IODecodeError:                    "module decode error",
	ProjInfo:                         "Project information",
	ProjBadManifest:                  "Invalid project manifest",
}

// IsBorrowConflict reports whether the code is one of the three borrow
// exclusivity violations.
func (c Code) IsBorrowConflict() bool {
	switch c {
	case OwnMutableWhileImmutablyBorrowed,
		OwnImmutableWhileMutablyBorrowed,
		OwnMutableWhileMutablyBorrowed:
		return true
	}
	return false
}

func (c Code) ID() string {
	switch ic := int(c); {
	case ic >= 4000 && ic < 5000:
		return fmt.Sprintf("OWN%04d", ic)
	case ic >= 5000 && ic < 6000:
		return fmt.Sprintf("IO%04d", ic)
	case ic >= 6000 && ic < 7000:
		return fmt.Sprintf("PRJ%04d", ic)
	}
	return "E0000"
}

func (c Code) Title() string {
	desc, ok := codeDescription[c]
	if !ok {
		return codeDescription[Code(0)]
	}
	return desc
}

func (c Code) String() string {
	return fmt.Sprintf("[%s]: %s", c.ID(), c.Title())
}
