// Package borrowck implements the four-phase ownership verifier that gates
// code generation for a Vex compilation unit.
//
// The phases run in a fixed order over the same ir.Module:
//
//  1. immutability — mutation only through mutable bindings and properly
//     marked mutating methods; unsafe gating of raw-pointer operations.
//  2. moves — per-binding ownership state (Owned / Moved / PartiallyMoved),
//     intersected at control-flow joins; use-after-move detection.
//  3. borrows — per-binding live borrow sets, "many readers xor one writer",
//     closure capture-mode inference.
//  4. lifetimes — pure region-depth comparison; no reference may outlive
//     its referent. No annotation syntax exists: regions come from lexical
//     scope nesting alone.
//
// Phases communicate only through the tree and the diag.Reporter; every
// phase builds its own scope.Table, so each is independently testable and
// later phases run even when earlier ones reported errors. The unit may
// proceed to code generation only when Result.Pass() is true.
package borrowck
