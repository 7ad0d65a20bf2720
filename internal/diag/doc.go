// Package diag defines the diagnostic model shared by all verifier phases.
//
//   - Provide deterministic, serialisable data structures that capture
//     findings produced by the ownership analysis phases.
//   - Offer light-weight utilities (Reporter, Bag) that let phases emit
//     diagnostics without coupling to concrete storage or formatting layers.
//
// Diagnostic is the central record: Severity, a stable numeric Code,
// a short message, the primary source.Span, optional Notes ("moved here",
// "borrow created here") and optional fix Suggestions ("declare the binding
// as mutable").
//
// Phases emit through a diag.Reporter. BagReporter aggregates into a Bag,
// which supports sorting, deduplication, and merging across workers;
// DedupReporter filters repeats when a phase deliberately re-walks a region
// (loop bodies are analysed twice by the move checker).
//
// Rendering lives in internal/diagfmt; this package performs no IO.
package diag
