package borrowck

import (
	"context"

	"vexcheck/internal/diag"
	"vexcheck/internal/ir"
)

// Options configures one verification run. Zero-value fields get defaults:
// lexical borrow release, the standard builtin registry, and the module's
// own Copy oracle.
type Options struct {
	// Reporter receives every diagnostic. Required.
	Reporter diag.Reporter
	// Release decides when borrows end. Defaults to LexicalRelease.
	Release ReleaseStrategy
	// Builtins resolves calls the module does not define. Defaults to
	// NewBuiltinRegistry.
	Builtins *BuiltinRegistry
	// Oracle answers Copy-classification queries. Defaults to the module's
	// type-table oracle.
	Oracle ir.CopyOracle
}

// Result is the verification outcome consumed by the driver and by
// downstream generic instantiation (closure call capabilities).
type Result struct {
	// ClosureModes records the inferred capture mode per closure expression.
	ClosureModes map[ir.ExprID]CaptureMode

	errors int64
}

// Pass reports whether code generation may proceed: no error-severity
// diagnostic was emitted by any phase.
func (r *Result) Pass() bool {
	return r != nil && r.errors == 0
}

// ErrorCount returns the number of error diagnostics emitted.
func (r *Result) ErrorCount() int64 {
	if r == nil {
		return 0
	}
	return r.errors
}

// Capability returns the call capability of the closure expression, if it
// was analyzed.
func (r *Result) Capability(id ir.ExprID) (Capability, bool) {
	mode, ok := r.ClosureModes[id]
	if !ok {
		return ReadOnlyCallable, false
	}
	return mode.Capability(), true
}

// Check runs the four analysis phases over the module in order:
// immutability, moves, borrows, lifetimes. All phases run even when earlier
// ones report errors, so one run surfaces every category at once. The
// returned error covers internal invariant violations only; user-facing
// findings go to the reporter. Running Check twice over the same module
// yields the same diagnostics: no phase mutates the module.
//
// Cancelling ctx stops the run at the next function boundary; a partial
// run reports context.Canceled through the returned error.
func Check(ctx context.Context, mod *ir.Module, opts Options) (*Result, error) {
	if opts.Release == nil {
		opts.Release = LexicalRelease{}
	}
	if opts.Builtins == nil {
		opts.Builtins = NewBuiltinRegistry()
	}
	if opts.Oracle == nil {
		opts.Oracle = mod.Oracle()
	}

	var counter diag.ErrorCounter
	reporter := diag.NewCountingReporter(opts.Reporter, &counter)

	var errs []error
	if err := newImmutability(mod, reporter, opts.Builtins).checkModule(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := newMoves(mod, reporter, opts.Oracle).checkModule(ctx); err != nil {
		errs = append(errs, err)
	}
	phase3 := newBorrows(mod, reporter, opts.Oracle, opts.Builtins, opts.Release)
	if err := phase3.checkModule(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := newLifetimes(mod, reporter).checkModule(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := ctx.Err(); err != nil {
		errs = append(errs, err)
	}

	result := &Result{
		ClosureModes: phase3.modes,
		errors:       counter.Count(),
	}
	return result, joinErrs(errs)
}
