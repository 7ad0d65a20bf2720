package diag

import (
	"sync/atomic"

	"vexcheck/internal/source"
)

// ErrorCounter tracks the number of error-severity diagnostics observed
// across an entire run. It is safe for concurrent use; the driver consults
// it to implement the fail-fast threshold.
type ErrorCounter struct {
	n atomic.Int64
}

func (c *ErrorCounter) Count() int64 {
	return c.n.Load()
}

// CountingReporter forwards every diagnostic to next and bumps the shared
// counter on errors.
type CountingReporter struct {
	next    Reporter
	counter *ErrorCounter
}

func NewCountingReporter(next Reporter, counter *ErrorCounter) *CountingReporter {
	return &CountingReporter{next: next, counter: counter}
}

func (r *CountingReporter) Report(code Code, sev Severity, primary source.Span, msg string, notes []Note, suggestions []Suggestion) {
	if r == nil {
		return
	}
	if sev.IsError() && r.counter != nil {
		r.counter.n.Add(1)
	}
	if r.next != nil {
		r.next.Report(code, sev, primary, msg, notes, suggestions)
	}
}
