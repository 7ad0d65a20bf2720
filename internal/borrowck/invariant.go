package borrowck

import "fmt"

// invariantError marks a violation of an upstream guarantee (for example an
// identifier that does not resolve to any binding). It is not a user
// diagnostic: the current phase aborts for the current function and the
// error surfaces to the driver as a plain Go error.
type invariantError struct {
	msg string
}

func (e *invariantError) Error() string {
	return "internal invariant violated: " + e.msg
}

func invariant(format string, args ...any) {
	panic(&invariantError{msg: fmt.Sprintf(format, args...)})
}

// guard runs fn, converting an invariant panic into an error. Any other
// panic propagates unchanged. The orchestrator wraps each per-function phase
// run so an abort never happens mid-scope from the caller's point of view.
func guard(fn func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if iv, ok := r.(*invariantError); ok {
				err = iv
				return
			}
			panic(r)
		}
	}()
	fn()
	return nil
}
