package borrowck

// CaptureMode is how a closure captures its free variables, inferred from
// how they are used inside the body: read-only use borrows immutably, any
// write borrows mutably, a consuming use takes ownership and restricts the
// closure to a single invocation.
type CaptureMode uint8

const (
	CaptureByRef CaptureMode = iota
	CaptureByMutRef
	CaptureByMove
)

func (m CaptureMode) String() string {
	switch m {
	case CaptureByRef:
		return "by-ref"
	case CaptureByMutRef:
		return "by-mut-ref"
	case CaptureByMove:
		return "by-move"
	default:
		return "unknown"
	}
}

// Capability is the call-capability category a closure value satisfies,
// queryable by downstream generic instantiation. The three categories are
// mutually exclusive.
type Capability uint8

const (
	// ReadOnlyCallable closures may be invoked any number of times through
	// a shared reference.
	ReadOnlyCallable Capability = iota
	// MutableCallable closures require exclusive access per invocation.
	MutableCallable
	// OneShotCallable closures consume captured state and can only be
	// invoked once.
	OneShotCallable
)

func (c Capability) String() string {
	switch c {
	case ReadOnlyCallable:
		return "read-only-callable"
	case MutableCallable:
		return "mutable-callable"
	case OneShotCallable:
		return "one-shot-callable"
	default:
		return "unknown"
	}
}

// Capability maps the inferred capture mode onto its call category.
func (m CaptureMode) Capability() Capability {
	switch m {
	case CaptureByMove:
		return OneShotCallable
	case CaptureByMutRef:
		return MutableCallable
	default:
		return ReadOnlyCallable
	}
}
