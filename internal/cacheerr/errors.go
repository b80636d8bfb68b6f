// Package cacheerr classifies the error outcomes a build cache can produce.
//
// Cache lookup/add errors never propagate as ordinary Go errors up through the
// wrapper driver: every kind here either degrades to a miss/warning, or (ToolExec
// only) becomes the driver's exit code. This is a deliberate re-expression, as a sum
// type propagated by value, of the original implementation's throw-to-signal-a-miss
// control flow.
package cacheerr

// Kind enumerates the error classifications recognized by the cache.
type Kind int

const (
	// CacheMiss is not an error; it is the normal "nothing to return" outcome.
	CacheMiss Kind = iota
	// CacheInconsistency means a cached payload disagreed with the declared expected
	// slots. Downgraded to a miss; the offending entry may be evicted.
	CacheInconsistency
	// StoreIO is a filesystem error in the local store. Logged; downgraded to a miss
	// for lookups, suppressed silently for adds.
	StoreIO
	// RemoteIO is a network/protocol error talking to the remote cache. Logged as a
	// warning; never fatal.
	RemoteIO
	// ToolExec means the wrapped tool could not be started at all (not found,
	// permission denied). This is the one fatal kind: it becomes the driver's exit
	// code.
	ToolExec
	// WrapperReject means the wrapper itself failed during one of its steps. Logged;
	// the driver falls back to running the tool directly, uncached.
	WrapperReject
)

func (k Kind) String() string {
	switch k {
	case CacheMiss:
		return "cache miss"
	case CacheInconsistency:
		return "cache inconsistency"
	case StoreIO:
		return "store I/O error"
	case RemoteIO:
		return "remote I/O error"
	case ToolExec:
		return "tool exec error"
	case WrapperReject:
		return "wrapper rejected"
	default:
		return "unknown cache error"
	}
}

// Fatal reports whether errors of this kind should propagate as the driver's exit
// code rather than degrade to a miss/warning. Only ToolExec is fatal: the cache must
// never make a build fail.
func (k Kind) Fatal() bool {
	return k == ToolExec
}

// Error is a classified cache error: a Kind plus the underlying cause.
type Error struct {
	Kind Kind
	Err  error
}

// New creates a classified Error.
func New(kind Kind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Kind.String()
	}
	return e.Kind.String() + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether err is a classified Error of the given kind.
func Is(err error, kind Kind) bool {
	ce, ok := err.(*Error)
	return ok && ce.Kind == kind
}
