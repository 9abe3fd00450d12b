package resource

// Request is either a concrete request value or the absent sentinel, which
// means "no active request".
type Request[R any] struct {
	value   R
	present bool
}

// Some wraps a concrete request.
func Some[R any](v R) Request[R] {
	return Request[R]{value: v, present: true}
}

// None returns the absent sentinel.
func None[R any]() Request[R] {
	return Request[R]{}
}

// Get returns the request value and whether one is present.
func (r Request[R]) Get() (R, bool) {
	return r.value, r.present
}

// Present reports whether r carries a value.
func (r Request[R]) Present() bool {
	return r.present
}
