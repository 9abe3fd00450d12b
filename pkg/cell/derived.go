package cell

import "sync"

// derived is a projection of another view. It holds no value of its own.
type derived[S, T any] struct {
	src   View[S]
	fn    func(S) T
	equal func(a, b T) bool
}

// Map returns a read-only view of fn applied to src. Subscribers are only
// notified when the projected value changes according to Equal.
func Map[S, T any](src View[S], fn func(S) T) View[T] {
	return &derived[S, T]{src: src, fn: fn, equal: Equal[T]}
}

// MapEq is Map with a caller-supplied equality.
func MapEq[S, T any](src View[S], fn func(S) T, equal func(a, b T) bool) View[T] {
	return &derived[S, T]{src: src, fn: fn, equal: equal}
}

func (d *derived[S, T]) Get() T {
	return d.fn(d.src.Get())
}

func (d *derived[S, T]) Subscribe(fn func(T)) func() {
	var mu sync.Mutex
	last := d.Get()
	return d.src.Subscribe(func(s S) {
		next := d.fn(s)
		mu.Lock()
		if d.equal(last, next) {
			mu.Unlock()
			return
		}
		last = next
		mu.Unlock()
		fn(next)
	})
}
