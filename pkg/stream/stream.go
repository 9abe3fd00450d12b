package stream

import "sync"

// Observer receives the notifications of a Stream. Any callback may be nil.
//
// A well-behaved source calls OnNext zero or more times followed by at most
// one of OnError or OnComplete, never concurrently and never after the
// subscription has been cancelled.
type Observer[T any] struct {
	OnNext     func(T)
	OnError    func(error)
	OnComplete func()
}

// Next delivers v to OnNext if set.
func (o Observer[T]) Next(v T) {
	if o.OnNext != nil {
		o.OnNext(v)
	}
}

// Error delivers err to OnError if set.
func (o Observer[T]) Error(err error) {
	if o.OnError != nil {
		o.OnError(err)
	}
}

// Complete calls OnComplete if set.
func (o Observer[T]) Complete() {
	if o.OnComplete != nil {
		o.OnComplete()
	}
}

// Stream is a push-based source of values.
// Subscribe starts delivery to o and returns a handle that detaches it.
type Stream[T any] interface {
	Subscribe(o Observer[T]) Subscription
}

// Func adapts a subscribe function to the Stream interface.
type Func[T any] func(o Observer[T]) Subscription

// Subscribe calls f(o).
func (f Func[T]) Subscribe(o Observer[T]) Subscription {
	return f(o)
}

// Subscription is the cancellation handle returned by Subscribe.
type Subscription interface {
	// Unsubscribe detaches the observer and releases the source's
	// resources. It is idempotent and safe to call from any goroutine.
	Unsubscribe()

	// Closed reports whether Unsubscribe has been called.
	Closed() bool
}

// Sub is a Subscription that runs registered teardown functions once, in
// reverse registration order, when it is unsubscribed.
type Sub struct {
	mu        sync.Mutex
	closed    bool
	teardowns []func()
}

// NewSubscription returns a Sub that will run the given teardowns.
func NewSubscription(teardowns ...func()) *Sub {
	s := &Sub{}
	for _, fn := range teardowns {
		s.Add(fn)
	}
	return s
}

// Add registers fn to run on Unsubscribe. If s is already closed, fn runs
// immediately.
func (s *Sub) Add(fn func()) {
	if fn == nil {
		return
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		fn()
		return
	}
	s.teardowns = append(s.teardowns, fn)
	s.mu.Unlock()
}

// Unsubscribe runs every registered teardown.
func (s *Sub) Unsubscribe() {
	s.stop()
}

// stop unsubscribes and reports whether this call was the one that closed s.
// Operators use it to deliver exactly one terminal notification.
func (s *Sub) stop() bool {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false
	}
	s.closed = true
	teardowns := s.teardowns
	s.teardowns = nil
	s.mu.Unlock()

	for i := len(teardowns) - 1; i >= 0; i-- {
		teardowns[i]()
	}
	return true
}

// Closed reports whether s has been unsubscribed.
func (s *Sub) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Dispatcher runs callbacks, possibly later and on another goroutine.
// internal/serial.Queue is the canonical implementation.
type Dispatcher interface {
	Dispatch(fn func())
}
