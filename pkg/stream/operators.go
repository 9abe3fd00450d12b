package stream

import "sync"

// Map transforms every value with fn.
func Map[T, U any](s Stream[T], fn func(T) U) Stream[U] {
	return Func[U](func(o Observer[U]) Subscription {
		return s.Subscribe(Observer[T]{
			OnNext:     func(v T) { o.Next(fn(v)) },
			OnError:    o.Error,
			OnComplete: o.Complete,
		})
	})
}

// MapIndex transforms every value with fn, also passing its zero-based
// position. The counter is per subscription.
func MapIndex[T, U any](s Stream[T], fn func(v T, i int) U) Stream[U] {
	return Func[U](func(o Observer[U]) Subscription {
		i := 0
		return s.Subscribe(Observer[T]{
			OnNext: func(v T) {
				idx := i
				i++
				o.Next(fn(v, idx))
			},
			OnError:    o.Error,
			OnComplete: o.Complete,
		})
	})
}

// StartWith emits values synchronously on subscription, before s.
func StartWith[T any](s Stream[T], values ...T) Stream[T] {
	return Func[T](func(o Observer[T]) Subscription {
		for _, v := range values {
			o.Next(v)
		}
		return s.Subscribe(o)
	})
}

// Tap calls the side-effect observer before forwarding each notification.
func Tap[T any](s Stream[T], side Observer[T]) Stream[T] {
	return Func[T](func(o Observer[T]) Subscription {
		return s.Subscribe(Observer[T]{
			OnNext: func(v T) {
				side.Next(v)
				o.Next(v)
			},
			OnError: func(err error) {
				side.Error(err)
				o.Error(err)
			},
			OnComplete: func() {
				side.Complete()
				o.Complete()
			},
		})
	})
}

// Take forwards the first n values, then completes and unsubscribes from s.
// A synchronous source cannot be cancelled before its Subscribe returns, so
// it runs to the end; surplus values are discarded.
func Take[T any](s Stream[T], n int) Stream[T] {
	if n <= 0 {
		return Empty[T]()
	}
	return Func[T](func(o Observer[T]) Subscription {
		sub := NewSubscription()
		count := 0
		upstream := s.Subscribe(Observer[T]{
			OnNext: func(v T) {
				if sub.Closed() {
					return
				}
				count++
				o.Next(v)
				if count >= n && sub.stop() {
					o.Complete()
				}
			},
			OnError: func(err error) {
				if sub.stop() {
					o.Error(err)
				}
			},
			OnComplete: func() {
				if sub.stop() {
					o.Complete()
				}
			},
		})
		sub.Add(upstream.Unsubscribe)
		return sub
	})
}

// Finally runs fn exactly once when the subscription ends, whether by
// completion, error or Unsubscribe.
func Finally[T any](s Stream[T], fn func()) Stream[T] {
	return Func[T](func(o Observer[T]) Subscription {
		var once sync.Once
		run := func() { once.Do(fn) }
		upstream := s.Subscribe(Observer[T]{
			OnNext: o.Next,
			OnError: func(err error) {
				o.Error(err)
				run()
			},
			OnComplete: func() {
				o.Complete()
				run()
			},
		})
		// Teardowns run in reverse: detach upstream first, then fn.
		return NewSubscription(run, upstream.Unsubscribe)
	})
}

// CatchError replaces an error from s with the stream returned by handler.
// Only s is guarded; an error from the replacement is forwarded.
func CatchError[T any](s Stream[T], handler func(error) Stream[T]) Stream[T] {
	return Func[T](func(o Observer[T]) Subscription {
		sub := NewSubscription()
		upstream := s.Subscribe(Observer[T]{
			OnNext: func(v T) {
				if !sub.Closed() {
					o.Next(v)
				}
			},
			OnError: func(err error) {
				if sub.Closed() {
					return
				}
				fallback := handler(err).Subscribe(o)
				sub.Add(fallback.Unsubscribe)
			},
			OnComplete: func() {
				if !sub.Closed() {
					o.Complete()
				}
			},
		})
		sub.Add(upstream.Unsubscribe)
		return sub
	})
}

// ObserveOn re-routes every notification of s through d. Notifications
// still queued when the subscription is cancelled are dropped.
func ObserveOn[T any](s Stream[T], d Dispatcher) Stream[T] {
	return Func[T](func(o Observer[T]) Subscription {
		sub := NewSubscription()
		upstream := s.Subscribe(Observer[T]{
			OnNext: func(v T) {
				d.Dispatch(func() {
					if !sub.Closed() {
						o.Next(v)
					}
				})
			},
			OnError: func(err error) {
				d.Dispatch(func() {
					if sub.stop() {
						o.Error(err)
					}
				})
			},
			OnComplete: func() {
				d.Dispatch(func() {
					if sub.stop() {
						o.Complete()
					}
				})
			},
		})
		sub.Add(upstream.Unsubscribe)
		return sub
	})
}

// SwitchMap maps every value of s to an inner stream and mirrors only the
// most recent one. A new value from s unsubscribes the previous inner
// stream before project is called, and anything the old inner stream
// emits afterwards is discarded.
//
// An inner error terminates the result. Completion of s completes the
// result once the active inner stream, if any, has completed too.
func SwitchMap[T, U any](s Stream[T], project func(T) Stream[U]) Stream[U] {
	return Func[U](func(o Observer[U]) Subscription {
		sub := NewSubscription()

		var (
			mu        sync.Mutex
			seq       uint64
			inner     Subscription
			active    bool
			outerDone bool
		)
		detach := func() uint64 {
			mu.Lock()
			seq++
			id := seq
			prev := inner
			inner = nil
			active = false
			mu.Unlock()
			if prev != nil {
				prev.Unsubscribe()
			}
			return id
		}
		live := func(id uint64) bool {
			mu.Lock()
			defer mu.Unlock()
			return seq == id && !sub.Closed()
		}
		sub.Add(func() { detach() })

		upstream := s.Subscribe(Observer[T]{
			OnNext: func(v T) {
				if sub.Closed() {
					return
				}
				id := detach()
				mu.Lock()
				active = true
				mu.Unlock()
				next := project(v).Subscribe(Observer[U]{
					OnNext: func(u U) {
						if live(id) {
							o.Next(u)
						}
					},
					OnError: func(err error) {
						if live(id) && sub.stop() {
							o.Error(err)
						}
					},
					OnComplete: func() {
						mu.Lock()
						if seq != id {
							mu.Unlock()
							return
						}
						active = false
						finished := outerDone
						mu.Unlock()
						if finished && sub.stop() {
							o.Complete()
						}
					},
				})

				mu.Lock()
				if seq == id && !sub.Closed() {
					inner = next
					mu.Unlock()
					return
				}
				mu.Unlock()
				next.Unsubscribe()
			},
			OnError: func(err error) {
				if sub.stop() {
					o.Error(err)
				}
			},
			OnComplete: func() {
				mu.Lock()
				outerDone = true
				pending := active
				mu.Unlock()
				if !pending && sub.stop() {
					o.Complete()
				}
			},
		})
		sub.Add(upstream.Unsubscribe)
		return sub
	})
}
