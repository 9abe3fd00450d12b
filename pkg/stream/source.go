package stream

import (
	"context"
	"iter"
	"sync/atomic"
	"time"
)

// Emitter is the producer side handed to Create. It enforces the Observer
// contract: nothing is delivered after a terminal notification or after the
// subscriber unsubscribed.
type Emitter[T any] struct {
	obs  Observer[T]
	sub  *Sub
	ctx  context.Context
	done atomic.Bool
}

// Next delivers v unless the stream has stopped.
func (e *Emitter[T]) Next(v T) {
	if e.Stopped() {
		return
	}
	e.obs.Next(v)
}

// Error terminates the stream with err.
func (e *Emitter[T]) Error(err error) {
	if !e.finish() {
		return
	}
	e.obs.Error(err)
	e.sub.Unsubscribe()
}

// Complete terminates the stream normally.
func (e *Emitter[T]) Complete() {
	if !e.finish() {
		return
	}
	e.obs.Complete()
	e.sub.Unsubscribe()
}

// Stopped reports whether the stream has terminated or been unsubscribed.
func (e *Emitter[T]) Stopped() bool {
	return e.done.Load() || e.sub.Closed()
}

// Context is cancelled when the stream stops for any reason. Goroutines
// started by a producer should exit when it is done.
func (e *Emitter[T]) Context() context.Context {
	return e.ctx
}

func (e *Emitter[T]) finish() bool {
	if e.sub.Closed() {
		return false
	}
	return e.done.CompareAndSwap(false, true)
}

// Create builds a cold Stream. produce runs once per subscription; the
// teardown it returns (may be nil) runs when the subscription ends.
func Create[T any](produce func(e *Emitter[T]) (teardown func())) Stream[T] {
	return Func[T](func(o Observer[T]) Subscription {
		ctx, cancel := context.WithCancel(context.Background())
		sub := NewSubscription(cancel)
		e := &Emitter[T]{obs: o, sub: sub, ctx: ctx}
		sub.Add(produce(e))
		return sub
	})
}

// Of emits values synchronously, then completes.
func Of[T any](values ...T) Stream[T] {
	return Create(func(e *Emitter[T]) func() {
		for _, v := range values {
			if e.Stopped() {
				return nil
			}
			e.Next(v)
		}
		e.Complete()
		return nil
	})
}

// FromSeq emits every element of seq synchronously, then completes.
// Iteration stops early if the subscriber unsubscribes.
func FromSeq[T any](seq iter.Seq[T]) Stream[T] {
	return Create(func(e *Emitter[T]) func() {
		for v := range seq {
			if e.Stopped() {
				return nil
			}
			e.Next(v)
		}
		e.Complete()
		return nil
	})
}

// FromChan emits values received from ch on a dedicated goroutine and
// completes when ch is closed.
func FromChan[T any](ch <-chan T) Stream[T] {
	return Create(func(e *Emitter[T]) func() {
		go func() {
			ctx := e.Context()
			for {
				select {
				case <-ctx.Done():
					return
				case v, ok := <-ch:
					if !ok {
						e.Complete()
						return
					}
					e.Next(v)
				}
			}
		}()
		return nil
	})
}

// Interval emits 0, 1, 2, ... every d, starting after the first period.
// It never completes on its own.
func Interval(d time.Duration) Stream[int] {
	return Create(func(e *Emitter[int]) func() {
		ticker := time.NewTicker(d)
		go func() {
			ctx := e.Context()
			for i := 0; ; i++ {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					e.Next(i)
				}
			}
		}()
		return ticker.Stop
	})
}

// Empty completes immediately.
func Empty[T any]() Stream[T] {
	return Of[T]()
}

// Never emits nothing and never terminates.
func Never[T any]() Stream[T] {
	return Func[T](func(Observer[T]) Subscription {
		return NewSubscription()
	})
}

// Fail terminates immediately with err.
func Fail[T any](err error) Stream[T] {
	return Create(func(e *Emitter[T]) func() {
		e.Error(err)
		return nil
	})
}

// Defer calls factory on every subscription, so that per-subscriber state
// can live in the closure.
func Defer[T any](factory func() Stream[T]) Stream[T] {
	return Func[T](func(o Observer[T]) Subscription {
		return factory().Subscribe(o)
	})
}
