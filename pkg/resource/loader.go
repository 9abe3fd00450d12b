package resource

import (
	"context"

	"github.com/vango-dev/streamres/pkg/stream"
)

// Loader maps a request to a stream of responses. It may fail before
// returning a stream, by returning an error or panicking, or the stream may
// fail later. ctx is cancelled when the request is superseded, the stream
// terminates, or the resource is torn down.
type Loader[R, T any] func(ctx context.Context, req R) (stream.Stream[T], error)

// Aggregate folds one response into the accumulated value.
type Aggregate[V, T any] func(acc V, resp T) V

// Single adapts a one-shot fetch function into a Loader whose stream
// emits the single result and completes. fetch runs on its own goroutine,
// so the resource reports Loading while it is in flight; its error is an
// asynchronous stream failure.
func Single[R, T any](fetch func(ctx context.Context, req R) (T, error)) Loader[R, T] {
	return func(ctx context.Context, req R) (stream.Stream[T], error) {
		return stream.Create(func(e *stream.Emitter[T]) func() {
			go func() {
				v, err := fetch(ctx, req)
				if err != nil {
					e.Error(err)
					return
				}
				e.Next(v)
				e.Complete()
			}()
			return nil
		}), nil
	}
}

// MapResponses returns a Loader that transforms every response of load
// with fn.
func MapResponses[R, T, U any](load Loader[R, T], fn func(T) U) Loader[R, U] {
	return func(ctx context.Context, req R) (stream.Stream[U], error) {
		src, err := load(ctx, req)
		if err != nil || src == nil {
			return nil, err
		}
		return stream.Map(src, fn), nil
	}
}
