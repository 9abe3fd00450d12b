package resource

import (
	"context"

	"github.com/vango-dev/streamres/internal/errors"
	"github.com/vango-dev/streamres/pkg/stream"
)

// pipeline turns tagged requests into records, keeping only the latest
// request's loader alive.
type pipeline[R, T any] struct {
	ctx   context.Context
	load  Loader[R, T]
	queue stream.Dispatcher
}

func (p *pipeline[R, T]) records(in stream.Stream[tagged[R]]) stream.Stream[Record[T]] {
	return stream.SwitchMap(in, p.project)
}

// project handles one tagged request. Failures of this request become an
// Error record and never reach the outer stream.
func (p *pipeline[R, T]) project(t tagged[R]) stream.Stream[Record[T]] {
	req, ok := t.req.Get()
	if !ok {
		return stream.Of(idleRecord[T]())
	}

	ctx, cancel := context.WithCancel(p.ctx)
	src, origin, err := invoke(ctx, p.load, req)
	if err != nil {
		cancel()
		rec := errorRecord[T](err, origin)
		rec.reload = t.reload
		return stream.Of(rec)
	}

	responses := stream.Map(stream.ObserveOn(src, p.queue), resolvedRecord[T])
	guarded := stream.CatchError(responses, func(err error) stream.Stream[Record[T]] {
		rec := errorRecord[T](err, OriginAsync)
		rec.reload = t.reload
		return stream.Of(rec)
	})
	return stream.Finally(stream.StartWith(guarded, pendingRecord[T](t.reload)), cancel)
}

// invoke calls load, converting a returned error, a nil stream or a panic
// into an error with its origin.
func invoke[R, T any](ctx context.Context, load Loader[R, T], req R) (src stream.Stream[T], origin Origin, err error) {
	defer func() {
		if r := recover(); r != nil {
			src, origin, err = nil, OriginPanic, errors.Panicked(r)
		}
	}()

	src, err = load(ctx, req)
	if err != nil {
		return nil, OriginSync, err
	}
	if src == nil {
		return nil, OriginSync, errors.New(errors.CodeNilStream)
	}
	return src, OriginNone, nil
}
