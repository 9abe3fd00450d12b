package resource

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vango-dev/streamres/internal/errors"
	"github.com/vango-dev/streamres/internal/serial"
	"github.com/vango-dev/streamres/pkg/cell"
	"github.com/vango-dev/streamres/pkg/lifecycle"
	"github.com/vango-dev/streamres/pkg/stream"
)

// Resource aggregates the responses of the latest request into one state.
type Resource[R, T, V any] struct {
	name      string
	logger    *slog.Logger
	observers observers
	scope     *lifecycle.Scope
	aggregate Aggregate[V, T]

	queue    *serial.Queue
	triggers *stream.Subject[reloadSignal]

	state     *cell.Cell[State[V]]
	status    cell.View[Status]
	value     cell.View[V]
	err       cell.View[error]
	isLoading cell.View[bool]

	// queue only
	pendingSince time.Time

	mu            sync.Mutex
	sub           stream.Subscription
	started       bool
	stopped       bool
	reloadPending bool

	closed atomic.Bool
}

// New creates a resource seeded with initial and subscribes it to requests
// immediately. The resource lives until Close is called or its scope is
// disposed.
func New[R, T, V any](
	initial V,
	requests stream.Stream[Request[R]],
	load Loader[R, T],
	aggregate Aggregate[V, T],
	opts ...Option,
) *Resource[R, T, V] {
	o := buildOptions(opts)

	r := &Resource[R, T, V]{
		name:      o.name,
		logger:    o.logger.With("resource", o.name),
		observers: o.observers,
		scope:     o.scope,
		aggregate: aggregate,
		queue:     &serial.Queue{},
		triggers:  stream.NewSubject[reloadSignal](),
	}

	// Every record is a transition, even when it leaves the state equal.
	r.state = cell.New(State[V]{Status: Idle, Value: initial}).
		WithEquals(func(a, b State[V]) bool { return false })
	r.status = cell.Map[State[V]](r.state, func(s State[V]) Status { return s.Status })
	r.value = cell.Map[State[V]](r.state, func(s State[V]) V { return s.Value })
	r.err = cell.Map[State[V]](r.state, func(s State[V]) error { return s.Err })
	r.isLoading = cell.Map[State[V]](r.state, func(s State[V]) bool { return s.Status.Pending() })

	p := &pipeline[R, T]{ctx: r.scope.Context(), load: load, queue: r.queue}
	records := p.records(coordinate(stream.ObserveOn(requests, r.queue), r.triggers))

	r.scope.OnCleanup(r.teardown)
	r.queue.Dispatch(func() { r.start(records) })
	return r
}

func (r *Resource[R, T, V]) start(records stream.Stream[Record[T]]) {
	r.mu.Lock()
	if r.closed.Load() {
		r.mu.Unlock()
		return
	}
	r.started = true
	r.mu.Unlock()
	r.logger.Debug("resource started")
	r.observers.Observe(Event{Kind: Started, Resource: r.name})

	sub := records.Subscribe(stream.Observer[Record[T]]{
		OnNext:     r.apply,
		OnError:    r.fail,
		OnComplete: r.complete,
	})

	r.mu.Lock()
	if r.closed.Load() {
		r.mu.Unlock()
		sub.Unsubscribe()
		return
	}
	r.sub = sub
	r.mu.Unlock()
}

// apply is the reducer step. It runs on the queue only.
func (r *Resource[R, T, V]) apply(rec Record[T]) {
	if r.closed.Load() {
		return
	}
	prev := r.state.Get()
	next := reduce(prev, rec, r.aggregate)

	ev := Event{
		Kind:     Transition,
		Resource: r.name,
		From:     prev.Status,
		To:       next.Status,
		IsReload: rec.reload,
		Origin:   rec.origin,
		Err:      rec.Err,
	}
	switch {
	case next.Status.Pending():
		r.pendingSince = time.Now()
	case prev.Status.Pending() && !r.pendingSince.IsZero():
		ev.Elapsed = time.Since(r.pendingSince)
		r.pendingSince = time.Time{}
	}

	if rec.Status == Error {
		r.logger.Warn("loader failed", "origin", rec.origin.String(), "error", rec.Err)
	}

	r.state.Set(next)
	r.observers.Observe(ev)
	if rec.Status == Error {
		ev.Kind = Failure
		r.observers.Observe(ev)
	}
}

// fail handles a failure of the request stream itself. The pipeline is
// gone; the value is kept and the error is stored as given.
func (r *Resource[R, T, V]) fail(err error) {
	if r.closed.Load() || !r.markStopped() {
		return
	}
	prev := r.state.Get()
	r.logger.Error("request stream failed", "error", errors.Wrap(errors.CodeRequestsFailed, err))

	r.state.Set(State[V]{Status: Error, Value: prev.Value, Err: err})
	ev := Event{
		Kind:     Transition,
		Resource: r.name,
		From:     prev.Status,
		To:       Error,
		Origin:   OriginOuter,
		Err:      err,
	}
	r.observers.Observe(ev)
	ev.Kind = Failure
	r.observers.Observe(ev)
}

// complete runs once the request stream has completed and the last
// request's responses are exhausted: nothing can change any more, so the
// resource settles in Idle.
func (r *Resource[R, T, V]) complete() {
	if r.closed.Load() || !r.markStopped() {
		return
	}
	prev := r.state.Get()
	r.logger.Debug("request stream completed")

	r.state.Set(State[V]{Status: Idle, Value: prev.Value, Err: prev.Err})
	r.observers.Observe(Event{Kind: Transition, Resource: r.name, From: prev.Status, To: Idle})
}

func (r *Resource[R, T, V]) markStopped() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped {
		return false
	}
	r.stopped = true
	r.sub = nil
	return true
}

func (r *Resource[R, T, V]) teardown() {
	if !r.closed.CompareAndSwap(false, true) {
		return
	}
	r.queue.Close()

	r.mu.Lock()
	sub := r.sub
	r.sub = nil
	started := r.started
	r.mu.Unlock()
	if sub != nil {
		sub.Unsubscribe()
	}
	r.triggers.Complete()

	if !started {
		r.logger.Debug("resource disposed before start")
		return
	}
	last := r.state.Get().Status
	r.logger.Debug("resource torn down", "status", last.String())
	r.observers.Observe(Event{Kind: Stopped, Resource: r.name, From: last, To: last})
}

// Name returns the name given with WithName.
func (r *Resource[R, T, V]) Name() string {
	return r.name
}

// Status is the current phase.
func (r *Resource[R, T, V]) Status() cell.View[Status] {
	return r.status
}

// Value is the accumulated value. It is never absent.
func (r *Resource[R, T, V]) Value() cell.View[V] {
	return r.value
}

// Error is the error of the last failed request, or nil.
func (r *Resource[R, T, V]) Error() cell.View[error] {
	return r.err
}

// IsLoading is true while the status is Loading or Reloading.
func (r *Resource[R, T, V]) IsLoading() cell.View[bool] {
	return r.isLoading
}

// HasValue always reports true: the value is seeded with the initial value.
func (r *Resource[R, T, V]) HasValue() bool {
	return true
}

// Snapshot returns the whole current state.
func (r *Resource[R, T, V]) Snapshot() State[V] {
	return r.state.Get()
}

// Subscribe calls fn with the new state after every transition, including
// transitions that leave the state unchanged. It returns the unsubscribe
// function.
func (r *Resource[R, T, V]) Subscribe(fn func(State[V])) func() {
	return r.state.Subscribe(fn)
}

// Reload retries the last request. It only acts when the status is Error
// and the request stream is still live; it reports whether a reload was
// scheduled. The reload itself is processed on the resource's queue.
func (r *Resource[R, T, V]) Reload() bool {
	r.mu.Lock()
	if r.stopped || r.closed.Load() || r.reloadPending || r.state.Get().Status != Error {
		r.mu.Unlock()
		return false
	}
	r.reloadPending = true
	r.mu.Unlock()

	r.queue.Dispatch(func() {
		r.observers.Observe(Event{Kind: Reloaded, Resource: r.name, From: Error, To: Error, IsReload: true})
		r.triggers.Next(reloadSignal{})

		r.mu.Lock()
		r.reloadPending = false
		r.mu.Unlock()
	})
	return true
}

// Close tears the resource down. The last state stays readable.
func (r *Resource[R, T, V]) Close() {
	r.scope.Dispose()
}

// Done is closed once the resource has been torn down.
func (r *Resource[R, T, V]) Done() <-chan struct{} {
	return r.scope.Done()
}
