package resource

// Handler handles a specific resource status.
type Handler[V, Out any] interface {
	handle(State[V]) (Out, bool)
}

// Match returns the result of the first handler that accepts the state's
// status, or the zero Out if none does.
//
//	label := resource.Match(res.Snapshot(),
//	    resource.OnPending[[]string](func() string { return "loading..." }),
//	    resource.OnError[[]string](func(err error) string { return err.Error() }),
//	    resource.OnResolved(func(msgs []string) string { return strings.Join(msgs, "\n") }),
//	)
func Match[V, Out any](s State[V], handlers ...Handler[V, Out]) Out {
	for _, h := range handlers {
		if out, ok := h.handle(s); ok {
			return out
		}
	}
	var zero Out
	return zero
}

// Handler implementations

type statusHandler[V, Out any] struct {
	accept func(Status) bool
	fn     func(State[V]) Out
}

func (h statusHandler[V, Out]) handle(s State[V]) (Out, bool) {
	if !h.accept(s.Status) {
		var zero Out
		return zero, false
	}
	return h.fn(s), true
}

func is(want ...Status) func(Status) bool {
	return func(s Status) bool {
		for _, w := range want {
			if s == w {
				return true
			}
		}
		return false
	}
}

// Constructors

// OnIdle handles the Idle status.
func OnIdle[V, Out any](fn func() Out) Handler[V, Out] {
	return statusHandler[V, Out]{accept: is(Idle), fn: func(State[V]) Out { return fn() }}
}

// OnLoading handles Loading and Reloading.
func OnLoading[V, Out any](fn func() Out) Handler[V, Out] {
	return statusHandler[V, Out]{accept: is(Loading, Reloading), fn: func(State[V]) Out { return fn() }}
}

// OnError handles the Error status.
func OnError[V, Out any](fn func(error) Out) Handler[V, Out] {
	return statusHandler[V, Out]{accept: is(Error), fn: func(s State[V]) Out { return fn(s.Err) }}
}

// OnResolved handles the Resolved status.
func OnResolved[V, Out any](fn func(V) Out) Handler[V, Out] {
	return statusHandler[V, Out]{accept: is(Resolved), fn: func(s State[V]) Out { return fn(s.Value) }}
}

// OnPending handles Idle, Loading and Reloading: every status in which no
// response has been seen for the current request.
func OnPending[V, Out any](fn func() Out) Handler[V, Out] {
	return statusHandler[V, Out]{accept: is(Idle, Loading, Reloading), fn: func(State[V]) Out { return fn() }}
}
