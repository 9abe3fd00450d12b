package resource

// Record is one step of processing a single request. Records are consumed
// by the reducer and never stored.
type Record[T any] struct {
	Status   Status
	Value    T
	HasValue bool
	Err      error

	origin Origin
	reload bool
}

// State is the durable, observable state of a resource. Value always holds
// either the initial value or the last aggregated value.
type State[V any] struct {
	Status Status `json:"status"`
	Value  V      `json:"value"`
	Err    error  `json:"-"`
}

func idleRecord[T any]() Record[T] {
	return Record[T]{Status: Idle}
}

func pendingRecord[T any](reload bool) Record[T] {
	if reload {
		return Record[T]{Status: Reloading, reload: true}
	}
	return Record[T]{Status: Loading}
}

func resolvedRecord[T any](v T) Record[T] {
	return Record[T]{Status: Resolved, Value: v, HasValue: true}
}

func errorRecord[T any](err error, origin Origin) Record[T] {
	return Record[T]{Status: Error, Err: err, origin: origin}
}

// reduce folds one record into prev. aggregate only runs when the record
// carries a value; the error is replaced on every step.
func reduce[V, T any](prev State[V], rec Record[T], aggregate Aggregate[V, T]) State[V] {
	next := State[V]{Status: rec.Status, Value: prev.Value, Err: rec.Err}
	if rec.HasValue {
		next.Value = aggregate(prev.Value, rec.Value)
	}
	return next
}
