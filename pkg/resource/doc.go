// Package resource turns a stream of requests into one continuously updated
// resource state.
//
// A Resource is built from an initial value, a stream of requests, a loader
// that maps each request to a stream of responses, and an aggregate
// function that folds responses into the running value:
//
//	requests := stream.NewSubject[resource.Request[string]]()
//	res := resource.New(nil, requests,
//	    func(ctx context.Context, room string) (stream.Stream[string], error) {
//	        return chat.Messages(ctx, room)
//	    },
//	    resource.Append[string](100),
//	)
//	defer res.Close()
//
//	requests.Next(resource.Some("lobby"))
//	res.Value().Subscribe(func(msgs []string) { render(msgs) })
//
// Only the most recent request is ever live: a new request cancels the
// loader work of the previous one, and nothing the superseded stream emits
// afterwards reaches the state. Loader failures, whether returned, panicked
// or signalled later by the response stream, become an Error status scoped
// to that request; the next request is processed normally, and Reload
// retries the last request after an error without discarding the value
// accumulated so far.
//
// State is exposed through read-only cell views (Status, Value, Error,
// IsLoading) and as a whole through Snapshot. All state changes for one
// resource happen on a single logical thread, so subscribers observe them
// one at a time in order.
package resource
