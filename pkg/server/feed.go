package server

import (
	"github.com/vango-dev/streamres/pkg/resource"
	"github.com/vango-dev/streamres/pkg/stream"
)

// Snapshot is the JSON view of a feed's state.
type Snapshot struct {
	Name    string          `json:"name"`
	Kind    string          `json:"kind"`
	Status  resource.Status `json:"status"`
	Value   any             `json:"value"`
	Error   string          `json:"error,omitempty"`
	Loading bool            `json:"loading"`
}

// Feed is a named resource driven by pushed requests.
type Feed struct {
	name     string
	kind     string
	requests *stream.Subject[resource.Request[string]]
	res      *resource.Resource[string, any, any]
}

// NewFeed builds a feed. The resource is named after the feed; opts may add
// a scope, logger or observers.
func NewFeed(
	name, kind string,
	initial any,
	load resource.Loader[string, any],
	aggregate resource.Aggregate[any, any],
	opts ...resource.Option,
) *Feed {
	requests := stream.NewSubject[resource.Request[string]]()
	opts = append([]resource.Option{resource.WithName(name)}, opts...)
	return &Feed{
		name:     name,
		kind:     kind,
		requests: requests,
		res:      resource.New(initial, requests, load, aggregate, opts...),
	}
}

// Name returns the feed name.
func (f *Feed) Name() string {
	return f.name
}

// Kind returns the loader kind the feed was built with.
func (f *Feed) Kind() string {
	return f.kind
}

// Resource returns the underlying resource.
func (f *Feed) Resource() *resource.Resource[string, any, any] {
	return f.res
}

// Push issues a new request, superseding any in flight.
func (f *Feed) Push(req string) {
	f.requests.Next(resource.Some(req))
}

// Clear issues the absent request, returning the feed to Idle.
func (f *Feed) Clear() {
	f.requests.Next(resource.None[string]())
}

// Reload retries the current request if the feed is in Error.
func (f *Feed) Reload() bool {
	return f.res.Reload()
}

// Snapshot returns the current state.
func (f *Feed) Snapshot() Snapshot {
	return f.snapshot(f.res.Snapshot())
}

// Subscribe calls fn with every new state. fn must not block.
func (f *Feed) Subscribe(fn func(Snapshot)) func() {
	return f.res.Subscribe(func(s resource.State[any]) {
		fn(f.snapshot(s))
	})
}

// Close tears the feed down.
func (f *Feed) Close() {
	f.res.Close()
	f.requests.Complete()
}

func (f *Feed) snapshot(s resource.State[any]) Snapshot {
	snap := Snapshot{
		Name:    f.name,
		Kind:    f.kind,
		Status:  s.Status,
		Value:   s.Value,
		Loading: s.Status.Pending(),
	}
	if s.Err != nil {
		snap.Error = s.Err.Error()
	}
	return snap
}
