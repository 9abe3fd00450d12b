package server

import (
	"fmt"
	"sort"
	"sync"

	"github.com/vango-dev/streamres/internal/config"
	"github.com/vango-dev/streamres/internal/errors"
	"github.com/vango-dev/streamres/pkg/resource"
)

// Registry holds the feeds served by a Server.
type Registry struct {
	mu    sync.RWMutex
	feeds map[string]*Feed
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{feeds: make(map[string]*Feed)}
}

// Add registers f. Names must be unique.
func (r *Registry) Add(f *Feed) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.feeds[f.Name()]; ok {
		return fmt.Errorf("feed %q already registered", f.Name())
	}
	r.feeds[f.Name()] = f
	return nil
}

// Get returns the named feed.
func (r *Registry) Get(name string) (*Feed, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.feeds[name]
	return f, ok
}

// List returns all feeds sorted by name.
func (r *Registry) List() []*Feed {
	r.mu.RLock()
	out := make([]*Feed, 0, len(r.feeds))
	for _, f := range r.feeds {
		out = append(out, f)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// Len returns the number of feeds.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.feeds)
}

// Close closes and removes every feed.
func (r *Registry) Close() {
	r.mu.Lock()
	feeds := r.feeds
	r.feeds = make(map[string]*Feed)
	r.mu.Unlock()

	for _, f := range feeds {
		f.Close()
	}
}

// AggregateFor returns the aggregate and initial value for an aggregation
// mode. An empty mode means append.
func AggregateFor(mode string, keep int) (resource.Aggregate[any, any], any, error) {
	switch mode {
	case config.AggregateAppend, "":
		appendItems := resource.Append[any](keep)
		return func(acc, resp any) any {
			items, _ := acc.([]any)
			return appendItems(items, resp)
		}, []any{}, nil
	case config.AggregateLast:
		return resource.Last[any](), nil, nil
	case config.AggregateCount:
		count := resource.Count[any]()
		return func(acc, resp any) any {
			n, _ := acc.(int)
			return count(n, resp)
		}, 0, nil
	default:
		return nil, nil, errors.New(errors.CodeConfigInvalid).
			WithDetail("unknown aggregate %q", mode).
			WithSuggestion("use append, last or count")
	}
}
