package resource

import (
	"log/slog"

	"github.com/vango-dev/streamres/internal/logging"
	"github.com/vango-dev/streamres/pkg/lifecycle"
)

type options struct {
	scope     *lifecycle.Scope
	name      string
	logger    *slog.Logger
	observers observers
}

// Option configures a Resource.
type Option func(*options)

// WithScope ties the resource to scope: disposing the scope tears the
// resource down. By default a resource lives in a child of lifecycle.Root.
func WithScope(scope *lifecycle.Scope) Option {
	return func(o *options) {
		o.scope = scope
	}
}

// WithName names the resource in logs and events.
func WithName(name string) Option {
	return func(o *options) {
		o.name = name
	}
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithObserver adds an event observer. It may be given more than once.
func WithObserver(obs Observer) Option {
	return func(o *options) {
		if obs != nil {
			o.observers = append(o.observers, obs)
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{name: "resource"}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = logging.NewNop()
	}
	if o.scope == nil {
		o.scope = lifecycle.NewScope(lifecycle.Root())
	} else {
		o.scope = lifecycle.NewScope(o.scope)
	}
	return o
}
