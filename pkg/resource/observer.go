package resource

import "time"

// Kind classifies an Event.
type Kind int

const (
	// Started is reported once when the resource subscribes to its sources.
	Started Kind = iota
	// Transition is reported for every record applied to the state.
	Transition
	// Failure is reported when a failure is converted to an Error status.
	Failure
	// Reloaded is reported when Reload schedules a reload.
	Reloaded
	// Stopped is reported once when the resource is torn down.
	Stopped
)

func (k Kind) String() string {
	switch k {
	case Started:
		return "started"
	case Transition:
		return "transition"
	case Failure:
		return "failure"
	case Reloaded:
		return "reloaded"
	case Stopped:
		return "stopped"
	}
	return "unknown"
}

// Origin says where a failure came from.
type Origin int

const (
	OriginNone  Origin = iota
	OriginSync         // Loader returned an error or a nil stream
	OriginPanic        // Loader panicked
	OriginAsync        // Response stream failed
	OriginOuter        // Request stream failed
)

func (o Origin) String() string {
	switch o {
	case OriginSync:
		return "sync"
	case OriginPanic:
		return "panic"
	case OriginAsync:
		return "async"
	case OriginOuter:
		return "outer"
	}
	return "none"
}

// Event describes something that happened to a resource.
type Event struct {
	Kind     Kind
	Resource string
	From     Status
	To       Status
	IsReload bool
	Origin   Origin
	Err      error

	// Elapsed is set on the first transition out of Loading or Reloading
	// and holds the time spent pending.
	Elapsed time.Duration
}

// Observer receives resource events. Observe is called on the resource's
// serial queue and must not block. Stopped is the exception: it is delivered
// by whichever goroutine tore the resource down.
type Observer interface {
	Observe(Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

// Observe calls f(e).
func (f ObserverFunc) Observe(e Event) {
	f(e)
}

type observers []Observer

func (os observers) Observe(e Event) {
	for _, o := range os {
		o.Observe(e)
	}
}
