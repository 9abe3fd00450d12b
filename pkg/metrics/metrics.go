// Package metrics exports resource activity to Prometheus.
//
// A Collector is a resource.Observer: pass it to every resource with
// resource.WithObserver and it maintains
//
//   - streamres_transitions_total{resource,status}: records applied, by target status
//   - streamres_loader_failures_total{resource,origin}: failures by origin (sync, panic, async, outer)
//   - streamres_reloads_total{resource}: reloads scheduled
//   - streamres_active_resources: resources currently running
//   - streamres_request_duration_seconds{resource}: time from Loading/Reloading to the first outcome
//
// Middleware adds HTTP request metrics for the server.
//
//	m := metrics.New(metrics.WithRegistry(reg))
//	res := resource.New(nil, reqs, load, agg, resource.WithObserver(m))
//	http.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/vango-dev/streamres/pkg/resource"
)

// Config configures a Collector.
type Config struct {
	// Namespace is the metrics namespace (default: "streamres").
	Namespace string

	// Subsystem is the metrics subsystem (default: "").
	Subsystem string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Buckets are the histogram buckets for durations.
	// Default: prometheus.DefBuckets
	Buckets []float64

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer
	Registry prometheus.Registerer
}

// Option configures a Collector.
type Option func(*Config)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) Option {
	return func(c *Config) {
		c.Namespace = namespace
	}
}

// WithSubsystem sets the metrics subsystem.
func WithSubsystem(subsystem string) Option {
	return func(c *Config) {
		c.Subsystem = subsystem
	}
}

// WithConstLabels sets constant labels for all metrics.
func WithConstLabels(labels prometheus.Labels) Option {
	return func(c *Config) {
		c.ConstLabels = labels
	}
}

// WithBuckets sets the histogram buckets.
func WithBuckets(buckets []float64) Option {
	return func(c *Config) {
		c.Buckets = buckets
	}
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry prometheus.Registerer) Option {
	return func(c *Config) {
		c.Registry = registry
	}
}

func defaultConfig() Config {
	return Config{
		Namespace: "streamres",
		Buckets:   prometheus.DefBuckets,
		Registry:  prometheus.DefaultRegisterer,
	}
}

// Collector holds the Prometheus metrics for streamres.
type Collector struct {
	transitions *prometheus.CounterVec
	failures    *prometheus.CounterVec
	reloads     *prometheus.CounterVec
	active      prometheus.Gauge
	pending     *prometheus.HistogramVec

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
}

// New creates and registers the metrics. Registering twice in the same
// registry panics, as with promauto.
func New(opts ...Option) *Collector {
	config := defaultConfig()
	for _, opt := range opts {
		opt(&config)
	}
	factory := promauto.With(config.Registry)

	return &Collector{
		transitions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "transitions_total",
			Help:        "Total number of resource state transitions by target status",
			ConstLabels: config.ConstLabels,
		}, []string{"resource", "status"}),

		failures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "loader_failures_total",
			Help:        "Total number of failures converted to an error status",
			ConstLabels: config.ConstLabels,
		}, []string{"resource", "origin"}),

		reloads: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "reloads_total",
			Help:        "Total number of reloads scheduled",
			ConstLabels: config.ConstLabels,
		}, []string{"resource"}),

		active: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "active_resources",
			Help:        "Number of running resources",
			ConstLabels: config.ConstLabels,
		}),

		pending: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "request_duration_seconds",
			Help:        "Time from issuing a request to its first response or failure",
			ConstLabels: config.ConstLabels,
			Buckets:     config.Buckets,
		}, []string{"resource"}),

		httpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "http_requests_total",
			Help:        "Total number of HTTP requests by route and status code",
			ConstLabels: config.ConstLabels,
		}, []string{"route", "code"}),

		httpDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "http_request_duration_seconds",
			Help:        "HTTP request duration in seconds",
			ConstLabels: config.ConstLabels,
			Buckets:     config.Buckets,
		}, []string{"route"}),
	}
}

// Observe implements resource.Observer.
func (c *Collector) Observe(e resource.Event) {
	switch e.Kind {
	case resource.Started:
		c.active.Inc()
	case resource.Stopped:
		c.active.Dec()
	case resource.Reloaded:
		c.reloads.WithLabelValues(e.Resource).Inc()
	case resource.Failure:
		c.failures.WithLabelValues(e.Resource, e.Origin.String()).Inc()
	case resource.Transition:
		c.transitions.WithLabelValues(e.Resource, e.To.String()).Inc()
		if e.From.Pending() && !e.To.Pending() && e.Elapsed > 0 {
			c.pending.WithLabelValues(e.Resource).Observe(e.Elapsed.Seconds())
		}
	}
}

// Middleware records request counts and durations, labelled by the chi
// route pattern so that URL parameters do not explode cardinality.
func (c *Collector) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		c.httpDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
		c.httpRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()
	})
}
