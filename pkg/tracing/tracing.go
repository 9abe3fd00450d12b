// Package tracing wraps resource loaders in OpenTelemetry spans.
//
// Each loader invocation gets one span, "streamres.load <name>", that stays
// open for as long as the response stream is live. The span records how
// many responses were produced and ends when the stream completes, fails,
// or is cancelled because a newer request superseded it.
//
// The tracer comes from the global OpenTelemetry tracer provider unless
// WithTracerProvider is given. Configure it in main() before building
// resources:
//
//	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
//	otel.SetTracerProvider(tp)
//
//	load := tracing.Loader("chat", redisfeed.Loader(client))
package tracing

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vango-dev/streamres/pkg/resource"
	"github.com/vango-dev/streamres/pkg/stream"
)

// Default tracer name.
const defaultTracerName = "streamres"

// Span attribute keys.
const (
	AttrResource  = attribute.Key("streamres.resource")
	AttrRequest   = attribute.Key("streamres.request")
	AttrResponses = attribute.Key("streamres.responses")
	AttrCancelled = attribute.Key("streamres.cancelled")
)

// Config configures Loader.
type Config struct {
	// TracerName is the name of the tracer (default: "streamres").
	TracerName string

	// Provider overrides the global tracer provider.
	Provider trace.TracerProvider

	// IncludeRequest records the request, formatted with %v, as a span
	// attribute. Requests may contain sensitive data, so it is off by
	// default.
	IncludeRequest bool
}

// Option configures Loader.
type Option func(*Config)

// WithTracerName sets the tracer name.
func WithTracerName(name string) Option {
	return func(c *Config) {
		c.TracerName = name
	}
}

// WithTracerProvider sets the tracer provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *Config) {
		c.Provider = tp
	}
}

// WithRequestAttr enables the request attribute.
func WithRequestAttr(include bool) Option {
	return func(c *Config) {
		c.IncludeRequest = include
	}
}

// Loader decorates load with a span per invocation.
func Loader[R, T any](name string, load resource.Loader[R, T], opts ...Option) resource.Loader[R, T] {
	config := Config{TracerName: defaultTracerName}
	for _, opt := range opts {
		opt(&config)
	}
	provider := config.Provider
	if provider == nil {
		provider = otel.GetTracerProvider()
	}
	tracer := provider.Tracer(config.TracerName)

	return func(ctx context.Context, req R) (src stream.Stream[T], err error) {
		attrs := []attribute.KeyValue{AttrResource.String(name)}
		if config.IncludeRequest {
			attrs = append(attrs, AttrRequest.String(fmt.Sprintf("%v", req)))
		}
		spanCtx, span := tracer.Start(ctx, "streamres.load "+name,
			trace.WithSpanKind(trace.SpanKindClient),
			trace.WithAttributes(attrs...),
		)

		defer func() {
			if r := recover(); r != nil {
				span.SetStatus(codes.Error, fmt.Sprintf("panic: %v", r))
				span.End()
				panic(r)
			}
		}()

		src, err = load(spanCtx, req)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			span.End()
			return nil, err
		}
		if src == nil {
			span.SetStatus(codes.Error, "nil stream")
			span.End()
			return nil, nil
		}
		return traced(src, span), nil
	}
}

// traced ends span when the subscription to src ends.
func traced[T any](src stream.Stream[T], span trace.Span) stream.Stream[T] {
	return stream.Func[T](func(o stream.Observer[T]) stream.Subscription {
		var (
			count atomic.Int64
			once  sync.Once
		)
		end := func(mark func()) {
			once.Do(func() {
				mark()
				span.SetAttributes(AttrResponses.Int64(count.Load()))
				span.End()
			})
		}

		upstream := src.Subscribe(stream.Observer[T]{
			OnNext: func(v T) {
				count.Add(1)
				o.Next(v)
			},
			OnError: func(err error) {
				end(func() {
					span.RecordError(err)
					span.SetStatus(codes.Error, err.Error())
				})
				o.Error(err)
			},
			OnComplete: func() {
				end(func() { span.SetStatus(codes.Ok, "") })
				o.Complete()
			},
		})
		return stream.NewSubscription(func() {
			end(func() { span.SetAttributes(AttrCancelled.Bool(true)) })
		}, upstream.Unsubscribe)
	})
}
