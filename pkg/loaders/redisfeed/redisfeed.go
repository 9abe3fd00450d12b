// Package redisfeed loads Redis pub/sub channels as resource response
// streams. The request is a channel name; every published message is one
// response.
package redisfeed

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"

	"github.com/vango-dev/streamres/pkg/resource"
	"github.com/vango-dev/streamres/pkg/stream"
)

// Message is one received publication.
type Message struct {
	Channel string `json:"channel"`
	Pattern string `json:"pattern,omitempty"`
	Payload string `json:"payload"`
}

// ErrEmptyChannel is returned for an empty request.
var ErrEmptyChannel = errors.New("redisfeed: empty channel")

type options struct {
	pattern bool
	prefix  string
}

// Option configures the loader.
type Option func(*options)

// WithPattern subscribes with PSUBSCRIBE, so requests are glob patterns.
func WithPattern(enabled bool) Option {
	return func(o *options) {
		o.pattern = enabled
	}
}

// WithPrefix prepends prefix to every requested channel.
func WithPrefix(prefix string) Option {
	return func(o *options) {
		o.prefix = prefix
	}
}

// Loader returns a loader that subscribes to the requested channel. The
// subscription is made on a goroutine so the loader never blocks; a failed
// subscription surfaces as a stream error. The subscription is closed when
// the stream is cancelled.
func Loader(client redis.UniversalClient, opts ...Option) resource.Loader[string, Message] {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	return func(ctx context.Context, channel string) (stream.Stream[Message], error) {
		if channel == "" {
			return nil, ErrEmptyChannel
		}
		name := o.prefix + channel

		return stream.Create(func(e *stream.Emitter[Message]) func() {
			subCtx, cancel := context.WithCancel(e.Context())
			stop := context.AfterFunc(ctx, cancel)

			go func() {
				var ps *redis.PubSub
				if o.pattern {
					ps = client.PSubscribe(subCtx, name)
				} else {
					ps = client.Subscribe(subCtx, name)
				}
				defer ps.Close()

				// Wait for the confirmation so that subscription errors are
				// reported instead of silently producing nothing.
				if _, err := ps.Receive(subCtx); err != nil {
					e.Error(err)
					return
				}

				ch := ps.Channel()
				for {
					select {
					case <-subCtx.Done():
						return
					case msg, ok := <-ch:
						if !ok {
							e.Complete()
							return
						}
						e.Next(Message{Channel: msg.Channel, Pattern: msg.Pattern, Payload: msg.Payload})
					}
				}
			}()

			return func() {
				stop()
				cancel()
			}
		}), nil
	}
}
