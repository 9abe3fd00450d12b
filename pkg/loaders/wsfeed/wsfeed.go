// Package wsfeed loads WebSocket endpoints as resource response streams.
// The request is a ws:// or wss:// URL; every data message is a response.
// A normal close completes the stream, anything else fails it.
package wsfeed

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vango-dev/streamres/pkg/resource"
	"github.com/vango-dev/streamres/pkg/stream"
)

// Frame is one received data message.
type Frame struct {
	Binary bool   `json:"binary,omitempty"`
	Data   []byte `json:"data"`
}

// Text returns the payload as a string.
func (f Frame) Text() string {
	return string(f.Data)
}

// ErrEmptyURL is returned for an empty request.
var ErrEmptyURL = errors.New("wsfeed: empty url")

// closeGrace bounds how long the close handshake may take on cancel.
const closeGrace = time.Second

type options struct {
	header           http.Header
	handshakeTimeout time.Duration
}

// Option configures the loader.
type Option func(*options)

// WithHeader sets headers sent with the opening handshake.
func WithHeader(h http.Header) Option {
	return func(o *options) {
		o.header = h
	}
}

// WithHandshakeTimeout overrides the dialer's handshake timeout.
func WithHandshakeTimeout(d time.Duration) Option {
	return func(o *options) {
		o.handshakeTimeout = d
	}
}

// Loader returns a loader that dials the requested URL. A nil dialer uses
// websocket.DefaultDialer.
func Loader(dialer *websocket.Dialer, opts ...Option) resource.Loader[string, Frame] {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	d := websocket.DefaultDialer
	if dialer != nil {
		d = dialer
	}
	if o.handshakeTimeout > 0 {
		copied := *d
		copied.HandshakeTimeout = o.handshakeTimeout
		d = &copied
	}

	return func(ctx context.Context, url string) (stream.Stream[Frame], error) {
		if url == "" {
			return nil, ErrEmptyURL
		}

		return stream.Create(func(e *stream.Emitter[Frame]) func() {
			connCtx, cancel := context.WithCancel(e.Context())
			stop := context.AfterFunc(ctx, cancel)

			go func() {
				conn, _, err := d.DialContext(connCtx, url, o.header)
				if err != nil {
					e.Error(fmt.Errorf("wsfeed: dial %s: %w", url, err))
					return
				}
				defer conn.Close()

				closed := context.AfterFunc(connCtx, func() {
					_ = conn.WriteControl(websocket.CloseMessage,
						websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
						time.Now().Add(closeGrace))
					conn.Close()
				})
				defer closed()

				for {
					kind, data, err := conn.ReadMessage()
					if err != nil {
						if connCtx.Err() != nil {
							return
						}
						if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
							e.Complete()
							return
						}
						e.Error(fmt.Errorf("wsfeed: read %s: %w", url, err))
						return
					}
					e.Next(Frame{Binary: kind == websocket.BinaryMessage, Data: data})
				}
			}()

			return func() {
				stop()
				cancel()
			}
		}), nil
	}
}
