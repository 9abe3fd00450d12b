package server

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/vango-dev/streamres/pkg/lifecycle"
)

// wsClient streams snapshots of one feed to one connection. Changes only
// raise a signal and the writer sends the feed's state at write time, so a
// slow client skips intermediate states instead of queueing them.
type wsClient struct {
	id     string
	feed   *Feed
	conn   *websocket.Conn
	scope  *lifecycle.Scope
	notify chan struct{}
}

func (c *wsClient) signal() {
	select {
	case c.notify <- struct{}{}:
	default:
	}
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	f, ok := s.feed(w, r)
	if !ok {
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("websocket upgrade failed", "feed", f.Name(), "error", err)
		return
	}

	client := &wsClient{
		id:     uuid.NewString(),
		feed:   f,
		conn:   conn,
		scope:  lifecycle.NewScope(s.scope),
		notify: make(chan struct{}, 1),
	}
	logger := s.logger.With("feed", f.Name(), "client", client.id)
	logger.Debug("websocket connected")

	client.scope.OnCleanup(func() {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, ""),
			time.Now().Add(time.Second))
		conn.Close()
		logger.Debug("websocket disconnected")
	})
	client.scope.OnCleanup(f.Subscribe(func(Snapshot) { client.signal() }))
	client.signal()

	go s.writeLoop(client)
	s.readLoop(client)
}

// readLoop discards client messages and disposes the client when the
// connection ends.
func (s *Server) readLoop(c *wsClient) {
	defer c.scope.Dispose()
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *Server) writeLoop(c *wsClient) {
	defer c.scope.Dispose()
	ping := time.NewTicker(s.config.PingInterval)
	defer ping.Stop()

	for {
		select {
		case <-c.scope.Done():
			return
		case <-c.notify:
			c.conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
			if err := c.conn.WriteJSON(c.feed.Snapshot()); err != nil {
				return
			}
		case <-ping.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(s.config.WriteTimeout)); err != nil {
				return
			}
		}
	}
}
