package server

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/jpalmerr/publink/internal/pipeline"
)

const (
	wsReadLimit    = maxBodyBytes
	wsPongWait     = 60 * time.Second
	wsPingPeriod   = wsPongWait * 9 / 10
	wsWriteTimeout = 5 * time.Second
)

// wsInbound is a message from the editor.
type wsInbound struct {
	Type string  `json:"type,omitempty"`
	Text *string `json:"text,omitempty"`
}

// wsOutbound is a control message to the editor.
type wsOutbound struct {
	Type string `json:"type"`
	ID   string `json:"id,omitempty"`
}

// wsWarnings carries a changed warning set.
type wsWarnings struct {
	Type     string              `json:"type"`
	Warnings pipeline.WarningSet `json:"warnings"`
}

// safeConn serializes writes to a WebSocket connection.
// gorilla/websocket supports one concurrent writer only.
type safeConn struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
	closed  bool
}

func (c *safeConn) writeJSON(v any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.closed {
		return net.ErrClosed
	}
	_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return c.conn.WriteJSON(v)
}

func (c *safeConn) ping() error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.closed {
		return net.ErrClosed
	}
	return c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteTimeout))
}

func (c *safeConn) close() error {
	c.writeMu.Lock()
	c.closed = true
	c.writeMu.Unlock()
	return c.conn.Close()
}

// handleWebSocket binds one editing session to one connection. The client
// sends {"text": "..."} on every edit and receives
// {"type": "warnings", "warnings": [...]} whenever the set changes.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the error response
		s.logger.Debug("websocket upgrade failed", "error", err)
		return
	}
	sc := &safeConn{conn: conn}
	defer sc.close()

	sess, err := s.cfg.NewSession()
	if err != nil {
		s.logger.Error("failed to create session", "error", err)
		_ = sc.writeJSON(wsOutbound{Type: "error"})
		return
	}
	s.trackWS(sess)
	defer s.untrackWS(sess)

	logger := s.logger.With("session", sess.ID())
	logger.Debug("websocket connected")

	if err := sc.writeJSON(wsOutbound{Type: "session", ID: sess.ID()}); err != nil {
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	updates := sess.Subscribe()
	defer sess.Unsubscribe(updates)

	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		s.readWebSocket(ctx, conn, sc, sess)
	}()

	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := sc.ping(); err != nil {
				return
			}
		case <-readDone:
			logger.Debug("websocket disconnected")
			return
		case set, ok := <-updates:
			if !ok {
				return
			}
			if err := sc.writeJSON(wsWarnings{Type: "warnings", Warnings: set}); err != nil {
				logger.Debug("websocket write failed", "error", err)
				return
			}
		}
	}
}

// readWebSocket feeds editor messages into sess until the connection fails.
func (s *Server) readWebSocket(ctx context.Context, conn *websocket.Conn, sc *safeConn, sess *pipeline.Session) {
	conn.SetReadLimit(wsReadLimit)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	for ctx.Err() == nil {
		var msg wsInbound
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Debug("websocket read failed", "session", sess.ID(), "error", err)
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))

		switch {
		case msg.Type == "ping":
			_ = sc.writeJSON(wsOutbound{Type: "pong"})
		case msg.Text != nil:
			if err := sess.SetText(*msg.Text); err != nil {
				return
			}
		}
	}
}

func (s *Server) trackWS(sess *pipeline.Session) {
	s.wsMu.Lock()
	defer s.wsMu.Unlock()

	s.wsSessions[sess.ID()] = sess
}

// untrackWS forgets and closes a WebSocket session.
func (s *Server) untrackWS(sess *pipeline.Session) {
	s.wsMu.Lock()
	delete(s.wsSessions, sess.ID())
	s.wsMu.Unlock()

	sess.Close()
}
