package api

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	sessionWriteTimeout = 10 * time.Second
	sessionPongTimeout  = 60 * time.Second
	sessionPingInterval = 54 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// The host talks to a loopback listener; origins are not meaningful.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// HandleSession upgrades to a websocket and serves protocol frames until
// the peer disconnects. Each incoming frame is one request; responses go
// back on the same connection with the request's callbackId. Dropped
// callbacks produce no frame at all.
func (s *Server) HandleSession(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Errorf("Websocket upgrade failed: %v", err)
		return
	}

	sessionID := uuid.New().String()
	s.logger.Infof("Session %s connected from %s", sessionID, r.RemoteAddr)

	defer func() {
		if err := conn.Close(); err != nil {
			s.logger.Debugf("Session %s close: %v", sessionID, err)
		}
		s.logger.Infof("Session %s disconnected", sessionID)
	}()

	if err := conn.SetReadDeadline(time.Now().Add(sessionPongTimeout)); err != nil {
		s.logger.Errorf("Session %s read deadline: %v", sessionID, err)
		return
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(sessionPongTimeout))
	})

	done := make(chan struct{})
	defer close(done)
	go s.pingLoop(conn, sessionID, done)

	for {
		var req Request
		if err := conn.ReadJSON(&req); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warnf("Session %s read: %v", sessionID, err)
			}
			return
		}
		if err := conn.SetReadDeadline(time.Now().Add(sessionPongTimeout)); err != nil {
			s.logger.Errorf("Session %s read deadline: %v", sessionID, err)
			return
		}

		result, respond, err := s.dispatch(&req)
		if err != nil {
			// No error frames in the protocol; log and move on.
			s.logger.Errorf("Session %s action %s: %v", sessionID, req.Action, err)
			continue
		}
		if !respond {
			continue
		}

		if err := conn.SetWriteDeadline(time.Now().Add(sessionWriteTimeout)); err != nil {
			s.logger.Errorf("Session %s write deadline: %v", sessionID, err)
			return
		}
		if err := conn.WriteJSON(Response{CallbackID: req.CallbackID, Result: result}); err != nil {
			s.logger.Warnf("Session %s write: %v", sessionID, err)
			return
		}
	}
}

func (s *Server) pingLoop(conn *websocket.Conn, sessionID string, done <-chan struct{}) {
	ticker := time.NewTicker(sessionPingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(sessionWriteTimeout)); err != nil {
				s.logger.Debugf("Session %s ping: %v", sessionID, err)
				return
			}
		case <-done:
			return
		}
	}
}
