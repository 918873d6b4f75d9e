package chat

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/taskpilot/assistant-api/internal/logging"
	"github.com/taskpilot/assistant-api/internal/metrics"
)

const (
	/* WebSocket connection timeouts */
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512 * 1024 /* 512KB */
)

// Session is one persistent client connection. The receive, dispatch
// and emit sequence is strictly sequential per session; frames for
// one request are written in generation order.
type Session struct {
	id         uuid.UUID
	conn       *websocket.Conn
	dispatcher *Dispatcher
	logger     *logging.Logger

	ctx    context.Context
	cancel context.CancelFunc

	readWait time.Duration

	mu     sync.Mutex
	closed bool
}

// NewSession wraps an upgraded connection. The parent context bounds
// every dispatch; cancelling it abandons any in-flight external call.
func NewSession(parent context.Context, conn *websocket.Conn, dispatcher *Dispatcher, logger *logging.Logger) *Session {
	ctx, cancel := context.WithCancel(parent)
	return &Session{
		id:         uuid.New(),
		conn:       conn,
		dispatcher: dispatcher,
		logger:     logger,
		ctx:        ctx,
		cancel:     cancel,
		readWait:   pongWait,
	}
}

// Run drives the session until the client disconnects or the
// transport fails, then releases the connection. Safe to call once.
func (s *Session) Run() {
	s.conn.SetReadLimit(maxMessageSize)
	s.conn.SetReadDeadline(time.Now().Add(s.readWait))
	s.conn.SetPongHandler(func(string) error {
		s.conn.SetReadDeadline(time.Now().Add(s.readWait))
		return nil
	})

	go s.pingLoop()

	metrics.SessionOpened()
	defer metrics.SessionClosed()
	defer s.Close()

	s.logger.Info("Chat session opened", map[string]interface{}{
		"session_id": s.id.String(),
	})

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warn("Chat session read error", map[string]interface{}{
					"session_id": s.id.String(),
					"error":      err.Error(),
				})
			}
			return
		}

		var msg InboundMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			/* Malformed input gets one error frame; the session stays open */
			if writeErr := s.writeFrame(ErrorFrame("无法解析消息，请发送合法的 JSON")); writeErr != nil {
				return
			}
			continue
		}

		if err := s.dispatcher.Dispatch(s.ctx, msg, s.writeFrame); err != nil {
			s.logger.Warn("Chat session write failed", map[string]interface{}{
				"session_id": s.id.String(),
				"error":      err.Error(),
			})
			return
		}

		/* Pongs are only consumed by ReadMessage, so a dispatch that
		   outlasts the read deadline would expire it on a live client */
		s.conn.SetReadDeadline(time.Now().Add(s.readWait))
	}
}

// writeFrame serializes one frame under the write lock
func (s *Session) writeFrame(frame Frame) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return context.Canceled
	}

	metrics.RecordFrame(frame.Type)
	s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return s.conn.WriteJSON(frame)
}

// pingLoop keeps the connection alive until close
func (s *Session) pingLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.mu.Lock()
			if s.closed {
				s.mu.Unlock()
				return
			}
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.mu.Unlock()
				return
			}
			s.mu.Unlock()
		case <-s.ctx.Done():
			return
		}
	}
}

// Close releases the transport exactly once; repeat calls are no-ops
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}

	s.closed = true
	s.cancel()

	s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	_ = s.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	_ = s.conn.Close()

	s.logger.Info("Chat session closed", map[string]interface{}{
		"session_id": s.id.String(),
	})
}
