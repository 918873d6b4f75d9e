package handlers

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/taskpilot/assistant-api/internal/chat"
	"github.com/taskpilot/assistant-api/internal/logging"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true /* Allow all origins in development */
	},
	HandshakeTimeout: 10 * time.Second,
}

/* ChatHandlers handles the streaming chat endpoint */
type ChatHandlers struct {
	dispatcher *chat.Dispatcher
	logger     *logging.Logger
}

/* NewChatHandlers creates new chat handlers */
func NewChatHandlers(dispatcher *chat.Dispatcher, logger *logging.Logger) *ChatHandlers {
	return &ChatHandlers{
		dispatcher: dispatcher,
		logger:     logger,
	}
}

/* HandleWebSocket upgrades the connection and runs the session loop */
func (h *ChatHandlers) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade failed", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}

	session := chat.NewSession(r.Context(), conn, h.dispatcher, h.logger)
	session.Run()
}
