package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/studypulse/arena-service/internal/services"
)

const (
	wsWriteTimeout = 10 * time.Second
	wsPingInterval = 30 * time.Second
)

// WSHandler streams live session snapshots to websocket clients. Each
// connected client gets a derived snapshot on every underlying change; the
// client never patches state locally.
type WSHandler struct {
	BaseHandler
	arenaService services.ArenaService
	upgrader     websocket.Upgrader
}

func NewWSHandler(arenaService services.ArenaService, logger *slog.Logger) *WSHandler {
	return &WSHandler{
		BaseHandler:  NewBaseHandler(logger),
		arenaService: arenaService,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

// WatchSession upgrades the connection and pushes an initial snapshot
// followed by one snapshot per change until the client disconnects.
func (h *WSHandler) WatchSession(c *gin.Context) {
	sessionID := ParseStringIDParam(c, "id")
	if sessionID == "" {
		return
	}

	snapshots, cancel, err := h.arenaService.Watch(c.Request.Context(), sessionID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		cancel()
		h.logger.Warn("Websocket upgrade failed",
			"session_id", sessionID,
			"error", err)
		return
	}

	go h.stream(conn, sessionID, snapshots, cancel)
}

func (h *WSHandler) stream(conn *websocket.Conn, sessionID string, snapshots <-chan services.ArenaSnapshot, cancel func()) {
	defer func() {
		cancel()
		conn.Close()
	}()

	// Reader goroutine only to detect disconnects; inbound frames are ignored.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(wsPingInterval)
	defer ping.Stop()

	for {
		select {
		case <-done:
			return
		case <-ping.C:
			conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case snapshot, ok := <-snapshots:
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteJSON(snapshot); err != nil {
				h.logger.Debug("Websocket write failed, dropping client",
					"session_id", sessionID,
					"error", err)
				return
			}
		}
	}
}
