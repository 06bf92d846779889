// Package websocket upgrades HTTP connections and forwards internal/events
// traffic to each socket, following the gorilla/websocket-under-gin wiring
// of github.com/georgi-georgiev/testmesh's api/internal/api/websocket
// package, generalized from one hub client per execution ID to one client
// per subscriber of the engine's single run-scoped internal/events.Hub.
package websocket

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/Rixmerz/rmeter/internal/events"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Handler upgrades connections onto an events.Hub subscription.
type Handler struct {
	hub    *events.Hub
	logger *zap.Logger
}

// NewHandler builds a Handler forwarding hub's events to every socket.
func NewHandler(hub *events.Hub, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{hub: hub, logger: logger}
}

// HandleConnection upgrades the request and streams every subsequent
// engine event to the caller until the socket closes.
func (h *Handler) HandleConnection(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("failed to upgrade websocket connection", zap.Error(err))
		return
	}

	ch, unsubscribe := h.hub.Subscribe()
	go h.readPump(conn, unsubscribe)
	h.writePump(conn, ch)
}

// readPump drains and discards client frames, only watching for the
// connection closing so the write side can unsubscribe promptly. No
// client-to-server protocol exists — events are one-way.
func (h *Handler) readPump(conn *websocket.Conn, unsubscribe func()) {
	defer unsubscribe()
	defer conn.Close()

	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// writePump forwards every event on ch to conn until ch closes (the
// subscriber was dropped or unsubscribed) or a write fails.
func (h *Handler) writePump(conn *websocket.Conn, ch <-chan events.Event) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case e, ok := <-ch:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			data, err := e.Marshal()
			if err != nil {
				h.logger.Error("failed to marshal event", zap.Error(err))
				continue
			}
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
