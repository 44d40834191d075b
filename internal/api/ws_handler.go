package api

import (
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/vdavid/mailmate/internal/logger"
	ws "github.com/vdavid/mailmate/internal/websocket"
)

// NotificationsHandler handles the /api/v1/notifications endpoint for live toasts.
type NotificationsHandler struct {
	hub *ws.Hub
}

// NewNotificationsHandler creates a new NotificationsHandler instance.
func NewNotificationsHandler(hub *ws.Hub) *NotificationsHandler {
	return &NotificationsHandler{hub: hub}
}

var wsUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// The feed only carries toasts and is guarded by the API key when one is set.
		return true
	},
}

// Handle upgrades the HTTP connection to a WebSocket and registers it with the Hub.
func (h *NotificationsHandler) Handle(w http.ResponseWriter, r *http.Request) {
	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn("NotificationsHandler: failed to upgrade connection: %v", err)
		return
	}

	client := h.hub.Register(conn)
	if client == nil {
		logger.Warn("NotificationsHandler: connection rejected (max connections exceeded)")
		return
	}

	logger.Debug("NotificationsHandler: subscriber connected from %s", r.RemoteAddr)

	go h.readLoop(client)
}

// readLoop reads until the connection is closed, then unregisters the client.
func (h *NotificationsHandler) readLoop(client *ws.Client) {
	conn := client.Conn()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	h.hub.Unregister(client)
}
