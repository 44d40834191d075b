package api

import (
	"fmt"
	"net/http"

	"github.com/vdavid/mailmate/internal/auth"
	ws "github.com/vdavid/mailmate/internal/websocket"
)

// NewServer returns the HTTP handler for the live toast feed.
func NewServer(hub *ws.Hub, apiKey string) http.Handler {
	notificationsHandler := NewNotificationsHandler(hub)

	mux := http.NewServeMux()
	mux.HandleFunc("/", handleRoot)
	mux.Handle("/api/v1/notifications", auth.RequireAPIKey(apiKey)(http.HandlerFunc(notificationsHandler.Handle)))

	return mux
}

func handleRoot(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = fmt.Fprintf(w, "MailMate notifications feed is running")
}
