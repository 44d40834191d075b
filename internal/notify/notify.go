// Package notify delivers user-facing toasts.
package notify

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/vdavid/mailmate/internal/logger"
	"github.com/vdavid/mailmate/internal/models"
)

// Sink receives toasts. Notify must not block for long and never fails.
type Sink interface {
	Notify(text string, severity models.Severity)
}

// Func adapts a function to a Sink.
type Func func(text string, severity models.Severity)

func (f Func) Notify(text string, severity models.Severity) {
	f(text, severity)
}

// Multi fans a toast out to every sink in order.
type Multi []Sink

func (m Multi) Notify(text string, severity models.Severity) {
	for _, s := range m {
		if s != nil {
			s.Notify(text, severity)
		}
	}
}

// TerminalSink prints toasts as colored lines.
type TerminalSink struct {
	mu  sync.Mutex
	out io.Writer
}

// NewTerminalSink writes to out, or stdout when out is nil.
func NewTerminalSink(out io.Writer) *TerminalSink {
	if out == nil {
		out = os.Stdout
	}
	return &TerminalSink{out: out}
}

var (
	successStyle = color.New(color.FgGreen, color.Bold)
	errorStyle   = color.New(color.FgRed, color.Bold)
)

func (s *TerminalSink) Notify(text string, severity models.Severity) {
	s.mu.Lock()
	defer s.mu.Unlock()

	style, icon := successStyle, "✔"
	if severity == models.SeverityError {
		style, icon = errorStyle, "✖"
	}
	_, _ = fmt.Fprintln(s.out, style.Sprintf("%s %s", icon, text))
}

// Broadcaster sends raw messages to all subscribers.
type Broadcaster interface {
	Broadcast(msg []byte)
}

// HubSink publishes toasts as JSON to websocket subscribers.
type HubSink struct {
	hub Broadcaster
	now func() time.Time
}

// NewHubSink creates a sink over a broadcaster.
func NewHubSink(hub Broadcaster) *HubSink {
	return &HubSink{hub: hub, now: time.Now}
}

type toastMessage struct {
	Type string `json:"type"`
	models.Notification
}

func (s *HubSink) Notify(text string, severity models.Severity) {
	msg, err := json.Marshal(toastMessage{
		Type: "toast",
		Notification: models.Notification{
			Text:     text,
			Severity: severity,
			SentAt:   s.now().UTC(),
		},
	})
	if err != nil {
		logger.Error("Notify: failed to marshal toast: %v", err)
		return
	}
	s.hub.Broadcast(msg)
}
