package testutil

import (
	"sync"

	"github.com/vdavid/mailmate/internal/models"
)

// RecordingSink keeps every notification it receives.
type RecordingSink struct {
	mu            sync.Mutex
	notifications []models.Notification
}

// NewRecordingSink creates an empty sink.
func NewRecordingSink() *RecordingSink {
	return &RecordingSink{}
}

// Notify records the toast.
func (s *RecordingSink) Notify(text string, severity models.Severity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifications = append(s.notifications, models.Notification{Text: text, Severity: severity})
}

// Notifications returns a copy of the recorded toasts.
func (s *RecordingSink) Notifications() []models.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Notification, len(s.notifications))
	copy(out, s.notifications)
	return out
}
