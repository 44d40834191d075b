package models

import "time"

// Severity of a user-facing notification.
type Severity string

const (
	SeveritySuccess Severity = "success"
	SeverityError   Severity = "error"
)

// Notification is a transient toast shown to the user.
type Notification struct {
	Text     string    `json:"text"`
	Severity Severity  `json:"severity"`
	SentAt   time.Time `json:"sent_at"`
}
