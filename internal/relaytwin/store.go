package relaytwin

import (
	"sync"
	"time"
)

// StoredFile is an attachment received by the twin.
type StoredFile struct {
	Name        string `json:"name"`
	ContentType string `json:"content_type"`
	Size        int    `json:"size"`
	Content     []byte `json:"-"`
}

// Submission is one accepted send-email request.
type Submission struct {
	ID         string       `json:"id"`
	Email      string       `json:"email"`
	Message    string       `json:"message"`
	Subject    string       `json:"subject,omitempty"`
	HasSubject bool         `json:"has_subject"`
	Format     string       `json:"format"`
	Files      []StoredFile `json:"files,omitempty"`
	ReceivedAt time.Time    `json:"received_at"`
}

// Fault makes the next send-email requests fail.
type Fault struct {
	StatusCode int           `json:"status_code,omitempty"`
	Body       string        `json:"body,omitempty"`
	Delay      time.Duration `json:"delay_ms,omitempty"`
	// DropConnection closes the connection without writing a response.
	DropConnection bool `json:"drop_connection,omitempty"`
}

// Store holds twin state in memory.
type Store struct {
	mu          sync.RWMutex
	submissions []Submission
	fault       *Fault
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{submissions: make([]Submission, 0)}
}

// Add appends a submission.
func (s *Store) Add(sub Submission) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.submissions = append(s.submissions, sub)
}

// Submissions returns a copy of all submissions in arrival order.
func (s *Store) Submissions() []Submission {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Submission, len(s.submissions))
	copy(out, s.submissions)
	return out
}

// SetFault installs a fault; nil removes it.
func (s *Store) SetFault(f *Fault) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if f == nil {
		s.fault = nil
		return
	}
	copied := *f
	s.fault = &copied
}

// Fault returns the active fault, if any.
func (s *Store) Fault() *Fault {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.fault == nil {
		return nil
	}
	copied := *s.fault
	return &copied
}

// Reset clears submissions and faults.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.submissions = make([]Submission, 0)
	s.fault = nil
}
