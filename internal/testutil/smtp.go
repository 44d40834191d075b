package testutil

import (
	"errors"
	"io"
	"net"
	"sync"
	"testing"

	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
)

// MemoryBackend is a simple in-memory SMTP backend for testing.
type MemoryBackend struct {
	mu       sync.Mutex
	messages []*MemoryMessage
	// RejectRcpt, when set, is returned for every RCPT command.
	RejectRcpt *smtp.SMTPError
}

// MemoryMessage is one message accepted by the backend.
type MemoryMessage struct {
	From     string
	To       []string
	Data     []byte
	Username string
}

// NewMemoryBackend creates a new in-memory SMTP backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		messages: make([]*MemoryMessage, 0),
	}
}

// NewSession creates a new SMTP session.
func (b *MemoryBackend) NewSession(*smtp.Conn) (smtp.Session, error) {
	return &memorySession{backend: b}, nil
}

// GetMessages returns all received messages.
func (b *MemoryBackend) GetMessages() []*MemoryMessage {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]*MemoryMessage, len(b.messages))
	copy(out, b.messages)
	return out
}

type memorySession struct {
	backend  *MemoryBackend
	from     string
	to       []string
	username string
}

func (s *memorySession) AuthMechanisms() []string {
	return []string{sasl.Plain}
}

func (s *memorySession) Auth(mech string) (sasl.Server, error) {
	if mech != sasl.Plain {
		return nil, errors.New("unsupported mechanism")
	}
	return sasl.NewPlainServer(func(identity, username, password string) error {
		// Accept any credentials for testing
		s.username = username
		return nil
	}), nil
}

func (s *memorySession) Mail(from string, opts *smtp.MailOptions) error {
	s.from = from
	return nil
}

func (s *memorySession) Rcpt(to string, opts *smtp.RcptOptions) error {
	s.backend.mu.Lock()
	reject := s.backend.RejectRcpt
	s.backend.mu.Unlock()
	if reject != nil {
		return reject
	}
	s.to = append(s.to, to)
	return nil
}

func (s *memorySession) Data(r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}

	s.backend.mu.Lock()
	defer s.backend.mu.Unlock()

	s.backend.messages = append(s.backend.messages, &MemoryMessage{
		From:     s.from,
		To:       s.to,
		Data:     data,
		Username: s.username,
	})

	return nil
}

func (s *memorySession) Reset() {
	s.from = ""
	s.to = nil
}

func (s *memorySession) Logout() error {
	return nil
}

// TestSMTPServer represents a test SMTP server instance.
type TestSMTPServer struct {
	Server  *smtp.Server
	Address string
	Backend *MemoryBackend
}

// NewTestSMTPServer starts an SMTP server with an in-memory backend on a random port.
// The server is closed when the test ends.
func NewTestSMTPServer(t *testing.T) *TestSMTPServer {
	t.Helper()

	be := NewMemoryBackend()

	s := smtp.NewServer(be)
	s.AllowInsecureAuth = true
	s.Domain = "localhost"

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Failed to listen: %v", err)
	}

	go func() {
		// Serve returns once the server is closed.
		_ = s.Serve(listener)
	}()

	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Logf("Failed to close SMTP server: %v", err)
		}
	})

	return &TestSMTPServer{
		Server:  s,
		Address: listener.Addr().String(),
		Backend: be,
	}
}

// GetMessages returns all messages received by the server.
func (s *TestSMTPServer) GetMessages() []*MemoryMessage {
	return s.Backend.GetMessages()
}

// RejectRecipients makes every RCPT fail with err.
func (s *TestSMTPServer) RejectRecipients(err *smtp.SMTPError) {
	s.Backend.mu.Lock()
	defer s.Backend.mu.Unlock()
	s.Backend.RejectRcpt = err
}
