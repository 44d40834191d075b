package transport

import (
	"bytes"
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/emersion/go-smtp"
	"github.com/jhillyerd/enmime"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vdavid/mailmate/internal/models"
	"github.com/vdavid/mailmate/internal/testutil"
)

func TestSMTPClient_Delivers(t *testing.T) {
	server := testutil.NewTestSMTPServer(t)
	client := NewSMTPClient(SMTPOptions{
		Username:       "test-user",
		Password:       "test-pass",
		From:           "sender@example.com",
		DefaultSubject: "Message from MailMate",
	})

	payload := models.Payload{
		Email:   "a@b.com",
		Message: "hi",
		Files: []*models.FileHandle{
			models.NewFileFromBytes("a.txt", []byte("alpha")),
			models.NewFileFromBytes("b.txt", []byte("bravo")),
		},
	}

	info, err := client.Send(context.Background(), "smtp://"+server.Address, payload)
	require.NoError(t, err)
	assert.Equal(t, 250, info.StatusCode)

	messages := server.GetMessages()
	require.Len(t, messages, 1)
	assert.Equal(t, "sender@example.com", messages[0].From)
	assert.Equal(t, []string{"a@b.com"}, messages[0].To)
	assert.Equal(t, "test-user", messages[0].Username)

	env, err := enmime.ReadEnvelope(bytes.NewReader(messages[0].Data))
	require.NoError(t, err)
	assert.Equal(t, "Message from MailMate", env.GetHeader("Subject"))
	require.Len(t, env.Attachments, 2)
	assert.Equal(t, "a.txt", env.Attachments[0].FileName)
	assert.Equal(t, "b.txt", env.Attachments[1].FileName)
}

func TestSMTPClient_ServerRejected(t *testing.T) {
	server := testutil.NewTestSMTPServer(t)
	server.RejectRecipients(&smtp.SMTPError{
		Code:         452,
		EnhancedCode: smtp.EnhancedCode{4, 2, 2},
		Message:      "quota exceeded",
	})

	client := NewSMTPClient(SMTPOptions{From: "sender@example.com"})
	_, err := client.Send(context.Background(), server.Address, models.Payload{Email: "a@b.com", Message: "hi"})

	var te *Error
	require.ErrorAs(t, err, &te)
	assert.Equal(t, KindServerRejected, te.Kind)
	assert.Equal(t, 452, te.StatusCode)
	assert.Equal(t, "quota exceeded", te.Detail)
}

func TestSMTPClient_NoResponse(t *testing.T) {
	client := NewSMTPClient(SMTPOptions{From: "sender@example.com"})
	client.dial = func(context.Context, string, string) (net.Conn, error) {
		return nil, errors.New("dial tcp 127.0.0.1:1: connect: connection refused")
	}

	_, err := client.Send(context.Background(), "127.0.0.1:1", models.Payload{Email: "a@b.com", Message: "hi"})

	var te *Error
	require.ErrorAs(t, err, &te)
	assert.Equal(t, KindNoResponse, te.Kind)
}

func TestSMTPClient_CancelledContext(t *testing.T) {
	called := false
	client := NewSMTPClient(SMTPOptions{From: "sender@example.com"})
	client.dial = func(context.Context, string, string) (net.Conn, error) {
		called = true
		return nil, errors.New("unexpected dial")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.Send(ctx, "localhost:25", models.Payload{Email: "a@b.com", Message: "hi"})

	var te *Error
	require.ErrorAs(t, err, &te)
	assert.Equal(t, KindNoResponse, te.Kind)
	assert.False(t, called)
}

// newSilentListener accepts connections and never writes a greeting.
func newSilentListener(t *testing.T) string {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	var mu sync.Mutex
	var conns []net.Conn
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			mu.Lock()
			conns = append(conns, conn)
			mu.Unlock()
		}
	}()

	t.Cleanup(func() {
		_ = ln.Close()
		mu.Lock()
		defer mu.Unlock()
		for _, conn := range conns {
			_ = conn.Close()
		}
	})
	return ln.Addr().String()
}

func TestSMTPClient_SilentServer(t *testing.T) {
	addr := newSilentListener(t)

	tests := []struct {
		name    string
		opts    SMTPOptions
		timeout time.Duration
		wantErr error
	}{
		{
			name:    "context deadline",
			opts:    SMTPOptions{From: "sender@example.com"},
			timeout: 200 * time.Millisecond,
			wantErr: context.DeadlineExceeded,
		},
		{
			name:    "configured timeout",
			opts:    SMTPOptions{From: "sender@example.com", Timeout: 200 * time.Millisecond},
			wantErr: context.DeadlineExceeded,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			if tt.timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, tt.timeout)
				defer cancel()
			}

			start := time.Now()
			_, err := NewSMTPClient(tt.opts).Send(ctx, addr, models.Payload{Email: "a@b.com", Message: "hi"})
			elapsed := time.Since(start)

			var te *Error
			require.ErrorAs(t, err, &te)
			assert.Equal(t, KindNoResponse, te.Kind)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Less(t, elapsed, time.Second)
		})
	}
}

func TestSMTPClient_CancelMidTransaction(t *testing.T) {
	addr := newSilentListener(t)
	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(100*time.Millisecond, cancel)

	start := time.Now()
	_, err := NewSMTPClient(SMTPOptions{From: "sender@example.com"}).
		Send(ctx, addr, models.Payload{Email: "a@b.com", Message: "hi"})

	var te *Error
	require.ErrorAs(t, err, &te)
	assert.Equal(t, KindNoResponse, te.Kind)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), time.Second)
}

func TestSMTPAddr(t *testing.T) {
	tests := []struct {
		endpoint string
		want     string
		wantErr  bool
	}{
		{"localhost:25", "localhost:25", false},
		{"smtp://mail.example.com:587", "mail.example.com:587", false},
		{"https://mail.example.com", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.endpoint, func(t *testing.T) {
			got, err := smtpAddr(tt.endpoint)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSMTPClient_BadAddressIsConstructionError(t *testing.T) {
	_, err := NewSMTPClient(SMTPOptions{From: "sender@example.com"}).
		Send(context.Background(), "https://nope", models.Payload{Email: "a@b.com", Message: "hi"})

	var te *Error
	require.ErrorAs(t, err, &te)
	assert.Equal(t, KindRequestConstruction, te.Kind)
}
