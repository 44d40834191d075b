package transport

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
	"github.com/vdavid/mailmate/internal/logger"
	"github.com/vdavid/mailmate/internal/models"
	"github.com/vdavid/mailmate/internal/preview"
)

const smtpTimeoutGrace = time.Second

type dialFunc func(ctx context.Context, network, addr string) (net.Conn, error)

// SMTPOptions configures an SMTPClient.
type SMTPOptions struct {
	Username       string
	Password       string
	From           string
	DefaultSubject string
	// Timeout bounds the whole delivery, from dial to the end of DATA.
	Timeout time.Duration
}

// SMTPClient delivers payloads straight to an SMTP server instead of an HTTP relay.
// The endpoint passed to Send is the server address, either host:port or smtp://host:port.
type SMTPClient struct {
	opts SMTPOptions
	dial dialFunc
}

// NewSMTPClient creates an SMTP delivery client.
func NewSMTPClient(opts SMTPOptions) *SMTPClient {
	return &SMTPClient{opts: opts, dial: (&net.Dialer{}).DialContext}
}

// Send renders the payload as a MIME message and submits it.
func (c *SMTPClient) Send(ctx context.Context, endpoint string, payload models.Payload) (*ResponseInfo, error) {
	addr, err := smtpAddr(endpoint)
	if err != nil {
		return nil, constructionError(err)
	}

	var msg bytes.Buffer
	err = preview.Render(&msg, payload, preview.Options{
		From:           c.opts.From,
		DefaultSubject: c.opts.DefaultSubject,
	})
	if err != nil {
		return nil, constructionError(err)
	}

	if c.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.opts.Timeout)
		defer cancel()
	}
	if err := ctx.Err(); err != nil {
		return nil, noResponseError(err)
	}

	logger.Debug("Transport: SMTP delivery via %s (%d bytes)", addr, msg.Len())

	if err := c.deliver(ctx, addr, payload.Email, &msg); err != nil {
		var smtpErr *smtp.SMTPError
		if errors.As(err, &smtpErr) {
			return nil, &Error{
				Kind:       KindServerRejected,
				StatusCode: smtpErr.Code,
				Status:     fmt.Sprintf("%d %d.%d.%d", smtpErr.Code, smtpErr.EnhancedCode[0], smtpErr.EnhancedCode[1], smtpErr.EnhancedCode[2]),
				Body:       []byte(smtpErr.Message),
				Detail:     smtpErr.Message,
				Err:        err,
			}
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, noResponseError(errors.Join(ctxErr, err))
		}
		return nil, noResponseError(err)
	}

	return &ResponseInfo{StatusCode: 250, Status: "250 OK"}, nil
}

// deliver runs one SMTP transaction. Cancelling ctx closes the connection,
// and its deadline caps every command.
func (c *SMTPClient) deliver(ctx context.Context, addr, to string, msg io.Reader) error {
	conn, err := c.dial(ctx, "tcp", addr)
	if err != nil {
		return err
	}
	stop := context.AfterFunc(ctx, func() {
		_ = conn.Close()
	})
	defer stop()

	client := smtp.NewClient(conn)
	defer func() {
		_ = client.Close()
	}()

	if deadline, ok := ctx.Deadline(); ok {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return context.DeadlineExceeded
		}
		// The context closes the connection first; the command timeouts are a backstop.
		client.CommandTimeout = remaining + smtpTimeoutGrace
		client.SubmissionTimeout = remaining + smtpTimeoutGrace
	}

	if ok, _ := client.Extension("STARTTLS"); ok {
		host, _, _ := net.SplitHostPort(addr)
		if err := client.StartTLS(&tls.Config{ServerName: host}); err != nil {
			return err
		}
	}

	if c.opts.Username != "" {
		if err := client.Auth(sasl.NewPlainClient("", c.opts.Username, c.opts.Password)); err != nil {
			return err
		}
	}

	if err := client.Mail(c.opts.From, nil); err != nil {
		return err
	}
	if err := client.Rcpt(to, nil); err != nil {
		return err
	}

	w, err := client.Data()
	if err != nil {
		return err
	}
	if _, err := io.Copy(w, msg); err != nil {
		_ = w.Close()
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}

	// The message is accepted once DATA completes.
	if err := client.Quit(); err != nil {
		logger.Debug("Transport: SMTP QUIT failed: %v", err)
	}
	return nil
}

func smtpAddr(endpoint string) (string, error) {
	if endpoint == "" {
		return "", fmt.Errorf("SMTP address is empty")
	}
	if strings.Contains(endpoint, "://") {
		u, err := url.Parse(endpoint)
		if err != nil {
			return "", fmt.Errorf("invalid SMTP address: %w", err)
		}
		if u.Scheme != "smtp" || u.Host == "" {
			return "", fmt.Errorf("invalid SMTP address %q", endpoint)
		}
		return u.Host, nil
	}
	return endpoint, nil
}
