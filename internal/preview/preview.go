// Package preview renders a form payload as the email the relay would deliver.
package preview

import (
	"bytes"
	"fmt"
	"io"
	"time"

	"github.com/jhillyerd/enmime"
	"github.com/vdavid/mailmate/internal/models"
)

const DefaultFrom = "mailmate@localhost"

// Options controls message headers that are not part of the payload.
type Options struct {
	From           string
	DefaultSubject string
	Date           time.Time
}

// Subject returns the subject line used for the payload.
func Subject(payload models.Payload, defaultSubject string) string {
	if payload.HasSubject && payload.Subject != "" {
		return payload.Subject
	}
	if defaultSubject == "" {
		return "(no subject)"
	}
	return defaultSubject
}

// Build assembles the MIME tree for the payload.
func Build(payload models.Payload, opts Options) (*enmime.Part, error) {
	if payload.Email == "" {
		return nil, fmt.Errorf("recipient is required")
	}
	from := opts.From
	if from == "" {
		from = DefaultFrom
	}
	date := opts.Date
	if date.IsZero() {
		date = time.Now()
	}

	builder := enmime.Builder().
		From("", from).
		To("", payload.Email).
		Subject(Subject(payload, opts.DefaultSubject)).
		Date(date).
		Text([]byte(payload.Message))

	for _, file := range payload.Files {
		data, err := file.ReadAll()
		if err != nil {
			return nil, err
		}
		contentType := file.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		builder = builder.AddAttachment(data, contentType, file.Name)
	}

	root, err := builder.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build message: %w", err)
	}
	return root, nil
}

// Render writes the encoded RFC 5322 message to w.
func Render(w io.Writer, payload models.Payload, opts Options) error {
	root, err := Build(payload, opts)
	if err != nil {
		return err
	}
	if err := root.Encode(w); err != nil {
		return fmt.Errorf("failed to encode message: %w", err)
	}
	return nil
}

// Bytes is Render into memory.
func Bytes(payload models.Payload, opts Options) ([]byte, error) {
	var buf bytes.Buffer
	if err := Render(&buf, payload, opts); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
