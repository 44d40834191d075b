// Package form implements the contact form controller: it owns the form
// state, enforces its invariants and drives one submission at a time.
package form

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/vdavid/mailmate/internal/logger"
	"github.com/vdavid/mailmate/internal/models"
	"github.com/vdavid/mailmate/internal/notify"
	"github.com/vdavid/mailmate/internal/transport"
)

const (
	// SuccessMessage is the toast shown after the relay accepts a submission.
	SuccessMessage = "Email sent successfully!"
	failurePrefix  = "Failed to send email: "
)

// ErrSubmissionInProgress is returned by Submit while another submission is in flight.
var ErrSubmissionInProgress = errors.New("a submission is already in progress")

// Features selects which optional parts of the form are available.
type Features struct {
	AttachmentsSupported   bool
	CustomSubjectSupported bool
}

// AllFeatures enables attachments and the custom subject.
var AllFeatures = Features{AttachmentsSupported: true, CustomSubjectSupported: true}

// Options configures a Controller.
type Options struct {
	EndpointURL string
	Features    Features
	// ClearOnSuccess resets the form after the relay accepts a submission.
	// Failed submissions always keep the fields so the user can retry.
	ClearOnSuccess bool
	// MaxAttachmentBytes limits each attachment; zero means no limit.
	MaxAttachmentBytes int64
}

// State is a snapshot of the form.
type State struct {
	RecipientEmail       string
	MessageBody          string
	Attachments          []*models.FileHandle
	AttachmentsEnabled   bool
	CustomSubjectEnabled bool
	CustomSubject        string
	IsSubmitting         bool
}

// Outcome describes a completed submission.
type Outcome struct {
	Notification models.Notification
	Response     *transport.ResponseInfo
	// Err is nil when the relay accepted the submission.
	Err *transport.Error
}

// Sent reports whether the relay accepted the submission.
func (o *Outcome) Sent() bool {
	return o.Err == nil
}

// Controller owns the form state. It is safe for use from multiple goroutines;
// the transport call runs without holding the state lock.
type Controller struct {
	mu        sync.Mutex
	state     State
	transport transport.Client
	sink      notify.Sink
	opts      Options
	validate  *validator.Validate
}

// NewController creates a controller with an empty form.
func NewController(client transport.Client, sink notify.Sink, opts Options) *Controller {
	return &Controller{
		transport: client,
		sink:      sink,
		opts:      opts,
		validate:  validator.New(),
	}
}

// Features returns the configured feature flags.
func (c *Controller) Features() Features {
	return c.opts.Features
}

// State returns a copy of the current form state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.state
	s.Attachments = append([]*models.FileHandle(nil), c.state.Attachments...)
	return s
}

func (c *Controller) SetRecipientEmail(value string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.RecipientEmail = value
}

func (c *Controller) SetMessageBody(value string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.MessageBody = value
}

// SetCustomSubject is ignored while the custom subject is toggled off.
func (c *Controller) SetCustomSubject(value string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.state.CustomSubjectEnabled {
		return
	}
	c.state.CustomSubject = value
}

// ToggleAttachments shows or hides the attachment picker. Turning it off drops all attachments.
func (c *Controller) ToggleAttachments(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if enabled && !c.opts.Features.AttachmentsSupported {
		return
	}
	c.state.AttachmentsEnabled = enabled
	if !enabled {
		c.state.Attachments = nil
	}
}

// ToggleCustomSubject shows or hides the subject field. Turning it off clears the subject.
func (c *Controller) ToggleCustomSubject(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if enabled && !c.opts.Features.CustomSubjectSupported {
		return
	}
	c.state.CustomSubjectEnabled = enabled
	if !enabled {
		c.state.CustomSubject = ""
	}
}

// AddFiles appends files after the existing attachments. Ignored while attachments are off.
func (c *Controller) AddFiles(files ...*models.FileHandle) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.state.AttachmentsEnabled {
		return
	}
	for _, f := range files {
		if f != nil {
			c.state.Attachments = append(c.state.Attachments, f)
		}
	}
}

// RemoveFile removes the attachment at index. Out-of-range indexes are ignored.
func (c *Controller) RemoveFile(index int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if index < 0 || index >= len(c.state.Attachments) {
		return
	}
	next := make([]*models.FileHandle, 0, len(c.state.Attachments)-1)
	next = append(next, c.state.Attachments[:index]...)
	next = append(next, c.state.Attachments[index+1:]...)
	c.state.Attachments = next
}

// Clear resets every field. It does nothing while a submission is in flight
// and reports whether the form was cleared.
func (c *Controller) Clear() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.IsSubmitting {
		return false
	}
	c.state = State{}
	return true
}

// Validate checks the preconditions for Submit.
func (c *Controller) Validate() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.validateLocked()
}

// Payload returns what Submit would send for the current state.
func (c *Controller) Payload() models.Payload {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.payloadLocked()
}

func (c *Controller) payloadLocked() models.Payload {
	p := models.Payload{
		Email:   c.state.RecipientEmail,
		Message: c.state.MessageBody,
		Files:   append([]*models.FileHandle(nil), c.state.Attachments...),
	}
	if c.state.CustomSubjectEnabled {
		p.Subject = c.state.CustomSubject
		p.HasSubject = true
	}
	return p
}

// Submit sends the form once. It returns ErrSubmissionInProgress if another
// submission is in flight and a *ValidationError if the form is incomplete;
// neither case contacts the relay or emits a notification. Otherwise exactly
// one notification is emitted and the outcome is returned, including failures.
func (c *Controller) Submit(ctx context.Context) (*Outcome, error) {
	c.mu.Lock()
	if c.state.IsSubmitting {
		c.mu.Unlock()
		return nil, ErrSubmissionInProgress
	}
	if err := c.validateLocked(); err != nil {
		c.mu.Unlock()
		return nil, err
	}
	c.state.IsSubmitting = true
	payload := c.payloadLocked()
	c.mu.Unlock()

	outcome := c.deliver(ctx, payload)

	c.mu.Lock()
	c.state.IsSubmitting = false
	if outcome.Sent() && c.opts.ClearOnSuccess {
		c.state = State{}
	}
	c.mu.Unlock()

	return outcome, nil
}

func (c *Controller) deliver(ctx context.Context, payload models.Payload) *Outcome {
	resp, err := c.send(ctx, payload)
	if err == nil {
		logger.Info("Form: email to %s accepted by relay (%s)", payload.Email, statusOf(resp))
		return c.report(&Outcome{Response: resp}, SuccessMessage, models.SeveritySuccess)
	}

	te := transport.Classify(err)
	logFailure(te)

	detail := te.Detail
	if te.Kind == transport.KindNoResponse {
		detail = transport.NoResponseDetail
	}
	return c.report(&Outcome{Err: te}, failurePrefix+detail, models.SeverityError)
}

// send keeps a misbehaving transport from leaving the form stuck in the submitting state.
func (c *Controller) send(ctx context.Context, payload models.Payload) (resp *transport.ResponseInfo, err error) {
	defer func() {
		if r := recover(); r != nil {
			resp = nil
			err = fmt.Errorf("transport panicked: %v", r)
		}
	}()
	return c.transport.Send(ctx, c.opts.EndpointURL, payload)
}

func (c *Controller) report(outcome *Outcome, text string, severity models.Severity) *Outcome {
	outcome.Notification = models.Notification{Text: text, Severity: severity, SentAt: time.Now()}
	if c.sink != nil {
		c.sink.Notify(text, severity)
	}
	return outcome
}

func logFailure(te *transport.Error) {
	switch te.Kind {
	case transport.KindServerRejected:
		logger.Error("Form: relay rejected submission: status=%d headers=%v body=%q", te.StatusCode, te.Header, te.Body)
	case transport.KindNoResponse:
		logger.Error("Form: no response from relay: %v", te.Err)
	default:
		logger.Error("Form: failed to build request: %v", te.Err)
	}
}

func statusOf(resp *transport.ResponseInfo) string {
	if resp == nil {
		return "no status"
	}
	return resp.Status
}
