package tui

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vdavid/mailmate/internal/form"
	"github.com/vdavid/mailmate/internal/models"
	"github.com/vdavid/mailmate/internal/testutil"
	"github.com/vdavid/mailmate/internal/transport"
)

type stubTransport struct {
	err   error
	calls int
}

func (s *stubTransport) Send(context.Context, string, models.Payload) (*transport.ResponseInfo, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return &transport.ResponseInfo{StatusCode: http.StatusOK, Status: "200 OK"}, nil
}

func newTestModel(t *testing.T, client transport.Client, clearOnSuccess bool) (Model, *form.Controller, *testutil.RecordingSink) {
	t.Helper()
	sink := testutil.NewRecordingSink()
	ctrl := form.NewController(client, sink, form.Options{
		EndpointURL:    "http://relay.test/api/send-email",
		Features:       form.AllFeatures,
		ClearOnSuccess: clearOnSuccess,
	})
	return New(context.Background(), ctrl), ctrl, sink
}

func typeText(m Model, text string) Model {
	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(text)})
	return next.(Model)
}

func press(m Model, keyType tea.KeyType) Model {
	next, _ := m.Update(tea.KeyMsg{Type: keyType})
	return next.(Model)
}

func TestTypingUpdatesController(t *testing.T) {
	m, ctrl, _ := newTestModel(t, &stubTransport{}, true)

	m = typeText(m, "a@b.com")
	m = press(m, tea.KeyTab)
	m = typeText(m, "hi")

	state := ctrl.State()
	assert.Equal(t, "a@b.com", state.RecipientEmail)
	assert.Equal(t, "hi", state.MessageBody)
}

func TestSubmitInvalidFormShowsStatus(t *testing.T) {
	client := &stubTransport{}
	m, _, sink := newTestModel(t, client, true)

	next, cmd := m.startSubmit()
	m = next.(Model)

	assert.Nil(t, cmd)
	assert.False(t, m.submitting)
	assert.Contains(t, m.status, "email")
	assert.Empty(t, sink.Notifications())
	assert.Equal(t, 0, client.calls)
}

func TestSubmitSuccessShowsToastAndClears(t *testing.T) {
	client := &stubTransport{}
	m, ctrl, sink := newTestModel(t, client, true)
	ctrl.SetRecipientEmail("a@b.com")
	ctrl.SetMessageBody("hi")

	next, cmd := m.startSubmit()
	m = next.(Model)
	require.NotNil(t, cmd)
	assert.True(t, m.submitting)

	// Repeated presses while submitting are ignored.
	_, again := m.startSubmit()
	assert.Nil(t, again)

	next, _ = m.Update(m.submitCmd()())
	m = next.(Model)

	assert.False(t, m.submitting)
	require.NotNil(t, m.toast)
	assert.Equal(t, form.SuccessMessage, m.toast.Text)
	assert.Equal(t, "", m.recipient.Value())
	assert.Equal(t, 1, client.calls)
	assert.Len(t, sink.Notifications(), 1)
}

func TestClearIgnoredWhileSubmitting(t *testing.T) {
	client := &stubTransport{}
	m, ctrl, sink := newTestModel(t, client, false)
	ctrl.SetRecipientEmail("a@b.com")
	ctrl.SetMessageBody("hi")

	next, cmd := m.startSubmit()
	m = next.(Model)
	require.NotNil(t, cmd)

	// The submission has not reached the controller yet.
	m = press(m, tea.KeyCtrlR)
	assert.Equal(t, "a@b.com", ctrl.State().RecipientEmail)
	assert.Equal(t, "hi", ctrl.State().MessageBody)

	next, _ = m.Update(m.submitCmd()())
	m = next.(Model)

	require.NotNil(t, m.toast)
	assert.Equal(t, form.SuccessMessage, m.toast.Text)
	assert.Empty(t, m.status)
	assert.Equal(t, 1, client.calls)
	assert.Len(t, sink.Notifications(), 1)

	m = press(m, tea.KeyCtrlR)
	assert.Equal(t, "", ctrl.State().RecipientEmail)
}

func TestSubmitFailureKeepsFields(t *testing.T) {
	client := &stubTransport{err: &transport.Error{Kind: transport.KindNoResponse, Detail: transport.NoResponseDetail}}
	m, ctrl, _ := newTestModel(t, client, true)
	m = typeText(m, "a@b.com")
	ctrl.SetMessageBody("hi")

	next, _ := m.Update(m.submitCmd()())
	m = next.(Model)

	require.NotNil(t, m.toast)
	assert.Equal(t, "Failed to send email: No response from server.", m.toast.Text)
	assert.Equal(t, models.SeverityError, m.toast.Severity)
	assert.Equal(t, "a@b.com", m.recipient.Value())
}

func TestToastExpires(t *testing.T) {
	m, _, _ := newTestModel(t, &stubTransport{}, true)
	m.toast = &models.Notification{Text: "x"}
	m.toastID = 2

	next, _ := m.Update(toastExpiredMsg{id: 1})
	assert.NotNil(t, next.(Model).toast)

	next, _ = m.Update(toastExpiredMsg{id: 2})
	assert.Nil(t, next.(Model).toast)
}

func TestAttachAndRemoveFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.txt", "b.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(name), 0o600))
	}

	m, ctrl, _ := newTestModel(t, &stubTransport{}, true)
	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyCtrlO})
	m = next.(Model)
	require.True(t, ctrl.State().AttachmentsEnabled)

	next, _ = m.setFocus(fieldAttachPath)
	m = next.(Model)
	for _, name := range []string{"a.txt", "b.txt"} {
		m = typeText(m, filepath.Join(dir, name))
		m = press(m, tea.KeyEnter)
	}
	m = typeText(m, filepath.Join(dir, "missing.txt"))
	m = press(m, tea.KeyEnter)

	assert.Equal(t, []string{"a.txt", "b.txt"}, ctrl.Payload().FileNames())
	assert.Contains(t, m.status, "Cannot attach")

	m = press(m, tea.KeyTab)
	require.Equal(t, fieldFiles, m.focus)
	m = typeText(m, "d")

	assert.Equal(t, []string{"b.txt"}, ctrl.Payload().FileNames())

	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyCtrlO})
	m = next.(Model)
	assert.Empty(t, ctrl.State().Attachments)
	assert.Equal(t, fieldRecipient, m.focus)
}

func TestFocusSkipsHiddenFields(t *testing.T) {
	m, _, _ := newTestModel(t, &stubTransport{}, true)

	m = press(m, tea.KeyTab)
	assert.Equal(t, fieldMessage, m.focus)
	m = press(m, tea.KeyTab)
	assert.Equal(t, fieldRecipient, m.focus)

	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyCtrlT})
	m = next.(Model)
	m = press(m, tea.KeyShiftTab)
	assert.Equal(t, fieldSubject, m.focus)
}
