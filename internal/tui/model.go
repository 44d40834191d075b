// Package tui is the interactive terminal rendition of the contact form.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/vdavid/mailmate/internal/form"
	"github.com/vdavid/mailmate/internal/models"
)

const toastDuration = 4 * time.Second

var (
	appStyle = lipgloss.NewStyle().Padding(1, 2)

	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFDF5")).
			Background(lipgloss.Color("#25A065")).
			Padding(0, 1)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	focusedLabelStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("229")).
				Bold(true)

	selectedFileStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("229")).
				Background(lipgloss.Color("57"))

	buttonStyle = lipgloss.NewStyle().
			Padding(0, 1).
			Foreground(lipgloss.Color("#FFFDF5")).
			Background(lipgloss.Color("57"))

	disabledButtonStyle = lipgloss.NewStyle().
				Padding(0, 1).
				Foreground(lipgloss.Color("245")).
				Background(lipgloss.Color("237"))

	successToastStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#04B575")).
				Bold(true)

	errorToastStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF5F87")).
			Bold(true)

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))
)

type field int

const (
	fieldRecipient field = iota
	fieldMessage
	fieldSubject
	fieldAttachPath
	fieldFiles
)

type submitResultMsg struct {
	outcome *form.Outcome
	err     error
}

type toastExpiredMsg struct {
	id int
}

// Model is the bubbletea model wrapping a form.Controller.
type Model struct {
	ctrl *form.Controller
	ctx  context.Context

	recipient  textinput.Model
	message    textarea.Model
	subject    textinput.Model
	attachPath textinput.Model
	spinner    spinner.Model

	focus      field
	fileCursor int
	submitting bool

	status  string
	toast   *models.Notification
	toastID int

	quitting bool
}

// New creates a model over ctrl. ctx is passed to every submission.
func New(ctx context.Context, ctrl *form.Controller) Model {
	recipient := textinput.New()
	recipient.Placeholder = "recipient@example.com"
	recipient.Prompt = ""
	recipient.Focus()

	message := textarea.New()
	message.Placeholder = "Your message"
	message.SetWidth(60)
	message.SetHeight(6)
	message.ShowLineNumbers = false

	subject := textinput.New()
	subject.Placeholder = "Subject"
	subject.Prompt = ""

	attachPath := textinput.New()
	attachPath.Placeholder = "path/to/file (enter to attach)"
	attachPath.Prompt = ""

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return Model{
		ctrl:       ctrl,
		ctx:        ctx,
		recipient:  recipient,
		message:    message,
		subject:    subject,
		attachPath: attachPath,
		spinner:    sp,
	}
}

func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case submitResultMsg:
		return m.handleSubmitResult(msg)

	case toastExpiredMsg:
		if msg.id == m.toastID {
			m.toast = nil
		}
		return m, nil

	case spinner.TickMsg:
		if !m.submitting {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "esc":
		m.quitting = true
		return m, tea.Quit
	case "tab":
		return m.moveFocus(1)
	case "shift+tab":
		return m.moveFocus(-1)
	case "ctrl+s":
		return m.startSubmit()
	case "ctrl+r":
		if m.submitting {
			return m, nil
		}
		if m.ctrl.Clear() {
			m.status = ""
			m.syncFromController()
			return m.setFocus(fieldRecipient)
		}
		return m, nil
	case "ctrl+o":
		if m.submitting {
			return m, nil
		}
		m.ctrl.ToggleAttachments(!m.ctrl.State().AttachmentsEnabled)
		m.attachPath.Reset()
		m.fileCursor = 0
		return m.setFocus(m.focus)
	case "ctrl+t":
		if m.submitting {
			return m, nil
		}
		m.ctrl.ToggleCustomSubject(!m.ctrl.State().CustomSubjectEnabled)
		m.subject.Reset()
		return m.setFocus(m.focus)
	}

	if m.submitting {
		return m, nil
	}

	var cmd tea.Cmd
	switch m.focus {
	case fieldRecipient:
		m.recipient, cmd = m.recipient.Update(msg)
		m.ctrl.SetRecipientEmail(m.recipient.Value())
	case fieldMessage:
		m.message, cmd = m.message.Update(msg)
		m.ctrl.SetMessageBody(m.message.Value())
	case fieldSubject:
		m.subject, cmd = m.subject.Update(msg)
		m.ctrl.SetCustomSubject(m.subject.Value())
	case fieldAttachPath:
		if msg.Type == tea.KeyEnter {
			m.attachFile(strings.TrimSpace(m.attachPath.Value()))
			return m, nil
		}
		m.attachPath, cmd = m.attachPath.Update(msg)
	case fieldFiles:
		m.handleFilesKey(msg)
	}
	return m, cmd
}

func (m *Model) attachFile(path string) {
	if path == "" {
		return
	}
	file, err := models.NewFileFromPath(path)
	if err != nil {
		m.status = fmt.Sprintf("Cannot attach %s: %v", path, err)
		return
	}
	m.ctrl.AddFiles(file)
	m.attachPath.Reset()
	m.status = ""
}

func (m *Model) handleFilesKey(msg tea.KeyMsg) {
	files := m.ctrl.State().Attachments
	switch msg.String() {
	case "up", "k":
		if m.fileCursor > 0 {
			m.fileCursor--
		}
	case "down", "j":
		if m.fileCursor < len(files)-1 {
			m.fileCursor++
		}
	case "d", "delete", "backspace":
		m.ctrl.RemoveFile(m.fileCursor)
		if remaining := len(m.ctrl.State().Attachments); m.fileCursor >= remaining && m.fileCursor > 0 {
			m.fileCursor = remaining - 1
		}
		if len(m.ctrl.State().Attachments) == 0 {
			m.focus = fieldAttachPath
			m.attachPath.Focus()
		}
	}
}

// fields lists the focusable fields for the current state in tab order.
func (m Model) fields() []field {
	state := m.ctrl.State()
	out := []field{fieldRecipient, fieldMessage}
	if state.CustomSubjectEnabled {
		out = append(out, fieldSubject)
	}
	if state.AttachmentsEnabled {
		out = append(out, fieldAttachPath)
		if len(state.Attachments) > 0 {
			out = append(out, fieldFiles)
		}
	}
	return out
}

func (m Model) moveFocus(delta int) (tea.Model, tea.Cmd) {
	fields := m.fields()
	idx := 0
	for i, f := range fields {
		if f == m.focus {
			idx = i
			break
		}
	}
	idx = (idx + delta + len(fields)) % len(fields)
	return m.setFocus(fields[idx])
}

// setFocus focuses target, falling back to the recipient field if target is hidden.
func (m Model) setFocus(target field) (tea.Model, tea.Cmd) {
	visible := false
	for _, f := range m.fields() {
		if f == target {
			visible = true
			break
		}
	}
	if !visible {
		target = fieldRecipient
	}

	m.focus = target
	m.recipient.Blur()
	m.message.Blur()
	m.subject.Blur()
	m.attachPath.Blur()

	switch target {
	case fieldRecipient:
		return m, m.recipient.Focus()
	case fieldMessage:
		return m, m.message.Focus()
	case fieldSubject:
		return m, m.subject.Focus()
	case fieldAttachPath:
		return m, m.attachPath.Focus()
	}
	return m, nil
}

func (m Model) startSubmit() (tea.Model, tea.Cmd) {
	if m.submitting {
		return m, nil
	}
	if err := m.ctrl.Validate(); err != nil {
		m.status = err.Error()
		return m, nil
	}
	m.status = ""
	m.submitting = true
	return m, tea.Batch(m.spinner.Tick, m.submitCmd())
}

func (m Model) submitCmd() tea.Cmd {
	ctrl, ctx := m.ctrl, m.ctx
	return func() tea.Msg {
		outcome, err := ctrl.Submit(ctx)
		return submitResultMsg{outcome: outcome, err: err}
	}
}

func (m Model) handleSubmitResult(msg submitResultMsg) (tea.Model, tea.Cmd) {
	if errors.Is(msg.err, form.ErrSubmissionInProgress) {
		return m, nil
	}
	m.submitting = false
	if msg.err != nil {
		m.status = msg.err.Error()
		return m, nil
	}

	note := msg.outcome.Notification
	m.toast = &note
	m.toastID++
	id := m.toastID

	m.syncFromController()
	next, focusCmd := m.setFocus(m.focus)
	expire := tea.Tick(toastDuration, func(time.Time) tea.Msg {
		return toastExpiredMsg{id: id}
	})
	return next, tea.Batch(focusCmd, expire)
}

// syncFromController copies the controller state into the inputs.
func (m *Model) syncFromController() {
	state := m.ctrl.State()
	m.recipient.SetValue(state.RecipientEmail)
	m.message.SetValue(state.MessageBody)
	m.subject.SetValue(state.CustomSubject)
	if !state.AttachmentsEnabled {
		m.attachPath.Reset()
	}
	if m.fileCursor >= len(state.Attachments) {
		m.fileCursor = 0
	}
}

func (m Model) label(f field, text string) string {
	if m.focus == f {
		return focusedLabelStyle.Render("> " + text)
	}
	return labelStyle.Render("  " + text)
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	state := m.ctrl.State()
	var b strings.Builder

	b.WriteString(titleStyle.Render("MailMate"))
	b.WriteString("\n\n")

	b.WriteString(m.label(fieldRecipient, "To") + "\n")
	b.WriteString("  " + m.recipient.View() + "\n\n")

	b.WriteString(m.label(fieldMessage, "Message") + "\n")
	b.WriteString(m.message.View() + "\n\n")

	features := m.ctrl.Features()
	if features.CustomSubjectSupported {
		b.WriteString(labelStyle.Render(fmt.Sprintf("  [%s] Custom subject (ctrl+t)", checkbox(state.CustomSubjectEnabled))) + "\n")
		if state.CustomSubjectEnabled {
			b.WriteString(m.label(fieldSubject, "Subject") + "\n")
			b.WriteString("  " + m.subject.View() + "\n")
		}
		b.WriteString("\n")
	}

	if features.AttachmentsSupported {
		b.WriteString(labelStyle.Render(fmt.Sprintf("  [%s] Attachments (ctrl+o)", checkbox(state.AttachmentsEnabled))) + "\n")
		if state.AttachmentsEnabled {
			b.WriteString(m.label(fieldAttachPath, "Attach") + "\n")
			b.WriteString("  " + m.attachPath.View() + "\n")
			for i, f := range state.Attachments {
				line := fmt.Sprintf("  %d. %s (%d bytes)", i+1, f.Name, f.Size)
				if m.focus == fieldFiles && i == m.fileCursor {
					line = selectedFileStyle.Render(line + "  [d] remove")
				}
				b.WriteString(line + "\n")
			}
		}
		b.WriteString("\n")
	}

	sendBtn, clearBtn := buttonStyle, buttonStyle
	if state.IsSubmitting || m.submitting {
		sendBtn, clearBtn = disabledButtonStyle, disabledButtonStyle
	}
	sendLabel := "Send (ctrl+s)"
	if m.submitting {
		sendLabel = m.spinner.View() + " Sending..."
	}
	b.WriteString(sendBtn.Render(sendLabel) + " " + clearBtn.Render("Clear (ctrl+r)") + "\n\n")

	if m.status != "" {
		b.WriteString(errorToastStyle.Render(m.status) + "\n")
	}
	if m.toast != nil {
		style := successToastStyle
		if m.toast.Severity == models.SeverityError {
			style = errorToastStyle
		}
		b.WriteString(style.Render(m.toast.Text) + "\n")
	}

	b.WriteString(helpStyle.Render("tab: next field • ctrl+s: send • ctrl+r: clear • esc: quit"))

	return appStyle.Render(b.String())
}

func checkbox(on bool) string {
	if on {
		return "x"
	}
	return " "
}

// Run starts the program and blocks until the user quits.
func Run(ctx context.Context, ctrl *form.Controller) error {
	_, err := tea.NewProgram(New(ctx, ctrl), tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	return err
}
