package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	chatModel "github.com/zhouzirui/webhook-chat/backend/internal/model/chat"
	"github.com/zhouzirui/webhook-chat/backend/internal/service/dispatch"
	"github.com/zhouzirui/webhook-chat/backend/internal/service/widget"
)

var (
	userStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Bold(true)
	botStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFFDF5"))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
	thinkingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888")).Italic(true)
	helpStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
	overLimit     = lipgloss.NewStyle().Foreground(lipgloss.Color("203")).Bold(true)
)

// controller is the part of *widget.Controller the UI drives.
type controller interface {
	Submit(ctx context.Context, sessionID, rawText string) (chatModel.Message, error)
	Clear(ctx context.Context, sessionID string) error
	MaxMessageLength() int
}

type eventMsg struct {
	event widget.Event
	ok    bool
}

type submitDoneMsg struct{ err error }

type clearDoneMsg struct{ err error }

type model struct {
	ctx        context.Context
	controller controller
	sessionID  string
	events     <-chan widget.Event

	input    textinput.Model
	messages []chatModel.Message
	pending  bool
	thinking string
	status   string
	width    int
}

func newModel(ctx context.Context, c controller, sessionID string, transcript []chatModel.Message, events <-chan widget.Event) model {
	input := textinput.New()
	input.Placeholder = "Type your message..."
	input.Prompt = "> "
	input.CharLimit = 0
	input.Focus()

	return model{
		ctx:        ctx,
		controller: c,
		sessionID:  sessionID,
		events:     events,
		input:      input,
		messages:   append([]chatModel.Message(nil), transcript...),
	}
}

func waitForEvent(events <-chan widget.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-events
		return eventMsg{event: ev, ok: ok}
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, waitForEvent(m.events))
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.input.Width = max(msg.Width-4, 10)
		return m, nil

	case eventMsg:
		if !msg.ok {
			return m, tea.Quit
		}
		m = m.apply(msg.event)
		return m, waitForEvent(m.events)

	case submitDoneMsg:
		m.status = submitStatus(msg.err)
		return m, nil

	case clearDoneMsg:
		if msg.err != nil {
			m.status = msg.err.Error()
		}
		return m, nil

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyCtrlK:
			m.status = ""
			return m, m.clear()
		case tea.KeyEnter:
			if m.pending {
				return m, nil
			}
			text := m.input.Value()
			m.input.Reset()
			m.status = ""
			return m, m.submit(text)
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m model) apply(ev widget.Event) model {
	switch ev.Type {
	case widget.EventMessage:
		if ev.Message != nil {
			m.messages = append(m.messages, *ev.Message)
		}
	case widget.EventTyping:
		m.pending = ev.Pending
		if !ev.Pending {
			m.thinking = ""
		}
	case widget.EventThinking:
		m.thinking = ev.Text
	case widget.EventCleared:
		m.messages = nil
	}
	return m
}

func (m model) submit(text string) tea.Cmd {
	return func() tea.Msg {
		_, err := m.controller.Submit(m.ctx, m.sessionID, text)
		return submitDoneMsg{err: err}
	}
}

func (m model) clear() tea.Cmd {
	return func() tea.Msg {
		return clearDoneMsg{err: m.controller.Clear(m.ctx, m.sessionID)}
	}
}

// submitStatus returns the status line for a finished submit. Errors the
// controller already wrote to the transcript are not repeated.
func submitStatus(err error) string {
	if err == nil {
		return ""
	}
	var verr *dispatch.ValidationError
	if errors.As(err, &verr) {
		if verr.Reason == dispatch.ReasonTooLong {
			return ""
		}
		if verr.Reason == dispatch.ReasonEmpty {
			return "Nothing to send."
		}
	}
	if errors.Is(err, widget.ErrBusy) {
		return "Still waiting for the last reply."
	}
	return err.Error()
}

func (m model) View() string {
	var b strings.Builder

	for _, msg := range m.messages {
		b.WriteString(renderMessage(msg))
		b.WriteString("\n")
	}

	if m.pending {
		phrase := m.thinking
		if phrase == "" {
			phrase = "..."
		}
		b.WriteString(thinkingStyle.Render("Bot: " + phrase))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(m.input.View())
	b.WriteString("\n")

	count := utf8.RuneCountInString(m.input.Value())
	counter := fmt.Sprintf("%d/%d", count, m.controller.MaxMessageLength())
	if count > m.controller.MaxMessageLength() {
		counter = overLimit.Render(counter)
	} else {
		counter = helpStyle.Render(counter)
	}
	b.WriteString(counter)
	b.WriteString(helpStyle.Render("  enter: send • ctrl+k: clear • ctrl+c: quit"))
	b.WriteString("\n")

	if m.status != "" {
		b.WriteString(errorStyle.Render(m.status))
		b.WriteString("\n")
	}
	return b.String()
}

func renderMessage(msg chatModel.Message) string {
	switch {
	case msg.Origin == chatModel.OriginUser:
		return userStyle.Render("You: ") + msg.Text
	case msg.IsError:
		return errorStyle.Render("Bot: " + msg.Text)
	default:
		return botStyle.Render("Bot: " + msg.Text)
	}
}
