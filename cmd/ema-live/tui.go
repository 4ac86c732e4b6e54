package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	session "github.com/koscakluka/ema-live/core"
	"github.com/muesli/reflow/wordwrap"
)

type (
	stateMsg   struct{ from, to session.State }
	recordMsg  struct{ record session.Record }
	errMsg     struct{ err error }
	partialMsg struct{}
	connectMsg struct{ err error }
	actionMsg  struct{ err error }
	drainedMsg struct{}
)

var (
	titleStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	stateStyle     = lipgloss.NewStyle().Padding(0, 1).Foreground(lipgloss.Color("230")).Background(lipgloss.Color("62"))
	userStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("86"))
	assistantStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("255"))
	coachStyle     = lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("178"))
	partialStyle   = lipgloss.NewStyle().Faint(true)
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	helpStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

// The session is only driven from commands. Session calls deliver callbacks
// on the calling goroutine and those end up in Program.Send, which would
// block if it ran inside Update.
type model struct {
	session *session.Session
	mode    string
	spinner spinner.Model

	view    session.View
	records []session.Record
	err     error
	width   int

	watchingPlayback bool
}

func newModel(sess *session.Session, mode string) model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	return model{
		session: sess,
		mode:    mode,
		spinner: s,
		view:    sess.Snapshot(),
		width:   80,
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.connect())
}

func (m model) connect() tea.Cmd {
	sess := m.session
	return func() tea.Msg {
		return connectMsg{err: sess.Connect(context.Background())}
	}
}

func (m model) act(action func() error) tea.Cmd {
	return func() tea.Msg { return actionMsg{err: action()} }
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case connectMsg:
		m.err = msg.err
		if msg.err == nil {
			m.refresh()
			watch := m.watchPlayback()
			return m, tea.Batch(m.act(func() error { return m.session.StartListening(context.Background()) }), watch)
		}

	case actionMsg:
		if msg.err != nil {
			m.err = msg.err
		}

	case errMsg:
		m.err = msg.err

	case drainedMsg:
		m.watchingPlayback = false

	case stateMsg, recordMsg, partialMsg:
	}

	m.refresh()
	watch := m.watchPlayback()
	return m, watch
}

// watchPlayback refreshes the view once queued audio runs out, since no
// session callback reports the end of playback.
func (m *model) watchPlayback() tea.Cmd {
	if m.watchingPlayback || !m.view.Playing {
		return nil
	}
	m.watchingPlayback = true
	drained := m.session.PlaybackDrained()
	return func() tea.Msg {
		<-drained
		return drainedMsg{}
	}
}

func (m model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	sess := m.session
	switch msg.String() {
	case "ctrl+c", "q":
		return m, tea.Sequence(m.act(sess.Disconnect), tea.Quit)

	case " ":
		if m.view.Listening {
			return m, m.act(sess.StopListening)
		}
		return m, m.act(func() error { return sess.StartListening(context.Background()) })

	case "i":
		return m, m.act(sess.Interrupt)

	case "r":
		if m.view.State == session.StateDisconnected && !m.view.Terminal {
			m.err = nil
			return m, m.connect()
		}

	case "d":
		return m, m.act(sess.Disconnect)
	}
	return m, nil
}

func (m *model) refresh() {
	m.view = m.session.Snapshot()
	if len(m.records) != m.view.Records {
		m.records = m.session.Transcript()
	}
}

func (m model) View() string {
	width := max(m.width-2, 20)
	var b strings.Builder

	status := m.view.State.String()
	if m.view.State == session.StateConnecting || m.view.State == session.StateProcessing {
		status = m.spinner.View() + status
	}
	fmt.Fprintf(&b, "%s  %s  %s\n\n", titleStyle.Render("ema live"), stateStyle.Render(status), helpStyle.Render(m.mode))

	for _, record := range m.records {
		switch record.Role {
		case session.RoleUser:
			b.WriteString(userStyle.Render(wordwrap.String("you: "+record.Text, width)))
		case session.RoleAssistant:
			b.WriteString(assistantStyle.Render(wordwrap.String("ema: "+record.Text, width)))
		case session.RoleCoach:
			b.WriteString(coachStyle.Render(wordwrap.String("coach: "+record.Text, width)))
		}
		b.WriteString("\n")
	}

	if text := m.view.PartialUserTranscript; text != "" {
		b.WriteString(partialStyle.Render(wordwrap.String("you: "+text, width)) + "\n")
	}
	if text := m.view.PartialResponseText; text != "" {
		b.WriteString(partialStyle.Render(wordwrap.String("ema: "+text, width)) + "\n")
	}

	if m.err != nil {
		message := m.err.Error()
		switch {
		case session.IsTerminal(m.err):
			message += " (sign in again)"
		case m.view.State == session.StateDisconnected:
			message += " (press r to retry)"
		}
		b.WriteString("\n" + errorStyle.Render(wordwrap.String(message, width)) + "\n")
	}

	mic := "mic off"
	if m.view.Listening {
		mic = "mic on"
	}
	if m.view.Playing {
		mic += " · ema speaking"
	}
	b.WriteString("\n" + helpStyle.Render(mic+" · space: mic · i: interrupt · r: reconnect · d: disconnect · q: quit") + "\n")
	return b.String()
}
