// Package tui is the terminal chat front end.
package tui

import (
	"context"
	"strings"

	"github.com/akolanti/docqa/internal/chat"
	"github.com/akolanti/docqa/internal/domain/ragErrors"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Asker is the chat.Service method the terminal needs.
type Asker interface {
	Ask(ctx context.Context, sessionId string, text string) (chat.Reply, error)
}

type answerMsg struct {
	reply chat.Reply
	err   error
}

type Model struct {
	ctx       context.Context
	asker     Asker
	title     string
	sessionId string

	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model
	history  []string
	thinking bool
	ready    bool
	width    int
}

func New(ctx context.Context, asker Asker, title string) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask about your notes and press Enter"
	ti.Focus()
	ti.CharLimit = 0

	return Model{
		ctx:      ctx,
		asker:    asker,
		title:    title,
		input:    ti,
		viewport: viewport.New(0, 0),
		spinner:  spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(statusStyle)),
	}
}

func (m Model) Init() tea.Cmd { return textinput.Blink }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		m.width = msg.Width
		_, frame := historyBoxStyle.GetFrameSize()
		m.viewport.Width = max(20, msg.Width-2)
		m.viewport.Height = max(3, msg.Height-frame-4) // title, input, status, spacer
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyCtrlD, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyEnter:
			question := strings.TrimSpace(m.input.Value())
			if question == "" || m.thinking {
				return m, nil
			}
			m.input.Reset()
			m.thinking = true
			m.history = append(m.history, userStyle.Render("You: ")+question)
			m.refresh()
			return m, tea.Batch(m.spinner.Tick, m.ask(question))
		case tea.KeyPgUp, tea.KeyPgDown:
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}

	case answerMsg:
		m.thinking = false
		// a failed first question has still started a session
		if msg.reply.SessionId != "" {
			m.sessionId = msg.reply.SessionId
		}
		if msg.err != nil {
			m.history = append(m.history, errorStyle.Render(describe(msg.err)))
		} else {
			m.history = append(m.history, botStyle.Render("Notes: ")+msg.reply.Answer)
		}
		m.refresh()
		return m, nil

	case spinner.TickMsg:
		if !m.thinking {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	status := statusStyle.Render("Enter to ask, PgUp/PgDn to scroll, Esc to quit")
	if m.thinking {
		status = m.spinner.View() + statusStyle.Render(" thinking...")
	}
	return titleStyle.Render(m.title) + "\n" +
		historyBoxStyle.Render(m.viewport.View()) + "\n" +
		m.input.View() + "\n" +
		status
}

func (m Model) ask(question string) tea.Cmd {
	sessionId := m.sessionId
	return func() tea.Msg {
		reply, err := m.asker.Ask(m.ctx, sessionId, question)
		return answerMsg{reply: reply, err: err}
	}
}

func (m *Model) refresh() {
	wrap := lipgloss.NewStyle().Width(max(20, m.viewport.Width-2))
	lines := make([]string, len(m.history))
	for i, h := range m.history {
		lines[i] = wrap.Render(h)
	}
	m.viewport.SetContent(strings.Join(lines, "\n\n"))
	m.viewport.GotoBottom()
}

func describe(err error) string {
	switch ragErrors.KindOf(err) {
	case ragErrors.KindEmbedding, ragErrors.KindGeneration:
		return "The model provider failed, try again: " + err.Error()
	case "":
		return "Error: " + err.Error()
	default:
		return string(ragErrors.KindOf(err)) + " error: " + err.Error()
	}
}

var (
	titleStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	historyBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	userStyle       = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	botStyle        = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("14"))
	errorStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	statusStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)
