package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"

	"ragchat/internal/answer"
	"ragchat/internal/domain"
	"ragchat/internal/service"
)

// AnswerPort is the TUI-facing subset of the orchestrator.
type AnswerPort interface {
	Answer(ctx context.Context, req service.Request) (domain.AnswerResult, error)
	SessionInfo(ctx context.Context, sessionID string) (domain.SessionInfo, error)
	ClearHistory(ctx context.Context, sessionID string) (bool, error)
}

// Options carry per-session settings chosen on the command line.
type Options struct {
	SessionID      string
	Role           string
	IncludeSources bool
	TopK           int
}

type transcriptEntry struct {
	role      domain.TurnRole
	text      string
	citations []string
}

// answerMsg delivers one completed (or failed) answer back to Update.
type answerMsg struct {
	result domain.AnswerResult
	err    error
}

type clearedMsg struct{ existed bool }

// Model is the Bubble Tea model for the chat application.
type Model struct {
	service    AnswerPort
	opts       Options
	input      textinput.Model
	viewport   viewport.Model
	transcript []transcriptEntry
	status     string
	waiting    bool
	ready      bool
}

// New creates a new chat model instance.
func New(svc AnswerPort, opts Options) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask a question and press Enter"
	ti.Focus()
	ti.CharLimit = 0
	vp := viewport.New(0, 0)
	return Model{
		service:  svc,
		opts:     opts,
		input:    ti,
		viewport: vp,
		status:   fmt.Sprintf("Session %s (%s). Ctrl+L clears history.", opts.SessionID, roleLabel(opts.Role)),
	}
}

// Init initializes the model (text input cursor blink).
func (m Model) Init() tea.Cmd { return textinput.Blink }

// Update handles key and window events and updates the view state.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, th := transcriptBoxStyle.GetFrameSize()
		_, qh := queryBoxStyle.GetFrameSize()
		reserved := 1 + 1 + qh + 1 // header, status, query box, spacer
		vh := msg.Height - reserved
		if vh < 3 {
			vh = 3
		}
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, vh-th)
		m.viewport.SetContent(m.renderTranscript())
		m.viewport.GotoBottom()
		return m, nil

	case answerMsg:
		m.waiting = false
		if msg.err != nil {
			m.status = "Error: " + msg.err.Error()
		} else {
			body, _ := answer.SplitCitations(msg.result.Answer)
			m.transcript = append(m.transcript, transcriptEntry{
				role:      domain.TurnAssistant,
				text:      body,
				citations: msg.result.Citations,
			})
			m.status = fmt.Sprintf("Session %s  intent=%s  candidates=%d",
				msg.result.SessionID, msg.result.Intent, msg.result.Candidates)
		}
		m.viewport.SetContent(m.renderTranscript())
		m.viewport.GotoBottom()
		return m, nil

	case clearedMsg:
		m.transcript = nil
		if msg.existed {
			m.status = "History cleared."
		} else {
			m.status = "No stored history for this session."
		}
		m.viewport.SetContent(m.renderTranscript())
		return m, nil

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			return m, tea.Quit
		}
		switch msg.String() {
		case "enter":
			q := strings.TrimSpace(m.input.Value())
			if q != "" && !m.waiting {
				m.transcript = append(m.transcript, transcriptEntry{role: domain.TurnHuman, text: q})
				m.input.SetValue("")
				m.waiting = true
				m.status = "Thinking..."
				m.viewport.SetContent(m.renderTranscript())
				m.viewport.GotoBottom()
				return m, m.askCmd(q)
			}
		case "ctrl+l":
			if !m.waiting {
				return m, m.clearCmd()
			}
		case "up":
			m.viewport.LineUp(1)
			return m, nil
		case "down":
			m.viewport.LineDown(1)
			return m, nil
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) askCmd(question string) tea.Cmd {
	return func() tea.Msg {
		res, err := m.service.Answer(context.Background(), service.Request{
			Question:       question,
			SessionID:      m.opts.SessionID,
			Role:           m.opts.Role,
			IncludeSources: m.opts.IncludeSources,
			TopK:           m.opts.TopK,
		})
		return answerMsg{result: res, err: err}
	}
}

func (m Model) clearCmd() tea.Cmd {
	return func() tea.Msg {
		existed, err := m.service.ClearHistory(context.Background(), m.opts.SessionID)
		if err != nil {
			return answerMsg{err: err}
		}
		return clearedMsg{existed: existed}
	}
}

// View renders the chat layout.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := lipgloss.NewStyle().Bold(true).Render("RAG Chat")
	transcript := transcriptBoxStyle.Render(m.viewport.View())
	input := queryBoxStyle.Render(m.input.View())
	status := statusStyle.Render(m.status)
	return header + "\n" + transcript + "\n" + input + "\n" + status
}

func (m Model) renderTranscript() string {
	if len(m.transcript) == 0 {
		return "No messages yet."
	}
	width := max(20, m.viewport.Width-4)
	var b strings.Builder
	for i, e := range m.transcript {
		if i > 0 {
			b.WriteString("\n\n")
		}
		if e.role == domain.TurnHuman {
			b.WriteString(humanStyle.Render("You: "))
		} else {
			b.WriteString(assistantStyle.Render("Assistant: "))
		}
		b.WriteString(wordwrap.String(e.text, width))
		for _, link := range e.citations {
			b.WriteString("\n  ")
			b.WriteString(citationStyle.Render("- " + link))
		}
	}
	return b.String()
}

func roleLabel(role string) string {
	if role == "" {
		return "anonymous"
	}
	return role
}

var (
	transcriptBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	queryBoxStyle      = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	humanStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	assistantStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	citationStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	statusStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
)

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
