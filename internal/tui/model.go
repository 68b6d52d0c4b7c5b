package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/xxxsen/docqa/internal/rank"
)

const sourcesPerAnswer = 3

// QAPort is the part of the retrieval service the chat screen talks to.
type QAPort interface {
	Answer(ctx context.Context, question string) (string, error)
	Search(ctx context.Context, question string, k int) ([]rank.Candidate, error)
}

type exchange struct {
	question string
	answer   string
	sources  []string
	err      error
}

type answerMsg exchange

// Model is a single-question-at-a-time chat over the loaded documents. Questions
// are answered in a tea.Cmd so the screen stays responsive while a model call runs.
type Model struct {
	ctx      context.Context
	qa       QAPort
	input    textinput.Model
	viewport viewport.Model
	history  []exchange
	summary  string
	status   string
	pending  bool
	ready    bool
}

func New(ctx context.Context, qa QAPort, summary string) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask a question and press Enter"
	ti.Focus()
	vp := viewport.New(0, 0)
	return Model{ctx: ctx, qa: qa, input: ti, viewport: vp, summary: summary, status: "Ready. Ctrl+C to quit."}
}

func (m Model) Init() tea.Cmd { return textinput.Blink }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, bh := transcriptStyle.GetFrameSize()
		_, ih := inputStyle.GetFrameSize()
		reserved := 2 + 1 + ih + 1 // header, summary, status, input
		m.viewport.Width = maxInt(20, msg.Width)
		m.viewport.Height = maxInt(3, msg.Height-reserved-bh)
		m.refresh()
		return m, nil
	case answerMsg:
		m.pending = false
		m.history = append(m.history, exchange(msg))
		if msg.err != nil {
			m.status = "Error: " + msg.err.Error()
		} else {
			m.status = fmt.Sprintf("Answered %q", msg.question)
		}
		m.refresh()
		return m, nil
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyCtrlD, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyEnter:
			q := strings.TrimSpace(m.input.Value())
			if q == "" || m.pending {
				return m, nil
			}
			m.pending = true
			m.status = "Thinking..."
			m.input.Reset()
			return m, m.ask(q)
		case tea.KeyPgUp, tea.KeyPgDown, tea.KeyUp, tea.KeyDown:
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) ask(question string) tea.Cmd {
	ctx, qa := m.ctx, m.qa
	return func() tea.Msg {
		out := answerMsg{question: question}
		out.answer, out.err = qa.Answer(ctx, question)
		if out.err != nil {
			return out
		}
		if top, err := qa.Search(ctx, question, sourcesPerAnswer); err == nil {
			for _, c := range top {
				out.sources = append(out.sources, fmt.Sprintf("%s#%d (%.2f)", c.Segment.Source, c.Segment.Position, c.Score))
			}
		}
		return out
	}
}

func (m *Model) refresh() {
	m.viewport.SetContent(m.renderTranscript())
	m.viewport.GotoBottom()
}

func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := headerStyle.Render("docqa")
	summary := summaryStyle.Render(m.summary)
	body := transcriptStyle.Render(m.viewport.View())
	input := inputStyle.Render(m.input.View())
	status := statusStyle.Render(m.status)
	return header + "\n" + summary + "\n" + body + "\n" + input + "\n" + status
}

func (m Model) renderTranscript() string {
	if len(m.history) == 0 {
		return "No questions yet."
	}
	parts := make([]string, 0, len(m.history))
	for _, ex := range m.history {
		var sb strings.Builder
		sb.WriteString(questionStyle.Render("Q: " + ex.question))
		sb.WriteString("\n")
		if ex.err != nil {
			sb.WriteString(errorStyle.Render(ex.err.Error()))
		} else {
			sb.WriteString("A: " + ex.answer)
			if len(ex.sources) > 0 {
				sb.WriteString("\n")
				sb.WriteString(summaryStyle.Render("sources: " + strings.Join(ex.sources, ", ")))
			}
		}
		parts = append(parts, sb.String())
	}
	return strings.Join(parts, "\n\n")
}

var (
	headerStyle     = lipgloss.NewStyle().Bold(true)
	summaryStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	statusStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	questionStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	errorStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	transcriptStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	inputStyle      = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
