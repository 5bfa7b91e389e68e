package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"newslens/internal/service"
)

// Handler is the TUI-facing subset of the session controller.
type Handler interface {
	Handle(ctx context.Context, s *service.Session, in service.Input) service.Output
}

const (
	urlFields   = service.MaxURLs
	focusButton = urlFields
	focusAsk    = urlFields + 1
	focusCount  = urlFields + 2
)

type progressMsg struct {
	line string
	ch   <-chan string
}

type doneMsg struct {
	out   service.Output
	build bool
}

// Model is the Bubble Tea model: URL fields, a Process URLs button, a
// question field and the answer area.
type Model struct {
	handler  Handler
	session  *service.Session
	urls     [urlFields]textinput.Model
	question textinput.Model
	viewport viewport.Model
	focus    int
	ready    bool

	busy       bool
	cancel     context.CancelFunc
	progressCh <-chan string
	status     string
	progress   []string
	last       service.Output
}

// New creates a model with its own session.
func New(handler Handler) Model {
	m := Model{
		handler:  handler,
		session:  service.NewSession(),
		viewport: viewport.New(0, 0),
		status:   "Enter up to 3 news article URLs and press Process URLs.",
	}
	for i := range m.urls {
		ti := textinput.New()
		ti.Prompt = fmt.Sprintf("URL %d: ", i+1)
		ti.Placeholder = "https://"
		ti.CharLimit = 0
		m.urls[i] = ti
	}
	q := textinput.New()
	q.Prompt = "Question: "
	q.Placeholder = "Ask about the articles and press Enter"
	q.CharLimit = 0
	m.question = q
	m.urls[0].Focus()
	return m
}

// Init starts the cursor blink.
func (m Model) Init() tea.Cmd { return textinput.Blink }

// Update handles keys, window size and action results.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, rh := resultBoxStyle.GetFrameSize()
		_, fh := formBoxStyle.GetFrameSize()
		reserved := 1 + (urlFields + 3 + fh) + 2 // header, form, status
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, msg.Height-reserved-rh)
		m.viewport.SetContent(m.content())
		return m, nil

	case progressMsg:
		// Lines from a finished action are drained but not shown.
		if m.busy && msg.ch == m.progressCh {
			m.progress = append(m.progress, msg.line)
			m.status = msg.line
			m.viewport.SetContent(m.content())
		}
		return m, waitProgress(msg.ch)

	case progressClosedMsg:
		return m, nil

	case doneMsg:
		m.busy = false
		if m.cancel != nil {
			m.cancel()
			m.cancel = nil
		}
		m.last = msg.out
		if msg.build {
			m.progress = msg.out.Progress
		}
		switch {
		case len(msg.out.Warnings) > 0:
			m.status = msg.out.Warnings[len(msg.out.Warnings)-1]
		case msg.out.Answer != "":
			m.status = "Answered."
		case len(msg.out.Progress) > 0:
			m.status = "Ready for questions."
		}
		m.viewport.SetContent(m.content())
		return m, nil

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC:
			if m.cancel != nil {
				m.cancel()
			}
			return m, tea.Quit
		case tea.KeyTab:
			return m.setFocus((m.focus + 1) % focusCount)
		case tea.KeyShiftTab:
			return m.setFocus((m.focus - 1 + focusCount) % focusCount)
		case tea.KeyEnter:
			if m.busy {
				m.status = "Still working..."
				return m, nil
			}
			if m.focus == focusAsk {
				if strings.TrimSpace(m.question.Value()) == "" {
					m.status = "Please enter a question."
					return m, nil
				}
				return m.start(service.Input{Question: m.question.Value()})
			}
			urls := make([]string, urlFields)
			for i := range m.urls {
				urls[i] = m.urls[i].Value()
			}
			m.progress = nil
			return m.start(service.Input{URLs: urls, Build: true})
		}
	}

	var cmd tea.Cmd
	switch {
	case m.focus < urlFields:
		m.urls[m.focus], cmd = m.urls[m.focus].Update(msg)
	case m.focus == focusAsk:
		m.question, cmd = m.question.Update(msg)
	}
	return m, cmd
}

func (m Model) setFocus(f int) (Model, tea.Cmd) {
	for i := range m.urls {
		m.urls[i].Blur()
	}
	m.question.Blur()
	m.focus = f
	switch {
	case f < urlFields:
		return m, m.urls[f].Focus()
	case f == focusAsk:
		return m, m.question.Focus()
	}
	return m, nil
}

// start runs one action in the background and streams its progress.
func (m Model) start(in service.Input) (Model, tea.Cmd) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan string, 16)
	in.Progress = func(s string) { ch <- s }
	m.busy = true
	m.cancel = cancel
	m.progressCh = ch
	if in.Build {
		m.status = "Processing URLs..."
	} else {
		m.status = "Thinking..."
	}

	handler, session := m.handler, m.session
	run := func() tea.Msg {
		defer close(ch)
		return doneMsg{out: handler.Handle(ctx, session, in), build: in.Build}
	}
	return m, tea.Batch(run, waitProgress(ch))
}

type progressClosedMsg struct{}

func waitProgress(ch <-chan string) tea.Cmd {
	return func() tea.Msg {
		s, ok := <-ch
		if !ok {
			return progressClosedMsg{}
		}
		return progressMsg{line: s, ch: ch}
	}
}

// View renders the form, the answer area and the status line.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := titleStyle.Render("NewsLens: News Research Tool")

	var form strings.Builder
	for i := range m.urls {
		form.WriteString(m.urls[i].View())
		form.WriteString("\n")
	}
	button := buttonStyle
	if m.focus == focusButton {
		button = buttonFocusedStyle
	}
	form.WriteString(button.Render("Process URLs"))
	form.WriteString("\n")
	form.WriteString(m.question.View())

	status := statusStyle.Render(m.status)
	if m.busy {
		status = busyStyle.Render("● ") + status
	}
	return header + "\n" + formBoxStyle.Render(form.String()) + "\n" + resultBoxStyle.Render(m.viewport.View()) + "\n" + status
}

func (m Model) content() string {
	var b strings.Builder
	for _, p := range m.progress {
		b.WriteString(progressStyle.Render(p))
		b.WriteString("\n")
	}
	for _, w := range m.last.Warnings {
		b.WriteString(warningStyle.Render(w))
		b.WriteString("\n")
	}
	if answer := Render(m.last); answer != "" {
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString(answer)
	}
	if b.Len() == 0 {
		return "No answer yet."
	}
	return b.String()
}

// Render formats an answer and its sources. The sources section is left out
// when there are none.
func Render(out service.Output) string {
	if out.Answer == "" {
		return ""
	}
	var b strings.Builder
	b.WriteString(headingStyle.Render("Answer"))
	b.WriteString("\n")
	b.WriteString(out.Answer)
	b.WriteString("\n")
	if len(out.Sources) > 0 {
		b.WriteString("\n")
		b.WriteString(headingStyle.Render("Sources:"))
		b.WriteString("\n")
		for _, s := range out.Sources {
			b.WriteString(s)
			b.WriteString("\n")
		}
	}
	return b.String()
}

var (
	titleStyle         = lipgloss.NewStyle().Bold(true)
	headingStyle       = lipgloss.NewStyle().Bold(true).Underline(true)
	formBoxStyle       = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	resultBoxStyle     = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	buttonStyle        = lipgloss.NewStyle().Padding(0, 2).Foreground(lipgloss.Color("7")).Background(lipgloss.Color("8"))
	buttonFocusedStyle = buttonStyle.Copy().Foreground(lipgloss.Color("0")).Background(lipgloss.Color("10")).Bold(true)
	statusStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	busyStyle          = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	progressStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	warningStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)
