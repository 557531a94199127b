package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/sokinpui/patches/model"
)

// --- Styles ---
var (
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63")) // Mauve
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("78"))            // Green
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("197"))           // Red
	pathStyle    = lipgloss.NewStyle()
	faintStyle   = lipgloss.NewStyle().Faint(true)
)

// Runner applies the patches, reporting progress through the callback.
type Runner func(progress func(current, total int)) ([]model.Outcome, error)

// --- Messages ---
type progressMsg struct{ current, total int }

type doneMsg struct {
	outcomes []model.Outcome
	err      error
}

// --- Model ---
type Model struct {
	run      Runner
	updates  chan tea.Msg
	spinner  spinner.Model
	state    state
	current  int
	total    int
	outcomes []model.Outcome
	err      error
}

type state int

const (
	stateProcessing state = iota
	stateSummary
	stateError
)

func New(run Runner) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))
	return Model{
		run:     run,
		updates: make(chan tea.Msg),
		spinner: s,
		state:   stateProcessing,
	}
}

// Result returns what the run applied and the error that stopped it.
func (m Model) Result() ([]model.Outcome, error) {
	return m.outcomes, m.err
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.start, m.wait)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		// A run cannot be cancelled halfway, so keys only work once it is over.
		if m.state != stateProcessing {
			switch msg.String() {
			case "q", "ctrl+c":
				return m, tea.Quit
			}
		}

	case progressMsg:
		m.current, m.total = msg.current, msg.total
		return m, m.wait

	case doneMsg:
		m.outcomes, m.err = msg.outcomes, msg.err
		m.state = stateSummary
		if msg.err != nil {
			m.state = stateError
		}
		return m, tea.Quit

	default:
		var cmd tea.Cmd
		if m.state == stateProcessing {
			m.spinner, cmd = m.spinner.Update(msg)
		}
		return m, cmd
	}
	return m, nil
}

func (m Model) View() string {
	switch m.state {
	case stateProcessing:
		if m.total == 0 {
			return fmt.Sprintf("%s Applying patches...", m.spinner.View())
		}
		return fmt.Sprintf("%s Applying patch %d/%d...", m.spinner.View(), m.current, m.total)
	case stateError:
		return m.renderSummary() + errorStyle.Render("Error: ", m.err.Error()) + "\n"
	case stateSummary:
		return m.renderSummary()
	default:
		return ""
	}
}

func (m *Model) renderSummary() string {
	var b strings.Builder
	summary := model.Summarize(m.outcomes)

	groups := []struct {
		label string
		files []string
	}{
		{"Created:", summary.Created},
		{"Updated:", summary.Updated},
		{"Deleted:", summary.Deleted},
		{"Renamed:", summary.Renamed},
	}

	hasContent := false
	for _, g := range groups {
		if len(g.files) == 0 {
			continue
		}
		if !hasContent {
			b.WriteString(headerStyle.Render(fmt.Sprintf("Applied %d change(s)", len(m.outcomes))))
			b.WriteString("\n\n")
		}
		hasContent = true
		b.WriteString(successStyle.Render(g.label))
		b.WriteString("\n")
		for _, f := range g.files {
			b.WriteString(fmt.Sprintf("  %s\n", pathStyle.Render(f)))
		}
	}

	if !hasContent && m.err == nil {
		b.WriteString(faintStyle.Render("Nothing to do."))
		b.WriteString("\n")
	}

	return b.String()
}

// start runs the patches in the background and forwards progress and the
// final result over the updates channel.
func (m Model) start() tea.Msg {
	go func() {
		outcomes, err := m.run(func(current, total int) {
			m.updates <- progressMsg{current: current, total: total}
		})
		m.updates <- doneMsg{outcomes: outcomes, err: err}
	}()
	return nil
}

func (m Model) wait() tea.Msg {
	return <-m.updates
}
