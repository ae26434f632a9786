package ui

import (
	"fmt"
	"sync"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
)

// Progress wraps a bubbletea progress bar. Updates are safe from
// concurrent batch workers.
type Progress struct {
	total   int64
	current int64
	mu      sync.Mutex
	program *tea.Program
	done    chan struct{}
}

type progressModel struct {
	progress progress.Model
	message  string
	percent  float64
	width    int
}

type progressUpdateMsg struct {
	percent float64
	message string
}

type progressDoneMsg struct{}

func initialProgressModel(message string) progressModel {
	p := progress.New(
		progress.WithDefaultGradient(),
		progress.WithWidth(40),
	)
	return progressModel{
		progress: p,
		message:  message,
		width:    40,
	}
}

func (m *progressModel) Init() tea.Cmd {
	return nil
}

func (m *progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		m.width = msg.Width - 20
		if m.width > 60 {
			m.width = 60
		}
		if m.width < 20 {
			m.width = 20
		}
		m.progress.Width = m.width
	case progressUpdateMsg:
		m.percent = msg.percent
		if msg.message != "" {
			m.message = msg.message
		}
		return m, nil
	case progressDoneMsg:
		return m, tea.Quit
	}
	return m, nil
}

func (m *progressModel) View() string {
	return fmt.Sprintf(
		"%s\n%s",
		m.message,
		m.progress.ViewAs(m.percent),
	)
}

// NewProgress creates a new progress bar
func NewProgress(total int64) *Progress {
	return &Progress{
		total: total,
		done:  make(chan struct{}),
	}
}

// Start starts the progress display
func (p *Progress) Start(message string) {
	model := initialProgressModel(message)
	p.program = tea.NewProgram(&model)

	go func() {
		_, _ = p.program.Run()
		close(p.done)
	}()
}

// Increment advances the bar and optionally swaps the message.
func (p *Progress) Increment(message string) {
	p.mu.Lock()
	p.current++
	percent := float64(p.current) / float64(p.total)
	p.mu.Unlock()
	if percent > 1 {
		percent = 1
	}
	if p.program != nil {
		p.program.Send(progressUpdateMsg{percent: percent, message: message})
	}
}

// Done completes the progress
func (p *Progress) Done() {
	if p.program != nil {
		p.program.Send(progressDoneMsg{})
		<-p.done
	}
}
