package ui

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// TUIRenderer shows a live progress view using bubbletea.
type TUIRenderer struct {
	mu      sync.Mutex
	cfg     Config
	program *tea.Program
	model   *indexModel
	started bool
	done    chan struct{}
}

// NewTUIRenderer creates the TUI renderer. It fails when output is not
// a terminal so callers can fall back to plain text.
func NewTUIRenderer(cfg Config) (*TUIRenderer, error) {
	if !IsTTY(cfg.Output) {
		return nil, fmt.Errorf("output is not a TTY")
	}
	model := newIndexModel(cfg.RootDir)
	if cfg.NoColor || DetectNoColor() {
		model.styles = NoColorStyles()
	}
	return &TUIRenderer{cfg: cfg, model: model, done: make(chan struct{})}, nil
}

func (r *TUIRenderer) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		return nil
	}

	var opts []tea.ProgramOption
	if f, ok := r.cfg.Output.(*os.File); ok {
		opts = append(opts, tea.WithOutput(f))
	}
	r.program = tea.NewProgram(r.model, opts...)
	r.started = true

	go func() {
		defer close(r.done)
		_, _ = r.program.Run()
	}()
	return nil
}

func (r *TUIRenderer) UpdateProgress(event ProgressEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.program != nil {
		r.program.Send(progressMsg(event))
	}
}

func (r *TUIRenderer) AddError(event ErrorEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.program != nil {
		r.program.Send(errorCountMsg(event))
	}
}

func (r *TUIRenderer) Complete(stats CompletionStats) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.program != nil {
		r.program.Send(completeMsg(stats))
	}
}

func (r *TUIRenderer) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.program != nil {
		r.program.Quit()
		select {
		case <-r.done:
		case <-time.After(2 * time.Second):
			// Do not hang shutdown on an unresponsive terminal.
		}
	}
	return nil
}

type progressMsg ProgressEvent
type errorCountMsg ErrorEvent
type completeMsg CompletionStats

type indexModel struct {
	rootDir  string
	styles   Styles
	spinner  spinner.Model
	bar      progress.Model
	width    int
	stage    Stage
	current  int
	total    int
	file     string
	warnings int
	complete bool
	quitting bool
	stats    CompletionStats
}

func newIndexModel(rootDir string) *indexModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color(ColorCyan))

	bar := progress.New(
		progress.WithSolidFill(ColorCyan),
		progress.WithWidth(50),
		progress.WithoutPercentage(),
	)
	return &indexModel{
		rootDir: rootDir,
		styles:  DefaultStyles(),
		spinner: s,
		bar:     bar,
		width:   80,
	}
}

func (m *indexModel) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m *indexModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			m.quitting = true
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.bar.Width = msg.Width - 20
		if m.bar.Width < 20 {
			m.bar.Width = 20
		}

	case progressMsg:
		m.stage = msg.Stage
		m.current = msg.Current
		m.total = msg.Total
		m.file = msg.CurrentFile
		return m, nil

	case errorCountMsg:
		m.warnings++
		return m, nil

	case completeMsg:
		m.complete = true
		m.stats = CompletionStats(msg)
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *indexModel) View() string {
	if m.quitting {
		return "Cancelled.\n"
	}
	if m.complete {
		return m.renderComplete()
	}

	var lines []string
	title := "Indexing"
	if m.rootDir != "" {
		title = "Indexing " + m.rootDir
	}
	lines = append(lines, m.styles.Header.Render(title))

	if m.total > 0 {
		percent := float64(m.current) / float64(m.total)
		lines = append(lines, fmt.Sprintf("%s %s",
			m.bar.ViewAs(percent),
			m.styles.Active.Render(fmt.Sprintf("%d/%d", m.current, m.total))))
	} else {
		lines = append(lines, fmt.Sprintf("%s %s...", m.spinner.View(), m.stage))
	}

	if m.file != "" {
		lines = append(lines, m.styles.Dim.Render(truncatePath(m.file, m.width-4)))
	}
	if m.warnings > 0 {
		lines = append(lines, m.styles.Warning.Render(fmt.Sprintf("%d warnings", m.warnings)))
	}
	lines = append(lines, m.styles.Dim.Render("q to quit"))
	return strings.Join(lines, "\n") + "\n"
}

func (m *indexModel) renderComplete() string {
	var lines []string
	lines = append(lines, m.styles.Success.Render("Indexing complete"))
	lines = append(lines, fmt.Sprintf("%s %s",
		m.styles.Label.Render("Files:"),
		m.styles.Active.Render(fmt.Sprintf("%d", m.stats.Files))))
	lines = append(lines, fmt.Sprintf("%s %s",
		m.styles.Label.Render("Chunks:"),
		m.styles.Active.Render(fmt.Sprintf("%d", m.stats.Chunks))))
	lines = append(lines, fmt.Sprintf("%s %s",
		m.styles.Label.Render("Duration:"),
		m.styles.Active.Render(m.stats.Duration.Round(100*time.Millisecond).String())))
	if m.stats.Skipped > 0 {
		lines = append(lines, m.styles.Warning.Render(fmt.Sprintf("%d files skipped", m.stats.Skipped)))
	}

	panel := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color(ColorCyan)).
		Padding(0, 2)
	return panel.Render(strings.Join(lines, "\n")) + "\n"
}

// truncatePath shortens a path from the left, keeping the filename.
func truncatePath(path string, maxLen int) string {
	if maxLen < 4 || len(path) <= maxLen {
		return path
	}
	i := strings.LastIndexByte(path, '/')
	name := path[i+1:]
	if len(name)+4 > maxLen {
		return "..." + name[len(name)-maxLen+3:]
	}
	return "..." + path[len(path)-maxLen+3:]
}

var _ Renderer = (*TUIRenderer)(nil)
