package experiment

import (
	"fmt"
	"os"
	"strings"
	"sync/atomic"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"

	"demandexp/internal/config"
)

// teaProgram abstracts bubbletea.Program for testing.
type teaProgram interface {
	Send(tea.Msg)
}

type trialMsg struct{ TrialRow }

type scenarioMsg struct{ ScenarioResult }

const (
	rawOutputLines = 8
	barWidth       = 40
)

// TUIWriter renders experiment progress using a bubbletea TUI.
type TUIWriter struct {
	program    teaProgram
	done       chan struct{}
	sendSignal atomic.Bool
}

// NewTUIWriter starts a bubbletea program and returns a TUIWriter.
// Quitting the TUI interrupts the process so the run is cancelled.
func NewTUIWriter(cfg *config.ExperimentConfig) *TUIWriter {
	w := &TUIWriter{done: make(chan struct{})}
	w.sendSignal.Store(true)
	p := tea.NewProgram(newTUIModel(cfg), tea.WithAltScreen())
	w.program = p
	go func() {
		_, _ = p.Run()
		close(w.done)
		if w.sendSignal.Load() {
			if proc, err := os.FindProcess(os.Getpid()); err == nil {
				_ = proc.Signal(os.Interrupt)
			}
		}
	}()
	return w
}

// WriteTrial implements TrialWriter.
func (w *TUIWriter) WriteTrial(row TrialRow) error {
	w.program.Send(trialMsg{row})
	return nil
}

// WriteScenario shows the scenario averages.
func (w *TUIWriter) WriteScenario(res ScenarioResult) error {
	w.program.Send(scenarioMsg{res})
	return nil
}

// Close stops the TUI and waits for the terminal to be restored.
func (w *TUIWriter) Close() error {
	w.sendSignal.Store(false)
	if w.program != nil {
		w.program.Send(tea.Quit())
	}
	if w.done != nil {
		<-w.done
	}
	return nil
}

type tuiModel struct {
	cfg       *config.ExperimentConfig
	table     table.Model
	vp        viewport.Model
	rows      []table.Row
	results   []ScenarioResult
	last      TrialRow
	haveTrial bool
	wrap      bool
	showRaw   bool
	width     int
	total     int
	completed int
}

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	helpStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	barStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	failedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)

func newTUIModel(cfg *config.ExperimentConfig) tuiModel {
	cols := []table.Column{
		{Title: "Scenario", Width: 10},
		{Title: "Trial", Width: 6},
		{Title: "Demand", Width: 8},
		{Title: "Latency", Width: 10},
		{Title: "Loss", Width: 8},
		{Title: "Status", Width: 10},
	}
	t := table.New(table.WithColumns(cols), table.WithHeight(cfg.Traffic.Trials+1), table.WithFocused(true))
	return tuiModel{
		cfg:     cfg,
		table:   t,
		vp:      viewport.New(0, rawOutputLines),
		showRaw: true,
		total:   len(cfg.Scenarios) * cfg.Traffic.Trials,
	}
}

func (m tuiModel) Init() tea.Cmd { return nil }

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.vp.Width = msg.Width
		m.table.SetWidth(msg.Width)
		m.refreshRaw()
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "w":
			m.wrap = !m.wrap
			m.refreshRaw()
			return m, nil
		case "r":
			m.showRaw = !m.showRaw
			return m, nil
		}
		var cmd tea.Cmd
		m.table, cmd = m.table.Update(msg)
		return m, cmd
	case trialMsg:
		m.last = msg.TrialRow
		m.haveTrial = true
		m.completed++
		m.rows = append(m.rows, trialTableRow(msg.TrialRow))
		m.table.SetRows(m.rows)
		m.table.GotoBottom()
		m.refreshRaw()
	case scenarioMsg:
		m.results = append(m.results, msg.ScenarioResult)
	}
	return m, nil
}

func trialTableRow(r TrialRow) table.Row {
	status := "ok"
	if r.Failed {
		status = "failed:" + r.Reason
	}
	return table.Row{
		r.Scenario,
		fmt.Sprintf("%d/%d", r.Trial, r.Trials),
		fmt.Sprintf("%dM", r.DemandMbps),
		fmt.Sprintf("%.3fms", r.LatencyMs),
		fmt.Sprintf("%.2f%%", r.LossPct),
		status,
	}
}

func (m *tuiModel) refreshRaw() {
	content := "waiting for first trial"
	if m.haveTrial {
		content = strings.TrimRight(m.last.Output, "\n")
		if m.last.Err != nil {
			content += "\n" + failedStyle.Render("error: "+m.last.Err.Error())
		}
	}
	if m.wrap && m.vp.Width > 0 {
		content = wordwrap.String(content, m.vp.Width)
	}
	m.vp.SetContent(content)
	m.vp.GotoBottom()
}

func (m tuiModel) View() string {
	divider := strings.Repeat("─", max(m.width, barWidth))
	sections := []string{
		m.renderHeader(),
		renderBar(m.completed, m.total, barWidth),
		divider,
		m.table.View(),
	}
	if m.showRaw {
		sections = append(sections, divider, "Traffic tool output:", m.vp.View())
	}
	if len(m.results) > 0 {
		sections = append(sections, divider, m.renderAverages())
	}
	sections = append(sections, divider, helpStyle.Render("q quit • w wrap • r raw output • ↑/↓ scroll"))
	return strings.Join(sections, "\n")
}

func (m tuiModel) renderHeader() string {
	t := m.cfg.Topology
	return titleStyle.Render("Demand experiment") + fmt.Sprintf("  %s ↔ %s via %s @ %gMbps, %d trials × %s",
		m.cfg.Traffic.Sender, m.cfg.Traffic.Receiver, t.Switch, t.BandwidthMbps,
		m.cfg.Traffic.Trials, m.cfg.Traffic.Duration.Duration)
}

func (m tuiModel) renderAverages() string {
	var b strings.Builder
	for _, r := range m.results {
		fmt.Fprintf(&b, "%-10s avg latency %.3f ms  avg loss %.2f%%", r.Title(), r.AvgLatency, r.AvgLoss)
		if r.Failed > 0 {
			b.WriteString(failedStyle.Render(fmt.Sprintf("  (%d failed)", r.Failed)))
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// renderBar draws a fixed-width progress bar with a done/total counter.
func renderBar(done, total, width int) string {
	filled := 0
	if total > 0 {
		filled = done * width / total
	}
	if filled > width {
		filled = width
	}
	return barStyle.Render(strings.Repeat("█", filled)) + strings.Repeat("░", width-filled) +
		fmt.Sprintf(" %d/%d", done, total)
}
