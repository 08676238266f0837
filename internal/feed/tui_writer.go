package feed

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"
)

// teaProgram abstracts bubbletea.Program for testing.
type teaProgram interface {
	Send(tea.Msg)
}

// pointMsg carries a sent point for the log viewport.
type pointMsg struct{ Point }

// statusMsg carries a feeder status snapshot.
type statusMsg struct{ Status }

const maxLogLines = 500

var (
	tuiHeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	tuiDimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	tuiStateStyles = map[string]lipgloss.Style{
		StatePlaying: lipgloss.NewStyle().Foreground(lipgloss.Color("2")),
		StatePausing: lipgloss.NewStyle().Foreground(lipgloss.Color("3")),
		StateFailed:  lipgloss.NewStyle().Foreground(lipgloss.Color("1")),
		StateDone:    lipgloss.NewStyle().Foreground(lipgloss.Color("4")),
	}
)

// TUIWriter renders playback progress using a bubbletea TUI.
type TUIWriter struct {
	program    teaProgram
	done       chan struct{}
	sendSignal atomic.Bool
}

// NewTUIWriter starts a bubbletea program and returns a TUIWriter. Quitting
// the TUI interrupts the process so playback stops as well.
func NewTUIWriter(runID string, s Settings) *TUIWriter {
	w := &TUIWriter{done: make(chan struct{})}
	w.sendSignal.Store(true)
	p := tea.NewProgram(newTUIModel(runID, s), tea.WithAltScreen())
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

// Write implements PointWriter. The feature is copied since the feeder
// restamps it on the next pass while the program renders.
func (w *TUIWriter) Write(_ context.Context, p Point) error {
	p.Feature = p.Feature.Clone()
	w.program.Send(pointMsg{p})
	return nil
}

// SetStatus pushes a status snapshot to the header.
func (w *TUIWriter) SetStatus(s Status) {
	w.program.Send(statusMsg{s})
}

// Close shuts down the TUI program and waits for cleanup.
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
	table      table.Model
	vp         viewport.Model
	logs       []string
	status     Status
	wrap       bool
	autoscroll bool
	width      int
	height     int
}

func newTUIModel(runID string, s Settings) tuiModel {
	cols := []table.Column{
		{Title: "Setting", Width: 18},
		{Title: "Value", Width: 40},
	}
	rows := []table.Row{
		{"Run", runID},
		{"Routes", strconv.Itoa(len(s.RouteFiles))},
		{"Per-point delay", s.PerPointDelay.String()},
		{"Inter-route delay", s.InterRouteDelay.String()},
		{"Iterations", strconv.Itoa(s.Iterations)},
	}
	t := table.New(table.WithColumns(cols), table.WithRows(rows), table.WithHeight(len(rows)+1))
	return tuiModel{
		table:      t,
		vp:         viewport.New(0, 0),
		status:     Status{RunID: runID, State: StateIdle, Iterations: s.Iterations},
		autoscroll: true,
	}
}

func (m tuiModel) Init() tea.Cmd { return nil }

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.table.SetWidth(msg.Width)
		m.vp.Width = msg.Width
		m.updateViewportHeight()
		m.refreshViewport()
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "w":
			m.wrap = !m.wrap
			m.refreshViewport()
		case "s":
			m.autoscroll = !m.autoscroll
			if m.autoscroll {
				m.vp.GotoBottom()
			}
		default:
			var cmd tea.Cmd
			m.vp, cmd = m.vp.Update(msg)
			return m, cmd
		}
	case pointMsg:
		m.status.RunID = msg.RunID
		m.status.Pass = msg.Pass
		m.status.RouteIndex = msg.RouteIndex
		m.status.Route = msg.Route
		m.status.Point = msg.Index
		m.status.PointsSent++
		if ts, ok := msg.Feature.Timestamp(); ok {
			m.status.LastTS = ts
		}
		if m.status.State == StateIdle || m.status.State == StatePausing {
			m.status.State = StatePlaying
		}
		m.logs = append(m.logs, formatPointLine(msg.Point))
		if len(m.logs) > maxLogLines {
			m.logs = m.logs[len(m.logs)-maxLogLines:]
		}
		m.refreshViewport()
	case statusMsg:
		m.status = msg.Status
	}
	return m, nil
}

func formatPointLine(p Point) string {
	coords := "-"
	if lon, lat, ok := p.Feature.Point(); ok {
		coords = fmt.Sprintf("%.6f,%.6f", lon, lat)
	}
	return fmt.Sprintf("%s pass=%d %s #%d %s",
		tuiDimStyle.Render(p.SentAt.Format(time.TimeOnly)), p.Pass, p.Route, p.Index, coords)
}

func (m *tuiModel) updateViewportHeight() {
	h := m.height - lipgloss.Height(m.table.View()) - lipgloss.Height(m.renderStatus()) - 3
	if h < 1 {
		h = 1
	}
	m.vp.Height = h
}

func (m *tuiModel) refreshViewport() {
	content := strings.Join(m.logs, "\n")
	if m.wrap && m.vp.Width > 0 {
		content = wordwrap.String(content, m.vp.Width)
	}
	m.vp.SetContent(content)
	if m.autoscroll {
		m.vp.GotoBottom()
	}
}

func (m tuiModel) renderStatus() string {
	style, ok := tuiStateStyles[m.status.State]
	if !ok {
		style = tuiDimStyle
	}
	return fmt.Sprintf("%s %s  pass %d/%d  route %d %s  point %d  sent %d",
		tuiHeaderStyle.Render("locationfeed"),
		style.Render(m.status.State),
		m.status.Pass, m.status.Iterations,
		m.status.RouteIndex, m.status.Route,
		m.status.Point, m.status.PointsSent)
}

func (m tuiModel) View() string {
	divider := strings.Repeat("─", m.vp.Width)
	help := tuiDimStyle.Render("q quit · w wrap · s autoscroll")
	return strings.Join([]string{
		m.table.View(),
		m.renderStatus(),
		divider,
		m.vp.View(),
		help,
	}, "\n")
}
