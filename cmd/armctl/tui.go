package main

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/NimbleMarkets/ntcharts/canvas/runes"
	"github.com/NimbleMarkets/ntcharts/linechart/streamlinechart"

	"github.com/gwillem/armctl/pkg/console"
	"github.com/gwillem/armctl/pkg/control"
	"github.com/gwillem/armctl/pkg/robot"
)

const (
	headerHeight = 2 // title + blank line
	legendHeight = 3 // legend rows + blank
	inputHeight  = 1
	footerHeight = 7 // log box height
	maxLogs      = 5 // number of log messages to show
	borderSize   = 2 // chart border
)

// Colors cycle over the controlled joints in control order.
var jointColors = []string{"196", "208", "226", "46", "51", "201", "203", "215", "229", "120", "87", "213", "252"}

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	chartStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("240"))
	statusStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	enabledStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	errStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)

// Executor runs one operator line.
type Executor interface {
	Handle(line string) console.Reply
}

type controlModel struct {
	ctx       context.Context
	exec      Executor
	frames    <-chan robot.Frame
	status    func() control.Snapshot
	joints    []robot.Joint
	label     string
	hz        int
	chart     *streamlinechart.Model
	input     textinput.Model
	width     int      // terminal width
	height    int      // terminal height
	logs      []string // last N replies
	lastFrame *robot.Frame
	quitting  bool
}

type frameMsg robot.Frame

// waitForFrame yields the next published frame, or nil once ctx ends.
func waitForFrame(ctx context.Context, frames <-chan robot.Frame) tea.Cmd {
	return func() tea.Msg {
		select {
		case f := <-frames:
			return frameMsg(f)
		case <-ctx.Done():
			return nil
		}
	}
}

func newControlModel(ctx context.Context, exec Executor, frames <-chan robot.Frame, status func() control.Snapshot, reg *robot.Registry, label string, hz int) controlModel {
	chart := streamlinechart.New(80, 20,
		streamlinechart.WithYRange(-math.Pi, math.Pi),
	)

	joints := reg.Controlled()
	for i, j := range joints {
		style := lipgloss.NewStyle().Foreground(lipgloss.Color(jointColors[i%len(jointColors)]))
		chart.SetDataSetStyles(j.Name, runes.ThinLineStyle, style)
	}

	input := textinput.New()
	input.Prompt = "> "
	input.Placeholder = "start | stop | status | list | pose <name> | <joint> <pos> [vel kp kd tau]"
	input.CharLimit = 256
	input.Focus()

	return controlModel{
		ctx:    ctx,
		exec:   exec,
		frames: frames,
		status: status,
		joints: joints,
		label:  label,
		hz:     hz,
		chart:  &chart,
		input:  input,
	}
}

func (m *controlModel) addLog(msg string) {
	m.logs = append(m.logs, msg)
	if len(m.logs) > maxLogs {
		m.logs = m.logs[len(m.logs)-maxLogs:]
	}
}

// chartSize calculates the size of the chart based on terminal dimensions
func (m *controlModel) chartSize() (width, height int) {
	if m.width == 0 || m.height == 0 {
		return 80, 20 // default size before we know terminal size
	}
	width = max(m.width-borderSize-2, 40)
	height = max(m.height-headerHeight-legendHeight-inputHeight-footerHeight-borderSize, 10)
	return width, height
}

// changed reports whether any controlled target differs from the last
// charted frame. The chart freezes while targets hold still.
func (m *controlModel) changed(f robot.Frame) bool {
	if m.lastFrame == nil {
		return true
	}
	for _, j := range m.joints {
		if f.Motors[j.Index].Q != m.lastFrame.Motors[j.Index].Q {
			return true
		}
	}
	return f.Weight() != m.lastFrame.Weight()
}

func (m controlModel) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, waitForFrame(m.ctx, m.frames))
}

func (m controlModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.chart.Resize(m.chartSize())
		m.input.Width = max(m.width-4, 20)
		return m, nil

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC:
			m.exec.Handle("quit")
			m.quitting = true
			return m, tea.Quit
		case tea.KeyEnter:
			line := m.input.Value()
			m.input.Reset()
			if strings.TrimSpace(line) == "" {
				return m, nil
			}
			reply := m.exec.Handle(line)
			if reply.Err != nil {
				m.addLog(errStyle.Render(reply.Text))
			} else {
				m.addLog(reply.Text)
			}
			if reply.Quit {
				m.quitting = true
				return m, tea.Quit
			}
			return m, nil
		}

	case frameMsg:
		f := robot.Frame(msg)
		if m.changed(f) {
			for _, j := range m.joints {
				m.chart.PushDataSet(j.Name, f.Motors[j.Index].Q)
			}
			m.chart.DrawAll()
			m.lastFrame = &f
		}
		return m, waitForFrame(m.ctx, m.frames)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m controlModel) View() string {
	if m.quitting {
		return "Motor control stopped.\n"
	}

	var sb strings.Builder

	// Header
	sb.WriteString(titleStyle.Render("armctl"))
	sb.WriteString(fmt.Sprintf(" - %s - %d Hz ", m.label, m.hz))
	snap := m.status()
	if snap.Requested {
		sb.WriteString(enabledStyle.Render("ENABLED"))
	} else {
		sb.WriteString(statusStyle.Render("DISABLED"))
	}
	sb.WriteString(statusStyle.Render(fmt.Sprintf("  weight %.0f  seq %d", snap.Weight, snap.Seq)))
	sb.WriteString("\n\n")

	// Chart
	sb.WriteString(chartStyle.Render(m.chart.View()))
	sb.WriteString("\n")

	// Legend
	sb.WriteString(m.renderLegend())
	sb.WriteString("\n\n")

	// Input
	sb.WriteString(m.input.View())
	sb.WriteString("\n")

	// Log box
	logStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Width(max(m.width-4, 20))

	var logLines string
	if len(m.logs) == 0 {
		logLines = statusStyle.Render("Type 'help' for commands, ctrl+c to quit")
	} else {
		logLines = strings.Join(m.logs, "\n")
	}
	sb.WriteString(logStyle.Render(logLines))
	sb.WriteString("\n")

	return sb.String()
}

func (m controlModel) renderLegend() string {
	var items []string
	for i, j := range m.joints {
		colorStyle := lipgloss.NewStyle().Foreground(lipgloss.Color(jointColors[i%len(jointColors)])).Bold(true)
		items = append(items, colorStyle.Render("━━")+" "+j.Name)
	}
	// Two rows keep the legend inside an 80 column terminal.
	half := (len(items) + 1) / 2
	return strings.Join(items[:half], "  ") + "\n" + strings.Join(items[half:], "  ")
}

// runTUI runs the full-screen console until the operator quits or ctx ends.
func runTUI(ctx context.Context, exec Executor, loop *control.Loop, reg *robot.Registry, kind, iface string) error {
	hz := int(1 / loop.Interval().Seconds())
	model := newControlModel(ctx, exec, loop.Frames(), loop.Snapshot, reg, fmt.Sprintf("%s %s", kind, iface), hz)

	p := tea.NewProgram(model, tea.WithAltScreen())
	go func() {
		<-ctx.Done()
		p.Quit()
	}()

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("run console: %w", err)
	}
	return nil
}
