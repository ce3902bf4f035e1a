package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/hipsterbrown/feetech-servo/feetech"
	"go.bug.st/serial"

	"github.com/gwillem/armctl/pkg/config"
	"github.com/gwillem/armctl/pkg/robot"
)

// Servo IDs probed on each port.
const (
	scanMinID = 1
	scanMaxID = 20
)

var (
	headerStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	subHeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("14"))
	successStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	dimStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

type SetupCommand struct {
	Port string `long:"port" description:"Serial port (default: scan all ports)"`
}

func (c *SetupCommand) Execute(args []string) error {
	cfg, err := config.Load(opts.Config)
	if err != nil {
		return err
	}
	reg := robot.DefaultRegistry()

	fmt.Println(headerStyle.Render("armctl Setup"))
	fmt.Println(dimStyle.Render("━━━━━━━━━━━━"))
	fmt.Println()

	// Step 1: find the bus
	arm, err := c.selectBus()
	if err != nil {
		return err
	}
	defer arm.bus.Close()

	// Step 2: map servos onto joints
	fmt.Println()
	fmt.Println(subHeaderStyle.Render("━━━ Identify servos ━━━"))
	fmt.Println()
	assigned, err := identifyServos(arm, reg)
	if err != nil {
		return err
	}
	if len(assigned) == 0 {
		return fmt.Errorf("no servos assigned to joints")
	}

	servos := make(map[string]*feetech.Servo, len(assigned))
	for _, s := range arm.servos {
		for name, id := range assigned {
			if id == s.ID {
				servos[name] = feetech.NewServo(arm.bus, s.ID, s.Model)
			}
		}
	}

	// Disable all servos so user can move arm freely
	ctx := context.Background()
	for _, servo := range servos {
		servo.Disable(ctx)
	}

	// Step 3: zero pose
	fmt.Println()
	fmt.Println(subHeaderStyle.Render("━━━ Zero pose ━━━"))
	if err := waitForUser("Hold the arm in its zero pose (arms down, elbows straight)."); err != nil {
		return err
	}
	homing := make(map[string]int, len(servos))
	for name, servo := range servos {
		pos, err := servo.Position(ctx)
		if err != nil {
			return fmt.Errorf("read %s: %w", name, err)
		}
		homing[name] = pos
	}

	// Step 4: range of motion
	fmt.Println()
	fmt.Println(subHeaderStyle.Render("Record range of motion"))
	fmt.Println("Move each joint to its minimum AND maximum positions.")
	fmt.Println()

	joints := assignedJoints(reg, assigned)
	model := newCalibrationModel(joints, servos, homing)
	finalModel, err := tea.NewProgram(model).Run()
	if err != nil {
		return fmt.Errorf("run calibration: %w", err)
	}
	cm := finalModel.(calibrationModel)

	cfg.Transport.Kind = config.TransportServo
	cfg.Transport.Servo.Calibration = buildCalibration(assigned, homing, cm.minPositions, cm.maxPositions)
	if err := cfg.SaveTo(opts.Config); err != nil {
		return err
	}

	fmt.Println()
	fmt.Println(dimStyle.Render("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━"))
	fmt.Println(successStyle.Render("Setup complete!"))
	fmt.Printf("Configuration saved to %s\n", opts.Config)
	fmt.Println()
	fmt.Println("Start the controller with: " + headerStyle.Render("armctl run "+arm.port))
	return nil
}

type busInfo struct {
	port   string
	servos []feetech.FoundServo
	bus    *feetech.Bus
}

func (c *SetupCommand) selectBus() (*busInfo, error) {
	ports := []string{c.Port}
	if c.Port == "" {
		fmt.Println("Scanning serial ports for servos...")
		var err error
		if ports, err = serial.GetPortsList(); err != nil {
			return nil, fmt.Errorf("list ports: %w", err)
		}
	}

	var found []*busInfo
	for _, port := range ports {
		// Skip Bluetooth ports on macOS
		if strings.Contains(port, "Bluetooth") {
			continue
		}
		info, err := connectBus(port)
		if err != nil {
			continue
		}
		fmt.Printf("  Found %d servo(s) on %s\n", len(info.servos), port)
		found = append(found, info)
	}

	switch len(found) {
	case 0:
		return nil, fmt.Errorf("no servos found, make sure the arm is connected and powered on")
	case 1:
		return found[0], nil
	}

	options := make([]huh.Option[int], len(found))
	for i, b := range found {
		options[i] = huh.NewOption(fmt.Sprintf("%s (%d servos)", b.port, len(b.servos)), i)
	}
	var choice int
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[int]().
				Title("Which bus drives the arm?").
				Options(options...).
				Value(&choice),
		),
	)
	if err := form.Run(); err != nil {
		return nil, err
	}
	for i, b := range found {
		if i != choice {
			b.bus.Close()
		}
	}
	return found[choice], nil
}

func connectBus(port string) (*busInfo, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	bus, err := feetech.NewBus(feetech.BusConfig{
		Port:     port,
		BaudRate: 1_000_000,
		Protocol: feetech.ProtocolSTS,
		Timeout:  100 * time.Millisecond,
	})
	if err != nil {
		return nil, err
	}

	servos, err := bus.Scan(ctx, scanMinID, scanMaxID)
	if err != nil {
		bus.Close()
		return nil, err
	}
	if len(servos) == 0 {
		bus.Close()
		return nil, fmt.Errorf("no servos on %s", port)
	}
	return &busInfo{port: port, servos: servos, bus: bus}, nil
}

// identifyServos wiggles each servo in turn and asks which joint it drives.
func identifyServos(arm *busInfo, reg *robot.Registry) (map[string]int, error) {
	assigned := make(map[string]int)
	for _, s := range arm.servos {
		servo := feetech.NewServo(arm.bus, s.ID, s.Model)
		wiggle(servo, s.ID)

		var options []huh.Option[string]
		for _, j := range reg.Controlled() {
			if _, taken := assigned[j.Name]; !taken {
				options = append(options, huh.NewOption(j.Name, j.Name))
			}
		}
		options = append(options, huh.NewOption("Skip this servo", ""))

		var joint string
		form := huh.NewForm(
			huh.NewGroup(
				huh.NewSelect[string]().
					Title(fmt.Sprintf("Which joint does servo %d drive?", s.ID)).
					Description("The servo that just wiggled").
					Options(options...).
					Value(&joint),
			),
		)
		if err := form.Run(); err != nil {
			return nil, err
		}
		if joint != "" {
			assigned[joint] = s.ID
		}
	}
	return assigned, nil
}

func wiggle(servo *feetech.Servo, id int) {
	ctx := context.Background()

	originalPos, err := servo.Position(ctx)
	if err != nil {
		fmt.Printf("  Error reading servo %d: %v\n", id, err)
		return
	}
	if err := servo.Enable(ctx); err != nil {
		fmt.Printf("  Error enabling servo %d: %v\n", id, err)
		return
	}

	fmt.Printf("\n  Wiggling servo %d...\n", id)

	// Wiggle: single gentle, slow movement
	wiggleAmount := 30
	moveTimeMs := 500
	servo.SetPositionWithTime(ctx, originalPos+wiggleAmount, moveTimeMs)
	time.Sleep(time.Duration(moveTimeMs+100) * time.Millisecond)
	servo.SetPositionWithTime(ctx, originalPos-wiggleAmount, moveTimeMs)
	time.Sleep(time.Duration(moveTimeMs+100) * time.Millisecond)
	servo.SetPositionWithTime(ctx, originalPos, moveTimeMs)
	time.Sleep(time.Duration(moveTimeMs+100) * time.Millisecond)

	servo.Disable(ctx)
}

func waitForUser(prompt string) error {
	fmt.Println(prompt)

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("").
				Affirmative("Continue").
				Negative("").
				Value(new(bool)),
		),
	)
	if err := form.Run(); err != nil {
		fmt.Fprintln(os.Stderr)
		return err
	}
	return nil
}

// assignedJoints returns the assigned joint names in control order.
func assignedJoints(reg *robot.Registry, assigned map[string]int) []string {
	var names []string
	for _, j := range reg.Controlled() {
		if _, ok := assigned[j.Name]; ok {
			names = append(names, j.Name)
		}
	}
	return names
}

// buildCalibration combines the servo assignment with the recorded zero
// pose and range of motion.
func buildCalibration(assigned, homing, minPositions, maxPositions map[string]int) robot.Calibration {
	cal := make(robot.Calibration, len(assigned))
	for name, id := range assigned {
		cal[name] = robot.ServoCalibration{
			ID:           id,
			HomingOffset: homing[name],
			RangeMin:     minPositions[name],
			RangeMax:     maxPositions[name],
		}
	}
	return cal
}

// Calibration TUI model
type calibrationModel struct {
	joints       []string
	servos       map[string]*feetech.Servo
	curPositions map[string]int
	minPositions map[string]int
	maxPositions map[string]int
	quitting     bool
}

type tickMsg time.Time

func newCalibrationModel(joints []string, servos map[string]*feetech.Servo, start map[string]int) calibrationModel {
	m := calibrationModel{
		joints:       joints,
		servos:       servos,
		curPositions: make(map[string]int, len(joints)),
		minPositions: make(map[string]int, len(joints)),
		maxPositions: make(map[string]int, len(joints)),
	}
	for _, name := range joints {
		m.curPositions[name] = start[name]
		m.minPositions[name] = start[name]
		m.maxPositions[name] = start[name]
	}
	return m
}

func (m calibrationModel) Init() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// record folds one reading into the tracked range.
func (m calibrationModel) record(name string, pos int) {
	m.curPositions[name] = pos
	m.minPositions[name] = min(m.minPositions[name], pos)
	m.maxPositions[name] = max(m.maxPositions[name], pos)
}

func (m calibrationModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "enter", "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		}

	case tickMsg:
		ctx := context.Background()
		for _, name := range m.joints {
			pos, err := m.servos[name].Position(ctx)
			if err != nil {
				continue
			}
			m.record(name, pos)
		}
		return m, tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg {
			return tickMsg(t)
		})
	}

	return m, nil
}

func (m calibrationModel) View() string {
	if m.quitting {
		return ""
	}

	var sb strings.Builder

	// Table styles
	tableHeaderStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12")).Padding(0, 1)
	tableJointStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("14")).Padding(0, 1)
	tableCellStyle := lipgloss.NewStyle().Padding(0, 1)
	tableCurrentStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Padding(0, 1)
	tableRangeGoodStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Padding(0, 1)
	tableRangeLowStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Padding(0, 1)

	rows := make([][]string, 0, len(m.joints))
	ranges := make([]int, 0, len(m.joints))
	for _, name := range m.joints {
		rangeSize := m.maxPositions[name] - m.minPositions[name]
		ranges = append(ranges, rangeSize)
		rows = append(rows, []string{
			name,
			strconv.Itoa(m.curPositions[name]),
			strconv.Itoa(m.minPositions[name]),
			strconv.Itoa(m.maxPositions[name]),
			strconv.Itoa(rangeSize),
		})
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(dimStyle).
		Headers("Joint", "Current", "Min", "Max", "Range").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return tableHeaderStyle
			}
			switch col {
			case 0:
				return tableJointStyle
			case 1:
				return tableCurrentStyle
			case 4:
				if row >= 0 && row < len(ranges) && ranges[row] > 500 {
					return tableRangeGoodStyle
				}
				return tableRangeLowStyle
			default:
				return tableCellStyle
			}
		})

	sb.WriteString(t.Render())
	sb.WriteString("\n\n")
	sb.WriteString(dimStyle.Render("Press Enter when done"))

	return sb.String()
}
