// Package console executes operator commands against the controller. It is
// the input side of the controller: it never touches the actuator bus.
package console

import (
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/gwillem/armctl/pkg/command"
	"github.com/gwillem/armctl/pkg/control"
	"github.com/gwillem/armctl/pkg/robot"
)

// Reply is the outcome of one operator line.
type Reply struct {
	Text string `json:"text"`
	Err  error  `json:"-"`
	Quit bool   `json:"quit,omitempty"`
}

// Dispatcher parses lines and applies them to the shared state and queue.
// It is safe for concurrent use by several input surfaces.
type Dispatcher struct {
	reg    *robot.Registry
	queue  *command.Queue
	state  *control.State
	logger *zap.Logger
}

// NewDispatcher creates a dispatcher.
func NewDispatcher(reg *robot.Registry, queue *command.Queue, state *control.State, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		reg:    reg,
		queue:  queue,
		state:  state,
		logger: logger.Named("console"),
	}
}

// Handle parses and executes one line.
func (d *Dispatcher) Handle(line string) Reply {
	cmd, err := command.Parse(line)
	if err != nil {
		d.logger.Debug("rejected line", zap.String("line", line), zap.Error(err))
		if errors.Is(err, command.ErrMalformedInput) {
			return Reply{Text: fmt.Sprintf("Invalid command format. Use: %s", command.Usage), Err: err}
		}
		return Reply{Text: fmt.Sprintf("Invalid command: %v", err), Err: err}
	}
	return d.Execute(cmd)
}

// Execute applies a parsed command.
func (d *Dispatcher) Execute(cmd command.Command) Reply {
	switch c := cmd.(type) {
	case command.Start:
		d.state.SetEnabled(true)
		d.logger.Info("control enable requested")
		return Reply{Text: "Motor control enabled"}

	case command.Stop:
		d.state.SetEnabled(false)
		d.logger.Info("control disable requested")
		return Reply{Text: "Motor control disabled"}

	case command.Quit:
		if d.state.Stop() {
			d.logger.Info("quit requested")
		}
		return Reply{Text: "Shutting down motor control...", Quit: true}

	case command.Status:
		status := "DISABLED"
		if d.state.Enabled() {
			status = "ENABLED"
		}
		return Reply{Text: "Control status: " + status}

	case command.List:
		var sb strings.Builder
		sb.WriteString("Available joints:")
		for _, name := range d.reg.Names() {
			sb.WriteString("\n  ")
			sb.WriteString(name)
		}
		return Reply{Text: sb.String()}

	case command.Help:
		return Reply{Text: HelpText}

	case command.Pose:
		if c.Name == "" {
			return Reply{Text: "Available poses: " + strings.Join(robot.PoseNames(), ", ")}
		}
		cmds, err := robot.PoseCommands(d.reg, c.Name)
		if err != nil {
			return Reply{Text: err.Error(), Err: err}
		}
		d.queue.Enqueue(cmds...)
		d.logger.Info("pose queued", zap.String("pose", c.Name), zap.Int("commands", len(cmds)))
		return Reply{Text: fmt.Sprintf("Pose %s queued (%d joints)", c.Name, len(cmds))}

	case command.Move:
		if _, err := d.reg.Resolve(c.Motor.Joint); err != nil {
			return Reply{Text: "Unknown joint: " + c.Motor.Joint, Err: err}
		}
		d.queue.Enqueue(c.Motor)
		return Reply{Text: "Command queued for " + c.Motor.Joint}

	default:
		err := fmt.Errorf("unhandled command %T", cmd)
		return Reply{Text: err.Error(), Err: err}
	}
}

// HelpText summarises the operator commands.
const HelpText = `Commands:
  start  - Enable motor control
  stop   - Disable motor control
  quit   - Exit program
  status - Show current status
  list   - List available joints
  pose [name] - Queue a predefined pose (no name lists poses)
  help   - Show this help
  ` + command.Usage + ` - Control specific joint
Example: left_shoulder_pitch 1.57 0 60 1.5 0`
