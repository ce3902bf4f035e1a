// Package command turns operator text into typed commands and buffers motor
// commands between the input side and the control loop.
package command

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/gwillem/armctl/pkg/robot"
)

var (
	// ErrMalformedInput is returned for lines without the required tokens.
	ErrMalformedInput = errors.New("malformed input")
	// ErrInvalidNumber is returned when a numeric field does not parse.
	ErrInvalidNumber = errors.New("invalid number")
)

// Usage is the motor command syntax shown to operators.
const Usage = "<joint_name> <position> [velocity] [kp] [kd] [tau]"

// Command is one parsed operator line. The concrete types are Start, Stop,
// Quit, Status, List, Help, Pose and Move.
type Command interface {
	command()
}

type (
	// Start enables control.
	Start struct{}
	// Stop disables control.
	Stop struct{}
	// Quit stops the controller for good.
	Quit struct{}
	// Status reports whether control is enabled.
	Status struct{}
	// List enumerates the joint names.
	List struct{}
	// Help prints the command summary.
	Help struct{}
	// Pose queues a predefined pose. An empty Name lists the poses.
	Pose struct{ Name string }
	// Move queues a single joint command.
	Move struct{ Motor robot.MotorCommand }
)

func (Start) command()  {}
func (Stop) command()   {}
func (Quit) command()   {}
func (Status) command() {}
func (List) command()   {}
func (Help) command()   {}
func (Pose) command()   {}
func (Move) command()   {}

// Parse converts one line into a Command. It has no side effects.
func Parse(line string) (Command, error) {
	tokens := strings.Fields(line)
	if len(tokens) == 0 {
		return nil, fmt.Errorf("%w: empty line", ErrMalformedInput)
	}

	if len(tokens) == 1 {
		switch tokens[0] {
		case "start":
			return Start{}, nil
		case "stop":
			return Stop{}, nil
		case "quit", "exit":
			return Quit{}, nil
		case "status":
			return Status{}, nil
		case "list":
			return List{}, nil
		case "help":
			return Help{}, nil
		case "pose":
			return Pose{}, nil
		}
	}
	if tokens[0] == "pose" && len(tokens) == 2 {
		return Pose{Name: tokens[1]}, nil
	}

	mc, err := parseMotor(tokens)
	if err != nil {
		return nil, err
	}
	return Move{Motor: mc}, nil
}

// ParseMotor parses a motor command line. The joint name is not validated.
func ParseMotor(line string) (robot.MotorCommand, error) {
	return parseMotor(strings.Fields(line))
}

func parseMotor(tokens []string) (robot.MotorCommand, error) {
	if len(tokens) < 2 || len(tokens) > 6 {
		return robot.MotorCommand{}, fmt.Errorf("%w: want %s", ErrMalformedInput, Usage)
	}

	cmd := robot.NewMotorCommand(tokens[0], 0)
	cmd.Valid = false

	fields := []*float64{&cmd.Position, &cmd.Velocity, &cmd.Kp, &cmd.Kd, &cmd.Tau}
	for i, tok := range tokens[1:] {
		v, err := strconv.ParseFloat(tok, 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return robot.MotorCommand{}, fmt.Errorf("%w: %q", ErrInvalidNumber, tok)
		}
		*fields[i] = v
	}

	cmd.Valid = true
	return cmd, nil
}
