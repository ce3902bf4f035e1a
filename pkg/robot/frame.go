package robot

// Default setpoint parameters applied when a command omits them.
const (
	DefaultVelocity = 0.0
	DefaultKp       = 60.0
	DefaultKd       = 1.5
	DefaultTau      = 0.0
)

// MotorCommand is one operator intent for a single joint.
type MotorCommand struct {
	Joint    string
	Position float64 // radians
	Velocity float64
	Kp       float64
	Kd       float64
	Tau      float64
	Valid    bool
}

// NewMotorCommand returns a command for joint with the default gains.
func NewMotorCommand(joint string, position float64) MotorCommand {
	return MotorCommand{
		Joint:    joint,
		Position: position,
		Velocity: DefaultVelocity,
		Kp:       DefaultKp,
		Kd:       DefaultKd,
		Tau:      DefaultTau,
		Valid:    true,
	}
}

// Setpoint returns the per-motor record the command asks for.
func (c MotorCommand) Setpoint() MotorCmd {
	return MotorCmd{Q: c.Position, DQ: c.Velocity, Kp: c.Kp, Kd: c.Kd, Tau: c.Tau}
}

// MotorCmd is the setpoint record for one motor slot.
type MotorCmd struct {
	Q   float64 `json:"q"`
	DQ  float64 `json:"dq"`
	Kp  float64 `json:"kp"`
	Kd  float64 `json:"kd"`
	Tau float64 `json:"tau"`
}

// Frame is one complete outbound actuator message. Frames are values: a
// published frame is never modified afterwards.
type Frame struct {
	Seq    uint64              `json:"seq"`
	Motors [NumMotors]MotorCmd `json:"motor_cmd"`
}

// Weight returns the authority weight carried on the reserved slot.
func (f *Frame) Weight() float64 {
	return f.Motors[WeightJoint].Q
}

// SetWeight sets the authority weight. The other fields of the slot stay zero.
func (f *Frame) SetWeight(w float64) {
	f.Motors[WeightJoint] = MotorCmd{Q: w}
}

// MotorState is the sensed state of one motor slot.
type MotorState struct {
	Q      float64 `json:"q"`
	DQ     float64 `json:"dq"`
	TauEst float64 `json:"tau_est"`
}

// LowState is one snapshot from the state bus.
type LowState struct {
	Tick   uint32                `json:"tick"`
	Motors [NumMotors]MotorState `json:"motor_state"`
}
