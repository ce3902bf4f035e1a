// Package armctl is an interactive controller for the arm and waist joints of
// a humanoid robot.
//
// An operator types commands such as "start", "left_elbow_pitch 0.9" or
// "pose wave". A fixed-rate control loop turns the accumulated commands into
// actuator frames and publishes them with an authority weight that hands the
// arms over to the controller only while control is enabled and joint state
// has been received.
//
// # Installation
//
//	go install github.com/gwillem/armctl/cmd/armctl@latest
//
// # Usage
//
// Drive a robot whose state and command topics are bridged to NATS:
//
//	armctl run 192.168.123.161
//
// Drive a serial bus arm after calibrating it:
//
//	armctl setup
//	armctl run --transport servo /dev/ttyACM0
//
// Try it without hardware:
//
//	armctl run --transport sim --tui sim
//
// # Packages
//
// The module is organized into the following packages:
//
//   - cmd/armctl: CLI with run, joints and setup commands
//   - pkg/robot: Joint registry, frames, poses and servo calibration
//   - pkg/command: Command parsing and the pending command queue
//   - pkg/control: Shared controller state, state mirror and the control loop
//   - pkg/console: Command dispatch and the line console
//   - pkg/bus: Transport interfaces, with NATS, serial bus and simulated implementations
//   - pkg/httpapi: Operator HTTP API and metrics
//   - pkg/config, pkg/logging: Configuration and logger setup
package armctl
