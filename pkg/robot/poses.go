package robot

import (
	"fmt"
	"sort"
)

// Pose is a named set of joint targets in radians.
type Pose map[string]float64

var poses = map[string]Pose{
	"home": {
		"left_shoulder_pitch":  0,
		"left_shoulder_roll":   0,
		"left_shoulder_yaw":    0,
		"left_elbow_pitch":     0,
		"left_elbow_roll":      0,
		"right_shoulder_pitch": 0,
		"right_shoulder_roll":  0,
		"right_shoulder_yaw":   0,
		"right_elbow_pitch":    0,
		"right_elbow_roll":     0,
		"waist_yaw":            0,
		"waist_roll":           0,
		"waist_pitch":          0,
	},
	"arms_up": {
		"left_shoulder_pitch":  0,
		"left_shoulder_roll":   1.57,
		"left_shoulder_yaw":    0,
		"left_elbow_pitch":     1.57,
		"left_elbow_roll":      0,
		"right_shoulder_pitch": 0,
		"right_shoulder_roll":  -1.57,
		"right_shoulder_yaw":   0,
		"right_elbow_pitch":    1.57,
		"right_elbow_roll":     0,
		"waist_yaw":            0,
		"waist_roll":           0,
		"waist_pitch":          0,
	},
	"wave": {
		"left_shoulder_pitch":  0,
		"left_shoulder_roll":   1.57,
		"left_shoulder_yaw":    0,
		"left_elbow_pitch":     0.5,
		"left_elbow_roll":      0,
		"right_shoulder_pitch": 0,
		"right_shoulder_roll":  0,
		"right_shoulder_yaw":   0,
		"right_elbow_pitch":    0,
		"right_elbow_roll":     0,
		"waist_yaw":            0,
		"waist_roll":           0,
		"waist_pitch":          0,
	},
}

// PoseNames returns the names of the predefined poses, sorted.
func PoseNames() []string {
	names := make([]string, 0, len(poses))
	for name := range poses {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// PoseCommands expands a predefined pose into one command per joint, ordered
// by the registry's control order. Joints the pose names but the registry does
// not know are reported as an error.
func PoseCommands(reg *Registry, name string) ([]MotorCommand, error) {
	pose, ok := poses[name]
	if !ok {
		return nil, fmt.Errorf("unknown pose: %s", name)
	}
	for joint := range pose {
		if _, err := reg.Resolve(joint); err != nil {
			return nil, fmt.Errorf("pose %s: %w", name, err)
		}
	}

	cmds := make([]MotorCommand, 0, len(pose))
	for _, j := range reg.Controlled() {
		pos, ok := pose[j.Name]
		if !ok {
			continue
		}
		cmds = append(cmds, NewMotorCommand(j.Name, pos))
	}
	return cmds, nil
}
