// Package robot describes the G1 arm-and-waist joint set: joint indices on the
// actuator bus, the name registry used by operators, and the message types
// exchanged with the bus.
package robot

import (
	"errors"
	"fmt"
	"sort"
)

// JointIndex identifies a motor slot on the actuator bus.
type JointIndex uint8

// NumMotors is the number of motor slots carried by every frame and snapshot.
const NumMotors = 35

// Joint indices on the G1 low-level bus.
const (
	LeftHipPitch   JointIndex = 0
	LeftHipRoll    JointIndex = 1
	LeftHipYaw     JointIndex = 2
	LeftKnee       JointIndex = 3
	LeftAnkle      JointIndex = 4
	LeftAnkleRoll  JointIndex = 5
	RightHipPitch  JointIndex = 6
	RightHipRoll   JointIndex = 7
	RightHipYaw    JointIndex = 8
	RightKnee      JointIndex = 9
	RightAnkle     JointIndex = 10
	RightAnkleRoll JointIndex = 11

	WaistYaw   JointIndex = 12
	WaistRoll  JointIndex = 13
	WaistPitch JointIndex = 14

	LeftShoulderPitch JointIndex = 15
	LeftShoulderRoll  JointIndex = 16
	LeftShoulderYaw   JointIndex = 17
	LeftElbowPitch    JointIndex = 18
	LeftElbowRoll     JointIndex = 19

	RightShoulderPitch JointIndex = 22
	RightShoulderRoll  JointIndex = 23
	RightShoulderYaw   JointIndex = 24
	RightElbowPitch    JointIndex = 25
	RightElbowRoll     JointIndex = 26

	// NotUsedJoint carries the arm SDK authority weight in its position field.
	NotUsedJoint JointIndex = 29
)

// WeightJoint is the reserved slot holding the authority weight.
const WeightJoint = NotUsedJoint

// ErrUnknownJoint is returned when a joint name is not in the registry.
var ErrUnknownJoint = errors.New("unknown joint")

// Joint binds an operator-facing name to a bus index.
type Joint struct {
	Name  string     `json:"name"`
	Index JointIndex `json:"index"`
}

// Registry resolves joint names to bus indices. It is immutable after
// construction and safe for concurrent use.
type Registry struct {
	joints []Joint
	byName map[string]int
	slots  [NumMotors]int
}

// NewRegistry builds a registry over the given controlled joints. The order of
// joints is the order of cache slots used by the control loop.
func NewRegistry(joints []Joint) (*Registry, error) {
	r := &Registry{
		joints: make([]Joint, len(joints)),
		byName: make(map[string]int, len(joints)),
	}
	for i := range r.slots {
		r.slots[i] = -1
	}
	copy(r.joints, joints)

	for i, j := range r.joints {
		if j.Name == "" {
			return nil, fmt.Errorf("joint %d: empty name", i)
		}
		if int(j.Index) >= NumMotors {
			return nil, fmt.Errorf("joint %s: index %d out of range", j.Name, j.Index)
		}
		if j.Index == WeightJoint {
			return nil, fmt.Errorf("joint %s: index %d is reserved for the weight", j.Name, j.Index)
		}
		if _, dup := r.byName[j.Name]; dup {
			return nil, fmt.Errorf("joint %s: duplicate name", j.Name)
		}
		if r.slots[j.Index] >= 0 {
			return nil, fmt.Errorf("joint %s: index %d already mapped", j.Name, j.Index)
		}
		r.byName[j.Name] = i
		r.slots[j.Index] = i
	}
	return r, nil
}

// DefaultRegistry returns the 13 arm and waist joints driven through the arm SDK.
func DefaultRegistry() *Registry {
	r, err := NewRegistry(ArmJoints())
	if err != nil {
		panic(err)
	}
	return r
}

// ArmJoints returns the controlled arm and waist joints in control order.
func ArmJoints() []Joint {
	return []Joint{
		{"left_shoulder_pitch", LeftShoulderPitch},
		{"left_shoulder_roll", LeftShoulderRoll},
		{"left_shoulder_yaw", LeftShoulderYaw},
		{"left_elbow_pitch", LeftElbowPitch},
		{"left_elbow_roll", LeftElbowRoll},
		{"right_shoulder_pitch", RightShoulderPitch},
		{"right_shoulder_roll", RightShoulderRoll},
		{"right_shoulder_yaw", RightShoulderYaw},
		{"right_elbow_pitch", RightElbowPitch},
		{"right_elbow_roll", RightElbowRoll},
		{"waist_yaw", WaistYaw},
		{"waist_roll", WaistRoll},
		{"waist_pitch", WaistPitch},
	}
}

// Resolve returns the bus index for a joint name. Matching is exact and case-sensitive.
func (r *Registry) Resolve(name string) (JointIndex, error) {
	i, ok := r.byName[name]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownJoint, name)
	}
	return r.joints[i].Index, nil
}

// Slot returns the control-order position of a bus index, or false if the
// index is not a controlled joint.
func (r *Registry) Slot(idx JointIndex) (int, bool) {
	if int(idx) >= NumMotors {
		return 0, false
	}
	s := r.slots[idx]
	return s, s >= 0
}

// Controlled returns the controlled joints in control order.
func (r *Registry) Controlled() []Joint {
	out := make([]Joint, len(r.joints))
	copy(out, r.joints)
	return out
}

// Len returns the number of controlled joints.
func (r *Registry) Len() int {
	return len(r.joints)
}

// Names returns all resolvable joint names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.joints))
	for _, j := range r.joints {
		names = append(names, j.Name)
	}
	sort.Strings(names)
	return names
}
