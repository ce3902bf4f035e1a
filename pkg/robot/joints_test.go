package robot

import (
	"errors"
	"sort"
	"testing"
)

func TestRegistry_Resolve(t *testing.T) {
	reg := DefaultRegistry()

	tests := []struct {
		name    string
		want    JointIndex
		wantErr bool
	}{
		{"left_shoulder_pitch", LeftShoulderPitch, false},
		{"right_elbow_roll", RightElbowRoll, false},
		{"waist_pitch", WaistPitch, false},
		{"Left_Shoulder_Pitch", 0, true}, // case-sensitive
		{"left_knee", 0, true},           // on the bus but not controlled
		{"", 0, true},
	}

	for _, tt := range tests {
		got, err := reg.Resolve(tt.name)
		if tt.wantErr {
			if !errors.Is(err, ErrUnknownJoint) {
				t.Errorf("Resolve(%q) error = %v, want ErrUnknownJoint", tt.name, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("Resolve(%q) unexpected error: %v", tt.name, err)
			continue
		}
		if got != tt.want {
			t.Errorf("Resolve(%q) = %d, want %d", tt.name, got, tt.want)
		}
	}
}

func TestRegistry_Names(t *testing.T) {
	names := DefaultRegistry().Names()
	if len(names) != 13 {
		t.Fatalf("Names() returned %d names, want 13", len(names))
	}
	if !sort.StringsAreSorted(names) {
		t.Errorf("Names() not sorted: %v", names)
	}
}

func TestRegistry_Slot(t *testing.T) {
	reg := DefaultRegistry()

	for i, j := range reg.Controlled() {
		slot, ok := reg.Slot(j.Index)
		if !ok || slot != i {
			t.Errorf("Slot(%d) = %d, %v, want %d, true", j.Index, slot, ok, i)
		}
	}
	if _, ok := reg.Slot(WeightJoint); ok {
		t.Error("weight joint must not be a controlled slot")
	}
	if _, ok := reg.Slot(LeftKnee); ok {
		t.Error("leg joint must not be a controlled slot")
	}
	if _, ok := reg.Slot(JointIndex(200)); ok {
		t.Error("out of range index must not be a controlled slot")
	}
}

func TestNewRegistry_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		joints []Joint
	}{
		{"duplicate name", []Joint{{"a", 15}, {"a", 16}}},
		{"duplicate index", []Joint{{"a", 15}, {"b", 15}}},
		{"weight slot", []Joint{{"a", WeightJoint}}},
		{"out of range", []Joint{{"a", NumMotors}}},
		{"empty name", []Joint{{"", 15}}},
	}

	for _, tt := range tests {
		if _, err := NewRegistry(tt.joints); err == nil {
			t.Errorf("%s: NewRegistry succeeded, want error", tt.name)
		}
	}
}

func TestPoseCommands(t *testing.T) {
	reg := DefaultRegistry()

	cmds, err := PoseCommands(reg, "arms_up")
	if err != nil {
		t.Fatalf("PoseCommands: %v", err)
	}
	if len(cmds) != reg.Len() {
		t.Fatalf("got %d commands, want %d", len(cmds), reg.Len())
	}
	for i, j := range reg.Controlled() {
		if cmds[i].Joint != j.Name {
			t.Errorf("cmds[%d].Joint = %s, want %s", i, cmds[i].Joint, j.Name)
		}
		if !cmds[i].Valid || cmds[i].Kp != DefaultKp || cmds[i].Kd != DefaultKd {
			t.Errorf("cmds[%d] missing defaults: %+v", i, cmds[i])
		}
	}
	if cmds[1].Position != 1.57 {
		t.Errorf("left_shoulder_roll = %f, want 1.57", cmds[1].Position)
	}

	if _, err := PoseCommands(reg, "moonwalk"); err == nil {
		t.Error("unknown pose should fail")
	}
}

func TestFrame_Weight(t *testing.T) {
	var f Frame
	f.Motors[WeightJoint] = MotorCmd{Q: 5, Kp: 3}
	f.SetWeight(1)
	if f.Weight() != 1 {
		t.Errorf("Weight() = %f, want 1", f.Weight())
	}
	if f.Motors[WeightJoint].Kp != 0 {
		t.Errorf("SetWeight must clear the other slot fields: %+v", f.Motors[WeightJoint])
	}
}
