package main

import (
	"strings"
	"testing"

	"github.com/gwillem/armctl/pkg/robot"
)

func TestBuildCalibration(t *testing.T) {
	assigned := map[string]int{"waist_yaw": 3, "left_elbow_pitch": 1}
	homing := map[string]int{"waist_yaw": 2048, "left_elbow_pitch": 1990}
	mins := map[string]int{"waist_yaw": 1000, "left_elbow_pitch": 900}
	maxs := map[string]int{"waist_yaw": 3000, "left_elbow_pitch": 3100}

	cal := buildCalibration(assigned, homing, mins, maxs)

	want := robot.ServoCalibration{ID: 3, HomingOffset: 2048, RangeMin: 1000, RangeMax: 3000}
	if got := cal["waist_yaw"]; got != want {
		t.Errorf("waist_yaw = %+v, want %+v", got, want)
	}
	if len(cal) != 2 {
		t.Errorf("len(cal) = %d, want 2", len(cal))
	}
}

func TestAssignedJoints_ControlOrder(t *testing.T) {
	assigned := map[string]int{"waist_pitch": 1, "left_shoulder_pitch": 2, "right_elbow_roll": 3}
	got := assignedJoints(robot.DefaultRegistry(), assigned)
	want := []string{"left_shoulder_pitch", "right_elbow_roll", "waist_pitch"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("assignedJoints() = %v, want %v", got, want)
	}
}

func TestCalibrationModel_RecordTracksRange(t *testing.T) {
	m := newCalibrationModel([]string{"waist_yaw"}, nil, map[string]int{"waist_yaw": 2000})
	for _, pos := range []int{2100, 1500, 2600, 2050} {
		m.record("waist_yaw", pos)
	}
	if m.minPositions["waist_yaw"] != 1500 || m.maxPositions["waist_yaw"] != 2600 {
		t.Errorf("range = [%d, %d], want [1500, 2600]", m.minPositions["waist_yaw"], m.maxPositions["waist_yaw"])
	}
	if m.curPositions["waist_yaw"] != 2050 {
		t.Errorf("current = %d, want 2050", m.curPositions["waist_yaw"])
	}
	if !strings.Contains(m.View(), "1100") {
		t.Error("view does not show the recorded range")
	}
}

func TestJointTable(t *testing.T) {
	out := jointTable(robot.DefaultRegistry(), robot.Calibration{"waist_yaw": {ID: 7}})
	for _, name := range robot.DefaultRegistry().Names() {
		if !strings.Contains(out, name) {
			t.Errorf("table missing %s", name)
		}
	}
	if !strings.Contains(out, "7") {
		t.Error("table missing servo id")
	}
}
