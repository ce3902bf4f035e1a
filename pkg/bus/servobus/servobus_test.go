package servobus

import (
	"errors"
	"math"
	"testing"

	"github.com/hipsterbrown/feetech-servo/feetech"

	"github.com/gwillem/armctl/pkg/bus"
	"github.com/gwillem/armctl/pkg/robot"
)

var testCal = robot.Calibration{
	"left_shoulder_pitch": {ID: 1, HomingOffset: 2048, RangeMin: 1024, RangeMax: 3072},
	"left_elbow_pitch":    {ID: 2, DriveMode: 1, HomingOffset: 2000},
}

func TestPositionsFor(t *testing.T) {
	reg := robot.DefaultRegistry()

	var f robot.Frame
	f.Motors[robot.LeftShoulderPitch].Q = math.Pi / 2
	f.Motors[robot.LeftElbowPitch].Q = math.Pi / 2
	f.Motors[robot.WaistYaw].Q = 1 // not calibrated
	f.SetWeight(1)

	got := positionsFor(reg, testCal, f)
	want := feetech.PositionMap{1: 3072, 2: 976}

	if len(got) != len(want) {
		t.Fatalf("positionsFor() = %v, want %v", got, want)
	}
	for id, raw := range want {
		if got[id] != raw {
			t.Errorf("servo %d = %d, want %d", id, got[id], raw)
		}
	}
}

func TestPositionsFor_Clamps(t *testing.T) {
	reg := robot.DefaultRegistry()
	var f robot.Frame
	f.Motors[robot.LeftShoulderPitch].Q = math.Pi

	got := positionsFor(reg, testCal, f)
	if got[1] != 3072 {
		t.Errorf("servo 1 = %d, want clamped 3072", got[1])
	}
}

func TestStateFrom(t *testing.T) {
	reg := robot.DefaultRegistry()
	raw := map[int]int{
		1: 3072,
		2: 976,
		9: 500, // unknown servo
	}

	s := stateFrom(reg, testCal, raw)

	if got := s.Motors[robot.LeftShoulderPitch].Q; math.Abs(got-math.Pi/2) > 1e-9 {
		t.Errorf("left_shoulder_pitch = %v, want %v", got, math.Pi/2)
	}
	if got := s.Motors[robot.LeftElbowPitch].Q; math.Abs(got-math.Pi/2) > 1e-9 {
		t.Errorf("left_elbow_pitch = %v, want %v", got, math.Pi/2)
	}
	if got := s.Motors[robot.WaistYaw].Q; got != 0 {
		t.Errorf("waist_yaw = %v, want 0", got)
	}
}

func TestOpen_RequiresCalibration(t *testing.T) {
	_, err := Open(Config{Port: "/dev/null"}, robot.DefaultRegistry())
	if !errors.Is(err, bus.ErrTransportUnavailable) {
		t.Errorf("Open() error = %v, want ErrTransportUnavailable", err)
	}
}
