package robot

import (
	"math"
	"testing"
)

func TestServoCalibration_ToRadians(t *testing.T) {
	cal := ServoCalibration{HomingOffset: 2048}

	tests := []struct {
		raw      int
		expected float64
	}{
		{2048, 0},            // home -> 0
		{3072, math.Pi / 2},  // quarter turn
		{1024, -math.Pi / 2}, // quarter turn back
		{4096, math.Pi},      // half turn
	}

	for _, tt := range tests {
		got := cal.ToRadians(tt.raw)
		if math.Abs(got-tt.expected) > 1e-9 {
			t.Errorf("ToRadians(%d) = %f, want %f", tt.raw, got, tt.expected)
		}
	}
}

func TestServoCalibration_FromRadians(t *testing.T) {
	cal := ServoCalibration{HomingOffset: 2048, RangeMin: 1000, RangeMax: 3000}

	tests := []struct {
		rad      float64
		expected int
	}{
		{0, 2048},
		{math.Pi / 4, 2560},
		{-math.Pi / 4, 1536},
		{math.Pi, 3000},  // clamped to max
		{-math.Pi, 1000}, // clamped to min
	}

	for _, tt := range tests {
		got := cal.FromRadians(tt.rad)
		if got != tt.expected {
			t.Errorf("FromRadians(%f) = %d, want %d", tt.rad, got, tt.expected)
		}
	}
}

func TestServoCalibration_DriveModeInverts(t *testing.T) {
	cal := ServoCalibration{HomingOffset: 2048, DriveMode: 1}

	if got := cal.ToRadians(3072); math.Abs(got+math.Pi/2) > 1e-9 {
		t.Errorf("ToRadians(3072) = %f, want %f", got, -math.Pi/2)
	}
	if got := cal.FromRadians(math.Pi / 2); got != 1024 {
		t.Errorf("FromRadians(pi/2) = %d, want 1024", got)
	}
}

func TestServoCalibration_RoundTrip(t *testing.T) {
	cal := ServoCalibration{HomingOffset: 1900, RangeMin: 823, RangeMax: 3540}

	for raw := cal.RangeMin; raw <= cal.RangeMax; raw += 100 {
		rad := cal.ToRadians(raw)
		back := cal.FromRadians(rad)
		if back != raw {
			t.Errorf("Round-trip failed: %d -> %f -> %d", raw, rad, back)
		}
	}
}

func TestCalibration_MotorIDs(t *testing.T) {
	cal := Calibration{
		"waist_yaw":           ServoCalibration{ID: 3},
		"left_shoulder_pitch": ServoCalibration{ID: 1},
		"left_shoulder_roll":  ServoCalibration{ID: 2},
	}

	ids := cal.MotorIDs(DefaultRegistry())
	expected := []int{1, 2, 3}

	if len(ids) != len(expected) {
		t.Fatalf("MotorIDs returned %d IDs, want %d", len(ids), len(expected))
	}
	for i, id := range ids {
		if id != expected[i] {
			t.Errorf("MotorIDs()[%d] = %d, want %d", i, id, expected[i])
		}
	}
}

func TestCalibration_ByID(t *testing.T) {
	cal := Calibration{
		"left_shoulder_pitch": ServoCalibration{ID: 1, RangeMin: 100, RangeMax: 200},
		"waist_yaw":           ServoCalibration{ID: 6, RangeMin: 300, RangeMax: 400},
	}

	name, sc, ok := cal.ByID(1)
	if !ok {
		t.Fatal("ByID(1) returned false")
	}
	if name != "left_shoulder_pitch" {
		t.Errorf("ByID(1) returned name %s, want left_shoulder_pitch", name)
	}
	if sc.RangeMin != 100 {
		t.Errorf("ByID(1) returned wrong calibration: %+v", sc)
	}

	if _, _, ok := cal.ByID(99); ok {
		t.Error("ByID(99) should return false")
	}
}
