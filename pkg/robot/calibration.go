package robot

import (
	"math"
)

// TicksPerTurn is the encoder resolution of the Feetech STS servos.
const TicksPerTurn = 4096

// ServoCalibration maps one joint onto a serial bus servo.
type ServoCalibration struct {
	ID           int `koanf:"id" yaml:"id" json:"id"`
	DriveMode    int `koanf:"drive_mode" yaml:"drive_mode" json:"drive_mode"`
	HomingOffset int `koanf:"homing_offset" yaml:"homing_offset" json:"homing_offset"`
	RangeMin     int `koanf:"range_min" yaml:"range_min" json:"range_min"`
	RangeMax     int `koanf:"range_max" yaml:"range_max" json:"range_max"`
}

// Calibration holds servo calibration keyed by joint name.
type Calibration map[string]ServoCalibration

func (c ServoCalibration) sign() float64 {
	if c.DriveMode == 1 {
		return -1
	}
	return 1
}

// ToRadians converts a raw servo position to a joint angle. The homing offset
// is the raw position of zero radians.
func (c ServoCalibration) ToRadians(raw int) float64 {
	return c.sign() * float64(raw-c.HomingOffset) * 2 * math.Pi / TicksPerTurn
}

// FromRadians converts a joint angle to a raw servo position, clamped to the
// recorded range when one is set.
func (c ServoCalibration) FromRadians(rad float64) int {
	raw := c.HomingOffset + int(math.Round(c.sign()*rad*TicksPerTurn/(2*math.Pi)))
	if c.RangeMax > c.RangeMin {
		raw = max(c.RangeMin, min(c.RangeMax, raw))
	}
	return raw
}

// MotorIDs returns the servo IDs of the calibrated joints in the registry's
// control order.
func (c Calibration) MotorIDs(reg *Registry) []int {
	ids := make([]int, 0, len(c))
	for _, j := range reg.Controlled() {
		if sc, ok := c[j.Name]; ok {
			ids = append(ids, sc.ID)
		}
	}
	return ids
}

// ByID returns the joint name and calibration for a given servo ID.
func (c Calibration) ByID(id int) (string, ServoCalibration, bool) {
	for name, sc := range c {
		if sc.ID == id {
			return name, sc, true
		}
	}
	return "", ServoCalibration{}, false
}
