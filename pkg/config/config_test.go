package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gwillem/armctl/pkg/robot"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "armctl.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_MissingFileGivesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 20*time.Millisecond, cfg.Control.Interval.Duration())
	assert.Equal(t, robot.DefaultKp, cfg.Control.DefaultKp)
	assert.Equal(t, robot.DefaultKd, cfg.Control.DefaultKd)
	assert.Equal(t, TransportNATS, cfg.Transport.Kind)
	assert.Equal(t, "rt.arm_sdk", cfg.Transport.NATS.ArmSubject)
	assert.Equal(t, "rt.lowstate", cfg.Transport.NATS.StateSubject)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Empty(t, cfg.HTTP.Listen)
	assert.False(t, cfg.Transport.Servo.IsCalibrated())
}

func TestLoad_YAMLOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `control:
  interval: 10ms
  default_kp: 40
transport:
  kind: servo
  servo:
    calibration:
      left_elbow_pitch:
        id: 4
        homing_offset: 2047
        range_min: 900
        range_max: 3100
http:
  listen: 127.0.0.1:8080
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 10*time.Millisecond, cfg.Control.Interval.Duration())
	assert.Equal(t, 40.0, cfg.Control.DefaultKp)
	assert.Equal(t, robot.DefaultKd, cfg.Control.DefaultKd, "unset keys keep defaults")
	assert.Equal(t, TransportServo, cfg.Transport.Kind)
	assert.Equal(t, "127.0.0.1:8080", cfg.HTTP.Listen)

	sc := cfg.Transport.Servo.Calibration["left_elbow_pitch"]
	assert.Equal(t, robot.ServoCalibration{ID: 4, HomingOffset: 2047, RangeMin: 900, RangeMax: 3100}, sc)
}

func TestLoad_EnvironmentOverride(t *testing.T) {
	path := writeConfig(t, "control:\n  interval: 10ms\n")
	t.Setenv("ARMCTL_CONTROL_INTERVAL", "5ms")
	t.Setenv("ARMCTL_TRANSPORT_NATS_ARM_SUBJECT", "lab.arm")
	t.Setenv("ARMCTL_LOGGING_LEVEL", "debug")
	t.Setenv("ARMCTL_NOT_A_KEY", "ignored")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 5*time.Millisecond, cfg.Control.Interval.Duration())
	assert.Equal(t, "lab.arm", cfg.Transport.NATS.ArmSubject)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoad_InvalidYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "control: [unclosed"))
	assert.Error(t, err)
}

func TestLoad_Validation(t *testing.T) {
	tests := map[string]string{
		"transport": "transport:\n  kind: carrier_pigeon\n",
		"gains":     "control:\n  default_kd: -1\n",
		"logging":   "logging:\n  format: xml\n",
		"duration":  "control:\n  interval: soon\n",
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, content))
			assert.Error(t, err)
		})
	}
}

func TestLoad_FileTooLarge(t *testing.T) {
	big := "# " + strings.Repeat("x", maxConfigFileSize) + "\n"
	_, err := Load(writeConfig(t, big))
	assert.ErrorContains(t, err, "too large")
}

func TestSaveTo_RoundTrip(t *testing.T) {
	cfg := Default()
	cfg.Transport.Kind = TransportServo
	cfg.Transport.Servo.Calibration = robot.Calibration{
		"waist_yaw": {ID: 7, DriveMode: 1, HomingOffset: 2100, RangeMin: 1000, RangeMax: 3000},
	}
	path := filepath.Join(t.TempDir(), "armctl.yaml")
	require.NoError(t, cfg.SaveTo(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "interval: 20ms")

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, *loaded)
}

func TestControlDefaults(t *testing.T) {
	c := ControlConfig{DefaultKp: 30, DefaultKd: 2, DefaultVelocity: 0.1, DefaultTau: 0.5}
	assert.Equal(t, robot.MotorCmd{DQ: 0.1, Kp: 30, Kd: 2, Tau: 0.5}, c.Defaults())
}
