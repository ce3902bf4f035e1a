// Package config loads the armctl configuration.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables prefixed with ARMCTL_
//  2. YAML config file (armctl.yaml by default)
//  3. Built-in defaults
//
// Environment variables map onto keys by replacing dots with underscores:
//
//	ARMCTL_CONTROL_INTERVAL -> control.interval
//	ARMCTL_TRANSPORT_NATS_ARM_SUBJECT -> transport.nats.arm_subject
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
	yamlv3 "gopkg.in/yaml.v3"

	"github.com/gwillem/armctl/pkg/logging"
	"github.com/gwillem/armctl/pkg/robot"
)

// DefaultConfigFile is read when no path is given.
const DefaultConfigFile = "armctl.yaml"

// EnvPrefix prefixes every environment override.
const EnvPrefix = "ARMCTL_"

const maxConfigFileSize = 1024 * 1024 // 1MB

// Transport kinds.
const (
	TransportNATS  = "nats"
	TransportServo = "servo"
	TransportSim   = "sim"
)

// Duration wraps time.Duration for text unmarshaling (YAML, env vars).
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	if parsed < 0 {
		return fmt.Errorf("duration cannot be negative: %s", text)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration().String()), nil
}

// MarshalJSON implements json.Marshaler.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Duration().String())
}

// Duration returns the underlying time.Duration.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// Config holds the complete armctl configuration.
type Config struct {
	Control   ControlConfig   `koanf:"control" yaml:"control"`
	Transport TransportConfig `koanf:"transport" yaml:"transport"`
	HTTP      HTTPConfig      `koanf:"http" yaml:"http"`
	Logging   logging.Config  `koanf:"logging" yaml:"logging"`
}

// ControlConfig tunes the control loop.
type ControlConfig struct {
	Interval        Duration `koanf:"interval" yaml:"interval"`
	DefaultKp       float64  `koanf:"default_kp" yaml:"default_kp"`
	DefaultKd       float64  `koanf:"default_kd" yaml:"default_kd"`
	DefaultVelocity float64  `koanf:"default_velocity" yaml:"default_velocity"`
	DefaultTau      float64  `koanf:"default_tau" yaml:"default_tau"`
}

// Defaults returns the setpoint used for joints seeded from sensed state.
func (c ControlConfig) Defaults() robot.MotorCmd {
	return robot.MotorCmd{DQ: c.DefaultVelocity, Kp: c.DefaultKp, Kd: c.DefaultKd, Tau: c.DefaultTau}
}

// TransportConfig selects and configures the robot bus.
type TransportConfig struct {
	Kind  string      `koanf:"kind" yaml:"kind"`
	NATS  NATSConfig  `koanf:"nats" yaml:"nats"`
	Servo ServoConfig `koanf:"servo" yaml:"servo"`
}

// NATSConfig configures the networked robot transport.
type NATSConfig struct {
	ArmSubject     string   `koanf:"arm_subject" yaml:"arm_subject"`
	StateSubject   string   `koanf:"state_subject" yaml:"state_subject"`
	ConnectTimeout Duration `koanf:"connect_timeout" yaml:"connect_timeout"`
}

// ServoConfig configures the serial bus transport.
type ServoConfig struct {
	BaudRate     int               `koanf:"baud_rate" yaml:"baud_rate"`
	PollInterval Duration          `koanf:"poll_interval" yaml:"poll_interval"`
	Calibration  robot.Calibration `koanf:"calibration" yaml:"calibration,omitempty"`
}

// IsCalibrated returns true if servo calibration data is present.
func (s ServoConfig) IsCalibrated() bool {
	return len(s.Calibration) > 0
}

// HTTPConfig configures the operator HTTP API. An empty Listen disables it.
type HTTPConfig struct {
	Listen string `koanf:"listen" yaml:"listen"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Control: ControlConfig{
			Interval:        Duration(20 * time.Millisecond),
			DefaultKp:       robot.DefaultKp,
			DefaultKd:       robot.DefaultKd,
			DefaultVelocity: robot.DefaultVelocity,
			DefaultTau:      robot.DefaultTau,
		},
		Transport: TransportConfig{
			Kind: TransportNATS,
			NATS: NATSConfig{
				ArmSubject:     "rt.arm_sdk",
				StateSubject:   "rt.lowstate",
				ConnectTimeout: Duration(2 * time.Second),
			},
			Servo: ServoConfig{
				BaudRate:     1_000_000,
				PollInterval: Duration(20 * time.Millisecond),
			},
		},
		Logging: logging.DefaultConfig(),
	}
}

// Load reads defaults, then the YAML file at path if it exists, then
// ARMCTL_ environment overrides, and validates the result. An empty path
// means DefaultConfigFile.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigFile
	}
	k := koanf.New(".")

	defaults, err := yamlv3.Marshal(Default())
	if err != nil {
		return nil, fmt.Errorf("encode defaults: %w", err)
	}
	if err := k.Load(rawbytes.Provider(defaults), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}
	known := k.Keys()

	content, err := readFile(path)
	if err != nil {
		return nil, err
	}
	if content != nil {
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey(known)), nil); err != nil {
		return nil, fmt.Errorf("load environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// envKey maps ARMCTL_TRANSPORT_NATS_ARM_SUBJECT onto the known key
// transport.nats.arm_subject. Unknown variables are ignored.
func envKey(known []string) func(string) string {
	byEnv := make(map[string]string, len(known))
	for _, key := range known {
		byEnv[strings.ReplaceAll(key, ".", "_")] = key
	}
	return func(s string) string {
		return byEnv[strings.ToLower(strings.TrimPrefix(s, EnvPrefix))]
	}
}

// readFile returns nil content when the file does not exist.
func readFile(path string) ([]byte, error) {
	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("stat config file: %w", err)
	}
	if info.Size() > maxConfigFileSize {
		return nil, fmt.Errorf("config file %s too large: %d bytes (max %d)", path, info.Size(), maxConfigFileSize)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	return content, nil
}

// Validate checks config for errors.
func (c *Config) Validate() error {
	if c.Control.Interval <= 0 {
		return errors.New("control interval must be positive")
	}
	if c.Control.DefaultKp < 0 || c.Control.DefaultKd < 0 {
		return errors.New("default gains must not be negative")
	}
	if !slices.Contains([]string{TransportNATS, TransportServo, TransportSim}, c.Transport.Kind) {
		return fmt.Errorf("unknown transport %q (want nats, servo or sim)", c.Transport.Kind)
	}
	if c.Transport.Kind == TransportNATS && (c.Transport.NATS.ArmSubject == "" || c.Transport.NATS.StateSubject == "") {
		return errors.New("nats subjects must be set")
	}
	if c.Transport.Servo.BaudRate <= 0 {
		return fmt.Errorf("invalid baud rate: %d", c.Transport.Servo.BaudRate)
	}
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	return nil
}

// SaveTo writes the configuration as YAML.
func (c *Config) SaveTo(path string) error {
	data, err := yamlv3.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
