// Package natsbus carries actuator frames and state snapshots over NATS.
//
// Frames are published as JSON on the arm subject (default "rt.arm_sdk") and
// snapshots are read from the state subject (default "rt.lowstate"). NATS
// hands each message to the subscriber whole, so a delivered snapshot is
// never partially written.
package natsbus

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/gwillem/armctl/pkg/bus"
	"github.com/gwillem/armctl/pkg/robot"
)

// Default subjects.
const (
	DefaultArmSubject   = "rt.arm_sdk"
	DefaultStateSubject = "rt.lowstate"
)

// DefaultPort is the NATS client port assumed for bare host names.
const DefaultPort = 4222

// Config configures the NATS transport.
type Config struct {
	URL            string
	ArmSubject     string
	StateSubject   string
	ConnectTimeout time.Duration
	// Session tags every published frame so receivers can tell controller
	// restarts apart.
	Session string
	Logger  *zap.Logger
}

// FrameMessage is the wire form of a published frame.
type FrameMessage struct {
	Session string `json:"session,omitempty"`
	robot.Frame
}

// Transport is a NATS-backed actuator and state bus.
type Transport struct {
	nc      *nats.Conn
	cfg     Config
	logger  *zap.Logger
	badMsgs *rate.Limiter

	mu   sync.Mutex
	subs []*nats.Subscription
}

// URLFor turns the operator's interface argument into a NATS URL. Full URLs
// pass through; "host:port" and bare host names get the nats scheme, and
// bare names the default port.
func URLFor(iface string) string {
	switch {
	case strings.Contains(iface, "://"):
		return iface
	case strings.Contains(iface, ":"):
		return "nats://" + iface
	default:
		return fmt.Sprintf("nats://%s:%d", iface, DefaultPort)
	}
}

// Connect dials the NATS server. Failure to connect is reported as
// bus.ErrTransportUnavailable.
func Connect(cfg Config) (*Transport, error) {
	if cfg.ArmSubject == "" {
		cfg.ArmSubject = DefaultArmSubject
	}
	if cfg.StateSubject == "" {
		cfg.StateSubject = DefaultStateSubject
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 2 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	logger := cfg.Logger.Named("natsbus")

	nc, err := nats.Connect(cfg.URL,
		nats.Name("armctl"),
		nats.Timeout(cfg.ConnectTimeout),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(250*time.Millisecond),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("reconnected", zap.String("url", c.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: connect %s: %v", bus.ErrTransportUnavailable, cfg.URL, err)
	}

	logger.Info("connected",
		zap.String("url", nc.ConnectedUrl()),
		zap.String("arm_subject", cfg.ArmSubject),
		zap.String("state_subject", cfg.StateSubject),
	)

	return &Transport{
		nc:      nc,
		cfg:     cfg,
		logger:  logger,
		badMsgs: rate.NewLimiter(rate.Every(5*time.Second), 1),
	}, nil
}

// Publish sends a frame on the arm subject.
func (t *Transport) Publish(_ context.Context, f robot.Frame) error {
	data, err := json.Marshal(FrameMessage{Session: t.cfg.Session, Frame: f})
	if err != nil {
		return fmt.Errorf("%w: encode frame: %v", bus.ErrPublish, err)
	}
	if err := t.nc.Publish(t.cfg.ArmSubject, data); err != nil {
		return fmt.Errorf("%w: %v", bus.ErrPublish, err)
	}
	return nil
}

// Subscribe delivers every decodable snapshot on the state subject to h.
// Undecodable messages are dropped.
func (t *Transport) Subscribe(h bus.StateHandler) error {
	sub, err := t.nc.Subscribe(t.cfg.StateSubject, func(msg *nats.Msg) {
		var s robot.LowState
		if err := json.Unmarshal(msg.Data, &s); err != nil {
			if t.badMsgs.Allow() {
				t.logger.Warn("dropping undecodable state message", zap.Error(err))
			}
			return
		}
		h(s)
	})
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", t.cfg.StateSubject, err)
	}
	t.mu.Lock()
	t.subs = append(t.subs, sub)
	t.mu.Unlock()
	return nil
}

// PublishState sends a snapshot on the state subject. It is the robot-side
// half of the protocol, used by bridges and tests.
func (t *Transport) PublishState(s robot.LowState) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	return t.nc.Publish(t.cfg.StateSubject, data)
}

// Flush waits until the server has processed everything published so far.
func (t *Transport) Flush() error {
	return t.nc.Flush()
}

// Close flushes pending frames and closes the connection.
func (t *Transport) Close() error {
	t.mu.Lock()
	for _, sub := range t.subs {
		_ = sub.Unsubscribe()
	}
	t.subs = nil
	t.mu.Unlock()

	var err error
	if t.nc.IsConnected() {
		err = t.nc.FlushTimeout(time.Second)
	}
	t.nc.Close()
	return err
}

var _ bus.Transport = (*Transport)(nil)
