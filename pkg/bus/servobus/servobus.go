// Package servobus drives a Feetech serial bus arm with the same frames the
// controller publishes to a networked robot. Joint angles are mapped onto raw
// servo positions through the calibration, and the authority weight switches
// servo torque: torque is on while the weight is positive and off otherwise.
package servobus

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hipsterbrown/feetech-servo/feetech"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/gwillem/armctl/pkg/bus"
	"github.com/gwillem/armctl/pkg/robot"
)

// Config configures the serial bus transport.
type Config struct {
	Port         string
	BaudRate     int
	Timeout      time.Duration
	PollInterval time.Duration
	Calibration  robot.Calibration
	Logger       *zap.Logger
}

// Arm is a serial bus arm exposed as a bus.Transport.
type Arm struct {
	reg     *robot.Registry
	cal     robot.Calibration
	poll    time.Duration
	logger  *zap.Logger
	readErr *rate.Limiter

	// Serializes access to the bus between Publish and the poller.
	io     sync.Mutex
	bus    *feetech.Bus
	group  *feetech.ServoGroup
	torque bool

	mu       sync.Mutex
	handlers []bus.StateHandler
	tick     uint32
	closed   bool

	startOnce sync.Once
	stop      chan struct{}
	wg        sync.WaitGroup
}

// Open opens the serial port and builds a servo group from the calibrated
// joints of reg. Failure is reported as bus.ErrTransportUnavailable.
func Open(cfg Config, reg *robot.Registry) (*Arm, error) {
	if len(cfg.Calibration) == 0 {
		return nil, fmt.Errorf("%w: no servo calibration, run setup first", bus.ErrTransportUnavailable)
	}
	if cfg.BaudRate <= 0 {
		cfg.BaudRate = 1_000_000
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 20 * time.Millisecond
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 100 * time.Millisecond
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	b, err := feetech.NewBus(feetech.BusConfig{
		Port:     cfg.Port,
		BaudRate: cfg.BaudRate,
		Protocol: feetech.ProtocolSTS,
		Timeout:  cfg.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: open bus %s: %v", bus.ErrTransportUnavailable, cfg.Port, err)
	}

	ids := cfg.Calibration.MotorIDs(reg)
	logger := cfg.Logger.Named("servobus")
	logger.Info("serial bus open", zap.String("port", cfg.Port), zap.Ints("servos", ids))

	return &Arm{
		reg:     reg,
		cal:     cfg.Calibration,
		poll:    cfg.PollInterval,
		logger:  logger,
		readErr: rate.NewLimiter(rate.Every(5*time.Second), 1),
		bus:     b,
		group:   feetech.NewServoGroupByIDs(b, ids...),
		stop:    make(chan struct{}),
	}, nil
}

// Publish writes the frame's joint targets to the servos. Torque follows the
// frame's weight, and positions are only written while it is on.
func (a *Arm) Publish(ctx context.Context, f robot.Frame) error {
	a.io.Lock()
	defer a.io.Unlock()

	want := f.Weight() > 0
	if want != a.torque {
		var err error
		if want {
			err = a.group.EnableAll(ctx)
		} else {
			err = a.group.DisableAll(ctx)
		}
		if err != nil {
			return fmt.Errorf("%w: set torque %v: %v", bus.ErrPublish, want, err)
		}
		a.torque = want
		a.logger.Info("servo torque", zap.Bool("enabled", want))
	}
	if !want {
		return nil
	}

	if err := a.group.SetPositions(ctx, positionsFor(a.reg, a.cal, f)); err != nil {
		return fmt.Errorf("%w: write positions: %v", bus.ErrPublish, err)
	}
	return nil
}

// Subscribe registers a handler and starts polling the servos.
func (a *Arm) Subscribe(h bus.StateHandler) error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return fmt.Errorf("subscribe: bus closed")
	}
	a.handlers = append(a.handlers, h)
	a.mu.Unlock()

	a.startOnce.Do(func() {
		a.wg.Add(1)
		go a.run()
	})
	return nil
}

func (a *Arm) run() {
	defer a.wg.Done()
	ticker := time.NewTicker(a.poll)
	defer ticker.Stop()

	for {
		select {
		case <-a.stop:
			return
		case <-ticker.C:
			a.readOnce()
		}
	}
}

func (a *Arm) readOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), a.poll)
	defer cancel()

	a.io.Lock()
	raw, err := a.group.Positions(ctx)
	a.io.Unlock()
	if err != nil {
		if a.readErr.Allow() {
			a.logger.Warn("read positions", zap.Error(err))
		}
		return
	}

	a.mu.Lock()
	a.tick++
	s := stateFrom(a.reg, a.cal, raw)
	s.Tick = a.tick
	handlers := append([]bus.StateHandler(nil), a.handlers...)
	a.mu.Unlock()

	for _, h := range handlers {
		h(s)
	}
}

// Close stops polling, releases torque and closes the serial port.
func (a *Arm) Close() error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	a.mu.Unlock()

	close(a.stop)
	a.wg.Wait()

	a.io.Lock()
	defer a.io.Unlock()
	if a.torque {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if err := a.group.DisableAll(ctx); err != nil {
			a.logger.Warn("disable torque on close", zap.Error(err))
		}
		a.torque = false
	}
	return a.bus.Close()
}

// positionsFor maps the controlled joints of a frame onto raw servo
// positions. Joints without calibration are skipped.
func positionsFor(reg *robot.Registry, cal robot.Calibration, f robot.Frame) feetech.PositionMap {
	out := make(feetech.PositionMap, len(cal))
	for _, j := range reg.Controlled() {
		sc, ok := cal[j.Name]
		if !ok {
			continue
		}
		out[sc.ID] = sc.FromRadians(f.Motors[j.Index].Q)
	}
	return out
}

// stateFrom converts raw servo positions into a snapshot. Servos that are not
// mapped to a controlled joint are ignored.
func stateFrom(reg *robot.Registry, cal robot.Calibration, raw map[int]int) robot.LowState {
	var s robot.LowState
	for id, pos := range raw {
		name, sc, ok := cal.ByID(id)
		if !ok {
			continue
		}
		idx, err := reg.Resolve(name)
		if err != nil {
			continue
		}
		s.Motors[idx].Q = sc.ToRadians(pos)
	}
	return s
}

var _ bus.Transport = (*Arm)(nil)
