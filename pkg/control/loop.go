package control

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/gwillem/armctl/pkg/bus"
	"github.com/gwillem/armctl/pkg/command"
	"github.com/gwillem/armctl/pkg/robot"
)

// DefaultInterval is the control period used when none is configured.
const DefaultInterval = 20 * time.Millisecond

// finalFrameTimeout bounds the shutdown publish once the run context is gone.
const finalFrameTimeout = time.Second

// Config holds the loop's collaborators and tuning.
type Config struct {
	Registry  *robot.Registry
	Queue     *command.Queue
	State     *State
	Mirror    *Mirror
	Publisher bus.Publisher

	Interval time.Duration
	// Defaults are the velocity, gains and torque used for joints seeded from
	// sensed state. Q is ignored.
	Defaults robot.MotorCmd

	Logger  *zap.Logger
	Metrics *Metrics
}

// JointTarget is the cached setpoint of one controlled joint.
type JointTarget struct {
	Name      string         `json:"name"`
	Setpoint  robot.MotorCmd `json:"setpoint"`
	Commanded bool           `json:"commanded"`
}

// Snapshot is a point-in-time view of the loop for status reporting.
type Snapshot struct {
	Running   bool    `json:"running"`
	Requested bool    `json:"control_enabled"`
	Weight    float64 `json:"weight"`
	Seq       uint64  `json:"seq"`
	// Seconds since the last joint state arrived, 0 before the first.
	StateAge float64       `json:"state_age_seconds"`
	Targets  []JointTarget `json:"targets"`
}

type target struct {
	cmd       robot.MotorCmd
	commanded bool
}

// Loop is the fixed-rate actuation loop. Step and Run must only be called
// from one goroutine; Snapshot and Frames may be used from any.
type Loop struct {
	reg      *robot.Registry
	joints   []robot.Joint
	queue    *command.Queue
	state    *State
	mirror   *Mirror
	pub      bus.Publisher
	interval time.Duration
	defaults robot.MotorCmd
	logger   *zap.Logger
	metrics  *Metrics
	failLog  *rate.Limiter

	// owned by the control goroutine
	cache      []target
	seq        uint64
	weight     float64
	noStateLog bool

	started atomic.Bool

	mu      sync.RWMutex
	snap    Snapshot
	frameCh chan robot.Frame
}

// NewLoop creates a loop. Registry, Queue, State, Mirror and Publisher are required.
func NewLoop(cfg Config) (*Loop, error) {
	if cfg.Registry == nil || cfg.Queue == nil || cfg.State == nil || cfg.Mirror == nil || cfg.Publisher == nil {
		return nil, fmt.Errorf("control loop: missing collaborator")
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = NewMetrics(nil)
	}
	cfg.Defaults.Q = 0

	joints := cfg.Registry.Controlled()
	cache := make([]target, len(joints))
	for i := range cache {
		cache[i].cmd = cfg.Defaults
	}

	return &Loop{
		reg:      cfg.Registry,
		joints:   joints,
		queue:    cfg.Queue,
		state:    cfg.State,
		mirror:   cfg.Mirror,
		pub:      cfg.Publisher,
		interval: cfg.Interval,
		defaults: cfg.Defaults,
		logger:   cfg.Logger.Named("control"),
		metrics:  cfg.Metrics,
		failLog:  rate.NewLimiter(rate.Every(time.Second), 1),
		cache:    cache,
		frameCh:  make(chan robot.Frame, 1),
	}, nil
}

// Interval returns the control period.
func (l *Loop) Interval() time.Duration {
	return l.interval
}

// Frames returns a channel carrying the most recently published frame.
// Older frames are dropped when the reader falls behind.
func (l *Loop) Frames() <-chan robot.Frame {
	return l.frameCh
}

// Snapshot returns the state as of the last completed tick.
func (l *Loop) Snapshot() Snapshot {
	l.mu.RLock()
	s := l.snap
	s.Targets = append([]JointTarget(nil), l.snap.Targets...)
	l.mu.RUnlock()

	s.Running = l.state.Running()
	s.Requested = l.state.Enabled()
	s.StateAge = l.mirror.Age().Seconds()
	return s
}

// Run executes ticks at the configured interval until the state stops
// running or ctx is cancelled. Either way it publishes one final frame with
// weight 0 before returning.
func (l *Loop) Run(ctx context.Context) error {
	if !l.started.CompareAndSwap(false, true) {
		return fmt.Errorf("already running")
	}

	l.logger.Info("control loop started", zap.Duration("interval", l.interval))

	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	for {
		if err := ctx.Err(); err != nil && l.state.Stop() {
			l.logger.Info("control loop cancelled", zap.Error(err))
		}
		if !l.state.Running() {
			l.shutdown(ctx)
			return nil
		}

		start := time.Now()
		l.Step(ctx)
		elapsed := time.Since(start)
		l.metrics.TickDuration.Observe(elapsed.Seconds())
		if elapsed > l.interval {
			l.metrics.TickOverruns.Inc()
		}

		select {
		case <-ctx.Done():
		case <-ticker.C:
		}
	}
}

// Step runs one tick: drain the queue, update the target cache, compose a
// frame for every motor slot and publish it. It returns the composed frame.
func (l *Loop) Step(ctx context.Context) robot.Frame {
	enabled := l.state.Enabled()
	batch := l.queue.DrainAll()

	sensed, haveState := l.mirror.Read()
	if enabled && haveState {
		l.seed(sensed)
	}
	l.apply(batch)

	weight := 0.0
	if enabled {
		if haveState {
			weight = 1
			l.noStateLog = false
		} else if !l.noStateLog {
			l.logger.Warn("control enabled but no joint state received yet, holding weight 0")
			l.noStateLog = true
		}
	}
	l.setWeight(weight)

	f := l.compose(weight)
	l.publish(ctx, f)
	l.metrics.Ticks.Inc()
	l.record(f)
	return f
}

// seed copies sensed positions into every joint no command has targeted yet.
func (l *Loop) seed(s robot.LowState) {
	for i, j := range l.joints {
		if l.cache[i].commanded {
			continue
		}
		t := l.defaults
		t.Q = s.Motors[j.Index].Q
		l.cache[i].cmd = t
	}
}

// apply writes commands into the cache in order; a later command for the
// same joint overwrites an earlier one.
func (l *Loop) apply(batch []robot.MotorCommand) {
	for _, c := range batch {
		if !c.Valid {
			l.metrics.CommandsDropped.WithLabelValues(dropInvalid).Inc()
			l.logger.Warn("dropping invalid command", zap.String("joint", c.Joint))
			continue
		}
		idx, err := l.reg.Resolve(c.Joint)
		if err != nil {
			l.metrics.CommandsDropped.WithLabelValues(dropUnknownJoint).Inc()
			l.logger.Warn("dropping command", zap.String("joint", c.Joint), zap.Error(err))
			continue
		}
		slot, _ := l.reg.Slot(idx)
		l.cache[slot] = target{cmd: c.Setpoint(), commanded: true}
		l.metrics.CommandsApplied.Inc()
		l.logger.Debug("applied command",
			zap.String("joint", c.Joint),
			zap.Float64("q", c.Position),
			zap.Float64("dq", c.Velocity),
			zap.Float64("kp", c.Kp),
			zap.Float64("kd", c.Kd),
			zap.Float64("tau", c.Tau),
		)
	}
}

func (l *Loop) compose(weight float64) robot.Frame {
	l.seq++
	f := robot.Frame{Seq: l.seq}
	for i, j := range l.joints {
		f.Motors[j.Index] = l.cache[i].cmd
	}
	f.SetWeight(weight)
	return f
}

func (l *Loop) publish(ctx context.Context, f robot.Frame) bool {
	if err := l.pub.Publish(ctx, f); err != nil {
		l.metrics.PublishFailures.Inc()
		if l.failLog.Allow() {
			l.logger.Warn("publish frame", zap.Uint64("seq", f.Seq), zap.Error(err))
		}
		return false
	}
	l.metrics.FramesPublished.Inc()
	l.sendFrame(f)
	return true
}

func (l *Loop) setWeight(w float64) {
	if w == l.weight {
		return
	}
	l.weight = w
	l.metrics.ControlEnabled.Set(w)
	if w > 0 {
		l.logger.Info("control enabled")
	} else {
		l.logger.Info("control disabled")
	}
}

func (l *Loop) record(f robot.Frame) {
	targets := make([]JointTarget, len(l.joints))
	for i, j := range l.joints {
		targets[i] = JointTarget{Name: j.Name, Setpoint: l.cache[i].cmd, Commanded: l.cache[i].commanded}
	}
	l.mu.Lock()
	l.snap.Seq = f.Seq
	l.snap.Weight = f.Weight()
	l.snap.Targets = targets
	l.mu.Unlock()
}

func (l *Loop) sendFrame(f robot.Frame) {
	select {
	case l.frameCh <- f:
	default:
		// Drop the stale frame and replace it.
		select {
		case <-l.frameCh:
		default:
		}
		select {
		case l.frameCh <- f:
		default:
		}
	}
}

// shutdown publishes the final zero-weight frame. It runs exactly once per Run.
func (l *Loop) shutdown(ctx context.Context) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finalFrameTimeout)
	defer cancel()

	l.queue.DrainAll()
	l.setWeight(0)
	f := l.compose(0)
	if l.publish(ctx, f) {
		l.logger.Info("control loop stopped, final frame published", zap.Uint64("seq", f.Seq))
	} else {
		l.logger.Error("control loop stopped, final frame not delivered", zap.Uint64("seq", f.Seq))
	}
	l.record(f)
}
