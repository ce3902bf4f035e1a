// Package simbus is an in-process robot simulator that implements the bus
// transport. Each joint's sensed position moves toward its commanded
// position at a rate scaled by the authority weight, and snapshots are
// delivered on the simulator's own goroutine.
package simbus

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gwillem/armctl/pkg/bus"
	"github.com/gwillem/armctl/pkg/robot"
)

// Config tunes the simulator.
type Config struct {
	// Period between state deliveries. Zero means 2ms, the G1 low-state rate.
	Period time.Duration
	// Response is the fraction of the position error closed per step at
	// weight 1. Zero means 0.2.
	Response float64
	// Initial is the starting sensed state.
	Initial robot.LowState
}

var errClosed = errors.New("simulator closed")

// Robot is a simulated arm. It is safe for concurrent use.
type Robot struct {
	period   time.Duration
	response float64

	mu        sync.Mutex
	state     robot.LowState
	last      robot.Frame
	hasFrame  bool
	published int
	handlers  []bus.StateHandler
	closed    bool

	startOnce sync.Once
	stop      chan struct{}
	wg        sync.WaitGroup
}

// New creates a simulator. Deliveries start with the first Subscribe.
func New(cfg Config) *Robot {
	if cfg.Period <= 0 {
		cfg.Period = 2 * time.Millisecond
	}
	if cfg.Response <= 0 || cfg.Response > 1 {
		cfg.Response = 0.2
	}
	return &Robot{
		period:   cfg.Period,
		response: cfg.Response,
		state:    cfg.Initial,
		stop:     make(chan struct{}),
	}
}

// Publish records the frame as the current command.
func (r *Robot) Publish(_ context.Context, f robot.Frame) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return errors.Join(bus.ErrPublish, errClosed)
	}
	r.last = f
	r.hasFrame = true
	r.published++
	return nil
}

// Subscribe registers a handler and starts the delivery goroutine.
func (r *Robot) Subscribe(h bus.StateHandler) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return errClosed
	}
	r.handlers = append(r.handlers, h)
	r.mu.Unlock()

	r.startOnce.Do(func() {
		r.wg.Add(1)
		go r.run()
	})
	return nil
}

func (r *Robot) run() {
	defer r.wg.Done()
	ticker := time.NewTicker(r.period)
	defer ticker.Stop()

	for {
		select {
		case <-r.stop:
			return
		case <-ticker.C:
			r.Advance()
		}
	}
}

// Advance runs one simulation step and delivers the resulting snapshot to
// every handler.
func (r *Robot) Advance() robot.LowState {
	r.mu.Lock()
	if r.hasFrame {
		w := r.last.Weight()
		for i := range r.state.Motors {
			if robot.JointIndex(i) == robot.WeightJoint {
				continue
			}
			cmd := r.last.Motors[i]
			if cmd.Kp == 0 {
				continue
			}
			prev := r.state.Motors[i].Q
			next := prev + w*r.response*(cmd.Q-prev)
			r.state.Motors[i].Q = next
			r.state.Motors[i].DQ = (next - prev) / r.period.Seconds()
		}
	}
	r.state.Tick++
	s := r.state
	handlers := append([]bus.StateHandler(nil), r.handlers...)
	r.mu.Unlock()

	for _, h := range handlers {
		h(s)
	}
	return s
}

// SetPosition overrides the sensed position of one joint.
func (r *Robot) SetPosition(idx robot.JointIndex, q float64) {
	r.mu.Lock()
	r.state.Motors[idx].Q = q
	r.mu.Unlock()
}

// LastFrame returns the most recently published frame.
func (r *Robot) LastFrame() (robot.Frame, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last, r.hasFrame
}

// Published returns the number of frames received.
func (r *Robot) Published() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.published
}

// Close stops deliveries. Publishing after Close fails.
func (r *Robot) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	r.mu.Unlock()

	close(r.stop)
	r.wg.Wait()
	return nil
}

var _ bus.Transport = (*Robot)(nil)
