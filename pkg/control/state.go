// Package control runs the fixed-rate actuation loop that merges queued
// operator commands into a full actuator frame every tick.
package control

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/gwillem/armctl/pkg/robot"
)

// State holds the flags shared by the input side and the control loop.
// The zero value is not running; use NewState.
type State struct {
	running atomic.Bool
	enabled atomic.Bool
}

// NewState returns a running state with control disabled.
func NewState() *State {
	s := &State{}
	s.running.Store(true)
	return s
}

// Running reports whether the controller is still alive.
func (s *State) Running() bool {
	return s.running.Load()
}

// Stop clears the running flag. It is idempotent and irreversible; it reports
// whether this call performed the transition.
func (s *State) Stop() bool {
	return s.running.CompareAndSwap(true, false)
}

// Enabled reports whether setpoints are actively driven.
func (s *State) Enabled() bool {
	return s.enabled.Load()
}

// SetEnabled turns control on or off from the next tick.
func (s *State) SetEnabled(v bool) {
	s.enabled.Store(v)
}

// Mirror holds the most recent state snapshot. Deliver is called from the
// transport's goroutine, Read from the control loop.
type Mirror struct {
	mu     sync.RWMutex
	state  robot.LowState
	ok     bool
	at     time.Time
	frames uint64
}

// Deliver replaces the mirrored snapshot.
func (m *Mirror) Deliver(s robot.LowState) {
	m.mu.Lock()
	m.state = s
	m.ok = true
	m.at = time.Now()
	m.frames++
	m.mu.Unlock()
}

// Read returns the latest snapshot, and false if none has arrived yet.
func (m *Mirror) Read() (robot.LowState, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state, m.ok
}

// Age returns the time since the last delivery, or zero if none has arrived.
func (m *Mirror) Age() time.Duration {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.ok {
		return 0
	}
	return time.Since(m.at)
}

// Deliveries returns the number of snapshots received.
func (m *Mirror) Deliveries() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.frames
}
