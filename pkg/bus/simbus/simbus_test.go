package simbus

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gwillem/armctl/pkg/bus"
	"github.com/gwillem/armctl/pkg/robot"
)

func frameFor(idx robot.JointIndex, q, weight float64) robot.Frame {
	var f robot.Frame
	f.Motors[idx] = robot.MotorCmd{Q: q, Kp: robot.DefaultKp, Kd: robot.DefaultKd}
	f.SetWeight(weight)
	return f
}

func TestAdvance_MovesTowardCommandAtFullWeight(t *testing.T) {
	r := New(Config{Response: 0.5})
	require.NoError(t, r.Publish(context.Background(), frameFor(robot.WaistYaw, 1, 1)))

	s := r.Advance()
	assert.InDelta(t, 0.5, s.Motors[robot.WaistYaw].Q, 1e-9)
	s = r.Advance()
	assert.InDelta(t, 0.75, s.Motors[robot.WaistYaw].Q, 1e-9)
	assert.Equal(t, uint32(2), s.Tick)
}

func TestAdvance_ZeroWeightHolds(t *testing.T) {
	r := New(Config{})
	r.SetPosition(robot.WaistYaw, 0.3)
	require.NoError(t, r.Publish(context.Background(), frameFor(robot.WaistYaw, 1, 0)))

	s := r.Advance()
	assert.Equal(t, 0.3, s.Motors[robot.WaistYaw].Q)
}

func TestAdvance_NoFrameHolds(t *testing.T) {
	r := New(Config{Initial: robot.LowState{Tick: 7}})
	s := r.Advance()
	assert.Equal(t, uint32(8), s.Tick)
	assert.Equal(t, 0.0, s.Motors[robot.WaistYaw].Q)
}

func TestSubscribe_Delivers(t *testing.T) {
	r := New(Config{Period: time.Millisecond})
	defer r.Close()

	var n atomic.Int32
	require.NoError(t, r.Subscribe(func(robot.LowState) { n.Add(1) }))
	assert.Eventually(t, func() bool { return n.Load() >= 3 }, time.Second, time.Millisecond)
}

func TestClose(t *testing.T) {
	r := New(Config{Period: time.Millisecond})
	require.NoError(t, r.Subscribe(func(robot.LowState) {}))
	require.NoError(t, r.Close())
	require.NoError(t, r.Close())

	err := r.Publish(context.Background(), robot.Frame{})
	assert.ErrorIs(t, err, bus.ErrPublish)
	assert.Error(t, r.Subscribe(func(robot.LowState) {}))
}

func TestLastFrame(t *testing.T) {
	r := New(Config{})
	_, ok := r.LastFrame()
	assert.False(t, ok)

	require.NoError(t, r.Publish(context.Background(), robot.Frame{Seq: 4}))
	f, ok := r.LastFrame()
	assert.True(t, ok)
	assert.Equal(t, uint64(4), f.Seq)
	assert.Equal(t, 1, r.Published())
}
