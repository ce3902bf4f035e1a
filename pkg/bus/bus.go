// Package bus defines the transport contracts between the controller and the
// robot: an actuator bus that accepts frames and a state bus that delivers
// snapshots.
package bus

import (
	"context"
	"errors"

	"github.com/gwillem/armctl/pkg/robot"
)

var (
	// ErrPublish wraps transport send failures.
	ErrPublish = errors.New("publish failed")
	// ErrTransportUnavailable is returned when a transport cannot be opened.
	ErrTransportUnavailable = errors.New("transport unavailable")
)

// Publisher sends actuator frames.
type Publisher interface {
	Publish(ctx context.Context, f robot.Frame) error
}

// StateHandler receives one complete snapshot. It runs on the transport's
// delivery goroutine and must not block.
type StateHandler func(robot.LowState)

// Subscriber delivers state snapshots.
type Subscriber interface {
	Subscribe(h StateHandler) error
}

// Transport is a connected actuator and state bus pair.
type Transport interface {
	Publisher
	Subscriber
	Close() error
}
