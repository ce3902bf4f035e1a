package command

import (
	"sync"

	"github.com/gwillem/armctl/pkg/robot"
)

// Queue buffers motor commands between the input side and the control loop.
// The zero value is ready to use.
type Queue struct {
	mu      sync.Mutex
	pending []robot.MotorCommand
}

// Enqueue appends commands in order. A multi-command call lands in a single
// drain batch.
func (q *Queue) Enqueue(cmds ...robot.MotorCommand) {
	if len(cmds) == 0 {
		return
	}
	q.mu.Lock()
	q.pending = append(q.pending, cmds...)
	q.mu.Unlock()
}

// DrainAll hands over everything queued so far, in enqueue order, and leaves
// the queue empty. The caller owns the returned slice.
func (q *Queue) DrainAll() []robot.MotorCommand {
	q.mu.Lock()
	batch := q.pending
	q.pending = nil
	q.mu.Unlock()
	return batch
}

// Len returns the number of queued commands.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}
