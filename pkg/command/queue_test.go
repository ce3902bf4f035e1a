package command

import (
	"fmt"
	"math/rand"
	"runtime"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gwillem/armctl/pkg/robot"
)

func TestQueue_DrainOrder(t *testing.T) {
	var q Queue
	q.Enqueue(robot.NewMotorCommand("j1", 1))
	q.Enqueue(robot.NewMotorCommand("j2", 2), robot.NewMotorCommand("j1", 3))

	assert.Equal(t, 3, q.Len())

	batch := q.DrainAll()
	require.Len(t, batch, 3)
	assert.Equal(t, "j1", batch[0].Joint)
	assert.Equal(t, "j2", batch[1].Joint)
	assert.Equal(t, 3.0, batch[2].Position)

	assert.Empty(t, q.DrainAll())
	assert.Equal(t, 0, q.Len())
}

func TestQueue_EnqueueNothing(t *testing.T) {
	var q Queue
	q.Enqueue()
	assert.Nil(t, q.DrainAll())
}

func TestQueue_DrainedBatchIsOwned(t *testing.T) {
	var q Queue
	q.Enqueue(robot.NewMotorCommand("j1", 1))
	batch := q.DrainAll()

	q.Enqueue(robot.NewMotorCommand("j2", 2))
	require.Len(t, batch, 1)
	assert.Equal(t, "j1", batch[0].Joint)
}

// Interleaved producers and a draining consumer: every command is delivered
// exactly once and each producer's commands arrive in order.
func TestQueue_ConcurrentEnqueueDrain(t *testing.T) {
	const (
		producers   = 4
		perProducer = 2000
	)

	for seed := int64(1); seed <= 5; seed++ {
		t.Run(fmt.Sprintf("seed=%d", seed), func(t *testing.T) {
			var q Queue
			var wg sync.WaitGroup

			for p := range producers {
				wg.Add(1)
				go func(p int) {
					defer wg.Done()
					rng := rand.New(rand.NewSource(seed*100 + int64(p)))
					for i := range perProducer {
						q.Enqueue(robot.NewMotorCommand(fmt.Sprintf("p%d", p), float64(i)))
						if rng.Intn(8) == 0 {
							runtime.Gosched()
						}
					}
				}(p)
			}

			done := make(chan struct{})
			go func() {
				wg.Wait()
				close(done)
			}()

			seen := make(map[string][]float64)
			collect := func() {
				for _, c := range q.DrainAll() {
					seen[c.Joint] = append(seen[c.Joint], c.Position)
				}
			}

			rng := rand.New(rand.NewSource(seed))
		loop:
			for {
				select {
				case <-done:
					break loop
				default:
					collect()
					if rng.Intn(2) == 0 {
						runtime.Gosched()
					}
				}
			}
			collect()

			for p := range producers {
				got := seen[fmt.Sprintf("p%d", p)]
				require.Len(t, got, perProducer)
				for i, pos := range got {
					assert.Equal(t, float64(i), pos)
				}
			}
		})
	}
}
