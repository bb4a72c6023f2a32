package scheduler

import (
	"github.com/google/uuid"

	"github.com/cloudgather/cloudgather/internal/model"
)

// job is one unit of dispatch: a task id plus which registry it belongs to
// (§4.1: "a single-consumer dispatch queue" feeding the execution wrappers).
type job struct {
	system model.System
	id     uuid.UUID
}

// dispatchQueue is a bounded FIFO of jobs awaiting a worker, backed by a
// buffered channel. It is drained by exactly one goroutine (the Scheduler's
// run loop), and queueSize is the channel's len(), with no extra locking.
type dispatchQueue struct {
	ch chan job
}

// dispatchQueueCapacity bounds how many QUEUED tasks can be pending dispatch
// at once before TriggerNow/the timer service blocks. Generously sized: the
// IDLE-guard in registry.tryEnqueue* already prevents the same task from
// occupying more than one slot, so this only needs to cover "every
// registered task fires back-to-back" in the worst case.
const dispatchQueueCapacity = 4096

func newDispatchQueue() *dispatchQueue {
	return &dispatchQueue{ch: make(chan job, dispatchQueueCapacity)}
}

func (q *dispatchQueue) push(j job) {
	q.ch <- j
}

func (q *dispatchQueue) size() int {
	return len(q.ch)
}
