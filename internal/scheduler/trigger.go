package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cloudgather/cloudgather/internal/cronspec"
	"github.com/cloudgather/cloudgather/internal/model"
)

// triggerSet owns one timer goroutine per enabled task, translating its
// Schedule into either a fixed ticker (INTERVAL) or a repeated
// shortest-next-fire sleep (CRON), and pushing a job onto the dispatch queue
// each time the task comes due (§4.1 trigger/timer service).
type triggerSet struct {
	mu      sync.Mutex
	cancels map[uuid.UUID]context.CancelFunc
	queue   *dispatchQueue
	clock   func() time.Time
}

func newTriggerSet(queue *dispatchQueue) *triggerSet {
	return &triggerSet{
		cancels: make(map[uuid.UUID]context.CancelFunc),
		queue:   queue,
		clock:   time.Now,
	}
}

// start begins (or restarts) the timer for a task. Calling it again for the
// same id cancels the previous timer first, which is how updateTask and
// toggle-enabled apply a changed schedule without a daemon restart.
func (ts *triggerSet) start(system model.System, id uuid.UUID, sched model.Schedule, enabled bool) {
	ts.stop(id)

	if !enabled {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())

	ts.mu.Lock()
	ts.cancels[id] = cancel
	ts.mu.Unlock()

	switch sched.Type {
	case model.ScheduleCron:
		go ts.runCron(ctx, system, id, sched.CronExpr)
	default:
		go ts.runInterval(ctx, system, id, sched.IntervalSeconds)
	}
}

// stop cancels the timer for id, if one is running. Safe to call for a task
// with no active timer.
func (ts *triggerSet) stop(id uuid.UUID) {
	ts.mu.Lock()
	cancel, ok := ts.cancels[id]
	delete(ts.cancels, id)
	ts.mu.Unlock()

	if ok {
		cancel()
	}
}

// stopAll cancels every running timer, used on Scheduler.Stop.
func (ts *triggerSet) stopAll() {
	ts.mu.Lock()
	cancels := ts.cancels
	ts.cancels = make(map[uuid.UUID]context.CancelFunc)
	ts.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}
}

func (ts *triggerSet) runInterval(ctx context.Context, system model.System, id uuid.UUID, seconds int) {
	if seconds < 1 {
		seconds = 1
	}

	t := time.NewTicker(time.Duration(seconds) * time.Second)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			ts.queue.push(job{system: system, id: id})
		}
	}
}

func (ts *triggerSet) runCron(ctx context.Context, system model.System, id uuid.UUID, expr string) {
	parsed, err := cronspec.Parse(expr)
	if err != nil {
		return
	}

	for {
		next, err := parsed.Next(ts.clock())
		if err != nil {
			return
		}

		wait := time.Until(next)
		if wait < 0 {
			wait = 0
		}

		timer := time.NewTimer(wait)

		select {
		case <-ctx.Done():
			timer.Stop()

			return
		case <-timer.C:
			ts.queue.push(job{system: system, id: id})
		}
	}
}

// NextRunTime reports the next time a task's trigger will fire, for status
// reporting. It does not consult the running timer goroutine — it is a pure
// function of the schedule and the current clock.
func NextRunTime(sched model.Schedule, from time.Time) (time.Time, bool) {
	switch sched.Type {
	case model.ScheduleCron:
		parsed, err := cronspec.Parse(sched.CronExpr)
		if err != nil {
			return time.Time{}, false
		}

		next, err := parsed.Next(from)
		if err != nil {
			return time.Time{}, false
		}

		return next, true
	default:
		seconds := sched.IntervalSeconds
		if seconds < 1 {
			seconds = 1
		}

		return from.Add(time.Duration(seconds) * time.Second), true
	}
}
