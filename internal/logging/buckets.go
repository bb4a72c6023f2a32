package logging

import (
	"sync"
	"time"
)

// maxBucketLines caps each log bucket per §7: "the log stream, task-scoped
// and general buckets, capped at 500 lines each".
const maxBucketLines = 500

// Line is one captured log line.
type Line struct {
	Time    time.Time `json:"time"`
	Level   string    `json:"level"`
	Message string    `json:"message"`
}

// ring is a fixed-capacity FIFO of Line; once full, the oldest line is
// evicted to make room for the newest (a ring buffer in spirit, backed by a
// slice for simplicity since 500 entries is small).
type ring struct {
	mu    sync.Mutex
	lines []Line
}

func (r *ring) push(l Line) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.lines = append(r.lines, l)
	if len(r.lines) > maxBucketLines {
		r.lines = r.lines[len(r.lines)-maxBucketLines:]
	}
}

func (r *ring) snapshot() []Line {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Line, len(r.lines))
	copy(out, r.lines)

	return out
}

// Buckets holds the general log bucket plus one bucket per task-id,
// created lazily. Safe for concurrent use.
type Buckets struct {
	mu      sync.Mutex
	general ring
	perTask map[string]*ring
}

// NewBuckets creates an empty set of log buckets.
func NewBuckets() *Buckets {
	return &Buckets{perTask: make(map[string]*ring)}
}

// Log records a line in the general bucket, and additionally in the
// named task's bucket when taskID is non-empty.
func (b *Buckets) Log(taskID, level, message string) {
	l := Line{Time: time.Now(), Level: level, Message: message}

	b.general.push(l)

	if taskID == "" {
		return
	}

	b.mu.Lock()
	r, ok := b.perTask[taskID]
	if !ok {
		r = &ring{}
		b.perTask[taskID] = r
	}
	b.mu.Unlock()

	r.push(l)
}

// General returns a snapshot of the general bucket.
func (b *Buckets) General() []Line {
	return b.general.snapshot()
}

// Task returns a snapshot of the named task's bucket, empty if none exists.
func (b *Buckets) Task(taskID string) []Line {
	b.mu.Lock()
	r, ok := b.perTask[taskID]
	b.mu.Unlock()

	if !ok {
		return nil
	}

	return r.snapshot()
}
