package controlplane

import (
	"net/http"
	"sort"
	"time"

	"github.com/cloudgather/cloudgather/internal/model"
)

// recentExecutionLimit caps the "recent executions" list in a status
// snapshot, the same spirit as logging's capped buckets (§6.4).
const recentExecutionLimit = 20

// Execution is one task's most recent completed run, surfaced by the
// status snapshot (§6.4 "recent executions").
type Execution struct {
	System model.System `json:"system"`
	TaskID string       `json:"task_id"`
	Name   string       `json:"name"`
	Status model.Status `json:"status"`
	LastRun time.Time   `json:"last_run"`
}

// StatusSnapshot is the control plane's status endpoint response (§6.4
// "status snapshot: scheduler running flag, queue depth, per-task status
// counts, recent executions").
type StatusSnapshot struct {
	Running           bool                   `json:"running"`
	QueueDepth        int                    `json:"queue_depth"`
	SyncStatusCounts  map[model.Status]int   `json:"sync_status_counts"`
	StubStatusCounts  map[model.Status]int   `json:"stub_status_counts"`
	RecentExecutions  []Execution            `json:"recent_executions"`
}

func (s *Server) snapshot() StatusSnapshot {
	syncTasks := s.sched.GetAllSync()
	stubTasks := s.sched.GetAllStub()

	snap := StatusSnapshot{
		Running:          s.sched.Running(),
		QueueDepth:       s.sched.QueueSize(),
		SyncStatusCounts: make(map[model.Status]int),
		StubStatusCounts: make(map[model.Status]int),
	}

	var recent []Execution

	for _, t := range syncTasks {
		snap.SyncStatusCounts[t.Status]++

		if t.LastRun != nil {
			recent = append(recent, Execution{
				System: model.SystemSync, TaskID: t.ID.String(), Name: t.Name,
				Status: t.Status, LastRun: *t.LastRun,
			})
		}
	}

	for _, t := range stubTasks {
		snap.StubStatusCounts[t.Status]++

		if t.LastRun != nil {
			recent = append(recent, Execution{
				System: model.SystemStub, TaskID: t.ID.String(), Name: t.Name,
				Status: t.Status, LastRun: *t.LastRun,
			})
		}
	}

	sort.Slice(recent, func(i, j int) bool { return recent[i].LastRun.After(recent[j].LastRun) })

	if len(recent) > recentExecutionLimit {
		recent = recent[:recentExecutionLimit]
	}

	snap.RecentExecutions = recent

	return snap
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.snapshot())
}

// QueueInspection is the control plane's queue-inspection endpoint payload
// (§6.4 "queue inspection").
type QueueInspection struct {
	Depth int `json:"depth"`
}

func (s *Server) handleQueue(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, QueueInspection{Depth: s.sched.QueueSize()})
}

func (s *Server) handleGeneralLogs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.buckets.General())
}

func (s *Server) handleTaskLogs(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	writeJSON(w, http.StatusOK, s.buckets.Task(id))
}
