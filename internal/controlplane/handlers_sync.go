package controlplane

import (
	"errors"
	"net/http"

	"github.com/cloudgather/cloudgather/internal/model"
	"github.com/cloudgather/cloudgather/internal/scheduler"
)

func (s *Server) handleListSync(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.sched.GetAllSync())
}

func (s *Server) handleCreateSync(w http.ResponseWriter, r *http.Request) {
	var t model.SyncTask
	if err := decodeBody(r, &t); err != nil {
		writeError(w, http.StatusBadRequest, "decode task: "+err.Error())

		return
	}

	created, err := s.sched.AddSyncTask(t)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())

		return
	}

	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleGetSync(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad id")

		return
	}

	t, ok := s.sched.GetSync(id)
	if !ok {
		writeError(w, http.StatusNotFound, "not found")

		return
	}

	writeJSON(w, http.StatusOK, t)
}

func (s *Server) handleUpdateSync(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad id")

		return
	}

	var t model.SyncTask
	if err := decodeBody(r, &t); err != nil {
		writeError(w, http.StatusBadRequest, "decode task: "+err.Error())

		return
	}

	if err := s.sched.UpdateSyncTask(id, t); err != nil {
		writeSchedulerErr(w, err)

		return
	}

	updated, _ := s.sched.GetSync(id)
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteSync(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad id")

		return
	}

	if err := s.sched.RemoveSyncTask(id); err != nil {
		writeSchedulerErr(w, err)

		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleTriggerSync(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad id")

		return
	}

	if err := s.sched.TriggerNow(model.SystemSync, id); err != nil {
		writeSchedulerErr(w, err)

		return
	}

	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleToggleSync(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad id")

		return
	}

	var body struct {
		Enabled bool `json:"enabled"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "decode body: "+err.Error())

		return
	}

	if err := s.sched.ToggleSync(id, body.Enabled); err != nil {
		writeSchedulerErr(w, err)

		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleFullOverwrite implements §6.4's "full-overwrite (trigger with
// temporary overwriteAll=true)".
func (s *Server) handleFullOverwrite(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad id")

		return
	}

	if err := s.sched.TriggerFullOverwrite(id); err != nil {
		writeSchedulerErr(w, err)

		return
	}

	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleReconstructCache(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad id")

		return
	}

	count, err := s.sched.ReconstructCache(r.Context(), id)
	if err != nil {
		writeSchedulerErr(w, err)

		return
	}

	writeJSON(w, http.StatusOK, map[string]int{"entries_written": count})
}

// writeSchedulerErr maps the scheduler's sentinel errors to HTTP status
// codes; anything else is a 400 (§7: "validation errors surfaced to the
// caller; no state change").
func writeSchedulerErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, scheduler.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, scheduler.ErrNotIdle):
		writeError(w, http.StatusConflict, err.Error())
	default:
		writeError(w, http.StatusBadRequest, err.Error())
	}
}
