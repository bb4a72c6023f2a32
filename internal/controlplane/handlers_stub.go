package controlplane

import (
	"net/http"

	"github.com/cloudgather/cloudgather/internal/model"
)

func (s *Server) handleListStub(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.sched.GetAllStub())
}

func (s *Server) handleCreateStub(w http.ResponseWriter, r *http.Request) {
	var t model.StubTask
	if err := decodeBody(r, &t); err != nil {
		writeError(w, http.StatusBadRequest, "decode task: "+err.Error())

		return
	}

	created, err := s.sched.AddStubTask(t)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())

		return
	}

	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleGetStub(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad id")

		return
	}

	t, ok := s.sched.GetStub(id)
	if !ok {
		writeError(w, http.StatusNotFound, "not found")

		return
	}

	writeJSON(w, http.StatusOK, t)
}

func (s *Server) handleUpdateStub(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad id")

		return
	}

	var t model.StubTask
	if err := decodeBody(r, &t); err != nil {
		writeError(w, http.StatusBadRequest, "decode task: "+err.Error())

		return
	}

	if err := s.sched.UpdateStubTask(id, t); err != nil {
		writeSchedulerErr(w, err)

		return
	}

	updated, _ := s.sched.GetStub(id)
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteStub(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad id")

		return
	}

	if err := s.sched.RemoveStubTask(id); err != nil {
		writeSchedulerErr(w, err)

		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleTriggerStub(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad id")

		return
	}

	if err := s.sched.TriggerNow(model.SystemStub, id); err != nil {
		writeSchedulerErr(w, err)

		return
	}

	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleToggleStub(w http.ResponseWriter, r *http.Request) {
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

	if err := s.sched.ToggleStub(id, body.Enabled); err != nil {
		writeSchedulerErr(w, err)

		return
	}

	w.WriteHeader(http.StatusNoContent)
}
