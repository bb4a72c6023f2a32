package controlplane

import (
	"math/rand"
	"net/http"
	"time"

	"github.com/cloudgather/cloudgather/internal/cronspec"
)

func (s *Server) handleCronPresets(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, cronspec.Presets)
}

func (s *Server) handleCronRandom(w http.ResponseWriter, r *http.Request) {
	expr := cronspec.Random(rand.New(rand.NewSource(time.Now().UnixNano())))
	writeJSON(w, http.StatusOK, map[string]string{"cron_expr": expr})
}

func (s *Server) handleCronValidate(w http.ResponseWriter, r *http.Request) {
	expr := r.URL.Query().Get("expr")
	if expr == "" {
		writeError(w, http.StatusBadRequest, "missing expr query parameter")

		return
	}

	result, err := cronspec.Validate(expr, time.Now())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())

		return
	}

	writeJSON(w, http.StatusOK, result)
}
