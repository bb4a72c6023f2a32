// Package controlplane implements the thin HTTP adapter spec.md §6.4 names:
// task CRUD across both task systems, trigger-now, toggle, full-overwrite,
// reconstruct-cache, status snapshot, queue inspection, per-task log
// retrieval, directory listing, and cron preset/random/validate — plus a
// websocket stream pushing status and log updates to connected clients.
// Framework-free, one handler function per route, mirroring the shape of
// a net/http.ServeMux-based API adapter already proven in this ecosystem.
package controlplane

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/cloudgather/cloudgather/internal/logging"
)

// Scheduler is the subset of *scheduler.Scheduler the control plane drives.
// Declared here, rather than imported directly, so this package stays
// testable against a fake.
type Scheduler interface {
	syncCRUD
	stubCRUD
	lifecycle
}

// Server is the control-plane HTTP adapter.
type Server struct {
	logger  *zap.SugaredLogger
	sched   Scheduler
	buckets *logging.Buckets
	browse  *browser

	mux  *http.ServeMux
	srv  *http.Server
	addr string

	mu      sync.Mutex
	started bool
	ln      net.Listener

	hub *streamHub
}

// New builds a Server bound to addr, wired to sched for every control
// operation and buckets for log retrieval. browseRoots restricts the
// directory-listing endpoint to the given set of allowed roots (§6.5: the
// daemon only ever touches paths configured into a task).
func New(logger *zap.SugaredLogger, sched Scheduler, buckets *logging.Buckets, addr string, browseRoots []string) *Server {
	s := &Server{
		logger:  logger,
		sched:   sched,
		buckets: buckets,
		browse:  newBrowser(browseRoots),
		addr:    addr,
		hub:     newStreamHub(),
	}

	s.mux = http.NewServeMux()
	s.routes()

	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /v1/tasks/sync", s.handleListSync)
	s.mux.HandleFunc("POST /v1/tasks/sync", s.handleCreateSync)
	s.mux.HandleFunc("GET /v1/tasks/sync/{id}", s.handleGetSync)
	s.mux.HandleFunc("PUT /v1/tasks/sync/{id}", s.handleUpdateSync)
	s.mux.HandleFunc("DELETE /v1/tasks/sync/{id}", s.handleDeleteSync)
	s.mux.HandleFunc("POST /v1/tasks/sync/{id}/trigger", s.handleTriggerSync)
	s.mux.HandleFunc("POST /v1/tasks/sync/{id}/toggle", s.handleToggleSync)
	s.mux.HandleFunc("POST /v1/tasks/sync/{id}/overwrite", s.handleFullOverwrite)
	s.mux.HandleFunc("POST /v1/tasks/sync/{id}/reconstruct-cache", s.handleReconstructCache)

	s.mux.HandleFunc("GET /v1/tasks/stub", s.handleListStub)
	s.mux.HandleFunc("POST /v1/tasks/stub", s.handleCreateStub)
	s.mux.HandleFunc("GET /v1/tasks/stub/{id}", s.handleGetStub)
	s.mux.HandleFunc("PUT /v1/tasks/stub/{id}", s.handleUpdateStub)
	s.mux.HandleFunc("DELETE /v1/tasks/stub/{id}", s.handleDeleteStub)
	s.mux.HandleFunc("POST /v1/tasks/stub/{id}/trigger", s.handleTriggerStub)
	s.mux.HandleFunc("POST /v1/tasks/stub/{id}/toggle", s.handleToggleStub)

	s.mux.HandleFunc("GET /v1/status", s.handleStatus)
	s.mux.HandleFunc("GET /v1/queue", s.handleQueue)
	s.mux.HandleFunc("GET /v1/logs", s.handleGeneralLogs)
	s.mux.HandleFunc("GET /v1/logs/{id}", s.handleTaskLogs)
	s.mux.HandleFunc("GET /v1/browse", s.handleBrowse)

	s.mux.HandleFunc("GET /v1/cron/presets", s.handleCronPresets)
	s.mux.HandleFunc("GET /v1/cron/random", s.handleCronRandom)
	s.mux.HandleFunc("GET /v1/cron/validate", s.handleCronValidate)

	s.mux.HandleFunc("GET /v1/stream", s.handleStream)
	s.mux.HandleFunc("GET /healthz", s.handleHealth)
}

// Start launches the HTTP listener in the background and stops it once ctx
// is cancelled, mirroring the teacher's context-driven shutdown shape.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}

	s.ln = ln
	s.srv = &http.Server{
		Handler:           s.mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		s.logger.Infow("control plane listening", "addr", s.addr)

		if err := s.srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Errorw("control plane server error", "error", err)
		}
	}()

	s.started = true

	go func() {
		<-ctx.Done()
		_ = s.Shutdown(context.Background())
	}()

	return nil
}

// Shutdown gracefully stops the HTTP server and closes any open stream
// connections.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.srv == nil {
		return nil
	}

	s.hub.closeAll()

	err := s.srv.Shutdown(ctx)
	s.started = false

	return err
}

// PublishStatus pushes a status-snapshot delta to every connected stream
// client (§6.4 live stream). Safe to call from any goroutine. Nothing in
// the daemon calls it, so clients receive only the snapshot sent on connect.
func (s *Server) PublishStatus(snapshot StatusSnapshot) {
	s.hub.broadcastStatus(snapshot)
}

// PublishLogLine pushes one freshly captured log line to every connected
// stream client.
func (s *Server) PublishLogLine(taskID string, line logging.Line) {
	s.hub.broadcastLog(taskID, line)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
