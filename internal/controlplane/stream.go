package controlplane

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/cloudgather/cloudgather/internal/logging"
)

// streamEvent is the wire shape pushed down the live stream (§6.4): either a
// status-snapshot delta or a freshly captured log line.
type streamEvent struct {
	Kind   string          `json:"kind"` // "status" or "log"
	Status *StatusSnapshot `json:"status,omitempty"`
	TaskID string          `json:"task_id,omitempty"`
	Line   *logging.Line   `json:"line,omitempty"`
}

// streamHub fans a stream of events out to every currently connected
// websocket client (§6.4 "pushes status-snapshot deltas and new log lines
// to connected clients").
type streamHub struct {
	mu    sync.Mutex
	conns map[*websocket.Conn]struct{}
}

func newStreamHub() *streamHub {
	return &streamHub{conns: make(map[*websocket.Conn]struct{})}
}

func (h *streamHub) add(c *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.conns[c] = struct{}{}
}

func (h *streamHub) remove(c *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	delete(h.conns, c)
}

func (h *streamHub) broadcast(ev streamEvent) {
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}

	h.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(h.conns))
	for c := range h.conns {
		conns = append(conns, c)
	}
	h.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	for _, c := range conns {
		if err := c.Write(ctx, websocket.MessageText, data); err != nil {
			h.remove(c)
		}
	}
}

func (h *streamHub) broadcastStatus(snap StatusSnapshot) {
	h.broadcast(streamEvent{Kind: "status", Status: &snap})
}

func (h *streamHub) broadcastLog(taskID string, line logging.Line) {
	h.broadcast(streamEvent{Kind: "log", TaskID: taskID, Line: &line})
}

func (h *streamHub) closeAll() {
	h.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(h.conns))
	for c := range h.conns {
		conns = append(conns, c)
	}
	h.conns = make(map[*websocket.Conn]struct{})
	h.mu.Unlock()

	for _, c := range conns {
		_ = c.Close(websocket.StatusServiceRestart, "server shutting down")
	}
}

// handleStream upgrades the request to a websocket and pushes an initial
// status snapshot, then keeps the connection open until it is broken — all
// further pushes happen via PublishStatus/PublishLogLine from the hub.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	c, err := websocket.Accept(w, r, nil)
	if err != nil {
		return
	}

	s.hub.add(c)

	defer func() {
		s.hub.remove(c)
		_ = c.CloseNow()
	}()

	initial, err := json.Marshal(streamEvent{Kind: "status", Status: ptr(s.snapshot())})
	if err == nil {
		_ = c.Write(r.Context(), websocket.MessageText, initial)
	}

	// Block until the client disconnects; the stream is push-only from the
	// server's side, so any message or read error ends the connection.
	for {
		if _, _, err := c.Read(r.Context()); err != nil {
			return
		}
	}
}

func ptr[T any](v T) *T { return &v }
