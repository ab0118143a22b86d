package handler

import (
	"fmt"
	"net/http"
	"time"

	"github.com/soundcult/listenparty/internal/api/apierr"
	"github.com/soundcult/listenparty/internal/api/response"
	"github.com/soundcult/listenparty/internal/dependencies/clock"
	"github.com/soundcult/listenparty/internal/session"
)

// keepalivePeriod is the interval between SSE keepalive pings
const keepalivePeriod = 15 * time.Second

// EventsHandler streams session state over SSE so a UI can render the
// session live without polling
type EventsHandler struct {
	manager *session.Manager
	clock   clock.Clock
}

// NewEventsHandler creates an events handler
func NewEventsHandler(manager *session.Manager, clk clock.Clock) *EventsHandler {
	return &EventsHandler{manager: manager, clock: clk}
}

// Stream handles GET /session/events. Event types:
//   - session: full session snapshot, sent on connect and after every change
//   - connection: transport connection state change
//   - ended: the session has ended; the stream closes after this
func (h *EventsHandler) Stream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	active, err := requireActive(h.manager)
	if err != nil {
		apierr.WriteError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	snapshots := active.WatchSnapshots()
	connections := active.WatchConnection()

	// Initial snapshot so the client renders immediately
	snap, err := active.Snapshot(r.Context())
	if err == nil {
		if err := response.Event(w, flusher, "session", response.SessionFromModel(snap, h.clock.Now())); err != nil {
			return
		}
	}

	keepalive := time.NewTicker(keepalivePeriod)
	defer keepalive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-active.Ended():
			_ = response.Event(w, flusher, "ended", map[string]string{"code": string(active.Code)})
			return
		case snap := <-snapshots:
			if err := response.Event(w, flusher, "session", response.SessionFromModel(snap, h.clock.Now())); err != nil {
				return
			}
		case state := <-connections:
			if err := response.Event(w, flusher, "connection", response.ConnectionFromModel(state)); err != nil {
				return
			}
		case <-keepalive.C:
			if _, err := fmt.Fprint(w, ": keepalive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
