package handler

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/soundcult/listenparty/internal/api/apierr"
	"github.com/soundcult/listenparty/internal/api/request"
	"github.com/soundcult/listenparty/internal/api/response"
	"github.com/soundcult/listenparty/internal/session"
)

// QueueHandler exposes shared queue operations
type QueueHandler struct {
	manager *session.Manager
}

// NewQueueHandler creates a queue handler
func NewQueueHandler(manager *session.Manager) *QueueHandler {
	return &QueueHandler{manager: manager}
}

// Get handles GET /queue
func (h *QueueHandler) Get(w http.ResponseWriter, r *http.Request) {
	active, err := requireActive(h.manager)
	if err != nil {
		apierr.WriteError(w, err)
		return
	}
	h.writeQueue(w, r, active)
}

// Add handles POST /queue
func (h *QueueHandler) Add(w http.ResponseWriter, r *http.Request) {
	var req request.QueueAddRequest
	if err := decodeBody(r, &req); err != nil {
		apierr.WriteError(w, err)
		return
	}
	track, err := trackFromRequest(req.Track)
	if err != nil {
		apierr.WriteError(w, err)
		return
	}

	active, err := requireActive(h.manager)
	if err != nil {
		apierr.WriteError(w, err)
		return
	}

	if req.Next {
		err = active.PlayNext(r.Context(), track)
	} else {
		err = active.AddToQueue(r.Context(), track)
	}
	if err != nil {
		apierr.WriteError(w, err)
		return
	}
	h.writeQueue(w, r, active)
}

// Remove handles DELETE /queue/{index}
func (h *QueueHandler) Remove(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(mux.Vars(r)["index"])
	if err != nil {
		apierr.WriteError(w, apierr.NewInvalidRequestError("index must be an integer"))
		return
	}

	active, err := requireActive(h.manager)
	if err != nil {
		apierr.WriteError(w, err)
		return
	}
	if err := active.RemoveFromQueue(r.Context(), index); err != nil {
		apierr.WriteError(w, err)
		return
	}
	h.writeQueue(w, r, active)
}

// Move handles POST /queue/move
func (h *QueueHandler) Move(w http.ResponseWriter, r *http.Request) {
	var req request.QueueMoveRequest
	if err := decodeBody(r, &req); err != nil {
		apierr.WriteError(w, err)
		return
	}

	active, err := requireActive(h.manager)
	if err != nil {
		apierr.WriteError(w, err)
		return
	}
	if err := active.MoveInQueue(r.Context(), req.From, req.To); err != nil {
		apierr.WriteError(w, err)
		return
	}
	h.writeQueue(w, r, active)
}

func (h *QueueHandler) writeQueue(w http.ResponseWriter, r *http.Request, active *session.Active) {
	snap, err := active.Snapshot(r.Context())
	if err != nil {
		apierr.WriteError(w, err)
		return
	}
	items := make([]response.QueueItem, len(snap.Queue))
	for i, item := range snap.Queue {
		items[i] = response.QueueItemFromModel(item)
	}
	response.JSON(w, http.StatusOK, response.Queue{Items: items})
}
