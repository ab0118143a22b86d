package handler

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/soundcult/listenparty/internal/api/apierr"
	"github.com/soundcult/listenparty/internal/api/request"
	"github.com/soundcult/listenparty/internal/api/response"
	"github.com/soundcult/listenparty/internal/model"
	"github.com/soundcult/listenparty/internal/session"
)

// ParticipantHandler exposes participant roster and permission operations
type ParticipantHandler struct {
	manager *session.Manager
}

// NewParticipantHandler creates a participant handler
func NewParticipantHandler(manager *session.Manager) *ParticipantHandler {
	return &ParticipantHandler{manager: manager}
}

// List handles GET /participants
func (h *ParticipantHandler) List(w http.ResponseWriter, r *http.Request) {
	active, err := requireActive(h.manager)
	if err != nil {
		apierr.WriteError(w, err)
		return
	}
	snap, err := active.Snapshot(r.Context())
	if err != nil {
		apierr.WriteError(w, err)
		return
	}
	participants := make([]response.Participant, len(snap.Participants))
	for i, p := range snap.Participants {
		participants[i] = response.ParticipantFromModel(p)
	}
	response.JSON(w, http.StatusOK, participants)
}

// SetControl handles PATCH /participants/{participant_id}/control
func (h *ParticipantHandler) SetControl(w http.ResponseWriter, r *http.Request) {
	target := model.ParticipantID(mux.Vars(r)["participant_id"])

	var req request.ControlRequest
	if err := decodeBody(r, &req); err != nil {
		apierr.WriteError(w, err)
		return
	}

	active, err := requireActive(h.manager)
	if err != nil {
		apierr.WriteError(w, err)
		return
	}

	if req.Grant {
		err = active.GrantControl(r.Context(), target)
	} else {
		err = active.RevokeControl(r.Context(), target)
	}
	if err != nil {
		apierr.WriteError(w, err)
		return
	}
	response.NoContent(w)
}
