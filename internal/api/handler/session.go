package handler

import (
	"encoding/json"
	"net/http"

	"github.com/soundcult/listenparty/internal/api/apierr"
	"github.com/soundcult/listenparty/internal/api/request"
	"github.com/soundcult/listenparty/internal/api/response"
	"github.com/soundcult/listenparty/internal/dependencies/clock"
	"github.com/soundcult/listenparty/internal/model"
	"github.com/soundcult/listenparty/internal/session"
)

// SessionHandler exposes session lifecycle operations over the local API.
// The daemon owns the device's profile; requests may override the display
// name but never the participant identity.
type SessionHandler struct {
	manager *session.Manager
	profile model.Profile
	clock   clock.Clock
}

// NewSessionHandler creates a session handler
func NewSessionHandler(manager *session.Manager, profile model.Profile, clk clock.Clock) *SessionHandler {
	return &SessionHandler{
		manager: manager,
		profile: profile,
		clock:   clk,
	}
}

// Create handles POST /session
func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req request.CreateSessionRequest
	if err := decodeBody(r, &req); err != nil {
		apierr.WriteError(w, err)
		return
	}

	active, err := h.manager.Create(r.Context(), h.profileFor(req.DisplayName))
	if err != nil {
		apierr.WriteError(w, err)
		return
	}

	h.writeSnapshot(w, r, active, http.StatusCreated)
}

// Join handles POST /session/join
func (h *SessionHandler) Join(w http.ResponseWriter, r *http.Request) {
	var req request.JoinSessionRequest
	if err := decodeBody(r, &req); err != nil {
		apierr.WriteError(w, err)
		return
	}
	if req.Code == "" {
		apierr.WriteError(w, apierr.NewInvalidRequestError("code is required"))
		return
	}

	active, err := h.manager.Join(r.Context(), req.Code, h.profileFor(req.DisplayName))
	if err != nil {
		apierr.WriteError(w, err)
		return
	}

	h.writeSnapshot(w, r, active, http.StatusOK)
}

// Get handles GET /session
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	active := h.manager.Current()
	if active == nil {
		apierr.WriteError(w, model.ErrNotInSession)
		return
	}
	h.writeSnapshot(w, r, active, http.StatusOK)
}

// Leave handles DELETE /session
func (h *SessionHandler) Leave(w http.ResponseWriter, r *http.Request) {
	if err := h.manager.Leave(r.Context()); err != nil {
		apierr.WriteError(w, err)
		return
	}
	response.NoContent(w)
}

// Connection handles GET /session/connection
func (h *SessionHandler) Connection(w http.ResponseWriter, r *http.Request) {
	active := h.manager.Current()
	if active == nil {
		apierr.WriteError(w, model.ErrNotInSession)
		return
	}
	response.JSON(w, http.StatusOK, response.ConnectionFromModel(active.ConnectionState()))
}

func (h *SessionHandler) writeSnapshot(w http.ResponseWriter, r *http.Request, active *session.Active, status int) {
	snap, err := active.Snapshot(r.Context())
	if err != nil {
		apierr.WriteError(w, err)
		return
	}
	response.JSON(w, status, response.SessionFromModel(snap, h.clock.Now()))
}

func (h *SessionHandler) profileFor(displayName string) model.Profile {
	profile := h.profile
	if displayName != "" {
		profile.DisplayName = displayName
	}
	return profile
}

// decodeBody decodes a JSON request body, tolerating an empty body
func decodeBody(r *http.Request, target any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	if err := json.NewDecoder(r.Body).Decode(target); err != nil {
		return apierr.NewInvalidRequestError("invalid JSON body")
	}
	return nil
}

// requireActive resolves the current session handle or fails with NotInSession
func requireActive(manager *session.Manager) (*session.Active, error) {
	active := manager.Current()
	if active == nil {
		return nil, model.ErrNotInSession
	}
	return active, nil
}
