package handler

import (
	"net/http"

	"github.com/soundcult/listenparty/internal/api/apierr"
	"github.com/soundcult/listenparty/internal/api/request"
	"github.com/soundcult/listenparty/internal/api/response"
	"github.com/soundcult/listenparty/internal/dependencies/clock"
	"github.com/soundcult/listenparty/internal/model"
	"github.com/soundcult/listenparty/internal/session"
)

// PlaybackHandler exposes playback control operations
type PlaybackHandler struct {
	manager *session.Manager
	clock   clock.Clock
}

// NewPlaybackHandler creates a playback handler
func NewPlaybackHandler(manager *session.Manager, clk clock.Clock) *PlaybackHandler {
	return &PlaybackHandler{manager: manager, clock: clk}
}

// Play handles POST /playback/play
func (h *PlaybackHandler) Play(w http.ResponseWriter, r *http.Request) {
	h.setPlaying(w, r, true)
}

// Pause handles POST /playback/pause
func (h *PlaybackHandler) Pause(w http.ResponseWriter, r *http.Request) {
	h.setPlaying(w, r, false)
}

// Seek handles POST /playback/seek
func (h *PlaybackHandler) Seek(w http.ResponseWriter, r *http.Request) {
	var req request.SeekRequest
	if err := decodeBody(r, &req); err != nil {
		apierr.WriteError(w, err)
		return
	}
	if req.PositionMs < 0 {
		apierr.WriteError(w, apierr.NewInvalidRequestError("position_ms must not be negative"))
		return
	}

	active, err := requireActive(h.manager)
	if err != nil {
		apierr.WriteError(w, err)
		return
	}
	if err := active.Seek(r.Context(), req.PositionMs); err != nil {
		apierr.WriteError(w, err)
		return
	}
	h.writePlayback(w, r, active)
}

// PlayTrack handles POST /playback/track
func (h *PlaybackHandler) PlayTrack(w http.ResponseWriter, r *http.Request) {
	var req request.PlayTrackRequest
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
	if err := active.PlayTrack(r.Context(), track); err != nil {
		apierr.WriteError(w, err)
		return
	}
	h.writePlayback(w, r, active)
}

// Skip handles POST /playback/skip
func (h *PlaybackHandler) Skip(w http.ResponseWriter, r *http.Request) {
	active, err := requireActive(h.manager)
	if err != nil {
		apierr.WriteError(w, err)
		return
	}
	if err := active.Skip(r.Context()); err != nil {
		apierr.WriteError(w, err)
		return
	}
	h.writePlayback(w, r, active)
}

// Get handles GET /playback
func (h *PlaybackHandler) Get(w http.ResponseWriter, r *http.Request) {
	active, err := requireActive(h.manager)
	if err != nil {
		apierr.WriteError(w, err)
		return
	}
	h.writePlayback(w, r, active)
}

func (h *PlaybackHandler) setPlaying(w http.ResponseWriter, r *http.Request, playing bool) {
	active, err := requireActive(h.manager)
	if err != nil {
		apierr.WriteError(w, err)
		return
	}
	if err := active.SetPlaying(r.Context(), playing); err != nil {
		apierr.WriteError(w, err)
		return
	}
	h.writePlayback(w, r, active)
}

func (h *PlaybackHandler) writePlayback(w http.ResponseWriter, r *http.Request, active *session.Active) {
	snap, err := active.Snapshot(r.Context())
	if err != nil {
		apierr.WriteError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, response.PlaybackFromModel(snap.Playback, h.clock.Now()))
}

// trackFromRequest validates and converts a request track
func trackFromRequest(t request.Track) (model.Track, error) {
	if t.ID == "" {
		return model.Track{}, apierr.NewInvalidRequestError("track.id is required")
	}
	if t.DurationMs < 0 {
		return model.Track{}, apierr.NewInvalidRequestError("track.duration_ms must not be negative")
	}
	return model.Track{
		ID:         model.TrackID(t.ID),
		Title:      t.Title,
		Artist:     t.Artist,
		Thumbnail:  t.Thumbnail,
		DurationMs: t.DurationMs,
	}, nil
}
