package api

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/soundcult/listenparty/internal/api/handler"
	apimiddleware "github.com/soundcult/listenparty/internal/api/middleware"
	"github.com/soundcult/listenparty/internal/dependencies/clock"
	"github.com/soundcult/listenparty/internal/middleware"
	"github.com/soundcult/listenparty/internal/model"
	"github.com/soundcult/listenparty/internal/session"
)

// RouterConfig holds configuration for the API router
type RouterConfig struct {
	Logger         *slog.Logger
	SessionManager *session.Manager
	Profile        model.Profile
	Clock          clock.Clock
}

// NewRouter creates the local API router. The daemon listens on loopback
// only, so there is no authentication layer: anything that can reach the
// socket is the device's own user.
func NewRouter(cfg RouterConfig) http.Handler {
	r := mux.NewRouter()

	sessionHandler := handler.NewSessionHandler(cfg.SessionManager, cfg.Profile, cfg.Clock)
	playbackHandler := handler.NewPlaybackHandler(cfg.SessionManager, cfg.Clock)
	queueHandler := handler.NewQueueHandler(cfg.SessionManager)
	participantHandler := handler.NewParticipantHandler(cfg.SessionManager)
	eventsHandler := handler.NewEventsHandler(cfg.SessionManager, cfg.Clock)

	recoveryMiddleware := apimiddleware.Recovery(cfg.Logger)
	loggingMiddleware := middleware.Logging(cfg.Logger)

	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(recoveryMiddleware)
	api.Use(loggingMiddleware)

	// Session lifecycle
	api.HandleFunc("/session", sessionHandler.Create).Methods(http.MethodPost)
	api.HandleFunc("/session", sessionHandler.Get).Methods(http.MethodGet)
	api.HandleFunc("/session", sessionHandler.Leave).Methods(http.MethodDelete)
	api.HandleFunc("/session/join", sessionHandler.Join).Methods(http.MethodPost)
	api.HandleFunc("/session/connection", sessionHandler.Connection).Methods(http.MethodGet)
	api.HandleFunc("/session/events", eventsHandler.Stream).Methods(http.MethodGet)

	// Playback control
	api.HandleFunc("/playback", playbackHandler.Get).Methods(http.MethodGet)
	api.HandleFunc("/playback/play", playbackHandler.Play).Methods(http.MethodPost)
	api.HandleFunc("/playback/pause", playbackHandler.Pause).Methods(http.MethodPost)
	api.HandleFunc("/playback/seek", playbackHandler.Seek).Methods(http.MethodPost)
	api.HandleFunc("/playback/track", playbackHandler.PlayTrack).Methods(http.MethodPost)
	api.HandleFunc("/playback/skip", playbackHandler.Skip).Methods(http.MethodPost)

	// Shared queue
	api.HandleFunc("/queue", queueHandler.Get).Methods(http.MethodGet)
	api.HandleFunc("/queue", queueHandler.Add).Methods(http.MethodPost)
	api.HandleFunc("/queue/{index}", queueHandler.Remove).Methods(http.MethodDelete)
	api.HandleFunc("/queue/move", queueHandler.Move).Methods(http.MethodPost)

	// Participants and permissions
	api.HandleFunc("/participants", participantHandler.List).Methods(http.MethodGet)
	api.HandleFunc("/participants/{participant_id}/control", participantHandler.SetControl).Methods(http.MethodPatch)

	// Health check endpoint
	api.HandleFunc("/health", healthHandler).Methods(http.MethodGet)

	return r
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
