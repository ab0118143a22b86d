package notify

import (
	"log/slog"

	"github.com/soundcult/listenparty/internal/model"
)

// Notifier surfaces session events to whatever foreground the device has.
// The daemon logs them; a UI client would raise toasts instead.
type Notifier interface {
	ParticipantJoined(p model.Participant)
	ParticipantLeft(p model.Participant)
	TrackChanged(t model.Track)
	SessionEnded(reason string)
}

// Log is a Notifier that writes events to the structured log
type Log struct {
	logger *slog.Logger
}

var _ Notifier = (*Log)(nil)

// NewLog creates a logging notifier
func NewLog(logger *slog.Logger) *Log {
	return &Log{logger: logger.With(slog.String("component", "notify"))}
}

func (n *Log) ParticipantJoined(p model.Participant) {
	n.logger.Info("participant joined",
		slog.String("participant_id", string(p.ID)),
		slog.String("name", p.Name))
}

func (n *Log) ParticipantLeft(p model.Participant) {
	n.logger.Info("participant left",
		slog.String("participant_id", string(p.ID)),
		slog.String("name", p.Name))
}

func (n *Log) TrackChanged(t model.Track) {
	n.logger.Info("now playing",
		slog.String("track_id", string(t.ID)),
		slog.String("title", t.Title),
		slog.String("artist", t.Artist))
}

func (n *Log) SessionEnded(reason string) {
	n.logger.Info("session ended", slog.String("reason", reason))
}

// Nop is a Notifier that discards all events
type Nop struct{}

var _ Notifier = (*Nop)(nil)

func (Nop) ParticipantJoined(model.Participant) {}
func (Nop) ParticipantLeft(model.Participant)   {}
func (Nop) TrackChanged(model.Track)            {}
func (Nop) SessionEnded(string)                 {}
