package response

import (
	"time"

	"github.com/soundcult/listenparty/internal/model"
)

// Track represents a track in API responses
type Track struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	Artist     string `json:"artist"`
	Thumbnail  string `json:"thumbnail,omitempty"`
	DurationMs int64  `json:"duration_ms"`
}

// TrackFromModel converts a model.Track to a response Track
func TrackFromModel(t model.Track) Track {
	return Track{
		ID:         string(t.ID),
		Title:      t.Title,
		Artist:     t.Artist,
		Thumbnail:  t.Thumbnail,
		DurationMs: t.DurationMs,
	}
}

// QueueItem represents one queued track
type QueueItem struct {
	Track   Track  `json:"track"`
	AddedBy string `json:"added_by"`
}

// QueueItemFromModel converts model.QueueItem
func QueueItemFromModel(item model.QueueItem) QueueItem {
	return QueueItem{
		Track:   TrackFromModel(item.Track),
		AddedBy: string(item.AddedBy),
	}
}

// Participant represents a session participant
type Participant struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	PhotoURL   string `json:"photo_url,omitempty"`
	IsHost     bool   `json:"is_host"`
	CanControl bool   `json:"can_control"`
}

// ParticipantFromModel converts model.Participant
func ParticipantFromModel(p model.Participant) Participant {
	return Participant{
		ID:         string(p.ID),
		Name:       p.Name,
		PhotoURL:   p.PhotoURL,
		IsHost:     p.IsHost,
		CanControl: p.CanControl,
	}
}

// Playback represents the shared playback state. PositionMs is the position
// extrapolated to render time, not the stored anchor.
type Playback struct {
	CurrentTrack *Track    `json:"current_track"`
	IsPlaying    bool      `json:"is_playing"`
	PositionMs   int64     `json:"position_ms"`
	UpdatedBy    string    `json:"updated_by,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// PlaybackFromModel converts model.PlaybackState, extrapolating position to now
func PlaybackFromModel(p model.PlaybackState, now time.Time) Playback {
	var track *Track
	if p.CurrentTrack != nil {
		t := TrackFromModel(*p.CurrentTrack)
		track = &t
	}
	return Playback{
		CurrentTrack: track,
		IsPlaying:    p.IsPlaying,
		PositionMs:   p.PositionAt(now),
		UpdatedBy:    string(p.UpdatedBy),
		UpdatedAt:    p.UpdatedAt,
	}
}

// Session represents a session in API responses
type Session struct {
	Code         string        `json:"code"`
	HostID       string        `json:"host_id"`
	HostName     string        `json:"host_name,omitempty"`
	Participants []Participant `json:"participants"`
	Queue        []QueueItem   `json:"queue"`
	Playback     Playback      `json:"playback"`
	CreatedAt    time.Time     `json:"created_at"`
}

// SessionFromModel converts model.Session
func SessionFromModel(s *model.Session, now time.Time) Session {
	participants := make([]Participant, len(s.Participants))
	for i, p := range s.Participants {
		participants[i] = ParticipantFromModel(p)
	}
	queue := make([]QueueItem, len(s.Queue))
	for i, item := range s.Queue {
		queue[i] = QueueItemFromModel(item)
	}
	return Session{
		Code:         string(s.Code),
		HostID:       string(s.HostID),
		HostName:     s.HostName,
		Participants: participants,
		Queue:        queue,
		Playback:     PlaybackFromModel(s.Playback, now),
		CreatedAt:    s.CreatedAt,
	}
}

// Connection represents the session transport connection state
type Connection struct {
	Status           string `json:"status"`
	Attempt          int    `json:"attempt,omitempty"`
	NextRetrySeconds int    `json:"next_retry_seconds,omitempty"`
}

// ConnectionFromModel converts model.ConnectionState
func ConnectionFromModel(s model.ConnectionState) Connection {
	return Connection{
		Status:           string(s.Status),
		Attempt:          s.Attempt,
		NextRetrySeconds: s.NextRetrySeconds,
	}
}

// Queue is the response for queue listing
type Queue struct {
	Items []QueueItem `json:"items"`
}
