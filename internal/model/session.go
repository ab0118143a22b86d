package model

import (
	"strings"
	"time"
)

// SessionCode is the short human-enterable identifier for joining sessions.
// Codes are case-insensitive on input and stored/displayed uppercase.
type SessionCode string

// NormalizeCode uppercases a user-entered session code
func NormalizeCode(raw string) SessionCode {
	return SessionCode(strings.ToUpper(strings.TrimSpace(raw)))
}

// ParticipantID is the opaque identity supplied by the external identity provider
type ParticipantID string

// Profile is the slice of external identity the session core consumes
type Profile struct {
	ID          ParticipantID `json:"id"`
	DisplayName string        `json:"display_name"`
	PhotoURL    string        `json:"photo_url,omitempty"`
}

// Participant is a device's user within a session
type Participant struct {
	ID         ParticipantID `json:"id"`
	Name       string        `json:"name"`
	PhotoURL   string        `json:"photo_url,omitempty"`
	IsHost     bool          `json:"is_host"`
	CanControl bool          `json:"can_control"`
}

// Session is the shared listening context. Exactly one participant has
// IsHost set, and that participant is always HostID.
type Session struct {
	Code         SessionCode   `json:"code"`
	HostID       ParticipantID `json:"host_id"`
	HostName     string        `json:"host_name"`
	Participants []Participant `json:"participants"`
	Queue        []QueueItem   `json:"queue"`
	Playback     PlaybackState `json:"playback"`
	CreatedAt    time.Time     `json:"created_at"`
}

// GetParticipant returns the participant with the given ID, or nil if absent
func (s *Session) GetParticipant(id ParticipantID) *Participant {
	for i := range s.Participants {
		if s.Participants[i].ID == id {
			return &s.Participants[i]
		}
	}
	return nil
}

// Host returns the host participant, or nil if none
func (s *Session) Host() *Participant {
	for i := range s.Participants {
		if s.Participants[i].IsHost {
			return &s.Participants[i]
		}
	}
	return nil
}

// RemoveParticipant removes the participant with the given ID, reporting
// whether anything changed
func (s *Session) RemoveParticipant(id ParticipantID) bool {
	for i := range s.Participants {
		if s.Participants[i].ID == id {
			s.Participants = append(s.Participants[:i], s.Participants[i+1:]...)
			return true
		}
	}
	return false
}

// Clone returns a deep copy of the session. Observers only ever see clones;
// the sync controller is the sole mutator of the live value.
func (s *Session) Clone() *Session {
	out := *s
	out.Participants = make([]Participant, len(s.Participants))
	copy(out.Participants, s.Participants)
	out.Queue = make([]QueueItem, len(s.Queue))
	copy(out.Queue, s.Queue)
	if s.Playback.CurrentTrack != nil {
		track := *s.Playback.CurrentTrack
		out.Playback.CurrentTrack = &track
	}
	return &out
}
