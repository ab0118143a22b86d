package permission

import (
	"github.com/soundcult/listenparty/internal/model"
)

// Model answers who may mutate shared playback and queue state. It is pure
// data plus validation over a participant list; it performs no I/O and the
// sync controller is responsible for broadcasting any change it makes.
type Model struct{}

// New creates a permission model
func New() *Model {
	return &Model{}
}

// CanMutatePlayback reports whether the participant may issue playback
// commands: always true for the host, otherwise gated on CanControl.
func (m *Model) CanMutatePlayback(s *model.Session, id model.ParticipantID) bool {
	p := s.GetParticipant(id)
	if p == nil {
		return false
	}
	return p.IsHost || p.CanControl
}

// CanMutateQueue reports whether the participant may edit the queue.
// The rule is currently identical to playback control.
func (m *Model) CanMutateQueue(s *model.Session, id model.ParticipantID) bool {
	return m.CanMutatePlayback(s, id)
}

// Grant sets CanControl for the target participant. Only the host may grant.
func (m *Model) Grant(s *model.Session, requester, target model.ParticipantID) error {
	return m.setControl(s, requester, target, true)
}

// Revoke clears CanControl for the target participant. Only the host may
// revoke, and the host's own control can never be revoked.
func (m *Model) Revoke(s *model.Session, requester, target model.ParticipantID) error {
	return m.setControl(s, requester, target, false)
}

func (m *Model) setControl(s *model.Session, requester, target model.ParticipantID, canControl bool) error {
	host := s.Host()
	if host == nil || host.ID != requester {
		return model.ErrNotHost
	}

	p := s.GetParticipant(target)
	if p == nil {
		return model.ErrParticipantNotFound
	}

	// The host invariant: host always has control
	if p.IsHost && !canControl {
		return model.ErrNotHost
	}

	p.CanControl = canControl
	return nil
}

// Normalize enforces the permission invariants on a session received from a
// remote peer: the host always has CanControl set. Snapshots and participant
// updates pass through here before being trusted.
func (m *Model) Normalize(s *model.Session) {
	for i := range s.Participants {
		if s.Participants[i].IsHost {
			s.Participants[i].CanControl = true
		}
	}
}
