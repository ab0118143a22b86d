package permission

import (
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/soundcult/listenparty/internal/model"
)

type ModelSuite struct {
	suite.Suite
	perm    *Model
	session *model.Session
}

func TestModelSuite(t *testing.T) {
	suite.Run(t, new(ModelSuite))
}

func (s *ModelSuite) SetupTest() {
	s.perm = New()
	s.session = &model.Session{
		Code:   "AB12CD",
		HostID: "host-1",
		Participants: []model.Participant{
			{ID: "host-1", Name: "Host", IsHost: true, CanControl: true},
			{ID: "guest-1", Name: "Guest", IsHost: false, CanControl: false},
		},
	}
}

func (s *ModelSuite) TestHostAlwaysHasControl() {
	s.True(s.perm.CanMutatePlayback(s.session, "host-1"))
	s.True(s.perm.CanMutateQueue(s.session, "host-1"))
}

func (s *ModelSuite) TestGuestWithoutGrantCannotMutate() {
	s.False(s.perm.CanMutatePlayback(s.session, "guest-1"))
	s.False(s.perm.CanMutateQueue(s.session, "guest-1"))
}

func (s *ModelSuite) TestUnknownParticipantCannotMutate() {
	s.False(s.perm.CanMutatePlayback(s.session, "stranger"))
}

func (s *ModelSuite) TestGrantEnablesControl() {
	err := s.perm.Grant(s.session, "host-1", "guest-1")
	s.Require().NoError(err)

	s.True(s.perm.CanMutatePlayback(s.session, "guest-1"))
	s.True(s.perm.CanMutateQueue(s.session, "guest-1"))
}

func (s *ModelSuite) TestRevokeDisablesControl() {
	s.Require().NoError(s.perm.Grant(s.session, "host-1", "guest-1"))
	s.Require().NoError(s.perm.Revoke(s.session, "host-1", "guest-1"))

	s.False(s.perm.CanMutatePlayback(s.session, "guest-1"))
}

func (s *ModelSuite) TestNonHostCannotGrant() {
	err := s.perm.Grant(s.session, "guest-1", "guest-1")
	s.ErrorIs(err, model.ErrNotHost)
	s.False(s.perm.CanMutatePlayback(s.session, "guest-1"))
}

func (s *ModelSuite) TestGrantUnknownTargetFails() {
	err := s.perm.Grant(s.session, "host-1", "stranger")
	s.ErrorIs(err, model.ErrParticipantNotFound)
}

func (s *ModelSuite) TestHostControlCannotBeRevoked() {
	err := s.perm.Revoke(s.session, "host-1", "host-1")
	s.ErrorIs(err, model.ErrNotHost)
	s.True(s.perm.CanMutatePlayback(s.session, "host-1"))
}

func (s *ModelSuite) TestNormalizeRestoresHostControl() {
	s.session.Participants[0].CanControl = false

	s.perm.Normalize(s.session)

	s.True(s.session.Participants[0].CanControl)
}
