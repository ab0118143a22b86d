package sync

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/soundcult/listenparty/internal/dependencies/mocks"
	"github.com/soundcult/listenparty/internal/model"
	"github.com/soundcult/listenparty/internal/player"
	"github.com/soundcult/listenparty/internal/session/conn"
	"github.com/soundcult/listenparty/internal/session/permission"
	"github.com/soundcult/listenparty/internal/session/queue"
	"github.com/soundcult/listenparty/internal/testutil"
	"github.com/soundcult/listenparty/internal/transport"
	"github.com/soundcult/listenparty/internal/transport/memory"
)

const (
	testCode       = model.SessionCode("SYNC42")
	remoteDeviceID = "remote-device"
)

var (
	hostProfile = model.Profile{ID: "host-1", DisplayName: "Host"}
	peerProfile = model.Profile{ID: "peer-1", DisplayName: "Peer"}

	trackA = model.Track{ID: "track-a", Title: "Track A", Artist: "Artist", DurationMs: 240_000}
	trackB = model.Track{ID: "track-b", Title: "Track B", Artist: "Artist", DurationMs: 180_000}
	trackC = model.Track{ID: "track-c", Title: "Track C", Artist: "Artist", DurationMs: 200_000}
)

type device struct {
	conn   *conn.Manager
	ctrl   *Controller
	player *player.Sim
}

type ControllerTestSuite struct {
	suite.Suite
	bus   *memory.Bus
	clock *mocks.MockClock
	tap   transport.Subscription

	devices []*device
}

func TestControllerTestSuite(t *testing.T) {
	suite.Run(t, new(ControllerTestSuite))
}

func (s *ControllerTestSuite) SetupTest() {
	s.bus = memory.New(testutil.NopLogger())
	s.clock = mocks.NewMockClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))

	tap, err := s.bus.Subscribe(context.Background(), transport.Topic(testCode))
	s.Require().NoError(err)
	s.tap = tap
	s.devices = nil
}

func (s *ControllerTestSuite) TearDownTest() {
	for _, d := range s.devices {
		d.ctrl.Stop()
		d.conn.Close()
	}
	_ = s.tap.Close()
}

func hostSession() *model.Session {
	return &model.Session{
		Code:   testCode,
		HostID: hostProfile.ID,
		Participants: []model.Participant{
			{ID: hostProfile.ID, Name: hostProfile.DisplayName, IsHost: true, CanControl: true},
		},
	}
}

func (s *ControllerTestSuite) newDevice(self model.Profile, session *model.Session, cfg Config) *device {
	logger := testutil.NopLogger()
	connCfg := conn.Config{
		BaseDelay:    5 * time.Millisecond,
		MaxDelay:     20 * time.Millisecond,
		JitterWindow: 0,
	}
	cm := conn.New(s.bus, testCode, connCfg, s.clock, mocks.NewMockRandom(), logger)
	s.Require().NoError(cm.Start())

	perm := permission.New()
	sim := player.NewSim(s.clock, logger)
	ctrl := New(cfg, self, session, cm, perm, queue.New(self.ID, perm, 0, logger), sim, nil, s.clock, logger)
	ctrl.Run()

	d := &device{conn: cm, ctrl: ctrl, player: sim}
	s.devices = append(s.devices, d)
	return d
}

func (s *ControllerTestSuite) newHost(cfg Config) *device {
	return s.newDevice(hostProfile, hostSession(), cfg)
}

// awaitEnvelope reads from the tap until a matching envelope arrives
func (s *ControllerTestSuite) awaitEnvelope(t model.MessageType, sender string) model.Envelope {
	deadline := time.After(2 * time.Second)
	for {
		select {
		case env, ok := <-s.tap.Messages():
			s.Require().True(ok, "tap subscription closed")
			if env.Type == t && (sender == "" || env.SenderID == sender) {
				return env
			}
		case <-deadline:
			s.Require().FailNowf("timed out", "no %s envelope arrived", t)
		}
	}
}

// expectNoEnvelope asserts no envelope of the given type arrives within the window
func (s *ControllerTestSuite) expectNoEnvelope(t model.MessageType, window time.Duration) {
	deadline := time.After(window)
	for {
		select {
		case env, ok := <-s.tap.Messages():
			if !ok {
				return
			}
			s.Require().NotEqual(t, env.Type, "unexpected %s envelope", t)
		case <-deadline:
			return
		}
	}
}

func (s *ControllerTestSuite) inject(t model.MessageType, payload any) {
	env, err := model.NewEnvelope(t, testCode, remoteDeviceID, s.clock.Now(), payload)
	s.Require().NoError(err)
	s.Require().NoError(s.bus.Publish(context.Background(), transport.Topic(testCode), env))
}

func (s *ControllerTestSuite) snapshot(d *device) *model.Session {
	snap, err := d.ctrl.Snapshot(context.Background())
	s.Require().NoError(err)
	return snap
}

func (s *ControllerTestSuite) eventuallySession(d *device, cond func(*model.Session) bool) {
	s.Require().Eventually(func() bool {
		return cond(s.snapshot(d))
	}, 2*time.Second, 5*time.Millisecond)
}

func (s *ControllerTestSuite) TestLocalPlayBroadcastsAndDrivesPlayer() {
	host := s.newHost(DefaultConfig())

	s.Require().NoError(host.ctrl.PlayTrack(context.Background(), trackA))

	env := s.awaitEnvelope(model.MessagePlaybackUpdate, host.ctrl.DeviceID())
	var payload model.PlaybackUpdatePayload
	s.Require().NoError(env.DecodePayload(&payload))
	s.Equal(trackA.ID, payload.State.CurrentTrack.ID)
	s.True(payload.State.IsPlaying)
	s.Equal(hostProfile.ID, payload.State.UpdatedBy)
	s.Equal(s.clock.Now(), payload.State.UpdatedAt)

	s.True(host.player.Playing())
	s.Require().NotNil(host.player.Track())
	s.Equal(trackA.ID, host.player.Track().ID)

	snap := s.snapshot(host)
	s.Require().NotNil(snap.Playback.CurrentTrack)
	s.Equal(trackA.ID, snap.Playback.CurrentTrack.ID)
}

func (s *ControllerTestSuite) TestPauseFreezesExtrapolatedPosition() {
	host := s.newHost(DefaultConfig())
	s.Require().NoError(host.ctrl.PlayTrack(context.Background(), trackA))

	s.clock.Advance(10 * time.Second)
	s.Require().NoError(host.ctrl.SetPlaying(context.Background(), false))

	snap := s.snapshot(host)
	s.False(snap.Playback.IsPlaying)
	s.Equal(int64(10_000), snap.Playback.PositionMs)
	s.False(host.player.Playing())
}

func (s *ControllerTestSuite) TestMutationWithoutControlIsRejected() {
	session := hostSession()
	session.Participants = append(session.Participants, model.Participant{
		ID: peerProfile.ID, Name: peerProfile.DisplayName,
	})
	peer := s.newDevice(peerProfile, session, DefaultConfig())

	err := peer.ctrl.SetPlaying(context.Background(), true)
	s.Require().ErrorIs(err, model.ErrPermissionDenied)
	err = peer.ctrl.AddToQueue(context.Background(), trackB)
	s.Require().ErrorIs(err, model.ErrPermissionDenied)

	s.expectNoEnvelope(model.MessagePlaybackUpdate, 50*time.Millisecond)
}

func (s *ControllerTestSuite) TestNewerRemoteUpdateWins() {
	host := s.newHost(DefaultConfig())
	s.Require().NoError(host.ctrl.PlayTrack(context.Background(), trackA))

	s.clock.Advance(time.Second)
	s.inject(model.MessagePlaybackUpdate, model.PlaybackUpdatePayload{
		State: model.PlaybackState{
			CurrentTrack: &trackB,
			IsPlaying:    false,
			PositionMs:   5_000,
			UpdatedBy:    peerProfile.ID,
			UpdatedAt:    s.clock.Now(),
		},
	})

	s.eventuallySession(host, func(snap *model.Session) bool {
		return snap.Playback.CurrentTrack != nil && snap.Playback.CurrentTrack.ID == trackB.ID
	})
	s.False(host.player.Playing())
	s.Require().NotNil(host.player.Track())
	s.Equal(trackB.ID, host.player.Track().ID)
}

func (s *ControllerTestSuite) TestStaleRemoteUpdateIsDropped() {
	host := s.newHost(DefaultConfig())
	stale := s.clock.Now().Add(-time.Minute)

	s.Require().NoError(host.ctrl.PlayTrack(context.Background(), trackA))

	s.inject(model.MessagePlaybackUpdate, model.PlaybackUpdatePayload{
		State: model.PlaybackState{
			CurrentTrack: &trackB,
			IsPlaying:    true,
			UpdatedBy:    peerProfile.ID,
			UpdatedAt:    stale,
		},
	})

	// Give the stale update time to arrive before checking it had no effect
	time.Sleep(50 * time.Millisecond)
	snap := s.snapshot(host)
	s.Require().NotNil(snap.Playback.CurrentTrack)
	s.Equal(trackA.ID, snap.Playback.CurrentTrack.ID)
}

func (s *ControllerTestSuite) TestTimestampTieBreaksOnParticipantID() {
	host := s.newHost(DefaultConfig())
	s.Require().NoError(host.ctrl.PlayTrack(context.Background(), trackA))
	at := s.snapshot(host).Playback.UpdatedAt

	// Same timestamp, higher participant ID than "host-1": wins the tie
	s.inject(model.MessagePlaybackUpdate, model.PlaybackUpdatePayload{
		State: model.PlaybackState{
			CurrentTrack: &trackB,
			IsPlaying:    true,
			UpdatedBy:    "zz-peer",
			UpdatedAt:    at,
		},
	})
	s.eventuallySession(host, func(snap *model.Session) bool {
		return snap.Playback.CurrentTrack.ID == trackB.ID
	})

	// Same timestamp, lower participant ID: dropped
	s.inject(model.MessagePlaybackUpdate, model.PlaybackUpdatePayload{
		State: model.PlaybackState{
			CurrentTrack: &trackC,
			IsPlaying:    true,
			UpdatedBy:    "aa-peer",
			UpdatedAt:    at,
		},
	})
	time.Sleep(50 * time.Millisecond)
	s.Equal(trackB.ID, s.snapshot(host).Playback.CurrentTrack.ID)
}

func (s *ControllerTestSuite) TestLocalTimestampsStrictlyIncreaseOnFrozenClock() {
	host := s.newHost(DefaultConfig())

	s.Require().NoError(host.ctrl.PlayTrack(context.Background(), trackA))
	first := s.snapshot(host).Playback.UpdatedAt
	s.Require().NoError(host.ctrl.Seek(context.Background(), 30_000))
	second := s.snapshot(host).Playback.UpdatedAt

	s.True(second.After(first))
}

func (s *ControllerTestSuite) TestHostAnswersSnapshotRequestAndAddsJoiner() {
	host := s.newHost(DefaultConfig())
	s.Require().NoError(host.ctrl.AddToQueue(context.Background(), trackB))

	s.inject(model.MessageSnapshotRequest, model.SnapshotRequestPayload{
		RequestID: "req-1",
		Joiner:    &peerProfile,
	})

	// The roster change is broadcast for peers already in the session before
	// the snapshot goes out
	update := s.awaitEnvelope(model.MessageParticipantUpdate, host.ctrl.DeviceID())
	var participants model.ParticipantUpdatePayload
	s.Require().NoError(update.DecodePayload(&participants))
	s.Len(participants.Participants, 2)

	env := s.awaitEnvelope(model.MessageSnapshotResponse, host.ctrl.DeviceID())
	var payload model.SnapshotResponsePayload
	s.Require().NoError(env.DecodePayload(&payload))
	s.Equal("req-1", payload.RequestID)
	s.Len(payload.Session.Participants, 2)
	s.Len(payload.Session.Queue, 1)

	joined := payload.Session.GetParticipant(peerProfile.ID)
	s.Require().NotNil(joined)
	s.False(joined.IsHost)
	s.False(joined.CanControl, "joiners start without control")
}

func (s *ControllerTestSuite) TestDuplicateSnapshotRequestAddsJoinerOnce() {
	host := s.newHost(DefaultConfig())

	s.inject(model.MessageSnapshotRequest, model.SnapshotRequestPayload{RequestID: "req-1", Joiner: &peerProfile})
	s.inject(model.MessageSnapshotRequest, model.SnapshotRequestPayload{RequestID: "req-2", Joiner: &peerProfile})

	s.awaitEnvelope(model.MessageSnapshotResponse, host.ctrl.DeviceID())
	s.awaitEnvelope(model.MessageSnapshotResponse, host.ctrl.DeviceID())
	s.Len(s.snapshot(host).Participants, 2)
}

func (s *ControllerTestSuite) TestNonHostIgnoresSnapshotRequests() {
	session := hostSession()
	session.Participants = append(session.Participants, model.Participant{ID: peerProfile.ID})
	s.newDevice(peerProfile, session, DefaultConfig())

	s.inject(model.MessageSnapshotRequest, model.SnapshotRequestPayload{RequestID: "req-1"})
	s.expectNoEnvelope(model.MessageSnapshotResponse, 50*time.Millisecond)
}

func (s *ControllerTestSuite) TestJoinAgainstLiveHost() {
	host := s.newHost(DefaultConfig())
	s.Require().NoError(host.ctrl.PlayTrack(context.Background(), trackA))

	joiner := s.newDevice(peerProfile, &model.Session{Code: testCode}, DefaultConfig())
	s.Require().NoError(joiner.ctrl.AwaitJoin(context.Background(), 2*time.Second))

	snap := s.snapshot(joiner)
	s.Equal(hostProfile.ID, snap.HostID)
	s.Len(snap.Participants, 2)
	s.Require().NotNil(snap.Playback.CurrentTrack)
	s.Equal(trackA.ID, snap.Playback.CurrentTrack.ID)

	// The adopted snapshot drives the joiner's player too
	s.True(joiner.player.Playing())
	s.Require().NotNil(joiner.player.Track())
	s.Equal(trackA.ID, joiner.player.Track().ID)
}

func (s *ControllerTestSuite) TestJoinTimesOutWhenNobodyAnswers() {
	joiner := s.newDevice(peerProfile, &model.Session{Code: testCode}, DefaultConfig())

	err := joiner.ctrl.AwaitJoin(context.Background(), 50*time.Millisecond)
	s.Require().ErrorIs(err, model.ErrSessionNotFound)
}

func (s *ControllerTestSuite) TestSnapshotResponseForOtherRequestIgnored() {
	host := s.newHost(DefaultConfig())

	s.inject(model.MessageSnapshotResponse, model.SnapshotResponsePayload{
		RequestID: "someone-elses",
		Session:   model.Session{Code: testCode, HostID: "impostor"},
	})

	time.Sleep(50 * time.Millisecond)
	s.Equal(hostProfile.ID, s.snapshot(host).HostID)
}

func (s *ControllerTestSuite) TestQueueOpBroadcastAndIdempotentRemoteApply() {
	host := s.newHost(DefaultConfig())

	s.Require().NoError(host.ctrl.AddToQueue(context.Background(), trackA))
	env := s.awaitEnvelope(model.MessageQueueOp, host.ctrl.DeviceID())
	var op model.QueueOpPayload
	s.Require().NoError(env.DecodePayload(&op))
	s.Equal(hostProfile.ID, op.Seq.Peer)

	remoteOp := model.QueueOpPayload{
		Seq: model.OpSeq{Peer: peerProfile.ID, Counter: 1},
		Steps: []model.QueueStep{{
			Kind:  model.QueueStepInsert,
			Index: 1,
			Item:  &model.QueueItem{Track: trackB, AddedBy: peerProfile.ID},
		}},
	}
	s.inject(model.MessageQueueOp, remoteOp)
	s.eventuallySession(host, func(snap *model.Session) bool {
		return len(snap.Queue) == 2
	})

	// Redelivery of the same op must not duplicate the item
	s.inject(model.MessageQueueOp, remoteOp)
	time.Sleep(50 * time.Millisecond)
	s.Len(s.snapshot(host).Queue, 2)
}

func (s *ControllerTestSuite) TestOpFoldedIntoSnapshotIsNotReappliedAfterJoin() {
	host := s.newHost(DefaultConfig())

	// A remote op lands on the host before the joiner arrives, so the
	// snapshot the host answers with already contains its effect
	foldedOp := model.QueueOpPayload{
		Seq: model.OpSeq{Peer: "peer-x", Counter: 1},
		Steps: []model.QueueStep{{
			Kind:  model.QueueStepInsert,
			Index: 0,
			Item:  &model.QueueItem{Track: trackB, AddedBy: "peer-x"},
		}},
	}
	s.inject(model.MessageQueueOp, foldedOp)
	s.eventuallySession(host, func(snap *model.Session) bool {
		return len(snap.Queue) == 1
	})

	joiner := s.newDevice(peerProfile, &model.Session{Code: testCode}, DefaultConfig())
	s.Require().NoError(joiner.ctrl.AwaitJoin(context.Background(), 2*time.Second))
	s.Require().Len(s.snapshot(joiner).Queue, 1)

	// At-least-once delivery can replay the op around the snapshot
	// exchange; the joiner must drop it, not stack it on the adopted queue
	s.inject(model.MessageQueueOp, foldedOp)

	// A later op from the same peer still applies, proving the replay was
	// processed and dropped rather than still in flight
	s.inject(model.MessageQueueOp, model.QueueOpPayload{
		Seq: model.OpSeq{Peer: "peer-x", Counter: 2},
		Steps: []model.QueueStep{{
			Kind:  model.QueueStepInsert,
			Index: 1,
			Item:  &model.QueueItem{Track: trackC, AddedBy: "peer-x"},
		}},
	})

	s.eventuallySession(joiner, func(snap *model.Session) bool {
		return len(snap.Queue) == 2
	})
	snap := s.snapshot(joiner)
	s.Equal(trackB.ID, snap.Queue[0].Track.ID)
	s.Equal(trackC.ID, snap.Queue[1].Track.ID)

	// Host and joiner converge on the same queue
	s.eventuallySession(host, func(snap *model.Session) bool {
		return len(snap.Queue) == 2
	})
}

func (s *ControllerTestSuite) TestSkipPlaysQueueHead() {
	host := s.newHost(DefaultConfig())
	s.Require().NoError(host.ctrl.AddToQueue(context.Background(), trackA))
	s.Require().NoError(host.ctrl.AddToQueue(context.Background(), trackB))

	s.Require().NoError(host.ctrl.Skip(context.Background()))

	snap := s.snapshot(host)
	s.Require().NotNil(snap.Playback.CurrentTrack)
	s.Equal(trackA.ID, snap.Playback.CurrentTrack.ID)
	s.True(snap.Playback.IsPlaying)
	s.Require().Len(snap.Queue, 1)
	s.Equal(trackB.ID, snap.Queue[0].Track.ID)

	s.awaitEnvelope(model.MessageQueueOp, host.ctrl.DeviceID())
}

func (s *ControllerTestSuite) TestSkipEmptyQueue() {
	host := s.newHost(DefaultConfig())
	err := host.ctrl.Skip(context.Background())
	s.Require().ErrorIs(err, model.ErrQueueEmpty)
}

func (s *ControllerTestSuite) TestGrantAndRevokeControl() {
	session := hostSession()
	session.Participants = append(session.Participants, model.Participant{
		ID: peerProfile.ID, Name: peerProfile.DisplayName,
	})
	host := s.newDevice(hostProfile, session, DefaultConfig())

	s.Require().NoError(host.ctrl.GrantControl(context.Background(), peerProfile.ID))
	env := s.awaitEnvelope(model.MessageParticipantUpdate, host.ctrl.DeviceID())
	var payload model.ParticipantUpdatePayload
	s.Require().NoError(env.DecodePayload(&payload))
	s.True(s.snapshot(host).GetParticipant(peerProfile.ID).CanControl)

	s.Require().NoError(host.ctrl.RevokeControl(context.Background(), peerProfile.ID))
	s.False(s.snapshot(host).GetParticipant(peerProfile.ID).CanControl)

	err := host.ctrl.RevokeControl(context.Background(), hostProfile.ID)
	s.Require().ErrorIs(err, model.ErrPermissionDenied, "host control is irrevocable")
}

func (s *ControllerTestSuite) TestGrantRequiresHost() {
	session := hostSession()
	session.Participants = append(session.Participants, model.Participant{ID: peerProfile.ID})
	peer := s.newDevice(peerProfile, session, DefaultConfig())

	err := peer.ctrl.GrantControl(context.Background(), peerProfile.ID)
	s.Require().ErrorIs(err, model.ErrNotHost)
}

func (s *ControllerTestSuite) TestParticipantUpdateReplacesRoster() {
	host := s.newHost(DefaultConfig())

	s.inject(model.MessageParticipantUpdate, model.ParticipantUpdatePayload{
		Participants: []model.Participant{
			{ID: hostProfile.ID, IsHost: true, CanControl: false},
			{ID: peerProfile.ID, CanControl: true},
		},
	})

	s.eventuallySession(host, func(snap *model.Session) bool {
		return len(snap.Participants) == 2
	})
	// A remote update can never strip the host's control
	s.True(s.snapshot(host).GetParticipant(hostProfile.ID).CanControl)
}

func (s *ControllerTestSuite) TestSessionEndStopsPlaybackAndSignals() {
	host := s.newHost(DefaultConfig())
	s.Require().NoError(host.ctrl.PlayTrack(context.Background(), trackA))

	s.inject(model.MessageSessionEnd, model.SessionEndPayload{Reason: "host left"})

	select {
	case <-host.ctrl.Ended():
	case <-time.After(2 * time.Second):
		s.Require().FailNow("Ended was not signalled")
	}
	s.False(host.player.Playing())
}

func (s *ControllerTestSuite) TestEndSessionBroadcastsAndRequiresHost() {
	session := hostSession()
	session.Participants = append(session.Participants, model.Participant{ID: peerProfile.ID})
	peer := s.newDevice(peerProfile, session, DefaultConfig())
	s.Require().ErrorIs(peer.ctrl.EndSession(context.Background()), model.ErrNotHost)

	host := s.newHost(DefaultConfig())
	s.Require().NoError(host.ctrl.EndSession(context.Background()))
	s.awaitEnvelope(model.MessageSessionEnd, host.ctrl.DeviceID())

	select {
	case <-host.ctrl.Ended():
	case <-time.After(2 * time.Second):
		s.Require().FailNow("Ended was not signalled")
	}
}

func (s *ControllerTestSuite) TestAnnounceLeaveBroadcastsRoster() {
	session := hostSession()
	session.Participants = append(session.Participants, model.Participant{
		ID: peerProfile.ID, Name: peerProfile.DisplayName,
	})
	peer := s.newDevice(peerProfile, session, DefaultConfig())

	s.Require().NoError(peer.ctrl.AnnounceLeave(context.Background()))

	env := s.awaitEnvelope(model.MessageParticipantUpdate, peer.ctrl.DeviceID())
	var payload model.ParticipantUpdatePayload
	s.Require().NoError(env.DecodePayload(&payload))
	s.Require().Len(payload.Participants, 1)
	s.Equal(hostProfile.ID, payload.Participants[0].ID)

	// Leaving again is a no-op, not an error
	s.Require().NoError(peer.ctrl.AnnounceLeave(context.Background()))
}

func (s *ControllerTestSuite) TestDriftCorrectionSeeksWithoutBroadcasting() {
	cfg := DefaultConfig()
	cfg.DriftInterval = 10 * time.Millisecond
	cfg.DriftThresholdMs = 200
	host := s.newHost(cfg)

	s.Require().NoError(host.ctrl.PlayTrack(context.Background(), trackA))
	// Drain the play broadcast so expectNoEnvelope below only sees new traffic
	s.awaitEnvelope(model.MessagePlaybackUpdate, host.ctrl.DeviceID())

	// Simulate the player wandering ahead of the authoritative position
	host.player.Seek(5_000)

	s.Require().Eventually(func() bool {
		drift := host.player.PositionMs() - s.snapshot(host).Playback.PositionAt(s.clock.Now())
		return drift < 200 && drift > -200
	}, 2*time.Second, 5*time.Millisecond, "drift was never corrected")

	// Corrective seeks are local only
	s.expectNoEnvelope(model.MessagePlaybackUpdate, 50*time.Millisecond)
}

func (s *ControllerTestSuite) TestSmallDriftIsLeftAlone() {
	cfg := DefaultConfig()
	cfg.DriftInterval = 10 * time.Millisecond
	cfg.DriftThresholdMs = 2_000
	host := s.newHost(cfg)

	s.Require().NoError(host.ctrl.PlayTrack(context.Background(), trackA))
	host.player.SetSkew(500)

	time.Sleep(100 * time.Millisecond)
	s.Equal(int64(500), host.player.PositionMs(), "sub-threshold drift must not be corrected")
}

func (s *ControllerTestSuite) TestReconnectRequestsFreshSnapshot() {
	host := s.newHost(DefaultConfig())

	s.bus.KillTopic(transport.Topic(testCode), context.DeadlineExceeded)

	// The tap died with the topic; resubscribe to observe post-reconnect traffic
	tap, err := s.bus.Subscribe(context.Background(), transport.Topic(testCode))
	s.Require().NoError(err)
	_ = s.tap.Close()
	s.tap = tap

	env := s.awaitEnvelope(model.MessageSnapshotRequest, host.ctrl.DeviceID())
	var payload model.SnapshotRequestPayload
	s.Require().NoError(env.DecodePayload(&payload))
	s.Nil(payload.Joiner, "a resync request is not a join")
}

func (s *ControllerTestSuite) TestHostAutofetchesWhenQueueRunsLow() {
	cfg := DefaultConfig()
	cfg.DriftInterval = 10 * time.Millisecond
	cfg.AutofetchCount = 2

	logger := testutil.NopLogger()
	connCfg := conn.Config{BaseDelay: 5 * time.Millisecond, MaxDelay: 20 * time.Millisecond}
	cm := conn.New(s.bus, testCode, connCfg, s.clock, mocks.NewMockRandom(), logger)
	s.Require().NoError(cm.Start())

	perm := permission.New()
	sim := player.NewSim(s.clock, logger)
	radioSrc := &stubRadio{tracks: []model.Track{trackB, trackC}}
	ctrl := New(cfg, hostProfile, hostSession(), cm, perm, queue.New(hostProfile.ID, perm, 3, logger), sim, radioSrc, s.clock, logger)
	ctrl.Run()
	s.devices = append(s.devices, &device{conn: cm, ctrl: ctrl, player: sim})

	s.Require().NoError(ctrl.PlayTrack(context.Background(), trackA))

	s.Require().Eventually(func() bool {
		snap, err := ctrl.Snapshot(context.Background())
		s.Require().NoError(err)
		return len(snap.Queue) >= 2
	}, 2*time.Second, 5*time.Millisecond, "radio autofetch never filled the queue")

	// Autofetched tracks are broadcast like any other queue mutation
	s.awaitEnvelope(model.MessageQueueOp, ctrl.DeviceID())
}

func (s *ControllerTestSuite) TestTwoControllersConverge() {
	host := s.newHost(DefaultConfig())
	s.Require().NoError(host.ctrl.PlayTrack(context.Background(), trackA))

	joiner := s.newDevice(peerProfile, &model.Session{Code: testCode}, DefaultConfig())
	s.Require().NoError(joiner.ctrl.AwaitJoin(context.Background(), 2*time.Second))

	// Host sees the joiner arrive
	s.eventuallySession(host, func(snap *model.Session) bool {
		return snap.GetParticipant(peerProfile.ID) != nil
	})

	// Grant the joiner control and have them pause; the host converges
	s.Require().NoError(host.ctrl.GrantControl(context.Background(), peerProfile.ID))
	s.eventuallySession(joiner, func(snap *model.Session) bool {
		p := snap.GetParticipant(peerProfile.ID)
		return p != nil && p.CanControl
	})

	s.clock.Advance(time.Second)
	s.Require().NoError(joiner.ctrl.SetPlaying(context.Background(), false))
	s.eventuallySession(host, func(snap *model.Session) bool {
		return !snap.Playback.IsPlaying
	})
	s.False(host.player.Playing())
}

type stubRadio struct {
	tracks []model.Track
}

func (r *stubRadio) NextTracks(_ context.Context, _ *model.Track, n int) ([]model.Track, error) {
	if n > len(r.tracks) {
		n = len(r.tracks)
	}
	return r.tracks[:n], nil
}
