package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/soundcult/listenparty/internal/model"
	"github.com/soundcult/listenparty/internal/testutil"
	"github.com/soundcult/listenparty/internal/transport"
)

type BusSuite struct {
	suite.Suite
	bus *Bus
	ctx context.Context
}

func TestBusSuite(t *testing.T) {
	suite.Run(t, new(BusSuite))
}

func (s *BusSuite) SetupTest() {
	s.bus = New(testutil.NopLogger())
	s.ctx = context.Background()
}

func (s *BusSuite) envelope(t model.MessageType) model.Envelope {
	env, err := model.NewEnvelope(t, "AB12CD", "sender-1", time.Now(), nil)
	s.Require().NoError(err)
	return env
}

func (s *BusSuite) receive(sub transport.Subscription) model.Envelope {
	select {
	case env, ok := <-sub.Messages():
		s.Require().True(ok, "subscription closed unexpectedly")
		return env
	case <-time.After(time.Second):
		s.FailNow("timed out waiting for envelope")
		return model.Envelope{}
	}
}

func (s *BusSuite) TestPublishReachesAllSubscribers() {
	topic := transport.Topic("AB12CD")
	sub1, err := s.bus.Subscribe(s.ctx, topic)
	s.Require().NoError(err)
	sub2, err := s.bus.Subscribe(s.ctx, topic)
	s.Require().NoError(err)

	env := s.envelope(model.MessagePlaybackUpdate)
	s.Require().NoError(s.bus.Publish(s.ctx, topic, env))

	s.Equal(model.MessagePlaybackUpdate, s.receive(sub1).Type)
	s.Equal(model.MessagePlaybackUpdate, s.receive(sub2).Type)
}

func (s *BusSuite) TestPublishDoesNotCrossTopics() {
	subA, err := s.bus.Subscribe(s.ctx, transport.Topic("AAAAAA"))
	s.Require().NoError(err)

	s.Require().NoError(s.bus.Publish(s.ctx, transport.Topic("BBBBBB"), s.envelope(model.MessageQueueOp)))

	select {
	case <-subA.Messages():
		s.Fail("received envelope for a different topic")
	case <-time.After(50 * time.Millisecond):
	}
}

func (s *BusSuite) TestOrderedDeliveryPerSubscriber() {
	topic := transport.Topic("AB12CD")
	sub, err := s.bus.Subscribe(s.ctx, topic)
	s.Require().NoError(err)

	types := []model.MessageType{
		model.MessagePlaybackUpdate,
		model.MessageQueueOp,
		model.MessageParticipantUpdate,
	}
	for _, t := range types {
		s.Require().NoError(s.bus.Publish(s.ctx, topic, s.envelope(t)))
	}

	for _, want := range types {
		s.Equal(want, s.receive(sub).Type)
	}
}

func (s *BusSuite) TestCloseDetachesSubscriber() {
	topic := transport.Topic("AB12CD")
	sub, err := s.bus.Subscribe(s.ctx, topic)
	s.Require().NoError(err)

	s.Require().NoError(sub.Close())
	s.Equal(0, s.bus.SubscriberCount(topic))
	s.NoError(sub.Err())

	_, ok := <-sub.Messages()
	s.False(ok)
}

func (s *BusSuite) TestKillTopicSurfacesError() {
	topic := transport.Topic("AB12CD")
	sub, err := s.bus.Subscribe(s.ctx, topic)
	s.Require().NoError(err)

	cause := errors.New("simulated socket close")
	s.bus.KillTopic(topic, cause)

	_, ok := <-sub.Messages()
	s.False(ok)
	s.ErrorIs(sub.Err(), cause)
	s.Equal(0, s.bus.SubscriberCount(topic))
}

func (s *BusSuite) TestDoubleCloseIsSafe() {
	sub, err := s.bus.Subscribe(s.ctx, transport.Topic("AB12CD"))
	s.Require().NoError(err)

	s.NoError(sub.Close())
	s.NoError(sub.Close())
}
