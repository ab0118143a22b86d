package memory

import (
	"context"
	"log/slog"
	"sync"

	"github.com/soundcult/listenparty/internal/model"
	"github.com/soundcult/listenparty/internal/transport"
)

// subscriberBuffer is the per-subscription channel depth; envelopes are
// dropped with a warning when a subscriber cannot keep up
const subscriberBuffer = 256

// Bus is an in-process pub/sub implementation used by tests and
// single-machine demos. All devices sharing a Bus see each other's sessions.
type Bus struct {
	mu     sync.RWMutex
	topics map[string]map[*subscription]bool
	logger *slog.Logger
}

// New creates an empty Bus
func New(logger *slog.Logger) *Bus {
	return &Bus{
		topics: make(map[string]map[*subscription]bool),
		logger: logger.With(slog.String("component", "memory_bus")),
	}
}

var _ transport.PubSub = (*Bus)(nil)

// Subscribe attaches a new subscriber to a topic
func (b *Bus) Subscribe(ctx context.Context, topic string) (transport.Subscription, error) {
	sub := &subscription{
		bus:      b,
		topic:    topic,
		messages: make(chan model.Envelope, subscriberBuffer),
	}

	b.mu.Lock()
	if b.topics[topic] == nil {
		b.topics[topic] = make(map[*subscription]bool)
	}
	b.topics[topic][sub] = true
	b.mu.Unlock()

	return sub, nil
}

// Publish fans the envelope out to every current subscriber of the topic.
// Subscribers with full buffers miss the message, mirroring the at-least-once
// "connected subscribers only" contract of the real transport.
func (b *Bus) Publish(ctx context.Context, topic string, env model.Envelope) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for sub := range b.topics[topic] {
		select {
		case sub.messages <- env:
		default:
			b.logger.Warn("dropped envelope, subscriber buffer full",
				slog.String("topic", topic),
				slog.String("type", string(env.Type)))
		}
	}
	return nil
}

// KillTopic forcibly terminates every subscription on a topic with the given
// error, simulating a transport-level failure for reconnection tests.
func (b *Bus) KillTopic(topic string, err error) {
	b.mu.Lock()
	subs := b.topics[topic]
	delete(b.topics, topic)
	b.mu.Unlock()

	for sub := range subs {
		sub.terminate(err)
	}
}

// SubscriberCount reports the current subscriber count for a topic
func (b *Bus) SubscriberCount(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.topics[topic])
}

func (b *Bus) remove(sub *subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if subs, ok := b.topics[sub.topic]; ok {
		delete(subs, sub)
		if len(subs) == 0 {
			delete(b.topics, sub.topic)
		}
	}
}

type subscription struct {
	bus      *Bus
	topic    string
	messages chan model.Envelope

	closeOnce sync.Once
	mu        sync.Mutex
	err       error
}

var _ transport.Subscription = (*subscription)(nil)

func (s *subscription) Messages() <-chan model.Envelope {
	return s.messages
}

func (s *subscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *subscription) Close() error {
	s.bus.remove(s)
	s.closeOnce.Do(func() {
		close(s.messages)
	})
	return nil
}

func (s *subscription) terminate(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
	s.closeOnce.Do(func() {
		close(s.messages)
	})
}
