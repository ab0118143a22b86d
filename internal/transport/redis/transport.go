package redis

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/soundcult/listenparty/internal/model"
	"github.com/soundcult/listenparty/internal/transport"
)

// subscriberBuffer is the per-subscription channel depth
const subscriberBuffer = 256

// Transport is a Redis pub/sub implementation of the session transport.
// Redis delivers each published message to every currently connected
// subscriber of a channel, in publish order per subscriber, which matches the
// delivery contract the session core assumes.
type Transport struct {
	client *redis.Client
	logger *slog.Logger
}

// New creates a Redis transport, verifying connectivity up front
func New(cfg Config, logger *slog.Logger) (*Transport, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, err
	}

	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.DialTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return NewWithClient(client, logger), nil
}

// NewWithClient creates a Redis transport with an existing client (for testing)
func NewWithClient(client *redis.Client, logger *slog.Logger) *Transport {
	return &Transport{
		client: client,
		logger: logger.With(slog.String("component", "redis_transport")),
	}
}

var _ transport.PubSub = (*Transport)(nil)

// Subscribe attaches to a session topic. The returned subscription owns a
// dedicated receive goroutine; transport failures surface as a closed
// Messages channel with a non-nil Err.
func (t *Transport) Subscribe(ctx context.Context, topic string) (transport.Subscription, error) {
	ps := t.client.Subscribe(ctx, topic)

	// Force the SUBSCRIBE round-trip so a dead server fails here, not on
	// first receive
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, err
	}

	sub := &subscription{
		ps:       ps,
		messages: make(chan model.Envelope, subscriberBuffer),
		logger:   t.logger.With(slog.String("topic", topic)),
	}
	go sub.receiveLoop()

	return sub, nil
}

// Publish sends an envelope to a session topic. Returning nil means Redis
// accepted the message, not that any peer received it.
func (t *Transport) Publish(ctx context.Context, topic string, env model.Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return t.client.Publish(ctx, topic, data).Err()
}

// Close releases the underlying Redis client
func (t *Transport) Close() error {
	return t.client.Close()
}

type subscription struct {
	ps       *redis.PubSub
	messages chan model.Envelope
	logger   *slog.Logger

	mu     sync.Mutex
	closed bool
	err    error
}

var _ transport.Subscription = (*subscription)(nil)

func (s *subscription) receiveLoop() {
	defer close(s.messages)

	for {
		msg, err := s.ps.ReceiveMessage(context.Background())
		if err != nil {
			s.mu.Lock()
			if !s.closed {
				s.err = err
			}
			s.mu.Unlock()
			return
		}

		var env model.Envelope
		if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
			// Malformed messages are dropped, never fatal
			s.logger.Warn("dropped malformed envelope", slog.String("error", err.Error()))
			continue
		}

		select {
		case s.messages <- env:
		default:
			s.logger.Warn("dropped envelope, subscriber buffer full",
				slog.String("type", string(env.Type)))
		}
	}
}

func (s *subscription) Messages() <-chan model.Envelope {
	return s.messages
}

func (s *subscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *subscription) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return s.ps.Close()
}
