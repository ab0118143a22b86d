package conn

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/soundcult/listenparty/internal/dependencies/clock"
	"github.com/soundcult/listenparty/internal/dependencies/random"
	"github.com/soundcult/listenparty/internal/model"
	"github.com/soundcult/listenparty/internal/transport"
)

// Config holds the reconnection policy. The retry delay for attempt n is
// min(MaxDelay, BaseDelay*2^n) plus random jitter in [0, JitterWindow).
type Config struct {
	BaseDelay    time.Duration
	MaxDelay     time.Duration
	JitterWindow time.Duration

	// MaxAttempts caps consecutive failed reconnect attempts before giving
	// up; zero retries indefinitely
	MaxAttempts int
}

// DefaultConfig returns the default reconnection policy
func DefaultConfig() Config {
	return Config{
		BaseDelay:    time.Second,
		MaxDelay:     30 * time.Second,
		JitterWindow: time.Second,
		MaxAttempts:  0,
	}
}

// Manager owns the pub/sub subscription for one session topic. It is the
// only writer of ConnectionState, pumps every subscription generation into a
// single Messages channel, and runs reconnection with exponential backoff.
// After each successful reconnect it pulses Reconnected so the sync
// controller can request a fresh snapshot; messages published while
// disconnected are gone for good.
type Manager struct {
	pubsub transport.PubSub
	topic  string
	cfg    Config
	clock  clock.Clock
	random random.Random
	logger *slog.Logger

	messages    chan model.Envelope
	reconnected chan struct{}

	mu       sync.RWMutex
	state    model.ConnectionState
	watchers []chan model.ConnectionState

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	subMu sync.Mutex
	sub   transport.Subscription

	closeOnce sync.Once
}

// New creates a connection manager for the given session topic
func New(
	pubsub transport.PubSub,
	code model.SessionCode,
	cfg Config,
	clk clock.Clock,
	rnd random.Random,
	logger *slog.Logger,
) *Manager {
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = time.Second
	}
	if cfg.MaxDelay < cfg.BaseDelay {
		cfg.MaxDelay = cfg.BaseDelay
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		pubsub:      pubsub,
		topic:       transport.Topic(code),
		cfg:         cfg,
		clock:       clk,
		random:      rnd,
		logger:      logger.With(slog.String("component", "conn"), slog.String("topic", transport.Topic(code))),
		messages:    make(chan model.Envelope, 256),
		reconnected: make(chan struct{}, 1),
		state:       model.ConnectionState{Status: model.ConnectionDisconnected},
		ctx:         ctx,
		cancel:      cancel,
		done:        make(chan struct{}),
	}
}

// Start performs the initial subscription and launches the connection loop.
// An error here means the transport could not be opened at all.
func (m *Manager) Start() error {
	m.setState(model.ConnectionState{Status: model.ConnectionConnecting})

	sub, err := m.pubsub.Subscribe(m.ctx, m.topic)
	if err != nil {
		m.setState(model.ConnectionState{Status: model.ConnectionDisconnected})
		// The run loop never launches, so unblock any Close
		close(m.messages)
		close(m.done)
		return err
	}
	m.setSub(sub)
	m.setState(model.ConnectionState{Status: model.ConnectionConnected})

	go m.run(sub)
	return nil
}

// Messages yields every inbound envelope across subscription generations.
// The channel closes once the manager reaches a terminal Disconnected state.
func (m *Manager) Messages() <-chan model.Envelope {
	return m.messages
}

// Reconnected pulses after every successful reconnection
func (m *Manager) Reconnected() <-chan struct{} {
	return m.reconnected
}

// Publish sends an envelope to the session topic
func (m *Manager) Publish(ctx context.Context, env model.Envelope) error {
	return m.pubsub.Publish(ctx, m.topic, env)
}

// State returns the current connection state
func (m *Manager) State() model.ConnectionState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Watch returns a channel receiving connection state changes. Slow watchers
// miss intermediate states rather than blocking the connection loop.
func (m *Manager) Watch() <-chan model.ConnectionState {
	ch := make(chan model.ConnectionState, 16)
	m.mu.Lock()
	m.watchers = append(m.watchers, ch)
	ch <- m.state
	m.mu.Unlock()
	return ch
}

// Close cancels the subscription and any in-flight retry timer, waiting for
// the connection loop to stop before returning. Idempotent.
func (m *Manager) Close() {
	m.closeOnce.Do(func() {
		m.cancel()
		if sub := m.currentSub(); sub != nil {
			_ = sub.Close()
		}
		<-m.done
	})
}

func (m *Manager) run(sub transport.Subscription) {
	defer func() {
		m.setState(model.ConnectionState{Status: model.ConnectionDisconnected})
		close(m.messages)
		close(m.done)
	}()

	for {
		m.pump(sub)

		if m.ctx.Err() != nil {
			return
		}
		err := sub.Err()
		if err == nil {
			// Subscription closed deliberately from outside the manager
			return
		}
		m.logger.Warn("connection lost", slog.String("error", err.Error()))

		next, ok := m.reconnect()
		if !ok {
			return
		}
		sub = next
	}
}

// pump drains one subscription generation into the shared messages channel
func (m *Manager) pump(sub transport.Subscription) {
	for env := range sub.Messages() {
		select {
		case m.messages <- env:
		case <-m.ctx.Done():
			return
		}
	}
}

// reconnect retries the subscription with capped exponential backoff until it
// succeeds, the manager is closed, or the attempt cap is exhausted
func (m *Manager) reconnect() (transport.Subscription, bool) {
	attempt := 0
	for {
		if m.cfg.MaxAttempts > 0 && attempt >= m.cfg.MaxAttempts {
			m.logger.Warn("reconnect attempts exhausted", slog.Int("attempts", attempt))
			return nil, false
		}

		delay := m.delayFor(attempt)
		if !m.waitWithCountdown(attempt, delay) {
			return nil, false
		}

		sub, err := m.pubsub.Subscribe(m.ctx, m.topic)
		if err == nil {
			m.setSub(sub)
			m.setState(model.ConnectionState{Status: model.ConnectionConnected})
			m.logger.Info("reconnected", slog.Int("failed_attempts", attempt))
			select {
			case m.reconnected <- struct{}{}:
			default:
			}
			return sub, true
		}

		if m.ctx.Err() != nil {
			return nil, false
		}
		m.logger.Warn("reconnect attempt failed",
			slog.Int("attempt", attempt),
			slog.String("error", err.Error()))
		attempt++
	}
}

// delayFor computes the backoff delay for a retry attempt:
// min(MaxDelay, BaseDelay*2^attempt) plus jitter in [0, JitterWindow)
func (m *Manager) delayFor(attempt int) time.Duration {
	delay := m.cfg.MaxDelay
	if attempt < 63 {
		exp := m.cfg.BaseDelay << uint(attempt)
		if exp > 0 && exp < m.cfg.MaxDelay {
			delay = exp
		}
	}
	if m.cfg.JitterWindow > 0 {
		delay += time.Duration(m.random.Intn(int(m.cfg.JitterWindow)))
	}
	return delay
}

// waitWithCountdown sleeps for the retry delay while ticking
// NextRetrySeconds down once per second for UI display. Returns false if the
// manager was closed while waiting.
func (m *Manager) waitWithCountdown(attempt int, delay time.Duration) bool {
	deadline := m.clock.Now().Add(delay)
	m.setState(model.ConnectionState{
		Status:           model.ConnectionReconnecting,
		Attempt:          attempt,
		NextRetrySeconds: secondsUntil(delay),
	})

	timer := time.NewTimer(delay)
	defer timer.Stop()
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-m.ctx.Done():
			return false
		case <-timer.C:
			return true
		case <-ticker.C:
			m.setState(model.ConnectionState{
				Status:           model.ConnectionReconnecting,
				Attempt:          attempt,
				NextRetrySeconds: secondsUntil(deadline.Sub(m.clock.Now())),
			})
		}
	}
}

func secondsUntil(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int((d + time.Second - 1) / time.Second)
}

func (m *Manager) setState(state model.ConnectionState) {
	m.mu.Lock()
	m.state = state
	watchers := m.watchers
	for _, ch := range watchers {
		select {
		case ch <- state:
		default:
		}
	}
	m.mu.Unlock()
}

func (m *Manager) setSub(sub transport.Subscription) {
	m.subMu.Lock()
	m.sub = sub
	m.subMu.Unlock()
}

func (m *Manager) currentSub() transport.Subscription {
	m.subMu.Lock()
	defer m.subMu.Unlock()
	return m.sub
}
