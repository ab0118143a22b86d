package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/soundcult/listenparty/internal/dependencies/clock"
	"github.com/soundcult/listenparty/internal/dependencies/random"
	"github.com/soundcult/listenparty/internal/model"
	"github.com/soundcult/listenparty/internal/notify"
	"github.com/soundcult/listenparty/internal/player"
	"github.com/soundcult/listenparty/internal/radio"
	"github.com/soundcult/listenparty/internal/session/conn"
	"github.com/soundcult/listenparty/internal/session/permission"
	"github.com/soundcult/listenparty/internal/session/queue"
	sessionsync "github.com/soundcult/listenparty/internal/session/sync"
	"github.com/soundcult/listenparty/internal/transport"
)

const (
	// SessionCodeLength is the length of generated session codes
	SessionCodeLength = 6
	// SessionCodeAlphabet is the characters used in session codes (avoid confusing chars)
	SessionCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
)

// Config holds session lifecycle tuning
type Config struct {
	Conn conn.Config
	Sync sessionsync.Config

	// JoinTimeout is how long a join waits for the host's snapshot before
	// concluding no such session exists
	JoinTimeout time.Duration

	// QueueLowWater is the queue length below which the radio is consulted
	QueueLowWater int
}

// DefaultConfig returns the default session lifecycle tuning
func DefaultConfig() Config {
	return Config{
		Conn:        conn.DefaultConfig(),
		Sync:        sessionsync.DefaultConfig(),
		JoinTimeout: 5 * time.Second,
	}
}

// Manager is the device-level session lifecycle facade: create, join, leave.
// A device is in at most one session at a time; all state once inside a
// session is reached through the Active handle.
type Manager struct {
	cfg      Config
	pubsub   transport.PubSub
	player   player.Player
	radio    radio.Source
	notifier notify.Notifier
	clock    clock.Clock
	random   random.Random
	logger   *slog.Logger

	mu     sync.Mutex
	active *Active
}

// NewManager creates a session manager for this device
func NewManager(
	cfg Config,
	pubsub transport.PubSub,
	plyr player.Player,
	radioSrc radio.Source,
	notifier notify.Notifier,
	clk clock.Clock,
	rnd random.Random,
	logger *slog.Logger,
) *Manager {
	if cfg.JoinTimeout <= 0 {
		cfg.JoinTimeout = DefaultConfig().JoinTimeout
	}
	if notifier == nil {
		notifier = notify.Nop{}
	}
	return &Manager{
		cfg:      cfg,
		pubsub:   pubsub,
		player:   plyr,
		radio:    radioSrc,
		notifier: notifier,
		clock:    clk,
		random:   rnd,
		logger:   logger.With(slog.String("component", "session")),
	}
}

// Active is the handle to the session this device is currently in. It wraps
// the sync controller and connection manager behind one teardown lifecycle.
type Active struct {
	Code model.SessionCode
	Self model.Profile

	ctrl *sessionsync.Controller
	conn *conn.Manager
}

// Create starts a new session with this device's profile as host
func (m *Manager) Create(ctx context.Context, self model.Profile) (*Active, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active != nil {
		return nil, model.ErrAlreadyInSession
	}

	// Codes live only in the pub/sub namespace, so there is no registry to
	// check against; the alphabet and length keep collisions negligible
	code := model.SessionCode(m.random.String(SessionCodeLength, SessionCodeAlphabet))

	now := m.clock.Now()
	session := &model.Session{
		Code:     code,
		HostID:   self.ID,
		HostName: self.DisplayName,
		Participants: []model.Participant{
			{
				ID:         self.ID,
				Name:       self.DisplayName,
				PhotoURL:   self.PhotoURL,
				IsHost:     true,
				CanControl: true,
			},
		},
		CreatedAt: now,
	}

	active, err := m.connect(self, session)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrSessionCreate, err)
	}

	m.adopt(active)
	m.logger.Info("session created",
		slog.String("code", string(code)),
		slog.String("host", string(self.ID)))
	return active, nil
}

// Join enters an existing session by code. Codes are matched
// case-insensitively. ErrSessionNotFound is returned when nothing answers
// the join within the timeout.
func (m *Manager) Join(ctx context.Context, rawCode string, self model.Profile) (*Active, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active != nil {
		return nil, model.ErrAlreadyInSession
	}

	code := model.NormalizeCode(rawCode)

	// Provisional session until the host's snapshot arrives
	active, err := m.connect(self, &model.Session{Code: code})
	if err != nil {
		return nil, err
	}

	if err := active.ctrl.AwaitJoin(ctx, m.cfg.JoinTimeout); err != nil {
		active.teardown()
		return nil, err
	}

	m.adopt(active)
	m.logger.Info("session joined",
		slog.String("code", string(code)),
		slog.String("participant", string(self.ID)))
	return active, nil
}

// Leave exits the current session. The host's leave ends the session for
// everyone; a participant's leave announces their departure. Leaving while
// not in a session is a no-op.
func (m *Manager) Leave(ctx context.Context) error {
	m.mu.Lock()
	active := m.active
	m.active = nil
	m.mu.Unlock()
	if active == nil {
		return nil
	}

	var err error
	if active.IsHost() {
		err = active.ctrl.EndSession(ctx)
	} else {
		err = active.ctrl.AnnounceLeave(ctx)
	}
	// Teardown happens regardless; a failed announcement only means peers
	// find out via the next snapshot exchange
	active.teardown()
	if err != nil {
		m.logger.Warn("leave announcement failed", slog.String("error", err.Error()))
	}

	m.logger.Info("session left", slog.String("code", string(active.Code)))
	return nil
}

// Current returns the active session handle, or nil when not in a session
func (m *Manager) Current() *Active {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

// connect builds the component stack for one session membership
func (m *Manager) connect(self model.Profile, session *model.Session) (*Active, error) {
	cm := conn.New(m.pubsub, session.Code, m.cfg.Conn, m.clock, m.random, m.logger)
	if err := cm.Start(); err != nil {
		return nil, err
	}

	perm := permission.New()
	q := queue.New(self.ID, perm, m.cfg.QueueLowWater, m.logger)
	ctrl := sessionsync.New(m.cfg.Sync, self, session, cm, perm, q, m.player, m.radio, m.clock, m.logger)
	ctrl.Run()

	return &Active{
		Code: session.Code,
		Self: self,
		ctrl: ctrl,
		conn: cm,
	}, nil
}

// adopt installs the handle and starts the event watcher. Callers hold m.mu.
func (m *Manager) adopt(active *Active) {
	m.active = active
	go m.watch(active)
}

// watch turns snapshot changes into notifier events and clears the handle
// when the session ends out from under us
func (m *Manager) watch(active *Active) {
	snapshots := active.ctrl.WatchSnapshots()
	prev, err := active.ctrl.Snapshot(context.Background())
	if err != nil {
		prev = &model.Session{Code: active.Code}
	}

	for {
		select {
		case snap, ok := <-snapshots:
			if !ok {
				return
			}
			m.announceChanges(prev, snap)
			prev = snap
		case <-active.ctrl.Ended():
			m.notifier.SessionEnded("session ended")
			m.release(active)
			return
		case <-active.ctrl.Done():
			return
		}
	}
}

// announceChanges diffs consecutive snapshots into notifier events
func (m *Manager) announceChanges(prev, next *model.Session) {
	if prevID, nextID := currentTrackID(prev), currentTrackID(next); nextID != "" && nextID != prevID {
		m.notifier.TrackChanged(*next.Playback.CurrentTrack)
	}

	seen := make(map[model.ParticipantID]bool, len(prev.Participants))
	for _, p := range prev.Participants {
		seen[p.ID] = true
	}
	for _, p := range next.Participants {
		if !seen[p.ID] {
			m.notifier.ParticipantJoined(p)
		}
		delete(seen, p.ID)
	}
	for _, p := range prev.Participants {
		if seen[p.ID] {
			m.notifier.ParticipantLeft(p)
		}
	}
}

func currentTrackID(s *model.Session) model.TrackID {
	if s.Playback.CurrentTrack == nil {
		return ""
	}
	return s.Playback.CurrentTrack.ID
}

// release clears the handle if it is still the active one, then tears it down
func (m *Manager) release(active *Active) {
	m.mu.Lock()
	if m.active == active {
		m.active = nil
	}
	m.mu.Unlock()
	active.teardown()
}

// Active handle methods

// IsHost reports whether this device's participant hosts the session
func (a *Active) IsHost() bool {
	snap, err := a.ctrl.Snapshot(context.Background())
	if err != nil {
		return false
	}
	return snap.HostID == a.Self.ID
}

// Snapshot returns a copy of the current session state
func (a *Active) Snapshot(ctx context.Context) (*model.Session, error) {
	return a.ctrl.Snapshot(ctx)
}

// WatchSnapshots streams session state copies after every change
func (a *Active) WatchSnapshots() <-chan *model.Session {
	return a.ctrl.WatchSnapshots()
}

// ConnectionState returns the current transport connection state
func (a *Active) ConnectionState() model.ConnectionState {
	return a.conn.State()
}

// WatchConnection streams connection state changes
func (a *Active) WatchConnection() <-chan model.ConnectionState {
	return a.conn.Watch()
}

// Ended is closed when the session has terminally ended
func (a *Active) Ended() <-chan struct{} {
	return a.ctrl.Ended()
}

// SetPlaying toggles play/pause
func (a *Active) SetPlaying(ctx context.Context, playing bool) error {
	return a.ctrl.SetPlaying(ctx, playing)
}

// Seek jumps playback to the given position
func (a *Active) Seek(ctx context.Context, positionMs int64) error {
	return a.ctrl.Seek(ctx, positionMs)
}

// PlayTrack switches playback to the given track
func (a *Active) PlayTrack(ctx context.Context, track model.Track) error {
	return a.ctrl.PlayTrack(ctx, track)
}

// Skip advances playback to the head of the queue
func (a *Active) Skip(ctx context.Context) error {
	return a.ctrl.Skip(ctx)
}

// AddToQueue appends a track to the shared queue
func (a *Active) AddToQueue(ctx context.Context, track model.Track) error {
	return a.ctrl.AddToQueue(ctx, track)
}

// PlayNext inserts a track at the head of the shared queue
func (a *Active) PlayNext(ctx context.Context, track model.Track) error {
	return a.ctrl.PlayNext(ctx, track)
}

// RemoveFromQueue removes the queue item at index
func (a *Active) RemoveFromQueue(ctx context.Context, index int) error {
	return a.ctrl.RemoveFromQueue(ctx, index)
}

// MoveInQueue reorders the queue item at from to sit at to
func (a *Active) MoveInQueue(ctx context.Context, from, to int) error {
	return a.ctrl.MoveInQueue(ctx, from, to)
}

// GrantControl gives a participant playback/queue control. Host only.
func (a *Active) GrantControl(ctx context.Context, target model.ParticipantID) error {
	return a.ctrl.GrantControl(ctx, target)
}

// RevokeControl removes a participant's control. Host only.
func (a *Active) RevokeControl(ctx context.Context, target model.ParticipantID) error {
	return a.ctrl.RevokeControl(ctx, target)
}

func (a *Active) teardown() {
	a.ctrl.Stop()
	a.conn.Close()
}
