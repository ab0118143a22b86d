package sync

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/soundcult/listenparty/internal/dependencies/clock"
	"github.com/soundcult/listenparty/internal/model"
	"github.com/soundcult/listenparty/internal/player"
	"github.com/soundcult/listenparty/internal/radio"
	"github.com/soundcult/listenparty/internal/session/conn"
	"github.com/soundcult/listenparty/internal/session/permission"
	"github.com/soundcult/listenparty/internal/session/queue"
)

// publishTimeout bounds a single broadcast so a stalled transport cannot
// wedge the run loop
const publishTimeout = 5 * time.Second

// Config holds the sync tuning parameters. Drift threshold and interval are
// product tuning knobs, so they are configurable rather than hard-coded.
type Config struct {
	DriftInterval    time.Duration
	DriftThresholdMs int64

	// AutofetchCount is how many tracks to request from the radio source
	// when the queue drains below its low-water mark
	AutofetchCount int
}

// DefaultConfig returns the default sync tuning
func DefaultConfig() Config {
	return Config{
		DriftInterval:    3 * time.Second,
		DriftThresholdMs: 1500,
		AutofetchCount:   5,
	}
}

type command struct {
	fn    func() error
	reply chan error
}

// Controller is the coordination hub for one joined session. A single run
// loop goroutine is the only mutator of the session snapshot: local commands,
// inbound envelopes, radio results, and drift ticks all funnel through it, so
// optimistic local writes can never race remote reconciliation.
//
// Conflict resolution is last-controller-wins, applied identically on every
// peer: the playback write with the newest timestamp overrides everything,
// even a locally-issued but older command.
type Controller struct {
	cfg    Config
	self   model.Profile
	device string
	conn   *conn.Manager
	perm   *permission.Model
	queue  *queue.Manager
	player player.Player
	radio  radio.Source
	clock  clock.Clock
	logger *slog.Logger

	// session is owned by the run loop
	session *model.Session

	commands chan command
	fetched  chan []model.Track

	// run-loop-local state
	pendingSnapshot string
	joinDone        chan error
	fetchInFlight   bool

	mu       sync.Mutex
	watchers []chan *model.Session

	ended    chan struct{}
	endOnce  sync.Once
	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

// New creates a sync controller over an initial session snapshot. The
// snapshot is trusted as-is for a freshly created session; joiners start from
// a provisional snapshot and adopt the host's via AwaitJoin.
func New(
	cfg Config,
	self model.Profile,
	session *model.Session,
	connMgr *conn.Manager,
	perm *permission.Model,
	queueMgr *queue.Manager,
	plyr player.Player,
	radioSrc radio.Source,
	clk clock.Clock,
	logger *slog.Logger,
) *Controller {
	if cfg.DriftInterval <= 0 {
		cfg.DriftInterval = DefaultConfig().DriftInterval
	}
	if cfg.DriftThresholdMs <= 0 {
		cfg.DriftThresholdMs = DefaultConfig().DriftThresholdMs
	}
	if cfg.AutofetchCount <= 0 {
		cfg.AutofetchCount = DefaultConfig().AutofetchCount
	}

	return &Controller{
		cfg:      cfg,
		self:     self,
		device:   uuid.NewString(),
		conn:     connMgr,
		perm:     perm,
		queue:    queueMgr,
		player:   plyr,
		radio:    radioSrc,
		clock:    clk,
		logger:   logger.With(slog.String("component", "sync"), slog.String("session", string(session.Code))),
		session:  session,
		commands: make(chan command),
		fetched:  make(chan []model.Track, 1),
		ended:    make(chan struct{}),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// DeviceID returns this device's transport sender ID
func (c *Controller) DeviceID() string {
	return c.device
}

// Run launches the controller's run loop
func (c *Controller) Run() {
	go c.run()
}

// Stop terminates the run loop, waiting for it to exit. Idempotent.
func (c *Controller) Stop() {
	c.stopOnce.Do(func() {
		close(c.stop)
	})
	<-c.done
}

// Ended is closed once a session_end has been observed or the connection is
// terminally lost
func (c *Controller) Ended() <-chan struct{} {
	return c.ended
}

// Done is closed once the run loop has exited
func (c *Controller) Done() <-chan struct{} {
	return c.done
}

func (c *Controller) run() {
	defer close(c.done)

	drift := time.NewTicker(c.cfg.DriftInterval)
	defer drift.Stop()

	for {
		select {
		case <-c.stop:
			return
		case cmd := <-c.commands:
			cmd.reply <- cmd.fn()
		case env, ok := <-c.conn.Messages():
			if !ok {
				// Reconnection gave up; there is no way back into the
				// session's event stream, so the session is over for us
				c.markEnded()
				return
			}
			c.handleEnvelope(env)
		case <-c.conn.Reconnected():
			c.requestSnapshot(nil)
		case tracks := <-c.fetched:
			c.appendFetched(tracks)
		case <-drift.C:
			c.onDriftTick()
		}
	}
}

// do runs fn on the run loop and returns its result
func (c *Controller) do(ctx context.Context, fn func() error) error {
	cmd := command{fn: fn, reply: make(chan error, 1)}
	select {
	case c.commands <- cmd:
	case <-c.done:
		return model.ErrNotInSession
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-cmd.reply:
		return err
	case <-c.done:
		return model.ErrNotInSession
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Snapshot returns a copy of the current session state
func (c *Controller) Snapshot(ctx context.Context) (*model.Session, error) {
	var snap *model.Session
	err := c.do(ctx, func() error {
		snap = c.session.Clone()
		return nil
	})
	return snap, err
}

// WatchSnapshots returns a channel receiving a session copy after every
// state change. Slow watchers miss intermediate snapshots rather than
// blocking the run loop.
func (c *Controller) WatchSnapshots() <-chan *model.Session {
	ch := make(chan *model.Session, 16)
	c.mu.Lock()
	c.watchers = append(c.watchers, ch)
	c.mu.Unlock()
	return ch
}

// Playback commands

// SetPlaying toggles play/pause
func (c *Controller) SetPlaying(ctx context.Context, playing bool) error {
	return c.do(ctx, func() error {
		return c.mutatePlayback(func(st *model.PlaybackState) {
			st.IsPlaying = playing
		})
	})
}

// Seek jumps playback to the given position
func (c *Controller) Seek(ctx context.Context, positionMs int64) error {
	return c.do(ctx, func() error {
		return c.mutatePlayback(func(st *model.PlaybackState) {
			st.PositionMs = positionMs
		})
	})
}

// PlayTrack switches playback to the given track from the start
func (c *Controller) PlayTrack(ctx context.Context, track model.Track) error {
	return c.do(ctx, func() error {
		return c.playTrack(track)
	})
}

// Skip pops the queue head and plays it
func (c *Controller) Skip(ctx context.Context) error {
	return c.do(ctx, func() error {
		item, op, err := c.queue.PopNext(c.session, c.self.ID)
		if err != nil {
			return err
		}
		c.broadcastQueueOp(op)
		return c.playTrack(item.Track)
	})
}

// Queue commands

// AddToQueue appends a track to the shared queue
func (c *Controller) AddToQueue(ctx context.Context, track model.Track) error {
	return c.queueMutation(ctx, func() (model.QueueOpPayload, error) {
		return c.queue.Add(c.session, track, c.self.ID)
	})
}

// PlayNext inserts a track at the head of the shared queue
func (c *Controller) PlayNext(ctx context.Context, track model.Track) error {
	return c.queueMutation(ctx, func() (model.QueueOpPayload, error) {
		return c.queue.PlayNext(c.session, track, c.self.ID)
	})
}

// RemoveFromQueue removes the queue item at index
func (c *Controller) RemoveFromQueue(ctx context.Context, index int) error {
	return c.queueMutation(ctx, func() (model.QueueOpPayload, error) {
		return c.queue.RemoveAt(c.session, index, c.self.ID)
	})
}

// MoveInQueue reorders the queue item at from to sit at to
func (c *Controller) MoveInQueue(ctx context.Context, from, to int) error {
	return c.queueMutation(ctx, func() (model.QueueOpPayload, error) {
		return c.queue.Move(c.session, from, to, c.self.ID)
	})
}

func (c *Controller) queueMutation(ctx context.Context, mutate func() (model.QueueOpPayload, error)) error {
	return c.do(ctx, func() error {
		op, err := mutate()
		if err != nil {
			return err
		}
		c.broadcastQueueOp(op)
		c.notifyWatchers()
		c.maybeAutofetch()
		return nil
	})
}

// Permission commands

// GrantControl gives the target participant playback/queue control.
// Host only.
func (c *Controller) GrantControl(ctx context.Context, target model.ParticipantID) error {
	return c.do(ctx, func() error {
		if err := c.perm.Grant(c.session, c.self.ID, target); err != nil {
			return err
		}
		c.broadcastParticipants()
		c.notifyWatchers()
		return nil
	})
}

// RevokeControl removes the target participant's control. Host only.
func (c *Controller) RevokeControl(ctx context.Context, target model.ParticipantID) error {
	return c.do(ctx, func() error {
		if err := c.perm.Revoke(c.session, c.self.ID, target); err != nil {
			return err
		}
		c.broadcastParticipants()
		c.notifyWatchers()
		return nil
	})
}

// Lifecycle commands

// AwaitJoin publishes a snapshot request announcing the joiner and waits for
// the host's snapshot. It returns ErrSessionNotFound if nothing answers
// within the timeout.
func (c *Controller) AwaitJoin(ctx context.Context, timeout time.Duration) error {
	done := make(chan error, 1)
	profile := c.self
	if err := c.do(ctx, func() error {
		c.joinDone = done
		c.requestSnapshot(&profile)
		return nil
	}); err != nil {
		return err
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case err := <-done:
		return err
	case <-timer.C:
		return model.ErrSessionNotFound
	case <-c.ended:
		return model.ErrSessionEnded
	case <-ctx.Done():
		return ctx.Err()
	}
}

// EndSession broadcasts session_end to every participant. Host only.
func (c *Controller) EndSession(ctx context.Context) error {
	return c.do(ctx, func() error {
		if c.session.HostID != c.self.ID {
			return model.ErrNotHost
		}
		c.broadcast(model.MessageSessionEnd, model.SessionEndPayload{Reason: "host left"})
		c.markEnded()
		return nil
	})
}

// AnnounceLeave removes this participant from the list and broadcasts the
// update. Used when a non-host leaves.
func (c *Controller) AnnounceLeave(ctx context.Context) error {
	return c.do(ctx, func() error {
		if c.session.RemoveParticipant(c.self.ID) {
			c.broadcastParticipants()
		}
		return nil
	})
}

// Internal: local mutation path

// playTrack switches to a track; also the optimistic path for Skip
func (c *Controller) playTrack(track model.Track) error {
	return c.mutatePlayback(func(st *model.PlaybackState) {
		t := track
		st.CurrentTrack = &t
		st.PositionMs = 0
		st.IsPlaying = true
	})
}

// mutatePlayback is the optimistic local mutation path: permission check
// first, then immediate local apply, then broadcast. Local control feels
// instant regardless of round-trip latency; a concurrent newer remote write
// will simply supersede us later.
func (c *Controller) mutatePlayback(mutate func(*model.PlaybackState)) error {
	if !c.perm.CanMutatePlayback(c.session, c.self.ID) {
		return model.ErrPermissionDenied
	}

	now := c.clock.Now()
	prev := c.session.Playback

	st := prev
	// Freeze the extrapolated position before mutating so pauses and
	// toggles anchor to where playback actually is
	st.PositionMs = prev.PositionAt(now)
	mutate(&st)
	st.UpdatedBy = c.self.ID
	st.UpdatedAt = nextTimestamp(now, prev.UpdatedAt)

	c.session.Playback = st
	c.applyToPlayer(prev, st)
	c.broadcast(model.MessagePlaybackUpdate, model.PlaybackUpdatePayload{State: st})
	c.notifyWatchers()
	c.maybeAutofetch()
	return nil
}

// nextTimestamp guarantees accepted mutations carry strictly increasing
// timestamps even on coarse clocks
func nextTimestamp(now, prev time.Time) time.Time {
	if !now.After(prev) {
		return prev.Add(time.Millisecond)
	}
	return now
}

// applyToPlayer translates an accepted state change into player intents
func (c *Controller) applyToPlayer(prev, next model.PlaybackState) {
	trackChanged := trackID(next.CurrentTrack) != trackID(prev.CurrentTrack)
	if trackChanged && next.CurrentTrack != nil {
		c.player.LoadTrack(*next.CurrentTrack)
	}
	if next.CurrentTrack != nil {
		c.player.Seek(next.PositionAt(c.clock.Now()))
	}
	if next.IsPlaying {
		c.player.Play()
	} else {
		c.player.Pause()
	}
}

func trackID(t *model.Track) model.TrackID {
	if t == nil {
		return ""
	}
	return t.ID
}

// Internal: remote mutation path

func (c *Controller) handleEnvelope(env model.Envelope) {
	if env.SenderID == c.device {
		// Our own publish echoed back by the transport
		return
	}
	if env.SessionCode != c.session.Code {
		return
	}

	switch env.Type {
	case model.MessagePlaybackUpdate:
		var payload model.PlaybackUpdatePayload
		if err := env.DecodePayload(&payload); err != nil {
			c.dropMalformed(env, err)
			return
		}
		c.applyRemotePlayback(payload.State)

	case model.MessageQueueOp:
		var payload model.QueueOpPayload
		if err := env.DecodePayload(&payload); err != nil {
			c.dropMalformed(env, err)
			return
		}
		if c.queue.ApplyRemote(c.session, payload) {
			c.notifyWatchers()
		}

	case model.MessageParticipantUpdate:
		var payload model.ParticipantUpdatePayload
		if err := env.DecodePayload(&payload); err != nil {
			c.dropMalformed(env, err)
			return
		}
		c.session.Participants = payload.Participants
		c.perm.Normalize(c.session)
		c.notifyWatchers()

	case model.MessageSnapshotRequest:
		var payload model.SnapshotRequestPayload
		if err := env.DecodePayload(&payload); err != nil {
			c.dropMalformed(env, err)
			return
		}
		c.handleSnapshotRequest(payload)

	case model.MessageSnapshotResponse:
		var payload model.SnapshotResponsePayload
		if err := env.DecodePayload(&payload); err != nil {
			c.dropMalformed(env, err)
			return
		}
		c.adoptSnapshot(payload)

	case model.MessageSessionEnd:
		c.logger.Info("session ended by host")
		c.markEnded()

	default:
		c.logger.Warn("dropped envelope with unknown type", slog.String("type", string(env.Type)))
	}
}

// applyRemotePlayback is the last-controller-wins merge: strictly newer
// timestamps win, ties break on participant ID, and anything else is a stale
// update dropped silently. This also covers the case where the current value
// is our own optimistic write that a later controller action superseded.
func (c *Controller) applyRemotePlayback(st model.PlaybackState) {
	if !st.Supersedes(c.session.Playback) {
		c.logger.Debug("dropped stale playback update",
			slog.String("updated_by", string(st.UpdatedBy)),
			slog.Time("updated_at", st.UpdatedAt))
		return
	}
	prev := c.session.Playback
	c.session.Playback = st
	c.applyToPlayer(prev, st)
	c.notifyWatchers()
}

func (c *Controller) handleSnapshotRequest(payload model.SnapshotRequestPayload) {
	if c.session.HostID != c.self.ID {
		// Only the host answers; its playback state seeds joiners
		return
	}

	if joiner := payload.Joiner; joiner != nil {
		if c.session.GetParticipant(joiner.ID) == nil {
			c.session.Participants = append(c.session.Participants, model.Participant{
				ID:         joiner.ID,
				Name:       joiner.DisplayName,
				PhotoURL:   joiner.PhotoURL,
				IsHost:     false,
				CanControl: false,
			})
			c.broadcastParticipants()
			c.notifyWatchers()
		}
	}

	c.broadcast(model.MessageSnapshotResponse, model.SnapshotResponsePayload{
		RequestID: payload.RequestID,
		Session:   *c.session.Clone(),
		QueueSeen: c.queue.Seen(),
	})
}

func (c *Controller) adoptSnapshot(payload model.SnapshotResponsePayload) {
	if payload.RequestID != c.pendingSnapshot || c.pendingSnapshot == "" {
		// Snapshot meant for someone else's request
		return
	}
	c.pendingSnapshot = ""

	sess := payload.Session
	c.perm.Normalize(&sess)
	// The snapshot's queue already reflects every op at or below the
	// responder's high-water marks; merging them keeps a racing redelivery
	// of one of those ops from being applied a second time.
	c.queue.MergeSeen(payload.QueueSeen)
	prev := c.session.Playback
	c.session = &sess

	if sess.Playback.CurrentTrack != nil {
		c.applyToPlayer(prev, sess.Playback)
	}

	if c.joinDone != nil {
		c.joinDone <- nil
		c.joinDone = nil
	}
	c.notifyWatchers()
	c.logger.Info("snapshot adopted",
		slog.Int("participants", len(sess.Participants)),
		slog.Int("queue", len(sess.Queue)))
}

// requestSnapshot asks the host for a full state snapshot; joiner is non-nil
// when the request doubles as a join announcement
func (c *Controller) requestSnapshot(joiner *model.Profile) {
	id := uuid.NewString()
	c.pendingSnapshot = id
	c.broadcast(model.MessageSnapshotRequest, model.SnapshotRequestPayload{
		RequestID: id,
		Joiner:    joiner,
	})
}

// Internal: drift correction and autofetch

// onDriftTick compares the player's reported position against the position
// implied by the authoritative state and issues a local corrective seek when
// they diverge. The seek is deliberately not a control event: re-broadcasting
// it would ping-pong corrections between peers forever.
func (c *Controller) onDriftTick() {
	select {
	case <-c.ended:
		return
	default:
	}

	st := c.session.Playback
	if !st.IsPlaying || st.CurrentTrack == nil {
		return
	}

	now := c.clock.Now()
	authoritative := st.PositionAt(now)
	local := c.player.PositionMs()

	if diff := local - authoritative; diff > c.cfg.DriftThresholdMs || diff < -c.cfg.DriftThresholdMs {
		c.logger.Debug("correcting drift",
			slog.Int64("local_ms", local),
			slog.Int64("authoritative_ms", authoritative))
		c.player.Seek(authoritative)
	}

	// Track ran out: the host advances the session to the next queued track
	if c.isHost() && st.CurrentTrack.DurationMs > 0 && authoritative >= st.CurrentTrack.DurationMs {
		c.advanceTrack()
	}

	c.maybeAutofetch()
}

func (c *Controller) advanceTrack() {
	item, op, err := c.queue.PopNext(c.session, c.self.ID)
	if err != nil {
		// Nothing queued: stop at the end of the track
		_ = c.mutatePlayback(func(st *model.PlaybackState) {
			st.IsPlaying = false
		})
		return
	}
	c.broadcastQueueOp(op)
	_ = c.playTrack(item.Track)
}

// maybeAutofetch asks the radio source for more tracks when the queue runs
// low. Host-only so peers do not append duplicates, and advisory only.
func (c *Controller) maybeAutofetch() {
	if c.radio == nil || c.fetchInFlight || !c.isHost() {
		return
	}
	if !c.session.Playback.IsPlaying || !c.queue.BelowLowWater(c.session) {
		return
	}

	c.fetchInFlight = true
	seed := c.session.Playback.CurrentTrack
	if seed != nil {
		t := *seed
		seed = &t
	}
	count := c.cfg.AutofetchCount

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		tracks, err := c.radio.NextTracks(ctx, seed, count)
		if err != nil {
			c.logger.Warn("radio autofetch failed", slog.String("error", err.Error()))
			tracks = nil
		}
		select {
		case c.fetched <- tracks:
		case <-c.done:
		}
	}()
}

func (c *Controller) appendFetched(tracks []model.Track) {
	c.fetchInFlight = false
	changed := false
	for _, track := range tracks {
		op, err := c.queue.Add(c.session, track, c.self.ID)
		if err != nil {
			break
		}
		c.broadcastQueueOp(op)
		changed = true
	}
	if changed {
		c.notifyWatchers()
	}
}

// Internal: plumbing

func (c *Controller) isHost() bool {
	return c.session.HostID == c.self.ID
}

func (c *Controller) broadcastQueueOp(op model.QueueOpPayload) {
	c.broadcast(model.MessageQueueOp, op)
}

func (c *Controller) broadcastParticipants() {
	c.broadcast(model.MessageParticipantUpdate, model.ParticipantUpdatePayload{
		Participants: append([]model.Participant(nil), c.session.Participants...),
	})
}

func (c *Controller) broadcast(t model.MessageType, payload any) {
	env, err := model.NewEnvelope(t, c.session.Code, c.device, c.clock.Now(), payload)
	if err != nil {
		c.logger.Error("failed to encode envelope", slog.String("type", string(t)), slog.String("error", err.Error()))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if err := c.conn.Publish(ctx, env); err != nil {
		// The connection manager notices transport failures on its own; a
		// lost broadcast is recovered by the next snapshot exchange
		c.logger.Warn("broadcast failed", slog.String("type", string(t)), slog.String("error", err.Error()))
	}
}

func (c *Controller) markEnded() {
	c.endOnce.Do(func() {
		c.player.Pause()
		close(c.ended)
	})
}

func (c *Controller) dropMalformed(env model.Envelope, err error) {
	c.logger.Warn("dropped malformed envelope",
		slog.String("type", string(env.Type)),
		slog.String("sender", env.SenderID),
		slog.String("error", err.Error()))
}

func (c *Controller) notifyWatchers() {
	snap := c.session.Clone()
	c.mu.Lock()
	for _, ch := range c.watchers {
		select {
		case ch <- snap:
		default:
		}
	}
	c.mu.Unlock()
}
