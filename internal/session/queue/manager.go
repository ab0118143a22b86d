package queue

import (
	"log/slog"

	"github.com/soundcult/listenparty/internal/model"
	"github.com/soundcult/listenparty/internal/session/permission"
)

// DefaultLowWater is the queue length below which the controller should ask
// the radio collaborator for more tracks
const DefaultLowWater = 3

// Manager builds and applies queue operations. Every mutation is expressed as
// a discrete operation tagged with a (peer, counter) sequence so it can be
// broadcast, redelivered, and applied idempotently on every peer. The manager
// is only ever driven from the sync controller's run loop, so it needs no
// locking of its own.
type Manager struct {
	self   model.ParticipantID
	perm   *permission.Model
	logger *slog.Logger

	// counter is this peer's op counter; seen holds the highest applied
	// counter per peer, including our own
	counter uint64
	seen    map[model.ParticipantID]uint64

	lowWater int
}

// New creates a queue manager for the local participant
func New(self model.ParticipantID, perm *permission.Model, lowWater int, logger *slog.Logger) *Manager {
	if lowWater <= 0 {
		lowWater = DefaultLowWater
	}
	return &Manager{
		self:     self,
		perm:     perm,
		logger:   logger.With(slog.String("component", "queue")),
		seen:     make(map[model.ParticipantID]uint64),
		lowWater: lowWater,
	}
}

// Add appends a track to the queue, applying locally and returning the
// operation to broadcast
func (m *Manager) Add(s *model.Session, track model.Track, by model.ParticipantID) (model.QueueOpPayload, error) {
	if !m.perm.CanMutateQueue(s, by) {
		return model.QueueOpPayload{}, model.ErrPermissionDenied
	}

	op := m.newOp(model.QueueStep{
		Kind:  model.QueueStepInsert,
		Index: len(s.Queue),
		Item:  &model.QueueItem{Track: track, AddedBy: by},
	})
	m.apply(s, op)
	return op, nil
}

// PlayNext inserts a track at the head of the queue
func (m *Manager) PlayNext(s *model.Session, track model.Track, by model.ParticipantID) (model.QueueOpPayload, error) {
	if !m.perm.CanMutateQueue(s, by) {
		return model.QueueOpPayload{}, model.ErrPermissionDenied
	}

	op := m.newOp(model.QueueStep{
		Kind:  model.QueueStepInsert,
		Index: 0,
		Item:  &model.QueueItem{Track: track, AddedBy: by},
	})
	m.apply(s, op)
	return op, nil
}

// RemoveAt removes the item at the given index
func (m *Manager) RemoveAt(s *model.Session, index int, by model.ParticipantID) (model.QueueOpPayload, error) {
	if !m.perm.CanMutateQueue(s, by) {
		return model.QueueOpPayload{}, model.ErrPermissionDenied
	}
	if index < 0 || index >= len(s.Queue) {
		return model.QueueOpPayload{}, model.ErrQueueIndexOutOfRange
	}

	op := m.newOp(model.QueueStep{
		Kind:  model.QueueStepRemove,
		Index: index,
	})
	m.apply(s, op)
	return op, nil
}

// Move reorders the item at from to sit at to. It is modelled as a remove
// plus an insert sharing one sequence number, so remote peers apply the
// reorder atomically.
func (m *Manager) Move(s *model.Session, from, to int, by model.ParticipantID) (model.QueueOpPayload, error) {
	if !m.perm.CanMutateQueue(s, by) {
		return model.QueueOpPayload{}, model.ErrPermissionDenied
	}
	if from < 0 || from >= len(s.Queue) || to < 0 || to >= len(s.Queue) {
		return model.QueueOpPayload{}, model.ErrQueueIndexOutOfRange
	}

	item := s.Queue[from]
	op := m.newOp(
		model.QueueStep{Kind: model.QueueStepRemove, Index: from},
		model.QueueStep{Kind: model.QueueStepInsert, Index: to, Item: &item},
	)
	m.apply(s, op)
	return op, nil
}

// PopNext removes and returns the head of the queue for playback, returning
// the operation to broadcast so every peer's queue stays aligned
func (m *Manager) PopNext(s *model.Session, by model.ParticipantID) (model.QueueItem, model.QueueOpPayload, error) {
	if !m.perm.CanMutatePlayback(s, by) {
		return model.QueueItem{}, model.QueueOpPayload{}, model.ErrPermissionDenied
	}
	if len(s.Queue) == 0 {
		return model.QueueItem{}, model.QueueOpPayload{}, model.ErrQueueEmpty
	}

	item := s.Queue[0]
	op := m.newOp(model.QueueStep{Kind: model.QueueStepRemove, Index: 0})
	m.apply(s, op)
	return item, op, nil
}

// ApplyRemote applies an operation received from another peer, reporting
// whether it changed anything. Duplicates and stale redeliveries are dropped
// by comparing the sender's counter against the highest one already applied.
func (m *Manager) ApplyRemote(s *model.Session, op model.QueueOpPayload) bool {
	if op.Seq.Counter <= m.seen[op.Seq.Peer] {
		m.logger.Debug("dropped stale queue op",
			slog.String("peer", string(op.Seq.Peer)),
			slog.Uint64("counter", op.Seq.Counter))
		return false
	}
	m.apply(s, op)
	return true
}

// Seen returns a copy of the per-peer high-water marks, for embedding in a
// snapshot so adopters know which ops are already folded into its queue
func (m *Manager) Seen() map[model.ParticipantID]uint64 {
	out := make(map[model.ParticipantID]uint64, len(m.seen))
	for peer, counter := range m.seen {
		out[peer] = counter
	}
	return out
}

// MergeSeen folds a snapshot's high-water marks into the local ones, so an
// op redelivered around the snapshot exchange is dropped instead of applied
// on top of a queue that already contains its effect. The local counter also
// advances past any of our own ops the snapshot carries, so sequence numbers
// are not reused after a reconnect.
func (m *Manager) MergeSeen(seen map[model.ParticipantID]uint64) {
	for peer, counter := range seen {
		if counter > m.seen[peer] {
			m.seen[peer] = counter
		}
	}
	if c := m.seen[m.self]; c > m.counter {
		m.counter = c
	}
}

// BelowLowWater reports whether the queue has drained below the autofetch
// threshold
func (m *Manager) BelowLowWater(s *model.Session) bool {
	return len(s.Queue) < m.lowWater
}

func (m *Manager) newOp(steps ...model.QueueStep) model.QueueOpPayload {
	m.counter++
	return model.QueueOpPayload{
		Seq:   model.OpSeq{Peer: m.self, Counter: m.counter},
		Steps: steps,
	}
}

// apply executes the op's steps against the queue and records the sequence.
// Indexes are clamped rather than rejected: a concurrent mutation on another
// peer may have shifted positions, and a slightly misplaced item beats a
// diverged queue (the next snapshot reconciles exact order).
func (m *Manager) apply(s *model.Session, op model.QueueOpPayload) {
	for _, step := range op.Steps {
		switch step.Kind {
		case model.QueueStepInsert:
			if step.Item == nil {
				continue
			}
			idx := step.Index
			if idx < 0 {
				idx = 0
			}
			if idx > len(s.Queue) {
				idx = len(s.Queue)
			}
			s.Queue = append(s.Queue, model.QueueItem{})
			copy(s.Queue[idx+1:], s.Queue[idx:])
			s.Queue[idx] = *step.Item
		case model.QueueStepRemove:
			if step.Index < 0 || step.Index >= len(s.Queue) {
				continue
			}
			s.Queue = append(s.Queue[:step.Index], s.Queue[step.Index+1:]...)
		}
	}
	if op.Seq.Counter > m.seen[op.Seq.Peer] {
		m.seen[op.Seq.Peer] = op.Seq.Counter
	}
}
