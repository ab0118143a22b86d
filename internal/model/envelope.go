package model

import (
	"encoding/json"
	"time"
)

// MessageType identifies the kind of envelope on a session topic
type MessageType string

const (
	MessageSnapshotRequest   MessageType = "snapshot_request"
	MessageSnapshotResponse  MessageType = "snapshot_response"
	MessagePlaybackUpdate    MessageType = "playback_update"
	MessageQueueOp           MessageType = "queue_op"
	MessageParticipantUpdate MessageType = "participant_update"
	MessageSessionEnd        MessageType = "session_end"
)

// Envelope is the wire format for every message published to a session topic.
// SenderID is the publishing device's instance ID, not a participant ID, so a
// peer can recognise and skip its own messages. The transport delivers
// at-least-once, so every payload must be safe to apply twice.
type Envelope struct {
	Type        MessageType     `json:"type"`
	SessionCode SessionCode     `json:"session_code"`
	SenderID    string          `json:"sender_id"`
	Timestamp   time.Time       `json:"timestamp"`
	Payload     json.RawMessage `json:"payload,omitempty"`
}

// NewEnvelope builds an envelope with a marshalled payload
func NewEnvelope(t MessageType, code SessionCode, senderID string, ts time.Time, payload any) (Envelope, error) {
	env := Envelope{
		Type:        t,
		SessionCode: code,
		SenderID:    senderID,
		Timestamp:   ts,
	}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return Envelope{}, err
		}
		env.Payload = raw
	}
	return env, nil
}

// DecodePayload unmarshals the envelope payload into target
func (e Envelope) DecodePayload(target any) error {
	return json.Unmarshal(e.Payload, target)
}

// SnapshotRequestPayload asks whoever is hosting the session to publish a
// full snapshot. Sent on join and after every reconnect.
type SnapshotRequestPayload struct {
	// RequestID correlates the snapshot response with the request
	RequestID string `json:"request_id"`
	// Joiner is set when the request is part of joining, so the host can
	// add the participant before snapshotting
	Joiner *Profile `json:"joiner,omitempty"`
}

// SnapshotResponsePayload carries the full session state. QueueSeen holds
// the responder's per-peer queue op high-water marks: ops at or below these
// counters are already folded into the snapshot's queue, so an adopter must
// not apply them again if the transport redelivers them around the exchange.
type SnapshotResponsePayload struct {
	RequestID string                   `json:"request_id"`
	Session   Session                  `json:"session"`
	QueueSeen map[ParticipantID]uint64 `json:"queue_seen,omitempty"`
}

// PlaybackUpdatePayload carries a new PlaybackState candidate
type PlaybackUpdatePayload struct {
	State PlaybackState `json:"state"`
}

// ParticipantUpdatePayload replaces the participant list wholesale. It is
// published by the host on join/leave/grant/revoke; replacement is naturally
// idempotent under redelivery.
type ParticipantUpdatePayload struct {
	Participants []Participant `json:"participants"`
}

// SessionEndPayload announces the terminal state of a session
type SessionEndPayload struct {
	Reason string `json:"reason,omitempty"`
}

// OpSeq is a locally-unique queue operation sequence: every peer tags its own
// ops with its participant ID and a monotonically increasing counter. Peers
// drop ops whose counter does not advance the sender's last-seen counter.
type OpSeq struct {
	Peer    ParticipantID `json:"peer"`
	Counter uint64        `json:"counter"`
}

// QueueStepKind is a primitive queue mutation
type QueueStepKind string

const (
	QueueStepInsert QueueStepKind = "insert"
	QueueStepRemove QueueStepKind = "remove"
)

// QueueStep is one primitive mutation within a queue operation. Insert steps
// carry the item; remove steps only the index. Index is clamped on apply so a
// concurrent peer mutation cannot make a step fatal.
type QueueStep struct {
	Kind  QueueStepKind `json:"kind"`
	Index int           `json:"index"`
	Item  *QueueItem    `json:"item,omitempty"`
}

// QueueOpPayload is a discrete, idempotent queue operation. A reorder is a
// remove step plus an insert step sharing the one sequence number, so other
// peers observe it atomically.
type QueueOpPayload struct {
	Seq   OpSeq       `json:"seq"`
	Steps []QueueStep `json:"steps"`
}
