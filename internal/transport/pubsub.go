package transport

import (
	"context"

	"github.com/soundcult/listenparty/internal/model"
)

// Subscription is a live attachment to one session topic
type Subscription interface {
	// Messages yields inbound envelopes. The channel closes when the
	// subscription terminates, either via Close or a transport failure.
	Messages() <-chan model.Envelope

	// Err returns the terminal error after Messages closes.
	// It is nil when the subscription was closed deliberately.
	Err() error

	// Close terminates the subscription. Safe to call more than once.
	Close() error
}

// PubSub is the external managed publish/subscribe channel the session core
// builds on. Delivery is at-least-once and ordered per topic for currently
// connected subscribers; messages published while a peer is disconnected are
// not replayed, which is why peers re-request snapshots after reconnecting.
type PubSub interface {
	Subscribe(ctx context.Context, topic string) (Subscription, error)

	// Publish returns once the transport has accepted the message for
	// delivery, not once peers have received it.
	Publish(ctx context.Context, topic string, env model.Envelope) error
}

const topicPrefix = "listenparty:session:"

// Topic returns the pub/sub topic for a session code
func Topic(code model.SessionCode) string {
	return topicPrefix + string(code)
}
