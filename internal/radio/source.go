package radio

import (
	"context"

	"github.com/soundcult/listenparty/internal/model"
)

// Source supplies follow-up tracks when the shared queue runs low. It is
// advisory: the session stays correct if a source returns nothing or errors.
type Source interface {
	// NextTracks returns up to n tracks to append, optionally seeded by the
	// track currently playing
	NextTracks(ctx context.Context, seed *model.Track, n int) ([]model.Track, error)
}
