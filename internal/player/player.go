package player

import "github.com/soundcult/listenparty/internal/model"

// Player is the local playback collaborator. The session core only emits
// discrete intents and reads back position reports for drift measurement; it
// never does any audio work itself.
type Player interface {
	// LoadTrack prepares a track for playback, resetting position to zero
	LoadTrack(track model.Track)

	Play()
	Pause()

	// Seek jumps to the given position in the loaded track
	Seek(positionMs int64)

	// PositionMs reports the player's current position. Reports are consumed
	// locally for drift correction and are never broadcast.
	PositionMs() int64
}
