package model

// TrackID identifies a track in whatever catalog the player resolves from
type TrackID string

// Track is the metadata the session core needs to describe an audio track.
// Resolution to an actual audio stream is the player's problem.
type Track struct {
	ID         TrackID `json:"id"`
	Title      string  `json:"title"`
	Artist     string  `json:"artist"`
	Thumbnail  string  `json:"thumbnail,omitempty"`
	DurationMs int64   `json:"duration_ms"`
}

// QueueItem is a track plus who queued it. Position is implicit: the item's
// index in Session.Queue.
type QueueItem struct {
	Track   Track         `json:"track"`
	AddedBy ParticipantID `json:"added_by"`
}
