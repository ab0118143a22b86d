package request

// Track is a track reference in request bodies
type Track struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	Artist     string `json:"artist"`
	Thumbnail  string `json:"thumbnail,omitempty"`
	DurationMs int64  `json:"duration_ms"`
}

// CreateSessionRequest is the request body for creating a session
type CreateSessionRequest struct {
	// DisplayName overrides the daemon's configured display name
	DisplayName string `json:"display_name,omitempty"`
}

// JoinSessionRequest is the request body for joining a session by code
type JoinSessionRequest struct {
	Code        string `json:"code"`
	DisplayName string `json:"display_name,omitempty"`
}

// PlayTrackRequest is the request body for switching to a track
type PlayTrackRequest struct {
	Track Track `json:"track"`
}

// SeekRequest is the request body for seeking within the current track
type SeekRequest struct {
	PositionMs int64 `json:"position_ms"`
}

// QueueAddRequest is the request body for adding a track to the queue
type QueueAddRequest struct {
	Track Track `json:"track"`
	// Next inserts at the head of the queue instead of appending
	Next bool `json:"next,omitempty"`
}

// QueueMoveRequest is the request body for reordering the queue
type QueueMoveRequest struct {
	From int `json:"from"`
	To   int `json:"to"`
}

// ControlRequest is the request body for granting or revoking control
type ControlRequest struct {
	Grant bool `json:"grant"`
}
