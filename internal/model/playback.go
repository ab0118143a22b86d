package model

import "time"

// PlaybackState is the shared playback value peers converge on. PositionMs is
// only meaningful relative to UpdatedAt: while playing, the live position is
// extrapolated as PositionMs plus wall time elapsed since UpdatedAt.
type PlaybackState struct {
	CurrentTrack *Track        `json:"current_track,omitempty"`
	IsPlaying    bool          `json:"is_playing"`
	PositionMs   int64         `json:"position_ms"`
	UpdatedBy    ParticipantID `json:"updated_by"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

// PositionAt extrapolates the playback position at the given instant
func (p PlaybackState) PositionAt(now time.Time) int64 {
	if !p.IsPlaying || p.UpdatedAt.IsZero() {
		return p.PositionMs
	}
	elapsed := now.Sub(p.UpdatedAt).Milliseconds()
	if elapsed < 0 {
		return p.PositionMs
	}
	pos := p.PositionMs + elapsed
	if p.CurrentTrack != nil && p.CurrentTrack.DurationMs > 0 && pos > p.CurrentTrack.DurationMs {
		pos = p.CurrentTrack.DurationMs
	}
	return pos
}

// Supersedes reports whether this state wins over other under
// last-controller-wins: strictly newer UpdatedAt wins, and exact-timestamp
// ties are broken by comparing participant IDs so every peer picks the same
// winner. Anything else is stale and must be dropped.
func (p PlaybackState) Supersedes(other PlaybackState) bool {
	if p.UpdatedAt.After(other.UpdatedAt) {
		return true
	}
	if p.UpdatedAt.Equal(other.UpdatedAt) {
		return p.UpdatedBy > other.UpdatedBy
	}
	return false
}
