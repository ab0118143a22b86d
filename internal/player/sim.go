package player

import (
	"log/slog"
	"sync"
	"time"

	"github.com/soundcult/listenparty/internal/dependencies/clock"
	"github.com/soundcult/listenparty/internal/model"
)

// Sim is a simulated player that advances position by wall time while
// playing. The daemon uses it in place of a real audio backend, and tests
// use it to verify intent sequences and drift behaviour.
type Sim struct {
	clock  clock.Clock
	logger *slog.Logger

	mu         sync.Mutex
	track      *model.Track
	playing    bool
	positionMs int64
	markedAt   time.Time

	// SkewMs offsets reported positions to simulate a drifting local player
	skewMs int64
}

// NewSim creates a simulated player
func NewSim(clk clock.Clock, logger *slog.Logger) *Sim {
	return &Sim{
		clock:  clk,
		logger: logger.With(slog.String("component", "player")),
	}
}

var _ Player = (*Sim)(nil)

// LoadTrack loads a track and rewinds to the start
func (p *Sim) LoadTrack(track model.Track) {
	p.mu.Lock()
	defer p.mu.Unlock()
	t := track
	p.track = &t
	p.positionMs = 0
	p.markedAt = p.clock.Now()
	p.logger.Info("load track",
		slog.String("track_id", string(track.ID)),
		slog.String("title", track.Title))
}

// Play starts advancing the position
func (p *Sim) Play() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.playing {
		return
	}
	p.playing = true
	p.markedAt = p.clock.Now()
	p.logger.Info("play")
}

// Pause freezes the position
func (p *Sim) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.playing {
		return
	}
	p.positionMs = p.positionLocked()
	p.playing = false
	p.logger.Info("pause", slog.Int64("position_ms", p.positionMs))
}

// Seek jumps to the given position
func (p *Sim) Seek(positionMs int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.positionMs = positionMs
	p.markedAt = p.clock.Now()
	p.logger.Info("seek", slog.Int64("position_ms", positionMs))
}

// PositionMs reports the simulated position including any configured skew
func (p *Sim) PositionMs() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.positionLocked() + p.skewMs
}

// SetSkew makes position reports drift by the given offset (for tests)
func (p *Sim) SetSkew(skewMs int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.skewMs = skewMs
}

// Track returns the currently loaded track, or nil
func (p *Sim) Track() *model.Track {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.track == nil {
		return nil
	}
	t := *p.track
	return &t
}

// Playing reports whether the simulated player is currently playing
func (p *Sim) Playing() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.playing
}

func (p *Sim) positionLocked() int64 {
	pos := p.positionMs
	if p.playing {
		pos += p.clock.Now().Sub(p.markedAt).Milliseconds()
	}
	if p.track != nil && p.track.DurationMs > 0 && pos > p.track.DurationMs {
		pos = p.track.DurationMs
	}
	return pos
}
