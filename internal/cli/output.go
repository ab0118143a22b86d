package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"
)

// Output handles formatting output based on the configured format
type Output struct {
	format string
}

// NewOutput creates a new Output formatter
func NewOutput(format string) *Output {
	return &Output{format: format}
}

// Print outputs data in the configured format
func (o *Output) Print(data any) {
	if o.format == "json" {
		o.printJSON(data)
	} else {
		o.printText(data)
	}
}

// PrintMessage outputs a simple message
func (o *Output) PrintMessage(msg string) {
	if o.format == "json" {
		data, _ := json.Marshal(map[string]string{"message": msg})
		fmt.Println(string(data))
	} else {
		fmt.Println(msg)
	}
}

func (o *Output) printJSON(data any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(data)
}

func (o *Output) printText(data any) {
	switch v := data.(type) {
	case Session:
		o.printSession(v)
	case Playback:
		o.printPlayback(v)
	case Queue:
		o.printQueue(v)
	case []Participant:
		o.printParticipants(v)
	case Connection:
		o.printConnection(v)
	case HealthResult:
		o.printHealthResult(v)
	default:
		// Fallback to JSON for unknown types
		o.printJSON(data)
	}
}

// Track response type (matches API)
type Track struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	Artist     string `json:"artist"`
	DurationMs int64  `json:"duration_ms"`
}

// QueueItem response type
type QueueItem struct {
	Track   Track  `json:"track"`
	AddedBy string `json:"added_by"`
}

// Queue response type
type Queue struct {
	Items []QueueItem `json:"items"`
}

// Participant response type
type Participant struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	IsHost     bool   `json:"is_host"`
	CanControl bool   `json:"can_control"`
}

// Playback response type
type Playback struct {
	CurrentTrack *Track    `json:"current_track"`
	IsPlaying    bool      `json:"is_playing"`
	PositionMs   int64     `json:"position_ms"`
	UpdatedBy    string    `json:"updated_by"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Session response type
type Session struct {
	Code         string        `json:"code"`
	HostID       string        `json:"host_id"`
	HostName     string        `json:"host_name"`
	Participants []Participant `json:"participants"`
	Queue        []QueueItem   `json:"queue"`
	Playback     Playback      `json:"playback"`
	CreatedAt    time.Time     `json:"created_at"`
}

// Connection response type
type Connection struct {
	Status           string `json:"status"`
	Attempt          int    `json:"attempt"`
	NextRetrySeconds int    `json:"next_retry_seconds"`
}

// HealthResult response type
type HealthResult struct {
	Status string `json:"status"`
}

func (o *Output) printSession(s Session) {
	fmt.Printf("Session %s\n", s.Code)
	fmt.Printf("  Host: %s\n", s.HostName)
	fmt.Printf("  Created: %s\n", s.CreatedAt.Format("2006-01-02 15:04:05"))
	fmt.Println("  Participants:")
	for _, p := range s.Participants {
		fmt.Printf("    %s\n", participantLine(p))
	}
	if s.Playback.CurrentTrack != nil {
		fmt.Printf("  Now playing: %s\n", playbackLine(s.Playback))
	}
	if len(s.Queue) > 0 {
		fmt.Printf("  Queue: %d track(s)\n", len(s.Queue))
	}
}

func (o *Output) printPlayback(p Playback) {
	if p.CurrentTrack == nil {
		fmt.Println("Nothing playing")
		return
	}
	fmt.Println(playbackLine(p))
}

func (o *Output) printQueue(q Queue) {
	if len(q.Items) == 0 {
		fmt.Println("Queue is empty")
		return
	}
	for i, item := range q.Items {
		fmt.Printf("%3d. %s - %s (added by %s)\n", i, item.Track.Title, item.Track.Artist, item.AddedBy)
	}
}

func (o *Output) printParticipants(participants []Participant) {
	for _, p := range participants {
		fmt.Println(participantLine(p))
	}
}

func (o *Output) printConnection(c Connection) {
	switch c.Status {
	case "reconnecting":
		fmt.Printf("Reconnecting (attempt %d, retry in %ds)\n", c.Attempt, c.NextRetrySeconds)
	default:
		fmt.Println(strings.ToUpper(c.Status[:1]) + c.Status[1:])
	}
}

func (o *Output) printHealthResult(h HealthResult) {
	fmt.Printf("Daemon status: %s\n", h.Status)
}

func participantLine(p Participant) string {
	var tags []string
	if p.IsHost {
		tags = append(tags, "host")
	}
	if p.CanControl {
		tags = append(tags, "control")
	}
	line := p.Name
	if len(tags) > 0 {
		line += " [" + strings.Join(tags, ", ") + "]"
	}
	return line
}

func playbackLine(p Playback) string {
	state := "paused"
	if p.IsPlaying {
		state = "playing"
	}
	return fmt.Sprintf("%s - %s [%s at %s]",
		p.CurrentTrack.Title, p.CurrentTrack.Artist, state, formatPosition(p.PositionMs, p.CurrentTrack.DurationMs))
}

func formatPosition(positionMs, durationMs int64) string {
	format := func(ms int64) string {
		s := ms / 1000
		return fmt.Sprintf("%d:%02d", s/60, s%60)
	}
	if durationMs <= 0 {
		return format(positionMs)
	}
	return format(positionMs) + "/" + format(durationMs)
}
