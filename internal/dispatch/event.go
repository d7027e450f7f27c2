package dispatch

import (
	"time"
)

// EventType tags an outbound playback event.
type EventType string

const (
	EventNowPlaying EventType = "nowplaying"
	EventPaused     EventType = "paused"
	EventScrobble   EventType = "scrobble"
)

// IsPlaying reports whether the event describes active playback.
func (t EventType) IsPlaying() bool {
	return t != EventPaused
}

// Event is an immutable outbound playback event. Names are the resolved
// display names (after edit-history), captured at construction time.
type Event struct {
	Type        EventType
	Artist      string
	Track       string
	Album       string
	DurationSec float64
	PositionSec float64
	ArtURL      string
	StartedAt   time.Time // wall clock when the session began; may be zero
	At          time.Time // when the event was emitted
}
