package feed

import (
	"strconv"
	"time"
)

// Event is a single raw player-state report from the push feed.
//
// Values arrive unvalidated: positions can be stale or re-reported from a
// cached value, durations may be in milliseconds depending on the player
// build, and fields can be missing entirely. The reconciler turns these
// into a trustworthy snapshot.
type Event struct {
	Track       string
	Artist      string
	Album       string
	DurationSec float64
	PositionSec float64
	State       string // free text; only "Playing" counts as playing
	ReceivedAt  time.Time
}

// Playing reports whether the event describes active playback.
func (e Event) Playing() bool {
	return e.State == "Playing"
}

// ParsePlayerInfo extracts an Event from a playerInfo-style notification
// payload, the loosely-typed key/value map Apple Music broadcasts on every
// player state change.
//
// Each field is pulled out by name with a typed fallback (numbers may be
// delivered as strings), so a malformed value degrades to its zero value
// instead of failing the whole event. Durations over 1000 are taken to be
// milliseconds and converted to seconds.
func ParsePlayerInfo(payload map[string]any, receivedAt time.Time) (Event, bool) {
	if payload == nil {
		return Event{}, false
	}

	return Event{
		Track:       asString(payload["Name"]),
		Artist:      asString(payload["Artist"]),
		Album:       asString(payload["Album"]),
		DurationSec: normalizeDuration(asFloat(payload["Total Time"])),
		PositionSec: asFloat(payload["Player Position"]),
		State:       asString(payload["Player State"]),
		ReceivedAt:  receivedAt,
	}, true
}

// normalizeDuration converts millisecond durations to seconds. The feed
// reports Total Time in ms on some player builds and in seconds on others;
// no real track is longer than 1000 seconds short of edge cases we accept.
func normalizeDuration(v float64) float64 {
	if v > 1000 {
		return v / 1000
	}
	return v
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case string:
		f, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return 0
		}
		return f
	default:
		return 0
	}
}
