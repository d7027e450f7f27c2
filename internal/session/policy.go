package session

// Default scrobble thresholds, matching Last.fm's recommendations: half
// the track, or four minutes of playback, whichever comes first.
const (
	DefaultScrobblePercent = 50.0
	DefaultScrobbleSeconds = 240.0
)

// ShouldScrobble reports whether a play at positionSec of a track with
// durationSec qualifies for a scrobble. True when the played percentage
// reaches percentThreshold (only meaningful with a known duration), or
// when the absolute position reaches absoluteSec regardless of duration.
//
// Pure and idempotent; the caller gates at-most-once emission.
func ShouldScrobble(positionSec, durationSec, percentThreshold, absoluteSec float64) bool {
	if durationSec > 0 && positionSec/durationSec*100 >= percentThreshold {
		return true
	}
	return positionSec >= absoluteSec
}
