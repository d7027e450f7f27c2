package reconcile

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/nopxx/scrobblerd/internal/feed"
)

// ProbeResult is an authoritative player reading from the precise probe.
type ProbeResult struct {
	State       string // "playing", "paused", "stopped" or "error"
	PositionSec float64
	DurationSec float64
}

// Usable reports whether the result carries a position worth adopting.
func (r ProbeResult) Usable() bool {
	return (r.State == "playing" || r.State == "paused") && r.DurationSec > 0
}

// Probe is an optional, slower, authoritative query used to disambiguate
// suspect feed data. Implementations are typically an OS scripting bridge
// and may fail or hang; the reconciler bounds every call with a timeout
// and falls back to its heuristics on any error.
type Probe interface {
	Query(ctx context.Context) (ProbeResult, error)
}

// Tuning holds the reconciliation heuristic cutoffs. The exact values are
// tuning parameters, not protocol requirements.
type Tuning struct {
	// SameDurationToleranceSec is the max duration difference for two
	// reports to count as the same track.
	SameDurationToleranceSec float64
	// NearZeroCutoffSec is the position below which a report is treated
	// as a potential stale re-report from the start of the track.
	NearZeroCutoffSec float64
	// RecentWindowSec bounds the elapsed wall time under which a small
	// backwards move is considered feed jitter.
	RecentWindowSec float64
	// JitterToleranceSec is the backwards move, in seconds, tolerated
	// before the jitter heuristic kicks in.
	JitterToleranceSec float64
	// ProbeTimeout bounds a single probe query.
	ProbeTimeout time.Duration
}

// DefaultTuning returns the stock cutoffs.
func DefaultTuning() Tuning {
	return Tuning{
		SameDurationToleranceSec: 1.0,
		NearZeroCutoffSec:        1.0,
		RecentWindowSec:          2.0,
		JitterToleranceSec:       0.5,
		ProbeTimeout:             2 * time.Second,
	}
}

// Reconciler consumes raw push events and maintains the snapshot Store.
//
// The feed re-reports stale positions at track boundaries, duplicates
// events, and occasionally jumps backwards; Ingest applies correction
// heuristics so that the stored position never regresses within a track
// unless the probe supplies a more authoritative reading.
type Reconciler struct {
	store  *Store
	probe  Probe // may be nil
	tuning Tuning
	logger zerolog.Logger

	// mu serializes ingestion; the probe round-trip must not run while
	// holding the store lock.
	mu sync.Mutex
}

// New creates a Reconciler writing into store. probe may be nil.
func New(store *Store, probe Probe, tuning Tuning, logger zerolog.Logger) *Reconciler {
	return &Reconciler{
		store:  store,
		probe:  probe,
		tuning: tuning,
		logger: logger.With().Str("component", "reconcile").Logger(),
	}
}

// Ingest reconciles one raw event into the store. Side-effect-only;
// always succeeds.
func (r *Reconciler) Ingest(ev feed.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	// An event without identity means "no track": clear the snapshot.
	if ev.Track == "" || ev.Artist == "" {
		r.store.clear()
		return
	}

	prev, havePrev := r.store.last()

	// Fields missing from the event retain the previous values.
	album := ev.Album
	if album == "" && havePrev {
		album = prev.Album
	}
	duration := ev.DurationSec
	if duration <= 0 && havePrev {
		duration = prev.DurationSec
	}

	next := Snapshot{
		Track:       ev.Track,
		Artist:      ev.Artist,
		Album:       album,
		DurationSec: duration,
		PositionSec: ev.PositionSec,
		CapturedAt:  ev.ReceivedAt,
		Playing:     ev.Playing(),
	}

	if !havePrev || !r.sameTrack(prev, next) {
		next.PositionSec = clamp(next.PositionSec, 0, duration)
		r.store.set(next)
		r.logger.Debug().
			Str("track", next.Track).
			Str("artist", next.Artist).
			Float64("position", next.PositionSec).
			Bool("playing", next.Playing).
			Msg("New track snapshot")
		return
	}

	r.reconcileSameTrack(prev, &next)
	r.store.set(next)
}

// sameTrack compares artist+title equality and duration within tolerance.
func (r *Reconciler) sameTrack(prev, next Snapshot) bool {
	if prev.Artist != next.Artist || prev.Track != next.Track {
		return false
	}
	if prev.DurationSec > 0 && next.DurationSec > 0 {
		return math.Abs(prev.DurationSec-next.DurationSec) <= r.tuning.SameDurationToleranceSec
	}
	return true
}

// reconcileSameTrack adjusts next's position for a continuing track.
func (r *Reconciler) reconcileSameTrack(prev Snapshot, next *Snapshot) {
	elapsed := next.CapturedAt.Sub(prev.CapturedAt).Seconds()
	if elapsed < 0 {
		elapsed = 0
	}

	// Best local estimate of where playback should be now. A paused
	// track does not advance.
	expected := prev.PositionSec
	if prev.Playing {
		expected = clamp(prev.PositionSec+elapsed, 0, next.DurationSec)
	}

	raw := next.PositionSec
	adopted := raw
	corrected := false

	switch {
	case raw <= r.tuning.NearZeroCutoffSec && prev.PositionSec > r.tuning.NearZeroCutoffSec:
		// Position-reset anomaly: the feed re-reported from a stale
		// cached value near zero mid-track. Ask the probe; if it is
		// unavailable or fails, never regress.
		if result, ok := r.queryProbe(); ok {
			next.DurationSec = result.DurationSec
			next.Playing = result.State == "playing"
			adopted = result.PositionSec
			corrected = true
			r.logger.Debug().
				Float64("position", adopted).
				Str("state", result.State).
				Msg("Probe correction applied")
		} else {
			adopted = math.Max(raw, prev.PositionSec)
		}
	case raw <= r.tuning.NearZeroCutoffSec:
		// Near-zero report at the start of a track: trust whichever of
		// the raw value and the local estimate is further along.
		adopted = math.Max(raw, expected)
	case raw < prev.PositionSec-r.tuning.JitterToleranceSec && elapsed < r.tuning.RecentWindowSec:
		// Plausible mid-track value that stepped backwards right after
		// the previous report: feed jitter, keep the estimate.
		adopted = expected
	}

	// Monotonic within a track unless the probe said otherwise.
	if !corrected && adopted < prev.PositionSec {
		adopted = prev.PositionSec
	}

	next.PositionSec = clamp(adopted, 0, next.DurationSec)
}

// queryProbe runs the probe with a bounded timeout. Returns false when no
// probe is configured, the query fails, or the result is not usable.
func (r *Reconciler) queryProbe() (ProbeResult, bool) {
	if r.probe == nil {
		return ProbeResult{}, false
	}

	ctx, cancel := context.WithTimeout(context.Background(), r.tuning.ProbeTimeout)
	defer cancel()

	result, err := r.probe.Query(ctx)
	if err != nil {
		r.logger.Debug().Err(err).Msg("Probe query failed")
		return ProbeResult{}, false
	}
	if !result.Usable() {
		return ProbeResult{}, false
	}
	return result, true
}

// clamp bounds v to [lo, hi]; hi <= 0 means no upper bound.
func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if hi > 0 && v > hi {
		return hi
	}
	return v
}
