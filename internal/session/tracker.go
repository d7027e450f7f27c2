// Package session tracks playback sessions: it polls the reconciled
// snapshot, detects track changes, extrapolates the displayed position
// between polls, and decides when to emit now-playing, paused and
// scrobble events.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/nopxx/scrobblerd/internal/dispatch"
	"github.com/nopxx/scrobblerd/internal/reconcile"
)

// Signature identifies a track for change detection. It is always built
// from the raw player-reported names, never from edit-history overrides,
// so a user edit cannot mask a genuine track change.
type Signature struct {
	Artist string
	Title  string
}

// Settings is the tracker's slice of the application configuration, read
// fresh on every evaluation so hot reloads apply.
type Settings struct {
	ScrobblePercent      float64
	ScrobbleSeconds      float64
	NotificationsEnabled bool
}

// SnapshotSource provides the current reconciled playback snapshot.
type SnapshotSource interface {
	Current() (reconcile.Snapshot, bool)
}

// EventDispatcher receives outbound events for asynchronous delivery.
type EventDispatcher interface {
	Dispatch(ev dispatch.Event)
}

// NameResolver maps raw names to their user-corrected display form.
type NameResolver interface {
	Resolve(artist, title string) (string, string)
}

// ArtworkSource looks up artwork for a track; empty string means none.
type ArtworkSource interface {
	Lookup(ctx context.Context, artist, album string) string
}

// Notifier shows a desktop notification. Best-effort.
type Notifier interface {
	Send(title, subtitle string)
}

// playbackSession is the state carried across polls for one track.
type playbackSession struct {
	sig           Signature
	displayArtist string
	displayTitle  string
	album         string
	durationSec   float64
	positionSec   float64
	artURL        string
	startedAt     time.Time
	lastTick      time.Time
	scrobbled     bool

	// generation orders sessions so a late artwork result for a
	// previous track cannot overwrite the current one.
	generation uint64
}

// Status is a read-only view of the active session.
type Status struct {
	Artist      string
	Track       string
	Album       string
	PositionSec float64
	DurationSec float64
	Scrobbled   bool
	Playing     bool
}

// Deps are the tracker's injected collaborators. Artwork and Notifier
// are optional.
type Deps struct {
	Store      SnapshotSource
	Dispatcher EventDispatcher
	Resolver   NameResolver
	Artwork    ArtworkSource
	Notifier   Notifier
	Settings   func() Settings
	Logger     zerolog.Logger

	// PollInterval overrides the 3s default when positive.
	PollInterval time.Duration
}

// Tracker is the playback session state machine. Run owns its timers;
// all session state is guarded by mu because artwork results arrive on
// their own goroutines.
type Tracker struct {
	store      SnapshotSource
	dispatcher EventDispatcher
	resolver   NameResolver
	artwork    ArtworkSource
	notifier   Notifier
	settings   func() Settings
	logger     zerolog.Logger
	now        func() time.Time

	pollInterval   time.Duration
	tickInterval   time.Duration
	artworkTimeout time.Duration

	mu         sync.Mutex
	sess       *playbackSession
	generation uint64
}

// NewTracker creates a Tracker from its dependencies.
func NewTracker(deps Deps) *Tracker {
	pollInterval := deps.PollInterval
	if pollInterval <= 0 {
		pollInterval = 3 * time.Second
	}
	return &Tracker{
		store:          deps.Store,
		dispatcher:     deps.Dispatcher,
		resolver:       deps.Resolver,
		artwork:        deps.Artwork,
		notifier:       deps.Notifier,
		settings:       deps.Settings,
		logger:         deps.Logger.With().Str("component", "session").Logger(),
		now:            time.Now,
		pollInterval:   pollInterval,
		tickInterval:   time.Second,
		artworkTimeout: 10 * time.Second,
	}
}

// Run drives the tracker until ctx is cancelled: a poll timer that reads
// the snapshot store and a faster tick timer that extrapolates the
// displayed position between polls. Both timers are stopped on return.
func (t *Tracker) Run(ctx context.Context) {
	poll := time.NewTicker(t.pollInterval)
	defer poll.Stop()
	tick := time.NewTicker(t.tickInterval)
	defer tick.Stop()

	t.Poll()

	for {
		select {
		case <-ctx.Done():
			return
		case <-poll.C:
			t.Poll()
		case <-tick.C:
			t.Tick()
		}
	}
}

// Poll reads the current snapshot and advances the state machine:
// session teardown when playback stopped or paused, a new session on a
// track change, and a merge plus scrobble evaluation otherwise.
func (t *Tracker) Poll() {
	snap, ok := t.store.Current()

	t.mu.Lock()
	defer t.mu.Unlock()

	if !ok {
		if t.sess != nil {
			t.logger.Debug().Str("track", t.sess.displayTitle).Msg("Playback stopped")
			t.dispatcher.Dispatch(t.eventLocked(dispatch.EventPaused))
			t.sess = nil
		}
		return
	}

	sig := Signature{Artist: snap.Artist, Title: snap.Track}
	if t.sess == nil || t.sess.sig != sig {
		t.startSessionLocked(sig, snap)
		return
	}

	// Same track: adopt the reconciled values, then evaluate the
	// scrobble policy.
	t.sess.durationSec = snap.DurationSec
	t.sess.positionSec = snap.PositionSec
	if snap.Album != "" {
		t.sess.album = snap.Album
	}

	if t.sess.scrobbled {
		return
	}
	cfg := t.settings()
	if ShouldScrobble(t.sess.positionSec, t.sess.durationSec, cfg.ScrobblePercent, cfg.ScrobbleSeconds) {
		t.sess.scrobbled = true
		t.logger.Info().
			Str("artist", t.sess.displayArtist).
			Str("track", t.sess.displayTitle).
			Msg("Scrobbling track")
		t.dispatcher.Dispatch(t.eventLocked(dispatch.EventScrobble))
	}
}

// Tick extrapolates the displayed position between polls. It never
// triggers scrobble evaluation; that happens only on Poll.
func (t *Tracker) Tick() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.sess == nil {
		return
	}
	now := t.now()
	elapsed := now.Sub(t.sess.lastTick).Seconds()
	t.sess.lastTick = now
	if elapsed <= 0 {
		return
	}
	t.sess.positionSec += elapsed
	if t.sess.durationSec > 0 && t.sess.positionSec > t.sess.durationSec {
		t.sess.positionSec = t.sess.durationSec
	}
}

// startSessionLocked replaces the active session with a new one for sig
// and emits NowPlaying. Caller holds mu.
func (t *Tracker) startSessionLocked(sig Signature, snap reconcile.Snapshot) {
	artist, title := t.resolver.Resolve(sig.Artist, sig.Title)

	t.generation++
	now := t.now()
	t.sess = &playbackSession{
		sig:           sig,
		displayArtist: artist,
		displayTitle:  title,
		album:         snap.Album,
		durationSec:   snap.DurationSec,
		positionSec:   snap.PositionSec,
		startedAt:     now.Add(-time.Duration(snap.PositionSec * float64(time.Second))),
		lastTick:      now,
		generation:    t.generation,
	}

	t.logger.Info().
		Str("artist", artist).
		Str("track", title).
		Float64("duration", snap.DurationSec).
		Msg("New track")

	t.dispatcher.Dispatch(t.eventLocked(dispatch.EventNowPlaying))

	if t.notifier != nil && t.settings().NotificationsEnabled {
		go t.notifier.Send(title, artist)
	}
	if t.artwork != nil {
		go t.fetchArtwork(t.sess.generation, artist, snap.Album)
	}
}

// fetchArtwork looks up artwork off the poll loop and applies the result
// only if the session that requested it is still current.
func (t *Tracker) fetchArtwork(generation uint64, artist, album string) {
	ctx, cancel := context.WithTimeout(context.Background(), t.artworkTimeout)
	defer cancel()

	url := t.artwork.Lookup(ctx, artist, album)
	if url == "" {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.sess == nil || t.sess.generation != generation {
		t.logger.Debug().Str("artist", artist).Msg("Discarding stale artwork result")
		return
	}
	t.sess.artURL = url
}

// eventLocked builds an outbound event from the active session. Caller
// holds mu.
func (t *Tracker) eventLocked(typ dispatch.EventType) dispatch.Event {
	return dispatch.Event{
		Type:        typ,
		Artist:      t.sess.displayArtist,
		Track:       t.sess.displayTitle,
		Album:       t.sess.album,
		DurationSec: t.sess.durationSec,
		PositionSec: t.sess.positionSec,
		ArtURL:      t.sess.artURL,
		StartedAt:   t.sess.startedAt,
		At:          t.now(),
	}
}

// Status reports the active session, if any.
func (t *Tracker) Status() (Status, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.sess == nil {
		return Status{}, false
	}
	return Status{
		Artist:      t.sess.displayArtist,
		Track:       t.sess.displayTitle,
		Album:       t.sess.album,
		PositionSec: t.sess.positionSec,
		DurationSec: t.sess.durationSec,
		Scrobbled:   t.sess.scrobbled,
		Playing:     true,
	}, true
}
