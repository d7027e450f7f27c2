package reconcile

import (
	"sync"
	"time"
)

// Snapshot is the reconciled, trusted view of current playback at a point
// in time. It is written only by the Reconciler; everything downstream
// reads it through the Store.
//
// Invariants: PositionSec is monotonically non-decreasing within a single
// track unless a probe correction or new-track reset occurs, and
// PositionSec <= DurationSec whenever DurationSec > 0.
type Snapshot struct {
	Track       string
	Artist      string
	Album       string
	DurationSec float64
	PositionSec float64
	CapturedAt  time.Time
	Playing     bool
}

// Store holds the latest reconciled snapshot with synchronized access.
type Store struct {
	mu   sync.RWMutex
	snap Snapshot
	ok   bool
	now  func() time.Time
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{now: time.Now}
}

// Current returns the snapshot extrapolated to now.
//
// Returns false when no track is known or the last known state is not
// playing; a missing snapshot is the normal "stopped" signal, not an
// error. While playing, the position is advanced by the wall-clock time
// elapsed since capture, clamped to the duration.
func (s *Store) Current() (Snapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.ok || !s.snap.Playing {
		return Snapshot{}, false
	}

	snap := s.snap
	elapsed := s.now().Sub(snap.CapturedAt).Seconds()
	if elapsed > 0 {
		snap.PositionSec += elapsed
		if snap.DurationSec > 0 && snap.PositionSec > snap.DurationSec {
			snap.PositionSec = snap.DurationSec
		}
	}
	return snap, true
}

// Paused reports whether a track is known but not currently playing.
func (s *Store) Paused() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ok && !s.snap.Playing
}

// set replaces the stored snapshot.
func (s *Store) set(snap Snapshot) {
	s.mu.Lock()
	s.snap = snap
	s.ok = true
	s.mu.Unlock()
}

// clear drops the stored snapshot.
func (s *Store) clear() {
	s.mu.Lock()
	s.snap = Snapshot{}
	s.ok = false
	s.mu.Unlock()
}

// last returns the raw stored snapshot regardless of play state.
func (s *Store) last() (Snapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap, s.ok
}
