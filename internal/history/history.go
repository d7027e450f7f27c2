// Package history maps raw (artist, title) pairs to user-corrected ones.
//
// Corrections are keyed by the original names so that a later edit of the
// same logical track never masks a genuine track change: change detection
// always runs on raw names, display and outbound payloads on resolved
// ones.
package history

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"
)

// keySeparator joins original artist and title into a map key. Four pipes
// to survive names that contain pipes themselves.
const keySeparator = "||||"

// entry is the persisted override for one original (artist, title) pair.
type entry struct {
	Artist string `json:"artist"`
	Track  string `json:"track"`
}

// Resolver holds the edit-history mapping with thread-safe access and
// synchronous persistence to a JSON file.
type Resolver struct {
	mu       sync.RWMutex
	entries  map[string]entry
	filePath string
	logger   zerolog.Logger
}

// NewResolver creates a Resolver persisting to filePath and loads any
// existing history. A missing file is not an error; a corrupt file is
// logged and treated as empty.
func NewResolver(filePath string, logger zerolog.Logger) *Resolver {
	r := &Resolver{
		entries:  make(map[string]entry),
		filePath: filePath,
		logger:   logger.With().Str("component", "history").Logger(),
	}
	r.load()
	return r
}

// Resolve returns the stored override for the original names, or the
// inputs unchanged if no edit exists.
func (r *Resolver) Resolve(artist, title string) (string, string) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[key(artist, title)]
	if !ok {
		return artist, title
	}
	return e.Artist, e.Track
}

// RecordEdit upserts an override for the original names and persists the
// mapping synchronously. On a persistence failure the in-memory mapping
// is kept and the error is returned.
func (r *Resolver) RecordEdit(origArtist, origTitle, newArtist, newTitle string) error {
	r.mu.Lock()
	r.entries[key(origArtist, origTitle)] = entry{Artist: newArtist, Track: newTitle}
	data, err := json.MarshalIndent(r.entries, "", "  ")
	r.mu.Unlock()
	if err != nil {
		return fmt.Errorf("failed to encode edit history: %w", err)
	}

	if err := r.persist(data); err != nil {
		r.logger.Warn().Err(err).Msg("Failed to persist edit history, keeping in-memory mapping")
		return err
	}

	r.logger.Info().
		Str("original", origArtist+" - "+origTitle).
		Str("edited", newArtist+" - "+newTitle).
		Msg("Recorded track edit")
	return nil
}

// Len returns the number of stored overrides.
func (r *Resolver) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// persist writes atomically via temp file + rename.
func (r *Resolver) persist(data []byte) error {
	dir := filepath.Dir(r.filePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	tmpPath := r.filePath + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmpPath, r.filePath)
}

func (r *Resolver) load() {
	data, err := os.ReadFile(r.filePath)
	if err != nil {
		if !os.IsNotExist(err) {
			r.logger.Warn().Err(err).Msg("Failed to read edit history")
		}
		return
	}

	var entries map[string]entry
	if err := json.Unmarshal(data, &entries); err != nil {
		r.logger.Warn().Err(err).Msg("Corrupt edit history file, starting empty")
		return
	}

	r.entries = entries
	r.logger.Debug().Int("entries", len(entries)).Msg("Loaded edit history")
}

func key(artist, title string) string {
	return artist + keySeparator + title
}
