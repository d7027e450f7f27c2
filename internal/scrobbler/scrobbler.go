// Package scrobbler connects playback events to the Last.fm API: "now
// playing" updates on track start, scrobbles once the decision policy
// fires, and the two-phase browser authorization flow.
package scrobbler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/nopxx/scrobblerd/internal/dispatch"
	"github.com/nopxx/scrobblerd/pkg/lastfm"
)

// Settings is the Last.fm slice of the application configuration, read
// fresh for every delivery so hot reloads apply.
type Settings struct {
	Enabled    bool
	APIKey     string
	APISecret  string
	SessionKey string
	Username   string
}

// Service delivers events to Last.fm and manages authorization state.
//
// Missing credentials or a missing session key never produce an error:
// the call is skipped and the condition is visible through StatusText.
type Service struct {
	settings func() Settings
	logger   zerolog.Logger
	now      func() time.Time

	mu           sync.Mutex
	pendingToken string // transient; cleared once a session key is obtained

	// newClient is swapped in tests to point at an httptest server.
	newClient func(cfg lastfm.Config) (*lastfm.Client, error)
}

// NewService creates a Service reading its settings through the given
// getter.
func NewService(settings func() Settings, logger zerolog.Logger) *Service {
	return &Service{
		settings:  settings,
		logger:    logger.With().Str("component", "lastfm").Logger(),
		now:       time.Now,
		newClient: lastfm.NewClient,
	}
}

// Name implements dispatch.Sink.
func (s *Service) Name() string { return "lastfm" }

// Deliver implements dispatch.Sink. NowPlaying events become
// track.updateNowPlaying calls, Scrobble events become track.scrobble
// calls; Paused events are ignored.
func (s *Service) Deliver(ctx context.Context, ev dispatch.Event) error {
	if ev.Type == dispatch.EventPaused {
		return nil
	}

	cfg := s.settings()
	if !cfg.Enabled {
		return nil
	}
	if cfg.APIKey == "" || cfg.APISecret == "" {
		s.logger.Debug().Msg("Last.fm credentials not configured, skipping")
		return nil
	}
	if cfg.SessionKey == "" {
		s.logger.Debug().Msg("Last.fm not authorized, skipping")
		return nil
	}

	client, err := s.newClient(lastfm.Config{
		APIKey:     cfg.APIKey,
		APISecret:  cfg.APISecret,
		SessionKey: cfg.SessionKey,
	})
	if err != nil {
		return fmt.Errorf("failed to create lastfm client: %w", err)
	}

	track := lastfm.Track{
		Artist:   ev.Artist,
		Track:    ev.Track,
		Album:    ev.Album,
		Duration: int(ev.DurationSec),
	}

	switch ev.Type {
	case dispatch.EventNowPlaying:
		if _, err := client.Track().UpdateNowPlaying(ctx, track); err != nil {
			return fmt.Errorf("failed to update now playing: %w", err)
		}
	case dispatch.EventScrobble:
		resp, err := client.Track().Scrobble(ctx, track, s.scrobbleTimestamp(ev))
		if err != nil {
			return fmt.Errorf("failed to scrobble: %w", err)
		}
		if resp.Ignored > 0 {
			if resp.IgnoredMessage != "" {
				return fmt.Errorf("scrobble was ignored: %s", resp.IgnoredMessage)
			}
			return fmt.Errorf("scrobble was ignored by Last.fm")
		}
	}

	return nil
}

// scrobbleTimestamp is when the track started playing: the recorded
// session start, or "now minus current position" when none was recorded.
func (s *Service) scrobbleTimestamp(ev dispatch.Event) time.Time {
	if !ev.StartedAt.IsZero() {
		return ev.StartedAt
	}
	return s.now().Add(-time.Duration(ev.PositionSec * float64(time.Second)))
}

// BeginAuth starts the browser authorization flow: requests a token and
// returns the consent URL the user must visit. The token is held until
// CompleteAuth exchanges it.
func (s *Service) BeginAuth(ctx context.Context) (string, error) {
	cfg := s.settings()
	if cfg.APIKey == "" || cfg.APISecret == "" {
		return "", fmt.Errorf("Last.fm API key and secret are required")
	}

	client, err := s.newClient(lastfm.Config{APIKey: cfg.APIKey, APISecret: cfg.APISecret})
	if err != nil {
		return "", err
	}

	token, err := client.Auth().GetToken(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to get auth token: %w", err)
	}

	s.mu.Lock()
	s.pendingToken = token.Token
	s.mu.Unlock()

	return client.Auth().GetAuthURL(token.Token), nil
}

// CompleteAuth exchanges the pending token for a session. Call after the
// user has confirmed the token in their browser. The caller persists the
// returned session key and username.
func (s *Service) CompleteAuth(ctx context.Context) (*lastfm.Session, error) {
	s.mu.Lock()
	token := s.pendingToken
	s.mu.Unlock()
	if token == "" {
		return nil, fmt.Errorf("no authorization in progress, call BeginAuth first")
	}

	cfg := s.settings()
	client, err := s.newClient(lastfm.Config{APIKey: cfg.APIKey, APISecret: cfg.APISecret})
	if err != nil {
		return nil, err
	}

	session, err := client.Auth().GetSession(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	s.mu.Lock()
	s.pendingToken = ""
	s.mu.Unlock()

	s.logger.Info().Str("username", session.Username).Msg("Last.fm authorized")
	return session, nil
}

// StatusText returns a user-visible description of the authorization
// state.
func (s *Service) StatusText() string {
	cfg := s.settings()

	s.mu.Lock()
	pending := s.pendingToken != ""
	s.mu.Unlock()

	switch {
	case !cfg.Enabled:
		return "Last.fm disabled"
	case cfg.APIKey == "" || cfg.APISecret == "":
		return "Last.fm API key and secret not configured"
	case cfg.SessionKey != "" && cfg.Username != "":
		return "Signed in as " + cfg.Username
	case cfg.SessionKey != "":
		return "Signed in"
	case pending:
		return "Authorization pending, complete sign-in in your browser"
	default:
		return "Not signed in"
	}
}
