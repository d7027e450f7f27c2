// Package daemon wires the feed listener, reconciler, session tracker
// and event sinks into one long-running service with explicit
// construction and deterministic teardown.
package daemon

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/nopxx/scrobblerd/internal/artwork"
	"github.com/nopxx/scrobblerd/internal/config"
	"github.com/nopxx/scrobblerd/internal/dispatch"
	"github.com/nopxx/scrobblerd/internal/feed"
	"github.com/nopxx/scrobblerd/internal/history"
	"github.com/nopxx/scrobblerd/internal/notify"
	"github.com/nopxx/scrobblerd/internal/probe"
	"github.com/nopxx/scrobblerd/internal/reconcile"
	"github.com/nopxx/scrobblerd/internal/scrobbler"
	"github.com/nopxx/scrobblerd/internal/session"
)

// Service is the assembled daemon.
type Service struct {
	configs  *config.Manager
	listener *feed.Listener
	tracker  *session.Tracker
	events   *dispatch.Dispatcher
	logger   zerolog.Logger
}

// New builds a Service from the loaded configuration manager. All
// collaborators are constructed here; nothing is ambient.
func New(configs *config.Manager, logger zerolog.Logger) *Service {
	cfg := configs.Get()

	store := reconcile.NewStore()

	tuning := reconcile.DefaultTuning()
	if rc := cfg.Reconcile; rc.NearZeroCutoffSec > 0 {
		tuning.SameDurationToleranceSec = rc.SameDurationToleranceSec
		tuning.NearZeroCutoffSec = rc.NearZeroCutoffSec
		tuning.RecentWindowSec = rc.RecentWindowSec
		tuning.JitterToleranceSec = rc.JitterToleranceSec
	}

	reconciler := reconcile.New(store, probe.NewAppleScript(), tuning, logger)
	listener := feed.NewListener(cfg.FeedURL, reconciler, logger)

	resolver := history.NewResolver(
		filepath.Join(config.GetConfigDir(), "edits.json"), logger)

	webhook := dispatch.NewWebhookSink(func() string {
		return configs.Get().WebhookURL
	}, logger)
	lastfm := scrobbler.NewService(func() scrobbler.Settings {
		c := configs.Get().LastFM
		return scrobbler.Settings{
			Enabled:    c.Enabled,
			APIKey:     c.APIKey,
			APISecret:  c.APISecret,
			SessionKey: c.SessionKey,
			Username:   c.Username,
		}
	}, logger)
	events := dispatch.New(logger, webhook, lastfm)

	tracker := session.NewTracker(session.Deps{
		Store:      store,
		Dispatcher: events,
		Resolver:   resolver,
		Artwork:    artwork.NewLookup(),
		Notifier:   notify.New(logger),
		Settings: func() session.Settings {
			c := configs.Get()
			return session.Settings{
				ScrobblePercent:      c.ScrobblePercent,
				ScrobbleSeconds:      c.ScrobbleSeconds,
				NotificationsEnabled: c.NotificationsEnabled,
			}
		},
		Logger:       logger,
		PollInterval: time.Duration(cfg.PollInterval) * time.Second,
	})

	return &Service{
		configs:  configs,
		listener: listener,
		tracker:  tracker,
		events:   events,
		logger:   logger.With().Str("component", "daemon").Logger(),
	}
}

// Run starts the daemon and blocks until a shutdown signal is received.
// The first signal triggers a graceful shutdown; a second forces exit.
func (s *Service) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		<-sigChan
		s.logger.Info().Msg("Shutdown signal received, initiating graceful shutdown")
		cancel()

		<-sigChan
		s.logger.Warn().Msg("Second shutdown signal received, forcing exit")
		os.Exit(1)
	}()

	return s.run(ctx)
}

// run is the main daemon loop.
func (s *Service) run(ctx context.Context) error {
	s.logger.Info().Msg("Starting daemon")

	s.configs.Watch()

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := s.listener.Run(ctx); err != nil && err != context.Canceled {
			s.logger.Error().Err(err).Msg("Feed listener error")
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		s.tracker.Run(ctx)
	}()

	<-ctx.Done()
	wg.Wait()

	// Let in-flight deliveries drain before exiting.
	s.events.Wait()

	s.logger.Info().Msg("Daemon stopped")
	return nil
}
