// Package config loads and watches the application configuration. A
// Manager owns the viper instance; everything else reads immutable
// Config snapshots through it, so a file change picked up by the watcher
// is visible on the next read.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

// Config holds application configuration.
type Config struct {
	// Poll interval for the session tracker (in seconds)
	PollInterval int

	// Websocket URL of the player bridge pushing playerInfo events
	FeedURL string

	// Webhook destination; empty disables the webhook sink
	WebhookURL string

	// Scrobble thresholds: percent of the track (1-100) or absolute
	// seconds played, whichever is reached first
	ScrobblePercent float64
	ScrobbleSeconds float64

	// Show a desktop notification on track change
	NotificationsEnabled bool

	Reconcile ReconcileConfig
	LastFM    LastFMConfig
}

// ReconcileConfig overrides the reconciler's heuristic cutoffs. These
// are tuning parameters; the defaults are right for Apple Music's feed.
type ReconcileConfig struct {
	SameDurationToleranceSec float64
	NearZeroCutoffSec        float64
	RecentWindowSec          float64
	JitterToleranceSec       float64
}

// LastFMConfig holds Last.fm specific configuration.
type LastFMConfig struct {
	Enabled    bool
	APIKey     string
	APISecret  string
	SessionKey string
	Username   string
}

// Manager loads the configuration and serves snapshots of it.
type Manager struct {
	mu     sync.RWMutex
	v      *viper.Viper
	cfg    Config
	logger zerolog.Logger
}

// NewManager creates an unloaded Manager.
func NewManager(logger zerolog.Logger) *Manager {
	return &Manager{
		v:      viper.New(),
		logger: logger.With().Str("component", "config").Logger(),
	}
}

// Load reads configuration from file and environment. A missing config
// file is not an error; defaults and environment apply.
func (m *Manager) Load() error {
	m.v.SetConfigName("config")
	m.v.SetConfigType("yaml")

	configDir := getConfigDir()
	m.v.AddConfigPath(configDir)
	m.v.AddConfigPath(".")

	m.v.SetDefault("poll_interval", 3)
	m.v.SetDefault("feed_url", "ws://127.0.0.1:26538/events")
	m.v.SetDefault("webhook_url", "")
	m.v.SetDefault("scrobble_percent", 50)
	m.v.SetDefault("scrobble_seconds", 240)
	m.v.SetDefault("notifications_enabled", true)
	m.v.SetDefault("reconcile.same_duration_tolerance", 1.0)
	m.v.SetDefault("reconcile.near_zero_cutoff", 1.0)
	m.v.SetDefault("reconcile.recent_window", 2.0)
	m.v.SetDefault("reconcile.jitter_tolerance", 0.5)
	m.v.SetDefault("lastfm.enabled", false)

	_ = m.v.ReadInConfig()

	m.v.SetEnvPrefix("SCROBBLERD")
	m.v.AutomaticEnv()

	m.mu.Lock()
	m.cfg = m.snapshot()
	m.mu.Unlock()

	return nil
}

// Get returns the current configuration snapshot.
func (m *Manager) Get() Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cfg
}

// Watch re-reads the configuration whenever the file changes on disk.
// Threshold, webhook and Last.fm changes apply from the next read.
func (m *Manager) Watch() {
	m.v.OnConfigChange(func(e fsnotify.Event) {
		m.mu.Lock()
		m.cfg = m.snapshot()
		m.mu.Unlock()
		m.logger.Info().Str("file", e.Name).Msg("Configuration reloaded")
	})
	m.v.WatchConfig()
}

// SetLastFMCredentials stores API credentials without persisting; pair
// with SetLastFMSession or Save.
func (m *Manager) SetLastFMCredentials(apiKey, apiSecret string) {
	m.v.Set("lastfm.api_key", apiKey)
	m.v.Set("lastfm.api_secret", apiSecret)

	m.mu.Lock()
	m.cfg = m.snapshot()
	m.mu.Unlock()
}

// SetLastFMSession stores the session obtained from authorization and
// persists the configuration.
func (m *Manager) SetLastFMSession(sessionKey, username string) error {
	m.v.Set("lastfm.session_key", sessionKey)
	m.v.Set("lastfm.username", username)
	m.v.Set("lastfm.enabled", true)

	m.mu.Lock()
	m.cfg = m.snapshot()
	m.mu.Unlock()

	return m.Save()
}

// Save writes the configuration to file.
func (m *Manager) Save() error {
	configFile := filepath.Join(getConfigDir(), "config.yaml")
	if err := m.v.WriteConfigAs(configFile); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// snapshot maps the viper state to a Config, clamping out-of-range
// values.
func (m *Manager) snapshot() Config {
	percent := m.v.GetFloat64("scrobble_percent")
	if percent < 1 || percent > 100 {
		percent = 50
	}

	return Config{
		PollInterval:         m.v.GetInt("poll_interval"),
		FeedURL:              m.v.GetString("feed_url"),
		WebhookURL:           m.v.GetString("webhook_url"),
		ScrobblePercent:      percent,
		ScrobbleSeconds:      m.v.GetFloat64("scrobble_seconds"),
		NotificationsEnabled: m.v.GetBool("notifications_enabled"),
		Reconcile: ReconcileConfig{
			SameDurationToleranceSec: m.v.GetFloat64("reconcile.same_duration_tolerance"),
			NearZeroCutoffSec:        m.v.GetFloat64("reconcile.near_zero_cutoff"),
			RecentWindowSec:          m.v.GetFloat64("reconcile.recent_window"),
			JitterToleranceSec:       m.v.GetFloat64("reconcile.jitter_tolerance"),
		},
		LastFM: LastFMConfig{
			Enabled:    m.v.GetBool("lastfm.enabled"),
			APIKey:     m.v.GetString("lastfm.api_key"),
			APISecret:  m.v.GetString("lastfm.api_secret"),
			SessionKey: m.v.GetString("lastfm.session_key"),
			Username:   m.v.GetString("lastfm.username"),
		},
	}
}

// getConfigDir returns the configuration directory path, creating it if
// needed.
func getConfigDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "."
	}

	configDir := filepath.Join(homeDir, ".config", "scrobblerd")
	_ = os.MkdirAll(configDir, 0755)

	return configDir
}

// GetConfigDir returns the configuration directory path.
func GetConfigDir() string {
	return getConfigDir()
}
