package config

import (
	"testing"

	"github.com/rs/zerolog"
)

func TestLoadDefaults(t *testing.T) {
	m := NewManager(zerolog.Nop())
	if err := m.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}

	cfg := m.Get()
	if cfg.PollInterval != 3 {
		t.Errorf("PollInterval = %d, want 3", cfg.PollInterval)
	}
	if cfg.ScrobblePercent != 50 {
		t.Errorf("ScrobblePercent = %v, want 50", cfg.ScrobblePercent)
	}
	if cfg.ScrobbleSeconds != 240 {
		t.Errorf("ScrobbleSeconds = %v, want 240", cfg.ScrobbleSeconds)
	}
	if !cfg.NotificationsEnabled {
		t.Error("NotificationsEnabled should default to true")
	}
	if cfg.LastFM.Enabled {
		t.Error("LastFM.Enabled should default to false")
	}
	if cfg.Reconcile.NearZeroCutoffSec != 1.0 || cfg.Reconcile.JitterToleranceSec != 0.5 {
		t.Errorf("Reconcile defaults = %+v", cfg.Reconcile)
	}
}

func TestEnvironmentOverride(t *testing.T) {
	t.Setenv("SCROBBLERD_SCROBBLE_PERCENT", "75")
	t.Setenv("SCROBBLERD_WEBHOOK_URL", "https://example.com/hook")

	m := NewManager(zerolog.Nop())
	if err := m.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}

	cfg := m.Get()
	if cfg.ScrobblePercent != 75 {
		t.Errorf("ScrobblePercent = %v, want 75", cfg.ScrobblePercent)
	}
	if cfg.WebhookURL != "https://example.com/hook" {
		t.Errorf("WebhookURL = %q", cfg.WebhookURL)
	}
}

func TestScrobblePercentClamped(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  float64
	}{
		{"above range", "150", 50},
		{"below range", "0", 50},
		{"in range", "90", 90},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("SCROBBLERD_SCROBBLE_PERCENT", tt.value)

			m := NewManager(zerolog.Nop())
			if err := m.Load(); err != nil {
				t.Fatalf("Load: %v", err)
			}
			if got := m.Get().ScrobblePercent; got != tt.want {
				t.Errorf("ScrobblePercent = %v, want %v", got, tt.want)
			}
		})
	}
}
