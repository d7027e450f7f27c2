package scrobbler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/nopxx/scrobblerd/internal/dispatch"
	"github.com/nopxx/scrobblerd/pkg/lastfm"
)

// fixedSettings returns a settings getter for a static config.
func fixedSettings(s Settings) func() Settings {
	return func() Settings { return s }
}

// newTestService points the service's lastfm client at an httptest
// server.
func newTestService(t *testing.T, settings Settings, handler http.HandlerFunc) (*Service, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	svc := NewService(fixedSettings(settings), zerolog.Nop())
	svc.newClient = func(cfg lastfm.Config) (*lastfm.Client, error) {
		cfg.BaseURL = server.URL + "/"
		return lastfm.NewClient(cfg)
	}
	return svc, server
}

var enabledSettings = Settings{
	Enabled:    true,
	APIKey:     "key",
	APISecret:  "secret",
	SessionKey: "sess",
	Username:   "someuser",
}

func TestDeliverSkipsWhenDisabled(t *testing.T) {
	svc, _ := newTestService(t, Settings{Enabled: false}, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request should be made when disabled")
	})

	err := svc.Deliver(context.Background(), dispatch.Event{Type: dispatch.EventNowPlaying})
	if err != nil {
		t.Errorf("Deliver = %v, want nil skip", err)
	}
}

func TestDeliverSkipsWithoutCredentials(t *testing.T) {
	svc, _ := newTestService(t, Settings{Enabled: true}, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request should be made without credentials")
	})

	err := svc.Deliver(context.Background(), dispatch.Event{Type: dispatch.EventNowPlaying})
	if err != nil {
		t.Errorf("Deliver = %v, want nil skip", err)
	}
}

func TestDeliverSkipsWithoutSessionKey(t *testing.T) {
	settings := enabledSettings
	settings.SessionKey = ""
	svc, _ := newTestService(t, settings, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request should be made without a session key")
	})

	err := svc.Deliver(context.Background(), dispatch.Event{Type: dispatch.EventNowPlaying})
	if err != nil {
		t.Errorf("Deliver = %v, want nil skip", err)
	}
}

func TestDeliverIgnoresPaused(t *testing.T) {
	svc, _ := newTestService(t, enabledSettings, func(w http.ResponseWriter, r *http.Request) {
		t.Error("paused events must not reach Last.fm")
	})

	if err := svc.Deliver(context.Background(), dispatch.Event{Type: dispatch.EventPaused}); err != nil {
		t.Errorf("Deliver = %v", err)
	}
}

func TestDeliverNowPlaying(t *testing.T) {
	var gotForm url.Values
	svc, _ := newTestService(t, enabledSettings, func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		gotForm = r.PostForm
		w.Write([]byte(`{"nowplaying":{"artist":{"#text":"Can"},"track":{"#text":"Vitamin C"}}}`))
	})

	err := svc.Deliver(context.Background(), dispatch.Event{
		Type:        dispatch.EventNowPlaying,
		Artist:      "Can",
		Track:       "Vitamin C",
		Album:       "Ege Bamyasi",
		DurationSec: 211,
	})
	if err != nil {
		t.Fatalf("Deliver: %v", err)
	}

	if gotForm.Get("method") != "track.updateNowPlaying" {
		t.Errorf("method = %q", gotForm.Get("method"))
	}
	if gotForm.Get("artist") != "Can" || gotForm.Get("track") != "Vitamin C" {
		t.Errorf("artist/track = %q/%q", gotForm.Get("artist"), gotForm.Get("track"))
	}
}

func TestDeliverScrobbleUsesSessionStart(t *testing.T) {
	var gotForm url.Values
	svc, _ := newTestService(t, enabledSettings, func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		gotForm = r.PostForm
		w.Write([]byte(`{"scrobbles":{"@attr":{"accepted":1,"ignored":0}}}`))
	})

	started := time.Unix(1700000000, 0)
	err := svc.Deliver(context.Background(), dispatch.Event{
		Type:      dispatch.EventScrobble,
		Artist:    "Can",
		Track:     "Vitamin C",
		StartedAt: started,
	})
	if err != nil {
		t.Fatalf("Deliver: %v", err)
	}

	if gotForm.Get("method") != "track.scrobble" {
		t.Errorf("method = %q", gotForm.Get("method"))
	}
	if gotForm.Get("timestamp[0]") != "1700000000" {
		t.Errorf("timestamp[0] = %q, want session start", gotForm.Get("timestamp[0]"))
	}
}

func TestScrobbleTimestampFallback(t *testing.T) {
	svc := NewService(fixedSettings(enabledSettings), zerolog.Nop())
	now := time.Unix(1700000300, 0)
	svc.now = func() time.Time { return now }

	// No recorded start: timestamp is now minus the current position.
	ts := svc.scrobbleTimestamp(dispatch.Event{PositionSec: 120})
	if want := time.Unix(1700000180, 0); !ts.Equal(want) {
		t.Errorf("timestamp = %v, want %v", ts, want)
	}
}

func TestDeliverScrobbleIgnored(t *testing.T) {
	svc, _ := newTestService(t, enabledSettings, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"scrobbles":{"@attr":{"accepted":0,"ignored":1},"scrobble":{"ignoredMessage":{"code":"1","#text":"Artist name failed filters"}}}}`))
	})

	err := svc.Deliver(context.Background(), dispatch.Event{
		Type:   dispatch.EventScrobble,
		Artist: "x",
		Track:  "y",
	})
	if err == nil || !strings.Contains(err.Error(), "Artist name failed filters") {
		t.Errorf("expected ignored error, got %v", err)
	}
}

func TestAuthFlow(t *testing.T) {
	settings := Settings{Enabled: true, APIKey: "key", APISecret: "secret"}
	svc, _ := newTestService(t, settings, func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		switch r.FormValue("method") {
		case "auth.getToken":
			w.Write([]byte(`{"token":"tok123"}`))
		case "auth.getSession":
			if r.FormValue("token") != "tok123" {
				t.Errorf("token = %q, want pending token", r.FormValue("token"))
			}
			w.Write([]byte(`{"session":{"name":"someuser","key":"sk","subscriber":0}}`))
		default:
			t.Errorf("unexpected method %q", r.FormValue("method"))
		}
	})

	authURL, err := svc.BeginAuth(context.Background())
	if err != nil {
		t.Fatalf("BeginAuth: %v", err)
	}
	if !strings.Contains(authURL, "token=tok123") {
		t.Errorf("authURL = %q", authURL)
	}

	session, err := svc.CompleteAuth(context.Background())
	if err != nil {
		t.Fatalf("CompleteAuth: %v", err)
	}
	if session.Key != "sk" || session.Username != "someuser" {
		t.Errorf("session = %+v", session)
	}

	// The pending token is transient: a second exchange must fail.
	if _, err := svc.CompleteAuth(context.Background()); err == nil {
		t.Error("expected error after token was consumed")
	}
}

func TestCompleteAuthWithoutBegin(t *testing.T) {
	svc := NewService(fixedSettings(enabledSettings), zerolog.Nop())
	if _, err := svc.CompleteAuth(context.Background()); err == nil {
		t.Error("expected error without BeginAuth")
	}
}

func TestStatusText(t *testing.T) {
	tests := []struct {
		name     string
		settings Settings
		want     string
	}{
		{"disabled", Settings{}, "Last.fm disabled"},
		{"no credentials", Settings{Enabled: true}, "Last.fm API key and secret not configured"},
		{
			"signed in",
			Settings{Enabled: true, APIKey: "k", APISecret: "s", SessionKey: "sk", Username: "someuser"},
			"Signed in as someuser",
		},
		{
			"not signed in",
			Settings{Enabled: true, APIKey: "k", APISecret: "s"},
			"Not signed in",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewService(fixedSettings(tt.settings), zerolog.Nop())
			if got := svc.StatusText(); got != tt.want {
				t.Errorf("StatusText = %q, want %q", got, tt.want)
			}
		})
	}
}
