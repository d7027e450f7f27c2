package lastfm

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(Config{
		APIKey:    "test_key",
		APISecret: "test_secret",
		BaseURL:   server.URL + "/",
	})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return client, server
}

func TestNewClientValidation(t *testing.T) {
	if _, err := NewClient(Config{APISecret: "s"}); err == nil {
		t.Error("expected error for missing APIKey")
	}
	if _, err := NewClient(Config{APIKey: "k"}); err == nil {
		t.Error("expected error for missing APISecret")
	}
	if _, err := NewClient(Config{APIKey: "k", APISecret: "s"}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestGetToken(t *testing.T) {
	var gotQuery url.Values
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("auth.getToken should use GET, got %s", r.Method)
		}
		gotQuery = r.URL.Query()
		w.Write([]byte(`{"token":"abc123"}`))
	})

	token, err := client.Auth().GetToken(context.Background())
	if err != nil {
		t.Fatalf("GetToken: %v", err)
	}
	if token.Token != "abc123" {
		t.Errorf("token = %q, want %q", token.Token, "abc123")
	}

	if gotQuery.Get("method") != "auth.getToken" {
		t.Errorf("method = %q", gotQuery.Get("method"))
	}
	if gotQuery.Get("api_key") != "test_key" {
		t.Errorf("api_key = %q", gotQuery.Get("api_key"))
	}
	if gotQuery.Get("format") != "json" {
		t.Errorf("format = %q", gotQuery.Get("format"))
	}

	wantSig := calculateSignature(map[string]string{
		"method":  "auth.getToken",
		"api_key": "test_key",
	}, "test_secret")
	if gotQuery.Get("api_sig") != wantSig {
		t.Errorf("api_sig = %q, want %q", gotQuery.Get("api_sig"), wantSig)
	}
}

func TestGetSession(t *testing.T) {
	var gotForm url.Values
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("auth.getSession should use POST, got %s", r.Method)
		}
		if err := r.ParseForm(); err != nil {
			t.Fatalf("ParseForm: %v", err)
		}
		gotForm = r.PostForm
		w.Write([]byte(`{"session":{"name":"someuser","key":"sess_key","subscriber":0}}`))
	})

	session, err := client.Auth().GetSession(context.Background(), "tok")
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if session.Key != "sess_key" {
		t.Errorf("key = %q", session.Key)
	}
	if session.Username != "someuser" {
		t.Errorf("username = %q", session.Username)
	}
	if session.Subscriber {
		t.Error("subscriber should be false")
	}
	if gotForm.Get("token") != "tok" {
		t.Errorf("token = %q", gotForm.Get("token"))
	}
}

func TestUpdateNowPlaying(t *testing.T) {
	var gotForm url.Values
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Fatalf("ParseForm: %v", err)
		}
		gotForm = r.PostForm
		w.Write([]byte(`{"nowplaying":{"artist":{"corrected":"0","#text":"Boards of Canada"},"track":{"corrected":"0","#text":"Roygbiv"},"album":{"corrected":"0","#text":""}}}`))
	})
	client.SetSessionKey("sess")

	resp, err := client.Track().UpdateNowPlaying(context.Background(), Track{
		Artist:   "Boards of Canada",
		Track:    "Roygbiv",
		Duration: 149,
	})
	if err != nil {
		t.Fatalf("UpdateNowPlaying: %v", err)
	}
	if resp.Artist != "Boards of Canada" {
		t.Errorf("artist = %q", resp.Artist)
	}

	if gotForm.Get("method") != "track.updateNowPlaying" {
		t.Errorf("method = %q", gotForm.Get("method"))
	}
	if gotForm.Get("sk") != "sess" {
		t.Errorf("sk = %q", gotForm.Get("sk"))
	}
	if gotForm.Get("duration") != "149" {
		t.Errorf("duration = %q", gotForm.Get("duration"))
	}
}

func TestScrobbleUsesIndexedParams(t *testing.T) {
	var gotForm url.Values
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Fatalf("ParseForm: %v", err)
		}
		gotForm = r.PostForm
		w.Write([]byte(`{"scrobbles":{"@attr":{"accepted":1,"ignored":0},"scrobble":{"ignoredMessage":{"code":"0","#text":""}}}}`))
	})
	client.SetSessionKey("sess")

	ts := time.Unix(1700000000, 0)
	resp, err := client.Track().Scrobble(context.Background(), Track{
		Artist:   "Can",
		Track:    "Vitamin C",
		Album:    "Ege Bamyasi",
		Duration: 211,
	}, ts)
	if err != nil {
		t.Fatalf("Scrobble: %v", err)
	}
	if resp.Accepted != 1 || resp.Ignored != 0 {
		t.Errorf("accepted/ignored = %d/%d", resp.Accepted, resp.Ignored)
	}

	checks := map[string]string{
		"artist[0]":    "Can",
		"track[0]":     "Vitamin C",
		"album[0]":     "Ege Bamyasi",
		"duration[0]":  "211",
		"timestamp[0]": "1700000000",
	}
	for k, want := range checks {
		if got := gotForm.Get(k); got != want {
			t.Errorf("%s = %q, want %q", k, got, want)
		}
	}
}

func TestScrobbleIgnoredMessage(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"scrobbles":{"@attr":{"accepted":0,"ignored":1},"scrobble":{"ignoredMessage":{"code":"1","#text":"Artist was ignored"}}}}`))
	})
	client.SetSessionKey("sess")

	resp, err := client.Track().Scrobble(context.Background(), Track{Artist: "x", Track: "y"}, time.Now())
	if err != nil {
		t.Fatalf("Scrobble: %v", err)
	}
	if resp.Ignored != 1 {
		t.Errorf("ignored = %d, want 1", resp.Ignored)
	}
	if resp.IgnoredMessage != "Artist was ignored" {
		t.Errorf("ignoredMessage = %q", resp.IgnoredMessage)
	}
}

func TestAPIErrorDecoding(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"error":14,"message":"This token has not been authorized"}`))
	})

	_, err := client.Auth().GetSession(context.Background(), "tok")
	if err == nil {
		t.Fatal("expected error")
	}

	var apiErr *Error
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *Error, got %T: %v", err, err)
	}
	if apiErr.Code != ErrCodeUnauthorizedToken {
		t.Errorf("code = %d, want %d", apiErr.Code, ErrCodeUnauthorizedToken)
	}
}

func TestAuthedCallWithoutSessionKey(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request should be made without a session key")
	})

	_, err := client.Track().UpdateNowPlaying(context.Background(), Track{Artist: "a", Track: "t"})
	if !errors.Is(err, ErrNoSessionKey) {
		t.Errorf("expected ErrNoSessionKey, got %v", err)
	}
}

func TestGetAuthURL(t *testing.T) {
	client, err := NewClient(Config{APIKey: "mykey", APISecret: "s"})
	if err != nil {
		t.Fatal(err)
	}
	want := "https://www.last.fm/api/auth/?api_key=mykey&token=tok"
	if got := client.Auth().GetAuthURL("tok"); got != want {
		t.Errorf("GetAuthURL = %q, want %q", got, want)
	}
}
