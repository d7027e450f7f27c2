package lastfm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// AuthService provides authentication operations for the Last.fm API.
//
// Last.fm uses a two-phase browser flow: request a token, have the user
// authorize it at the URL from GetAuthURL, then exchange the token for a
// session key with GetSession.
type AuthService struct {
	client *Client
}

// GetToken requests an authentication token from Last.fm.
//
// This is the first step in the authentication flow. After obtaining a
// token, the user must authorize it by visiting the URL returned by
// GetAuthURL.
func (a *AuthService) GetToken(ctx context.Context) (*Token, error) {
	body, err := a.client.call(ctx, http.MethodGet, "auth.getToken", nil, false)
	if err != nil {
		return nil, err
	}

	var token Token
	if err := json.Unmarshal(body, &token); err != nil {
		return nil, fmt.Errorf("lastfm: failed to parse token response: %w", err)
	}
	if token.Token == "" {
		return nil, fmt.Errorf("lastfm: empty token in response")
	}

	return &token, nil
}

// GetAuthURL returns the URL where the user authorizes the token.
func (a *AuthService) GetAuthURL(token string) string {
	return "https://www.last.fm/api/auth/?api_key=" + a.client.apiKey + "&token=" + token
}

// GetSession exchanges an authorized token for a session key.
//
// Call this after the user has confirmed the token in their browser. The
// session key does not expire and should be stored for future use.
func (a *AuthService) GetSession(ctx context.Context, token string) (*Session, error) {
	body, err := a.client.call(ctx, http.MethodPost, "auth.getSession", map[string]string{
		"token": token,
	}, false)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Session struct {
			Name       string `json:"name"`
			Key        string `json:"key"`
			Subscriber int    `json:"subscriber"`
		} `json:"session"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("lastfm: failed to parse session response: %w", err)
	}
	if resp.Session.Key == "" {
		return nil, fmt.Errorf("lastfm: empty session key in response")
	}

	return &Session{
		Key:        resp.Session.Key,
		Username:   resp.Session.Name,
		Subscriber: resp.Session.Subscriber != 0,
	}, nil
}
